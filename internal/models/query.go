package models

// Seed is a query vertex together with the energy it starts spreading activation with.
// A zero Energy means the engine default.
type Seed struct {
	ID     int64   `json:"id"`
	Energy float64 `json:"energy,omitempty"`
}

// SearchRequest is the query boundary: resolved seeds plus the engine selection.
type SearchRequest struct {
	Seeds         []Seed `json:"seeds"`
	Weighting     string `json:"weighting,omitempty"`
	Limit         int    `json:"limit,omitempty"`
	DocumentsOnly bool   `json:"documents_only,omitempty"`

	// NumClusters > 0 cuts the dendrogram into that many clusters.
	NumClusters int `json:"num_clusters,omitempty"`
	// Threshold, when set, clusters by weak components at or above the weight.
	Threshold *float64 `json:"threshold,omitempty"`
}

// WantsClusters reports whether the request asks for a cluster assignment.
func (r *SearchRequest) WantsClusters() bool {
	return r.NumClusters > 0 || r.Threshold != nil
}

// Hit is one ranked vertex in a search result.
type Hit struct {
	ID        int64      `json:"id"`
	Type      VertexType `json:"type"`
	Content   string     `json:"content"`
	Rank      float64    `json:"rank"`
	Relevance float64    `json:"relevance"`
	Cluster   *int       `json:"cluster,omitempty"`
}

// SearchResult is returned by a search session.
type SearchResult struct {
	Hits         []Hit             `json:"hits"`
	Ranks        map[int64]float64 `json:"ranks"`
	Clusters     map[int64]int     `json:"clusters,omitempty"`
	NumClusters  int               `json:"num_clusters,omitempty"`
	Silhouette   *float64          `json:"silhouette,omitempty"`
	SkippedSeeds []int64           `json:"skipped_seeds,omitempty"`
	Stats        SessionStats      `json:"stats"`
}

// SessionStats describes the subgraph a session worked on.
type SessionStats struct {
	Vertices       int  `json:"vertices"`
	Edges          int  `json:"edges"`
	RankIterations int  `json:"rank_iterations"`
	RankConverged  bool `json:"rank_converged"`
}

// ClusterRequest asks for a clustering of the subgraph around the seeds.
type ClusterRequest struct {
	Seeds     []Seed `json:"seeds"`
	Weighting string `json:"weighting,omitempty"`

	NumClusters int      `json:"num_clusters,omitempty"`
	Threshold   *float64 `json:"threshold,omitempty"`

	// Linkage selects the agglomerative combinator: single, complete or average.
	// Empty uses the plain MST dendrogram.
	Linkage string `json:"linkage,omitempty"`
}

// Cluster is one group of vertices in a cluster result.
type Cluster struct {
	ID         int     `json:"id"`
	Members    []Hit   `json:"members"`
	Silhouette float64 `json:"silhouette"`
}

// ClusterResult is returned by a clustering session.
type ClusterResult struct {
	Clusters     []Cluster    `json:"clusters"`
	Silhouette   float64      `json:"silhouette"`
	SkippedSeeds []int64      `json:"skipped_seeds,omitempty"`
	Stats        SessionStats `json:"stats"`
}
