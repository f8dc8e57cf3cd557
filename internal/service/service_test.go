package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/corpusgraph/internal/models"
	"github.com/persistorai/corpusgraph/internal/ranking"
	"github.com/persistorai/corpusgraph/internal/store"
	"github.com/persistorai/corpusgraph/internal/weighting"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

var corpus = []models.Document{
	{Name: "d1", Body: "apples and bananas", Terms: map[string]float64{"apple": 2, "banana": 1}},
	{Name: "d2", Terms: map[string]float64{"apple": 1, "cherry": 3}},
	{Name: "d3", Terms: map[string]float64{"durian": 1}},
}

func indexedStore(t *testing.T) *store.MemoryStore {
	t.Helper()

	mem := store.NewMemoryStore(testLogger())

	res, err := NewIndexService(mem, testLogger()).IndexDocuments(context.Background(), corpus)
	if err != nil {
		t.Fatalf("IndexDocuments: %v", err)
	}

	if res.DocumentsIndexed != 3 || res.TermsLinked != 5 {
		t.Fatalf("IndexDocuments = %+v, want 3 documents and 5 terms", res)
	}

	return mem
}

func resolve(t *testing.T, mem *store.MemoryStore, content string, typ models.VertexType) int64 {
	t.Helper()

	id, err := mem.Resolve(context.Background(), content, typ)
	if err != nil {
		t.Fatalf("Resolve(%s): %v", content, err)
	}

	return id
}

func localOptions() Options {
	opts := DefaultOptions()
	opts.Weighting = weighting.NameLocal

	return opts
}

func TestIndexDocuments_Counts(t *testing.T) {
	mem := indexedStore(t)
	ctx := context.Background()

	for typ, want := range map[models.VertexType]int64{models.DocumentType: 3, models.TermType: 4} {
		if n, _ := mem.CountOfType(ctx, typ); n != want {
			t.Errorf("CountOfType(%s) = %d, want %d", typ, n, want)
		}
	}

	d1 := resolve(t, mem, "d1", models.DocumentType)

	if body, _ := mem.GetVertexMeta(ctx, d1, models.MetaBody); body != "apples and bananas" {
		t.Errorf("body = %q, want stored document body", body)
	}

	nbrs, _ := mem.FetchNeighbors(ctx, []int64{d1})
	for _, n := range nbrs[d1] {
		if n.Edge.FromDegree != 2 {
			t.Errorf("d1 -> %s from degree = %d, want 2", n.Vertex.Content, n.Edge.FromDegree)
		}
	}
}

func TestIndexDocuments_SkipsInvalid(t *testing.T) {
	mem := store.NewMemoryStore(testLogger())

	docs := []models.Document{
		{Name: "", Terms: map[string]float64{"x": 1}},
		{Name: "neg", Terms: map[string]float64{"x": -1}},
		{Name: "ok", Terms: map[string]float64{"x": 1}},
	}

	res, err := NewIndexService(mem, testLogger()).IndexDocuments(context.Background(), docs)
	if err != nil {
		t.Fatalf("IndexDocuments: %v", err)
	}

	if res.DocumentsIndexed != 1 || res.DocumentsSkipped != 2 || len(res.Errors) != 2 {
		t.Errorf("result = %+v, want 1 indexed and 2 skipped", res)
	}
}

func TestIndexDocument_ReindexReplacesEdges(t *testing.T) {
	mem := indexedStore(t)
	ctx := context.Background()
	svc := NewIndexService(mem, testLogger())

	id, err := svc.IndexDocument(ctx, models.Document{Name: "d1", Terms: map[string]float64{"banana": 5}})
	if err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}

	if want := resolve(t, mem, "d1", models.DocumentType); id != want {
		t.Errorf("re-indexed id = %d, want stored id %d", id, want)
	}

	nbrs, _ := mem.FetchNeighbors(ctx, []int64{id})
	if got := nbrs[id]; len(got) != 1 || got[0].Vertex.Content != "banana" || got[0].Edge.Strength != 5 {
		t.Fatalf("d1 neighbors = %+v, want only banana with strength 5", got)
	}

	apple := resolve(t, mem, "apple", models.TermType)

	nbrs, _ = mem.FetchNeighbors(ctx, []int64{apple})
	if got := nbrs[apple]; len(got) != 1 || got[0].Vertex.Content != "d2" {
		t.Errorf("apple neighbors = %+v, want only d2", got)
	}
}

func TestIndexDocuments_MinDocumentFrequency(t *testing.T) {
	tests := []struct {
		name         string
		minDF        string
		wantLinked   int
		wantFiltered int
		wantErr      error
	}{
		{name: "unset", wantLinked: 5},
		{name: "two", minDF: "2", wantLinked: 2, wantFiltered: 3},
		{name: "invalid", minDF: "many", wantErr: models.ErrInvalidConfig},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			mem := store.NewMemoryStore(testLogger())

			if tc.minDF != "" {
				if err := mem.SetMeta(ctx, models.MetaMinDocFreq, tc.minDF); err != nil {
					t.Fatalf("SetMeta: %v", err)
				}
			}

			res, err := NewIndexService(mem, testLogger()).IndexDocuments(ctx, corpus)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}

				return
			}

			if err != nil {
				t.Fatalf("IndexDocuments: %v", err)
			}

			if res.TermsLinked != tc.wantLinked || res.TermsFiltered != tc.wantFiltered {
				t.Errorf("linked/filtered = %d/%d, want %d/%d", res.TermsLinked, res.TermsFiltered, tc.wantLinked, tc.wantFiltered)
			}
		})
	}
}

func TestUnindexDocument(t *testing.T) {
	mem := indexedStore(t)
	ctx := context.Background()
	svc := NewIndexService(mem, testLogger())

	if err := svc.UnindexDocument(ctx, "d2"); err != nil {
		t.Fatalf("UnindexDocument: %v", err)
	}

	if _, err := mem.Resolve(ctx, "d2", models.DocumentType); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("d2 still stored: %v", err)
	}

	if _, err := mem.Resolve(ctx, "cherry", models.TermType); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("orphaned term cherry still stored: %v", err)
	}

	apple := resolve(t, mem, "apple", models.TermType)

	nbrs, _ := mem.FetchNeighbors(ctx, []int64{apple})
	if got := nbrs[apple]; len(got) != 1 || got[0].Vertex.Content != "d1" || got[0].Edge.FromDegree != 1 {
		t.Errorf("apple neighbors = %+v, want only d1 with from degree 1", got)
	}

	if err := svc.UnindexDocument(ctx, "nope"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("UnindexDocument(nope): err = %v, want ErrNotFound", err)
	}
}

func TestSearch_RanksExtractedSubgraph(t *testing.T) {
	mem := indexedStore(t)
	apple := resolve(t, mem, "apple", models.TermType)
	svc := NewSearchService(mem, localOptions(), testLogger())

	res, err := svc.Search(context.Background(), models.SearchRequest{Seeds: []models.Seed{{ID: apple}}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	// Two bfs hops from apple reach both of its documents and their terms.
	if res.Stats.Vertices != 5 || res.Stats.Edges != 6 || len(res.Ranks) != 5 {
		t.Fatalf("stats = %+v with %d ranks, want 5 vertices, 6 edges", res.Stats, len(res.Ranks))
	}

	if _, ok := res.Ranks[resolve(t, mem, "d3", models.DocumentType)]; ok {
		t.Error("unreachable document d3 was ranked")
	}

	if res.Ranks[apple] < ranking.DefaultSeedEnergy {
		t.Errorf("seed rank = %v, want at least the seed energy", res.Ranks[apple])
	}

	if len(res.Hits) != 5 {
		t.Fatalf("hits = %d, want 5", len(res.Hits))
	}

	for i, h := range res.Hits {
		if h.Relevance != ranking.Relevance(h.Rank) {
			t.Errorf("hit %s relevance = %v, want %v", h.Content, h.Relevance, ranking.Relevance(h.Rank))
		}

		if i > 0 && h.Rank > res.Hits[i-1].Rank {
			t.Errorf("hits not ordered by rank at %d", i)
		}

		if h.Cluster != nil {
			t.Errorf("hit %s has a cluster without clustering", h.Content)
		}
	}
}

func TestSearch_DocumentsOnlyAndLimit(t *testing.T) {
	mem := indexedStore(t)
	apple := resolve(t, mem, "apple", models.TermType)
	svc := NewSearchService(mem, localOptions(), testLogger())

	res, err := svc.Search(context.Background(), models.SearchRequest{
		Seeds:         []models.Seed{{ID: apple}},
		DocumentsOnly: true,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(res.Hits) != 2 {
		t.Fatalf("document hits = %d, want 2", len(res.Hits))
	}

	for _, h := range res.Hits {
		if h.Type != models.DocumentType {
			t.Errorf("hit %s has type %s", h.Content, h.Type)
		}
	}

	res, err = svc.Search(context.Background(), models.SearchRequest{Seeds: []models.Seed{{ID: apple}}, Limit: 1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(res.Hits) != 1 {
		t.Errorf("limited hits = %d, want 1", len(res.Hits))
	}
}

func TestSearch_SeedsAndConfig(t *testing.T) {
	mem := indexedStore(t)
	apple := resolve(t, mem, "apple", models.TermType)

	tests := []struct {
		name        string
		opts        Options
		req         models.SearchRequest
		wantErr     error
		wantSkipped int
	}{
		{
			name:        "missing seed skipped",
			opts:        localOptions(),
			req:         models.SearchRequest{Seeds: []models.Seed{{ID: 999}, {ID: apple}}},
			wantSkipped: 1,
		},
		{
			name:    "no seed resolved",
			opts:    localOptions(),
			req:     models.SearchRequest{Seeds: []models.Seed{{ID: 999}}},
			wantErr: models.ErrNoSeeds,
		},
		{
			name:    "no seeds",
			opts:    localOptions(),
			wantErr: models.ErrNoSeeds,
		},
		{
			name:    "unknown weighting",
			opts:    localOptions(),
			req:     models.SearchRequest{Seeds: []models.Seed{{ID: apple}}, Weighting: "tfidf"},
			wantErr: models.ErrInvalidConfig,
		},
		{
			name:    "negative energy",
			opts:    localOptions(),
			req:     models.SearchRequest{Seeds: []models.Seed{{ID: apple, Energy: -1}}},
			wantErr: models.ErrInvalidConfig,
		},
		{
			name: "invalid keep fraction",
			opts: func() Options {
				o := localOptions()
				o.Subgraph.Strategy = "pruned"
				o.Subgraph.KeepFraction = 0
				return o
			}(),
			req:     models.SearchRequest{Seeds: []models.Seed{{ID: apple}}},
			wantErr: models.ErrInvalidConfig,
		},
		{
			name:    "composed weighting",
			opts:    DefaultOptions(),
			req:     models.SearchRequest{Seeds: []models.Seed{{ID: apple}}},
			wantErr: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := NewSearchService(mem, tc.opts, testLogger()).Search(context.Background(), tc.req)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}

				return
			}

			if err != nil {
				t.Fatalf("Search: %v", err)
			}

			if len(res.SkippedSeeds) != tc.wantSkipped {
				t.Errorf("skipped = %v, want %d", res.SkippedSeeds, tc.wantSkipped)
			}
		})
	}
}

func TestSearch_Clusters(t *testing.T) {
	mem := indexedStore(t)
	apple := resolve(t, mem, "apple", models.TermType)
	durian := resolve(t, mem, "durian", models.TermType)
	d1 := resolve(t, mem, "d1", models.DocumentType)
	d2 := resolve(t, mem, "d2", models.DocumentType)
	d3 := resolve(t, mem, "d3", models.DocumentType)
	zero := 0.0

	tests := []struct {
		name string
		opts Options
		req  models.SearchRequest
	}{
		{name: "dendrogram cut", opts: localOptions(), req: models.SearchRequest{NumClusters: 2}},
		{name: "weak components", opts: localOptions(), req: models.SearchRequest{Threshold: &zero}},
		{
			name: "average linkage after separation",
			opts: func() Options {
				o := localOptions()
				o.Linkage = "average"
				o.SeparationPasses = 2
				return o
			}(),
			req: models.SearchRequest{NumClusters: 2},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.req.Seeds = []models.Seed{{ID: apple}, {ID: durian}}

			res, err := NewSearchService(mem, tc.opts, testLogger()).Search(context.Background(), tc.req)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}

			if res.NumClusters != 2 || len(res.Clusters) != 7 {
				t.Fatalf("clusters = %d over %d vertices, want 2 over 7", res.NumClusters, len(res.Clusters))
			}

			if res.Clusters[d1] != res.Clusters[d2] || res.Clusters[d1] == res.Clusters[d3] {
				t.Errorf("clusters = %v, want d1 with d2 and apart from d3", res.Clusters)
			}

			if res.Silhouette == nil {
				t.Error("silhouette not reported")
			}

			for _, h := range res.Hits {
				if h.Cluster == nil || *h.Cluster != res.Clusters[h.ID] {
					t.Errorf("hit %s cluster = %v, want %d", h.Content, h.Cluster, res.Clusters[h.ID])
				}
			}
		})
	}
}

func TestCluster(t *testing.T) {
	mem := indexedStore(t)
	apple := resolve(t, mem, "apple", models.TermType)
	durian := resolve(t, mem, "durian", models.TermType)
	svc := NewSearchService(mem, localOptions(), testLogger())
	seeds := []models.Seed{{ID: apple}, {ID: durian}}

	res, err := svc.Cluster(context.Background(), models.ClusterRequest{Seeds: seeds, NumClusters: 2, Linkage: "complete"})
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}

	if len(res.Clusters) != 2 {
		t.Fatalf("clusters = %d, want 2", len(res.Clusters))
	}

	members := 0

	for _, c := range res.Clusters {
		members += len(c.Members)

		for i := 1; i < len(c.Members); i++ {
			if c.Members[i].Rank > c.Members[i-1].Rank {
				t.Errorf("cluster %d members not ordered by rank", c.ID)
			}
		}
	}

	if members != 7 {
		t.Errorf("members = %d, want 7", members)
	}

	for _, req := range []models.ClusterRequest{
		{Seeds: seeds},
		{Seeds: seeds, NumClusters: 2, Linkage: "ward"},
	} {
		if _, err := svc.Cluster(context.Background(), req); !errors.Is(err, models.ErrInvalidConfig) {
			t.Errorf("Cluster(%+v): err = %v, want ErrInvalidConfig", req, err)
		}
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Options) {}},
		{name: "walk similarity", mutate: func(o *Options) { o.SeparationStrategy = SeparationWalk }},
		{name: "unknown similarity", mutate: func(o *Options) { o.SeparationStrategy = "dfs" }, wantErr: true},
		{name: "negative passes", mutate: func(o *Options) { o.SeparationPasses = -1 }, wantErr: true},
		{name: "decay above one", mutate: func(o *Options) { o.SimilarityDecay = 1.5 }, wantErr: true},
		{name: "unknown linkage", mutate: func(o *Options) { o.Linkage = "ward" }, wantErr: true},
		{name: "negative rank iterations", mutate: func(o *Options) { o.Rank.MaxIterations = -1 }, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts := DefaultOptions()
			tc.mutate(&opts)

			err := opts.Validate()
			if tc.wantErr && !errors.Is(err, models.ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}

			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
