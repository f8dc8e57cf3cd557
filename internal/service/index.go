package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/corpusgraph/internal/domain"
	"github.com/persistorai/corpusgraph/internal/graph"
	"github.com/persistorai/corpusgraph/internal/metrics"
	"github.com/persistorai/corpusgraph/internal/models"
)

// IndexService writes documents and their terms into a collection through a
// mirrored graph. Calls must be serialized per collection.
type IndexService struct {
	backend domain.Backend
	log     *logrus.Logger
}

// NewIndexService creates an IndexService.
func NewIndexService(backend domain.Backend, log *logrus.Logger) *IndexService {
	return &IndexService{backend: backend, log: log}
}

// IndexDocument indexes a single document and returns its stored id. The
// min_document_frequency filter applies to batches only.
func (s *IndexService) IndexDocument(ctx context.Context, doc models.Document) (int64, error) {
	if err := doc.Validate(); err != nil {
		return 0, err
	}

	var id int64

	err := s.withMirror(ctx, func(g *graph.Graph) error {
		var err error
		id, _, _, err = s.index(ctx, g, doc, nil, 0)

		return err
	})
	if err != nil {
		metrics.DocumentsIndexed.WithLabelValues("failed").Inc()
		return 0, err
	}

	metrics.DocumentsIndexed.WithLabelValues("indexed").Inc()

	return id, nil
}

// IndexDocuments indexes a batch. Invalid documents and documents that
// vanish from storage midway are logged and skipped; any other error aborts
// the batch. Terms occurring in fewer documents of the batch than the
// collection's min_document_frequency are not linked.
func (s *IndexService) IndexDocuments(ctx context.Context, docs []models.Document) (*models.IndexResult, error) {
	defer stage("index")()

	res := &models.IndexResult{}

	valid := make([]models.Document, 0, len(docs))
	for _, doc := range docs {
		if err := doc.Validate(); err != nil {
			s.skip(res, doc.Name, err)
			continue
		}

		valid = append(valid, doc)
	}

	err := s.withMirror(ctx, func(g *graph.Graph) error {
		minDF, err := s.minDocumentFrequency(ctx)
		if err != nil {
			return err
		}

		df := documentFrequencies(valid)

		for _, doc := range valid {
			_, linked, filtered, err := s.index(ctx, g, doc, df, minDF)
			if errors.Is(err, models.ErrNotFound) {
				s.skip(res, doc.Name, err)
				continue
			}

			if err != nil {
				return fmt.Errorf("indexing %q: %w", doc.Name, err)
			}

			res.DocumentsIndexed++
			res.TermsLinked += linked
			res.TermsFiltered += filtered

			metrics.DocumentsIndexed.WithLabelValues("indexed").Inc()

			// Documents share nothing but term vertices, which storage resolves.
			if err := g.Clear(ctx); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		metrics.DocumentsIndexed.WithLabelValues("failed").Inc()
		return res, err
	}

	s.log.WithFields(logrus.Fields{
		"indexed":  res.DocumentsIndexed,
		"skipped":  res.DocumentsSkipped,
		"linked":   res.TermsLinked,
		"filtered": res.TermsFiltered,
	}).Info("documents indexed")

	return res, nil
}

// UnindexDocument removes a document with its edges, and every term that is
// left without any edge. A document missing from storage yields
// models.ErrNotFound.
func (s *IndexService) UnindexDocument(ctx context.Context, name string) error {
	id, err := s.backend.Resolve(ctx, name, models.DocumentType)
	if err != nil {
		return err
	}

	nbrs, err := s.backend.FetchNeighbors(ctx, []int64{id})
	if err != nil {
		return err
	}

	terms := make([]int64, 0, len(nbrs[id]))
	for _, n := range nbrs[id] {
		terms = append(terms, n.Vertex.ID)
	}

	return s.withMirror(ctx, func(g *graph.Graph) error {
		if err := removeByID(ctx, g, id); err != nil {
			return err
		}

		left, err := s.backend.FetchNeighbors(ctx, terms)
		if err != nil {
			return err
		}

		orphans := 0

		for _, t := range terms {
			if len(left[t]) > 0 {
				continue
			}

			if err := removeByID(ctx, g, t); err != nil {
				return err
			}

			orphans++
		}

		s.log.WithFields(logrus.Fields{
			"document": name,
			"terms":    len(terms),
			"orphans":  orphans,
		}).Info("document unindexed")

		return nil
	})
}

// withMirror runs fn on a fresh graph that mirrors every mutation to the
// backend. Mirroring is switched off afterwards, which recomputes degrees.
func (s *IndexService) withMirror(ctx context.Context, fn func(g *graph.Graph) error) (err error) {
	g := graph.New(graph.WithBackend(s.backend), graph.WithLogger(s.log))

	if err := g.SetMirror(ctx, true); err != nil {
		return err
	}

	defer func() {
		if offErr := g.SetMirror(ctx, false); offErr != nil && err == nil {
			err = offErr
		}
	}()

	return fn(g)
}

// index writes one document. An already indexed document with the same name
// loses its edges first, so re-indexing replaces rather than accumulates.
func (s *IndexService) index(
	ctx context.Context, g *graph.Graph, doc models.Document, df map[string]int, minDF int,
) (id int64, linked, filtered int, err error) {
	var meta map[string]string
	if doc.Body != "" {
		meta = map[string]string{models.MetaBody: doc.Body}
	}

	h, err := g.AddVertex(ctx, models.VertexProperties{Type: models.DocumentType, Content: doc.Name, Meta: meta})
	if err != nil {
		return 0, 0, 0, err
	}

	// The vertex may have been resolved to a stored one.
	if err := g.ClearVertex(ctx, h); err != nil {
		return 0, 0, 0, err
	}

	if doc.Body != "" {
		if err := g.SetVertexMeta(ctx, h, models.MetaBody, doc.Body); err != nil {
			return 0, 0, 0, err
		}
	}

	id = g.Vertex(h).ID

	for _, term := range slices.Sorted(maps.Keys(doc.Terms)) {
		count := doc.Terms[term]
		if count == 0 {
			continue
		}

		if df[term] < minDF {
			filtered++
			continue
		}

		if err := g.AddDocTermEdge(ctx, id, term, count); err != nil {
			return id, linked, filtered, err
		}

		linked++
	}

	s.log.WithFields(logrus.Fields{
		"document": doc.Name,
		"id":       id,
		"linked":   linked,
		"filtered": filtered,
	}).Debug("index.document")

	return id, linked, filtered, nil
}

func (s *IndexService) skip(res *models.IndexResult, name string, err error) {
	s.log.WithError(err).WithField("document", name).Warn("skipping document")

	res.DocumentsSkipped++
	res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", name, err))

	metrics.DocumentsIndexed.WithLabelValues("skipped").Inc()
}

// minDocumentFrequency reads the collection's term filter; unset means 1.
func (s *IndexService) minDocumentFrequency(ctx context.Context) (int, error) {
	raw, err := s.backend.GetMeta(ctx, models.MetaMinDocFreq, "1")
	if err != nil {
		return 0, err
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, models.InvalidConfigf("%s must be a non-negative integer, got %q", models.MetaMinDocFreq, raw)
	}

	return n, nil
}

// documentFrequencies counts the documents each term occurs in.
func documentFrequencies(docs []models.Document) map[string]int {
	df := make(map[string]int)

	for _, doc := range docs {
		for term, count := range doc.Terms {
			if count > 0 {
				df[term]++
			}
		}
	}

	return df
}

func removeByID(ctx context.Context, g *graph.Graph, id int64) error {
	h, err := g.Fetch(ctx, id)
	if err != nil {
		return err
	}

	return g.RemoveVertex(ctx, h)
}
