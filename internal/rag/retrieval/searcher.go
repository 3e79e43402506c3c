package retrieval

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/faqbridge/faqbridge-backend/internal/data/repos/documents"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/platform/models"
	"github.com/faqbridge/faqbridge-backend/internal/platform/qdrant"
)

const DefaultCollection = "kb_documents"

type SearchOptions struct {
	Category string
	Language string
	TopK     int
	Hybrid   bool
	// Vector reuses an embedding computed upstream. Empty means the
	// searcher embeds the query itself.
	Vector []float32
}

// Searcher runs the retrieval legs. Each leg over-fetches at twice the
// requested depth so fusion has enough candidates to reorder.
type Searcher struct {
	log      *logger.Logger
	embedder models.Embedder
	vectors  qdrant.Store
	docs     documents.DocumentRepo

	collection string
	topK       int
}

func NewSearcher(log *logger.Logger, embedder models.Embedder, vectors qdrant.Store, docs documents.DocumentRepo, collection string, topK int) *Searcher {
	if collection == "" {
		collection = DefaultCollection
	}
	if topK <= 0 {
		topK = 10
	}
	return &Searcher{
		log:        log.With("component", "Searcher"),
		embedder:   embedder,
		vectors:    vectors,
		docs:       docs,
		collection: collection,
		topK:       topK,
	}
}

func (s *Searcher) Collection() string { return s.collection }

// Retrieve runs the dense leg, and the lexical leg when Hybrid is set,
// in parallel. A single failed leg degrades to the surviving one; both
// failing is an error.
func (s *Searcher) Retrieve(ctx context.Context, query string, opts SearchOptions) ([][]Doc, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if opts.TopK <= 0 {
		opts.TopK = s.topK
	}

	var (
		wg                   sync.WaitGroup
		dense, lexical       []Doc
		denseErr, lexicalErr error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		dense, denseErr = s.DenseSearch(ctx, query, opts)
	}()

	if opts.Hybrid {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lexical, lexicalErr = s.LexicalLeg(ctx, query, opts)
		}()
	}
	wg.Wait()

	var lists [][]Doc
	if denseErr != nil {
		s.log.Warn("dense leg failed", "error", denseErr)
	} else if len(dense) > 0 {
		lists = append(lists, dense)
	}
	if opts.Hybrid {
		if lexicalErr != nil {
			s.log.Warn("lexical leg failed", "error", lexicalErr)
		} else if len(lexical) > 0 {
			lists = append(lists, lexical)
		}
	}

	if denseErr != nil && (!opts.Hybrid || lexicalErr != nil) {
		return nil, denseErr
	}
	return lists, nil
}

// DenseSearch embeds the query (unless a vector is supplied), searches
// the vector store, and hydrates content and metadata from the
// document store in hit order.
func (s *Searcher) DenseSearch(ctx context.Context, query string, opts SearchOptions) ([]Doc, error) {
	vector := opts.Vector
	if len(vector) == 0 {
		v, err := s.embedder.Embed(ctx, query, true)
		if err != nil {
			return nil, err
		}
		vector = v
	}

	q := qdrant.Query{Vector: vector, TopK: 2 * opts.TopK}
	if opts.Category != "" {
		q.Filter = map[string]any{"category": map[string]any{"$eq": opts.Category}}
	}
	hits, err := s.vectors.Search(ctx, s.collection, q)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(hits))
	scores := make(map[int64]float64, len(hits))
	for _, hit := range hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			s.log.Warn("skipping non-numeric point id", "id", hit.ID)
			continue
		}
		ids = append(ids, id)
		scores[id] = hit.Score
	}

	rows, err := s.docs.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]Doc, 0, len(rows))
	for _, row := range rows {
		out = append(out, Doc{
			ID:       strconv.FormatInt(row.ID, 10),
			Content:  row.Content,
			Metadata: row.Meta(),
			Score:    scores[row.ID],
		})
	}
	return out, nil
}

// LexicalLeg runs the Postgres full-text leg.
func (s *Searcher) LexicalLeg(ctx context.Context, query string, opts SearchOptions) ([]Doc, error) {
	hits, err := s.docs.LexicalSearch(ctx, documents.LexicalQuery{
		Query:    query,
		Language: opts.Language,
		Category: opts.Category,
		Limit:    2 * opts.TopK,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Doc, 0, len(hits))
	for _, hit := range hits {
		if hit.Doc == nil {
			continue
		}
		out = append(out, Doc{
			ID:       strconv.FormatInt(hit.Doc.ID, 10),
			Content:  hit.Doc.Content,
			Metadata: hit.Doc.Meta(),
			Score:    hit.Rank,
		})
	}
	return out, nil
}
