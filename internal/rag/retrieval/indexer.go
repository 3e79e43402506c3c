package retrieval

import (
	"context"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/faqbridge/faqbridge-backend/internal/data/repos/documents"
	"github.com/faqbridge/faqbridge-backend/internal/domain/kb"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/platform/models"
	"github.com/faqbridge/faqbridge-backend/internal/platform/qdrant"
)

const indexBatchSize = 64

// Indexer pushes knowledge-base documents into the vector collection.
// Run at startup and after document upserts so dense search stays in
// step with the document store.
type Indexer struct {
	log      *logger.Logger
	embedder models.Embedder
	vectors  qdrant.Store
	docs     documents.DocumentRepo

	collection  string
	concurrency int
}

func NewIndexer(log *logger.Logger, embedder models.Embedder, vectors qdrant.Store, docs documents.DocumentRepo, collection string, concurrency int) *Indexer {
	if collection == "" {
		collection = DefaultCollection
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Indexer{
		log:         log.With("component", "Indexer"),
		embedder:    embedder,
		vectors:     vectors,
		docs:        docs,
		collection:  collection,
		concurrency: concurrency,
	}
}

// IndexAll embeds every stored document passage-side and upserts the
// vectors in batches. Returns the number of documents indexed.
func (ix *Indexer) IndexAll(ctx context.Context) (int, error) {
	rows, err := ix.docs.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if err := ix.vectors.EnsureCollection(ctx, ix.collection, ix.embedder.Dim()); err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.concurrency)
	for start := 0; start < len(rows); start += indexBatchSize {
		end := start + indexBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]
		g.Go(func() error {
			return ix.indexBatch(gctx, batch)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	ix.log.Info("knowledge base indexed", "documents", len(rows), "collection", ix.collection)
	return len(rows), nil
}

func (ix *Indexer) indexBatch(ctx context.Context, batch []*kb.Document) error {
	texts := make([]string, len(batch))
	for i, doc := range batch {
		texts[i] = doc.Content
	}
	vectors, err := ix.embedder.EmbedBatch(ctx, texts, false)
	if err != nil {
		return err
	}

	points := make([]qdrant.Point, 0, len(batch))
	for i, doc := range batch {
		if i >= len(vectors) || len(vectors[i]) == 0 {
			continue
		}
		payload := map[string]any{}
		if category := doc.Category(); category != "" {
			payload["category"] = category
		}
		if intent := doc.Intent(); intent != "" {
			payload["intent"] = intent
		}
		points = append(points, qdrant.Point{
			ID:      strconv.FormatInt(doc.ID, 10),
			Vector:  vectors[i],
			Payload: payload,
		})
	}
	return ix.vectors.Upsert(ctx, ix.collection, points)
}
