package retrieval

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/faqbridge/faqbridge-backend/internal/domain/kb"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/platform/qdrant"
)

type recordingVectors struct {
	fakeVectors

	mu     sync.Mutex
	points int
}

func (f *recordingVectors) Upsert(ctx context.Context, collection string, points []qdrant.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points += len(points)
	return nil
}

func TestIndexAllReturnsDocumentCount(t *testing.T) {
	docs := &fakeDocs{rows: map[int64]*kb.Document{}}
	for i := int64(1); i <= 150; i++ {
		docs.rows[i] = &kb.Document{ID: i, Content: "doc " + strconv.FormatInt(i, 10)}
	}
	vectors := &recordingVectors{}
	ix := NewIndexer(logger.NewNop(), &constEmbedder{dim: 4}, vectors, docs, "", 2)

	count, err := ix.IndexAll(context.Background())
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if count != 150 {
		t.Fatalf("count: want=150 got=%d", count)
	}
	if vectors.points != 150 {
		t.Fatalf("upserted points: want=150 got=%d", vectors.points)
	}
}

func TestIndexAllEmptyStore(t *testing.T) {
	vectors := &recordingVectors{}
	ix := NewIndexer(logger.NewNop(), &constEmbedder{dim: 4}, vectors, &fakeDocs{}, "", 2)

	count, err := ix.IndexAll(context.Background())
	if err != nil || count != 0 {
		t.Fatalf("empty store: count=%d err=%v", count, err)
	}
	if vectors.points != 0 {
		t.Fatalf("upsert on empty store: %d", vectors.points)
	}
}
