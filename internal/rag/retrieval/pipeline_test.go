package retrieval

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/faqbridge/faqbridge-backend/internal/data/repos/documents"
	"github.com/faqbridge/faqbridge-backend/internal/domain/kb"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/platform/models"
	"github.com/faqbridge/faqbridge-backend/internal/platform/qdrant"
)

type fakeVectors struct {
	hits      []qdrant.ScoredPoint
	searchErr error
	searches  int
}

func (f *fakeVectors) EnsureCollection(ctx context.Context, collection string, dim int) error {
	return nil
}

func (f *fakeVectors) Upsert(ctx context.Context, collection string, points []qdrant.Point) error {
	return nil
}

func (f *fakeVectors) Search(ctx context.Context, collection string, q qdrant.Query) ([]qdrant.ScoredPoint, error) {
	f.searches++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

func (f *fakeVectors) DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
	return nil
}

func (f *fakeVectors) Collections(ctx context.Context) ([]string, error) { return nil, nil }
func (f *fakeVectors) Ping(ctx context.Context) error                    { return nil }

type fakeDocs struct {
	rows       map[int64]*kb.Document
	lexical    []documents.LexicalHit
	lexicalErr error
}

func (f *fakeDocs) Upsert(ctx context.Context, rows []*kb.Document) error { return nil }

func (f *fakeDocs) GetByIDs(ctx context.Context, ids []int64) ([]*kb.Document, error) {
	var out []*kb.Document
	for _, id := range ids {
		if doc, ok := f.rows[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (f *fakeDocs) LexicalSearch(ctx context.Context, q documents.LexicalQuery) ([]documents.LexicalHit, error) {
	if f.lexicalErr != nil {
		return nil, f.lexicalErr
	}
	return f.lexical, nil
}

func (f *fakeDocs) ListAll(ctx context.Context) ([]*kb.Document, error) {
	var out []*kb.Document
	for _, doc := range f.rows {
		out = append(out, doc)
	}
	return out, nil
}

func (f *fakeDocs) Count(ctx context.Context) (int64, error) { return int64(len(f.rows)), nil }

type constEmbedder struct {
	dim   int
	calls int
}

func (f *constEmbedder) Dim() int { return f.dim }

func (f *constEmbedder) Embed(ctx context.Context, text string, isQuery bool) ([]float32, error) {
	f.calls++
	return make([]float32, f.dim), nil
}

func (f *constEmbedder) EmbedBatch(ctx context.Context, texts []string, isQuery bool) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}

type fakeCrossEncoder struct {
	scores map[string]float64
	err    error
}

func (f *fakeCrossEncoder) Rank(ctx context.Context, query string, docs []string) ([]models.RankedDoc, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.RankedDoc, 0, len(docs))
	for i, doc := range docs {
		out = append(out, models.RankedDoc{Index: i, Score: f.scores[doc], Doc: doc})
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Score > out[i].Score {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func kbDoc(id int64, content string) *kb.Document {
	return &kb.Document{ID: id, Content: content}
}

func hit(id int64, score float64) qdrant.ScoredPoint {
	return qdrant.ScoredPoint{ID: strconv.FormatInt(id, 10), Score: score}
}

func TestProbeShortCircuit(t *testing.T) {
	vectors := &fakeVectors{hits: []qdrant.ScoredPoint{hit(1, 0.91), hit(2, 0.55)}}
	docs := &fakeDocs{rows: map[int64]*kb.Document{
		1: kbDoc(1, "reset via settings"),
		2: kbDoc(2, "contact support"),
	}}
	searcher := NewSearcher(logger.NewNop(), &constEmbedder{dim: 4}, vectors, docs, "", 5)
	p := NewPipeline(logger.NewNop(), searcher, nil, nil, PipelineConfig{ConfidenceThreshold: 0.75, Hybrid: true})

	got, err := p.Retrieve(context.Background(), "how to reset password", nil, SearchOptions{})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if !got.ShortCircuited {
		t.Fatalf("expected short circuit: %+v", got)
	}
	if got.Confidence != 0.91 || got.Docs[0].Content != "reset via settings" {
		t.Fatalf("probe result: %+v", got)
	}
	if vectors.searches != 1 {
		t.Fatalf("searches: want=1 got=%d", vectors.searches)
	}
}

func TestWeakProbeFallsThroughToFusion(t *testing.T) {
	vectors := &fakeVectors{hits: []qdrant.ScoredPoint{hit(1, 0.40), hit(2, 0.35)}}
	docs := &fakeDocs{
		rows: map[int64]*kb.Document{
			1: kbDoc(1, "reset via settings"),
			2: kbDoc(2, "contact support"),
		},
		lexical: []documents.LexicalHit{
			{Doc: kbDoc(2, "contact support"), Rank: 0.8},
			{Doc: kbDoc(1, "reset via settings"), Rank: 0.5},
		},
	}
	searcher := NewSearcher(logger.NewNop(), &constEmbedder{dim: 4}, vectors, docs, "", 5)
	p := NewPipeline(logger.NewNop(), searcher, nil, nil, PipelineConfig{ConfidenceThreshold: 0.75, Hybrid: true})

	got, err := p.Retrieve(context.Background(), "reset password", nil, SearchOptions{})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if got.ShortCircuited {
		t.Fatalf("short circuit on weak probe: %+v", got)
	}
	if len(got.Docs) != 2 {
		t.Fatalf("docs: want=2 got=%d", len(got.Docs))
	}
	if got.Confidence <= 0 || got.Confidence > 1 {
		t.Fatalf("confidence out of range: %v", got.Confidence)
	}
	for i := 1; i < len(got.Scores); i++ {
		if got.Scores[i] > got.Scores[i-1] {
			t.Fatalf("scores not non-increasing: %v", got.Scores)
		}
	}
}

func TestRerankerReorders(t *testing.T) {
	vectors := &fakeVectors{hits: []qdrant.ScoredPoint{hit(1, 0.40), hit(2, 0.35)}}
	docs := &fakeDocs{rows: map[int64]*kb.Document{
		1: kbDoc(1, "reset via settings"),
		2: kbDoc(2, "contact support"),
	}}
	reranker := &fakeCrossEncoder{scores: map[string]float64{
		"reset via settings": 0.2,
		"contact support":    0.9,
	}}
	searcher := NewSearcher(logger.NewNop(), &constEmbedder{dim: 4}, vectors, docs, "", 5)
	p := NewPipeline(logger.NewNop(), searcher, nil, reranker, PipelineConfig{ConfidenceThreshold: 0.75})

	got, err := p.Retrieve(context.Background(), "I need a human", nil, SearchOptions{})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if got.Docs[0].Content != "contact support" || got.Confidence != 0.9 {
		t.Fatalf("rerank: %+v", got)
	}
}

func TestDenseLegFailureDegradesToLexical(t *testing.T) {
	vectors := &fakeVectors{searchErr: errors.New("qdrant down")}
	docs := &fakeDocs{
		rows: map[int64]*kb.Document{},
		lexical: []documents.LexicalHit{
			{Doc: kbDoc(2, "contact support"), Rank: 0.8},
		},
	}
	searcher := NewSearcher(logger.NewNop(), &constEmbedder{dim: 4}, vectors, docs, "", 5)
	p := NewPipeline(logger.NewNop(), searcher, nil, nil, PipelineConfig{Hybrid: true})

	got, err := p.Retrieve(context.Background(), "contact support", nil, SearchOptions{})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(got.Docs) != 1 || got.Docs[0].Content != "contact support" {
		t.Fatalf("degraded retrieval: %+v", got)
	}
}

func TestBothLegsFailingErrors(t *testing.T) {
	vectors := &fakeVectors{searchErr: errors.New("qdrant down")}
	docs := &fakeDocs{lexicalErr: errors.New("postgres down")}
	searcher := NewSearcher(logger.NewNop(), &constEmbedder{dim: 4}, vectors, docs, "", 5)
	p := NewPipeline(logger.NewNop(), searcher, nil, nil, PipelineConfig{Hybrid: true})

	if _, err := p.Retrieve(context.Background(), "anything", nil, SearchOptions{}); err == nil {
		t.Fatalf("want error when every leg fails")
	}
}

func TestDenseSearchPreservesHitOrder(t *testing.T) {
	vectors := &fakeVectors{hits: []qdrant.ScoredPoint{hit(2, 0.9), hit(1, 0.8)}}
	docs := &fakeDocs{rows: map[int64]*kb.Document{
		1: kbDoc(1, "first"),
		2: kbDoc(2, "second"),
	}}
	searcher := NewSearcher(logger.NewNop(), &constEmbedder{dim: 4}, vectors, docs, "", 5)

	got, err := searcher.DenseSearch(context.Background(), "q", SearchOptions{TopK: 5})
	if err != nil {
		t.Fatalf("dense search: %v", err)
	}
	if got[0].ID != "2" || got[1].ID != "1" {
		t.Fatalf("hit order lost: %+v", got)
	}
	if got[0].Score != 0.9 {
		t.Fatalf("score: want=0.9 got=%v", got[0].Score)
	}
}
