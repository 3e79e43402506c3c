package multihop

import (
	"context"
	"strings"
	"testing"

	"gorm.io/datatypes"

	"github.com/faqbridge/faqbridge-backend/internal/data/repos/documents"
	"github.com/faqbridge/faqbridge-backend/internal/domain/kb"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/rag/retrieval"
)

type fakeDocs struct {
	rows     []*kb.Document
	listErr  error
	getCalls int
}

func (f *fakeDocs) Upsert(ctx context.Context, rows []*kb.Document) error { return nil }

func (f *fakeDocs) GetByIDs(ctx context.Context, ids []int64) ([]*kb.Document, error) {
	f.getCalls++
	byID := map[int64]*kb.Document{}
	for _, row := range f.rows {
		byID[row.ID] = row
	}
	var out []*kb.Document
	for _, id := range ids {
		if row, ok := byID[id]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeDocs) LexicalSearch(ctx context.Context, q documents.LexicalQuery) ([]documents.LexicalHit, error) {
	return nil, nil
}

func (f *fakeDocs) ListAll(ctx context.Context) ([]*kb.Document, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.rows, nil
}

func (f *fakeDocs) Count(ctx context.Context) (int64, error) { return int64(len(f.rows)), nil }

func doc(id int64, content, category string) *kb.Document {
	return &kb.Document{
		ID:       id,
		Content:  content,
		Metadata: datatypes.JSON([]byte(`{"category": "` + category + `"}`)),
	}
}

func TestClassifyComplexity(t *testing.T) {
	cases := []struct {
		question string
		want     Complexity
	}{
		{"Как сбросить пароль?", ComplexitySimple},
		{"Что делать, если карта не работает?", ComplexityMedium},
		{"Как оплатить заказ и что делать, если карта не работает?", ComplexityComplex},
	}
	for _, tc := range cases {
		if got := ClassifyComplexity(tc.question); got != tc.want {
			t.Fatalf("%q: want=%s got=%s (score=%v)", tc.question, tc.want, got, ScoreComplexity(tc.question))
		}
	}
}

func TestComplexityHops(t *testing.T) {
	if ComplexitySimple.Hops() != 1 || ComplexityMedium.Hops() != 2 || ComplexityComplex.Hops() != 3 {
		t.Fatalf("hops mapping broken")
	}
}

func TestResolveSimpleSkipsTraversal(t *testing.T) {
	docs := &fakeDocs{rows: []*kb.Document{doc(1, "answer one", "pay"), doc(2, "answer two", "pay")}}
	r := NewResolver(logger.NewNop(), docs, 0)

	got := r.Resolve(context.Background(), "Как сбросить пароль?", []retrieval.Doc{{ID: "1", Content: "answer one"}})
	if got.Complexity != ComplexitySimple || got.Hops != 1 {
		t.Fatalf("complexity: %+v", got)
	}
	if got.Context != "answer one" || len(got.DocIDs) != 1 {
		t.Fatalf("context: %+v", got)
	}
	if docs.getCalls != 0 {
		t.Fatalf("traversal ran for a simple question")
	}
}

func TestResolvePullsRelatedDocs(t *testing.T) {
	docs := &fakeDocs{rows: []*kb.Document{
		doc(1, "card payments", "payments"),
		doc(2, "refund rules", "payments"),
		doc(3, "delivery times", "delivery"),
	}}
	r := NewResolver(logger.NewNop(), docs, 0)

	got := r.Resolve(context.Background(), "Что делать, если карта не работает?", []retrieval.Doc{{ID: "1", Content: "card payments"}})
	if got.Complexity != ComplexityMedium {
		t.Fatalf("complexity: %+v", got)
	}
	if len(got.DocIDs) != 2 || got.DocIDs[1] != "2" {
		t.Fatalf("related ids: %+v", got.DocIDs)
	}
	if !strings.Contains(got.Context, "refund rules") {
		t.Fatalf("related content missing: %q", got.Context)
	}
	if strings.Contains(got.Context, "delivery times") {
		t.Fatalf("unrelated category pulled in: %q", got.Context)
	}
}

func TestResolveBudgetTruncates(t *testing.T) {
	long := strings.Repeat("x", 600)
	docs := &fakeDocs{}
	r := NewResolver(logger.NewNop(), docs, 100)

	got := r.Resolve(context.Background(), "Как сбросить пароль?", []retrieval.Doc{
		{ID: "1", Content: long},
		{ID: "2", Content: long},
	})
	if !got.Truncated {
		t.Fatalf("expected truncation: %+v", got)
	}
	if len([]rune(got.Context)) > 100*4 {
		t.Fatalf("context over budget: %d runes", len([]rune(got.Context)))
	}
}

func TestResolveGraphFailureDegrades(t *testing.T) {
	docs := &fakeDocs{listErr: context.DeadlineExceeded}
	r := NewResolver(logger.NewNop(), docs, 0)

	got := r.Resolve(context.Background(), "Что делать, если карта не работает?", []retrieval.Doc{{ID: "1", Content: "card payments"}})
	if got.Context != "card payments" || len(got.DocIDs) != 1 {
		t.Fatalf("degrade: %+v", got)
	}
}
