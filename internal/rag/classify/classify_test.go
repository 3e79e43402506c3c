package classify

import (
	"context"
	"errors"
	"testing"

	"gorm.io/datatypes"

	"github.com/faqbridge/faqbridge-backend/internal/data/repos/documents"
	"github.com/faqbridge/faqbridge-backend/internal/domain/kb"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/platform/models"
)

type fakeLLM struct {
	reply string
	err   error
}

func (f *fakeLLM) Chat(ctx context.Context, messages []models.ChatMessage, opts ...models.ChatOption) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeDocs struct {
	rows []*kb.Document
}

func (f *fakeDocs) Upsert(ctx context.Context, rows []*kb.Document) error { return nil }
func (f *fakeDocs) GetByIDs(ctx context.Context, ids []int64) ([]*kb.Document, error) {
	return nil, nil
}
func (f *fakeDocs) LexicalSearch(ctx context.Context, q documents.LexicalQuery) ([]documents.LexicalHit, error) {
	return nil, nil
}
func (f *fakeDocs) ListAll(ctx context.Context) ([]*kb.Document, error) { return f.rows, nil }
func (f *fakeDocs) Count(ctx context.Context) (int64, error)            { return int64(len(f.rows)), nil }

func taggedDoc(id int64, category, intent string) *kb.Document {
	return &kb.Document{
		ID:       id,
		Content:  "x",
		Metadata: datatypes.JSON([]byte(`{"category": "` + category + `", "intent": "` + intent + `"}`)),
	}
}

func TestClassifyPicksKnownCategory(t *testing.T) {
	docs := &fakeDocs{rows: []*kb.Document{
		taggedDoc(1, "payments", "refund"),
		taggedDoc(2, "delivery", "tracking"),
	}}
	llm := &fakeLLM{reply: `{"category": "payments", "intent": "refund"}`}
	c := NewClassifier(logger.NewNop(), llm, docs)

	got := c.Classify(context.Background(), "Когда вернут деньги?")
	if got.Category != "payments" || got.Intent != "refund" {
		t.Fatalf("label: %+v", got)
	}
}

func TestClassifyRejectsInventedCategory(t *testing.T) {
	docs := &fakeDocs{rows: []*kb.Document{taggedDoc(1, "payments", "refund")}}
	llm := &fakeLLM{reply: `{"category": "weather", "intent": "forecast"}`}
	c := NewClassifier(logger.NewNop(), llm, docs)

	got := c.Classify(context.Background(), "anything")
	if got.Category != "" || got.Intent != "" {
		t.Fatalf("invented label accepted: %+v", got)
	}
}

func TestClassifyDegradesOnModelError(t *testing.T) {
	docs := &fakeDocs{rows: []*kb.Document{taggedDoc(1, "payments", "refund")}}
	c := NewClassifier(logger.NewNop(), &fakeLLM{err: errors.New("model down")}, docs)

	if got := c.Classify(context.Background(), "anything"); got != (Label{}) {
		t.Fatalf("degrade: %+v", got)
	}
}

func TestClassifyEmptyTaxonomySkipsModel(t *testing.T) {
	c := NewClassifier(logger.NewNop(), &fakeLLM{reply: `{"category": "x"}`}, &fakeDocs{})

	if got := c.Classify(context.Background(), "anything"); got != (Label{}) {
		t.Fatalf("empty taxonomy: %+v", got)
	}
}

func TestSortedKeysStable(t *testing.T) {
	got := sortedKeys(map[string]bool{"payments": true, "account": true, "delivery": true})
	want := []string{"account", "delivery", "payments"}
	if len(got) != len(want) {
		t.Fatalf("want=%v got=%v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("want=%v got=%v", want, got)
		}
	}
}
