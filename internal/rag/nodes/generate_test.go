package nodes

import (
	"context"
	"strings"
	"testing"

	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/platform/models"
	"github.com/faqbridge/faqbridge-backend/internal/rag/generate"
	"github.com/faqbridge/faqbridge-backend/internal/rag/state"
)

type promptLLM struct {
	reply   string
	prompts []string
}

func (f *promptLLM) Chat(ctx context.Context, messages []models.ChatMessage, opts ...models.ChatOption) (string, error) {
	for _, m := range messages {
		f.prompts = append(f.prompts, m.Content)
	}
	return f.reply, nil
}

func TestGenerateAsksRewrittenQuery(t *testing.T) {
	llm := &promptLLM{reply: "ok"}
	log := logger.NewNop()
	n := NewGenerate(Deps{
		Log:       log,
		Generator: generate.NewGenerator(log, llm),
	})

	_, err := n.Run(context.Background(), state.Bag{
		state.KeyQuestion:        "Какой лимит перевода?",
		state.KeyTranslatedQuery: "What is the transfer limit?",
		state.KeyDocs:            []string{"Limits are listed in the tariff."},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	prompt := strings.Join(llm.prompts, "\n")
	if !strings.Contains(prompt, "Question: What is the transfer limit?") {
		t.Fatalf("prompt does not use the rewritten query:\n%s", prompt)
	}
	if strings.Contains(prompt, "Question: Какой лимит перевода?") {
		t.Fatalf("prompt uses the raw question:\n%s", prompt)
	}
}

func TestGenerateContractAdmitsRewriteKeys(t *testing.T) {
	c := NewGenerate(Deps{}).Contract()
	for _, key := range []string{state.KeyTranslatedQuery, state.KeyAggregatedQuery} {
		if !c.AcceptsInput(key) {
			t.Fatalf("contract must admit %q", key)
		}
	}
}
