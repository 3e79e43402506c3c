package generate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/platform/models"
)

type scriptedLLM struct {
	replies []string
	errs    []error
	calls   int
	prompts []string
}

func (f *scriptedLLM) Chat(ctx context.Context, messages []models.ChatMessage, opts ...models.ChatOption) (string, error) {
	i := f.calls
	f.calls++
	for _, m := range messages {
		f.prompts = append(f.prompts, m.Content)
	}
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var reply string
	if i < len(f.replies) {
		reply = f.replies[i]
	}
	return reply, err
}

func TestEscalationMessagePassesThroughVerbatim(t *testing.T) {
	llm := &scriptedLLM{}
	g := NewGenerator(logger.NewNop(), llm)

	got := g.Generate(context.Background(), Input{
		Query:             "any",
		EscalationMessage: "Перевожу на оператора.",
	})
	if got.Answer != "Перевожу на оператора." || got.Degraded {
		t.Fatalf("escalation: %+v", got)
	}
	if llm.calls != 0 {
		t.Fatalf("llm must not be called: %d", llm.calls)
	}
}

func TestGeneratePromptContainsDocsAndQuery(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"Use the settings page."}}
	g := NewGenerator(logger.NewNop(), llm)

	got := g.Generate(context.Background(), Input{
		Query:                "how to reset password",
		Docs:                 []string{"doc one", "doc two"},
		ClarificationAnswers: "Which account?: work",
	})
	if got.Answer != "Use the settings page." {
		t.Fatalf("answer: %+v", got)
	}
	prompt := strings.Join(llm.prompts, "\n")
	for _, want := range []string{"doc one\n\ndoc two", "Question: how to reset password", "Which account?: work"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestGenerateRetriesOnceOnTimeout(t *testing.T) {
	llm := &scriptedLLM{
		errs:    []error{errors.New("request timeout"), nil},
		replies: []string{"", "recovered"},
	}
	g := NewGenerator(logger.NewNop(), llm)

	got := g.Generate(context.Background(), Input{Query: "q", Docs: []string{"d"}})
	if got.Answer != "recovered" || llm.calls != 2 {
		t.Fatalf("retry: %+v calls=%d", got, llm.calls)
	}
}

func TestGenerateDegradesOnPersistentFailure(t *testing.T) {
	llm := &scriptedLLM{errs: []error{errors.New("connection refused"), errors.New("connection refused")}}
	g := NewGenerator(logger.NewNop(), llm)

	got := g.Generate(context.Background(), Input{Query: "q"})
	if !got.Degraded || got.Answer != DegradedAnswer {
		t.Fatalf("degrade: %+v", got)
	}
}

func TestGenerateNoRetryOnNonTransientError(t *testing.T) {
	llm := &scriptedLLM{errs: []error{errors.New("invalid api key")}}
	g := NewGenerator(logger.NewNop(), llm)

	got := g.Generate(context.Background(), Input{Query: "q"})
	if llm.calls != 1 || !got.Degraded {
		t.Fatalf("non-transient: %+v calls=%d", got, llm.calls)
	}
}

func TestEscapeBraces(t *testing.T) {
	if got := EscapeBraces("use {name} and {id}"); got != "use {{name}} and {{id}}" {
		t.Fatalf("escape: %q", got)
	}
}

func TestCustomSystemPromptEscaped(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"ok"}}
	g := NewGenerator(logger.NewNop(), llm)

	g.Generate(context.Background(), Input{Query: "q", SystemPrompt: "persona {x}"})
	if !strings.Contains(llm.prompts[0], "persona {{x}}") {
		t.Fatalf("system prompt not escaped: %q", llm.prompts[0])
	}
}
