package clarify

import (
	"context"
	"testing"

	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/rag/dialog"
	"github.com/faqbridge/faqbridge-backend/internal/rag/session"
)

// prefixTranslator marks translated text so tests can tell which
// language the user saw.
type prefixTranslator struct{}

func (prefixTranslator) Translate(ctx context.Context, text, target string) (string, error) {
	return "[" + target + "] " + text, nil
}

func TestClarificationLoopThreeTurns(t *testing.T) {
	m := NewManager(logger.NewNop(), prefixTranslator{})
	sess := &session.UserSession{SessionID: "s1", DialogState: dialog.StateInitial}

	// Turn 1: the document asks its first question.
	out, ok := m.Begin(context.Background(), sess, "42", []string{"Q1", "Q2"}, false, "ru")
	if !ok || !out.Active {
		t.Fatalf("begin: %+v ok=%v", out, ok)
	}
	if out.Answer != "[ru] Q1" {
		t.Fatalf("first question: got %q", out.Answer)
	}
	if sess.DialogState != dialog.StateAwaitingClarification || sess.Clarification.CurrentIndex != 0 {
		t.Fatalf("session after begin: state=%s index=%d", sess.DialogState, sess.Clarification.CurrentIndex)
	}

	// Turn 2: user answers Q1, gets Q2.
	out, ok = m.Advance(context.Background(), sess, "A1")
	if !ok || !out.Active || out.Answer != "[ru] Q2" {
		t.Fatalf("advance 1: %+v ok=%v", out, ok)
	}
	if sess.Clarification.Answers["Q1"] != "A1" {
		t.Fatalf("answers: %+v", sess.Clarification.Answers)
	}

	// Turn 3: user answers Q2, loop closes with an empty answer.
	out, ok = m.Advance(context.Background(), sess, "A2")
	if !ok || !out.Completed || out.Answer != "" {
		t.Fatalf("advance 2: %+v ok=%v", out, ok)
	}
	if sess.Clarification.Active {
		t.Fatalf("context still active")
	}
	if sess.DialogState != dialog.StateAnswerProvided {
		t.Fatalf("state: want=%s got=%s", dialog.StateAnswerProvided, sess.DialogState)
	}
	if sess.Clarification.Answers["Q2"] != "A2" {
		t.Fatalf("answers: %+v", sess.Clarification.Answers)
	}
	if len(sess.ClarifiedDocIDs) != 1 || sess.ClarifiedDocIDs[0] != "42" {
		t.Fatalf("clarified docs: %+v", sess.ClarifiedDocIDs)
	}
}

func TestBeginRefusesWhileActive(t *testing.T) {
	m := NewManager(logger.NewNop(), prefixTranslator{})
	sess := &session.UserSession{}

	if _, ok := m.Begin(context.Background(), sess, "1", []string{"Q1"}, false, "en"); !ok {
		t.Fatalf("first begin refused")
	}
	if _, ok := m.Begin(context.Background(), sess, "2", []string{"Q1"}, false, "en"); ok {
		t.Fatalf("second begin must be refused while active")
	}
}

func TestBeginSkipsAlreadyClarifiedDoc(t *testing.T) {
	m := NewManager(logger.NewNop(), prefixTranslator{})
	sess := &session.UserSession{ClarifiedDocIDs: []string{"42"}}

	if _, ok := m.Begin(context.Background(), sess, "42", []string{"Q1"}, false, "en"); ok {
		t.Fatalf("clarified doc must not restart the loop")
	}
}

func TestAdvanceWithoutActiveContext(t *testing.T) {
	m := NewManager(logger.NewNop(), prefixTranslator{})
	if _, ok := m.Advance(context.Background(), &session.UserSession{}, "hello"); ok {
		t.Fatalf("advance without context must report not handled")
	}
}

func TestPromptContextOrdersByQuestion(t *testing.T) {
	sess := &session.UserSession{
		Clarification: &session.ClarificationContext{
			Questions: []string{"Q1", "Q2"},
			Answers:   map[string]string{"Q2": "A2", "Q1": "A1"},
		},
	}
	if got := PromptContext(sess); got != "Q1: A1\nQ2: A2" {
		t.Fatalf("prompt context: %q", got)
	}
}
