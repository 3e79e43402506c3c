// Package clarify runs the clarifying-question sub-dialogue a
// knowledge-base document can request before its answer is generated.
package clarify

import (
	"context"
	"strings"

	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/platform/models"
	"github.com/faqbridge/faqbridge-backend/internal/rag/dialog"
	"github.com/faqbridge/faqbridge-backend/internal/rag/session"
)

// Outcome is one clarification turn. While Active, Answer carries the
// question to send and the pipeline skips generation. Completed marks
// the turn that closed the loop; the collected answers then feed the
// generation prompt.
type Outcome struct {
	Active    bool
	Completed bool
	Answer    string
	State     string
}

// Manager mutates the session's clarification context. Questions are
// stored in their document language and translated per turn so the
// stored answers stay keyed by the canonical question text.
type Manager struct {
	log        *logger.Logger
	translator models.Translator
}

func NewManager(log *logger.Logger, translator models.Translator) *Manager {
	return &Manager{
		log:        log.With("component", "ClarificationManager"),
		translator: translator,
	}
}

// Begin starts a sub-dialogue for a document carrying clarifying
// questions. Returns false when the session already has an active
// context or the document has nothing to ask.
func (m *Manager) Begin(ctx context.Context, sess *session.UserSession, docID string, questions []string, requiresHandoff bool, language string) (Outcome, bool) {
	if sess == nil || len(questions) == 0 {
		return Outcome{}, false
	}
	if sess.Clarification != nil && sess.Clarification.Active {
		return Outcome{}, false
	}
	if alreadyClarified(sess, docID) {
		return Outcome{}, false
	}

	sess.Clarification = &session.ClarificationContext{
		Active:          true,
		Questions:       questions,
		CurrentIndex:    0,
		Answers:         map[string]string{},
		OriginalDocID:   docID,
		RequiresHandoff: requiresHandoff,
		TargetLanguage:  language,
	}
	sess.DialogState = dialog.StateAwaitingClarification

	return Outcome{
		Active: true,
		Answer: m.localize(ctx, questions[0], language),
		State:  dialog.StateAwaitingClarification,
	}, true
}

// Advance records the user's message as the answer to the current
// question and either emits the next question or closes the loop with
// an empty answer so the graph proceeds to generation.
func (m *Manager) Advance(ctx context.Context, sess *session.UserSession, userMessage string) (Outcome, bool) {
	if sess == nil || sess.Clarification == nil || !sess.Clarification.Active {
		return Outcome{}, false
	}
	cc := sess.Clarification
	if cc.CurrentIndex < 0 || cc.CurrentIndex >= len(cc.Questions) {
		// Corrupt context; drop it rather than trap the user.
		cc.Active = false
		sess.DialogState = dialog.StateAnswerProvided
		return Outcome{Completed: true, State: dialog.StateAnswerProvided}, true
	}

	if cc.Answers == nil {
		cc.Answers = map[string]string{}
	}
	cc.Answers[cc.Questions[cc.CurrentIndex]] = strings.TrimSpace(userMessage)
	cc.CurrentIndex++

	if cc.CurrentIndex < len(cc.Questions) {
		return Outcome{
			Active: true,
			Answer: m.localize(ctx, cc.Questions[cc.CurrentIndex], cc.TargetLanguage),
			State:  dialog.StateAwaitingClarification,
		}, true
	}

	cc.Active = false
	sess.DialogState = dialog.StateAnswerProvided
	if cc.OriginalDocID != "" {
		sess.ClarifiedDocIDs = append(sess.ClarifiedDocIDs, cc.OriginalDocID)
	}
	return Outcome{Completed: true, State: dialog.StateAnswerProvided}, true
}

// PromptContext renders the collected answers for the generation
// prompt, question order preserved.
func PromptContext(sess *session.UserSession) string {
	if sess == nil || sess.Clarification == nil || len(sess.Clarification.Answers) == 0 {
		return ""
	}
	cc := sess.Clarification
	var b strings.Builder
	for _, q := range cc.Questions {
		answer, ok := cc.Answers[q]
		if !ok || answer == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(q)
		b.WriteString(": ")
		b.WriteString(answer)
	}
	return b.String()
}

func (m *Manager) localize(ctx context.Context, question, language string) string {
	if language == "" || m.translator == nil {
		return question
	}
	translated, err := m.translator.Translate(ctx, question, language)
	if err != nil || strings.TrimSpace(translated) == "" {
		if err != nil {
			m.log.Warn("clarifying question translation failed", "error", err)
		}
		return question
	}
	return translated
}

// alreadyClarified keeps a document from restarting its sub-dialogue
// within the same session.
func alreadyClarified(sess *session.UserSession, docID string) bool {
	if docID == "" {
		return false
	}
	for _, id := range sess.ClarifiedDocIDs {
		if id == docID {
			return true
		}
	}
	return false
}
