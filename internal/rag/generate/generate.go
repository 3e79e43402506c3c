// Package generate turns retrieved context into the final answer.
package generate

import (
	"context"
	"strings"

	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/platform/models"
)

// DegradedAnswer is returned when the model is unreachable after the
// retry. The pipeline still responds instead of erroring the request.
const DegradedAnswer = "Не смог найти ответ."

const defaultSystemPrompt = "You are a support assistant. Answer using only the provided context. " +
	"Answer in the language of the question. If the context does not contain the answer, say you do not know."

// Input is everything the orchestrator may weave into the prompt.
type Input struct {
	Query string
	// Docs are retrieved contents in rank order. Context, when set,
	// replaces them (the multi-hop resolver pre-merges its budgeted
	// context).
	Docs    []string
	Context string
	// SystemPrompt overrides the default instruction; dynamic values
	// get their braces escaped before use.
	SystemPrompt string
	// ClarificationAnswers is the rendered question/answer block from a
	// finished clarification loop.
	ClarificationAnswers string
	// EscalationMessage is returned verbatim when set.
	EscalationMessage string
}

type Result struct {
	Answer   string
	Degraded bool
}

type Generator struct {
	log *logger.Logger
	llm models.LLM
}

func NewGenerator(log *logger.Logger, llm models.LLM) *Generator {
	return &Generator{
		log: log.With("component", "Generator"),
		llm: llm,
	}
}

// Generate produces the answer. Model failures that look transient are
// retried once; a final failure degrades to a fixed answer.
func (g *Generator) Generate(ctx context.Context, in Input) Result {
	if msg := strings.TrimSpace(in.EscalationMessage); msg != "" {
		return Result{Answer: msg}
	}

	system := defaultSystemPrompt
	if strings.TrimSpace(in.SystemPrompt) != "" {
		system = EscapeBraces(in.SystemPrompt)
	}

	messages := []models.ChatMessage{
		{Role: models.RoleSystem, Content: system},
		{Role: models.RoleUser, Content: buildHumanPrompt(in)},
	}

	answer, err := g.llm.Chat(ctx, messages, models.WithTemperature(0.2))
	if err != nil && isTransient(err) {
		g.log.Warn("generation failed, retrying once", "error", err)
		answer, err = g.llm.Chat(ctx, messages, models.WithTemperature(0.2))
	}
	if err != nil {
		g.log.Error("generation failed", "error", err)
		return Result{Answer: DegradedAnswer, Degraded: true}
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return Result{Answer: DegradedAnswer, Degraded: true}
	}
	return Result{Answer: answer}
}

func buildHumanPrompt(in Input) string {
	var b strings.Builder
	context := in.Context
	if context == "" && len(in.Docs) > 0 {
		context = strings.Join(in.Docs, "\n\n")
	}
	if context != "" {
		b.WriteString("Context:\n")
		b.WriteString(context)
		b.WriteString("\n\n")
	}
	if in.ClarificationAnswers != "" {
		b.WriteString("User clarifications:\n")
		b.WriteString(in.ClarificationAnswers)
		b.WriteString("\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(in.Query)
	return b.String()
}

// EscapeBraces doubles curly braces in dynamic prompt fragments so
// they cannot be interpreted as template placeholders downstream.
func EscapeBraces(s string) string {
	s = strings.ReplaceAll(s, "{", "{{")
	return strings.ReplaceAll(s, "}", "}}")
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"timeout", "deadline", "connection", "temporarily", "reset by peer", "eof"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
