package transform

import (
	"context"
	"fmt"
	"strings"

	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/platform/models"
	"github.com/faqbridge/faqbridge-backend/internal/rag/state"
)

// Aggregator rewrites a follow-up question into a self-contained query
// by resolving pronouns and filling slots from the recent turns. With
// no history the question passes through untouched.
type Aggregator struct {
	log *logger.Logger
	llm models.LLM

	maxTurns int
}

func NewAggregator(log *logger.Logger, llm models.LLM, maxTurns int) *Aggregator {
	if maxTurns <= 0 {
		maxTurns = 6
	}
	return &Aggregator{
		log:      log.With("component", "QueryAggregator"),
		llm:      llm,
		maxTurns: maxTurns,
	}
}

// Aggregate returns the rewritten query, or the original question when
// rewriting is unnecessary or fails. Best effort by design.
func (a *Aggregator) Aggregate(ctx context.Context, question string, history []state.Turn) string {
	question = strings.TrimSpace(question)
	if question == "" || len(history) == 0 {
		return question
	}

	recent := history
	if len(recent) > a.maxTurns {
		recent = recent[len(recent)-a.maxTurns:]
	}

	var transcript strings.Builder
	for _, turn := range recent {
		fmt.Fprintf(&transcript, "%s: %s\n", turn.Role, turn.Content)
	}

	out, err := a.llm.Chat(ctx, []models.ChatMessage{
		{
			Role: models.RoleSystem,
			Content: "You rewrite follow-up support questions to be self-contained. " +
				"Resolve pronouns and references using the conversation. " +
				"Keep the user's language. Reply with the rewritten question only. " +
				"If the question is already self-contained, repeat it unchanged.",
		},
		{
			Role:    models.RoleUser,
			Content: "Conversation:\n" + transcript.String() + "\nFollow-up question: " + question,
		},
	}, models.WithTemperature(0))
	if err != nil {
		a.log.Warn("aggregation failed, using raw question", "error", err)
		return question
	}

	rewritten := strings.TrimSpace(out)
	if rewritten == "" {
		return question
	}
	return rewritten
}
