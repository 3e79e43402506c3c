package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/platform/models"
	"github.com/faqbridge/faqbridge-backend/internal/rag/state"
)

const minQueryLength = 20

// Short follow-ups lean on these to refer back to earlier turns.
var pronounMarkers = []string{
	"he", "she", "it", "they", "them", "his", "her", "its", "their",
	"this", "that", "these", "those", "more", "again", "also", "else",
	"он", "она", "оно", "они", "его", "ее", "их", "это", "этот", "эта",
	"еще", "тоже",
}

// Commands are never worth expanding.
var commandStopList = []string{
	"stop", "clear", "help", "reset", "quit", "exit", "cancel", "undo",
	"back", "menu", "start over",
	"стоп", "помощь", "отмена", "назад", "меню",
}

// An explicit topic switch means the history would only mislead the
// retriever.
var topicSwitchPhrases = []string{
	"new question", "different topic", "another thing", "unrelated",
	"changing the subject", "by the way",
	"другой вопрос", "другая тема", "кстати",
}

// ExpandedQuery carries the original query plus retrieval variants.
// Queries always has the original first.
type ExpandedQuery struct {
	Original string
	Queries  []string
	Expanded bool
}

// Expander turns a terse follow-up into several retrieval queries. The
// LLM is only consulted when the heuristics say the query depends on
// conversation context; everything else passes through unexpanded.
type Expander struct {
	log *logger.Logger
	llm models.LLM

	maxVariants int
}

func NewExpander(log *logger.Logger, llm models.LLM, maxVariants int) *Expander {
	if maxVariants <= 0 {
		maxVariants = 3
	}
	return &Expander{
		log:         log.With("component", "QueryExpander"),
		llm:         llm,
		maxVariants: maxVariants,
	}
}

// NeedsExpansion reports whether the query likely depends on earlier
// turns. Exported because the reranker uses the same gate to decide
// whether a fan-out is worth the extra retrieval legs.
func NeedsExpansion(query string, history []state.Turn) bool {
	trimmed := strings.TrimSpace(strings.ToLower(query))
	if trimmed == "" || len(history) == 0 {
		return false
	}
	for _, cmd := range commandStopList {
		if trimmed == cmd {
			return false
		}
	}
	for _, phrase := range topicSwitchPhrases {
		if strings.Contains(trimmed, phrase) {
			return false
		}
	}
	if len([]rune(trimmed)) < minQueryLength {
		return true
	}
	for _, w := range strings.Fields(trimmed) {
		w = strings.Trim(w, ".,!?;:")
		for _, marker := range pronounMarkers {
			if w == marker {
				return true
			}
		}
	}
	return false
}

// Expand produces up to maxVariants additional queries via the LLM.
// Any failure degrades to the original query alone.
func (e *Expander) Expand(ctx context.Context, query string, history []state.Turn) ExpandedQuery {
	passthrough := ExpandedQuery{Original: query, Queries: []string{query}}
	if !NeedsExpansion(query, history) {
		return passthrough
	}

	recent := history
	if len(recent) > 6 {
		recent = recent[len(recent)-6:]
	}
	var transcript strings.Builder
	for _, turn := range recent {
		fmt.Fprintf(&transcript, "%s: %s\n", turn.Role, turn.Content)
	}

	prompt := fmt.Sprintf(`Given this conversation and a follow-up query, generate %d search query variations that capture what the user is really asking.

Conversation:
%s
Follow-up query: %s

Generate:
1. A SPECIFIC variation resolving all references
2. A BROAD variation covering the general topic
3. A CONTEXTUAL variation combining the query with the conversation subject

Respond with JSON only: {"queries": ["...", "...", "..."]}`,
		e.maxVariants, transcript.String(), query)

	out, err := e.llm.Chat(ctx, []models.ChatMessage{
		{Role: models.RoleUser, Content: prompt},
	}, models.WithTemperature(0.3), models.WithJSONMode())
	if err != nil {
		e.log.Warn("query expansion failed", "error", err)
		return passthrough
	}

	variants, err := parseQueryList(out)
	if err != nil {
		e.log.Warn("query expansion unparseable", "error", err)
		return passthrough
	}

	queries := []string{query}
	seen := map[string]bool{strings.ToLower(strings.TrimSpace(query)): true}
	for _, v := range variants {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		queries = append(queries, v)
		if len(queries) > e.maxVariants {
			break
		}
	}
	return ExpandedQuery{Original: query, Queries: queries, Expanded: len(queries) > 1}
}

func parseQueryList(raw string) ([]string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}
	var payload struct {
		Queries []string `json:"queries"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &payload); err != nil {
		return nil, err
	}
	if len(payload.Queries) == 0 {
		return nil, fmt.Errorf("empty queries list")
	}
	return payload.Queries, nil
}
