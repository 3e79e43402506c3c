// Package classify routes a question to a knowledge-base category and
// intent so retrieval can filter by metadata.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/faqbridge/faqbridge-backend/internal/data/repos/documents"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/platform/models"
)

const taxonomyRefresh = 10 * time.Minute

// Label is a classification outcome. Empty Category means no filter
// should be applied.
type Label struct {
	Category string
	Intent   string
}

// Classifier asks the LLM to pick from the taxonomy observed in the
// document store. The taxonomy is cached and refreshed periodically;
// any model or parse failure yields the empty label so retrieval runs
// unfiltered.
type Classifier struct {
	log  *logger.Logger
	llm  models.LLM
	docs documents.DocumentRepo

	mu         sync.Mutex
	categories []string
	intents    []string
	loadedAt   time.Time
}

func NewClassifier(log *logger.Logger, llm models.LLM, docs documents.DocumentRepo) *Classifier {
	return &Classifier{
		log:  log.With("component", "Classifier"),
		llm:  llm,
		docs: docs,
	}
}

func (c *Classifier) Classify(ctx context.Context, question string) Label {
	categories, intents := c.taxonomy(ctx)
	if len(categories) == 0 {
		return Label{}
	}

	prompt := fmt.Sprintf(`Classify the support question.

Question: %s

Allowed categories: %s
Allowed intents: %s

Respond with JSON only: {"category": "...", "intent": "..."}.
Use an empty string when no option fits.`,
		question,
		strings.Join(categories, ", "),
		strings.Join(intents, ", "),
	)

	out, err := c.llm.Chat(ctx, []models.ChatMessage{
		{Role: models.RoleUser, Content: prompt},
	}, models.WithTemperature(0), models.WithJSONMode())
	if err != nil {
		c.log.Warn("classification failed, retrieval runs unfiltered", "error", err)
		return Label{}
	}

	label, err := parseLabel(out)
	if err != nil {
		c.log.Warn("classification unparseable", "error", err)
		return Label{}
	}
	// The model must not invent categories outside the taxonomy.
	if label.Category != "" && !contains(categories, label.Category) {
		label.Category = ""
	}
	if label.Intent != "" && !contains(intents, label.Intent) {
		label.Intent = ""
	}
	return label
}

func (c *Classifier) taxonomy(ctx context.Context) ([]string, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Since(c.loadedAt) < taxonomyRefresh && c.categories != nil {
		return c.categories, c.intents
	}

	rows, err := c.docs.ListAll(ctx)
	if err != nil {
		c.log.Warn("taxonomy load failed", "error", err)
		return c.categories, c.intents
	}
	categorySet := map[string]bool{}
	intentSet := map[string]bool{}
	for _, row := range rows {
		if v := row.Category(); v != "" {
			categorySet[v] = true
		}
		if v := row.Intent(); v != "" {
			intentSet[v] = true
		}
	}
	c.categories = sortedKeys(categorySet)
	c.intents = sortedKeys(intentSet)
	c.loadedAt = time.Now()
	return c.categories, c.intents
}

func parseLabel(raw string) (Label, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return Label{}, fmt.Errorf("no JSON object in response")
	}
	var payload struct {
		Category string `json:"category"`
		Intent   string `json:"intent"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &payload); err != nil {
		return Label{}, err
	}
	return Label{
		Category: strings.TrimSpace(payload.Category),
		Intent:   strings.TrimSpace(payload.Intent),
	}, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
