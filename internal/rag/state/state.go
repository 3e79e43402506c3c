package state

import (
	"time"
)

// Canonical field names carried through the pipeline. Nodes declare
// which of these they consume and produce; undeclared keys are stripped
// at dispatch when validation is on.
const (
	KeyQuestion            = "question"
	KeyUserID              = "user_id"
	KeySessionID           = "session_id"
	KeyConversationHistory = "conversation_history"
	KeyDetectedLanguage    = "detected_language"
	KeyTranslatedQuery     = "translated_query"
	KeyAggregatedQuery     = "aggregated_query"
	KeyExpandedQueries     = "expanded_queries"
	KeyCacheHit            = "cache_hit"
	KeyCacheKey            = "cache_key"
	KeyCacheReason         = "cache_reason"
	KeyDocs                = "docs"
	KeyScores              = "scores"
	KeyVectorResults       = "vector_results"
	KeyLexicalResults      = "lexical_results"
	KeyBestDocMetadata     = "best_doc_metadata"
	KeyConfidence          = "confidence"
	KeyRerankScores        = "rerank_scores"
	KeyMatchedCategory     = "matched_category"
	KeyMatchedIntent       = "matched_intent"
	KeyFilterUsed          = "filter_used"
	KeyFallbackTriggered   = "fallback_triggered"
	KeyDialogState         = "dialog_state"
	KeyDialogAnalysis      = "dialog_analysis"
	KeyAttemptCount        = "attempt_count"
	KeyClarification       = "clarification_context"
	KeyAnswer              = "answer"
	KeyEscalationMessage   = "escalation_message"
	KeySources             = "sources"
	KeyQueryID             = "query_id"
	KeyGuardrailsBlocked   = "guardrails_blocked"
	KeyGuardrailsRisk      = "guardrails_risk_score"
	KeyGuardrailsTriggered = "guardrails_triggered"
	KeyQuestionEmbedding   = "question_embedding"
	KeyTopicLoopDetected   = "topic_loop_detected"
	KeySimilarMessages     = "similar_messages_count"
	KeyContextTruncated    = "truncated"
	KeyMultiHopContext     = "multi_hop_context"
)

// Turn is one conversation_history entry.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	// TranslatedEn holds a stored English translation when the turn
	// was already translated during a previous request.
	TranslatedEn string `json:"translated_en,omitempty"`
}

// Bag is the mutable request state passed between nodes. One request
// owns one bag; nodes receive a filtered view and return only the
// fields they produce.
type Bag map[string]any

func New() Bag { return Bag{} }

func (b Bag) Clone() Bag {
	out := make(Bag, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Merge copies every entry of src into b, overwriting existing keys.
func (b Bag) Merge(src Bag) {
	for k, v := range src {
		b[k] = v
	}
}

// Has reports whether the field is present and non-nil.
func (b Bag) Has(key string) bool {
	v, ok := b[key]
	return ok && v != nil
}

func (b Bag) String(key string) string {
	if v, ok := b[key].(string); ok {
		return v
	}
	return ""
}

func (b Bag) Bool(key string) bool {
	if v, ok := b[key].(bool); ok {
		return v
	}
	return false
}

func (b Bag) Int(key string) int {
	switch v := b[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func (b Bag) Float(key string) float64 {
	switch v := b[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

func (b Bag) Strings(key string) []string {
	switch v := b[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func (b Bag) Floats(key string) []float64 {
	switch v := b[key].(type) {
	case []float64:
		return v
	case []any:
		out := make([]float64, 0, len(v))
		for _, item := range v {
			if f, ok := item.(float64); ok {
				out = append(out, f)
			}
		}
		return out
	default:
		return nil
	}
}

func (b Bag) Vector(key string) []float32 {
	if v, ok := b[key].([]float32); ok {
		return v
	}
	return nil
}

func (b Bag) Map(key string) map[string]any {
	if v, ok := b[key].(map[string]any); ok {
		return v
	}
	return nil
}

// History returns the conversation turns, tolerating both the typed
// slice and a decoded-JSON shape.
func (b Bag) History(key string) []Turn {
	switch v := b[key].(type) {
	case []Turn:
		return v
	case []any:
		out := make([]Turn, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			turn := Turn{}
			if s, ok := m["role"].(string); ok {
				turn.Role = s
			}
			if s, ok := m["content"].(string); ok {
				turn.Content = s
			}
			if s, ok := m["translated_en"].(string); ok {
				turn.TranslatedEn = s
			}
			out = append(out, turn)
		}
		return out
	default:
		return nil
	}
}

// EffectiveQuery picks the query retrieval should run with: the
// translated form wins, then the aggregated rewrite, then the raw
// question.
func (b Bag) EffectiveQuery() string {
	if q := b.String(KeyTranslatedQuery); q != "" {
		return q
	}
	if q := b.String(KeyAggregatedQuery); q != "" {
		return q
	}
	return b.String(KeyQuestion)
}
