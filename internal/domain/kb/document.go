package kb

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Document is one question/answer unit of the knowledge base. The
// answerable content lives in Content; routing hints (category, intent,
// clarifying questions, relations) live in Metadata. The embedding
// column mirrors the vector stored in the ANN index so the collection
// can be rebuilt from SQL truth.
type Document struct {
	ID      int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Content string `gorm:"type:text;not null" json:"content"`

	Embedding datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"embedding"`
	Metadata  datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Document) TableName() string { return "documents" }

// Meta decodes the metadata payload, returning an empty map on
// malformed rows rather than failing retrieval.
func (d *Document) Meta() map[string]any {
	if d == nil || len(d.Metadata) == 0 {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(d.Metadata, &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}

func (d *Document) Category() string {
	return metaString(d.Meta(), "category")
}

func (d *Document) Intent() string {
	return metaString(d.Meta(), "intent")
}

// ClarifyingQuestions returns the ordered clarifying-question list a
// document may carry, or nil.
func (d *Document) ClarifyingQuestions() []string {
	raw, ok := d.Meta()["clarifying_questions"]
	if !ok {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func metaString(meta map[string]any, key string) string {
	if v, ok := meta[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
