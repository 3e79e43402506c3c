package session

import (
	"time"
)

// Message is one capped recent-history entry on the session.
type Message struct {
	Role         string    `json:"role"`
	Content      string    `json:"content"`
	Timestamp    time.Time `json:"timestamp"`
	TranslatedEn string    `json:"translated_en,omitempty"`
}

// ClarificationContext tracks an active clarifying-question
// sub-dialogue across turns.
type ClarificationContext struct {
	Active          bool              `json:"active"`
	Questions       []string          `json:"questions"`
	CurrentIndex    int               `json:"current_index"`
	Answers         map[string]string `json:"answers"`
	OriginalDocID   string            `json:"original_doc_id"`
	RequiresHandoff bool              `json:"requires_handoff"`
	TargetLanguage  string            `json:"target_language"`
}

// UserSession is the per-user dialog state, serialized as JSON at
// session:<session_id> with a sliding TTL.
type UserSession struct {
	UserID               string                `json:"user_id"`
	SessionID            string                `json:"session_id"`
	StartTime            time.Time             `json:"start_time"`
	LastActivityTime     time.Time             `json:"last_activity_time"`
	DialogState          string                `json:"dialog_state"`
	AttemptCount         int                   `json:"attempt_count"`
	CurrentProblem       string                `json:"current_problem,omitempty"`
	LastAnswerConfidence float64               `json:"last_answer_confidence,omitempty"`
	ExtractedEntities    map[string]string     `json:"extracted_entities,omitempty"`
	Clarification        *ClarificationContext `json:"clarification_context,omitempty"`
	ClarifiedDocIDs      []string              `json:"clarified_doc_ids,omitempty"`
	MessageCount         int                   `json:"message_count"`
	RecentMessages       []Message             `json:"recent_messages"`
}

// maxRecentMessages caps the stored history.
const maxRecentMessages = 50

// AppendMessage adds one turn, trimming the oldest entries past the
// cap. MessageCount keeps the full running total.
func (s *UserSession) AppendMessage(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	s.RecentMessages = append(s.RecentMessages, msg)
	if overflow := len(s.RecentMessages) - maxRecentMessages; overflow > 0 {
		s.RecentMessages = s.RecentMessages[overflow:]
	}
	s.MessageCount++
	s.LastActivityTime = msg.Timestamp
}

// RecentUserMessages returns up to n newest user turns, newest first.
func (s *UserSession) RecentUserMessages(n int) []Message {
	var out []Message
	for i := len(s.RecentMessages) - 1; i >= 0 && len(out) < n; i-- {
		if s.RecentMessages[i].Role == "user" {
			out = append(out, s.RecentMessages[i])
		}
	}
	return out
}
