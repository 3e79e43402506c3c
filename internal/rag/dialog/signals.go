package dialog

import (
	"strings"

	"github.com/faqbridge/faqbridge-backend/internal/rag/cache"
	"github.com/faqbridge/faqbridge-backend/internal/rag/session"
)

// Analysis holds the boolean signals the state machine consumes.
type Analysis struct {
	EscalationRequested bool `json:"escalation_requested"`
	IsGratitude         bool `json:"is_gratitude"`
	FrustrationDetected bool `json:"frustration_detected"`
	RepeatedQuestion    bool `json:"repeated_question"`
	IsQuestion          bool `json:"is_question"`
}

// Map renders the analysis in the shape carried on the state bag.
func (a Analysis) Map() map[string]any {
	return map[string]any{
		"escalation_requested": a.EscalationRequested,
		"is_gratitude":         a.IsGratitude,
		"frustration_detected": a.FrustrationDetected,
		"repeated_question":    a.RepeatedQuestion,
		"is_question":          a.IsQuestion,
	}
}

var gratitudeMarkers = []string{
	"спасибо", "благодарю", "помогло", "разобрался", "разобралась",
	"thank you", "thanks", "thx", "that helped", "solved",
}

var escalationMarkers = []string{
	"оператор", "оператора", "живой человек", "живым человеком",
	"менеджер", "менеджера", "поддержк", "соедините",
	"human", "operator", "real person", "live agent", "speak to someone",
	"talk to a person",
}

var frustrationMarkers = []string{
	"не помогает", "не помогло", "не работает", "бесполезно",
	"ужасно", "сколько можно", "опять", "снова не",
	"useless", "not working", "doesn't work", "doesn't help",
	"didn't help", "still broken", "this is ridiculous", "frustrated",
}

var questionStarters = []string{
	"как", "что", "почему", "где", "когда", "можно ли", "зачем",
	"сколько", "куда",
	"how", "what", "why", "where", "when", "can i", "could", "is it",
	"do i", "does",
}

// Analyze derives the dialog signals from the incoming message and the
// session's recent user turns.
func Analyze(question string, sess *session.UserSession) Analysis {
	lowered := strings.ToLower(strings.TrimSpace(question))

	a := Analysis{
		EscalationRequested: containsAny(lowered, escalationMarkers),
		IsGratitude:         containsAny(lowered, gratitudeMarkers),
		FrustrationDetected: containsAny(lowered, frustrationMarkers) ||
			strings.Contains(lowered, "!!!"),
	}

	if sess != nil {
		normalized := cache.Normalize(question)
		if normalized != "" {
			for _, msg := range sess.RecentUserMessages(5) {
				if cache.Normalize(msg.Content) == normalized {
					a.RepeatedQuestion = true
					break
				}
			}
		}
	}

	a.IsQuestion = looksLikeQuestion(lowered) && !a.IsGratitude
	return a
}

func looksLikeQuestion(lowered string) bool {
	if lowered == "" {
		return false
	}
	if strings.Contains(lowered, "?") {
		return true
	}
	for _, starter := range questionStarters {
		if strings.HasPrefix(lowered, starter+" ") || lowered == starter {
			return true
		}
	}
	// Statements like "my payment failed" still ask for help.
	return len([]rune(lowered)) > 3
}

func containsAny(s string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
