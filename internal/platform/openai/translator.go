package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/platform/models"
)

// Translator drives the ru<->en pair through the chat model. The
// knowledge base is monolingual, so only that pair is supported;
// NormalizeLanguage collapses the remaining Cyrillic Slavic codes
// onto ru before the pair is chosen.
type Translator struct {
	log *logger.Logger
	llm models.LLM
}

var _ models.Translator = (*Translator)(nil)

func NewTranslator(log *logger.Logger, llm models.LLM) *Translator {
	return &Translator{log: log.With("service", "Translator"), llm: llm}
}

// NormalizeLanguage maps detected language codes onto the codes the
// ru<->en pair understands. bg, uk, be, mk and sr are close enough to
// Russian for the translation model and the stop-word lists.
func NormalizeLanguage(code string) string {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "ru", "bg", "uk", "be", "mk", "sr":
		return "ru"
	case "en", "":
		return "en"
	default:
		return strings.ToLower(strings.TrimSpace(code))
	}
}

func (t *Translator) Translate(ctx context.Context, text, target string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	target = NormalizeLanguage(target)

	var language string
	switch target {
	case "ru":
		language = "Russian"
	case "en":
		language = "English"
	default:
		return "", fmt.Errorf("unsupported translation target %q", target)
	}

	out, err := t.llm.Chat(ctx, []models.ChatMessage{
		{
			Role: models.RoleSystem,
			Content: "You are a translation engine. Translate the user message into " + language +
				". Reply with the translation only, no quotes, no commentary.",
		},
		{Role: models.RoleUser, Content: text},
	}, models.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("translate to %s: %w", target, err)
	}
	return strings.TrimSpace(out), nil
}
