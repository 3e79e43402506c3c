package guardrails

import (
	"strings"

	"github.com/faqbridge/faqbridge-backend/internal/platform/envutil"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
)

type Decision string

const (
	DecisionAllow    Decision = "allow"
	DecisionSanitize Decision = "sanitize"
	DecisionBlock    Decision = "block"
)

// BlockedMessage is the fixed user-visible reply for blocked requests.
const BlockedMessage = "Ваш запрос не может быть обработан. Пожалуйста, переформулируйте вопрос."

// ScanResult aggregates every scanner verdict for one stage.
type ScanResult struct {
	Decision  Decision
	RiskScore float64
	Triggered []string
	// Text is the input after any sanitization. On block it is empty.
	Text string
}

func (r ScanResult) Blocked() bool { return r.Decision == DecisionBlock }

type Config struct {
	Enabled           bool
	BlockThreshold    float64
	SanitizeThreshold float64
	MaxInputTokens    int
	AllowedLanguages  []string
	BannedTopics      []string
	ToxicWords        []string
	InputPatterns     []string
}

func ConfigFromEnv() Config {
	return Config{
		Enabled:           envutil.Bool("GUARDRAILS_ENABLED", true),
		BlockThreshold:    envutil.Float("GUARDRAILS_BLOCK_THRESHOLD", 0.8),
		SanitizeThreshold: envutil.Float("GUARDRAILS_SANITIZE_THRESHOLD", 0.5),
		MaxInputTokens:    envutil.Int("GUARDRAILS_MAX_INPUT_TOKENS", 1000),
		AllowedLanguages:  splitList(envutil.Str("GUARDRAILS_ALLOWED_LANGUAGES", "ru,en")),
		BannedTopics:      splitList(envutil.Str("GUARDRAILS_BANNED_TOPICS", "")),
		ToxicWords:        splitList(envutil.Str("GUARDRAILS_TOXIC_WORDS", "")),
		InputPatterns:     splitList(envutil.Str("GUARDRAILS_INPUT_PATTERNS", "")),
	}
}

// Engine runs the input stage before retrieval and the output stage
// before the answer leaves the service.
type Engine struct {
	log     *logger.Logger
	cfg     Config
	input   []Scanner
	output  []Scanner
	enabled bool
}

func NewEngine(log *logger.Logger, cfg Config) *Engine {
	if cfg.BlockThreshold <= 0 {
		cfg.BlockThreshold = 0.8
	}
	if cfg.SanitizeThreshold <= 0 {
		cfg.SanitizeThreshold = 0.5
	}

	input := []Scanner{
		NewTokenLimitScanner(cfg.MaxInputTokens),
		NewLanguageScanner(cfg.AllowedLanguages),
		NewSecretsScanner(),
		NewInjectionScanner(),
		NewWordListScanner("toxicity", 0.6, cfg.ToxicWords),
		NewWordListScanner("banned_topics", 0.8, cfg.BannedTopics),
	}
	if len(cfg.InputPatterns) > 0 {
		input = append(input, NewRegexScanner("regex", 0.8, cfg.InputPatterns))
	}
	output := []Scanner{
		NewDataLeakageScanner(),
		NewWordListScanner("toxicity", 0.6, cfg.ToxicWords),
		NewWordListScanner("banned_topics", 0.8, cfg.BannedTopics),
	}

	return &Engine{
		log:     log.With("component", "Guardrails"),
		cfg:     cfg,
		input:   input,
		output:  output,
		enabled: cfg.Enabled,
	}
}

func (e *Engine) ScanInput(text string) ScanResult  { return e.run(e.input, text) }
func (e *Engine) ScanOutput(text string) ScanResult { return e.run(e.output, text) }

// run aggregates scanner findings. The highest single risk drives the
// decision; sanitizations chain in scanner order.
func (e *Engine) run(scanners []Scanner, text string) ScanResult {
	out := ScanResult{Decision: DecisionAllow, Text: text}
	if !e.enabled {
		return out
	}

	current := text
	for _, s := range scanners {
		finding := s.Scan(current)
		if !finding.Triggered {
			continue
		}
		out.Triggered = append(out.Triggered, s.Name())
		if finding.Risk > out.RiskScore {
			out.RiskScore = finding.Risk
		}
		if finding.Sanitized != "" {
			current = finding.Sanitized
		}
	}

	switch {
	case out.RiskScore >= e.cfg.BlockThreshold:
		out.Decision = DecisionBlock
		out.Text = ""
		e.log.Warn("request blocked by guardrails",
			"risk_score", out.RiskScore,
			"triggered", strings.Join(out.Triggered, ","),
		)
	case out.RiskScore >= e.cfg.SanitizeThreshold:
		out.Decision = DecisionSanitize
		out.Text = current
		e.log.Info("text sanitized by guardrails",
			"risk_score", out.RiskScore,
			"triggered", strings.Join(out.Triggered, ","),
		)
	default:
		out.Text = text
	}
	return out
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
