package dialog

import (
	"context"
	"math"
	"strings"

	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/platform/models"
	"github.com/faqbridge/faqbridge-backend/internal/rag/session"
)

// LoopResult reports whether the user keeps circling the same intent.
type LoopResult struct {
	LoopDetected bool
	SimilarCount int
	Confidence   float64
}

// LoopDetector compares the current question against the recent user
// turns on English embeddings. It fails open: any error reports no
// loop and never blocks the pipeline.
type LoopDetector struct {
	log        *logger.Logger
	embedder   models.Embedder
	translator models.Translator

	window      int
	threshold   float64
	minMessages int
}

type LoopConfig struct {
	Window      int
	Threshold   float64
	MinMessages int
}

func NewLoopDetector(log *logger.Logger, embedder models.Embedder, translator models.Translator, cfg LoopConfig) *LoopDetector {
	if cfg.Window <= 0 {
		cfg.Window = 4
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.85
	}
	if cfg.MinMessages <= 0 {
		cfg.MinMessages = 3
	}
	return &LoopDetector{
		log:         log.With("component", "TopicLoopDetector"),
		embedder:    embedder,
		translator:  translator,
		window:      cfg.Window,
		threshold:   cfg.Threshold,
		minMessages: cfg.MinMessages,
	}
}

// Detect runs the cross-lingual comparison. Stored English
// translations on the messages are reused; missing ones are translated
// on demand. All embeddings go through one batch call.
func (d *LoopDetector) Detect(ctx context.Context, question, language string, recent []session.Message) LoopResult {
	none := LoopResult{}
	if strings.TrimSpace(question) == "" || len(recent) == 0 {
		return none
	}

	window := recent
	if len(window) > d.window {
		window = window[:d.window]
	}

	currentEn, err := d.englishForm(ctx, question, language)
	if err != nil {
		d.log.Warn("loop detection skipped", "error", err)
		return none
	}

	texts := []string{currentEn}
	for _, msg := range window {
		en := msg.TranslatedEn
		if en == "" {
			translated, err := d.englishForm(ctx, msg.Content, "")
			if err != nil {
				d.log.Warn("loop detection skipped", "error", err)
				return none
			}
			en = translated
		}
		texts = append(texts, en)
	}

	vectors, err := d.embedder.EmbedBatch(ctx, texts, true)
	if err != nil || len(vectors) != len(texts) {
		d.log.Warn("loop detection skipped", "error", err)
		return none
	}

	current := vectors[0]
	similar := 0
	var similaritySum float64
	for _, v := range vectors[1:] {
		sim := cosine(current, v)
		if sim >= d.threshold {
			similar++
			similaritySum += sim
		}
	}

	needed := d.minMessages - 1
	if similar < needed {
		return LoopResult{SimilarCount: similar}
	}

	countFactor := clamp01(float64(similar) / float64(d.minMessages))
	similarityFactor := clamp01(similaritySum / float64(similar))
	return LoopResult{
		LoopDetected: true,
		SimilarCount: similar,
		Confidence:   (countFactor + similarityFactor) / 2,
	}
}

func (d *LoopDetector) englishForm(ctx context.Context, text, language string) (string, error) {
	if strings.EqualFold(language, "en") {
		return text, nil
	}
	translated, err := d.translator.Translate(ctx, text, "en")
	if err != nil {
		return "", err
	}
	if translated == "" {
		return text, nil
	}
	return translated, nil
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
