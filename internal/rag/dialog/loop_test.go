package dialog

import (
	"context"
	"errors"
	"testing"

	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/rag/session"
)

// vectorEmbedder returns a fixed vector per text so similarity is
// fully controlled by the test.
type vectorEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *vectorEmbedder) Dim() int { return 3 }

func (f *vectorEmbedder) Embed(ctx context.Context, text string, isQuery bool) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors[text], nil
}

func (f *vectorEmbedder) EmbedBatch(ctx context.Context, texts []string, isQuery bool) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = f.vectors[text]
	}
	return out, nil
}

type identityTranslator struct {
	err error
}

func (f *identityTranslator) Translate(ctx context.Context, text, target string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return text, nil
}

func TestDetectPositiveLoop(t *testing.T) {
	emb := &vectorEmbedder{vectors: map[string][]float32{
		"how to reset the password": {1, 0, 0},
		"reset password":            {0.99, 0.01, 0},
		"reset my password":         {0.98, 0.02, 0},
		"password reset":            {0.97, 0.03, 0},
	}}
	d := NewLoopDetector(logger.NewNop(), emb, &identityTranslator{}, LoopConfig{})

	recent := []session.Message{
		{Role: "user", Content: "reset password", TranslatedEn: "reset password"},
		{Role: "user", Content: "reset my password", TranslatedEn: "reset my password"},
		{Role: "user", Content: "password reset", TranslatedEn: "password reset"},
	}
	got := d.Detect(context.Background(), "how to reset the password", "en", recent)
	if !got.LoopDetected {
		t.Fatalf("loop expected: %+v", got)
	}
	if got.SimilarCount < 2 {
		t.Fatalf("similar count: want>=2 got=%d", got.SimilarCount)
	}
	if got.Confidence <= 0 || got.Confidence > 1 {
		t.Fatalf("confidence out of range: %v", got.Confidence)
	}
}

func TestDetectBelowThresholdNoLoop(t *testing.T) {
	emb := &vectorEmbedder{vectors: map[string][]float32{
		"how do i pay":   {1, 0, 0},
		"reset password": {0, 1, 0},
		"delivery time":  {0, 0, 1},
	}}
	d := NewLoopDetector(logger.NewNop(), emb, &identityTranslator{}, LoopConfig{})

	recent := []session.Message{
		{Role: "user", Content: "reset password", TranslatedEn: "reset password"},
		{Role: "user", Content: "delivery time", TranslatedEn: "delivery time"},
	}
	got := d.Detect(context.Background(), "how do i pay", "en", recent)
	if got.LoopDetected {
		t.Fatalf("no loop expected: %+v", got)
	}
}

func TestDetectFailsOpenOnEmbedderError(t *testing.T) {
	emb := &vectorEmbedder{err: errors.New("model down")}
	d := NewLoopDetector(logger.NewNop(), emb, &identityTranslator{}, LoopConfig{})

	recent := []session.Message{{Role: "user", Content: "reset password", TranslatedEn: "reset password"}}
	got := d.Detect(context.Background(), "reset password", "en", recent)
	if got.LoopDetected {
		t.Fatalf("fail-open violated: %+v", got)
	}
}

func TestDetectFailsOpenOnTranslatorError(t *testing.T) {
	emb := &vectorEmbedder{vectors: map[string][]float32{}}
	d := NewLoopDetector(logger.NewNop(), emb, &identityTranslator{err: errors.New("translator down")}, LoopConfig{})

	recent := []session.Message{{Role: "user", Content: "сбросить пароль"}}
	got := d.Detect(context.Background(), "как сбросить пароль", "ru", recent)
	if got.LoopDetected {
		t.Fatalf("fail-open violated: %+v", got)
	}
}

func TestDetectEmptyHistoryNoLoop(t *testing.T) {
	d := NewLoopDetector(logger.NewNop(), &vectorEmbedder{}, &identityTranslator{}, LoopConfig{})
	if got := d.Detect(context.Background(), "anything", "en", nil); got.LoopDetected {
		t.Fatalf("no loop expected: %+v", got)
	}
}

func TestAnalyzeSignals(t *testing.T) {
	sess := &session.UserSession{}
	sess.AppendMessage(session.Message{Role: "user", Content: "How to reset password?"})

	cases := []struct {
		question string
		want     func(a Analysis) bool
	}{
		{"Соедините меня с оператором", func(a Analysis) bool { return a.EscalationRequested }},
		{"Спасибо, помогло!", func(a Analysis) bool { return a.IsGratitude && !a.IsQuestion }},
		{"Это не работает, ужасно", func(a Analysis) bool { return a.FrustrationDetected }},
		{"reset password, please", func(a Analysis) bool { return a.RepeatedQuestion }},
		{"Как оплатить заказ?", func(a Analysis) bool { return a.IsQuestion }},
	}
	for _, tc := range cases {
		if got := Analyze(tc.question, sess); !tc.want(got) {
			t.Fatalf("signals for %q: %+v", tc.question, got)
		}
	}
}
