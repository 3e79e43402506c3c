package cache

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/faqbridge/faqbridge-backend/internal/observability"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
)

// Result is the outcome of a two-tier lookup. Embedding carries the
// query vector computed during the semantic probe so the store path
// can reuse it instead of re-embedding.
type Result struct {
	Hit       bool
	Answer    string
	Key       string
	Reason    string
	DocIDs    []string
	Embedding []float32
}

// StoreInput is what the store node hands the manager after a
// successful generation.
type StoreInput struct {
	Question        string
	TranslatedQuery string
	Answer          string
	DocIDs          []string
	Confidence      float64
	Embedding       []float32
}

// Manager coordinates the exact and semantic tiers. Lookups are best
// effort: any tier failure degrades to a miss, never an error to the
// pipeline.
type Manager struct {
	log      *logger.Logger
	exact    *ExactTier
	semantic *SemanticTier
	metrics  *observability.Metrics

	minConfidenceToCache float64
	group                singleflight.Group
}

func NewManager(log *logger.Logger, exact *ExactTier, semantic *SemanticTier, metrics *observability.Metrics, minConfidence float64) *Manager {
	if minConfidence <= 0 {
		minConfidence = 0.7
	}
	return &Manager{
		log:                  log.With("component", "CacheManager"),
		exact:                exact,
		semantic:             semantic,
		metrics:              metrics,
		minConfidenceToCache: minConfidence,
	}
}

// Lookup runs Tier A first, then Tier B. The translated query feeds
// the embedding when present; the relevance check always runs against
// the original question.
func (m *Manager) Lookup(ctx context.Context, question, translatedQuery string) Result {
	key := KeyFor(question)

	if entry, ok := m.exact.Get(ctx, question); ok {
		return Result{
			Hit:    true,
			Answer: entry.Answer,
			Key:    key,
			Reason: "exact_match",
			DocIDs: entry.DocIDs,
		}
	}

	if m.semantic == nil {
		return Result{Key: key, Reason: "miss"}
	}

	effective := translatedQuery
	if effective == "" {
		effective = question
	}
	hit, embedding, err := m.semantic.Lookup(ctx, question, effective)
	if err != nil {
		m.log.Warn("semantic lookup failed, treating as miss", "error", err)
		return Result{Key: key, Reason: "semantic_unavailable", Embedding: embedding}
	}
	if hit == nil {
		return Result{Key: key, Reason: "miss", Embedding: embedding}
	}
	return Result{
		Hit:       true,
		Answer:    hit.Answer,
		Key:       key,
		Reason:    "semantic_match score=" + strconv.FormatFloat(hit.Score, 'f', 3, 64),
		DocIDs:    hit.DocIDs,
		Embedding: embedding,
	}
}

// Store persists an answer after a miss. Writes are gated on the
// confidence floor, deduplicated per normalized key by singleflight,
// and go to Tier A unconditionally and Tier B when an embedding is at
// hand.
func (m *Manager) Store(ctx context.Context, in StoreInput) error {
	if in.Confidence < m.minConfidenceToCache {
		m.log.Debug("answer below cache confidence floor, skipping",
			"confidence", in.Confidence)
		return nil
	}

	normalized := Normalize(in.Question)
	_, err, _ := m.group.Do(normalized, func() (any, error) {
		entry := Entry{
			QueryNormalized: normalized,
			QueryOriginal:   in.Question,
			Answer:          in.Answer,
			DocIDs:          in.DocIDs,
			Confidence:      in.Confidence,
			Timestamp:       time.Now().UTC(),
		}
		if err := m.exact.Set(ctx, entry); err != nil {
			return nil, err
		}

		if m.semantic == nil {
			return nil, nil
		}
		vector := in.Embedding
		if len(vector) == 0 {
			effective := in.TranslatedQuery
			if effective == "" {
				effective = in.Question
			}
			embedded, err := m.semantic.embedder.Embed(ctx, effective, true)
			if err != nil {
				m.log.Warn("embedding for semantic store failed, exact tier only", "error", err)
				return nil, nil
			}
			vector = embedded
		}
		if err := m.semantic.Store(ctx, entry, vector, in.TranslatedQuery); err != nil {
			m.log.Warn("semantic store failed, exact tier only", "error", err)
		}
		return nil, nil
	})
	return err
}

// MinConfidence is the Tier write gate.
func (m *Manager) MinConfidence() float64 { return m.minConfidenceToCache }
