package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/faqbridge/faqbridge-backend/internal/observability"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/platform/models"
	"github.com/faqbridge/faqbridge-backend/internal/platform/qdrant"
)

// DefaultCollection is the semantic-tier vector collection name.
const DefaultCollection = "semantic_cache"

// SemanticHit is a validated semantic-tier match.
type SemanticHit struct {
	Question        string
	Answer          string
	DocIDs          []string
	Score           float64
	TranslatedQuery string
}

// SemanticTier caches answers by question-embedding similarity. A hit
// needs the cosine score threshold and the document-relevance overlap
// check; either failing downgrades it to a miss.
type SemanticTier struct {
	log        *logger.Logger
	store      qdrant.Store
	embedder   models.Embedder
	metrics    *observability.Metrics
	collection string
	dim        int
	ttl        time.Duration

	scoreThreshold     float64
	relevanceThreshold float64
}

type SemanticConfig struct {
	Collection         string
	Dim                int
	TTL                time.Duration
	ScoreThreshold     float64
	RelevanceThreshold float64
}

func NewSemanticTier(log *logger.Logger, store qdrant.Store, embedder models.Embedder, metrics *observability.Metrics, cfg SemanticConfig) *SemanticTier {
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Dim <= 0 {
		cfg.Dim = embedder.Dim()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.ScoreThreshold <= 0 {
		cfg.ScoreThreshold = 0.92
	}
	if cfg.RelevanceThreshold <= 0 {
		cfg.RelevanceThreshold = 0.30
	}
	return &SemanticTier{
		log:                log.With("component", "SemanticCache"),
		store:              store,
		embedder:           embedder,
		metrics:            metrics,
		collection:         cfg.Collection,
		dim:                cfg.Dim,
		ttl:                cfg.TTL,
		scoreThreshold:     cfg.ScoreThreshold,
		relevanceThreshold: cfg.RelevanceThreshold,
	}
}

// Lookup embeds the effective query and runs a top-1 similarity search
// limited to unexpired points. The embedding is returned regardless of
// the outcome so the store path can reuse it.
func (t *SemanticTier) Lookup(ctx context.Context, originalQuestion, effectiveQuery string) (*SemanticHit, []float32, error) {
	if err := t.store.EnsureCollection(ctx, t.collection, t.dim); err != nil {
		return nil, nil, fmt.Errorf("ensure collection: %w", err)
	}

	vector, err := t.embedder.Embed(ctx, effectiveQuery, true)
	if err != nil {
		return nil, nil, fmt.Errorf("embed query: %w", err)
	}

	cutoff := time.Now().Add(-t.ttl).Unix()
	hits, err := t.store.Search(ctx, t.collection, qdrant.Query{
		Vector:         vector,
		TopK:           1,
		ScoreThreshold: t.scoreThreshold,
		Filter: map[string]any{
			"timestamp": map[string]any{"$gte": cutoff},
		},
	})
	if err != nil {
		return nil, vector, fmt.Errorf("semantic search: %w", err)
	}
	if len(hits) == 0 {
		t.metrics.CacheEvent("semantic", "miss")
		return nil, vector, nil
	}

	hit := decodeSemanticHit(hits[0])
	if hit.Answer == "" {
		t.metrics.CacheEvent("semantic", "miss")
		return nil, vector, nil
	}

	tokens := RelevanceTokens(originalQuestion)
	overlap := OverlapRatio(tokens, strings.Join(hit.DocIDs, " "))
	if overlap < t.relevanceThreshold {
		t.log.Debug("semantic hit rejected by relevance check",
			"score", hit.Score, "overlap", overlap)
		t.metrics.CacheEvent("semantic", "miss")
		return nil, vector, nil
	}

	t.metrics.CacheEvent("semantic", "hit")
	return hit, vector, nil
}

// Store writes one point alongside an exact-tier entry. The id derives
// from the normalized question so a rewrite replaces the old point.
func (t *SemanticTier) Store(ctx context.Context, entry Entry, vector []float32, translatedQuery string) error {
	if len(vector) == 0 {
		return fmt.Errorf("semantic store needs an embedding")
	}
	if err := t.store.EnsureCollection(ctx, t.collection, t.dim); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	payload := map[string]any{
		"question":  entry.QueryOriginal,
		"answer":    entry.Answer,
		"doc_ids":   entry.DocIDs,
		"timestamp": entry.Timestamp.UTC().Unix(),
	}
	if translatedQuery != "" {
		payload["translated_query"] = translatedQuery
	}

	err := t.store.Upsert(ctx, t.collection, []qdrant.Point{{
		ID:      uuid.NewSHA1(uuid.NameSpaceURL, []byte("semantic_cache|"+entry.QueryNormalized)).String(),
		Vector:  vector,
		Payload: payload,
	}})
	if err != nil {
		t.metrics.CacheEvent("semantic", "error")
		return fmt.Errorf("semantic upsert: %w", err)
	}
	t.metrics.CacheEvent("semantic", "store")
	return nil
}

// Sweep deletes points older than the TTL.
func (t *SemanticTier) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-t.ttl).Unix()
	err := t.store.DeleteByFilter(ctx, t.collection, map[string]any{
		"timestamp": map[string]any{"$lt": cutoff},
	})
	if err != nil {
		return fmt.Errorf("semantic sweep: %w", err)
	}
	t.metrics.CacheEvent("semantic", "sweep")
	return nil
}

func decodeSemanticHit(p qdrant.ScoredPoint) *SemanticHit {
	hit := &SemanticHit{Score: p.Score}
	if s, ok := p.Payload["question"].(string); ok {
		hit.Question = s
	}
	if s, ok := p.Payload["answer"].(string); ok {
		hit.Answer = s
	}
	if s, ok := p.Payload["translated_query"].(string); ok {
		hit.TranslatedQuery = s
	}
	switch ids := p.Payload["doc_ids"].(type) {
	case []string:
		hit.DocIDs = ids
	case []any:
		for _, id := range ids {
			if s, ok := id.(string); ok {
				hit.DocIDs = append(hit.DocIDs, s)
			}
		}
	}
	return hit
}
