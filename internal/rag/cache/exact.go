package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/faqbridge/faqbridge-backend/internal/observability"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/platform/rediskv"
)

// ExactTier is the normalized-key cache backed by the key/value store,
// with an in-process LFU fallback while the backend is unreachable.
type ExactTier struct {
	log     *logger.Logger
	kv      rediskv.Store
	mem     *lfuStore
	ttl     time.Duration
	metrics *observability.Metrics
}

func NewExactTier(log *logger.Logger, kv rediskv.Store, metrics *observability.Metrics, ttl time.Duration, memCap int) *ExactTier {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ExactTier{
		log:     log.With("component", "ExactCache"),
		kv:      kv,
		mem:     newLFUStore(memCap, ttl),
		ttl:     ttl,
		metrics: metrics,
	}
}

// Get looks the question up by its normalized key. A hit bumps
// hit_count by one and rewrites the record so the increment persists.
func (t *ExactTier) Get(ctx context.Context, question string) (*Entry, bool) {
	key := KeyFor(question)

	raw, err := t.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, rediskv.ErrNotFound) {
			t.metrics.CacheEvent("exact", "miss")
			return nil, false
		}
		t.log.Warn("exact tier read failed, trying memory fallback", "error", err)
		t.metrics.CacheEvent("exact", "error")
		if entry, ok := t.mem.Get(key); ok {
			t.metrics.CacheEvent("memory", "hit")
			return &entry, true
		}
		t.metrics.CacheEvent("memory", "miss")
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		t.log.Warn("exact tier entry corrupt, dropping", "key", key, "error", err)
		_ = t.kv.Delete(ctx, key)
		t.metrics.CacheEvent("exact", "miss")
		return nil, false
	}

	entry.HitCount++
	if updated, err := json.Marshal(entry); err == nil {
		if err := t.kv.SetEx(ctx, key, updated, t.ttl); err != nil {
			t.log.Warn("hit count rewrite failed", "key", key, "error", err)
		}
	}
	t.metrics.CacheEvent("exact", "hit")
	return &entry, true
}

// Set writes the entry under its normalized key with the sliding TTL.
// On backend failure the entry lands in the memory fallback instead.
func (t *ExactTier) Set(ctx context.Context, entry Entry) error {
	if entry.QueryNormalized == "" {
		entry.QueryNormalized = Normalize(entry.QueryOriginal)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	key := KeyPrefix + entry.QueryNormalized

	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := t.kv.SetEx(ctx, key, raw, t.ttl); err != nil {
		t.log.Warn("exact tier write failed, using memory fallback", "error", err)
		t.metrics.CacheEvent("exact", "error")
		t.mem.Set(key, entry)
		t.metrics.CacheEvent("memory", "store")
		return nil
	}
	t.metrics.CacheEvent("exact", "store")
	return nil
}

func (t *ExactTier) TTL() time.Duration { return t.ttl }
