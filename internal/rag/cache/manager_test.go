package cache

import (
	"context"
	"testing"
	"time"

	"github.com/faqbridge/faqbridge-backend/internal/observability"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
)

func newTestManager(kv *fakeKV, vs *fakeVectorStore, emb *fakeEmbedder) *Manager {
	log := logger.NewNop()
	metrics := observability.NewMetrics()
	exact := NewExactTier(log, kv, metrics, 24*time.Hour, 100)
	var semantic *SemanticTier
	if vs != nil {
		semantic = NewSemanticTier(log, vs, emb, metrics, SemanticConfig{Dim: emb.dim})
	}
	return NewManager(log, exact, semantic, metrics, 0.7)
}

func TestCacheRoundTripIncrementsHitCount(t *testing.T) {
	kv := newFakeKV()
	m := newTestManager(kv, nil, nil)
	ctx := context.Background()

	err := m.Store(ctx, StoreInput{
		Question:   "How to reset password?",
		Answer:     "Click Forgot Password",
		DocIDs:     []string{"doc-1"},
		Confidence: 0.9,
	})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	first := m.Lookup(ctx, "reset password, please", "")
	if !first.Hit || first.Answer != "Click Forgot Password" {
		t.Fatalf("first lookup: %+v", first)
	}
	second := m.Lookup(ctx, "How to reset password?", "")
	if !second.Hit {
		t.Fatalf("second lookup: %+v", second)
	}

	entry, ok := NewExactTier(logger.NewNop(), kv, observability.NewMetrics(), time.Hour, 10).Get(ctx, "reset password")
	if !ok {
		t.Fatalf("entry vanished")
	}
	// Two pipeline reads plus this probe.
	if entry.HitCount != 3 {
		t.Fatalf("hit_count: want=3 got=%d", entry.HitCount)
	}
}

func TestStoreBelowConfidenceSkipped(t *testing.T) {
	kv := newFakeKV()
	m := newTestManager(kv, nil, nil)
	ctx := context.Background()

	if err := m.Store(ctx, StoreInput{Question: "q", Answer: "a", Confidence: 0.5}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if got := m.Lookup(ctx, "q", ""); got.Hit {
		t.Fatalf("low-confidence answer cached: %+v", got)
	}
	if len(kv.data) != 0 {
		t.Fatalf("kv should be empty, got %d keys", len(kv.data))
	}
}

func TestLookupFallsBackToMemoryWhenKVDown(t *testing.T) {
	kv := newFakeKV()
	m := newTestManager(kv, nil, nil)
	ctx := context.Background()

	kv.fail = true
	if err := m.Store(ctx, StoreInput{Question: "offline question", Answer: "a", Confidence: 0.9}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got := m.Lookup(ctx, "offline question", "")
	if !got.Hit || got.Answer != "a" {
		t.Fatalf("memory fallback miss: %+v", got)
	}
}

func TestSemanticHitRequiresRelevanceOverlap(t *testing.T) {
	kv := newFakeKV()
	vs := newFakeVectorStore()
	emb := &fakeEmbedder{dim: 8}
	m := newTestManager(kv, vs, emb)
	ctx := context.Background()

	vs.nextScore = 0.95
	err := m.Store(ctx, StoreInput{
		Question:   "How do I change password?",
		Answer:     "Use settings>security",
		DocIDs:     []string{"Use settings>security"},
		Confidence: 0.9,
	})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	// Exact keys differ, similarity is above threshold, tokens overlap.
	got := m.Lookup(ctx, "I forgot my password, help with security settings", "")
	if !got.Hit || got.Answer != "Use settings>security" {
		t.Fatalf("semantic hit expected: %+v", got)
	}

	// Same similarity, no token overlap with the stored doc ids.
	miss := m.Lookup(ctx, "something about billing invoices", "")
	if miss.Hit {
		t.Fatalf("relevance check should reject: %+v", miss)
	}
}

func TestSemanticTTLRespected(t *testing.T) {
	log := logger.NewNop()
	metrics := observability.NewMetrics()
	vs := newFakeVectorStore()
	emb := &fakeEmbedder{dim: 8}
	semantic := NewSemanticTier(log, vs, emb, metrics, SemanticConfig{Dim: 8, TTL: time.Hour})
	ctx := context.Background()

	vs.nextScore = 0.99
	entry := Entry{
		QueryNormalized: "old question",
		QueryOriginal:   "old question",
		Answer:          "stale",
		DocIDs:          []string{"old question docs"},
		Timestamp:       time.Now().Add(-2 * time.Hour),
	}
	vec, _ := emb.Embed(ctx, "old question", true)
	if err := semantic.Store(ctx, entry, vec, ""); err != nil {
		t.Fatalf("Store: %v", err)
	}

	hit, _, err := semantic.Lookup(ctx, "old question docs lookup", "old question")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if hit != nil {
		t.Fatalf("expired point returned: %+v", hit)
	}
}

func TestSemanticStoreReusesLookupEmbedding(t *testing.T) {
	kv := newFakeKV()
	vs := newFakeVectorStore()
	emb := &fakeEmbedder{dim: 8}
	m := newTestManager(kv, vs, emb)
	ctx := context.Background()

	vec := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	err := m.Store(ctx, StoreInput{
		Question:   "q",
		Answer:     "a",
		Confidence: 0.9,
		Embedding:  vec,
	})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if emb.calls != 0 {
		t.Fatalf("embedder should not be called when embedding supplied, calls=%d", emb.calls)
	}
	if len(vs.points) != 1 {
		t.Fatalf("semantic point missing")
	}
}
