package app

import (
	"time"

	"github.com/faqbridge/faqbridge-backend/internal/platform/envutil"
)

type Config struct {
	Port        string
	Environment string

	// DocLanguage is the canonical knowledge-base language.
	DocLanguage string

	CacheTTL           time.Duration
	CacheMemCap        int
	CacheMinConfidence float64
	SweepInterval      time.Duration

	SessionTTL time.Duration

	RetrievalTopK       int
	ConfidenceThreshold float64
	HybridSearch        bool

	MaxAttempts      int
	EscalateOnLimit  bool
	MultiHopBudget   int
	ExpanderVariants int

	PoolSize      int
	IndexOnStart  bool
	ProbeInterval time.Duration
}

func LoadConfig() Config {
	return Config{
		Port:        envutil.Str("PORT", "8000"),
		Environment: envutil.Str("ENVIRONMENT", "development"),

		DocLanguage: envutil.Str("DOC_LANGUAGE", "ru"),

		CacheTTL:           envutil.Duration("CACHE_TTL", 24*time.Hour),
		CacheMemCap:        envutil.Int("CACHE_MAX_SIZE", 1000),
		CacheMinConfidence: envutil.Float("CACHE_MIN_CONFIDENCE", 0.7),
		SweepInterval:      envutil.Duration("CACHE_SWEEP_INTERVAL", 10*time.Minute),

		SessionTTL: envutil.Duration("SESSION_TTL", 24*time.Hour),

		RetrievalTopK:       envutil.Int("RETRIEVAL_TOP_K", 5),
		ConfidenceThreshold: envutil.Float("CONFIDENCE_THRESHOLD", 0.75),
		HybridSearch:        envutil.Bool("HYBRID_SEARCH", true),

		MaxAttempts:      envutil.Int("MAX_ATTEMPTS", 3),
		EscalateOnLimit:  envutil.Bool("ESCALATE_ON_MAX_ATTEMPTS", true),
		MultiHopBudget:   envutil.Int("MULTIHOP_TOKEN_BUDGET", 5000),
		ExpanderVariants: envutil.Int("QUERY_EXPANSION_VARIANTS", 3),

		PoolSize:      envutil.Int("MODEL_POOL_SIZE", 0),
		IndexOnStart:  envutil.Bool("INDEX_ON_START", true),
		ProbeInterval: envutil.Duration("BACKEND_PROBE_INTERVAL", 30*time.Second),
	}
}
