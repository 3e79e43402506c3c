package app

import (
	"fmt"
	"runtime"

	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/platform/openai"
	"github.com/faqbridge/faqbridge-backend/internal/platform/qdrant"
	"github.com/faqbridge/faqbridge-backend/internal/platform/rediskv"
)

type Clients struct {
	KV      rediskv.Store
	Vectors qdrant.Store
	AI      *openai.Client
	Pool    *openai.Pool

	// Reranker is nil when RERANKER_URL is unset.
	Reranker   *openai.Reranker
	Translator *openai.Translator
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	kv, err := rediskv.NewFromEnv(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init redis: %w", err)
	}

	qcfg, err := qdrant.ResolveConfigFromEnv()
	if err != nil {
		return Clients{}, fmt.Errorf("qdrant config: %w", err)
	}
	vectors, err := qdrant.NewStore(log, qcfg)
	if err != nil {
		return Clients{}, fmt.Errorf("init qdrant: %w", err)
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4 * runtime.NumCPU()
		if poolSize > 32 {
			poolSize = 32
		}
	}
	pool := openai.NewPool(poolSize)

	aiCfg, err := openai.ResolveConfigFromEnv()
	if err != nil {
		return Clients{}, fmt.Errorf("model config: %w", err)
	}
	ai, err := openai.NewClient(log, aiCfg, pool)
	if err != nil {
		return Clients{}, fmt.Errorf("init model client: %w", err)
	}

	reranker, err := openai.NewRerankerFromEnv(log, pool)
	if err != nil {
		return Clients{}, fmt.Errorf("init reranker: %w", err)
	}

	return Clients{
		KV:         kv,
		Vectors:    vectors,
		AI:         ai,
		Pool:       pool,
		Reranker:   reranker,
		Translator: openai.NewTranslator(log, ai),
	}, nil
}
