package app

import (
	"fmt"

	"github.com/faqbridge/faqbridge-backend/internal/observability"
	"github.com/faqbridge/faqbridge-backend/internal/platform/envutil"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/platform/models"
	"github.com/faqbridge/faqbridge-backend/internal/rag/cache"
	"github.com/faqbridge/faqbridge-backend/internal/rag/clarify"
	"github.com/faqbridge/faqbridge-backend/internal/rag/classify"
	"github.com/faqbridge/faqbridge-backend/internal/rag/dialog"
	"github.com/faqbridge/faqbridge-backend/internal/rag/generate"
	"github.com/faqbridge/faqbridge-backend/internal/rag/graph"
	"github.com/faqbridge/faqbridge-backend/internal/rag/guardrails"
	"github.com/faqbridge/faqbridge-backend/internal/rag/multihop"
	"github.com/faqbridge/faqbridge-backend/internal/rag/node"
	"github.com/faqbridge/faqbridge-backend/internal/rag/nodeconfig"
	"github.com/faqbridge/faqbridge-backend/internal/rag/nodes"
	"github.com/faqbridge/faqbridge-backend/internal/rag/retrieval"
	"github.com/faqbridge/faqbridge-backend/internal/rag/session"
	"github.com/faqbridge/faqbridge-backend/internal/rag/transform"
)

type Services struct {
	Metrics *observability.Metrics

	Cache    *cache.Manager
	Sweeper  *cache.Sweeper
	Sessions *session.Store

	Guardrails *guardrails.Engine
	Aggregator *transform.Aggregator
	Expander   *transform.Expander
	Classifier *classify.Classifier

	Searcher  *retrieval.Searcher
	Retrieval *retrieval.Pipeline
	Indexer   *retrieval.Indexer
	Resolver  *multihop.Resolver

	Clarify   *clarify.Manager
	Loops     *dialog.LoopDetector
	Machine   *dialog.Machine
	Generator *generate.Generator

	Graph *graph.Graph
}

func wireServices(log *logger.Logger, cfg Config, clients Clients, reposet Repos) (Services, error) {
	log.Info("Wiring services...")

	metrics := observability.NewMetrics()

	exact := cache.NewExactTier(log, clients.KV, metrics, cfg.CacheTTL, cfg.CacheMemCap)
	semantic := cache.NewSemanticTier(log, clients.Vectors, clients.AI, metrics, cache.SemanticConfig{
		TTL: cfg.CacheTTL,
	})
	cacheManager := cache.NewManager(log, exact, semantic, metrics, cfg.CacheMinConfidence)
	sweeper := cache.NewSweeper(log, semantic, cfg.SweepInterval)

	sessions := session.NewStore(log, clients.KV, cfg.SessionTTL)

	guardEngine := guardrails.NewEngine(log, guardrails.ConfigFromEnv())
	aggregator := transform.NewAggregator(log, clients.AI, envutil.Int("AGGREGATION_MAX_TURNS", 6))
	expander := transform.NewExpander(log, clients.AI, cfg.ExpanderVariants)
	classifier := classify.NewClassifier(log, clients.AI, reposet.Documents)

	searcher := retrieval.NewSearcher(log, clients.AI, clients.Vectors, reposet.Documents, "", cfg.RetrievalTopK)
	var reranker models.Reranker
	if clients.Reranker != nil {
		reranker = clients.Reranker
	}
	pipeline := retrieval.NewPipeline(log, searcher, expander, reranker, retrieval.PipelineConfig{
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		FinalTopK:           cfg.RetrievalTopK,
		Hybrid:              cfg.HybridSearch,
	})
	indexer := retrieval.NewIndexer(log, clients.AI, clients.Vectors, reposet.Documents, "", envutil.Int("INDEX_CONCURRENCY", 4))

	resolver := multihop.NewResolver(log, reposet.Documents, cfg.MultiHopBudget)
	clarifier := clarify.NewManager(log, clients.Translator)
	loops := dialog.NewLoopDetector(log, clients.AI, clients.Translator, dialog.LoopConfig{
		Window:      envutil.Int("LOOP_WINDOW", 4),
		Threshold:   envutil.Float("LOOP_THRESHOLD", 0.85),
		MinMessages: envutil.Int("LOOP_MIN_MESSAGES", 3),
	})
	machine := dialog.NewMachine(cfg.MaxAttempts, cfg.EscalateOnLimit)
	generator := generate.NewGenerator(log, clients.AI)

	registry, err := nodeconfig.LoadFromEnv(log)
	if err != nil {
		return Services{}, fmt.Errorf("load pipeline config: %w", err)
	}
	dispatcher := node.NewDispatcher(log, metrics, node.SettingsFromEnv())

	deps := nodes.Deps{
		Log:        log,
		Metrics:    metrics,
		Sessions:   sessions,
		Guardrails: guardEngine,
		Cache:      cacheManager,
		Aggregator: aggregator,
		Translator: clients.Translator,
		Classifier: classifier,
		Retrieval:  pipeline,
		Resolver:   resolver,
		Clarify:    clarifier,
		Loops:      loops,
		Machine:    machine,
		Generator:  generator,

		Messages:    reposet.Messages,
		Escalations: reposet.Escalations,
		Archives:    reposet.Archives,
		Profiles:    reposet.Profiles,

		DocLanguage: cfg.DocLanguage,
	}
	pipelineGraph, err := nodes.BuildDefaultGraph(deps, dispatcher, registry)
	if err != nil {
		return Services{}, fmt.Errorf("build pipeline graph: %w", err)
	}

	return Services{
		Metrics:    metrics,
		Cache:      cacheManager,
		Sweeper:    sweeper,
		Sessions:   sessions,
		Guardrails: guardEngine,
		Aggregator: aggregator,
		Expander:   expander,
		Classifier: classifier,
		Searcher:   searcher,
		Retrieval:  pipeline,
		Indexer:    indexer,
		Resolver:   resolver,
		Clarify:    clarifier,
		Loops:      loops,
		Machine:    machine,
		Generator:  generator,
		Graph:      pipelineGraph,
	}, nil
}
