package retrieval

import (
	"context"

	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/platform/models"
	"github.com/faqbridge/faqbridge-backend/internal/rag/state"
	"github.com/faqbridge/faqbridge-backend/internal/rag/transform"
)

type PipelineConfig struct {
	// ConfidenceThreshold short-circuits expansion and reranking when
	// the probe already found a confident dense match.
	ConfidenceThreshold float64
	FinalTopK           int
	TopKRerank          int
	Hybrid              bool
}

// Result is what the retrieval stage hands to generation. Scores run
// parallel to Docs, non-increasing, on a [0,1] confidence scale:
// cosine similarity on the probe path, cross-encoder scores after a
// rerank, normalized fusion scores otherwise.
type Result struct {
	Docs           []Doc
	Scores         []float64
	Confidence     float64
	ShortCircuited bool
	Queries        []string
}

// Pipeline is probe-then-escalate retrieval: a dense probe with the
// original query first, and only on a weak probe the expensive path of
// query expansion, fan-out hybrid retrieval, fusion, and reranking.
type Pipeline struct {
	log      *logger.Logger
	searcher *Searcher
	expander *transform.Expander
	reranker models.Reranker

	cfg PipelineConfig
}

// NewPipeline wires the stage. expander and reranker may be nil, which
// disables expansion and cross-encoder scoring respectively.
func NewPipeline(log *logger.Logger, searcher *Searcher, expander *transform.Expander, reranker models.Reranker, cfg PipelineConfig) *Pipeline {
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.75
	}
	if cfg.FinalTopK <= 0 {
		cfg.FinalTopK = 5
	}
	if cfg.TopKRerank <= 0 {
		cfg.TopKRerank = cfg.FinalTopK
	}
	return &Pipeline{
		log:      log.With("component", "RetrievalPipeline"),
		searcher: searcher,
		expander: expander,
		reranker: reranker,
		cfg:      cfg,
	}
}

func (p *Pipeline) Retrieve(ctx context.Context, query string, history []state.Turn, opts SearchOptions) (Result, error) {
	if opts.TopK <= 0 {
		opts.TopK = p.cfg.FinalTopK
	}
	opts.Hybrid = opts.Hybrid || p.cfg.Hybrid

	probe, err := p.searcher.DenseSearch(ctx, query, opts)
	if err != nil {
		p.log.Warn("probe failed, continuing with full retrieval", "error", err)
	}
	if len(probe) > 0 && probe[0].Score >= p.cfg.ConfidenceThreshold {
		if len(probe) > p.cfg.FinalTopK {
			probe = probe[:p.cfg.FinalTopK]
		}
		scores := make([]float64, len(probe))
		for i, doc := range probe {
			scores[i] = doc.Score
		}
		return Result{
			Docs:           probe,
			Scores:         scores,
			Confidence:     scores[0],
			ShortCircuited: true,
			Queries:        []string{query},
		}, nil
	}

	queries := []string{query}
	if p.expander != nil {
		expanded := p.expander.Expand(ctx, query, history)
		if len(expanded.Queries) > 0 {
			queries = expanded.Queries
		}
	}

	// Fan out one dense+lexical pair per candidate query. The probe
	// embedding only matches the original query, so variants re-embed.
	var lists [][]Doc
	var lastErr error
	for i, q := range queries {
		legOpts := opts
		if i > 0 {
			legOpts.Vector = nil
		}
		legs, err := p.searcher.Retrieve(ctx, q, legOpts)
		if err != nil {
			lastErr = err
			continue
		}
		lists = append(lists, legs...)
	}
	if len(lists) == 0 {
		if lastErr != nil {
			return Result{}, lastErr
		}
		return Result{Queries: queries}, nil
	}

	fused := Fuse(lists, p.cfg.FinalTopK)
	if p.reranker != nil && len(fused.Docs) > 0 {
		if reranked, ok := p.rerank(ctx, query, fused.Docs); ok {
			reranked.Queries = queries
			return reranked, nil
		}
	}

	scores := make([]float64, len(fused.Scores))
	for i, s := range fused.Scores {
		scores[i] = normalizeFusedScore(s, len(lists))
	}
	out := Result{Docs: fused.Docs, Scores: scores, Queries: queries}
	if len(scores) > 0 {
		out.Confidence = scores[0]
	}
	for i := range out.Docs {
		out.Docs[i].Score = scores[i]
	}
	return out, nil
}

// rerank scores (query, doc) pairs with the cross-encoder. A reranker
// failure keeps the fused order.
func (p *Pipeline) rerank(ctx context.Context, query string, docs []Doc) (Result, bool) {
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}
	ranked, err := p.reranker.Rank(ctx, query, texts)
	if err != nil {
		p.log.Warn("rerank failed, keeping fused order", "error", err)
		return Result{}, false
	}

	limit := p.cfg.TopKRerank
	if limit > len(ranked) {
		limit = len(ranked)
	}
	out := Result{
		Docs:   make([]Doc, 0, limit),
		Scores: make([]float64, 0, limit),
	}
	for _, r := range ranked[:limit] {
		if r.Index < 0 || r.Index >= len(docs) {
			continue
		}
		doc := docs[r.Index]
		doc.Score = r.Score
		out.Docs = append(out.Docs, doc)
		out.Scores = append(out.Scores, r.Score)
	}
	if len(out.Scores) > 0 {
		out.Confidence = out.Scores[0]
	}
	return out, true
}

// normalizeFusedScore maps a raw fusion score onto [0,1] so downstream
// confidence gates see a comparable value. The maximum attainable raw
// score is rank 1 in every list.
func normalizeFusedScore(score float64, lists int) float64 {
	if lists <= 0 {
		return 0
	}
	max := float64(lists) / float64(rrfK+1)
	if max <= 0 {
		return 0
	}
	v := score / max
	if v > 1 {
		v = 1
	}
	return v
}
