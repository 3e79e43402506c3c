package nodes

import (
	"context"

	"github.com/faqbridge/faqbridge-backend/internal/rag/cache"
	"github.com/faqbridge/faqbridge-backend/internal/rag/generate"
	"github.com/faqbridge/faqbridge-backend/internal/rag/node"
	"github.com/faqbridge/faqbridge-backend/internal/rag/state"
)

// cacheCheckNode runs the two-tier lookup. A hit sets the answer and
// routing skips retrieval and generation; the semantic probe's
// embedding is kept on the bag so retrieval and the store path reuse
// it.
type cacheCheckNode struct {
	deps Deps
}

func NewCacheCheck(deps Deps) node.Node { return &cacheCheckNode{deps: deps} }

func (n *cacheCheckNode) Name() string { return "cache_check" }

func (n *cacheCheckNode) Contract() node.Contract {
	return node.NewContract().
		Require(state.KeyQuestion).
		Optional(state.KeyTranslatedQuery, state.KeyAggregatedQuery).
		Guarantee(state.KeyCacheHit, state.KeyCacheKey, state.KeyCacheReason).
		Conditional(state.KeyAnswer, state.KeySources, state.KeyQuestionEmbedding, state.KeyConfidence).
		Build()
}

func (n *cacheCheckNode) Run(ctx context.Context, in state.Bag) (state.Bag, error) {
	question := in.String(state.KeyQuestion)
	result := n.deps.Cache.Lookup(ctx, question, in.EffectiveQuery())

	out := state.Bag{
		state.KeyCacheHit:    result.Hit,
		state.KeyCacheKey:    result.Key,
		state.KeyCacheReason: result.Reason,
	}
	if len(result.Embedding) > 0 {
		out[state.KeyQuestionEmbedding] = result.Embedding
	}
	if result.Hit {
		out[state.KeyAnswer] = result.Answer
		out[state.KeySources] = result.DocIDs
	}
	return out, nil
}

// cacheStoreNode persists the generated answer after a miss. The
// confidence floor lives in the cache manager; this node only decides
// which answers are cacheable at all.
type cacheStoreNode struct {
	deps Deps
}

func NewCacheStore(deps Deps) node.Node { return &cacheStoreNode{deps: deps} }

func (n *cacheStoreNode) Name() string { return "cache_store" }

func (n *cacheStoreNode) Contract() node.Contract {
	return node.NewContract().
		Require(state.KeyQuestion).
		Optional(
			state.KeyAnswer,
			state.KeyTranslatedQuery,
			state.KeySources,
			state.KeyConfidence,
			state.KeyQuestionEmbedding,
			state.KeyCacheHit,
			state.KeyEscalationMessage,
			state.KeyGuardrailsBlocked,
		).
		Build()
}

func (n *cacheStoreNode) Run(ctx context.Context, in state.Bag) (state.Bag, error) {
	answer := in.String(state.KeyAnswer)
	switch {
	case answer == "" || answer == generate.DegradedAnswer:
		return state.Bag{}, nil
	case in.Bool(state.KeyCacheHit):
		return state.Bag{}, nil
	case in.Has(state.KeyEscalationMessage):
		return state.Bag{}, nil
	case in.Bool(state.KeyGuardrailsBlocked):
		return state.Bag{}, nil
	}

	err := n.deps.Cache.Store(ctx, cache.StoreInput{
		Question:        in.String(state.KeyQuestion),
		TranslatedQuery: in.String(state.KeyTranslatedQuery),
		Answer:          answer,
		DocIDs:          in.Strings(state.KeySources),
		Confidence:      in.Float(state.KeyConfidence),
		Embedding:       in.Vector(state.KeyQuestionEmbedding),
	})
	if err != nil {
		n.deps.Log.Warn("cache store failed", "error", err)
	}
	return state.Bag{}, nil
}
