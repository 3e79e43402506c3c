package nodes

import (
	"context"
	"time"

	"github.com/faqbridge/faqbridge-backend/internal/rag/node"
	"github.com/faqbridge/faqbridge-backend/internal/rag/retrieval"
	"github.com/faqbridge/faqbridge-backend/internal/rag/state"
)

// classifyNode routes the query to a category and intent so dense
// search can filter by metadata.
type classifyNode struct {
	deps Deps
}

func NewClassify(deps Deps) node.Node { return &classifyNode{deps: deps} }

func (n *classifyNode) Name() string { return "classify" }

func (n *classifyNode) Contract() node.Contract {
	return node.NewContract().
		Require(state.KeyQuestion).
		Optional(state.KeyTranslatedQuery, state.KeyAggregatedQuery).
		Guarantee(state.KeyFilterUsed).
		Conditional(state.KeyMatchedCategory, state.KeyMatchedIntent).
		Build()
}

func (n *classifyNode) Run(ctx context.Context, in state.Bag) (state.Bag, error) {
	label := n.deps.Classifier.Classify(ctx, in.EffectiveQuery())

	out := state.Bag{state.KeyFilterUsed: label.Category != ""}
	if label.Category != "" {
		out[state.KeyMatchedCategory] = label.Category
	}
	if label.Intent != "" {
		out[state.KeyMatchedIntent] = label.Intent
	}
	return out, nil
}

// retrieveNode runs the probe-then-escalate retrieval pipeline. A
// backend failure degrades to an empty result set instead of failing
// the request; generation then answers from nothing and says so.
type retrieveNode struct {
	deps Deps
}

func NewRetrieve(deps Deps) node.Node { return &retrieveNode{deps: deps} }

func (n *retrieveNode) Name() string { return "retrieve" }

func (n *retrieveNode) Contract() node.Contract {
	return node.NewContract().
		Require(state.KeyQuestion).
		Optional(
			state.KeyTranslatedQuery,
			state.KeyAggregatedQuery,
			state.KeyConversationHistory,
			state.KeyMatchedCategory,
			state.KeyQuestionEmbedding,
			state.KeyDetectedLanguage,
		).
		Guarantee(state.KeyDocs, state.KeyScores, state.KeyConfidence).
		Conditional(
			state.KeySources,
			state.KeyBestDocMetadata,
			state.KeyRerankScores,
			state.KeyFallbackTriggered,
			state.KeyExpandedQueries,
		).
		Build()
}

func (n *retrieveNode) Run(ctx context.Context, in state.Bag) (state.Bag, error) {
	opts := retrieval.SearchOptions{
		Category: in.String(state.KeyMatchedCategory),
		Language: in.String(state.KeyDetectedLanguage),
		Hybrid:   true,
		Vector:   in.Vector(state.KeyQuestionEmbedding),
	}

	start := time.Now()
	result, err := n.deps.Retrieval.Retrieve(ctx, in.EffectiveQuery(), in.History(state.KeyConversationHistory), opts)
	n.deps.Metrics.ObserveRetrieval("pipeline", time.Since(start))
	if err != nil {
		n.deps.Log.Warn("retrieval failed, answering without documents", "error", err)
		return state.Bag{
			state.KeyDocs:              []string{},
			state.KeyScores:            []float64{},
			state.KeyConfidence:        0.0,
			state.KeyFallbackTriggered: true,
		}, nil
	}

	// An empty result under a category filter usually means the
	// classifier picked the wrong bucket; retry once without it.
	filterFallback := false
	if len(result.Docs) == 0 && opts.Category != "" {
		opts.Category = ""
		if unfiltered, retryErr := n.deps.Retrieval.Retrieve(ctx, in.EffectiveQuery(), in.History(state.KeyConversationHistory), opts); retryErr == nil {
			result = unfiltered
			filterFallback = true
		}
	}
	n.deps.Metrics.FusedDocs(len(result.Docs))

	docs := make([]string, 0, len(result.Docs))
	sources := make([]string, 0, len(result.Docs))
	for _, doc := range result.Docs {
		docs = append(docs, doc.Content)
		sources = append(sources, doc.ID)
	}

	out := state.Bag{
		state.KeyDocs:       docs,
		state.KeyScores:     result.Scores,
		state.KeyConfidence: result.Confidence,
		state.KeySources:    sources,
	}
	if filterFallback {
		out[state.KeyFallbackTriggered] = true
	}
	if len(result.Docs) > 0 && result.Docs[0].Metadata != nil {
		out[state.KeyBestDocMetadata] = result.Docs[0].Metadata
	}
	if !result.ShortCircuited {
		out[state.KeyRerankScores] = result.Scores
	}
	if len(result.Queries) > 1 {
		out[state.KeyExpandedQueries] = result.Queries
	}
	return out, nil
}

// multihopNode widens the context for compound questions by pulling in
// graph-related documents under the token budget.
type multihopNode struct {
	deps Deps
}

func NewMultiHop(deps Deps) node.Node { return &multihopNode{deps: deps} }

func (n *multihopNode) Name() string { return "multihop" }

func (n *multihopNode) Contract() node.Contract {
	return node.NewContract().
		Require(state.KeyQuestion).
		Optional(state.KeyDocs, state.KeyScores, state.KeySources, state.KeyBestDocMetadata).
		Guarantee(state.KeyMultiHopContext, state.KeyContextTruncated).
		Conditional(state.KeySources).
		Build()
}

func (n *multihopNode) Run(ctx context.Context, in state.Bag) (state.Bag, error) {
	result := n.deps.Resolver.Resolve(ctx, in.String(state.KeyQuestion), docsFrom(in))

	out := state.Bag{
		state.KeyMultiHopContext:  result.Context,
		state.KeyContextTruncated: result.Truncated,
	}
	if len(result.DocIDs) > len(in.Strings(state.KeySources)) {
		out[state.KeySources] = result.DocIDs
	}
	return out, nil
}
