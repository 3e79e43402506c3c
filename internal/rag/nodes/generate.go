package nodes

import (
	"context"
	"time"

	"github.com/faqbridge/faqbridge-backend/internal/rag/clarify"
	"github.com/faqbridge/faqbridge-backend/internal/rag/generate"
	"github.com/faqbridge/faqbridge-backend/internal/rag/node"
	"github.com/faqbridge/faqbridge-backend/internal/rag/state"
)

// generateNode produces the final answer from the retrieved context,
// or passes an escalation message through verbatim.
type generateNode struct {
	deps Deps
}

func NewGenerate(deps Deps) node.Node { return &generateNode{deps: deps} }

func (n *generateNode) Name() string { return "generate" }

func (n *generateNode) Contract() node.Contract {
	return node.NewContract().
		Require(state.KeyQuestion).
		Optional(
			state.KeyTranslatedQuery,
			state.KeyAggregatedQuery,
			state.KeyDocs,
			state.KeyMultiHopContext,
			state.KeyEscalationMessage,
			state.KeyConfidence,
			KeySession,
		).
		Guarantee(state.KeyAnswer).
		Conditional(state.KeyFallbackTriggered).
		Build()
}

func (n *generateNode) Run(ctx context.Context, in state.Bag) (state.Bag, error) {
	// The prompt asks about the same query retrieval ran with, not the
	// raw user phrasing the transforms may have rewritten.
	input := generate.Input{
		Query:             in.EffectiveQuery(),
		Docs:              in.Strings(state.KeyDocs),
		Context:           in.String(state.KeyMultiHopContext),
		EscalationMessage: in.String(state.KeyEscalationMessage),
	}
	if sess := sessionFrom(in); sess != nil {
		input.ClarificationAnswers = clarify.PromptContext(sess)
	}

	start := time.Now()
	result := n.deps.Generator.Generate(ctx, input)
	status := "ok"
	if result.Degraded {
		status = "degraded"
	}
	n.deps.Metrics.ObserveLLM("generation", status, time.Since(start))

	out := state.Bag{state.KeyAnswer: result.Answer}
	if result.Degraded {
		out[state.KeyFallbackTriggered] = true
	}
	return out, nil
}
