package nodes

import (
	"context"
	"strings"

	"github.com/faqbridge/faqbridge-backend/internal/rag/node"
	"github.com/faqbridge/faqbridge-backend/internal/rag/state"
	"github.com/faqbridge/faqbridge-backend/internal/rag/transform"
)

// languageNode detects the question language and translates it into
// the canonical document language when they differ. Translation
// failures leave the query untranslated; retrieval still works on the
// lexical leg.
type languageNode struct {
	deps Deps
}

func NewLanguage(deps Deps) node.Node { return &languageNode{deps: deps} }

func (n *languageNode) Name() string { return "language" }

func (n *languageNode) Contract() node.Contract {
	return node.NewContract().
		Require(state.KeyQuestion).
		Guarantee(state.KeyDetectedLanguage).
		Conditional(state.KeyTranslatedQuery).
		Build()
}

func (n *languageNode) Run(ctx context.Context, in state.Bag) (state.Bag, error) {
	question := in.String(state.KeyQuestion)
	detected := transform.DetectLanguage(question)
	out := state.Bag{state.KeyDetectedLanguage: detected}

	target := n.deps.DocLanguage
	if target == "" || strings.EqualFold(detected, target) {
		return out, nil
	}
	translated, err := n.deps.Translator.Translate(ctx, question, target)
	if err != nil {
		n.deps.Log.Warn("query translation failed", "error", err)
		return out, nil
	}
	if translated = strings.TrimSpace(translated); translated != "" {
		out[state.KeyTranslatedQuery] = translated
	}
	return out, nil
}

// aggregateNode rewrites follow-up questions into self-contained
// queries using the conversation history.
type aggregateNode struct {
	deps Deps
}

func NewAggregate(deps Deps) node.Node { return &aggregateNode{deps: deps} }

func (n *aggregateNode) Name() string { return "aggregate" }

func (n *aggregateNode) Contract() node.Contract {
	return node.NewContract().
		Require(state.KeyQuestion).
		Optional(state.KeyConversationHistory, state.KeyDetectedLanguage).
		Conditional(state.KeyAggregatedQuery).
		Build()
}

func (n *aggregateNode) Run(ctx context.Context, in state.Bag) (state.Bag, error) {
	question := in.String(state.KeyQuestion)
	history := in.History(state.KeyConversationHistory)

	rewritten := n.deps.Aggregator.Aggregate(ctx, question, history)
	if rewritten == "" || rewritten == question {
		return state.Bag{}, nil
	}
	return state.Bag{state.KeyAggregatedQuery: rewritten}, nil
}
