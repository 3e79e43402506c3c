package nodes

import (
	"context"

	"github.com/faqbridge/faqbridge-backend/internal/rag/node"
	"github.com/faqbridge/faqbridge-backend/internal/rag/state"
)

// clarifyAdvanceNode consumes the turn when a clarifying sub-dialogue
// is active: the user's message answers the pending question and the
// node either emits the next question or closes the loop with an
// empty answer.
type clarifyAdvanceNode struct {
	deps Deps
}

func NewClarifyAdvance(deps Deps) node.Node { return &clarifyAdvanceNode{deps: deps} }

func (n *clarifyAdvanceNode) Name() string { return "clarify_advance" }

func (n *clarifyAdvanceNode) Contract() node.Contract {
	return node.NewContract().
		Require(state.KeyQuestion, KeySession).
		Conditional(state.KeyAnswer, state.KeyDialogState, KeyClarificationHandled).
		Build()
}

func (n *clarifyAdvanceNode) Run(ctx context.Context, in state.Bag) (state.Bag, error) {
	sess := sessionFrom(in)
	outcome, handled := n.deps.Clarify.Advance(ctx, sess, in.String(state.KeyQuestion))
	if !handled {
		return state.Bag{}, nil
	}

	out := state.Bag{
		state.KeyDialogState:    outcome.State,
		KeyClarificationHandled: true,
	}
	// An active turn carries the next question; completion returns an
	// empty answer by design so the client prompts for the real query.
	out[state.KeyAnswer] = outcome.Answer
	return out, nil
}

// clarifyBeginNode starts a sub-dialogue when the best retrieved
// document carries clarifying questions.
type clarifyBeginNode struct {
	deps Deps
}

func NewClarifyBegin(deps Deps) node.Node { return &clarifyBeginNode{deps: deps} }

func (n *clarifyBeginNode) Name() string { return "clarify_begin" }

func (n *clarifyBeginNode) Contract() node.Contract {
	return node.NewContract().
		Require(KeySession).
		Optional(state.KeyBestDocMetadata, state.KeySources, state.KeyDetectedLanguage).
		Conditional(state.KeyAnswer, state.KeyDialogState, KeyClarificationHandled).
		Build()
}

func (n *clarifyBeginNode) Run(ctx context.Context, in state.Bag) (state.Bag, error) {
	meta := in.Map(state.KeyBestDocMetadata)
	questions := clarifyingQuestions(meta)
	if len(questions) == 0 {
		return state.Bag{}, nil
	}

	docID := ""
	if sources := in.Strings(state.KeySources); len(sources) > 0 {
		docID = sources[0]
	}
	requiresHandoff, _ := meta["requires_handoff"].(bool)

	outcome, started := n.deps.Clarify.Begin(
		ctx,
		sessionFrom(in),
		docID,
		questions,
		requiresHandoff,
		in.String(state.KeyDetectedLanguage),
	)
	if !started {
		return state.Bag{}, nil
	}
	return state.Bag{
		state.KeyAnswer:         outcome.Answer,
		state.KeyDialogState:    outcome.State,
		KeyClarificationHandled: true,
	}, nil
}

func clarifyingQuestions(meta map[string]any) []string {
	raw, ok := meta["clarifying_questions"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
