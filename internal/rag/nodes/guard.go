package nodes

import (
	"context"

	"github.com/faqbridge/faqbridge-backend/internal/rag/dialog"
	"github.com/faqbridge/faqbridge-backend/internal/rag/guardrails"
	"github.com/faqbridge/faqbridge-backend/internal/rag/node"
	"github.com/faqbridge/faqbridge-backend/internal/rag/state"
)

// inputGuardNode screens the question before any model or store is
// touched. A block sets the fixed refusal as the answer and routes the
// request straight to the save stage.
type inputGuardNode struct {
	deps Deps
}

func NewInputGuard(deps Deps) node.Node { return &inputGuardNode{deps: deps} }

func (n *inputGuardNode) Name() string { return "guardrails_input" }

func (n *inputGuardNode) Contract() node.Contract {
	return node.NewContract().
		Require(state.KeyQuestion).
		Guarantee(state.KeyGuardrailsBlocked, state.KeyGuardrailsRisk, state.KeyGuardrailsTriggered).
		Conditional(state.KeyQuestion, state.KeyAnswer, state.KeyDialogState).
		Build()
}

func (n *inputGuardNode) Run(ctx context.Context, in state.Bag) (state.Bag, error) {
	res := n.deps.Guardrails.ScanInput(in.String(state.KeyQuestion))
	n.deps.Metrics.GuardrailEvent("input", string(res.Decision))

	out := state.Bag{
		state.KeyGuardrailsBlocked:   res.Blocked(),
		state.KeyGuardrailsRisk:      res.RiskScore,
		state.KeyGuardrailsTriggered: res.Triggered,
	}
	switch res.Decision {
	case guardrails.DecisionBlock:
		out[state.KeyAnswer] = guardrails.BlockedMessage
		out[state.KeyDialogState] = dialog.StateSafetyViolation
	case guardrails.DecisionSanitize:
		out[state.KeyQuestion] = res.Text
	}
	return out, nil
}

// outputGuardNode screens the generated answer before it leaves the
// service.
type outputGuardNode struct {
	deps Deps
}

func NewOutputGuard(deps Deps) node.Node { return &outputGuardNode{deps: deps} }

func (n *outputGuardNode) Name() string { return "guardrails_output" }

func (n *outputGuardNode) Contract() node.Contract {
	return node.NewContract().
		Optional(state.KeyAnswer).
		Conditional(
			state.KeyAnswer,
			state.KeyDialogState,
			state.KeyGuardrailsBlocked,
			state.KeyGuardrailsRisk,
			state.KeyGuardrailsTriggered,
		).
		Build()
}

func (n *outputGuardNode) Run(ctx context.Context, in state.Bag) (state.Bag, error) {
	answer := in.String(state.KeyAnswer)
	if answer == "" {
		return state.Bag{}, nil
	}

	res := n.deps.Guardrails.ScanOutput(answer)
	n.deps.Metrics.GuardrailEvent("output", string(res.Decision))

	out := state.Bag{}
	switch res.Decision {
	case guardrails.DecisionBlock:
		out[state.KeyAnswer] = guardrails.BlockedMessage
		out[state.KeyDialogState] = dialog.StateBlocked
		out[state.KeyGuardrailsBlocked] = true
		out[state.KeyGuardrailsRisk] = res.RiskScore
		out[state.KeyGuardrailsTriggered] = res.Triggered
	case guardrails.DecisionSanitize:
		out[state.KeyAnswer] = res.Text
		out[state.KeyGuardrailsRisk] = res.RiskScore
		out[state.KeyGuardrailsTriggered] = res.Triggered
	}
	return out, nil
}
