package nodes

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/faqbridge/faqbridge-backend/internal/domain/kb"
	"github.com/faqbridge/faqbridge-backend/internal/rag/dialog"
	"github.com/faqbridge/faqbridge-backend/internal/rag/node"
	"github.com/faqbridge/faqbridge-backend/internal/rag/session"
	"github.com/faqbridge/faqbridge-backend/internal/rag/state"
)

const (
	escalationRequestedMessage = "Соединяю вас с оператором. Пожалуйста, подождите."
	escalationNeededMessage    = "Передаю ваш вопрос специалисту. С вами свяжутся в ближайшее время."
	stuckLoopMessage           = "Похоже, мой ответ не решает вашу проблему. Передаю вопрос оператору."
)

// dialogNode derives the turn signals and advances the state machine.
// An escalating transition sets the escalation message and records the
// handoff.
type dialogNode struct {
	deps Deps
}

func NewDialog(deps Deps) node.Node { return &dialogNode{deps: deps} }

func (n *dialogNode) Name() string { return "dialog" }

func (n *dialogNode) Contract() node.Contract {
	return node.NewContract().
		Require(state.KeyQuestion, KeySession).
		Optional(state.KeyDialogState, state.KeyAttemptCount).
		Guarantee(state.KeyDialogState, state.KeyAttemptCount, state.KeyDialogAnalysis).
		Conditional(state.KeyEscalationMessage).
		Build()
}

func (n *dialogNode) Run(ctx context.Context, in state.Bag) (state.Bag, error) {
	question := in.String(state.KeyQuestion)
	sess := sessionFrom(in)

	analysis := dialog.Analyze(question, sess)
	transition := n.deps.Machine.Next(in.String(state.KeyDialogState), analysis, in.Int(state.KeyAttemptCount))
	n.deps.Metrics.DialogTransition(transition.State)

	if sess != nil {
		sess.DialogState = transition.State
		sess.AttemptCount = transition.AttemptCount
	}

	out := state.Bag{
		state.KeyDialogState:    transition.State,
		state.KeyAttemptCount:   transition.AttemptCount,
		state.KeyDialogAnalysis: analysis.Map(),
	}
	switch transition.State {
	case dialog.StateEscalationRequested:
		out[state.KeyEscalationMessage] = escalationRequestedMessage
		n.recordEscalation(ctx, sess, question, "user_requested")
	case dialog.StateEscalationNeeded:
		out[state.KeyEscalationMessage] = escalationNeededMessage
		reason := "max_attempts"
		if analysis.FrustrationDetected {
			reason = "frustration"
		}
		n.recordEscalation(ctx, sess, question, reason)
	}
	return out, nil
}

func (n *dialogNode) recordEscalation(ctx context.Context, sess *session.UserSession, question, reason string) {
	n.deps.Metrics.Escalation(reason)
	if n.deps.Escalations == nil || sess == nil {
		return
	}
	contextJSON, _ := json.Marshal(map[string]any{
		"attempt_count":   sess.AttemptCount,
		"current_problem": sess.CurrentProblem,
	})
	err := n.deps.Escalations.Create(ctx, &kb.Escalation{
		SessionID: sess.SessionID,
		UserID:    sess.UserID,
		Reason:    reason,
		Question:  question,
		Context:   datatypes.JSON(contextJSON),
	})
	if err != nil {
		n.deps.Log.Warn("escalation record failed", "error", err)
	}
}

// loopNode flags a user circling the same topic and escalates the
// conversation out of the loop.
type loopNode struct {
	deps Deps
}

func NewLoopDetect(deps Deps) node.Node { return &loopNode{deps: deps} }

func (n *loopNode) Name() string { return "loop_detect" }

func (n *loopNode) Contract() node.Contract {
	return node.NewContract().
		Require(state.KeyQuestion, KeySession).
		Optional(state.KeyDetectedLanguage).
		Guarantee(state.KeyTopicLoopDetected, state.KeySimilarMessages).
		Conditional(state.KeyDialogState, state.KeyEscalationMessage).
		Build()
}

func (n *loopNode) Run(ctx context.Context, in state.Bag) (state.Bag, error) {
	sess := sessionFrom(in)
	var recent []session.Message
	if sess != nil {
		recent = sess.RecentUserMessages(8)
	}

	result := n.deps.Loops.Detect(ctx, in.String(state.KeyQuestion), in.String(state.KeyDetectedLanguage), recent)
	out := state.Bag{
		state.KeyTopicLoopDetected: result.LoopDetected,
		state.KeySimilarMessages:   result.SimilarCount,
	}
	if !result.LoopDetected {
		return out, nil
	}

	if sess != nil {
		sess.DialogState = dialog.StateStuckLoop
	}
	out[state.KeyDialogState] = dialog.StateStuckLoop
	out[state.KeyEscalationMessage] = stuckLoopMessage
	n.recordLoopEscalation(ctx, sess, in.String(state.KeyQuestion), result)
	return out, nil
}

func (n *loopNode) recordLoopEscalation(ctx context.Context, sess *session.UserSession, question string, result dialog.LoopResult) {
	n.deps.Metrics.Escalation("stuck_loop")
	if n.deps.Escalations == nil || sess == nil {
		return
	}
	contextJSON, _ := json.Marshal(map[string]any{
		"similar_messages": result.SimilarCount,
		"confidence":       result.Confidence,
	})
	err := n.deps.Escalations.Create(ctx, &kb.Escalation{
		SessionID: sess.SessionID,
		UserID:    sess.UserID,
		Reason:    "stuck_loop",
		Question:  question,
		Context:   datatypes.JSON(contextJSON),
	})
	if err != nil {
		n.deps.Log.Warn("escalation record failed", "error", err)
	}
}
