package nodes

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/faqbridge/faqbridge-backend/internal/domain/kb"
	"github.com/faqbridge/faqbridge-backend/internal/rag/dialog"
	"github.com/faqbridge/faqbridge-backend/internal/rag/node"
	"github.com/faqbridge/faqbridge-backend/internal/rag/session"
	"github.com/faqbridge/faqbridge-backend/internal/rag/state"
)

// sessionLoadNode resolves the user's session and seeds the dialog
// fields. A store failure degrades to a fresh in-memory session so the
// request still gets an answer.
type sessionLoadNode struct {
	deps Deps
}

func NewSessionLoad(deps Deps) node.Node { return &sessionLoadNode{deps: deps} }

func (n *sessionLoadNode) Name() string { return "session_load" }

func (n *sessionLoadNode) Contract() node.Contract {
	return node.NewContract().
		Require(state.KeyQuestion).
		Optional(state.KeyUserID, state.KeySessionID, state.KeyConversationHistory).
		Guarantee(KeySession, state.KeySessionID, state.KeyDialogState, state.KeyAttemptCount).
		Conditional(state.KeyConversationHistory).
		Build()
}

func (n *sessionLoadNode) Run(ctx context.Context, in state.Bag) (state.Bag, error) {
	sess, err := n.deps.Sessions.GetOrCreate(ctx, in.String(state.KeyUserID), in.String(state.KeySessionID))
	if err != nil || sess == nil {
		n.deps.Log.Warn("session store unavailable, using transient session", "error", err)
		sess = &session.UserSession{
			UserID:      in.String(state.KeyUserID),
			SessionID:   uuid.NewString(),
			DialogState: dialog.StateInitial,
		}
	}

	out := state.Bag{
		KeySession:            sess,
		state.KeySessionID:    sess.SessionID,
		state.KeyDialogState:  sess.DialogState,
		state.KeyAttemptCount: sess.AttemptCount,
	}
	if !in.Has(state.KeyConversationHistory) && len(sess.RecentMessages) > 0 {
		turns := make([]state.Turn, 0, len(sess.RecentMessages))
		for _, msg := range sess.RecentMessages {
			turns = append(turns, state.Turn{
				Role:         msg.Role,
				Content:      msg.Content,
				Timestamp:    msg.Timestamp,
				TranslatedEn: msg.TranslatedEn,
			})
		}
		out[state.KeyConversationHistory] = turns
	}
	return out, nil
}

// sessionSaveNode is the terminal stage: it folds the request outcome
// back into the session, persists the turn to Postgres, and mints the
// response query id.
type sessionSaveNode struct {
	deps Deps
}

func NewSessionSave(deps Deps) node.Node { return &sessionSaveNode{deps: deps} }

func (n *sessionSaveNode) Name() string { return "session_save" }

func (n *sessionSaveNode) Contract() node.Contract {
	return node.NewContract().
		Require(state.KeyQuestion, KeySession).
		Optional(
			state.KeyAnswer,
			state.KeyDialogState,
			state.KeyAttemptCount,
			state.KeyConfidence,
			state.KeyDetectedLanguage,
			state.KeyDialogAnalysis,
			state.KeySources,
			state.KeyGuardrailsBlocked,
		).
		Guarantee(state.KeyQueryID).
		Build()
}

func (n *sessionSaveNode) Run(ctx context.Context, in state.Bag) (state.Bag, error) {
	queryID := uuid.NewString()
	sess := sessionFrom(in)
	if sess == nil {
		return state.Bag{state.KeyQueryID: queryID}, nil
	}

	question := in.String(state.KeyQuestion)
	answer := in.String(state.KeyAnswer)

	if ds := in.String(state.KeyDialogState); ds != "" {
		sess.DialogState = ds
	}
	if in.Has(state.KeyAttemptCount) {
		sess.AttemptCount = in.Int(state.KeyAttemptCount)
	}
	if in.Has(state.KeyConfidence) {
		sess.LastAnswerConfidence = in.Float(state.KeyConfidence)
	}
	if analysis := in.Map(state.KeyDialogAnalysis); analysis != nil {
		if isQuestion, ok := analysis["is_question"].(bool); ok && isQuestion {
			sess.CurrentProblem = question
		}
	}

	userMsg := session.Message{Role: "user", Content: question}
	// The loop detector reuses stored English forms; only an English
	// turn is known to be its own translation.
	if strings.EqualFold(in.String(state.KeyDetectedLanguage), "en") {
		userMsg.TranslatedEn = question
	}
	sess.AppendMessage(userMsg)
	if answer != "" {
		sess.AppendMessage(session.Message{Role: "assistant", Content: answer})
	}

	if err := n.deps.Sessions.Save(ctx, sess); err != nil {
		n.deps.Log.Warn("session save failed", "error", err, "session_id", sess.SessionID)
	}
	n.persistTurn(ctx, sess, question, answer, in)
	n.archive(ctx, sess)
	n.rememberLanguage(ctx, sess, in.String(state.KeyDetectedLanguage))

	return state.Bag{state.KeyQueryID: queryID}, nil
}

// rememberLanguage keeps the user's last detected language so future
// sessions can default to it before the detector has seen any text.
func (n *sessionSaveNode) rememberLanguage(ctx context.Context, sess *session.UserSession, lang string) {
	if n.deps.Profiles == nil || sess.UserID == "" || lang == "" {
		return
	}
	err := n.deps.Profiles.Upsert(ctx, &kb.UserProfile{
		UserID:     sess.UserID,
		Language:   lang,
		Attributes: datatypes.JSON(`{}`),
	})
	if err != nil {
		n.deps.Log.Warn("profile upsert failed", "error", err, "user_id", sess.UserID)
	}
}

// persistTurn appends the exchange to the messages table. Best effort;
// the durable log must never fail the request.
func (n *sessionSaveNode) persistTurn(ctx context.Context, sess *session.UserSession, question, answer string, in state.Bag) {
	if n.deps.Messages == nil {
		return
	}
	meta := map[string]any{}
	if sources := in.Strings(state.KeySources); len(sources) > 0 {
		meta["sources"] = sources
	}
	if in.Bool(state.KeyGuardrailsBlocked) {
		meta["guardrails_blocked"] = true
	}
	metaJSON, _ := json.Marshal(meta)

	rows := []*kb.StoredMessage{{
		SessionID: sess.SessionID,
		UserID:    sess.UserID,
		Role:      "user",
		Content:   question,
		Meta:      datatypes.JSON(`{}`),
	}}
	if answer != "" {
		rows = append(rows, &kb.StoredMessage{
			SessionID: sess.SessionID,
			UserID:    sess.UserID,
			Role:      "assistant",
			Content:   answer,
			Meta:      datatypes.JSON(metaJSON),
		})
	}
	for _, row := range rows {
		if err := n.deps.Messages.Append(ctx, row); err != nil {
			n.deps.Log.Warn("message log append failed", "error", err)
			return
		}
	}
}

func (n *sessionSaveNode) archive(ctx context.Context, sess *session.UserSession) {
	if n.deps.Archives == nil {
		return
	}
	snapshot, err := json.Marshal(sess)
	if err != nil {
		return
	}
	archiveErr := n.deps.Archives.Save(ctx, &kb.SessionArchive{
		SessionID:    sess.SessionID,
		UserID:       sess.UserID,
		State:        sess.DialogState,
		MessageCount: sess.MessageCount,
		Snapshot:     datatypes.JSON(snapshot),
		StartedAt:    sess.StartTime,
	})
	if archiveErr != nil {
		n.deps.Log.Warn("session archive failed", "error", archiveErr)
	}
}
