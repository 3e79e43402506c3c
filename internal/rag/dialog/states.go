package dialog

// Dialog states. AWAITING_CLARIFICATION is entered by the
// clarification sub-dialogue and exits back to ANSWER_PROVIDED when
// the question list is exhausted.
const (
	StateInitial               = "INITIAL"
	StateAnswerProvided        = "ANSWER_PROVIDED"
	StateResolved              = "RESOLVED"
	StateEscalationNeeded      = "ESCALATION_NEEDED"
	StateEscalationRequested   = "ESCALATION_REQUESTED"
	StateAwaitingClarification = "AWAITING_CLARIFICATION"
	StateSafetyViolation       = "SAFETY_VIOLATION"
	StateBlocked               = "BLOCKED"
	StateLowConfidence         = "LOW_CONFIDENCE"
	StateStuckLoop             = "STUCK_LOOP"
)
