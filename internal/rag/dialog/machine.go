package dialog

// Machine applies the priority transition rules. Rules are evaluated
// top down; the first matching signal decides the target state.
type Machine struct {
	maxAttempts           int
	escalateOnMaxAttempts bool
}

func NewMachine(maxAttempts int, escalateOnMaxAttempts bool) *Machine {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Machine{
		maxAttempts:           maxAttempts,
		escalateOnMaxAttempts: escalateOnMaxAttempts,
	}
}

// Transition is the state-machine outcome for one turn.
type Transition struct {
	State        string
	AttemptCount int
}

// Next computes the target state and the updated attempt counter. The
// attempt counter never decreases within an active problem; it resets
// only when a new problem starts from INITIAL or RESOLVED.
func (m *Machine) Next(current string, a Analysis, attemptCount int) Transition {
	next := Transition{State: current, AttemptCount: attemptCount}

	switch {
	case a.EscalationRequested:
		next.State = StateEscalationRequested
	case a.IsGratitude:
		next.State = StateResolved
	case a.FrustrationDetected:
		next.State = StateEscalationNeeded
	case a.RepeatedQuestion:
		next.State = StateAnswerProvided
		next.AttemptCount = attemptCount + 1
	case a.IsQuestion:
		next.State = StateAnswerProvided
		switch current {
		case StateInitial, StateResolved:
			next.AttemptCount = 1
		case StateAnswerProvided:
			next.AttemptCount = attemptCount + 1
		}
	}

	if m.escalateOnMaxAttempts && next.AttemptCount > m.maxAttempts &&
		next.State == StateAnswerProvided {
		next.State = StateEscalationNeeded
	}
	return next
}

func (m *Machine) MaxAttempts() int { return m.maxAttempts }
