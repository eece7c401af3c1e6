package governance

// ExecutionStepState is the per-message sub-state machine driven by the
// Dispatcher. Mirrors ExecutionStepState in
// original_source/rs/nx-gov-main/src/proposal.rs.
type ExecutionStepState uint8

const (
	// StepNotStarted is the zero value: no suspension point reached yet.
	StepNotStarted ExecutionStepState = iota
	// StepPreValidating is in flight on the pre-validate remote call.
	StepPreValidating
	// StepPreValidateCallError is terminal: the pre-validate call itself failed.
	StepPreValidateCallError
	// StepPreValidateFailed is terminal: pre-validate returned false.
	StepPreValidateFailed
	// StepExecuting is in flight on the main message remote call.
	StepExecuting
	// StepExecutionCallError is terminal: the main call itself failed.
	StepExecutionCallError
	// StepPostValidating is in flight on the post-validate remote call.
	StepPostValidating
	// StepPostValidateCallError is terminal: the post-validate call itself failed.
	StepPostValidateCallError
	// StepPostValidateFailed is terminal: post-validate returned false.
	StepPostValidateFailed
	// StepSucceeded is terminal: the message fully succeeded.
	StepSucceeded
)

func (s ExecutionStepState) String() string {
	switch s {
	case StepNotStarted:
		return "NotStarted"
	case StepPreValidating:
		return "PreValidating"
	case StepPreValidateCallError:
		return "PreValidateCallError"
	case StepPreValidateFailed:
		return "PreValidateFailed"
	case StepExecuting:
		return "Executing"
	case StepExecutionCallError:
		return "ExecutionCallError"
	case StepPostValidating:
		return "PostValidating"
	case StepPostValidateCallError:
		return "PostValidateCallError"
	case StepPostValidateFailed:
		return "PostValidateFailed"
	case StepSucceeded:
		return "Succeeded"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether the sub-state is one of the five error leaves
// or Succeeded.
func (s ExecutionStepState) IsTerminal() bool {
	switch s {
	case StepPreValidateCallError, StepPreValidateFailed, StepExecutionCallError,
		StepPostValidateCallError, StepPostValidateFailed, StepSucceeded:
		return true
	default:
		return false
	}
}

// stepTransitions enumerates the permitted next sub-states for each
// sub-state, matching ExecutionStep::state_transition in proposal.rs.
var stepTransitions = map[ExecutionStepState]map[ExecutionStepState]bool{
	StepNotStarted: {
		StepPreValidating: true,
	},
	StepPreValidating: {
		StepPreValidateCallError: true,
		StepPreValidateFailed:    true,
		StepExecuting:            true,
	},
	StepExecuting: {
		StepExecutionCallError: true,
		StepPostValidating:     true,
	},
	StepPostValidating: {
		StepPostValidateCallError: true,
		StepPostValidateFailed:    true,
		StepSucceeded:             true,
	},
}

// ExecutionStep carries the sub-state machine instance for one message
// within a proposal's payload. Mirrors ExecutionStep in proposal.rs.
type ExecutionStep struct {
	Step  uint8              `json:"step"`
	State ExecutionStepState `json:"state"`
}

// NewExecutionStep builds a fresh sub-state machine instance for the given
// message index, starting at NotStarted.
func NewExecutionStep(step uint8) ExecutionStep {
	return ExecutionStep{Step: step, State: StepNotStarted}
}

// StateTransition advances the sub-state machine, returning the prior
// sub-state on success or ErrStateTransition wrapped if the transition is
// not permitted from the current sub-state.
func (e *ExecutionStep) StateTransition(next ExecutionStepState) (ExecutionStepState, error) {
	allowed, ok := stepTransitions[e.State]
	if !ok || !allowed[next] {
		return e.State, ErrStateTransition
	}
	prev := e.State
	e.State = next
	return prev, nil
}
