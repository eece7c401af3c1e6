package governance

// ProposalStateKind enumerates the top-level proposal states. Mirrors
// ProposalState in original_source/rs/nx-gov-main/src/proposal.rs. The Rust
// enum carries an ExecutionStep payload on four variants (Executing, Failed,
// ForceExecuting, ForceExecutionFailed); Go has no payload-carrying enum, so
// ProposalState below pairs the discriminant with an optional ExecutionStep.
type ProposalStateKind uint8

const (
	StateSubmitted ProposalStateKind = iota
	StateValidationFailed
	StateOpen
	StateAccepted
	StateExecuting
	StateSucceeded
	StateFailed
	StateExpired
	StateRejected
	StateRevoked
	StateQuorumNotMet
	StateForceExecuting
	StateForceExecutionSucceeded
	StateForceExecutionFailed
)

func (k ProposalStateKind) String() string {
	switch k {
	case StateSubmitted:
		return "Submitted"
	case StateValidationFailed:
		return "ValidationFailed"
	case StateOpen:
		return "Open"
	case StateAccepted:
		return "Accepted"
	case StateExecuting:
		return "Executing"
	case StateSucceeded:
		return "Succeeded"
	case StateFailed:
		return "Failed"
	case StateExpired:
		return "Expired"
	case StateRejected:
		return "Rejected"
	case StateRevoked:
		return "Revoked"
	case StateQuorumNotMet:
		return "QuorumNotMet"
	case StateForceExecuting:
		return "ForceExecuting"
	case StateForceExecutionSucceeded:
		return "ForceExecutionSucceeded"
	case StateForceExecutionFailed:
		return "ForceExecutionFailed"
	default:
		return "Unknown"
	}
}

// ProposalState is the top-level state-machine value. Step is populated
// only for Executing, Failed, ForceExecuting, and ForceExecutionFailed; it
// is the zero ExecutionStep for every other Kind.
type ProposalState struct {
	Kind ProposalStateKind `json:"kind"`
	Step ExecutionStep     `json:"step,omitempty"`
}

func stateSubmitted() ProposalState              { return ProposalState{Kind: StateSubmitted} }
func stateValidationFailed() ProposalState       { return ProposalState{Kind: StateValidationFailed} }
func stateOpen() ProposalState                   { return ProposalState{Kind: StateOpen} }
func stateAccepted() ProposalState               { return ProposalState{Kind: StateAccepted} }
func stateExecuting(step ExecutionStep) ProposalState {
	return ProposalState{Kind: StateExecuting, Step: step}
}
func stateSucceeded() ProposalState { return ProposalState{Kind: StateSucceeded} }
func stateFailed(step ExecutionStep) ProposalState {
	return ProposalState{Kind: StateFailed, Step: step}
}
func stateExpired() ProposalState     { return ProposalState{Kind: StateExpired} }
func stateRejected() ProposalState    { return ProposalState{Kind: StateRejected} }
func stateRevoked() ProposalState     { return ProposalState{Kind: StateRevoked} }
func stateQuorumNotMet() ProposalState { return ProposalState{Kind: StateQuorumNotMet} }
func stateForceExecuting(step ExecutionStep) ProposalState {
	return ProposalState{Kind: StateForceExecuting, Step: step}
}
func stateForceExecutionSucceeded() ProposalState {
	return ProposalState{Kind: StateForceExecutionSucceeded}
}
func stateForceExecutionFailed(step ExecutionStep) ProposalState {
	return ProposalState{Kind: StateForceExecutionFailed, Step: step}
}

// IsTerminal reports whether no further state transition is permitted.
func (s ProposalState) IsTerminal() bool {
	switch s.Kind {
	case StateValidationFailed, StateSucceeded, StateFailed, StateExpired,
		StateRejected, StateRevoked, StateQuorumNotMet,
		StateForceExecutionSucceeded, StateForceExecutionFailed:
		return true
	default:
		return false
	}
}

// proposalTransitions enumerates the permitted next Kinds for each current
// Kind, matching Proposal::state_transition in proposal.rs. Executing and
// ForceExecuting permit transitioning back to themselves (advancing the
// embedded step) in addition to their terminal exits.
var proposalTransitions = map[ProposalStateKind]map[ProposalStateKind]bool{
	StateSubmitted: {
		StateOpen:             true,
		StateValidationFailed: true,
	},
	StateOpen: {
		StateAccepted:       true,
		StateRejected:       true,
		StateRevoked:        true,
		StateQuorumNotMet:   true,
		StateForceExecuting: true,
	},
	StateAccepted: {
		StateExecuting: true,
	},
	StateExecuting: {
		StateExecuting: true,
		StateSucceeded: true,
		StateFailed:    true,
		StateExpired:   true,
	},
	StateForceExecuting: {
		StateForceExecuting:         true,
		StateForceExecutionSucceeded: true,
		StateForceExecutionFailed:    true,
	},
}

// StateTransition advances p.State to next, enforcing the transition table
// above. Returns the prior state on success.
func (p *Proposal) StateTransition(next ProposalState) (ProposalState, error) {
	allowed, ok := proposalTransitions[p.State.Kind]
	if !ok || !allowed[next.Kind] {
		return p.State, ErrStateTransition
	}
	prev := p.State
	p.State = next
	return prev, nil
}

// ExecutionStateTransition advances the sub-state machine embedded in the
// current Executing/ForceExecuting state, leaving the top-level Kind
// unchanged. Mirrors Proposal::execution_state_transition.
func (p *Proposal) ExecutionStateTransition(next ExecutionStepState) (ProposalState, error) {
	prev := p.State
	switch p.State.Kind {
	case StateExecuting:
		step := p.State.Step
		if _, err := step.StateTransition(next); err != nil {
			return prev, ErrStateTransition
		}
		p.State = stateExecuting(step)
		return prev, nil
	case StateForceExecuting:
		step := p.State.Step
		if _, err := step.StateTransition(next); err != nil {
			return prev, ErrStateTransition
		}
		p.State = stateForceExecuting(step)
		return prev, nil
	default:
		return prev, ErrStateTransition
	}
}
