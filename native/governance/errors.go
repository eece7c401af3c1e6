package governance

import "errors"

// Sentinel errors returned by the lifecycle coordinator. Callers should use
// errors.Is to classify a failure rather than comparing strings, since every
// returned error is wrapped with call-site context via fmt.Errorf's %w verb.
var (
	// ErrInput marks malformed content or an out-of-range parameter supplied
	// by the caller.
	ErrInput = errors.New("governance: input error")
	// ErrMemory marks a durable store operation failure (capacity exhaustion
	// or a backing-store I/O error).
	ErrMemory = errors.New("governance: memory error")
	// ErrInterCanisterCall marks a transport-level failure on a remote call
	// issued by the dispatcher at one of its suspension points.
	ErrInterCanisterCall = errors.New("governance: inter-canister call error")
	// ErrPreValidateFailed marks a pre-validate collaborator that returned
	// false for a message.
	ErrPreValidateFailed = errors.New("governance: pre-validate failed")
	// ErrPostValidateFailed marks a post-validate collaborator that returned
	// false for a message.
	ErrPostValidateFailed = errors.New("governance: post-validate failed")
	// ErrArithmetic marks a vote tally that would leave the ledger outside
	// its permitted range.
	ErrArithmetic = errors.New("governance: arithmetic error")
	// ErrInvalidIndex marks a proposal id outside the allocated range.
	ErrInvalidIndex = errors.New("governance: invalid index")
	// ErrIncorrectProposalState marks an operation that is not legal given
	// the proposal's current state.
	ErrIncorrectProposalState = errors.New("governance: incorrect proposal state")
	// ErrStateTransition marks a state machine guard that refused a
	// transition. Surfacing this to a caller always indicates an internal
	// bug: the coordinator itself is expected to only ever request legal
	// transitions.
	ErrStateTransition = errors.New("governance: state transition error")
	// ErrExpired marks a time guard (voting window or activation window)
	// that has elapsed.
	ErrExpired = errors.New("governance: expired")
	// ErrDependentProposalNotSucceeded marks a declared predecessor
	// proposal that reached a non-success terminal state.
	ErrDependentProposalNotSucceeded = errors.New("governance: dependent proposal did not succeed")
	// ErrDependentProposalNotReady marks a declared predecessor proposal
	// that has not yet reached any terminal state; the caller may retry.
	ErrDependentProposalNotReady = errors.New("governance: dependent proposal not ready")
	// ErrNotFound marks a query for a proposal, metadata, payload, exec
	// result, or revocation record that does not exist.
	ErrNotFound = errors.New("governance: not found")
)

// Role enumerates the caller permissions recognised by the role gate. Values
// mirror original_source/rs/nx-gov-main/src/access.rs's UserRole enum.
type Role uint8

const (
	// RoleAdmin can grant and revoke any role.
	RoleAdmin Role = iota
	// RoleProposer can submit proposals.
	RoleProposer
	// RoleVoteManager can push tally results and voting power updates.
	RoleVoteManager
	// RoleRevoker can revoke an Open proposal before voting resolves.
	RoleRevoker
	// RoleExecutor can execute an Accepted proposal.
	RoleExecutor
	// RoleForceExecutor can force-execute an Open proposal, bypassing vote
	// tally but not dependency gating.
	RoleForceExecutor
	// RoleValidator can validate a Submitted proposal's admissibility,
	// voting window, and passing threshold.
	RoleValidator
)

// String renders the role for logs and audit records.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleProposer:
		return "proposer"
	case RoleVoteManager:
		return "vote_manager"
	case RoleRevoker:
		return "revoker"
	case RoleExecutor:
		return "executor"
	case RoleForceExecutor:
		return "force_executor"
	case RoleValidator:
		return "validator"
	default:
		return "unknown"
	}
}

// Unauthorized is the panic value raised by the role gate when a caller
// lacks the required role. Unlike the typed errors above, a role failure is
// never returned to the caller as a value: the spec requires it to abort
// the request the way an unrecoverable assertion would (spec.md §7), so
// that the caller cannot observe "success with an error" for a call it was
// never entitled to make. Callers sitting at a process boundary (the
// JSON-RPC server, the CLI) recover this panic and report it distinctly
// from a normal error result.
type Unauthorized struct {
	Role    Role
	Caller  Principal
	Context string
}

func (u Unauthorized) Error() string {
	return "governance: caller " + u.Caller.String() + " lacks role " + u.Role.String() + " for " + u.Context
}
