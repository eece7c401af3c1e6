package governance

import (
	"fmt"

	"nxgov/core/events"
	"nxgov/core/types"
)

// governanceEvent adapts a concrete *types.Event to the core/events.Event
// interface, mirroring the teacher's native/governance/engine.go wrapper of
// the same name.
type governanceEvent struct {
	evt *types.Event
}

func (g governanceEvent) EventType() string { return g.evt.Type }

// Event returns the underlying typed event.
func (g governanceEvent) Event() *types.Event { return g.evt }

func (c *Coordinator) emit(event *types.Event) {
	if c == nil || c.emitter == nil || event == nil {
		return
	}
	c.emitter.Emit(governanceEvent{evt: event})
}

func newSubmittedEvent(id Index, proposer Principal) *types.Event {
	return &types.Event{
		Type: "governance.proposal.submitted",
		Attributes: map[string]string{
			"proposal_id": fmt.Sprintf("%d", id),
			"proposer":    proposer.String(),
		},
	}
}

func newValidatedEvent(id Index, validated bool) *types.Event {
	return &types.Event{
		Type: "governance.proposal.validated",
		Attributes: map[string]string{
			"proposal_id": fmt.Sprintf("%d", id),
			"validated":   fmt.Sprintf("%t", validated),
		},
	}
}

func newVoteUpdatedEvent(id Index, yes, no, abstain, total string) *types.Event {
	return &types.Event{
		Type: "governance.proposal.vote_updated",
		Attributes: map[string]string{
			"proposal_id": fmt.Sprintf("%d", id),
			"votes_yes":   yes,
			"votes_no":    no,
			"votes_abstain": abstain,
			"total_voting_power": total,
		},
	}
}

func newFinalizedEvent(id Index, state ProposalStateKind) *types.Event {
	return &types.Event{
		Type: "governance.proposal.finalized",
		Attributes: map[string]string{
			"proposal_id": fmt.Sprintf("%d", id),
			"state":       state.String(),
		},
	}
}

func newRevokedEvent(id Index, reason string) *types.Event {
	return &types.Event{
		Type: "governance.proposal.revoked",
		Attributes: map[string]string{
			"proposal_id": fmt.Sprintf("%d", id),
			"reason":      reason,
		},
	}
}

func newExecutionStepEvent(id Index, step uint8, state ExecutionStepState) *types.Event {
	return &types.Event{
		Type: "governance.proposal.execution_step",
		Attributes: map[string]string{
			"proposal_id": fmt.Sprintf("%d", id),
			"step":        fmt.Sprintf("%d", step),
			"sub_state":   state.String(),
		},
	}
}

func newExecutedEvent(id Index, state ProposalStateKind) *types.Event {
	return &types.Event{
		Type: "governance.proposal.executed",
		Attributes: map[string]string{
			"proposal_id": fmt.Sprintf("%d", id),
			"state":       state.String(),
		},
	}
}

func newRoleChangedEvent(action string, role Role, principal Principal) *types.Event {
	return &types.Event{
		Type: "governance.role." + action,
		Attributes: map[string]string{
			"role":      role.String(),
			"principal": principal.String(),
		},
	}
}

// Emitter is satisfied by events.Emitter (nxgov/core/events); kept as a
// local alias so callers of this package need not import core/events
// directly just to pass NoopEmitter{} or a real emitter.
type Emitter = events.Emitter

// NoopEmitter discards every event; re-exported from core/events for the
// same reason.
type NoopEmitter = events.NoopEmitter
