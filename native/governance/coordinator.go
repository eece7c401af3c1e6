package governance

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"lukechampine.com/blake3"
)

// Coordinator is the lifecycle coordinator (spec.md §4.5): the public
// surface that enforces roles and guards, persists through Store, and
// drives the Dispatcher across its suspension points. Mirrors the shape of
// the teacher's native/governance.Engine (store + role checks + nowFn +
// event emission), generalized from parameter-change governance to the
// proposal/message-dispatch model this module implements.
type Coordinator struct {
	store      Store
	roles      *RoleGate
	hooks      *HookNotifier
	dispatcher *Dispatcher
	emitter    Emitter
	logger     *slog.Logger
	nowFn      func() int64
}

// NewCoordinator wires a Coordinator over its collaborators. emitter may be
// NoopEmitter{}; logger defaults to slog.Default(); nowFn defaults to the
// real clock.
func NewCoordinator(store Store, roles *RoleGate, hooks *HookNotifier, dispatcher *Dispatcher, emitter Emitter, logger *slog.Logger, nowFn func() int64) *Coordinator {
	if emitter == nil {
		emitter = NoopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if nowFn == nil {
		nowFn = defaultNowFn
	}
	return &Coordinator{store: store, roles: roles, hooks: hooks, dispatcher: dispatcher, emitter: emitter, logger: logger, nowFn: nowFn}
}

// SetNowFunc overrides the time source, the teacher's SetNowFunc idiom
// (native/governance/engine.go) adapted to this package's unix-nanosecond
// representation. Intended for tests; nil restores the real clock.
func (c *Coordinator) SetNowFunc(now func() int64) {
	if now == nil {
		now = defaultNowFn
	}
	c.nowFn = now
}

func (c *Coordinator) now() int64 {
	if c == nil || c.nowFn == nil {
		return defaultNowFn()
	}
	return c.nowFn()
}

// Submit admits a new proposal (spec.md §4.5 submit). Caller must hold
// Proposer.
func (c *Coordinator) Submit(caller Principal, metadata ProposalMetadata, payload ProposalPayload, activates, expires Schedule, autoExecute bool) (Index, error) {
	c.roles.RequireRole(RoleProposer, caller, "submit")

	if !metadata.IsValid() {
		return 0, fmt.Errorf("governance: submit: metadata: %w", ErrInput)
	}
	if !payload.IsValid() {
		return 0, fmt.Errorf("governance: submit: payload: %w", ErrInput)
	}
	now := c.now()
	if !expires.IsInFuture(now) {
		return 0, fmt.Errorf("governance: submit: expires not in future: %w", ErrInput)
	}
	nextID, err := c.store.NextProposalID()
	if err != nil {
		return 0, err
	}
	if maxDep, ok := payload.MaxDependencyIndex(); ok && maxDep >= nextID {
		return 0, fmt.Errorf("governance: submit: dependency %d >= next id %d: %w", maxDep, nextID, ErrInput)
	}

	metadataID, err := c.store.AppendMetadata(metadata)
	if err != nil {
		return 0, err
	}
	payloadID, err := c.store.AppendPayload(payload)
	if err != nil {
		return 0, err
	}
	proposal := NewProposal(metadataID, payloadID, autoExecute, activates, expires, caller, now)
	id, err := c.store.AppendProposal(proposal)
	if err != nil {
		return 0, err
	}

	cfg, err := c.store.GetConfig()
	if err != nil {
		return 0, err
	}
	if cfg.ValidatorHook != nil {
		if err := c.hooks.PushValidatorTask(id); err != nil {
			c.logger.Warn("governance: submit: push validator task failed", "proposal_id", id, "error", err)
		}
	}

	c.emit(newSubmittedEvent(id, caller))
	c.logger.Info("governance: submit", "proposal_id", id, "caller", caller.String(), "fingerprint", payloadFingerprint(payload))
	return id, nil
}

// payloadFingerprint hashes a proposal's message bytes for audit-log
// correlation (native/creator/engine.go's blake3.Sum256 idiom): a concise,
// collision-resistant identifier an operator can grep across logs without
// printing the full payload.
func payloadFingerprint(payload ProposalPayload) string {
	var buf []byte
	for _, msg := range payload.Messages {
		buf = append(buf, []byte(msg.Method)...)
		buf = append(buf, msg.Message...)
	}
	sum := blake3.Sum256(buf)
	return fmt.Sprintf("%x", sum)
}

// Validate records the Validator's admissibility decision (spec.md §4.5
// validate). Caller must hold Validator.
func (c *Coordinator) Validate(caller Principal, id Index, votingEndTime *int64, threshold *ProposalPassingThreshold, validated bool) error {
	c.roles.RequireRole(RoleValidator, caller, "validate")

	proposal, err := c.store.GetProposal(id)
	if err != nil {
		return err
	}
	if proposal.State.Kind != StateSubmitted {
		return fmt.Errorf("governance: validate: proposal %d: %w", id, ErrIncorrectProposalState)
	}

	cfg, err := c.store.GetConfig()
	if err != nil {
		return err
	}
	now := c.now()

	if validated {
		if votingEndTime == nil || *votingEndTime < now+cfg.MinVotingPeriod {
			return fmt.Errorf("governance: validate: voting_end_time: %w", ErrInput)
		}
		if threshold == nil || !threshold.IsValid() || !threshold.AllFieldsGTE(cfg.MinPassingThreshold) {
			return fmt.Errorf("governance: validate: threshold: %w", ErrInput)
		}
		proposal.Validated = &validated
		proposal.VotingEndTime = votingEndTime
		proposal.PassingThreshold = threshold
		if _, err := proposal.StateTransition(stateOpen()); err != nil {
			return fmt.Errorf("governance: validate: %w", err)
		}
	} else {
		proposal.Validated = &validated
		if _, err := proposal.StateTransition(stateValidationFailed()); err != nil {
			return fmt.Errorf("governance: validate: %w", err)
		}
	}

	if err := c.store.PutProposal(id, *proposal); err != nil {
		return err
	}
	if validated && cfg.VoteManagerHook != nil {
		if err := c.hooks.PushVoteManagerTask(id); err != nil {
			c.logger.Warn("governance: validate: push vote manager task failed", "proposal_id", id, "error", err)
		}
	}
	c.emit(newValidatedEvent(id, validated))
	return nil
}

// UpdateVoteResult applies signed vote-power deltas (spec.md §4.5). Caller
// must hold VoteManager.
func (c *Coordinator) UpdateVoteResult(caller Principal, id Index, deltaYes, deltaNo, deltaAbstain *big.Int) error {
	c.roles.RequireRole(RoleVoteManager, caller, "update_vote_result")
	return c.applyVoteUpdate(id, deltaYes, deltaNo, deltaAbstain, nil)
}

// UpdateTotalVotingPower replaces the denominator used by quorum and
// pass-rate arithmetic (spec.md §4.5). Caller must hold VoteManager.
func (c *Coordinator) UpdateTotalVotingPower(caller Principal, id Index, total *big.Int) error {
	c.roles.RequireRole(RoleVoteManager, caller, "update_total_voting_power")
	return c.applyVoteUpdate(id, big.NewInt(0), big.NewInt(0), big.NewInt(0), total)
}

// UpdateVoteResultAndTotalVotingPower combines both updates atomically
// (spec.md §4.5), the operation the Multisig Tally variant collaborator
// always uses (SPEC_FULL.md §8). Caller must hold VoteManager.
func (c *Coordinator) UpdateVoteResultAndTotalVotingPower(caller Principal, id Index, deltaYes, deltaNo, deltaAbstain, total *big.Int) error {
	c.roles.RequireRole(RoleVoteManager, caller, "update_vote_result_and_total_voting_power")
	return c.applyVoteUpdate(id, deltaYes, deltaNo, deltaAbstain, total)
}

func (c *Coordinator) applyVoteUpdate(id Index, deltaYes, deltaNo, deltaAbstain *big.Int, total *big.Int) error {
	proposal, err := c.store.GetProposal(id)
	if err != nil {
		return err
	}
	now := c.now()
	if !proposal.IsVoteable(now) {
		return fmt.Errorf("governance: update vote result: proposal %d: %w", id, ErrExpired)
	}

	yes := new(big.Int).Add(proposal.VotesYes, deltaYes)
	no := new(big.Int).Add(proposal.VotesNo, deltaNo)
	abstain := new(big.Int).Add(proposal.VotesAbstain, deltaAbstain)
	totalPower := proposal.TotalVotingPower
	if total != nil {
		totalPower = total
	}

	if yes.Sign() < 0 || no.Sign() < 0 || abstain.Sign() < 0 {
		return fmt.Errorf("governance: update vote result: proposal %d: %w", id, ErrArithmetic)
	}
	sum := new(big.Int).Add(yes, no)
	sum.Add(sum, abstain)
	// Open Question #1 (SPEC_FULL.md §13 / spec.md §9): the source
	// rejected at sum >= total, which would refuse a proposal's last
	// legal increment. Here only a strict overshoot is forbidden.
	if sum.Cmp(totalPower) > 0 {
		return fmt.Errorf("governance: update vote result: proposal %d: %w", id, ErrArithmetic)
	}

	proposal.VotesYes = yes
	proposal.VotesNo = no
	proposal.VotesAbstain = abstain
	proposal.TotalVotingPower = totalPower

	if err := c.store.PutProposal(id, *proposal); err != nil {
		return err
	}
	c.emit(newVoteUpdatedEvent(id, yes.String(), no.String(), abstain.String(), totalPower.String()))

	cfg, err := c.store.GetConfig()
	if err != nil {
		return err
	}
	if cfg.VotingMayEndEarly || now > *proposal.VotingEndTime {
		if _, err := c.tryFinalizeVoteResult(id); err != nil {
			return err
		}
	}
	return nil
}

// FinalizeVoteResult finalizes a proposal's vote tally without applying
// further deltas (spec.md §4.5). Caller must hold VoteManager. Unlike the
// vote-update operations, the guard here is state == Open only: the
// expiry-triggered path (try_finalize_vote_result's is_expired branch) is
// exactly how this operation is expected to be called once voting_end_time
// has elapsed (spec.md §8 scenario 3).
func (c *Coordinator) FinalizeVoteResult(caller Principal, id Index) error {
	c.roles.RequireRole(RoleVoteManager, caller, "finalize_vote_result")
	proposal, err := c.store.GetProposal(id)
	if err != nil {
		return err
	}
	if proposal.State.Kind != StateOpen {
		return fmt.Errorf("governance: finalize_vote_result: proposal %d: %w", id, ErrIncorrectProposalState)
	}
	_, err = c.tryFinalizeVoteResult(id)
	return err
}

// tryFinalizeVoteResult implements spec.md §4.5's internal operation of the
// same name. Returns whether the proposal transitioned.
func (c *Coordinator) tryFinalizeVoteResult(id Index) (bool, error) {
	proposal, err := c.store.GetProposal(id)
	if err != nil {
		return false, err
	}
	if proposal.State.Kind != StateOpen {
		return false, nil
	}
	if proposal.PassingThreshold == nil {
		// Open Question #2 (SPEC_FULL.md §13): Open is only reached via a
		// successful validate, which always sets this field; a nil value
		// here is an internal bug rather than a caller-triggerable state.
		return false, fmt.Errorf("governance: try_finalize_vote_result: proposal %d: %w", id, ErrStateTransition)
	}
	threshold := *proposal.PassingThreshold
	now := c.now()

	if !proposal.IsExpired(now) {
		participation := proposal.CurrentParticipationRate()
		if participation >= threshold.Quorum && proposal.AbsoluteMajorityReached() {
			proposal.FinalizeActivation(now)
			proposal.FinalizeExpiration(now)
			if _, err := proposal.StateTransition(stateAccepted()); err != nil {
				return false, fmt.Errorf("governance: try_finalize_vote_result: %w", err)
			}
			if err := c.store.PutProposal(id, *proposal); err != nil {
				return false, err
			}
			c.emit(newFinalizedEvent(id, StateAccepted))
			return true, nil
		}
		return false, nil
	}

	participation := proposal.CurrentParticipationRate()
	var next ProposalState
	switch {
	case participation < threshold.Quorum:
		next = stateQuorumNotMet()
	case proposal.CurrentYesRate() < threshold.PassingThreshold:
		next = stateRejected()
	default:
		proposal.FinalizeActivation(now)
		proposal.FinalizeExpiration(now)
		next = stateAccepted()
	}
	if _, err := proposal.StateTransition(next); err != nil {
		return false, fmt.Errorf("governance: try_finalize_vote_result: %w", err)
	}
	if err := c.store.PutProposal(id, *proposal); err != nil {
		return false, err
	}
	c.emit(newFinalizedEvent(id, next.Kind))
	return true, nil
}

// Revoke cancels an Open proposal (spec.md §4.5). Caller must hold Revoker.
// Per Open Question #3 (SPEC_FULL.md §13), Revoked remains reachable only
// from Open: a proposal already under force-execution cannot be revoked.
func (c *Coordinator) Revoke(caller Principal, id Index, reason string) error {
	c.roles.RequireRole(RoleRevoker, caller, "revoke")
	proposal, err := c.store.GetProposal(id)
	if err != nil {
		return err
	}
	if proposal.State.Kind != StateOpen {
		return fmt.Errorf("governance: revoke: proposal %d: %w", id, ErrIncorrectProposalState)
	}
	if _, err := proposal.StateTransition(stateRevoked()); err != nil {
		return fmt.Errorf("governance: revoke: %w", err)
	}
	now := c.now()
	if err := c.store.PutProposal(id, *proposal); err != nil {
		return err
	}
	if err := c.store.PutRevoke(id, ProposalRevoke{ProposalID: id, Reason: reason, RevokedAt: now}); err != nil {
		return err
	}
	c.emit(newRevokedEvent(id, reason))
	return nil
}

// Execute runs an Accepted proposal's payload through the Dispatcher
// (spec.md §4.5 execute). Caller must hold Executor.
func (c *Coordinator) Execute(ctx context.Context, caller Principal, id Index) error {
	c.roles.RequireRole(RoleExecutor, caller, "execute")

	proposal, err := c.store.GetProposal(id)
	if err != nil {
		return err
	}
	if proposal.State.Kind == StateOpen {
		if _, err := c.tryFinalizeVoteResult(id); err != nil {
			return err
		}
		proposal, err = c.store.GetProposal(id)
		if err != nil {
			return err
		}
	}
	if proposal.State.Kind != StateAccepted {
		return fmt.Errorf("governance: execute: proposal %d: %w", id, ErrIncorrectProposalState)
	}
	now := c.now()
	if !proposal.IsExecutable(now) {
		return fmt.Errorf("governance: execute: proposal %d: %w", id, ErrExpired)
	}

	payload, err := c.store.GetPayload(proposal.PayloadID)
	if err != nil {
		return err
	}
	if err := resolveDependencies(c.store, payload.DependsOn); err != nil {
		return err
	}

	if _, err := proposal.StateTransition(stateExecuting(NewExecutionStep(0))); err != nil {
		return fmt.Errorf("governance: execute: %w", err)
	}
	if err := c.store.PutProposal(id, *proposal); err != nil {
		return err
	}

	runErr := c.dispatcher.Run(ctx, id, *payload, false)
	final, err := c.store.GetProposal(id)
	if err != nil {
		return err
	}
	c.emit(newExecutedEvent(id, final.State.Kind))
	return runErr
}

// ForceExecute runs an Open proposal's payload early, bypassing vote tally
// but not dependency gating (spec.md §4.5 force_execute). Caller must hold
// ForceExecutor.
func (c *Coordinator) ForceExecute(ctx context.Context, caller Principal, id Index) error {
	c.roles.RequireRole(RoleForceExecutor, caller, "force_execute")

	proposal, err := c.store.GetProposal(id)
	if err != nil {
		return err
	}
	now := c.now()
	if !proposal.IsForceExecutable(now) {
		return fmt.Errorf("governance: force_execute: proposal %d: %w", id, ErrIncorrectProposalState)
	}

	payload, err := c.store.GetPayload(proposal.PayloadID)
	if err != nil {
		return err
	}
	if err := resolveDependencies(c.store, payload.DependsOn); err != nil {
		return err
	}

	if _, err := proposal.StateTransition(stateForceExecuting(NewExecutionStep(0))); err != nil {
		return fmt.Errorf("governance: force_execute: %w", err)
	}
	if err := c.store.PutProposal(id, *proposal); err != nil {
		return err
	}

	runErr := c.dispatcher.Run(ctx, id, *payload, true)
	final, err := c.store.GetProposal(id)
	if err != nil {
		return err
	}
	c.emit(newExecutedEvent(id, final.State.Kind))
	return runErr
}

// AddRole grants role to principal. Caller must hold Admin.
func (c *Coordinator) AddRole(caller Principal, role Role, principal Principal) error {
	c.roles.RequireRole(RoleAdmin, caller, "add_role")
	if err := c.roles.AddRole(role, principal); err != nil {
		return err
	}
	c.emit(newRoleChangedEvent("added", role, principal))
	return nil
}

// RemoveRole revokes role from principal. Caller must hold Admin.
func (c *Coordinator) RemoveRole(caller Principal, role Role, principal Principal) error {
	c.roles.RequireRole(RoleAdmin, caller, "remove_role")
	c.roles.RemoveRole(role, principal)
	c.emit(newRoleChangedEvent("removed", role, principal))
	return nil
}

// Stats answers the recovered introspection query (SPEC_FULL.md §9),
// trimmed from the dead Stats struct in
// original_source/rs/nx-gov-main/src/types.rs.
func (c *Coordinator) Stats() (Stats, error) {
	cfg, err := c.store.GetConfig()
	if err != nil {
		return Stats{}, err
	}
	nextID, err := c.store.NextProposalID()
	if err != nil {
		return Stats{}, err
	}
	var open, terminal uint64
	for i := Index(0); i < nextID; i++ {
		p, err := c.store.GetProposal(i)
		if err != nil {
			return Stats{}, err
		}
		if p.State.Kind == StateOpen {
			open++
		}
		if p.State.IsTerminal() {
			terminal++
		}
	}
	pending, err := c.store.HookTaskCount()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Config:            cfg,
		Now:               c.now(),
		OpenProposals:     open,
		TerminalProposals: terminal,
		PendingHookTasks:  pending,
	}, nil
}
