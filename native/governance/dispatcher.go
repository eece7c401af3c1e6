package governance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Dispatcher drives per-message execution across remote calls, persisting
// the top-level proposal after every sub-state transition so a mid-run
// crash leaves an inspectable state (spec.md §4.6). It depends only on
// Store and CallInvoker: the two collaborators the spec leaves fully
// specified (persistence) or fully abstract (transport).
type Dispatcher struct {
	store   Store
	invoker CallInvoker
	logger  *slog.Logger
}

// NewDispatcher constructs a Dispatcher over store, issuing remote calls
// through invoker.
func NewDispatcher(store Store, invoker CallInvoker, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{store: store, invoker: invoker, logger: logger}
}

// Run executes every message of payload in order against the proposal
// identified by id, starting at the proposal's current state (Executing(i)
// or ForceExecuting(i)). The proposal is reloaded from the Store after
// every suspension point per spec.md §5: no in-memory reference is held
// across a remote call. Returns the terminal error kind, if any; a nil
// return means every message succeeded.
func (d *Dispatcher) Run(ctx context.Context, id Index, payload ProposalPayload, force bool) error {
	for i, msg := range payload.Messages {
		if err := d.runStep(ctx, id, uint8(i), msg, force); err != nil {
			return err
		}
	}
	return d.finishSucceeded(id, force)
}

func (d *Dispatcher) runStep(ctx context.Context, id Index, step uint8, msg CanisterMessage, force bool) error {
	proposal, err := d.store.GetProposal(id)
	if err != nil {
		return err
	}
	if err := d.beginStep(proposal, step, msg.PreValidate != nil); err != nil {
		return err
	}
	if err := d.store.PutProposal(id, *proposal); err != nil {
		return err
	}

	if msg.PreValidate != nil {
		if err := d.preValidate(ctx, id, step, msg, force); err != nil {
			return err
		}
	}

	if err := d.execute(ctx, id, step, msg, force); err != nil {
		return err
	}

	if msg.PostValidate != nil {
		if err := d.postValidate(ctx, id, step, msg, force); err != nil {
			return err
		}
	} else {
		// PostValidating is skipped when no post-validate target is present
		// (spec.md §4.3), but the sub-state machine still only permits
		// Succeeded from PostValidating, never directly from Executing
		// (execstep.go stepTransitions): route through it instead of
		// attempting an illegal Executing -> Succeeded jump.
		if err := d.transitionStep(id, step, StepPostValidating, force); err != nil {
			return err
		}
		if err := d.transitionStep(id, step, StepSucceeded, force); err != nil {
			return err
		}
	}
	return d.advance(id, step, force)
}

// beginStep transitions NotStarted -> PreValidating when a pre-validate
// target is present; otherwise it leaves the sub-state at NotStarted and
// the caller proceeds directly to the main call, matching "PreValidating is
// skipped when the corresponding target is absent" (spec.md §4.3).
func (d *Dispatcher) beginStep(proposal *Proposal, step uint8, hasPreValidate bool) error {
	if !hasPreValidate {
		return nil
	}
	if _, err := proposal.ExecutionStateTransition(StepPreValidating); err != nil {
		return fmt.Errorf("governance: begin step %d: %w", step, err)
	}
	return nil
}

func (d *Dispatcher) preValidate(ctx context.Context, id Index, step uint8, msg CanisterMessage, force bool) error {
	target := msg.PreValidate
	resp, err := d.invoker.Call(ctx, target.Target, target.Method, target.Payload, target.Payment)
	if err != nil {
		if tErr := d.transitionStep(id, step, StepPreValidateCallError, force); tErr != nil {
			return tErr
		}
		return fmt.Errorf("governance: pre-validate step %d: %w", step, ErrInterCanisterCall)
	}
	if !decodeBool(resp) {
		if tErr := d.transitionStep(id, step, StepPreValidateFailed, force); tErr != nil {
			return tErr
		}
		return fmt.Errorf("governance: pre-validate step %d: %w", step, ErrPreValidateFailed)
	}
	return d.transitionStep(id, step, StepExecuting, force)
}

func (d *Dispatcher) execute(ctx context.Context, id Index, step uint8, msg CanisterMessage, force bool) error {
	// A pre-validate target already moved the sub-state to Executing; a
	// message with no pre-validate target starts at NotStarted and must
	// reach Executing before the main call, matching "jump to step 3"
	// (spec.md §4.6 item 1).
	proposal, err := d.store.GetProposal(id)
	if err != nil {
		return err
	}
	if msg.PreValidate == nil {
		if _, err := proposal.ExecutionStateTransition(StepPreValidating); err == nil {
			if _, err := proposal.ExecutionStateTransition(StepExecuting); err != nil {
				return fmt.Errorf("governance: execute step %d: %w", step, err)
			}
		} else {
			return fmt.Errorf("governance: execute step %d: %w", step, err)
		}
		if err := d.store.PutProposal(id, *proposal); err != nil {
			return err
		}
	}

	resp, callErr := d.invoker.Call(ctx, msg.Target, msg.Method, msg.Message, msg.Payment)

	exec, err := d.store.GetExec(id)
	if err != nil {
		return err
	}
	if callErr != nil {
		exec.Results = append(exec.Results, FailureResult(-1, callErr.Error()))
	} else {
		exec.Results = append(exec.Results, SuccessResult(resp))
	}
	if err := d.store.PutExec(id, *exec); err != nil {
		return err
	}

	if callErr != nil {
		if tErr := d.transitionStep(id, step, StepExecutionCallError, force); tErr != nil {
			return tErr
		}
		return fmt.Errorf("governance: execute step %d: %w", step, ErrInterCanisterCall)
	}

	if msg.PostValidate == nil {
		return nil
	}
	return d.transitionStep(id, step, StepPostValidating, force)
}

func (d *Dispatcher) postValidate(ctx context.Context, id Index, step uint8, msg CanisterMessage, force bool) error {
	exec, err := d.store.GetExec(id)
	if err != nil {
		return err
	}
	var response []byte
	if len(exec.Results) > 0 {
		response = exec.Results[len(exec.Results)-1].Response
	}
	payload := PostValidatePayload{
		Target:   msg.Target,
		Method:   msg.Method,
		Message:  msg.Message,
		Response: response,
	}
	target := msg.PostValidate
	resp, err := d.invoker.Call(ctx, target.Target, target.Method, encodePostValidatePayload(payload), target.Payment)
	if err != nil {
		if tErr := d.transitionStep(id, step, StepPostValidateCallError, force); tErr != nil {
			return tErr
		}
		return fmt.Errorf("governance: post-validate step %d: %w", step, ErrInterCanisterCall)
	}
	if !decodeBool(resp) {
		if tErr := d.transitionStep(id, step, StepPostValidateFailed, force); tErr != nil {
			return tErr
		}
		return fmt.Errorf("governance: post-validate step %d: %w", step, ErrPostValidateFailed)
	}
	return d.transitionStep(id, step, StepSucceeded, force)
}

// transitionStep advances the embedded ExecutionStep sub-state and writes
// the whole proposal back to the Store, the mandatory persistence point
// from spec.md §4.6: "the top-level proposal must be stored to durable
// memory after every sub-state transition." On a terminal error sub-state
// it also demotes the top-level state to Failed(step)/ForceExecutionFailed(step).
func (d *Dispatcher) transitionStep(id Index, step uint8, next ExecutionStepState, force bool) error {
	proposal, err := d.store.GetProposal(id)
	if err != nil {
		return err
	}
	if _, err := proposal.ExecutionStateTransition(next); err != nil {
		return fmt.Errorf("governance: transition step %d to %s: %w", step, next, err)
	}
	d.logger.Debug("governance: execution step transition", "proposal_id", id, "step", step, "sub_state", next.String())
	if next.IsTerminal() && next != StepSucceeded {
		failedStep := ExecutionStep{Step: step, State: next}
		if force {
			proposal.State = stateForceExecutionFailed(failedStep)
		} else {
			proposal.State = stateFailed(failedStep)
		}
	}
	return d.store.PutProposal(id, *proposal)
}

// advance moves the top-level state from Executing(i)/ForceExecuting(i) to
// Executing(i+1)/ForceExecuting(i+1) with the sub-state reset to
// NotStarted, per spec.md §4.6 item 5. It is a no-op if the step already
// demoted the proposal to a Failed terminal state.
func (d *Dispatcher) advance(id Index, step uint8, force bool) error {
	proposal, err := d.store.GetProposal(id)
	if err != nil {
		return err
	}
	if force {
		if proposal.State.Kind != StateForceExecuting {
			return nil
		}
	} else if proposal.State.Kind != StateExecuting {
		return nil
	}
	next := NewExecutionStep(step + 1)
	var nextState ProposalState
	if force {
		nextState = stateForceExecuting(next)
	} else {
		nextState = stateExecuting(next)
	}
	if _, err := proposal.StateTransition(nextState); err != nil {
		return fmt.Errorf("governance: advance past step %d: %w", step, err)
	}
	return d.store.PutProposal(id, *proposal)
}

func (d *Dispatcher) finishSucceeded(id Index, force bool) error {
	proposal, err := d.store.GetProposal(id)
	if err != nil {
		return err
	}
	if force {
		if proposal.State.Kind != StateForceExecuting {
			return nil
		}
		if _, err := proposal.StateTransition(stateForceExecutionSucceeded()); err != nil {
			return fmt.Errorf("governance: finish: %w", err)
		}
	} else {
		if proposal.State.Kind != StateExecuting {
			return nil
		}
		if _, err := proposal.StateTransition(stateSucceeded()); err != nil {
			return fmt.Errorf("governance: finish: %w", err)
		}
	}
	return d.store.PutProposal(id, *proposal)
}

// decodeBool interprets a remote call's response bytes as the boolean the
// spec requires pre/post validate targets to return: a single non-zero
// byte is true, everything else (including an empty response) is false.
func decodeBool(resp []byte) bool {
	return len(resp) == 1 && resp[0] != 0
}

// encodePostValidatePayload renders PostValidatePayload as JSON: the
// transport is out of scope for this module (spec.md §1), so the wire
// format only needs to round-trip cleanly through any CallInvoker.
func encodePostValidatePayload(p PostValidatePayload) []byte {
	data, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	return data
}
