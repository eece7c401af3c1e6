package governance

import (
	"context"
	"fmt"
	"log/slog"
)

// HookNotifier pushes "attention required" signals to the external
// Validator and Vote Manager collaborators. Mirrors spec.md §4.8: a LIFO
// stack of pending proposal ids (owned by the Store), drained by
// DrainPending, which issues a best-effort remote notification call per
// task. Loss of a task is recoverable because both collaborators also
// support polling (get_all_submitted_proposal_ids,
// get_all_open_proposal_ids_with_expiration), so a notification failure is
// logged and dropped rather than retried here.
type HookNotifier struct {
	store   Store
	invoker CallInvoker
	logger  *slog.Logger
}

// NewHookNotifier constructs a notifier over store, issuing remote calls
// through invoker.
func NewHookNotifier(store Store, invoker CallInvoker, logger *slog.Logger) *HookNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &HookNotifier{store: store, invoker: invoker, logger: logger}
}

// PushValidatorTask enqueues proposalID for a best-effort
// notify_validator call, per spec.md §4.5's submit() step.
func (h *HookNotifier) PushValidatorTask(proposalID Index) error {
	return h.store.PushHookTask(proposalID)
}

// PushVoteManagerTask enqueues proposalID for a best-effort
// notify_multisig call, per spec.md §4.5's validate() step.
func (h *HookNotifier) PushVoteManagerTask(proposalID Index) error {
	return h.store.PushHookTask(proposalID)
}

// DrainPending pops every pending task from the stack and issues a
// best-effort notification call to target/method for each. A call failure
// is logged and the task is dropped: spec.md §7 explicitly permits this
// ("a remote-call failure during a hook notification is acceptable to
// drop"). Returns the number of tasks drained.
func (h *HookNotifier) DrainPending(ctx context.Context, target Principal, method string) (int, error) {
	drained := 0
	for {
		id, ok, err := h.store.PopHookTask()
		if err != nil {
			return drained, err
		}
		if !ok {
			return drained, nil
		}
		payload, err := encodeProposalIDPayload(id)
		if err != nil {
			h.logger.Warn("hook notifier: encode payload failed", "proposal_id", id, "error", err)
			drained++
			continue
		}
		if _, err := h.invoker.Call(ctx, target, method, payload, nil); err != nil {
			h.logger.Warn("hook notifier: best-effort call failed", "proposal_id", id, "target", target.String(), "method", method, "error", err)
		}
		drained++
	}
}

func encodeProposalIDPayload(id Index) ([]byte, error) {
	return []byte(fmt.Sprintf("%d", id)), nil
}
