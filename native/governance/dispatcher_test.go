package governance

import (
	"bytes"
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"nxgov/native/governance/memstore"
)

// fakeInvoker is an in-process CallInvoker test double: it answers every
// call against the configured method name, recording every call it sees.
type fakeInvoker struct {
	mu        sync.Mutex
	responses map[string][]byte
	errs      map[string]error
	calls     []string
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{responses: make(map[string][]byte), errs: make(map[string]error)}
}

func (f *fakeInvoker) Call(_ context.Context, _ Principal, method string, _ []byte, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method)
	if err, ok := f.errs[method]; ok {
		return nil, err
	}
	if resp, ok := f.responses[method]; ok {
		return resp, nil
	}
	return []byte{1}, nil
}

func newExecutableCoordinator(t *testing.T, invoker CallInvoker, admins ...Principal) (*Coordinator, Store) {
	t.Helper()
	store := memstore.New()
	gate := NewRoleGate(admins...)
	hooks := NewHookNotifier(store, nil, nil)
	dispatcher := NewDispatcher(store, invoker, nil)
	coordinator := NewCoordinator(store, gate, hooks, dispatcher, NoopEmitter{}, nil, func() int64 { return 0 })
	return coordinator, store
}

func acceptProposal(t *testing.T, coordinator *Coordinator, store Store, admin, proposer, validator, voteManager Principal, payload ProposalPayload) Index {
	t.Helper()
	require.NoError(t, coordinator.AddRole(admin, RoleProposer, proposer))
	require.NoError(t, coordinator.AddRole(admin, RoleValidator, validator))
	require.NoError(t, coordinator.AddRole(admin, RoleVoteManager, voteManager))

	id, err := coordinator.Submit(proposer, ProposalMetadata{Name: "n", Description: "d"}, payload, In(0), In(int64(3600)), false)
	require.NoError(t, err)

	votingEnd := int64(1000)
	threshold := &ProposalPassingThreshold{Quorum: PercentFromWhole(20), PassingThreshold: PercentFromWhole(50)}
	require.NoError(t, coordinator.Validate(validator, id, &votingEnd, threshold, true))
	require.NoError(t, coordinator.UpdateVoteResultAndTotalVotingPower(voteManager, id, big.NewInt(80), big.NewInt(10), big.NewInt(0), big.NewInt(100)))
	require.NoError(t, coordinator.FinalizeVoteResult(voteManager, id))

	p, err := store.GetProposal(id)
	require.NoError(t, err)
	require.Equal(t, StateAccepted, p.State.Kind)
	return id
}

// TestExecuteMessageWithoutPostValidateSucceeds is the regression test for
// the Executing -> Succeeded dispatch bug: a message with no post-validate
// target (the common case) must still reach StepSucceeded and the proposal
// must finish Succeeded, not get stuck mid-execution.
func TestExecuteMessageWithoutPostValidateSucceeds(t *testing.T) {
	admin := MustNewPrincipal(bytes.Repeat([]byte{1}, 20))
	proposer := MustNewPrincipal(bytes.Repeat([]byte{2}, 20))
	validator := MustNewPrincipal(bytes.Repeat([]byte{3}, 20))
	voteManager := MustNewPrincipal(bytes.Repeat([]byte{4}, 20))
	executor := MustNewPrincipal(bytes.Repeat([]byte{5}, 20))
	target := MustNewPrincipal(bytes.Repeat([]byte{6}, 20))

	invoker := newFakeInvoker()
	coordinator, store := newExecutableCoordinator(t, invoker, admin)
	require.NoError(t, coordinator.AddRole(admin, RoleExecutor, executor))

	payload := ProposalPayload{Messages: []CanisterMessage{
		{Target: target, Method: "do_thing"},
	}}
	id := acceptProposal(t, coordinator, store, admin, proposer, validator, voteManager, payload)

	require.NoError(t, coordinator.Execute(context.Background(), executor, id))

	p, err := store.GetProposal(id)
	require.NoError(t, err)
	require.Equal(t, StateSucceeded, p.State.Kind)
}

// TestExecuteDependencyGating covers spec §8 scenario 5: a proposal whose
// payload depends on another proposal that has not yet succeeded must not
// execute.
func TestExecuteDependencyGating(t *testing.T) {
	admin := MustNewPrincipal(bytes.Repeat([]byte{1}, 20))
	proposer := MustNewPrincipal(bytes.Repeat([]byte{2}, 20))
	validator := MustNewPrincipal(bytes.Repeat([]byte{3}, 20))
	voteManager := MustNewPrincipal(bytes.Repeat([]byte{4}, 20))
	executor := MustNewPrincipal(bytes.Repeat([]byte{5}, 20))
	target := MustNewPrincipal(bytes.Repeat([]byte{6}, 20))

	invoker := newFakeInvoker()
	coordinator, store := newExecutableCoordinator(t, invoker, admin)
	require.NoError(t, coordinator.AddRole(admin, RoleExecutor, executor))

	// A dependency proposal left Submitted (not terminal) is not ready.
	depProposer := MustNewPrincipal(bytes.Repeat([]byte{9}, 20))
	require.NoError(t, coordinator.AddRole(admin, RoleProposer, depProposer))
	depID, err := coordinator.Submit(depProposer, ProposalMetadata{Name: "dep", Description: "d"}, ProposalPayload{}, In(0), In(int64(3600)), false)
	require.NoError(t, err)

	payload := ProposalPayload{
		DependsOn: []Index{depID},
		Messages:  []CanisterMessage{{Target: target, Method: "do_thing"}},
	}
	id := acceptProposal(t, coordinator, store, admin, proposer, validator, voteManager, payload)

	err = coordinator.Execute(context.Background(), executor, id)
	require.ErrorIs(t, err, ErrDependentProposalNotReady)
	require.Empty(t, invoker.calls)
}

// TestExecutePreValidateFailureLeavesProposalFailed covers spec §8 scenario
// 6: a pre-validate target returning false must fail the step, demote the
// proposal to Failed, and never run the main call.
func TestExecutePreValidateFailureLeavesProposalFailed(t *testing.T) {
	admin := MustNewPrincipal(bytes.Repeat([]byte{1}, 20))
	proposer := MustNewPrincipal(bytes.Repeat([]byte{2}, 20))
	validator := MustNewPrincipal(bytes.Repeat([]byte{3}, 20))
	voteManager := MustNewPrincipal(bytes.Repeat([]byte{4}, 20))
	executor := MustNewPrincipal(bytes.Repeat([]byte{5}, 20))
	target := MustNewPrincipal(bytes.Repeat([]byte{6}, 20))
	preValidator := MustNewPrincipal(bytes.Repeat([]byte{7}, 20))

	invoker := newFakeInvoker()
	invoker.responses["check"] = []byte{0} // false: pre-validate fails

	coordinator, store := newExecutableCoordinator(t, invoker, admin)
	require.NoError(t, coordinator.AddRole(admin, RoleExecutor, executor))

	payload := ProposalPayload{Messages: []CanisterMessage{
		{
			Target:      target,
			Method:      "do_thing",
			PreValidate: &PreValidateTarget{Target: preValidator, Method: "check"},
		},
	}}
	id := acceptProposal(t, coordinator, store, admin, proposer, validator, voteManager, payload)

	err := coordinator.Execute(context.Background(), executor, id)
	require.ErrorIs(t, err, ErrPreValidateFailed)

	p, err := store.GetProposal(id)
	require.NoError(t, err)
	require.Equal(t, StateFailed, p.State.Kind)

	exec, err := store.GetExec(id)
	require.NoError(t, err)
	require.Len(t, exec.Results, 0)
	require.Equal(t, []string{"check"}, invoker.calls) // main call never ran
}

// TestForceExecuteHappyPath covers spec §8 scenario 7: force-execute an
// Open proposal, bypassing vote tally but not dependency gating.
func TestForceExecuteHappyPath(t *testing.T) {
	admin := MustNewPrincipal(bytes.Repeat([]byte{1}, 20))
	proposer := MustNewPrincipal(bytes.Repeat([]byte{2}, 20))
	validator := MustNewPrincipal(bytes.Repeat([]byte{3}, 20))
	forceExecutor := MustNewPrincipal(bytes.Repeat([]byte{5}, 20))
	target := MustNewPrincipal(bytes.Repeat([]byte{6}, 20))

	invoker := newFakeInvoker()
	coordinator, store := newExecutableCoordinator(t, invoker, admin)
	require.NoError(t, coordinator.AddRole(admin, RoleProposer, proposer))
	require.NoError(t, coordinator.AddRole(admin, RoleValidator, validator))
	require.NoError(t, coordinator.AddRole(admin, RoleForceExecutor, forceExecutor))

	payload := ProposalPayload{Messages: []CanisterMessage{
		{Target: target, Method: "do_thing"},
	}}
	id, err := coordinator.Submit(proposer, ProposalMetadata{Name: "n", Description: "d"}, payload, At(0), At(int64(3600)), false)
	require.NoError(t, err)

	votingEnd := int64(1000)
	threshold := &ProposalPassingThreshold{Quorum: PercentFromWhole(20), PassingThreshold: PercentFromWhole(50)}
	require.NoError(t, coordinator.Validate(validator, id, &votingEnd, threshold, true))

	p, err := store.GetProposal(id)
	require.NoError(t, err)
	require.Equal(t, StateOpen, p.State.Kind)

	require.NoError(t, coordinator.ForceExecute(context.Background(), forceExecutor, id))

	p, err = store.GetProposal(id)
	require.NoError(t, err)
	require.Equal(t, StateForceExecutionSucceeded, p.State.Kind)
	require.Equal(t, []string{"do_thing"}, invoker.calls)
}
