package governance

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"nxgov/native/governance/memstore"
)

func newTestCoordinator(t *testing.T, admins ...Principal) (*Coordinator, Store) {
	t.Helper()
	store := memstore.New()
	gate := NewRoleGate(admins...)
	hooks := NewHookNotifier(store, nil, nil)
	dispatcher := NewDispatcher(store, nil, nil)
	coordinator := NewCoordinator(store, gate, hooks, dispatcher, NoopEmitter{}, nil, nil)
	coordinator.SetNowFunc(func() int64 { return 0 })
	return coordinator, store
}

func TestSubmitRequiresProposerRole(t *testing.T) {
	coordinator, _ := newTestCoordinator(t)
	caller := MustNewPrincipal(bytes.Repeat([]byte{1}, 20))
	require.Panics(t, func() {
		_, _ = coordinator.Submit(caller, ProposalMetadata{Name: "n", Description: "d"}, ProposalPayload{}, In(0), In(int64(1)), false)
	})
}

func TestSubmitRejectsInvalidMetadata(t *testing.T) {
	coordinator, _ := newTestCoordinator(t)
	admin := MustNewPrincipal(bytes.Repeat([]byte{1}, 20))
	caller := MustNewPrincipal(bytes.Repeat([]byte{2}, 20))
	coordinator2, _ := newTestCoordinator(t, admin)
	_ = coordinator
	require.NoError(t, coordinator2.AddRole(admin, RoleProposer, caller))

	_, err := coordinator2.Submit(caller, ProposalMetadata{}, ProposalPayload{}, In(0), In(int64(1)), false)
	require.ErrorIs(t, err, ErrInput)
}

func TestSubmitRejectsPastExpiry(t *testing.T) {
	admin := MustNewPrincipal(bytes.Repeat([]byte{1}, 20))
	caller := MustNewPrincipal(bytes.Repeat([]byte{2}, 20))
	coordinator, _ := newTestCoordinator(t, admin)
	require.NoError(t, coordinator.AddRole(admin, RoleProposer, caller))

	_, err := coordinator.Submit(caller, ProposalMetadata{Name: "n", Description: "d"}, ProposalPayload{}, In(0), At(-1), false)
	require.ErrorIs(t, err, ErrInput)
}

func TestFullLifecycleToAccepted(t *testing.T) {
	admin := MustNewPrincipal(bytes.Repeat([]byte{1}, 20))
	proposer := MustNewPrincipal(bytes.Repeat([]byte{2}, 20))
	validator := MustNewPrincipal(bytes.Repeat([]byte{3}, 20))
	voteManager := MustNewPrincipal(bytes.Repeat([]byte{4}, 20))

	coordinator, store := newTestCoordinator(t, admin)
	require.NoError(t, coordinator.AddRole(admin, RoleProposer, proposer))
	require.NoError(t, coordinator.AddRole(admin, RoleValidator, validator))
	require.NoError(t, coordinator.AddRole(admin, RoleVoteManager, voteManager))

	id, err := coordinator.Submit(proposer, ProposalMetadata{Name: "n", Description: "d"}, ProposalPayload{}, In(0), In(int64(3600)), false)
	require.NoError(t, err)

	votingEnd := int64(1000)
	threshold := &ProposalPassingThreshold{Quorum: PercentFromWhole(20), PassingThreshold: PercentFromWhole(50)}
	require.NoError(t, coordinator.Validate(validator, id, &votingEnd, threshold, true))

	p, err := store.GetProposal(id)
	require.NoError(t, err)
	require.Equal(t, StateOpen, p.State.Kind)

	require.NoError(t, coordinator.UpdateVoteResultAndTotalVotingPower(voteManager, id, big.NewInt(80), big.NewInt(10), big.NewInt(0), big.NewInt(100)))
	require.NoError(t, coordinator.FinalizeVoteResult(voteManager, id))

	p, err = store.GetProposal(id)
	require.NoError(t, err)
	require.Equal(t, StateAccepted, p.State.Kind)
}

func TestRevokeOnlyFromOpen(t *testing.T) {
	admin := MustNewPrincipal(bytes.Repeat([]byte{1}, 20))
	proposer := MustNewPrincipal(bytes.Repeat([]byte{2}, 20))
	revoker := MustNewPrincipal(bytes.Repeat([]byte{3}, 20))

	coordinator, _ := newTestCoordinator(t, admin)
	require.NoError(t, coordinator.AddRole(admin, RoleProposer, proposer))
	require.NoError(t, coordinator.AddRole(admin, RoleRevoker, revoker))

	id, err := coordinator.Submit(proposer, ProposalMetadata{Name: "n", Description: "d"}, ProposalPayload{}, In(0), In(int64(3600)), false)
	require.NoError(t, err)

	// Still Submitted, not Open: revoke must fail.
	err = coordinator.Revoke(revoker, id, "no longer needed")
	require.ErrorIs(t, err, ErrIncorrectProposalState)
}
