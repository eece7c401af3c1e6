package multisigfake

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"nxgov/native/governance"
	"nxgov/native/governance/memstore"
)

func newTestCoordinator(t *testing.T, admin governance.Principal) (*governance.Coordinator, governance.Store) {
	t.Helper()
	store := memstore.New()
	gate := governance.NewRoleGate(admin)
	hooks := governance.NewHookNotifier(store, nil, nil)
	dispatcher := governance.NewDispatcher(store, nil, nil)
	coordinator := governance.NewCoordinator(store, gate, hooks, dispatcher, governance.NoopEmitter{}, nil, func() int64 { return 0 })
	return coordinator, store
}

// TestSingleSignerQuorumDrivesEngineToAccepted exercises the 1-of-1 signer
// calling convention: one signer's yes vote already meets votesRequired, so
// SubmitVoteResult forwards a trivially-passing result to the coordinator.
func TestSingleSignerQuorumDrivesEngineToAccepted(t *testing.T) {
	admin := governance.MustNewPrincipal(bytes.Repeat([]byte{1}, 20))
	proposer := governance.MustNewPrincipal(bytes.Repeat([]byte{2}, 20))
	validator := governance.MustNewPrincipal(bytes.Repeat([]byte{3}, 20))
	voteManager := governance.MustNewPrincipal(bytes.Repeat([]byte{4}, 20))
	signer := governance.MustNewPrincipal(bytes.Repeat([]byte{5}, 20))

	coordinator, store := newTestCoordinator(t, admin)
	require.NoError(t, coordinator.AddRole(admin, governance.RoleProposer, proposer))
	require.NoError(t, coordinator.AddRole(admin, governance.RoleValidator, validator))
	require.NoError(t, coordinator.AddRole(admin, governance.RoleVoteManager, voteManager))

	id, err := coordinator.Submit(proposer, governance.ProposalMetadata{Name: "n", Description: "d"},
		governance.ProposalPayload{}, governance.In(0), governance.In(int64(3600)), false)
	require.NoError(t, err)

	votingEnd := int64(1000)
	threshold := &governance.ProposalPassingThreshold{
		Quorum:           governance.PercentFromWhole(20),
		PassingThreshold: governance.PercentFromWhole(50),
	}
	require.NoError(t, coordinator.Validate(validator, id, &votingEnd, threshold, true))

	ms := New(1, []governance.Principal{signer}, coordinator, voteManager)
	ms.NotifyMultisig(id)
	require.NoError(t, ms.VoteProposal(signer, id, VoteYes))

	submitted, err := ms.SubmitVoteResult(context.Background(), id)
	require.NoError(t, err)
	require.True(t, submitted)

	require.NoError(t, coordinator.FinalizeVoteResult(voteManager, id))

	p, err := store.GetProposal(id)
	require.NoError(t, err)
	require.Equal(t, governance.StateAccepted, p.State.Kind)
}

func TestVoteProposalRejectsNonSigner(t *testing.T) {
	admin := governance.MustNewPrincipal(bytes.Repeat([]byte{1}, 20))
	voteManager := governance.MustNewPrincipal(bytes.Repeat([]byte{4}, 20))
	signer := governance.MustNewPrincipal(bytes.Repeat([]byte{5}, 20))
	stranger := governance.MustNewPrincipal(bytes.Repeat([]byte{6}, 20))

	coordinator, _ := newTestCoordinator(t, admin)
	ms := New(1, []governance.Principal{signer}, coordinator, voteManager)
	ms.NotifyMultisig(0)

	err := ms.VoteProposal(stranger, 0, VoteYes)
	require.Error(t, err)
}

func TestSubmitVoteResultIsIdempotent(t *testing.T) {
	admin := governance.MustNewPrincipal(bytes.Repeat([]byte{1}, 20))
	proposer := governance.MustNewPrincipal(bytes.Repeat([]byte{2}, 20))
	validator := governance.MustNewPrincipal(bytes.Repeat([]byte{3}, 20))
	voteManager := governance.MustNewPrincipal(bytes.Repeat([]byte{4}, 20))
	signer := governance.MustNewPrincipal(bytes.Repeat([]byte{5}, 20))

	coordinator, _ := newTestCoordinator(t, admin)
	require.NoError(t, coordinator.AddRole(admin, governance.RoleProposer, proposer))
	require.NoError(t, coordinator.AddRole(admin, governance.RoleValidator, validator))
	require.NoError(t, coordinator.AddRole(admin, governance.RoleVoteManager, voteManager))

	id, err := coordinator.Submit(proposer, governance.ProposalMetadata{Name: "n", Description: "d"},
		governance.ProposalPayload{}, governance.In(0), governance.In(int64(3600)), false)
	require.NoError(t, err)

	votingEnd := int64(1000)
	threshold := &governance.ProposalPassingThreshold{
		Quorum:           governance.PercentFromWhole(20),
		PassingThreshold: governance.PercentFromWhole(50),
	}
	require.NoError(t, coordinator.Validate(validator, id, &votingEnd, threshold, true))

	ms := New(1, []governance.Principal{signer}, coordinator, voteManager)
	ms.NotifyMultisig(id)
	require.NoError(t, ms.VoteProposal(signer, id, VoteYes))

	_, err = ms.SubmitVoteResult(context.Background(), id)
	require.NoError(t, err)

	// A second submission after the quorum already fired must not re-call
	// the coordinator (which would fail: the proposal is still Open, and a
	// second 1-of-1 result would push yes (2) past total voting power (1)).
	submitted, err := ms.SubmitVoteResult(context.Background(), id)
	require.NoError(t, err)
	require.True(t, submitted)
}
