package sqlstore

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"nxgov/native/governance"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestProposalRoundTrip(t *testing.T) {
	store := openTestStore(t)

	proposal := governance.Proposal{
		MetadataID: 0,
		PayloadID:  0,
		Proposer:   governance.MustNewPrincipal(bytes.Repeat([]byte{1}, 20)),
		State:      governance.ProposalState{Kind: governance.StateSubmitted},
	}
	id, err := store.AppendProposal(proposal)
	require.NoError(t, err)
	require.Equal(t, governance.Index(0), id)

	got, err := store.GetProposal(id)
	require.NoError(t, err)
	require.Equal(t, governance.StateSubmitted, got.State.Kind)

	got.State = governance.ProposalState{Kind: governance.StateOpen}
	require.NoError(t, store.PutProposal(id, *got))

	reloaded, err := store.GetProposal(id)
	require.NoError(t, err)
	require.Equal(t, governance.StateOpen, reloaded.State.Kind)

	next, err := store.NextProposalID()
	require.NoError(t, err)
	require.Equal(t, governance.Index(1), next)
}

func TestGetMissingProposalReturnsErrNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.GetProposal(42)
	require.ErrorIs(t, err, governance.ErrNotFound)
}

func TestConfigDefaultsUntilSet(t *testing.T) {
	store := openTestStore(t)

	cfg, err := store.GetConfig()
	require.NoError(t, err)
	require.Equal(t, governance.DefaultPassingThreshold(), cfg.MinPassingThreshold)

	cfg.Initialized = true
	cfg.Name = "test"
	require.NoError(t, store.PutConfig(cfg))

	reloaded, err := store.GetConfig()
	require.NoError(t, err)
	require.True(t, reloaded.Initialized)
	require.Equal(t, "test", reloaded.Name)
}

func TestHookTaskStackIsLIFO(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.PushHookTask(1))
	require.NoError(t, store.PushHookTask(2))
	require.NoError(t, store.PushHookTask(3))

	count, err := store.HookTaskCount()
	require.NoError(t, err)
	require.Equal(t, uint64(3), count)

	id, ok, err := store.PopHookTask()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, governance.Index(3), id)

	id, ok, err = store.PopHookTask()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, governance.Index(2), id)
}
