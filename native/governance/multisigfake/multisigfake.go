// Package multisigfake is a test double for the Multisig Tally variant
// collaborator described in spec.md §6 and SPEC_FULL.md §8: an m-of-n
// signer scheme that forwards a trivially-passing 1-of-1 result to the
// engine. Grounded in
// _examples/original_source/rs/multisig-voting/src/main.rs's
// vote_proposal/submit_vote_result pair, reduced to an in-process
// collaborator so coordinator tests can exercise the Vote Manager hook
// surface without standing up a second canister-equivalent service.
package multisigfake

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"nxgov/native/governance"
)

// Vote mirrors the Vote enum signers cast against an open proposal.
type Vote int

const (
	VoteYes Vote = iota
	VoteNo
	VoteAbstain
)

type tally struct {
	yes, no, abstain map[string]struct{}
	submitted        bool
}

// Multisig is the fake m-of-n signer collaborator. votesRequired is the
// pass threshold `m`; signers is the full signer set `n`.
type Multisig struct {
	mu            sync.Mutex
	votesRequired uint64
	signers       map[string]struct{}
	tallies       map[governance.Index]*tally
	coordinator   *governance.Coordinator
	caller        governance.Principal
}

// New constructs a fake multisig collaborator. caller is the Principal this
// fake uses when calling back into the coordinator; it must hold
// RoleVoteManager.
func New(votesRequired uint64, signers []governance.Principal, coordinator *governance.Coordinator, caller governance.Principal) *Multisig {
	set := make(map[string]struct{}, len(signers))
	for _, s := range signers {
		set[s.String()] = struct{}{}
	}
	return &Multisig{
		votesRequired: votesRequired,
		signers:       set,
		tallies:       make(map[governance.Index]*tally),
		coordinator:   coordinator,
		caller:        caller,
	}
}

// NotifyMultisig mirrors notify_multisig: the fake starts tracking
// proposalID once the Vote Manager hook fires.
func (m *Multisig) NotifyMultisig(proposalID governance.Index) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tallies[proposalID]; !ok {
		m.tallies[proposalID] = &tally{
			yes:     make(map[string]struct{}),
			no:      make(map[string]struct{}),
			abstain: make(map[string]struct{}),
		}
	}
}

// VoteProposal records signer's vote, mirroring vote_proposal. Each signer
// may vote at most once.
func (m *Multisig) VoteProposal(signer governance.Principal, proposalID governance.Index, vote Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.signers[signer.String()]; !ok {
		return fmt.Errorf("multisigfake: %s is not a signer", signer.String())
	}
	t, ok := m.tallies[proposalID]
	if !ok {
		t = &tally{yes: make(map[string]struct{}), no: make(map[string]struct{}), abstain: make(map[string]struct{})}
		m.tallies[proposalID] = t
	}
	key := signer.String()
	if _, voted := t.yes[key]; voted {
		return fmt.Errorf("multisigfake: %s already voted", key)
	}
	if _, voted := t.no[key]; voted {
		return fmt.Errorf("multisigfake: %s already voted", key)
	}
	if _, voted := t.abstain[key]; voted {
		return fmt.Errorf("multisigfake: %s already voted", key)
	}
	switch vote {
	case VoteYes:
		t.yes[key] = struct{}{}
	case VoteNo:
		t.no[key] = struct{}{}
	case VoteAbstain:
		t.abstain[key] = struct{}{}
	}
	return nil
}

// SubmitVoteResult mirrors submit_vote_result: once yes-votes reach the
// m-of-n threshold, forward a trivially-passing 1-of-1 result to the
// engine via update_vote_result_and_total_voting_power(id, 1, 0, 0, 1).
func (m *Multisig) SubmitVoteResult(ctx context.Context, proposalID governance.Index) (bool, error) {
	m.mu.Lock()
	t, ok := m.tallies[proposalID]
	if !ok {
		m.mu.Unlock()
		return false, fmt.Errorf("multisigfake: unknown proposal %d", proposalID)
	}
	if t.submitted {
		m.mu.Unlock()
		return true, nil
	}
	passed := uint64(len(t.yes)) >= m.votesRequired
	if passed {
		t.submitted = true
	}
	m.mu.Unlock()

	if !passed {
		return false, nil
	}
	err := m.coordinator.UpdateVoteResultAndTotalVotingPower(m.caller, proposalID,
		big.NewInt(1), big.NewInt(0), big.NewInt(0), big.NewInt(1))
	return true, err
}
