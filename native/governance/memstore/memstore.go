// Package memstore is an in-memory governance.Store implementation, used by
// unit tests so they do not depend on a LevelDB file on disk. Grounded in
// the teacher's storage.MemDB (storage/db.go), generalized from a flat
// byte-string map to the Store's typed index-addressed segments.
package memstore

import (
	"sync"

	"nxgov/native/governance"
)

// Store is an in-memory governance.Store.
type Store struct {
	mu sync.Mutex

	proposals []governance.Proposal
	metadata  []governance.ProposalMetadata
	payloads  []governance.ProposalPayload
	execs     map[governance.Index]governance.ProposalExec
	revokes   map[governance.Index]governance.ProposalRevoke
	hookTasks []governance.Index
	config    governance.Config
	hasConfig bool
}

// New constructs an empty in-memory Store.
func New() *Store {
	return &Store{
		execs:   make(map[governance.Index]governance.ProposalExec),
		revokes: make(map[governance.Index]governance.ProposalRevoke),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) NextProposalID() (governance.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return governance.Index(len(s.proposals)), nil
}

func (s *Store) AppendProposal(p governance.Proposal) (governance.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := governance.Index(len(s.proposals))
	s.proposals = append(s.proposals, p)
	return id, nil
}

func (s *Store) GetProposal(id governance.Index) (*governance.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id >= governance.Index(len(s.proposals)) {
		return nil, governance.ErrNotFound
	}
	p := s.proposals[id]
	return &p, nil
}

func (s *Store) PutProposal(id governance.Index, p governance.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id >= governance.Index(len(s.proposals)) {
		return governance.ErrNotFound
	}
	s.proposals[id] = p
	return nil
}

func (s *Store) AppendMetadata(m governance.ProposalMetadata) (governance.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := governance.Index(len(s.metadata))
	s.metadata = append(s.metadata, m)
	return id, nil
}

func (s *Store) GetMetadata(id governance.Index) (*governance.ProposalMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id >= governance.Index(len(s.metadata)) {
		return nil, governance.ErrNotFound
	}
	m := s.metadata[id]
	return &m, nil
}

func (s *Store) AppendPayload(p governance.ProposalPayload) (governance.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := governance.Index(len(s.payloads))
	s.payloads = append(s.payloads, p)
	return id, nil
}

func (s *Store) GetPayload(id governance.Index) (*governance.ProposalPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id >= governance.Index(len(s.payloads)) {
		return nil, governance.ErrNotFound
	}
	p := s.payloads[id]
	return &p, nil
}

func (s *Store) GetExec(id governance.Index) (*governance.ProposalExec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.execs[id]
	return &e, nil
}

func (s *Store) PutExec(id governance.Index, e governance.ProposalExec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.execs[id] = e
	return nil
}

func (s *Store) PutRevoke(id governance.Index, r governance.ProposalRevoke) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revokes[id] = r
	return nil
}

func (s *Store) GetRevoke(id governance.Index) (*governance.ProposalRevoke, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.revokes[id]
	if !ok {
		return nil, governance.ErrNotFound
	}
	return &r, nil
}

func (s *Store) PushHookTask(id governance.Index) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hookTasks = append(s.hookTasks, id)
	return nil
}

func (s *Store) PopHookTask() (governance.Index, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.hookTasks) == 0 {
		return 0, false, nil
	}
	last := len(s.hookTasks) - 1
	id := s.hookTasks[last]
	s.hookTasks = s.hookTasks[:last]
	return id, true, nil
}

func (s *Store) HookTaskCount() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint64(len(s.hookTasks)), nil
}

func (s *Store) GetConfig() (governance.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasConfig {
		return governance.Config{MinPassingThreshold: governance.DefaultPassingThreshold()}, nil
	}
	return s.config, nil
}

func (s *Store) PutConfig(cfg governance.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
	s.hasConfig = true
	return nil
}
