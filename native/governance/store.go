package governance

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"

	"nxgov/storage"
)

// Store is the durable, index-addressed Proposal Store (spec.md §2, item
// 5). It owns proposals, their metadata/payload logs, execution results,
// revocations, the Config cell, and the Hook Notifier's timer-task stack.
//
// Role administration is explicitly out of this module's scope (spec.md
// §1: "role administration (RBAC) beyond the interface it presents to the
// core"), so the Store carries no role segments; RoleGate is an in-memory
// collaborator owned directly by the Coordinator.
type Store interface {
	// NextProposalID reports the id the next AppendProposal call will
	// assign: the current proposal count.
	NextProposalID() (Index, error)
	// AppendProposal inserts p at NextProposalID and returns that id.
	AppendProposal(p Proposal) (Index, error)
	GetProposal(id Index) (*Proposal, error)
	PutProposal(id Index, p Proposal) error

	AppendMetadata(m ProposalMetadata) (Index, error)
	GetMetadata(id Index) (*ProposalMetadata, error)

	AppendPayload(p ProposalPayload) (Index, error)
	GetPayload(id Index) (*ProposalPayload, error)

	GetExec(id Index) (*ProposalExec, error)
	PutExec(id Index, e ProposalExec) error

	PutRevoke(id Index, r ProposalRevoke) error
	GetRevoke(id Index) (*ProposalRevoke, error)

	// PushHookTask appends id to the top of the LIFO timer-task stack.
	PushHookTask(id Index) error
	// PopHookTask removes and returns the top of the stack. ok is false
	// when the stack is empty.
	PopHookTask() (id Index, ok bool, err error)
	// HookTaskCount reports the number of tasks currently pending, for the
	// Stats query (SPEC_FULL.md §9).
	HookTaskCount() (uint64, error)

	GetConfig() (Config, error)
	PutConfig(cfg Config) error

	Close() error
}

// KVStore is the production Store, backed by storage.Database — the
// teacher's generic key-value seam (storage/db.go) — rather than any one
// backend directly, so the same gob/json framing below serves both the
// persistent LevelDB backend and the in-memory MemDB backend. Proposals,
// metadata, and payloads use the schema-tight encoding/gob framing; Config
// and ProposalExec use the self-describing encoding/json framing — the
// split described in SPEC_FULL.md §5 and spec.md §9's CBOR-vs-IDL design
// note.
type KVStore struct {
	db storage.Database
}

// OpenLevelDBStore opens (creating if absent) a LevelDB-backed Store at
// path.
func OpenLevelDBStore(path string) (*KVStore, error) {
	db, err := storage.NewLevelDB(path)
	if err != nil {
		return nil, fmt.Errorf("governance: %w: open store: %w", ErrMemory, err)
	}
	return &KVStore{db: db}, nil
}

// NewMemKVStore builds a KVStore over storage.MemDB, exercising the
// teacher's in-memory Database implementation through the same gob/json
// framing the LevelDB-backed store uses — useful for tests that want the
// real encode/decode path without a filesystem.
func NewMemKVStore() *KVStore {
	return &KVStore{db: storage.NewMemDB()}
}

func (s *KVStore) Close() error {
	s.db.Close()
	return nil
}

const (
	keyProposalCount = "proposal/_count"
	keyMetadataCount = "metadata/_count"
	keyPayloadCount  = "payload/_count"
	keyHookTaskLen   = "hooktask/_len"
	keyConfig        = "cfg/"
)

func proposalKey(id Index) []byte { return []byte(fmt.Sprintf("proposal/%020d", id)) }
func metadataKey(id Index) []byte { return []byte(fmt.Sprintf("metadata/%020d", id)) }
func payloadKey(id Index) []byte  { return []byte(fmt.Sprintf("payload/%020d", id)) }
func execKey(id Index) []byte     { return []byte(fmt.Sprintf("exec/%020d", id)) }
func revokeKey(id Index) []byte   { return []byte(fmt.Sprintf("revoke/%020d", id)) }
func hookTaskKey(i uint64) []byte { return []byte(fmt.Sprintf("hooktask/%020d", i)) }

func (s *KVStore) getCounter(key string) (uint64, error) {
	raw, err := s.db.Get([]byte(key))
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("governance: %w: %w", ErrMemory, err)
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (s *KVStore) putCounter(key string, value uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, value)
	if err := s.db.Put([]byte(key), buf); err != nil {
		return fmt.Errorf("governance: %w: %w", ErrMemory, err)
	}
	return nil
}

func gobEncode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("governance: %w: encode: %w", ErrMemory, err)
	}
	return buf.Bytes(), nil
}

func gobDecode(data []byte, v any) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("governance: %w: decode: %w", ErrMemory, err)
	}
	return nil
}

func (s *KVStore) getGob(key []byte, v any) error {
	raw, err := s.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("governance: %w: %w", ErrMemory, err)
	}
	return gobDecode(raw, v)
}

func (s *KVStore) putGob(key []byte, v any) error {
	data, err := gobEncode(v)
	if err != nil {
		return err
	}
	if err := s.db.Put(key, data); err != nil {
		return fmt.Errorf("governance: %w: %w", ErrMemory, err)
	}
	return nil
}

func (s *KVStore) NextProposalID() (Index, error) {
	return s.getCounter(keyProposalCount)
}

func (s *KVStore) AppendProposal(p Proposal) (Index, error) {
	id, err := s.getCounter(keyProposalCount)
	if err != nil {
		return 0, err
	}
	if err := s.putGob(proposalKey(id), &p); err != nil {
		return 0, err
	}
	if err := s.putCounter(keyProposalCount, id+1); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *KVStore) GetProposal(id Index) (*Proposal, error) {
	var p Proposal
	if err := s.getGob(proposalKey(id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *KVStore) PutProposal(id Index, p Proposal) error {
	return s.putGob(proposalKey(id), &p)
}

func (s *KVStore) AppendMetadata(m ProposalMetadata) (Index, error) {
	id, err := s.getCounter(keyMetadataCount)
	if err != nil {
		return 0, err
	}
	if err := s.putGob(metadataKey(id), &m); err != nil {
		return 0, err
	}
	if err := s.putCounter(keyMetadataCount, id+1); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *KVStore) GetMetadata(id Index) (*ProposalMetadata, error) {
	var m ProposalMetadata
	if err := s.getGob(metadataKey(id), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *KVStore) AppendPayload(p ProposalPayload) (Index, error) {
	id, err := s.getCounter(keyPayloadCount)
	if err != nil {
		return 0, err
	}
	if err := s.putGob(payloadKey(id), &p); err != nil {
		return 0, err
	}
	if err := s.putCounter(keyPayloadCount, id+1); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *KVStore) GetPayload(id Index) (*ProposalPayload, error) {
	var p ProposalPayload
	if err := s.getGob(payloadKey(id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *KVStore) GetExec(id Index) (*ProposalExec, error) {
	raw, err := s.db.Get(execKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return &ProposalExec{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("governance: %w: %w", ErrMemory, err)
	}
	var e ProposalExec
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("governance: %w: decode exec: %w", ErrMemory, err)
	}
	return &e, nil
}

func (s *KVStore) PutExec(id Index, e ProposalExec) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("governance: %w: encode exec: %w", ErrMemory, err)
	}
	if err := s.db.Put(execKey(id), data); err != nil {
		return fmt.Errorf("governance: %w: %w", ErrMemory, err)
	}
	return nil
}

func (s *KVStore) PutRevoke(id Index, r ProposalRevoke) error {
	return s.putGob(revokeKey(id), &r)
}

func (s *KVStore) GetRevoke(id Index) (*ProposalRevoke, error) {
	var r ProposalRevoke
	if err := s.getGob(revokeKey(id), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *KVStore) PushHookTask(id Index) error {
	length, err := s.getCounter(keyHookTaskLen)
	if err != nil {
		return err
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	if err := s.db.Put(hookTaskKey(length), buf); err != nil {
		return fmt.Errorf("governance: %w: %w", ErrMemory, err)
	}
	return s.putCounter(keyHookTaskLen, length+1)
}

func (s *KVStore) PopHookTask() (Index, bool, error) {
	length, err := s.getCounter(keyHookTaskLen)
	if err != nil {
		return 0, false, err
	}
	if length == 0 {
		return 0, false, nil
	}
	top := length - 1
	raw, err := s.db.Get(hookTaskKey(top))
	if err != nil {
		return 0, false, fmt.Errorf("governance: %w: %w", ErrMemory, err)
	}
	id := binary.BigEndian.Uint64(raw)
	if err := s.db.Delete(hookTaskKey(top)); err != nil {
		return 0, false, fmt.Errorf("governance: %w: %w", ErrMemory, err)
	}
	if err := s.putCounter(keyHookTaskLen, top); err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (s *KVStore) HookTaskCount() (uint64, error) {
	return s.getCounter(keyHookTaskLen)
}

func (s *KVStore) GetConfig() (Config, error) {
	raw, err := s.db.Get([]byte(keyConfig))
	if errors.Is(err, storage.ErrNotFound) {
		return Config{MinPassingThreshold: DefaultPassingThreshold()}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("governance: %w: %w", ErrMemory, err)
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("governance: %w: decode config: %w", ErrMemory, err)
	}
	return cfg, nil
}

func (s *KVStore) PutConfig(cfg Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("governance: %w: encode config: %w", ErrMemory, err)
	}
	if err := s.db.Put([]byte(keyConfig), data); err != nil {
		return fmt.Errorf("governance: %w: %w", ErrMemory, err)
	}
	return nil
}
