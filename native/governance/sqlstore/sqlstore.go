// Package sqlstore is an alternate governance.Store backend for
// single-node or development deployments that would rather not manage a
// LevelDB data directory: a SQL-backed implementation over gorm and the
// pure-Go glebarez/sqlite driver (no cgo), grounded in the rest of the
// example pack's gorm+sqlite persistence layers. Every row stores its
// payload as a JSON text column rather than a fully normalized schema,
// since Store's callers only ever address records by Index and never
// query by field. The schema-tight/self-describing split KVStore makes at
// the encoding layer (gob vs JSON) is not kept here: every record is
// stored as JSON text.
package sqlstore

import (
	"encoding/json"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"nxgov/native/governance"
)

type proposalRow struct {
	ID   uint64 `gorm:"primaryKey"`
	Data string
}

type metadataRow struct {
	ID   uint64 `gorm:"primaryKey"`
	Data string
}

type payloadRow struct {
	ID   uint64 `gorm:"primaryKey"`
	Data string
}

type execRow struct {
	ID   uint64 `gorm:"primaryKey"`
	Data string
}

type revokeRow struct {
	ID   uint64 `gorm:"primaryKey"`
	Data string
}

type hookTaskRow struct {
	Seq        uint64 `gorm:"primaryKey;autoIncrement"`
	ProposalID uint64
}

type configRow struct {
	ID   uint8 `gorm:"primaryKey"`
	Data string
}

// Store is a gorm-backed governance.Store.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if absent) a SQLite-backed Store at path, or an
// in-memory store when path is ":memory:".
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("governance/sqlstore: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&proposalRow{}, &metadataRow{}, &payloadRow{}, &execRow{}, &revokeRow{}, &hookTaskRow{}, &configRow{}); err != nil {
		return nil, fmt.Errorf("governance/sqlstore: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) NextProposalID() (governance.Index, error) {
	var count int64
	if err := s.db.Model(&proposalRow{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("governance/sqlstore: %w: %w", governance.ErrMemory, err)
	}
	return governance.Index(count), nil
}

func (s *Store) AppendProposal(p governance.Proposal) (governance.Index, error) {
	id, err := s.NextProposalID()
	if err != nil {
		return 0, err
	}
	if err := s.PutProposal(id, p); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) GetProposal(id governance.Index) (*governance.Proposal, error) {
	var row proposalRow
	if err := s.db.First(&row, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err)
	}
	var p governance.Proposal
	if err := json.Unmarshal([]byte(row.Data), &p); err != nil {
		return nil, fmt.Errorf("governance/sqlstore: %w: decode proposal: %w", governance.ErrMemory, err)
	}
	return &p, nil
}

func (s *Store) PutProposal(id governance.Index, p governance.Proposal) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("governance/sqlstore: %w: encode proposal: %w", governance.ErrMemory, err)
	}
	row := proposalRow{ID: uint64(id), Data: string(data)}
	return save(s.db, &row)
}

func (s *Store) AppendMetadata(m governance.ProposalMetadata) (governance.Index, error) {
	var count int64
	if err := s.db.Model(&metadataRow{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("governance/sqlstore: %w: %w", governance.ErrMemory, err)
	}
	id := governance.Index(count)
	data, err := json.Marshal(m)
	if err != nil {
		return 0, fmt.Errorf("governance/sqlstore: %w: encode metadata: %w", governance.ErrMemory, err)
	}
	row := metadataRow{ID: uint64(id), Data: string(data)}
	if err := save(s.db, &row); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) GetMetadata(id governance.Index) (*governance.ProposalMetadata, error) {
	var row metadataRow
	if err := s.db.First(&row, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err)
	}
	var m governance.ProposalMetadata
	if err := json.Unmarshal([]byte(row.Data), &m); err != nil {
		return nil, fmt.Errorf("governance/sqlstore: %w: decode metadata: %w", governance.ErrMemory, err)
	}
	return &m, nil
}

func (s *Store) AppendPayload(p governance.ProposalPayload) (governance.Index, error) {
	var count int64
	if err := s.db.Model(&payloadRow{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("governance/sqlstore: %w: %w", governance.ErrMemory, err)
	}
	id := governance.Index(count)
	data, err := json.Marshal(p)
	if err != nil {
		return 0, fmt.Errorf("governance/sqlstore: %w: encode payload: %w", governance.ErrMemory, err)
	}
	row := payloadRow{ID: uint64(id), Data: string(data)}
	if err := save(s.db, &row); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) GetPayload(id governance.Index) (*governance.ProposalPayload, error) {
	var row payloadRow
	if err := s.db.First(&row, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err)
	}
	var p governance.ProposalPayload
	if err := json.Unmarshal([]byte(row.Data), &p); err != nil {
		return nil, fmt.Errorf("governance/sqlstore: %w: decode payload: %w", governance.ErrMemory, err)
	}
	return &p, nil
}

func (s *Store) GetExec(id governance.Index) (*governance.ProposalExec, error) {
	var row execRow
	if err := s.db.First(&row, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return &governance.ProposalExec{}, nil
		}
		return nil, fmt.Errorf("governance/sqlstore: %w: %w", governance.ErrMemory, err)
	}
	var e governance.ProposalExec
	if err := json.Unmarshal([]byte(row.Data), &e); err != nil {
		return nil, fmt.Errorf("governance/sqlstore: %w: decode exec: %w", governance.ErrMemory, err)
	}
	return &e, nil
}

func (s *Store) PutExec(id governance.Index, e governance.ProposalExec) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("governance/sqlstore: %w: encode exec: %w", governance.ErrMemory, err)
	}
	row := execRow{ID: uint64(id), Data: string(data)}
	return save(s.db, &row)
}

func (s *Store) PutRevoke(id governance.Index, r governance.ProposalRevoke) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("governance/sqlstore: %w: encode revoke: %w", governance.ErrMemory, err)
	}
	row := revokeRow{ID: uint64(id), Data: string(data)}
	return save(s.db, &row)
}

func (s *Store) GetRevoke(id governance.Index) (*governance.ProposalRevoke, error) {
	var row revokeRow
	if err := s.db.First(&row, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err)
	}
	var r governance.ProposalRevoke
	if err := json.Unmarshal([]byte(row.Data), &r); err != nil {
		return nil, fmt.Errorf("governance/sqlstore: %w: decode revoke: %w", governance.ErrMemory, err)
	}
	return &r, nil
}

func (s *Store) PushHookTask(id governance.Index) error {
	row := hookTaskRow{ProposalID: uint64(id)}
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("governance/sqlstore: %w: %w", governance.ErrMemory, err)
	}
	return nil
}

func (s *Store) PopHookTask() (governance.Index, bool, error) {
	var row hookTaskRow
	if err := s.db.Order("seq DESC").First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("governance/sqlstore: %w: %w", governance.ErrMemory, err)
	}
	if err := s.db.Delete(&hookTaskRow{}, row.Seq).Error; err != nil {
		return 0, false, fmt.Errorf("governance/sqlstore: %w: %w", governance.ErrMemory, err)
	}
	return governance.Index(row.ProposalID), true, nil
}

func (s *Store) HookTaskCount() (uint64, error) {
	var count int64
	if err := s.db.Model(&hookTaskRow{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("governance/sqlstore: %w: %w", governance.ErrMemory, err)
	}
	return uint64(count), nil
}

func (s *Store) GetConfig() (governance.Config, error) {
	var row configRow
	if err := s.db.First(&row, "id = ?", 0).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return governance.Config{MinPassingThreshold: governance.DefaultPassingThreshold()}, nil
		}
		return governance.Config{}, fmt.Errorf("governance/sqlstore: %w: %w", governance.ErrMemory, err)
	}
	var cfg governance.Config
	if err := json.Unmarshal([]byte(row.Data), &cfg); err != nil {
		return governance.Config{}, fmt.Errorf("governance/sqlstore: %w: decode config: %w", governance.ErrMemory, err)
	}
	return cfg, nil
}

func (s *Store) PutConfig(cfg governance.Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("governance/sqlstore: %w: encode config: %w", governance.ErrMemory, err)
	}
	row := configRow{ID: 0, Data: string(data)}
	return save(s.db, &row)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("governance/sqlstore: %w: %w", governance.ErrMemory, err)
	}
	return sqlDB.Close()
}

func save(db *gorm.DB, row interface{}) error {
	if err := db.Save(row).Error; err != nil {
		return fmt.Errorf("governance/sqlstore: %w: %w", governance.ErrMemory, err)
	}
	return nil
}

func notFoundOr(err error) error {
	if err == gorm.ErrRecordNotFound {
		return governance.ErrNotFound
	}
	return fmt.Errorf("governance/sqlstore: %w: %w", governance.ErrMemory, err)
}
