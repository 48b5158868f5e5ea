package database

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ipsweep/internal/domain"
)

const resultInsertBatchSize = 512

// Store persists sweep progress in the checked table and probe results in the
// ip table. It expects a single writer.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Load returns the highest committed address, or 0 when nothing was committed.
func (s *Store) Load(ctx context.Context) (domain.Addr, error) {
	addr, _, err := s.Checkpoint(ctx)
	return addr, err
}

// Checkpoint returns the highest committed address and whether one exists.
func (s *Store) Checkpoint(ctx context.Context) (domain.Addr, bool, error) {
	var highest sql.NullInt64
	row := s.db.WithContext(ctx).
		Model(&domain.CheckedAddress{}).
		Select("MAX(addr)").
		Row()
	if err := row.Scan(&highest); err != nil {
		return 0, false, fmt.Errorf("database: load checkpoint: %w", err)
	}
	if !highest.Valid {
		return 0, false, nil
	}
	return domain.Addr(uint32(highest.Int64)), true, nil
}

// Commit records addr as fully processed. Committing the same address twice is
// a no-op.
func (s *Store) Commit(ctx context.Context, addr domain.Addr) error {
	row := domain.CheckedAddress{Addr: int64(addr)}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("database: commit checkpoint %s: %w", addr, err)
	}
	return nil
}

// RecordResults inserts results, ignoring addresses already present.
func (s *Store) RecordResults(ctx context.Context, results []domain.HostResult) error {
	if len(results) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&results, resultInsertBatchSize).Error
	if err != nil {
		return fmt.Errorf("database: record %d results: %w", len(results), err)
	}
	return nil
}

// Results lists stored results ordered by address. reachableOnly filters out
// rows kept by unreachable retention.
func (s *Store) Results(ctx context.Context, reachableOnly bool) ([]domain.HostResult, error) {
	query := s.db.WithContext(ctx).Model(&domain.HostResult{}).Order("addr")
	if reachableOnly {
		query = query.Where("reachable = ?", true)
	}

	var results []domain.HostResult
	if err := query.Find(&results).Error; err != nil {
		return nil, fmt.Errorf("database: list results: %w", err)
	}
	return results, nil
}
