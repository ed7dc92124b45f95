package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goliatone/go-leads/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// LeadStore persists leads and the closed flag that ends a lead's auction.
type LeadStore struct {
	db   *bun.DB
	repo repository.Repository[*leadRecord]
}

func NewLeadStore(db *bun.DB) (*LeadStore, error) {
	if db == nil {
		return nil, errors.New("sqlstore: bun db is required")
	}
	return &LeadStore{
		db:   db,
		repo: repository.NewRepository[*leadRecord](db, leadHandlers()),
	}, nil
}

func (s *LeadStore) Create(ctx context.Context, lead core.Lead) (core.Lead, error) {
	if s == nil || s.db == nil {
		return core.Lead{}, errors.New("sqlstore: lead store is not configured")
	}
	record := newLeadRecord(lead)
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return core.Lead{}, fmt.Errorf("sqlstore: insert lead: %w", err)
	}
	return record.toDomain(), nil
}

func (s *LeadStore) Get(ctx context.Context, leadID string) (core.Lead, error) {
	if s == nil || s.db == nil {
		return core.Lead{}, errors.New("sqlstore: lead store is not configured")
	}
	record := &leadRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", leadID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Lead{}, fmt.Errorf("sqlstore: lead not found: id %q", leadID)
	}
	if err != nil {
		return core.Lead{}, fmt.Errorf("sqlstore: select lead: %w", err)
	}
	return record.toDomain(), nil
}

// Close flips is_closed with a guard so only the first caller wins.
func (s *LeadStore) Close(ctx context.Context, leadID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("sqlstore: lead store is not configured")
	}
	result, err := s.db.NewUpdate().
		Model((*leadRecord)(nil)).
		Set("is_closed = ?", true).
		Where("id = ?", leadID).
		Where("is_closed = ?", false).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("sqlstore: close lead: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlstore: close lead rows affected: %w", err)
	}
	return affected > 0, nil
}
