package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-leads/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UnlockAuditStore appends immutable lifecycle entries. Rows are never
// updated or deleted.
type UnlockAuditStore struct {
	db   *bun.DB
	repo repository.Repository[*unlockAuditRecord]
}

func NewUnlockAuditStore(db *bun.DB) (*UnlockAuditStore, error) {
	if db == nil {
		return nil, errors.New("sqlstore: bun db is required")
	}
	return &UnlockAuditStore{
		db:   db,
		repo: repository.NewRepository[*unlockAuditRecord](db, auditHandlers()),
	}, nil
}

func (s *UnlockAuditStore) Append(ctx context.Context, entry core.UnlockAuditEntry) error {
	if s == nil || s.db == nil {
		return errors.New("sqlstore: audit store is not configured")
	}
	record := &unlockAuditRecord{
		ID:         entry.ID,
		LeadID:     entry.LeadID,
		ProviderID: entry.ProviderID,
		Action:     entry.Action,
		Details:    entry.Details,
		CreatedAt:  entry.CreatedAt,
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: append audit entry: %w", err)
	}
	return nil
}

// ListByLead returns the lead's trail in insertion order.
func (s *UnlockAuditStore) ListByLead(ctx context.Context, leadID string) ([]core.UnlockAuditEntry, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlstore: audit store is not configured")
	}
	var records []*unlockAuditRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.lead_id = ?", leadID).
		OrderExpr("?TableAlias.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list audit entries: %w", err)
	}
	entries := make([]core.UnlockAuditEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, record.toDomain())
	}
	return entries, nil
}
