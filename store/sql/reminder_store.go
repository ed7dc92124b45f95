package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-leads/core"
	"github.com/uptrace/bun"
)

// ProviderReminderStore persists the nudge rows that chase an unanswered
// teaser. The (lead_id, provider_id) unique index makes scheduling
// idempotent.
type ProviderReminderStore struct {
	db *bun.DB
}

func NewProviderReminderStore(db *bun.DB) (*ProviderReminderStore, error) {
	if db == nil {
		return nil, errors.New("sqlstore: bun db is required")
	}
	return &ProviderReminderStore{db: db}, nil
}

func (s *ProviderReminderStore) CreateIfAbsent(ctx context.Context, reminder core.ProviderReminder) (core.CreateReminderResult, error) {
	if s == nil || s.db == nil {
		return core.CreateReminderResult{}, errors.New("sqlstore: provider reminder store is not configured")
	}
	record := newProviderReminderRecord(reminder)
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, insertErr := tx.NewInsert().Model(record).Exec(ctx); insertErr != nil {
			if isUniqueViolation(insertErr) {
				return errReplay
			}
			return fmt.Errorf("sqlstore: insert provider reminder: %w", insertErr)
		}
		return nil
	})
	if errors.Is(err, errReplay) {
		existing := &providerReminderRecord{}
		lookupErr := s.db.NewSelect().
			Model(existing).
			Where("?TableAlias.lead_id = ?", reminder.LeadID).
			Where("?TableAlias.provider_id = ?", reminder.ProviderID).
			Limit(1).
			Scan(ctx)
		if lookupErr != nil {
			return core.CreateReminderResult{}, fmt.Errorf("sqlstore: select provider reminder replay: %w", lookupErr)
		}
		return core.CreateReminderResult{Reminder: existing.toDomain(), Created: false}, nil
	}
	if err != nil {
		return core.CreateReminderResult{}, err
	}
	return core.CreateReminderResult{Reminder: record.toDomain(), Created: true}, nil
}

func (s *ProviderReminderStore) ListDue(ctx context.Context, now time.Time, limit int) ([]core.ProviderReminder, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlstore: provider reminder store is not configured")
	}
	var records []*providerReminderRecord
	query := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.status = ?", string(core.ReminderStatusScheduled)).
		Where("?TableAlias.send_after <= ?", now).
		OrderExpr("?TableAlias.send_after ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("sqlstore: list due provider reminders: %w", err)
	}
	reminders := make([]core.ProviderReminder, 0, len(records))
	for _, record := range records {
		reminders = append(reminders, record.toDomain())
	}
	return reminders, nil
}

func (s *ProviderReminderStore) Transition(ctx context.Context, id int64, from core.ReminderStatus, to core.ReminderStatus, sentAt *time.Time) (core.ProviderReminder, bool, error) {
	if s == nil || s.db == nil {
		return core.ProviderReminder{}, false, errors.New("sqlstore: provider reminder store is not configured")
	}
	query := s.db.NewUpdate().
		Model((*providerReminderRecord)(nil)).
		Set("status = ?", string(to)).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", id).
		Where("status = ?", string(from))
	if sentAt != nil {
		query = query.Set("sent_at = ?", *sentAt)
	}

	result, err := query.Exec(ctx)
	if err != nil {
		return core.ProviderReminder{}, false, fmt.Errorf("sqlstore: transition provider reminder: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.ProviderReminder{}, false, fmt.Errorf("sqlstore: transition provider reminder rows affected: %w", err)
	}

	record := &providerReminderRecord{}
	err = s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ProviderReminder{}, false, fmt.Errorf("sqlstore: provider reminder not found: id %d", id)
	}
	if err != nil {
		return core.ProviderReminder{}, false, fmt.Errorf("sqlstore: select provider reminder: %w", err)
	}
	return record.toDomain(), affected > 0, nil
}
