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

// ClientFollowUpStore persists the post-reveal client check-in rows. One row
// per (lead, provider) pair; the pair unique index makes scheduling
// idempotent, and a requeued lead gets a fresh row per new provider.
type ClientFollowUpStore struct {
	db *bun.DB
}

func NewClientFollowUpStore(db *bun.DB) (*ClientFollowUpStore, error) {
	if db == nil {
		return nil, errors.New("sqlstore: bun db is required")
	}
	return &ClientFollowUpStore{db: db}, nil
}

func (s *ClientFollowUpStore) CreateIfAbsent(ctx context.Context, followUp core.ClientFollowUp) (core.CreateFollowUpResult, error) {
	if s == nil || s.db == nil {
		return core.CreateFollowUpResult{}, errors.New("sqlstore: client follow-up store is not configured")
	}
	record := newClientFollowUpRecord(followUp)
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, insertErr := tx.NewInsert().Model(record).Exec(ctx); insertErr != nil {
			if isUniqueViolation(insertErr) {
				return errReplay
			}
			return fmt.Errorf("sqlstore: insert client follow-up: %w", insertErr)
		}
		return nil
	})
	if errors.Is(err, errReplay) {
		existing := &clientFollowUpRecord{}
		lookupErr := s.db.NewSelect().
			Model(existing).
			Where("?TableAlias.lead_id = ?", followUp.LeadID).
			Where("?TableAlias.provider_id = ?", followUp.ProviderID).
			Limit(1).
			Scan(ctx)
		if lookupErr != nil {
			return core.CreateFollowUpResult{}, fmt.Errorf("sqlstore: select client follow-up replay: %w", lookupErr)
		}
		return core.CreateFollowUpResult{FollowUp: existing.toDomain(), Created: false}, nil
	}
	if err != nil {
		return core.CreateFollowUpResult{}, err
	}
	return core.CreateFollowUpResult{FollowUp: record.toDomain(), Created: true}, nil
}

func (s *ClientFollowUpStore) ListDue(ctx context.Context, now time.Time, limit int) ([]core.ClientFollowUp, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlstore: client follow-up store is not configured")
	}
	var records []*clientFollowUpRecord
	query := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.status = ?", string(core.FollowUpStatusScheduled)).
		Where("?TableAlias.send_after <= ?", now).
		OrderExpr("?TableAlias.send_after ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("sqlstore: list due client follow-ups: %w", err)
	}
	followUps := make([]core.ClientFollowUp, 0, len(records))
	for _, record := range records {
		followUps = append(followUps, record.toDomain())
	}
	return followUps, nil
}

func (s *ClientFollowUpStore) Transition(ctx context.Context, id int64, from core.FollowUpStatus, to core.FollowUpStatus, set core.FollowUpMutation) (core.ClientFollowUp, bool, error) {
	if s == nil || s.db == nil {
		return core.ClientFollowUp{}, false, errors.New("sqlstore: client follow-up store is not configured")
	}
	query := s.db.NewUpdate().
		Model((*clientFollowUpRecord)(nil)).
		Set("status = ?", string(to)).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", id).
		Where("status = ?", string(from))
	if set.SentAt != nil {
		query = query.Set("sent_at = ?", *set.SentAt)
	}
	if set.RepliedAt != nil {
		query = query.Set("replied_at = ?", *set.RepliedAt)
	}
	if set.RecoveryOfferedAt != nil {
		query = query.Set("recovery_offered_at = ?", *set.RecoveryOfferedAt)
	}

	result, err := query.Exec(ctx)
	if err != nil {
		return core.ClientFollowUp{}, false, fmt.Errorf("sqlstore: transition client follow-up: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.ClientFollowUp{}, false, fmt.Errorf("sqlstore: transition client follow-up rows affected: %w", err)
	}

	current, err := s.get(ctx, id)
	if err != nil {
		return core.ClientFollowUp{}, false, err
	}
	return current, affected > 0, nil
}

func (s *ClientFollowUpStore) FindOpenByPhones(ctx context.Context, phones []string) (core.ClientFollowUp, error) {
	if s == nil || s.db == nil {
		return core.ClientFollowUp{}, errors.New("sqlstore: client follow-up store is not configured")
	}
	if len(phones) == 0 {
		return core.ClientFollowUp{}, errors.New("sqlstore: client follow-up not found: no phone candidates")
	}
	openStatuses := []string{
		string(core.FollowUpStatusSent),
		string(core.FollowUpStatusRecoveryOffered),
	}
	record := &clientFollowUpRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.client_phone IN (?)", bun.In(phones)).
		Where("?TableAlias.status IN (?)", bun.In(openStatuses)).
		OrderExpr("?TableAlias.id DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ClientFollowUp{}, fmt.Errorf("sqlstore: client follow-up not found: phone %q", phones[0])
	}
	if err != nil {
		return core.ClientFollowUp{}, fmt.Errorf("sqlstore: select open client follow-up: %w", err)
	}
	return record.toDomain(), nil
}

// ExpireStale sweeps rows the client never answered, plus NO_REPLIED rows
// whose recovery offer never got written. Only prompted rows age out;
// SCHEDULED rows keep waiting for their send.
func (s *ClientFollowUpStore) ExpireStale(ctx context.Context, cutoff time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("sqlstore: client follow-up store is not configured")
	}
	openStatuses := []string{
		string(core.FollowUpStatusSent),
		string(core.FollowUpStatusNoReplied),
		string(core.FollowUpStatusRecoveryOffered),
	}
	result, err := s.db.NewUpdate().
		Model((*clientFollowUpRecord)(nil)).
		Set("status = ?", string(core.FollowUpStatusExpired)).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("status IN (?)", bun.In(openStatuses)).
		Where("sent_at IS NOT NULL").
		Where("sent_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: expire stale client follow-ups: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: expire stale rows affected: %w", err)
	}
	return int(affected), nil
}

func (s *ClientFollowUpStore) get(ctx context.Context, id int64) (core.ClientFollowUp, error) {
	record := &clientFollowUpRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ClientFollowUp{}, fmt.Errorf("sqlstore: client follow-up not found: id %d", id)
	}
	if err != nil {
		return core.ClientFollowUp{}, fmt.Errorf("sqlstore: select client follow-up: %w", err)
	}
	return record.toDomain(), nil
}
