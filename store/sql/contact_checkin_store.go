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

// ContactFollowUpStore persists the "did you reach out" check-in rows sent
// to providers after a reveal.
type ContactFollowUpStore struct {
	db *bun.DB
}

func NewContactFollowUpStore(db *bun.DB) (*ContactFollowUpStore, error) {
	if db == nil {
		return nil, errors.New("sqlstore: bun db is required")
	}
	return &ContactFollowUpStore{db: db}, nil
}

func (s *ContactFollowUpStore) CreateIfAbsent(ctx context.Context, checkin core.ContactFollowUp) (core.CreateCheckinResult, error) {
	if s == nil || s.db == nil {
		return core.CreateCheckinResult{}, errors.New("sqlstore: contact follow-up store is not configured")
	}
	record := newContactFollowUpRecord(checkin)
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, insertErr := tx.NewInsert().Model(record).Exec(ctx); insertErr != nil {
			if isUniqueViolation(insertErr) {
				return errReplay
			}
			return fmt.Errorf("sqlstore: insert contact follow-up: %w", insertErr)
		}
		return nil
	})
	if errors.Is(err, errReplay) {
		existing := &contactFollowUpRecord{}
		lookupErr := s.db.NewSelect().
			Model(existing).
			Where("?TableAlias.lead_id = ?", checkin.LeadID).
			Where("?TableAlias.provider_id = ?", checkin.ProviderID).
			Limit(1).
			Scan(ctx)
		if lookupErr != nil {
			return core.CreateCheckinResult{}, fmt.Errorf("sqlstore: select contact follow-up replay: %w", lookupErr)
		}
		return core.CreateCheckinResult{Checkin: existing.toDomain(), Created: false}, nil
	}
	if err != nil {
		return core.CreateCheckinResult{}, err
	}
	return core.CreateCheckinResult{Checkin: record.toDomain(), Created: true}, nil
}

func (s *ContactFollowUpStore) ListDue(ctx context.Context, now time.Time, limit int) ([]core.ContactFollowUp, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlstore: contact follow-up store is not configured")
	}
	var records []*contactFollowUpRecord
	query := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.status = ?", string(core.CheckinStatusScheduled)).
		Where("?TableAlias.send_after <= ?", now).
		OrderExpr("?TableAlias.send_after ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("sqlstore: list due contact follow-ups: %w", err)
	}
	checkins := make([]core.ContactFollowUp, 0, len(records))
	for _, record := range records {
		checkins = append(checkins, record.toDomain())
	}
	return checkins, nil
}

func (s *ContactFollowUpStore) Transition(ctx context.Context, id int64, from core.CheckinStatus, to core.CheckinStatus, respondedAt *time.Time, responseValue *int, sentAt *time.Time) (core.ContactFollowUp, bool, error) {
	if s == nil || s.db == nil {
		return core.ContactFollowUp{}, false, errors.New("sqlstore: contact follow-up store is not configured")
	}
	query := s.db.NewUpdate().
		Model((*contactFollowUpRecord)(nil)).
		Set("status = ?", string(to)).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", id).
		Where("status = ?", string(from))
	if respondedAt != nil {
		query = query.Set("responded_at = ?", *respondedAt)
	}
	if responseValue != nil {
		query = query.Set("response_value = ?", *responseValue)
	}
	if sentAt != nil {
		query = query.Set("sent_at = ?", *sentAt)
	}

	result, err := query.Exec(ctx)
	if err != nil {
		return core.ContactFollowUp{}, false, fmt.Errorf("sqlstore: transition contact follow-up: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.ContactFollowUp{}, false, fmt.Errorf("sqlstore: transition contact follow-up rows affected: %w", err)
	}

	record := &contactFollowUpRecord{}
	err = s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ContactFollowUp{}, false, fmt.Errorf("sqlstore: contact follow-up not found: id %d", id)
	}
	if err != nil {
		return core.ContactFollowUp{}, false, fmt.Errorf("sqlstore: select contact follow-up: %w", err)
	}
	return record.toDomain(), affected > 0, nil
}

// FindOpenByProvider resolves the latest prompted row for the provider so a
// bare "1" or "2" reply can land.
func (s *ContactFollowUpStore) FindOpenByProvider(ctx context.Context, providerID string) (core.ContactFollowUp, error) {
	if s == nil || s.db == nil {
		return core.ContactFollowUp{}, errors.New("sqlstore: contact follow-up store is not configured")
	}
	record := &contactFollowUpRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.provider_id = ?", providerID).
		Where("?TableAlias.status = ?", string(core.CheckinStatusSent)).
		OrderExpr("?TableAlias.id DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ContactFollowUp{}, fmt.Errorf("sqlstore: contact follow-up not found: provider %q", providerID)
	}
	if err != nil {
		return core.ContactFollowUp{}, fmt.Errorf("sqlstore: select open contact follow-up: %w", err)
	}
	return record.toDomain(), nil
}

// Stats aggregates the response funnel across every check-in ever asked.
func (s *ContactFollowUpStore) Stats(ctx context.Context) (core.ContactCheckinStats, error) {
	if s == nil || s.db == nil {
		return core.ContactCheckinStats{}, errors.New("sqlstore: contact follow-up store is not configured")
	}
	var row struct {
		TotalAsked int `bun:"total_asked"`
		Responded  int `bun:"responded"`
		Contacted  int `bun:"contacted"`
		NotYet     int `bun:"not_yet"`
	}
	askedStatuses := []string{
		string(core.CheckinStatusSent),
		string(core.CheckinStatusResponded),
	}
	err := s.db.NewSelect().
		Model((*contactFollowUpRecord)(nil)).
		ColumnExpr("COUNT(*) AS total_asked").
		ColumnExpr("COUNT(responded_at) AS responded").
		ColumnExpr("COUNT(*) FILTER (WHERE response_value = ?) AS contacted", core.CheckinResponseContacted).
		ColumnExpr("COUNT(*) FILTER (WHERE response_value = ?) AS not_yet", core.CheckinResponseNotYet).
		Where("?TableAlias.status IN (?)", bun.In(askedStatuses)).
		Scan(ctx, &row)
	if err != nil {
		return core.ContactCheckinStats{}, fmt.Errorf("sqlstore: contact follow-up stats: %w", err)
	}
	return core.ContactCheckinStats{
		TotalAsked: row.TotalAsked,
		Responded:  row.Responded,
		Contacted:  row.Contacted,
		NotYet:     row.NotYet,
	}, nil
}
