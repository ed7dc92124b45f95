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

// UnlockStore persists provider lead unlock rows. All status changes go
// through Transition so the WHERE status guard is the single concurrency
// control for the lifecycle.
type UnlockStore struct {
	db   *bun.DB
	repo repository.Repository[*unlockRecord]
}

func NewUnlockStore(db *bun.DB) (*UnlockStore, error) {
	if db == nil {
		return nil, errors.New("sqlstore: bun db is required")
	}
	return &UnlockStore{
		db:   db,
		repo: repository.NewRepository[*unlockRecord](db, unlockHandlers()),
	}, nil
}

// CreateIfAbsent inserts a fresh row; on a (lead_id, provider_id) collision
// the existing row is returned with Created false.
func (s *UnlockStore) CreateIfAbsent(ctx context.Context, unlock core.Unlock) (core.CreateUnlockResult, error) {
	if s == nil || s.db == nil {
		return core.CreateUnlockResult{}, errors.New("sqlstore: unlock store is not configured")
	}
	record := newUnlockRecord(unlock)
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, insertErr := tx.NewInsert().Model(record).Exec(ctx); insertErr != nil {
			if isUniqueViolation(insertErr) {
				return errReplay
			}
			return fmt.Errorf("sqlstore: insert unlock: %w", insertErr)
		}
		return nil
	})
	if errors.Is(err, errReplay) {
		existing, lookupErr := s.GetByPair(ctx, unlock.LeadID, unlock.ProviderID)
		if lookupErr != nil {
			return core.CreateUnlockResult{}, lookupErr
		}
		return core.CreateUnlockResult{Unlock: existing, Created: false}, nil
	}
	if err != nil {
		return core.CreateUnlockResult{}, err
	}
	return core.CreateUnlockResult{Unlock: record.toDomain(), Created: true}, nil
}

func (s *UnlockStore) Get(ctx context.Context, unlockID string) (core.Unlock, error) {
	if s == nil || s.db == nil {
		return core.Unlock{}, errors.New("sqlstore: unlock store is not configured")
	}
	record := &unlockRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", unlockID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Unlock{}, fmt.Errorf("sqlstore: unlock not found: id %q", unlockID)
	}
	if err != nil {
		return core.Unlock{}, fmt.Errorf("sqlstore: select unlock: %w", err)
	}
	return record.toDomain(), nil
}

func (s *UnlockStore) GetByPair(ctx context.Context, leadID string, providerID string) (core.Unlock, error) {
	if s == nil || s.db == nil {
		return core.Unlock{}, errors.New("sqlstore: unlock store is not configured")
	}
	record := &unlockRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.lead_id = ?", leadID).
		Where("?TableAlias.provider_id = ?", providerID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Unlock{}, fmt.Errorf("sqlstore: unlock not found: lead %q provider %q", leadID, providerID)
	}
	if err != nil {
		return core.Unlock{}, fmt.Errorf("sqlstore: select unlock by pair: %w", err)
	}
	return record.toDomain(), nil
}

func (s *UnlockStore) GetByCheckoutSession(ctx context.Context, sessionID string) (core.Unlock, error) {
	if s == nil || s.db == nil {
		return core.Unlock{}, errors.New("sqlstore: unlock store is not configured")
	}
	if sessionID == "" {
		return core.Unlock{}, errors.New("sqlstore: checkout session id is required")
	}
	record := &unlockRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.checkout_session_id = ?", sessionID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Unlock{}, fmt.Errorf("sqlstore: unlock not found: checkout session %q", sessionID)
	}
	if err != nil {
		return core.Unlock{}, fmt.Errorf("sqlstore: select unlock by checkout session: %w", err)
	}
	return record.toDomain(), nil
}

// FindOpenByProvider resolves the provider's most recent unlock that has
// been teased but not yet paid or closed. Bare Y/N replies route here.
func (s *UnlockStore) FindOpenByProvider(ctx context.Context, providerID string) (core.Unlock, error) {
	if s == nil || s.db == nil {
		return core.Unlock{}, errors.New("sqlstore: unlock store is not configured")
	}
	openStatuses := []string{
		string(core.UnlockStatusTeaserSent),
		string(core.UnlockStatusYReceived),
		string(core.UnlockStatusPaymentLinkSent),
	}
	record := &unlockRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.provider_id = ?", providerID).
		Where("?TableAlias.status IN (?)", bun.In(openStatuses)).
		OrderExpr("?TableAlias.created_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Unlock{}, fmt.Errorf("sqlstore: open unlock not found: provider %q", providerID)
	}
	if err != nil {
		return core.Unlock{}, fmt.Errorf("sqlstore: select open unlock: %w", err)
	}
	return record.toDomain(), nil
}

// Transition performs the guarded status update. The WHERE status clause is
// the compare half of the compare-and-set; a zero row count means another
// writer advanced the row first and the caller re-reads to decide.
func (s *UnlockStore) Transition(ctx context.Context, unlockID string, from core.UnlockStatus, to core.UnlockStatus, set core.UnlockMutation) (core.Unlock, bool, error) {
	if s == nil || s.db == nil {
		return core.Unlock{}, false, errors.New("sqlstore: unlock store is not configured")
	}
	query := s.db.NewUpdate().
		Model((*unlockRecord)(nil)).
		Set("status = ?", string(to)).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", unlockID).
		Where("status = ?", string(from))

	if set.PaymentLinkURL != nil {
		query = query.Set("payment_link_url = ?", *set.PaymentLinkURL)
	}
	if set.CheckoutSessionID != nil {
		query = query.Set("checkout_session_id = ?", *set.CheckoutSessionID)
	}
	if set.TTLExpiresAt != nil {
		query = query.Set("ttl_expires_at = ?", *set.TTLExpiresAt)
	}
	if set.TeaserSentAt != nil {
		query = query.Set("teaser_sent_at = ?", *set.TeaserSentAt)
	}
	if set.YReceivedAt != nil {
		query = query.Set("y_received_at = ?", *set.YReceivedAt)
	}
	if set.PaymentLinkSentAt != nil {
		query = query.Set("payment_link_sent_at = ?", *set.PaymentLinkSentAt)
	}
	if set.PaidAt != nil {
		query = query.Set("paid_at = ?", *set.PaidAt)
	}
	if set.UnlockedAt != nil {
		query = query.Set("unlocked_at = ?", *set.UnlockedAt)
	}
	if set.RevealedAt != nil {
		query = query.Set("revealed_at = ?", *set.RevealedAt)
	}

	result, err := query.Exec(ctx)
	if err != nil {
		return core.Unlock{}, false, fmt.Errorf("sqlstore: transition unlock: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.Unlock{}, false, fmt.Errorf("sqlstore: transition unlock rows affected: %w", err)
	}

	current, err := s.Get(ctx, unlockID)
	if err != nil {
		return core.Unlock{}, false, err
	}
	return current, affected > 0, nil
}
