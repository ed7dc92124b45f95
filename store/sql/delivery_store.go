package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	deliveryStatusPending   = "pending"
	deliveryStatusCompleted = "completed"
	deliveryStatusFailed    = "failed"
)

// PaymentDeliveryStore is the durable idempotency ledger for payment
// webhook events. Claim wins exactly once per event id unless a previous
// claim's lease expired without completing.
type PaymentDeliveryStore struct {
	db   *bun.DB
	repo repository.Repository[*paymentWebhookDeliveryRecord]
	now  func() time.Time
}

func NewPaymentDeliveryStore(db *bun.DB) (*PaymentDeliveryStore, error) {
	if db == nil {
		return nil, errors.New("sqlstore: bun db is required")
	}
	return &PaymentDeliveryStore{
		db:   db,
		repo: repository.NewRepository[*paymentWebhookDeliveryRecord](db, deliveryHandlers()),
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *PaymentDeliveryStore) Claim(ctx context.Context, key string, lease time.Duration) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, errors.New("sqlstore: payment delivery store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, errors.New("sqlstore: delivery key is required")
	}
	now := s.now()
	leaseUntil := now.Add(lease)
	record := &paymentWebhookDeliveryRecord{
		ID:         uuid.NewString(),
		EventID:    key,
		Status:     deliveryStatusPending,
		Attempts:   1,
		LeaseUntil: &leaseUntil,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err := s.db.NewInsert().Model(record).Exec(ctx)
	if err == nil {
		return record.ID, true, nil
	}
	if !isUniqueViolation(err) {
		return "", false, fmt.Errorf("sqlstore: insert payment delivery: %w", err)
	}

	existing, lookupErr := s.getByEventID(ctx, key)
	if lookupErr != nil {
		return "", false, lookupErr
	}
	if existing.Status == deliveryStatusCompleted {
		return existing.ID, false, nil
	}
	// Reclaim only when the previous holder's lease ran out.
	result, updateErr := s.db.NewUpdate().
		Model((*paymentWebhookDeliveryRecord)(nil)).
		Set("status = ?", deliveryStatusPending).
		Set("attempts = attempts + 1").
		Set("lease_until = ?", leaseUntil).
		Set("updated_at = ?", now).
		Where("id = ?", existing.ID).
		Where("status <> ?", deliveryStatusCompleted).
		Where("lease_until IS NULL OR lease_until < ?", now).
		Exec(ctx)
	if updateErr != nil {
		return "", false, fmt.Errorf("sqlstore: reclaim payment delivery: %w", updateErr)
	}
	affected, affectedErr := result.RowsAffected()
	if affectedErr != nil {
		return "", false, fmt.Errorf("sqlstore: reclaim payment delivery rows affected: %w", affectedErr)
	}
	return existing.ID, affected > 0, nil
}

func (s *PaymentDeliveryStore) Complete(ctx context.Context, claimID string) error {
	if s == nil || s.db == nil {
		return errors.New("sqlstore: payment delivery store is not configured")
	}
	now := s.now()
	_, err := s.db.NewUpdate().
		Model((*paymentWebhookDeliveryRecord)(nil)).
		Set("status = ?", deliveryStatusCompleted).
		Set("completed_at = ?", now).
		Set("lease_until = NULL").
		Set("last_error = ?", "").
		Set("updated_at = ?", now).
		Where("id = ?", claimID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("sqlstore: complete payment delivery: %w", err)
	}
	return nil
}

func (s *PaymentDeliveryStore) Fail(ctx context.Context, claimID string, cause error, retryAt time.Time) error {
	if s == nil || s.db == nil {
		return errors.New("sqlstore: payment delivery store is not configured")
	}
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	now := s.now()
	_, err := s.db.NewUpdate().
		Model((*paymentWebhookDeliveryRecord)(nil)).
		Set("status = ?", deliveryStatusFailed).
		Set("last_error = ?", message).
		Set("lease_until = NULL").
		Set("next_retry_at = ?", retryAt.UTC()).
		Set("updated_at = ?", now).
		Where("id = ?", claimID).
		Where("status <> ?", deliveryStatusCompleted).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("sqlstore: fail payment delivery: %w", err)
	}
	return nil
}

func (s *PaymentDeliveryStore) getByEventID(ctx context.Context, eventID string) (*paymentWebhookDeliveryRecord, error) {
	record := &paymentWebhookDeliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.event_id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqlstore: payment delivery not found: event %q", eventID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: select payment delivery: %w", err)
	}
	return record, nil
}
