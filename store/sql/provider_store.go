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

// ProviderStore reads provider rows. Providers are managed by an upstream
// onboarding system, so this store only exposes lookups plus a seed insert
// used by tests and fixtures.
type ProviderStore struct {
	db   *bun.DB
	repo repository.Repository[*providerRecord]
}

func NewProviderStore(db *bun.DB) (*ProviderStore, error) {
	if db == nil {
		return nil, errors.New("sqlstore: bun db is required")
	}
	return &ProviderStore{
		db:   db,
		repo: repository.NewRepository[*providerRecord](db, providerHandlers()),
	}, nil
}

func (s *ProviderStore) Get(ctx context.Context, providerID string) (core.Provider, error) {
	if s == nil || s.db == nil {
		return core.Provider{}, errors.New("sqlstore: provider store is not configured")
	}
	record := &providerRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", providerID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Provider{}, fmt.Errorf("sqlstore: provider not found: id %q", providerID)
	}
	if err != nil {
		return core.Provider{}, fmt.Errorf("sqlstore: select provider: %w", err)
	}
	return record.toDomain(), nil
}

// GetByPhone tries every formatting variant of the phone in one query so
// rows written before normalization still resolve.
func (s *ProviderStore) GetByPhone(ctx context.Context, phone string) (core.Provider, error) {
	if s == nil || s.db == nil {
		return core.Provider{}, errors.New("sqlstore: provider store is not configured")
	}
	variants := core.PhoneVariants(phone)
	if len(variants) == 0 {
		return core.Provider{}, fmt.Errorf("sqlstore: provider not found: phone %q", phone)
	}
	record := &providerRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.phone IN (?)", bun.In(variants)).
		OrderExpr("?TableAlias.created_at ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Provider{}, fmt.Errorf("sqlstore: provider not found: phone %q", phone)
	}
	if err != nil {
		return core.Provider{}, fmt.Errorf("sqlstore: select provider by phone: %w", err)
	}
	return record.toDomain(), nil
}

// ListRequeueCandidates returns providers that can still receive a teaser
// for the lead: opted in to SMS and holding no unlock row for it.
func (s *ProviderStore) ListRequeueCandidates(ctx context.Context, leadID string) ([]core.Provider, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlstore: provider store is not configured")
	}
	// The outer alias is written out: inside a Where with a subquery the
	// ?TableAlias placeholder resolves against the subquery model.
	var records []*providerRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.sms_opted_out = ?", false).
		Where("p.id NOT IN (?)", s.db.NewSelect().
			Model((*unlockRecord)(nil)).
			Column("provider_id").
			Where("lead_id = ?", leadID)).
		OrderExpr("p.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list requeue candidates: %w", err)
	}
	providers := make([]core.Provider, 0, len(records))
	for _, record := range records {
		providers = append(providers, record.toDomain())
	}
	return providers, nil
}

// Seed inserts a provider row. Fixtures and import jobs use it.
func (s *ProviderStore) Seed(ctx context.Context, provider core.Provider) (core.Provider, error) {
	if s == nil || s.db == nil {
		return core.Provider{}, errors.New("sqlstore: provider store is not configured")
	}
	record := &providerRecord{
		ID:           provider.ID,
		Phone:        provider.Phone,
		Email:        provider.Email,
		Name:         provider.Name,
		Slug:         provider.Slug,
		SMSOptedOut:  provider.SMSOptedOut,
		IsVerified:   provider.IsVerified,
		ServiceAreas: provider.ServiceAreas,
		CreatedAt:    provider.CreatedAt,
		UpdatedAt:    provider.UpdatedAt,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return core.Provider{}, fmt.Errorf("sqlstore: insert provider: %w", err)
	}
	return record.toDomain(), nil
}
