package query

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/goliatone/go-leads/core"
)

func TestUnlockQueries_DelegateToReader(t *testing.T) {
	unlock := core.Unlock{
		ID:         "unlock-1",
		LeadID:     "lead-1",
		ProviderID: "provider-1",
		Status:     core.UnlockStatusPaymentLinkSent,
	}
	reader := stubUnlockReader{
		getFn: func(_ context.Context, unlockID string) (core.Unlock, error) {
			if unlockID != unlock.ID {
				t.Fatalf("unexpected unlock id %q", unlockID)
			}
			return unlock, nil
		},
		getByPairFn: func(_ context.Context, leadID string, providerID string) (core.Unlock, error) {
			if leadID != unlock.LeadID || providerID != unlock.ProviderID {
				t.Fatalf("unexpected pair: %q %q", leadID, providerID)
			}
			return unlock, nil
		},
	}

	got, err := NewGetUnlockQuery(reader).Query(context.Background(), GetUnlockMessage{UnlockID: unlock.ID})
	if err != nil {
		t.Fatalf("get unlock: %v", err)
	}
	if got.Status != core.UnlockStatusPaymentLinkSent {
		t.Fatalf("unexpected unlock: %#v", got)
	}

	got, err = NewGetUnlockByPairQuery(reader).Query(context.Background(), GetUnlockByPairMessage{
		LeadID:     unlock.LeadID,
		ProviderID: unlock.ProviderID,
	})
	if err != nil {
		t.Fatalf("get unlock by pair: %v", err)
	}
	if got.ID != unlock.ID {
		t.Fatalf("unexpected unlock: %#v", got)
	}
}

func TestListLeadAuditTrailQuery_DelegatesToReader(t *testing.T) {
	entries := []core.UnlockAuditEntry{
		{ID: "log-1", LeadID: "lead-1", ProviderID: "provider-1", Action: "unlock_created", CreatedAt: time.Now().UTC()},
		{ID: "log-2", LeadID: "lead-1", ProviderID: "provider-1", Action: "teaser_sent", CreatedAt: time.Now().UTC()},
	}
	reader := stubAuditTrailReader{
		listFn: func(_ context.Context, leadID string) ([]core.UnlockAuditEntry, error) {
			if leadID != "lead-1" {
				t.Fatalf("unexpected lead id %q", leadID)
			}
			return entries, nil
		},
	}

	got, err := NewListLeadAuditTrailQuery(reader).Query(context.Background(), ListLeadAuditTrailMessage{LeadID: "lead-1"})
	if err != nil {
		t.Fatalf("list audit trail: %v", err)
	}
	if len(got) != 2 || got[1].Action != "teaser_sent" {
		t.Fatalf("unexpected trail: %#v", got)
	}
}

func TestContactCheckinStatsQuery_DelegatesToReader(t *testing.T) {
	reader := stubCheckinStatsReader{
		statsFn: func(context.Context) (core.ContactCheckinStats, error) {
			return core.ContactCheckinStats{TotalAsked: 4, Responded: 3, Contacted: 2, NotYet: 1}, nil
		},
	}

	got, err := NewContactCheckinStatsQuery(reader).Query(context.Background(), ContactCheckinStatsMessage{})
	if err != nil {
		t.Fatalf("check-in stats: %v", err)
	}
	if got.TotalAsked != 4 || got.Contacted != 2 {
		t.Fatalf("unexpected stats: %#v", got)
	}
}

func TestQueries_RequireReaders(t *testing.T) {
	if _, err := (&GetUnlockQuery{}).Query(context.Background(), GetUnlockMessage{UnlockID: "unlock-1"}); err == nil {
		t.Fatal("expected dependency error")
	}
	if _, err := (&ContactCheckinStatsQuery{}).Query(context.Background(), ContactCheckinStatsMessage{}); err == nil {
		t.Fatal("expected dependency error")
	}
}

func TestQueryMessageValidation(t *testing.T) {
	tests := []struct {
		name    string
		msg     interface{ Validate() error }
		wantErr bool
	}{
		{name: "get unlock valid", msg: GetUnlockMessage{UnlockID: "unlock-1"}, wantErr: false},
		{name: "get unlock missing id", msg: GetUnlockMessage{}, wantErr: true},
		{name: "get by pair valid", msg: GetUnlockByPairMessage{LeadID: "lead-1", ProviderID: "provider-1"}, wantErr: false},
		{name: "get by pair missing provider", msg: GetUnlockByPairMessage{LeadID: "lead-1"}, wantErr: true},
		{name: "audit trail missing lead", msg: ListLeadAuditTrailMessage{}, wantErr: true},
		{name: "stats always valid", msg: ContactCheckinStatsMessage{}, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

type stubUnlockReader struct {
	getFn       func(ctx context.Context, unlockID string) (core.Unlock, error)
	getByPairFn func(ctx context.Context, leadID string, providerID string) (core.Unlock, error)
}

func (s stubUnlockReader) Get(ctx context.Context, unlockID string) (core.Unlock, error) {
	if s.getFn == nil {
		return core.Unlock{}, fmt.Errorf("get not configured")
	}
	return s.getFn(ctx, unlockID)
}

func (s stubUnlockReader) GetByPair(ctx context.Context, leadID string, providerID string) (core.Unlock, error) {
	if s.getByPairFn == nil {
		return core.Unlock{}, fmt.Errorf("get by pair not configured")
	}
	return s.getByPairFn(ctx, leadID, providerID)
}

type stubAuditTrailReader struct {
	listFn func(ctx context.Context, leadID string) ([]core.UnlockAuditEntry, error)
}

func (s stubAuditTrailReader) ListByLead(ctx context.Context, leadID string) ([]core.UnlockAuditEntry, error) {
	if s.listFn == nil {
		return nil, fmt.Errorf("list not configured")
	}
	return s.listFn(ctx, leadID)
}

type stubCheckinStatsReader struct {
	statsFn func(ctx context.Context) (core.ContactCheckinStats, error)
}

func (s stubCheckinStatsReader) Stats(ctx context.Context) (core.ContactCheckinStats, error) {
	if s.statsFn == nil {
		return core.ContactCheckinStats{}, fmt.Errorf("stats not configured")
	}
	return s.statsFn(ctx)
}

var (
	_ UnlockReader       = stubUnlockReader{}
	_ AuditTrailReader   = stubAuditTrailReader{}
	_ CheckinStatsReader = stubCheckinStatsReader{}
)
