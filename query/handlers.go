package query

import (
	"context"

	"github.com/goliatone/go-leads/core"
)

type UnlockReader interface {
	Get(ctx context.Context, unlockID string) (core.Unlock, error)
	GetByPair(ctx context.Context, leadID string, providerID string) (core.Unlock, error)
}

type AuditTrailReader interface {
	ListByLead(ctx context.Context, leadID string) ([]core.UnlockAuditEntry, error)
}

type CheckinStatsReader interface {
	Stats(ctx context.Context) (core.ContactCheckinStats, error)
}

type GetUnlockQuery struct {
	reader UnlockReader
}

func NewGetUnlockQuery(reader UnlockReader) *GetUnlockQuery {
	return &GetUnlockQuery{reader: reader}
}

func (q *GetUnlockQuery) Query(ctx context.Context, msg GetUnlockMessage) (core.Unlock, error) {
	if q == nil || q.reader == nil {
		return core.Unlock{}, queryDependencyError("query: unlock reader is required")
	}
	return q.reader.Get(ctx, msg.UnlockID)
}

type GetUnlockByPairQuery struct {
	reader UnlockReader
}

func NewGetUnlockByPairQuery(reader UnlockReader) *GetUnlockByPairQuery {
	return &GetUnlockByPairQuery{reader: reader}
}

func (q *GetUnlockByPairQuery) Query(ctx context.Context, msg GetUnlockByPairMessage) (core.Unlock, error) {
	if q == nil || q.reader == nil {
		return core.Unlock{}, queryDependencyError("query: unlock reader is required")
	}
	return q.reader.GetByPair(ctx, msg.LeadID, msg.ProviderID)
}

type ListLeadAuditTrailQuery struct {
	reader AuditTrailReader
}

func NewListLeadAuditTrailQuery(reader AuditTrailReader) *ListLeadAuditTrailQuery {
	return &ListLeadAuditTrailQuery{reader: reader}
}

func (q *ListLeadAuditTrailQuery) Query(
	ctx context.Context,
	msg ListLeadAuditTrailMessage,
) ([]core.UnlockAuditEntry, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: audit trail reader is required")
	}
	return q.reader.ListByLead(ctx, msg.LeadID)
}

type ContactCheckinStatsQuery struct {
	reader CheckinStatsReader
}

func NewContactCheckinStatsQuery(reader CheckinStatsReader) *ContactCheckinStatsQuery {
	return &ContactCheckinStatsQuery{reader: reader}
}

func (q *ContactCheckinStatsQuery) Query(
	ctx context.Context,
	_ ContactCheckinStatsMessage,
) (core.ContactCheckinStats, error) {
	if q == nil || q.reader == nil {
		return core.ContactCheckinStats{}, queryDependencyError("query: check-in stats reader is required")
	}
	return q.reader.Stats(ctx)
}
