package query

import (
	"fmt"
	"strings"
)

const (
	TypeGetUnlock           = "leads.query.unlock.get"
	TypeGetUnlockByPair     = "leads.query.unlock.get_by_pair"
	TypeListLeadAuditTrail  = "leads.query.audit.list_by_lead"
	TypeContactCheckinStats = "leads.query.checkins.stats"
)

type GetUnlockMessage struct {
	UnlockID string
}

func (GetUnlockMessage) Type() string { return TypeGetUnlock }

func (m GetUnlockMessage) Validate() error {
	if strings.TrimSpace(m.UnlockID) == "" {
		return fmt.Errorf("query: unlock id is required")
	}
	return nil
}

type GetUnlockByPairMessage struct {
	LeadID     string
	ProviderID string
}

func (GetUnlockByPairMessage) Type() string { return TypeGetUnlockByPair }

func (m GetUnlockByPairMessage) Validate() error {
	if strings.TrimSpace(m.LeadID) == "" {
		return fmt.Errorf("query: lead id is required")
	}
	if strings.TrimSpace(m.ProviderID) == "" {
		return fmt.Errorf("query: provider id is required")
	}
	return nil
}

type ListLeadAuditTrailMessage struct {
	LeadID string
}

func (ListLeadAuditTrailMessage) Type() string { return TypeListLeadAuditTrail }

func (m ListLeadAuditTrailMessage) Validate() error {
	if strings.TrimSpace(m.LeadID) == "" {
		return fmt.Errorf("query: lead id is required")
	}
	return nil
}

type ContactCheckinStatsMessage struct{}

func (ContactCheckinStatsMessage) Type() string { return TypeContactCheckinStats }

func (ContactCheckinStatsMessage) Validate() error { return nil }
