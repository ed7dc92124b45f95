package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-leads/core"
)

var (
	_ gocmd.Querier[GetUnlockMessage, core.Unlock]                        = (*GetUnlockQuery)(nil)
	_ gocmd.Querier[GetUnlockByPairMessage, core.Unlock]                  = (*GetUnlockByPairQuery)(nil)
	_ gocmd.Querier[ListLeadAuditTrailMessage, []core.UnlockAuditEntry]   = (*ListLeadAuditTrailQuery)(nil)
	_ gocmd.Querier[ContactCheckinStatsMessage, core.ContactCheckinStats] = (*ContactCheckinStatsQuery)(nil)
)
