package sqlstore

import "github.com/goliatone/go-leads/core"

var (
	_ core.LeadStore              = (*LeadStore)(nil)
	_ core.ProviderStore          = (*ProviderStore)(nil)
	_ core.ProviderStore          = (*CachedProviderStore)(nil)
	_ core.UnlockStore            = (*UnlockStore)(nil)
	_ core.ClientFollowUpStore    = (*ClientFollowUpStore)(nil)
	_ core.ProviderReminderStore  = (*ProviderReminderStore)(nil)
	_ core.ContactFollowUpStore   = (*ContactFollowUpStore)(nil)
	_ core.AuditLog               = (*UnlockAuditStore)(nil)
	_ core.IdempotencyClaimStore  = (*PaymentDeliveryStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
