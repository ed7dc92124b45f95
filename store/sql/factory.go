package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-leads/core"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

// RepositoryFactory builds every store off one bun.DB and satisfies
// core.StoreProvider so the service can take the whole bundle at once.
type RepositoryFactory struct {
	db *bun.DB

	leadStore            *LeadStore
	providerStore        *ProviderStore
	unlockStore          *UnlockStore
	clientFollowUpStore  *ClientFollowUpStore
	reminderStore        *ProviderReminderStore
	contactFollowUpStore *ContactFollowUpStore
	auditStore           *UnlockAuditStore
	deliveryStore        *PaymentDeliveryStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.leadStore != nil && f.unlockStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) LeadStore() core.LeadStore {
	if f == nil {
		return nil
	}
	return f.leadStore
}

func (f *RepositoryFactory) ProviderStore() core.ProviderStore {
	if f == nil {
		return nil
	}
	return f.providerStore
}

func (f *RepositoryFactory) UnlockStore() core.UnlockStore {
	if f == nil {
		return nil
	}
	return f.unlockStore
}

func (f *RepositoryFactory) ClientFollowUpStore() core.ClientFollowUpStore {
	if f == nil {
		return nil
	}
	return f.clientFollowUpStore
}

func (f *RepositoryFactory) ProviderReminderStore() core.ProviderReminderStore {
	if f == nil {
		return nil
	}
	return f.reminderStore
}

func (f *RepositoryFactory) ContactFollowUpStore() core.ContactFollowUpStore {
	if f == nil {
		return nil
	}
	return f.contactFollowUpStore
}

func (f *RepositoryFactory) AuditLog() core.AuditLog {
	if f == nil {
		return nil
	}
	return f.auditStore
}

func (f *RepositoryFactory) PaymentDeliveryStore() *PaymentDeliveryStore {
	if f == nil {
		return nil
	}
	return f.deliveryStore
}

// SQLProviderStore exposes the concrete provider store so callers can wrap
// it, typically with NewCachedProviderStore.
func (f *RepositoryFactory) SQLProviderStore() *ProviderStore {
	if f == nil {
		return nil
	}
	return f.providerStore
}

func (f *RepositoryFactory) initStores() error {
	leadStore, err := NewLeadStore(f.db)
	if err != nil {
		return err
	}
	f.leadStore = leadStore
	providerStore, err := NewProviderStore(f.db)
	if err != nil {
		return err
	}
	f.providerStore = providerStore
	unlockStore, err := NewUnlockStore(f.db)
	if err != nil {
		return err
	}
	f.unlockStore = unlockStore
	clientFollowUpStore, err := NewClientFollowUpStore(f.db)
	if err != nil {
		return err
	}
	f.clientFollowUpStore = clientFollowUpStore
	reminderStore, err := NewProviderReminderStore(f.db)
	if err != nil {
		return err
	}
	f.reminderStore = reminderStore
	contactFollowUpStore, err := NewContactFollowUpStore(f.db)
	if err != nil {
		return err
	}
	f.contactFollowUpStore = contactFollowUpStore
	auditStore, err := NewUnlockAuditStore(f.db)
	if err != nil {
		return err
	}
	f.auditStore = auditStore
	deliveryStore, err := NewPaymentDeliveryStore(f.db)
	if err != nil {
		return err
	}
	f.deliveryStore = deliveryStore

	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
