package leads

import (
	"fmt"

	leadscommand "github.com/goliatone/go-leads/command"
	"github.com/goliatone/go-leads/core"
	leadsquery "github.com/goliatone/go-leads/query"
)

type Commands struct {
	CreateUnlock          *leadscommand.CreateUnlockCommand
	SendTeaser            *leadscommand.SendTeaserCommand
	RecordAcceptance      *leadscommand.RecordAcceptanceCommand
	MarkPaid              *leadscommand.MarkPaidCommand
	Reveal                *leadscommand.RevealCommand
	ExpireUnlock          *leadscommand.ExpireUnlockCommand
	DeclineUnlock         *leadscommand.DeclineUnlockCommand
	RequeueLead           *leadscommand.RequeueLeadCommand
	HandleReply           *leadscommand.HandleReplyCommand
	VerifyPaymentFallback *leadscommand.VerifyPaymentFallbackCommand
}

type Queries struct {
	GetUnlock           *leadsquery.GetUnlockQuery
	GetUnlockByPair     *leadsquery.GetUnlockByPairQuery
	ListLeadAuditTrail  *leadsquery.ListLeadAuditTrailQuery
	ContactCheckinStats *leadsquery.ContactCheckinStatsQuery
}

type Facade struct {
	service  leadscommand.MutatingService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	stores      core.StoreProvider
	auditReader leadsquery.AuditTrailReader
}

// WithStores supplies the store provider the read-side queries run against.
func WithStores(stores core.StoreProvider) FacadeOption {
	return func(options *facadeOptions) {
		options.stores = stores
	}
}

// WithAuditTrailReader overrides the audit trail reader derived from the
// store provider.
func WithAuditTrailReader(reader leadsquery.AuditTrailReader) FacadeOption {
	return func(options *facadeOptions) {
		options.auditReader = reader
	}
}

func NewFacade(service leadscommand.MutatingService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("leads: command service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	auditReader := cfg.auditReader
	if auditReader == nil {
		auditReader = resolveAuditTrailReader(cfg.stores)
	}
	var unlockReader leadsquery.UnlockReader
	var statsReader leadsquery.CheckinStatsReader
	if cfg.stores != nil {
		unlockReader = cfg.stores.UnlockStore()
		statsReader = cfg.stores.ContactFollowUpStore()
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		CreateUnlock:          leadscommand.NewCreateUnlockCommand(service),
		SendTeaser:            leadscommand.NewSendTeaserCommand(service),
		RecordAcceptance:      leadscommand.NewRecordAcceptanceCommand(service),
		MarkPaid:              leadscommand.NewMarkPaidCommand(service),
		Reveal:                leadscommand.NewRevealCommand(service),
		ExpireUnlock:          leadscommand.NewExpireUnlockCommand(service),
		DeclineUnlock:         leadscommand.NewDeclineUnlockCommand(service),
		RequeueLead:           leadscommand.NewRequeueLeadCommand(service),
		HandleReply:           leadscommand.NewHandleReplyCommand(service),
		VerifyPaymentFallback: leadscommand.NewVerifyPaymentFallbackCommand(service),
	}
	facade.queries = Queries{
		GetUnlock:           leadsquery.NewGetUnlockQuery(unlockReader),
		GetUnlockByPair:     leadsquery.NewGetUnlockByPairQuery(unlockReader),
		ListLeadAuditTrail:  leadsquery.NewListLeadAuditTrailQuery(auditReader),
		ContactCheckinStats: leadsquery.NewContactCheckinStatsQuery(statsReader),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() leadscommand.MutatingService {
	if f == nil {
		return nil
	}
	return f.service
}

// resolveAuditTrailReader recovers the list side of the audit log when the
// configured store supports it. The core contract only requires Append.
func resolveAuditTrailReader(stores core.StoreProvider) leadsquery.AuditTrailReader {
	if stores == nil {
		return nil
	}
	if reader, ok := stores.AuditLog().(leadsquery.AuditTrailReader); ok {
		return reader
	}
	return nil
}

var _ leadscommand.MutatingService = (*core.Service)(nil)
