package leads

import "github.com/goliatone/go-leads/core"

type Config = core.Config

type EngineConfig = core.EngineConfig

type Option = core.Option

type Service = core.Service

type Scheduler = core.Scheduler

type Lead = core.Lead
type Provider = core.Provider
type Unlock = core.Unlock
type UnlockStatus = core.UnlockStatus
type ClientFollowUp = core.ClientFollowUp
type ProviderReminder = core.ProviderReminder
type ContactFollowUp = core.ContactFollowUp
type UnlockAuditEntry = core.UnlockAuditEntry

type LeadStore = core.LeadStore
type ProviderStore = core.ProviderStore
type UnlockStore = core.UnlockStore
type ClientFollowUpStore = core.ClientFollowUpStore
type ProviderReminderStore = core.ProviderReminderStore
type ContactFollowUpStore = core.ContactFollowUpStore
type AuditLog = core.AuditLog
type StoreProvider = core.StoreProvider

type SMSSender = core.SMSSender
type EmailSender = core.EmailSender
type PaymentGateway = core.PaymentGateway

type AcceptanceRequest = core.AcceptanceRequest
type AcceptanceResult = core.AcceptanceResult
type MarkPaidRequest = core.MarkPaidRequest
type PaymentFallbackRequest = core.PaymentFallbackRequest
type PaymentFallbackResult = core.PaymentFallbackResult
type RequeueResult = core.RequeueResult
type ReplyResult = core.ReplyResult
type ProcessStats = core.ProcessStats

var (
	WithLogger                = core.WithLogger
	WithLoggerProvider        = core.WithLoggerProvider
	WithMetricsRecorder       = core.WithMetricsRecorder
	WithErrorFactory          = core.WithErrorFactory
	WithErrorMapper           = core.WithErrorMapper
	WithConfigProvider        = core.WithConfigProvider
	WithOptionsResolver       = core.WithOptionsResolver
	WithPersistenceClient     = core.WithPersistenceClient
	WithRepositoryFactory     = core.WithRepositoryFactory
	WithLeadStore             = core.WithLeadStore
	WithProviderStore         = core.WithProviderStore
	WithUnlockStore           = core.WithUnlockStore
	WithClientFollowUpStore   = core.WithClientFollowUpStore
	WithProviderReminderStore = core.WithProviderReminderStore
	WithContactFollowUpStore  = core.WithContactFollowUpStore
	WithAuditLog              = core.WithAuditLog
	WithSMSSender             = core.WithSMSSender
	WithEmailSender           = core.WithEmailSender
	WithPaymentGateway        = core.WithPaymentGateway
	WithJobEnqueuer           = core.WithJobEnqueuer
	WithClock                 = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
