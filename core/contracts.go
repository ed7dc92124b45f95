package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// SMSSender delivers a single text message. Implementations wrap the
// carrier client; failures are surfaced as transient send errors.
type SMSSender interface {
	Send(ctx context.Context, phone string, text string) error
}

type EmailSender interface {
	Send(ctx context.Context, to string, subject string, html string, text string) error
}

type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, lead Lead, unlock Unlock) (url string, sessionID string, err error)
	VerifyPayment(ctx context.Context, sessionID string) (bool, error)
}

type LeadStore interface {
	Create(ctx context.Context, lead Lead) (Lead, error)
	Get(ctx context.Context, leadID string) (Lead, error)
	// Close flips is_closed and reports whether this call won the flip.
	Close(ctx context.Context, leadID string) (bool, error)
}

type ProviderStore interface {
	Get(ctx context.Context, providerID string) (Provider, error)
	// GetByPhone resolves a provider by canonical phone, falling back to
	// legacy formatting variants for rows written before normalization.
	GetByPhone(ctx context.Context, phone string) (Provider, error)
	// ListRequeueCandidates returns providers eligible for a fresh teaser on
	// the lead: not opted out of SMS and holding no unlock row for it.
	ListRequeueCandidates(ctx context.Context, leadID string) ([]Provider, error)
}

type UnlockStore interface {
	// CreateIfAbsent inserts a PENDING row; on a (lead_id, provider_id)
	// collision the existing row is returned with Created false.
	CreateIfAbsent(ctx context.Context, unlock Unlock) (CreateUnlockResult, error)
	Get(ctx context.Context, unlockID string) (Unlock, error)
	GetByPair(ctx context.Context, leadID string, providerID string) (Unlock, error)
	GetByCheckoutSession(ctx context.Context, sessionID string) (Unlock, error)
	// FindOpenByProvider resolves the provider's most recent unlock still in
	// a pre-payment status, used to route bare Y/N replies.
	FindOpenByProvider(ctx context.Context, providerID string) (Unlock, error)
	// Transition performs a guarded status update (WHERE status = from) and
	// reports whether the guard matched. A false return means a concurrent
	// writer advanced the row first.
	Transition(ctx context.Context, unlockID string, from UnlockStatus, to UnlockStatus, set UnlockMutation) (Unlock, bool, error)
}

type ClientFollowUpStore interface {
	CreateIfAbsent(ctx context.Context, followUp ClientFollowUp) (CreateFollowUpResult, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]ClientFollowUp, error)
	Transition(ctx context.Context, id int64, from FollowUpStatus, to FollowUpStatus, set FollowUpMutation) (ClientFollowUp, bool, error)
	// FindOpenByPhones resolves the latest SENT or RECOVERY_OFFERED row for
	// any of the given phone candidates.
	FindOpenByPhones(ctx context.Context, phones []string) (ClientFollowUp, error)
	// ExpireStale sweeps SENT and RECOVERY_OFFERED rows sent before the
	// cutoff to EXPIRED and returns the affected count.
	ExpireStale(ctx context.Context, cutoff time.Time) (int, error)
}

type ProviderReminderStore interface {
	CreateIfAbsent(ctx context.Context, reminder ProviderReminder) (CreateReminderResult, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]ProviderReminder, error)
	Transition(ctx context.Context, id int64, from ReminderStatus, to ReminderStatus, sentAt *time.Time) (ProviderReminder, bool, error)
}

type ContactFollowUpStore interface {
	CreateIfAbsent(ctx context.Context, checkin ContactFollowUp) (CreateCheckinResult, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]ContactFollowUp, error)
	Transition(ctx context.Context, id int64, from CheckinStatus, to CheckinStatus, respondedAt *time.Time, responseValue *int, sentAt *time.Time) (ContactFollowUp, bool, error)
	// FindOpenByProvider resolves the latest SENT row for the provider.
	FindOpenByProvider(ctx context.Context, providerID string) (ContactFollowUp, error)
	Stats(ctx context.Context) (ContactCheckinStats, error)
}

type AuditLog interface {
	Append(ctx context.Context, entry UnlockAuditEntry) error
}

// StoreProvider exposes the stores a repository factory builds.
type StoreProvider interface {
	LeadStore() LeadStore
	ProviderStore() ProviderStore
	UnlockStore() UnlockStore
	ClientFollowUpStore() ClientFollowUpStore
	ProviderReminderStore() ProviderReminderStore
	ContactFollowUpStore() ContactFollowUpStore
	AuditLog() AuditLog
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

type InboundRequest struct {
	Surface  string
	From     string
	Body     []byte
	Headers  map[string]string
	Metadata map[string]any
}

type InboundResult struct {
	Accepted   bool
	StatusCode int
	Metadata   map[string]any
}

type InboundHandler interface {
	Surface() string
	Handle(ctx context.Context, req InboundRequest) (InboundResult, error)
}

type IdempotencyClaimStore interface {
	Claim(ctx context.Context, key string, lease time.Duration) (claimID string, accepted bool, err error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, retryAt time.Time) error
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// FollowUpProcessor is the contract the scheduler drives once per tick.
type FollowUpProcessor interface {
	Name() string
	ProcessDue(ctx context.Context) (ProcessStats, error)
}

type ProcessStats struct {
	Due       int
	Sent      int
	Cancelled int
	Expired   int
	Failed    int
}
