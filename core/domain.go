package core

import (
	"fmt"
	"strings"
	"time"
)

type UnlockStatus string

const (
	UnlockStatusPending         UnlockStatus = "PENDING"
	UnlockStatusTeaserSent      UnlockStatus = "TEASER_SENT"
	UnlockStatusYReceived       UnlockStatus = "Y_RECEIVED"
	UnlockStatusPaymentLinkSent UnlockStatus = "PAYMENT_LINK_SENT"
	UnlockStatusPaid            UnlockStatus = "PAID"
	UnlockStatusRevealed        UnlockStatus = "REVEALED"
	UnlockStatusExpired         UnlockStatus = "EXPIRED"
	UnlockStatusDeclined        UnlockStatus = "DECLINED"
)

// unlockTransitions is the authoritative forward map. A status never
// regresses; EXPIRED and DECLINED are reachable from every live state. A
// webhook can settle payment before the link transition lands, so PAID is
// reachable straight from TEASER_SENT and Y_RECEIVED.
var unlockTransitions = map[UnlockStatus][]UnlockStatus{
	UnlockStatusPending:         {UnlockStatusTeaserSent, UnlockStatusExpired, UnlockStatusDeclined},
	UnlockStatusTeaserSent:      {UnlockStatusYReceived, UnlockStatusPaymentLinkSent, UnlockStatusPaid, UnlockStatusExpired, UnlockStatusDeclined},
	UnlockStatusYReceived:       {UnlockStatusPaymentLinkSent, UnlockStatusPaid, UnlockStatusExpired, UnlockStatusDeclined},
	UnlockStatusPaymentLinkSent: {UnlockStatusPaid, UnlockStatusExpired, UnlockStatusDeclined},
	UnlockStatusPaid:            {UnlockStatusRevealed},
	UnlockStatusRevealed:        {},
	UnlockStatusExpired:         {},
	UnlockStatusDeclined:        {},
}

func ParseUnlockStatus(value string) (UnlockStatus, error) {
	status := UnlockStatus(strings.ToUpper(strings.TrimSpace(value)))
	if _, ok := unlockTransitions[status]; !ok {
		return "", fmt.Errorf("core: unknown unlock status %q", value)
	}
	return status, nil
}

func (s UnlockStatus) CanTransitionTo(next UnlockStatus) bool {
	allowed, ok := unlockTransitions[s]
	if !ok {
		return false
	}
	for _, candidate := range allowed {
		if candidate == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s UnlockStatus) Terminal() bool {
	return len(unlockTransitions[s]) == 0
}

// Settled reports whether the unlock has left the actionable window for
// provider reminders: paid, revealed, expired or declined.
func (s UnlockStatus) Settled() bool {
	switch s {
	case UnlockStatusPaid, UnlockStatusRevealed, UnlockStatusExpired, UnlockStatusDeclined:
		return true
	default:
		return false
	}
}

type FollowUpStatus string

const (
	FollowUpStatusScheduled        FollowUpStatus = "SCHEDULED"
	FollowUpStatusSent             FollowUpStatus = "SENT"
	FollowUpStatusYesReplied       FollowUpStatus = "YES_REPLIED"
	FollowUpStatusNoReplied        FollowUpStatus = "NO_REPLIED"
	FollowUpStatusRecoveryOffered  FollowUpStatus = "RECOVERY_OFFERED"
	FollowUpStatusRecoveryAccepted FollowUpStatus = "RECOVERY_ACCEPTED"
	FollowUpStatusCompleted        FollowUpStatus = "COMPLETED"
	FollowUpStatusExpired          FollowUpStatus = "EXPIRED"
)

type ReminderStatus string

const (
	ReminderStatusScheduled ReminderStatus = "SCHEDULED"
	ReminderStatusSent      ReminderStatus = "SENT"
	ReminderStatusCompleted ReminderStatus = "COMPLETED"
)

type CheckinStatus string

const (
	CheckinStatusScheduled CheckinStatus = "SCHEDULED"
	CheckinStatusSent      CheckinStatus = "SENT"
	CheckinStatusResponded CheckinStatus = "RESPONDED"
	CheckinStatusFailed    CheckinStatus = "FAILED"
)

const (
	CheckinResponseContacted = 1
	CheckinResponseNotYet    = 2
)

type Lead struct {
	ID                  string
	City                string
	ServiceType         string
	PreferredTimeWindow string
	SessionLength       string
	LocationType        string
	ContactPref         string
	BudgetRange         string
	NotesSnippet        string
	ClientName          string
	ClientPhone         string
	ClientEmail         string
	ExactAddress        string
	ZipCode             string
	IsClosed            bool
	CreatedAt           time.Time
	ExpiresAt           time.Time
}

type Provider struct {
	ID           string
	Phone        string
	Email        string
	Name         string
	Slug         string
	SMSOptedOut  bool
	IsVerified   bool
	ServiceAreas string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Unlock struct {
	ID                string
	LeadID            string
	ProviderID        string
	Status            UnlockStatus
	PriceCents        int
	PaymentLinkURL    string
	CheckoutSessionID string
	IdempotencyKey    string
	TTLExpiresAt      *time.Time
	TeaserSentAt      *time.Time
	YReceivedAt       *time.Time
	PaymentLinkSentAt *time.Time
	PaidAt            *time.Time
	UnlockedAt        *time.Time
	RevealedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// UnlockMutation carries the columns a guarded transition may set alongside
// the status change. Nil fields are left untouched.
type UnlockMutation struct {
	PaymentLinkURL    *string
	CheckoutSessionID *string
	TTLExpiresAt      *time.Time
	TeaserSentAt      *time.Time
	YReceivedAt       *time.Time
	PaymentLinkSentAt *time.Time
	PaidAt            *time.Time
	UnlockedAt        *time.Time
	RevealedAt        *time.Time
}

type ClientFollowUp struct {
	ID                int64
	LeadID            string
	ProviderID        string
	ClientPhone       string
	ClientName        string
	ProviderName      string
	Status            FollowUpStatus
	SendAfter         time.Time
	SentAt            *time.Time
	RepliedAt         *time.Time
	RecoveryOfferedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type FollowUpMutation struct {
	SentAt            *time.Time
	RepliedAt         *time.Time
	RecoveryOfferedAt *time.Time
}

type ProviderReminder struct {
	ID            int64
	LeadID        string
	ProviderID    string
	ProviderPhone string
	Status        ReminderStatus
	SendAfter     time.Time
	SentAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type ContactFollowUp struct {
	ID            int64
	LeadID        string
	ProviderID    string
	Status        CheckinStatus
	SendAfter     time.Time
	SentAt        *time.Time
	RespondedAt   *time.Time
	ResponseValue *int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type ContactCheckinStats struct {
	TotalAsked int
	Responded  int
	Contacted  int
	NotYet     int
}

type UnlockAuditEntry struct {
	ID         string
	LeadID     string
	ProviderID string
	Action     string
	Details    map[string]any
	CreatedAt  time.Time
}

type CreateUnlockResult struct {
	Unlock  Unlock
	Created bool
}

type CreateFollowUpResult struct {
	FollowUp ClientFollowUp
	Created  bool
}

type CreateReminderResult struct {
	Reminder ProviderReminder
	Created  bool
}

type CreateCheckinResult struct {
	Checkin ContactFollowUp
	Created bool
}

// ReplyResult is returned by inbound reply interpreters. Handled false means
// the phone matched no open row and the caller should try other interpreters.
type ReplyResult struct {
	Handled bool
	Action  string
}

const (
	ReplyActionYesRecorded      = "yes_recorded"
	ReplyActionRecoveryOffered  = "recovery_offered"
	ReplyActionRecoveryAccepted = "recovery_accepted"
	ReplyActionClosed           = "closed"
	ReplyActionPromptResent     = "prompt_resent"
	ReplyActionContactRecorded  = "contact_recorded"
	ReplyActionIgnored          = "ignored"
)

type AcceptanceRequest struct {
	LeadID     string
	ProviderID string
	Token      string
}

type AcceptanceResult struct {
	Unlock         Unlock
	PaymentLinkURL string
	Reused         bool
}

type MarkPaidRequest struct {
	UnlockID          string
	CheckoutSessionID string
	Source            string
}

type PaymentFallbackRequest struct {
	LeadID     string
	ProviderID string
}

type PaymentFallbackResult struct {
	Unlock     Unlock
	Reconciled bool
}

type RequeueResult struct {
	LeadID     string
	Dispatched []string
	Exhausted  bool
}
