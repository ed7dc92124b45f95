package sqlstore

import (
	"time"

	"github.com/goliatone/go-leads/core"
	"github.com/uptrace/bun"
)

type leadRecord struct {
	bun.BaseModel `bun:"table:leads,alias:l"`

	ID                  string     `bun:"id,pk"`
	City                string     `bun:"city"`
	ServiceType         string     `bun:"service_type"`
	PreferredTimeWindow string     `bun:"preferred_time_window"`
	SessionLength       string     `bun:"session_length"`
	LocationType        string     `bun:"location_type"`
	ContactPref         string     `bun:"contact_pref"`
	BudgetRange         string     `bun:"budget_range"`
	NotesSnippet        string     `bun:"notes_snippet"`
	ClientName          string     `bun:"client_name"`
	ClientPhone         string     `bun:"client_phone,notnull"`
	ClientEmail         string     `bun:"client_email"`
	ExactAddress        string     `bun:"exact_address"`
	ZipCode             string     `bun:"zip_code"`
	IsClosed            bool       `bun:"is_closed,notnull"`
	CreatedAt           time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	ExpiresAt           *time.Time `bun:"expires_at,nullzero"`
}

func newLeadRecord(lead core.Lead) *leadRecord {
	record := &leadRecord{
		ID:                  lead.ID,
		City:                lead.City,
		ServiceType:         lead.ServiceType,
		PreferredTimeWindow: lead.PreferredTimeWindow,
		SessionLength:       lead.SessionLength,
		LocationType:        lead.LocationType,
		ContactPref:         lead.ContactPref,
		BudgetRange:         lead.BudgetRange,
		NotesSnippet:        lead.NotesSnippet,
		ClientName:          lead.ClientName,
		ClientPhone:         lead.ClientPhone,
		ClientEmail:         lead.ClientEmail,
		ExactAddress:        lead.ExactAddress,
		ZipCode:             lead.ZipCode,
		IsClosed:            lead.IsClosed,
		CreatedAt:           lead.CreatedAt,
	}
	if !lead.ExpiresAt.IsZero() {
		expires := lead.ExpiresAt
		record.ExpiresAt = &expires
	}
	return record
}

func (r *leadRecord) toDomain() core.Lead {
	lead := core.Lead{
		ID:                  r.ID,
		City:                r.City,
		ServiceType:         r.ServiceType,
		PreferredTimeWindow: r.PreferredTimeWindow,
		SessionLength:       r.SessionLength,
		LocationType:        r.LocationType,
		ContactPref:         r.ContactPref,
		BudgetRange:         r.BudgetRange,
		NotesSnippet:        r.NotesSnippet,
		ClientName:          r.ClientName,
		ClientPhone:         r.ClientPhone,
		ClientEmail:         r.ClientEmail,
		ExactAddress:        r.ExactAddress,
		ZipCode:             r.ZipCode,
		IsClosed:            r.IsClosed,
		CreatedAt:           r.CreatedAt,
	}
	if r.ExpiresAt != nil {
		lead.ExpiresAt = *r.ExpiresAt
	}
	return lead
}

type providerRecord struct {
	bun.BaseModel `bun:"table:providers,alias:p"`

	ID           string    `bun:"id,pk"`
	Phone        string    `bun:"phone,notnull"`
	Email        string    `bun:"email"`
	Name         string    `bun:"name"`
	Slug         string    `bun:"slug"`
	SMSOptedOut  bool      `bun:"sms_opted_out,notnull"`
	IsVerified   bool      `bun:"is_verified,notnull"`
	ServiceAreas string    `bun:"service_areas"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *providerRecord) toDomain() core.Provider {
	return core.Provider{
		ID:           r.ID,
		Phone:        r.Phone,
		Email:        r.Email,
		Name:         r.Name,
		Slug:         r.Slug,
		SMSOptedOut:  r.SMSOptedOut,
		IsVerified:   r.IsVerified,
		ServiceAreas: r.ServiceAreas,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type unlockRecord struct {
	bun.BaseModel `bun:"table:provider_lead_unlocks,alias:plu"`

	ID                string     `bun:"id,pk"`
	LeadID            string     `bun:"lead_id,notnull"`
	ProviderID        string     `bun:"provider_id,notnull"`
	Status            string     `bun:"status,notnull"`
	PriceCents        int        `bun:"price_cents,notnull"`
	PaymentLinkURL    string     `bun:"payment_link_url"`
	CheckoutSessionID string     `bun:"checkout_session_id"`
	IdempotencyKey    string     `bun:"idempotency_key"`
	TTLExpiresAt      *time.Time `bun:"ttl_expires_at,nullzero"`
	TeaserSentAt      *time.Time `bun:"teaser_sent_at,nullzero"`
	YReceivedAt       *time.Time `bun:"y_received_at,nullzero"`
	PaymentLinkSentAt *time.Time `bun:"payment_link_sent_at,nullzero"`
	PaidAt            *time.Time `bun:"paid_at,nullzero"`
	UnlockedAt        *time.Time `bun:"unlocked_at,nullzero"`
	RevealedAt        *time.Time `bun:"revealed_at,nullzero"`
	CreatedAt         time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newUnlockRecord(unlock core.Unlock) *unlockRecord {
	return &unlockRecord{
		ID:                unlock.ID,
		LeadID:            unlock.LeadID,
		ProviderID:        unlock.ProviderID,
		Status:            string(unlock.Status),
		PriceCents:        unlock.PriceCents,
		PaymentLinkURL:    unlock.PaymentLinkURL,
		CheckoutSessionID: unlock.CheckoutSessionID,
		IdempotencyKey:    unlock.IdempotencyKey,
		TTLExpiresAt:      unlock.TTLExpiresAt,
		TeaserSentAt:      unlock.TeaserSentAt,
		YReceivedAt:       unlock.YReceivedAt,
		PaymentLinkSentAt: unlock.PaymentLinkSentAt,
		PaidAt:            unlock.PaidAt,
		UnlockedAt:        unlock.UnlockedAt,
		RevealedAt:        unlock.RevealedAt,
		CreatedAt:         unlock.CreatedAt,
		UpdatedAt:         unlock.UpdatedAt,
	}
}

func (r *unlockRecord) toDomain() core.Unlock {
	return core.Unlock{
		ID:                r.ID,
		LeadID:            r.LeadID,
		ProviderID:        r.ProviderID,
		Status:            core.UnlockStatus(r.Status),
		PriceCents:        r.PriceCents,
		PaymentLinkURL:    r.PaymentLinkURL,
		CheckoutSessionID: r.CheckoutSessionID,
		IdempotencyKey:    r.IdempotencyKey,
		TTLExpiresAt:      r.TTLExpiresAt,
		TeaserSentAt:      r.TeaserSentAt,
		YReceivedAt:       r.YReceivedAt,
		PaymentLinkSentAt: r.PaymentLinkSentAt,
		PaidAt:            r.PaidAt,
		UnlockedAt:        r.UnlockedAt,
		RevealedAt:        r.RevealedAt,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

type clientFollowUpRecord struct {
	bun.BaseModel `bun:"table:client_followups,alias:cf"`

	ID                int64      `bun:"id,pk,autoincrement"`
	LeadID            string     `bun:"lead_id,notnull"`
	ProviderID        string     `bun:"provider_id"`
	ClientPhone       string     `bun:"client_phone,notnull"`
	ClientName        string     `bun:"client_name"`
	ProviderName      string     `bun:"provider_name"`
	Status            string     `bun:"status,notnull"`
	SendAfter         time.Time  `bun:"send_after,notnull"`
	SentAt            *time.Time `bun:"sent_at,nullzero"`
	RepliedAt         *time.Time `bun:"replied_at,nullzero"`
	RecoveryOfferedAt *time.Time `bun:"recovery_offered_at,nullzero"`
	CreatedAt         time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newClientFollowUpRecord(followUp core.ClientFollowUp) *clientFollowUpRecord {
	return &clientFollowUpRecord{
		ID:                followUp.ID,
		LeadID:            followUp.LeadID,
		ProviderID:        followUp.ProviderID,
		ClientPhone:       followUp.ClientPhone,
		ClientName:        followUp.ClientName,
		ProviderName:      followUp.ProviderName,
		Status:            string(followUp.Status),
		SendAfter:         followUp.SendAfter,
		SentAt:            followUp.SentAt,
		RepliedAt:         followUp.RepliedAt,
		RecoveryOfferedAt: followUp.RecoveryOfferedAt,
		CreatedAt:         followUp.CreatedAt,
		UpdatedAt:         followUp.UpdatedAt,
	}
}

func (r *clientFollowUpRecord) toDomain() core.ClientFollowUp {
	return core.ClientFollowUp{
		ID:                r.ID,
		LeadID:            r.LeadID,
		ProviderID:        r.ProviderID,
		ClientPhone:       r.ClientPhone,
		ClientName:        r.ClientName,
		ProviderName:      r.ProviderName,
		Status:            core.FollowUpStatus(r.Status),
		SendAfter:         r.SendAfter,
		SentAt:            r.SentAt,
		RepliedAt:         r.RepliedAt,
		RecoveryOfferedAt: r.RecoveryOfferedAt,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

type providerReminderRecord struct {
	bun.BaseModel `bun:"table:provider_reminders,alias:pr"`

	ID            int64      `bun:"id,pk,autoincrement"`
	LeadID        string     `bun:"lead_id,notnull"`
	ProviderID    string     `bun:"provider_id,notnull"`
	ProviderPhone string     `bun:"provider_phone,notnull"`
	Status        string     `bun:"status,notnull"`
	SendAfter     time.Time  `bun:"send_after,notnull"`
	SentAt        *time.Time `bun:"sent_at,nullzero"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newProviderReminderRecord(reminder core.ProviderReminder) *providerReminderRecord {
	return &providerReminderRecord{
		ID:            reminder.ID,
		LeadID:        reminder.LeadID,
		ProviderID:    reminder.ProviderID,
		ProviderPhone: reminder.ProviderPhone,
		Status:        string(reminder.Status),
		SendAfter:     reminder.SendAfter,
		SentAt:        reminder.SentAt,
		CreatedAt:     reminder.CreatedAt,
		UpdatedAt:     reminder.UpdatedAt,
	}
}

func (r *providerReminderRecord) toDomain() core.ProviderReminder {
	return core.ProviderReminder{
		ID:            r.ID,
		LeadID:        r.LeadID,
		ProviderID:    r.ProviderID,
		ProviderPhone: r.ProviderPhone,
		Status:        core.ReminderStatus(r.Status),
		SendAfter:     r.SendAfter,
		SentAt:        r.SentAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

type contactFollowUpRecord struct {
	bun.BaseModel `bun:"table:provider_contact_followups,alias:pcf"`

	ID            int64      `bun:"id,pk,autoincrement"`
	LeadID        string     `bun:"lead_id,notnull"`
	ProviderID    string     `bun:"provider_id,notnull"`
	Status        string     `bun:"status,notnull"`
	SendAfter     time.Time  `bun:"send_after,notnull"`
	SentAt        *time.Time `bun:"sent_at,nullzero"`
	RespondedAt   *time.Time `bun:"responded_at,nullzero"`
	ResponseValue *int       `bun:"response_value"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newContactFollowUpRecord(checkin core.ContactFollowUp) *contactFollowUpRecord {
	return &contactFollowUpRecord{
		ID:            checkin.ID,
		LeadID:        checkin.LeadID,
		ProviderID:    checkin.ProviderID,
		Status:        string(checkin.Status),
		SendAfter:     checkin.SendAfter,
		SentAt:        checkin.SentAt,
		RespondedAt:   checkin.RespondedAt,
		ResponseValue: checkin.ResponseValue,
		CreatedAt:     checkin.CreatedAt,
		UpdatedAt:     checkin.UpdatedAt,
	}
}

func (r *contactFollowUpRecord) toDomain() core.ContactFollowUp {
	return core.ContactFollowUp{
		ID:            r.ID,
		LeadID:        r.LeadID,
		ProviderID:    r.ProviderID,
		Status:        core.CheckinStatus(r.Status),
		SendAfter:     r.SendAfter,
		SentAt:        r.SentAt,
		RespondedAt:   r.RespondedAt,
		ResponseValue: r.ResponseValue,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

type unlockAuditRecord struct {
	bun.BaseModel `bun:"table:unlock_audit_log,alias:ual"`

	ID         string         `bun:"id,pk"`
	LeadID     string         `bun:"lead_id"`
	ProviderID string         `bun:"provider_id"`
	Action     string         `bun:"action,notnull"`
	Details    map[string]any `bun:"details,type:jsonb"`
	CreatedAt  time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r *unlockAuditRecord) toDomain() core.UnlockAuditEntry {
	return core.UnlockAuditEntry{
		ID:         r.ID,
		LeadID:     r.LeadID,
		ProviderID: r.ProviderID,
		Action:     r.Action,
		Details:    r.Details,
		CreatedAt:  r.CreatedAt,
	}
}

type paymentWebhookDeliveryRecord struct {
	bun.BaseModel `bun:"table:payment_webhook_deliveries,alias:pwd"`

	ID          string     `bun:"id,pk"`
	EventID     string     `bun:"event_id,notnull,unique"`
	Status      string     `bun:"status,notnull"`
	Attempts    int        `bun:"attempts,notnull"`
	LastError   string     `bun:"last_error"`
	LeaseUntil  *time.Time `bun:"lease_until,nullzero"`
	CompletedAt *time.Time `bun:"completed_at,nullzero"`
	NextRetryAt *time.Time `bun:"next_retry_at,nullzero"`
	CreatedAt   time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
