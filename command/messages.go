package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-leads/core"
)

const (
	TypeCreateUnlock          = "leads.command.unlock.create"
	TypeSendTeaser            = "leads.command.unlock.send_teaser"
	TypeRecordAcceptance      = "leads.command.unlock.record_acceptance"
	TypeMarkPaid              = "leads.command.unlock.mark_paid"
	TypeReveal                = "leads.command.unlock.reveal"
	TypeExpireUnlock          = "leads.command.unlock.expire"
	TypeDeclineUnlock         = "leads.command.unlock.decline"
	TypeRequeueLead           = "leads.command.lead.requeue"
	TypeHandleReply           = "leads.command.reply.handle"
	TypeVerifyPaymentFallback = "leads.command.payment.verify_fallback"
)

type CreateUnlockMessage struct {
	LeadID     string
	ProviderID string
}

func (CreateUnlockMessage) Type() string { return TypeCreateUnlock }

func (m CreateUnlockMessage) Validate() error {
	if strings.TrimSpace(m.LeadID) == "" {
		return fmt.Errorf("command: lead id is required")
	}
	if strings.TrimSpace(m.ProviderID) == "" {
		return fmt.Errorf("command: provider id is required")
	}
	return nil
}

type SendTeaserMessage struct {
	UnlockID string
}

func (SendTeaserMessage) Type() string { return TypeSendTeaser }

func (m SendTeaserMessage) Validate() error {
	if strings.TrimSpace(m.UnlockID) == "" {
		return fmt.Errorf("command: unlock id is required")
	}
	return nil
}

type RecordAcceptanceMessage struct {
	Request core.AcceptanceRequest
}

func (RecordAcceptanceMessage) Type() string { return TypeRecordAcceptance }

func (m RecordAcceptanceMessage) Validate() error {
	if strings.TrimSpace(m.Request.Token) != "" {
		return nil
	}
	if strings.TrimSpace(m.Request.LeadID) == "" || strings.TrimSpace(m.Request.ProviderID) == "" {
		return fmt.Errorf("command: acceptance token or lead and provider ids are required")
	}
	return nil
}

type MarkPaidMessage struct {
	Request core.MarkPaidRequest
}

func (MarkPaidMessage) Type() string { return TypeMarkPaid }

func (m MarkPaidMessage) Validate() error {
	if strings.TrimSpace(m.Request.UnlockID) == "" && strings.TrimSpace(m.Request.CheckoutSessionID) == "" {
		return fmt.Errorf("command: unlock id or checkout session id is required")
	}
	return nil
}

type RevealMessage struct {
	UnlockID string
}

func (RevealMessage) Type() string { return TypeReveal }

func (m RevealMessage) Validate() error {
	if strings.TrimSpace(m.UnlockID) == "" {
		return fmt.Errorf("command: unlock id is required")
	}
	return nil
}

type ExpireUnlockMessage struct {
	UnlockID string
}

func (ExpireUnlockMessage) Type() string { return TypeExpireUnlock }

func (m ExpireUnlockMessage) Validate() error {
	if strings.TrimSpace(m.UnlockID) == "" {
		return fmt.Errorf("command: unlock id is required")
	}
	return nil
}

type DeclineUnlockMessage struct {
	UnlockID string
}

func (DeclineUnlockMessage) Type() string { return TypeDeclineUnlock }

func (m DeclineUnlockMessage) Validate() error {
	if strings.TrimSpace(m.UnlockID) == "" {
		return fmt.Errorf("command: unlock id is required")
	}
	return nil
}

type RequeueLeadMessage struct {
	LeadID string
}

func (RequeueLeadMessage) Type() string { return TypeRequeueLead }

func (m RequeueLeadMessage) Validate() error {
	if strings.TrimSpace(m.LeadID) == "" {
		return fmt.Errorf("command: lead id is required")
	}
	return nil
}

type HandleReplyMessage struct {
	FromPhone string
	Text      string
}

func (HandleReplyMessage) Type() string { return TypeHandleReply }

func (m HandleReplyMessage) Validate() error {
	if strings.TrimSpace(m.FromPhone) == "" {
		return fmt.Errorf("command: sender phone is required")
	}
	return nil
}

type VerifyPaymentFallbackMessage struct {
	Request core.PaymentFallbackRequest
}

func (VerifyPaymentFallbackMessage) Type() string { return TypeVerifyPaymentFallback }

func (m VerifyPaymentFallbackMessage) Validate() error {
	if strings.TrimSpace(m.Request.LeadID) == "" {
		return fmt.Errorf("command: lead id is required")
	}
	if strings.TrimSpace(m.Request.ProviderID) == "" {
		return fmt.Errorf("command: provider id is required")
	}
	return nil
}
