package webhooks

import (
	"context"
	"net/http"

	"github.com/goliatone/go-leads/core"
)

// PaymentService is the slice of the lead service the payment surface needs.
type PaymentService interface {
	MarkPaid(ctx context.Context, req core.MarkPaidRequest) (core.Unlock, error)
	Reveal(ctx context.Context, unlockID string) (core.Unlock, error)
}

// PaymentCompletedHandler turns a settled checkout event into a paid and
// revealed unlock. MarkPaid is replay safe and Reveal leaves the unlock PAID
// on failure, so a redelivered event resumes wherever the last attempt
// stopped.
type PaymentCompletedHandler struct {
	service PaymentService
}

func NewPaymentCompletedHandler(service PaymentService) (*PaymentCompletedHandler, error) {
	if service == nil {
		return nil, webhookBadInput("webhooks: payment service is required", nil)
	}
	return &PaymentCompletedHandler{service: service}, nil
}

func (h *PaymentCompletedHandler) Surface() string {
	return SurfacePaymentWebhook
}

func (h *PaymentCompletedHandler) Handle(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if h == nil || h.service == nil {
		return core.InboundResult{}, webhookInternal("webhooks: payment handler is not configured", nil)
	}

	eventType := metadataValue(req.Metadata, "event_type")
	if eventType != "" && !isSettlementEvent(eventType) {
		return core.InboundResult{
			Accepted:   true,
			StatusCode: http.StatusNoContent,
			Metadata: map[string]any{
				"ignored":    true,
				"event_type": eventType,
			},
		}, nil
	}

	sessionID := metadataValue(req.Metadata, "checkout_session_id")
	if sessionID == "" {
		sessionID = metadataValue(req.Metadata, "session_id")
	}
	unlockID := metadataValue(req.Metadata, "unlock_id")
	if sessionID == "" && unlockID == "" {
		return core.InboundResult{}, webhookBadInput(
			"webhooks: checkout session id or unlock id is required",
			map[string]any{"event_type": eventType},
		)
	}

	unlock, err := h.service.MarkPaid(ctx, core.MarkPaidRequest{
		UnlockID:          unlockID,
		CheckoutSessionID: sessionID,
		Source:            "webhook",
	})
	if err != nil {
		return core.InboundResult{}, err
	}

	revealed, err := h.service.Reveal(ctx, unlock.ID)
	if err != nil {
		return core.InboundResult{}, err
	}

	return core.InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Metadata: map[string]any{
			"unlock_id":   revealed.ID,
			"lead_id":     revealed.LeadID,
			"provider_id": revealed.ProviderID,
			"status":      string(revealed.Status),
		},
	}, nil
}

func isSettlementEvent(eventType string) bool {
	switch eventType {
	case "checkout.session.completed", "checkout.completed", "payment_intent.succeeded", "payment.succeeded":
		return true
	}
	return false
}

var (
	_ Handler             = (*PaymentCompletedHandler)(nil)
	_ core.InboundHandler = (*PaymentCompletedHandler)(nil)
)
