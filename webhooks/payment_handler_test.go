package webhooks

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/goliatone/go-leads/core"
)

type stubPaymentService struct {
	markPaidReq   core.MarkPaidRequest
	markPaidCalls int
	markPaidErr   error
	unlock        core.Unlock

	revealID    string
	revealCalls int
	revealErr   error
	revealed    core.Unlock
}

func (s *stubPaymentService) MarkPaid(_ context.Context, req core.MarkPaidRequest) (core.Unlock, error) {
	s.markPaidCalls++
	s.markPaidReq = req
	if s.markPaidErr != nil {
		return core.Unlock{}, s.markPaidErr
	}
	return s.unlock, nil
}

func (s *stubPaymentService) Reveal(_ context.Context, unlockID string) (core.Unlock, error) {
	s.revealCalls++
	s.revealID = unlockID
	if s.revealErr != nil {
		return core.Unlock{}, s.revealErr
	}
	return s.revealed, nil
}

func TestPaymentHandlerMarksPaidAndReveals(t *testing.T) {
	service := &stubPaymentService{
		unlock: core.Unlock{ID: "unlock-1", LeadID: "lead-1", ProviderID: "provider-1", Status: core.UnlockStatusPaid},
		revealed: core.Unlock{
			ID: "unlock-1", LeadID: "lead-1", ProviderID: "provider-1", Status: core.UnlockStatusRevealed,
		},
	}
	handler, err := NewPaymentCompletedHandler(service)
	if err != nil {
		t.Fatalf("NewPaymentCompletedHandler: %v", err)
	}

	result, err := handler.Handle(context.Background(), core.InboundRequest{
		Surface: SurfacePaymentWebhook,
		Metadata: map[string]any{
			"event_id":            "evt_1",
			"event_type":          "checkout.session.completed",
			"checkout_session_id": "cs_123",
		},
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !result.Accepted || result.StatusCode != http.StatusOK {
		t.Fatalf("result = %+v", result)
	}
	if result.Metadata["status"] != string(core.UnlockStatusRevealed) {
		t.Fatalf("metadata = %+v", result.Metadata)
	}
	if service.markPaidReq.CheckoutSessionID != "cs_123" || service.markPaidReq.Source != "webhook" {
		t.Fatalf("mark paid request = %+v", service.markPaidReq)
	}
	if service.revealID != "unlock-1" {
		t.Fatalf("reveal saw unlock %q", service.revealID)
	}
}

func TestPaymentHandlerIgnoresUnrelatedEvents(t *testing.T) {
	service := &stubPaymentService{}
	handler, err := NewPaymentCompletedHandler(service)
	if err != nil {
		t.Fatalf("NewPaymentCompletedHandler: %v", err)
	}

	result, err := handler.Handle(context.Background(), core.InboundRequest{
		Surface: SurfacePaymentWebhook,
		Metadata: map[string]any{
			"event_id":   "evt_2",
			"event_type": "invoice.created",
		},
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !result.Accepted || result.StatusCode != http.StatusNoContent {
		t.Fatalf("result = %+v", result)
	}
	if ignored, _ := result.Metadata["ignored"].(bool); !ignored {
		t.Fatalf("metadata = %+v", result.Metadata)
	}
	if service.markPaidCalls != 0 {
		t.Fatal("unrelated events should not mark anything paid")
	}
}

func TestPaymentHandlerRequiresSessionOrUnlock(t *testing.T) {
	handler, err := NewPaymentCompletedHandler(&stubPaymentService{})
	if err != nil {
		t.Fatalf("NewPaymentCompletedHandler: %v", err)
	}
	_, err = handler.Handle(context.Background(), core.InboundRequest{
		Surface:  SurfacePaymentWebhook,
		Metadata: map[string]any{"event_id": "evt_3"},
	})
	if err == nil {
		t.Fatal("missing identifiers should fail")
	}
}

func TestPaymentHandlerRevealFailureSurfacesError(t *testing.T) {
	service := &stubPaymentService{
		unlock:    core.Unlock{ID: "unlock-9", Status: core.UnlockStatusPaid},
		revealErr: errors.New("sms provider down"),
	}
	handler, err := NewPaymentCompletedHandler(service)
	if err != nil {
		t.Fatalf("NewPaymentCompletedHandler: %v", err)
	}

	_, err = handler.Handle(context.Background(), core.InboundRequest{
		Surface: SurfacePaymentWebhook,
		Metadata: map[string]any{
			"event_id":            "evt_4",
			"checkout_session_id": "cs_987",
		},
	})
	if err == nil {
		t.Fatal("reveal failure should surface so the claim stays retryable")
	}
	if service.markPaidCalls != 1 || service.revealCalls != 1 {
		t.Fatalf("calls = markPaid:%d reveal:%d", service.markPaidCalls, service.revealCalls)
	}
}

func TestPaymentHandlerRequiresService(t *testing.T) {
	if _, err := NewPaymentCompletedHandler(nil); err == nil {
		t.Fatal("nil service should fail")
	}
}
