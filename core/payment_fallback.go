package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// VerifyPaymentFallback reconciles an unlock when the payment webhook was
// missed. It asks the gateway whether the checkout session actually paid
// and, if so, replays the mark-paid and reveal steps. Safe to call from an
// operator console or a sweep job at any time.
func (s *Service) VerifyPaymentFallback(ctx context.Context, req PaymentFallbackRequest) (PaymentFallbackResult, error) {
	startedAt := time.Now()
	var result PaymentFallbackResult
	var err error
	defer func() {
		s.observeOperation(ctx, startedAt, "payment_fallback", err, map[string]any{
			"lead_id":     req.LeadID,
			"provider_id": req.ProviderID,
			"reconciled":  result.Reconciled,
		})
	}()

	if s == nil {
		err = fmt.Errorf("core: service is nil")
		return result, err
	}
	if s.unlockStore == nil {
		err = fmt.Errorf("core: unlock store is required")
		return result, err
	}
	if s.paymentGateway == nil {
		err = fmt.Errorf("core: payment gateway is required")
		return result, err
	}

	unlock, getErr := s.unlockStore.GetByPair(ctx, strings.TrimSpace(req.LeadID), strings.TrimSpace(req.ProviderID))
	if getErr != nil {
		err = s.mapError(getErr)
		return result, err
	}
	result.Unlock = unlock

	switch unlock.Status {
	case UnlockStatusRevealed:
		return result, nil
	case UnlockStatusPaid:
		revealed, revealErr := s.Reveal(ctx, unlock.ID)
		if revealErr != nil {
			err = revealErr
			return result, err
		}
		result = PaymentFallbackResult{Unlock: revealed, Reconciled: true}
		return result, nil
	case UnlockStatusExpired, UnlockStatusDeclined:
		return result, nil
	}

	if strings.TrimSpace(unlock.CheckoutSessionID) == "" {
		return result, nil
	}

	paid, verifyErr := s.paymentGateway.VerifyPayment(ctx, unlock.CheckoutSessionID)
	if verifyErr != nil {
		err = ensureLeadsErrorEnvelope(
			goerrors.Wrap(verifyErr, goerrors.CategoryExternal, "core: payment verification failed"),
		)
		return result, err
	}
	if !paid {
		return result, nil
	}

	marked, markErr := s.MarkPaid(ctx, MarkPaidRequest{
		UnlockID:          unlock.ID,
		CheckoutSessionID: unlock.CheckoutSessionID,
		Source:            "fallback",
	})
	if markErr != nil {
		err = markErr
		return result, err
	}
	revealed, revealErr := s.Reveal(ctx, marked.ID)
	if revealErr != nil {
		err = revealErr
		result.Unlock = marked
		return result, err
	}
	result = PaymentFallbackResult{Unlock: revealed, Reconciled: true}
	return result, nil
}
