package core

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// CreateUnlock inserts a PENDING unlock for the pair, pricing it from the
// lead's service type. Replays return the existing row with Created false.
func (s *Service) CreateUnlock(ctx context.Context, leadID string, providerID string) (CreateUnlockResult, error) {
	startedAt := time.Now()
	var result CreateUnlockResult
	var err error
	defer func() {
		s.observeOperation(ctx, startedAt, "unlock_create", err, map[string]any{
			"lead_id":     leadID,
			"provider_id": providerID,
		})
	}()

	if s == nil {
		err = fmt.Errorf("core: service is nil")
		return result, err
	}
	if s.unlockStore == nil || s.leadStore == nil || s.providerStore == nil {
		err = fmt.Errorf("core: unlock, lead and provider stores are required")
		return result, err
	}
	leadID = strings.TrimSpace(leadID)
	providerID = strings.TrimSpace(providerID)
	if leadID == "" || providerID == "" {
		err = fmt.Errorf("core: lead id and provider id are required")
		return result, s.mapError(err)
	}

	lead, getErr := s.leadStore.Get(ctx, leadID)
	if getErr != nil {
		err = s.mapError(getErr)
		return result, err
	}
	if lead.IsClosed {
		err = NewLeadClosedError(leadID)
		return result, err
	}
	provider, getErr := s.providerStore.Get(ctx, providerID)
	if getErr != nil {
		err = s.mapError(getErr)
		return result, err
	}
	if provider.SMSOptedOut {
		err = newLeadsError("core: provider has opted out of SMS", goerrors.CategoryBadInput, LeadsErrorBadInput)
		return result, err
	}

	now := s.now()
	result, err = s.unlockStore.CreateIfAbsent(ctx, Unlock{
		ID:             uuid.NewString(),
		LeadID:         leadID,
		ProviderID:     providerID,
		Status:         UnlockStatusPending,
		PriceCents:     s.config.Pricing.PriceCents(lead.ServiceType),
		IdempotencyKey: uuid.NewString(),
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		err = s.mapError(err)
		return result, err
	}
	if result.Created {
		s.audit(ctx, leadID, providerID, "unlock_created", map[string]any{
			"unlock_id":   result.Unlock.ID,
			"price_cents": result.Unlock.PriceCents,
		})
	}
	return result, nil
}

// SendTeaser texts the redacted lead summary with a signed accept link and
// moves the unlock to TEASER_SENT. The SMS goes out before the status flips
// so a crash retries the send rather than losing it. Replays on a row that
// already reached TEASER_SENT are no-ops.
func (s *Service) SendTeaser(ctx context.Context, unlockID string) (Unlock, error) {
	startedAt := time.Now()
	var unlock Unlock
	var err error
	defer func() {
		s.observeOperation(ctx, startedAt, "teaser_send", err, map[string]any{
			"unlock_id":   unlockID,
			"lead_id":     unlock.LeadID,
			"provider_id": unlock.ProviderID,
		})
	}()

	if s == nil {
		err = fmt.Errorf("core: service is nil")
		return unlock, err
	}
	if s.unlockStore == nil || s.leadStore == nil || s.providerStore == nil {
		err = fmt.Errorf("core: unlock, lead and provider stores are required")
		return unlock, err
	}
	if s.smsSender == nil {
		err = fmt.Errorf("core: sms sender is required")
		return unlock, err
	}

	unlock, err = s.unlockStore.Get(ctx, strings.TrimSpace(unlockID))
	if err != nil {
		err = s.mapError(err)
		return unlock, err
	}
	if unlock.Status == UnlockStatusTeaserSent {
		return unlock, nil
	}
	if unlock.Status != UnlockStatusPending {
		err = NewInvalidTransitionError(unlock.Status, UnlockStatusTeaserSent)
		return unlock, err
	}

	lead, getErr := s.leadStore.Get(ctx, unlock.LeadID)
	if getErr != nil {
		err = s.mapError(getErr)
		return unlock, err
	}
	if lead.IsClosed {
		err = NewLeadClosedError(unlock.LeadID)
		return unlock, err
	}
	provider, getErr := s.providerStore.Get(ctx, unlock.ProviderID)
	if getErr != nil {
		err = s.mapError(getErr)
		return unlock, err
	}

	token, tokenErr := s.tokenSigner.Issue(unlock.LeadID, unlock.ProviderID)
	if tokenErr != nil {
		err = tokenErr
		return unlock, err
	}
	if sendErr := s.smsSender.Send(ctx, provider.Phone, teaserMessage(lead, unlock.PriceCents, s.acceptanceURL(token))); sendErr != nil {
		err = NewTransientSendError(sendErr, "sms")
		return unlock, err
	}

	now := s.now()
	updated, applied, transitionErr := s.unlockStore.Transition(ctx, unlock.ID, UnlockStatusPending, UnlockStatusTeaserSent, UnlockMutation{
		TeaserSentAt: &now,
	})
	if transitionErr != nil {
		err = s.mapError(transitionErr)
		return unlock, err
	}
	if !applied {
		current, getErr := s.unlockStore.Get(ctx, unlock.ID)
		if getErr != nil {
			err = s.mapError(getErr)
			return unlock, err
		}
		if current.Status == UnlockStatusTeaserSent {
			unlock = current
			return unlock, nil
		}
		err = NewInvalidTransitionError(current.Status, UnlockStatusTeaserSent)
		return current, err
	}
	unlock = updated

	if s.providerNudges != nil {
		if _, nudgeErr := s.providerNudges.Schedule(ctx, lead, provider); nudgeErr != nil && !IsDuplicateSchedule(nudgeErr) {
			s.logError(ctx, "nudge schedule failed", map[string]any{
				"lead_id":     lead.ID,
				"provider_id": provider.ID,
				"error":       nudgeErr.Error(),
			})
		}
	}

	s.audit(ctx, unlock.LeadID, unlock.ProviderID, "teaser_sent", map[string]any{
		"unlock_id": unlock.ID,
	})
	return unlock, nil
}

// RecordAcceptance handles a provider saying yes, either via the signed
// accept link or a bare Y reply. It creates a checkout session and sends the
// payment link. A replay inside the link's TTL returns the existing link.
func (s *Service) RecordAcceptance(ctx context.Context, req AcceptanceRequest) (AcceptanceResult, error) {
	startedAt := time.Now()
	var result AcceptanceResult
	var err error
	defer func() {
		s.observeOperation(ctx, startedAt, "acceptance_record", err, map[string]any{
			"lead_id":     req.LeadID,
			"provider_id": req.ProviderID,
		})
	}()

	if s == nil {
		err = fmt.Errorf("core: service is nil")
		return result, err
	}
	if s.unlockStore == nil || s.leadStore == nil {
		err = fmt.Errorf("core: unlock and lead stores are required")
		return result, err
	}
	if s.paymentGateway == nil {
		err = fmt.Errorf("core: payment gateway is required")
		return result, err
	}

	if strings.TrimSpace(req.Token) != "" {
		claims, verifyErr := s.tokenSigner.Verify(req.Token)
		if verifyErr != nil {
			err = verifyErr
			return result, err
		}
		if req.LeadID != "" && req.LeadID != claims.LeadID {
			err = NewInvalidTokenError("core: accept token lead mismatch")
			return result, err
		}
		if req.ProviderID != "" && req.ProviderID != claims.ProviderID {
			err = NewInvalidTokenError("core: accept token provider mismatch")
			return result, err
		}
		req.LeadID = claims.LeadID
		req.ProviderID = claims.ProviderID
	}
	if strings.TrimSpace(req.LeadID) == "" || strings.TrimSpace(req.ProviderID) == "" {
		err = fmt.Errorf("core: lead id and provider id are required")
		return result, s.mapError(err)
	}

	unlock, getErr := s.unlockStore.GetByPair(ctx, req.LeadID, req.ProviderID)
	if getErr != nil {
		err = s.mapError(getErr)
		return result, err
	}
	lead, getErr := s.leadStore.Get(ctx, req.LeadID)
	if getErr != nil {
		err = s.mapError(getErr)
		return result, err
	}
	if lead.IsClosed && unlock.Status != UnlockStatusPaid && unlock.Status != UnlockStatusRevealed {
		err = NewLeadClosedError(req.LeadID)
		return result, err
	}

	for attempt := 0; attempt < 3; attempt++ {
		switch unlock.Status {
		case UnlockStatusPaymentLinkSent:
			now := s.now()
			if unlock.TTLExpiresAt != nil && unlock.TTLExpiresAt.After(now) {
				result = AcceptanceResult{Unlock: unlock, PaymentLinkURL: unlock.PaymentLinkURL, Reused: true}
				return result, nil
			}
			refreshed, refreshErr := s.issuePaymentLink(ctx, lead, unlock, UnlockStatusPaymentLinkSent)
			if refreshErr != nil {
				err = refreshErr
				return result, err
			}
			result = AcceptanceResult{Unlock: refreshed, PaymentLinkURL: refreshed.PaymentLinkURL}
			return result, nil
		case UnlockStatusTeaserSent:
			now := s.now()
			updated, applied, transitionErr := s.unlockStore.Transition(ctx, unlock.ID, UnlockStatusTeaserSent, UnlockStatusYReceived, UnlockMutation{
				YReceivedAt: &now,
			})
			if transitionErr != nil {
				err = s.mapError(transitionErr)
				return result, err
			}
			if !applied {
				current, getErr := s.unlockStore.Get(ctx, unlock.ID)
				if getErr != nil {
					err = s.mapError(getErr)
					return result, err
				}
				unlock = current
				continue
			}
			unlock = updated
			fallthrough
		case UnlockStatusYReceived:
			issued, issueErr := s.issuePaymentLink(ctx, lead, unlock, UnlockStatusYReceived)
			if issueErr != nil {
				err = issueErr
				return result, err
			}
			result = AcceptanceResult{Unlock: issued, PaymentLinkURL: issued.PaymentLinkURL}
			return result, nil
		default:
			err = NewInvalidTransitionError(unlock.Status, UnlockStatusYReceived)
			return result, err
		}
	}
	err = NewInvalidTransitionError(unlock.Status, UnlockStatusYReceived)
	return result, err
}

func (s *Service) issuePaymentLink(ctx context.Context, lead Lead, unlock Unlock, from UnlockStatus) (Unlock, error) {
	linkURL, sessionID, gatewayErr := s.paymentGateway.CreateCheckoutSession(ctx, lead, unlock)
	if gatewayErr != nil {
		return unlock, ensureLeadsErrorEnvelope(
			goerrors.Wrap(gatewayErr, goerrors.CategoryExternal, "core: checkout session creation failed"),
		)
	}
	now := s.now()
	ttl := now.Add(s.config.LeadTTL)
	updated, applied, transitionErr := s.unlockStore.Transition(ctx, unlock.ID, from, UnlockStatusPaymentLinkSent, UnlockMutation{
		PaymentLinkURL:    &linkURL,
		CheckoutSessionID: &sessionID,
		TTLExpiresAt:      &ttl,
		PaymentLinkSentAt: &now,
	})
	if transitionErr != nil {
		return unlock, s.mapError(transitionErr)
	}
	if !applied {
		current, getErr := s.unlockStore.Get(ctx, unlock.ID)
		if getErr != nil {
			return unlock, s.mapError(getErr)
		}
		if current.Status == UnlockStatusPaymentLinkSent {
			return current, nil
		}
		return current, NewInvalidTransitionError(current.Status, UnlockStatusPaymentLinkSent)
	}
	s.audit(ctx, updated.LeadID, updated.ProviderID, "payment_link_sent", map[string]any{
		"unlock_id":           updated.ID,
		"checkout_session_id": sessionID,
	})
	return updated, nil
}

// MarkPaid records the gateway's payment confirmation, closes the lead for
// everyone else, and is safe to replay. Payment proof outranks the usual
// ordering: a webhook that races the reply path may land while the row is
// still TEASER_SENT or Y_RECEIVED.
func (s *Service) MarkPaid(ctx context.Context, req MarkPaidRequest) (Unlock, error) {
	startedAt := time.Now()
	var unlock Unlock
	var err error
	defer func() {
		s.observeOperation(ctx, startedAt, "unlock_mark_paid", err, map[string]any{
			"unlock_id":   unlock.ID,
			"lead_id":     unlock.LeadID,
			"provider_id": unlock.ProviderID,
			"source":      req.Source,
		})
	}()

	if s == nil {
		err = fmt.Errorf("core: service is nil")
		return unlock, err
	}
	if s.unlockStore == nil || s.leadStore == nil {
		err = fmt.Errorf("core: unlock and lead stores are required")
		return unlock, err
	}

	switch {
	case strings.TrimSpace(req.UnlockID) != "":
		unlock, err = s.unlockStore.Get(ctx, strings.TrimSpace(req.UnlockID))
	case strings.TrimSpace(req.CheckoutSessionID) != "":
		unlock, err = s.unlockStore.GetByCheckoutSession(ctx, strings.TrimSpace(req.CheckoutSessionID))
	default:
		err = fmt.Errorf("core: unlock id or checkout session id is required")
	}
	if err != nil {
		err = s.mapError(err)
		return unlock, err
	}

	for attempt := 0; attempt < 3; attempt++ {
		switch unlock.Status {
		case UnlockStatusPaid, UnlockStatusRevealed:
			return unlock, nil
		case UnlockStatusExpired, UnlockStatusDeclined:
			err = NewInvalidTransitionError(unlock.Status, UnlockStatusPaid)
			return unlock, err
		}

		now := s.now()
		mutation := UnlockMutation{PaidAt: &now, UnlockedAt: &now}
		if sessionID := strings.TrimSpace(req.CheckoutSessionID); sessionID != "" && unlock.CheckoutSessionID == "" {
			mutation.CheckoutSessionID = &sessionID
		}
		updated, applied, transitionErr := s.unlockStore.Transition(ctx, unlock.ID, unlock.Status, UnlockStatusPaid, mutation)
		if transitionErr != nil {
			err = s.mapError(transitionErr)
			return unlock, err
		}
		if !applied {
			current, getErr := s.unlockStore.Get(ctx, unlock.ID)
			if getErr != nil {
				err = s.mapError(getErr)
				return unlock, err
			}
			unlock = current
			continue
		}
		unlock = updated

		won, closeErr := s.leadStore.Close(ctx, unlock.LeadID)
		if closeErr != nil {
			s.logError(ctx, "lead close failed", map[string]any{
				"lead_id": unlock.LeadID,
				"error":   closeErr.Error(),
			})
		} else if won {
			s.audit(ctx, unlock.LeadID, unlock.ProviderID, "lead_closed", map[string]any{
				"unlock_id": unlock.ID,
			})
		}
		s.audit(ctx, unlock.LeadID, unlock.ProviderID, "unlock_paid", map[string]any{
			"unlock_id": unlock.ID,
			"source":    req.Source,
		})
		return unlock, nil
	}
	err = NewInvalidTransitionError(unlock.Status, UnlockStatusPaid)
	return unlock, err
}

// Reveal delivers the client's full contact details after payment. The SMS
// is fatal: the unlock stays PAID on failure so a retry sends it again. The
// email copy is best effort. On success the client follow-up and the
// contact check-in are scheduled.
func (s *Service) Reveal(ctx context.Context, unlockID string) (Unlock, error) {
	startedAt := time.Now()
	var unlock Unlock
	var err error
	defer func() {
		s.observeOperation(ctx, startedAt, "lead_reveal", err, map[string]any{
			"unlock_id":   unlockID,
			"lead_id":     unlock.LeadID,
			"provider_id": unlock.ProviderID,
		})
	}()

	if s == nil {
		err = fmt.Errorf("core: service is nil")
		return unlock, err
	}
	if s.unlockStore == nil || s.leadStore == nil || s.providerStore == nil {
		err = fmt.Errorf("core: unlock, lead and provider stores are required")
		return unlock, err
	}
	if s.smsSender == nil {
		err = fmt.Errorf("core: sms sender is required")
		return unlock, err
	}

	unlock, err = s.unlockStore.Get(ctx, strings.TrimSpace(unlockID))
	if err != nil {
		err = s.mapError(err)
		return unlock, err
	}
	if unlock.Status == UnlockStatusRevealed {
		return unlock, nil
	}
	if unlock.Status != UnlockStatusPaid {
		err = NewInvalidTransitionError(unlock.Status, UnlockStatusRevealed)
		return unlock, err
	}

	lead, getErr := s.leadStore.Get(ctx, unlock.LeadID)
	if getErr != nil {
		err = s.mapError(getErr)
		return unlock, err
	}
	provider, getErr := s.providerStore.Get(ctx, unlock.ProviderID)
	if getErr != nil {
		err = s.mapError(getErr)
		return unlock, err
	}

	if sendErr := s.smsSender.Send(ctx, provider.Phone, revealSMS(lead)); sendErr != nil {
		err = NewTransientSendError(sendErr, "sms")
		return unlock, err
	}
	if s.emailSender != nil && strings.TrimSpace(provider.Email) != "" {
		if emailErr := s.emailSender.Send(ctx, provider.Email, revealEmailSubject(lead), revealEmailHTML(lead), revealEmailText(lead)); emailErr != nil {
			s.logError(ctx, "reveal email failed", map[string]any{
				"unlock_id":   unlock.ID,
				"provider_id": provider.ID,
				"error":       emailErr.Error(),
			})
		}
	}

	now := s.now()
	updated, applied, transitionErr := s.unlockStore.Transition(ctx, unlock.ID, UnlockStatusPaid, UnlockStatusRevealed, UnlockMutation{
		RevealedAt: &now,
	})
	if transitionErr != nil {
		err = s.mapError(transitionErr)
		return unlock, err
	}
	if !applied {
		current, getErr := s.unlockStore.Get(ctx, unlock.ID)
		if getErr != nil {
			err = s.mapError(getErr)
			return unlock, err
		}
		if current.Status == UnlockStatusRevealed {
			unlock = current
			return unlock, nil
		}
		err = NewInvalidTransitionError(current.Status, UnlockStatusRevealed)
		return current, err
	}
	unlock = updated

	if s.clientFollowUps != nil {
		if _, scheduleErr := s.clientFollowUps.Schedule(ctx, lead, provider, time.Time{}); scheduleErr != nil && !IsDuplicateSchedule(scheduleErr) {
			s.logError(ctx, "client follow-up schedule failed", map[string]any{
				"lead_id": lead.ID,
				"error":   scheduleErr.Error(),
			})
		}
	}
	if s.contactCheckins != nil {
		if _, scheduleErr := s.contactCheckins.Schedule(ctx, lead, provider); scheduleErr != nil && !IsDuplicateSchedule(scheduleErr) {
			s.logError(ctx, "contact check-in schedule failed", map[string]any{
				"lead_id":     lead.ID,
				"provider_id": provider.ID,
				"error":       scheduleErr.Error(),
			})
		}
	}

	s.audit(ctx, unlock.LeadID, unlock.ProviderID, "lead_revealed", map[string]any{
		"unlock_id": unlock.ID,
	})
	return unlock, nil
}

// ExpireUnlock moves a live unlock to EXPIRED. Already-expired rows are
// no-ops.
func (s *Service) ExpireUnlock(ctx context.Context, unlockID string) (Unlock, error) {
	return s.closeUnlock(ctx, unlockID, UnlockStatusExpired, "unlock_expired")
}

// DeclineUnlock moves a live unlock to DECLINED after a provider opts out.
func (s *Service) DeclineUnlock(ctx context.Context, unlockID string) (Unlock, error) {
	return s.closeUnlock(ctx, unlockID, UnlockStatusDeclined, "unlock_declined")
}

func (s *Service) closeUnlock(ctx context.Context, unlockID string, target UnlockStatus, action string) (Unlock, error) {
	startedAt := time.Now()
	var unlock Unlock
	var err error
	defer func() {
		s.observeOperation(ctx, startedAt, action, err, map[string]any{
			"unlock_id":   unlockID,
			"lead_id":     unlock.LeadID,
			"provider_id": unlock.ProviderID,
		})
	}()

	if s == nil {
		err = fmt.Errorf("core: service is nil")
		return unlock, err
	}
	if s.unlockStore == nil {
		err = fmt.Errorf("core: unlock store is required")
		return unlock, err
	}

	unlock, err = s.unlockStore.Get(ctx, strings.TrimSpace(unlockID))
	if err != nil {
		err = s.mapError(err)
		return unlock, err
	}
	if unlock.Status == target {
		return unlock, nil
	}
	if !unlock.Status.CanTransitionTo(target) {
		err = NewInvalidTransitionError(unlock.Status, target)
		return unlock, err
	}

	updated, applied, transitionErr := s.unlockStore.Transition(ctx, unlock.ID, unlock.Status, target, UnlockMutation{})
	if transitionErr != nil {
		err = s.mapError(transitionErr)
		return unlock, err
	}
	if !applied {
		current, getErr := s.unlockStore.Get(ctx, unlock.ID)
		if getErr != nil {
			err = s.mapError(getErr)
			return unlock, err
		}
		if current.Status == target {
			unlock = current
			return unlock, nil
		}
		err = NewInvalidTransitionError(current.Status, target)
		return current, err
	}
	unlock = updated
	s.audit(ctx, unlock.LeadID, unlock.ProviderID, action, map[string]any{
		"unlock_id": unlock.ID,
	})
	return unlock, nil
}

// RequeueLead dispatches fresh teasers to every eligible provider that does
// not already hold an unlock on the lead. Per-provider failures are logged
// and skipped so one bad number cannot stall the fan-out.
func (s *Service) RequeueLead(ctx context.Context, leadID string) (RequeueResult, error) {
	startedAt := time.Now()
	result := RequeueResult{LeadID: strings.TrimSpace(leadID)}
	var err error
	defer func() {
		s.observeOperation(ctx, startedAt, "lead_requeue", err, map[string]any{
			"lead_id":    leadID,
			"dispatched": len(result.Dispatched),
		})
	}()

	if s == nil {
		err = fmt.Errorf("core: service is nil")
		return result, err
	}
	if s.leadStore == nil || s.providerStore == nil {
		err = fmt.Errorf("core: lead and provider stores are required")
		return result, err
	}

	lead, getErr := s.leadStore.Get(ctx, result.LeadID)
	if getErr != nil {
		err = s.mapError(getErr)
		return result, err
	}
	if lead.IsClosed {
		err = NewLeadClosedError(result.LeadID)
		return result, err
	}

	candidates, listErr := s.providerStore.ListRequeueCandidates(ctx, result.LeadID)
	if listErr != nil {
		err = s.mapError(listErr)
		return result, err
	}

	for _, candidate := range candidates {
		created, createErr := s.CreateUnlock(ctx, result.LeadID, candidate.ID)
		if createErr != nil {
			s.logError(ctx, "requeue unlock create failed", map[string]any{
				"lead_id":     result.LeadID,
				"provider_id": candidate.ID,
				"error":       createErr.Error(),
			})
			continue
		}
		if _, sendErr := s.SendTeaser(ctx, created.Unlock.ID); sendErr != nil {
			s.logError(ctx, "requeue teaser failed", map[string]any{
				"lead_id":     result.LeadID,
				"provider_id": candidate.ID,
				"error":       sendErr.Error(),
			})
			continue
		}
		result.Dispatched = append(result.Dispatched, candidate.ID)
	}
	result.Exhausted = len(result.Dispatched) == 0

	s.audit(ctx, result.LeadID, "", "lead_requeued", map[string]any{
		"dispatched": len(result.Dispatched),
		"exhausted":  result.Exhausted,
	})
	return result, nil
}

func (s *Service) acceptanceURL(token string) string {
	base := strings.TrimRight(strings.TrimSpace(s.config.BaseURL), "/")
	if base == "" || token == "" {
		return ""
	}
	return base + "/unlocks/accept?token=" + url.QueryEscape(token)
}
