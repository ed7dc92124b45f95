package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// HandleReply routes an inbound SMS through the reply interpreters in
// order: client follow-ups, provider contact check-ins, then provider
// teaser acceptance. The first interpreter that owns the phone and the
// vocabulary wins. Handled false means nothing matched.
func (s *Service) HandleReply(ctx context.Context, fromPhone string, text string) (ReplyResult, error) {
	startedAt := time.Now()
	var result ReplyResult
	var err error
	defer func() {
		s.observeOperation(ctx, startedAt, "reply_handle", err, map[string]any{
			"handled": result.Handled,
			"action":  result.Action,
		})
	}()

	if s == nil {
		err = fmt.Errorf("core: service is nil")
		return result, err
	}
	fromPhone = strings.TrimSpace(fromPhone)
	if fromPhone == "" {
		err = fmt.Errorf("core: sender phone is required")
		return result, s.mapError(err)
	}

	if s.clientFollowUps != nil {
		result, err = s.clientFollowUps.HandleReply(ctx, fromPhone, text)
		if err != nil || result.Handled {
			return result, err
		}
	}
	if s.contactCheckins != nil {
		result, err = s.contactCheckins.HandleReply(ctx, fromPhone, text)
		if err != nil || result.Handled {
			return result, err
		}
	}

	result, err = s.handleProviderReply(ctx, fromPhone, text)
	return result, err
}

// handleProviderReply interprets bare Y/N answers to a teaser. The sender
// must resolve to a provider with an open unlock.
func (s *Service) handleProviderReply(ctx context.Context, fromPhone string, text string) (ReplyResult, error) {
	if s.providerStore == nil || s.unlockStore == nil {
		return ReplyResult{}, nil
	}

	intent := classifyReply(text)
	if intent == replyIntentUnknown {
		return ReplyResult{}, nil
	}

	provider, err := s.providerStore.GetByPhone(ctx, fromPhone)
	if err != nil {
		if isNotFound(err) {
			return ReplyResult{}, nil
		}
		return ReplyResult{}, s.mapError(err)
	}
	unlock, err := s.unlockStore.FindOpenByProvider(ctx, provider.ID)
	if err != nil {
		if isNotFound(err) {
			return ReplyResult{}, nil
		}
		return ReplyResult{}, s.mapError(err)
	}

	if intent == replyIntentNo {
		if _, declineErr := s.DeclineUnlock(ctx, unlock.ID); declineErr != nil {
			return ReplyResult{}, declineErr
		}
		return ReplyResult{Handled: true, Action: ReplyActionClosed}, nil
	}

	accepted, acceptErr := s.RecordAcceptance(ctx, AcceptanceRequest{
		LeadID:     unlock.LeadID,
		ProviderID: unlock.ProviderID,
	})
	if acceptErr != nil {
		return ReplyResult{}, acceptErr
	}
	if s.smsSender != nil && accepted.PaymentLinkURL != "" {
		if sendErr := s.smsSender.Send(ctx, provider.Phone, paymentLinkMessage(accepted.Unlock.PriceCents, accepted.PaymentLinkURL)); sendErr != nil {
			s.logError(ctx, "payment link sms failed", map[string]any{
				"unlock_id":   accepted.Unlock.ID,
				"provider_id": provider.ID,
				"error":       sendErr.Error(),
			})
		}
	}
	return ReplyResult{Handled: true, Action: ReplyActionYesRecorded}, nil
}
