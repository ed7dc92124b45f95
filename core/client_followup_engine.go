package core

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

type replyIntent int

const (
	replyIntentUnknown replyIntent = iota
	replyIntentYes
	replyIntentNo
)

var (
	yesReplyPattern = regexp.MustCompile(`^(Y|YES|YE|YEP|YEAH|YA)$`)
	noReplyPattern  = regexp.MustCompile(`^(N|NO|NAH|NOPE)$`)
)

func classifyReply(text string) replyIntent {
	cleaned := strings.ToUpper(strings.TrimSpace(text))
	switch {
	case yesReplyPattern.MatchString(cleaned):
		return replyIntentYes
	case noReplyPattern.MatchString(cleaned):
		return replyIntentNo
	default:
		return replyIntentUnknown
	}
}

// LeadRequeuer re-dispatches a lead to fresh providers after a client asks
// for someone else.
type LeadRequeuer interface {
	RequeueLead(ctx context.Context, leadID string) (RequeueResult, error)
}

// ClientFollowUpEngine asks the client whether the provider actually showed
// up, and walks NO replies through the recovery offer.
type ClientFollowUpEngine struct {
	store    ClientFollowUpStore
	requeuer LeadRequeuer
	sms      SMSSender
	config   EngineConfig
	logger   Logger
	nowFn    func() time.Time
}

func NewClientFollowUpEngine(
	store ClientFollowUpStore,
	requeuer LeadRequeuer,
	sms SMSSender,
	config EngineConfig,
	logger Logger,
	nowFn func() time.Time,
) (*ClientFollowUpEngine, error) {
	if store == nil {
		return nil, fmt.Errorf("core: client follow-up store is required")
	}
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &ClientFollowUpEngine{
		store:    store,
		requeuer: requeuer,
		sms:      sms,
		config:   config,
		logger:   logger,
		nowFn:    nowFn,
	}, nil
}

func (e *ClientFollowUpEngine) Name() string { return "client_followup" }

// Schedule books the post-appointment check-in. With a known future booking
// time the text lands shortly after the appointment; without one it falls
// back to a short delay from now. One row per (lead, provider) pair,
// replays return the existing row.
func (e *ClientFollowUpEngine) Schedule(ctx context.Context, lead Lead, provider Provider, bookingTime time.Time) (CreateFollowUpResult, error) {
	if e == nil || e.store == nil {
		return CreateFollowUpResult{}, fmt.Errorf("core: client follow-up engine is not configured")
	}
	if strings.TrimSpace(lead.ID) == "" {
		return CreateFollowUpResult{}, fmt.Errorf("core: lead id is required")
	}
	if strings.TrimSpace(lead.ClientPhone) == "" {
		return CreateFollowUpResult{}, fmt.Errorf("core: client phone is required")
	}

	now := e.now()
	sendAfter := now.Add(e.config.ClientFallbackDelay)
	if !bookingTime.IsZero() && bookingTime.After(now) {
		sendAfter = bookingTime.Add(e.config.ClientBookingOffset)
	}

	phone := lead.ClientPhone
	if canonical, err := NormalizePhone(phone); err == nil {
		phone = canonical
	}

	return e.store.CreateIfAbsent(ctx, ClientFollowUp{
		LeadID:       lead.ID,
		ProviderID:   provider.ID,
		ClientPhone:  phone,
		ClientName:   lead.ClientName,
		ProviderName: provider.Name,
		Status:       FollowUpStatusScheduled,
		SendAfter:    sendAfter,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

// ProcessDue expires stale conversations, then sends every due check-in.
// A failed send leaves the row SCHEDULED so the next tick retries it.
func (e *ClientFollowUpEngine) ProcessDue(ctx context.Context) (ProcessStats, error) {
	var stats ProcessStats
	if e == nil || e.store == nil {
		return stats, fmt.Errorf("core: client follow-up engine is not configured")
	}
	if e.sms == nil {
		return stats, fmt.Errorf("core: sms sender is required")
	}

	now := e.now()
	var errs []error

	expired, expireErr := e.store.ExpireStale(ctx, now.Add(-e.config.ClientExpiry))
	if expireErr != nil {
		errs = append(errs, fmt.Errorf("expire sweep: %w", expireErr))
	}
	stats.Expired = expired

	due, listErr := e.store.ListDue(ctx, now, e.config.ClientBatchSize)
	if listErr != nil {
		errs = append(errs, fmt.Errorf("list due: %w", listErr))
		return stats, joinErrors(errs)
	}
	stats.Due = len(due)

	for _, row := range due {
		if sendErr := e.sms.Send(ctx, row.ClientPhone, clientCheckinMessage(row)); sendErr != nil {
			stats.Failed++
			errs = append(errs, fmt.Errorf("follow-up %d: %w", row.ID, sendErr))
			logLeveled(ctx, e.logger, "error", "client follow-up send failed", map[string]any{
				"followup_id": row.ID,
				"lead_id":     row.LeadID,
				"error":       sendErr.Error(),
			})
			continue
		}
		sentAt := e.now()
		if _, applied, transitionErr := e.store.Transition(ctx, row.ID, FollowUpStatusScheduled, FollowUpStatusSent, FollowUpMutation{
			SentAt: &sentAt,
		}); transitionErr != nil {
			stats.Failed++
			errs = append(errs, fmt.Errorf("follow-up %d: %w", row.ID, transitionErr))
			continue
		} else if !applied {
			continue
		}
		stats.Sent++
	}

	return stats, joinErrors(errs)
}

// HandleReply interprets a client's answer on an open follow-up. YES closes
// the loop, NO opens the recovery offer, anything else resends the question.
func (e *ClientFollowUpEngine) HandleReply(ctx context.Context, fromPhone string, text string) (ReplyResult, error) {
	if e == nil || e.store == nil {
		return ReplyResult{}, fmt.Errorf("core: client follow-up engine is not configured")
	}

	variants := PhoneVariants(fromPhone)
	if len(variants) == 0 {
		return ReplyResult{}, nil
	}
	row, err := e.store.FindOpenByPhones(ctx, variants)
	if err != nil {
		if isNotFound(err) {
			return ReplyResult{}, nil
		}
		return ReplyResult{}, err
	}

	intent := classifyReply(text)
	switch row.Status {
	case FollowUpStatusSent:
		return e.handleSentReply(ctx, row, intent)
	case FollowUpStatusRecoveryOffered:
		return e.handleRecoveryReply(ctx, row, intent)
	default:
		return ReplyResult{}, nil
	}
}

func (e *ClientFollowUpEngine) handleSentReply(ctx context.Context, row ClientFollowUp, intent replyIntent) (ReplyResult, error) {
	now := e.now()
	switch intent {
	case replyIntentYes:
		_, applied, err := e.store.Transition(ctx, row.ID, FollowUpStatusSent, FollowUpStatusYesReplied, FollowUpMutation{
			RepliedAt: &now,
		})
		if err != nil {
			return ReplyResult{}, err
		}
		if !applied {
			return ReplyResult{Handled: true, Action: ReplyActionIgnored}, nil
		}
		e.send(ctx, row, clientThanksMessage())
		return ReplyResult{Handled: true, Action: ReplyActionYesRecorded}, nil
	case replyIntentNo:
		_, applied, err := e.store.Transition(ctx, row.ID, FollowUpStatusSent, FollowUpStatusNoReplied, FollowUpMutation{
			RepliedAt: &now,
		})
		if err != nil {
			return ReplyResult{}, err
		}
		if !applied {
			return ReplyResult{Handled: true, Action: ReplyActionIgnored}, nil
		}
		offeredAt := e.now()
		if _, _, offerErr := e.store.Transition(ctx, row.ID, FollowUpStatusNoReplied, FollowUpStatusRecoveryOffered, FollowUpMutation{
			RecoveryOfferedAt: &offeredAt,
		}); offerErr != nil {
			return ReplyResult{}, offerErr
		}
		e.send(ctx, row, recoveryOfferMessage())
		return ReplyResult{Handled: true, Action: ReplyActionRecoveryOffered}, nil
	default:
		e.send(ctx, row, clientCheckinMessage(row))
		return ReplyResult{Handled: true, Action: ReplyActionPromptResent}, nil
	}
}

func (e *ClientFollowUpEngine) handleRecoveryReply(ctx context.Context, row ClientFollowUp, intent replyIntent) (ReplyResult, error) {
	now := e.now()
	switch intent {
	case replyIntentYes:
		_, applied, err := e.store.Transition(ctx, row.ID, FollowUpStatusRecoveryOffered, FollowUpStatusRecoveryAccepted, FollowUpMutation{
			RepliedAt: &now,
		})
		if err != nil {
			return ReplyResult{}, err
		}
		if !applied {
			return ReplyResult{Handled: true, Action: ReplyActionIgnored}, nil
		}
		reply := recoveryWaitMessage()
		if e.requeuer != nil {
			requeued, requeueErr := e.requeuer.RequeueLead(ctx, row.LeadID)
			if requeueErr != nil {
				logLeveled(ctx, e.logger, "error", "recovery requeue failed", map[string]any{
					"followup_id": row.ID,
					"lead_id":     row.LeadID,
					"error":       requeueErr.Error(),
				})
			} else if !requeued.Exhausted {
				reply = recoveryRequeueMessage()
			}
		}
		e.send(ctx, row, reply)
		return ReplyResult{Handled: true, Action: ReplyActionRecoveryAccepted}, nil
	case replyIntentNo:
		_, applied, err := e.store.Transition(ctx, row.ID, FollowUpStatusRecoveryOffered, FollowUpStatusCompleted, FollowUpMutation{
			RepliedAt: &now,
		})
		if err != nil {
			return ReplyResult{}, err
		}
		if !applied {
			return ReplyResult{Handled: true, Action: ReplyActionIgnored}, nil
		}
		e.send(ctx, row, closingMessage())
		return ReplyResult{Handled: true, Action: ReplyActionClosed}, nil
	default:
		e.send(ctx, row, recoveryOfferMessage())
		return ReplyResult{Handled: true, Action: ReplyActionPromptResent}, nil
	}
}

func (e *ClientFollowUpEngine) send(ctx context.Context, row ClientFollowUp, text string) {
	if e.sms == nil {
		return
	}
	if err := e.sms.Send(ctx, row.ClientPhone, text); err != nil {
		logLeveled(ctx, e.logger, "error", "client reply sms failed", map[string]any{
			"followup_id": row.ID,
			"lead_id":     row.LeadID,
			"error":       err.Error(),
		})
	}
}

func (e *ClientFollowUpEngine) now() time.Time {
	if e != nil && e.nowFn != nil {
		return e.nowFn().UTC()
	}
	return time.Now().UTC()
}
