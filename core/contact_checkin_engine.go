package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ContactCheckinEngine asks providers whether they reached out to a lead
// they paid for. Replies are the literal digits 1 (contacted) and 2 (not
// yet); anything else leaves the row open.
type ContactCheckinEngine struct {
	store     ContactFollowUpStore
	providers ProviderStore
	leads     LeadStore
	sms       SMSSender
	config    EngineConfig
	logger    Logger
	nowFn     func() time.Time
}

func NewContactCheckinEngine(
	store ContactFollowUpStore,
	providers ProviderStore,
	leads LeadStore,
	sms SMSSender,
	config EngineConfig,
	logger Logger,
	nowFn func() time.Time,
) (*ContactCheckinEngine, error) {
	if store == nil {
		return nil, fmt.Errorf("core: contact follow-up store is required")
	}
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &ContactCheckinEngine{
		store:     store,
		providers: providers,
		leads:     leads,
		sms:       sms,
		config:    config,
		logger:    logger,
		nowFn:     nowFn,
	}, nil
}

func (e *ContactCheckinEngine) Name() string { return "contact_checkin" }

// Schedule books one check-in for the pair shortly after reveal. Replays
// return the existing row.
func (e *ContactCheckinEngine) Schedule(ctx context.Context, lead Lead, provider Provider) (CreateCheckinResult, error) {
	if e == nil || e.store == nil {
		return CreateCheckinResult{}, fmt.Errorf("core: contact check-in engine is not configured")
	}
	if strings.TrimSpace(lead.ID) == "" || strings.TrimSpace(provider.ID) == "" {
		return CreateCheckinResult{}, fmt.Errorf("core: lead id and provider id are required")
	}

	now := e.now()
	return e.store.CreateIfAbsent(ctx, ContactFollowUp{
		LeadID:     lead.ID,
		ProviderID: provider.ID,
		Status:     CheckinStatusScheduled,
		SendAfter:  now.Add(e.config.CheckinDelay),
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

// ProcessDue sends every due check-in. Unlike the client engine a failed
// send marks the row FAILED rather than retrying it forever: the provider
// phone already proved deliverable once, so a hard failure here is almost
// always a bad number.
func (e *ContactCheckinEngine) ProcessDue(ctx context.Context) (ProcessStats, error) {
	var stats ProcessStats
	if e == nil || e.store == nil {
		return stats, fmt.Errorf("core: contact check-in engine is not configured")
	}
	if e.providers == nil {
		return stats, fmt.Errorf("core: provider store is required")
	}
	if e.sms == nil {
		return stats, fmt.Errorf("core: sms sender is required")
	}

	now := e.now()
	due, listErr := e.store.ListDue(ctx, now, e.config.CheckinBatchSize)
	if listErr != nil {
		return stats, fmt.Errorf("list due: %w", listErr)
	}
	stats.Due = len(due)

	var errs []error
	for _, row := range due {
		provider, getErr := e.providers.Get(ctx, row.ProviderID)
		if getErr != nil {
			stats.Failed++
			errs = append(errs, fmt.Errorf("check-in %d: %w", row.ID, getErr))
			continue
		}

		var lead Lead
		if e.leads != nil {
			if fetched, leadErr := e.leads.Get(ctx, row.LeadID); leadErr == nil {
				lead = fetched
			}
		}

		if sendErr := e.sms.Send(ctx, provider.Phone, contactCheckinPrompt(lead)); sendErr != nil {
			stats.Failed++
			errs = append(errs, fmt.Errorf("check-in %d: %w", row.ID, sendErr))
			if _, _, failErr := e.store.Transition(ctx, row.ID, CheckinStatusScheduled, CheckinStatusFailed, nil, nil, nil); failErr != nil {
				errs = append(errs, fmt.Errorf("check-in %d: %w", row.ID, failErr))
			}
			logLeveled(ctx, e.logger, "error", "contact check-in send failed", map[string]any{
				"checkin_id":  row.ID,
				"provider_id": row.ProviderID,
				"error":       sendErr.Error(),
			})
			continue
		}
		sentAt := e.now()
		if _, applied, transitionErr := e.store.Transition(ctx, row.ID, CheckinStatusScheduled, CheckinStatusSent, nil, nil, &sentAt); transitionErr != nil {
			stats.Failed++
			errs = append(errs, fmt.Errorf("check-in %d: %w", row.ID, transitionErr))
			continue
		} else if !applied {
			continue
		}
		stats.Sent++
	}

	return stats, joinErrors(errs)
}

// HandleReply records a provider's 1 or 2 answer on their open check-in.
func (e *ContactCheckinEngine) HandleReply(ctx context.Context, fromPhone string, text string) (ReplyResult, error) {
	if e == nil || e.store == nil {
		return ReplyResult{}, fmt.Errorf("core: contact check-in engine is not configured")
	}
	if e.providers == nil {
		return ReplyResult{}, nil
	}

	value := 0
	switch strings.TrimSpace(text) {
	case "1":
		value = CheckinResponseContacted
	case "2":
		value = CheckinResponseNotYet
	default:
		return ReplyResult{}, nil
	}

	provider, err := e.providers.GetByPhone(ctx, fromPhone)
	if err != nil {
		if isNotFound(err) {
			return ReplyResult{}, nil
		}
		return ReplyResult{}, err
	}
	row, err := e.store.FindOpenByProvider(ctx, provider.ID)
	if err != nil {
		if isNotFound(err) {
			return ReplyResult{}, nil
		}
		return ReplyResult{}, err
	}

	respondedAt := e.now()
	_, applied, transitionErr := e.store.Transition(ctx, row.ID, CheckinStatusSent, CheckinStatusResponded, &respondedAt, &value, nil)
	if transitionErr != nil {
		return ReplyResult{}, transitionErr
	}
	if !applied {
		return ReplyResult{Handled: true, Action: ReplyActionIgnored}, nil
	}

	confirmation := contactConfirmedMessage()
	if value == CheckinResponseNotYet {
		confirmation = contactNotYetMessage()
	}
	if e.sms != nil {
		if sendErr := e.sms.Send(ctx, provider.Phone, confirmation); sendErr != nil {
			logLeveled(ctx, e.logger, "error", "check-in confirmation failed", map[string]any{
				"checkin_id":  row.ID,
				"provider_id": provider.ID,
				"error":       sendErr.Error(),
			})
		}
	}
	return ReplyResult{Handled: true, Action: ReplyActionContactRecorded}, nil
}

// Stats reports the running contact-rate funnel.
func (e *ContactCheckinEngine) Stats(ctx context.Context) (ContactCheckinStats, error) {
	if e == nil || e.store == nil {
		return ContactCheckinStats{}, fmt.Errorf("core: contact check-in engine is not configured")
	}
	return e.store.Stats(ctx)
}

func (e *ContactCheckinEngine) now() time.Time {
	if e != nil && e.nowFn != nil {
		return e.nowFn().UTC()
	}
	return time.Now().UTC()
}
