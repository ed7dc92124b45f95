package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ProviderNudgeEngine re-texts providers who never answered a teaser. Each
// nudge re-checks the unlock before sending and cancels itself when the
// pair already settled or the row disappeared.
type ProviderNudgeEngine struct {
	store   ProviderReminderStore
	unlocks UnlockStore
	leads   LeadStore
	sms     SMSSender
	config  EngineConfig
	logger  Logger
	nowFn   func() time.Time
}

func NewProviderNudgeEngine(
	store ProviderReminderStore,
	unlocks UnlockStore,
	leads LeadStore,
	sms SMSSender,
	config EngineConfig,
	logger Logger,
	nowFn func() time.Time,
) (*ProviderNudgeEngine, error) {
	if store == nil {
		return nil, fmt.Errorf("core: provider reminder store is required")
	}
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &ProviderNudgeEngine{
		store:   store,
		unlocks: unlocks,
		leads:   leads,
		sms:     sms,
		config:  config,
		logger:  logger,
		nowFn:   nowFn,
	}, nil
}

func (e *ProviderNudgeEngine) Name() string { return "provider_nudge" }

// Schedule books one nudge for the pair. Replays return the existing row.
func (e *ProviderNudgeEngine) Schedule(ctx context.Context, lead Lead, provider Provider) (CreateReminderResult, error) {
	if e == nil || e.store == nil {
		return CreateReminderResult{}, fmt.Errorf("core: provider nudge engine is not configured")
	}
	if strings.TrimSpace(lead.ID) == "" || strings.TrimSpace(provider.ID) == "" {
		return CreateReminderResult{}, fmt.Errorf("core: lead id and provider id are required")
	}

	now := e.now()
	return e.store.CreateIfAbsent(ctx, ProviderReminder{
		LeadID:        lead.ID,
		ProviderID:    provider.ID,
		ProviderPhone: provider.Phone,
		Status:        ReminderStatusScheduled,
		SendAfter:     now.Add(e.config.NudgeDelay),
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

func (e *ProviderNudgeEngine) ProcessDue(ctx context.Context) (ProcessStats, error) {
	var stats ProcessStats
	if e == nil || e.store == nil {
		return stats, fmt.Errorf("core: provider nudge engine is not configured")
	}
	if e.unlocks == nil {
		return stats, fmt.Errorf("core: unlock store is required")
	}
	if e.sms == nil {
		return stats, fmt.Errorf("core: sms sender is required")
	}

	now := e.now()
	due, listErr := e.store.ListDue(ctx, now, e.config.NudgeBatchSize)
	if listErr != nil {
		return stats, fmt.Errorf("list due: %w", listErr)
	}
	stats.Due = len(due)

	var errs []error
	for _, reminder := range due {
		unlock, getErr := e.unlocks.GetByPair(ctx, reminder.LeadID, reminder.ProviderID)
		if getErr != nil {
			if isNotFound(getErr) {
				if e.cancel(ctx, reminder) {
					stats.Cancelled++
				}
				continue
			}
			stats.Failed++
			errs = append(errs, fmt.Errorf("reminder %d: %w", reminder.ID, getErr))
			continue
		}
		if unlock.Status.Settled() {
			if e.cancel(ctx, reminder) {
				stats.Cancelled++
			}
			continue
		}

		lead, leadErr := e.leadByID(ctx, reminder.LeadID)
		if leadErr == nil && lead.IsClosed {
			if e.cancel(ctx, reminder) {
				stats.Cancelled++
			}
			continue
		}

		if sendErr := e.sms.Send(ctx, reminder.ProviderPhone, nudgeMessage(lead)); sendErr != nil {
			stats.Failed++
			errs = append(errs, fmt.Errorf("reminder %d: %w", reminder.ID, sendErr))
			logLeveled(ctx, e.logger, "error", "provider nudge send failed", map[string]any{
				"reminder_id": reminder.ID,
				"lead_id":     reminder.LeadID,
				"provider_id": reminder.ProviderID,
				"error":       sendErr.Error(),
			})
			continue
		}
		sentAt := e.now()
		if _, applied, transitionErr := e.store.Transition(ctx, reminder.ID, ReminderStatusScheduled, ReminderStatusSent, &sentAt); transitionErr != nil {
			stats.Failed++
			errs = append(errs, fmt.Errorf("reminder %d: %w", reminder.ID, transitionErr))
			continue
		} else if !applied {
			continue
		}
		stats.Sent++
	}

	return stats, joinErrors(errs)
}

func (e *ProviderNudgeEngine) cancel(ctx context.Context, reminder ProviderReminder) bool {
	_, applied, err := e.store.Transition(ctx, reminder.ID, ReminderStatusScheduled, ReminderStatusCompleted, nil)
	if err != nil {
		logLeveled(ctx, e.logger, "error", "provider nudge cancel failed", map[string]any{
			"reminder_id": reminder.ID,
			"error":       err.Error(),
		})
		return false
	}
	return applied
}

func (e *ProviderNudgeEngine) leadByID(ctx context.Context, leadID string) (Lead, error) {
	if e.leads == nil {
		return Lead{}, fmt.Errorf("core: lead store is not configured")
	}
	return e.leads.Get(ctx, leadID)
}

func (e *ProviderNudgeEngine) now() time.Time {
	if e != nil && e.nowFn != nil {
		return e.nowFn().UTC()
	}
	return time.Now().UTC()
}
