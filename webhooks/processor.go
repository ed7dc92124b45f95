package webhooks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-leads/core"
)

// SurfacePaymentWebhook matches the surface name the inbound dispatcher
// routes gateway callbacks under.
const SurfacePaymentWebhook = "payment_webhook"

type Verifier interface {
	Verify(ctx context.Context, req core.InboundRequest) error
}

// EventIDExtractor resolves the gateway's event identifier used for dedupe.
type EventIDExtractor func(req core.InboundRequest) (string, error)

type RetryPolicy interface {
	NextDelay(attempt int) time.Duration
}

type Handler interface {
	Handle(ctx context.Context, req core.InboundRequest) (core.InboundResult, error)
}

type ExponentialRetryPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

func (p ExponentialRetryPolicy) NextDelay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.Max
	if maximum <= 0 {
		maximum = 30 * time.Second
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

// Processor runs verified gateway events through the delivery ledger and a
// single handler. Failure counts feeding the retry backoff are process
// local; a restart starts the backoff over.
type Processor struct {
	Verifier    Verifier
	Ledger      core.IdempotencyClaimStore
	Handler     Handler
	ExtractID   EventIDExtractor
	RetryPolicy RetryPolicy
	ClaimLease  time.Duration
	Now         func() time.Time

	mu       sync.Mutex
	failures map[string]int
}

func NewProcessor(verifier Verifier, ledger core.IdempotencyClaimStore, handler Handler) *Processor {
	return &Processor{
		Verifier:    verifier,
		Ledger:      ledger,
		Handler:     handler,
		ExtractID:   DefaultEventIDExtractor,
		RetryPolicy: ExponentialRetryPolicy{},
		ClaimLease:  30 * time.Second,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (p *Processor) Process(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if p == nil || p.Handler == nil || p.Ledger == nil {
		return core.InboundResult{}, webhookInternal("webhooks: processor requires handler and ledger", nil)
	}

	if p.Verifier != nil {
		if err := p.Verifier.Verify(ctx, req); err != nil {
			return core.InboundResult{
				Accepted:   false,
				StatusCode: http.StatusUnauthorized,
				Metadata: map[string]any{
					"rejected": true,
				},
			}, webhookWrapError(
				err,
				goerrors.CategoryAuth,
				"webhooks: event verification failed",
				http.StatusUnauthorized,
				core.LeadsErrorInvalidToken,
				nil,
			)
		}
	}

	extractor := p.ExtractID
	if extractor == nil {
		extractor = DefaultEventIDExtractor
	}
	eventID, err := extractor(req)
	if err != nil {
		return core.InboundResult{}, err
	}

	claimID, accepted, err := p.Ledger.Claim(ctx, eventID, p.claimLease())
	if err != nil {
		return core.InboundResult{}, webhookWrapError(
			err,
			goerrors.CategoryOperation,
			"webhooks: delivery claim failed",
			http.StatusInternalServerError,
			core.LeadsErrorInternal,
			map[string]any{"event_id": eventID},
		)
	}
	if !accepted {
		return core.InboundResult{
			Accepted:   true,
			StatusCode: http.StatusOK,
			Metadata: map[string]any{
				"event_id": eventID,
				"deduped":  true,
			},
		}, nil
	}

	result, err := p.Handler.Handle(ctx, req)
	if err != nil {
		if failErr := p.failClaim(ctx, claimID, eventID, err); failErr != nil {
			err = errors.Join(err, failErr)
		}
		return core.InboundResult{}, err
	}

	if !result.Accepted || result.StatusCode >= http.StatusInternalServerError {
		retryErr := webhookError(
			fmt.Sprintf("webhooks: handler returned retryable status %d", result.StatusCode),
			goerrors.CategoryOperation,
			http.StatusBadGateway,
			core.LeadsErrorInternal,
			map[string]any{"event_id": eventID, "status_code": result.StatusCode},
		)
		if failErr := p.failClaim(ctx, claimID, eventID, retryErr); failErr != nil {
			retryErr = errors.Join(retryErr, failErr)
		}
		return result, retryErr
	}

	p.clearFailures(eventID)
	if err := p.Ledger.Complete(ctx, claimID); err != nil {
		return core.InboundResult{}, webhookWrapError(
			err,
			goerrors.CategoryOperation,
			"webhooks: complete delivery claim",
			http.StatusInternalServerError,
			core.LeadsErrorInternal,
			map[string]any{"event_id": eventID, "claim_id": claimID},
		)
	}
	result.Metadata = ensureMetadata(result.Metadata)
	result.Metadata["event_id"] = eventID
	return result, nil
}

func (p *Processor) failClaim(ctx context.Context, claimID string, eventID string, cause error) error {
	retryAt := p.now().Add(p.retryPolicy().NextDelay(p.recordFailure(eventID)))
	return p.Ledger.Fail(ctx, claimID, cause, retryAt)
}

func DefaultEventIDExtractor(req core.InboundRequest) (string, error) {
	if req.Metadata != nil {
		if value := metadataValue(req.Metadata, "event_id"); value != "" {
			return value, nil
		}
		if value := metadataValue(req.Metadata, "delivery_id"); value != "" {
			return value, nil
		}
	}
	if req.Headers != nil {
		if value := headerValue(req.Headers, "x-event-id"); value != "" {
			return value, nil
		}
		if value := headerValue(req.Headers, "x-delivery-id"); value != "" {
			return value, nil
		}
	}
	return "", webhookBadInput("webhooks: event id is required for dedupe", nil)
}

func (p *Processor) recordFailure(eventID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures == nil {
		p.failures = map[string]int{}
	}
	p.failures[eventID]++
	return p.failures[eventID]
}

func (p *Processor) clearFailures(eventID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failures, eventID)
}

func (p *Processor) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *Processor) retryPolicy() RetryPolicy {
	if p != nil && p.RetryPolicy != nil {
		return p.RetryPolicy
	}
	return ExponentialRetryPolicy{}
}

func (p *Processor) claimLease() time.Duration {
	if p != nil && p.ClaimLease > 0 {
		return p.ClaimLease
	}
	return 30 * time.Second
}

func ensureMetadata(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	return metadata
}

func metadataValue(metadata map[string]any, key string) string {
	value := strings.TrimSpace(fmt.Sprint(metadata[key]))
	if value == "" || value == "<nil>" {
		return ""
	}
	return value
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
