package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Scheduler runs every follow-up engine once per tick. Engines are isolated
// from each other: a panic or error in one never skips the rest.
type Scheduler struct {
	interval   time.Duration
	logger     Logger
	nowFn      func() time.Time
	processors []FollowUpProcessor

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(interval time.Duration, logger Logger, nowFn func() time.Time, processors ...FollowUpProcessor) (*Scheduler, error) {
	if len(processors) == 0 {
		return nil, fmt.Errorf("core: at least one follow-up processor is required")
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &Scheduler{
		interval:   interval,
		logger:     logger,
		nowFn:      nowFn,
		processors: processors,
	}, nil
}

// Start launches the tick loop in a goroutine. The first tick waits for a
// full interval.
func (s *Scheduler) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("core: scheduler is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return fmt.Errorf("core: scheduler already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	go s.run(runCtx, done)
	return nil
}

// Stop cancels the loop and waits for the in-flight tick to finish. The
// running fields are cleared only after the goroutine has exited, so the
// goroutine always closes the channel it was started with.
func (s *Scheduler) Stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if done != nil {
		<-done
	}

	s.mu.Lock()
	if s.done == done {
		s.cancel = nil
		s.done = nil
	}
	s.mu.Unlock()
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		if err := waitWithContext(ctx, s.interval); err != nil {
			return
		}
		s.Tick(ctx)
	}
}

// Tick runs every engine once and reports per-engine stats. Exported so a
// queue worker or a test can drive the engines without the timer.
func (s *Scheduler) Tick(ctx context.Context) map[string]ProcessStats {
	if s == nil {
		return nil
	}
	results := make(map[string]ProcessStats, len(s.processors))
	for _, processor := range s.processors {
		if processor == nil {
			continue
		}
		stats, err := s.runProcessor(ctx, processor)
		results[processor.Name()] = stats
		fields := map[string]any{
			"engine":    processor.Name(),
			"due":       stats.Due,
			"sent":      stats.Sent,
			"cancelled": stats.Cancelled,
			"expired":   stats.Expired,
			"failed":    stats.Failed,
		}
		if err != nil {
			fields["error"] = err.Error()
			logLeveled(ctx, s.logger, "error", "engine tick finished with errors", fields)
			continue
		}
		if stats.Due > 0 || stats.Expired > 0 {
			logLeveled(ctx, s.logger, "info", "engine tick finished", fields)
		}
	}
	return results
}

func (s *Scheduler) runProcessor(ctx context.Context, processor FollowUpProcessor) (stats ProcessStats, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("core: engine %s panicked: %v", processor.Name(), recovered)
		}
	}()
	return processor.ProcessDue(ctx)
}

func joinErrors(errs []error) error {
	filtered := errs[:0]
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return errors.Join(filtered...)
}

// waitWithContext sleeps for delay unless the context ends first.
func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
