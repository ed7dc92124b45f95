// Package core implements the lead brokering lifecycle: teaser dispatch,
// acceptance, payment and reveal for provider unlocks, plus the three
// time-delayed follow-up engines (client check-in, provider nudge, contact
// check-in) and the scheduler that drives them.
//
// All state lives in the stores; every status change is a guarded
// compare-and-set so concurrent webhooks, replies and engine ticks can
// race safely. Construct a Service with NewService and functional options,
// then start a Scheduler from it for the background engines.
package core
