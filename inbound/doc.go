// Package inbound contains inbound surface handling abstractions.
//
// Carrier-originated SMS replies and payment webhook callbacks use
// claim/complete/fail idempotency semantics so transient handler failures
// remain retryable while delivered retries collapse to one invocation.
package inbound
