// Package webhooks processes payment gateway callbacks.
//
// Each event is recorded in a delivery ledger before any effects run:
// a duplicate delivery is acknowledged without re-running the handler,
// and a failed handler leaves the claim retry-ready so the gateway's
// next redelivery attempt reaches the handler again.
package webhooks
