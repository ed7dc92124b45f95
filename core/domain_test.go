package core

import "testing"

func TestUnlockStatusTransitions(t *testing.T) {
	cases := []struct {
		from    UnlockStatus
		to      UnlockStatus
		allowed bool
	}{
		{UnlockStatusPending, UnlockStatusTeaserSent, true},
		{UnlockStatusPending, UnlockStatusPaid, false},
		{UnlockStatusTeaserSent, UnlockStatusYReceived, true},
		{UnlockStatusTeaserSent, UnlockStatusPaymentLinkSent, true},
		{UnlockStatusTeaserSent, UnlockStatusPaid, true},
		{UnlockStatusYReceived, UnlockStatusPaymentLinkSent, true},
		{UnlockStatusYReceived, UnlockStatusPaid, true},
		{UnlockStatusYReceived, UnlockStatusTeaserSent, false},
		{UnlockStatusPaymentLinkSent, UnlockStatusPaid, true},
		{UnlockStatusPaid, UnlockStatusRevealed, true},
		{UnlockStatusPaid, UnlockStatusExpired, false},
		{UnlockStatusRevealed, UnlockStatusExpired, false},
		{UnlockStatusTeaserSent, UnlockStatusDeclined, true},
		{UnlockStatusPaymentLinkSent, UnlockStatusExpired, true},
		{UnlockStatusExpired, UnlockStatusTeaserSent, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestUnlockStatusTerminal(t *testing.T) {
	for _, status := range []UnlockStatus{UnlockStatusRevealed, UnlockStatusExpired, UnlockStatusDeclined} {
		if !status.Terminal() {
			t.Errorf("%s should be terminal", status)
		}
	}
	for _, status := range []UnlockStatus{UnlockStatusPending, UnlockStatusTeaserSent, UnlockStatusPaid} {
		if status.Terminal() {
			t.Errorf("%s should not be terminal", status)
		}
	}
}

func TestUnlockStatusSettled(t *testing.T) {
	settled := []UnlockStatus{UnlockStatusPaid, UnlockStatusRevealed, UnlockStatusExpired, UnlockStatusDeclined}
	for _, status := range settled {
		if !status.Settled() {
			t.Errorf("%s should be settled", status)
		}
	}
	open := []UnlockStatus{UnlockStatusPending, UnlockStatusTeaserSent, UnlockStatusYReceived, UnlockStatusPaymentLinkSent}
	for _, status := range open {
		if status.Settled() {
			t.Errorf("%s should not be settled", status)
		}
	}
}

func TestParseUnlockStatus(t *testing.T) {
	status, err := ParseUnlockStatus(" teaser_sent ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if status != UnlockStatusTeaserSent {
		t.Fatalf("got %s", status)
	}
	if _, err := ParseUnlockStatus("BOGUS"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}
