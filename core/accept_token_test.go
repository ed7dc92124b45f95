package core

import (
	"strings"
	"testing"
	"time"
)

func TestAcceptTokenRoundTrip(t *testing.T) {
	signer := NewAcceptTokenSigner("secret", time.Hour)
	token, err := signer.Issue("lead-1", "prov-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !strings.Contains(token, ".") {
		t.Fatalf("token missing signature separator: %q", token)
	}
	claims, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.LeadID != "lead-1" || claims.ProviderID != "prov-1" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestAcceptTokenRejectsTampering(t *testing.T) {
	signer := NewAcceptTokenSigner("secret", time.Hour)
	token, err := signer.Issue("lead-1", "prov-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	parts := strings.SplitN(token, ".", 2)
	other, err := signer.Issue("lead-2", "prov-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	otherParts := strings.SplitN(other, ".", 2)

	forged := otherParts[0] + "." + parts[1]
	_, verifyErr := signer.Verify(forged)
	if verifyErr == nil {
		t.Fatal("expected signature mismatch")
	}
	if !IsInvalidToken(verifyErr) {
		t.Fatalf("expected invalid token error, got %v", verifyErr)
	}
}

func TestAcceptTokenRejectsWrongSecret(t *testing.T) {
	token, err := NewAcceptTokenSigner("secret-a", time.Hour).Issue("lead-1", "prov-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewAcceptTokenSigner("secret-b", time.Hour).Verify(token); err == nil {
		t.Fatal("expected verification failure across secrets")
	}
}

func TestAcceptTokenExpiry(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	signer := NewAcceptTokenSigner("secret", time.Hour)
	signer.nowFn = clock.Now

	token, err := signer.Issue("lead-1", "prov-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := signer.Verify(token); err != nil {
		t.Fatalf("verify before expiry: %v", err)
	}
	clock.Advance(2 * time.Hour)
	if _, err := signer.Verify(token); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestAcceptTokenRequiresSecret(t *testing.T) {
	signer := NewAcceptTokenSigner("", time.Hour)
	if _, err := signer.Issue("lead-1", "prov-1"); err == nil {
		t.Fatal("expected error without secret")
	}
}

func TestAcceptTokenMalformed(t *testing.T) {
	signer := NewAcceptTokenSigner("secret", time.Hour)
	for _, token := range []string{"", "nodot", ".onlysig", "payload."} {
		if _, err := signer.Verify(token); err == nil {
			t.Errorf("Verify(%q): expected error", token)
		}
	}
}
