package core

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// AcceptTokenClaims binds an accept link to one (lead, provider) pair with
// an absolute expiry. Tokens ride in teaser SMS/email links so acceptance
// needs no session.
type AcceptTokenClaims struct {
	LeadID     string `json:"leadId"`
	ProviderID string `json:"providerId"`
	Exp        int64  `json:"exp"`
}

// AcceptTokenSigner issues and verifies HMAC-SHA256 tokens of the form
// base64url(payload) + "." + hex(signature).
type AcceptTokenSigner struct {
	secret []byte
	ttl    time.Duration
	nowFn  func() time.Time
}

func NewAcceptTokenSigner(secret string, ttl time.Duration) *AcceptTokenSigner {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &AcceptTokenSigner{
		secret: []byte(strings.TrimSpace(secret)),
		ttl:    ttl,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *AcceptTokenSigner) Issue(leadID string, providerID string) (string, error) {
	if s == nil || len(s.secret) == 0 {
		return "", NewInvalidTokenError("core: accept token secret is not configured")
	}
	leadID = strings.TrimSpace(leadID)
	providerID = strings.TrimSpace(providerID)
	if leadID == "" || providerID == "" {
		return "", NewInvalidTokenError("core: lead id and provider id are required")
	}
	claims := AcceptTokenClaims{
		LeadID:     leadID,
		ProviderID: providerID,
		Exp:        s.now().Add(s.ttl).Unix(),
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + s.sign(encoded), nil
}

func (s *AcceptTokenSigner) Verify(token string) (AcceptTokenClaims, error) {
	if s == nil || len(s.secret) == 0 {
		return AcceptTokenClaims{}, NewInvalidTokenError("core: accept token secret is not configured")
	}
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return AcceptTokenClaims{}, NewInvalidTokenError("core: accept token is malformed")
	}
	expected := s.sign(parts[0])
	if !hmac.Equal([]byte(expected), []byte(parts[1])) {
		return AcceptTokenClaims{}, NewInvalidTokenError("core: accept token signature mismatch")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return AcceptTokenClaims{}, NewInvalidTokenError("core: accept token payload is not decodable")
	}
	var claims AcceptTokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return AcceptTokenClaims{}, NewInvalidTokenError("core: accept token payload is not valid JSON")
	}
	if claims.Exp <= s.now().Unix() {
		return AcceptTokenClaims{}, NewInvalidTokenError("core: accept token has expired")
	}
	if strings.TrimSpace(claims.LeadID) == "" || strings.TrimSpace(claims.ProviderID) == "" {
		return AcceptTokenClaims{}, NewInvalidTokenError("core: accept token claims are incomplete")
	}
	return claims, nil
}

func (s *AcceptTokenSigner) sign(encodedPayload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(encodedPayload))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *AcceptTokenSigner) now() time.Time {
	if s != nil && s.nowFn != nil {
		return s.nowFn().UTC()
	}
	return time.Now().UTC()
}
