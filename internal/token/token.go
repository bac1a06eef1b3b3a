// Package token issues and verifies the short-lived signed tokens that gate
// attendance check-ins. A token is self-contained: it carries the session,
// class and issuer identifiers plus its own expiry, sealed with an
// HMAC-SHA256 tag. No server-side state is needed to verify one, though the
// attendance service additionally binds verification to the session's live
// expiry so a refresh revokes all previously issued tokens.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Verification errors. Tampered, truncated and malformed tokens all surface
// as ErrInvalidToken so callers cannot distinguish signature failures from
// format failures. Only a genuinely expired, well-signed token reports
// ErrTokenExpired.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Payload is the signed content of a session token.
type Payload struct {
	SessionID  string `json:"sid"`
	ClassID    int    `json:"cid"`
	LecturerID int    `json:"lid"`
	ExpiresAt  int64  `json:"exp"` // Unix seconds
}

// Expiry returns the embedded expiry as a time.Time.
func (p *Payload) Expiry() time.Time {
	return time.Unix(p.ExpiresAt, 0)
}

// Signer issues and verifies session tokens with a shared secret.
// The clock is injected so expiry behaviour is testable without sleeping.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner creates a Signer. A nil now func defaults to time.Now.
func NewSigner(secret string, now func() time.Time) *Signer {
	if now == nil {
		now = time.Now
	}
	return &Signer{secret: []byte(secret), now: now}
}

// Issue encodes the payload with an expiry of now + ttl and appends the
// integrity tag. Pure except for the injected clock.
func (s *Signer) Issue(sessionID string, classID, lecturerID int, ttl time.Duration) (string, time.Time) {
	expiresAt := s.now().Add(ttl)
	payload := Payload{
		SessionID:  sessionID,
		ClassID:    classID,
		LecturerID: lecturerID,
		ExpiresAt:  expiresAt.Unix(),
	}

	raw, _ := json.Marshal(payload) // Payload has no unmarshalable fields
	encoded := base64.RawURLEncoding.EncodeToString(raw)
	return encoded + "." + s.sign(raw), expiresAt
}

// Verify recomputes the integrity tag, decodes the payload and checks the
// embedded expiry against the injected clock.
func (s *Signer) Verify(tok string) (*Payload, error) {
	encoded, tag, ok := strings.Cut(tok, ".")
	if !ok {
		return nil, ErrInvalidToken
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidToken
	}

	expected := s.sign(raw)
	if !hmac.Equal([]byte(tag), []byte(expected)) {
		return nil, ErrInvalidToken
	}

	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, ErrInvalidToken
	}

	if s.now().After(payload.Expiry()) {
		return nil, ErrTokenExpired
	}

	return &payload, nil
}

func (s *Signer) sign(raw []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(raw)
	return hex.EncodeToString(mac.Sum(nil))
}
