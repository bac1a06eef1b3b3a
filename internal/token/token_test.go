package token

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	start := time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)
	signer := NewSigner("test-secret", fixedClock(start))

	tok, expiresAt := signer.Issue("sess-1", 42, 7, time.Minute)
	if !expiresAt.Equal(start.Add(time.Minute)) {
		t.Fatalf("expiry = %v, want %v", expiresAt, start.Add(time.Minute))
	}

	payload, err := signer.Verify(tok)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if payload.SessionID != "sess-1" || payload.ClassID != 42 || payload.LecturerID != 7 {
		t.Fatalf("payload mismatch: %+v", payload)
	}
	if payload.ExpiresAt != expiresAt.Unix() {
		t.Fatalf("embedded expiry = %d, want %d", payload.ExpiresAt, expiresAt.Unix())
	}
}

func TestVerifyExpired(t *testing.T) {
	clock := time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)
	now := &clock
	signer := NewSigner("test-secret", func() time.Time { return *now })

	tok, _ := signer.Issue("sess-1", 42, 7, 60*time.Second)

	// t = 61s: signature still valid, but the embedded expiry has passed.
	later := clock.Add(61 * time.Second)
	now = &later

	if _, err := signer.Verify(tok); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("Verify() error = %v, want ErrTokenExpired", err)
	}
}

func TestVerifyFailuresAreIndistinguishable(t *testing.T) {
	start := time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)
	signer := NewSigner("test-secret", fixedClock(start))
	genuine, _ := signer.Issue("sess-1", 42, 7, time.Minute)

	encoded, tag, _ := strings.Cut(genuine, ".")

	other := NewSigner("other-secret", fixedClock(start))
	foreign, _ := other.Issue("sess-1", 42, 7, time.Minute)

	tests := []struct {
		name string
		tok  string
	}{
		{"empty", ""},
		{"no separator", "justonepart"},
		{"garbage base64", "!!!." + tag},
		{"truncated tag", encoded + "." + tag[:10]},
		{"flipped tag byte", encoded + "." + flipHexDigit(tag)},
		{"signed with wrong secret", foreign},
		{"payload swapped under valid-looking tag", "eyJzaWQiOiJvdGhlciJ9." + tag},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := signer.Verify(tt.tok); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("Verify(%q) error = %v, want ErrInvalidToken", tt.tok, err)
			}
		})
	}
}

func TestTokensDifferPerIssue(t *testing.T) {
	base := time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)
	a := NewSigner("test-secret", fixedClock(base))
	b := NewSigner("test-secret", fixedClock(base.Add(time.Second)))

	tok1, _ := a.Issue("sess-1", 42, 7, time.Minute)
	tok2, _ := b.Issue("sess-1", 42, 7, time.Minute)
	if tok1 == tok2 {
		t.Fatal("tokens issued at different instants should differ")
	}
}

func flipHexDigit(s string) string {
	b := []byte(s)
	if b[0] == 'a' {
		b[0] = 'b'
	} else {
		b[0] = 'a'
	}
	return string(b)
}
