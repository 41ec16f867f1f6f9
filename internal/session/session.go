// Package session owns the play-to-claim session lifecycle: creation,
// lookup, single-flight consumption and the address→token index. Sessions are
// immutable once written; they are destroyed explicitly on consumption or
// supersession, with the store TTL as a backstop for abandoned ones.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"time"
)

// Session links a claimed payout address to the IP and origin that created
// it. The token is the store's primary key and is never embedded in the
// record itself.
type Session struct {
	// CSRFToken is delivered in the session-start response body, while the
	// session token travels in a cookie. An attacker who can trigger the
	// cookie to be sent cross-site cannot also read the body that carries
	// this value.
	CSRFToken string    `json:"csrfToken"`
	Address   string    `json:"address"`
	IP        string    `json:"ip"`
	Origin    string    `json:"origin,omitempty"`
	StartedAt time.Time `json:"startedAt"`
}

// Age returns the elapsed time since the session was created.
func (s *Session) Age(now time.Time) time.Duration {
	return now.Sub(s.StartedAt)
}

// NewToken generates a random 256-bit token encoded as hex.
func NewToken() (string, error) {
	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
