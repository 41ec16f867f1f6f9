package session

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/ConcealNetwork/conceal-faucet-api/internal/faucet"
)

// VerifyRequest carries the request-side values the guard chain compares
// against the stored session.
type VerifyRequest struct {
	Token     string
	CSRFToken string
	IP        string
	Origin    string
}

// Verifier runs the per-claim guard chain. It performs no mutation;
// consumption is a separate, explicit step taken only after the checks and
// the cooldown gate have passed.
type Verifier struct {
	manager  *Manager
	minDwell time.Duration
	// strict enforces CSRF and origin binding unconditionally. The relaxed
	// mode only skips checks the creating request never established.
	strict bool
}

func NewVerifier(manager *Manager, minDwell time.Duration, strict bool) *Verifier {
	return &Verifier{manager: manager, minDwell: minDwell, strict: strict}
}

// Verify executes the guard chain in order, short-circuiting on the first
// failure: presence, existence, CSRF match, dwell time, IP match, origin
// match. The order is load-bearing and must not be rearranged.
func (v *Verifier) Verify(ctx context.Context, req VerifyRequest) (*Session, error) {
	if req.Token == "" {
		return nil, faucet.ErrMissingToken
	}

	sess, err := v.manager.Get(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	if v.strict || req.CSRFToken != "" {
		if subtle.ConstantTimeCompare([]byte(req.CSRFToken), []byte(sess.CSRFToken)) != 1 {
			return nil, faucet.ErrCSRFMismatch
		}
	}

	if sess.Age(time.Now().UTC()) < v.minDwell {
		return nil, faucet.ErrSessionTooYoung
	}

	if req.IP != sess.IP {
		return nil, faucet.ErrIPMismatch
	}

	if v.strict || sess.Origin != "" {
		if req.Origin != sess.Origin {
			return nil, faucet.ErrOriginMismatch
		}
	}

	return sess, nil
}
