// Package origin re-enforces the frontend origin policy server-side. CORS is
// a browser convention that direct HTTP clients ignore, so the allow-list is
// checked again here on every state-changing request.
package origin

import (
	"strings"

	"github.com/ConcealNetwork/conceal-faucet-api/internal/faucet"
)

// Guard is a stateless predicate over the configured origin allow-list.
type Guard struct {
	allowed map[string]struct{}
	strict  bool
}

// NewGuard builds a guard from the trusted origins. Origins compare
// case-insensitively on scheme and host, with trailing slashes ignored.
func NewGuard(trustedOrigins []string, strict bool) *Guard {
	allowed := make(map[string]struct{}, len(trustedOrigins))
	for _, o := range trustedOrigins {
		allowed[normalize(o)] = struct{}{}
	}
	return &Guard{allowed: allowed, strict: strict}
}

func normalize(origin string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(origin), "/"))
}

// Strict reports whether the guard runs in strict enforcement mode.
func (g *Guard) Strict() bool {
	return g.strict
}

// Check validates an Origin header value against the allow-list. A missing
// value is rejected as faucet.ErrMissingOrigin; a present-but-unlisted value
// as faucet.ErrOriginNotAllowed.
func (g *Guard) Check(origin string) error {
	if origin == "" {
		return faucet.ErrMissingOrigin
	}
	if _, ok := g.allowed[normalize(origin)]; !ok {
		return faucet.ErrOriginNotAllowed
	}
	return nil
}
