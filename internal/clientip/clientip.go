// Package clientip derives a canonical client IP from a possibly proxied
// request. The faucet sits behind exactly one trusted reverse-proxy hop, so
// only the last X-Forwarded-For entry (the one appended by that proxy) is
// believed; anything earlier in the list is client-controlled.
package clientip

import (
	"net"
	"net/http"
	"strings"
)

// Resolver resolves the originating client IP for a request.
type Resolver struct {
	// trustProxy enables X-Forwarded-For handling. When false the TCP peer
	// address is used directly.
	trustProxy bool
}

func NewResolver(trustProxy bool) *Resolver {
	return &Resolver{trustProxy: trustProxy}
}

// FromRequest returns the canonical client IP for r. The result is normalized
// through net.ParseIP so textual variants of the same address compare equal.
func (res *Resolver) FromRequest(r *http.Request) string {
	if res.trustProxy {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			entries := strings.Split(forwarded, ",")
			candidate := strings.TrimSpace(entries[len(entries)-1])
			if ip := net.ParseIP(candidate); ip != nil {
				return ip.String()
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}
	return host
}

// Mask masks the last octet of an IPv4 address for log output.
// Example: "1.2.3.4" -> "1.2.3.x". Other formats are returned unchanged.
func Mask(ip string) string {
	if strings.Count(ip, ":") == 0 && strings.Count(ip, ".") == 3 {
		parts := strings.Split(ip, ".")
		parts[3] = "x"
		return strings.Join(parts, ".")
	}
	return ip
}
