package clientip

import (
	"net/http/httptest"
	"testing"
)

func TestResolverFromRequest(t *testing.T) {
	tests := []struct {
		name       string
		trustProxy bool
		remoteAddr string
		forwarded  string
		want       string
	}{
		{
			name:       "direct connection",
			trustProxy: false,
			remoteAddr: "1.2.3.4:52100",
			want:       "1.2.3.4",
		},
		{
			name:       "forwarded header ignored when proxy untrusted",
			trustProxy: false,
			remoteAddr: "1.2.3.4:52100",
			forwarded:  "9.9.9.9",
			want:       "1.2.3.4",
		},
		{
			name:       "single proxy hop",
			trustProxy: true,
			remoteAddr: "10.0.0.1:443",
			forwarded:  "1.2.3.4",
			want:       "1.2.3.4",
		},
		{
			name:       "only the last forwarded entry is trusted",
			trustProxy: true,
			remoteAddr: "10.0.0.1:443",
			forwarded:  "9.9.9.9, 1.2.3.4",
			want:       "1.2.3.4",
		},
		{
			name:       "garbage forwarded value falls back to peer",
			trustProxy: true,
			remoteAddr: "10.0.0.1:443",
			forwarded:  "not-an-ip",
			want:       "10.0.0.1",
		},
		{
			name:       "ipv6 peer",
			trustProxy: false,
			remoteAddr: "[2001:db8::1]:443",
			want:       "2001:db8::1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/api/v1/claim", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}

			got := NewResolver(tt.trustProxy).FromRequest(r)
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestMask(t *testing.T) {
	if got := Mask("1.2.3.4"); got != "1.2.3.x" {
		t.Errorf("expected 1.2.3.x, got %q", got)
	}
	if got := Mask("2001:db8::1"); got != "2001:db8::1" {
		t.Errorf("ipv6 should be unchanged, got %q", got)
	}
}
