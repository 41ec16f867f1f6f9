package events

import (
	"testing"
	"time"
)

// The line format is consumed by an external ban daemon; these expectations
// are a contract, not a convenience.
func TestFormatLineStability(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	tests := []struct {
		name  string
		event SecurityEvent
		want  string
	}{
		{
			name: "full event",
			event: SecurityEvent{
				Kind:      KindAbuse,
				IP:        "1.2.3.4",
				Address:   "ccx7abc",
				Path:      "/api/v1/claim",
				Reason:    "csrf token mismatch",
				Timestamp: ts,
			},
			want: "2025-03-14T09:26:53Z kind=ABUSE ip=1.2.3.4 address=ccx7abc path=/api/v1/claim reason=csrf token mismatch",
		},
		{
			name: "rate limit without address",
			event: SecurityEvent{
				Kind:      KindRateLimit,
				IP:        "1.2.3.4",
				Path:      "/api/v1/claim",
				Timestamp: ts,
			},
			want: "2025-03-14T09:26:53Z kind=RATE_LIMIT ip=1.2.3.4 path=/api/v1/claim",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatLine(tt.event); got != tt.want {
				t.Errorf("line format changed:\n got: %s\nwant: %s", got, tt.want)
			}
		})
	}
}
