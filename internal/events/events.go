// Package events carries security events from the claim pipeline to the
// append-only abuse log consumed by the external ban tool. Publishing is
// fire-and-forget; a slow or failed log write never blocks a claim.
package events

import (
	"context"
	"time"
)

// Kind classifies a security event for the ban tool.
type Kind string

const (
	// KindRateLimit marks a request rejected by the rate limiter.
	KindRateLimit Kind = "RATE_LIMIT"
	// KindAbuse marks any rejection past the rate-limit stage.
	KindAbuse Kind = "ABUSE"
)

// SecurityEvent is one abuse-log entry.
type SecurityEvent struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	IP        string    `json:"ip"`
	Address   string    `json:"address,omitempty"`
	Path      string    `json:"path,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Reporter publishes security events.
type Reporter interface {
	Report(ctx context.Context, event SecurityEvent)
}

// NopReporter discards all events. Used in tests.
type NopReporter struct{}

func (NopReporter) Report(ctx context.Context, event SecurityEvent) {}
