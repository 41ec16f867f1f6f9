// Package metrics exposes claim pipeline counters for Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsStarted counts created play-to-claim sessions.
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "faucet_sessions_started_total",
		Help: "Number of play-to-claim sessions created.",
	})

	// Claims counts claim requests by terminal outcome.
	Claims = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "faucet_claims_total",
		Help: "Number of claim requests by outcome.",
	}, []string{"outcome"})

	// Disbursed counts paid-out atomic units.
	Disbursed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "faucet_disbursed_atomic_units_total",
		Help: "Total atomic units disbursed.",
	})
)

// Claim outcome label values.
const (
	OutcomeSuccess     = "success"
	OutcomeRejected    = "rejected"
	OutcomeThrottled   = "throttled"
	OutcomeUnavailable = "unavailable"
)
