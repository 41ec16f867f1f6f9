// Package claim sequences a faucet claim through its guards: origin check,
// rate limit, session verification, cooldown check, single-flight session
// consumption, disbursement, cooldown commit. Every request is a single
// pass; no stage is retried.
package claim

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ConcealNetwork/conceal-faucet-api/config"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/abuse"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/clientip"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/events"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/faucet"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/metrics"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/origin"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/session"
)

// Wallet is the disbursement collaborator. The orchestrator guarantees
// at-most-one Disburse call per consumed session.
type Wallet interface {
	Disburse(ctx context.Context, address string, amount uint64) (string, error)
	Balance(ctx context.Context) (uint64, error)
}

// Orchestrator wires the guards together. It holds no per-request state; all
// coordination happens through the shared store.
type Orchestrator struct {
	sessions    *session.Manager
	verifier    *session.Verifier
	originGuard *origin.Guard
	limiter     *abuse.RateLimiter
	cooldown    *abuse.Cooldown
	wallet      Wallet
	reporter    events.Reporter
	payout      config.PayoutConfig
	logger      *slog.Logger
}

func NewOrchestrator(
	sessions *session.Manager,
	verifier *session.Verifier,
	originGuard *origin.Guard,
	limiter *abuse.RateLimiter,
	cooldown *abuse.Cooldown,
	wallet Wallet,
	reporter events.Reporter,
	payout config.PayoutConfig,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		sessions:    sessions,
		verifier:    verifier,
		originGuard: originGuard,
		limiter:     limiter,
		cooldown:    cooldown,
		wallet:      wallet,
		reporter:    reporter,
		payout:      payout,
		logger:      logger,
	}
}

// StartRequest opens a new play-to-claim session.
type StartRequest struct {
	Address string
	IP      string
	Origin  string
	Path    string
}

// StartResult carries the two session credentials. The token goes into a
// cookie, the CSRF token into the response body.
type StartResult struct {
	Token     string
	CSRFToken string
}

// StartSession validates the destination address and creates a session bound
// to the caller's IP and origin. An existing session for the same address is
// unconditionally superseded.
func (o *Orchestrator) StartSession(ctx context.Context, req StartRequest) (*StartResult, error) {
	// In strict mode the origin is checked at creation, so the recorded
	// origin is always one the guard already trusts.
	if o.originGuard.Strict() {
		if err := o.originGuard.Check(req.Origin); err != nil {
			o.report(ctx, events.KindAbuse, req.IP, req.Address, req.Path, err.Error())
			return nil, err
		}
	}

	if !faucet.ValidAddress(req.Address, o.payout.AddressPrefix, o.payout.AddressLength) {
		return nil, faucet.ErrInvalidAddress
	}

	creds, err := o.sessions.Create(ctx, req.IP, req.Address, req.Origin)
	if err != nil {
		return nil, err
	}

	metrics.SessionsStarted.Inc()
	o.logger.Info("session started", "address", req.Address, "ip", clientip.Mask(req.IP))

	return &StartResult{Token: creds.Token, CSRFToken: creds.CSRFToken}, nil
}

// ClaimRequest is one claim attempt against an existing session.
type ClaimRequest struct {
	Address   string
	Score     int64
	Token     string
	CSRFToken string
	IP        string
	Origin    string
	Path      string
}

// ClaimResult is a successful payout.
type ClaimResult struct {
	TxHash string `json:"txHash"`
	Amount uint64 `json:"amount"`
}

// Claim runs the full claim pipeline. Side effects, in order: an abuse-log
// event on any rejection past the rate-limit stage, the disbursement call,
// the cooldown commit, and the session deletion. The session is consumed
// (atomic claim-and-delete) before the disbursement call, so concurrent
// claims on one token cannot both reach the wallet.
func (o *Orchestrator) Claim(ctx context.Context, req ClaimRequest) (*ClaimResult, error) {
	if err := o.originGuard.Check(req.Origin); err != nil {
		o.reject(ctx, req, err)
		return nil, err
	}

	if err := o.limiter.Check(ctx, req.IP); err != nil {
		if errors.Is(err, faucet.ErrRateLimited) {
			metrics.Claims.WithLabelValues(metrics.OutcomeThrottled).Inc()
			o.report(ctx, events.KindRateLimit, req.IP, req.Address, req.Path, "rate limit exceeded")
		} else {
			metrics.Claims.WithLabelValues(metrics.OutcomeUnavailable).Inc()
		}
		return nil, err
	}

	sess, err := o.verifier.Verify(ctx, session.VerifyRequest{
		Token:     req.Token,
		CSRFToken: req.CSRFToken,
		IP:        req.IP,
		Origin:    req.Origin,
	})
	if err != nil {
		o.reject(ctx, req, err)
		return nil, err
	}

	if req.Address != sess.Address {
		o.reject(ctx, req, faucet.ErrAddressMismatch)
		return nil, faucet.ErrAddressMismatch
	}

	if req.Score < o.payout.MinScore {
		o.reject(ctx, req, faucet.ErrScoreTooLow)
		return nil, faucet.ErrScoreTooLow
	}

	if err := o.cooldown.Check(ctx, req.IP, req.Address); err != nil {
		o.reject(ctx, req, err)
		return nil, err
	}

	balance, err := o.wallet.Balance(ctx)
	if err != nil {
		metrics.Claims.WithLabelValues(metrics.OutcomeUnavailable).Inc()
		return nil, err
	}
	if balance < o.payout.MinBalance || balance < o.payout.Amount {
		metrics.Claims.WithLabelValues(metrics.OutcomeUnavailable).Inc()
		return nil, faucet.ErrInsufficientFunds
	}

	// Single-flight gate: atomically take the session out of the store before
	// paying out. Only the winner of this delete reaches the wallet; losers
	// see an invalid-token rejection.
	if _, err := o.sessions.Consume(ctx, req.Token); err != nil {
		o.reject(ctx, req, err)
		return nil, err
	}

	txHash, err := o.wallet.Disburse(ctx, req.Address, o.payout.Amount)
	if err != nil {
		// The session is gone but no cooldown is committed: the caller may
		// start a new session and try again once rate limits allow.
		metrics.Claims.WithLabelValues(metrics.OutcomeUnavailable).Inc()
		o.logger.Error("disbursement failed", "address", req.Address, "ip", clientip.Mask(req.IP), "error", err)
		return nil, err
	}

	if err := o.cooldown.Commit(ctx, req.IP, req.Address); err != nil {
		// The payout already happened; the claim still succeeds.
		o.logger.Error("failed to commit cooldown after payout", "address", req.Address, "error", err)
	}

	metrics.Claims.WithLabelValues(metrics.OutcomeSuccess).Inc()
	metrics.Disbursed.Add(float64(o.payout.Amount))
	o.logger.Info("claim disbursed", "address", req.Address, "ip", clientip.Mask(req.IP), "txHash", txHash)

	return &ClaimResult{TxHash: txHash, Amount: o.payout.Amount}, nil
}

// RetryAfter reports how long a throttled caller should wait: the longest of
// the active rate-limit window and the ip/address cooldowns. Zero when none
// is active.
func (o *Orchestrator) RetryAfter(ctx context.Context, ip, address string) time.Duration {
	remaining := o.limiter.Remaining(ctx, ip)
	if cd := o.cooldown.Remaining(ctx, ip, address); cd > remaining {
		remaining = cd
	}
	return remaining
}

// reject records a rejection past the rate-limit stage in the abuse log and
// the metrics.
func (o *Orchestrator) reject(ctx context.Context, req ClaimRequest, err error) {
	switch {
	case faucet.IsThrottled(err):
		metrics.Claims.WithLabelValues(metrics.OutcomeThrottled).Inc()
		o.report(ctx, events.KindAbuse, req.IP, req.Address, req.Path, err.Error())
	case faucet.IsClientViolation(err):
		metrics.Claims.WithLabelValues(metrics.OutcomeRejected).Inc()
		o.report(ctx, events.KindAbuse, req.IP, req.Address, req.Path, err.Error())
	default:
		metrics.Claims.WithLabelValues(metrics.OutcomeUnavailable).Inc()
	}
}

func (o *Orchestrator) report(ctx context.Context, kind events.Kind, ip, address, path, reason string) {
	o.reporter.Report(ctx, events.SecurityEvent{
		Kind:    kind,
		IP:      ip,
		Address: address,
		Path:    path,
		Reason:  reason,
	})
}
