package claim

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ConcealNetwork/conceal-faucet-api/config"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/abuse"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/events"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/faucet"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/origin"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/session"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/storage"
)

const (
	testIP     = "1.2.3.4"
	testOrigin = "https://f.example"
	payout     = uint64(1_000_000)
)

var testAddress = "ccx7" + strings.Repeat("a", 94)

type stubWallet struct {
	mu           sync.Mutex
	balance      uint64
	failDisburse bool
	calls        int
}

func (w *stubWallet) Disburse(ctx context.Context, address string, amount uint64) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.failDisburse {
		return "", fmt.Errorf("%w: sendTransaction: busy", faucet.ErrUpstreamFailure)
	}
	return "deadbeef", nil
}

func (w *stubWallet) Balance(ctx context.Context) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balance, nil
}

func (w *stubWallet) disburseCalls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

type harness struct {
	orch     *Orchestrator
	sessions *session.Manager
	wallet   *stubWallet
}

func newHarness(t *testing.T, minDwell time.Duration) *harness {
	t.Helper()
	return newHarnessWithLogger(t, minDwell, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newHarnessWithLogger(t *testing.T, minDwell time.Duration, logger *slog.Logger) *harness {
	t.Helper()

	store := storage.NewMemoryStore(storage.MemoryOptions{CleanupInterval: time.Hour})
	t.Cleanup(func() { store.Close() })

	sessions := session.NewManager(store, 15*time.Minute)
	w := &stubWallet{balance: 100 * payout}

	orch := NewOrchestrator(
		sessions,
		session.NewVerifier(sessions, minDwell, true),
		origin.NewGuard([]string{testOrigin}, true),
		abuse.NewRateLimiter(store, 5, time.Minute),
		abuse.NewCooldown(store, time.Hour),
		w,
		events.NopReporter{},
		config.PayoutConfig{
			Amount:        payout,
			MinBalance:    payout,
			MinScore:      100,
			AddressPrefix: config.DefaultAddressPrefix,
			AddressLength: config.DefaultAddressLength,
		},
		logger,
	)

	return &harness{orch: orch, sessions: sessions, wallet: w}
}

func (h *harness) start(t *testing.T) *StartResult {
	t.Helper()
	result, err := h.orch.StartSession(context.Background(), StartRequest{
		Address: testAddress, IP: testIP, Origin: testOrigin, Path: "/api/v1/session",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result
}

func (h *harness) claimRequest(creds *StartResult) ClaimRequest {
	return ClaimRequest{
		Address:   testAddress,
		Score:     500,
		Token:     creds.Token,
		CSRFToken: creds.CSRFToken,
		IP:        testIP,
		Origin:    testOrigin,
		Path:      "/api/v1/claim",
	}
}

func TestStartSessionRejectsUntrustedOrigin(t *testing.T) {
	h := newHarness(t, 0)

	_, err := h.orch.StartSession(context.Background(), StartRequest{
		Address: testAddress, IP: testIP, Origin: "https://evil.example",
	})
	if !errors.Is(err, faucet.ErrOriginNotAllowed) {
		t.Errorf("expected ErrOriginNotAllowed, got %v", err)
	}

	_, err = h.orch.StartSession(context.Background(), StartRequest{
		Address: testAddress, IP: testIP,
	})
	if !errors.Is(err, faucet.ErrMissingOrigin) {
		t.Errorf("expected ErrMissingOrigin, got %v", err)
	}
}

func TestStartSessionRejectsInvalidAddress(t *testing.T) {
	h := newHarness(t, 0)

	_, err := h.orch.StartSession(context.Background(), StartRequest{
		Address: "ccx7tooshort", IP: testIP, Origin: testOrigin,
	})
	if !errors.Is(err, faucet.ErrInvalidAddress) {
		t.Errorf("expected ErrInvalidAddress, got %v", err)
	}
}

func TestClaimEndToEnd(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	creds := h.start(t)

	result, err := h.orch.Claim(ctx, h.claimRequest(creds))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TxHash != "deadbeef" {
		t.Errorf("expected transaction hash, got %q", result.TxHash)
	}
	if result.Amount != payout {
		t.Errorf("expected amount %d, got %d", payout, result.Amount)
	}

	// The session is consumed: the same token cannot be claimed again.
	if _, err := h.orch.Claim(ctx, h.claimRequest(creds)); !errors.Is(err, faucet.ErrInvalidOrExpiredToken) {
		t.Errorf("reused token should be invalid, got %v", err)
	}

	// A fresh session for the same address hits the cooldown.
	fresh := h.start(t)
	if _, err := h.orch.Claim(ctx, h.claimRequest(fresh)); !errors.Is(err, faucet.ErrCooldownActive) {
		t.Errorf("expected ErrCooldownActive, got %v", err)
	}
}

func TestClaimRejectsBeforeDwell(t *testing.T) {
	h := newHarness(t, time.Hour)

	creds := h.start(t)

	_, err := h.orch.Claim(context.Background(), h.claimRequest(creds))
	if !errors.Is(err, faucet.ErrSessionTooYoung) {
		t.Errorf("expected ErrSessionTooYoung, got %v", err)
	}
	if h.wallet.disburseCalls() != 0 {
		t.Error("wallet must not be called for a too-young session")
	}
}

func TestClaimAddressMismatch(t *testing.T) {
	h := newHarness(t, 0)

	creds := h.start(t)
	req := h.claimRequest(creds)
	req.Address = "ccx7" + strings.Repeat("b", 94)

	_, err := h.orch.Claim(context.Background(), req)
	if !errors.Is(err, faucet.ErrAddressMismatch) {
		t.Errorf("expected ErrAddressMismatch, got %v", err)
	}
}

func TestClaimScoreTooLow(t *testing.T) {
	h := newHarness(t, 0)

	creds := h.start(t)
	req := h.claimRequest(creds)
	req.Score = 10

	_, err := h.orch.Claim(context.Background(), req)
	if !errors.Is(err, faucet.ErrScoreTooLow) {
		t.Errorf("expected ErrScoreTooLow, got %v", err)
	}
}

func TestClaimRateLimited(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	// Attempts count regardless of outcome: five bogus claims exhaust the
	// budget, the sixth is cut off before any session logic runs.
	req := ClaimRequest{
		Address: testAddress, Score: 500, Token: "bogus",
		IP: testIP, Origin: testOrigin, Path: "/api/v1/claim",
	}

	for i := 1; i <= 5; i++ {
		if _, err := h.orch.Claim(ctx, req); !errors.Is(err, faucet.ErrInvalidOrExpiredToken) {
			t.Fatalf("attempt %d: expected ErrInvalidOrExpiredToken, got %v", i, err)
		}
	}

	if _, err := h.orch.Claim(ctx, req); !errors.Is(err, faucet.ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestClaimInsufficientFundsLeavesSessionIntact(t *testing.T) {
	h := newHarness(t, 0)
	h.wallet.balance = payout - 1

	creds := h.start(t)

	_, err := h.orch.Claim(context.Background(), h.claimRequest(creds))
	if !errors.Is(err, faucet.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// The balance check runs before consumption; the session survives.
	if _, err := h.sessions.Get(context.Background(), creds.Token); err != nil {
		t.Errorf("session should still exist after a funds rejection, got %v", err)
	}
}

func TestClaimFailedDisbursementCommitsNoCooldown(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	h.wallet.failDisburse = true
	creds := h.start(t)

	_, err := h.orch.Claim(ctx, h.claimRequest(creds))
	if !errors.Is(err, faucet.ErrUpstreamFailure) {
		t.Fatalf("expected ErrUpstreamFailure, got %v", err)
	}

	// No cooldown was committed: a fresh session can retry and succeed.
	h.wallet.failDisburse = false
	fresh := h.start(t)
	if _, err := h.orch.Claim(ctx, h.claimRequest(fresh)); err != nil {
		t.Errorf("retry after failed disbursement should succeed, got %v", err)
	}
}

func TestLogsMaskClientIP(t *testing.T) {
	var buf bytes.Buffer
	h := newHarnessWithLogger(t, 0, slog.New(slog.NewTextHandler(&buf, nil)))

	creds := h.start(t)
	if _, err := h.orch.Claim(context.Background(), h.claimRequest(creds)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "ip=1.2.3.x") {
		t.Errorf("expected masked ip in log output, got:\n%s", out)
	}
	if strings.Contains(out, testIP) {
		t.Errorf("full client ip must not appear in log output, got:\n%s", out)
	}
}

func TestRetryAfterAfterPayout(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	if got := h.orch.RetryAfter(ctx, testIP, testAddress); got != 0 {
		t.Errorf("expected no wait before any claim, got %v", got)
	}

	creds := h.start(t)
	if _, err := h.orch.Claim(ctx, h.claimRequest(creds)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The cooldown (1h) dominates the rate-limit window (1m).
	if got := h.orch.RetryAfter(ctx, testIP, testAddress); got <= 30*time.Minute {
		t.Errorf("expected the cooldown to dominate the wait, got %v", got)
	}
}

func TestConcurrentClaimsSingleFlight(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	creds := h.start(t)
	req := h.claimRequest(creds)

	const workers = 8

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.orch.Claim(ctx, req); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("expected exactly one successful claim, got %d", successes)
	}
	if calls := h.wallet.disburseCalls(); calls != 1 {
		t.Errorf("expected exactly one disbursement, got %d", calls)
	}
}
