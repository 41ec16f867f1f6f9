package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ConcealNetwork/conceal-faucet-api/internal/faucet"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/storage"
)

// seedSession writes a session record directly into the store so tests can
// control StartedAt.
func seedSession(t *testing.T, store storage.Store, token string, sess Session) {
	t.Helper()
	payload, err := json.Marshal(&sess)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Set(context.Background(), keySession+token, string(payload), time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVerifierGuardChain(t *testing.T) {
	const (
		token  = "tok"
		csrf   = "csrf-secret"
		ip     = "1.2.3.4"
		origin = "https://f.example"
	)

	base := Session{
		CSRFToken: csrf,
		Address:   testAddress,
		IP:        ip,
		Origin:    origin,
		StartedAt: time.Now().UTC().Add(-time.Minute),
	}

	valid := VerifyRequest{Token: token, CSRFToken: csrf, IP: ip, Origin: origin}

	tests := []struct {
		name    string
		sess    Session
		req     VerifyRequest
		seed    bool
		wantErr error
	}{
		{
			name:    "missing token",
			sess:    base,
			req:     VerifyRequest{CSRFToken: csrf, IP: ip, Origin: origin},
			seed:    true,
			wantErr: faucet.ErrMissingToken,
		},
		{
			name:    "unknown token",
			sess:    base,
			req:     valid,
			seed:    false,
			wantErr: faucet.ErrInvalidOrExpiredToken,
		},
		{
			name:    "csrf mismatch",
			sess:    base,
			req:     VerifyRequest{Token: token, CSRFToken: "wrong", IP: ip, Origin: origin},
			seed:    true,
			wantErr: faucet.ErrCSRFMismatch,
		},
		{
			name: "session too young",
			sess: Session{
				CSRFToken: csrf, Address: testAddress, IP: ip, Origin: origin,
				StartedAt: time.Now().UTC(),
			},
			req:     valid,
			seed:    true,
			wantErr: faucet.ErrSessionTooYoung,
		},
		{
			name:    "ip mismatch",
			sess:    base,
			req:     VerifyRequest{Token: token, CSRFToken: csrf, IP: "5.6.7.8", Origin: origin},
			seed:    true,
			wantErr: faucet.ErrIPMismatch,
		},
		{
			name:    "origin mismatch",
			sess:    base,
			req:     VerifyRequest{Token: token, CSRFToken: csrf, IP: ip, Origin: "https://evil.example"},
			seed:    true,
			wantErr: faucet.ErrOriginMismatch,
		},
		{
			name:    "all checks pass",
			sess:    base,
			req:     valid,
			seed:    true,
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStore(storage.MemoryOptions{CleanupInterval: time.Hour})
			t.Cleanup(func() { store.Close() })

			if tt.seed {
				seedSession(t, store, token, tt.sess)
			}

			v := NewVerifier(NewManager(store, time.Hour), 30*time.Second, true)

			sess, err := v.Verify(context.Background(), tt.req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sess.Address != testAddress {
				t.Errorf("expected address %q, got %q", testAddress, sess.Address)
			}
		})
	}
}

func TestVerifierDwellBoundary(t *testing.T) {
	store := storage.NewMemoryStore(storage.MemoryOptions{CleanupInterval: time.Hour})
	t.Cleanup(func() { store.Close() })

	minDwell := 30 * time.Second

	// Exactly at the threshold the claim must be accepted.
	seedSession(t, store, "tok", Session{
		CSRFToken: "c", Address: testAddress, IP: "1.2.3.4", Origin: "https://f.example",
		StartedAt: time.Now().UTC().Add(-minDwell),
	})

	v := NewVerifier(NewManager(store, time.Hour), minDwell, true)

	_, err := v.Verify(context.Background(), VerifyRequest{
		Token: "tok", CSRFToken: "c", IP: "1.2.3.4", Origin: "https://f.example",
	})
	if err != nil {
		t.Errorf("claim at the dwell threshold should be accepted, got %v", err)
	}
}

func TestVerifierRelaxedMode(t *testing.T) {
	store := storage.NewMemoryStore(storage.MemoryOptions{CleanupInterval: time.Hour})
	t.Cleanup(func() { store.Close() })

	// Session created without an origin, as a relaxed-mode session start allows.
	seedSession(t, store, "tok", Session{
		CSRFToken: "c", Address: testAddress, IP: "1.2.3.4",
		StartedAt: time.Now().UTC().Add(-time.Minute),
	})

	v := NewVerifier(NewManager(store, time.Hour), time.Second, false)

	// No origin recorded: the origin check is skipped in relaxed mode.
	if _, err := v.Verify(context.Background(), VerifyRequest{
		Token: "tok", CSRFToken: "c", IP: "1.2.3.4",
	}); err != nil {
		t.Errorf("relaxed mode without recorded origin should pass, got %v", err)
	}

	// A supplied CSRF token is still compared even in relaxed mode.
	if _, err := v.Verify(context.Background(), VerifyRequest{
		Token: "tok", CSRFToken: "wrong", IP: "1.2.3.4",
	}); !errors.Is(err, faucet.ErrCSRFMismatch) {
		t.Errorf("expected ErrCSRFMismatch, got %v", err)
	}
}
