package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ConcealNetwork/conceal-faucet-api/internal/faucet"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/storage"
)

const (
	keySession      = "faucet:session:"
	keyAddressIndex = "faucet:session:addr:"
)

// Manager is the only writer of session records and the address→token index.
// Both are written with identical TTLs so they expire together.
type Manager struct {
	store storage.Store
	ttl   time.Duration
}

func NewManager(store storage.Store, ttl time.Duration) *Manager {
	return &Manager{store: store, ttl: ttl}
}

// Credentials are handed to the client on session start: the token outside
// the response body, the CSRF token inside it.
type Credentials struct {
	Token     string
	CSRFToken string
}

// Create issues a new session for address, unconditionally superseding any
// existing one. The supersede-then-create sequence is not transactional; two
// concurrent creates for one address can leave an orphaned token whose
// record expires on its own TTL, which authorizes nothing by itself.
func (m *Manager) Create(ctx context.Context, ip, address, origin string) (*Credentials, error) {
	if err := m.supersede(ctx, address); err != nil {
		return nil, err
	}

	token, err := NewToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}
	csrfToken, err := NewToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate csrf token: %w", err)
	}

	sess := Session{
		CSRFToken: csrfToken,
		Address:   address,
		IP:        ip,
		Origin:    origin,
		StartedAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(&sess)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}

	if err := m.store.Set(ctx, keySession+token, string(payload), m.ttl); err != nil {
		return nil, fmt.Errorf("%w: %v", faucet.ErrStoreUnavailable, err)
	}
	if err := m.store.Set(ctx, keyAddressIndex+address, token, m.ttl); err != nil {
		return nil, fmt.Errorf("%w: %v", faucet.ErrStoreUnavailable, err)
	}

	return &Credentials{Token: token, CSRFToken: csrfToken}, nil
}

// supersede retires any live session for address: the old record first, then
// the index entry.
func (m *Manager) supersede(ctx context.Context, address string) error {
	oldToken, err := m.store.Get(ctx, keyAddressIndex+address)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", faucet.ErrStoreUnavailable, err)
	}

	if err := m.store.Delete(ctx, keySession+oldToken); err != nil {
		return fmt.Errorf("%w: %v", faucet.ErrStoreUnavailable, err)
	}
	if err := m.store.Delete(ctx, keyAddressIndex+address); err != nil {
		return fmt.Errorf("%w: %v", faucet.ErrStoreUnavailable, err)
	}

	return nil
}

// Get looks up a session by token without mutating anything.
func (m *Manager) Get(ctx context.Context, token string) (*Session, error) {
	payload, err := m.store.Get(ctx, keySession+token)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, faucet.ErrInvalidOrExpiredToken
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", faucet.ErrStoreUnavailable, err)
	}

	return decode(payload)
}

// Consume atomically takes the session out of the store, so only one of any
// number of concurrent claims on the same token proceeds. The winner gets the
// session back; every other caller sees faucet.ErrInvalidOrExpiredToken.
func (m *Manager) Consume(ctx context.Context, token string) (*Session, error) {
	payload, err := m.store.GetDel(ctx, keySession+token)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, faucet.ErrInvalidOrExpiredToken
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", faucet.ErrStoreUnavailable, err)
	}

	sess, err := decode(payload)
	if err != nil {
		return nil, err
	}

	m.dropIndex(ctx, sess.Address, token)

	return sess, nil
}

// Delete removes a session and its index entry. A missing session is not an
// error; deletion is idempotent.
func (m *Manager) Delete(ctx context.Context, token string) error {
	payload, err := m.store.GetDel(ctx, keySession+token)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", faucet.ErrStoreUnavailable, err)
	}

	sess, err := decode(payload)
	if err != nil {
		return err
	}

	m.dropIndex(ctx, sess.Address, token)

	return nil
}

// dropIndex removes the address index entry, but only while it still points
// at token: a concurrent Create may already have re-bound the address.
func (m *Manager) dropIndex(ctx context.Context, address, token string) {
	indexed, err := m.store.Get(ctx, keyAddressIndex+address)
	if err != nil || indexed != token {
		return
	}
	if err := m.store.Delete(ctx, keyAddressIndex+address); err != nil {
		slog.Warn("failed to drop address index entry", "error", err)
	}
}

func decode(payload string) (*Session, error) {
	var sess Session
	if err := json.Unmarshal([]byte(payload), &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session record: %w", err)
	}
	return &sess, nil
}
