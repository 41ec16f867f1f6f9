package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/ConcealNetwork/conceal-faucet-api/env"
)

// Conceal addresses are base58 with a fixed "ccx7" prefix and fixed length.
const (
	DefaultAddressPrefix = "ccx7"
	DefaultAddressLength = 98
)

// SessionConfig controls the play-to-claim session lifecycle.
type SessionConfig struct {
	// TTL is the backstop expiry for abandoned sessions. Consumed and
	// superseded sessions are deleted explicitly; the TTL only catches the rest.
	TTL time.Duration
	// MinDwell is the minimum elapsed time between session creation and claim.
	MinDwell time.Duration
	// CookieName carries the session token to the client.
	CookieName string
	// CSRFHeader carries the CSRF token back on the claim request.
	CSRFHeader   string
	CookieSecure bool
}

// RateLimitConfig bounds claim attempts per IP per window, success or not.
type RateLimitConfig struct {
	Max    int64
	Window time.Duration
}

// CooldownConfig bars an IP or address from a further successful payout.
type CooldownConfig struct {
	Window time.Duration
}

// PayoutConfig controls the disbursement itself. Amounts are in CCX atomic
// units (6 decimals).
type PayoutConfig struct {
	Amount uint64
	// MinBalance is the wallet balance floor below which claims are refused.
	MinBalance uint64
	// MinScore is the minimum game score accepted on a claim.
	MinScore      int64
	AddressPrefix string
	AddressLength int
}

// StorageConfig selects the shared key-value store backend.
type StorageConfig struct {
	// Provider is one of "redis", "database" or "memory".
	Provider string
	RedisURL string
	// DatabaseProvider is "postgres" or "sqlite" when Provider is "database".
	DatabaseProvider string
	DatabaseURL      string
}

// WalletConfig points at the walletd JSON-RPC endpoint.
type WalletConfig struct {
	RPCURL  string
	Timeout time.Duration
	// Fee and Mixin are passed through to sendTransaction.
	Fee   uint64
	Mixin int
	// Address is the faucet's own wallet address the payout is sent from.
	Address string
}

// Config is the process-wide faucet configuration, initialized once before
// serving and never mutated afterwards.
type Config struct {
	AppName     string
	Environment string
	Port        string
	LogLevel    string

	// StrictOrigin enforces origin binding on every request including session
	// creation. The relaxed mode only exists for local testing.
	StrictOrigin bool
	// TrustProxy honours the X-Forwarded-For header appended by the single
	// trusted reverse-proxy hop in front of the service.
	TrustProxy     bool
	TrustedOrigins []string

	Session   SessionConfig
	RateLimit RateLimitConfig
	Cooldown  CooldownConfig
	Payout    PayoutConfig
	Storage   StorageConfig
	Wallet    WalletConfig

	// AbuseLogPath is the append-only file consumed by the external ban tool.
	AbuseLogPath string
}

type Option func(*Config)

// NewConfig builds a Config using functional options with sensible defaults.
// Panics on configuration that would be unsafe to serve with.
func NewConfig(options ...Option) *Config {
	config := &Config{
		AppName:     "conceal-faucet-api",
		Environment: "development",
		Port:        "8080",
		LogLevel:    "info",

		StrictOrigin:   true,
		TrustProxy:     true,
		TrustedOrigins: []string{},

		Session: SessionConfig{
			TTL:        15 * time.Minute,
			MinDwell:   30 * time.Second,
			CookieName: "conceal_faucet_session",
			CSRFHeader: "X-CSRF-Token",
		},
		RateLimit: RateLimitConfig{
			Max:    5,
			Window: 10 * time.Minute,
		},
		Cooldown: CooldownConfig{
			Window: 24 * time.Hour,
		},
		Payout: PayoutConfig{
			Amount:        1_000_000, // 1 CCX
			MinBalance:    10_000_000,
			MinScore:      100,
			AddressPrefix: DefaultAddressPrefix,
			AddressLength: DefaultAddressLength,
		},
		Storage: StorageConfig{
			Provider: "redis",
		},
		Wallet: WalletConfig{
			RPCURL:  "http://127.0.0.1:8070/json_rpc",
			Timeout: 30 * time.Second,
			Fee:     1000,
			Mixin:   5,
		},
		AbuseLogPath: "faucet-abuse.log",
	}

	if envValue := os.Getenv(env.EnvGoEnvironment); envValue != "" {
		config.Environment = envValue
	}
	if envValue := os.Getenv(env.EnvPort); envValue != "" {
		config.Port = envValue
	}

	for _, option := range options {
		option(config)
	}

	if err := config.validate(); err != nil {
		panic(fmt.Errorf("invalid faucet configuration: %w", err))
	}

	return config
}

func (c *Config) validate() error {
	if c.Environment == "production" {
		if c.StrictOrigin && len(c.TrustedOrigins) == 0 {
			return fmt.Errorf("strict origin mode requires at least one trusted origin")
		}
		if !c.StrictOrigin {
			return fmt.Errorf("relaxed origin mode must not be used in production")
		}
	}

	for _, origin := range c.TrustedOrigins {
		u, err := url.Parse(origin)
		if err != nil {
			return fmt.Errorf("invalid trusted origin %q: %w", origin, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("trusted origin %q must be of the form scheme://host[:port]", origin)
		}
	}

	if c.Session.TTL <= c.Session.MinDwell {
		return fmt.Errorf("session ttl (%s) must exceed minimum dwell time (%s)", c.Session.TTL, c.Session.MinDwell)
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit max and window must be positive")
	}
	if c.Cooldown.Window <= 0 {
		return fmt.Errorf("cooldown window must be positive")
	}
	if c.Payout.Amount == 0 {
		return fmt.Errorf("payout amount must be positive")
	}

	switch c.Storage.Provider {
	case "redis", "database", "memory":
	default:
		return fmt.Errorf("unsupported storage provider: %s", c.Storage.Provider)
	}

	return nil
}

func WithEnvironment(environment string) Option {
	return func(c *Config) {
		if environment != "" {
			c.Environment = environment
		}
	}
}

func WithPort(port string) Option {
	return func(c *Config) {
		if port != "" {
			c.Port = port
		}
	}
}

func WithTrustedOrigins(origins []string) Option {
	return func(c *Config) {
		if len(origins) > 0 {
			c.TrustedOrigins = origins
		}
	}
}

func WithStrictOrigin(strict bool) Option {
	return func(c *Config) {
		c.StrictOrigin = strict
	}
}

func WithSession(session SessionConfig) Option {
	return func(c *Config) {
		if session.TTL != 0 {
			c.Session.TTL = session.TTL
		}
		if session.MinDwell != 0 {
			c.Session.MinDwell = session.MinDwell
		}
		if session.CookieName != "" {
			c.Session.CookieName = session.CookieName
		}
		if session.CSRFHeader != "" {
			c.Session.CSRFHeader = session.CSRFHeader
		}
		c.Session.CookieSecure = session.CookieSecure
	}
}

func WithRateLimit(limit RateLimitConfig) Option {
	return func(c *Config) {
		if limit.Max != 0 {
			c.RateLimit.Max = limit.Max
		}
		if limit.Window != 0 {
			c.RateLimit.Window = limit.Window
		}
	}
}

func WithCooldown(cooldown CooldownConfig) Option {
	return func(c *Config) {
		if cooldown.Window != 0 {
			c.Cooldown.Window = cooldown.Window
		}
	}
}

func WithPayout(payout PayoutConfig) Option {
	return func(c *Config) {
		if payout.Amount != 0 {
			c.Payout.Amount = payout.Amount
		}
		if payout.MinBalance != 0 {
			c.Payout.MinBalance = payout.MinBalance
		}
		if payout.MinScore != 0 {
			c.Payout.MinScore = payout.MinScore
		}
		if payout.AddressPrefix != "" {
			c.Payout.AddressPrefix = payout.AddressPrefix
		}
		if payout.AddressLength != 0 {
			c.Payout.AddressLength = payout.AddressLength
		}
	}
}

func WithStorage(storage StorageConfig) Option {
	return func(c *Config) {
		if storage.Provider != "" {
			c.Storage.Provider = storage.Provider
		}
		if envValue := os.Getenv(env.EnvRedisURL); envValue != "" {
			c.Storage.RedisURL = envValue
		} else if storage.RedisURL != "" {
			c.Storage.RedisURL = storage.RedisURL
		}
		if storage.DatabaseProvider != "" {
			c.Storage.DatabaseProvider = storage.DatabaseProvider
		}
		if envValue := os.Getenv(env.EnvDatabaseURL); envValue != "" {
			c.Storage.DatabaseURL = envValue
		} else if storage.DatabaseURL != "" {
			c.Storage.DatabaseURL = storage.DatabaseURL
		}
	}
}

func WithWallet(wallet WalletConfig) Option {
	return func(c *Config) {
		if envValue := os.Getenv(env.EnvWalletRPCURL); envValue != "" {
			c.Wallet.RPCURL = envValue
		} else if wallet.RPCURL != "" {
			c.Wallet.RPCURL = wallet.RPCURL
		}
		if wallet.Timeout != 0 {
			c.Wallet.Timeout = wallet.Timeout
		}
		if wallet.Fee != 0 {
			c.Wallet.Fee = wallet.Fee
		}
		if wallet.Mixin != 0 {
			c.Wallet.Mixin = wallet.Mixin
		}
		if wallet.Address != "" {
			c.Wallet.Address = wallet.Address
		}
	}
}

func WithAbuseLogPath(path string) Option {
	return func(c *Config) {
		if envValue := os.Getenv(env.EnvAbuseLogPath); envValue != "" {
			c.AbuseLogPath = envValue
		} else if path != "" {
			c.AbuseLogPath = path
		}
	}
}

func WithLogLevel(level string) Option {
	return func(c *Config) {
		if level != "" {
			c.LogLevel = level
		}
	}
}

func WithTrustProxy(trust bool) Option {
	return func(c *Config) {
		c.TrustProxy = trust
	}
}
