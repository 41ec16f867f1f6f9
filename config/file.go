package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// fileConfig is the TOML file shape. Durations are expressed in seconds so the
// file stays readable for operators.
type fileConfig struct {
	Environment    string   `toml:"environment"`
	Port           string   `toml:"port"`
	LogLevel       string   `toml:"log_level"`
	StrictOrigin   *bool    `toml:"strict_origin"`
	TrustProxy     *bool    `toml:"trust_proxy"`
	TrustedOrigins []string `toml:"trusted_origins"`
	AbuseLogPath   string   `toml:"abuse_log_path"`

	Session struct {
		TTLSeconds      int64  `toml:"ttl_seconds"`
		MinDwellSeconds int64  `toml:"min_dwell_seconds"`
		CookieName      string `toml:"cookie_name"`
		CSRFHeader      string `toml:"csrf_header"`
		CookieSecure    bool   `toml:"cookie_secure"`
	} `toml:"session"`

	RateLimit struct {
		Max           int64 `toml:"max"`
		WindowSeconds int64 `toml:"window_seconds"`
	} `toml:"rate_limit"`

	Cooldown struct {
		WindowSeconds int64 `toml:"window_seconds"`
	} `toml:"cooldown"`

	Payout struct {
		Amount        uint64 `toml:"amount"`
		MinBalance    uint64 `toml:"min_balance"`
		MinScore      int64  `toml:"min_score"`
		AddressPrefix string `toml:"address_prefix"`
		AddressLength int    `toml:"address_length"`
	} `toml:"payout"`

	Storage struct {
		Provider         string `toml:"provider"`
		RedisURL         string `toml:"redis_url"`
		DatabaseProvider string `toml:"database_provider"`
		DatabaseURL      string `toml:"database_url"`
	} `toml:"storage"`

	Wallet struct {
		RPCURL         string `toml:"rpc_url"`
		TimeoutSeconds int64  `toml:"timeout_seconds"`
		Fee            uint64 `toml:"fee"`
		Mixin          int    `toml:"mixin"`
		Address        string `toml:"address"`
	} `toml:"wallet"`
}

func seconds(n int64) time.Duration {
	return time.Duration(n) * time.Second
}

// Load reads a TOML config file and builds a Config from it, with environment
// variables taking precedence over file values. A missing file is not an
// error; defaults apply.
func Load(path string) (*Config, error) {
	var fc fileConfig

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &fc); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	options := []Option{
		WithEnvironment(fc.Environment),
		WithPort(fc.Port),
		WithLogLevel(fc.LogLevel),
		WithTrustedOrigins(fc.TrustedOrigins),
		WithAbuseLogPath(fc.AbuseLogPath),
		WithSession(SessionConfig{
			TTL:          seconds(fc.Session.TTLSeconds),
			MinDwell:     seconds(fc.Session.MinDwellSeconds),
			CookieName:   fc.Session.CookieName,
			CSRFHeader:   fc.Session.CSRFHeader,
			CookieSecure: fc.Session.CookieSecure,
		}),
		WithRateLimit(RateLimitConfig{
			Max:    fc.RateLimit.Max,
			Window: seconds(fc.RateLimit.WindowSeconds),
		}),
		WithCooldown(CooldownConfig{
			Window: seconds(fc.Cooldown.WindowSeconds),
		}),
		WithPayout(PayoutConfig{
			Amount:        fc.Payout.Amount,
			MinBalance:    fc.Payout.MinBalance,
			MinScore:      fc.Payout.MinScore,
			AddressPrefix: fc.Payout.AddressPrefix,
			AddressLength: fc.Payout.AddressLength,
		}),
		WithStorage(StorageConfig{
			Provider:         fc.Storage.Provider,
			RedisURL:         fc.Storage.RedisURL,
			DatabaseProvider: fc.Storage.DatabaseProvider,
			DatabaseURL:      fc.Storage.DatabaseURL,
		}),
		WithWallet(WalletConfig{
			RPCURL:  fc.Wallet.RPCURL,
			Timeout: seconds(fc.Wallet.TimeoutSeconds),
			Fee:     fc.Wallet.Fee,
			Mixin:   fc.Wallet.Mixin,
			Address: fc.Wallet.Address,
		}),
	}

	if fc.StrictOrigin != nil {
		options = append(options, WithStrictOrigin(*fc.StrictOrigin))
	}
	if fc.TrustProxy != nil {
		options = append(options, WithTrustProxy(*fc.TrustProxy))
	}

	return NewConfig(options...), nil
}
