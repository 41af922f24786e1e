// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/cropchain/yield-exchange/internal/trends"
	"github.com/cropchain/yield-exchange/internal/wallet"
)

// Config is the resolved service configuration.
type Config struct {
	Port     string
	LogLevel slog.Level

	DatabaseURL      string
	DatabaseMaxConns int32
	RedisURL         string
	CacheTTL         time.Duration

	SimulatedLatency time.Duration
	SeedFixtures     bool

	WalletAddress string
	WalletBalance decimal.Decimal
	WalletNetwork string

	DeclinedTokens []string

	MaxUnitsPerToken  int64
	MaxRegionExposure decimal.Decimal

	TrendsWindowDays int
}

func defaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("database_url", "")
	v.SetDefault("database_max_conns", 5)
	v.SetDefault("redis_url", "")
	v.SetDefault("cache_ttl", "30s")
	v.SetDefault("simulated_latency", "0s")
	v.SetDefault("seed_fixtures", true)
	v.SetDefault("wallet_address", "")
	v.SetDefault("wallet_balance", "0")
	v.SetDefault("wallet_network", "Ethereum")
	v.SetDefault("declined_tokens", "")
	v.SetDefault("max_units_per_token", 0)
	v.SetDefault("max_region_exposure", "0")
	v.SetDefault("trends_window_days", trends.DefaultWindow)
}

// Load reads the environment (PORT, DATABASE_URL, ...) over the defaults
// and validates the result.
func Load() (*Config, error) {
	v := viper.New()
	defaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Port:             v.GetString("port"),
		DatabaseURL:      v.GetString("database_url"),
		DatabaseMaxConns: v.GetInt32("database_max_conns"),
		RedisURL:         v.GetString("redis_url"),
		CacheTTL:         v.GetDuration("cache_ttl"),
		SimulatedLatency: v.GetDuration("simulated_latency"),
		SeedFixtures:     v.GetBool("seed_fixtures"),
		WalletNetwork:    v.GetString("wallet_network"),
		DeclinedTokens:   splitList(v.GetString("declined_tokens")),
		MaxUnitsPerToken: v.GetInt64("max_units_per_token"),
		TrendsWindowDays: v.GetInt("trends_window_days"),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return nil, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}

	var err error
	if cfg.WalletBalance, err = decimal.NewFromString(v.GetString("wallet_balance")); err != nil {
		return nil, fmt.Errorf("config: WALLET_BALANCE: %w", err)
	}
	if cfg.MaxRegionExposure, err = decimal.NewFromString(v.GetString("max_region_exposure")); err != nil {
		return nil, fmt.Errorf("config: MAX_REGION_EXPOSURE: %w", err)
	}

	if addr := strings.TrimSpace(v.GetString("wallet_address")); addr != "" {
		if cfg.WalletAddress, err = wallet.NormalizeAddress(addr); err != nil {
			return nil, fmt.Errorf("config: WALLET_ADDRESS: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges that the environment parsing cannot.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Port, validation.Required),
		validation.Field(&c.DatabaseMaxConns, validation.Required, validation.Min(int32(1))),
		validation.Field(&c.CacheTTL, validation.Min(time.Duration(0))),
		validation.Field(&c.SimulatedLatency, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxUnitsPerToken, validation.Min(int64(0))),
		validation.Field(&c.TrendsWindowDays, validation.Required, validation.Min(1), validation.Max(366)),
	)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.MaxRegionExposure.IsNegative() {
		return fmt.Errorf("config: MAX_REGION_EXPOSURE must not be negative")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
