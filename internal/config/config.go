// Package config loads service settings from environment variables, with
// an optional .env file in the working directory.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/atmx/paper-engine/internal/model"
	"github.com/atmx/paper-engine/internal/strategy"
)

// Market data backends.
const (
	MarketSynthetic = "synthetic"
	MarketBinance   = "binance"
)

// Config holds all service configuration.
type Config struct {
	Port string

	// Persistence. DATABASE_URL selects PostgreSQL (with REDIS_URL as a
	// cache); otherwise SQLITE_PATH selects a local journal; otherwise
	// trades are kept in memory.
	DatabaseURL string
	RedisURL    string
	SQLitePath  string

	MarketData     string
	BinanceBaseURL string
	BinanceRPS     float64
	PriceCacheTTL  time.Duration
	SyntheticSeed  int64

	QuoteCurrency   string
	StartingCapital decimal.Decimal
	FeeRate         decimal.Decimal
	RiskLevel       int
	EnforceLimits   bool
	// MaxNotionalPerSymbol caps the open cost basis of any one symbol.
	// Zero disables the cap.
	MaxNotionalPerSymbol decimal.Decimal

	LogLevel slog.Level
}

// Load reads a .env file when present, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not read .env file", "err", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from a variable lookup function. Invalid
// values are rejected with model.ErrInvalidParameter.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	p := parser{lookup: lookup}
	c := &Config{
		Port:            p.str("PORT", "8080"),
		DatabaseURL:     p.str("DATABASE_URL", ""),
		RedisURL:        p.str("REDIS_URL", ""),
		SQLitePath:      p.str("SQLITE_PATH", ""),
		MarketData:      strings.ToLower(p.str("MARKET_DATA", MarketSynthetic)),
		BinanceBaseURL:  p.str("BINANCE_BASE_URL", "https://api.binance.com"),
		BinanceRPS:      p.float("BINANCE_RPS", 10),
		PriceCacheTTL:   p.duration("PRICE_CACHE_TTL", 30*time.Second),
		SyntheticSeed:   p.int64("SYNTHETIC_SEED", 42),
		QuoteCurrency:   strings.ToUpper(p.str("QUOTE_CURRENCY", "USDT")),
		StartingCapital: p.decimal("STARTING_CAPITAL", "10000"),
		FeeRate:         p.decimal("FEE_RATE", "0.001"),
		RiskLevel:       int(p.int64("RISK_LEVEL", strategy.DefaultRiskLevel)),
		EnforceLimits:   p.bool("ENFORCE_LIMITS", false),
		LogLevel:        p.level("LOG_LEVEL", slog.LevelInfo),

		MaxNotionalPerSymbol: p.decimal("MAX_NOTIONAL_PER_SYMBOL", "0"),
	}
	if p.err != nil {
		return nil, p.err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	switch {
	case c.MarketData != MarketSynthetic && c.MarketData != MarketBinance:
		return invalid("MARKET_DATA", c.MarketData, "want synthetic or binance")
	case c.BinanceRPS <= 0:
		return invalid("BINANCE_RPS", c.BinanceRPS, "must be positive")
	case c.PriceCacheTTL <= 0:
		return invalid("PRICE_CACHE_TTL", c.PriceCacheTTL, "must be positive")
	case c.QuoteCurrency == "":
		return invalid("QUOTE_CURRENCY", c.QuoteCurrency, "must not be empty")
	case !c.StartingCapital.IsPositive():
		return invalid("STARTING_CAPITAL", c.StartingCapital, "must be positive")
	case c.FeeRate.IsNegative() || c.FeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return invalid("FEE_RATE", c.FeeRate, "must be in [0, 1)")
	case c.RiskLevel < strategy.MinRiskLevel || c.RiskLevel > strategy.MaxRiskLevel:
		return invalid("RISK_LEVEL", c.RiskLevel, "must be 1-5")
	case c.MaxNotionalPerSymbol.IsNegative():
		return invalid("MAX_NOTIONAL_PER_SYMBOL", c.MaxNotionalPerSymbol, "must not be negative")
	}
	return nil
}

func invalid(key string, v any, why string) error {
	return fmt.Errorf("%w: %s=%v: %s", model.ErrInvalidParameter, key, v, why)
}

// parser reads typed values and keeps the first error.
type parser struct {
	lookup func(string) (string, bool)
	err    error
}

func (p *parser) raw(key string) (string, bool) {
	v, ok := p.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (p *parser) fail(key, v string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s=%q: %w", model.ErrInvalidParameter, key, v, err)
	}
}

func (p *parser) str(key, fallback string) string {
	if v, ok := p.raw(key); ok {
		return v
	}
	return fallback
}

func (p *parser) float(key string, fallback float64) float64 {
	v, ok := p.raw(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
	}
	return f
}

func (p *parser) int64(key string, fallback int64) int64 {
	v, ok := p.raw(key)
	if !ok {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.fail(key, v, err)
	}
	return n
}

func (p *parser) bool(key string, fallback bool) bool {
	v, ok := p.raw(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
	}
	return b
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v, ok := p.raw(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
	}
	return d
}

func (p *parser) decimal(key, fallback string) decimal.Decimal {
	v, ok := p.raw(key)
	if !ok {
		v = fallback
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		p.fail(key, v, err)
	}
	return d
}

func (p *parser) level(key string, fallback slog.Level) slog.Level {
	v, ok := p.raw(key)
	if !ok {
		return fallback
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		p.fail(key, v, err)
	}
	return l
}
