// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values. An optional '.env'
file in the working directory is loaded first via 'joho/godotenv'; variables
already present in the environment win.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, Auth) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/netip"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// # Environments

const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// # Configuration Schema

// Config holds all runtime configuration for the Counsel API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// Key-Value Store (Redis)
	RedisURL string `env:"REDIS_URL,required,notEmpty"`

	// Token signing. The two secrets must differ.
	JWTAccessSecret  string        `env:"JWT_ACCESS_SECRET,required,notEmpty"`
	JWTRefreshSecret string        `env:"JWT_REFRESH_SECRET,required,notEmpty"`
	AccessTokenTTL   time.Duration `env:"ACCESS_TOKEN_TTL"  envDefault:"1h"`
	RefreshTokenTTL  time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`

	// Account lockout
	LockoutThreshold int           `env:"LOCKOUT_THRESHOLD" envDefault:"5"`
	LockoutDuration  time.Duration `env:"LOCKOUT_DURATION"  envDefault:"15m"`

	// One-time tokens
	ResetTokenTTL        time.Duration `env:"RESET_TOKEN_TTL"        envDefault:"1h"`
	VerificationTokenTTL time.Duration `env:"VERIFICATION_TOKEN_TTL" envDefault:"24h"`

	// ExposeResetToken echoes reset tokens in the forgot-password response.
	// It is ignored in production; see [Config.ShouldExposeResetToken].
	ExposeResetToken bool `env:"EXPOSE_RESET_TOKEN" envDefault:"true"`

	// BcryptCost is the password hashing work factor.
	BcryptCost int `env:"BCRYPT_COST" envDefault:"10"`

	// Cross-Origin Resource Sharing
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	// Per-IP rate limiting
	RateLimitRPS           float64 `env:"RATE_LIMIT_RPS"             envDefault:"100"`
	RateLimitBurst         int     `env:"RATE_LIMIT_BURST"           envDefault:"150"`
	AuthRateLimitPerMinute int     `env:"AUTH_RATE_LIMIT_PER_MINUTE" envDefault:"20"`

	// TrustedProxies lists the peers (IPs or CIDRs) whose X-Real-IP and
	// X-Forwarded-For headers are believed. Empty means no proxy is trusted.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

// # Configuration Loading

// Load reads an optional .env file, parses environment variables into a
// [Config] struct and validates the result.
func Load() (*Config, error) {

	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: failed to read .env: %w", err)
	}

	cfg := &Config{}

	// This will fail if any field marked with 'required' is missing or empty.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	var problems []string

	switch c.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		problems = append(problems, fmt.Sprintf("ENVIRONMENT must be one of %s, %s, %s", EnvDevelopment, EnvStaging, EnvProduction))
	}

	if c.JWTAccessSecret == c.JWTRefreshSecret {
		problems = append(problems, "JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		problems = append(problems, "token lifetimes must be positive")
	}
	if c.LockoutThreshold < 1 {
		problems = append(problems, "LOCKOUT_THRESHOLD must be at least 1")
	}
	if c.LockoutDuration <= 0 {
		problems = append(problems, "LOCKOUT_DURATION must be positive")
	}
	if c.ResetTokenTTL <= 0 || c.VerificationTokenTTL <= 0 {
		problems = append(problems, "one-time token lifetimes must be positive")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 || c.AuthRateLimitPerMinute < 1 {
		problems = append(problems, "rate limits must be positive")
	}

	for _, proxy := range c.TrustedProxies {
		if _, err := parseProxy(proxy); err != nil {
			problems = append(problems, fmt.Sprintf("TRUSTED_PROXIES entry %q is not an IP or CIDR", proxy))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// ShouldExposeResetToken reports whether reset tokens may be echoed to the client.
// Production never echoes them, whatever EXPOSE_RESET_TOKEN says.
func (c *Config) ShouldExposeResetToken() bool {
	return c.ExposeResetToken && !c.IsProduction()
}

// TrustedProxyPrefixes returns TRUSTED_PROXIES as prefixes; a bare IP becomes
// a single-address prefix. Invalid entries are skipped, Validate reports them.
func (c *Config) TrustedProxyPrefixes() []netip.Prefix {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, proxy := range c.TrustedProxies {
		if prefix, err := parseProxy(proxy); err == nil {
			prefixes = append(prefixes, prefix)
		}
	}
	return prefixes
}

func parseProxy(value string) (netip.Prefix, error) {
	value = strings.TrimSpace(value)
	if strings.Contains(value, "/") {
		prefix, err := netip.ParsePrefix(value)
		if err != nil {
			return netip.Prefix{}, err
		}
		return prefix.Masked(), nil
	}
	addr, err := netip.ParseAddr(value)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}
