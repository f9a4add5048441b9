// Package config assembles runtime settings from defaults, an optional .env
// file, AUTHD_* environment variables and command-line flags, in that order
// of increasing precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DevSecretKey is the default signing secret. It must be replaced in production.
const DevSecretKey = "insecure-development-secret-change-me"

// Config holds runtime settings for the authd service and its tools.
type Config struct {
	HTTPAddr        string
	GRPCAddr        string
	DatabaseDSN     string
	ShutdownTimeout time.Duration

	SecretKey    string
	KeyID        string
	PreviousKeys string // "kid:secret,kid:secret"
	Issuer       string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration

	PasswordHasher         string
	BcryptCost             int
	RevokeOnPasswordChange bool

	RateBurst    int
	RatePerSec   int
	MaxBodyBytes int64
	// TrustedProxies lists CIDRs or addresses whose X-Forwarded-For is
	// honored. Empty means the peer address is always the client.
	TrustedProxies string

	LogLevel string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":8080"
	c.GRPCAddr = ":9090"
	c.DatabaseDSN = ""
	c.ShutdownTimeout = 10 * time.Second
	c.SecretKey = DevSecretKey
	c.KeyID = "k1"
	c.Issuer = "authd"
	c.AccessTTL = 15 * time.Minute
	c.RefreshTTL = 14 * 24 * time.Hour
	c.PasswordHasher = "bcrypt"
	c.BcryptCost = 12
	c.RateBurst = 10
	c.RatePerSec = 5
	c.MaxBodyBytes = 1 << 20
	c.LogLevel = "info"
}

// FromEnv applies defaults, the .env file named by AUTHD_ENV_FILE (default
// ".env", missing is fine) and AUTHD_* variables. Variables already set in
// the process environment win over the file.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	path := os.Getenv("AUTHD_ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is FromEnv followed by command-line flags, then validation.
func Load(name string, args []string) (*Config, error) {
	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.parseFlags(name, args, io.Discard); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str("AUTHD_HTTP_ADDR", &cfg.HTTPAddr)
	str("AUTHD_GRPC_ADDR", &cfg.GRPCAddr)
	str("AUTHD_PG_DSN", &cfg.DatabaseDSN)
	dur("AUTHD_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)
	str("AUTHD_SECRET_KEY", &cfg.SecretKey)
	str("AUTHD_KEY_ID", &cfg.KeyID)
	str("AUTHD_PREVIOUS_KEYS", &cfg.PreviousKeys)
	str("AUTHD_ISSUER", &cfg.Issuer)
	dur("AUTHD_ACCESS_TTL", &cfg.AccessTTL)
	dur("AUTHD_REFRESH_TTL", &cfg.RefreshTTL)
	str("AUTHD_PASSWORD_HASHER", &cfg.PasswordHasher)
	num("AUTHD_BCRYPT_COST", &cfg.BcryptCost)
	num("AUTHD_RATE_BURST", &cfg.RateBurst)
	num("AUTHD_RATE_PER_SEC", &cfg.RatePerSec)
	str("AUTHD_TRUSTED_PROXIES", &cfg.TrustedProxies)
	str("AUTHD_LOG_LEVEL", &cfg.LogLevel)

	if v, ok := lookup("AUTHD_MAX_BODY_BYTES"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("AUTHD_MAX_BODY_BYTES: %w", err))
		} else {
			cfg.MaxBodyBytes = n
		}
	}
	if v, ok := lookup("AUTHD_REVOKE_ON_PASSWORD_CHANGE"); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("AUTHD_REVOKE_ON_PASSWORD_CHANGE: %w", err))
		} else {
			cfg.RevokeOnPasswordChange = b
		}
	}
	return errors.Join(errs...)
}

func (c *Config) parseFlags(name string, args []string, output io.Writer) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&c.HTTPAddr, "http", c.HTTPAddr, "HTTP listen address")
	fs.StringVar(&c.GRPCAddr, "grpc", c.GRPCAddr, "gRPC health listen address (empty disables)")
	fs.StringVar(&c.DatabaseDSN, "dsn", c.DatabaseDSN, "PostgreSQL DSN (empty uses the in-memory store)")
	fs.StringVar(&c.SecretKey, "secret", c.SecretKey, "HS256 signing secret")
	fs.StringVar(&c.KeyID, "kid", c.KeyID, "key id stamped on new tokens")
	fs.StringVar(&c.Issuer, "issuer", c.Issuer, "token issuer claim")
	fs.DurationVar(&c.AccessTTL, "access-ttl", c.AccessTTL, "access token lifetime")
	fs.DurationVar(&c.RefreshTTL, "refresh-ttl", c.RefreshTTL, "refresh token lifetime")
	fs.StringVar(&c.PasswordHasher, "hasher", c.PasswordHasher, "password hasher: bcrypt or argon2id")
	fs.BoolVar(&c.RevokeOnPasswordChange, "revoke-on-password-change", c.RevokeOnPasswordChange,
		"reject tokens issued before the last password change")
	fs.StringVar(&c.TrustedProxies, "trusted-proxies", c.TrustedProxies,
		"comma-separated CIDRs of reverse proxies allowed to set X-Forwarded-For")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error")

	return fs.Parse(args)
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if len(c.SecretKey) < 32 {
		errs = append(errs, errors.New("secret key must be at least 32 bytes"))
	}
	if strings.TrimSpace(c.KeyID) == "" {
		errs = append(errs, errors.New("key id is required"))
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	if c.AccessTTL >= c.RefreshTTL {
		errs = append(errs, errors.New("access ttl must be shorter than refresh ttl"))
	}
	switch strings.ToLower(c.PasswordHasher) {
	case "bcrypt", "argon2id":
	default:
		errs = append(errs, fmt.Errorf("unsupported password hasher %q", c.PasswordHasher))
	}
	if c.RateBurst <= 0 || c.RatePerSec <= 0 {
		errs = append(errs, errors.New("rate limit values must be positive"))
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// TrustedProxyPrefixes parses TrustedProxies. Bare addresses become
// single-host prefixes.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, item := range strings.Split(c.TrustedProxies, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if strings.Contains(item, "/") {
			p, err := netip.ParsePrefix(item)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", item, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", item, err)
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}
