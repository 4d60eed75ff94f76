package auth

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config is the declarative form of a Gate configuration. It can be loaded
// from the environment with ConfigFromEnv. Exactly one key source is used,
// in this order of precedence: KeysFile, JWKSURL, DiscoveryURL, Issuer.
//
// A zero value is invalid; populate it and call Validate.
type Config struct {
	// Issuer is the authorization server issuer URL. Required unless
	// DiscoveryURL is set. ENV: BEARERGATE_ISSUER
	Issuer string `env:"BEARERGATE_ISSUER"`
	// Audience is the expected "aud" claim. ENV: BEARERGATE_AUDIENCE
	Audience string `env:"BEARERGATE_AUDIENCE"`
	// DiscoveryURL is a full OpenID discovery document URL. ENV: BEARERGATE_DISCOVERY_URL
	DiscoveryURL string `env:"BEARERGATE_DISCOVERY_URL"`
	// JWKSURL skips discovery and reads keys directly. Requires Issuer.
	// ENV: BEARERGATE_JWKS_URL
	JWKSURL string `env:"BEARERGATE_JWKS_URL"`
	// KeysFile reads keys from a local JSON file. Requires Issuer unless the
	// file names one. ENV: BEARERGATE_KEYS_FILE
	KeysFile string `env:"BEARERGATE_KEYS_FILE"`

	DiscoveryTimeout time.Duration `env:"BEARERGATE_DISCOVERY_TIMEOUT,default=10s"`
	Leeway           time.Duration `env:"BEARERGATE_LEEWAY,default=0s"`
	// AllowedAlgs is semicolon separated in the environment.
	AllowedAlgs []string `env:"BEARERGATE_ALLOWED_ALGS"`
	// CacheTTL controls how long shared metadata caches keep a document.
	CacheTTL time.Duration `env:"BEARERGATE_CACHE_TTL,default=15m"`
	// FoldScopeCase enables case-insensitive scope matching.
	FoldScopeCase bool `env:"BEARERGATE_FOLD_SCOPE_CASE,default=false"`
}

// ConfigFromEnv decodes a Config from the environment and normalizes it.
// It does not validate.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Normalize fills defaults and trims whitespace in place.
func (c *Config) Normalize() {
	c.Issuer = strings.TrimSpace(c.Issuer)
	c.Audience = strings.TrimSpace(c.Audience)
	c.DiscoveryURL = strings.TrimSpace(c.DiscoveryURL)
	c.JWKSURL = strings.TrimSpace(c.JWKSURL)
	c.KeysFile = strings.TrimSpace(c.KeysFile)
	if c.DiscoveryTimeout == 0 {
		c.DiscoveryTimeout = 10 * time.Second
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 15 * time.Minute
	}
	algs := c.AllowedAlgs[:0:0]
	for _, a := range c.AllowedAlgs {
		if a = strings.TrimSpace(a); a != "" {
			algs = append(algs, a)
		}
	}
	c.AllowedAlgs = algs
}

// Validate returns a KindConfiguration error if required invariants are not
// met.
func (c Config) Validate() error {
	invalid := func(msg string) error { return NewError(KindConfiguration, ReasonInvalidConfig, msg) }
	if c.Audience == "" {
		return invalid("audience is required")
	}
	switch {
	case c.KeysFile != "":
	case c.JWKSURL != "":
		if c.Issuer == "" {
			return invalid("issuer is required with a JWKS URL")
		}
		if err := checkURL(c.JWKSURL); err != nil {
			return invalid("jwks url: " + err.Error())
		}
	case c.DiscoveryURL != "":
		if err := checkURL(c.DiscoveryURL); err != nil {
			return invalid("discovery url: " + err.Error())
		}
	case c.Issuer != "":
		if err := checkURL(c.Issuer); err != nil {
			return invalid("issuer: " + err.Error())
		}
	default:
		return invalid("one of issuer, discovery url, jwks url or keys file is required")
	}
	if c.DiscoveryTimeout < 0 || c.Leeway < 0 || c.CacheTTL < 0 {
		return invalid("durations must not be negative")
	}
	return nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is required")
	}
	return nil
}

// Copy returns a deep copy safe for mutation by the caller.
func (c Config) Copy() Config {
	dup := c
	dup.AllowedAlgs = append([]string(nil), c.AllowedAlgs...)
	return dup
}

// Options translates the validation and evaluation settings into Gate
// options.
func (c Config) Options() []Option {
	opts := []Option{
		WithDiscoveryTimeout(c.DiscoveryTimeout),
		WithLeeway(c.Leeway),
		WithScopeCaseFolding(c.FoldScopeCase),
	}
	if len(c.AllowedAlgs) > 0 {
		opts = append(opts, WithAllowedAlgs(c.AllowedAlgs...))
	}
	return opts
}
