package auth

import (
	"log/slog"
	"time"
)

// Option configures a Gate or Resolver.
type Option func(*config)

type config struct {
	logger           *slog.Logger
	discoveryTimeout time.Duration
	validator        Validator
	evaluator        Evaluator
}

func newConfig(opts []Option) *config {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	return cfg
}

// WithLogger sets the logger. If not provided, logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithDiscoveryTimeout bounds each metadata fetch. A fetch that exceeds it
// fails with a configuration error.
func WithDiscoveryTimeout(d time.Duration) Option {
	return func(c *config) { c.discoveryTimeout = d }
}

// WithAllowedAlgs restricts accepted JWS algorithms to the intersection of
// algs and what the signing key supports. "none" is never allowed.
func WithAllowedAlgs(algs ...string) Option {
	return func(c *config) { c.validator.AllowedAlgs = append([]string(nil), algs...) }
}

// WithLeeway sets clock skew tolerance for exp, nbf and iat.
func WithLeeway(d time.Duration) Option {
	return func(c *config) { c.validator.Leeway = d }
}

// WithClock overrides the clock used for time-based claims.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.validator.Clock = now }
}

// WithScopeClaim changes the claim holding granted scopes. Default "scope".
func WithScopeClaim(name string) Option {
	return func(c *config) { c.evaluator.ScopeClaim = name }
}

// WithRoleClaims replaces the claim types consulted for granted roles.
func WithRoleClaims(types ...string) Option {
	return func(c *config) { c.evaluator.RoleClaims = append([]string(nil), types...) }
}

// WithScopeCaseFolding makes scope matching case-insensitive.
func WithScopeCaseFolding(fold bool) Option {
	return func(c *config) { c.evaluator.FoldScopeCase = fold }
}
