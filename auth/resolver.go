package auth

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Resolver owns the SigningParameters for one configuration. Parameters are
// resolved when the Resolver is built; readers load them without locking and
// Refresh replaces them wholesale, so a validation in flight always sees one
// consistent key.
type Resolver struct {
	src      DiscoverySource
	audience string
	timeout  time.Duration
	log      *slog.Logger

	current atomic.Pointer[SigningParameters]
	mu      sync.Mutex // serializes Refresh
}

// NewResolver resolves signing parameters from src immediately. A failure is
// a fatal KindConfiguration error; no Resolver is returned.
func NewResolver(ctx context.Context, src DiscoverySource, audience string, opts ...Option) (*Resolver, error) {
	cfg := newConfig(opts)
	r := &Resolver{src: src, audience: audience, timeout: cfg.discoveryTimeout, log: cfg.logger}
	p, err := r.resolve(ctx)
	if err != nil {
		return nil, err
	}
	r.current.Store(p)
	return r, nil
}

// StaticResolver wraps already resolved parameters. Refresh on a static
// resolver is a no-op.
func StaticResolver(p *SigningParameters) *Resolver {
	r := &Resolver{log: slog.New(slog.DiscardHandler)}
	r.current.Store(p)
	return r
}

// Parameters returns the current parameters.
func (r *Resolver) Parameters() *SigningParameters { return r.current.Load() }

// Refresh re-resolves from the source and swaps in the result. On failure
// the previous parameters stay in place and the error is returned.
func (r *Resolver) Refresh(ctx context.Context) error {
	if r.src == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.resolve(ctx)
	if err != nil {
		return err
	}
	prev := r.current.Swap(p)
	if prev == nil || prev.KeyID() != p.KeyID() {
		r.log.InfoContext(ctx, "auth.resolve.rotated", slog.String("kid", p.KeyID()), slog.String("issuer", p.Issuer()))
	}
	return nil
}

func (r *Resolver) resolve(ctx context.Context) (*SigningParameters, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	p, err := Resolve(ctx, r.src, r.audience)
	if err != nil {
		r.log.ErrorContext(ctx, "auth.resolve.fail", slog.Any("err", err))
		return nil, err
	}
	r.log.DebugContext(ctx, "auth.resolve.ok",
		slog.String("issuer", p.Issuer()),
		slog.String("kid", p.KeyID()),
		slog.Any("algs", p.algs),
	)
	return p, nil
}
