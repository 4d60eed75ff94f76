package auth

import (
	"context"
	"fmt"
	"log/slog"
)

// Gate is the complete check pipeline: cached signing parameters, token
// validation and policy evaluation. A Gate is safe for concurrent use.
type Gate struct {
	resolver  *Resolver
	validator Validator
	evaluator Evaluator
	log       *slog.Logger
}

// NewGate resolves signing parameters from src and returns a ready Gate.
// Resolution failure is returned as a KindConfiguration error.
func NewGate(ctx context.Context, src DiscoverySource, audience string, opts ...Option) (*Gate, error) {
	r, err := NewResolver(ctx, src, audience, opts...)
	if err != nil {
		return nil, err
	}
	return newGate(r, opts), nil
}

// NewGateWithParameters returns a Gate over injected parameters.
func NewGateWithParameters(p *SigningParameters, opts ...Option) (*Gate, error) {
	if p == nil {
		return nil, NewError(KindConfiguration, ReasonInvalidConfig, "signing parameters are required")
	}
	return newGate(StaticResolver(p), opts), nil
}

func newGate(r *Resolver, opts []Option) *Gate {
	cfg := newConfig(opts)
	return &Gate{resolver: r, validator: cfg.validator, evaluator: cfg.evaluator, log: cfg.logger}
}

// Parameters returns the signing parameters currently in use.
func (g *Gate) Parameters() *SigningParameters { return g.resolver.Parameters() }

// Refresh re-resolves signing parameters. See Resolver.Refresh.
func (g *Gate) Refresh(ctx context.Context) error { return g.resolver.Refresh(ctx) }

// Check validates raw and evaluates policy, returning a terminal result.
// Tokens that fail validation never reach policy evaluation. A panic while
// processing claims yields a KindUnexpected result.
func (g *Gate) Check(ctx context.Context, raw string, policy TokenPolicy) (res *TokenResult) {
	defer func() {
		if r := recover(); r != nil {
			g.log.ErrorContext(ctx, "auth.check.panic", slog.Any("panic", r))
			res = FailedResult(newError(KindUnexpected, ReasonInternal, fmt.Errorf("panic: %v", r)), nil)
		}
	}()
	params := g.resolver.Parameters()
	claims, err := g.validator.Validate(raw, params)
	if err != nil {
		g.log.InfoContext(ctx, "auth.check.unauthenticated", slog.Any("err", err))
		return FailedResult(err, nil)
	}
	if err := g.evaluator.Explain(claims, policy); err != nil {
		g.log.InfoContext(ctx, "auth.check.unauthorized", slog.String("sub", claims.Subject()), slog.Any("err", err))
		return FailedResult(err, claims)
	}
	g.log.DebugContext(ctx, "auth.check.ok", slog.String("sub", claims.Subject()))
	return ValidResult(claims)
}

// Require is the strict form of Check. It returns the claims of a Valid
// token or the classified *Error.
func (g *Gate) Require(ctx context.Context, raw string, policy TokenPolicy) (*Claims, error) {
	return g.Check(ctx, raw, policy).Require()
}
