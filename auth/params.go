package auth

import (
	"context"
	"crypto"
	"errors"
	"fmt"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/ggoodman/bearergate/internal/jwtauth"
)

// Metadata is what a DiscoverySource reports about the identity provider.
type Metadata struct {
	Issuer string `json:"issuer"`
	// JWKSURI is informational; it is empty for sources that are not backed
	// by a remote key set.
	JWKSURI string             `json:"jwks_uri,omitempty"`
	Keys    []jose.JSONWebKey `json:"keys"`
}

// DiscoverySource yields provider metadata. Implementations perform I/O and
// must honor ctx cancellation.
type DiscoverySource interface {
	FetchMetadata(ctx context.Context) (*Metadata, error)
}

// SourceFunc adapts a function to DiscoverySource.
type SourceFunc func(ctx context.Context) (*Metadata, error)

func (f SourceFunc) FetchMetadata(ctx context.Context) (*Metadata, error) { return f(ctx) }

// SigningParameters is the resolved trust anchor for token validation. It is
// immutable and safe to share between goroutines.
type SigningParameters struct {
	key      jose.JSONWebKey
	algs     []string
	issuer   string
	audience string
}

// NewSigningParameters builds parameters from explicit key material, for
// callers that do not use discovery. key may be a private key, in which case
// only its public half is kept.
func NewSigningParameters(key jose.JSONWebKey, issuer, audience string) (*SigningParameters, error) {
	if issuer == "" {
		return nil, NewError(KindConfiguration, ReasonInvalidConfig, "issuer is required")
	}
	if audience == "" {
		return nil, NewError(KindConfiguration, ReasonInvalidConfig, "audience is required")
	}
	k, ok := jwtauth.FirstSigningKey([]jose.JSONWebKey{key})
	if !ok {
		return nil, NewError(KindConfiguration, ReasonNoSigningKey, "")
	}
	algs := jwtauth.Algorithms(k)
	if len(algs) == 0 {
		return nil, newError(KindConfiguration, ReasonNoSigningKey, fmt.Errorf("unsupported key type %T", k.Key))
	}
	return &SigningParameters{key: k, algs: algs, issuer: issuer, audience: audience}, nil
}

// Key returns the public verification key.
func (p *SigningParameters) Key() crypto.PublicKey { return p.key.Key }

// KeyID returns the "kid" of the selected key, possibly empty.
func (p *SigningParameters) KeyID() string { return p.key.KeyID }

// Algorithms returns the JWS algorithms the key may verify.
func (p *SigningParameters) Algorithms() []string { return append([]string(nil), p.algs...) }

func (p *SigningParameters) Issuer() string   { return p.issuer }
func (p *SigningParameters) Audience() string { return p.audience }

// Resolve fetches metadata from src and selects the first usable signing
// key. The issuer comes from the provider, the audience from the caller. Any
// failure is a KindConfiguration error.
func Resolve(ctx context.Context, src DiscoverySource, audience string) (*SigningParameters, error) {
	if src == nil {
		return nil, NewError(KindConfiguration, ReasonInvalidConfig, "discovery source is required")
	}
	if audience == "" {
		return nil, NewError(KindConfiguration, ReasonInvalidConfig, "audience is required")
	}
	meta, err := src.FetchMetadata(ctx)
	if err != nil {
		var e *Error
		if errors.As(err, &e) && e.kind == KindConfiguration {
			return nil, e
		}
		return nil, newError(KindConfiguration, ReasonDiscoveryFailed, err)
	}
	if meta == nil || meta.Issuer == "" {
		return nil, newError(KindConfiguration, ReasonDiscoveryFailed, errors.New("metadata has no issuer"))
	}
	key, ok := jwtauth.FirstSigningKey(meta.Keys)
	if !ok {
		return nil, newError(KindConfiguration, ReasonNoSigningKey, fmt.Errorf("%d keys published, none usable for signatures", len(meta.Keys)))
	}
	return NewSigningParameters(key, meta.Issuer, audience)
}
