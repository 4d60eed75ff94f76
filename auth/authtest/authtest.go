// Package authtest provides key material, token minting and fake identity
// providers for tests of code built on package auth.
package authtest

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ggoodman/bearergate/auth"
)

// Signer holds an RSA key pair and mints RS256 tokens for one issuer and
// audience.
type Signer struct {
	Key      *rsa.PrivateKey
	KeyID    string
	Issuer   string
	Audience string
}

// NewSigner generates a fresh 2048-bit RSA key.
func NewSigner(tb testing.TB, issuer, audience string) *Signer {
	tb.Helper()
	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		tb.Fatalf("gen key: %v", err)
	}
	return &Signer{Key: pk, KeyID: "test-key", Issuer: issuer, Audience: audience}
}

// JWK returns the public key as a JWK.
func (s *Signer) JWK() jose.JSONWebKey {
	return jose.JSONWebKey{Key: &s.Key.PublicKey, KeyID: s.KeyID, Algorithm: "RS256", Use: "sig"}
}

// JWKS returns the JSON encoding of a key set holding only JWK.
func (s *Signer) JWKS(tb testing.TB) []byte {
	tb.Helper()
	set := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{s.JWK()}}
	b, err := json.Marshal(set)
	if err != nil {
		tb.Fatalf("marshal jwks: %v", err)
	}
	return b
}

// Metadata returns provider metadata advertising the signer's key.
func (s *Signer) Metadata() *auth.Metadata {
	return &auth.Metadata{Issuer: s.Issuer, Keys: []jose.JSONWebKey{s.JWK()}}
}

// Source returns a DiscoverySource that always reports Metadata.
func (s *Signer) Source() auth.DiscoverySource {
	return auth.SourceFunc(func(ctx context.Context) (*auth.Metadata, error) {
		return s.Metadata(), nil
	})
}

// Parameters returns signing parameters for the signer's key.
func (s *Signer) Parameters(tb testing.TB) *auth.SigningParameters {
	tb.Helper()
	p, err := auth.NewSigningParameters(s.JWK(), s.Issuer, s.Audience)
	if err != nil {
		tb.Fatalf("signing parameters: %v", err)
	}
	return p
}

// Claims returns registered claims valid for an hour from now, merged with
// extra. Entries in extra override the defaults; a nil value removes one.
func (s *Signer) Claims(extra map[string]any) jwt.MapClaims {
	now := time.Now()
	c := jwt.MapClaims{
		"iss": s.Issuer,
		"sub": "user-123",
		"aud": s.Audience,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	for k, v := range extra {
		if v == nil {
			delete(c, k)
			continue
		}
		c[k] = v
	}
	return c
}

// Sign signs claims with RS256 and the signer's key id.
func (s *Signer) Sign(tb testing.TB, claims jwt.MapClaims) string {
	tb.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = s.KeyID
	out, err := tok.SignedString(s.Key)
	if err != nil {
		tb.Fatalf("sign: %v", err)
	}
	return out
}

// Token is Sign(Claims(extra)).
func (s *Signer) Token(tb testing.TB, extra map[string]any) string {
	tb.Helper()
	return s.Sign(tb, s.Claims(extra))
}

// Provider is an httptest OpenID provider serving a discovery document and
// a JWKS.
type Provider struct {
	Server *httptest.Server
	Issuer string
	// Meta holds extra discovery fields; an empty string value removes a
	// default field.
	Meta map[string]any

	jwks           atomic.Pointer[[]byte]
	discoveryHits  atomic.Int64
	jwksHits       atomic.Int64
	jwksStatusCode atomic.Int64
}

// NewProvider starts a provider publishing jwks. It is closed by tb.Cleanup.
func NewProvider(tb testing.TB, jwks []byte) *Provider {
	tb.Helper()
	p := &Provider{Meta: map[string]any{}}
	p.SetJWKS(jwks)
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		p.discoveryHits.Add(1)
		meta := map[string]any{
			"issuer":                   p.Issuer,
			"jwks_uri":                 p.Issuer + "/keys",
			"authorization_endpoint":   p.Issuer + "/oauth2/auth",
			"token_endpoint":           p.Issuer + "/oauth2/token",
			"response_types_supported": []string{"code"},
		}
		for k, v := range p.Meta {
			if s, ok := v.(string); ok && s == "" {
				delete(meta, k)
				continue
			}
			meta[k] = v
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(meta)
	})
	mux.HandleFunc("/keys", func(w http.ResponseWriter, r *http.Request) {
		p.jwksHits.Add(1)
		if code := p.jwksStatusCode.Load(); code != 0 {
			w.WriteHeader(int(code))
			return
		}
		w.Header().Set("Content-Type", "application/jwk-set+json")
		_, _ = w.Write(*p.jwks.Load())
	})
	p.Server = httptest.NewServer(mux)
	p.Issuer = p.Server.URL
	tb.Cleanup(p.Server.Close)
	return p
}

// SetJWKS replaces the published key set.
func (p *Provider) SetJWKS(jwks []byte) {
	b := append([]byte(nil), jwks...)
	p.jwks.Store(&b)
}

// FailJWKS makes the key endpoint answer with status code; zero restores it.
func (p *Provider) FailJWKS(code int) { p.jwksStatusCode.Store(int64(code)) }

// JWKSURL returns the URL of the key endpoint.
func (p *Provider) JWKSURL() string { return p.Issuer + "/keys" }

// DiscoveryHits returns the number of discovery document requests served.
func (p *Provider) DiscoveryHits() int64 { return p.discoveryHits.Load() }

// JWKSHits returns the number of key set requests served.
func (p *Provider) JWKSHits() int64 { return p.jwksHits.Load() }

// Fixed is a checker that returns the same result for every token. It is
// useful for exercising HTTP plumbing without real tokens.
type Fixed struct {
	Result *auth.TokenResult
}

// Check returns f.Result.
func (f Fixed) Check(ctx context.Context, raw string, policy auth.TokenPolicy) *auth.TokenResult {
	return f.Result
}
