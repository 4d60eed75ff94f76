package auth_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ggoodman/bearergate/auth"
	"github.com/ggoodman/bearergate/auth/authtest"
)

func TestGateCheckAndRequireAgree(t *testing.T) {
	signer := authtest.NewSigner(t, testIssuer, testAudience)
	gate, err := auth.NewGate(context.Background(), signer.Source(), testAudience)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	policy := auth.NewPolicy(auth.RequireAnyScope("read", "write"), auth.RequireAnyRole("user"))
	past := time.Now().Add(-time.Hour).Unix()

	tests := []struct {
		name    string
		token   string
		verdict auth.Verdict
		kind    auth.Kind
	}{
		{name: "valid", token: signer.Token(t, map[string]any{"scope": "write read", "role": "user"}), verdict: auth.Valid},
		{name: "missing role", token: signer.Token(t, map[string]any{"scope": "read", "role": "nonuser"}), verdict: auth.Unauthorized, kind: auth.KindAuthorization},
		{name: "missing token", token: "", verdict: auth.Unauthenticated, kind: auth.KindAuthentication},
		// An expired token is rejected before the policy is looked at.
		{name: "expired", token: signer.Token(t, map[string]any{"exp": past, "iat": past - 60, "scope": "read", "role": "user"}), verdict: auth.Unauthenticated, kind: auth.KindAuthentication},
		{name: "expired without grants", token: signer.Token(t, map[string]any{"exp": past, "iat": past - 60}), verdict: auth.Unauthenticated, kind: auth.KindAuthentication},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			res := gate.Check(ctx, tt.token, policy)
			if res.Verdict() != tt.verdict {
				t.Fatalf("Verdict() = %v, want %v (err %v)", res.Verdict(), tt.verdict, res.Err())
			}
			claims, err := gate.Require(ctx, tt.token, policy)
			if tt.verdict == auth.Valid {
				if err != nil || res.Err() != nil {
					t.Fatalf("Require() err = %v, Check err = %v", err, res.Err())
				}
				if c, ok := res.Claims(); !ok || c.Subject() != claims.Subject() {
					t.Fatal("Check and Require disagree on claims")
				}
				return
			}
			if err == nil || claims != nil {
				t.Fatalf("Require() = %v, %v; want error", claims, err)
			}
			if auth.KindOf(err) != tt.kind || auth.KindOf(res.Err()) != tt.kind {
				t.Fatalf("kinds: Require %v, Check %v, want %v", auth.KindOf(err), auth.KindOf(res.Err()), tt.kind)
			}
			if _, ok := res.Claims(); ok {
				t.Fatal("Claims() must only succeed for Valid results")
			}
			if res.Message() == "" {
				t.Fatal("Message() should not be empty on failure")
			}
		})
	}
}

func TestGateExpiredTokenSkipsPolicy(t *testing.T) {
	signer := authtest.NewSigner(t, testIssuer, testAudience)
	now := time.Now()
	gate, err := auth.NewGateWithParameters(signer.Parameters(t), auth.WithClock(func() time.Time { return now.Add(2 * time.Hour) }))
	if err != nil {
		t.Fatalf("NewGateWithParameters: %v", err)
	}
	res := gate.Check(context.Background(), signer.Token(t, nil), auth.NewPolicy(auth.RequireAnyScope("nope")))
	var e *auth.Error
	if !errors.As(res.Err(), &e) || e.Reason() != auth.ReasonExpired {
		t.Fatalf("err = %v, want expired", res.Err())
	}
	if res.DiagnosticClaims() != nil {
		t.Fatal("unauthenticated results must not carry claims")
	}
}

func TestGateUnauthorizedKeepsDiagnosticClaims(t *testing.T) {
	signer := authtest.NewSigner(t, testIssuer, testAudience)
	gate, _ := auth.NewGateWithParameters(signer.Parameters(t))
	res := gate.Check(context.Background(), signer.Token(t, map[string]any{"scope": "read"}), auth.NewPolicy(auth.RequireAnyScope("admin")))
	if res.Verdict() != auth.Unauthorized {
		t.Fatalf("Verdict() = %v", res.Verdict())
	}
	if res.DiagnosticClaims().Subject() != "user-123" {
		t.Fatal("diagnostic claims missing")
	}
}

func TestGateOptions(t *testing.T) {
	signer := authtest.NewSigner(t, testIssuer, testAudience)
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	gate, err := auth.NewGateWithParameters(signer.Parameters(t),
		auth.WithLogger(log),
		auth.WithScopeClaim("scp"),
		auth.WithScopeCaseFolding(true),
		auth.WithRoleClaims("groups"),
		auth.WithLeeway(time.Minute),
		auth.WithAllowedAlgs("RS256"),
	)
	if err != nil {
		t.Fatalf("NewGateWithParameters: %v", err)
	}
	tok := signer.Token(t, map[string]any{"scp": "Files.Read", "groups": []string{"eng"}})
	res := gate.Check(context.Background(), tok, auth.NewPolicy(auth.RequireAnyScope("files.read"), auth.RequireAnyRole("eng")))
	if !res.Valid() {
		t.Fatalf("Check() = %v: %v", res.Verdict(), res.Err())
	}
	if !strings.Contains(buf.String(), "auth.check.ok") {
		t.Fatalf("expected auth.check.ok log, got %q", buf.String())
	}

	buf.Reset()
	gate.Check(context.Background(), "garbage", auth.TokenPolicy{})
	if !strings.Contains(buf.String(), "auth.check.unauthenticated") || !strings.Contains(buf.String(), "reason=malformed_token") {
		t.Fatalf("expected structured failure log, got %q", buf.String())
	}
}

func TestNewGateConfigurationErrors(t *testing.T) {
	ctx := context.Background()
	signer := authtest.NewSigner(t, testIssuer, testAudience)

	failing := auth.SourceFunc(func(ctx context.Context) (*auth.Metadata, error) {
		return nil, errors.New("connection refused")
	})
	slow := auth.SourceFunc(func(ctx context.Context) (*auth.Metadata, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	noKeys := auth.SourceFunc(func(ctx context.Context) (*auth.Metadata, error) {
		return &auth.Metadata{Issuer: testIssuer}, nil
	})

	tests := []struct {
		name     string
		src      auth.DiscoverySource
		audience string
		opts     []auth.Option
		reason   auth.Reason
	}{
		{name: "nil source", audience: testAudience, reason: auth.ReasonInvalidConfig},
		{name: "no audience", src: signer.Source(), reason: auth.ReasonInvalidConfig},
		{name: "fetch fails", src: failing, audience: testAudience, reason: auth.ReasonDiscoveryFailed},
		{name: "timeout", src: slow, audience: testAudience, opts: []auth.Option{auth.WithDiscoveryTimeout(20 * time.Millisecond)}, reason: auth.ReasonDiscoveryFailed},
		{name: "no keys", src: noKeys, audience: testAudience, reason: auth.ReasonNoSigningKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := auth.NewGate(ctx, tt.src, tt.audience, tt.opts...)
			if g != nil {
				t.Fatal("gate returned alongside error")
			}
			var e *auth.Error
			if !errors.As(err, &e) || e.Kind() != auth.KindConfiguration || e.Reason() != tt.reason {
				t.Fatalf("err = %v, want configuration/%s", err, tt.reason)
			}
			if strings.Contains(err.Error(), "connection refused") {
				t.Fatalf("cause leaked into message: %q", err.Error())
			}
		})
	}

	if _, err := auth.NewGateWithParameters(nil); !errors.Is(err, auth.ErrConfiguration) {
		t.Fatalf("NewGateWithParameters(nil) = %v", err)
	}
}

// rotatingSource serves one signer at a time and can be told to fail.
type rotatingSource struct {
	mu      sync.Mutex
	current *authtest.Signer
	fail    bool
	hits    atomic.Int64
}

func (s *rotatingSource) FetchMetadata(ctx context.Context) (*auth.Metadata, error) {
	s.hits.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errors.New("provider down")
	}
	return s.current.Metadata(), nil
}

func (s *rotatingSource) set(signer *authtest.Signer, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current, s.fail = signer, fail
}

func TestGateRefresh(t *testing.T) {
	ctx := context.Background()
	first := authtest.NewSigner(t, testIssuer, testAudience)
	second := authtest.NewSigner(t, testIssuer, testAudience)
	second.KeyID = "second"

	src := &rotatingSource{current: first}
	gate, err := auth.NewGate(ctx, src, testAudience)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	if src.hits.Load() != 1 {
		t.Fatalf("resolution should happen once at construction, hits = %d", src.hits.Load())
	}
	for i := 0; i < 5; i++ {
		gate.Check(ctx, first.Token(t, nil), auth.TokenPolicy{})
	}
	if src.hits.Load() != 1 {
		t.Fatalf("checks must not refetch metadata, hits = %d", src.hits.Load())
	}

	src.set(second, true)
	if err := gate.Refresh(ctx); !errors.Is(err, auth.ErrConfiguration) {
		t.Fatalf("Refresh() = %v, want configuration error", err)
	}
	if gate.Parameters().KeyID() != first.KeyID {
		t.Fatal("failed refresh must keep previous parameters")
	}
	if !gate.Check(ctx, first.Token(t, nil), auth.TokenPolicy{}).Valid() {
		t.Fatal("old key stopped working after failed refresh")
	}

	src.set(second, false)
	if err := gate.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() = %v", err)
	}
	if gate.Parameters().KeyID() != "second" {
		t.Fatalf("kid = %q after refresh", gate.Parameters().KeyID())
	}
	if !gate.Check(ctx, second.Token(t, nil), auth.TokenPolicy{}).Valid() {
		t.Fatal("new key rejected after refresh")
	}
	if gate.Check(ctx, first.Token(t, nil), auth.TokenPolicy{}).Valid() {
		t.Fatal("retired key still accepted")
	}
}

func TestGateConcurrentCheckAndRefresh(t *testing.T) {
	ctx := context.Background()
	signer := authtest.NewSigner(t, testIssuer, testAudience)
	src := &rotatingSource{current: signer}
	gate, err := auth.NewGate(ctx, src, testAudience)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	tok := signer.Token(t, map[string]any{"scope": "read"})
	policy := auth.NewPolicy(auth.RequireAnyScope("read"))

	var wg sync.WaitGroup
	var failures atomic.Int64
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if !gate.Check(ctx, tok, policy).Valid() {
					failures.Add(1)
				}
			}
		}()
		go func() {
			defer wg.Done()
			_ = gate.Refresh(ctx)
		}()
	}
	wg.Wait()
	if failures.Load() != 0 {
		t.Fatalf("%d checks failed during refresh", failures.Load())
	}
}

func TestResultConstructors(t *testing.T) {
	if res := auth.ValidResult(nil); res.Verdict() != auth.Unauthenticated || auth.KindOf(res.Err()) != auth.KindUnexpected {
		t.Fatalf("ValidResult(nil) = %v / %v", res.Verdict(), res.Err())
	}
	if res := auth.FailedResult(errors.New("boom"), nil); auth.KindOf(res.Err()) != auth.KindUnexpected || res.Message() == "boom" {
		t.Fatalf("foreign error: %v / %q", res.Err(), res.Message())
	}
	c := claims("sub", "u1")
	res := auth.FailedResult(auth.NewError(auth.KindAuthentication, auth.ReasonExpired, ""), c)
	if res.DiagnosticClaims() != nil {
		t.Fatal("authentication failures drop claims")
	}
	if auth.Pending.String() == auth.Valid.String() {
		t.Fatal("verdict names must differ")
	}
}
