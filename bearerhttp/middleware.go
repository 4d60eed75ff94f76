package bearerhttp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/elnormous/contenttype"
	"github.com/google/uuid"

	"github.com/ggoodman/bearergate/auth"
	"github.com/ggoodman/bearergate/internal/logctx"
)

var (
	jsonMediaType      = contenttype.NewMediaType("application/json")
	textMediaType      = contenttype.NewMediaType("text/plain")
	errorBodyMediaType = []contenttype.MediaType{jsonMediaType, textMediaType}
)

// Option configures Middleware and Wrap.
type Option func(*config)

type config struct {
	log    *slog.Logger
	mapper OutcomeMapper
}

func newConfig(opts []Option) *config {
	c := &config{}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = slog.New(slog.DiscardHandler)
	}
	return c
}

// WithLogger sets the logger. If not provided, logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.log = l }
}

// WithRealm sets the realm advertised in WWW-Authenticate challenges. If
// empty (default), the realm attribute is omitted.
func WithRealm(realm string) Option {
	return func(c *config) { c.mapper.Realm = realm }
}

// WithResourceMetadata advertises the RFC 9728 metadata URL in challenges.
func WithResourceMetadata(url string) Option {
	return func(c *config) { c.mapper.ResourceMetadata = url }
}

type claimsKey struct{}

// ClaimsFromContext returns the validated claims stored by Middleware or
// Wrap.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return c, ok && c != nil
}

// Middleware checks every request against policy. Valid requests reach next
// with their claims in the context; all others receive the mapped error
// response.
func Middleware(checker Checker, policy auth.TokenPolicy, opts ...Option) func(http.Handler) http.Handler {
	cfg := newConfig(opts)
	policy = policy.Copy()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r = withRequestData(w, r)
			ctx := r.Context()

			var res *auth.TokenResult
			if raw, err := BearerToken(r); err != nil {
				res = auth.FailedResult(err, nil)
			} else {
				res = checker.Check(ctx, raw, policy)
			}
			serve(cfg, res, next, w, r)
		})
	}
}

// Wrap runs next only when result is Valid and otherwise writes the mapped
// error response. It suits handlers that run the check themselves.
func Wrap(result *auth.TokenResult, next http.Handler, opts ...Option) http.Handler {
	cfg := newConfig(opts)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serve(cfg, result, next, w, withRequestData(w, r))
	})
}

func withRequestData(w http.ResponseWriter, r *http.Request) *http.Request {
	if _, ok := logctx.RequestDataFrom(r.Context()); ok {
		return r
	}
	id := r.Header.Get(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set(requestIDHeader, id)
	ctx := logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  id,
		Method:     r.Method,
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
	})
	return r.WithContext(ctx)
}

func serve(cfg *config, res *auth.TokenResult, next http.Handler, w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if res == nil || res.Verdict() == auth.Pending {
		res = auth.FailedResult(auth.NewError(auth.KindUnexpected, auth.ReasonInternal, ""), nil)
	}

	sub := ""
	if c := res.DiagnosticClaims(); c != nil {
		sub = c.Subject()
	}
	ctx = logctx.WithAuthData(ctx, &logctx.AuthData{Subject: sub, Verdict: res.Verdict().String()})

	if claims, ok := res.Claims(); ok {
		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, claimsKey{}, claims)))
		return
	}

	out := cfg.mapper.Map(res.Err())
	cfg.log.InfoContext(ctx, "http.auth.reject", slog.Int("status", out.Status), slog.Any("err", res.Err()))
	writeOutcome(w, r, out)
}

func writeOutcome(w http.ResponseWriter, r *http.Request, out Outcome) {
	if out.Challenge != "" {
		w.Header().Add(wwwAuthenticateHeader, out.Challenge)
	}
	mt, _, err := contenttype.GetAcceptableMediaType(r, errorBodyMediaType)
	if err == nil && mt.Type == textMediaType.Type && mt.Subtype == textMediaType.Subtype {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(out.Status)
		_, _ = w.Write([]byte(out.Message + "\n"))
		return
	}
	writeJSONError(w, out)
}

func writeJSONError(w http.ResponseWriter, out Outcome) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(out.Status)
	body := map[string]any{"code": out.Status, "message": out.Message}
	if out.Reason != "" {
		body["reason"] = out.Reason
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"error": body})
}
