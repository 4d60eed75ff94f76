package jwtauth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Failure reasons. Every error returned by Validate for a rejected token
// wraps exactly one of these.
var (
	ErrMissingToken     = errors.New("jwtauth: missing token")
	ErrMalformedToken   = errors.New("jwtauth: malformed token")
	ErrSignatureInvalid = errors.New("jwtauth: signature invalid")
	ErrIssuerMismatch   = errors.New("jwtauth: issuer mismatch")
	ErrAudienceMismatch = errors.New("jwtauth: audience mismatch")
	ErrExpired          = errors.New("jwtauth: token expired")
	ErrNotYetValid      = errors.New("jwtauth: token not yet valid")
)

// ErrNoKey is returned when Validate is called without verification key
// material. It indicates a programming error rather than a bad token.
var ErrNoKey = errors.New("jwtauth: no verification key")

// Config controls a single validation. All fields except Leeway and Now are
// required.
type Config struct {
	Key         any
	Issuer      string
	Audience    string
	AllowedAlgs []string
	Leeway      time.Duration
	// Now overrides the clock used for exp/nbf/iat checks. Defaults to time.Now.
	Now func() time.Time
}

// Failure describes why a token was rejected. Reason is one of the package
// sentinels; the library error that triggered it is retained for logging.
type Failure struct {
	Reason    error
	ExpiredAt time.Time
	cause     error
}

func (f *Failure) Error() string {
	if f.cause != nil {
		return f.Reason.Error() + ": " + f.cause.Error()
	}
	return f.Reason.Error()
}

func (f *Failure) Unwrap() error { return f.Reason }

// Cause returns the underlying parser error, if any.
func (f *Failure) Cause() error { return f.cause }

// Validate parses raw, verifies its signature with cfg.Key and checks the
// registered claims. It returns the decoded payload on success.
func Validate(raw string, cfg Config) (jwt.MapClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &Failure{Reason: ErrMissingToken}
	}
	if cfg.Key == nil {
		return nil, ErrNoKey
	}
	algs := make([]string, 0, len(cfg.AllowedAlgs))
	for _, a := range cfg.AllowedAlgs {
		// "none" is never acceptable regardless of configuration.
		if a != "" && !strings.EqualFold(a, "none") {
			algs = append(algs, a)
		}
	}
	if len(algs) == 0 {
		return nil, errors.New("jwtauth: no allowed algorithms")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods(algs),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithTimeFunc(now),
	)

	claims := jwt.MapClaims{}
	key := cfg.Key
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return key, nil }); err != nil {
		return nil, classify(err, claims)
	}
	return claims, nil
}

// classify maps golang-jwt errors onto the package reasons. When several
// claim checks fail at once the most fundamental reason wins.
func classify(err error, claims jwt.MapClaims) *Failure {
	f := &Failure{cause: err}
	missing := func(name string) bool {
		if !errors.Is(err, jwt.ErrTokenRequiredClaimMissing) {
			return false
		}
		_, ok := claims[name]
		return !ok
	}
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrInvalidType):
		f.Reason = ErrMalformedToken
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		f.Reason = ErrSignatureInvalid
	case missing("exp"):
		f.Reason = ErrMalformedToken
	case errors.Is(err, jwt.ErrTokenExpired):
		f.Reason = ErrExpired
		if exp, e := claims.GetExpirationTime(); e == nil && exp != nil {
			f.ExpiredAt = exp.Time
		}
	case errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		f.Reason = ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), missing("iss"):
		f.Reason = ErrIssuerMismatch
	case errors.Is(err, jwt.ErrTokenInvalidAudience), missing("aud"):
		f.Reason = ErrAudienceMismatch
	default:
		f.Reason = ErrMalformedToken
		f.cause = fmt.Errorf("unclassified: %w", err)
	}
	return f
}
