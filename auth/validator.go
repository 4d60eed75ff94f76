package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/ggoodman/bearergate/internal/jwtauth"
)

// Validator checks a raw bearer token against SigningParameters. The zero
// value accepts the algorithms of the signing key, allows no clock skew and
// uses the system clock.
type Validator struct {
	// AllowedAlgs narrows the accepted JWS algorithms. Algorithms the key
	// cannot verify are never accepted.
	AllowedAlgs []string
	Leeway      time.Duration
	Clock       func() time.Time
}

// Validate checks raw with the zero Validator.
func Validate(raw string, params *SigningParameters) (*Claims, error) {
	return Validator{}.Validate(raw, params)
}

// Validate verifies the token's signature, issuer, audience and validity
// window. It is a pure function of its inputs and the clock. Every error is
// an *Error of KindAuthentication, or KindUnexpected when params are unusable.
func (v Validator) Validate(raw string, params *SigningParameters) (*Claims, error) {
	if params == nil {
		return nil, NewError(KindUnexpected, ReasonInternal, "")
	}
	algs := v.algs(params)
	if len(algs) == 0 && strings.TrimSpace(raw) != "" {
		// No algorithm is both allowed and verifiable by the key.
		return nil, NewError(KindAuthentication, ReasonSignatureInvalid, "")
	}
	payload, err := jwtauth.Validate(raw, jwtauth.Config{
		Key:         params.key.Key,
		Issuer:      params.issuer,
		Audience:    params.audience,
		AllowedAlgs: algs,
		Leeway:      v.Leeway,
		Now:         v.Clock,
	})
	if err != nil {
		return nil, fromFailure(err)
	}
	return NewClaims(payload), nil
}

func (v Validator) algs(p *SigningParameters) []string {
	if len(v.AllowedAlgs) == 0 {
		return p.algs
	}
	var out []string
	for _, a := range v.AllowedAlgs {
		for _, b := range p.algs {
			if a == b {
				out = append(out, a)
			}
		}
	}
	return out
}

var failureReasons = map[error]Reason{
	jwtauth.ErrMissingToken:     ReasonMissingToken,
	jwtauth.ErrMalformedToken:   ReasonMalformedToken,
	jwtauth.ErrSignatureInvalid: ReasonSignatureInvalid,
	jwtauth.ErrIssuerMismatch:   ReasonIssuerMismatch,
	jwtauth.ErrAudienceMismatch: ReasonAudienceMismatch,
	jwtauth.ErrExpired:          ReasonExpired,
	jwtauth.ErrNotYetValid:      ReasonNotYetValid,
}

func fromFailure(err error) *Error {
	var f *jwtauth.Failure
	if !errors.As(err, &f) {
		return newError(KindUnexpected, ReasonInternal, err)
	}
	if f.Reason == jwtauth.ErrExpired {
		return expiredError(f.ExpiredAt, f.Cause())
	}
	reason, ok := failureReasons[f.Reason]
	if !ok {
		return newError(KindUnexpected, ReasonInternal, err)
	}
	return newError(KindAuthentication, reason, f.Cause())
}
