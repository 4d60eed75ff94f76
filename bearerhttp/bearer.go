// Package bearerhttp adapts package auth to net/http: it extracts bearer
// credentials, runs the check pipeline and writes RFC 6750 responses.
package bearerhttp

import (
	"context"
	"net/http"
	"strings"

	"github.com/ggoodman/bearergate/auth"
)

const (
	authorizationHeader   = "Authorization"
	wwwAuthenticateHeader = "WWW-Authenticate"
	requestIDHeader       = "X-Request-Id"
)

// Checker runs token validation and policy evaluation. *auth.Gate
// implements it.
type Checker interface {
	Check(ctx context.Context, raw string, policy auth.TokenPolicy) *auth.TokenResult
}

var _ Checker = (*auth.Gate)(nil)

// BearerToken extracts the credential of a "Bearer" Authorization header.
// The scheme is matched case-insensitively. A missing header yields
// ReasonMissingToken; a repeated header, another scheme or an empty
// credential yields ReasonInvalidRequest.
func BearerToken(r *http.Request) (string, error) {
	values := r.Header.Values(authorizationHeader)
	if len(values) == 0 || (len(values) == 1 && strings.TrimSpace(values[0]) == "") {
		return "", auth.NewError(auth.KindAuthentication, auth.ReasonMissingToken, "")
	}
	if len(values) > 1 {
		return "", auth.NewError(auth.KindAuthentication, auth.ReasonInvalidRequest, "multiple authorization headers")
	}
	scheme, tok, ok := strings.Cut(strings.TrimSpace(values[0]), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", auth.NewError(auth.KindAuthentication, auth.ReasonInvalidRequest, "")
	}
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return "", auth.NewError(auth.KindAuthentication, auth.ReasonInvalidRequest, "")
	}
	return tok, nil
}
