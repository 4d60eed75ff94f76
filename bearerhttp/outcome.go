package bearerhttp

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/ggoodman/bearergate/auth"
)

// Outcome is the HTTP rendering of a check result.
type Outcome struct {
	Status int
	// Challenge is the WWW-Authenticate value; empty when none is sent.
	Challenge string
	// Reason is the auth.Reason of the failure, empty on success.
	Reason  string
	Message string
}

const (
	unavailableMessage = "authorization is temporarily unavailable"
	unexpectedMessage  = "request could not be authorized"
)

// OutcomeMapper maps errors from package auth onto HTTP responses.
type OutcomeMapper struct {
	// Realm is advertised in challenges when non-empty.
	Realm string
	// ResourceMetadata is the RFC 9728 metadata URL advertised in challenges.
	ResourceMetadata string
}

// Map returns the response for err. A nil err maps to 200.
//
//	authentication, missing token  401, bare challenge
//	authentication, bad header     400 invalid_request
//	authentication, other          401 invalid_token
//	authorization                  403 insufficient_scope
//	configuration                  503
//	unexpected                     400
func (m OutcomeMapper) Map(err error) Outcome {
	if err == nil {
		return Outcome{Status: http.StatusOK}
	}
	var reason auth.Reason
	var required []string
	msg := err.Error()
	var e *auth.Error
	if errors.As(err, &e) {
		reason = e.Reason()
		required = e.Required()
	}

	switch auth.KindOf(err) {
	case auth.KindAuthentication:
		switch reason {
		case auth.ReasonMissingToken:
			return Outcome{
				Status:    http.StatusUnauthorized,
				Challenge: buildBearerChallenge(m.Realm, m.ResourceMetadata, nil),
				Reason:    string(reason),
				Message:   msg,
			}
		case auth.ReasonInvalidRequest:
			return Outcome{
				Status: http.StatusBadRequest,
				Challenge: buildBearerChallenge(m.Realm, m.ResourceMetadata, map[string]string{
					"error":             "invalid_request",
					"error_description": msg,
				}),
				Reason:  string(reason),
				Message: msg,
			}
		}
		return Outcome{
			Status: http.StatusUnauthorized,
			Challenge: buildBearerChallenge(m.Realm, m.ResourceMetadata, map[string]string{
				"error":             "invalid_token",
				"error_description": msg,
			}),
			Reason:  string(reason),
			Message: msg,
		}
	case auth.KindAuthorization:
		params := map[string]string{
			"error":             "insufficient_scope",
			"error_description": msg,
		}
		if reason == auth.ReasonInsufficientScope && len(required) > 0 {
			params["scope"] = strings.Join(required, " ")
		}
		return Outcome{
			Status:    http.StatusForbidden,
			Challenge: buildBearerChallenge(m.Realm, m.ResourceMetadata, params),
			Reason:    string(reason),
			Message:   msg,
		}
	case auth.KindConfiguration:
		return Outcome{Status: http.StatusServiceUnavailable, Reason: string(reason), Message: unavailableMessage}
	default:
		if reason == "" {
			reason = auth.ReasonInternal
		}
		return Outcome{Status: http.StatusBadRequest, Reason: string(reason), Message: unexpectedMessage}
	}
}

// buildBearerChallenge renders an RFC 6750 challenge. Parameters are ordered
// realm, resource_metadata, error, error_description, scope, then the rest
// alphabetically.
func buildBearerChallenge(realm string, resourceMetadata string, params map[string]string) string {
	pieces := make([]string, 0, 2+len(params))
	esc := func(v string) string { return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v) }
	if realm != "" {
		pieces = append(pieces, fmt.Sprintf(`realm="%s"`, esc(realm)))
	}
	if resourceMetadata != "" {
		pieces = append(pieces, fmt.Sprintf(`resource_metadata="%s"`, esc(resourceMetadata)))
	}
	known := []string{"error", "error_description", "scope"}
	for _, k := range known {
		if v, ok := params[k]; ok {
			pieces = append(pieces, fmt.Sprintf(`%s="%s"`, k, esc(v)))
		}
	}
	rest := make([]string, 0, len(params))
	for k := range params {
		if k == "error" || k == "error_description" || k == "scope" {
			continue
		}
		rest = append(rest, k)
	}
	sort.Strings(rest)
	for _, k := range rest {
		pieces = append(pieces, fmt.Sprintf(`%s="%s"`, k, esc(params[k])))
	}
	if len(pieces) == 0 {
		return "Bearer"
	}
	return "Bearer " + strings.Join(pieces, ", ")
}
