package auth

import (
	"strings"
)

// TokenPolicy declares what a protected endpoint requires beyond a valid
// token. A nil and an empty requirement list are equivalent: both impose no
// requirement.
type TokenPolicy struct {
	// RequiredScopes is satisfied when any one entry is granted.
	RequiredScopes []string
	// RequiredRoles is satisfied when any one entry is granted.
	RequiredRoles []string
}

// PolicyOption configures a TokenPolicy built by NewPolicy.
type PolicyOption func(*TokenPolicy)

// RequireAnyScope adds scopes of which at least one must be granted.
func RequireAnyScope(scopes ...string) PolicyOption {
	return func(p *TokenPolicy) { p.RequiredScopes = append(p.RequiredScopes, scopes...) }
}

// RequireAnyRole adds roles of which at least one must be granted.
func RequireAnyRole(roles ...string) PolicyOption {
	return func(p *TokenPolicy) { p.RequiredRoles = append(p.RequiredRoles, roles...) }
}

// NewPolicy builds a TokenPolicy. The result owns its slices.
func NewPolicy(opts ...PolicyOption) TokenPolicy {
	var p TokenPolicy
	for _, opt := range opts {
		opt(&p)
	}
	return p.Copy()
}

// Copy returns a deep copy safe to retain.
func (p TokenPolicy) Copy() TokenPolicy {
	return TokenPolicy{
		RequiredScopes: append([]string(nil), p.RequiredScopes...),
		RequiredRoles:  append([]string(nil), p.RequiredRoles...),
	}
}

// IsZero reports whether the policy imposes no requirement at all.
func (p TokenPolicy) IsZero() bool {
	return len(p.RequiredScopes) == 0 && len(p.RequiredRoles) == 0
}

// ScopeString renders the required scopes space-delimited, as used by the
// "scope" attribute of a Bearer challenge.
func (p TokenPolicy) ScopeString() string {
	var parts []string
	for _, s := range p.RequiredScopes {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
