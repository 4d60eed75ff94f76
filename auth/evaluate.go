package auth

import (
	"strings"
)

// DefaultScopeClaim is the claim holding the space-delimited granted scopes.
const DefaultScopeClaim = "scope"

// DefaultRoleClaims are the claim types consulted for granted roles. The
// last entry is the role claim type issued by Microsoft identity platforms.
var DefaultRoleClaims = []string{
	"roles",
	"role",
	"http://schemas.microsoft.com/ws/2008/06/identity/claims/role",
}

// Evaluator decides whether validated claims satisfy a TokenPolicy. The
// zero value uses DefaultScopeClaim, DefaultRoleClaims and case-sensitive
// scope matching.
type Evaluator struct {
	ScopeClaim string
	RoleClaims []string
	// FoldScopeCase makes scope matching case-insensitive.
	FoldScopeCase bool
}

// Evaluate applies policy to claims with the default Evaluator.
func Evaluate(claims *Claims, policy TokenPolicy) Verdict {
	return Evaluator{}.Evaluate(claims, policy)
}

// Evaluate returns Valid when both the scope and role requirements of policy
// pass, Unauthorized otherwise.
func (ev Evaluator) Evaluate(claims *Claims, policy TokenPolicy) Verdict {
	if ev.Explain(claims, policy) != nil {
		return Unauthorized
	}
	return Valid
}

// Explain is Evaluate returning the failing requirement as a
// KindAuthorization *Error, or nil when the policy is satisfied. The scope
// requirement is reported first when both fail.
func (ev Evaluator) Explain(claims *Claims, policy TokenPolicy) error {
	if !ev.scopesGranted(claims, policy.RequiredScopes) {
		e := NewError(KindAuthorization, ReasonInsufficientScope, "")
		e.required = append([]string(nil), policy.RequiredScopes...)
		return e
	}
	if !ev.rolesGranted(claims, policy.RequiredRoles) {
		e := NewError(KindAuthorization, ReasonMissingRole, "")
		e.required = append([]string(nil), policy.RequiredRoles...)
		return e
	}
	return nil
}

func (ev Evaluator) scopesGranted(claims *Claims, required []string) bool {
	if len(required) == 0 {
		return true
	}
	claim := ev.ScopeClaim
	if claim == "" {
		claim = DefaultScopeClaim
	}
	granted := map[string]struct{}{}
	for _, v := range claims.Values(claim) {
		for _, s := range strings.Fields(v) {
			granted[ev.foldScope(s)] = struct{}{}
		}
	}
	for _, want := range required {
		// A blank requirement is the same as no requirement.
		if strings.TrimSpace(want) == "" {
			return true
		}
		if _, ok := granted[ev.foldScope(want)]; ok {
			return true
		}
	}
	return false
}

func (ev Evaluator) foldScope(s string) string {
	if ev.FoldScopeCase {
		return strings.ToLower(s)
	}
	return s
}

func (ev Evaluator) rolesGranted(claims *Claims, required []string) bool {
	if len(required) == 0 {
		return true
	}
	types := ev.RoleClaims
	if len(types) == 0 {
		types = DefaultRoleClaims
	}
	granted := map[string]struct{}{}
	for _, typ := range types {
		for _, v := range claims.Values(typ) {
			granted[v] = struct{}{}
		}
	}
	for _, want := range required {
		if _, ok := granted[want]; ok {
			return true
		}
	}
	return false
}
