// Package auth validates bearer tokens and enforces scope and role policy
// for protected endpoints. It is transport agnostic: callers extract the
// raw token, call a Gate, and map the result onto their own response types
// (see package bearerhttp for net/http).
//
// # Pipeline
//
// A Gate combines three steps:
//
//  1. Signing parameters (public key, issuer, audience) are resolved once
//     from a DiscoverySource when the Gate is built. The first signing key
//     the provider publishes is used. Resolution failure is fatal and is
//     reported as a KindConfiguration error from NewGate.
//  2. The raw token is validated: signature, issuer, audience, exp and nbf.
//  3. The validated claims are evaluated against a TokenPolicy.
//
// Example:
//
//	src := discovery.OIDC("https://issuer.example")
//	gate, err := auth.NewGate(ctx, src, "https://api.example",
//	    auth.WithDiscoveryTimeout(5*time.Second),
//	)
//	if err != nil { log.Fatal(err) }
//
//	policy := auth.NewPolicy(auth.RequireAnyScope("read", "write"), auth.RequireAnyRole("user"))
//	res := gate.Check(ctx, rawToken, policy)
//	switch res.Verdict() {
//	case auth.Valid:         // proceed
//	case auth.Unauthenticated: // 401
//	case auth.Unauthorized:    // 403
//	}
//
// # Policy semantics
//
// Required scopes are OR-ed: any one granted scope in the space-delimited
// "scope" claim satisfies the scope requirement. A blank required scope is
// always satisfied. Required roles are OR-ed across the role claim types.
// The scope and role requirements are AND-ed. Empty or nil requirement lists
// impose nothing. Scope matching is case-sensitive unless
// WithScopeCaseFolding is set.
//
// # Errors
//
// Every failure is an *Error with a Kind (configuration, authentication,
// authorization, unexpected) and a Reason. errors.Is matches the Kind
// sentinels ErrConfiguration, ErrAuthentication, ErrAuthorization and
// ErrUnexpected. Error messages never contain key material or library
// internals; the cause is only available through slog via LogValue.
//
// TokenResult.Require and Gate.Require are the strict forms for callers that
// prefer error returns over inspecting a verdict. Both forms always agree.
//
// # Key rotation
//
// Gate.Refresh re-resolves signing parameters and swaps them atomically;
// validations in flight keep the parameters they started with. A failed
// refresh leaves the previous parameters in place.
package auth
