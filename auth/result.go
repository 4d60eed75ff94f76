package auth

// Verdict is the outcome of checking a bearer token against a policy.
type Verdict int

const (
	// Pending is the zero value: the token has not been evaluated. No
	// TokenResult ever carries it.
	Pending Verdict = iota
	// Valid means the token is authentic and satisfies the policy.
	Valid
	// Unauthenticated means the token is missing or failed validation.
	Unauthenticated
	// Unauthorized means the token is authentic but the policy is not met.
	Unauthorized
)

func (v Verdict) String() string {
	switch v {
	case Valid:
		return "valid"
	case Unauthenticated:
		return "unauthenticated"
	case Unauthorized:
		return "unauthorized"
	default:
		return "pending"
	}
}

// TokenResult is the immutable, terminal outcome of one token check.
type TokenResult struct {
	verdict Verdict
	claims  *Claims
	err     *Error
}

// ValidResult returns a Valid result for claims. Claims must be non-empty;
// otherwise the result is Unauthenticated with an unexpected error since a
// validated token always carries registered claims.
func ValidResult(claims *Claims) *TokenResult {
	if claims.Len() == 0 {
		return &TokenResult{verdict: Unauthenticated, err: NewError(KindUnexpected, ReasonInternal, "")}
	}
	return &TokenResult{verdict: Valid, claims: claims}
}

// FailedResult returns the terminal result for err. Authorization failures
// become Unauthorized and keep claims for diagnostics; everything else is
// Unauthenticated and drops them.
func FailedResult(err error, claims *Claims) *TokenResult {
	if err == nil {
		return &TokenResult{verdict: Unauthenticated, err: NewError(KindUnexpected, ReasonInternal, "")}
	}
	e := asError(err)
	if e.kind == KindAuthorization {
		return &TokenResult{verdict: Unauthorized, claims: claims, err: e}
	}
	return &TokenResult{verdict: Unauthenticated, err: e}
}

func (r *TokenResult) Verdict() Verdict { return r.verdict }

// Valid reports whether the verdict is Valid.
func (r *TokenResult) Valid() bool { return r.verdict == Valid }

// Claims returns the validated claims. It only reports ok for Valid results;
// trust decisions must never be made from any other verdict.
func (r *TokenResult) Claims() (*Claims, bool) {
	if r.verdict != Valid {
		return nil, false
	}
	return r.claims, true
}

// DiagnosticClaims returns whatever claims the result holds, including those
// of an Unauthorized token. Use only for logging and error detail.
func (r *TokenResult) DiagnosticClaims() *Claims { return r.claims }

// Err returns nil for Valid results and the classified *Error otherwise.
func (r *TokenResult) Err() error {
	if r.err == nil {
		return nil
	}
	return r.err
}

// Require is the strict form of a check: it returns the claims when the
// result is Valid and the classified error otherwise. It always agrees with
// Verdict.
func (r *TokenResult) Require() (*Claims, error) {
	if r.verdict == Valid {
		return r.claims, nil
	}
	return nil, r.Err()
}

// Message returns a message safe to show to the caller.
func (r *TokenResult) Message() string {
	if r.err == nil {
		return ""
	}
	return r.err.Error()
}
