package jwtauth

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"

	jose "github.com/go-jose/go-jose/v4"
)

// FirstSigningKey returns the public half of the first key in keys that can
// verify signatures. Keys marked for encryption and symmetric keys are
// skipped. The provider is expected to list its active key first.
func FirstSigningKey(keys []jose.JSONWebKey) (jose.JSONWebKey, bool) {
	for _, k := range keys {
		if k.Key == nil {
			continue
		}
		if k.Use != "" && k.Use != "sig" {
			continue
		}
		if !k.IsPublic() {
			// Public returns a zero key for symmetric material.
			k = k.Public()
			if k.Key == nil {
				continue
			}
		}
		if !k.Valid() {
			continue
		}
		return k, true
	}
	return jose.JSONWebKey{}, false
}

var (
	rsaAlgs     = []string{"RS256", "RS384", "RS512", "PS256", "PS384", "PS512"}
	ed25519Algs = []string{"EdDSA"}
)

// Algorithms returns the JWS algorithms a key may verify. An explicit "alg"
// on the JWK pins a single algorithm; otherwise the set is inferred from the
// key type. A nil result means the key type is unsupported.
func Algorithms(k jose.JSONWebKey) []string {
	if k.Algorithm != "" {
		return []string{k.Algorithm}
	}
	switch key := k.Key.(type) {
	case *rsa.PublicKey:
		return append([]string(nil), rsaAlgs...)
	case *ecdsa.PublicKey:
		if key.Curve == nil {
			return nil
		}
		switch key.Curve.Params().Name {
		case "P-256":
			return []string{"ES256"}
		case "P-384":
			return []string{"ES384"}
		case "P-521":
			return []string{"ES512"}
		}
	case ed25519.PublicKey:
		return append([]string(nil), ed25519Algs...)
	}
	return nil
}
