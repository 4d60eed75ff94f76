package wellknown

// ProviderMetadata is the subset of an OpenID Connect discovery document
// needed to locate signing keys.
type ProviderMetadata struct {
	Issuer                           string   `json:"issuer"`
	JwksURI                          string   `json:"jwks_uri"`
	AuthorizationEndpoint            string   `json:"authorization_endpoint,omitempty"`
	TokenEndpoint                    string   `json:"token_endpoint,omitempty"`
	ScopesSupported                  []string `json:"scopes_supported,omitempty"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported,omitempty"`
}

// DiscoveryPath is appended to an issuer URL to locate its discovery
// document.
const DiscoveryPath = "/.well-known/openid-configuration"

// ProtectedResourcePath is the RFC 9728 well-known path prefix.
const ProtectedResourcePath = "/.well-known/oauth-protected-resource"
