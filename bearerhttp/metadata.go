package bearerhttp

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ggoodman/bearergate/internal/wellknown"
)

// ProtectedResourcePath is where RFC 9728 metadata is conventionally served.
const ProtectedResourcePath = wellknown.ProtectedResourcePath

// ProtectedResourceHandler serves RFC 9728 protected resource metadata
// pointing clients at authServer. Cross-origin reads are allowed.
func ProtectedResourceHandler(resource, authServer string, scopes []string) http.Handler {
	doc := wellknown.ProtectedResourceMetadata{
		Resource:               resource,
		ScopesSupported:        append([]string(nil), scopes...),
		BearerMethodsSupported: []string{"header"},
	}
	if authServer != "" {
		doc.AuthorizationServers = []string{authServer}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Vary", "Origin")
		switch r.Method {
		case http.MethodGet, http.MethodHead:
		case http.MethodOptions:
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")
			w.Header().Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		default:
			w.Header().Set("Allow", "GET, HEAD, OPTIONS")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(doc); err != nil {
			http.Error(w, fmt.Sprintf("failed to encode protected resource metadata: %v", err), http.StatusInternalServerError)
		}
	})
}
