// Package discovery provides auth.DiscoverySource implementations: OpenID
// Connect discovery, a bare JWKS URL, a local key file and a storage-backed
// cache that lets replicas share one copy of provider metadata.
package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/elnormous/contenttype"
	jose "github.com/go-jose/go-jose/v4"

	"github.com/ggoodman/bearergate/auth"
	"github.com/ggoodman/bearergate/internal/wellknown"
	"github.com/ggoodman/bearergate/storage"
)

var (
	ErrNoIssuer           = errors.New("discovery: provider metadata has no issuer")
	ErrNoJWKSURI          = errors.New("discovery: provider metadata has no jwks_uri")
	ErrUnexpectedStatus   = errors.New("discovery: unexpected status")
	ErrUnexpectedMimeType = errors.New("discovery: unexpected content type")
	ErrEmptyKeySet        = errors.New("discovery: key set contains no usable keys")
)

// maxDocumentSize bounds discovery and JWKS response bodies.
const maxDocumentSize = 1 << 20

// Option configures a source.
type Option func(*options)

type options struct {
	client *http.Client
	log    *slog.Logger
	store  storage.Storage
	ttl    time.Duration

	watchDebounce time.Duration
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.client == nil {
		o.client = http.DefaultClient
	}
	if o.log == nil {
		o.log = slog.New(slog.DiscardHandler)
	}
	return o
}

// WithHTTPClient sets the client used for remote fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithLogger sets the logger. If not provided, logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithStorage makes FromConfig wrap the source in Cached using store and ttl.
func WithStorage(store storage.Storage, ttl time.Duration) Option {
	return func(o *options) {
		o.store = store
		o.ttl = ttl
	}
}

// Static returns a source that always reports a copy of meta.
func Static(meta auth.Metadata) auth.DiscoverySource {
	keys := append([]jose.JSONWebKey(nil), meta.Keys...)
	return auth.SourceFunc(func(ctx context.Context) (*auth.Metadata, error) {
		return &auth.Metadata{Issuer: meta.Issuer, JWKSURI: meta.JWKSURI, Keys: append([]jose.JSONWebKey(nil), keys...)}, nil
	})
}

// OIDC returns a source backed by OpenID Connect discovery. issuer may be the
// issuer URL or the full discovery document URL.
func OIDC(issuer string, opts ...Option) auth.DiscoverySource {
	o := newOptions(opts)
	issuer = strings.TrimSuffix(strings.TrimSuffix(issuer, wellknown.DiscoveryPath), "/")
	return auth.SourceFunc(func(ctx context.Context) (*auth.Metadata, error) {
		ctx = oidc.ClientContext(ctx, o.client)
		provider, err := oidc.NewProvider(ctx, issuer)
		if err != nil {
			o.log.WarnContext(ctx, "discovery.oidc.fail", slog.String("issuer", issuer), slog.String("err", err.Error()))
			return nil, fmt.Errorf("discover %s: %w", issuer, err)
		}
		var meta wellknown.ProviderMetadata
		if err := provider.Claims(&meta); err != nil {
			return nil, fmt.Errorf("decode provider metadata: %w", err)
		}
		if meta.Issuer == "" {
			return nil, ErrNoIssuer
		}
		if meta.JwksURI == "" {
			return nil, ErrNoJWKSURI
		}
		keys, err := fetchJWKS(ctx, o.client, meta.JwksURI)
		if err != nil {
			o.log.WarnContext(ctx, "discovery.jwks.fail", slog.String("jwks_uri", meta.JwksURI), slog.String("err", err.Error()))
			return nil, err
		}
		o.log.DebugContext(ctx, "discovery.oidc.ok", slog.String("issuer", meta.Issuer), slog.Int("keys", len(keys)))
		return &auth.Metadata{Issuer: meta.Issuer, JWKSURI: meta.JwksURI, Keys: keys}, nil
	})
}

var jwksMediaTypes = []contenttype.MediaType{
	contenttype.NewMediaType("application/json"),
	contenttype.NewMediaType("application/jwk-set+json"),
}

func fetchJWKS(ctx context.Context, client *http.Client, url string) ([]jose.JSONWebKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build jwks request: %w", err)
	}
	req.Header.Set("Accept", "application/jwk-set+json, application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d fetching %s", ErrUnexpectedStatus, resp.StatusCode, url)
	}
	if err := checkJSONContentType(resp.Header.Get("Content-Type")); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("read jwks: %w", err)
	}
	_, keys, err := decodeKeySet(body)
	return keys, err
}

// checkJSONContentType accepts an absent content type, JSON, and any +json
// structured syntax suffix.
func checkJSONContentType(header string) error {
	if header == "" {
		return nil
	}
	mt, err := contenttype.ParseMediaType(header)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnexpectedMimeType, header)
	}
	for _, want := range jwksMediaTypes {
		if mt.Type == want.Type && mt.Subtype == want.Subtype {
			return nil
		}
	}
	if mt.Type == "application" && strings.HasSuffix(mt.Subtype, "+json") {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnexpectedMimeType, header)
}

// decodeKeySet parses a JWKS document. Keys that fail to parse are skipped so
// that one unsupported key type does not hide the others. An optional
// top-level "issuer" member is returned as well.
func decodeKeySet(data []byte) (string, []jose.JSONWebKey, error) {
	var doc struct {
		Issuer string            `json:"issuer"`
		Keys   []json.RawMessage `json:"keys"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return "", nil, fmt.Errorf("decode key set: %w", err)
	}
	keys := make([]jose.JSONWebKey, 0, len(doc.Keys))
	for _, raw := range doc.Keys {
		var k jose.JSONWebKey
		if err := k.UnmarshalJSON(raw); err != nil {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return doc.Issuer, nil, ErrEmptyKeySet
	}
	return doc.Issuer, keys, nil
}
