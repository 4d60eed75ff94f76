package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/MicahParks/keyfunc/v3"
	jose "github.com/go-jose/go-jose/v4"

	"github.com/ggoodman/bearergate/auth"
)

// JWKS returns a source for providers that publish a key set but no
// discovery document. The issuer must be supplied by the caller.
func JWKS(issuer, jwksURL string, opts ...Option) auth.DiscoverySource {
	o := newOptions(opts)
	return auth.SourceFunc(func(ctx context.Context) (*auth.Metadata, error) {
		if issuer == "" {
			return nil, ErrNoIssuer
		}
		// keyfunc keeps refreshing in the background until its context ends;
		// only a single snapshot is wanted here.
		kctx, cancel := context.WithCancel(ctx)
		defer cancel()

		kf, err := keyfunc.NewDefaultCtx(kctx, []string{jwksURL})
		if err != nil {
			o.log.WarnContext(ctx, "discovery.jwks.fail", slog.String("jwks_uri", jwksURL), slog.String("err", err.Error()))
			return nil, fmt.Errorf("jwks init failed: %w", err)
		}
		raw, err := kf.Storage().JSONPublic(kctx)
		if err != nil {
			return nil, fmt.Errorf("read jwks: %w", err)
		}
		_, keys, err := decodeKeySet(raw)
		if err != nil {
			o.log.WarnContext(ctx, "discovery.jwks.fail", slog.String("jwks_uri", jwksURL), slog.String("err", err.Error()))
			return nil, err
		}
		o.log.DebugContext(ctx, "discovery.jwks.ok", slog.String("jwks_uri", jwksURL), slog.Int("keys", len(keys)))
		return &auth.Metadata{Issuer: issuer, JWKSURI: jwksURL, Keys: keys}, nil
	})
}

// File returns a source that reads a JWKS document from path on every fetch.
// The document may carry a top-level "issuer" member; a non-empty issuer
// argument takes precedence over it.
func File(path, issuer string) auth.DiscoverySource {
	return auth.SourceFunc(func(ctx context.Context) (*auth.Metadata, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		fileIssuer, keys, err := decodeKeySet(data)
		if err != nil {
			return nil, fmt.Errorf("key file %s: %w", path, err)
		}
		iss := issuer
		if iss == "" {
			iss = fileIssuer
		}
		if iss == "" {
			return nil, ErrNoIssuer
		}
		return &auth.Metadata{Issuer: iss, Keys: keys}, nil
	})
}

// FromConfig builds the source selected by cfg. When WithStorage is given the
// source is wrapped in Cached, keyed by the configured location.
func FromConfig(cfg auth.Config, opts ...Option) (auth.DiscoverySource, error) {
	cfg = cfg.Copy()
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		src      auth.DiscoverySource
		location string
	)
	switch {
	case cfg.KeysFile != "":
		src, location = File(cfg.KeysFile, cfg.Issuer), "file:"+cfg.KeysFile
	case cfg.JWKSURL != "":
		src, location = JWKS(cfg.Issuer, cfg.JWKSURL, opts...), "jwks:"+cfg.JWKSURL
	case cfg.DiscoveryURL != "":
		src, location = OIDC(cfg.DiscoveryURL, opts...), "oidc:"+cfg.DiscoveryURL
	default:
		src, location = OIDC(cfg.Issuer, opts...), "oidc:"+cfg.Issuer
	}

	o := newOptions(opts)
	if o.store != nil {
		ttl := o.ttl
		if ttl == 0 {
			ttl = cfg.CacheTTL
		}
		return Cached(src, o.store, location, ttl, opts...), nil
	}
	return src, nil
}

// publicMetadata returns meta with every key reduced to its public half.
// Symmetric keys are dropped.
func publicMetadata(meta *auth.Metadata) (*auth.Metadata, error) {
	out := &auth.Metadata{Issuer: meta.Issuer, JWKSURI: meta.JWKSURI}
	for _, k := range meta.Keys {
		if k.IsPublic() {
			out.Keys = append(out.Keys, k)
			continue
		}
		if pub := k.Public(); pub.Valid() {
			out.Keys = append(out.Keys, pub)
		}
	}
	if len(out.Keys) == 0 {
		return nil, ErrEmptyKeySet
	}
	return out, nil
}

func encodeMetadata(meta *auth.Metadata) ([]byte, error) {
	pub, err := publicMetadata(meta)
	if err != nil {
		return nil, err
	}
	return json.Marshal(pub)
}

func decodeMetadata(data []byte) (*auth.Metadata, error) {
	var doc struct {
		Issuer  string            `json:"issuer"`
		JWKSURI string            `json:"jwks_uri"`
		Keys    []json.RawMessage `json:"keys"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Issuer == "" {
		return nil, errors.New("cached metadata has no issuer")
	}
	meta := &auth.Metadata{Issuer: doc.Issuer, JWKSURI: doc.JWKSURI}
	for _, raw := range doc.Keys {
		var k jose.JSONWebKey
		if err := k.UnmarshalJSON(raw); err != nil {
			return nil, err
		}
		meta.Keys = append(meta.Keys, k)
	}
	return meta, nil
}
