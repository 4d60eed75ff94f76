package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/ggoodman/bearergate/auth"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     auth.Config
		wantErr bool
	}{
		{name: "issuer", cfg: auth.Config{Issuer: "https://issuer.example", Audience: "api"}},
		{name: "discovery url", cfg: auth.Config{DiscoveryURL: "https://issuer.example/.well-known/openid-configuration", Audience: "api"}},
		{name: "jwks url", cfg: auth.Config{Issuer: "https://issuer.example", JWKSURL: "https://issuer.example/keys", Audience: "api"}},
		{name: "keys file", cfg: auth.Config{KeysFile: "/etc/keys.json", Audience: "api"}},
		{name: "empty", cfg: auth.Config{}, wantErr: true},
		{name: "no audience", cfg: auth.Config{Issuer: "https://issuer.example"}, wantErr: true},
		{name: "no source", cfg: auth.Config{Audience: "api"}, wantErr: true},
		{name: "jwks without issuer", cfg: auth.Config{JWKSURL: "https://issuer.example/keys", Audience: "api"}, wantErr: true},
		{name: "bad scheme", cfg: auth.Config{Issuer: "ftp://issuer.example", Audience: "api"}, wantErr: true},
		{name: "no host", cfg: auth.Config{Issuer: "https://", Audience: "api"}, wantErr: true},
		{name: "negative leeway", cfg: auth.Config{Issuer: "https://issuer.example", Audience: "api", Leeway: -time.Second}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, auth.ErrConfiguration) {
				t.Fatalf("Validate() error is not a configuration error: %v", err)
			}
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("BEARERGATE_ISSUER", " https://issuer.example ")
	t.Setenv("BEARERGATE_AUDIENCE", "https://api.example")
	t.Setenv("BEARERGATE_LEEWAY", "30s")
	t.Setenv("BEARERGATE_ALLOWED_ALGS", "RS256; ES256")
	t.Setenv("BEARERGATE_FOLD_SCOPE_CASE", "true")

	cfg, err := auth.ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.Issuer != "https://issuer.example" || cfg.Audience != "https://api.example" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Leeway != 30*time.Second || cfg.DiscoveryTimeout != 10*time.Second || cfg.CacheTTL != 15*time.Minute {
		t.Fatalf("durations = %v %v %v", cfg.Leeway, cfg.DiscoveryTimeout, cfg.CacheTTL)
	}
	if len(cfg.AllowedAlgs) != 2 || cfg.AllowedAlgs[0] != "RS256" || cfg.AllowedAlgs[1] != "ES256" {
		t.Fatalf("AllowedAlgs = %q", cfg.AllowedAlgs)
	}
	if !cfg.FoldScopeCase {
		t.Fatal("FoldScopeCase not decoded")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(cfg.Options()) != 4 {
		t.Fatalf("Options() returned %d options, want 4", len(cfg.Options()))
	}
}

func TestConfigCopy(t *testing.T) {
	cfg := auth.Config{AllowedAlgs: []string{"RS256"}}
	dup := cfg.Copy()
	dup.AllowedAlgs[0] = "ES256"
	if cfg.AllowedAlgs[0] != "RS256" {
		t.Fatal("Copy shares AllowedAlgs")
	}
}
