package auth_test

import (
	"encoding/json"
	"testing"

	"github.com/ggoodman/bearergate/auth"
)

func TestNewClaimsFlattens(t *testing.T) {
	var payload map[string]any
	err := json.Unmarshal([]byte(`{
		"sub": "user-123",
		"roles": ["admin", "user"],
		"exp": 1700000000,
		"email_verified": true,
		"ratio": 0.5,
		"address": {"country": "NZ"},
		"nothing": null
	}`), &payload)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	c := auth.NewClaims(payload)

	want := []auth.Claim{
		{Type: "address", Value: `{"country":"NZ"}`},
		{Type: "email_verified", Value: "true"},
		{Type: "exp", Value: "1700000000"},
		{Type: "ratio", Value: "0.5"},
		{Type: "roles", Value: "admin"},
		{Type: "roles", Value: "user"},
		{Type: "sub", Value: "user-123"},
	}
	got := c.All()
	if len(got) != len(want) {
		t.Fatalf("All() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("All()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if c.Subject() != "user-123" || !c.Has("roles", "user") || c.Has("roles", "guest") {
		t.Fatal("accessor mismatch")
	}
	if v, ok := c.Get("missing"); ok || v != "" {
		t.Fatalf("Get(missing) = %q, %v", v, ok)
	}

	var typed struct {
		Sub   string   `json:"sub"`
		Roles []string `json:"roles"`
	}
	if err := c.Unmarshal(&typed); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if typed.Sub != "user-123" || len(typed.Roles) != 2 {
		t.Fatalf("typed = %+v", typed)
	}
}

func TestNilClaims(t *testing.T) {
	var c *auth.Claims
	if c.Len() != 0 || c.All() != nil || c.Values("x") != nil || c.Subject() != "" {
		t.Fatal("nil claims should behave as empty")
	}
}

func TestClaimsFromListUnmarshal(t *testing.T) {
	c := auth.ClaimsFromList(
		auth.Claim{Type: "sub", Value: "u1"},
		auth.Claim{Type: "role", Value: "a"},
		auth.Claim{Type: "role", Value: "b"},
	)
	var out map[string]any
	if err := c.Unmarshal(&out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	roles, _ := out["role"].([]any)
	if out["sub"] != "u1" || len(roles) != 2 {
		t.Fatalf("out = %v", out)
	}
}
