package logctx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestHandlerAddsGroups(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(Handler{Handler: slog.NewJSONHandler(&buf, nil)}).With("component", "test")

	ctx := WithRequestData(context.Background(), &RequestData{RequestID: "r-1", Method: "GET", Path: "/x"})
	ctx = WithAuthData(ctx, &AuthData{Subject: "user-123", Verdict: "valid"})
	log.InfoContext(ctx, "auth.check.ok")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log: %v (%s)", err, buf.String())
	}
	if rec["component"] != "test" {
		t.Fatalf("WithAttrs lost: %v", rec)
	}
	req, _ := rec["req"].(map[string]any)
	if req["id"] != "r-1" || req["path"] != "/x" {
		t.Fatalf("req group = %v", req)
	}
	a, _ := rec["auth"].(map[string]any)
	if a["sub"] != "user-123" || a["verdict"] != "valid" {
		t.Fatalf("auth group = %v", a)
	}
}

func TestHandlerWithoutContextData(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(Handler{Handler: slog.NewJSONHandler(&buf, nil)})
	log.Info("plain")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log: %v", err)
	}
	if _, ok := rec["req"]; ok {
		t.Fatalf("unexpected req group: %v", rec)
	}
	if _, ok := RequestDataFrom(context.Background()); ok {
		t.Fatal("RequestDataFrom on empty ctx should be false")
	}
}
