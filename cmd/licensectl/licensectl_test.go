package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/imrishuroy/go-license-orderflow/internal/auth"
)

func TestSignedEvent_VerifiesWithTheSameSecret(t *testing.T) {
	payload, header, err := signedEvent("whsec_cli", "checkout.session.completed", "cs_local_1", "paid", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := auth.NewSignatureVerifier("whsec_cli", 5*time.Minute).Verify(payload, header); err != nil {
		t.Fatalf("signature should verify: %v", err)
	}
	if err := auth.NewSignatureVerifier("whsec_other", 5*time.Minute).Verify(payload, header); err == nil {
		t.Fatalf("a different secret must not verify")
	}

	var ev struct {
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID            string `json:"id"`
				PaymentStatus string `json:"payment_status"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != "checkout.session.completed" || ev.Data.Object.ID != "cs_local_1" || ev.Data.Object.PaymentStatus != "paid" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestWebhookSignCommand(t *testing.T) {
	root := rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"webhook", "sign", "--secret", "whsec_cli", "--session", "cs_local_2"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), "Stripe-Signature: t=") || !strings.Contains(out.String(), "cs_local_2") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestCatalogSeedCommand_Memory(t *testing.T) {
	t.Setenv("LICENSE_STORE__BACKEND", "memory")
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	doc := "items:\n  - {id: a, title: A, artist: Nova, slug: a, price_cents: 99, active: true, audio_key: a.wav}\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	root := rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", "", "catalog", "seed", "--file", path})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out.String(), "seeded 1 items") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestCatalogPutCommand_RejectsInvalidItem(t *testing.T) {
	t.Setenv("LICENSE_STORE__BACKEND", "memory")
	root := rootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"catalog", "put", "--id", "a", "--title", "A", "--artist", "N", "--slug", "a", "--price-cents", "0", "--audio-key", "a.wav"})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "invalid item") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMigrateCommand_RequiresDSN(t *testing.T) {
	t.Setenv("LICENSE_STORE__POSTGRES_DSN", "")
	root := rootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--config", "", "migrate"})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "no postgres dsn") {
		t.Fatalf("expected dsn error, got %v", err)
	}
}
