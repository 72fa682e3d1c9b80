package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setSecrets(t *testing.T) {
	t.Helper()
	t.Setenv("LICENSE_STRIPE__SECRET_KEY", "sk_test_123")
	t.Setenv("LICENSE_STRIPE__WEBHOOK_SECRET", "whsec_test")
	t.Setenv("LICENSE_BLOB__BUCKET", "audio")
}

func TestLoad_Defaults(t *testing.T) {
	setSecrets(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Fulfillment.TokenTTL != 24*time.Hour {
		t.Errorf("token ttl = %s", cfg.Fulfillment.TokenTTL)
	}
	if cfg.Fulfillment.LegalVersion != "v1.0" {
		t.Errorf("legal version = %q", cfg.Fulfillment.LegalVersion)
	}
	if cfg.Notify.Timeout != 5*time.Second {
		t.Errorf("notify timeout = %s", cfg.Notify.Timeout)
	}
	if cfg.Stripe.WebhookTolerance != 5*time.Minute {
		t.Errorf("webhook tolerance = %s", cfg.Stripe.WebhookTolerance)
	}
	if cfg.Checkout.SuccessURL != "http://localhost:8080/success?session_id={CHECKOUT_SESSION_ID}" {
		t.Errorf("success url = %q", cfg.Checkout.SuccessURL)
	}
	if cfg.AdminEnabled() {
		t.Errorf("admin must be disabled without a password hash")
	}
	if cfg.Blob.Delivery != "auto" || cfg.Blob.LinkTTL != 5*time.Minute {
		t.Errorf("blob delivery = %q ttl = %s", cfg.Blob.Delivery, cfg.Blob.LinkTTL)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	setSecrets(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
http:
  addr: ":9090"
  public_base_url: "https://licenses.example.com/"
store:
  backend: memory
fulfillment:
  token_ttl: 12h
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LICENSE_FULFILLMENT__TOKEN_TTL", "48h")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Addr != ":9090" || cfg.Store.Backend != "memory" {
		t.Fatalf("file values not applied: %+v", cfg.HTTP)
	}
	if cfg.Fulfillment.TokenTTL != 48*time.Hour {
		t.Fatalf("env should win over file, got %s", cfg.Fulfillment.TokenTTL)
	}
	// defaults survive partial sections
	if cfg.Fulfillment.LegalVersion != "v1.0" {
		t.Fatalf("default lost: %q", cfg.Fulfillment.LegalVersion)
	}
	if got := cfg.DownloadURL("abc"); got != "https://licenses.example.com/download/abc" {
		t.Fatalf("download url = %q", got)
	}
}

func TestLoad_MissingSecrets(t *testing.T) {
	t.Setenv("LICENSE_BLOB__BUCKET", "audio")
	_, err := Load("")
	if err == nil {
		t.Fatal("expected error without stripe secrets")
	}
	if !strings.Contains(err.Error(), "secretkey") {
		t.Fatalf("error should name the field, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		c := Default()
		c.Stripe.SecretKey = "sk"
		c.Stripe.WebhookSecret = "wh"
		c.Blob.Bucket = "b"
		return c
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults with secrets", func(*Config) {}, true},
		{"postgres needs dsn", func(c *Config) { c.Store.Backend = "postgres" }, false},
		{"postgres with dsn", func(c *Config) { c.Store.Backend = "postgres"; c.Store.PostgresDSN = "postgres://x" }, true},
		{"unknown backend", func(c *Config) { c.Store.Backend = "redis" }, false},
		{"fs blob needs root", func(c *Config) { c.Blob.Backend = "fs" }, false},
		{"zero token ttl", func(c *Config) { c.Fulfillment.TokenTTL = 0 }, false},
		{"bad operator email", func(c *Config) { c.Notify.OperatorEmail = "ops" }, false},
		{"admin needs long secret", func(c *Config) { c.Admin.PasswordHash = "$2a$10$x"; c.Admin.JWTSecret = "short" }, false},
		{"unknown delivery", func(c *Config) { c.Blob.Delivery = "proxy" }, false},
		{"redirect needs s3", func(c *Config) { c.Blob.Backend = "fs"; c.Blob.Root = "/srv"; c.Blob.Delivery = "redirect" }, false},
		{"zero link ttl", func(c *Config) { c.Blob.LinkTTL = 0 }, false},
		{"admin ok", func(c *Config) {
			c.Admin.PasswordHash = "$2a$10$x"
			c.Admin.JWTSecret = strings.Repeat("k", 32)
		}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(&c)
			err := c.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRedirectDownloads(t *testing.T) {
	cases := []struct {
		name     string
		backend  string
		delivery string
		local    bool
		want     bool
	}{
		{"auto behind api gateway", "s3", "auto", false, true},
		{"auto when serving locally", "s3", "auto", true, false},
		{"auto with fs", "fs", "auto", false, false},
		{"forced stream", "s3", "stream", false, false},
		{"forced redirect locally", "s3", "redirect", true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			c.Blob.Backend = tc.backend
			c.Blob.Delivery = tc.delivery
			if got := c.RedirectDownloads(tc.local); got != tc.want {
				t.Fatalf("RedirectDownloads(%v) = %v, want %v", tc.local, got, tc.want)
			}
		})
	}
}

func TestRead_SkipsValidation(t *testing.T) {
	t.Setenv("LICENSE_STORE__BACKEND", "postgres")
	t.Setenv("LICENSE_STORE__POSTGRES_DSN", "postgres://localhost/licenses")

	cfg, err := Read("")
	if err != nil {
		t.Fatalf("read without secrets should succeed, got %v", err)
	}
	if cfg.Store.Backend != "postgres" || cfg.Store.PostgresDSN != "postgres://localhost/licenses" {
		t.Fatalf("env overlay not applied: %+v", cfg.Store)
	}
	if cfg.Validate() == nil {
		t.Fatalf("missing stripe secrets should still fail Validate")
	}
}
