package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override, e.g. LICENSE_STRIPE__SECRET_KEY.
const EnvPrefix = "LICENSE_"

type Config struct {
	App struct {
		Name    string `koanf:"name" validate:"required"`
		LogFile string `koanf:"log_file"` // empty: stdout only
	} `koanf:"app"`

	HTTP struct {
		Addr          string        `koanf:"addr" validate:"required"`
		PublicBaseURL string        `koanf:"public_base_url" validate:"required,url"`
		ReadTimeout   time.Duration `koanf:"read_timeout"`
		WriteTimeout  time.Duration `koanf:"write_timeout"`
		RunLocal      bool          `koanf:"run_local"`
	} `koanf:"http"`

	AWS struct {
		Region   string `koanf:"region"`
		Endpoint string `koanf:"endpoint"` // localstack
	} `koanf:"aws"`

	Store struct {
		Backend     string `koanf:"backend" validate:"oneof=dynamodb postgres memory"`
		PostgresDSN string `koanf:"postgres_dsn" validate:"required_if=Backend postgres"`
	} `koanf:"store"`

	Tables struct {
		Orders      string `koanf:"orders" validate:"required"`
		Sessions    string `koanf:"sessions" validate:"required"`
		Tokens      string `koanf:"tokens" validate:"required"`
		Acceptances string `koanf:"acceptances" validate:"required"`
		Catalog     string `koanf:"catalog" validate:"required"`
		Idempotency string `koanf:"idempotency" validate:"required"`
	} `koanf:"tables"`

	Stripe struct {
		SecretKey        string        `koanf:"secret_key" validate:"required"`
		WebhookSecret    string        `koanf:"webhook_secret" validate:"required"`
		WebhookTolerance time.Duration `koanf:"webhook_tolerance" validate:"gt=0"`
	} `koanf:"stripe"`

	Checkout struct {
		Currency    string `koanf:"currency" validate:"required,len=3"`
		LicenseTier string `koanf:"license_tier" validate:"required"`
		SuccessURL  string `koanf:"success_url"` // default: <public_base_url>/success?session_id={CHECKOUT_SESSION_ID}
		CancelURL   string `koanf:"cancel_url"`  // default: <public_base_url>/catalog
	} `koanf:"checkout"`

	Fulfillment struct {
		TokenTTL     time.Duration `koanf:"token_ttl" validate:"gt=0"`
		LegalVersion string        `koanf:"legal_version" validate:"required"`
	} `koanf:"fulfillment"`

	Notify struct {
		Timeout       time.Duration `koanf:"timeout" validate:"gt=0"`
		From          string        `koanf:"from"`
		OperatorEmail string        `koanf:"operator_email" validate:"omitempty,email"`
		ResendAPIKey  string        `koanf:"resend_api_key"` // empty: notifications are only logged
		ResendBaseURL string        `koanf:"resend_base_url" validate:"required,url"`
		QueueURL      string        `koanf:"queue_url"` // set: enqueue for cmd/worker instead of sending inline
	} `koanf:"notify"`

	Blob struct {
		Backend string `koanf:"backend" validate:"oneof=s3 fs"`
		Bucket  string `koanf:"bucket" validate:"required_if=Backend s3"`
		Root    string `koanf:"root" validate:"required_if=Backend fs"`
		// auto redirects to a presigned link when running behind API Gateway with s3
		Delivery string        `koanf:"delivery" validate:"oneof=auto stream redirect"`
		LinkTTL  time.Duration `koanf:"link_ttl" validate:"gt=0"`
	} `koanf:"blob"`

	Idempotency struct {
		TTL time.Duration `koanf:"ttl" validate:"gt=0"`
	} `koanf:"idempotency"`

	Admin struct {
		PasswordHash string        `koanf:"password_hash"` // bcrypt; empty disables /admin
		JWTSecret    string        `koanf:"jwt_secret"`
		SessionTTL   time.Duration `koanf:"session_ttl" validate:"gt=0"`
		Issuer       string        `koanf:"issuer" validate:"required"`
	} `koanf:"admin"`

	Metrics struct {
		Namespace  string `koanf:"namespace" validate:"required"`
		CloudWatch bool   `koanf:"cloudwatch"`
	} `koanf:"metrics"`
}

// Default returns the documented defaults. Secrets have none.
func Default() Config {
	var c Config
	c.App.Name = "license-orderflow"
	c.HTTP.Addr = ":8080"
	c.HTTP.PublicBaseURL = "http://localhost:8080"
	c.HTTP.ReadTimeout = 10 * time.Second
	c.HTTP.WriteTimeout = 60 * time.Second
	c.AWS.Region = "us-east-1"
	c.Store.Backend = "dynamodb"
	c.Tables.Orders = "orders"
	c.Tables.Sessions = "order_sessions"
	c.Tables.Tokens = "download_tokens"
	c.Tables.Acceptances = "terms_acceptances"
	c.Tables.Catalog = "catalog"
	c.Tables.Idempotency = "idempotency"
	c.Stripe.WebhookTolerance = 5 * time.Minute
	c.Checkout.Currency = "usd"
	c.Checkout.LicenseTier = "STANDARD"
	c.Fulfillment.TokenTTL = 24 * time.Hour
	c.Fulfillment.LegalVersion = "v1.0"
	c.Notify.Timeout = 5 * time.Second
	c.Notify.From = "Licenses <onboarding@resend.dev>"
	c.Notify.ResendBaseURL = "https://api.resend.com"
	c.Blob.Backend = "s3"
	c.Blob.Delivery = "auto"
	c.Blob.LinkTTL = 5 * time.Minute
	c.Idempotency.TTL = 48 * time.Hour
	c.Admin.SessionTTL = 8 * time.Hour
	c.Admin.Issuer = "license-orderflow"
	c.Metrics.Namespace = "LicenseOrders"
	return c
}

// Load builds the config from defaults, the optional YAML file at path and
// LICENSE_* environment variables, in that order, and validates the result.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read is Load without validation, for tools that only need some sections.
func Read(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	// nested keys use __, e.g. LICENSE_NOTIFY__QUEUE_URL -> notify.queue_url
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	cfg.applyDerived()
	return cfg, nil
}

func (c *Config) applyDerived() {
	base := strings.TrimRight(c.HTTP.PublicBaseURL, "/")
	if c.Checkout.SuccessURL == "" {
		c.Checkout.SuccessURL = base + "/success?session_id={CHECKOUT_SESSION_ID}"
	}
	if c.Checkout.CancelURL == "" {
		c.Checkout.CancelURL = base + "/catalog"
	}
}

// Validate checks struct tags once at startup.
func (c Config) Validate() error {
	if err := validatorv10.New().Struct(c); err != nil {
		var ve validatorv10.ValidationErrors
		if errors.As(err, &ve) {
			fields := make([]string, 0, len(ve))
			for _, fe := range ve {
				fields = append(fields, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Namespace()), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.AdminEnabled() && len(c.Admin.JWTSecret) < 32 {
		return errors.New("invalid config: admin.jwt_secret must be at least 32 bytes when admin is enabled")
	}
	if c.Blob.Delivery == "redirect" && c.Blob.Backend != "s3" {
		return errors.New("invalid config: blob.delivery redirect needs the s3 backend")
	}
	return nil
}

// RedirectDownloads reports whether downloads should be answered with a
// presigned link instead of streamed. local is true when serving plain HTTP.
func (c Config) RedirectDownloads(local bool) bool {
	switch c.Blob.Delivery {
	case "redirect":
		return true
	case "stream":
		return false
	default:
		return !local && c.Blob.Backend == "s3"
	}
}

// AdminEnabled reports whether operator endpoints should be mounted.
func (c Config) AdminEnabled() bool {
	return c.Admin.PasswordHash != ""
}

// DownloadURL is the public link for a token.
func (c Config) DownloadURL(token string) string {
	return strings.TrimRight(c.HTTP.PublicBaseURL, "/") + "/download/" + token
}
