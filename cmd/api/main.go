package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-license-orderflow/internal/auth"
	"github.com/imrishuroy/go-license-orderflow/internal/aws"
	"github.com/imrishuroy/go-license-orderflow/internal/blob"
	"github.com/imrishuroy/go-license-orderflow/internal/catalog"
	"github.com/imrishuroy/go-license-orderflow/internal/checkout"
	"github.com/imrishuroy/go-license-orderflow/internal/config"
	"github.com/imrishuroy/go-license-orderflow/internal/download"
	"github.com/imrishuroy/go-license-orderflow/internal/fulfillment"
	"github.com/imrishuroy/go-license-orderflow/internal/gateway"
	"github.com/imrishuroy/go-license-orderflow/internal/handlers"
	"github.com/imrishuroy/go-license-orderflow/internal/logging"
	"github.com/imrishuroy/go-license-orderflow/internal/metrics"
	"github.com/imrishuroy/go-license-orderflow/internal/notify"
	"github.com/imrishuroy/go-license-orderflow/internal/storage"
	"github.com/imrishuroy/go-license-orderflow/internal/validation"
)

func setupRouter(logger *slog.Logger, cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(logger), metrics.Middleware())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())

	handlers.RegisterRoutes(r, cfg)

	return r
}

func newNotifier(cfg config.Config, clients *aws.AWSClients, logger *slog.Logger) fulfillment.Notifier {
	switch {
	case cfg.Notify.QueueURL != "":
		return notify.NewQueueNotifier(aws.NewPublisher(clients.SQS, cfg.Notify.QueueURL))
	case cfg.Notify.ResendAPIKey != "":
		return notify.NewResendMailer(notify.ResendConfig{
			APIKey:        cfg.Notify.ResendAPIKey,
			BaseURL:       cfg.Notify.ResendBaseURL,
			From:          cfg.Notify.From,
			OperatorEmail: cfg.Notify.OperatorEmail,
		})
	default:
		logger.Warn("no email provider configured; notifications are only logged")
		return notify.NewLogNotifier(logger)
	}
}

func newBlobStore(cfg config.Config, clients *aws.AWSClients) blob.Store {
	if cfg.Blob.Backend == "fs" {
		return blob.NewFSStore(cfg.Blob.Root)
	}
	return blob.NewS3Store(clients.S3, cfg.Blob.Bucket).WithPresigner(clients.S3Presign)
}

func newRecorder(cfg config.Config, clients *aws.AWSClients, logger *slog.Logger) metrics.Recorder {
	rec := metrics.Multi{metrics.Prometheus{}}
	if cfg.Metrics.CloudWatch {
		rec = append(rec, metrics.NewCloudWatch(clients.CloudWatch, cfg.Metrics.Namespace, logger))
	}
	return rec
}

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := logging.Init("api", cfg.App.LogFile)
	ctx := context.Background()

	clients, err := aws.NewAWSClients(ctx, aws.Options{Region: cfg.AWS.Region, EndpointOverride: cfg.AWS.Endpoint})
	if err != nil {
		logger.Error("failed to init aws clients", "err", err)
		os.Exit(1)
	}

	backends, err := storage.Open(ctx, cfg, clients.DynamoDB, logger)
	if err != nil {
		logger.Error("failed to open storage", "backend", cfg.Store.Backend, "err", err)
		os.Exit(1)
	}
	defer backends.Close()

	// RUN_LOCAL=true serves plain HTTP for development; otherwise run behind API Gateway.
	local := cfg.HTTP.RunLocal || os.Getenv("RUN_LOCAL") == "true"

	rec := newRecorder(cfg, clients, logger)
	gw := gateway.NewStripe(gateway.StripeConfig{
		SecretKey:  cfg.Stripe.SecretKey,
		Currency:   cfg.Checkout.Currency,
		SuccessURL: cfg.Checkout.SuccessURL,
		CancelURL:  cfg.Checkout.CancelURL,
	})

	hcfg := handlers.HandlerConfig{
		Checkout: checkout.NewService(catalog.NewValidator(backends.Catalog), gw, backends.Orders, backends.Idempotency, rec,
			checkout.Config{LicenseTier: cfg.Checkout.LicenseTier}),
		Fulfillment: fulfillment.NewMachine(backends.Orders, backends.Catalog, newNotifier(cfg, clients, logger), rec, fulfillment.Config{
			TokenTTL:      cfg.Fulfillment.TokenTTL,
			LegalVersion:  cfg.Fulfillment.LegalVersion,
			NotifyTimeout: cfg.Notify.Timeout,
			DownloadURL:   cfg.DownloadURL,
		}),
		Downloads: download.NewGate(backends.Orders, backends.Catalog, newBlobStore(cfg, clients), rec).
			WithLinkTTL(cfg.Blob.LinkTTL),
		Verifier:          auth.NewSignatureVerifier(cfg.Stripe.WebhookSecret, cfg.Stripe.WebhookTolerance),
		Metrics:           rec,
		Validator:         validation.New(),
		RedirectDownloads: cfg.RedirectDownloads(local),
	}
	if cfg.AdminEnabled() {
		hcfg.Operator = auth.NewOperatorAuthenticator(cfg.Admin.PasswordHash, cfg.Admin.JWTSecret, cfg.Admin.Issuer, cfg.Admin.SessionTTL)
		hcfg.Admin = backends.Orders
	}

	gin.SetMode(gin.ReleaseMode)
	r := setupRouter(logger, hcfg)

	if local {
		if err := serve(logger, cfg, r); err != nil {
			logger.Error("server stopped", "err", err)
			os.Exit(1)
		}
		return
	}

	adapter := ginadapter.New(r)
	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}

func serve(logger *slog.Logger, cfg config.Config, h http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      h,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("running local server", "addr", cfg.HTTP.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
