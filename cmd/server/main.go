// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moov-io/autopay"
	"github.com/moov-io/autopay/internal/mask"
	"github.com/moov-io/autopay/internal/route"
	"github.com/moov-io/autopay/internal/secrets"
	"github.com/moov-io/autopay/internal/trace"
	"github.com/moov-io/autopay/pkg/achq"
	"github.com/moov-io/autopay/pkg/authorizations"
	"github.com/moov-io/autopay/pkg/billing"
	"github.com/moov-io/autopay/pkg/config"
	cfgadmin "github.com/moov-io/autopay/pkg/config/admin"
	"github.com/moov-io/autopay/pkg/database"
	"github.com/moov-io/autopay/pkg/events"
	"github.com/moov-io/autopay/pkg/idempotent"
	"github.com/moov-io/autopay/pkg/lifecycle"
	"github.com/moov-io/autopay/pkg/linking"
	"github.com/moov-io/autopay/pkg/notify"
	"github.com/moov-io/autopay/pkg/plaid"
	"github.com/moov-io/autopay/pkg/resolution"
	"github.com/moov-io/autopay/pkg/scheduling"
	"github.com/moov-io/autopay/pkg/status"
	"github.com/moov-io/autopay/pkg/util"
	"github.com/moov-io/autopay/pkg/validation"
	"github.com/moov-io/autopay/pkg/webhooks"

	"github.com/moov-io/base/admin"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
)

var (
	flagConfigFile = flag.String("config", "", "Filepath for config file to load")
	flagEnvFile    = flag.String("env", ".env", "Filepath for .env file to load")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(*flagEnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		panic(fmt.Sprintf("failed to load %s: %v", *flagEnvFile, err))
	}

	cfg, err := readConfig(util.Or(os.Getenv("CONFIG_FILE"), *flagConfigFile))
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	cfg.Logger.Log("startup", fmt.Sprintf("Starting autopay server version %s", autopay.Version))

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	// Listen for application termination.
	errs := make(chan error)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errs <- fmt.Errorf("%s", <-c)
	}()

	_, tracerCloser, err := trace.New(cfg.Logger, cfg.Tracing)
	if err != nil {
		panic(fmt.Sprintf("failed to setup tracing: %v", err))
	}
	defer tracerCloser.Close()

	// Spin up admin HTTP server
	adminServer := admin.NewServer(util.Or(os.Getenv("HTTP_ADMIN_BIND_ADDRESS"), cfg.Admin.BindAddress))
	adminServer.AddVersionHandler(autopay.Version) // Setup 'GET /version'
	go func() {
		cfg.Logger.Log("admin", fmt.Sprintf("listening on %s", adminServer.BindAddr()))
		if err := adminServer.Listen(); err != nil {
			err = fmt.Errorf("problem starting admin http: %v", err)
			cfg.Logger.Log("admin", err)
			errs <- err
		}
	}()
	defer adminServer.Shutdown()
	cfgadmin.RegisterRoutes(adminServer, cfg)

	// migrate database
	db, err := database.New(ctx, cfg.Logger, cfg.Database)
	if err != nil {
		panic(fmt.Sprintf("error creating database: %v", err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			cfg.Logger.Log("exit", err)
		}
	}()
	adminServer.AddLivenessCheck("database", db.Ping)

	keeper, err := secrets.NewTokenKeeper(ctx, cfg.Secrets, 10*time.Second)
	if err != nil {
		panic(fmt.Sprintf("failed to open secrets keeper: %v", err))
	}
	defer keeper.Close()

	var recorder *idempotent.Redis
	if cfg.Idempotency.Redis != nil {
		recorder, err = idempotent.NewRedis(ctx, cfg.Logger, cfg.Idempotency.Redis)
		if err != nil {
			panic(fmt.Sprintf("failed to connect to redis: %v", err))
		}
		defer recorder.Close()
		route.IdempotentRecorder = recorder
	}

	alerts, err := notify.NewMultiSender(cfg.Logger, cfg.Alerting)
	if err != nil {
		panic(fmt.Sprintf("failed to setup alerting: %v", err))
	}

	// Setup repositories
	authRepo := authorizations.NewRepo(db)
	eventRepo := events.NewRepo(db)
	loanRepo := resolution.NewRepo(db)
	invoiceRepo := billing.NewRepo(db)
	webhookRepo := webhooks.NewRepo(db)

	emitter := events.NewEmitter(cfg.Logger, eventRepo)
	authorizations.RegisterAdminRoutes(cfg.Logger, adminServer, authRepo)

	publisher, err := scheduling.NewPublisher(ctx, cfg.Logger, cfg.Scheduling)
	if err != nil {
		panic(fmt.Sprintf("failed to open scheduling stream: %v", err))
	}
	defer publisher.Shutdown(context.Background())

	controller := lifecycle.NewController(cfg.Logger, cfg.Verification, authRepo, keeper, emitter, setupVerifier(cfg), publisher)
	engine := resolution.NewEngine(cfg.Logger, loanRepo, authRepo, emitter)
	invoices := billing.NewService(cfg.Logger, cfg.Billing, invoiceRepo, setupBillingProvider(cfg), engine, emitter)
	if recorder != nil {
		invoices.UseLimiter(recorder)
	}

	var linkClient plaid.Client
	var plaidKeys webhooks.PlaidKeys
	var linkEnvironment string
	if cfg.Linking.Plaid != nil {
		client, err := plaid.NewClient(cfg.Logger, cfg.Linking.Plaid)
		if err != nil {
			panic(fmt.Sprintf("failed to setup plaid: %v", err))
		}
		linkClient, plaidKeys, linkEnvironment = client, client, cfg.Linking.Plaid.Environment
		cfg.Logger.Log("linking", fmt.Sprintf("using Plaid client %s in %s", mask.Password(cfg.Linking.Plaid.ClientID), linkEnvironment))
	}
	coordinator := linking.NewCoordinator(cfg.Logger, linkClient, linkEnvironment, controller, alerts)

	processor := webhooks.NewProcessor(cfg.Logger, webhookRepo, authRepo, controller, invoices, alerts, cfg.Billing.Stripe.GetWebhookSecret(), plaidKeys)

	// Create HTTP handler
	handler := mux.NewRouter()
	route.PingRoute(cfg.Logger, handler)
	lifecycle.NewRouter(cfg.Logger, controller).RegisterRoutes(handler)
	resolution.NewRouter(cfg.Logger, engine).RegisterRoutes(handler)
	status.NewRouter(cfg.Logger, status.NewService(engine, invoices)).RegisterRoutes(handler)
	validation.NewRouter(cfg.Logger).RegisterRoutes(handler)
	linking.NewRouter(cfg.Logger, coordinator).RegisterRoutes(handler)
	billing.NewRouter(cfg.Logger, invoices).RegisterRoutes(handler)
	webhooks.NewRouter(cfg.Logger, processor).RegisterRoutes(handler)
	events.NewRouter(cfg.Logger, eventRepo).RegisterRoutes(handler)

	// Create main HTTP server
	httpAddr := util.Or(os.Getenv("HTTP_BIND_ADDRESS"), cfg.Http.BindAddress)
	serve := &http.Server{
		Addr:    httpAddr,
		Handler: handler,
		TLSConfig: &tls.Config{
			InsecureSkipVerify:       false,
			PreferServerCipherSuites: true,
			MinVersion:               tls.VersionTLS12,
		},
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	shutdownServer := func() {
		if err := serve.Shutdown(context.TODO()); err != nil {
			cfg.Logger.Log("shutdown", err)
		}
	}
	defer shutdownServer()

	// Start main HTTP server
	go func() {
		if certFile, keyFile := os.Getenv("HTTPS_CERT_FILE"), os.Getenv("HTTPS_KEY_FILE"); certFile != "" && keyFile != "" {
			cfg.Logger.Log("startup", fmt.Sprintf("binding to %s for secure HTTP server", httpAddr))
			if err := serve.ListenAndServeTLS(certFile, keyFile); err != nil {
				cfg.Logger.Log("exit", err)
			}
		} else {
			cfg.Logger.Log("startup", fmt.Sprintf("binding to %s for HTTP server", httpAddr))
			if err := serve.ListenAndServe(); err != nil {
				cfg.Logger.Log("exit", err)
			}
		}
	}()

	if err := <-errs; err != nil {
		cfg.Logger.Log("exit", err)
	}
}

func readConfig(path string) (*config.Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
	}
	return config.FromFile(path)
}

// setupVerifier returns nil when ACHQ isn't configured, which stores manual
// accounts as unverified.
func setupVerifier(cfg *config.Config) achq.Client {
	if cfg.Verification.ACHQ == nil {
		cfg.Logger.Log("verification", "ACHQ is not configured, manual accounts won't be verified", "level", "warn")
		return nil
	}
	client, err := achq.NewClient(cfg.Logger, cfg.Verification.ACHQ)
	if err != nil {
		panic(fmt.Sprintf("failed to setup ACHQ: %v", err))
	}
	return client
}

func setupBillingProvider(cfg *config.Config) billing.Provider {
	if cfg.Billing.Stripe == nil {
		cfg.Logger.Log("billing", "Stripe is not configured, invoices can't be issued", "level", "warn")
		return nil
	}
	client, err := billing.NewStripe(cfg.Logger, cfg.Billing)
	if err != nil {
		panic(fmt.Sprintf("failed to setup stripe: %v", err))
	}
	cfg.Logger.Log("billing", fmt.Sprintf("using Stripe key %s", mask.Key(cfg.Billing.Stripe.SecretKey)))
	return client
}
