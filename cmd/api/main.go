package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/onliner/medibill/internal/config"
	"github.com/onliner/medibill/internal/database"
	medibillHttp "github.com/onliner/medibill/internal/http"
	invoiceHandler "github.com/onliner/medibill/internal/http/invoice"
	signingHandler "github.com/onliner/medibill/internal/http/signing"
	"github.com/onliner/medibill/internal/inbox"
	"github.com/onliner/medibill/internal/invoice"
	invStore "github.com/onliner/medibill/internal/invoice/store"
	"github.com/onliner/medibill/internal/kvstore"
	"github.com/onliner/medibill/internal/notify"
	"github.com/onliner/medibill/internal/signature"
	"github.com/onliner/medibill/internal/status"
	"github.com/onliner/medibill/internal/syncbus"
)

func main() {
	// Optional .env for local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var (
		repo invoice.Repository
		kv   kvstore.Store
	)

	switch cfg.Storage.Backend {
	case "memory":
		repo = invoice.NewMemoryRepository()
		kv = kvstore.NewMemory()
	default:
		db, err := database.New(context.Background(), cfg.ConnectionString())
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		repo = invStore.New(db)
		kv = kvstore.NewPostgres(db)
	}

	var notifier notify.Dispatcher = notify.Nop{}
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhook(cfg.Notify.WebhookURL, cfg.Notify.LinkBase)
	}

	bus := syncbus.New()
	session := bus.NewSession()

	var (
		vault          = signature.NewVault(kv, session)
		ledger         = status.NewLedger(kv, vault, session)
		invoiceService = invoice.NewService(repo, ledger, notifier)
		projector      = inbox.NewProjector(repo, ledger)
	)

	var (
		invoicesH = invoiceHandler.NewHandler(invoiceService, projector, notifier)
		signingH  = signingHandler.NewHandler(invoiceService, ledger, vault)
	)

	router := medibillHttp.New(invoicesH, signingH, medibillHttp.Options{
		JWTSecret:      cfg.Auth.JWTSecret,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	slog.Info("starting server", "app", cfg.App.Name, "addr", server.Addr, "storage", cfg.Storage.Backend)

	if err := server.ListenAndServe(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
