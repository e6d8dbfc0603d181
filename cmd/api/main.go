package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fastprodman/arcadegate/internal/api"
	"github.com/fastprodman/arcadegate/internal/infra/logging"
	"github.com/fastprodman/arcadegate/internal/infra/pgutils"
	"github.com/fastprodman/arcadegate/internal/patreon"
	"github.com/fastprodman/arcadegate/internal/payment"
	"github.com/fastprodman/arcadegate/internal/repos/scores"
	"github.com/fastprodman/arcadegate/internal/repos/scores/logsink"
	pgscores "github.com/fastprodman/arcadegate/internal/repos/scores/postgres"
	"github.com/fastprodman/arcadegate/internal/services/ledger"
	"github.com/fastprodman/arcadegate/pkg/envconf"
	"github.com/fastprodman/arcadegate/pkg/shutdownqueue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v\n", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	cfg := new(apiConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	logging.SetupJSON(cfg.LogLevel)

	err = cfg.Validate()
	if err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	asset, err := cfg.Payment.PaymentAsset()
	if err != nil {
		return fmt.Errorf("resolve payment asset: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := shutdownqueue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Infra ---
	recorder, err := openRecorder(ctx, cfg)
	if err != nil {
		return err
	}

	httpClient := &http.Client{Timeout: cfg.Payment.FacilitatorTimeout}

	facilitator := payment.NewFacilitator(cfg.Payment.FacilitatorURL, httpClient)
	gate := payment.NewGate(facilitator, payment.GateConfig{
		PayTo:   cfg.Payment.Address,
		Network: cfg.Payment.Network,
		Asset:   asset,
	}, slog.Default())

	identity := patreon.New(patreon.Config{
		ClientID:     cfg.Patreon.ClientID,
		ClientSecret: cfg.Patreon.ClientSecret,
		RedirectURI:  cfg.Patreon.RedirectURI,
	}, httpClient)

	ledgerSrv := ledger.New(cfg.Payment.DepositCredits(),
		ledger.WithRecorder(recorder),
		ledger.WithLogger(slog.Default()),
	)

	// --- HTTP server ---
	srv := api.NewServer(cfg.Port, api.Deps{
		Ledger:   ledgerSrv,
		Gate:     gate,
		Identity: identity,
		Prices: api.Prices{
			Game:     cfg.Payment.GamePrice,
			Continue: cfg.Payment.ContinuePrice,
			Deposit:  cfg.Payment.DepositPrice,
		},
		PayTo:          cfg.Payment.Address,
		Network:        cfg.Payment.Network,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         slog.Default(),
	})

	// Register HTTP server graceful shutdown
	shutdownqueue.Add(func(c context.Context) error {
		slog.Info("Shut down server")

		err := srv.Shutdown(c)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	// Run server
	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	slog.Info("API started",
		"port", cfg.Port,
		"pay_to", cfg.Payment.Address,
		"network", cfg.Payment.Network,
		"facilitator", cfg.Payment.FacilitatorURL,
		"game_price", cfg.Payment.GamePrice.String(),
		"continue_price", cfg.Payment.ContinuePrice.String(),
		"deposit_price", cfg.Payment.DepositPrice.String(),
		"deposit_credits", ledgerSrv.DepositCredits(),
		"score_store", cfg.Scores.Enabled(),
	)

	// --- Wait until either context cancels or server errors out ---
	select {
	case <-ctx.Done():
		// graceful path; deferred shutdownqueue.Shutdown will run
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}

// openRecorder picks the Postgres score store when PG_DSN is set and the log
// sink otherwise.
func openRecorder(ctx context.Context, cfg *apiConfig) (scores.Recorder, error) {
	if !cfg.Scores.Enabled() {
		slog.Info("PG_DSN not set, scores go to the log")
		return logsink.New(slog.Default()), nil
	}

	db, err := pgutils.OpenDB(ctx, cfg.Scores)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	shutdownqueue.Add(func(context.Context) error {
		slog.Info("Close database")

		err := db.Close()
		if err != nil {
			return fmt.Errorf("close db: %w", err)
		}

		return nil
	})

	return pgscores.New(db), nil
}
