package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lmittmann/tint"

	"github.com/pvzzle/tracechain/internal/chain"
	"github.com/pvzzle/tracechain/internal/httpapi"
	"github.com/pvzzle/tracechain/internal/registry"
	"github.com/pvzzle/tracechain/internal/secrets"
	"github.com/pvzzle/tracechain/internal/storage/pg"
)

const version = "2.1.0"

func Run(ctx context.Context) error {
	slog.SetDefault(slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		TimeFormat: time.RFC3339,
	})))

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	pgPool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("pgxpool new: %w", err)
	}
	defer pgPool.Close()

	repo := pg.New(pgPool)
	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	boot := bootstrapChain(ctx, cfg)

	svc := registry.NewService(repo, boot)
	e := httpapi.New(svc, boot, version)

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(cfg.HTTPAddr)
	}()

	slog.Info("started", "addr", cfg.HTTPAddr, "blockchain", boot.State().String())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// bootstrapChain never fails the process: a missing secret or an
// unreachable network degrades the blockchain integration and the
// store-backed API keeps serving.
func bootstrapChain(ctx context.Context, cfg Config) *chain.Bootstrap {
	var provider secrets.Provider

	switch cfg.SecretsProvider {
	case "aws":
		p, err := secrets.NewManagerProvider(ctx, cfg.SecretsName)
		if err != nil {
			return chain.NewDegraded(fmt.Sprintf("secrets manager init: %v", err))
		}
		provider = p
	case "env":
		provider = secrets.EnvProvider{}
	default:
		return chain.NewDegraded(fmt.Sprintf("unknown secrets provider %q", cfg.SecretsProvider))
	}

	blob, err := provider.Fetch(ctx)
	if err != nil {
		return chain.NewDegraded(fmt.Sprintf("fetch secrets: %v", err))
	}

	return chain.Init(ctx, blob)
}
