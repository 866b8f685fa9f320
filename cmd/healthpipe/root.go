package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/kholm/healthpipe/internal/config"
	"github.com/kholm/healthpipe/internal/logging"
	"github.com/kholm/healthpipe/internal/store"
)

// app carries state shared by all subcommands. Configuration is loaded once
// in the root PersistentPreRunE; the pool is opened lazily by commands that
// touch the database.
type app struct {
	cfg *config.Config
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "healthpipe",
		Short:         "Ingest personal health exports into PostgreSQL",
		Long:          "healthpipe reads Apple Health, LoseIt, smart scale and glucose meter exports,\nnormalizes them into canonical records and loads them idempotently into PostgreSQL.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
			a.cfg = cfg
			a.log = logging.ForRun()
			a.log.Debug("configuration loaded", "config", cfg.String())
			return nil
		},
	}

	root.AddCommand(
		newIngestCmd(a),
		newInitDBCmd(a),
		newCountsCmd(a),
		newVersionCmd(),
	)
	return root
}

// connect opens the connection pool and verifies it with a ping.
func (a *app) connect(ctx context.Context) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(a.cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(a.cfg.Database.MaxConns)
	poolConfig.MinConns = int32(a.cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = a.cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = a.cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %v", store.ErrStoreUnavailable, err)
	}

	if u, err := url.Parse(a.cfg.Database.URL); err == nil {
		a.log.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		a.log.Info("connected to database")
	}

	return pool, nil
}
