// Command partsctl runs operator tasks against the catalog database without
// going through the HTTP API.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/partsdesk-backend/internal/app"
	"github.com/angelmondragon/partsdesk-backend/pkg/config"
	"github.com/angelmondragon/partsdesk-backend/pkg/db"
	"github.com/angelmondragon/partsdesk-backend/pkg/logger"
	"github.com/angelmondragon/partsdesk-backend/pkg/redis"
)

// env is the process state a command needs. It is opened lazily so that
// --help never touches the database.
type env struct {
	cfg      *config.Config
	logg     *logger.Logger
	services *app.Services
	closers  []func() error
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil && e.logg != nil {
			e.logg.Error(context.Background(), "partsctl: close resource", err)
		}
	}
}

type opener func(ctx context.Context) (*env, error)

func openEnv(ctx context.Context) (*env, error) {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logg := logger.New(logger.Options{
		ServiceName: "partsctl",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Output:      os.Stderr,
	})
	e := &env{cfg: cfg, logg: logg}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	e.closers = append(e.closers, dbClient.Close)

	// an import from the CLI must still exclude imports running in the API
	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	e.closers = append(e.closers, redisClient.Close)

	e.services, err = app.Build(app.Params{
		Config: cfg,
		Logger: logg,
		DB:     dbClient,
		Redis:  redisClient,
	})
	if err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "partsctl",
		Short:         "Operator tooling for the parts catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCatalogCmd(open), newUsersCmd(open))
	return root
}

func main() {
	if err := newRootCmd(openEnv).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "partsctl:", err)
		os.Exit(1)
	}
}
