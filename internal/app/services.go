// Package app assembles the service graph shared by the API, the cron worker
// and the operator CLI.
package app

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/partsdesk-backend/internal/auth"
	"github.com/angelmondragon/partsdesk-backend/internal/cart"
	"github.com/angelmondragon/partsdesk-backend/internal/catalog"
	"github.com/angelmondragon/partsdesk-backend/internal/ledger"
	"github.com/angelmondragon/partsdesk-backend/internal/maintenance"
	"github.com/angelmondragon/partsdesk-backend/internal/sales"
	"github.com/angelmondragon/partsdesk-backend/internal/transfer"
	"github.com/angelmondragon/partsdesk-backend/internal/users"
	"github.com/angelmondragon/partsdesk-backend/pkg/config"
	"github.com/angelmondragon/partsdesk-backend/pkg/db"
	"github.com/angelmondragon/partsdesk-backend/pkg/logger"
	"github.com/angelmondragon/partsdesk-backend/pkg/metrics"
	"github.com/angelmondragon/partsdesk-backend/pkg/redis"
)

const importLockName = "import"

// Params are the resources a process opened before building services.
type Params struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *db.Client
	Redis      *redis.Client
	Registerer prometheus.Registerer
	Now        func() time.Time
}

// Services is the wired domain layer.
type Services struct {
	Window   *maintenance.Window
	Ledger   ledger.Service
	Catalog  catalog.Service
	Sales    sales.Service
	Cart     cart.Service
	Transfer transfer.Service
	Users    users.Service
	Auth     auth.Service
}

// Build wires every domain service. Redis is optional; without it the import
// guard only serializes imports within this process.
func Build(p Params) (*Services, error) {
	if p.Config == nil || p.Logger == nil || p.DB == nil {
		return nil, fmt.Errorf("config, logger and database are required")
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	cfg := p.Config
	conn := p.DB.DB()
	window := maintenance.NewWindow()

	var (
		ledgerMetrics *metrics.LedgerMetrics
		importMetrics *metrics.ImportMetrics
	)
	if p.Registerer != nil {
		ledgerMetrics = metrics.NewLedgerMetrics(p.Registerer)
		importMetrics = metrics.NewImportMetrics(p.Registerer)
	}

	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		DB:      p.DB,
		Repo:    ledger.NewRepository(conn),
		Metrics: ledgerMetrics,
		Now:     now,
	})
	if err != nil {
		return nil, fmt.Errorf("ledger service: %w", err)
	}

	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn), p.DB, ledgerSvc)
	if err != nil {
		return nil, fmt.Errorf("catalog service: %w", err)
	}

	salesSvc, err := sales.NewService(sales.ServiceParams{
		DB:       p.DB,
		Repo:     sales.NewRepository(conn),
		Ledger:   ledgerSvc,
		Window:   window,
		Location: cfg.App.TimeLocation(),
		Now:      now,
	})
	if err != nil {
		return nil, fmt.Errorf("sales service: %w", err)
	}

	cartSvc, err := cart.NewService(cart.ServiceParams{
		DB:     p.DB,
		Repo:   cart.NewRepository(conn),
		Ledger: ledgerSvc,
		Sales:  salesSvc,
		Window: window,
		Logger: p.Logger,
		Now:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("cart service: %w", err)
	}

	var distributed maintenance.Locker
	if p.Redis != nil {
		lock, err := redis.NewLock(p.Redis, p.Redis.LockKey(importLockName), cfg.Import.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("import lock: %w", err)
		}
		distributed = lock
	}
	transferSvc, err := transfer.NewService(transfer.ServiceParams{
		DB:      p.DB,
		Repo:    transfer.NewRepository(conn),
		Ledger:  ledgerSvc,
		Guard:   maintenance.NewImportGuard(distributed),
		Window:  window,
		Metrics: importMetrics,
		Logger:  p.Logger,
		Now:     now,
	})
	if err != nil {
		return nil, fmt.Errorf("transfer service: %w", err)
	}

	userRepo := users.NewRepository(conn)
	usersSvc, err := users.NewService(userRepo, cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("users service: %w", err)
	}
	authSvc, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         p.Logger,
		Now:            now,
	})
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	return &Services{
		Window:   window,
		Ledger:   ledgerSvc,
		Catalog:  catalogSvc,
		Sales:    salesSvc,
		Cart:     cartSvc,
		Transfer: transferSvc,
		Users:    usersSvc,
		Auth:     authSvc,
	}, nil
}
