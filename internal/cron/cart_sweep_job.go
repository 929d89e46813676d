package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/partsdesk-backend/pkg/logger"
)

// abandonedCartSweeper is the cart operation the sweep drives.
type abandonedCartSweeper interface {
	SweepAbandoned(ctx context.Context, cutoff time.Time) (int, error)
}

// CartSweepJobParams configure the abandoned cart sweep.
type CartSweepJobParams struct {
	Logger *logger.Logger
	Carts  abandonedCartSweeper
	// TTL is how long a cart may sit idle before its holds are released.
	TTL time.Duration
	Now func() time.Time
}

type cartSweepJob struct {
	logg  *logger.Logger
	carts abandonedCartSweeper
	ttl   time.Duration
	now   func() time.Time
}

// NewCartSweepJob builds the job that releases reservations held by idle carts.
func NewCartSweepJob(params CartSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if params.TTL <= 0 {
		return nil, fmt.Errorf("cart ttl must be positive")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &cartSweepJob{
		logg:  params.Logger,
		carts: params.Carts,
		ttl:   params.TTL,
		now:   now,
	}, nil
}

func (j *cartSweepJob) Name() string { return "cart-sweep" }

func (j *cartSweepJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	released, err := j.carts.SweepAbandoned(ctx, cutoff)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"carts_released": released,
		"cutoff":         cutoff,
	})
	if err != nil {
		return fmt.Errorf("sweep abandoned carts: %w", err)
	}
	j.logg.Info(logCtx, "abandoned cart sweep complete")
	return nil
}
