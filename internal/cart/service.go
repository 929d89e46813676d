package cart

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/angelmondragon/partsdesk-backend/internal/ledger"
	"github.com/angelmondragon/partsdesk-backend/internal/maintenance"
	"github.com/angelmondragon/partsdesk-backend/internal/sales"
	"github.com/angelmondragon/partsdesk-backend/pkg/db"
	"github.com/angelmondragon/partsdesk-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/partsdesk-backend/pkg/errors"
	"github.com/angelmondragon/partsdesk-backend/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service stages reservations per shopper and hands them to settlement.
type Service interface {
	AddToCart(ctx context.Context, shopperID string, variantID uuid.UUID, qty int) (*CartDTO, error)
	RemoveFromCart(ctx context.Context, shopperID string, variantID uuid.UUID, qty *int) (*CartDTO, error)
	ClearCart(ctx context.Context, shopperID string) error
	ForceRelease(ctx context.Context, shopperID, operatorID string) error
	Checkout(ctx context.Context, shopperID string, meta sales.Meta) (*sales.Result, error)
	GetCart(ctx context.Context, shopperID string) (*CartDTO, error)
	ActiveCarts(ctx context.Context) ([]ActiveCartDTO, error)
	SweepAbandoned(ctx context.Context, cutoff time.Time) (int, error)
}

// ServiceParams wires the cart service.
type ServiceParams struct {
	DB     txRunner
	Repo   CartRepository
	Ledger ledger.Service
	Sales  sales.Service
	Window *maintenance.Window
	Logger *logger.Logger
	Now    func() time.Time
}

type service struct {
	tx     txRunner
	repo   CartRepository
	ledger ledger.Service
	sales  sales.Service
	window *maintenance.Window
	logg   *logger.Logger
	now    func() time.Time
}

// NewService builds a cart service backed by the provided stack.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Sales == nil {
		return nil, fmt.Errorf("sales service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:     params.DB,
		repo:   params.Repo,
		ledger: params.Ledger,
		sales:  params.Sales,
		window: params.Window,
		logg:   params.Logger,
		now:    now,
	}, nil
}

// mutate runs fn in one transaction under the shared side of the maintenance window.
func (s *service) mutate(ctx context.Context, fn func(repo CartRepository, led ledger.Service, tx *gorm.DB) error) error {
	return s.window.Shared(func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return fn(s.repo.WithTx(tx), s.ledger.WithTx(tx), tx)
		})
	})
}

func requireShopper(shopperID string) error {
	if strings.TrimSpace(shopperID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "shopper id is required")
	}
	return nil
}

func (s *service) AddToCart(ctx context.Context, shopperID string, variantID uuid.UUID, qty int) (*CartDTO, error) {
	if err := requireShopper(shopperID); err != nil {
		return nil, err
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	err := s.mutate(ctx, func(repo CartRepository, led ledger.Service, _ *gorm.DB) error {
		variant, err := repo.LoadVariant(ctx, variantID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "variant not found").
					WithDetails(map[string]any{"variant_id": variantID})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load variant")
		}

		at := s.now().UTC()
		if err := repo.EnsureEntry(ctx, &models.CartEntry{
			ShopperID:      shopperID,
			VariantID:      variantID,
			UnitPrice:      variant.Price,
			LastActivityAt: at,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: create cart entry")
		}
		entry, err := repo.FindEntry(ctx, shopperID, variantID)
		if err != nil {
			if db.IsNotFound(err) {
				// a concurrent checkout removed the entry after EnsureEntry
				return pkgerrors.New(pkgerrors.CodeConflict, "cart changed, retry").
					WithDetails(map[string]any{"variant_id": variantID})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load cart entry")
		}

		if _, err := led.TryReserve(ctx, variantID, qty, ledger.ForCartEntry(entry.ID)); err != nil {
			return err
		}
		if err := repo.AdjustQuantity(ctx, entry.ID, qty, at); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update cart entry")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, shopperID)
}

func (s *service) RemoveFromCart(ctx context.Context, shopperID string, variantID uuid.UUID, qty *int) (*CartDTO, error) {
	if err := requireShopper(shopperID); err != nil {
		return nil, err
	}
	if qty != nil && *qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	err := s.mutate(ctx, func(repo CartRepository, led ledger.Service, _ *gorm.DB) error {
		entry, err := repo.FindEntry(ctx, shopperID, variantID)
		if err != nil {
			if db.IsNotFound(err) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load cart entry")
		}
		if qty == nil || *qty >= entry.Quantity {
			return releaseEntry(ctx, repo, led, entry)
		}

		handles, err := led.ActiveForCartEntry(ctx, entry.ID)
		if err != nil {
			return err
		}
		remaining := *qty
		for i := len(handles) - 1; i >= 0 && remaining > 0; i-- {
			handle := handles[i]
			if handle.Quantity <= remaining {
				if err := led.Release(ctx, handle.ID); err != nil {
					return err
				}
				remaining -= handle.Quantity
				continue
			}
			if err := led.Reduce(ctx, handle.ID, remaining); err != nil {
				return err
			}
			remaining = 0
		}
		if err := repo.AdjustQuantity(ctx, entry.ID, -*qty, s.now().UTC()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update cart entry")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, shopperID)
}

// releaseEntry returns every unit the entry holds and deletes it.
func releaseEntry(ctx context.Context, repo CartRepository, led ledger.Service, entry *models.CartEntry) error {
	handles, err := led.ActiveForCartEntry(ctx, entry.ID)
	if err != nil {
		return err
	}
	for _, handle := range handles {
		if err := led.Release(ctx, handle.ID); err != nil {
			return err
		}
	}
	if err := repo.DeleteEntry(ctx, entry.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete cart entry")
	}
	return nil
}

// releaseAll releases every entry of the shopper. ok is false when the cart is
// empty, or when idleBefore is set and an entry saw activity at or after it.
func (s *service) releaseAll(ctx context.Context, shopperID string, idleBefore time.Time) (released int, ok bool, err error) {
	err = s.mutate(ctx, func(repo CartRepository, led ledger.Service, _ *gorm.DB) error {
		entries, err := repo.ListEntries(ctx, shopperID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list cart entries")
		}
		if len(entries) == 0 {
			return nil
		}
		if !idleBefore.IsZero() {
			for _, entry := range entries {
				if !entry.LastActivityAt.Before(idleBefore) {
					return nil
				}
			}
		}
		for i := range entries {
			if err := releaseEntry(ctx, repo, led, &entries[i]); err != nil {
				return err
			}
			released += entries[i].Quantity
		}
		ok = true
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return released, ok, nil
}

func (s *service) ClearCart(ctx context.Context, shopperID string) error {
	if err := requireShopper(shopperID); err != nil {
		return err
	}
	_, _, err := s.releaseAll(ctx, shopperID, time.Time{})
	return err
}

func (s *service) ForceRelease(ctx context.Context, shopperID, operatorID string) error {
	if err := requireShopper(shopperID); err != nil {
		return err
	}
	_, err := s.forceRelease(ctx, shopperID, operatorID, time.Time{})
	return err
}

func (s *service) forceRelease(ctx context.Context, shopperID, operatorID string, idleBefore time.Time) (bool, error) {
	released, ok, err := s.releaseAll(ctx, shopperID, idleBefore)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"shopper_id":     shopperID,
		"operator_id":    operatorID,
		"released_units": released,
	})
	if err != nil {
		s.logg.Error(logCtx, "cart force release failed", err)
		return false, err
	}
	if !ok {
		s.logg.Info(logCtx, "cart changed since scan, release skipped")
		return false, nil
	}
	s.logg.Info(logCtx, "cart force released")
	return true, nil
}

// Checkout settles every entry of the shopper and empties the cart in the same
// transaction, so a failed settlement leaves the cart untouched.
func (s *service) Checkout(ctx context.Context, shopperID string, meta sales.Meta) (*sales.Result, error) {
	if err := requireShopper(shopperID); err != nil {
		return nil, err
	}

	var result *sales.Result
	err := s.mutate(ctx, func(repo CartRepository, led ledger.Service, tx *gorm.DB) error {
		if _, err := repo.ListEntries(ctx, shopperID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: lock cart entries")
		}
		lines, err := repo.ListLines(ctx, shopperID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list cart entries")
		}
		if len(lines) == 0 {
			return pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
		}

		reservations := make([]sales.ReservationLine, 0, len(lines))
		for _, line := range lines {
			active, err := led.ActiveForCartEntry(ctx, line.ID)
			if err != nil {
				return err
			}
			handles := make([]uuid.UUID, 0, len(active))
			for _, r := range active {
				handles = append(handles, r.ID)
			}
			reservations = append(reservations, sales.ReservationLine{
				Handles:      handles,
				VariantID:    line.VariantID,
				UnitPrice:    line.UnitPrice,
				ProductName:  line.ProductName,
				PartNumber:   line.PartNumber,
				SupplierName: line.SupplierName,
			})
		}

		res, err := s.sales.WithTx(tx).SettleFromReservations(ctx, shopperID, reservations, meta)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if err := repo.DeleteEntry(ctx, line.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete cart entry")
			}
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) GetCart(ctx context.Context, shopperID string) (*CartDTO, error) {
	if err := requireShopper(shopperID); err != nil {
		return nil, err
	}
	lines, err := s.repo.ListLines(ctx, shopperID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list cart entries")
	}
	return newCartDTO(shopperID, lines), nil
}

func (s *service) ActiveCarts(ctx context.Context) ([]ActiveCartDTO, error) {
	entries, err := s.repo.ListAllEntries(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list cart entries")
	}
	return summarize(entries), nil
}

// summarize groups entries per shopper, most recently active first.
func summarize(entries []models.CartEntry) []ActiveCartDTO {
	byShopper := make(map[string]*ActiveCartDTO)
	for _, entry := range entries {
		cart, ok := byShopper[entry.ShopperID]
		if !ok {
			cart = &ActiveCartDTO{ShopperID: entry.ShopperID}
			byShopper[entry.ShopperID] = cart
		}
		cart.Entries++
		cart.TotalItems += entry.Quantity
		if entry.LastActivityAt.After(cart.LastActivityAt) {
			cart.LastActivityAt = entry.LastActivityAt
		}
	}
	carts := make([]ActiveCartDTO, 0, len(byShopper))
	for _, cart := range byShopper {
		carts = append(carts, *cart)
	}
	sort.Slice(carts, func(i, j int) bool {
		if carts[i].LastActivityAt.Equal(carts[j].LastActivityAt) {
			return carts[i].ShopperID < carts[j].ShopperID
		}
		return carts[i].LastActivityAt.After(carts[j].LastActivityAt)
	})
	return carts
}

// SweepAbandoned force-releases every cart whose latest activity precedes cutoff.
// Each cart is re-checked against cutoff and released in its own transaction;
// failures are collected and the sweep continues with the next shopper.
func (s *service) SweepAbandoned(ctx context.Context, cutoff time.Time) (int, error) {
	carts, err := s.ActiveCarts(ctx)
	if err != nil {
		return 0, err
	}
	var (
		swept int
		errs  error
	)
	for _, cart := range carts {
		if !cart.LastActivityAt.Before(cutoff) {
			continue
		}
		released, err := s.forceRelease(ctx, cart.ShopperID, "cart-sweeper", cutoff)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("shopper %s: %w", cart.ShopperID, err))
			continue
		}
		if released {
			swept++
		}
	}
	return swept, errs
}
