package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/partsdesk-backend/pkg/db"
	"github.com/angelmondragon/partsdesk-backend/pkg/db/models"
	"github.com/angelmondragon/partsdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsdesk-backend/pkg/errors"
	"github.com/angelmondragon/partsdesk-backend/pkg/metrics"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	opReserve  = "reserve"
	opRelease  = "release"
	opReduce   = "reduce"
	opCommit   = "commit"
	opDirect   = "direct_decrement"
	opSetStock = "set_stock"

	defaultMovementLimit = 100
)

// Service is the only mutation path to a variant's stock and reservation counters.
// Every primitive observes and mutates a single variant row with one conditional
// UPDATE, so callers on the same variant serialize on the row while different
// variants never contend.
type Service interface {
	// WithTx binds the ledger to a caller transaction so its writes commit or
	// roll back together with the caller's.
	WithTx(tx *gorm.DB) Service

	TryReserve(ctx context.Context, variantID uuid.UUID, qty int, opts ...ReserveOption) (*models.StockReservation, error)
	Release(ctx context.Context, handle uuid.UUID) error
	Reduce(ctx context.Context, handle uuid.UUID, qty int) error
	Commit(ctx context.Context, handle uuid.UUID) (*models.StockReservation, error)
	DirectDecrement(ctx context.Context, variantID uuid.UUID, qty int) error
	SetStock(ctx context.Context, variantID uuid.UUID, qty int) error

	Availability(ctx context.Context, variantID uuid.UUID) (*Availability, error)
	ActiveForCartEntry(ctx context.Context, cartEntryID uuid.UUID) ([]models.StockReservation, error)
	Movements(ctx context.Context, variantID uuid.UUID, limit int) ([]models.StockMovement, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Availability is the shopper-visible view of one variant's stock.
type Availability struct {
	VariantID uuid.UUID `json:"variant_id"`
	Stock     int       `json:"stock_quantity"`
	Reserved  int       `json:"reserved_quantity"`
	Available int       `json:"available"`
}

type reserveOptions struct {
	cartEntryID *uuid.UUID
}

// ReserveOption customizes TryReserve.
type ReserveOption func(*reserveOptions)

// ForCartEntry links the new reservation to the cart entry holding it.
func ForCartEntry(id uuid.UUID) ReserveOption {
	return func(o *reserveOptions) {
		o.cartEntryID = &id
	}
}

// ServiceParams wires the ledger.
type ServiceParams struct {
	DB      txRunner
	Repo    Repository
	Metrics *metrics.LedgerMetrics
	Now     func() time.Time
}

type service struct {
	tx      txRunner
	repo    Repository
	bound   bool
	metrics *metrics.LedgerMetrics
	now     func() time.Time
}

// NewService builds the ledger.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("ledger transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:      params.DB,
		repo:    params.Repo,
		metrics: params.Metrics,
		now:     now,
	}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	clone := *s
	clone.repo = s.repo.WithTx(tx)
	clone.bound = true
	return &clone
}

func (s *service) inTx(ctx context.Context, fn func(repo Repository) error) error {
	if s.bound {
		return fn(s.repo)
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return fn(s.repo.WithTx(tx))
	})
}

func (s *service) TryReserve(ctx context.Context, variantID uuid.UUID, qty int, opts ...ReserveOption) (*models.StockReservation, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	options := reserveOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	var reservation *models.StockReservation
	err := s.inTx(ctx, func(repo Repository) error {
		ok, err := repo.AddReserved(ctx, variantID, qty)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reserve stock")
		}
		if !ok {
			return s.shortage(ctx, repo, variantID, qty)
		}

		reservation = &models.StockReservation{
			VariantID:   variantID,
			CartEntryID: options.cartEntryID,
			Quantity:    qty,
			Status:      enums.ReservationStatusActive,
			CreatedAt:   s.now().UTC(),
		}
		if err := repo.CreateReservation(ctx, reservation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create reservation")
		}
		return s.record(ctx, repo, variantID, enums.MovementTypeReserve, qty, &reservation.ID)
	})
	s.observe(opReserve, err, qty)
	if err != nil {
		return nil, err
	}
	return reservation, nil
}

func (s *service) Release(ctx context.Context, handle uuid.UUID) error {
	var released int
	err := s.inTx(ctx, func(repo Repository) error {
		reservation, err := repo.FindReservation(ctx, handle)
		if err != nil {
			if db.IsNotFound(err) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load reservation")
		}
		if reservation.Status != enums.ReservationStatusActive {
			return nil
		}
		ok, err := repo.ResolveReservation(ctx, handle, enums.ReservationStatusReleased, s.now().UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "release reservation")
		}
		if !ok {
			// lost a race with another release or a commit
			return nil
		}
		if err := s.returnUnits(ctx, repo, reservation.VariantID, reservation.Quantity, handle); err != nil {
			return err
		}
		released = reservation.Quantity
		return nil
	})
	s.observe(opRelease, err, released)
	return err
}

func (s *service) Reduce(ctx context.Context, handle uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	err := s.inTx(ctx, func(repo Repository) error {
		reservation, err := repo.FindReservation(ctx, handle)
		if err != nil {
			if db.IsNotFound(err) {
				return staleReservation(handle, "")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load reservation")
		}
		if reservation.Status != enums.ReservationStatusActive {
			return staleReservation(handle, reservation.Status)
		}

		var ok bool
		if qty >= reservation.Quantity {
			qty = reservation.Quantity
			ok, err = repo.ResolveReservation(ctx, handle, enums.ReservationStatusReleased, s.now().UTC())
		} else {
			ok, err = repo.ShrinkReservation(ctx, handle, qty)
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reduce reservation")
		}
		if !ok {
			return staleReservation(handle, "")
		}
		return s.returnUnits(ctx, repo, reservation.VariantID, qty, handle)
	})
	s.observe(opReduce, err, qty)
	return err
}

func (s *service) Commit(ctx context.Context, handle uuid.UUID) (*models.StockReservation, error) {
	var committed *models.StockReservation
	err := s.inTx(ctx, func(repo Repository) error {
		reservation, err := repo.FindReservation(ctx, handle)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found").
					WithDetails(map[string]any{"reservation_id": handle})
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load reservation")
		}
		if reservation.Status != enums.ReservationStatusActive {
			return staleReservation(handle, reservation.Status)
		}

		at := s.now().UTC()
		ok, err := repo.ResolveReservation(ctx, handle, enums.ReservationStatusCommitted, at)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "commit reservation")
		}
		if !ok {
			return staleReservation(handle, "")
		}

		ok, err = repo.ConsumeReserved(ctx, reservation.VariantID, reservation.Quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "consume reserved stock")
		}
		if !ok {
			// a direct decrement took the reserved units; the caller's
			// transaction rollback restores the reservation
			return s.shortage(ctx, repo, reservation.VariantID, reservation.Quantity)
		}
		if err := s.record(ctx, repo, reservation.VariantID, enums.MovementTypeCommit, reservation.Quantity, &handle); err != nil {
			return err
		}

		reservation.Status = enums.ReservationStatusCommitted
		reservation.ResolvedAt = &at
		committed = reservation
		return nil
	})
	qty := 0
	if committed != nil {
		qty = committed.Quantity
	}
	s.observe(opCommit, err, qty)
	if err != nil {
		return nil, err
	}
	return committed, nil
}

func (s *service) DirectDecrement(ctx context.Context, variantID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	err := s.inTx(ctx, func(repo Repository) error {
		ok, err := repo.DecrementStock(ctx, variantID, qty)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decrement stock")
		}
		if !ok {
			return s.shortage(ctx, repo, variantID, qty)
		}
		return s.record(ctx, repo, variantID, enums.MovementTypeDirectDecrement, qty, nil)
	})
	s.observe(opDirect, err, qty)
	return err
}

func (s *service) SetStock(ctx context.Context, variantID uuid.UUID, qty int) error {
	if qty < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock quantity cannot be negative")
	}
	err := s.inTx(ctx, func(repo Repository) error {
		ok, err := repo.SetStock(ctx, variantID, qty)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "set stock")
		}
		if !ok {
			variant, err := s.loadVariant(ctx, repo, variantID)
			if err != nil {
				return err
			}
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "stock cannot drop below outstanding reservations").
				WithDetails(map[string]any{
					"variant_id": variantID,
					"requested":  qty,
					"reserved":   variant.ReservedQuantity,
				})
		}
		return s.record(ctx, repo, variantID, enums.MovementTypeStockSet, qty, nil)
	})
	s.observe(opSetStock, err, qty)
	return err
}

func (s *service) Availability(ctx context.Context, variantID uuid.UUID) (*Availability, error) {
	variant, err := s.loadVariant(ctx, s.repo, variantID)
	if err != nil {
		return nil, err
	}
	return &Availability{
		VariantID: variant.ID,
		Stock:     variant.StockQuantity,
		Reserved:  variant.ReservedQuantity,
		Available: variant.Available(),
	}, nil
}

func (s *service) ActiveForCartEntry(ctx context.Context, cartEntryID uuid.UUID) ([]models.StockReservation, error) {
	reservations, err := s.repo.ListActiveByCartEntry(ctx, cartEntryID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list cart reservations")
	}
	return reservations, nil
}

func (s *service) Movements(ctx context.Context, variantID uuid.UUID, limit int) ([]models.StockMovement, error) {
	if limit <= 0 || limit > defaultMovementLimit {
		limit = defaultMovementLimit
	}
	movements, err := s.repo.ListMovements(ctx, variantID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list stock movements")
	}
	return movements, nil
}

func (s *service) returnUnits(ctx context.Context, repo Repository, variantID uuid.UUID, qty int, handle uuid.UUID) error {
	ok, err := repo.SubtractReserved(ctx, variantID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "return reserved stock")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeInternal, "reserved counter out of sync").
			WithDetails(map[string]any{"variant_id": variantID, "reservation_id": handle})
	}
	return s.record(ctx, repo, variantID, enums.MovementTypeRelease, qty, &handle)
}

func (s *service) shortage(ctx context.Context, repo Repository, variantID uuid.UUID, qty int) error {
	variant, err := s.loadVariant(ctx, repo, variantID)
	if err != nil {
		return err
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(map[string]any{
			"variant_id": variantID,
			"requested":  qty,
			"available":  variant.Available(),
		})
}

func (s *service) loadVariant(ctx context.Context, repo Repository, variantID uuid.UUID) (*models.Variant, error) {
	variant, err := repo.FindVariant(ctx, variantID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found").
				WithDetails(map[string]any{"variant_id": variantID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load variant")
	}
	return variant, nil
}

func (s *service) record(ctx context.Context, repo Repository, variantID uuid.UUID, kind enums.MovementType, qty int, ref *uuid.UUID) error {
	movement := &models.StockMovement{
		VariantID:   variantID,
		Type:        kind,
		Quantity:    qty,
		ReferenceID: ref,
		CreatedAt:   s.now().UTC(),
	}
	if err := repo.CreateMovement(ctx, movement); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record stock movement")
	}
	return nil
}

func (s *service) observe(op string, err error, qty int) {
	if s.metrics == nil {
		return
	}
	outcome := metrics.OutcomeOK
	if err != nil {
		switch pkgerrors.As(err).Code() {
		case pkgerrors.CodeInsufficientStock:
			outcome = metrics.OutcomeInsufficientStock
		case pkgerrors.CodeStaleReservation:
			outcome = metrics.OutcomeStale
		case pkgerrors.CodeNotFound:
			outcome = metrics.OutcomeNotFound
		default:
			outcome = metrics.OutcomeError
		}
	}
	s.metrics.Observe(op, outcome, qty)
}

func staleReservation(handle uuid.UUID, status enums.ReservationStatus) error {
	details := map[string]any{"reservation_id": handle}
	if status != "" {
		details["status"] = status
	}
	return pkgerrors.New(pkgerrors.CodeStaleReservation, "reservation already resolved").WithDetails(details)
}
