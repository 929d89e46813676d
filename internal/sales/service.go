package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/partsdesk-backend/internal/ledger"
	"github.com/angelmondragon/partsdesk-backend/internal/maintenance"
	"github.com/angelmondragon/partsdesk-backend/pkg/db"
	"github.com/angelmondragon/partsdesk-backend/pkg/db/models"
	"github.com/angelmondragon/partsdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsdesk-backend/pkg/errors"
	"github.com/angelmondragon/partsdesk-backend/pkg/pagination"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service turns reservations or walk-up items into append-only sales.
type Service interface {
	// WithTx binds settlement to a caller transaction; the caller then owns
	// the maintenance window and the commit.
	WithTx(tx *gorm.DB) Service

	SettleFromReservations(ctx context.Context, shopperID string, lines []ReservationLine, meta Meta) (*Result, error)
	SettleDirect(ctx context.Context, items []DirectItem, meta Meta) (*Result, error)

	GetSale(ctx context.Context, id uuid.UUID) (*SaleDTO, error)
	ListSales(ctx context.Context, filter ListFilter) (*SalePage, error)
	Stats(ctx context.Context, now time.Time) (*StatsDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires the settlement service.
type ServiceParams struct {
	DB       txRunner
	Repo     *Repository
	Ledger   ledger.Service
	Window   *maintenance.Window
	Location *time.Location
	Now      func() time.Time
}

type service struct {
	tx       txRunner
	txHandle *gorm.DB
	repo     *Repository
	ledger   ledger.Service
	window   *maintenance.Window
	location *time.Location
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("sales repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	loc := params.Location
	if loc == nil {
		loc = time.Local
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:       params.DB,
		repo:     params.Repo,
		ledger:   params.Ledger,
		window:   params.Window,
		location: loc,
		now:      now,
	}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	clone := *s
	clone.txHandle = tx
	return &clone
}

// settle runs fn in one transaction with tx-bound collaborators. Unbound
// calls also hold the shared side of the maintenance window.
func (s *service) settle(ctx context.Context, fn func(repo *Repository, led ledger.Service) error) error {
	if s.txHandle != nil {
		return fn(s.repo.WithTx(s.txHandle), s.ledger.WithTx(s.txHandle))
	}
	return s.window.Shared(func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return fn(s.repo.WithTx(tx), s.ledger.WithTx(tx))
		})
	})
}

// SettleFromReservations commits every line's handles and records the sale in
// one transaction. Each sale item carries the units its handles committed. A failed commit rolls back the whole batch and the error
// reports how far settlement got.
func (s *service) SettleFromReservations(ctx context.Context, shopperID string, lines []ReservationLine, meta Meta) (*Result, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
	}
	if meta.CustomerID == nil && shopperID != "" {
		meta.CustomerID = &shopperID
	}
	meta, err := normalizeMeta(meta, enums.SaleChannelShop)
	if err != nil {
		return nil, err
	}

	var result *Result
	err = s.settle(ctx, func(repo *Repository, led ledger.Service) error {
		items := make([]models.SaleItem, 0, len(lines))
		settled := make([]uuid.UUID, 0, len(lines))
		for idx, line := range lines {
			committed := 0
			for _, handle := range line.Handles {
				reservation, err := led.Commit(ctx, handle)
				if err != nil {
					return partialFailure(err, idx, line.VariantID, settled)
				}
				committed += reservation.Quantity
			}
			if committed == 0 {
				return partialFailure(
					pkgerrors.New(pkgerrors.CodeStaleReservation, "line has no active reservation").
						WithDetails(map[string]any{"variant_id": line.VariantID}),
					idx, line.VariantID, settled)
			}
			settled = append(settled, line.VariantID)
			variantID := line.VariantID
			items = append(items, newItem(&variantID, line.ProductName, line.PartNumber, line.SupplierName, committed, line.UnitPrice))
		}
		res, err := s.record(ctx, repo, items, meta)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SettleDirect decrements stock for a walk-up sale, ignoring reservations.
func (s *service) SettleDirect(ctx context.Context, items []DirectItem, meta Meta) (*Result, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptySale, "sale has no items")
	}
	for idx, item := range items {
		if err := validate.Struct(item); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sale item").
				WithDetails(map[string]any{"line": idx})
		}
		if item.UnitPrice != nil && item.UnitPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative").
				WithDetails(map[string]any{"line": idx})
		}
	}
	meta, err := normalizeMeta(meta, enums.SaleChannelPOS)
	if err != nil {
		return nil, err
	}

	var result *Result
	err = s.settle(ctx, func(repo *Repository, led ledger.Service) error {
		saleItems := make([]models.SaleItem, 0, len(items))
		settled := make([]uuid.UUID, 0, len(items))
		for idx, item := range items {
			snap, err := repo.VariantSnapshot(ctx, item.VariantID)
			if err != nil {
				if db.IsNotFound(err) {
					return partialFailure(
						pkgerrors.New(pkgerrors.CodeNotFound, "variant not found").
							WithDetails(map[string]any{"variant_id": item.VariantID}),
						idx, item.VariantID, settled)
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load variant snapshot")
			}
			if err := led.DirectDecrement(ctx, item.VariantID, item.Quantity); err != nil {
				return partialFailure(err, idx, item.VariantID, settled)
			}
			settled = append(settled, item.VariantID)

			price := snap.Price
			if item.UnitPrice != nil {
				price = *item.UnitPrice
			}
			variantID := item.VariantID
			saleItems = append(saleItems, newItem(&variantID, snap.ProductName, snap.PartNumber, snap.SupplierName, item.Quantity, price))
		}
		res, err := s.record(ctx, repo, saleItems, meta)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) record(ctx context.Context, repo *Repository, items []models.SaleItem, meta Meta) (*Result, error) {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal)
	}
	sale := &models.Sale{
		TotalAmount:   total,
		CustomerID:    meta.CustomerID,
		CashierID:     meta.CashierID,
		PaymentMethod: meta.PaymentMethod,
		Channel:       meta.Channel,
		CreatedAt:     s.now().UTC(),
	}
	if err := repo.CreateSale(ctx, sale, items); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert sale")
	}
	return &Result{SaleID: sale.ID, Total: total}, nil
}

// newItem prices one line: unit price rounded to cents, subtotal = qty * unit.
func newItem(variantID *uuid.UUID, productName, partNumber, supplierName string, qty int, unitPrice decimal.Decimal) models.SaleItem {
	unit := unitPrice.Round(2)
	return models.SaleItem{
		VariantID:    variantID,
		ProductName:  productName,
		PartNumber:   partNumber,
		SupplierName: supplierName,
		Quantity:     qty,
		UnitPrice:    unit,
		Subtotal:     unit.Mul(decimal.NewFromInt(int64(qty))).Round(2),
	}
}

func normalizeMeta(meta Meta, defaultChannel enums.SaleChannel) (Meta, error) {
	if meta.PaymentMethod == "" {
		meta.PaymentMethod = enums.PaymentMethodCash
	}
	if !meta.PaymentMethod.IsValid() {
		return meta, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").
			WithDetails(map[string]any{"payment_method": meta.PaymentMethod})
	}
	if meta.Channel == "" {
		meta.Channel = defaultChannel
	}
	if !meta.Channel.IsValid() {
		return meta, pkgerrors.New(pkgerrors.CodeValidation, "invalid sale channel").
			WithDetails(map[string]any{"channel": meta.Channel})
	}
	return meta, nil
}

// partialFailure keeps the ledger's code and adds how far settlement got
// before the batch was rolled back.
func partialFailure(cause error, lineIdx int, variantID uuid.UUID, settled []uuid.UUID) error {
	typed := pkgerrors.As(cause)
	if typed == nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, cause, "settle line")
	}
	details := map[string]any{}
	if existing, ok := typed.Details().(map[string]any); ok {
		for k, v := range existing {
			details[k] = v
		}
	}
	details["failed_line"] = lineIdx
	details["failed_variant_id"] = variantID
	details["settled_before_failure"] = settled
	details["rolled_back"] = true
	return pkgerrors.Wrap(typed.Code(), cause, typed.Message()).WithDetails(details)
}

func (s *service) GetSale(ctx context.Context, id uuid.UUID) (*SaleDTO, error) {
	sale, err := s.repo.FindSale(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load sale")
	}
	items, err := s.repo.ListItems(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load sale items")
	}
	dto := newSaleDTO(*sale, items)
	return &dto, nil
}

func (s *service) ListSales(ctx context.Context, filter ListFilter) (*SalePage, error) {
	after, err := pagination.ParseCursor(filter.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(filter.Limit)
	rows, err := s.repo.ListSales(ctx, filter.CustomerID, after, limit+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list sales")
	}
	rows, next := pagination.Trim(rows, limit, func(sale models.Sale) pagination.Cursor {
		return pagination.Cursor{CreatedAt: sale.CreatedAt, ID: sale.ID}
	})
	page := &SalePage{Sales: make([]SaleDTO, 0, len(rows)), NextCursor: next}
	for _, sale := range rows {
		page.Sales = append(page.Sales, newSaleDTO(sale, nil))
	}
	return page, nil
}

// Stats reports stock on hand and sales for the calendar day, ISO week,
// month and year containing now, in the configured location.
func (s *service) Stats(ctx context.Context, now time.Time) (*StatsDTO, error) {
	units, value, err := s.repo.StockTotals(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: stock totals")
	}
	carts, err := s.repo.ActiveCarts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: count active carts")
	}

	periods := PeriodStarts(now, s.location)
	totals := make([]decimal.Decimal, len(periods))
	for i, from := range periods {
		total, err := s.repo.SalesSince(ctx, from.UTC())
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: sales totals")
		}
		totals[i] = total.Round(2)
	}
	return &StatsDTO{
		TotalStock:  units,
		TotalValue:  value,
		SalesToday:  totals[0],
		SalesWeek:   totals[1],
		SalesMonth:  totals[2],
		SalesYear:   totals[3],
		ActiveCarts: carts,
	}, nil
}

// PeriodStarts returns the start of now's day, ISO week (Monday), month and
// year in loc.
func PeriodStarts(now time.Time, loc *time.Location) [4]time.Time {
	local := now.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	offset := (int(day.Weekday()) + 6) % 7
	week := day.AddDate(0, 0, -offset)
	month := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	year := time.Date(local.Year(), time.January, 1, 0, 0, 0, 0, loc)
	return [4]time.Time{day, week, month, year}
}

var validate = validator.New()
