package ledger

import (
	"context"
	"time"

	"github.com/angelmondragon/partsdesk-backend/pkg/db/models"
	"github.com/angelmondragon/partsdesk-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository issues the conditional updates behind every ledger primitive.
// Methods returning bool report whether the guarded row matched.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindVariant(ctx context.Context, variantID uuid.UUID) (*models.Variant, error)
	AddReserved(ctx context.Context, variantID uuid.UUID, qty int) (bool, error)
	SubtractReserved(ctx context.Context, variantID uuid.UUID, qty int) (bool, error)
	ConsumeReserved(ctx context.Context, variantID uuid.UUID, qty int) (bool, error)
	DecrementStock(ctx context.Context, variantID uuid.UUID, qty int) (bool, error)
	SetStock(ctx context.Context, variantID uuid.UUID, qty int) (bool, error)

	CreateReservation(ctx context.Context, reservation *models.StockReservation) error
	FindReservation(ctx context.Context, id uuid.UUID) (*models.StockReservation, error)
	ResolveReservation(ctx context.Context, id uuid.UUID, to enums.ReservationStatus, at time.Time) (bool, error)
	ShrinkReservation(ctx context.Context, id uuid.UUID, qty int) (bool, error)
	ListActiveByCartEntry(ctx context.Context, cartEntryID uuid.UUID) ([]models.StockReservation, error)

	CreateMovement(ctx context.Context, movement *models.StockMovement) error
	ListMovements(ctx context.Context, variantID uuid.UUID, limit int) ([]models.StockMovement, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) variants(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Variant{})
}

func (r *repository) FindVariant(ctx context.Context, variantID uuid.UUID) (*models.Variant, error) {
	var variant models.Variant
	if err := r.db.WithContext(ctx).Where("id = ?", variantID).First(&variant).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

func (r *repository) AddReserved(ctx context.Context, variantID uuid.UUID, qty int) (bool, error) {
	res := r.variants(ctx).
		Where("id = ? AND stock_quantity - reserved_quantity >= ?", variantID, qty).
		UpdateColumn("reserved_quantity", gorm.Expr("reserved_quantity + ?", qty))
	return res.RowsAffected == 1, res.Error
}

func (r *repository) SubtractReserved(ctx context.Context, variantID uuid.UUID, qty int) (bool, error) {
	res := r.variants(ctx).
		Where("id = ? AND reserved_quantity >= ?", variantID, qty).
		UpdateColumn("reserved_quantity", gorm.Expr("reserved_quantity - ?", qty))
	return res.RowsAffected == 1, res.Error
}

func (r *repository) ConsumeReserved(ctx context.Context, variantID uuid.UUID, qty int) (bool, error) {
	res := r.variants(ctx).
		Where("id = ? AND stock_quantity >= ? AND reserved_quantity >= ?", variantID, qty, qty).
		UpdateColumns(map[string]any{
			"stock_quantity":    gorm.Expr("stock_quantity - ?", qty),
			"reserved_quantity": gorm.Expr("reserved_quantity - ?", qty),
		})
	return res.RowsAffected == 1, res.Error
}

func (r *repository) DecrementStock(ctx context.Context, variantID uuid.UUID, qty int) (bool, error) {
	res := r.variants(ctx).
		Where("id = ? AND stock_quantity >= ?", variantID, qty).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", qty))
	return res.RowsAffected == 1, res.Error
}

func (r *repository) SetStock(ctx context.Context, variantID uuid.UUID, qty int) (bool, error) {
	res := r.variants(ctx).
		Where("id = ? AND reserved_quantity <= ?", variantID, qty).
		UpdateColumn("stock_quantity", qty)
	return res.RowsAffected == 1, res.Error
}

func (r *repository) CreateReservation(ctx context.Context, reservation *models.StockReservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

func (r *repository) FindReservation(ctx context.Context, id uuid.UUID) (*models.StockReservation, error) {
	var reservation models.StockReservation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&reservation).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) ResolveReservation(ctx context.Context, id uuid.UUID, to enums.ReservationStatus, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.StockReservation{}).
		Where("id = ? AND status = ?", id, enums.ReservationStatusActive).
		UpdateColumns(map[string]any{
			"status":      to,
			"resolved_at": at,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *repository) ShrinkReservation(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.StockReservation{}).
		Where("id = ? AND status = ? AND quantity > ?", id, enums.ReservationStatusActive, qty).
		UpdateColumn("quantity", gorm.Expr("quantity - ?", qty))
	return res.RowsAffected == 1, res.Error
}

func (r *repository) ListActiveByCartEntry(ctx context.Context, cartEntryID uuid.UUID) ([]models.StockReservation, error) {
	var reservations []models.StockReservation
	err := r.db.WithContext(ctx).
		Where("cart_entry_id = ? AND status = ?", cartEntryID, enums.ReservationStatusActive).
		Order("created_at ASC").
		Order("id ASC").
		Find(&reservations).Error
	return reservations, err
}

func (r *repository) CreateMovement(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) ListMovements(ctx context.Context, variantID uuid.UUID, limit int) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	err := r.db.WithContext(ctx).
		Where("variant_id = ?", variantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&movements).Error
	return movements, err
}
