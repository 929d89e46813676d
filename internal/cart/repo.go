package cart

import (
	"context"
	"time"

	"github.com/angelmondragon/partsdesk-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository exposes persistence operations for cart entries.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// entryLine is a cart entry joined with the catalog names shown to shoppers.
type entryLine struct {
	models.CartEntry `gorm:"embedded"`
	ProductID        uuid.UUID       `gorm:"column:product_id"`
	ProductName      string          `gorm:"column:product_name"`
	PartNumber       string          `gorm:"column:part_number"`
	SKU              string          `gorm:"column:sku"`
	SupplierName     string          `gorm:"column:supplier_name"`
	CurrentPrice     decimal.Decimal `gorm:"column:current_price"`
}

func (r *Repository) LoadVariant(ctx context.Context, variantID uuid.UUID) (*models.Variant, error) {
	var variant models.Variant
	if err := r.db.WithContext(ctx).Where("id = ?", variantID).First(&variant).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

// EnsureEntry inserts the (shopper, variant) row unless it already exists; a
// concurrent insert for the same pair is absorbed by the unique index.
func (r *Repository) EnsureEntry(ctx context.Context, entry *models.CartEntry) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "shopper_id"}, {Name: "variant_id"}},
			DoNothing: true,
		}).
		Create(entry).Error
}

// FindEntry row-locks the entry until the surrounding transaction ends.
func (r *Repository) FindEntry(ctx context.Context, shopperID string, variantID uuid.UUID) (*models.CartEntry, error) {
	var entry models.CartEntry
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("shopper_id = ? AND variant_id = ?", shopperID, variantID).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// AdjustQuantity adds delta (possibly negative) and touches last activity.
func (r *Repository) AdjustQuantity(ctx context.Context, entryID uuid.UUID, delta int, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.CartEntry{}).
		Where("id = ?", entryID).
		UpdateColumns(map[string]any{
			"quantity":         gorm.Expr("quantity + ?", delta),
			"last_activity_at": at,
		}).Error
}

func (r *Repository) DeleteEntry(ctx context.Context, entryID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", entryID).Delete(&models.CartEntry{}).Error
}

// ListEntries row-locks the shopper's entries, so concurrent adds and removes
// on them wait for the caller's transaction.
func (r *Repository) ListEntries(ctx context.Context, shopperID string) ([]models.CartEntry, error) {
	var entries []models.CartEntry
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("shopper_id = ?", shopperID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

func (r *Repository) ListLines(ctx context.Context, shopperID string) ([]entryLine, error) {
	var lines []entryLine
	err := r.db.WithContext(ctx).
		Table("cart_entries").
		Select(`cart_entries.*,
			products.id AS product_id,
			products.name AS product_name,
			products.part_number,
			product_variants.sku,
			product_variants.price AS current_price,
			COALESCE(suppliers.name, 'Unknown') AS supplier_name`).
		Joins("JOIN product_variants ON product_variants.id = cart_entries.variant_id").
		Joins("JOIN products ON products.id = product_variants.product_id").
		Joins("LEFT JOIN suppliers ON suppliers.id = product_variants.supplier_id").
		Where("cart_entries.shopper_id = ?", shopperID).
		Order("cart_entries.created_at ASC").
		Order("cart_entries.id ASC").
		Scan(&lines).Error
	return lines, err
}

func (r *Repository) ListAllEntries(ctx context.Context) ([]models.CartEntry, error) {
	var entries []models.CartEntry
	err := r.db.WithContext(ctx).Order("shopper_id ASC").Find(&entries).Error
	return entries, err
}
