package sales

import (
	"context"
	"database/sql"
	"time"

	"github.com/angelmondragon/partsdesk-backend/pkg/db/models"
	"github.com/angelmondragon/partsdesk-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Repository persists sales and reads the aggregates behind the dashboard.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// variantSnapshot carries the catalog names frozen onto a sale item.
type variantSnapshot struct {
	ID           uuid.UUID       `gorm:"column:id"`
	Price        decimal.Decimal `gorm:"column:price"`
	ProductName  string          `gorm:"column:product_name"`
	PartNumber   string          `gorm:"column:part_number"`
	SupplierName string          `gorm:"column:supplier_name"`
}

func (r *Repository) VariantSnapshot(ctx context.Context, variantID uuid.UUID) (*variantSnapshot, error) {
	var snap variantSnapshot
	err := r.db.WithContext(ctx).
		Table("product_variants").
		Select("product_variants.id, product_variants.price, products.name AS product_name, products.part_number, COALESCE(suppliers.name, 'Unknown') AS supplier_name").
		Joins("JOIN products ON products.id = product_variants.product_id").
		Joins("LEFT JOIN suppliers ON suppliers.id = product_variants.supplier_id").
		Where("product_variants.id = ?", variantID).
		Take(&snap).Error
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// CreateSale inserts the header and its items.
func (r *Repository) CreateSale(ctx context.Context, sale *models.Sale, items []models.SaleItem) error {
	conn := r.db.WithContext(ctx)
	if err := conn.Create(sale).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].SaleID = sale.ID
	}
	if len(items) == 0 {
		return nil
	}
	return conn.Create(&items).Error
}

func (r *Repository) FindSale(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&sale).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *Repository) ListItems(ctx context.Context, saleID uuid.UUID) ([]models.SaleItem, error) {
	var items []models.SaleItem
	err := r.db.WithContext(ctx).
		Where("sale_id = ?", saleID).
		Order("product_name ASC").
		Find(&items).Error
	return items, err
}

// ListSales returns up to limit headers older than after, newest first.
func (r *Repository) ListSales(ctx context.Context, customerID *string, after *pagination.Cursor, limit int) ([]models.Sale, error) {
	q := r.db.WithContext(ctx).Model(&models.Sale{})
	if customerID != nil {
		q = q.Where("customer_id = ?", *customerID)
	}
	if after != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", after.CreatedAt, after.CreatedAt, after.ID)
	}
	var sales []models.Sale
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&sales).Error
	return sales, err
}

// SalesSince sums sale totals created at or after from.
func (r *Repository) SalesSince(ctx context.Context, from time.Time) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Select("SUM(total_amount)").
		Where("created_at >= ?", from).
		Row().Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// StockTotals returns units on hand and their value at list price.
func (r *Repository) StockTotals(ctx context.Context) (int64, decimal.Decimal, error) {
	var (
		units sql.NullInt64
		value decimal.NullDecimal
	)
	err := r.db.WithContext(ctx).
		Model(&models.Variant{}).
		Select("SUM(stock_quantity), SUM(stock_quantity * price)").
		Row().Scan(&units, &value)
	if err != nil {
		return 0, decimal.Zero, err
	}
	if !value.Valid {
		value.Decimal = decimal.Zero
	}
	return units.Int64, value.Decimal.Round(2), nil
}

func (r *Repository) ActiveCarts(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CartEntry{}).
		Distinct("shopper_id").
		Count(&count).Error
	return count, err
}
