package transfer

import (
	"context"
	"fmt"
	"strconv"

	"github.com/angelmondragon/partsdesk-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository reads and rewrites the catalog in bulk.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// wipeOrder lists every catalog and ledger table, dependents first.
var wipeOrder = []any{
	&models.StockMovement{},
	&models.StockReservation{},
	&models.CartEntry{},
	&models.SaleItem{},
	&models.Sale{},
	&models.ProductEngine{},
	&models.Variant{},
	&models.Product{},
	&models.Engine{},
	&models.Category{},
	&models.Supplier{},
	&models.Manufacturer{},
}

// Wipe empties the catalog, its stock ledger and the sales history.
func (r *Repository) Wipe(ctx context.Context) error {
	conn := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range wipeOrder {
		if err := conn.Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) FindManufacturer(ctx context.Context, name string) (*models.Manufacturer, error) {
	var row models.Manufacturer
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) FindEngine(ctx context.Context, manufacturerID uuid.UUID, name string) (*models.Engine, error) {
	var row models.Engine
	err := r.db.WithContext(ctx).
		Where("manufacturer_id = ? AND name = ?", manufacturerID, name).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) FindCategory(ctx context.Context, name string) (*models.Category, error) {
	var row models.Category
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) FindSupplier(ctx context.Context, name string) (*models.Supplier, error) {
	var row models.Supplier
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Create inserts any catalog row.
func (r *Repository) Create(ctx context.Context, row any) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *Repository) FindProductByPartNumber(ctx context.Context, partNumber string) (*models.Product, error) {
	var row models.Product
	err := r.db.WithContext(ctx).
		Where("part_number = ?", partNumber).
		Order("created_at ASC").
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) UpdateProduct(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(updates).Error
}

// LinkEngine is idempotent.
func (r *Repository) LinkEngine(ctx context.Context, productID, engineID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ProductEngine{ProductID: productID, EngineID: engineID}).Error
}

func (r *Repository) FindVariant(ctx context.Context, productID, supplierID uuid.UUID) (*models.Variant, error) {
	var row models.Variant
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND supplier_id = ?", productID, supplierID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) UpdateVariant(ctx context.Context, id uuid.UUID, price decimal.Decimal, sku, bin string) error {
	return r.db.WithContext(ctx).
		Model(&models.Variant{}).
		Where("id = ?", id).
		Updates(map[string]any{"price": price, "sku": sku, "bin_location": bin}).Error
}

// exportRow is one flattened variant.
type exportRow struct {
	PartNumber   string          `gorm:"column:part_number"`
	Manufacturer string          `gorm:"column:manufacturer"`
	Engine       string          `gorm:"column:engine"`
	Category     string          `gorm:"column:category"`
	Supplier     string          `gorm:"column:supplier"`
	Description  string          `gorm:"column:description"`
	Price        decimal.Decimal `gorm:"column:price"`
	Stock        int             `gorm:"column:stock_quantity"`
	Bin          string          `gorm:"column:bin_location"`
	Image        string          `gorm:"column:image_url"`
	SKU          string          `gorm:"column:sku"`
	Notes        string          `gorm:"column:notes"`
}

func (r *exportRow) record() []string {
	return []string{
		r.PartNumber, r.Manufacturer, r.Engine, r.Category, r.Supplier, r.Description,
		r.Price.StringFixed(2), strconv.Itoa(r.Stock), r.Bin, r.Image, r.SKU, r.Notes,
	}
}

// firstEngine picks the alphabetically first engine linked to the product.
const firstEngine = `(SELECT %s FROM product_engines
	JOIN engines ON engines.id = product_engines.engine_id
	JOIN manufacturers ON manufacturers.id = engines.manufacturer_id
	WHERE product_engines.product_id = products.id
	ORDER BY manufacturers.name, engines.name LIMIT 1)`

// ExportRows streams every variant joined with its product, category, first
// engine and supplier. fn is called once per row.
func (r *Repository) ExportRows(ctx context.Context, fn func(row *exportRow) error) error {
	conn := r.db.WithContext(ctx)
	rows, err := conn.
		Table("product_variants").
		Select(`products.part_number,
			COALESCE(` + fmt.Sprintf(firstEngine, "manufacturers.name") + `, '') AS manufacturer,
			COALESCE(` + fmt.Sprintf(firstEngine, "engines.name") + `, '') AS engine,
			COALESCE(categories.name, '') AS category,
			COALESCE(suppliers.name, '') AS supplier,
			products.description,
			product_variants.price,
			product_variants.stock_quantity,
			product_variants.bin_location,
			products.image_url,
			product_variants.sku,
			products.notes`).
		Joins("JOIN products ON products.id = product_variants.product_id").
		Joins("LEFT JOIN categories ON categories.id = products.category_id").
		Joins("LEFT JOIN suppliers ON suppliers.id = product_variants.supplier_id").
		Order("products.part_number ASC").
		Order("suppliers.name ASC").
		Rows()
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var row exportRow
		if err := conn.ScanRows(rows, &row); err != nil {
			return err
		}
		if err := fn(&row); err != nil {
			return err
		}
	}
	return rows.Err()
}
