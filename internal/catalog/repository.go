package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/angelmondragon/partsdesk-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists products, variants and their engine links.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

type variantRow struct {
	models.Variant `gorm:"embedded"`
	SupplierName   string `gorm:"column:supplier_name"`
}

type productRow struct {
	models.Product `gorm:"embedded"`
	CategoryName   string `gorm:"column:category_name"`
}

// variantAggregate is the per-product roll-up attached to search hits.
type variantAggregate struct {
	Suppliers      []string
	TotalStock     int
	TotalAvailable int
}

func (r *Repository) productQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("products").
		Select("products.*, COALESCE(categories.name, '') AS category_name").
		Joins("LEFT JOIN categories ON categories.id = products.category_id")
}

func (r *Repository) FindProduct(ctx context.Context, id uuid.UUID) (*productRow, error) {
	var row productRow
	if err := r.productQuery(ctx).Where("products.id = ?", id).Take(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *Repository) UpdateProduct(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(updates).Error
}

// ReplaceEngines swaps the product's engine set for engineIDs.
func (r *Repository) ReplaceEngines(ctx context.Context, productID uuid.UUID, engineIDs []uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("product_id = ?", productID).Delete(&models.ProductEngine{}).Error; err != nil {
		return err
	}
	if len(engineIDs) == 0 {
		return nil
	}
	links := make([]models.ProductEngine, 0, len(engineIDs))
	for _, id := range dedupe(engineIDs) {
		links = append(links, models.ProductEngine{ProductID: productID, EngineID: id})
	}
	return r.db.WithContext(ctx).Create(&links).Error
}

// CountExisting returns how many of ids exist in table.
func (r *Repository) CountExisting(ctx context.Context, table string, ids []uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Table(table).Where("id IN ?", dedupe(ids)).Count(&count).Error
	return count, err
}

func (r *Repository) ProductEngines(ctx context.Context, productID uuid.UUID) ([]EngineRefDTO, error) {
	var rows []EngineRefDTO
	err := r.db.WithContext(ctx).
		Table("product_engines").
		Select("engines.id, engines.name, COALESCE(manufacturers.name, '') AS manufacturer_name").
		Joins("JOIN engines ON engines.id = product_engines.engine_id").
		Joins("LEFT JOIN manufacturers ON manufacturers.id = engines.manufacturer_id").
		Where("product_engines.product_id = ?", productID).
		Order("manufacturers.name ASC, engines.name ASC").
		Scan(&rows).Error
	return rows, err
}

// ProductSold reports whether any variant of the product appears on a sale.
func (r *Repository) ProductSold(ctx context.Context, productID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("sale_items").
		Joins("JOIN product_variants ON product_variants.id = sale_items.variant_id").
		Where("product_variants.product_id = ?", productID).
		Count(&count).Error
	return count > 0, err
}

// DeleteProduct removes the product with its variants and everything hanging
// off them. It reports false when the product does not exist.
func (r *Repository) DeleteProduct(ctx context.Context, productID uuid.UUID) (bool, error) {
	conn := r.db.WithContext(ctx)
	variantIDs := conn.Model(&models.Variant{}).Select("id").Where("product_id = ?", productID)
	steps := []any{
		&models.StockMovement{},
		&models.StockReservation{},
		&models.CartEntry{},
	}
	for _, model := range steps {
		if err := conn.Where("variant_id IN (?)", variantIDs).Delete(model).Error; err != nil {
			return false, err
		}
	}
	if err := conn.Where("product_id = ?", productID).Delete(&models.Variant{}).Error; err != nil {
		return false, err
	}
	if err := conn.Where("product_id = ?", productID).Delete(&models.ProductEngine{}).Error; err != nil {
		return false, err
	}
	res := conn.Where("id = ?", productID).Delete(&models.Product{})
	return res.RowsAffected == 1, res.Error
}

func (r *Repository) variantQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("product_variants").
		Select("product_variants.*, COALESCE(suppliers.name, 'Unknown') AS supplier_name").
		Joins("LEFT JOIN suppliers ON suppliers.id = product_variants.supplier_id")
}

func (r *Repository) FindVariant(ctx context.Context, id uuid.UUID) (*variantRow, error) {
	var row variantRow
	if err := r.variantQuery(ctx).Where("product_variants.id = ?", id).Take(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) ListVariants(ctx context.Context, productID uuid.UUID) ([]variantRow, error) {
	var rows []variantRow
	err := r.variantQuery(ctx).
		Where("product_variants.product_id = ?", productID).
		Order("supplier_name ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *Repository) CreateVariant(ctx context.Context, variant *models.Variant) error {
	return r.db.WithContext(ctx).Create(variant).Error
}

// UpdateVariant writes descriptive columns only; stock is owned by the ledger.
func (r *Repository) UpdateVariant(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.Variant{}).Where("id = ?", id).Updates(updates).Error
}

// DeleteVariant removes the variant and its reservations, movements and cart
// entries. Sale items keep their snapshot with variant_id cleared.
func (r *Repository) DeleteVariant(ctx context.Context, id uuid.UUID) (bool, error) {
	conn := r.db.WithContext(ctx)
	if err := conn.Model(&models.SaleItem{}).Where("variant_id = ?", id).UpdateColumn("variant_id", nil).Error; err != nil {
		return false, err
	}
	for _, model := range []any{&models.StockMovement{}, &models.StockReservation{}, &models.CartEntry{}} {
		if err := conn.Where("variant_id = ?", id).Delete(model).Error; err != nil {
			return false, err
		}
	}
	res := conn.Where("id = ?", id).Delete(&models.Variant{})
	return res.RowsAffected == 1, res.Error
}

func (r *Repository) SearchProducts(ctx context.Context, filter SearchFilter) ([]productRow, error) {
	q := r.productQuery(ctx)
	switch {
	case strings.TrimSpace(filter.Query) != "":
		like := "%" + strings.ToLower(strings.TrimSpace(filter.Query)) + "%"
		q = q.Where(
			"LOWER(products.part_number) LIKE ? OR LOWER(products.name) LIKE ? OR LOWER(products.description) LIKE ? OR LOWER(products.notes) LIKE ? OR EXISTS (SELECT 1 FROM product_variants pv WHERE pv.product_id = products.id AND LOWER(pv.sku) LIKE ?)",
			like, like, like, like, like,
		)
	case filter.EngineID != nil:
		q = q.Where("EXISTS (SELECT 1 FROM product_engines pe WHERE pe.product_id = products.id AND pe.engine_id = ?)", *filter.EngineID)
		if filter.CategoryID != nil {
			q = q.Where("products.category_id = ?", *filter.CategoryID)
		}
	case filter.CategoryID != nil:
		q = q.Where("products.category_id = ?", *filter.CategoryID)
	}

	var rows []productRow
	err := q.Order("products.part_number ASC").Limit(filter.Limit).Scan(&rows).Error
	return rows, err
}

// Aggregates rolls variant stock and supplier names up per product.
func (r *Repository) Aggregates(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]*variantAggregate, error) {
	out := make(map[uuid.UUID]*variantAggregate, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	var rows []variantRow
	if err := r.variantQuery(ctx).Where("product_variants.product_id IN ?", productIDs).Scan(&rows).Error; err != nil {
		return nil, err
	}

	seen := map[uuid.UUID]map[string]struct{}{}
	for _, row := range rows {
		agg, ok := out[row.ProductID]
		if !ok {
			agg = &variantAggregate{}
			out[row.ProductID] = agg
			seen[row.ProductID] = map[string]struct{}{}
		}
		agg.TotalStock += row.StockQuantity
		agg.TotalAvailable += row.Variant.Available()
		if _, dup := seen[row.ProductID][row.SupplierName]; !dup {
			seen[row.ProductID][row.SupplierName] = struct{}{}
			agg.Suppliers = append(agg.Suppliers, row.SupplierName)
		}
	}
	for _, agg := range out {
		sort.Strings(agg.Suppliers)
	}
	return out, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
