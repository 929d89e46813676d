package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Variant is one supplier's priced, stocked instance of a product. Only the
// ledger writes StockQuantity and ReservedQuantity after creation.
type Variant struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ProductID        uuid.UUID       `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_variants_product_supplier"`
	SupplierID       uuid.UUID       `gorm:"column:supplier_id;type:uuid;not null;index;uniqueIndex:ux_variants_product_supplier"`
	SKU              string          `gorm:"column:sku;not null;default:''"`
	Price            decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null;default:0;check:chk_variants_price_nonneg,price >= 0"`
	StockQuantity    int             `gorm:"column:stock_quantity;not null;default:0;check:chk_variants_stock_nonneg,stock_quantity >= 0"`
	ReservedQuantity int             `gorm:"column:reserved_quantity;not null;default:0;check:chk_variants_reserved_nonneg,reserved_quantity >= 0"`
	BinLocation      string          `gorm:"column:bin_location;not null;default:''"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Variant) TableName() string { return "product_variants" }

func (v *Variant) BeforeCreate(*gorm.DB) error { assignID(&v.ID); return nil }

// Available is stock not claimed by outstanding reservations, never below zero.
func (v Variant) Available() int {
	if avail := v.StockQuantity - v.ReservedQuantity; avail > 0 {
		return avail
	}
	return 0
}
