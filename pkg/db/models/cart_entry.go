package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CartEntry stages reserved quantity of one variant for one shopper.
type CartEntry struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ShopperID      string          `gorm:"column:shopper_id;not null;uniqueIndex:ux_cart_entries_shopper_variant"`
	VariantID      uuid.UUID       `gorm:"column:variant_id;type:uuid;not null;index;uniqueIndex:ux_cart_entries_shopper_variant"`
	Quantity       int             `gorm:"column:quantity;not null"`
	UnitPrice      decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	LastActivityAt time.Time       `gorm:"column:last_activity_at;not null"`
}

func (c *CartEntry) BeforeCreate(*gorm.DB) error { assignID(&c.ID); return nil }
