package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/partsdesk-backend/pkg/enums"
)

// Sale is an append-only header; TotalAmount equals the sum of its item subtotals.
type Sale struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	TotalAmount   decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	CustomerID    *string             `gorm:"column:customer_id;index"`
	CashierID     *uuid.UUID          `gorm:"column:cashier_id;type:uuid"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:text;not null;default:'cash'"`
	Channel       enums.SaleChannel   `gorm:"column:channel;type:text;not null;default:'pos'"`
	CreatedAt     time.Time           `gorm:"column:created_at;index"`
}

func (s *Sale) BeforeCreate(*gorm.DB) error { assignID(&s.ID); return nil }

// SaleItem snapshots catalog names at settlement so receipts survive catalog edits.
type SaleItem struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SaleID       uuid.UUID       `gorm:"column:sale_id;type:uuid;not null;index"`
	VariantID    *uuid.UUID      `gorm:"column:variant_id;type:uuid;index"`
	ProductName  string          `gorm:"column:product_name;not null"`
	PartNumber   string          `gorm:"column:part_number;not null;default:''"`
	SupplierName string          `gorm:"column:supplier_name;not null;default:''"`
	Quantity     int             `gorm:"column:quantity;not null"`
	UnitPrice    decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Subtotal     decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null"`
}

func (i *SaleItem) BeforeCreate(*gorm.DB) error { assignID(&i.ID); return nil }
