package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/partsdesk-backend/pkg/enums"
)

// StockReservation is a reservation handle against a variant's stock.
type StockReservation struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	VariantID   uuid.UUID               `gorm:"column:variant_id;type:uuid;not null;index"`
	CartEntryID *uuid.UUID              `gorm:"column:cart_entry_id;type:uuid;index"`
	Quantity    int                     `gorm:"column:quantity;not null;check:chk_reservations_qty_positive,quantity > 0"`
	Status      enums.ReservationStatus `gorm:"column:status;type:text;not null;default:'active'"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
	ResolvedAt  *time.Time              `gorm:"column:resolved_at"`
}

func (r *StockReservation) BeforeCreate(*gorm.DB) error { assignID(&r.ID); return nil }

// StockMovement is an append-only audit row for every ledger mutation.
type StockMovement struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	VariantID   uuid.UUID          `gorm:"column:variant_id;type:uuid;not null;index"`
	Type        enums.MovementType `gorm:"column:movement_type;type:text;not null"`
	Quantity    int                `gorm:"column:quantity;not null"`
	ReferenceID *uuid.UUID         `gorm:"column:reference_id;type:uuid"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (m *StockMovement) BeforeCreate(*gorm.DB) error { assignID(&m.ID); return nil }
