package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Manufacturer is the parent of engines.
type Manufacturer struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (m *Manufacturer) BeforeCreate(*gorm.DB) error { assignID(&m.ID); return nil }

// Engine belongs to exactly one manufacturer.
type Engine struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name           string    `gorm:"column:name;not null;uniqueIndex:ux_engines_manufacturer_name"`
	ManufacturerID uuid.UUID `gorm:"column:manufacturer_id;type:uuid;not null;index;uniqueIndex:ux_engines_manufacturer_name"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (e *Engine) BeforeCreate(*gorm.DB) error { assignID(&e.ID); return nil }

type Category struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (c *Category) BeforeCreate(*gorm.DB) error { assignID(&c.ID); return nil }

// Supplier is a brand able to fulfil a product through a variant.
type Supplier struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (s *Supplier) BeforeCreate(*gorm.DB) error { assignID(&s.ID); return nil }

// ProductEngine links a product to an engine it fits.
type ProductEngine struct {
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	EngineID  uuid.UUID `gorm:"column:engine_id;type:uuid;primaryKey;index"`
}
