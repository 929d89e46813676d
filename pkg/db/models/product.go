package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is the sellable definition; stock lives on its variants.
type Product struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	PartNumber  string     `gorm:"column:part_number;not null;index"`
	Name        string     `gorm:"column:name;not null"`
	Description string     `gorm:"column:description;not null;default:''"`
	Notes       string     `gorm:"column:notes;not null;default:''"`
	ImageURL    string     `gorm:"column:image_url;not null;default:''"`
	CategoryID  *uuid.UUID `gorm:"column:category_id;type:uuid;index"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error { assignID(&p.ID); return nil }
