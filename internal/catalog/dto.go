package catalog

import (
	"time"

	"github.com/angelmondragon/partsdesk-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReferenceDTO is a manufacturer, engine, category or supplier row.
type ReferenceDTO struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	ManufacturerID *uuid.UUID `json:"manufacturer_id,omitempty"`
}

// HierarchyDTO drives the POS filter tree.
type HierarchyDTO struct {
	Manufacturers []ReferenceDTO `json:"manufacturers"`
	Engines       []ReferenceDTO `json:"engines"`
	Categories    []ReferenceDTO `json:"categories"`
	Suppliers     []ReferenceDTO `json:"suppliers"`
}

// ProductSummaryDTO is a search hit enriched with variant aggregates.
type ProductSummaryDTO struct {
	ID             uuid.UUID  `json:"id"`
	PartNumber     string     `json:"part_number"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Notes          string     `json:"notes"`
	ImageURL       string     `json:"image_url"`
	CategoryID     *uuid.UUID `json:"category_id,omitempty"`
	CategoryName   string     `json:"category_name,omitempty"`
	Suppliers      []string   `json:"suppliers"`
	TotalStock     int        `json:"total_stock"`
	TotalAvailable int        `json:"total_available"`
}

// EngineRefDTO names an engine fitted by a product.
type EngineRefDTO struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	ManufacturerName string    `json:"manufacturer_name"`
}

// ProductDTO is the full product payload.
type ProductDTO struct {
	ProductSummaryDTO
	Engines   []EngineRefDTO `json:"engines"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// VariantDTO exposes one supplier's offer of a product.
type VariantDTO struct {
	ID               uuid.UUID       `json:"id"`
	ProductID        uuid.UUID       `json:"product_id"`
	SupplierID       uuid.UUID       `json:"supplier_id"`
	SupplierName     string          `json:"supplier_name"`
	SKU              string          `json:"sku"`
	Price            decimal.Decimal `json:"price"`
	StockQuantity    int             `json:"stock_quantity"`
	ReservedQuantity int             `json:"reserved_quantity"`
	Available        int             `json:"available"`
	BinLocation      string          `json:"bin_location"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ReferenceInput creates a reference entity. ManufacturerID is required for engines.
type ReferenceInput struct {
	Name           string     `json:"name" validate:"required,max=255"`
	ManufacturerID *uuid.UUID `json:"manufacturer_id,omitempty"`
}

// ProductInput creates a product.
type ProductInput struct {
	PartNumber  string      `json:"part_number" validate:"required,max=64"`
	Name        string      `json:"name" validate:"required,max=255"`
	Description string      `json:"description" validate:"max=4000"`
	Notes       string      `json:"notes" validate:"max=4000"`
	ImageURL    string      `json:"image_url" validate:"omitempty,max=1024"`
	CategoryID  *uuid.UUID  `json:"category_id,omitempty"`
	EngineIDs   []uuid.UUID `json:"engine_ids,omitempty"`
}

// ProductUpdate patches a product; nil fields are left untouched. A non-nil
// EngineIDs replaces the whole engine set.
type ProductUpdate struct {
	PartNumber  *string      `json:"part_number,omitempty" validate:"omitempty,min=1,max=64"`
	Name        *string      `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string      `json:"description,omitempty" validate:"omitempty,max=4000"`
	Notes       *string      `json:"notes,omitempty" validate:"omitempty,max=4000"`
	ImageURL    *string      `json:"image_url,omitempty" validate:"omitempty,max=1024"`
	CategoryID  *uuid.UUID   `json:"category_id,omitempty"`
	EngineIDs   *[]uuid.UUID `json:"engine_ids,omitempty"`
}

// VariantInput creates a variant under a product.
type VariantInput struct {
	SupplierID  uuid.UUID       `json:"supplier_id" validate:"required"`
	SKU         string          `json:"sku" validate:"max=128"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock_quantity" validate:"min=0"`
	BinLocation string          `json:"bin_location" validate:"max=64"`
}

// VariantUpdate patches a variant. Stock goes through the ledger.
type VariantUpdate struct {
	SKU         *string          `json:"sku,omitempty" validate:"omitempty,max=128"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Stock       *int             `json:"stock_quantity,omitempty" validate:"omitempty,min=0"`
	BinLocation *string          `json:"bin_location,omitempty" validate:"omitempty,max=64"`
}

// SearchFilter selects products. Query wins over the engine/category filters.
type SearchFilter struct {
	Query      string
	EngineID   *uuid.UUID
	CategoryID *uuid.UUID
	Limit      int
}

func newProductSummary(p models.Product, categoryName string) ProductSummaryDTO {
	return ProductSummaryDTO{
		ID:           p.ID,
		PartNumber:   p.PartNumber,
		Name:         p.Name,
		Description:  p.Description,
		Notes:        p.Notes,
		ImageURL:     p.ImageURL,
		CategoryID:   p.CategoryID,
		CategoryName: categoryName,
		Suppliers:    []string{},
	}
}

func newVariantDTO(row variantRow) VariantDTO {
	return VariantDTO{
		ID:               row.ID,
		ProductID:        row.ProductID,
		SupplierID:       row.SupplierID,
		SupplierName:     row.SupplierName,
		SKU:              row.SKU,
		Price:            row.Price,
		StockQuantity:    row.StockQuantity,
		ReservedQuantity: row.ReservedQuantity,
		Available:        row.Variant.Available(),
		BinLocation:      row.BinLocation,
		UpdatedAt:        row.UpdatedAt,
	}
}
