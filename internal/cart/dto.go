package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartLineDTO is one reserved variant in a shopper's cart.
type CartLineDTO struct {
	VariantID      uuid.UUID       `json:"variant_id"`
	ProductID      uuid.UUID       `json:"product_id"`
	ProductName    string          `json:"product_name"`
	PartNumber     string          `json:"part_number"`
	SKU            string          `json:"sku"`
	SupplierName   string          `json:"supplier_name"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	LastActivityAt time.Time       `json:"last_activity_at"`
}

// CartDTO is the shopper-facing cart view.
type CartDTO struct {
	ShopperID string          `json:"shopper_id"`
	Items     []CartLineDTO   `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

// ActiveCartDTO summarizes a shopper holding reservations.
type ActiveCartDTO struct {
	ShopperID      string    `json:"shopper_id"`
	Entries        int       `json:"entries"`
	TotalItems     int       `json:"total_items"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// AddItemInput is the decoded body of an add-to-cart request.
type AddItemInput struct {
	VariantID uuid.UUID `json:"variant_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

func newCartDTO(shopperID string, lines []entryLine) *CartDTO {
	dto := &CartDTO{
		ShopperID: shopperID,
		Items:     make([]CartLineDTO, 0, len(lines)),
		Total:     decimal.Zero,
	}
	for _, line := range lines {
		subtotal := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		dto.Items = append(dto.Items, CartLineDTO{
			VariantID:      line.VariantID,
			ProductID:      line.ProductID,
			ProductName:    line.ProductName,
			PartNumber:     line.PartNumber,
			SKU:            line.SKU,
			SupplierName:   line.SupplierName,
			Quantity:       line.Quantity,
			UnitPrice:      line.UnitPrice,
			CurrentPrice:   line.CurrentPrice,
			Subtotal:       subtotal,
			LastActivityAt: line.LastActivityAt,
		})
		dto.Total = dto.Total.Add(subtotal)
		dto.ItemCount += line.Quantity
	}
	return dto
}
