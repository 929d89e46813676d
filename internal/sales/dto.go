package sales

import (
	"time"

	"github.com/angelmondragon/partsdesk-backend/pkg/db/models"
	"github.com/angelmondragon/partsdesk-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Meta is recorded on the sale header and never processed.
type Meta struct {
	PaymentMethod enums.PaymentMethod `json:"payment_method,omitempty"`
	CustomerID    *string             `json:"customer_id,omitempty"`
	CashierID     *uuid.UUID          `json:"cashier_id,omitempty"`
	Channel       enums.SaleChannel   `json:"channel,omitempty"`
}

// ReservationLine is one cart entry handed over at checkout. The sold
// quantity is the sum of the committed handles.
type ReservationLine struct {
	Handles      []uuid.UUID
	VariantID    uuid.UUID
	UnitPrice    decimal.Decimal
	ProductName  string
	PartNumber   string
	SupplierName string
}

// DirectItem is one walk-up sale line. A nil UnitPrice means the catalog
// price; any non-negative override is accepted.
type DirectItem struct {
	VariantID uuid.UUID        `json:"variant_id" validate:"required"`
	Quantity  int              `json:"quantity" validate:"min=1"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

// Result identifies a settled sale.
type Result struct {
	SaleID uuid.UUID       `json:"sale_id"`
	Total  decimal.Decimal `json:"total"`
}

// ListFilter narrows ListSales. Cursor is the next_cursor of a previous page.
type ListFilter struct {
	Limit      int
	CustomerID *string
	Cursor     string
}

// SalePage is one newest-first page of receipt headers.
type SalePage struct {
	Sales      []SaleDTO `json:"sales"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

type SaleItemDTO struct {
	ID           uuid.UUID       `json:"id"`
	VariantID    *uuid.UUID      `json:"variant_id,omitempty"`
	ProductName  string          `json:"product_name"`
	PartNumber   string          `json:"part_number"`
	SupplierName string          `json:"supplier_name"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

// SaleDTO is a receipt header, with items when loaded by id.
type SaleDTO struct {
	ID            uuid.UUID       `json:"id"`
	CreatedAt     time.Time       `json:"created_at"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	CustomerID    *string         `json:"customer_id,omitempty"`
	CashierID     *uuid.UUID      `json:"cashier_id,omitempty"`
	PaymentMethod string          `json:"payment_method"`
	Channel       string          `json:"channel"`
	Items         []SaleItemDTO   `json:"items,omitempty"`
}

// StatsDTO backs the admin dashboard.
type StatsDTO struct {
	TotalStock  int64           `json:"total_stock"`
	TotalValue  decimal.Decimal `json:"total_value"`
	SalesToday  decimal.Decimal `json:"sales_today"`
	SalesWeek   decimal.Decimal `json:"sales_week"`
	SalesMonth  decimal.Decimal `json:"sales_month"`
	SalesYear   decimal.Decimal `json:"sales_year"`
	ActiveCarts int64           `json:"active_carts"`
}

func newSaleDTO(sale models.Sale, items []models.SaleItem) SaleDTO {
	dto := SaleDTO{
		ID:            sale.ID,
		CreatedAt:     sale.CreatedAt,
		TotalAmount:   sale.TotalAmount,
		CustomerID:    sale.CustomerID,
		CashierID:     sale.CashierID,
		PaymentMethod: sale.PaymentMethod.String(),
		Channel:       sale.Channel.String(),
	}
	for _, item := range items {
		dto.Items = append(dto.Items, SaleItemDTO{
			ID:           item.ID,
			VariantID:    item.VariantID,
			ProductName:  item.ProductName,
			PartNumber:   item.PartNumber,
			SupplierName: item.SupplierName,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			Subtotal:     item.Subtotal,
		})
	}
	return dto
}
