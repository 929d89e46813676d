package dbtest

import (
	"context"
	"testing"

	"github.com/angelmondragon/partsdesk-backend/pkg/db"
	"github.com/angelmondragon/partsdesk-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VariantSeed describes a product/supplier/variant triple to insert.
type VariantSeed struct {
	PartNumber string
	Name       string
	Supplier   string
	Price      string
	Stock      int
	SKU        string
}

// SeedVariant inserts the product, supplier and variant described by seed and
// returns the variant. Empty fields get unique defaults.
func SeedVariant(t *testing.T, client *db.Client, seed VariantSeed) models.Variant {
	t.Helper()
	ctx := context.Background()
	conn := client.DB().WithContext(ctx)

	if seed.PartNumber == "" {
		seed.PartNumber = "PN-" + uuid.NewString()[:8]
	}
	if seed.Name == "" {
		seed.Name = "Part " + seed.PartNumber
	}
	if seed.Supplier == "" {
		seed.Supplier = "SUP-" + uuid.NewString()[:8]
	}
	if seed.Price == "" {
		seed.Price = "10.00"
	}

	var supplier models.Supplier
	if err := conn.Where("name = ?", seed.Supplier).First(&supplier).Error; err != nil {
		supplier = models.Supplier{Name: seed.Supplier}
		if err := conn.Create(&supplier).Error; err != nil {
			t.Fatalf("seed supplier: %v", err)
		}
	}

	var product models.Product
	if err := conn.Where("part_number = ?", seed.PartNumber).First(&product).Error; err != nil {
		product = models.Product{PartNumber: seed.PartNumber, Name: seed.Name}
		if err := conn.Create(&product).Error; err != nil {
			t.Fatalf("seed product: %v", err)
		}
	}

	variant := models.Variant{
		ProductID:     product.ID,
		SupplierID:    supplier.ID,
		SKU:           seed.SKU,
		Price:         decimal.RequireFromString(seed.Price),
		StockQuantity: seed.Stock,
	}
	if err := conn.Create(&variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	return variant
}

// ReloadVariant reads the variant's current row.
func ReloadVariant(t *testing.T, client *db.Client, id uuid.UUID) models.Variant {
	t.Helper()
	var variant models.Variant
	if err := client.DB().Where("id = ?", id).First(&variant).Error; err != nil {
		t.Fatalf("reload variant: %v", err)
	}
	return variant
}
