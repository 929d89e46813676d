package catalog

import (
	"context"

	"github.com/angelmondragon/partsdesk-backend/pkg/db"
	"github.com/angelmondragon/partsdesk-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/partsdesk-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (s *service) ListVariants(ctx context.Context, productID uuid.UUID) ([]VariantDTO, error) {
	if _, err := s.repo.FindProduct(ctx, productID); err != nil {
		return nil, notFoundOr(err, "product not found", "db: load product")
	}
	rows, err := s.repo.ListVariants(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list variants")
	}
	out := make([]VariantDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, newVariantDTO(row))
	}
	return out, nil
}

func (s *service) GetVariant(ctx context.Context, id uuid.UUID) (*VariantDTO, error) {
	row, err := s.repo.FindVariant(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "variant not found", "db: load variant")
	}
	dto := newVariantDTO(*row)
	return &dto, nil
}

// CreateVariant inserts the variant with zero stock, then books the opening
// stock through the ledger so it shows up in the movement log.
func (s *service) CreateVariant(ctx context.Context, productID uuid.UUID, input VariantInput) (*VariantDTO, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}

	var variantID uuid.UUID
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if _, err := txRepo.FindProduct(ctx, productID); err != nil {
			return notFoundOr(err, "product not found", "db: load product")
		}
		if err := ensureExists(ctx, txRepo, "suppliers", "supplier", []uuid.UUID{input.SupplierID}); err != nil {
			return err
		}

		variant := &models.Variant{
			ProductID:   productID,
			SupplierID:  input.SupplierID,
			SKU:         input.SKU,
			Price:       input.Price.Round(2),
			BinLocation: input.BinLocation,
		}
		if err := txRepo.CreateVariant(ctx, variant); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "product already has a variant for this supplier").
					WithDetails(map[string]any{"product_id": productID, "supplier_id": input.SupplierID})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert variant")
		}
		variantID = variant.ID

		if input.Stock > 0 {
			return s.ledger.WithTx(tx).SetStock(ctx, variant.ID, input.Stock)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetVariant(ctx, variantID)
}

func (s *service) UpdateVariant(ctx context.Context, id uuid.UUID, input VariantUpdate) (*VariantDTO, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	if input.Price != nil && input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}

	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if _, err := txRepo.FindVariant(ctx, id); err != nil {
			return notFoundOr(err, "variant not found", "db: load variant")
		}

		updates := map[string]any{}
		if input.SKU != nil {
			updates["sku"] = *input.SKU
		}
		if input.Price != nil {
			updates["price"] = input.Price.Round(2)
		}
		if input.BinLocation != nil {
			updates["bin_location"] = *input.BinLocation
		}
		if len(updates) > 0 {
			if err := txRepo.UpdateVariant(ctx, id, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update variant")
			}
		}
		if input.Stock != nil {
			return s.ledger.WithTx(tx).SetStock(ctx, id, *input.Stock)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetVariant(ctx, id)
}

func (s *service) DeleteVariant(ctx context.Context, id uuid.UUID) error {
	return s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).DeleteVariant(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete variant")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		return nil
	})
}
