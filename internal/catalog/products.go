package catalog

import (
	"context"
	"strings"

	"github.com/angelmondragon/partsdesk-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/partsdesk-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (s *service) CreateProduct(ctx context.Context, input ProductInput) (*ProductDTO, error) {
	input.PartNumber = strings.TrimSpace(input.PartNumber)
	input.Name = strings.TrimSpace(input.Name)
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	var productID uuid.UUID
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := ensureExists(ctx, txRepo, "categories", "category", optionalIDs(input.CategoryID)); err != nil {
			return err
		}
		if err := ensureExists(ctx, txRepo, "engines", "engine", input.EngineIDs); err != nil {
			return err
		}

		product := &models.Product{
			PartNumber:  input.PartNumber,
			Name:        input.Name,
			Description: input.Description,
			Notes:       input.Notes,
			ImageURL:    input.ImageURL,
			CategoryID:  input.CategoryID,
		}
		if err := txRepo.CreateProduct(ctx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert product")
		}
		productID = product.ID

		if err := txRepo.ReplaceEngines(ctx, product.ID, input.EngineIDs); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: link engines")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, productID)
}

func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, input ProductUpdate) (*ProductDTO, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if _, err := txRepo.FindProduct(ctx, id); err != nil {
			return notFoundOr(err, "product not found", "db: load product")
		}

		updates := map[string]any{}
		if input.PartNumber != nil {
			updates["part_number"] = strings.TrimSpace(*input.PartNumber)
		}
		if input.Name != nil {
			updates["name"] = strings.TrimSpace(*input.Name)
		}
		if input.Description != nil {
			updates["description"] = *input.Description
		}
		if input.Notes != nil {
			updates["notes"] = *input.Notes
		}
		if input.ImageURL != nil {
			updates["image_url"] = *input.ImageURL
		}
		if input.CategoryID != nil {
			if err := ensureExists(ctx, txRepo, "categories", "category", optionalIDs(input.CategoryID)); err != nil {
				return err
			}
			updates["category_id"] = *input.CategoryID
		}
		if len(updates) > 0 {
			if err := txRepo.UpdateProduct(ctx, id, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product")
			}
		}

		if input.EngineIDs != nil {
			if err := ensureExists(ctx, txRepo, "engines", "engine", *input.EngineIDs); err != nil {
				return err
			}
			if err := txRepo.ReplaceEngines(ctx, id, *input.EngineIDs); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: replace engines")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, id)
}

// DeleteProduct refuses products that were ever sold; otherwise variants,
// reservations and cart entries go with it.
func (s *service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		sold, err := txRepo.ProductSold(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: check sale items")
		}
		if sold {
			return pkgerrors.New(pkgerrors.CodeReferentialConflict, "Cannot delete: this item is used by other records").
				WithDetails(map[string]any{
					"entity":     "products",
					"id":         id,
					"constraint": "fk_sale_items_variant",
				})
		}
		ok, err := txRepo.DeleteProduct(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete product")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil
	})
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	row, err := s.repo.FindProduct(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "product not found", "db: load product")
	}
	engines, err := s.repo.ProductEngines(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product engines")
	}
	aggregates, err := s.repo.Aggregates(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: aggregate variants")
	}

	summary := newProductSummary(row.Product, row.CategoryName)
	applyAggregate(&summary, aggregates[id])
	if engines == nil {
		engines = []EngineRefDTO{}
	}
	return &ProductDTO{
		ProductSummaryDTO: summary,
		Engines:           engines,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}, nil
}

func (s *service) SearchProducts(ctx context.Context, filter SearchFilter) ([]ProductSummaryDTO, error) {
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultSearchLimit
	case filter.Limit > maxSearchLimit:
		filter.Limit = maxSearchLimit
	}

	rows, err := s.repo.SearchProducts(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: search products")
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	aggregates, err := s.repo.Aggregates(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: aggregate variants")
	}

	out := make([]ProductSummaryDTO, 0, len(rows))
	for _, row := range rows {
		summary := newProductSummary(row.Product, row.CategoryName)
		applyAggregate(&summary, aggregates[row.ID])
		out = append(out, summary)
	}
	return out, nil
}

func applyAggregate(summary *ProductSummaryDTO, agg *variantAggregate) {
	if agg == nil {
		return
	}
	summary.Suppliers = agg.Suppliers
	summary.TotalStock = agg.TotalStock
	summary.TotalAvailable = agg.TotalAvailable
}

func ensureExists(ctx context.Context, repo *Repository, table, entity string, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	want := int64(len(dedupe(ids)))
	got, err := repo.CountExisting(ctx, table, ids)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: check "+table)
	}
	if got != want {
		return pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found")
	}
	return nil
}

func optionalIDs(id *uuid.UUID) []uuid.UUID {
	if id == nil {
		return nil
	}
	return []uuid.UUID{*id}
}
