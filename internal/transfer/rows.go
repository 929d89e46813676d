package transfer

import (
	"context"
	"strconv"
	"strings"

	"github.com/angelmondragon/partsdesk-backend/internal/ledger"
	"github.com/angelmondragon/partsdesk-backend/pkg/db"
	"github.com/angelmondragon/partsdesk-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/partsdesk-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type importRow struct {
	PartNumber   string
	Manufacturer string
	Engine       string
	Category     string
	Supplier     string
	Description  string
	Price        decimal.Decimal
	Quantity     int
	Bin          string
	Image        string
	SKU          string
	Notes        string
}

func parseRow(cols layout, record []string) (importRow, error) {
	row := importRow{
		PartNumber:   strings.ToUpper(cols.field(record, colPartNumber)),
		Manufacturer: cols.field(record, colManufacturer),
		Engine:       cols.field(record, colEngine),
		Category:     cols.field(record, colCategory),
		Supplier:     strings.ToUpper(cols.field(record, colSupplier)),
		Description:  cols.field(record, colDescription),
		Bin:          cols.field(record, colBin),
		Image:        cols.field(record, colImage),
		SKU:          cols.field(record, colSKU),
		Notes:        cols.field(record, colNotes),
		Price:        decimal.Zero,
	}
	if row.PartNumber == "" {
		return row, pkgerrors.New(pkgerrors.CodeValidation, "missing part number")
	}
	if row.Supplier == "" {
		return row, pkgerrors.New(pkgerrors.CodeValidation, "missing supplier")
	}

	if raw := strings.TrimPrefix(cols.field(record, colPrice), "$"); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return row, pkgerrors.New(pkgerrors.CodeValidation, "invalid price "+strconv.Quote(raw))
		}
		if price.IsNegative() {
			return row, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
		}
		row.Price = price.Round(2)
	}

	if raw := cols.field(record, colQuantity); raw != "" {
		qty, err := parseQuantity(raw)
		if err != nil {
			return row, pkgerrors.New(pkgerrors.CodeValidation, "invalid quantity "+strconv.Quote(raw))
		}
		if qty < 0 {
			return row, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
		}
		row.Quantity = qty
	}
	return row, nil
}

// parseQuantity accepts whole numbers, including spreadsheet renderings like "5.0".
func parseQuantity(raw string) (int, error) {
	if qty, err := strconv.Atoi(raw); err == nil {
		return qty, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil || !value.Equal(value.Truncate(0)) {
		return 0, strconv.ErrSyntax
	}
	return int(value.IntPart()), nil
}

// nameCache remembers reference ids resolved during one import run.
type nameCache struct {
	ids map[string]uuid.UUID
}

func newNameCache() *nameCache {
	return &nameCache{ids: make(map[string]uuid.UUID)}
}

// begin opens a per-row overlay.
func (c *nameCache) begin() *pendingNames {
	return &pendingNames{base: c.ids, added: make(map[string]uuid.UUID)}
}

func (c *nameCache) commit(p *pendingNames) {
	for k, v := range p.added {
		c.ids[k] = v
	}
}

type pendingNames struct {
	base  map[string]uuid.UUID
	added map[string]uuid.UUID
}

func (p *pendingNames) get(key string) (uuid.UUID, bool) {
	if id, ok := p.added[key]; ok {
		return id, true
	}
	id, ok := p.base[key]
	return id, ok
}

func (p *pendingNames) put(key string, id uuid.UUID) {
	p.added[key] = id
}

type rowWriter struct {
	repo   *Repository
	ledger ledger.Service
	names  *pendingNames
}

func (w *rowWriter) write(ctx context.Context, row importRow) error {
	var (
		manufacturerID *uuid.UUID
		engineID       *uuid.UUID
		categoryID     *uuid.UUID
	)
	if row.Manufacturer != "" {
		id, err := w.manufacturer(ctx, row.Manufacturer)
		if err != nil {
			return err
		}
		manufacturerID = &id
	}
	if row.Engine != "" && manufacturerID != nil {
		id, err := w.engine(ctx, *manufacturerID, row.Engine)
		if err != nil {
			return err
		}
		engineID = &id
	}
	if row.Category != "" {
		id, err := w.category(ctx, row.Category)
		if err != nil {
			return err
		}
		categoryID = &id
	}
	supplierID, err := w.supplier(ctx, row.Supplier)
	if err != nil {
		return err
	}

	productID, err := w.product(ctx, row, categoryID)
	if err != nil {
		return err
	}
	if engineID != nil {
		if err := w.repo.LinkEngine(ctx, productID, *engineID); err != nil {
			return dbErr(err, "link engine")
		}
	}
	return w.variant(ctx, row, productID, supplierID)
}

func dbErr(err error, op string) error {
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: "+op)
}

// resolve returns the cached id for key, or finds or creates the row.
func (w *rowWriter) resolve(key string, find func() (uuid.UUID, error), create func() (uuid.UUID, error)) (uuid.UUID, error) {
	if id, ok := w.names.get(key); ok {
		return id, nil
	}
	id, err := find()
	if err != nil {
		if !db.IsNotFound(err) {
			return uuid.Nil, err
		}
		if id, err = create(); err != nil {
			return uuid.Nil, err
		}
	}
	w.names.put(key, id)
	return id, nil
}

func (w *rowWriter) manufacturer(ctx context.Context, name string) (uuid.UUID, error) {
	id, err := w.resolve("manufacturer:"+name,
		func() (uuid.UUID, error) {
			row, err := w.repo.FindManufacturer(ctx, name)
			if err != nil {
				return uuid.Nil, err
			}
			return row.ID, nil
		},
		func() (uuid.UUID, error) {
			row := models.Manufacturer{Name: name}
			err := w.repo.Create(ctx, &row)
			return row.ID, err
		})
	if err != nil {
		return uuid.Nil, dbErr(err, "resolve manufacturer")
	}
	return id, nil
}

func (w *rowWriter) engine(ctx context.Context, manufacturerID uuid.UUID, name string) (uuid.UUID, error) {
	id, err := w.resolve("engine:"+manufacturerID.String()+":"+name,
		func() (uuid.UUID, error) {
			row, err := w.repo.FindEngine(ctx, manufacturerID, name)
			if err != nil {
				return uuid.Nil, err
			}
			return row.ID, nil
		},
		func() (uuid.UUID, error) {
			row := models.Engine{Name: name, ManufacturerID: manufacturerID}
			err := w.repo.Create(ctx, &row)
			return row.ID, err
		})
	if err != nil {
		return uuid.Nil, dbErr(err, "resolve engine")
	}
	return id, nil
}

func (w *rowWriter) category(ctx context.Context, name string) (uuid.UUID, error) {
	id, err := w.resolve("category:"+name,
		func() (uuid.UUID, error) {
			row, err := w.repo.FindCategory(ctx, name)
			if err != nil {
				return uuid.Nil, err
			}
			return row.ID, nil
		},
		func() (uuid.UUID, error) {
			row := models.Category{Name: name}
			err := w.repo.Create(ctx, &row)
			return row.ID, err
		})
	if err != nil {
		return uuid.Nil, dbErr(err, "resolve category")
	}
	return id, nil
}

func (w *rowWriter) supplier(ctx context.Context, name string) (uuid.UUID, error) {
	id, err := w.resolve("supplier:"+name,
		func() (uuid.UUID, error) {
			row, err := w.repo.FindSupplier(ctx, name)
			if err != nil {
				return uuid.Nil, err
			}
			return row.ID, nil
		},
		func() (uuid.UUID, error) {
			row := models.Supplier{Name: name}
			err := w.repo.Create(ctx, &row)
			return row.ID, err
		})
	if err != nil {
		return uuid.Nil, dbErr(err, "resolve supplier")
	}
	return id, nil
}

// product finds the product by part number and fills in non-empty descriptive
// fields, or creates it.
func (w *rowWriter) product(ctx context.Context, row importRow, categoryID *uuid.UUID) (uuid.UUID, error) {
	existing, err := w.repo.FindProductByPartNumber(ctx, row.PartNumber)
	if err != nil && !db.IsNotFound(err) {
		return uuid.Nil, dbErr(err, "find product")
	}
	if existing != nil {
		updates := map[string]any{}
		if row.Description != "" {
			updates["description"] = row.Description
		}
		if row.Notes != "" {
			updates["notes"] = row.Notes
		}
		if row.Image != "" {
			updates["image_url"] = row.Image
		}
		if categoryID != nil {
			updates["category_id"] = *categoryID
		}
		if err := w.repo.UpdateProduct(ctx, existing.ID, updates); err != nil {
			return uuid.Nil, dbErr(err, "update product")
		}
		return existing.ID, nil
	}

	name := row.Description
	if name == "" {
		name = row.PartNumber
	}
	product := models.Product{
		PartNumber:  row.PartNumber,
		Name:        name,
		Description: row.Description,
		Notes:       row.Notes,
		ImageURL:    row.Image,
		CategoryID:  categoryID,
	}
	if err := w.repo.Create(ctx, &product); err != nil {
		return uuid.Nil, dbErr(err, "create product")
	}
	return product.ID, nil
}

// variant overwrites price, SKU, bin and stock from the row. Stock goes
// through the ledger so the import leaves a stock_set movement.
func (w *rowWriter) variant(ctx context.Context, row importRow, productID, supplierID uuid.UUID) error {
	existing, err := w.repo.FindVariant(ctx, productID, supplierID)
	if err != nil && !db.IsNotFound(err) {
		return dbErr(err, "find variant")
	}

	var variantID uuid.UUID
	if existing != nil {
		if err := w.repo.UpdateVariant(ctx, existing.ID, row.Price, row.SKU, row.Bin); err != nil {
			return dbErr(err, "update variant")
		}
		variantID = existing.ID
	} else {
		variant := models.Variant{
			ProductID:   productID,
			SupplierID:  supplierID,
			SKU:         row.SKU,
			Price:       row.Price,
			BinLocation: row.Bin,
		}
		if err := w.repo.Create(ctx, &variant); err != nil {
			return dbErr(err, "create variant")
		}
		variantID = variant.ID
	}
	return w.ledger.SetStock(ctx, variantID, row.Quantity)
}
