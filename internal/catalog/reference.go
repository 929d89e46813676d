package catalog

import (
	"context"
	"strings"

	"github.com/angelmondragon/partsdesk-backend/internal/repo"
	"github.com/angelmondragon/partsdesk-backend/pkg/db"
	"github.com/angelmondragon/partsdesk-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/partsdesk-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Kind names a catalog reference entity.
type Kind string

const (
	KindManufacturer Kind = "manufacturers"
	KindEngine       Kind = "engines"
	KindCategory     Kind = "categories"
	KindSupplier     Kind = "suppliers"
)

// ParseKind resolves the plural route segment used by the admin API.
func ParseKind(value string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(value))); k {
	case KindManufacturer, KindEngine, KindCategory, KindSupplier:
		return k, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, "unknown catalog entity").
		WithDetails(map[string]any{"entity": value})
}

// dependent is a table whose rows block deleting a reference entity.
type dependent struct {
	table      string
	column     string
	constraint string
}

var dependentsByKind = map[Kind][]dependent{
	KindManufacturer: {{table: "engines", column: "manufacturer_id", constraint: "fk_engines_manufacturer"}},
	KindEngine:       {{table: "product_engines", column: "engine_id", constraint: "fk_product_engines_engine"}},
	KindCategory:     {{table: "products", column: "category_id", constraint: "fk_products_category"}},
	KindSupplier:     {{table: "product_variants", column: "supplier_id", constraint: "fk_variants_supplier"}},
}

// refStore adapts one typed Named repository to the ReferenceDTO surface.
type refStore interface {
	list(ctx context.Context, tx *gorm.DB, manufacturerID *uuid.UUID) ([]ReferenceDTO, error)
	get(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*ReferenceDTO, error)
	create(ctx context.Context, tx *gorm.DB, input ReferenceInput) (*ReferenceDTO, error)
	rename(ctx context.Context, tx *gorm.DB, id uuid.UUID, name string) (bool, error)
	remove(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)
}

type namedStore[T any] struct {
	repo  *repo.Named[T]
	toDTO func(*T) ReferenceDTO
	build func(ReferenceInput) *T
}

func (s namedStore[T]) list(ctx context.Context, tx *gorm.DB, manufacturerID *uuid.UUID) ([]ReferenceDTO, error) {
	var scopes []func(*gorm.DB) *gorm.DB
	if manufacturerID != nil {
		scopes = append(scopes, byManufacturer(*manufacturerID))
	}
	rows, err := s.repo.WithTx(tx).List(ctx, scopes...)
	if err != nil {
		return nil, err
	}
	out := make([]ReferenceDTO, 0, len(rows))
	for i := range rows {
		out = append(out, s.toDTO(&rows[i]))
	}
	return out, nil
}

func (s namedStore[T]) get(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*ReferenceDTO, error) {
	row, err := s.repo.WithTx(tx).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := s.toDTO(row)
	return &dto, nil
}

func (s namedStore[T]) create(ctx context.Context, tx *gorm.DB, input ReferenceInput) (*ReferenceDTO, error) {
	row := s.build(input)
	if err := s.repo.WithTx(tx).Create(ctx, row); err != nil {
		return nil, err
	}
	dto := s.toDTO(row)
	return &dto, nil
}

func (s namedStore[T]) rename(ctx context.Context, tx *gorm.DB, id uuid.UUID, name string) (bool, error) {
	return s.repo.WithTx(tx).Rename(ctx, id, name)
}

func (s namedStore[T]) remove(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error) {
	return s.repo.WithTx(tx).Delete(ctx, id)
}

func byManufacturer(id uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		return q.Where("manufacturer_id = ?", id)
	}
}

func newRefStores(conn *gorm.DB) map[Kind]refStore {
	return map[Kind]refStore{
		KindManufacturer: namedStore[models.Manufacturer]{
			repo:  repo.NewNamed[models.Manufacturer](conn),
			toDTO: func(m *models.Manufacturer) ReferenceDTO { return ReferenceDTO{ID: m.ID, Name: m.Name} },
			build: func(in ReferenceInput) *models.Manufacturer { return &models.Manufacturer{Name: in.Name} },
		},
		KindEngine: namedStore[models.Engine]{
			repo: repo.NewNamed[models.Engine](conn),
			toDTO: func(e *models.Engine) ReferenceDTO {
				manufacturerID := e.ManufacturerID
				return ReferenceDTO{ID: e.ID, Name: e.Name, ManufacturerID: &manufacturerID}
			},
			build: func(in ReferenceInput) *models.Engine {
				return &models.Engine{Name: in.Name, ManufacturerID: *in.ManufacturerID}
			},
		},
		KindCategory: namedStore[models.Category]{
			repo:  repo.NewNamed[models.Category](conn),
			toDTO: func(c *models.Category) ReferenceDTO { return ReferenceDTO{ID: c.ID, Name: c.Name} },
			build: func(in ReferenceInput) *models.Category { return &models.Category{Name: in.Name} },
		},
		KindSupplier: namedStore[models.Supplier]{
			repo:  repo.NewNamed[models.Supplier](conn),
			toDTO: func(s *models.Supplier) ReferenceDTO { return ReferenceDTO{ID: s.ID, Name: s.Name} },
			build: func(in ReferenceInput) *models.Supplier { return &models.Supplier{Name: in.Name} },
		},
	}
}

func (s *service) store(kind Kind) (refStore, error) {
	store, ok := s.refs[kind]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown catalog entity").
			WithDetails(map[string]any{"entity": string(kind)})
	}
	return store, nil
}

func (s *service) ListReferences(ctx context.Context, kind Kind, manufacturerID *uuid.UUID) ([]ReferenceDTO, error) {
	store, err := s.store(kind)
	if err != nil {
		return nil, err
	}
	if kind != KindEngine {
		manufacturerID = nil
	}
	rows, err := store.list(ctx, s.dbClient.DB(), manufacturerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list "+string(kind))
	}
	return rows, nil
}

func (s *service) CreateReference(ctx context.Context, kind Kind, input ReferenceInput) (*ReferenceDTO, error) {
	store, err := s.store(kind)
	if err != nil {
		return nil, err
	}
	input.Name = strings.TrimSpace(input.Name)
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	var created *ReferenceDTO
	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		if kind == KindEngine {
			if input.ManufacturerID == nil {
				return pkgerrors.New(pkgerrors.CodeValidation, "manufacturer_id is required for engines")
			}
			if _, err := s.refs[KindManufacturer].get(ctx, tx, *input.ManufacturerID); err != nil {
				return notFoundOr(err, "manufacturer not found", "db: load manufacturer")
			}
		}
		dto, err := store.create(ctx, tx, input)
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "name already exists").
					WithDetails(map[string]any{"entity": string(kind), "name": input.Name})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: create "+string(kind))
		}
		created = dto
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) RenameReference(ctx context.Context, kind Kind, id uuid.UUID, name string) (*ReferenceDTO, error) {
	store, err := s.store(kind)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if err := validateStruct(ReferenceInput{Name: name}); err != nil {
		return nil, err
	}

	var renamed *ReferenceDTO
	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := store.rename(ctx, tx, id, name)
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "name already exists").
					WithDetails(map[string]any{"entity": string(kind), "name": name})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: rename "+string(kind))
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, string(kind)+" not found")
		}
		renamed, err = store.get(ctx, tx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: reload "+string(kind))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return renamed, nil
}

// DeleteReference refuses to delete rows other records still point at.
func (s *service) DeleteReference(ctx context.Context, kind Kind, id uuid.UUID) error {
	store, err := s.store(kind)
	if err != nil {
		return err
	}
	return s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		for _, dep := range dependentsByKind[kind] {
			var count int64
			if err := tx.WithContext(ctx).Table(dep.table).Where(dep.column+" = ?", id).Count(&count).Error; err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: count "+dep.table)
			}
			if count > 0 {
				return referentialConflict(kind, id, dep.constraint)
			}
		}
		ok, err := store.remove(ctx, tx, id)
		if err != nil {
			if db.IsForeignKeyViolation(err) {
				return referentialConflict(kind, id, constraintFromError(err))
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete "+string(kind))
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, string(kind)+" not found")
		}
		return nil
	})
}

func referentialConflict(kind Kind, id uuid.UUID, constraint string) error {
	return pkgerrors.New(pkgerrors.CodeReferentialConflict, "Cannot delete: this item is used by other records").
		WithDetails(map[string]any{
			"entity":     string(kind),
			"id":         id,
			"constraint": constraint,
		})
}

func constraintFromError(err error) string {
	if typed := db.ConstraintName(err); typed != "" {
		return typed
	}
	return "foreign_key"
}

func notFoundOr(err error, notFound, op string) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}

// Hierarchy returns every reference list ordered by name.
func (s *service) Hierarchy(ctx context.Context) (*HierarchyDTO, error) {
	out := &HierarchyDTO{}
	targets := []struct {
		kind Kind
		dest *[]ReferenceDTO
	}{
		{KindManufacturer, &out.Manufacturers},
		{KindEngine, &out.Engines},
		{KindCategory, &out.Categories},
		{KindSupplier, &out.Suppliers},
	}
	for _, target := range targets {
		rows, err := s.ListReferences(ctx, target.kind, nil)
		if err != nil {
			return nil, err
		}
		*target.dest = rows
	}
	return out, nil
}
