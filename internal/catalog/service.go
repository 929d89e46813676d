package catalog

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/angelmondragon/partsdesk-backend/internal/ledger"
	"github.com/angelmondragon/partsdesk-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/partsdesk-backend/pkg/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	defaultSearchLimit = 100
	maxSearchLimit     = 500
)

// Service is the catalog store: reference data, products and variants.
type Service interface {
	ListReferences(ctx context.Context, kind Kind, manufacturerID *uuid.UUID) ([]ReferenceDTO, error)
	CreateReference(ctx context.Context, kind Kind, input ReferenceInput) (*ReferenceDTO, error)
	RenameReference(ctx context.Context, kind Kind, id uuid.UUID, name string) (*ReferenceDTO, error)
	DeleteReference(ctx context.Context, kind Kind, id uuid.UUID) error
	Hierarchy(ctx context.Context) (*HierarchyDTO, error)

	CreateProduct(ctx context.Context, input ProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input ProductUpdate) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	SearchProducts(ctx context.Context, filter SearchFilter) ([]ProductSummaryDTO, error)

	ListVariants(ctx context.Context, productID uuid.UUID) ([]VariantDTO, error)
	GetVariant(ctx context.Context, id uuid.UUID) (*VariantDTO, error)
	CreateVariant(ctx context.Context, productID uuid.UUID, input VariantInput) (*VariantDTO, error)
	UpdateVariant(ctx context.Context, id uuid.UUID, input VariantUpdate) (*VariantDTO, error)
	DeleteVariant(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo     *Repository
	refs     map[Kind]refStore
	dbClient *db.Client
	ledger   ledger.Service
}

// NewService constructs the catalog service.
func NewService(repo *Repository, dbClient *db.Client, ledgerSvc ledger.Service) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &service{
		repo:     repo,
		refs:     newRefStores(dbClient.DB()),
		dbClient: dbClient,
		ledger:   ledgerSvc,
	}, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	if errs, ok := err.(validator.ValidationErrors); ok {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = fieldErr.Tag()
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}
