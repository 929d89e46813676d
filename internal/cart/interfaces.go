package cart

import (
	"context"
	"time"

	"github.com/angelmondragon/partsdesk-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	LoadVariant(ctx context.Context, variantID uuid.UUID) (*models.Variant, error)
	EnsureEntry(ctx context.Context, entry *models.CartEntry) error
	FindEntry(ctx context.Context, shopperID string, variantID uuid.UUID) (*models.CartEntry, error)
	AdjustQuantity(ctx context.Context, entryID uuid.UUID, delta int, at time.Time) error
	DeleteEntry(ctx context.Context, entryID uuid.UUID) error
	ListEntries(ctx context.Context, shopperID string) ([]models.CartEntry, error)
	ListLines(ctx context.Context, shopperID string) ([]entryLine, error)
	ListAllEntries(ctx context.Context) ([]models.CartEntry, error)
}
