package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Named is the CRUD surface shared by catalog reference entities. T must be a
// gorm model with uuid "id" and text "name" columns.
type Named[T any] struct {
	Base
}

// NewNamed constructs a typed repository for T.
func NewNamed[T any](db *gorm.DB) *Named[T] {
	return &Named[T]{Base: NewBase(db)}
}

// WithTx rebinds the repository to tx.
func (r *Named[T]) WithTx(tx *gorm.DB) *Named[T] {
	if tx == nil {
		return r
	}
	return NewNamed[T](tx)
}

// List returns every row ordered by name. Scopes narrow the query.
func (r *Named[T]) List(ctx context.Context, scopes ...func(*gorm.DB) *gorm.DB) ([]T, error) {
	var rows []T
	err := r.DB(ctx).Scopes(scopes...).Order("name ASC").Find(&rows).Error
	return rows, err
}

func (r *Named[T]) Get(ctx context.Context, id uuid.UUID) (*T, error) {
	var row T
	if err := r.DB(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByName matches the exact name. Scopes narrow the lookup (engines are
// unique per manufacturer).
func (r *Named[T]) FindByName(ctx context.Context, name string, scopes ...func(*gorm.DB) *gorm.DB) (*T, error) {
	var row T
	if err := r.DB(ctx).Scopes(scopes...).Where("name = ?", name).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Named[T]) Create(ctx context.Context, row *T) error {
	return r.DB(ctx).Create(row).Error
}

// Rename reports false when no row has the id.
func (r *Named[T]) Rename(ctx context.Context, id uuid.UUID, name string) (bool, error) {
	res := r.DB(ctx).Model(new(T)).Where("id = ?", id).UpdateColumn("name", name)
	return res.RowsAffected == 1, res.Error
}

// Delete reports false when no row has the id.
func (r *Named[T]) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.DB(ctx).Where("id = ?", id).Delete(new(T))
	return res.RowsAffected == 1, res.Error
}

// Count returns the number of rows matching the scopes.
func (r *Named[T]) Count(ctx context.Context, scopes ...func(*gorm.DB) *gorm.DB) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(new(T)).Scopes(scopes...).Count(&count).Error
	return count, err
}
