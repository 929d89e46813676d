package ledger

import (
	"context"
	"testing"

	"github.com/angelmondragon/partsdesk-backend/pkg/db/dbtest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryAddReservedStopsAtAvailability(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()
	variant := dbtest.SeedVariant(t, client, dbtest.VariantSeed{Stock: 3})

	ok, err := repo.AddReserved(ctx, variant.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.AddReserved(ctx, variant.ID, 2)
	require.NoError(t, err)
	assert.False(t, ok, "only one unit is left")

	ok, err = repo.AddReserved(ctx, variant.ID, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.AddReserved(ctx, variant.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	reloaded := dbtest.ReloadVariant(t, client, variant.ID)
	assert.Equal(t, 3, reloaded.StockQuantity)
	assert.Equal(t, 3, reloaded.ReservedQuantity)

	ok, err = repo.AddReserved(ctx, uuid.New(), 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepositoryStockGuards(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()
	variant := dbtest.SeedVariant(t, client, dbtest.VariantSeed{Stock: 4})

	ok, err := repo.DecrementStock(ctx, variant.ID, 5)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.AddReserved(ctx, variant.ID, 2)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.SetStock(ctx, variant.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok, "stock cannot drop below reserved")

	ok, err = repo.SubtractReserved(ctx, variant.ID, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.DecrementStock(ctx, variant.ID, 3)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.ConsumeReserved(ctx, variant.ID, 2)
	require.NoError(t, err)
	assert.False(t, ok, "a direct decrement took the reserved units")

	reloaded := dbtest.ReloadVariant(t, client, variant.ID)
	assert.Equal(t, 1, reloaded.StockQuantity)
	assert.Equal(t, 2, reloaded.ReservedQuantity)
}
