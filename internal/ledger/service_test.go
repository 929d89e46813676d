package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/angelmondragon/partsdesk-backend/pkg/db"
	"github.com/angelmondragon/partsdesk-backend/pkg/db/dbtest"
	"github.com/angelmondragon/partsdesk-backend/pkg/db/models"
	"github.com/angelmondragon/partsdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsdesk-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestLedger(t *testing.T) (Service, *db.Client) {
	t.Helper()
	client := dbtest.Open(t)
	svc, err := NewService(ServiceParams{DB: client, Repo: NewRepository(client.DB())})
	require.NoError(t, err)
	return svc, client
}

func availability(t *testing.T, svc Service, id uuid.UUID) int {
	t.Helper()
	avail, err := svc.Availability(context.Background(), id)
	require.NoError(t, err)
	return avail.Available
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)

	client := dbtest.Open(t)
	_, err = NewService(ServiceParams{DB: client})
	require.Error(t, err)
}

// dbtest runs on a single connection, so the goroutines below interleave at
// statement boundaries only. The row guard itself is exercised directly in
// TestRepositoryAddReservedStopsAtAvailability.
func TestTryReserveNoOversell(t *testing.T) {
	svc, client := newTestLedger(t)
	const stock = 5
	variant := dbtest.SeedVariant(t, client, dbtest.VariantSeed{Stock: stock})

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		shortages int
		others    []error
	)
	for i := 0; i < stock+1; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.TryReserve(context.Background(), variant.ID, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case pkgerrors.Is(err, pkgerrors.CodeInsufficientStock):
				shortages++
			default:
				others = append(others, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, others)
	assert.Equal(t, stock, successes)
	assert.Equal(t, 1, shortages)

	reloaded := dbtest.ReloadVariant(t, client, variant.ID)
	assert.Equal(t, stock, reloaded.StockQuantity, "reservations never touch stock")
	assert.Equal(t, stock, reloaded.ReservedQuantity)
	assert.Equal(t, 0, reloaded.Available())
}

func TestReserveReleaseRoundTrip(t *testing.T) {
	svc, client := newTestLedger(t)
	variant := dbtest.SeedVariant(t, client, dbtest.VariantSeed{Stock: 8})
	ctx := context.Background()

	before := availability(t, svc, variant.ID)
	reservation, err := svc.TryReserve(ctx, variant.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, before-5, availability(t, svc, variant.ID))

	require.NoError(t, svc.Release(ctx, reservation.ID))
	assert.Equal(t, before, availability(t, svc, variant.ID))

	// second release is a no-op
	require.NoError(t, svc.Release(ctx, reservation.ID))
	assert.Equal(t, before, availability(t, svc, variant.ID))

	// unknown handles are a no-op too
	require.NoError(t, svc.Release(ctx, uuid.New()))
}

func TestTryReserveFailureDoesNotMutate(t *testing.T) {
	svc, client := newTestLedger(t)
	variant := dbtest.SeedVariant(t, client, dbtest.VariantSeed{Stock: 2})
	ctx := context.Background()

	_, err := svc.TryReserve(ctx, variant.ID, 3)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 2, details["available"])

	reloaded := dbtest.ReloadVariant(t, client, variant.ID)
	assert.Equal(t, 0, reloaded.ReservedQuantity)

	var count int64
	require.NoError(t, client.DB().Model(&models.StockReservation{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestTryReserveValidation(t *testing.T) {
	svc, client := newTestLedger(t)
	variant := dbtest.SeedVariant(t, client, dbtest.VariantSeed{Stock: 2})

	_, err := svc.TryReserve(context.Background(), variant.ID, 0)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.TryReserve(context.Background(), uuid.New(), 1)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestCommitDecrementsOnce(t *testing.T) {
	svc, client := newTestLedger(t)
	variant := dbtest.SeedVariant(t, client, dbtest.VariantSeed{Stock: 10})
	ctx := context.Background()

	reservation, err := svc.TryReserve(ctx, variant.ID, 3)
	require.NoError(t, err)

	committed, err := svc.Commit(ctx, reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ReservationStatusCommitted, committed.Status)

	reloaded := dbtest.ReloadVariant(t, client, variant.ID)
	assert.Equal(t, 7, reloaded.StockQuantity)
	assert.Equal(t, 0, reloaded.ReservedQuantity)

	_, err = svc.Commit(ctx, reservation.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStaleReservation))

	reloaded = dbtest.ReloadVariant(t, client, variant.ID)
	assert.Equal(t, 7, reloaded.StockQuantity)

	// releasing a committed handle changes nothing
	require.NoError(t, svc.Release(ctx, reservation.ID))
	reloaded = dbtest.ReloadVariant(t, client, variant.ID)
	assert.Equal(t, 7, reloaded.StockQuantity)
	assert.Equal(t, 0, reloaded.ReservedQuantity)
}

func TestCommitAfterReleaseIsStale(t *testing.T) {
	svc, client := newTestLedger(t)
	variant := dbtest.SeedVariant(t, client, dbtest.VariantSeed{Stock: 4})
	ctx := context.Background()

	reservation, err := svc.TryReserve(ctx, variant.ID, 2)
	require.NoError(t, err)
	require.NoError(t, svc.Release(ctx, reservation.ID))

	_, err = svc.Commit(ctx, reservation.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStaleReservation))
	assert.Equal(t, 4, dbtest.ReloadVariant(t, client, variant.ID).StockQuantity)
}

func TestCommitAfterDirectDecrementRaceRollsBack(t *testing.T) {
	svc, client := newTestLedger(t)
	variant := dbtest.SeedVariant(t, client, dbtest.VariantSeed{Stock: 3})
	ctx := context.Background()

	reservation, err := svc.TryReserve(ctx, variant.ID, 2)
	require.NoError(t, err)
	// walk-up sale ignores reservations
	require.NoError(t, svc.DirectDecrement(ctx, variant.ID, 3))

	_, err = svc.Commit(ctx, reservation.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficientStock))

	reloaded := dbtest.ReloadVariant(t, client, variant.ID)
	assert.Equal(t, 0, reloaded.StockQuantity)
	assert.Equal(t, 2, reloaded.ReservedQuantity)

	var stored models.StockReservation
	require.NoError(t, client.DB().Where("id = ?", reservation.ID).First(&stored).Error)
	assert.Equal(t, enums.ReservationStatusActive, stored.Status, "failed commit must not resolve the handle")
}

func TestDirectDecrement(t *testing.T) {
	svc, client := newTestLedger(t)
	variant := dbtest.SeedVariant(t, client, dbtest.VariantSeed{Stock: 10})
	ctx := context.Background()

	require.NoError(t, svc.DirectDecrement(ctx, variant.ID, 2))
	assert.Equal(t, 8, dbtest.ReloadVariant(t, client, variant.ID).StockQuantity)

	err := svc.DirectDecrement(ctx, variant.ID, 9)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficientStock))
	assert.Equal(t, 8, dbtest.ReloadVariant(t, client, variant.ID).StockQuantity)

	err = svc.DirectDecrement(ctx, uuid.New(), 1)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestReducePartiallyReleases(t *testing.T) {
	svc, client := newTestLedger(t)
	variant := dbtest.SeedVariant(t, client, dbtest.VariantSeed{Stock: 10})
	ctx := context.Background()

	reservation, err := svc.TryReserve(ctx, variant.ID, 6)
	require.NoError(t, err)

	require.NoError(t, svc.Reduce(ctx, reservation.ID, 2))
	reloaded := dbtest.ReloadVariant(t, client, variant.ID)
	assert.Equal(t, 4, reloaded.ReservedQuantity)

	// reducing by more than held releases the remainder
	require.NoError(t, svc.Reduce(ctx, reservation.ID, 10))
	reloaded = dbtest.ReloadVariant(t, client, variant.ID)
	assert.Equal(t, 0, reloaded.ReservedQuantity)

	err = svc.Reduce(ctx, reservation.ID, 1)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStaleReservation))
}

func TestSetStockRespectsReservations(t *testing.T) {
	svc, client := newTestLedger(t)
	variant := dbtest.SeedVariant(t, client, dbtest.VariantSeed{Stock: 10})
	ctx := context.Background()

	_, err := svc.TryReserve(ctx, variant.ID, 4)
	require.NoError(t, err)

	err = svc.SetStock(ctx, variant.ID, 3)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficientStock))

	require.NoError(t, svc.SetStock(ctx, variant.ID, 4))
	assert.Equal(t, 0, availability(t, svc, variant.ID))

	err = svc.SetStock(ctx, variant.ID, -1)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestWithTxRollsBackLedgerWrites(t *testing.T) {
	svc, client := newTestLedger(t)
	variant := dbtest.SeedVariant(t, client, dbtest.VariantSeed{Stock: 5})
	ctx := context.Background()

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := svc.WithTx(tx).TryReserve(ctx, variant.ID, 5); err != nil {
			return err
		}
		return pkgerrors.New(pkgerrors.CodeInternal, "abort")
	})
	require.Error(t, err)
	assert.Equal(t, 5, availability(t, svc, variant.ID))
}

func TestMovementsAreRecorded(t *testing.T) {
	svc, client := newTestLedger(t)
	variant := dbtest.SeedVariant(t, client, dbtest.VariantSeed{Stock: 10})
	ctx := context.Background()

	reservation, err := svc.TryReserve(ctx, variant.ID, 2)
	require.NoError(t, err)
	_, err = svc.Commit(ctx, reservation.ID)
	require.NoError(t, err)
	require.NoError(t, svc.DirectDecrement(ctx, variant.ID, 1))

	movements, err := svc.Movements(ctx, variant.ID, 0)
	require.NoError(t, err)
	require.Len(t, movements, 3)

	kinds := map[enums.MovementType]int{}
	for _, movement := range movements {
		kinds[movement.Type] += movement.Quantity
	}
	assert.Equal(t, 2, kinds[enums.MovementTypeReserve])
	assert.Equal(t, 2, kinds[enums.MovementTypeCommit])
	assert.Equal(t, 1, kinds[enums.MovementTypeDirectDecrement])
}

func TestStockNeverNegative(t *testing.T) {
	svc, client := newTestLedger(t)
	variant := dbtest.SeedVariant(t, client, dbtest.VariantSeed{Stock: 3})
	ctx := context.Background()

	ops := []func() error{
		func() error { return svc.DirectDecrement(ctx, variant.ID, 2) },
		func() error { _, err := svc.TryReserve(ctx, variant.ID, 2); return err },
		func() error { return svc.DirectDecrement(ctx, variant.ID, 2) },
		func() error { return svc.DirectDecrement(ctx, variant.ID, 1) },
		func() error { return svc.DirectDecrement(ctx, variant.ID, 1) },
	}
	for _, op := range ops {
		_ = op()
		reloaded := dbtest.ReloadVariant(t, client, variant.ID)
		require.GreaterOrEqual(t, reloaded.StockQuantity, 0)
		require.GreaterOrEqual(t, reloaded.Available(), 0)
	}
}
