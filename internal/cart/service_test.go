package cart

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/angelmondragon/partsdesk-backend/internal/ledger"
	"github.com/angelmondragon/partsdesk-backend/internal/maintenance"
	"github.com/angelmondragon/partsdesk-backend/internal/sales"
	"github.com/angelmondragon/partsdesk-backend/pkg/db"
	"github.com/angelmondragon/partsdesk-backend/pkg/db/dbtest"
	"github.com/angelmondragon/partsdesk-backend/pkg/db/models"
	"github.com/angelmondragon/partsdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsdesk-backend/pkg/errors"
	"github.com/angelmondragon/partsdesk-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc    Service
	ledger ledger.Service
	client *db.Client
	clock  *clock
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.Open(t)
	clk := &clock{t: time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)}
	window := maintenance.NewWindow()

	led, err := ledger.NewService(ledger.ServiceParams{DB: client, Repo: ledger.NewRepository(client.DB()), Now: clk.Now})
	require.NoError(t, err)
	salesSvc, err := sales.NewService(sales.ServiceParams{
		DB:     client,
		Repo:   sales.NewRepository(client.DB()),
		Ledger: led,
		Window: window,
		Now:    clk.Now,
	})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		DB:     client,
		Repo:   NewRepository(client.DB()),
		Ledger: led,
		Sales:  salesSvc,
		Window: window,
		Logger: logger.New(logger.Options{ServiceName: "cart-test", Level: zerolog.Disabled, Output: io.Discard}),
		Now:    clk.Now,
	})
	require.NoError(t, err)
	return fixture{svc: svc, ledger: led, client: client, clock: clk}
}

func available(t *testing.T, f fixture, variantID uuid.UUID) int {
	t.Helper()
	avail, err := f.ledger.Availability(context.Background(), variantID)
	require.NoError(t, err)
	return avail.Available
}

func intPtr(v int) *int { return &v }

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestAddToCartCapturesPriceAndReserves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	variant := dbtest.SeedVariant(t, f.client, dbtest.VariantSeed{Name: "Spark plug", Supplier: "NGK", Price: "4.50", Stock: 10, SKU: "SP-1"})

	cart, err := f.svc.AddToCart(ctx, "shopper-1", variant.ID, 3)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	line := cart.Items[0]
	assert.Equal(t, "Spark plug", line.ProductName)
	assert.Equal(t, "NGK", line.SupplierName)
	assert.Equal(t, "SP-1", line.SKU)
	assert.Equal(t, 3, line.Quantity)
	assert.True(t, decimal.RequireFromString("13.5").Equal(line.Subtotal), "got %s", line.Subtotal)
	assert.Equal(t, 3, cart.ItemCount)

	f.clock.advance(time.Minute)
	cart, err = f.svc.AddToCart(ctx, "shopper-1", variant.ID, 2)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.True(t, decimal.RequireFromString("22.5").Equal(cart.Total))

	reloaded := dbtest.ReloadVariant(t, f.client, variant.ID)
	assert.Equal(t, 10, reloaded.StockQuantity)
	assert.Equal(t, 5, reloaded.ReservedQuantity)
	assert.Equal(t, 5, available(t, f, variant.ID))
}

func TestAddToCartRejectsOversell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	variant := dbtest.SeedVariant(t, f.client, dbtest.VariantSeed{Stock: 4})

	_, err := f.svc.AddToCart(ctx, "a", variant.ID, 3)
	require.NoError(t, err)

	_, err = f.svc.AddToCart(ctx, "b", variant.ID, 2)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInsufficientStock))

	cart, err := f.svc.GetCart(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, cart.Items, "failed reservation must not leave an entry")
	assert.Equal(t, 1, available(t, f, variant.ID))
}

func TestAddToCartValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddToCart(ctx, "a", uuid.New(), 1)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	_, err = f.svc.AddToCart(ctx, "a", uuid.New(), 0)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = f.svc.AddToCart(ctx, " ", uuid.New(), 1)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestClearCartRestoresAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	variant := dbtest.SeedVariant(t, f.client, dbtest.VariantSeed{Stock: 10})
	before := available(t, f, variant.ID)

	_, err := f.svc.AddToCart(ctx, "s", variant.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, before-4, available(t, f, variant.ID))

	require.NoError(t, f.svc.ClearCart(ctx, "s"))
	assert.Equal(t, before, available(t, f, variant.ID))

	cart, err := f.svc.GetCart(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestRemoveFromCartPartialReleasesExactQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	variant := dbtest.SeedVariant(t, f.client, dbtest.VariantSeed{Stock: 10})

	_, err := f.svc.AddToCart(ctx, "s", variant.ID, 3)
	require.NoError(t, err)
	f.clock.advance(time.Second)
	_, err = f.svc.AddToCart(ctx, "s", variant.ID, 2)
	require.NoError(t, err)

	cart, err := f.svc.RemoveFromCart(ctx, "s", variant.ID, intPtr(3))
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, 2, dbtest.ReloadVariant(t, f.client, variant.ID).ReservedQuantity)

	cart, err = f.svc.RemoveFromCart(ctx, "s", variant.ID, intPtr(9))
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Equal(t, 0, dbtest.ReloadVariant(t, f.client, variant.ID).ReservedQuantity)
}

func TestRemoveFromCartWithoutQuantityRemovesEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	variant := dbtest.SeedVariant(t, f.client, dbtest.VariantSeed{Stock: 10})

	_, err := f.svc.AddToCart(ctx, "s", variant.ID, 6)
	require.NoError(t, err)

	cart, err := f.svc.RemoveFromCart(ctx, "s", variant.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Equal(t, 10, available(t, f, variant.ID))

	// unknown entry is a no-op
	cart, err = f.svc.RemoveFromCart(ctx, "s", variant.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestCheckoutSettlesAndEmptiesCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := dbtest.SeedVariant(t, f.client, dbtest.VariantSeed{Price: "2.00", Stock: 5})
	b := dbtest.SeedVariant(t, f.client, dbtest.VariantSeed{Price: "7.25", Stock: 5})

	_, err := f.svc.AddToCart(ctx, "s", a.ID, 2)
	require.NoError(t, err)
	_, err = f.svc.AddToCart(ctx, "s", b.ID, 1)
	require.NoError(t, err)

	// a price change after add-to-cart does not affect the sale
	require.NoError(t, f.client.DB().Model(&models.Variant{}).Where("id = ?", a.ID).
		Update("price", decimal.RequireFromString("3.00")).Error)

	res, err := f.svc.Checkout(ctx, "s", sales.Meta{PaymentMethod: enums.PaymentMethodCard})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("11.25").Equal(res.Total), "got %s", res.Total)

	ra := dbtest.ReloadVariant(t, f.client, a.ID)
	assert.Equal(t, 3, ra.StockQuantity)
	assert.Equal(t, 0, ra.ReservedQuantity)
	rb := dbtest.ReloadVariant(t, f.client, b.ID)
	assert.Equal(t, 4, rb.StockQuantity)

	cart, err := f.svc.GetCart(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	var sale models.Sale
	require.NoError(t, f.client.DB().Where("id = ?", res.SaleID).First(&sale).Error)
	require.NotNil(t, sale.CustomerID)
	assert.Equal(t, "s", *sale.CustomerID)
}

func TestCheckoutRecordsEveryCommittedUnit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	variant := dbtest.SeedVariant(t, f.client, dbtest.VariantSeed{Price: "5.00", Stock: 10})

	_, err := f.svc.AddToCart(ctx, "s", variant.ID, 2)
	require.NoError(t, err)

	// a reservation linked to the entry after its quantity was read, as left
	// by an add-to-cart racing the checkout
	var entry models.CartEntry
	require.NoError(t, f.client.DB().Where("shopper_id = ? AND variant_id = ?", "s", variant.ID).First(&entry).Error)
	_, err = f.ledger.TryReserve(ctx, variant.ID, 1, ledger.ForCartEntry(entry.ID))
	require.NoError(t, err)

	res, err := f.svc.Checkout(ctx, "s", sales.Meta{})
	require.NoError(t, err)

	reloaded := dbtest.ReloadVariant(t, f.client, variant.ID)
	assert.Equal(t, 7, reloaded.StockQuantity)
	assert.Equal(t, 0, reloaded.ReservedQuantity)

	var items []models.SaleItem
	require.NoError(t, f.client.DB().Where("sale_id = ?", res.SaleID).Find(&items).Error)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity, "sold units match committed units")
	assert.True(t, decimal.RequireFromString("15.00").Equal(res.Total), "got %s", res.Total)
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Checkout(context.Background(), "nobody", sales.Meta{})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeEmptyCart))

	var count int64
	require.NoError(t, f.client.DB().Model(&models.Sale{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestActiveCartsAndSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	variant := dbtest.SeedVariant(t, f.client, dbtest.VariantSeed{Stock: 20})
	other := dbtest.SeedVariant(t, f.client, dbtest.VariantSeed{Stock: 20})

	_, err := f.svc.AddToCart(ctx, "stale", variant.ID, 2)
	require.NoError(t, err)
	_, err = f.svc.AddToCart(ctx, "stale", other.ID, 1)
	require.NoError(t, err)

	f.clock.advance(2 * time.Hour)
	_, err = f.svc.AddToCart(ctx, "fresh", variant.ID, 5)
	require.NoError(t, err)

	carts, err := f.svc.ActiveCarts(ctx)
	require.NoError(t, err)
	require.Len(t, carts, 2)
	assert.Equal(t, "fresh", carts[0].ShopperID)
	assert.Equal(t, "stale", carts[1].ShopperID)
	assert.Equal(t, 2, carts[1].Entries)
	assert.Equal(t, 3, carts[1].TotalItems)

	swept, err := f.svc.SweepAbandoned(ctx, f.clock.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	carts, err = f.svc.ActiveCarts(ctx)
	require.NoError(t, err)
	require.Len(t, carts, 1)
	assert.Equal(t, "fresh", carts[0].ShopperID)
	assert.Equal(t, 15, available(t, f, variant.ID))
	assert.Equal(t, 20, available(t, f, other.ID))
}

func TestSweepSkipsCartTouchedAfterScan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	variant := dbtest.SeedVariant(t, f.client, dbtest.VariantSeed{Stock: 10})

	_, err := f.svc.AddToCart(ctx, "s", variant.ID, 2)
	require.NoError(t, err)
	cutoff := f.clock.Now().Add(time.Minute)

	// the shopper adds again between the sweep's scan and its release
	f.clock.advance(2 * time.Minute)
	_, err = f.svc.AddToCart(ctx, "s", variant.ID, 1)
	require.NoError(t, err)

	released, err := f.svc.(*service).forceRelease(ctx, "s", "cart-sweeper", cutoff)
	require.NoError(t, err)
	assert.False(t, released)
	assert.Equal(t, 7, available(t, f, variant.ID))

	released, err = f.svc.(*service).forceRelease(ctx, "s", "cart-sweeper", f.clock.Now().Add(time.Second))
	require.NoError(t, err)
	assert.True(t, released)
	assert.Equal(t, 10, available(t, f, variant.ID))
}

func TestForceReleaseRestoresAvailabilityImmediately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	variant := dbtest.SeedVariant(t, f.client, dbtest.VariantSeed{Stock: 3})

	_, err := f.svc.AddToCart(ctx, "s", variant.ID, 3)
	require.NoError(t, err)
	assert.Zero(t, available(t, f, variant.ID))

	require.NoError(t, f.svc.ForceRelease(ctx, "s", "admin-1"))
	assert.Equal(t, 3, available(t, f, variant.ID))
}
