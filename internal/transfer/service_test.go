package transfer

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/angelmondragon/partsdesk-backend/internal/ledger"
	"github.com/angelmondragon/partsdesk-backend/internal/maintenance"
	"github.com/angelmondragon/partsdesk-backend/pkg/db"
	"github.com/angelmondragon/partsdesk-backend/pkg/db/dbtest"
	"github.com/angelmondragon/partsdesk-backend/pkg/db/models"
	"github.com/angelmondragon/partsdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsdesk-backend/pkg/errors"
	"github.com/angelmondragon/partsdesk-backend/pkg/logger"
	"github.com/angelmondragon/partsdesk-backend/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc      Service
	client   *db.Client
	guard    *maintenance.ImportGuard
	registry *prometheus.Registry
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.Open(t)
	led, err := ledger.NewService(ledger.ServiceParams{DB: client, Repo: ledger.NewRepository(client.DB())})
	require.NoError(t, err)
	guard := maintenance.NewImportGuard(nil)
	registry := prometheus.NewRegistry()
	svc, err := NewService(ServiceParams{
		DB:      client,
		Repo:    NewRepository(client.DB()),
		Ledger:  led,
		Guard:   guard,
		Window:  maintenance.NewWindow(),
		Metrics: metrics.NewImportMetrics(registry),
		Logger:  logger.New(logger.Options{ServiceName: "transfer-test", Level: zerolog.Disabled, Output: io.Discard}),
	})
	require.NoError(t, err)
	return fixture{svc: svc, client: client, guard: guard, registry: registry}
}

func count(t *testing.T, client *db.Client, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, client.DB().Model(model).Count(&n).Error)
	return n
}

func onlyVariant(t *testing.T, client *db.Client) models.Variant {
	t.Helper()
	var variants []models.Variant
	require.NoError(t, client.DB().Find(&variants).Error)
	require.Len(t, variants, 1)
	return variants[0]
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestImportReplacesWithoutDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Import(ctx, strings.NewReader("partNumber,supplier,price,qty\nP1,S1,10,5\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.Empty(t, res.Errors)
	assert.NoError(t, res.Err())

	assert.EqualValues(t, 1, count(t, f.client, &models.Product{}))
	assert.EqualValues(t, 1, count(t, f.client, &models.Supplier{}))
	variant := onlyVariant(t, f.client)
	assert.Equal(t, 5, variant.StockQuantity)
	assert.True(t, decimal.NewFromInt(10).Equal(variant.Price))

	res, err = f.svc.Import(ctx, strings.NewReader("partNumber,supplier,price,qty\nP1,S1,12.5,7\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)

	assert.EqualValues(t, 1, count(t, f.client, &models.Product{}))
	assert.EqualValues(t, 1, count(t, f.client, &models.Supplier{}))
	variant = onlyVariant(t, f.client)
	assert.Equal(t, 7, variant.StockQuantity)
	assert.True(t, decimal.RequireFromString("12.5").Equal(variant.Price))

	var movements []models.StockMovement
	require.NoError(t, f.client.DB().Where("variant_id = ?", variant.ID).Find(&movements).Error)
	require.Len(t, movements, 1)
	assert.Equal(t, enums.MovementTypeStockSet, movements[0].Type)
}

func TestImportSkipsBadRows(t *testing.T) {
	f := newFixture(t)
	csv := "PartNumber,Supplier,Price,Stock\n" +
		"P1,S1,1.00,1\n" +
		"P2,,2.00,2\n" +
		",S1,3.00,3\n" +
		"P4,S1,abc,4\n" +
		"P5,S1,5.00,-1\n" +
		"\n" +
		"p6 , s2 ,6,6\n"

	res, err := f.svc.Import(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)
	assert.Equal(t, []string{
		"Line 3: missing supplier",
		"Line 4: missing part number",
		`Line 5: invalid price "abc"`,
		"Line 6: quantity cannot be negative",
	}, res.Errors)

	partial := res.Err()
	require.Error(t, partial)
	assert.True(t, pkgerrors.Is(partial, pkgerrors.CodePartialImportFailure))

	assert.EqualValues(t, 2, count(t, f.client, &models.Variant{}))
	var product models.Product
	require.NoError(t, f.client.DB().Where("part_number = ?", "P6").First(&product).Error)
	assert.Equal(t, "P6", product.Name)
	var supplier models.Supplier
	require.NoError(t, f.client.DB().Where("name = ?", "S2").First(&supplier).Error)
}

func TestImportHeaderWithoutSupplierFailsBeforeWipe(t *testing.T) {
	f := newFixture(t)
	dbtest.SeedVariant(t, f.client, dbtest.VariantSeed{Stock: 3})

	_, err := f.svc.Import(context.Background(), strings.NewReader("PartNumber,Price\nP1,1\n"))
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	assert.EqualValues(t, 1, count(t, f.client, &models.Variant{}))

	_, err = f.svc.Import(context.Background(), strings.NewReader(""))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestImportAliasesAndReferenceCache(t *testing.T) {
	f := newFixture(t)
	csv := "Part Number,Make,Model,Category,Brand,Name,UnitPrice,Qty,Bin,ImageURL,SKU,Notes,Color\n" +
		"abc-1,Yamaha,F150,Filters,acme,Oil filter,9.99,4,A1,http://img/1,SKU1,fits all,red\n" +
		"abc-1,Yamaha,F150,Filters,bolt,,8.50,2,A2,,SKU2,,blue\n" +
		"abc-2,Yamaha,F200,Filters,acme,Fuel filter,5,1,B1,,,,green\n" +
		"abc-3,,F999,,acme,Loose part,1,1,,,,,\n"

	res, err := f.svc.Import(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 4, res.Applied)

	assert.EqualValues(t, 1, count(t, f.client, &models.Manufacturer{}))
	assert.EqualValues(t, 2, count(t, f.client, &models.Engine{}), "engine without manufacturer is not created")
	assert.EqualValues(t, 1, count(t, f.client, &models.Category{}))
	assert.EqualValues(t, 2, count(t, f.client, &models.Supplier{}))
	assert.EqualValues(t, 3, count(t, f.client, &models.Product{}))
	assert.EqualValues(t, 4, count(t, f.client, &models.Variant{}))
	assert.EqualValues(t, 2, count(t, f.client, &models.ProductEngine{}))

	var product models.Product
	require.NoError(t, f.client.DB().Where("part_number = ?", "ABC-1").First(&product).Error)
	assert.Equal(t, "Oil filter", product.Name)
	assert.Equal(t, "fits all", product.Notes, "blank cells never overwrite")
	assert.Equal(t, "http://img/1", product.ImageURL)
	require.NotNil(t, product.CategoryID)
}

func TestImportWipesSalesAndCarts(t *testing.T) {
	f := newFixture(t)
	variant := dbtest.SeedVariant(t, f.client, dbtest.VariantSeed{Stock: 3})
	require.NoError(t, f.client.DB().Create(&models.CartEntry{
		ShopperID: "s", VariantID: variant.ID, Quantity: 1, UnitPrice: decimal.NewFromInt(1),
	}).Error)
	sale := models.Sale{TotalAmount: decimal.NewFromInt(1)}
	require.NoError(t, f.client.DB().Create(&sale).Error)
	require.NoError(t, f.client.DB().Create(&models.SaleItem{
		SaleID: sale.ID, VariantID: &variant.ID, Quantity: 1, UnitPrice: decimal.NewFromInt(1), Subtotal: decimal.NewFromInt(1),
	}).Error)

	_, err := f.svc.Import(context.Background(), strings.NewReader("PartNumber,Supplier\nX1,S\n"))
	require.NoError(t, err)

	assert.Zero(t, count(t, f.client, &models.CartEntry{}))
	assert.Zero(t, count(t, f.client, &models.Sale{}))
	assert.Zero(t, count(t, f.client, &models.SaleItem{}))
	assert.EqualValues(t, 1, count(t, f.client, &models.Variant{}))
}

func TestImportRefusedWhileRunning(t *testing.T) {
	f := newFixture(t)
	release, err := f.guard.TryAcquire(context.Background())
	require.NoError(t, err)
	defer release()

	_, err = f.svc.Import(context.Background(), strings.NewReader("PartNumber,Supplier\nX1,S\n"))
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))
}

func TestExportRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	csv := "PartNumber,Manufacturer,Engine,Category,Supplier,Description,Price,Stock,Bin,Image,SKU,Notes\n" +
		`P1,Yamaha,F150,Filters,S1,"Filter, ""oil""",10,5,A1,,K1,` + "\n" +
		"P2,,,,S2,,2.5,0,,,,\n"
	_, err := f.svc.Import(ctx, strings.NewReader(csv))
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := f.svc.Export(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "PartNumber,Manufacturer,Engine,Category,Supplier,Description,Price,Stock,Bin,Image,SKU,Notes", lines[0])
	assert.Equal(t, `"P1","Yamaha","F150","Filters","S1","Filter, ""oil""","10.00","5","A1","","K1",""`, lines[1])
	assert.Equal(t, `"P2","","","","S2","","2.50","0","","","",""`, lines[2])

	res, err := f.svc.Import(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)
	assert.Empty(t, res.Errors)
	assert.EqualValues(t, 2, count(t, f.client, &models.Variant{}))
	assert.EqualValues(t, 1, count(t, f.client, &models.ProductEngine{}))
}

func TestParseHeader(t *testing.T) {
	cols, err := parseHeader([]string{"\ufeffSKU", " part_number ", "BRAND", "part"})
	require.NoError(t, err)
	assert.Equal(t, 1, cols[colPartNumber], "first alias wins")
	assert.Equal(t, 2, cols[colSupplier])
	assert.Equal(t, 0, cols[colSKU])
	assert.Equal(t, -1, cols[colPrice])

	_, err = parseHeader([]string{"sku", "supplier"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestParseQuantity(t *testing.T) {
	qty, err := parseQuantity("5.0")
	require.NoError(t, err)
	assert.Equal(t, 5, qty)

	_, err = parseQuantity("2.5")
	assert.Error(t, err)
}
