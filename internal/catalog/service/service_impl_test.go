package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	catalogdomain "github.com/smallbiznis/storefront/internal/catalog/domain"
	catalogrepo "github.com/smallbiznis/storefront/internal/catalog/repository"
	catalogservice "github.com/smallbiznis/storefront/internal/catalog/service"
	syncdomain "github.com/smallbiznis/storefront/internal/catalogsync/domain"
	syncrepo "github.com/smallbiznis/storefront/internal/catalogsync/repository"
	syncservice "github.com/smallbiznis/storefront/internal/catalogsync/service"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	processordomain "github.com/smallbiznis/storefront/internal/processor/domain"
	"github.com/smallbiznis/storefront/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeGateway struct {
	productErr error
	priceErr   error
	products   int
	prices     int
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) UpsertProduct(ctx context.Context, input processordomain.ProductInput) (string, error) {
	g.products++
	if g.productErr != nil {
		return "", g.productErr
	}
	if input.ExternalID != nil {
		return *input.ExternalID, nil
	}
	return "prod_" + input.ProductID, nil
}

func (g *fakeGateway) UpsertPrice(ctx context.Context, input processordomain.PriceInput) (string, error) {
	g.prices++
	if g.priceErr != nil {
		return "", g.priceErr
	}
	return "price_" + input.VariantID, nil
}

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, input processordomain.CheckoutInput) (*processordomain.CheckoutSession, error) {
	return nil, processordomain.ErrGatewayDisabled
}

func newCatalogService(t *testing.T, gw processordomain.Gateway) catalogdomain.Service {
	t.Helper()
	db := testutil.OpenDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	cfg := config.Config{DefaultCurrency: "USD", SyncLockTTLSeconds: 30}
	repo := catalogrepo.Provide()

	syncer := syncservice.New(syncservice.Params{
		DB:          db,
		Log:         zap.NewNop(),
		Cfg:         cfg,
		Clock:       clk,
		Gateway:     gw,
		CatalogRepo: repo,
		Repo:        syncrepo.Provide(),
	})

	return catalogservice.New(catalogservice.Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  testutil.Node(t),
		Cfg:    cfg,
		Clock:  clk,
		Repo:   repo,
		Syncer: syncer,
	})
}

func int64Ptr(v int64) *int64 { return &v }

func TestCreateProductSyncsToProcessor(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{}
	svc := newCatalogService(t, gw)

	product, err := svc.CreateProduct(ctx, catalogdomain.CreateProductRequest{Name: "Hotel Keycard Sleeve"})
	require.NoError(t, err)

	assert.Equal(t, "hotel-keycard-sleeve", product.Code)
	assert.Equal(t, syncdomain.StatusSynced, product.SyncStatus)
	require.NotNil(t, product.ExternalID)
	assert.Equal(t, "prod_"+product.ID, *product.ExternalID)
	assert.Nil(t, product.SyncError)
	assert.NotNil(t, product.SyncedAt)
}

func TestProcessorFailureIsRecordedNotReturned(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{productErr: errors.New(strings.Repeat("x", 800))}
	svc := newCatalogService(t, gw)

	product, err := svc.CreateProduct(ctx, catalogdomain.CreateProductRequest{Name: "Sleeve"})
	require.NoError(t, err)

	assert.Equal(t, syncdomain.StatusFailed, product.SyncStatus)
	require.NotNil(t, product.SyncError)
	assert.Len(t, *product.SyncError, syncdomain.MaxErrorLength)
	assert.Nil(t, product.ExternalID)
}

func TestMirroredEditMovesFailedBackThroughPending(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{productErr: errors.New("api down")}
	svc := newCatalogService(t, gw)

	product, err := svc.CreateProduct(ctx, catalogdomain.CreateProductRequest{Name: "Sleeve"})
	require.NoError(t, err)
	require.Equal(t, syncdomain.StatusFailed, product.SyncStatus)

	gw.productErr = nil
	name := "Sleeve v2"
	updated, err := svc.UpdateProduct(ctx, product.ID, catalogdomain.UpdateProductRequest{Name: &name})
	require.NoError(t, err)

	assert.Equal(t, syncdomain.StatusSynced, updated.SyncStatus)
	assert.Nil(t, updated.SyncError)
	assert.Equal(t, 2, gw.products)
}

func TestMetadataOnlyEditDoesNotResync(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{}
	svc := newCatalogService(t, gw)

	product, err := svc.CreateProduct(ctx, catalogdomain.CreateProductRequest{Name: "Sleeve"})
	require.NoError(t, err)

	_, err = svc.UpdateProduct(ctx, product.ID, catalogdomain.UpdateProductRequest{Metadata: map[string]any{"color": "black"}})
	require.NoError(t, err)
	assert.Equal(t, 1, gw.products)
}

func TestVariantSyncNeedsMirroredProduct(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{productErr: errors.New("api down")}
	svc := newCatalogService(t, gw)

	product, err := svc.CreateProduct(ctx, catalogdomain.CreateProductRequest{Name: "Sleeve"})
	require.NoError(t, err)

	variant, err := svc.CreateVariant(ctx, product.ID, catalogdomain.CreateVariantRequest{
		SKU:        "slv-100",
		Name:       "Sleeve 100 pack",
		UnitAmount: int64Ptr(1200),
		Currency:   "usd",
	})
	require.NoError(t, err)

	assert.Equal(t, "SLV-100", variant.SKU)
	assert.Equal(t, "USD", variant.Currency)
	assert.Equal(t, syncdomain.StatusFailed, variant.SyncStatus)
	require.NotNil(t, variant.SyncError)
	assert.Equal(t, syncdomain.ErrProductNotSynced.Error(), *variant.SyncError)
	assert.Equal(t, 0, gw.prices)
}

func TestSyncVariantRetriesAfterProductSynced(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{productErr: errors.New("api down")}
	svc := newCatalogService(t, gw)

	product, err := svc.CreateProduct(ctx, catalogdomain.CreateProductRequest{Name: "Sleeve"})
	require.NoError(t, err)
	variant, err := svc.CreateVariant(ctx, product.ID, catalogdomain.CreateVariantRequest{
		SKU: "SLV-1", Name: "Sleeve", UnitAmount: int64Ptr(500),
	})
	require.NoError(t, err)
	require.Equal(t, syncdomain.StatusFailed, variant.SyncStatus)

	gw.productErr = nil
	_, err = svc.SyncProduct(ctx, product.ID)
	require.NoError(t, err)

	retried, err := svc.SyncVariant(ctx, variant.ID)
	require.NoError(t, err)
	assert.Equal(t, syncdomain.StatusSynced, retried.SyncStatus)
	require.NotNil(t, retried.ExternalPriceID)
	assert.Equal(t, "price_"+variant.ID, *retried.ExternalPriceID)
}

func TestArchiveProductDeactivatesVariants(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{}
	svc := newCatalogService(t, gw)

	product, err := svc.CreateProduct(ctx, catalogdomain.CreateProductRequest{Name: "Sleeve"})
	require.NoError(t, err)
	_, err = svc.CreateVariant(ctx, product.ID, catalogdomain.CreateVariantRequest{
		SKU: "SLV-1", Name: "Sleeve", UnitAmount: int64Ptr(500),
	})
	require.NoError(t, err)

	archived, err := svc.ArchiveProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.False(t, archived.Active)
	require.Len(t, archived.Variants, 1)
	assert.False(t, archived.Variants[0].Active)
	assert.Equal(t, syncdomain.StatusSynced, archived.Variants[0].SyncStatus)

	_, err = svc.CreateVariant(ctx, product.ID, catalogdomain.CreateVariantRequest{
		SKU: "SLV-2", Name: "Sleeve", UnitAmount: int64Ptr(500),
	})
	require.ErrorIs(t, err, catalogdomain.ErrProductArchived)
}

func TestCreateVariantValidation(t *testing.T) {
	ctx := context.Background()
	svc := newCatalogService(t, &fakeGateway{})

	product, err := svc.CreateProduct(ctx, catalogdomain.CreateProductRequest{Name: "Sleeve"})
	require.NoError(t, err)

	_, err = svc.CreateVariant(ctx, product.ID, catalogdomain.CreateVariantRequest{SKU: "A", Name: "A"})
	require.ErrorIs(t, err, catalogdomain.ErrInvalidUnitAmount)

	_, err = svc.CreateVariant(ctx, product.ID, catalogdomain.CreateVariantRequest{SKU: "A", Name: "A", UnitAmount: int64Ptr(1), Currency: "dollars"})
	require.ErrorIs(t, err, catalogdomain.ErrInvalidCurrency)

	_, err = svc.CreateVariant(ctx, "nope", catalogdomain.CreateVariantRequest{SKU: "A", Name: "A", UnitAmount: int64Ptr(1)})
	require.ErrorIs(t, err, catalogdomain.ErrInvalidID)
}

func TestDuplicateOptionCode(t *testing.T) {
	ctx := context.Background()
	svc := newCatalogService(t, &fakeGateway{})

	design, err := svc.CreateKeycardDesign(ctx, catalogdomain.CreateOptionRequest{Name: "Ocean Blue"})
	require.NoError(t, err)
	assert.Equal(t, "ocean-blue", design.Code)

	_, err = svc.CreateKeycardDesign(ctx, catalogdomain.CreateOptionRequest{Name: "Ocean  Blue"})
	require.ErrorIs(t, err, catalogdomain.ErrDuplicateCode)

	tech, err := svc.CreateLockTechnology(ctx, catalogdomain.CreateOptionRequest{Code: "RFID 13.56", Name: "RFID"})
	require.NoError(t, err)
	assert.True(t, tech.Active)
}
