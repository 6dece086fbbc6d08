package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/storefront/internal/cart"
	"github.com/smallbiznis/storefront/internal/config"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	pricetierdomain "github.com/smallbiznis/storefront/internal/pricetier/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeOrderService struct {
	orderdomain.Service

	lastCreate *orderdomain.CreateRequest
	createErr  error
	getErr     error
}

func (f *fakeOrderService) CreateFromCart(ctx context.Context, req orderdomain.CreateRequest) (*orderdomain.CreateResult, error) {
	f.lastCreate = &req
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &orderdomain.CreateResult{
		OrderID:     1,
		OrderNumber: "LTS-2026-000001",
		Currency:    "USD",
		Subtotal:    2500,
		Total:       2500 + req.TaxAmount + req.ShippingAmount,
	}, nil
}

func (f *fakeOrderService) GetByNumber(ctx context.Context, number string) (*orderdomain.OrderResponse, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &orderdomain.OrderResponse{ID: 1, OrderNumber: number}, nil
}

type fakeWebhookService struct {
	calls         int
	lastSignature string
	err           error
}

func (f *fakeWebhookService) Ingest(ctx context.Context, payload []byte, signatureHeader string) (*paymentdomain.Outcome, error) {
	f.calls++
	f.lastSignature = signatureHeader
	if f.err != nil {
		return nil, f.err
	}
	return &paymentdomain.Outcome{EventType: "checkout.session.completed"}, nil
}

type fakePriceTierService struct {
	pricetierdomain.Service

	replaceErr error
	lastOwner  pricetierdomain.Owner
}

func (f *fakePriceTierService) ReplaceAll(ctx context.Context, owner pricetierdomain.Owner, raw []pricetierdomain.RawTier) ([]pricetierdomain.Tier, error) {
	f.lastOwner = owner
	if f.replaceErr != nil {
		return nil, f.replaceErr
	}
	return []pricetierdomain.Tier{{MinQuantity: 1, UnitAmount: 500, Currency: "USD"}}, nil
}

func newTestServer(cfg config.Config) *Server {
	gin.SetMode(gin.TestMode)
	return &Server{
		engine: gin.New(),
		cfg:    cfg,
		log:    zap.NewNop(),
	}
}

func serve(router *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body.Error
}

func TestCreateOrderIgnoresClientAmounts(t *testing.T) {
	orders := &fakeOrderService{}
	srv := newTestServer(config.Config{})
	srv.orderSvc = orders

	router := srv.engine
	router.Use(ErrorHandlingMiddleware())
	router.POST("/api/orders", srv.OrderRateLimit(), srv.CreateOrder)

	resp := serve(router, http.MethodPost, "/api/orders",
		`{"items":[{"kind":"variant","variant_id":"1","quantity":1}],"customer":{"email":"a@example.com"},"tax":999,"shipping_amount":50}`, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	require.NotNil(t, orders.lastCreate)
	assert.Zero(t, orders.lastCreate.TaxAmount)
	assert.Zero(t, orders.lastCreate.ShippingAmount)
	assert.False(t, orders.lastCreate.AllowPriceOverride)
	assert.Equal(t, orderdomain.SourceStorefront, orders.lastCreate.Source)

	var body struct {
		Data orderdomain.CreateResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "LTS-2026-000001", body.Data.OrderNumber)
	assert.Equal(t, int64(2500), body.Data.Total)
}

func TestCreateAdminOrderAllowsOverride(t *testing.T) {
	orders := &fakeOrderService{}
	srv := newTestServer(config.Config{})
	srv.orderSvc = orders

	router := srv.engine
	router.Use(ErrorHandlingMiddleware())
	router.POST("/admin/orders", srv.CreateAdminOrder)

	resp := serve(router, http.MethodPost, "/admin/orders", `{"items":[],"tax":100}`, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, orders.lastCreate.AllowPriceOverride)
	assert.Equal(t, orderdomain.SourceAdmin, orders.lastCreate.Source)
	assert.Equal(t, int64(100), orders.lastCreate.TaxAmount)
}

func TestCreateOrderErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		body       string
		wantStatus int
		wantType   string
		wantField  string
		wantCode   string
	}{
		{
			name:       "malformed body",
			body:       `{"items":`,
			wantStatus: http.StatusBadRequest,
			wantType:   "validation_error",
			wantField:  "request",
			wantCode:   "invalid_request",
		},
		{
			name:       "mixed currency",
			err:        &cart.LineError{Index: 1, Err: cart.ErrMixedCurrency},
			wantStatus: http.StatusBadRequest,
			wantType:   "validation_error",
			wantField:  "items[1]",
			wantCode:   "mixed_currency",
		},
		{
			name:       "empty cart",
			err:        cart.ErrEmptyCart,
			wantStatus: http.StatusBadRequest,
			wantType:   "validation_error",
			wantField:  "items",
			wantCode:   "empty_cart",
		},
		{
			name: "invalid buyer",
			err: &orderdomain.BuyerError{Violations: []orderdomain.FieldViolation{
				{Field: "customer.email", Rule: "email"},
			}},
			wantStatus: http.StatusBadRequest,
			wantType:   "validation_error",
			wantField:  "customer.email",
			wantCode:   "email",
		},
		{
			name:       "inactive item",
			err:        &cart.LineError{Index: 0, Err: cart.ErrInactiveItem},
			wantStatus: http.StatusConflict,
			wantType:   "conflict",
		},
		{
			name:       "unknown item",
			err:        &cart.LineError{Index: 0, Err: cart.ErrItemNotFound},
			wantStatus: http.StatusNotFound,
			wantType:   "not_found",
		},
		{
			name:       "store failure",
			err:        fmt.Errorf("insert order: %w", context.DeadlineExceeded),
			wantStatus: http.StatusInternalServerError,
			wantType:   "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(config.Config{})
			srv.orderSvc = &fakeOrderService{createErr: tt.err}

			router := srv.engine
			router.Use(ErrorHandlingMiddleware())
			router.POST("/api/orders", srv.CreateOrder)

			body := tt.body
			if body == "" {
				body = `{"items":[{"kind":"variant","variant_id":"1","quantity":1}]}`
			}
			resp := serve(router, http.MethodPost, "/api/orders", body, nil)
			require.Equal(t, tt.wantStatus, resp.Code, resp.Body.String())

			payload := decodeError(t, resp)
			assert.Equal(t, tt.wantType, payload.Type)
			if tt.wantCode != "" {
				require.NotEmpty(t, payload.Errors)
				assert.Equal(t, tt.wantField, payload.Errors[0].Field)
				assert.Equal(t, tt.wantCode, payload.Errors[0].Code)
			}
		})
	}
}

func TestGetOrderByNumberNotFound(t *testing.T) {
	srv := newTestServer(config.Config{})
	srv.orderSvc = &fakeOrderService{getErr: orderdomain.ErrNotFound}

	router := srv.engine
	router.Use(ErrorHandlingMiddleware())
	router.GET("/api/orders/:id", srv.GetOrderByNumber)

	resp := serve(router, http.MethodGet, "/api/orders/LTS-2026-000404", "", nil)
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "not_found", decodeError(t, resp).Type)
}

func TestStripeWebhookHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "accepted", wantStatus: http.StatusOK},
		{name: "bad signature", err: paymentdomain.ErrInvalidSignature, wantStatus: http.StatusBadRequest},
		{name: "not configured", err: paymentdomain.ErrWebhookNotConfigured, wantStatus: http.StatusServiceUnavailable},
		{name: "store failure", err: context.Canceled, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			webhooks := &fakeWebhookService{err: tt.err}
			srv := newTestServer(config.Config{})
			srv.webhookSvc = webhooks

			router := srv.engine
			router.Use(ErrorHandlingMiddleware())
			router.POST("/webhooks/stripe", srv.HandleStripeWebhook)

			resp := serve(router, http.MethodPost, "/webhooks/stripe", `{"id":"evt_1"}`,
				map[string]string{"Stripe-Signature": "t=1,v1=abc"})
			require.Equal(t, tt.wantStatus, resp.Code)
			assert.Equal(t, 1, webhooks.calls)
			assert.Equal(t, "t=1,v1=abc", webhooks.lastSignature)
			if tt.err == nil {
				assert.JSONEq(t, `{"status":"ok"}`, resp.Body.String())
			}
		})
	}
}

func TestAdminRequired(t *testing.T) {
	tests := []struct {
		name       string
		cfg        config.Config
		header     string
		wantStatus int
	}{
		{name: "valid key", cfg: config.Config{AdminAPIKey: "secret"}, header: "Bearer secret", wantStatus: http.StatusOK},
		{name: "wrong key", cfg: config.Config{AdminAPIKey: "secret"}, header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "missing header", cfg: config.Config{AdminAPIKey: "secret"}, wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", cfg: config.Config{AdminAPIKey: "secret"}, header: "Basic secret", wantStatus: http.StatusUnauthorized},
		{name: "unset in development", cfg: config.Config{Environment: "development"}, wantStatus: http.StatusOK},
		{name: "unset in production", cfg: config.Config{Environment: "production"}, header: "Bearer anything", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(tt.cfg)

			router := srv.engine
			router.Use(ErrorHandlingMiddleware())
			admin := router.Group("/admin")
			admin.Use(srv.AdminRequired())
			admin.GET("/ping", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"status": "ok"})
			})

			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}
			resp := serve(router, http.MethodGet, "/admin/ping", "", headers)
			require.Equal(t, tt.wantStatus, resp.Code)
		})
	}
}

func TestReplaceVariantTiers(t *testing.T) {
	tiers := &fakePriceTierService{}
	srv := newTestServer(config.Config{})
	srv.priceTierSvc = tiers

	router := srv.engine
	router.Use(ErrorHandlingMiddleware())
	router.PUT("/admin/variants/:id/tiers", srv.ReplaceVariantTiers)

	resp := serve(router, http.MethodPut, "/admin/variants/42/tiers",
		`{"tiers":[{"min_qty":1,"unit_amount":500,"currency":"usd"}]}`, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.IsType(t, pricetierdomain.VariantOwner{}, tiers.lastOwner)
	assert.Equal(t, int64(42), tiers.lastOwner.(pricetierdomain.VariantOwner).VariantID.Int64())

	var body struct {
		Data struct {
			Tiers []pricetierdomain.VariantTierResponse `json:"tiers"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Data.Tiers, 1)
	assert.Equal(t, int64(500), body.Data.Tiers[0].UnitAmount)

	resp = serve(router, http.MethodPut, "/admin/variants/abc/tiers", `{"tiers":[]}`, nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	tiers.replaceErr = pricetierdomain.ErrInvalidMinQuantity
	resp = serve(router, http.MethodPut, "/admin/variants/42/tiers", `{"tiers":[{"min_qty":0,"unit_amount":1,"currency":"USD"}]}`, nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "validation_error", decodeError(t, resp).Type)
}

func TestNormalizeRateLimitEndpoint(t *testing.T) {
	assert.Equal(t, "unknown", normalizeRateLimitEndpoint(nil))

	gin.SetMode(gin.TestMode)
	router := gin.New()
	var got string
	router.POST("/api/orders", func(c *gin.Context) {
		got = normalizeRateLimitEndpoint(c)
	})
	serve(router, http.MethodPost, "/api/orders", "", nil)
	assert.Equal(t, "/api/orders", got)
}
