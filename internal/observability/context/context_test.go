package context

import (
	"context"
	"testing"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), " req-1 ")
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("expected req-1, got %q", got)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty request id, got %q", got)
	}
}

func TestEnsureCorrelationIDIsStable(t *testing.T) {
	ctx, first := EnsureCorrelationID(context.Background())
	if first == "" {
		t.Fatalf("expected generated correlation id")
	}
	_, second := EnsureCorrelationID(ctx)
	if first != second {
		t.Fatalf("expected stable correlation id, got %q and %q", first, second)
	}
}

func TestSurface(t *testing.T) {
	cases := map[string]string{
		"/api/orders":         SurfaceAPI,
		"/admin/variants/:id": SurfaceAdmin,
		"/webhooks/stripe":    SurfaceWebhooks,
		"/metrics":            SurfaceOps,
		"":                    SurfaceUnknown,
		"/apix":               SurfaceUnknown,
	}
	for route, want := range cases {
		if got := Surface(route); got != want {
			t.Fatalf("Surface(%q) = %q, want %q", route, got, want)
		}
	}
}

func TestOrderFromRoute(t *testing.T) {
	param := func(name string) string {
		if name == "id" {
			return "LTS-2026-000042"
		}
		return ""
	}
	if key, value := OrderFromRoute("/api/orders/:id/checkout", param); key != "order_number" || value != "LTS-2026-000042" {
		t.Fatalf("unexpected guest order ref %q=%q", key, value)
	}
	if key, _ := OrderFromRoute("/admin/orders/:id", param); key != "order_id" {
		t.Fatalf("expected admin routes to carry order_id, got %q", key)
	}
	if key, _ := OrderFromRoute("/admin/products/:id", param); key != "" {
		t.Fatalf("expected no order ref for product routes, got %q", key)
	}
}
