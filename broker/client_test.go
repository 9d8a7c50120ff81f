package broker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric/noop"

	apperrors "github.com/autoquant/alphakit/errors"
	"github.com/autoquant/alphakit/observability"
	"github.com/autoquant/alphakit/resilience"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(Config{
		BaseURL:   srv.URL,
		APIKey:    "test-key",
		APISecret: "test-secret",
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client, srv
}

func TestSubmitOrder_GeneratesClientOrderID(t *testing.T) {
	var received OrderRequest
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v2/orders" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("APCA-API-KEY-ID"); got != "test-key" {
			t.Errorf("APCA-API-KEY-ID = %q, want test-key", got)
		}
		if got := r.Header.Get("APCA-API-SECRET-KEY"); got != "test-secret" {
			t.Errorf("APCA-API-SECRET-KEY = %q, want test-secret", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(Order{
			ID:            "ord-1",
			ClientOrderID: received.ClientOrderID,
			Symbol:        received.Symbol,
			Qty:           received.Qty,
			Status:        "accepted",
		})
	}))

	order, err := client.SubmitOrder(context.Background(), OrderRequest{
		Symbol: "AAPL",
		Qty:    decimal.NewFromInt(10),
		Side:   SideBuy,
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if received.ClientOrderID == "" {
		t.Error("expected a generated client_order_id in the request")
	}
	if order.ClientOrderID != received.ClientOrderID {
		t.Errorf("order.ClientOrderID = %q, want %q", order.ClientOrderID, received.ClientOrderID)
	}
	if received.Type != "market" || received.TimeInForce != TIFDay {
		t.Errorf("defaults not applied: type=%q tif=%q", received.Type, received.TimeInForce)
	}
}

func TestSubmitOrder_KeepsProvidedClientOrderID(t *testing.T) {
	var received OrderRequest
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		_ = json.NewEncoder(w).Encode(Order{ID: "ord-2", ClientOrderID: received.ClientOrderID})
	}))

	_, err := client.SubmitOrder(context.Background(), OrderRequest{
		Symbol:        "MSFT",
		Qty:           decimal.NewFromInt(1),
		Side:          SideSell,
		ClientOrderID: "my-idempotency-key",
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if received.ClientOrderID != "my-idempotency-key" {
		t.Errorf("client_order_id = %q, want my-idempotency-key", received.ClientOrderID)
	}
}

func TestSubmitOrder_StatusNormalization(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCode  apperrors.ErrorCode
		retryable bool
	}{
		{"rate limited", 429, `{"message":"too many requests"}`, apperrors.ErrCodeRateLimited, true},
		{"service unavailable", 503, `{"message":"maintenance"}`, apperrors.ErrCodeServiceUnavailable, true},
		{"bad gateway", 502, `{"message":"upstream"}`, apperrors.ErrCodeServiceUnavailable, true},
		{"server error", 500, `{"message":"boom"}`, apperrors.ErrCodeExternalService, true},
		{"rejected order", 422, `{"message":"asset not tradable"}`, apperrors.ErrCodeInvalidOrder, false},
		{"bad request", 400, `{"message":"qty must be > 0"}`, apperrors.ErrCodeInvalidOrder, false},
		{"bad credentials", 401, `{"message":"unauthorized"}`, apperrors.ErrCodeUnauthorized, false},
		{"forbidden", 403, `{"message":"account blocked"}`, apperrors.ErrCodeForbidden, false},
		{"insufficient buying power", 403, `{"message":"insufficient buying power"}`, apperrors.ErrCodeInsufficientFunds, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))

			_, err := client.SubmitOrder(context.Background(), OrderRequest{
				Symbol: "AAPL",
				Qty:    decimal.NewFromInt(1),
				Side:   SideBuy,
			})
			appErr, ok := apperrors.AsAppError(err)
			if !ok {
				t.Fatalf("expected AppError, got %T: %v", err, err)
			}
			if appErr.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", appErr.Code, tt.wantCode)
			}
			if appErr.Retryable != tt.retryable {
				t.Errorf("retryable = %v, want %v", appErr.Retryable, tt.retryable)
			}
		})
	}
}

func TestFindOrder_NotFound(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"order not found"}`))
	}))

	_, err := client.FindOrder(context.Background(), "missing-id")
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestFindOrder_ByClientOrderID(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("client_order_id"); got != "abc-123" {
			t.Errorf("client_order_id query = %q, want abc-123", got)
		}
		_ = json.NewEncoder(w).Encode(Order{ID: "ord-9", ClientOrderID: "abc-123", Status: "filled"})
	}))

	order, err := client.FindOrder(context.Background(), "abc-123")
	if err != nil {
		t.Fatalf("FindOrder: %v", err)
	}
	if order.ID != "ord-9" || order.Status != "filled" {
		t.Errorf("unexpected order: %+v", order)
	}
}

func TestGetAsset(t *testing.T) {
	t.Run("known symbol", func(t *testing.T) {
		client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v2/assets/AAPL" {
				t.Errorf("path = %s, want /v2/assets/AAPL", r.URL.Path)
			}
			_, _ = w.Write([]byte(`{
				"id": "asset-1",
				"symbol": "AAPL",
				"exchange": "NASDAQ",
				"class": "us_equity",
				"tradable": true,
				"fractionable": true,
				"min_order_size": "1",
				"price_increment": "0.01"
			}`))
		}))

		asset, err := client.GetAsset(context.Background(), "AAPL")
		if err != nil {
			t.Fatalf("GetAsset: %v", err)
		}
		if asset.Exchange != "NASDAQ" || !asset.Tradable {
			t.Errorf("unexpected asset: %+v", asset)
		}
		if !asset.PriceIncrement.Equal(decimal.RequireFromString("0.01")) {
			t.Errorf("price_increment = %s, want 0.01", asset.PriceIncrement)
		}
	})

	t.Run("unknown symbol", func(t *testing.T) {
		client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"asset not found"}`))
		}))

		_, err := client.GetAsset(context.Background(), "NOSUCH")
		appErr, ok := apperrors.AsAppError(err)
		if !ok || appErr.Code != apperrors.ErrCodeNotFound {
			t.Fatalf("expected NOT_FOUND, got %v", err)
		}
	})
}

func TestGetAccount_ParsesDecimalFields(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/account" {
			t.Errorf("path = %s, want /v2/account", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{
			"id": "acct-1",
			"status": "ACTIVE",
			"currency": "USD",
			"equity": "100000.25",
			"cash": "25000.50",
			"buying_power": "200000.50",
			"maintenance_margin": "12500.00"
		}`))
	}))

	account, err := client.GetAccount(context.Background())
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if !account.Equity.Equal(decimal.RequireFromString("100000.25")) {
		t.Errorf("equity = %s, want 100000.25", account.Equity)
	}
	if !account.BuyingPower.Equal(decimal.RequireFromString("200000.50")) {
		t.Errorf("buying_power = %s, want 200000.50", account.BuyingPower)
	}
}

func TestCheckHealth(t *testing.T) {
	t.Run("funded account is healthy", func(t *testing.T) {
		client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"id":"acct-1","status":"ACTIVE","equity":"50000"}`))
		}))

		h := client.CheckHealth(context.Background())
		if !h.Healthy {
			t.Fatalf("expected healthy, got %+v", h)
		}
		if h.AccountID != "acct-1" {
			t.Errorf("account_id = %q, want acct-1", h.AccountID)
		}
	})

	t.Run("zero equity is unhealthy", func(t *testing.T) {
		client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"id":"acct-1","status":"ACTIVE","equity":"0"}`))
		}))

		h := client.CheckHealth(context.Background())
		if h.Healthy {
			t.Fatal("expected unhealthy for zero equity")
		}
		if h.Error == "" {
			t.Error("expected an error message")
		}
	})

	t.Run("unreachable broker is unhealthy", func(t *testing.T) {
		client, srv := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		h := client.CheckHealth(context.Background())
		if h.Healthy {
			t.Fatal("expected unhealthy when broker is unreachable")
		}
	})
}

func TestDo_TransportErrors(t *testing.T) {
	t.Run("connection refused", func(t *testing.T) {
		client, srv := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		_, err := client.GetAccount(context.Background())
		appErr, ok := apperrors.AsAppError(err)
		if !ok || appErr.Code != apperrors.ErrCodeConnectionFailed {
			t.Fatalf("expected CONNECTION_FAILED, got %v", err)
		}
		if !appErr.Retryable {
			t.Error("connection errors must be retryable")
		}
	})

	t.Run("context deadline", func(t *testing.T) {
		client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := client.GetAccount(ctx)
		appErr, ok := apperrors.AsAppError(err)
		if !ok || appErr.Code != apperrors.ErrCodeTimeout {
			t.Fatalf("expected TIMEOUT, got %v", err)
		}
	})
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{APIKey: "k", APISecret: "s"}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("base_url default = %q", cfg.BaseURL)
	}

	bad := Config{BaseURL: "https://x", APISecret: "s"}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for missing api_key")
	}
}

func TestSubmitOrder_WithMetricsAttached(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Order{ID: "ord-9", Status: "accepted"})
	}))

	metrics, err := observability.NewMetrics(noop.NewMeterProvider().Meter("broker-test"), "broker-test")
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	client.SetMetrics(metrics)

	order, err := client.SubmitOrder(context.Background(), OrderRequest{
		Symbol: "AAPL",
		Qty:    decimal.NewFromInt(1),
		Side:   SideBuy,
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if order.ID != "ord-9" {
		t.Fatalf("order ID = %q, want ord-9", order.ID)
	}
}

func TestSubmitOrder_DuplicateResolvesToExistingOrder(t *testing.T) {
	var lookups int
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"code":40010001,"message":"client_order_id must be unique"}`))
		case http.MethodGet:
			lookups++
			if got := r.URL.Query().Get("client_order_id"); got != "retry-key-7" {
				t.Errorf("client_order_id query = %q, want retry-key-7", got)
			}
			_ = json.NewEncoder(w).Encode(Order{ID: "ord-42", ClientOrderID: "retry-key-7", Status: "accepted"})
		}
	}))

	order, err := client.SubmitOrder(context.Background(), OrderRequest{
		Symbol:        "AAPL",
		Qty:           decimal.NewFromInt(5),
		Side:          SideBuy,
		ClientOrderID: "retry-key-7",
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if order.ID != "ord-42" {
		t.Errorf("order.ID = %q, want the already-accepted ord-42", order.ID)
	}
	if lookups != 1 {
		t.Errorf("expected exactly one reconciliation lookup, got %d", lookups)
	}
}

func TestSubmitOrder_DuplicateSurfacesConflictWhenLookupFails(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"order with this client order id already exists"}`))
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"order not found"}`))
		}
	}))

	_, err := client.SubmitOrder(context.Background(), OrderRequest{
		Symbol:        "MSFT",
		Qty:           decimal.NewFromInt(1),
		Side:          SideSell,
		ClientOrderID: "ghost-key",
	})
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeDuplicateOrder {
		t.Fatalf("expected DUPLICATE_ORDER, got %v", err)
	}
	if appErr.Details["client_order_id"] != "ghost-key" {
		t.Errorf("details = %v, want client_order_id ghost-key", appErr.Details)
	}
}

func TestNormalizeStatus_PlainRejectionStaysInvalidOrder(t *testing.T) {
	appErr := normalizeStatus(http.StatusUnprocessableEntity, []byte(`{"message":"asset not tradable"}`), "AAPL")
	if appErr.Code != apperrors.ErrCodeInvalidOrder {
		t.Fatalf("code = %s, want %s", appErr.Code, apperrors.ErrCodeInvalidOrder)
	}
}

func TestDo_BulkheadCapsConcurrency(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{"id":"acct"}`))
	}))
	t.Cleanup(srv.Close)

	client, err := New(Config{
		BaseURL:       srv.URL,
		APIKey:        "test-key",
		APISecret:     "test-secret",
		MaxConcurrent: 1,
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	firstStarted := make(chan struct{})
	firstDone := make(chan error, 1)
	go func() {
		close(firstStarted)
		_, err := client.GetAccount(context.Background())
		firstDone <- err
	}()

	<-firstStarted
	time.Sleep(50 * time.Millisecond) // let the first call occupy the slot

	_, err = client.GetAccount(context.Background())
	if !errors.Is(err, resilience.ErrBulkheadFull) {
		t.Fatalf("expected ErrBulkheadFull for second concurrent call, got %v", err)
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first call failed: %v", err)
	}
}

func TestDo_RateLimiterPacesRequests(t *testing.T) {
	var calls int
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"id":"acct"}`))
	}))
	client.limiter = resilience.NewRateLimiter(resilience.RateLimiterConfig{
		Name: "broker", Rate: 1000, Burst: 1,
	})

	for i := 0; i < 3; i++ {
		if _, err := client.GetAccount(context.Background()); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls to reach the server, got %d", calls)
	}
}
