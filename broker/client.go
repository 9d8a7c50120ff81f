package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/autoquant/alphakit/errors"
	"github.com/autoquant/alphakit/logger"
	"github.com/autoquant/alphakit/observability"
	"github.com/autoquant/alphakit/resilience"
	"github.com/autoquant/alphakit/util"
)

const tracerName = "github.com/autoquant/alphakit/broker"

// Client is a typed HTTP client for the Alpaca trading API.
type Client struct {
	httpClient *http.Client
	config     Config
	log        *logger.Logger
	tracer     trace.Tracer
	metrics    *observability.Metrics
	bulkhead   *resilience.Bulkhead
	limiter    *resilience.RateLimiter
}

// SetMetrics attaches operation metrics to the client. Without it order
// submissions are traced but not counted.
func (c *Client) SetMetrics(m *observability.Metrics) {
	c.metrics = m
}

// New creates a broker client with the given configuration.
func New(cfg Config, log *logger.Logger) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewDefault("broker")
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		log:    log.WithComponent("broker"),
		tracer: otel.Tracer(tracerName),
	}
	if cfg.MaxConcurrent > 0 {
		c.bulkhead = resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          "broker",
			MaxConcurrent: cfg.MaxConcurrent,
		})
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Name:  "broker",
			Rate:  cfg.RequestsPerSecond,
			Burst: cfg.RateBurst,
		})
	}
	c.log.Debug("Broker client configured", map[string]interface{}{
		"base_url": cfg.BaseURL,
		"api_key":  util.MaskSecret(cfg.APIKey, 4),
		"timeout":  cfg.Timeout,
	})
	return c, nil
}

// SubmitOrder submits a market order. A client order ID is generated when the
// request does not carry one, so the same request can be retried and later
// reconciled via FindOrder.
func (c *Client) SubmitOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if req.Type == "" {
		req.Type = "market"
	}
	if req.TimeInForce == "" {
		req.TimeInForce = TIFDay
	}
	if req.ClientOrderID == "" {
		req.ClientOrderID = uuid.NewString()
	}

	oc := observability.NewOperationContext("broker", "submit_order", req.ClientOrderID, c.metrics)
	oc.Symbol = req.Symbol
	ctx = observability.WithOperationContext(ctx, oc)
	ctx, span := oc.StartSpanForOperation(ctx, observability.SpanBrokerCall)
	span.SetAttributes(attribute.String("order.side", string(req.Side)))

	var order Order
	if err := c.do(ctx, http.MethodPost, "/v2/orders", req, &order, req.Symbol); err != nil {
		if appErr, ok := apperrors.AsAppError(err); ok && appErr.Code == apperrors.ErrCodeDuplicateOrder {
			existing, dupErr := c.reconcileDuplicate(ctx, req.ClientOrderID)
			if dupErr != nil {
				oc.EndOperation(ctx, span, "error", dupErr)
				return nil, dupErr
			}
			oc.EndOperation(ctx, span, "duplicate", nil)
			return existing, nil
		}
		oc.EndOperation(ctx, span, "error", err)
		return nil, err
	}

	c.log.Info("order submitted", logger.Fields(
		logger.FieldSymbol, req.Symbol,
		logger.FieldOrderID, order.ID,
		"client_order_id", order.ClientOrderID,
		"status", order.Status,
	))
	oc.EndOperation(ctx, span, "ok", nil)
	return &order, nil
}

// reconcileDuplicate resolves a duplicate client order ID rejection by
// looking up the order the broker already holds. Resubmitting with the same
// client order ID is idempotent: the caller gets the accepted order back
// instead of a conflict error. Only when the lookup itself fails does the
// conflict surface.
func (c *Client) reconcileDuplicate(ctx context.Context, clientOrderID string) (*Order, error) {
	existing, findErr := c.FindOrder(ctx, clientOrderID)
	if findErr != nil {
		return nil, apperrors.DuplicateOrder(clientOrderID).WithCause(findErr)
	}

	c.log.Info("duplicate client order ID resolved to existing order", logger.Fields(
		logger.FieldOrderID, existing.ID,
		"client_order_id", clientOrderID,
		"status", existing.Status,
	))
	return existing, nil
}

// FindOrder looks up an order by its client order ID. It is the reconciliation
// path after an ambiguous submission failure: a NOT_FOUND result means the
// order never reached the broker and resubmitting is safe.
func (c *Client) FindOrder(ctx context.Context, clientOrderID string) (*Order, error) {
	ctx, span := c.tracer.Start(ctx, "broker.FindOrder",
		trace.WithAttributes(attribute.String("order.client_order_id", clientOrderID)))
	defer span.End()

	path := "/v2/orders:by_client_order_id?client_order_id=" + url.QueryEscape(clientOrderID)
	var order Order
	if err := c.do(ctx, http.MethodGet, path, nil, &order, ""); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return &order, nil
}

// GetAsset fetches the broker's metadata for a symbol. A 404 surfaces as a
// NOT_FOUND AppError for unknown symbols.
func (c *Client) GetAsset(ctx context.Context, symbol string) (*Asset, error) {
	ctx, span := c.tracer.Start(ctx, "broker.GetAsset",
		trace.WithAttributes(attribute.String("asset.symbol", symbol)))
	defer span.End()

	var asset Asset
	if err := c.do(ctx, http.MethodGet, "/v2/assets/"+url.PathEscape(symbol), nil, &asset, symbol); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return &asset, nil
}

// GetAccount fetches the trading account snapshot.
func (c *Client) GetAccount(ctx context.Context) (*Account, error) {
	ctx, span := c.tracer.Start(ctx, "broker.GetAccount")
	defer span.End()

	var account Account
	if err := c.do(ctx, http.MethodGet, "/v2/account", nil, &account, ""); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return &account, nil
}

// CheckHealth authenticates against the broker and verifies the account is
// funded. It never returns an error: failures are reported in the Health value.
func (c *Client) CheckHealth(ctx context.Context) *Health {
	start := time.Now()
	account, err := c.GetAccount(ctx)
	latency := float64(time.Since(start).Microseconds()) / 1000.0

	if err != nil {
		c.log.Error("broker health check failed", logger.Fields(
			"latency_ms", latency,
			"error", err.Error(),
		))
		return &Health{Healthy: false, LatencyMS: latency, Error: err.Error()}
	}

	h := &Health{
		Healthy:   account.Equity.IsPositive(),
		AccountID: account.ID,
		Status:    account.Status,
		Equity:    account.Equity,
		LatencyMS: latency,
	}
	if !h.Healthy {
		h.Error = "account equity is zero or negative"
		c.log.Error("broker account not funded", logger.Fields(
			"equity", account.Equity.String(),
			"latency_ms", latency,
		))
		return h
	}

	c.log.Info("broker healthy", logger.Fields(
		"equity", account.Equity.String(),
		"account_id", account.ID,
		"status", account.Status,
		"latency_ms", latency,
	))
	return h
}

// do executes a request and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any, symbol string) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if c.bulkhead != nil {
		return c.bulkhead.Execute(ctx, func() error {
			return c.doRequest(ctx, method, path, body, out, symbol)
		})
	}
	return c.doRequest(ctx, method, path, body, out, symbol)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, out any, symbol string) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return apperrors.Internal(fmt.Errorf("encode request: %w", err))
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reqBody)
	if err != nil {
		return apperrors.Internal(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("APCA-API-KEY-ID", c.config.APIKey)
	req.Header.Set("APCA-API-SECRET-KEY", c.config.APISecret)
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return normalizeTransport(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.ConnectionFailed("alpaca").WithCause(fmt.Errorf("read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return normalizeStatus(resp.StatusCode, respBody, symbol)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return apperrors.ExternalServiceError("alpaca", fmt.Errorf("decode response: %w", err))
		}
	}
	return nil
}
