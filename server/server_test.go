package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/autoquant/alphakit/logger"
	"github.com/autoquant/alphakit/observability"
	"github.com/autoquant/alphakit/server"
	"github.com/autoquant/alphakit/server/endpoint"
	"github.com/autoquant/alphakit/server/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) *server.Server {
	t.Helper()
	cfg := server.Config{Host: "127.0.0.1", Port: 0, Enabled: true}
	cfg.ApplyDefaults()
	return server.New(cfg, logger.NewDefault("server-test"))
}

func TestConfig_Defaults(t *testing.T) {
	var cfg server.Config
	cfg.ApplyDefaults()

	if cfg.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.ReadTimeout != 15 || cfg.WriteTimeout != 15 || cfg.IdleTimeout != 60 {
		t.Fatalf("unexpected timeout defaults: %d/%d/%d", cfg.ReadTimeout, cfg.WriteTimeout, cfg.IdleTimeout)
	}
	if cfg.MaxBodySize != "10MB" {
		t.Fatalf("expected default max body size 10MB, got %s", cfg.MaxBodySize)
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		t.Fatal("expected default CORS origins")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*server.Config)
	}{
		{"negative port", func(c *server.Config) { c.Port = -1 }},
		{"port too large", func(c *server.Config) { c.Port = 70000 }},
		{"negative read timeout", func(c *server.Config) { c.ReadTimeout = -1 }},
		{"negative write timeout", func(c *server.Config) { c.WriteTimeout = -1 }},
		{"negative idle timeout", func(c *server.Config) { c.IdleTimeout = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg server.Config
			cfg.ApplyDefaults()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestServer_RegisterDefaultEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.RegisterDefaultEndpoints("alphakit-test", func(ctx context.Context) []observability.Health {
		return []observability.Health{{Name: "broker", Status: observability.HealthStatusUp}}
	})

	paths := []string{"/health", "/healthz", "/ready", "/version", "/info", "/metrics"}
	for _, path := range paths {
		rr := httptest.NewRecorder()
		s.GinEngine().ServeHTTP(rr, httptest.NewRequest("GET", path, http.NoBody))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rr.Code)
		}
	}
}

func TestServer_HealthReportsDownComponent(t *testing.T) {
	s := newTestServer(t)
	s.RegisterDefaultEndpoints("alphakit-test", func(ctx context.Context) []observability.Health {
		return []observability.Health{
			{Name: "broker", Status: observability.HealthStatusDown, Message: "circuit open"},
		}
	})

	rr := httptest.NewRecorder()
	s.GinEngine().ServeHTTP(rr, httptest.NewRequest("GET", "/health", http.NoBody))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "down" {
		t.Fatalf("expected status down, got %v", body["status"])
	}
}

func TestServer_ReadinessNotReady(t *testing.T) {
	s := newTestServer(t)
	s.GinEngine().GET("/ready", endpoint.Readiness("alphakit-test", func(ctx context.Context) []observability.Health {
		return []observability.Health{{Name: "broker", Status: observability.HealthStatusDown}}
	}))

	rr := httptest.NewRecorder()
	s.GinEngine().ServeHTTP(rr, httptest.NewRequest("GET", "/ready", http.NoBody))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestServer_StartStop(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestServer_ExtraMiddlewareServesRequests(t *testing.T) {
	cfg := server.Config{Host: "127.0.0.1", Port: 0, Enabled: true}
	cfg.ApplyDefaults()

	metrics, err := observability.NewMetrics(noop.NewMeterProvider().Meter("server-test"), "alphakit-test")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	s := server.New(cfg, logger.NewDefault("server-test"), middleware.RequestMetrics(metrics))
	s.RegisterDefaultEndpoints("alphakit-test", nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer func() { _ = s.Stop(context.Background()) }()

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 through instrumented stack, got %d", resp.StatusCode)
	}
}

func TestServer_HandleMountsHandler(t *testing.T) {
	s := newTestServer(t)
	s.Handle("/custom/", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer func() { _ = s.Stop(context.Background()) }()
}
