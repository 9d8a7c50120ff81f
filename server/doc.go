// Package server provides the HTTP surface for trading services using Gin
// with HTTP/2 cleartext (h2c) support on a single port.
//
// # Middleware
//
// Built-in middleware (server/middleware):
//
//   - Recovery: Panic recovery with structured logging
//   - RequestID: X-Request-Id generation and propagation
//   - CORS: Cross-origin resource sharing configuration
//   - BodySizeLimit: Request body size limits
//   - RequestLogger: Request logging with duration tracking
//
// # Endpoints
//
// Built-in endpoints (server/endpoint):
//
//   - /health: Component health aggregation, including circuit breakers
//   - /healthz: Kubernetes liveness probe
//   - /ready: Kubernetes readiness probe
//   - /version: Build version information
//   - /info: Service information with uptime
//   - /metrics: Runtime memory and goroutine counters
//   - /stats: Resilience and margin counters
package server
