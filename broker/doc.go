// Package broker provides a typed HTTP client for the Alpaca paper-trading
// REST API. Every non-2xx response and transport failure is normalized into
// an *errors.AppError so the resilience layer can classify it, which means
// callers never see raw HTTP status handling.
//
// Order submission generates an idempotent client order ID so a retried
// submission can be reconciled with FindOrder after an ambiguous failure.
package broker
