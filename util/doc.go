// Package util provides small parsing and formatting helpers shared across
// the trading stack: human-readable size strings and secret masking for logs.
package util
