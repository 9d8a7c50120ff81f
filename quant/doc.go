// Package quant provides fixed-income pricing and return analytics: bond
// present/future value, dirty and clean prices, duration, a Newton-Raphson
// YTM solver with bisection fallback, and trailing-CAGR term structures
// built from log returns.
//
// All functions are pure and operate on float64 slices, so callers can
// reprice a schedule many times without rebuilding it.
package quant
