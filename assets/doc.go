// Package assets caches broker asset metadata behind a TTL. Symbol lookups
// hit an in-memory cache first; misses fetch through the resilience layer so
// a flaky broker cannot stall a trading decision. The cache survives
// restarts through JSON snapshots, and loaded entries are stamped fresh so
// a stale snapshot never serves past its TTL.
package assets
