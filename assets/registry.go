package assets

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/autoquant/alphakit/broker"
	apperrors "github.com/autoquant/alphakit/errors"
	"github.com/autoquant/alphakit/logger"
	"github.com/autoquant/alphakit/resilience"
)

// Fetcher retrieves asset metadata from the broker. *broker.Client satisfies
// it; tests substitute a fake.
type Fetcher interface {
	GetAsset(ctx context.Context, symbol string) (*broker.Asset, error)
}

// RegistryOptions wires a registry's collaborators.
type RegistryOptions struct {
	// Fetcher is required.
	Fetcher Fetcher
	// Breaker optionally guards fetches. Nil disables breaker gating.
	Breaker *resilience.CircuitBreaker
	// Retry is the fetch retry policy. The zero value gets the registry
	// default: 3 attempts, 500ms initial backoff doubling up to 30s.
	Retry resilience.RetryPolicy
	// TTL is the cache validity window. Defaults to DefaultTTL.
	TTL time.Duration
	// Log defaults to a registry-scoped logger.
	Log *logger.Logger
	// Clock supplies the current time. Tests inject a fake to age entries.
	Clock func() time.Time
}

// Stats is a snapshot of cache effectiveness counters.
type Stats struct {
	Hits    int     `json:"hits"`
	Misses  int     `json:"misses"`
	HitRate float64 `json:"hit_rate"`
	Entries int     `json:"entries"`
}

// Registry is a TTL cache of asset metadata keyed by normalized symbol.
// Lookups that miss fetch through the resilience layer and populate the
// cache; expired entries count as misses and are refetched.
type Registry struct {
	fetcher Fetcher
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryPolicy
	ttl     time.Duration
	log     *logger.Logger
	clock   func() time.Time

	mu      sync.Mutex
	entries map[string]Metadata
	hits    int
	misses  int
}

// NewRegistry creates an empty registry.
func NewRegistry(opts RegistryOptions) (*Registry, error) {
	if opts.Fetcher == nil {
		return nil, apperrors.Validation("asset registry requires a fetcher")
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = defaultFetchPolicy()
	}
	if opts.Log == nil {
		opts.Log = logger.NewDefault("assets")
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Registry{
		fetcher: opts.Fetcher,
		breaker: opts.Breaker,
		retry:   opts.Retry,
		ttl:     opts.TTL,
		log:     opts.Log.WithComponent("asset_registry"),
		clock:   opts.Clock,
		entries: make(map[string]Metadata),
	}, nil
}

// defaultFetchPolicy paces metadata fetches more patiently than order
// submission: metadata is not latency-critical, so backoff starts at half a
// second and is allowed to grow to half a minute.
func defaultFetchPolicy() resilience.RetryPolicy {
	return resilience.RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		BackoffFactor:  2.0,
		MaxBackoff:     30 * time.Second,
		Jitter:         0.1,
	}
}

// Get returns metadata for a symbol, fetching on a miss or an expired entry.
func (r *Registry) Get(ctx context.Context, symbol string) (Metadata, error) {
	key := NormalizeSymbol(symbol)
	if key == "" {
		return Metadata{}, apperrors.Validation("symbol must not be empty")
	}

	r.mu.Lock()
	if entry, ok := r.entries[key]; ok && entry.Valid(r.clock()) {
		r.hits++
		r.mu.Unlock()
		return entry, nil
	}
	r.misses++
	r.mu.Unlock()

	r.log.Debug("asset cache miss", logger.Fields(logger.FieldSymbol, key))

	asset, err := resilience.Execute(ctx, r.breaker, r.retry, func(ctx context.Context) (*broker.Asset, error) {
		return r.fetcher.GetAsset(ctx, key)
	})
	if err != nil {
		return Metadata{}, err
	}

	entry := fromAsset(asset, r.ttl, r.clock())

	r.mu.Lock()
	r.entries[key] = entry
	r.mu.Unlock()
	return entry, nil
}

// Prefetch warms the cache for a batch of symbols. Each symbol resolves
// independently; the returned map carries a nil for every symbol that was
// cached and the fetch error for every one that was not.
func (r *Registry) Prefetch(ctx context.Context, symbols []string) map[string]error {
	results := make(map[string]error, len(symbols))
	for _, symbol := range symbols {
		key := NormalizeSymbol(symbol)
		_, err := r.Get(ctx, symbol)
		results[key] = err
	}
	return results
}

// Invalidate drops a symbol's entry. It reports whether one was present.
func (r *Registry) Invalidate(symbol string) bool {
	key := NormalizeSymbol(symbol)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[key]; !ok {
		return false
	}
	delete(r.entries, key)
	return true
}

// InvalidateAll empties the cache and returns how many entries were dropped.
func (r *Registry) InvalidateAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.entries)
	r.entries = make(map[string]Metadata)
	return n
}

// Len counts entries that are still within their TTL.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.validEntriesLocked())
}

// Stats returns the hit/miss counters. Entries counts only valid entries.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Stats{
		Hits:    r.hits,
		Misses:  r.misses,
		Entries: len(r.validEntriesLocked()),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// diskEntry is the persisted form of a cache entry. TTL travels as seconds;
// FetchedAt is deliberately absent so loading re-stamps freshness.
type diskEntry struct {
	Metadata
	TTLSeconds float64 `json:"ttl_seconds"`
}

// Persist writes the valid entries to a JSON snapshot, creating parent
// directories as needed. Expired entries are not worth carrying across a
// restart and are skipped.
func (r *Registry) Persist(path string) error {
	r.mu.Lock()
	snapshot := make(map[string]diskEntry)
	for key, entry := range r.validEntriesLocked() {
		snapshot[key] = diskEntry{Metadata: entry, TTLSeconds: entry.TTL.Seconds()}
	}
	r.mu.Unlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return apperrors.Internal(err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperrors.Internal(err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperrors.Internal(err)
	}

	r.log.Info("asset cache persisted", logger.Fields("path", path, "entries", len(snapshot)))
	return nil
}

// LoadFromDisk replaces the cache with a persisted snapshot and returns how
// many entries were loaded. Loaded entries are stamped with the current time
// so they serve a full TTL before refetching.
func (r *Registry) LoadFromDisk(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, apperrors.NotFound("asset snapshot", path).WithCause(err)
	}

	var snapshot map[string]diskEntry
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return 0, apperrors.Validation("asset snapshot is not valid JSON").WithCause(err)
	}

	now := r.clock()
	entries := make(map[string]Metadata, len(snapshot))
	for key, de := range snapshot {
		entry := de.Metadata
		entry.FetchedAt = now
		entry.TTL = time.Duration(de.TTLSeconds * float64(time.Second))
		if entry.TTL <= 0 {
			entry.TTL = r.ttl
		}
		entries[NormalizeSymbol(key)] = entry
	}

	r.mu.Lock()
	r.entries = entries
	r.mu.Unlock()

	r.log.Info("asset cache loaded", logger.Fields("path", path, "entries", len(entries)))
	return len(entries), nil
}

// validEntriesLocked filters the cache to entries within their TTL.
// Callers must hold r.mu.
func (r *Registry) validEntriesLocked() map[string]Metadata {
	now := r.clock()
	valid := make(map[string]Metadata, len(r.entries))
	for key, entry := range r.entries {
		if entry.Valid(now) {
			valid[key] = entry
		}
	}
	return valid
}
