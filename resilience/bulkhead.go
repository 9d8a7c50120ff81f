package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

var (
	ErrBulkheadFull    = errors.New("bulkhead is full")
	ErrBulkheadTimeout = errors.New("bulkhead wait timeout")
)

// BulkheadConfig configures a bulkhead.
type BulkheadConfig struct {
	// Name identifies this bulkhead for metrics/logging.
	Name string
	// MaxConcurrent caps the number of in-flight calls.
	MaxConcurrent int
	// MaxWait is how long a caller queues for a slot. 0 means reject
	// immediately when full.
	MaxWait time.Duration
	// OnReject fires when a call is turned away, full or timed out.
	OnReject func(name string)
}

// DefaultBulkheadConfig returns sensible defaults.
func DefaultBulkheadConfig(name string) BulkheadConfig {
	return BulkheadConfig{
		Name:          name,
		MaxConcurrent: 10,
	}
}

// BulkheadCounts is a snapshot of bulkhead activity.
type BulkheadCounts struct {
	InUse    int    `json:"in_use"`
	Capacity int    `json:"capacity"`
	Rejected uint64 `json:"rejected"`
}

// Bulkhead caps the number of concurrent calls against a single remote
// resource. The broker client uses one so a slow API cannot absorb every
// goroutine in the process while the breaker is still closed.
type Bulkhead struct {
	config   BulkheadConfig
	slots    chan struct{}
	rejected atomic.Uint64
}

// NewBulkhead creates a new bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}
	return &Bulkhead{
		config: config,
		slots:  make(chan struct{}, config.MaxConcurrent),
	}
}

// Execute runs fn inside the bulkhead. When no slot frees up within MaxWait
// it returns ErrBulkheadFull (no wait configured) or ErrBulkheadTimeout.
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	if err := b.acquire(ctx); err != nil {
		b.rejected.Add(1)
		if b.config.OnReject != nil {
			b.config.OnReject(b.config.Name)
		}
		return err
	}
	defer b.release()
	return fn()
}

// ExecuteWithResult runs a function that returns a value.
func ExecuteWithResult[T any](b *Bulkhead, ctx context.Context, fn func() (T, error)) (T, error) {
	var result T
	err := b.Execute(ctx, func() error {
		var fnErr error
		result, fnErr = fn()
		return fnErr
	})
	return result, err
}

func (b *Bulkhead) acquire(ctx context.Context) error {
	select {
	case b.slots <- struct{}{}:
		return nil
	default:
	}

	if b.config.MaxWait <= 0 {
		return ErrBulkheadFull
	}

	timer := time.NewTimer(b.config.MaxWait)
	defer timer.Stop()

	select {
	case b.slots <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrBulkheadTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bulkhead) release() {
	<-b.slots
}

// Available returns the number of free slots.
func (b *Bulkhead) Available() int {
	return b.config.MaxConcurrent - len(b.slots)
}

// InUse returns the number of slots currently held.
func (b *Bulkhead) InUse() int {
	return len(b.slots)
}

// MaxConcurrent returns the configured capacity.
func (b *Bulkhead) MaxConcurrent() int {
	return b.config.MaxConcurrent
}

// Counts returns a snapshot of current occupancy and lifetime rejections.
func (b *Bulkhead) Counts() BulkheadCounts {
	return BulkheadCounts{
		InUse:    len(b.slots),
		Capacity: b.config.MaxConcurrent,
		Rejected: b.rejected.Load(),
	}
}
