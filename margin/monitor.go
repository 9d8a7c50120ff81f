package margin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/autoquant/alphakit/broker"
	"github.com/autoquant/alphakit/logger"
	"github.com/autoquant/alphakit/resilience"
)

// MonitorOptions wires a Monitor to its collaborators.
type MonitorOptions struct {
	Client     *broker.Client
	Breaker    *resilience.CircuitBreaker
	Retry      resilience.RetryPolicy
	FSM        *FSM
	Dispatcher Dispatcher
	Log        *logger.Logger

	// PollInterval is how often the account is re-snapshotted. Default 5s.
	PollInterval time.Duration
}

// Monitor polls the broker account and drives the margin FSM. Account fetches
// go through the retry wrapper and circuit breaker, so a flapping broker
// degrades the monitor instead of hammering the API.
type Monitor struct {
	opts MonitorOptions

	mu      sync.Mutex
	last    Snapshot
	hasSnap bool
}

// NewMonitor creates a margin monitor.
func NewMonitor(opts MonitorOptions) (*Monitor, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("margin: broker client is required")
	}
	if opts.FSM == nil {
		fsm, err := NewFSM(Config{})
		if err != nil {
			return nil, err
		}
		opts.FSM = fsm
	}
	if opts.Log == nil {
		opts.Log = logger.NewDefault("margin")
	}
	opts.Log = opts.Log.WithComponent("margin_monitor")
	if opts.Dispatcher == nil {
		opts.Dispatcher = NewLogDispatcher(opts.Log)
	}
	if opts.Breaker == nil {
		opts.Breaker = resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("margin"))
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = 5 * time.Second
	}
	return &Monitor{opts: opts}, nil
}

// Run polls until the context is cancelled. The first snapshot is fetched
// immediately so the FSM starts from real data.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.poll(ctx); err != nil {
		m.opts.Log.Warn("initial account snapshot failed", logger.Fields(logger.FieldError, err.Error()))
	}

	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := m.poll(ctx); err != nil {
				m.opts.Log.Warn("account snapshot failed", logger.Fields(logger.FieldError, err.Error()))
			}
		}
	}
}

// poll fetches one account snapshot through the resilience layer.
func (m *Monitor) poll(ctx context.Context) error {
	account, err := resilience.Execute(ctx, m.opts.Breaker, m.opts.Retry,
		func(ctx context.Context) (*broker.Account, error) {
			return m.opts.Client.GetAccount(ctx)
		})
	if err != nil {
		return err
	}
	m.OnSnapshot(SnapshotFromAccount(account))
	return nil
}

// OnSnapshot feeds a snapshot into the FSM and dispatches an alert when the
// level changes and the rate limit allows it.
func (m *Monitor) OnSnapshot(snap Snapshot) {
	m.mu.Lock()
	m.last = snap
	m.hasSnap = true
	m.mu.Unlock()

	ratio := snap.EquityRatio()
	level, changed := m.opts.FSM.Update(ratio)
	if !changed {
		return
	}

	m.opts.Log.Info("margin level transition", logger.Fields(
		logger.FieldState, level.String(),
		"ratio", ratio,
	))
	if m.opts.FSM.ShouldFire(level) {
		m.opts.Dispatcher.Dispatch(Alert{
			Level:   level,
			Ratio:   ratio,
			Snap:    snap,
			FiredAt: time.Now().UTC(),
		})
	}
}

// Last returns the most recent snapshot, if any.
func (m *Monitor) Last() (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, m.hasSnap
}

// Level returns the current alert level.
func (m *Monitor) Level() Level {
	return m.opts.FSM.State()
}
