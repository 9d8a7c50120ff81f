package margin

import (
	"sync"
	"time"

	"github.com/autoquant/alphakit/logger"
)

// Alert is a margin level transition worth telling someone about.
type Alert struct {
	Level   Level     `json:"level"`
	Ratio   float64   `json:"ratio"`
	Snap    Snapshot  `json:"snapshot"`
	FiredAt time.Time `json:"fired_at"`
}

// Dispatcher delivers margin alerts. Implementations can fan out to Slack,
// PagerDuty or a message bus.
type Dispatcher interface {
	Dispatch(alert Alert)
}

// LogDispatcher writes alerts to the structured log and keeps an in-memory
// history for the stats endpoint.
type LogDispatcher struct {
	mu      sync.Mutex
	log     *logger.Logger
	history []Alert
}

// NewLogDispatcher creates a dispatcher backed by the given logger.
func NewLogDispatcher(log *logger.Logger) *LogDispatcher {
	if log == nil {
		log = logger.NewDefault("margin")
	}
	return &LogDispatcher{log: log.WithComponent("margin")}
}

// Dispatch records the alert and logs it at a severity matching its level.
func (d *LogDispatcher) Dispatch(alert Alert) {
	d.mu.Lock()
	d.history = append(d.history, alert)
	d.mu.Unlock()

	fields := logger.Fields(
		"level", alert.Level.String(),
		"ratio", alert.Ratio,
		"equity", alert.Snap.Equity.String(),
		"buying_power", alert.Snap.BuyingPower.String(),
	)
	switch alert.Level {
	case LevelSafe, LevelWarn:
		d.log.Warn("margin alert", fields)
	default:
		d.log.Error("margin alert", fields)
	}
}

// History returns a copy of all dispatched alerts.
func (d *LogDispatcher) History() []Alert {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Alert, len(d.history))
	copy(out, d.history)
	return out
}
