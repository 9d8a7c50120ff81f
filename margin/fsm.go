package margin

import (
	"fmt"
	"sync"
	"time"
)

// Level is the alert severity, ordered from safe to liquidation.
type Level int

const (
	LevelSafe Level = iota
	LevelWarn
	LevelCritical
	LevelMarginCall
	LevelLiquidation
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelSafe:
		return "safe"
	case LevelWarn:
		return "warn"
	case LevelCritical:
		return "critical"
	case LevelMarginCall:
		return "margin_call"
	case LevelLiquidation:
		return "liquidation"
	default:
		return "unknown"
	}
}

// levelOrder lists all levels from safe to most severe.
var levelOrder = []Level{LevelSafe, LevelWarn, LevelCritical, LevelMarginCall, LevelLiquidation}

// Band is a two-sided hysteresis threshold. The equity ratio entering below
// Enter moves into the level; it must recover above Exit to leave it.
type Band struct {
	Enter float64 `yaml:"enter" mapstructure:"enter"`
	Exit  float64 `yaml:"exit" mapstructure:"exit"`
}

// Config holds the hysteresis bands and alert rate limiting for the FSM.
type Config struct {
	Warn        Band `yaml:"warn" mapstructure:"warn"`
	Critical    Band `yaml:"critical" mapstructure:"critical"`
	MarginCall  Band `yaml:"margin_call" mapstructure:"margin_call"`
	Liquidation Band `yaml:"liquidation" mapstructure:"liquidation"`

	// AlertInterval is the minimum time between alerts at the same level.
	AlertInterval time.Duration `yaml:"alert_interval" mapstructure:"alert_interval"`

	// Clock overrides time.Now for tests.
	Clock func() time.Time `yaml:"-" mapstructure:"-"`
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Warn == (Band{}) {
		c.Warn = Band{Enter: 0.90, Exit: 0.92}
	}
	if c.Critical == (Band{}) {
		c.Critical = Band{Enter: 0.80, Exit: 0.83}
	}
	if c.MarginCall == (Band{}) {
		c.MarginCall = Band{Enter: 0.70, Exit: 0.73}
	}
	if c.Liquidation == (Band{}) {
		c.Liquidation = Band{Enter: 0.60, Exit: 0.63}
	}
	if c.AlertInterval == 0 {
		c.AlertInterval = time.Minute
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	bands := map[string]Band{
		"warn":        c.Warn,
		"critical":    c.Critical,
		"margin_call": c.MarginCall,
		"liquidation": c.Liquidation,
	}
	for name, b := range bands {
		if b.Exit <= b.Enter {
			return fmt.Errorf("margin.%s: exit threshold %.4f must exceed enter threshold %.4f", name, b.Exit, b.Enter)
		}
	}
	if !(c.Warn.Enter > c.Critical.Enter && c.Critical.Enter > c.MarginCall.Enter && c.MarginCall.Enter > c.Liquidation.Enter) {
		return fmt.Errorf("margin bands must be strictly ordered: warn > critical > margin_call > liquidation")
	}
	return nil
}

func (c *Config) band(l Level) Band {
	switch l {
	case LevelWarn:
		return c.Warn
	case LevelCritical:
		return c.Critical
	case LevelMarginCall:
		return c.MarginCall
	case LevelLiquidation:
		return c.Liquidation
	default:
		return Band{}
	}
}

// FSM is a margin alert state machine with hysteresis. Safe for concurrent use.
type FSM struct {
	mu        sync.Mutex
	config    Config
	state     Level
	lastFired map[Level]time.Time
}

// NewFSM creates an FSM starting in the safe state.
func NewFSM(cfg Config) (*FSM, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &FSM{
		config:    cfg,
		state:     LevelSafe,
		lastFired: make(map[Level]time.Time),
	}, nil
}

// State returns the current alert level.
func (f *FSM) State() Level {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Update feeds a new equity ratio into the machine. It returns the new level
// and true when a transition occurred, or the current level and false when
// the state is unchanged.
func (f *FSM) Update(ratio float64) (Level, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := f.computeState(ratio)
	if next == f.state {
		return f.state, false
	}
	f.state = next
	return next, true
}

// computeState resolves the level for a ratio given the current state.
// Escalation wins: the most severe band whose enter threshold the ratio is
// below becomes the new state. Recovery steps down one level at a time and
// only after the ratio clears the current level's exit threshold.
func (f *FSM) computeState(ratio float64) Level {
	for i := len(levelOrder) - 1; i >= 1; i-- {
		level := levelOrder[i]
		if ratio < f.config.band(level).Enter {
			return level
		}
	}

	if f.state != LevelSafe {
		if ratio >= f.config.band(f.state).Exit {
			return levelOrder[f.state-1]
		}
	}

	return f.state
}

// ShouldFire reports whether an alert at this level may fire now, enforcing
// the per-level rate limit. A true result consumes the budget.
func (f *FSM) ShouldFire(level Level) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.config.Clock()
	if last, ok := f.lastFired[level]; ok && now.Sub(last) < f.config.AlertInterval {
		return false
	}
	f.lastFired[level] = now
	return true
}
