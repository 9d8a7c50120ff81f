package margin

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testFSM(t *testing.T) *FSM {
	t.Helper()
	fsm, err := NewFSM(Config{})
	if err != nil {
		t.Fatalf("NewFSM: %v", err)
	}
	return fsm
}

func TestFSM_StartsSafe(t *testing.T) {
	fsm := testFSM(t)
	if got := fsm.State(); got != LevelSafe {
		t.Fatalf("initial state = %s, want safe", got)
	}
}

func TestFSM_EscalatesBelowEnterThreshold(t *testing.T) {
	fsm := testFSM(t)

	level, changed := fsm.Update(0.89)
	if !changed || level != LevelWarn {
		t.Fatalf("Update(0.89) = (%s, %v), want (warn, true)", level, changed)
	}

	level, changed = fsm.Update(0.79)
	if !changed || level != LevelCritical {
		t.Fatalf("Update(0.79) = (%s, %v), want (critical, true)", level, changed)
	}
}

func TestFSM_EscalatesStraightToWorstBand(t *testing.T) {
	fsm := testFSM(t)

	level, changed := fsm.Update(0.55)
	if !changed || level != LevelLiquidation {
		t.Fatalf("Update(0.55) = (%s, %v), want (liquidation, true)", level, changed)
	}
}

func TestFSM_HysteresisHoldsInsideBand(t *testing.T) {
	fsm := testFSM(t)
	fsm.Update(0.89) // warn

	// Oscillating between enter (0.90) and exit (0.92) must not transition.
	for _, ratio := range []float64{0.905, 0.915, 0.901, 0.919} {
		if level, changed := fsm.Update(ratio); changed {
			t.Fatalf("Update(%.3f) transitioned to %s inside the hysteresis band", ratio, level)
		}
	}
	if got := fsm.State(); got != LevelWarn {
		t.Fatalf("state = %s, want warn", got)
	}
}

func TestFSM_RecoversOneLevelPastExit(t *testing.T) {
	fsm := testFSM(t)
	fsm.Update(0.89) // warn

	level, changed := fsm.Update(0.92)
	if !changed || level != LevelSafe {
		t.Fatalf("Update(0.92) = (%s, %v), want (safe, true)", level, changed)
	}
}

func TestFSM_PartialRecoveryLandsInLowerBand(t *testing.T) {
	fsm := testFSM(t)
	fsm.Update(0.55) // liquidation

	// 0.65 is above the liquidation enter threshold but still below the
	// margin-call enter threshold, so the machine settles there.
	level, changed := fsm.Update(0.65)
	if !changed || level != LevelMarginCall {
		t.Fatalf("Update(0.65) = (%s, %v), want (margin_call, true)", level, changed)
	}
}

func TestFSM_ShouldFireRateLimitsPerLevel(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	fsm, err := NewFSM(Config{AlertInterval: time.Minute, Clock: clock.Now})
	if err != nil {
		t.Fatalf("NewFSM: %v", err)
	}

	if !fsm.ShouldFire(LevelWarn) {
		t.Fatal("first alert must fire")
	}
	if fsm.ShouldFire(LevelWarn) {
		t.Fatal("second alert within the interval must be suppressed")
	}
	// A different level has its own budget.
	if !fsm.ShouldFire(LevelCritical) {
		t.Fatal("other level must fire independently")
	}

	clock.Advance(61 * time.Second)
	if !fsm.ShouldFire(LevelWarn) {
		t.Fatal("alert must fire again after the interval elapses")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"exit below enter", func(c *Config) { c.Warn = Band{Enter: 0.90, Exit: 0.89} }, true},
		{"bands out of order", func(c *Config) {
			c.Warn = Band{Enter: 0.70, Exit: 0.72}
			c.MarginCall = Band{Enter: 0.90, Exit: 0.92}
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.ApplyDefaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSnapshot_EquityRatio(t *testing.T) {
	snap := Snapshot{
		Equity:     decimal.RequireFromString("85000"),
		LastEquity: decimal.RequireFromString("100000"),
	}
	if got := snap.EquityRatio(); got != 0.85 {
		t.Errorf("EquityRatio() = %v, want 0.85", got)
	}

	fresh := Snapshot{Equity: decimal.NewFromInt(1000)}
	if got := fresh.EquityRatio(); got != 1.0 {
		t.Errorf("EquityRatio() with zero baseline = %v, want 1.0", got)
	}
}

func TestSnapshot_MarginUtilization(t *testing.T) {
	snap := Snapshot{
		MaintenanceMargin: decimal.RequireFromString("25000"),
		PortfolioValue:    decimal.RequireFromString("100000"),
	}
	if got := snap.MarginUtilization(); got != 0.25 {
		t.Errorf("MarginUtilization() = %v, want 0.25", got)
	}

	empty := Snapshot{MaintenanceMargin: decimal.NewFromInt(10)}
	if got := empty.MarginUtilization(); got != 0.0 {
		t.Errorf("MarginUtilization() with zero portfolio = %v, want 0", got)
	}
}
