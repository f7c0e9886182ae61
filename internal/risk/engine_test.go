package risk

import (
	"errors"
	"strings"
	"testing"
)

func TestAssessLongSizing(t *testing.T) {
	e := NewEngine(DefaultPolicy())

	a, err := e.Assess(Params{
		Direction:     Long,
		Entry:         100,
		Stop:          95,
		Target1:       110,
		PortfolioSize: 100000,
		RiskPercent:   2,
	})
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}

	if a.RiskPerShare != 5 {
		t.Errorf("risk per share = %v, want 5", a.RiskPerShare)
	}
	if a.RiskAmount != 2000 {
		t.Errorf("risk amount = %v, want 2000", a.RiskAmount)
	}
	if a.ShareCount != 400 {
		t.Errorf("share count = %v, want 400", a.ShareCount)
	}
	if a.PositionSize != 40000 {
		t.Errorf("position size = %v, want 40000", a.PositionSize)
	}
	if a.PositionPercent != 40 {
		t.Errorf("position percent = %v, want 40", a.PositionPercent)
	}
	if a.RiskReward1 != 2 {
		t.Errorf("risk reward = %v, want 2", a.RiskReward1)
	}

	// 40% of portfolio breaches the 25% cap
	if a.PassesRiskCheck {
		t.Error("40%% position must fail the 25%% cap")
	}
	foundCap := false
	for _, v := range a.Violations {
		if strings.Contains(v, "25% cap") {
			foundCap = true
		}
	}
	if !foundCap {
		t.Errorf("expected position cap violation, got %v", a.Violations)
	}
}

func TestAssessShareCountFloors(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	a, err := e.Assess(Params{
		Direction:     Long,
		Entry:         100,
		Stop:          97,
		Target1:       110,
		PortfolioSize: 10000,
		RiskPercent:   1,
	})
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	// 100 / 3 = 33.33, floored
	if a.ShareCount != 33 {
		t.Errorf("share count = %v, want 33", a.ShareCount)
	}
}

func TestAssessShortDirection(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	a, err := e.Assess(Params{
		Direction:     Short,
		Entry:         100,
		Stop:          105,
		Target1:       90,
		PortfolioSize: 100000,
		RiskPercent:   1,
	})
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if a.RiskPerShare != 5 || a.RiskReward1 != 2 {
		t.Errorf("short sizing = %v risk, %v rr", a.RiskPerShare, a.RiskReward1)
	}
}

func TestAssessRejectsWrongSideStop(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	cases := []struct {
		name   string
		params Params
		field  string
	}{
		{
			name:   "long stop above entry",
			params: Params{Direction: Long, Entry: 100, Stop: 105, Target1: 110, PortfolioSize: 10000},
			field:  "stop",
		},
		{
			name:   "long target below entry",
			params: Params{Direction: Long, Entry: 100, Stop: 95, Target1: 99, PortfolioSize: 10000},
			field:  "target_1",
		},
		{
			name:   "short stop below entry",
			params: Params{Direction: Short, Entry: 100, Stop: 95, Target1: 90, PortfolioSize: 10000},
			field:  "stop",
		},
		{
			name:   "invalid direction",
			params: Params{Direction: "sideways", Entry: 100, Stop: 95, Target1: 110, PortfolioSize: 10000},
			field:  "direction",
		},
		{
			name:   "portfolio below minimum",
			params: Params{Direction: Long, Entry: 100, Stop: 95, Target1: 110, PortfolioSize: 50},
			field:  "portfolio_size",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Assess(tc.params)
			if err == nil {
				t.Fatal("expected validation error")
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if vErr.Field != tc.field {
				t.Errorf("field = %q, want %q", vErr.Field, tc.field)
			}
		})
	}
}

func TestAssessDefaultsRiskPercent(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	a, err := e.Assess(Params{
		Direction:     Long,
		Entry:         100,
		Stop:          95,
		Target1:       110,
		PortfolioSize: 100000,
	})
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if a.RiskPercent != 1 {
		t.Errorf("risk percent = %v, want policy default 1", a.RiskPercent)
	}
}

func TestKellyPercent(t *testing.T) {
	// 60% win rate at 2:1 payoff: 60 - 40/2 = 40
	if got := kellyPercent(60, 2); got != 40 {
		t.Errorf("kelly(60, 2) = %v, want 40", got)
	}
	// negative edge floors at zero
	if got := kellyPercent(20, 1); got != 0 {
		t.Errorf("kelly(20, 1) = %v, want 0", got)
	}
	if got := kellyPercent(60, 0); got != 0 {
		t.Errorf("kelly with zero rr = %v, want 0", got)
	}
}

func TestAssessKellySizing(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	winRate := 60.0
	a, err := e.Assess(Params{
		Direction:     Long,
		Entry:         100,
		Stop:          95,
		Target1:       110,
		PortfolioSize: 100000,
		RiskPercent:   1,
		WinRate:       &winRate,
	})
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if a.KellyPercent == nil || *a.KellyPercent != 40 {
		t.Fatalf("kelly percent = %v, want 40", a.KellyPercent)
	}
	if *a.KellySize != 40000 {
		t.Errorf("kelly size = %v, want 40000", *a.KellySize)
	}
}

func TestAssessWarningsOnThinEdge(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	a, err := e.Assess(Params{
		Direction:     Long,
		Entry:         100,
		Stop:          95,
		Target1:       101, // 0.2 reward:risk
		PortfolioSize: 10000,
		RiskPercent:   1,
	})
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if a.PassesRiskCheck != true {
		t.Error("warnings alone must not fail the risk check")
	}
	if len(a.Warnings) == 0 {
		t.Error("expected a thin edge warning")
	}
}
