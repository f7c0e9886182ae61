package lifecycle

import (
	"testing"
	"time"

	"pattern-signal-engine/internal/market"
	"pattern-signal-engine/internal/patterns"
)

func trackedBullish(t *testing.T) *TrackedPattern {
	t.Helper()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return NewTrackedPattern("AAPL", market.Timeframe1d, patterns.PatternResult{
		Type:       patterns.BullishEngulfing,
		Direction:  patterns.Bullish,
		Confidence: 80,
		Entry:      50,
		Stop:       46,
		Target:     61,
	}, now)
}

func TestUpdatePatternHitsTarget(t *testing.T) {
	p := trackedBullish(t)
	now := p.DetectedAt.Add(24 * time.Hour)

	if done := UpdatePattern(p, 61, now); !done {
		t.Fatal("reaching the target must resolve the pattern")
	}
	if p.Status != StatusHitTarget {
		t.Errorf("status = %s, want hit_target", p.Status)
	}
	if p.WasCorrect == nil || !*p.WasCorrect {
		t.Error("hit target should be recorded correct")
	}
	// (61-50)/50 = 22%
	if p.ActualPnLPercent == nil || *p.ActualPnLPercent != 22 {
		t.Errorf("pnl = %v, want 22", p.ActualPnLPercent)
	}
	if p.ResolvedAt == nil || !p.ResolvedAt.Equal(now) {
		t.Errorf("resolved at = %v, want %v", p.ResolvedAt, now)
	}
}

func TestUpdatePatternHitsStop(t *testing.T) {
	p := trackedBullish(t)
	now := p.DetectedAt.Add(24 * time.Hour)

	if done := UpdatePattern(p, 45, now); !done {
		t.Fatal("breaching the stop must resolve the pattern")
	}
	if p.Status != StatusHitStop {
		t.Errorf("status = %s, want hit_stop", p.Status)
	}
	if p.WasCorrect == nil || *p.WasCorrect {
		t.Error("hit stop should be recorded incorrect")
	}
	// (45-50)/50 = -10%
	if *p.ActualPnLPercent != -10 {
		t.Errorf("pnl = %v, want -10", *p.ActualPnLPercent)
	}
}

func TestUpdatePatternExpiryBeatsTarget(t *testing.T) {
	p := trackedBullish(t)
	// price qualifies for the target, but the pattern is already past expiry
	late := p.ExpiresAt.Add(time.Hour)

	if done := UpdatePattern(p, 61, late); !done {
		t.Fatal("expired pattern must resolve")
	}
	if p.Status != StatusExpired {
		t.Errorf("status = %s, want expired even at a target-qualifying price", p.Status)
	}
}

func TestUpdatePatternPlayingOut(t *testing.T) {
	p := trackedBullish(t)
	now := p.DetectedAt.Add(24 * time.Hour)

	if done := UpdatePattern(p, 55, now); done {
		t.Fatal("favorable but unresolved move must not terminate")
	}
	if p.Status != StatusPlayingOut {
		t.Errorf("status = %s, want playing_out", p.Status)
	}
	if p.HighWater != 55 {
		t.Errorf("high water = %v, want 55", p.HighWater)
	}
}

func TestUpdatePatternTerminalRecordImmutable(t *testing.T) {
	p := trackedBullish(t)
	now := p.DetectedAt.Add(24 * time.Hour)
	UpdatePattern(p, 61, now)

	resolvedAt := *p.ResolvedAt
	price := *p.ResolutionPrice

	if done := UpdatePattern(p, 10, now.Add(time.Hour)); done {
		t.Error("terminal pattern must report no transition")
	}
	if p.Status != StatusHitTarget || !p.ResolvedAt.Equal(resolvedAt) || *p.ResolutionPrice != price {
		t.Error("terminal record was mutated")
	}
}

func TestUpdatePatternBearish(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	p := NewTrackedPattern("TSLA", market.Timeframe1d, patterns.PatternResult{
		Type:      patterns.DoubleTop,
		Direction: patterns.Bearish,
		Entry:     100,
		Stop:      110,
		Target:    80,
	}, now)

	if done := UpdatePattern(p, 80, now.Add(time.Hour)); !done {
		t.Fatal("bearish pattern reaching its lower target must resolve")
	}
	if p.Status != StatusHitTarget {
		t.Errorf("status = %s, want hit_target", p.Status)
	}
	// short-side gain: -(80-100)/100 = +20%
	if *p.ActualPnLPercent != 20 {
		t.Errorf("pnl = %v, want 20", *p.ActualPnLPercent)
	}
}

func TestUpdatePatternNeutralResolvesByTargetSide(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	p := NewTrackedPattern("SPY", market.Timeframe1d, patterns.PatternResult{
		Type:      patterns.BollingerSqueeze,
		Direction: patterns.Neutral,
		Entry:     100,
		Stop:      95,
		Target:    105, // above entry, resolves with bullish rules
	}, now)

	UpdatePattern(p, 105, now.Add(time.Hour))
	if p.Status != StatusHitTarget {
		t.Errorf("neutral with target above entry should hit target, got %s", p.Status)
	}
}

func TestInvalidatePattern(t *testing.T) {
	p := trackedBullish(t)
	now := p.DetectedAt.Add(time.Hour)

	if done := InvalidatePattern(p, 49, now); !done {
		t.Fatal("active pattern must invalidate")
	}
	if p.Status != StatusInvalidated {
		t.Errorf("status = %s, want invalidated", p.Status)
	}
	if InvalidatePattern(p, 49, now.Add(time.Hour)) {
		t.Error("already-terminal pattern must not invalidate again")
	}
}

func TestNewTrackedPatternExpiryFromTimeframe(t *testing.T) {
	p := trackedBullish(t)
	want := p.DetectedAt.Add(market.Timeframe1d.PatternTTL())
	if !p.ExpiresAt.Equal(want) {
		t.Errorf("expires at = %v, want %v", p.ExpiresAt, want)
	}
	if p.HighWater != p.Entry || p.LowWater != p.Entry {
		t.Error("water marks must start at entry")
	}
}
