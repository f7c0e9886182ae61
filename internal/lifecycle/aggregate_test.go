package lifecycle

import (
	"testing"

	"pattern-signal-engine/internal/patterns"
)

func resolvedTrade(outcome Outcome, pnl, r float64, days int) *SimulatedTrade {
	return &SimulatedTrade{
		Symbol:        "AAPL",
		RegimeAtEntry: "trending",
		Pattern: &PatternContext{
			Type:      patterns.BullishEngulfing,
			Direction: patterns.Bullish,
			Timeframe: "1d",
		},
		Status:     TradeResolved,
		Outcome:    outcome,
		PnLPercent: pnl,
		RMultiple:  r,
		DaysHeld:   days,
	}
}

func testKey() PerformanceKey {
	return PerformanceKey{
		PatternType: patterns.BullishEngulfing,
		Direction:   patterns.Bullish,
		Timeframe:   "1d",
		Regime:      "trending",
	}
}

func TestComputePerformanceMixedOutcomes(t *testing.T) {
	trades := []*SimulatedTrade{
		resolvedTrade(OutcomeHitTarget1, 20, 2, 3),
		resolvedTrade(OutcomeHitTarget2, 30, 3, 5),
		resolvedTrade(OutcomeHitStop, -10, -1, 2),
	}

	perf := ComputePerformance(testKey(), trades)

	if perf.TotalTrades != 3 || perf.Wins != 2 || perf.Losses != 1 {
		t.Fatalf("counts = %d/%d/%d, want 3/2/1", perf.TotalTrades, perf.Wins, perf.Losses)
	}
	if perf.WinRate != 66.67 {
		t.Errorf("win rate = %v, want 66.67", perf.WinRate)
	}
	if perf.AvgWinPct != 25 {
		t.Errorf("avg win = %v, want 25", perf.AvgWinPct)
	}
	if perf.AvgLossPct != 10 {
		t.Errorf("avg loss = %v, want 10", perf.AvgLossPct)
	}
	// gross win 50 over gross loss 10
	if perf.ProfitFactor != 5 {
		t.Errorf("profit factor = %v, want 5", perf.ProfitFactor)
	}
	if perf.BestTradePct != 30 || perf.WorstTradePct != -10 {
		t.Errorf("best/worst = %v/%v, want 30/-10", perf.BestTradePct, perf.WorstTradePct)
	}
	if perf.TotalPnLPct != 40 {
		t.Errorf("total pnl = %v, want 40", perf.TotalPnLPct)
	}
	// (2 + 3 - 1) / 3
	if perf.AvgRMultiple != 1.33 {
		t.Errorf("avg r = %v, want 1.33", perf.AvgRMultiple)
	}
	if perf.AvgDaysHeld != 3.33 {
		t.Errorf("avg days = %v, want 3.33", perf.AvgDaysHeld)
	}
}

// Expired trades contribute to totals but never to the win rate denominator.
func TestComputePerformanceExpiredExcludedFromWinRate(t *testing.T) {
	trades := []*SimulatedTrade{
		resolvedTrade(OutcomeHitTarget1, 20, 2, 3),
		resolvedTrade(OutcomeExpired, 1.5, 0, 10),
		resolvedTrade(OutcomeExpired, -0.5, 0, 10),
	}

	perf := ComputePerformance(testKey(), trades)
	if perf.TotalTrades != 3 || perf.ExpiredCount != 2 {
		t.Fatalf("totals = %d expired %d, want 3/2", perf.TotalTrades, perf.ExpiredCount)
	}
	if perf.WinRate != 100 {
		t.Errorf("win rate = %v, want 100 over the single decided trade", perf.WinRate)
	}
}

func TestComputePerformanceProfitFactorCap(t *testing.T) {
	trades := []*SimulatedTrade{
		resolvedTrade(OutcomeHitTarget1, 20, 2, 3),
		resolvedTrade(OutcomeHitTarget1, 10, 1, 2),
	}

	perf := ComputePerformance(testKey(), trades)
	if perf.ProfitFactor != 99 {
		t.Errorf("profit factor with no losses = %v, want capped 99", perf.ProfitFactor)
	}
}

func TestComputePerformanceEmpty(t *testing.T) {
	perf := ComputePerformance(testKey(), nil)
	if perf.TotalTrades != 0 || perf.WinRate != 0 || perf.ProfitFactor != 0 {
		t.Errorf("empty set should be all zeros, got %+v", perf)
	}
}

func TestComputePerformanceSkipsOpenTrades(t *testing.T) {
	open := resolvedTrade(OutcomeOpen, 0, 0, 1)
	open.Status = TradeActive

	perf := ComputePerformance(testKey(), []*SimulatedTrade{
		open,
		resolvedTrade(OutcomeHitStop, -10, -1, 2),
	})
	if perf.TotalTrades != 1 || perf.Losses != 1 {
		t.Errorf("counts = %d/%d, want 1 total 1 loss", perf.TotalTrades, perf.Losses)
	}
}

func TestConditionalWinRates(t *testing.T) {
	aligned1 := resolvedTrade(OutcomeHitTarget1, 20, 2, 3)
	aligned1.Pattern.TimeframeAlignment = AlignmentAllAligned
	aligned2 := resolvedTrade(OutcomeHitStop, -10, -1, 2)
	aligned2.Pattern.TimeframeAlignment = AlignmentAllAligned
	breakout := resolvedTrade(OutcomeHitTarget1, 15, 1.5, 2)
	breakout.Pattern.VolumeProfile = VolumeProfileBreakout

	perf := ComputePerformance(testKey(), []*SimulatedTrade{aligned1, aligned2, breakout})

	if perf.AlignedTrades != 2 || perf.AlignedWinRate != 50 {
		t.Errorf("aligned = %d at %v%%, want 2 at 50%%", perf.AlignedTrades, perf.AlignedWinRate)
	}
	if perf.BreakoutTrades != 1 || perf.BreakoutWinRate != 100 {
		t.Errorf("breakout = %d at %v%%, want 1 at 100%%", perf.BreakoutTrades, perf.BreakoutWinRate)
	}
	if perf.ConflictingTrades != 0 {
		t.Errorf("conflicting = %d, want 0", perf.ConflictingTrades)
	}
}

func TestKeyFor(t *testing.T) {
	trade := resolvedTrade(OutcomeHitTarget1, 20, 2, 3)
	key, ok := KeyFor(trade)
	if !ok {
		t.Fatal("trade with pattern context must produce a key")
	}
	if key != testKey() {
		t.Errorf("key = %+v, want %+v", key, testKey())
	}

	trade.Pattern = nil
	if _, ok := KeyFor(trade); ok {
		t.Error("trade without pattern context must not aggregate")
	}
}
