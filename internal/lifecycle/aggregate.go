package lifecycle

import (
	"math"
	"time"

	"pattern-signal-engine/internal/market"
	"pattern-signal-engine/internal/patterns"
	"pattern-signal-engine/internal/regime"
)

// PerformanceKey groups resolved trades for aggregation.
type PerformanceKey struct {
	PatternType patterns.PatternType `json:"pattern_type"`
	Direction   patterns.Direction   `json:"direction"`
	Timeframe   market.Timeframe     `json:"timeframe"`
	Regime      regime.Regime        `json:"regime"`
}

// PatternPerformance holds the running statistics for one key. It is always
// recomputed from the full set of resolved trades, never patched
// incrementally.
type PatternPerformance struct {
	Key PerformanceKey `json:"key"`

	TotalTrades  int `json:"total_trades"`
	Wins         int `json:"wins"`
	Losses       int `json:"losses"`
	ExpiredCount int `json:"expired_count"`

	WinRate       float64 `json:"win_rate"`
	AvgWinPct     float64 `json:"avg_win_pct"`
	AvgLossPct    float64 `json:"avg_loss_pct"`
	AvgRMultiple  float64 `json:"avg_r_multiple"`
	BestTradePct  float64 `json:"best_trade_pct"`
	WorstTradePct float64 `json:"worst_trade_pct"`
	TotalPnLPct   float64 `json:"total_pnl_pct"`
	ProfitFactor  float64 `json:"profit_factor"`
	AvgDaysHeld   float64 `json:"avg_days_held"`

	AlignedWinRate     float64 `json:"aligned_win_rate"`
	AlignedTrades      int     `json:"aligned_trades"`
	ConflictingWinRate float64 `json:"conflicting_win_rate"`
	ConflictingTrades  int     `json:"conflicting_trades"`
	BreakoutWinRate    float64 `json:"breakout_win_rate"`
	BreakoutTrades     int     `json:"breakout_trades"`

	UpdatedAt time.Time `json:"updated_at"`
}

// KeyFor extracts the aggregation key from a trade's pattern context. The
// second return is false for trades without pattern metadata; those are not
// aggregated.
func KeyFor(t *SimulatedTrade) (PerformanceKey, bool) {
	if t.Pattern == nil {
		return PerformanceKey{}, false
	}
	return PerformanceKey{
		PatternType: t.Pattern.Type,
		Direction:   t.Pattern.Direction,
		Timeframe:   t.Pattern.Timeframe,
		Regime:      t.RegimeAtEntry,
	}, true
}

// ComputePerformance recomputes the statistics row for a key from every
// resolved trade sharing it.
func ComputePerformance(key PerformanceKey, trades []*SimulatedTrade) *PatternPerformance {
	perf := &PatternPerformance{Key: key, UpdatedAt: time.Now().UTC()}

	var grossWinPct, grossLossPct, sumR, sumDays float64
	var decided int
	first := true

	for _, t := range trades {
		if t.Status != TradeResolved {
			continue
		}
		perf.TotalTrades++
		sumDays += float64(t.DaysHeld)
		perf.TotalPnLPct += t.PnLPercent

		if first || t.PnLPercent > perf.BestTradePct {
			perf.BestTradePct = t.PnLPercent
		}
		if first || t.PnLPercent < perf.WorstTradePct {
			perf.WorstTradePct = t.PnLPercent
		}
		first = false

		switch {
		case t.Outcome.IsWin():
			perf.Wins++
			grossWinPct += t.PnLPercent
			sumR += t.RMultiple
			decided++
		case t.Outcome == OutcomeHitStop:
			perf.Losses++
			grossLossPct += math.Abs(t.PnLPercent)
			sumR += t.RMultiple
			decided++
		case t.Outcome == OutcomeExpired:
			perf.ExpiredCount++
		}
	}

	if decided > 0 {
		perf.WinRate = round2(float64(perf.Wins) / float64(decided) * 100)
		perf.AvgRMultiple = round2(sumR / float64(decided))
	}
	if perf.Wins > 0 {
		perf.AvgWinPct = round2(grossWinPct / float64(perf.Wins))
	}
	if perf.Losses > 0 {
		perf.AvgLossPct = round2(grossLossPct / float64(perf.Losses))
	}
	if perf.TotalTrades > 0 {
		perf.AvgDaysHeld = round2(sumDays / float64(perf.TotalTrades))
	}
	perf.TotalPnLPct = round2(perf.TotalPnLPct)

	// Profit factor: no losses with at least one win is capped at 99 by
	// convention rather than reported as infinite.
	switch {
	case grossLossPct > 0:
		perf.ProfitFactor = round2(grossWinPct / grossLossPct)
	case perf.Wins > 0:
		perf.ProfitFactor = 99
	}

	perf.AlignedWinRate, perf.AlignedTrades = conditionalWinRate(trades, func(t *SimulatedTrade) bool {
		return t.Pattern != nil && t.Pattern.TimeframeAlignment == AlignmentAllAligned
	})
	perf.ConflictingWinRate, perf.ConflictingTrades = conditionalWinRate(trades, func(t *SimulatedTrade) bool {
		return t.Pattern != nil && t.Pattern.TimeframeAlignment == AlignmentConflicting
	})
	perf.BreakoutWinRate, perf.BreakoutTrades = conditionalWinRate(trades, func(t *SimulatedTrade) bool {
		return t.Pattern != nil && t.Pattern.VolumeProfile == VolumeProfileBreakout
	})

	return perf
}

// conditionalWinRate computes the win rate over the subset matching the
// filter, with expired trades excluded from the denominator.
func conditionalWinRate(trades []*SimulatedTrade, match func(*SimulatedTrade) bool) (float64, int) {
	var wins, decided, total int
	for _, t := range trades {
		if t.Status != TradeResolved || !match(t) {
			continue
		}
		total++
		if t.Outcome.IsWin() {
			wins++
			decided++
		} else if t.Outcome == OutcomeHitStop {
			decided++
		}
	}
	if decided == 0 {
		return 0, total
	}
	return round2(float64(wins) / float64(decided) * 100), total
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
