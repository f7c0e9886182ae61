package lifecycle

import (
	"math"
	"time"

	"pattern-signal-engine/internal/market"
	"pattern-signal-engine/internal/risk"
)

// AdvanceTrade replays candles after the trade's activation time in
// chronological order, one bar at a time, until the trade resolves or the
// bars run out. Returns true when the trade resolved during this call.
//
// The same-bar stop/target tie-break compares the bar's open against the
// midpoint of entry and stop. This is a modeled approximation; the true
// intrabar path is unobservable from OHLC alone.
func AdvanceTrade(t *SimulatedTrade, candles []market.Candle) bool {
	if t.Status == TradeResolved {
		return false
	}
	if t.Status == TradePending {
		t.Status = TradeActive
	}

	for _, bar := range candles {
		if !bar.Time.After(t.ActivatedAt) {
			continue
		}

		t.DaysHeld++
		t.HighestSeen = math.Max(t.HighestSeen, bar.High)
		t.LowestSeen = math.Min(t.LowestSeen, bar.Low)

		if outcome, exit := resolveBar(t, bar); outcome != OutcomeOpen {
			finalizeTrade(t, outcome, exit, bar.Time)
			return true
		}

		if t.DaysHeld >= t.MaxExpirationDays {
			finalizeTrade(t, OutcomeExpired, bar.Close, bar.Time)
			return true
		}
	}

	return false
}

// resolveBar tests stop and target against the bar's intrabar extremes.
func resolveBar(t *SimulatedTrade, bar market.Candle) (Outcome, float64) {
	long := t.Direction == risk.Long

	var stopHit, target1Hit, target2Hit bool
	if long {
		stopHit = bar.Low <= t.Stop
		target1Hit = bar.High >= t.Target1
		target2Hit = t.Target2 != nil && bar.High >= *t.Target2
	} else {
		stopHit = bar.High >= t.Stop
		target1Hit = bar.Low <= t.Target1
		target2Hit = t.Target2 != nil && bar.Low <= *t.Target2
	}

	if stopHit && (target1Hit || target2Hit) {
		if stopFirst(t, bar, long) {
			return OutcomeHitStop, t.Stop
		}
		if target2Hit {
			return OutcomeHitTarget2, *t.Target2
		}
		return OutcomeHitTarget1, t.Target1
	}
	if stopHit {
		return OutcomeHitStop, t.Stop
	}
	if target2Hit {
		return OutcomeHitTarget2, *t.Target2
	}
	if target1Hit {
		return OutcomeHitTarget1, t.Target1
	}
	return OutcomeOpen, 0
}

// stopFirst applies the midpoint tie-break when both stop and a target are
// crossable within one bar: if the open sits on the stop side of the
// entry/stop midpoint, the stop is deemed to have triggered first.
func stopFirst(t *SimulatedTrade, bar market.Candle, long bool) bool {
	midpoint := (t.Entry + t.Stop) / 2
	if long {
		return bar.Open < midpoint
	}
	return bar.Open > midpoint
}

func finalizeTrade(t *SimulatedTrade, outcome Outcome, exitPrice float64, at time.Time) {
	t.Status = TradeResolved
	t.Outcome = outcome
	t.ExitPrice = &exitPrice
	resolvedAt := at
	t.ResolvedAt = &resolvedAt

	if t.Entry != 0 {
		pnl := (exitPrice - t.Entry) / t.Entry * 100
		if t.Direction == risk.Short {
			pnl = -pnl
		}
		t.PnLPercent = math.Round(pnl*100) / 100
	}
	if t.ShareCount > 0 {
		t.PnLDollar = math.Round(t.PnLPercent/100*t.Entry*float64(t.ShareCount)*100) / 100
	}

	riskPerShare := math.Abs(t.Entry - t.Stop)
	if riskPerShare > 0 {
		perShare := exitPrice - t.Entry
		if t.Direction == risk.Short {
			perShare = -perShare
		}
		t.RMultiple = math.Round(perShare/riskPerShare*100) / 100
	}

	t.MaxDrawdownPercent = maxDrawdown(t)
}

// maxDrawdown is the worst adverse excursion relative to entry.
func maxDrawdown(t *SimulatedTrade) float64 {
	if t.Entry == 0 {
		return 0
	}
	var adverse float64
	if t.Direction == risk.Long {
		adverse = (t.Entry - t.LowestSeen) / t.Entry * 100
	} else {
		adverse = (t.HighestSeen - t.Entry) / t.Entry * 100
	}
	if adverse < 0 {
		adverse = 0
	}
	return math.Round(adverse*100) / 100
}
