package lifecycle

import (
	"math"
	"time"
)

// UpdatePattern advances a tracked pattern against the latest price. It
// returns true when the pattern transitioned into a terminal status during
// this pass. Terminal records are never mutated.
//
// Ordering matters: the expiry check runs before target/stop checks, so an
// already-expired pattern is never reclassified even if the price qualifies.
func UpdatePattern(p *TrackedPattern, currentPrice float64, now time.Time) bool {
	if p.Status.IsTerminal() {
		return false
	}

	p.CurrentPrice = currentPrice
	p.HighWater = math.Max(p.HighWater, currentPrice)
	p.LowWater = math.Min(p.LowWater, currentPrice)

	if !now.Before(p.ExpiresAt) {
		resolvePattern(p, StatusExpired, currentPrice, now)
		return true
	}

	bullish := p.isBullishResolution()

	if bullish {
		switch {
		case currentPrice >= p.Target:
			resolvePattern(p, StatusHitTarget, currentPrice, now)
			return true
		case currentPrice <= p.Stop:
			resolvePattern(p, StatusHitStop, currentPrice, now)
			return true
		case p.Status == StatusActive && currentPrice > p.Entry:
			p.Status = StatusPlayingOut
		}
	} else {
		switch {
		case currentPrice <= p.Target:
			resolvePattern(p, StatusHitTarget, currentPrice, now)
			return true
		case currentPrice >= p.Stop:
			resolvePattern(p, StatusHitStop, currentPrice, now)
			return true
		case p.Status == StatusActive && currentPrice < p.Entry:
			p.Status = StatusPlayingOut
		}
	}

	return false
}

// InvalidatePattern marks a non-terminal pattern invalidated, e.g. when its
// originating setup de-confirms before resolution.
func InvalidatePattern(p *TrackedPattern, currentPrice float64, now time.Time) bool {
	if p.Status.IsTerminal() {
		return false
	}
	resolvePattern(p, StatusInvalidated, currentPrice, now)
	return true
}

// isBullishResolution decides which direction-aware rule set applies.
// Neutral patterns place their target above entry, so they resolve with the
// bullish rules; a neutral pattern with a target below entry resolves
// bearish.
func (p *TrackedPattern) isBullishResolution() bool {
	switch p.Direction {
	case "bullish":
		return true
	case "bearish":
		return false
	default:
		return p.Target >= p.Entry
	}
}

func resolvePattern(p *TrackedPattern, status Status, price float64, now time.Time) {
	p.Status = status
	resolvedAt := now
	p.ResolvedAt = &resolvedAt
	p.ResolutionPrice = &price

	correct := status == StatusHitTarget
	p.WasCorrect = &correct

	pnl := 0.0
	if p.Entry != 0 {
		pnl = (price - p.Entry) / p.Entry * 100
		if !p.isBullishResolution() {
			pnl = -pnl
		}
	}
	pnl = math.Round(pnl*100) / 100
	p.ActualPnLPercent = &pnl
}
