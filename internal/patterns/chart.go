package patterns

import (
	"fmt"
	"math"

	"pattern-signal-engine/internal/market"
)

const (
	minChartBars    = 30
	swingLookback   = 5
	swingTolerance  = 0.02 // double top/bottom peak similarity
	outerTolerance  = 0.03 // head & shoulders shoulder similarity
	minSwingSpacing = 10
	maxSwingSpacing = 60
)

// swingPoint marks a local extreme relative to a symmetric lookback window.
type swingPoint struct {
	index int
	price float64
}

// detectChartPatterns finds multi-swing structures: double tops/bottoms and
// head & shoulders variants.
func (d *Detector) detectChartPatterns(candles []market.Candle) []PatternResult {
	if len(candles) < minChartBars {
		return nil
	}

	highs := findSwingHighs(candles)
	lows := findSwingLows(candles)

	var results []PatternResult

	if r, ok := d.findDoubleTop(candles, highs, lows); ok {
		results = append(results, r)
	}
	if r, ok := d.findDoubleBottom(candles, highs, lows); ok {
		results = append(results, r)
	}
	if r, ok := d.findHeadAndShoulders(candles, highs, lows); ok {
		results = append(results, r)
	}
	if r, ok := d.findInverseHeadAndShoulders(candles, highs, lows); ok {
		results = append(results, r)
	}

	return results
}

// findSwingHighs returns points that exceed every bar within swingLookback
// bars on both sides.
func findSwingHighs(candles []market.Candle) []swingPoint {
	var swings []swingPoint
	for i := swingLookback; i < len(candles)-swingLookback; i++ {
		isSwing := true
		for j := i - swingLookback; j <= i+swingLookback; j++ {
			if j == i {
				continue
			}
			if candles[j].High >= candles[i].High {
				isSwing = false
				break
			}
		}
		if isSwing {
			swings = append(swings, swingPoint{index: i, price: candles[i].High})
		}
	}
	return swings
}

func findSwingLows(candles []market.Candle) []swingPoint {
	var swings []swingPoint
	for i := swingLookback; i < len(candles)-swingLookback; i++ {
		isSwing := true
		for j := i - swingLookback; j <= i+swingLookback; j++ {
			if j == i {
				continue
			}
			if candles[j].Low <= candles[i].Low {
				isSwing = false
				break
			}
		}
		if isSwing {
			swings = append(swings, swingPoint{index: i, price: candles[i].Low})
		}
	}
	return swings
}

// findDoubleTop looks for the two most recent swing highs of similar
// magnitude with the neckline at the lowest intervening low. The pattern
// fires only while the close is still near the neckline, i.e. the breakdown
// is not already played out.
func (d *Detector) findDoubleTop(candles []market.Candle, highs, lows []swingPoint) (PatternResult, bool) {
	if len(highs) < 2 {
		return PatternResult{}, false
	}

	first, second := highs[len(highs)-2], highs[len(highs)-1]
	spacing := second.index - first.index
	if spacing < minSwingSpacing || spacing > maxSwingSpacing {
		return PatternResult{}, false
	}
	if first.price == 0 || math.Abs(second.price-first.price)/first.price > swingTolerance {
		return PatternResult{}, false
	}

	neckline := lowestLowBetween(candles, first.index, second.index)
	peak := math.Max(first.price, second.price)
	height := peak - neckline
	if height <= 0 {
		return PatternResult{}, false
	}

	close := candles[len(candles)-1].Close
	if math.Abs(close-neckline) > height*0.2 {
		return PatternResult{}, false
	}

	similarity := 1 - math.Abs(second.price-first.price)/first.price
	confidence := 60 + math.Min(25, similarity*25)

	return PatternResult{
		Type:        DoubleTop,
		Direction:   Bearish,
		Confidence:  confidence,
		Description: fmt.Sprintf("Double top at %.4f with neckline %.4f", peak, neckline),
		StartIndex:  first.index,
		EndIndex:    len(candles) - 1,
		StartTime:   candles[first.index].Time,
		EndTime:     candles[len(candles)-1].Time,
		WinRateHint: WinRateHint(DoubleTop),
		Entry:       close,
		Stop:        peak,
		Target:      neckline - height,
	}, true
}

func (d *Detector) findDoubleBottom(candles []market.Candle, highs, lows []swingPoint) (PatternResult, bool) {
	if len(lows) < 2 {
		return PatternResult{}, false
	}

	first, second := lows[len(lows)-2], lows[len(lows)-1]
	spacing := second.index - first.index
	if spacing < minSwingSpacing || spacing > maxSwingSpacing {
		return PatternResult{}, false
	}
	if first.price == 0 || math.Abs(second.price-first.price)/first.price > swingTolerance {
		return PatternResult{}, false
	}

	neckline := highestHighBetween(candles, first.index, second.index)
	trough := math.Min(first.price, second.price)
	height := neckline - trough
	if height <= 0 {
		return PatternResult{}, false
	}

	close := candles[len(candles)-1].Close
	if math.Abs(close-neckline) > height*0.2 {
		return PatternResult{}, false
	}

	similarity := 1 - math.Abs(second.price-first.price)/first.price
	confidence := 60 + math.Min(25, similarity*25)

	return PatternResult{
		Type:        DoubleBottom,
		Direction:   Bullish,
		Confidence:  confidence,
		Description: fmt.Sprintf("Double bottom at %.4f with neckline %.4f", trough, neckline),
		StartIndex:  first.index,
		EndIndex:    len(candles) - 1,
		StartTime:   candles[first.index].Time,
		EndTime:     candles[len(candles)-1].Time,
		WinRateHint: WinRateHint(DoubleBottom),
		Entry:       close,
		Stop:        trough,
		Target:      neckline + height,
	}, true
}

// findHeadAndShoulders requires three consecutive swing highs where the
// middle one exceeds both outer swings and the outer swings match within 3%.
func (d *Detector) findHeadAndShoulders(candles []market.Candle, highs, lows []swingPoint) (PatternResult, bool) {
	if len(highs) < 3 {
		return PatternResult{}, false
	}

	left, head, right := highs[len(highs)-3], highs[len(highs)-2], highs[len(highs)-1]
	if head.price <= left.price || head.price <= right.price {
		return PatternResult{}, false
	}
	if left.price == 0 || math.Abs(right.price-left.price)/left.price > outerTolerance {
		return PatternResult{}, false
	}

	neckline := lowestLowBetween(candles, left.index, right.index)
	height := head.price - neckline
	if height <= 0 {
		return PatternResult{}, false
	}

	close := candles[len(candles)-1].Close
	prominence := (head.price - math.Max(left.price, right.price)) / head.price
	confidence := 62 + math.Min(23, prominence*200)

	return PatternResult{
		Type:        HeadAndShoulders,
		Direction:   Bearish,
		Confidence:  confidence,
		Description: fmt.Sprintf("Head & shoulders with head %.4f and neckline %.4f", head.price, neckline),
		StartIndex:  left.index,
		EndIndex:    len(candles) - 1,
		StartTime:   candles[left.index].Time,
		EndTime:     candles[len(candles)-1].Time,
		WinRateHint: WinRateHint(HeadAndShoulders),
		Entry:       close,
		Stop:        head.price,
		Target:      neckline - height,
	}, true
}

func (d *Detector) findInverseHeadAndShoulders(candles []market.Candle, highs, lows []swingPoint) (PatternResult, bool) {
	if len(lows) < 3 {
		return PatternResult{}, false
	}

	left, head, right := lows[len(lows)-3], lows[len(lows)-2], lows[len(lows)-1]
	if head.price >= left.price || head.price >= right.price {
		return PatternResult{}, false
	}
	if left.price == 0 || math.Abs(right.price-left.price)/left.price > outerTolerance {
		return PatternResult{}, false
	}

	neckline := highestHighBetween(candles, left.index, right.index)
	height := neckline - head.price
	if height <= 0 {
		return PatternResult{}, false
	}

	close := candles[len(candles)-1].Close
	prominence := (math.Min(left.price, right.price) - head.price) / head.price
	confidence := 62 + math.Min(23, prominence*200)

	return PatternResult{
		Type:        InverseHeadAndShoulders,
		Direction:   Bullish,
		Confidence:  confidence,
		Description: fmt.Sprintf("Inverse head & shoulders with head %.4f and neckline %.4f", head.price, neckline),
		StartIndex:  left.index,
		EndIndex:    len(candles) - 1,
		StartTime:   candles[left.index].Time,
		EndTime:     candles[len(candles)-1].Time,
		WinRateHint: WinRateHint(InverseHeadAndShoulders),
		Entry:       close,
		Stop:        head.price,
		Target:      neckline + height,
	}, true
}

func lowestLowBetween(candles []market.Candle, start, end int) float64 {
	low := candles[start].Low
	for i := start; i <= end && i < len(candles); i++ {
		if candles[i].Low < low {
			low = candles[i].Low
		}
	}
	return low
}

func highestHighBetween(candles []market.Candle, start, end int) float64 {
	high := candles[start].High
	for i := start; i <= end && i < len(candles); i++ {
		if candles[i].High > high {
			high = candles[i].High
		}
	}
	return high
}
