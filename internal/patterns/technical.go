package patterns

import (
	"fmt"
	"math"

	"pattern-signal-engine/internal/indicators"
	"pattern-signal-engine/internal/market"
)

const (
	minTechnicalBars = 50
	minCrossBars     = 200
)

// detectTechnicals evaluates indicator-based setups on the series tail.
func (d *Detector) detectTechnicals(candles []market.Candle) []PatternResult {
	if len(candles) < minTechnicalBars {
		return nil
	}

	var results []PatternResult

	if r, ok := d.findMACross(candles); ok {
		results = append(results, r)
	}
	if r, ok := d.findRSIExtreme(candles); ok {
		results = append(results, r)
	}
	if r, ok := d.findBollingerSqueeze(candles); ok {
		results = append(results, r)
	}
	if r, ok := d.findVolumeBreakout(candles); ok {
		results = append(results, r)
	}
	if r, ok := d.findMACDCross(candles); ok {
		results = append(results, r)
	}

	return results
}

// findMACross detects a golden or death cross of SMA50 over SMA200 between
// the last two bars. Needs 200 bars of history plus one for the prior value.
func (d *Detector) findMACross(candles []market.Candle) (PatternResult, bool) {
	if len(candles) < minCrossBars+1 {
		return PatternResult{}, false
	}

	fastNow := indicators.SMA(candles, 50)
	slowNow := indicators.SMA(candles, 200)
	prev := candles[:len(candles)-1]
	fastPrev := indicators.SMA(prev, 50)
	slowPrev := indicators.SMA(prev, 200)
	if slowNow == 0 || slowPrev == 0 {
		return PatternResult{}, false
	}

	n := len(candles)
	cur := candles[n-1]
	separation := math.Abs(fastNow-slowNow) / slowNow * 100
	confidence := 60 + math.Min(25, separation*50)

	if fastPrev <= slowPrev && fastNow > slowNow {
		entry := cur.Close
		stop := slowNow
		risk := entry - stop
		if risk <= 0 {
			return PatternResult{}, false
		}
		return d.technicalResult(candles, PatternResult{
			Type:        GoldenCross,
			Direction:   Bullish,
			Confidence:  confidence,
			Description: "Golden cross: SMA50 crossed above SMA200",
			Entry:       entry,
			Stop:        stop,
			Target:      entry + 2*risk,
		}), true
	}
	if fastPrev >= slowPrev && fastNow < slowNow {
		entry := cur.Close
		stop := slowNow
		risk := stop - entry
		if risk <= 0 {
			return PatternResult{}, false
		}
		return d.technicalResult(candles, PatternResult{
			Type:        DeathCross,
			Direction:   Bearish,
			Confidence:  confidence,
			Description: "Death cross: SMA50 crossed below SMA200",
			Entry:       entry,
			Stop:        stop,
			Target:      entry - 2*risk,
		}), true
	}
	return PatternResult{}, false
}

// findRSIExtreme fires when RSI-14 is past 30/70; confidence scales with how
// far past the threshold it sits.
func (d *Detector) findRSIExtreme(candles []market.Candle) (PatternResult, bool) {
	rsi := indicators.RSI(candles, 14)
	n := len(candles)
	cur := candles[n-1]
	prev := candles[n-2]

	if rsi < 30 && rsi > 0 {
		confidence := 55 + math.Min(30, (30-rsi)*2)
		entry, stop, target := bullishLevels(cur, prev)
		return d.technicalResult(candles, PatternResult{
			Type:        RSIOversold,
			Direction:   Bullish,
			Confidence:  confidence,
			Description: fmt.Sprintf("RSI oversold at %.1f", rsi),
			Entry:       entry,
			Stop:        stop,
			Target:      target,
		}), true
	}
	if rsi > 70 {
		confidence := 55 + math.Min(30, (rsi-70)*2)
		entry, stop, target := bearishLevels(cur, prev)
		return d.technicalResult(candles, PatternResult{
			Type:        RSIOverbought,
			Direction:   Bearish,
			Confidence:  confidence,
			Description: fmt.Sprintf("RSI overbought at %.1f", rsi),
			Entry:       entry,
			Stop:        stop,
			Target:      target,
		}), true
	}
	return PatternResult{}, false
}

// findBollingerSqueeze compares the current bandwidth against the trailing
// 20-bar average bandwidth; a squeeze below 60% of the average signals a
// pending volatility expansion with no directional bias.
func (d *Detector) findBollingerSqueeze(candles []market.Candle) (PatternResult, bool) {
	n := len(candles)
	if n < 40 {
		return PatternResult{}, false
	}

	current := indicators.BandwidthAt(candles, n, 20, 2)
	if current == 0 {
		return PatternResult{}, false
	}

	sum := 0.0
	count := 0
	for end := n - 20; end < n; end++ {
		bw := indicators.BandwidthAt(candles, end, 20, 2)
		if bw > 0 {
			sum += bw
			count++
		}
	}
	if count == 0 {
		return PatternResult{}, false
	}
	avg := sum / float64(count)
	if avg == 0 || current >= avg*0.6 {
		return PatternResult{}, false
	}

	bands := indicators.Bollinger(candles, 20, 2)
	compression := 1 - current/avg
	confidence := 50 + math.Min(30, compression*60)

	return d.technicalResult(candles, PatternResult{
		Type:        BollingerSqueeze,
		Direction:   Neutral,
		Confidence:  confidence,
		Description: fmt.Sprintf("Bollinger squeeze: bandwidth %.1f%% of trailing average", current/avg*100),
		Entry:       candles[n-1].Close,
		Stop:        bands.Lower,
		Target:      bands.Upper,
	}), true
}

// findVolumeBreakout fires when the latest bar is bullish on more than twice
// the trailing 19-bar average volume.
func (d *Detector) findVolumeBreakout(candles []market.Candle) (PatternResult, bool) {
	n := len(candles)
	cur := candles[n-1]
	if !cur.IsBullish() {
		return PatternResult{}, false
	}

	avgVol := indicators.AvgVolume(candles[:n-1], 19)
	if avgVol == 0 || cur.Volume <= avgVol*2 {
		return PatternResult{}, false
	}

	ratio := cur.Volume / avgVol
	confidence := 58 + math.Min(27, (ratio-2)*9)
	entry := cur.Close
	stop := cur.Low
	risk := entry - stop
	if risk <= 0 {
		return PatternResult{}, false
	}

	return d.technicalResult(candles, PatternResult{
		Type:        VolumeBreakout,
		Direction:   Bullish,
		Confidence:  confidence,
		Description: fmt.Sprintf("Volume breakout: %.1fx average volume on a bullish bar", ratio),
		Entry:       entry,
		Stop:        stop,
		Target:      entry + 2*risk,
	}), true
}

// findMACDCross detects a sign change of EMA12−EMA26 between the last two bars.
func (d *Detector) findMACDCross(candles []market.Candle) (PatternResult, bool) {
	series := indicators.MACDSeries(candles, 12, 26)
	if len(series) < 2 {
		return PatternResult{}, false
	}

	prev := series[len(series)-2]
	cur := series[len(series)-1]
	n := len(candles)
	lastBar := candles[n-1]
	prevBar := candles[n-2]

	magnitude := math.Abs(cur)
	ref := lastBar.Close
	confidence := 55.0
	if ref != 0 {
		confidence = 55 + math.Min(25, magnitude/ref*2500)
	}

	if prev <= 0 && cur > 0 {
		entry, stop, target := bullishLevels(lastBar, prevBar)
		return d.technicalResult(candles, PatternResult{
			Type:        MACDBullishCross,
			Direction:   Bullish,
			Confidence:  confidence,
			Description: "MACD bullish cross: EMA12 moved above EMA26",
			Entry:       entry,
			Stop:        stop,
			Target:      target,
		}), true
	}
	if prev >= 0 && cur < 0 {
		entry, stop, target := bearishLevels(lastBar, prevBar)
		return d.technicalResult(candles, PatternResult{
			Type:        MACDBearishCross,
			Direction:   Bearish,
			Confidence:  confidence,
			Description: "MACD bearish cross: EMA12 moved below EMA26",
			Entry:       entry,
			Stop:        stop,
			Target:      target,
		}), true
	}
	return PatternResult{}, false
}

func (d *Detector) technicalResult(candles []market.Candle, r PatternResult) PatternResult {
	n := len(candles)
	r.StartIndex = n - 1
	r.EndIndex = n - 1
	r.StartTime = candles[n-1].Time
	r.EndTime = candles[n-1].Time
	r.WinRateHint = WinRateHint(r.Type)
	return r
}
