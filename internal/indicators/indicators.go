package indicators

import (
	"math"

	"pattern-signal-engine/internal/market"
)

// ============================================================================
// MOVING AVERAGES
// ============================================================================

// SMA calculates the Simple Moving Average over the last period closes.
func SMA(candles []market.Candle, period int) float64 {
	return smaAt(candles, len(candles), period)
}

// smaAt calculates the SMA of the period closes ending at index end (exclusive).
func smaAt(candles []market.Candle, end, period int) float64 {
	if period <= 0 || end > len(candles) || end-period < 0 {
		return 0
	}
	sum := 0.0
	for i := end - period; i < end; i++ {
		sum += candles[i].Close
	}
	return sum / float64(period)
}

// EMA calculates the Exponential Moving Average over the last closes, seeded
// with the simple average of the first period values.
func EMA(candles []market.Candle, period int) float64 {
	series := emaSeries(market.Closes(candles), period)
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

// emaSeries returns the EMA series of values. Entries before index period-1
// are zero; the seed at period-1 is the simple average of the first period
// values, the rest use recursive smoothing.
func emaSeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}

	series := make([]float64, len(values))

	seed := 0.0
	for i := 0; i < period; i++ {
		seed += values[i]
	}
	seed /= float64(period)
	series[period-1] = seed

	multiplier := 2.0 / float64(period+1)
	ema := seed
	for i := period; i < len(values); i++ {
		ema = (values[i]-ema)*multiplier + ema
		series[i] = ema
	}

	return series
}

// ============================================================================
// RSI (Relative Strength Index, Wilder smoothing)
// ============================================================================

// RSI calculates the Wilder-smoothed Relative Strength Index. The seed is
// the simple average of the first period gains/losses, then each subsequent
// bar blends in at weight 1/period.
func RSI(candles []market.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0
	}

	gains := 0.0
	losses := 0.0
	for i := 1; i <= period; i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	for i := period + 1; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// ============================================================================
// MACD (Moving Average Convergence Divergence)
// ============================================================================

// MACDResult holds MACD indicator values
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACD calculates the MACD line (EMA fast − EMA slow), its signal line
// (EMA of the MACD series), and the histogram.
func MACD(candles []market.Candle, fastPeriod, slowPeriod, signalPeriod int) MACDResult {
	closes := market.Closes(candles)
	if len(closes) < slowPeriod+signalPeriod {
		return MACDResult{}
	}

	fast := emaSeries(closes, fastPeriod)
	slow := emaSeries(closes, slowPeriod)

	// MACD values exist once the slow EMA is defined.
	macdValues := make([]float64, 0, len(closes)-slowPeriod+1)
	for i := slowPeriod - 1; i < len(closes); i++ {
		macdValues = append(macdValues, fast[i]-slow[i])
	}

	signal := emaSeries(macdValues, signalPeriod)
	macdLine := macdValues[len(macdValues)-1]
	signalLine := 0.0
	if len(signal) > 0 {
		signalLine = signal[len(signal)-1]
	}

	return MACDResult{
		MACD:      macdLine,
		Signal:    signalLine,
		Histogram: macdLine - signalLine,
	}
}

// MACDSeries returns the raw MACD line values (EMA fast − EMA slow) for each
// bar where the slow EMA is defined. Used by cross detection.
func MACDSeries(candles []market.Candle, fastPeriod, slowPeriod int) []float64 {
	closes := market.Closes(candles)
	if len(closes) < slowPeriod {
		return nil
	}

	fast := emaSeries(closes, fastPeriod)
	slow := emaSeries(closes, slowPeriod)

	values := make([]float64, 0, len(closes)-slowPeriod+1)
	for i := slowPeriod - 1; i < len(closes); i++ {
		values = append(values, fast[i]-slow[i])
	}
	return values
}

// ============================================================================
// BOLLINGER BANDS
// ============================================================================

// BollingerResult holds Bollinger Band values
type BollingerResult struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// Bollinger calculates SMA ± multiplier × population standard deviation over
// the last period closes.
func Bollinger(candles []market.Candle, period int, multiplier float64) BollingerResult {
	return bollingerAt(candles, len(candles), period, multiplier)
}

func bollingerAt(candles []market.Candle, end, period int, multiplier float64) BollingerResult {
	if period <= 0 || end > len(candles) || end-period < 0 {
		return BollingerResult{}
	}

	middle := smaAt(candles, end, period)

	variance := 0.0
	for i := end - period; i < end; i++ {
		diff := candles[i].Close - middle
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(period))

	return BollingerResult{
		Upper:  middle + stdDev*multiplier,
		Middle: middle,
		Lower:  middle - stdDev*multiplier,
	}
}

// BandwidthAt returns the Bollinger bandwidth (upper − lower) / middle at the
// series position ending at index end (exclusive). Zero middle yields 0.
func BandwidthAt(candles []market.Candle, end, period int, multiplier float64) float64 {
	bands := bollingerAt(candles, end, period, multiplier)
	if bands.Middle == 0 {
		return 0
	}
	return (bands.Upper - bands.Lower) / bands.Middle
}

// ============================================================================
// ATR (Average True Range, Wilder smoothing)
// ============================================================================

// ATR calculates the Wilder-smoothed Average True Range, where true range is
// max(high−low, |high−prevClose|, |low−prevClose|).
func ATR(candles []market.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0
	}

	trSum := 0.0
	for i := 1; i <= period; i++ {
		trSum += trueRange(candles[i], candles[i-1].Close)
	}
	atr := trSum / float64(period)

	for i := period + 1; i < len(candles); i++ {
		tr := trueRange(candles[i], candles[i-1].Close)
		atr = (atr*float64(period-1) + tr) / float64(period)
	}

	return atr
}

func trueRange(c market.Candle, prevClose float64) float64 {
	return math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
}

// ============================================================================
// VWAP & VOLUME
// ============================================================================

// VWAP calculates the volume-weighted average of typical price over the full
// supplied window. This is a window VWAP, not a rolling session VWAP.
func VWAP(candles []market.Candle) float64 {
	volumeSum := 0.0
	weighted := 0.0
	for _, c := range candles {
		weighted += c.TypicalPrice() * c.Volume
		volumeSum += c.Volume
	}
	if volumeSum == 0 {
		return 0
	}
	return weighted / volumeSum
}

// AvgVolume calculates the average volume over the last period bars.
func AvgVolume(candles []market.Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return 0
	}
	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Volume
	}
	return sum / float64(period)
}

// SMASlope returns the percent change of the period SMA over the last lag
// bars: (SMA[t] − SMA[t−lag]) / SMA[t−lag] × 100.
func SMASlope(candles []market.Candle, period, lag int) float64 {
	if len(candles) < period+lag {
		return 0
	}
	current := smaAt(candles, len(candles), period)
	past := smaAt(candles, len(candles)-lag, period)
	if past == 0 {
		return 0
	}
	return (current - past) / past * 100
}
