package indicators

import (
	"fmt"
	"math"
	"time"

	"pattern-signal-engine/internal/market"
)

// MinFeatureBars is the minimum series length Compute accepts.
const MinFeatureBars = 50

// ErrInsufficientData indicates a candle series too short for a computation.
// Callers decide whether to fall back to a shorter window.
type ErrInsufficientData struct {
	Required int
	Actual   int
}

func (e *ErrInsufficientData) Error() string {
	return fmt.Sprintf("insufficient data: need %d bars, have %d", e.Required, e.Actual)
}

// FeatureVector is the fixed set of technical features computed per scan.
// Recomputed fresh each time, never mutated in place.
type FeatureVector struct {
	Symbol            string    `json:"symbol"`
	RSI14             float64   `json:"rsi_14"`
	MACD              float64   `json:"macd"`
	MACDSignal        float64   `json:"macd_signal"`
	BollingerUpper    float64   `json:"bollinger_upper"`
	BollingerMiddle   float64   `json:"bollinger_middle"`
	BollingerLower    float64   `json:"bollinger_lower"`
	BollingerWidthPct float64   `json:"bollinger_width_pct"`
	ATR               float64   `json:"atr"`
	ATRPct            float64   `json:"atr_pct"`
	SMA20             float64   `json:"sma_20"`
	SMA50             float64   `json:"sma_50"`
	EMA12             float64   `json:"ema_12"`
	EMA26             float64   `json:"ema_26"`
	VWAP              float64   `json:"vwap"`
	AvgVolume20       float64   `json:"avg_volume_20"`
	SMA20SlopePct     float64   `json:"sma_20_slope_pct"`
	CurrentPrice      float64   `json:"current_price"`
	ComputedAt        time.Time `json:"computed_at"`
}

// Compute derives a FeatureVector from a candle series. Requires at least
// MinFeatureBars bars. All outputs are rounded to 4 decimal places; division
// guards return 0 rather than failing.
func Compute(symbol string, candles []market.Candle) (*FeatureVector, error) {
	if len(candles) < MinFeatureBars {
		return nil, &ErrInsufficientData{Required: MinFeatureBars, Actual: len(candles)}
	}

	currentPrice := candles[len(candles)-1].Close

	macd := MACD(candles, 12, 26, 9)
	bands := Bollinger(candles, 20, 2)
	atr := ATR(candles, 14)

	widthPct := 0.0
	if bands.Middle != 0 {
		widthPct = (bands.Upper - bands.Lower) / bands.Middle * 100
	}

	atrPct := 0.0
	if currentPrice != 0 {
		atrPct = atr / currentPrice * 100
	}

	fv := &FeatureVector{
		Symbol:            symbol,
		RSI14:             round4(RSI(candles, 14)),
		MACD:              round4(macd.MACD),
		MACDSignal:        round4(macd.Signal),
		BollingerUpper:    round4(bands.Upper),
		BollingerMiddle:   round4(bands.Middle),
		BollingerLower:    round4(bands.Lower),
		BollingerWidthPct: round4(widthPct),
		ATR:               round4(atr),
		ATRPct:            round4(atrPct),
		SMA20:             round4(SMA(candles, 20)),
		SMA50:             round4(SMA(candles, 50)),
		EMA12:             round4(EMA(candles, 12)),
		EMA26:             round4(EMA(candles, 26)),
		VWAP:              round4(VWAP(candles)),
		AvgVolume20:       round4(AvgVolume(candles, 20)),
		SMA20SlopePct:     round4(SMASlope(candles, 20, 5)),
		CurrentPrice:      round4(currentPrice),
		ComputedAt:        time.Now().UTC(),
	}

	return fv, nil
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
