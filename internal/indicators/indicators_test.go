package indicators

import (
	"math"
	"testing"
	"time"

	"pattern-signal-engine/internal/market"
)

func candlesFromCloses(closes ...float64) []market.Candle {
	candles := make([]market.Candle, len(closes))
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		candles[i] = market.Candle{
			Time:   base.Add(time.Duration(i) * 24 * time.Hour),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000,
		}
	}
	return candles
}

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func TestSMA(t *testing.T) {
	candles := candlesFromCloses(1, 2, 3, 4, 5)
	if got := SMA(candles, 5); got != 3 {
		t.Errorf("SMA(5) = %v, want 3", got)
	}
	if got := SMA(candles, 2); got != 4.5 {
		t.Errorf("SMA(2) = %v, want 4.5", got)
	}
}

func TestSMAInsufficientData(t *testing.T) {
	candles := candlesFromCloses(1, 2)
	if got := SMA(candles, 5); got != 0 {
		t.Errorf("SMA with too few bars = %v, want 0", got)
	}
}

func TestEMASeedAndSmoothing(t *testing.T) {
	// period 3: seed = avg(1,2,3) = 2, then
	// ema(4) = (4-2)*0.5 + 2 = 3, ema(5) = (5-3)*0.5 + 3 = 4
	candles := candlesFromCloses(1, 2, 3, 4, 5)
	if got := EMA(candles, 3); got != 4 {
		t.Errorf("EMA(3) = %v, want 4", got)
	}
}

func TestRSIAllGains(t *testing.T) {
	candles := candlesFromCloses(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16)
	if got := RSI(candles, 14); got != 100 {
		t.Errorf("RSI of monotone rise = %v, want 100", got)
	}
}

func TestRSIFlat(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 50
	}
	candles := candlesFromCloses(closes...)
	if got := RSI(candles, 14); got != 50 {
		t.Errorf("RSI of flat series = %v, want 50", got)
	}
}

func TestRSIInsufficientData(t *testing.T) {
	candles := candlesFromCloses(1, 2, 3)
	if got := RSI(candles, 14); got != 0 {
		t.Errorf("RSI with too few bars = %v, want 0", got)
	}
}

func TestBollingerFlat(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 10
	}
	bands := Bollinger(candlesFromCloses(closes...), 20, 2)
	if bands.Upper != 10 || bands.Middle != 10 || bands.Lower != 10 {
		t.Errorf("flat Bollinger = %+v, want all 10", bands)
	}
}

func TestBollingerSpread(t *testing.T) {
	// mean 3, population variance (4+1+0+1+4)/5 = 2
	bands := Bollinger(candlesFromCloses(1, 2, 3, 4, 5), 5, 2)
	want := 3 + 2*math.Sqrt(2)
	if !almostEqual(bands.Upper, want, 1e-9) {
		t.Errorf("upper = %v, want %v", bands.Upper, want)
	}
	if !almostEqual(bands.Lower, 3-2*math.Sqrt(2), 1e-9) {
		t.Errorf("lower = %v, want %v", bands.Lower, 3-2*math.Sqrt(2))
	}
}

func TestATRConstantRange(t *testing.T) {
	// every bar has range 2 and closes inside the next bar's range
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100
	}
	candles := candlesFromCloses(closes...)
	if got := ATR(candles, 14); !almostEqual(got, 2, 1e-9) {
		t.Errorf("ATR = %v, want 2", got)
	}
}

func TestVWAP(t *testing.T) {
	candles := []market.Candle{
		{High: 11, Low: 9, Close: 10, Volume: 1},
		{High: 21, Low: 19, Close: 20, Volume: 3},
	}
	// typical prices 10 and 20, weights 1 and 3
	if got := VWAP(candles); !almostEqual(got, 17.5, 1e-9) {
		t.Errorf("VWAP = %v, want 17.5", got)
	}
}

func TestVWAPZeroVolume(t *testing.T) {
	candles := []market.Candle{{High: 11, Low: 9, Close: 10}}
	if got := VWAP(candles); got != 0 {
		t.Errorf("VWAP with zero volume = %v, want 0", got)
	}
}

func TestSMASlope(t *testing.T) {
	candles := candlesFromCloses(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	// SMA(2) now = 9.5, three bars back = 6.5
	got := SMASlope(candles, 2, 3)
	want := (9.5 - 6.5) / 6.5 * 100
	if !almostEqual(got, want, 1e-9) {
		t.Errorf("SMASlope = %v, want %v", got, want)
	}
}

func TestSMASlopeZeroDenominator(t *testing.T) {
	candles := candlesFromCloses(0, 0, 0, 0, 0, 0)
	if got := SMASlope(candles, 2, 3); got != 0 {
		t.Errorf("SMASlope with zero past SMA = %v, want 0", got)
	}
}

func TestMACDRisingTrend(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	result := MACD(candlesFromCloses(closes...), 12, 26, 9)
	if result.MACD <= 0 {
		t.Errorf("MACD of rising series = %v, want > 0", result.MACD)
	}
	if result.Signal <= 0 {
		t.Errorf("signal of rising series = %v, want > 0", result.Signal)
	}
}

func TestMACDInsufficientData(t *testing.T) {
	result := MACD(candlesFromCloses(1, 2, 3), 12, 26, 9)
	if result.MACD != 0 || result.Signal != 0 {
		t.Errorf("MACD with too few bars = %+v, want zero", result)
	}
}
