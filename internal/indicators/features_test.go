package indicators

import (
	"errors"
	"testing"
)

func TestComputeRequiresMinimumBars(t *testing.T) {
	candles := candlesFromCloses(1, 2, 3)
	_, err := Compute("AAPL", candles)
	if err == nil {
		t.Fatal("expected insufficient data error")
	}
	var insufficientErr *ErrInsufficientData
	if !errors.As(err, &insufficientErr) {
		t.Fatalf("expected ErrInsufficientData, got %T", err)
	}
	if insufficientErr.Required != MinFeatureBars || insufficientErr.Actual != 3 {
		t.Errorf("error = %+v, want required=%d actual=3", insufficientErr, MinFeatureBars)
	}
}

func TestComputeFlatSeries(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100
	}
	fv, err := Compute("AAPL", candlesFromCloses(closes...))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if fv.Symbol != "AAPL" {
		t.Errorf("symbol = %q", fv.Symbol)
	}
	if fv.CurrentPrice != 100 {
		t.Errorf("current price = %v, want 100", fv.CurrentPrice)
	}
	if fv.RSI14 != 50 {
		t.Errorf("flat RSI = %v, want 50", fv.RSI14)
	}
	if fv.SMA20 != 100 || fv.SMA50 != 100 {
		t.Errorf("flat SMAs = %v/%v, want 100", fv.SMA20, fv.SMA50)
	}
	if fv.BollingerWidthPct != 0 {
		t.Errorf("flat bollinger width = %v, want 0", fv.BollingerWidthPct)
	}
	// range is 2 on every bar, so ATR 2 and ATR% 2
	if fv.ATR != 2 || fv.ATRPct != 2 {
		t.Errorf("ATR = %v (%v%%), want 2 (2%%)", fv.ATR, fv.ATRPct)
	}
	if fv.SMA20SlopePct != 0 {
		t.Errorf("flat slope = %v, want 0", fv.SMA20SlopePct)
	}
}

func TestComputeRounding(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.333333
	}
	fv, err := Compute("MSFT", candlesFromCloses(closes...))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if fv.SMA20 != round4(fv.SMA20) {
		t.Errorf("SMA20 not rounded to 4dp: %v", fv.SMA20)
	}
	if fv.VWAP != round4(fv.VWAP) {
		t.Errorf("VWAP not rounded to 4dp: %v", fv.VWAP)
	}
}
