package regime

import (
	"testing"

	"pattern-signal-engine/internal/indicators"
)

func trendingVector() *indicators.FeatureVector {
	return &indicators.FeatureVector{
		Symbol:            "AAPL",
		RSI14:             62,
		MACD:              1.2,
		MACDSignal:        0.8,
		BollingerUpper:    108,
		BollingerMiddle:   102,
		BollingerLower:    96,
		BollingerWidthPct: 6,
		ATRPct:            2,
		EMA12:             104,
		EMA26:             101,
		VWAP:              100,
		SMA20SlopePct:     2.5,
		CurrentPrice:      105,
	}
}

func TestClassifyTrending(t *testing.T) {
	c := NewClassifier()
	result := c.Classify(trendingVector())

	if result.Regime != Trending {
		t.Errorf("regime = %s, want trending", result.Regime)
	}
	if result.Symbol != "AAPL" {
		t.Errorf("symbol = %q", result.Symbol)
	}
	if result.Confidence <= 0 || result.Confidence > 100 {
		t.Errorf("confidence = %v, out of range", result.Confidence)
	}
	if len(result.Rationale) == 0 {
		t.Error("winner should carry its rationale")
	}
}

func TestClassifyChoppy(t *testing.T) {
	c := NewClassifier()
	fv := &indicators.FeatureVector{
		Symbol:            "T",
		RSI14:             50,
		MACD:              0.01,
		MACDSignal:        0.05,
		BollingerUpper:    101,
		BollingerMiddle:   100,
		BollingerLower:    99,
		BollingerWidthPct: 2,
		ATRPct:            0.5,
		EMA12:             100.1,
		EMA26:             100,
		VWAP:              100,
		SMA20SlopePct:     0.1,
		CurrentPrice:      100,
	}

	result := c.Classify(fv)
	if result.Regime != Choppy {
		t.Errorf("regime = %s, want choppy", result.Regime)
	}
}

func TestClassifyVolExpansion(t *testing.T) {
	c := NewClassifier()
	fv := &indicators.FeatureVector{
		Symbol:            "TSLA",
		RSI14:             84,
		BollingerUpper:    130,
		BollingerMiddle:   100,
		BollingerLower:    70,
		BollingerWidthPct: 20,
		ATRPct:            7,
		EMA12:             112,
		EMA26:             104,
		MACD:              3,
		MACDSignal:        1,
		VWAP:              100,
		SMA20SlopePct:     5,
		CurrentPrice:      125,
	}

	result := c.Classify(fv)
	if result.Regime != VolExpansion {
		t.Errorf("regime = %s, want vol_expansion", result.Regime)
	}
}

// Ties on equal scores must fall to the earlier regime in scan order.
func TestClassifyTieFallsToEarlierRegime(t *testing.T) {
	c := NewClassifier()

	// Engineered so Trending and VolExpansion both score exactly 65:
	// trending collects slope (25) + RSI>55 (15) + VWAP>1% (15) + ATR band (10),
	// vol expansion collects ATR>4 (30) + width>8 (25) + slope>3 (10).
	fv := &indicators.FeatureVector{
		Symbol:            "TIE",
		RSI14:             60,
		SMA20SlopePct:     3.5,
		ATRPct:            4.5,
		BollingerWidthPct: 9,
		BollingerUpper:    110,
		BollingerMiddle:   100,
		BollingerLower:    90,
		EMA12:             99,
		EMA26:             100,
		VWAP:              100,
		CurrentPrice:      102,
	}

	trendScore, _ := c.scoreTrending(fv)
	volScore, _ := c.scoreVolExpansion(fv)
	if trendScore != volScore {
		t.Fatalf("fixture drifted: trending=%v vol=%v, want equal", trendScore, volScore)
	}

	result := c.Classify(fv)
	if result.Regime != Trending {
		t.Errorf("tie resolved to %s, want the earlier declared trending", result.Regime)
	}
}

func TestClassifyConfidenceMatchesWinnerScore(t *testing.T) {
	c := NewClassifier()
	fv := trendingVector()

	score, _ := c.scoreTrending(fv)
	result := c.Classify(fv)
	if result.Confidence != score {
		t.Errorf("confidence %v != trending score %v", result.Confidence, score)
	}
}
