package regime

import (
	"fmt"
	"math"
	"time"

	"pattern-signal-engine/internal/indicators"
)

// Regime is a market's qualitative state
type Regime string

const (
	Trending      Regime = "trending"
	VolExpansion  Regime = "vol_expansion"
	MeanReversion Regime = "mean_reversion"
	Choppy        Regime = "choppy"
)

// scanOrder fixes the evaluation order; exact score ties resolve to the
// first-declared regime.
var scanOrder = []Regime{Trending, VolExpansion, MeanReversion, Choppy}

// Result is one classification outcome. History is append-only; a new call
// produces a new Result.
type Result struct {
	Symbol     string                     `json:"symbol"`
	Regime     Regime                     `json:"regime"`
	Confidence float64                    `json:"confidence"` // 0-100
	Rationale  []string                   `json:"rationale"`
	Features   *indicators.FeatureVector  `json:"features"`
	DetectedAt time.Time                  `json:"detected_at"`
}

// Classifier scores the four regime candidates from a feature vector. It is
// a pure function of its input and keeps no state.
type Classifier struct{}

// NewClassifier creates a new regime classifier
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify scores all regimes and returns the winner with its rationale.
func (c *Classifier) Classify(fv *indicators.FeatureVector) *Result {
	scores := map[Regime]float64{}
	reasons := map[Regime][]string{}

	scores[Trending], reasons[Trending] = c.scoreTrending(fv)
	scores[VolExpansion], reasons[VolExpansion] = c.scoreVolExpansion(fv)
	scores[MeanReversion], reasons[MeanReversion] = c.scoreMeanReversion(fv)
	scores[Choppy], reasons[Choppy] = c.scoreChoppy(fv)

	winner := scanOrder[0]
	best := scores[winner]
	for _, r := range scanOrder[1:] {
		if scores[r] > best {
			winner = r
			best = scores[r]
		}
	}

	return &Result{
		Symbol:     fv.Symbol,
		Regime:     winner,
		Confidence: best,
		Rationale:  reasons[winner],
		Features:   fv,
		DetectedAt: time.Now().UTC(),
	}
}

func (c *Classifier) scoreTrending(fv *indicators.FeatureVector) (float64, []string) {
	score := 0.0
	var reasons []string

	slope := fv.SMA20SlopePct
	if math.Abs(slope) > 1.5 {
		score += 25
		reasons = append(reasons, fmt.Sprintf("SMA20 slope %.2f%% shows directional pressure", slope))
	}
	if (slope > 0 && fv.EMA12 > fv.EMA26) || (slope < 0 && fv.EMA12 < fv.EMA26) {
		score += 20
		reasons = append(reasons, "EMA12/EMA26 aligned with slope direction")
	}
	if (fv.MACD > 0 && fv.MACD > fv.MACDSignal) || (fv.MACD < 0 && fv.MACD < fv.MACDSignal) {
		score += 15
		reasons = append(reasons, "MACD momentum expanding past its signal line")
	}
	if fv.RSI14 > 55 || (fv.RSI14 < 45 && fv.RSI14 > 0) {
		score += 15
		reasons = append(reasons, fmt.Sprintf("RSI %.1f holding away from the midline", fv.RSI14))
	}
	if fv.VWAP > 0 && math.Abs(fv.CurrentPrice-fv.VWAP)/fv.VWAP*100 > 1 {
		score += 15
		reasons = append(reasons, "price extended more than 1% from VWAP")
	}
	if fv.ATRPct >= 1 && fv.ATRPct <= 5 {
		score += 10
		reasons = append(reasons, fmt.Sprintf("ATR %.2f%% in orderly trend range", fv.ATRPct))
	}

	return clamp(score), reasons
}

func (c *Classifier) scoreVolExpansion(fv *indicators.FeatureVector) (float64, []string) {
	score := 0.0
	var reasons []string

	if fv.ATRPct > 4 {
		score += 30
		reasons = append(reasons, fmt.Sprintf("ATR %.2f%% well above normal", fv.ATRPct))
	}
	if fv.BollingerWidthPct > 8 {
		score += 25
		reasons = append(reasons, fmt.Sprintf("Bollinger width %.2f%% expanded", fv.BollingerWidthPct))
	}
	if fv.RSI14 > 70 || (fv.RSI14 < 30 && fv.RSI14 > 0) {
		score += 20
		reasons = append(reasons, fmt.Sprintf("RSI %.1f at a momentum extreme", fv.RSI14))
	}
	if fv.VWAP > 0 && math.Abs(fv.CurrentPrice-fv.VWAP)/fv.VWAP*100 > 3 {
		score += 15
		reasons = append(reasons, "price dislocated more than 3% from VWAP")
	}
	if math.Abs(fv.SMA20SlopePct) > 3 {
		score += 10
		reasons = append(reasons, "SMA20 slope accelerating")
	}

	return clamp(score), reasons
}

func (c *Classifier) scoreMeanReversion(fv *indicators.FeatureVector) (float64, []string) {
	score := 0.0
	var reasons []string

	if fv.RSI14 > 70 || (fv.RSI14 < 30 && fv.RSI14 > 0) {
		score += 30
		reasons = append(reasons, fmt.Sprintf("RSI %.1f stretched, snap-back likely", fv.RSI14))
	}
	if fv.BollingerUpper > 0 && (fv.CurrentPrice > fv.BollingerUpper || fv.CurrentPrice < fv.BollingerLower) {
		score += 25
		reasons = append(reasons, "price outside the Bollinger bands")
	}
	if fv.VWAP > 0 && math.Abs(fv.CurrentPrice-fv.VWAP)/fv.VWAP*100 > 2 {
		score += 20
		reasons = append(reasons, "price more than 2% from VWAP anchor")
	}
	if math.Abs(fv.SMA20SlopePct) < 1 {
		score += 15
		reasons = append(reasons, "flat SMA20 baseline to revert toward")
	}
	if fv.BollingerWidthPct > 4 {
		score += 10
		reasons = append(reasons, "band width leaves room for a reversion move")
	}

	return clamp(score), reasons
}

func (c *Classifier) scoreChoppy(fv *indicators.FeatureVector) (float64, []string) {
	score := 0.0
	var reasons []string

	if math.Abs(fv.SMA20SlopePct) < 0.5 {
		score += 30
		reasons = append(reasons, "SMA20 slope near zero")
	}
	if fv.BollingerWidthPct > 0 && fv.BollingerWidthPct < 4 {
		score += 25
		reasons = append(reasons, fmt.Sprintf("Bollinger width %.2f%% compressed", fv.BollingerWidthPct))
	}
	if fv.RSI14 >= 40 && fv.RSI14 <= 60 {
		score += 20
		reasons = append(reasons, fmt.Sprintf("RSI %.1f parked at the midline", fv.RSI14))
	}
	if fv.CurrentPrice > 0 && math.Abs(fv.EMA12-fv.EMA26)/fv.CurrentPrice*100 < 0.5 {
		score += 15
		reasons = append(reasons, "EMA12 and EMA26 intertwined")
	}
	if math.Abs(fv.MACD) < math.Abs(fv.MACDSignal) {
		score += 10
		reasons = append(reasons, "MACD fading below its signal line")
	}

	return clamp(score), reasons
}

func clamp(v float64) float64 {
	if v > 100 {
		return 100
	}
	if v < 0 {
		return 0
	}
	return v
}
