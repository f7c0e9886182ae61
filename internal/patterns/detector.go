package patterns

import (
	"math"
	"sort"

	"pattern-signal-engine/internal/market"
)

// Detector scans candle series for candlestick, chart, and technical
// patterns. It is stateless and safe for concurrent use across symbols.
type Detector struct{}

// NewDetector creates a new pattern detector
func NewDetector() *Detector {
	return &Detector{}
}

// Detect runs all three passes and returns the concatenated detections
// sorted by confidence, highest first. Identical input always yields
// identical ordered output.
func (d *Detector) Detect(candles []market.Candle) []PatternResult {
	var results []PatternResult

	results = append(results, d.detectCandlesticks(candles)...)
	results = append(results, d.detectChartPatterns(candles)...)
	results = append(results, d.detectTechnicals(candles)...)

	for i := range results {
		results[i].Confidence = clampConfidence(results[i].Confidence)
	}

	// Stable sort with type as secondary key keeps ordering deterministic
	// for equal confidence values.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Confidence != results[j].Confidence {
			return results[i].Confidence > results[j].Confidence
		}
		return results[i].Type < results[j].Type
	})

	return results
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	if math.IsNaN(c) {
		return 0
	}
	return c
}
