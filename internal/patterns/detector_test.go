package patterns

import (
	"reflect"
	"testing"
)

// jumpSeries is long enough for every pass and produces several overlapping
// detections on the final bar.
func jumpSeries() []PatternResult {
	d := NewDetector()
	closes := make([]float64, 201)
	for i := range closes {
		closes[i] = 100
	}
	closes[200] = 300
	return d.Detect(series(closes...))
}

func TestDetectSortsByConfidence(t *testing.T) {
	results := jumpSeries()
	if len(results) < 2 {
		t.Fatalf("expected multiple detections, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Confidence > results[i-1].Confidence {
			t.Fatalf("results not sorted: %v at %d above %v at %d",
				results[i].Confidence, i, results[i-1].Confidence, i-1)
		}
	}
}

func TestDetectClampsConfidence(t *testing.T) {
	for _, r := range jumpSeries() {
		if r.Confidence < 0 || r.Confidence > 100 {
			t.Errorf("%s confidence %v outside [0,100]", r.Type, r.Confidence)
		}
	}
}

func TestDetectIsDeterministic(t *testing.T) {
	first := jumpSeries()
	second := jumpSeries()
	if !reflect.DeepEqual(first, second) {
		t.Error("identical input must produce identical ordered output")
	}
}

func TestDetectEmptyInput(t *testing.T) {
	d := NewDetector()
	if got := d.Detect(nil); len(got) != 0 {
		t.Errorf("nil input should yield no results, got %d", len(got))
	}
}

func TestWinRateHintsCoverAllTypes(t *testing.T) {
	types := []PatternType{
		Doji, Hammer, InvertedHammer, ShootingStar, Marubozu,
		BullishEngulfing, BearishEngulfing, BullishHarami, BearishHarami,
		PiercingLine, DarkCloudCover, MorningStar, EveningStar,
		ThreeWhiteSoldiers, ThreeBlackCrows,
		DoubleTop, DoubleBottom, HeadAndShoulders, InverseHeadAndShoulders,
		GoldenCross, DeathCross, RSIOversold, RSIOverbought,
		BollingerSqueeze, VolumeBreakout, MACDBullishCross, MACDBearishCross,
	}
	for _, pt := range types {
		if hint := WinRateHint(pt); hint <= 0 || hint >= 100 {
			t.Errorf("%s hint = %v, want within (0,100)", pt, hint)
		}
	}
}
