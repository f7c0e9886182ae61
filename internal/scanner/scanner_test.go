package scanner

import (
	"testing"
	"time"

	"pattern-signal-engine/internal/lifecycle"
	"pattern-signal-engine/internal/market"
)

func volumeSeries(n int, vol float64) []market.Candle {
	candles := make([]market.Candle, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range candles {
		candles[i] = market.Candle{
			Time:   base.Add(time.Duration(i) * 24 * time.Hour),
			Open:   100,
			High:   101,
			Low:    99,
			Close:  100,
			Volume: vol,
		}
	}
	return candles
}

func TestVolumeProfileBreakout(t *testing.T) {
	candles := volumeSeries(30, 1000)
	candles[len(candles)-1].Volume = 2500

	if got := volumeProfile(candles); got != lifecycle.VolumeProfileBreakout {
		t.Errorf("volumeProfile = %s, want breakout at 2.5x average", got)
	}
}

func TestVolumeProfileNormal(t *testing.T) {
	candles := volumeSeries(30, 1000)
	candles[len(candles)-1].Volume = 1500

	if got := volumeProfile(candles); got != lifecycle.VolumeProfileNormal {
		t.Errorf("volumeProfile = %s, want normal below 2x average", got)
	}
}

func TestVolumeProfileShortSeries(t *testing.T) {
	if got := volumeProfile(volumeSeries(10, 1000)); got != lifecycle.VolumeProfileNormal {
		t.Errorf("volumeProfile = %s, want normal with too few bars", got)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.TickInterval <= 0 || cfg.WorkerCount <= 0 {
		t.Errorf("defaults must be positive, got %+v", cfg)
	}
	if cfg.MinConfidence <= 0 || cfg.MinConfidence > 100 {
		t.Errorf("min confidence out of range: %v", cfg.MinConfidence)
	}
}
