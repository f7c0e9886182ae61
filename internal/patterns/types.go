package patterns

import (
	"time"
)

// PatternType identifies a candlestick, chart, or technical pattern
type PatternType string

const (
	// Candlestick patterns
	Doji              PatternType = "doji"
	Hammer            PatternType = "hammer"
	InvertedHammer    PatternType = "inverted_hammer"
	ShootingStar      PatternType = "shooting_star"
	Marubozu          PatternType = "marubozu"
	BullishEngulfing  PatternType = "bullish_engulfing"
	BearishEngulfing  PatternType = "bearish_engulfing"
	BullishHarami     PatternType = "bullish_harami"
	BearishHarami     PatternType = "bearish_harami"
	PiercingLine      PatternType = "piercing_line"
	DarkCloudCover    PatternType = "dark_cloud_cover"
	MorningStar       PatternType = "morning_star"
	EveningStar       PatternType = "evening_star"
	ThreeWhiteSoldiers PatternType = "three_white_soldiers"
	ThreeBlackCrows   PatternType = "three_black_crows"

	// Chart patterns
	DoubleTop               PatternType = "double_top"
	DoubleBottom            PatternType = "double_bottom"
	HeadAndShoulders        PatternType = "head_and_shoulders"
	InverseHeadAndShoulders PatternType = "inverse_head_and_shoulders"

	// Technical setups
	GoldenCross      PatternType = "golden_cross"
	DeathCross       PatternType = "death_cross"
	RSIOversold      PatternType = "rsi_oversold"
	RSIOverbought    PatternType = "rsi_overbought"
	BollingerSqueeze PatternType = "bollinger_squeeze"
	VolumeBreakout   PatternType = "volume_breakout"
	MACDBullishCross PatternType = "macd_bullish_cross"
	MACDBearishCross PatternType = "macd_bearish_cross"
)

// Direction is the bias a pattern implies
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
	Neutral Direction = "neutral"
)

// PatternResult is a single detection over a candle series. Results are
// produced fresh on every scan and handed to the lifecycle engine; the
// detector itself persists nothing.
type PatternResult struct {
	Type        PatternType `json:"type"`
	Direction   Direction   `json:"direction"`
	Confidence  float64     `json:"confidence"` // 0-100
	WinRateHint float64     `json:"win_rate_hint"`
	Description string      `json:"description"`
	StartIndex  int         `json:"start_index"`
	EndIndex    int         `json:"end_index"`
	StartTime   time.Time   `json:"start_time"`
	EndTime     time.Time   `json:"end_time"`
	Entry       float64     `json:"entry"`
	Stop        float64     `json:"stop"`
	Target      float64     `json:"target"`
}

// winRateHints carries the historical base win rate shown alongside each
// detection. These are priors; realized performance per regime/timeframe is
// tracked by the lifecycle engine.
var winRateHints = map[PatternType]float64{
	Doji:              50,
	Hammer:            60,
	InvertedHammer:    55,
	ShootingStar:      59,
	Marubozu:          56,
	BullishEngulfing:  63,
	BearishEngulfing:  62,
	BullishHarami:     54,
	BearishHarami:     53,
	PiercingLine:      58,
	DarkCloudCover:    57,
	MorningStar:       65,
	EveningStar:       64,
	ThreeWhiteSoldiers: 66,
	ThreeBlackCrows:   65,

	DoubleTop:               68,
	DoubleBottom:            69,
	HeadAndShoulders:        70,
	InverseHeadAndShoulders: 70,

	GoldenCross:      62,
	DeathCross:       61,
	RSIOversold:      57,
	RSIOverbought:    56,
	BollingerSqueeze: 55,
	VolumeBreakout:   60,
	MACDBullishCross: 58,
	MACDBearishCross: 57,
}

// WinRateHint returns the historical base win rate for a pattern type.
func WinRateHint(t PatternType) float64 {
	if hint, ok := winRateHints[t]; ok {
		return hint
	}
	return 50
}
