package market

import (
	"time"
)

// Timeframe represents a candle interval
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
	Timeframe1w  Timeframe = "1w"
)

// PatternTTL returns how long a detected pattern on this timeframe stays
// valid before it expires unresolved.
func (tf Timeframe) PatternTTL() time.Duration {
	switch tf {
	case Timeframe1m:
		return 30 * time.Minute
	case Timeframe5m:
		return 2 * time.Hour
	case Timeframe15m:
		return 4 * time.Hour
	case Timeframe1h:
		return 8 * time.Hour
	case Timeframe4h:
		return 48 * time.Hour
	case Timeframe1d:
		return 5 * 24 * time.Hour
	case Timeframe1w:
		return 14 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// MaxHoldBars returns the default ceiling, in bars, a simulated trade on this
// timeframe is held before it resolves as expired.
func (tf Timeframe) MaxHoldBars() int {
	switch tf {
	case Timeframe1m, Timeframe5m, Timeframe15m:
		return 60
	case Timeframe1h, Timeframe4h:
		return 30
	case Timeframe1d:
		return 20
	case Timeframe1w:
		return 8
	default:
		return 20
	}
}

// Duration returns the bar interval length.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case Timeframe1m:
		return time.Minute
	case Timeframe5m:
		return 5 * time.Minute
	case Timeframe15m:
		return 15 * time.Minute
	case Timeframe1h:
		return time.Hour
	case Timeframe4h:
		return 4 * time.Hour
	case Timeframe1d:
		return 24 * time.Hour
	case Timeframe1w:
		return 7 * 24 * time.Hour
	default:
		return time.Hour
	}
}

// ParseTimeframe validates a timeframe string, falling back to 1d.
func ParseTimeframe(s string) Timeframe {
	switch Timeframe(s) {
	case Timeframe1m, Timeframe5m, Timeframe15m, Timeframe1h, Timeframe4h, Timeframe1d, Timeframe1w:
		return Timeframe(s)
	default:
		return Timeframe1d
	}
}
