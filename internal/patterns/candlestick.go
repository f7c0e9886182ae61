package patterns

import (
	"fmt"
	"math"

	"pattern-signal-engine/internal/market"
)

const minCandlestickBars = 5

// detectCandlesticks evaluates single/double/triple bar shape rules against
// the most recent bars of the series. Every rule is scaled against the
// trailing 14-bar average range; if that average is zero the rules are
// skipped entirely.
func (d *Detector) detectCandlesticks(candles []market.Candle) []PatternResult {
	if len(candles) < minCandlestickBars {
		return nil
	}

	n := len(candles)
	period := 14
	if n-1 < period {
		period = n - 1
	}
	avgRange := market.AvgRange(candles, n-1, period)
	if avgRange == 0 {
		return nil
	}

	var results []PatternResult

	cur := candles[n-1]
	prev := candles[n-2]

	// single-bar
	if r, ok := d.isDoji(cur, avgRange); ok {
		results = append(results, d.finishSingle(candles, r))
	}
	if r, ok := d.isHammer(cur, prev, avgRange); ok {
		results = append(results, d.finishSingle(candles, r))
	}
	if r, ok := d.isInvertedHammer(cur, prev, avgRange); ok {
		results = append(results, d.finishSingle(candles, r))
	}
	if r, ok := d.isShootingStar(cur, prev, avgRange); ok {
		results = append(results, d.finishSingle(candles, r))
	}
	if r, ok := d.isMarubozu(cur, avgRange); ok {
		results = append(results, d.finishSingle(candles, r))
	}

	// two-bar
	if r, ok := d.isEngulfing(prev, cur, avgRange); ok {
		results = append(results, d.finishMulti(candles, r, 2))
	}
	if r, ok := d.isHarami(prev, cur, avgRange); ok {
		results = append(results, d.finishMulti(candles, r, 2))
	}
	if r, ok := d.isPiercingLine(prev, cur, avgRange); ok {
		results = append(results, d.finishMulti(candles, r, 2))
	}
	if r, ok := d.isDarkCloudCover(prev, cur, avgRange); ok {
		results = append(results, d.finishMulti(candles, r, 2))
	}

	// three-bar
	c1, c2, c3 := candles[n-3], candles[n-2], candles[n-1]
	if r, ok := d.isMorningStar(c1, c2, c3); ok {
		results = append(results, d.finishMulti(candles, r, 3))
	}
	if r, ok := d.isEveningStar(c1, c2, c3); ok {
		results = append(results, d.finishMulti(candles, r, 3))
	}
	if r, ok := d.isThreeWhiteSoldiers(c1, c2, c3, avgRange); ok {
		results = append(results, d.finishMulti(candles, r, 3))
	}
	if r, ok := d.isThreeBlackCrows(c1, c2, c3, avgRange); ok {
		results = append(results, d.finishMulti(candles, r, 3))
	}

	return results
}

// finishSingle fills indices, timestamps, and suggested levels for a
// single-bar detection.
func (d *Detector) finishSingle(candles []market.Candle, r PatternResult) PatternResult {
	return d.finishMulti(candles, r, 1)
}

func (d *Detector) finishMulti(candles []market.Candle, r PatternResult, bars int) PatternResult {
	n := len(candles)
	r.StartIndex = n - bars
	r.EndIndex = n - 1
	r.StartTime = candles[r.StartIndex].Time
	r.EndTime = candles[r.EndIndex].Time
	r.WinRateHint = WinRateHint(r.Type)

	if r.Entry == 0 {
		cur := candles[n-1]
		prev := candles[n-2]
		switch r.Direction {
		case Bullish:
			r.Entry, r.Stop, r.Target = bullishLevels(cur, prev)
		case Bearish:
			r.Entry, r.Stop, r.Target = bearishLevels(cur, prev)
		}
	}
	return r
}

// bullishLevels derives entry/stop/target from the pattern's own bars:
// stop below the pattern low, target at 2R.
func bullishLevels(cur, prev market.Candle) (entry, stop, target float64) {
	entry = cur.Close
	stop = math.Min(cur.Low, prev.Low)
	risk := entry - stop
	if risk <= 0 {
		risk = cur.Range()
		stop = entry - risk
	}
	target = entry + 2*risk
	return entry, stop, target
}

func bearishLevels(cur, prev market.Candle) (entry, stop, target float64) {
	entry = cur.Close
	stop = math.Max(cur.High, prev.High)
	risk := stop - entry
	if risk <= 0 {
		risk = cur.Range()
		stop = entry + risk
	}
	target = entry - 2*risk
	return entry, stop, target
}

func (d *Detector) isDoji(c market.Candle, avgRange float64) (PatternResult, bool) {
	if c.Range() == 0 || c.Body() > c.Range()*0.1 {
		return PatternResult{}, false
	}

	confidence := 50 + math.Min(30, c.Range()/avgRange*10)
	entry := c.Close
	return PatternResult{
		Type:        Doji,
		Direction:   Neutral,
		Confidence:  confidence,
		Description: "Doji: open and close nearly equal, market indecision",
		Entry:       entry,
		Stop:        entry - avgRange,
		Target:      entry + avgRange,
	}, true
}

func (d *Detector) isHammer(c, prev market.Candle, avgRange float64) (PatternResult, bool) {
	body := c.Body()
	if body == 0 || c.LowerWick() < body*2 || c.UpperWick() > body*0.5 {
		return PatternResult{}, false
	}
	// only meaningful after a down move
	if !prev.IsBearish() {
		return PatternResult{}, false
	}

	confidence := 60 + math.Min(25, c.LowerWick()/body*5)
	return PatternResult{
		Type:        Hammer,
		Direction:   Bullish,
		Confidence:  confidence,
		Description: "Hammer: long lower wick after decline, buyers rejected lower prices",
	}, true
}

func (d *Detector) isInvertedHammer(c, prev market.Candle, avgRange float64) (PatternResult, bool) {
	body := c.Body()
	if body == 0 || c.UpperWick() < body*2 || c.LowerWick() > body*0.5 {
		return PatternResult{}, false
	}
	if !prev.IsBearish() {
		return PatternResult{}, false
	}

	confidence := 55 + math.Min(25, c.UpperWick()/body*5)
	return PatternResult{
		Type:        InvertedHammer,
		Direction:   Bullish,
		Confidence:  confidence,
		Description: "Inverted hammer: long upper wick after decline, tentative reversal probe",
	}, true
}

func (d *Detector) isShootingStar(c, prev market.Candle, avgRange float64) (PatternResult, bool) {
	body := c.Body()
	if body == 0 || c.UpperWick() < body*2 || c.LowerWick() > body*0.5 {
		return PatternResult{}, false
	}
	if !prev.IsBullish() {
		return PatternResult{}, false
	}

	confidence := 60 + math.Min(25, c.UpperWick()/body*5)
	return PatternResult{
		Type:        ShootingStar,
		Direction:   Bearish,
		Confidence:  confidence,
		Description: "Shooting star: long upper wick after advance, sellers rejected higher prices",
	}, true
}

func (d *Detector) isMarubozu(c market.Candle, avgRange float64) (PatternResult, bool) {
	if c.Range() == 0 || c.Body() < c.Range()*0.95 || c.Range() < avgRange {
		return PatternResult{}, false
	}

	direction := Bullish
	desc := "Bullish marubozu: full-body candle with no meaningful wicks"
	if c.IsBearish() {
		direction = Bearish
		desc = "Bearish marubozu: full-body candle with no meaningful wicks"
	}

	confidence := 55 + math.Min(30, c.Body()/avgRange*15)
	return PatternResult{
		Type:        Marubozu,
		Direction:   direction,
		Confidence:  confidence,
		Description: desc,
	}, true
}

func (d *Detector) isEngulfing(prev, cur market.Candle, avgRange float64) (PatternResult, bool) {
	prevBody := prev.Body()
	curBody := cur.Body()
	if prevBody == 0 || curBody < avgRange*0.5 {
		return PatternResult{}, false
	}

	bonus := math.Min(25, (curBody/prevBody-1)*25)
	if bonus < 0 {
		bonus = 0
	}

	if prev.IsBearish() && cur.IsBullish() && cur.Open <= prev.Close && cur.Close >= prev.Open {
		return PatternResult{
			Type:        BullishEngulfing,
			Direction:   Bullish,
			Confidence:  65 + bonus,
			Description: "Bullish engulfing: current body fully engulfs prior bearish body",
		}, true
	}
	if prev.IsBullish() && cur.IsBearish() && cur.Open >= prev.Close && cur.Close <= prev.Open {
		return PatternResult{
			Type:        BearishEngulfing,
			Direction:   Bearish,
			Confidence:  65 + bonus,
			Description: "Bearish engulfing: current body fully engulfs prior bullish body",
		}, true
	}
	return PatternResult{}, false
}

func (d *Detector) isHarami(prev, cur market.Candle, avgRange float64) (PatternResult, bool) {
	prevBody := prev.Body()
	if prevBody < avgRange {
		return PatternResult{}, false
	}

	prevTop := math.Max(prev.Open, prev.Close)
	prevBottom := math.Min(prev.Open, prev.Close)
	curTop := math.Max(cur.Open, cur.Close)
	curBottom := math.Min(cur.Open, cur.Close)

	inside := curTop <= prevTop && curBottom >= prevBottom && cur.Body() < prevBody*0.6
	if !inside {
		return PatternResult{}, false
	}

	confidence := 55 + math.Min(20, prevBody/avgRange*10)
	if prev.IsBearish() && cur.IsBullish() {
		return PatternResult{
			Type:        BullishHarami,
			Direction:   Bullish,
			Confidence:  confidence,
			Description: "Bullish harami: small bullish body inside prior bearish body",
		}, true
	}
	if prev.IsBullish() && cur.IsBearish() {
		return PatternResult{
			Type:        BearishHarami,
			Direction:   Bearish,
			Confidence:  confidence,
			Description: "Bearish harami: small bearish body inside prior bullish body",
		}, true
	}
	return PatternResult{}, false
}

func (d *Detector) isPiercingLine(prev, cur market.Candle, avgRange float64) (PatternResult, bool) {
	if !prev.IsBearish() || !cur.IsBullish() {
		return PatternResult{}, false
	}
	if prev.Body() < avgRange*0.5 {
		return PatternResult{}, false
	}

	midpoint := (prev.Open + prev.Close) / 2
	if cur.Open >= prev.Close || cur.Close <= midpoint || cur.Close >= prev.Open {
		return PatternResult{}, false
	}

	penetration := (cur.Close - prev.Close) / prev.Body()
	confidence := 60 + math.Min(20, penetration*40)
	return PatternResult{
		Type:        PiercingLine,
		Direction:   Bullish,
		Confidence:  confidence,
		Description: fmt.Sprintf("Piercing line: gap down then close %.0f%% into prior bearish body", penetration*100),
	}, true
}

func (d *Detector) isDarkCloudCover(prev, cur market.Candle, avgRange float64) (PatternResult, bool) {
	if !prev.IsBullish() || !cur.IsBearish() {
		return PatternResult{}, false
	}
	if prev.Body() < avgRange*0.5 {
		return PatternResult{}, false
	}

	midpoint := (prev.Open + prev.Close) / 2
	if cur.Open <= prev.Close || cur.Close >= midpoint || cur.Close <= prev.Open {
		return PatternResult{}, false
	}

	penetration := (prev.Close - cur.Close) / prev.Body()
	confidence := 60 + math.Min(20, penetration*40)
	return PatternResult{
		Type:        DarkCloudCover,
		Direction:   Bearish,
		Confidence:  confidence,
		Description: fmt.Sprintf("Dark cloud cover: gap up then close %.0f%% into prior bullish body", penetration*100),
	}, true
}

func (d *Detector) isMorningStar(c1, c2, c3 market.Candle) (PatternResult, bool) {
	if !c1.IsBearish() || c1.Range() == 0 || c1.Body() < c1.Range()*0.6 {
		return PatternResult{}, false
	}
	if c2.Body() > c1.Body()*0.4 {
		return PatternResult{}, false
	}
	if !c3.IsBullish() || c3.Range() == 0 || c3.Body() < c3.Range()*0.6 {
		return PatternResult{}, false
	}
	midpoint := (c1.Open + c1.Close) / 2
	if c3.Close < midpoint {
		return PatternResult{}, false
	}

	confidence := 65 + math.Min(20, c3.Body()/c1.Body()*10)
	return PatternResult{
		Type:        MorningStar,
		Direction:   Bullish,
		Confidence:  confidence,
		Description: "Morning star: decline, indecision, then strong recovery past the first bar's midpoint",
	}, true
}

func (d *Detector) isEveningStar(c1, c2, c3 market.Candle) (PatternResult, bool) {
	if !c1.IsBullish() || c1.Range() == 0 || c1.Body() < c1.Range()*0.6 {
		return PatternResult{}, false
	}
	if c2.Body() > c1.Body()*0.4 {
		return PatternResult{}, false
	}
	if !c3.IsBearish() || c3.Range() == 0 || c3.Body() < c3.Range()*0.6 {
		return PatternResult{}, false
	}
	midpoint := (c1.Open + c1.Close) / 2
	if c3.Close > midpoint {
		return PatternResult{}, false
	}

	confidence := 65 + math.Min(20, c3.Body()/c1.Body()*10)
	return PatternResult{
		Type:        EveningStar,
		Direction:   Bearish,
		Confidence:  confidence,
		Description: "Evening star: advance, indecision, then strong decline past the first bar's midpoint",
	}, true
}

func (d *Detector) isThreeWhiteSoldiers(c1, c2, c3 market.Candle, avgRange float64) (PatternResult, bool) {
	for _, c := range []market.Candle{c1, c2, c3} {
		if !c.IsBullish() || c.Range() == 0 || c.Body() < c.Range()*0.6 {
			return PatternResult{}, false
		}
	}
	if c2.Close <= c1.Close || c3.Close <= c2.Close {
		return PatternResult{}, false
	}
	// each open within the prior body
	if c2.Open < c1.Open || c2.Open > c1.Close || c3.Open < c2.Open || c3.Open > c2.Close {
		return PatternResult{}, false
	}

	avgBody := (c1.Body() + c2.Body() + c3.Body()) / 3
	confidence := 65 + math.Min(20, avgBody/avgRange*10)
	return PatternResult{
		Type:        ThreeWhiteSoldiers,
		Direction:   Bullish,
		Confidence:  confidence,
		Description: "Three white soldiers: three consecutive strong bullish closes",
	}, true
}

func (d *Detector) isThreeBlackCrows(c1, c2, c3 market.Candle, avgRange float64) (PatternResult, bool) {
	for _, c := range []market.Candle{c1, c2, c3} {
		if !c.IsBearish() || c.Range() == 0 || c.Body() < c.Range()*0.6 {
			return PatternResult{}, false
		}
	}
	if c2.Close >= c1.Close || c3.Close >= c2.Close {
		return PatternResult{}, false
	}
	if c2.Open > c1.Open || c2.Open < c1.Close || c3.Open > c2.Open || c3.Open < c2.Close {
		return PatternResult{}, false
	}

	avgBody := (c1.Body() + c2.Body() + c3.Body()) / 3
	confidence := 65 + math.Min(20, avgBody/avgRange*10)
	return PatternResult{
		Type:        ThreeBlackCrows,
		Direction:   Bearish,
		Confidence:  confidence,
		Description: "Three black crows: three consecutive strong bearish closes",
	}, true
}
