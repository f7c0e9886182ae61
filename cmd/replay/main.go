// Command replay runs the signal pipeline over a historical candle file and
// reports how the detected patterns would have traded out. It is an offline
// tool, no database or market connection required.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"pattern-signal-engine/internal/indicators"
	"pattern-signal-engine/internal/lifecycle"
	"pattern-signal-engine/internal/market"
	"pattern-signal-engine/internal/patterns"
	"pattern-signal-engine/internal/regime"
	"pattern-signal-engine/internal/risk"
)

func main() {
	var (
		file          = flag.String("file", "", "JSON file with an array of candles")
		symbol        = flag.String("symbol", "UNKNOWN", "symbol label for the series")
		timeframe     = flag.String("timeframe", "1d", "candle timeframe (1m 5m 15m 1h 4h 1d 1w)")
		minConfidence = flag.Float64("min-confidence", 65, "minimum pattern confidence to trade")
		portfolio     = flag.Float64("portfolio", 100000, "portfolio size for position sizing")
		riskPct       = flag.Float64("risk", 1, "risk percent per trade")
		warmup        = flag.Int("warmup", 60, "bars to skip before the first detection")
	)
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: replay -file candles.json [-symbol AAPL] [-timeframe 1d]")
		os.Exit(2)
	}

	tf := market.ParseTimeframe(*timeframe)

	candles, err := loadCandles(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading candles: %v\n", err)
		os.Exit(1)
	}
	if len(candles) <= *warmup {
		fmt.Fprintf(os.Stderr, "need more than %d candles, got %d\n", *warmup, len(candles))
		os.Exit(1)
	}

	trades := replay(*symbol, tf, candles, *minConfidence, *portfolio, *riskPct, *warmup)
	report(*symbol, len(candles), trades)
}

func loadCandles(path string) ([]market.Candle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var candles []market.Candle
	if err := json.Unmarshal(data, &candles); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%s contains no candles", path)
	}
	return candles, nil
}

// replay walks the series forward, opening at most one trade at a time off
// the best directional pattern and advancing it through the remaining bars.
func replay(symbol string, tf market.Timeframe, candles []market.Candle,
	minConfidence, portfolio, riskPct float64, warmup int) []*lifecycle.SimulatedTrade {

	detector := patterns.NewDetector()
	classifier := regime.NewClassifier()
	riskEngine := risk.NewEngine(risk.DefaultPolicy())

	var trades []*lifecycle.SimulatedTrade

	for i := warmup; i < len(candles); i++ {
		window := candles[:i+1]

		best := pickPattern(detector.Detect(window), minConfidence)
		if best == nil {
			continue
		}

		dir := risk.Long
		if best.Direction == patterns.Bearish {
			dir = risk.Short
		}

		assessment, err := riskEngine.Assess(risk.Params{
			Direction:     dir,
			Entry:         best.Entry,
			Stop:          best.Stop,
			Target1:       best.Target,
			PortfolioSize: portfolio,
			RiskPercent:   riskPct,
		})
		if err != nil || !assessment.PassesRiskCheck {
			continue
		}

		reg := regime.Choppy
		if features, ferr := indicators.Compute(symbol, window); ferr == nil {
			reg = classifier.Classify(features).Regime
		}

		trade := lifecycle.NewSimulatedTrade(symbol, dir, best.Entry, best.Stop, best.Target,
			nil, reg, &lifecycle.PatternContext{
				Type:       best.Type,
				Direction:  best.Direction,
				Timeframe:  tf,
				Confidence: best.Confidence,
			}, 0, candles[i].Time)
		trade.ShareCount = assessment.ShareCount

		lifecycle.AdvanceTrade(trade, candles[i+1:])
		trades = append(trades, trade)

		if trade.Status != lifecycle.TradeResolved || trade.ResolvedAt == nil {
			break
		}
		// resume scanning after the bar that resolved the trade
		for i < len(candles)-1 && !candles[i+1].Time.After(*trade.ResolvedAt) {
			i++
		}
	}

	return trades
}

func pickPattern(detected []patterns.PatternResult, minConfidence float64) *patterns.PatternResult {
	for i := range detected {
		if detected[i].Confidence < minConfidence || detected[i].Direction == patterns.Neutral {
			continue
		}
		return &detected[i]
	}
	return nil
}

func report(symbol string, bars int, trades []*lifecycle.SimulatedTrade) {
	fmt.Printf("Replay: %s over %d bars, %d trades\n\n", symbol, bars, len(trades))
	if len(trades) == 0 {
		return
	}

	grouped := make(map[lifecycle.PerformanceKey][]*lifecycle.SimulatedTrade)
	for _, t := range trades {
		if key, ok := lifecycle.KeyFor(t); ok {
			grouped[key] = append(grouped[key], t)
		}
	}

	keys := make([]lifecycle.PerformanceKey, 0, len(grouped))
	for key := range grouped {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].PatternType != keys[j].PatternType {
			return keys[i].PatternType < keys[j].PatternType
		}
		return keys[i].Regime < keys[j].Regime
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PATTERN\tDIR\tREGIME\tTRADES\tWIN%\tAVG R\tPF\tTOTAL PNL%")
	var totalPnL float64
	for _, key := range keys {
		perf := lifecycle.ComputePerformance(key, grouped[key])
		totalPnL += perf.TotalPnLPct
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.1f\t%.2f\t%.2f\t%.2f\n",
			key.PatternType, key.Direction, key.Regime,
			perf.TotalTrades, perf.WinRate, perf.AvgRMultiple, perf.ProfitFactor, perf.TotalPnLPct)
	}
	w.Flush()

	fmt.Printf("\nTotal PnL: %.2f%%\n", totalPnL)

	var open int
	for _, t := range trades {
		if t.Status != lifecycle.TradeResolved {
			open++
		}
	}
	if open > 0 {
		fmt.Printf("%d trade(s) still open at end of series\n", open)
	}
}
