package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"pattern-signal-engine/internal/patterns"
)

type stubCompleter struct {
	response string
	err      error
	calls    int
}

func (s *stubCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	s.calls++
	return s.response, s.err
}

type stubRecorder struct {
	records []recordedCall
}

type recordedCall struct {
	symbol       string
	parsed       bool
	fallbackUsed bool
}

func (s *stubRecorder) SaveAdvisoryRecord(ctx context.Context, symbol, promptHash, response string, parsed, fallbackUsed bool) error {
	s.records = append(s.records, recordedCall{symbol: symbol, parsed: parsed, fallbackUsed: fallbackUsed})
	return nil
}

func bullishInput() AdvisoryInput {
	return AdvisoryInput{
		Symbol:       "AAPL",
		CurrentPrice: 100,
		Patterns: []patterns.PatternResult{
			{
				Type:        patterns.BullishEngulfing,
				Direction:   patterns.Bullish,
				Confidence:  90,
				Description: "bullish engulfing",
				Entry:       101,
				Stop:        97,
				Target:      109,
			},
			{
				Type:       patterns.Doji,
				Direction:  patterns.Neutral,
				Confidence: 55,
			},
		},
	}
}

func testAdvisor(c Completer, r Recorder, cfg AdvisorConfig) *Advisor {
	return NewAdvisor(c, r, cfg, zerolog.Nop())
}

func TestAdviseNilCompleterFallsBack(t *testing.T) {
	rec := &stubRecorder{}
	adv := testAdvisor(nil, rec, AdvisorConfig{})

	advice, err := adv.Advise(context.Background(), bullishInput())
	if err != nil {
		t.Fatalf("Advise: %v", err)
	}
	if !advice.FallbackUsed {
		t.Error("expected fallback with no completer")
	}
	if advice.Action != "buy" || advice.Entry != 101 || advice.Stop != 97 || advice.Target != 109 {
		t.Errorf("fallback should use the top pattern's levels, got %+v", advice)
	}
	if len(rec.records) != 1 || !rec.records[0].fallbackUsed {
		t.Errorf("fallback call should be recorded, got %+v", rec.records)
	}
}

func TestAdviseFallbackNoPatterns(t *testing.T) {
	adv := testAdvisor(nil, nil, AdvisorConfig{})

	input := bullishInput()
	input.Patterns = nil
	advice, err := adv.Advise(context.Background(), input)
	if err != nil {
		t.Fatalf("Advise: %v", err)
	}
	if advice.Action != "hold" || advice.Entry != 100 {
		t.Errorf("no patterns should hold at current price, got %+v", advice)
	}
}

func TestAdviseParsesResponse(t *testing.T) {
	comp := &stubCompleter{
		response: "Here is my analysis:\n```json\n{\"action\":\"buy\",\"entry\":102,\"stop\":98,\"target\":110,\"confidence\":72,\"reasoning\":\"momentum\"}\n```",
	}
	rec := &stubRecorder{}
	adv := testAdvisor(comp, rec, AdvisorConfig{MaxConcurrentCalls: 1})

	advice, err := adv.Advise(context.Background(), bullishInput())
	if err != nil {
		t.Fatalf("Advise: %v", err)
	}
	if advice.FallbackUsed {
		t.Error("parsed response should not be marked fallback")
	}
	if advice.Action != "buy" || advice.Entry != 102 || advice.Confidence != 72 {
		t.Errorf("advice = %+v", advice)
	}
	if advice.Symbol != "AAPL" {
		t.Errorf("symbol = %q, want AAPL", advice.Symbol)
	}
	if len(rec.records) != 1 || !rec.records[0].parsed || rec.records[0].fallbackUsed {
		t.Errorf("records = %+v", rec.records)
	}
}

func TestAdviseFallsBackOnCompleterError(t *testing.T) {
	comp := &stubCompleter{err: errors.New("rate limited")}
	adv := testAdvisor(comp, nil, AdvisorConfig{})

	advice, err := adv.Advise(context.Background(), bullishInput())
	if err != nil {
		t.Fatalf("Advise should absorb completer errors, got %v", err)
	}
	if !advice.FallbackUsed || advice.Action != "buy" {
		t.Errorf("advice = %+v", advice)
	}
}

func TestAdviseFallsBackOnGarbageResponse(t *testing.T) {
	comp := &stubCompleter{response: "I cannot help with that."}
	adv := testAdvisor(comp, nil, AdvisorConfig{})

	advice, err := adv.Advise(context.Background(), bullishInput())
	if err != nil {
		t.Fatalf("Advise: %v", err)
	}
	if !advice.FallbackUsed {
		t.Error("unparseable response must fall back")
	}
}

func TestAdviseRequiresSymbol(t *testing.T) {
	adv := testAdvisor(nil, nil, AdvisorConfig{})
	if _, err := adv.Advise(context.Background(), AdvisoryInput{}); err == nil {
		t.Error("empty symbol should be rejected")
	}
}

func TestParseAdviceRejectsInvalidAction(t *testing.T) {
	_, err := parseAdvice("AAPL", `{"action":"yolo","entry":1}`)
	if err == nil {
		t.Error("invalid action should fail parsing")
	}
}

func TestParseAdviceNoJSON(t *testing.T) {
	if _, err := parseAdvice("AAPL", "plain text"); err == nil {
		t.Error("response without JSON should fail")
	}
}

func TestInPauseWindow(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		now        string
		want       bool
	}{
		{"inside", "09:00", "17:00", "12:00", true},
		{"before", "09:00", "17:00", "08:59", false},
		{"at end", "09:00", "17:00", "17:00", false},
		{"wraps midnight inside", "22:00", "02:00", "23:30", true},
		{"wraps midnight after", "22:00", "02:00", "01:00", true},
		{"wraps midnight outside", "22:00", "02:00", "12:00", false},
		{"disabled", "", "", "12:00", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adv := testAdvisor(nil, nil, AdvisorConfig{PauseStart: tt.start, PauseEnd: tt.end})
			now, err := time.Parse("15:04", tt.now)
			if err != nil {
				t.Fatal(err)
			}
			if got := adv.inPauseWindow(now); got != tt.want {
				t.Errorf("inPauseWindow(%s) = %t, want %t", tt.now, got, tt.want)
			}
		})
	}
}

func TestAdvisePauseWindowSkipsLLM(t *testing.T) {
	comp := &stubCompleter{response: `{"action":"buy"}`}
	adv := testAdvisor(comp, nil, AdvisorConfig{PauseStart: "00:00", PauseEnd: "23:59"})

	advice, err := adv.Advise(context.Background(), bullishInput())
	if err != nil {
		t.Fatalf("Advise: %v", err)
	}
	if !advice.FallbackUsed {
		t.Error("pause window should force the fallback path")
	}
	if comp.calls != 0 {
		t.Errorf("completer called %d times during pause window", comp.calls)
	}
}
