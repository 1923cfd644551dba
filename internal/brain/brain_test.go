package brain

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

var testStrategies = []string{"trend_follow", "mean_revert", "breakout"}

func newTestBrain() *Brain {
	return New(testStrategies, zerolog.Nop())
}

func TestLearnFromTradeCounters(t *testing.T) {
	b := newTestBrain()

	b.LearnFromTrade(makeLesson("BTCUSDT", "trend_follow", true, 2.0))
	b.LearnFromTrade(makeLesson("ETHUSDT", "mean_revert", false, -1.0))
	b.LearnFromTrade(makeLesson("BTCUSDT", "trend_follow", true, 1.5))

	stats := b.GetLearningStats()
	if stats.TotalTrades != 3 {
		t.Errorf("total trades = %d, want 3", stats.TotalTrades)
	}
	if stats.WinningTrades != 2 || stats.LosingTrades != 1 {
		t.Errorf("win/loss = %d/%d, want 2/1", stats.WinningTrades, stats.LosingTrades)
	}
	if stats.WinRate < 0 || stats.WinRate > 100 {
		t.Errorf("win rate %.1f out of range", stats.WinRate)
	}
	if stats.MemorySize == 0 {
		t.Error("memory should have at least one record after learning")
	}
	if stats.SymbolsTracked != 2 {
		t.Errorf("symbols tracked = %d, want 2", stats.SymbolsTracked)
	}
}

func TestLearnFromTradeBumpsVersion(t *testing.T) {
	b := newTestBrain()
	before := b.GetLearningStats().Version

	b.LearnFromTrade(makeLesson("BTCUSDT", "trend_follow", true, 2.0))

	after := b.GetLearningStats().Version
	if after != before+1 {
		t.Errorf("version = %d, want %d", after, before+1)
	}
}

func TestLearnFromTradeReturnsInsights(t *testing.T) {
	b := newTestBrain()
	insights := b.LearnFromTrade(makeLesson("BTCUSDT", "trend_follow", true, 2.0))
	if len(insights) == 0 {
		t.Fatal("expected at least one insight")
	}
	if !strings.Contains(insights[0], "BTCUSDT") {
		t.Errorf("insight should mention the symbol, got %q", insights[0])
	}
}

func TestEvolutionHistoryBounded(t *testing.T) {
	b := newTestBrain()
	for i := 0; i < evolutionHistoryCap+30; i++ {
		win := i%2 == 0
		b.LearnFromTrade(makeLesson("BTCUSDT", "trend_follow", win, 1.0))
	}

	stats := b.GetLearningStats()
	if len(stats.Evolution) != evolutionHistoryCap {
		t.Errorf("evolution history length = %d, want %d", len(stats.Evolution), evolutionHistoryCap)
	}
	// Most recent snapshot must be last.
	last := stats.Evolution[len(stats.Evolution)-1]
	if last.TotalTrades != stats.TotalTrades {
		t.Errorf("last snapshot trades = %d, want %d", last.TotalTrades, stats.TotalTrades)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	b := newTestBrain()
	b.LearnFromTrade(makeLesson("BTCUSDT", "trend_follow", true, 2.0))
	b.LearnFromTrade(makeLesson("ETHUSDT", "mean_revert", false, -1.5))
	b.RecordCycle()
	b.RecordCycle()

	exported, err := b.Export()
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	restored := newTestBrain()
	if err := restored.Import(exported); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	want := b.GetLearningStats()
	got := restored.GetLearningStats()

	if got.TotalTrades != want.TotalTrades {
		t.Errorf("total trades = %d, want %d", got.TotalTrades, want.TotalTrades)
	}
	if got.Cycles != want.Cycles {
		t.Errorf("cycles = %d, want %d", got.Cycles, want.Cycles)
	}
	if got.MemorySize != want.MemorySize {
		t.Errorf("memory size = %d, want %d", got.MemorySize, want.MemorySize)
	}
	if got.Version != want.Version {
		t.Errorf("version = %d, want %d", got.Version, want.Version)
	}
	for name, weight := range want.StrategyWeights {
		if got.StrategyWeights[name] != weight {
			t.Errorf("weight %s = %.4f, want %.4f", name, got.StrategyWeights[name], weight)
		}
	}
	if got.Parameters != want.Parameters {
		t.Errorf("parameters = %+v, want %+v", got.Parameters, want.Parameters)
	}
}

func TestImportRejectsGarbage(t *testing.T) {
	b := newTestBrain()
	b.LearnFromTrade(makeLesson("BTCUSDT", "trend_follow", true, 2.0))
	before := b.GetLearningStats()

	if err := b.Import("not json at all"); err == nil {
		t.Fatal("garbage import should fail")
	}

	after := b.GetLearningStats()
	if after.TotalTrades != before.TotalTrades || after.Version != before.Version {
		t.Error("failed import must leave state untouched")
	}
}

func TestImportRejectsWrongSchemaVersion(t *testing.T) {
	b := newTestBrain()
	blob := `{"schema_version": 99, "version": 1, "weights": {}, "symbols": {}, "timing": {}, "tuner": {"learning_rate": 0.1}}`
	if err := b.Import(blob); err == nil {
		t.Fatal("wrong schema version should be rejected")
	}
}

func TestImportRejectsInconsistentCounters(t *testing.T) {
	b := newTestBrain()
	exported, err := b.Export()
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	tampered := strings.Replace(exported, `"total_trades":0`, `"total_trades":-5`, 1)
	if tampered == exported {
		t.Fatal("tamper did not apply, test setup broken")
	}
	if err := b.Import(tampered); err == nil {
		t.Fatal("negative counters should be rejected")
	}
}

func TestGetBestStrategyForSymbol(t *testing.T) {
	b := newTestBrain()

	// Unknown symbol falls back to the highest global weight.
	for i := 0; i < 3; i++ {
		b.LearnFromTrade(makeLesson("BTCUSDT", "breakout", true, 3.0))
	}
	if got := b.GetBestStrategyForSymbol("DOGEUSDT"); got != "breakout" {
		t.Errorf("fallback best strategy = %q, want breakout", got)
	}
}

func TestBestStrategyPrefersQualifiedCompetitor(t *testing.T) {
	b := newTestBrain()

	// A long winning run that goes cold must lose the symbol to a
	// qualified competitor with the better weight-adjusted win rate.
	for i := 0; i < 20; i++ {
		b.LearnFromTrade(makeLesson("ETHUSDT", "trend_follow", true, 2.0))
	}
	for i := 0; i < 10; i++ {
		b.LearnFromTrade(makeLesson("ETHUSDT", "trend_follow", false, -2.0))
	}
	for i := 0; i < 10; i++ {
		b.LearnFromTrade(makeLesson("ETHUSDT", "mean_revert", true, 2.0))
	}

	if got := b.GetBestStrategyForSymbol("ETHUSDT"); got != "mean_revert" {
		t.Errorf("best strategy = %q, want mean_revert over the faded trend_follow", got)
	}
}

func TestBestStrategyIgnoresUnderSampledStrategy(t *testing.T) {
	b := newTestBrain()

	// Six mixed trades qualify; a perfect record of four does not.
	for i := 0; i < 3; i++ {
		b.LearnFromTrade(makeLesson("SOLUSDT", "trend_follow", true, 1.0))
		b.LearnFromTrade(makeLesson("SOLUSDT", "trend_follow", false, -1.0))
	}
	for i := 0; i < 4; i++ {
		b.LearnFromTrade(makeLesson("SOLUSDT", "breakout", true, 3.0))
	}

	if got := b.GetBestStrategyForSymbol("SOLUSDT"); got != "trend_follow" {
		t.Errorf("best strategy = %q, want the only qualified trend_follow", got)
	}
}

func TestGetSymbolPerformance(t *testing.T) {
	b := newTestBrain()
	b.LearnFromTrade(makeLesson("BTCUSDT", "trend_follow", true, 2.0))

	perf, ok := b.GetSymbolPerformance("BTCUSDT")
	if !ok {
		t.Fatal("expected performance record for BTCUSDT")
	}
	if perf.Trades != 1 {
		t.Errorf("trades = %d, want 1", perf.Trades)
	}
	if _, ok := b.GetSymbolPerformance("UNKNOWN"); ok {
		t.Error("unknown symbol should not have a record")
	}
}

func TestUpdateParametersClamps(t *testing.T) {
	b := newTestBrain()
	b.UpdateParameters(AdaptiveParameters{
		TakeProfitPercent:        100,
		StopLossPercent:          0.01,
		PositionSizePercent:      50,
		MaxOpenTrades:            99,
		EntryConfidenceThreshold: 5,
		ExitConfidenceThreshold:  5,
		TrailingStopPercent:      0.01,
		ScalingFactor:            100,
	})

	params := b.GetOptimizedParameters()
	if params.TakeProfitPercent > 10 || params.StopLossPercent < 0.3 {
		t.Errorf("parameters not clamped: %+v", params)
	}
	if params.MaxOpenTrades > 20 {
		t.Errorf("max open trades not clamped: %d", params.MaxOpenTrades)
	}
	if params.EntryConfidenceThreshold < 45 {
		t.Errorf("entry threshold not clamped: %.1f", params.EntryConfidenceThreshold)
	}
}

func TestReset(t *testing.T) {
	b := newTestBrain()
	b.LearnFromTrade(makeLesson("BTCUSDT", "trend_follow", true, 2.0))
	b.Reset()

	stats := b.GetLearningStats()
	if stats.TotalTrades != 0 || stats.MemorySize != 0 || stats.Version != 1 {
		t.Errorf("reset incomplete: %+v", stats)
	}
	if stats.StrategyWeights["trend_follow"] != 1.0 {
		t.Errorf("weights not reset: %v", stats.StrategyWeights)
	}
}
