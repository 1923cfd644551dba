package brain

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// snapshotSchemaVersion guards Export/Import compatibility.
const snapshotSchemaVersion = 1

// evolutionHistoryCap bounds the evolution ring buffer.
const evolutionHistoryCap = 100

// EvolutionSnapshot records one step of the brain's evolution, kept in a
// bounded ring for the dashboard.
type EvolutionSnapshot struct {
	Version        int       `json:"version"`
	Timestamp      time.Time `json:"timestamp"`
	TotalTrades    int64     `json:"total_trades"`
	WinRate        float64   `json:"win_rate"`
	MemorySize     int       `json:"memory_size"`
	LearningRate   float64   `json:"learning_rate"`
	EntryThreshold float64   `json:"entry_threshold"`
	Insight        string    `json:"insight,omitempty"`
}

// Brain is the aggregate root of all learned state. It has exactly one
// writer path, LearnFromTrade; every read and write goes through the
// mutex so each cycle observes the state atomically.
type Brain struct {
	mu sync.RWMutex

	version       int
	cycles        int64
	totalTrades   int64
	winningTrades int64
	losingTrades  int64

	memory  *MemoryStore
	weights *StrategyWeights
	symbols map[string]*SymbolPerformance
	timing  *TimingTable
	tuner   *Tuner

	history    []EvolutionSnapshot
	strategies []string
	lastUpdate time.Time

	logger zerolog.Logger
}

// New creates a brain with fresh defaults for the given strategy set.
func New(strategies []string, logger zerolog.Logger) *Brain {
	b := &Brain{
		strategies: append([]string(nil), strategies...),
		logger:     logger.With().Str("component", "brain").Logger(),
	}
	b.resetLocked()
	return b
}

// Reset restores the brain to fresh defaults. Used by tests and the
// dashboard's reset operation.
func (b *Brain) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
}

func (b *Brain) resetLocked() {
	b.version = 1
	b.cycles = 0
	b.totalTrades = 0
	b.winningTrades = 0
	b.losingTrades = 0
	b.memory = NewMemoryStore()
	b.weights = NewStrategyWeights(b.strategies)
	b.symbols = make(map[string]*SymbolPerformance)
	b.timing = NewTimingTable()
	b.tuner = NewTuner()
	b.history = make([]EvolutionSnapshot, 0, evolutionHistoryCap)
	b.lastUpdate = time.Now()
}

// LearnFromTrade is the brain's sole mutator: it feeds one closed trade
// through the memory store, strategy weights, symbol history, timing
// table and both tuner layers, then snapshots the evolution step.
func (b *Brain) LearnFromTrade(lesson *Lesson) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalTrades++
	if lesson.Win {
		b.winningTrades++
	} else {
		b.losingTrades++
	}

	insights := b.memory.Observe(lesson, b.tuner.LearningRate)
	b.memory.Consolidate(time.Now())

	b.weights.Adjust(lesson.Strategy, lesson.Win, lesson.ProfitPercent)

	perf, ok := b.symbols[lesson.Symbol]
	if !ok {
		perf = newSymbolPerformance(lesson.Symbol)
		b.symbols[lesson.Symbol] = perf
	}
	perf.update(lesson, b.weights)

	b.timing.update(lesson)

	b.tuner.ObserveOutcome(lesson)
	b.tuner.TuneAdaptiveParameters(lesson)
	b.tuner.AdaptLearningRate(b.memoryWinRateLocked())

	b.version++
	b.lastUpdate = time.Now()

	insight := ""
	if len(insights) > 0 {
		insight = insights[0]
	}
	b.appendEvolutionLocked(insight)

	b.logger.Info().
		Str("symbol", lesson.Symbol).
		Str("strategy", lesson.Strategy).
		Bool("win", lesson.Win).
		Float64("profit_pct", lesson.ProfitPercent).
		Int("memory_size", b.memory.Size()).
		Msg("learned from trade")

	return insights
}

// memoryWinRateLocked estimates the recent win rate, weighting the top 50
// memory records by their weight.
func (b *Brain) memoryWinRateLocked() float64 {
	top := b.memory.TopRecords(50)
	if len(top) == 0 {
		return 50
	}
	weighted := 0.0
	totalWeight := 0.0
	for _, rec := range top {
		weighted += rec.SuccessRate * rec.Weight
		totalWeight += rec.Weight
	}
	if totalWeight == 0 {
		return 50
	}
	return weighted / totalWeight
}

func (b *Brain) appendEvolutionLocked(insight string) {
	snap := EvolutionSnapshot{
		Version:        b.version,
		Timestamp:      b.lastUpdate,
		TotalTrades:    b.totalTrades,
		WinRate:        b.winRateLocked(),
		MemorySize:     b.memory.Size(),
		LearningRate:   b.tuner.LearningRate,
		EntryThreshold: b.tuner.Params.EntryConfidenceThreshold,
		Insight:        insight,
	}
	b.history = append(b.history, snap)
	if len(b.history) > evolutionHistoryCap {
		b.history = b.history[len(b.history)-evolutionHistoryCap:]
	}
}

func (b *Brain) winRateLocked() float64 {
	decided := b.winningTrades + b.losingTrades
	if decided == 0 {
		return 0
	}
	return float64(b.winningTrades) / float64(decided) * 100
}

// RecordCycle bumps the cycle counter.
func (b *Brain) RecordCycle() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cycles++
}

// LearningStats is the dashboard-facing summary of learned state.
type LearningStats struct {
	Version         int                 `json:"version"`
	Cycles          int64               `json:"cycles"`
	TotalTrades     int64               `json:"total_trades"`
	WinningTrades   int64               `json:"winning_trades"`
	LosingTrades    int64               `json:"losing_trades"`
	WinRate         float64             `json:"win_rate"`
	MemorySize      int                 `json:"memory_size"`
	LearningRate    float64             `json:"learning_rate"`
	ExplorationRate float64             `json:"exploration_rate"`
	StrategyWeights map[string]float64  `json:"strategy_weights"`
	Parameters      AdaptiveParameters  `json:"parameters"`
	Risk            RiskLearning        `json:"risk"`
	BestHours       []int               `json:"best_hours"`
	WorstHours      []int               `json:"worst_hours"`
	SymbolsTracked  int                 `json:"symbols_tracked"`
	Evolution       []EvolutionSnapshot `json:"evolution"`
	LastUpdate      time.Time           `json:"last_update"`
}

// GetLearningStats returns a copy of the brain's summary state.
func (b *Brain) GetLearningStats() LearningStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return LearningStats{
		Version:         b.version,
		Cycles:          b.cycles,
		TotalTrades:     b.totalTrades,
		WinningTrades:   b.winningTrades,
		LosingTrades:    b.losingTrades,
		WinRate:         b.winRateLocked(),
		MemorySize:      b.memory.Size(),
		LearningRate:    b.tuner.LearningRate,
		ExplorationRate: b.tuner.ExplorationRate,
		StrategyWeights: b.weights.All(),
		Parameters:      b.tuner.Params,
		Risk:            b.tuner.Risk,
		BestHours:       append([]int(nil), b.timing.BestHours...),
		WorstHours:      append([]int(nil), b.timing.WorstHours...),
		SymbolsTracked:  len(b.symbols),
		Evolution:       append([]EvolutionSnapshot(nil), b.history...),
		LastUpdate:      b.lastUpdate,
	}
}

// GetStrategyWeights returns a copy of the strategy weight table.
func (b *Brain) GetStrategyWeights() map[string]float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.weights.All()
}

// GetOptimizedParameters returns the live adaptive parameters.
func (b *Brain) GetOptimizedParameters() AdaptiveParameters {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tuner.Params
}

// GetRiskLearning returns the optimal-learned risk layer.
func (b *Brain) GetRiskLearning() RiskLearning {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tuner.Risk
}

// GetTimingTable returns a copy of the hourly and daily timing tables.
func (b *Brain) GetTimingTable() TimingTable {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := *b.timing
	out.BestHours = append([]int(nil), b.timing.BestHours...)
	out.WorstHours = append([]int(nil), b.timing.WorstHours...)
	return out
}

// GetBestStrategyForSymbol returns the learned best strategy for a symbol,
// or the globally highest-weighted strategy when the symbol is unknown.
func (b *Brain) GetBestStrategyForSymbol(symbol string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if perf, ok := b.symbols[symbol]; ok && perf.BestStrategy != "" {
		return perf.BestStrategy
	}

	best := ""
	bestWeight := -1.0
	for _, name := range b.weights.Names() {
		if w := b.weights.Get(name); w > bestWeight {
			bestWeight = w
			best = name
		}
	}
	return best
}

// GetSymbolPerformance returns a copy of the record for a symbol, if any.
func (b *Brain) GetSymbolPerformance(symbol string) (SymbolPerformance, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	perf, ok := b.symbols[symbol]
	if !ok {
		return SymbolPerformance{}, false
	}
	return *perf, true
}

// UpdateParameters overwrites the live parameters, clamped to bounds.
func (b *Brain) UpdateParameters(params AdaptiveParameters) {
	b.mu.Lock()
	defer b.mu.Unlock()
	params.Clamp()
	b.tuner.Params = params
	b.version++
	b.lastUpdate = time.Now()
}

// brainSnapshot is the versioned serialization schema. Every field carries
// an explicit type so imports can validate before committing.
type brainSnapshot struct {
	SchemaVersion int                           `json:"schema_version"`
	Version       int                           `json:"version"`
	Cycles        int64                         `json:"cycles"`
	TotalTrades   int64                         `json:"total_trades"`
	WinningTrades int64                         `json:"winning_trades"`
	LosingTrades  int64                         `json:"losing_trades"`
	Memory        []*MemoryRecord               `json:"memory"`
	Weights       map[string]float64            `json:"weights"`
	Symbols       map[string]*SymbolPerformance `json:"symbols"`
	Timing        *TimingTable                  `json:"timing"`
	Tuner         *Tuner                        `json:"tuner"`
	History       []EvolutionSnapshot           `json:"history"`
	Strategies    []string                      `json:"strategies"`
	LastUpdate    time.Time                     `json:"last_update"`
}

// Export serializes the full brain state, maps included, as a versioned
// JSON blob for the persistence collaborator.
func (b *Brain) Export() (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	memory := make([]*MemoryRecord, 0, b.memory.Size())
	for _, rec := range b.memory.Records {
		memory = append(memory, rec)
	}

	snap := brainSnapshot{
		SchemaVersion: snapshotSchemaVersion,
		Version:       b.version,
		Cycles:        b.cycles,
		TotalTrades:   b.totalTrades,
		WinningTrades: b.winningTrades,
		LosingTrades:  b.losingTrades,
		Memory:        memory,
		Weights:       b.weights.All(),
		Symbols:       b.symbols,
		Timing:        b.timing,
		Tuner:         b.tuner,
		History:       b.history,
		Strategies:    b.strategies,
		LastUpdate:    b.lastUpdate,
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("export brain: %w", err)
	}
	return string(data), nil
}

// Import restores the brain from an exported blob. It fails closed: on any
// malformed or invalid input it returns an error and leaves the current
// state untouched.
func (b *Brain) Import(data string) error {
	var snap brainSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return fmt.Errorf("import brain: %w", err)
	}
	if err := validateSnapshot(&snap); err != nil {
		return fmt.Errorf("import brain: %w", err)
	}

	memory := NewMemoryStore()
	for _, rec := range snap.Memory {
		memory.Records[rec.Fingerprint] = rec
	}

	weights := &StrategyWeights{Weights: snap.Weights}
	snap.Tuner.Params.Clamp()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.version = snap.Version
	b.cycles = snap.Cycles
	b.totalTrades = snap.TotalTrades
	b.winningTrades = snap.WinningTrades
	b.losingTrades = snap.LosingTrades
	b.memory = memory
	b.weights = weights
	b.symbols = snap.Symbols
	b.timing = snap.Timing
	b.tuner = snap.Tuner
	b.history = snap.History
	b.strategies = snap.Strategies
	b.lastUpdate = snap.LastUpdate

	b.logger.Info().
		Int("version", b.version).
		Int("memory_size", b.memory.Size()).
		Int64("total_trades", b.totalTrades).
		Msg("brain state imported")

	return nil
}

// validateSnapshot checks every field the import depends on before any
// state is committed.
func validateSnapshot(snap *brainSnapshot) error {
	if snap.SchemaVersion != snapshotSchemaVersion {
		return fmt.Errorf("unsupported schema version %d", snap.SchemaVersion)
	}
	if snap.Version < 1 {
		return fmt.Errorf("invalid version %d", snap.Version)
	}
	if snap.TotalTrades < 0 || snap.WinningTrades < 0 || snap.LosingTrades < 0 {
		return fmt.Errorf("negative trade counters")
	}
	if snap.WinningTrades+snap.LosingTrades > snap.TotalTrades {
		return fmt.Errorf("trade counters inconsistent")
	}
	if snap.Weights == nil || snap.Timing == nil || snap.Tuner == nil || snap.Symbols == nil {
		return fmt.Errorf("missing required sections")
	}
	if len(snap.Memory) > MemoryCapacity {
		return fmt.Errorf("memory section exceeds capacity: %d", len(snap.Memory))
	}
	for _, rec := range snap.Memory {
		if rec == nil || rec.Fingerprint == "" {
			return fmt.Errorf("memory record missing fingerprint")
		}
		if rec.Weight < 0 || rec.SuccessRate < 0 || rec.SuccessRate > 100 {
			return fmt.Errorf("memory record %s out of range", rec.Fingerprint)
		}
	}
	for name, weight := range snap.Weights {
		if weight < 0 {
			return fmt.Errorf("strategy %s has negative weight", name)
		}
	}
	if snap.Tuner.LearningRate <= 0 || snap.Tuner.LearningRate > 1 {
		return fmt.Errorf("learning rate out of range: %f", snap.Tuner.LearningRate)
	}
	return nil
}
