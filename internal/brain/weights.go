package brain

import "sort"

// Strategy weight bounds.
const (
	strategyWeightFloor = 0.05
	strategyWeightCap   = 5.0
)

// StrategyWeights is a normalized preference table: one scalar weight per
// known strategy. After every adjustment the table is renormalized so the
// weights sum to the number of strategies, preserving relative ranking
// while bounding absolute drift.
type StrategyWeights struct {
	Weights map[string]float64 `json:"weights"`
}

// NewStrategyWeights creates the table with every known strategy at 1.0.
// Strategies are enumerated at init time; Adjust never creates keys.
func NewStrategyWeights(strategies []string) *StrategyWeights {
	w := &StrategyWeights{Weights: make(map[string]float64, len(strategies))}
	for _, name := range strategies {
		w.Weights[name] = 1.0
	}
	return w
}

// Get returns the weight for a strategy, 1.0 for unknown names.
func (w *StrategyWeights) Get(name string) float64 {
	if weight, ok := w.Weights[name]; ok {
		return weight
	}
	return 1.0
}

// All returns a copy of the weight table.
func (w *StrategyWeights) All() map[string]float64 {
	out := make(map[string]float64, len(w.Weights))
	for name, weight := range w.Weights {
		out[name] = weight
	}
	return out
}

// Names returns the known strategy names, sorted.
func (w *StrategyWeights) Names() []string {
	names := make([]string, 0, len(w.Weights))
	for name := range w.Weights {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Adjust rewards or penalizes one strategy after a closed trade, scaling
// the step with profit magnitude, then renormalizes the whole table.
func (w *StrategyWeights) Adjust(name string, isWin bool, profitPercent float64) {
	weight, known := w.Weights[name]
	if !known {
		return
	}

	if isWin {
		boost := 0.15 + 0.3*minFloat64(profitPercent/5.0, 1.0)
		weight = minFloat64(weight+boost, strategyWeightCap)
	} else {
		loss := profitPercent
		if loss < 0 {
			loss = -loss
		}
		penalty := 0.1 + 0.25*minFloat64(loss/5.0, 1.0)
		weight = maxFloat64(weight-penalty, strategyWeightFloor)
	}
	w.Weights[name] = weight

	w.normalize()
}

// normalize rescales all weights so their sum equals the strategy count.
func (w *StrategyWeights) normalize() {
	if len(w.Weights) == 0 {
		return
	}
	sum := 0.0
	for _, weight := range w.Weights {
		sum += weight
	}
	if sum == 0 {
		return
	}
	factor := float64(len(w.Weights)) / sum
	for name := range w.Weights {
		w.Weights[name] *= factor
	}
}
