package brain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Memory store tuning constants.
const (
	MemoryCapacity   = 1000  // hard cap on retained records
	weightCap        = 15.0  // soft cap on record weight
	weightFloor      = 0.1   // below this a record is evicted
	staleAfter       = 168 * time.Hour
	staleMinUse      = 3     // activations needed to survive staleness
	similarityFloor  = 60.0  // minimum rubric score to count as a match
	defaultDecayRate = 0.002 // per-hour exponential weight decay
)

// PatternSnapshot is the coarse pattern a memory record generalizes.
type PatternSnapshot struct {
	Symbol     string            `json:"symbol"`
	Strategy   string            `json:"strategy"`
	Market     MarketState       `json:"market"`
	Indicators IndicatorSnapshot `json:"indicators"`
}

// MemoryRecord is a weighted, fingerprinted generalization of similar
// lessons. It is mutated on every lesson matching its fingerprint and
// decayed on every consolidation pass.
type MemoryRecord struct {
	Fingerprint   string          `json:"fingerprint"`
	Pattern       PatternSnapshot `json:"pattern"`
	Weight        float64         `json:"weight"`
	Activations   int             `json:"activations"`
	LastActivated time.Time       `json:"last_activated"`
	SuccessRate   float64         `json:"success_rate"`   // 0-100, EMA smoothed
	AvgProfitPct  float64         `json:"avg_profit_pct"` // EMA smoothed
	Confidence    float64         `json:"confidence"`     // 5-99
	DecayRate     float64         `json:"decay_rate"`
}

// Effectiveness ranks records for lookup and pruning.
func (r *MemoryRecord) Effectiveness() float64 {
	return (r.SuccessRate / 100) * r.Weight * (r.Confidence / 100)
}

// MemoryStore holds pattern records keyed by fingerprint, bounded at
// MemoryCapacity with least-effective-first eviction.
type MemoryStore struct {
	Records map[string]*MemoryRecord `json:"records"`
}

// NewMemoryStore creates an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{Records: make(map[string]*MemoryRecord)}
}

// Size returns the number of retained records.
func (m *MemoryStore) Size() int {
	return len(m.Records)
}

// Observe feeds one lesson into the store: strengthens the matching record
// or seeds a new one, then returns human-readable insights describing what
// changed. learningRate is the current EMA alpha.
func (m *MemoryStore) Observe(lesson *Lesson, learningRate float64) []string {
	fp := Fingerprint(lesson.Symbol, lesson.Strategy, lesson.Market, lesson.Indicators)
	now := lesson.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	rec, exists := m.Records[fp]
	if !exists {
		rec = &MemoryRecord{
			Fingerprint: fp,
			Pattern: PatternSnapshot{
				Symbol:     lesson.Symbol,
				Strategy:   lesson.Strategy,
				Market:     lesson.Market,
				Indicators: lesson.Indicators,
			},
			Weight:        0.8,
			Activations:   1,
			LastActivated: now,
			SuccessRate:   0,
			AvgProfitPct:  lesson.ProfitPercent,
			Confidence:    50,
			DecayRate:     defaultDecayRate,
		}
		if lesson.Win {
			rec.Weight = 1.2
			rec.SuccessRate = 100
		}
		m.Records[fp] = rec
		return []string{fmt.Sprintf("new pattern %s seeded with weight %.2f", fp, rec.Weight)}
	}

	rec.Activations++
	rec.LastActivated = now

	// EMA updates toward the observed outcome.
	outcome := 0.0
	if lesson.Win {
		outcome = 100
	}
	rec.SuccessRate = rec.SuccessRate*(1-learningRate) + outcome*learningRate
	rec.AvgProfitPct = rec.AvgProfitPct*(1-learningRate) + lesson.ProfitPercent*learningRate

	var insight string
	if lesson.Win {
		boost := 1.15 * (1 + clampFloat(lesson.ProfitPercent, 0, 10)*0.02)
		rec.Weight = minFloat64(rec.Weight*boost, weightCap)
		rec.Confidence = clampFloat(rec.Confidence+2, 5, 99)
		insight = fmt.Sprintf("pattern %s reinforced: weight %.2f, success %.0f%%",
			fp, rec.Weight, rec.SuccessRate)
	} else {
		penalty := 1.1 + clampFloat(math.Abs(lesson.ProfitPercent), 0, 10)*0.03
		rec.Weight = maxFloat64(rec.Weight/penalty, weightFloor)
		rec.Confidence = clampFloat(rec.Confidence-3, 5, 99)
		insight = fmt.Sprintf("pattern %s weakened: weight %.2f, success %.0f%%",
			fp, rec.Weight, rec.SuccessRate)
	}

	return []string{insight}
}

// FindMatches returns records for the same strategy and symbol (or the "*"
// wildcard symbol) whose similarity rubric score reaches the floor, ranked
// by effectiveness descending.
func (m *MemoryStore) FindMatches(symbol, strategy string, market MarketState, ind IndicatorSnapshot) []*MemoryRecord {
	var matches []*MemoryRecord
	for _, rec := range m.Records {
		if rec.Pattern.Strategy != strategy {
			continue
		}
		if rec.Pattern.Symbol != symbol && rec.Pattern.Symbol != "*" {
			continue
		}
		if similarity(rec.Pattern, market, ind) < similarityFloor {
			continue
		}
		matches = append(matches, rec)
	}

	sort.Slice(matches, func(i, j int) bool {
		ei, ej := matches[i].Effectiveness(), matches[j].Effectiveness()
		if ei != ej {
			return ei > ej
		}
		return matches[i].Fingerprint < matches[j].Fingerprint
	})
	return matches
}

// similarity scores how closely a stored pattern matches current conditions.
// Rubric: trend match 30, volatility closeness 20/10, RSI zone 25, momentum
// closeness 15/5, MACD trend agreement 10. Max 100.
func similarity(p PatternSnapshot, market MarketState, ind IndicatorSnapshot) float64 {
	score := 0.0

	if p.Market.Trend == market.Trend {
		score += 30
	}

	volDiff := math.Abs(p.Market.Volatility - market.Volatility)
	if volDiff <= 10 {
		score += 20
	} else if volDiff <= 25 {
		score += 10
	}

	if rsiZone(p.Indicators.RSI) == rsiZone(ind.RSI) {
		score += 25
	}

	momDiff := math.Abs(p.Market.Momentum - market.Momentum)
	if momDiff <= 15 {
		score += 15
	} else if momDiff <= 35 {
		score += 5
	}

	if macdSign(p.Indicators.MACD) == macdSign(ind.MACD) {
		score += 10
	}

	return score
}

// Consolidate applies time-decay to every record, evicts dead and stale
// records and truncates the store to capacity, least effective first.
// Runs after every Observe; idempotent with deterministic tie ordering.
func (m *MemoryStore) Consolidate(now time.Time) {
	for fp, rec := range m.Records {
		hours := now.Sub(rec.LastActivated).Hours()
		if hours > 0 {
			rec.Weight *= math.Exp(-rec.DecayRate * hours)
		}

		stale := now.Sub(rec.LastActivated) > staleAfter && rec.Activations < staleMinUse
		if rec.Weight < weightFloor || stale {
			delete(m.Records, fp)
		}
	}

	if len(m.Records) <= MemoryCapacity {
		return
	}

	ordered := make([]*MemoryRecord, 0, len(m.Records))
	for _, rec := range m.Records {
		ordered = append(ordered, rec)
	}
	sort.Slice(ordered, func(i, j int) bool {
		ei, ej := ordered[i].Effectiveness(), ordered[j].Effectiveness()
		if ei != ej {
			return ei > ej
		}
		return ordered[i].Fingerprint < ordered[j].Fingerprint
	})

	for _, victim := range ordered[MemoryCapacity:] {
		delete(m.Records, victim.Fingerprint)
	}
}

// TopRecords returns the n most effective records, used for recent win-rate
// estimation by the tuner.
func (m *MemoryStore) TopRecords(n int) []*MemoryRecord {
	ordered := make([]*MemoryRecord, 0, len(m.Records))
	for _, rec := range m.Records {
		ordered = append(ordered, rec)
	}
	sort.Slice(ordered, func(i, j int) bool {
		ei, ej := ordered[i].Effectiveness(), ordered[j].Effectiveness()
		if ei != ej {
			return ei > ej
		}
		return ordered[i].Fingerprint < ordered[j].Fingerprint
	})
	if len(ordered) > n {
		ordered = ordered[:n]
	}
	return ordered
}
