package brain

// strategyTally tracks per-strategy outcomes inside one symbol record.
type strategyTally struct {
	Trades      int     `json:"trades"`
	Wins        int     `json:"wins"`
	TotalProfit float64 `json:"total_profit"`
}

// SymbolPerformance is the per-symbol learning record. Created lazily on
// the first lesson for a symbol, updated on every lesson after, never
// deleted.
type SymbolPerformance struct {
	Symbol        string                    `json:"symbol"`
	Trades        int                       `json:"trades"`
	Wins          int                       `json:"wins"`
	Losses        int                       `json:"losses"`
	WinRate       float64                   `json:"win_rate"`
	AvgWinPct     float64                   `json:"avg_win_pct"`
	AvgLossPct    float64                   `json:"avg_loss_pct"`
	BestStrategy  string                    `json:"best_strategy"`
	BestTrend     string                    `json:"best_trend"`    // preferred trend regime
	BestMomentum  float64                   `json:"best_momentum"` // EMA of winning momentum
	Confidence    float64                   `json:"confidence"`    // 0-95
	ByStrategy    map[string]*strategyTally `json:"by_strategy"`
}

func newSymbolPerformance(symbol string) *SymbolPerformance {
	return &SymbolPerformance{
		Symbol:     symbol,
		ByStrategy: make(map[string]*strategyTally),
	}
}

// update folds one lesson into the record. weights is consulted so the
// best-strategy pick reflects current strategy preference, not raw counts.
func (s *SymbolPerformance) update(lesson *Lesson, weights *StrategyWeights) {
	s.Trades++
	if lesson.Win {
		s.Wins++
		s.AvgWinPct = runningAvg(s.AvgWinPct, lesson.ProfitPercent, s.Wins)
		s.BestTrend = lesson.Market.Trend
		s.BestMomentum = ema(s.BestMomentum, lesson.Market.Momentum, 0.2)
	} else {
		s.Losses++
		s.AvgLossPct = runningAvg(s.AvgLossPct, lesson.ProfitPercent, s.Losses)
	}
	s.WinRate = float64(s.Wins) / float64(s.Trades) * 100

	tally, ok := s.ByStrategy[lesson.Strategy]
	if !ok {
		tally = &strategyTally{}
		s.ByStrategy[lesson.Strategy] = tally
	}
	tally.Trades++
	if lesson.Win {
		tally.Wins++
	}
	tally.TotalProfit += lesson.ProfitPercent

	s.BestStrategy = s.bestStrategy(weights)

	// Confidence grows with sample size and win rate, capped at 95.
	s.Confidence = clampFloat(s.WinRate*0.5+minFloat64(float64(s.Trades)*2, 45), 0, 95)
}

// bestStrategy ranks this symbol's strategies by weight-adjusted win rate.
// Only strategies with at least 5 trades qualify; with no qualifier the
// most-traded strategy wins.
func (s *SymbolPerformance) bestStrategy(weights *StrategyWeights) string {
	best := ""
	bestScore := -1.0
	mostTraded := ""
	mostTrades := 0

	for name, tally := range s.ByStrategy {
		if tally.Trades > mostTrades {
			mostTrades = tally.Trades
			mostTraded = name
		}
		if tally.Trades < 5 {
			continue
		}
		winRate := float64(tally.Wins) / float64(tally.Trades)
		score := weights.Get(name) * (0.5 + winRate)
		if score > bestScore || (score == bestScore && name < best) {
			bestScore = score
			best = name
		}
	}

	if best == "" {
		return mostTraded
	}
	return best
}

func runningAvg(avg, sample float64, n int) float64 {
	if n <= 1 {
		return sample
	}
	return (avg*float64(n-1) + sample) / float64(n)
}
