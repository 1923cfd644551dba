package brain

import (
	"fmt"
	"sort"
	"time"
)

// Confidence score clamp bounds.
const (
	confidenceBase  = 55.0
	confidenceFloor = 10.0
	confidenceCap   = 95.0
)

// Confidence is the scorer's verdict for a candidate entry.
type Confidence struct {
	Score   float64  `json:"score"` // 0-100, clamped 10-95
	Enter   bool     `json:"enter"`
	Reasons []string `json:"reasons"`
}

// TimingTable holds smoothed win rates per hour of day and day of week,
// with derived best/worst hour lists.
type TimingTable struct {
	HourlyWinRate [24]float64 `json:"hourly_win_rate"`
	HourlySamples [24]int     `json:"hourly_samples"`
	DailyWinRate  [7]float64  `json:"daily_win_rate"`
	DailySamples  [7]int      `json:"daily_samples"`
	BestHours     []int       `json:"best_hours"`
	WorstHours    []int       `json:"worst_hours"`
}

// NewTimingTable seeds every slot at the 50% prior.
func NewTimingTable() *TimingTable {
	t := &TimingTable{}
	for i := range t.HourlyWinRate {
		t.HourlyWinRate[i] = 50
	}
	for i := range t.DailyWinRate {
		t.DailyWinRate[i] = 50
	}
	return t
}

// update folds one lesson outcome into the hourly and daily tables and
// rederives the best/worst hour lists.
func (t *TimingTable) update(lesson *Lesson) {
	outcome := 0.0
	if lesson.Win {
		outcome = 100
	}

	hour := lesson.EntryTiming.Hour
	if hour >= 0 && hour < 24 {
		t.HourlyWinRate[hour] = ema(t.HourlyWinRate[hour], outcome, 0.1)
		t.HourlySamples[hour]++
	}

	day := lesson.EntryTiming.Weekday
	if day >= 0 && day < 7 {
		t.DailyWinRate[day] = ema(t.DailyWinRate[day], outcome, 0.1)
		t.DailySamples[day]++
	}

	t.derive()
}

// derive rebuilds the best/worst hour lists. An hour needs at least 5
// samples before it can qualify either way.
func (t *TimingTable) derive() {
	t.BestHours = t.BestHours[:0]
	t.WorstHours = t.WorstHours[:0]
	for hour := 0; hour < 24; hour++ {
		if t.HourlySamples[hour] < 5 {
			continue
		}
		if t.HourlyWinRate[hour] >= 60 {
			t.BestHours = append(t.BestHours, hour)
		} else if t.HourlyWinRate[hour] <= 40 {
			t.WorstHours = append(t.WorstHours, hour)
		}
	}
	sort.Ints(t.BestHours)
	sort.Ints(t.WorstHours)
}

func (t *TimingTable) isBestHour(hour int) bool {
	for _, h := range t.BestHours {
		if h == hour {
			return true
		}
	}
	return false
}

func (t *TimingTable) isWorstHour(hour int) bool {
	for _, h := range t.WorstHours {
		if h == hour {
			return true
		}
	}
	return false
}

// EntryConfidence combines strategy weight, symbol history, time of day,
// memory matches and the current indicators into a single entry score and
// an enter/skip decision against the live threshold.
func (b *Brain) EntryConfidence(symbol, strategy string, market MarketState, ind IndicatorSnapshot) Confidence {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.entryConfidenceLocked(symbol, strategy, market, ind, time.Now().UTC())
}

func (b *Brain) entryConfidenceLocked(symbol, strategy string, market MarketState, ind IndicatorSnapshot, now time.Time) Confidence {
	score := confidenceBase
	var reasons []string

	// Strategy preference.
	weight := b.weights.Get(strategy)
	score += (weight - 1) * 25
	if weight > 1.5 {
		score += 5
		reasons = append(reasons, fmt.Sprintf("strategy %s strongly preferred (weight %.2f)", strategy, weight))
	} else if weight < 0.7 {
		reasons = append(reasons, fmt.Sprintf("strategy %s out of favor (weight %.2f)", strategy, weight))
	}

	// Symbol history.
	if perf, ok := b.symbols[symbol]; ok && perf.Trades >= 3 {
		deviation := perf.WinRate - 50
		score += deviation * 0.4
		if perf.WinRate > 70 {
			score += 5
			reasons = append(reasons, fmt.Sprintf("%s strong performer (%.0f%% win rate)", symbol, perf.WinRate))
		} else if perf.WinRate < 40 {
			score -= 5
			reasons = append(reasons, fmt.Sprintf("%s weak performer (%.0f%% win rate)", symbol, perf.WinRate))
		}
	}

	// Time of day.
	hour := now.Hour()
	if b.timing.isBestHour(hour) {
		score += 15
		reasons = append(reasons, fmt.Sprintf("hour %02d is among the best trading hours", hour))
	} else if b.timing.isWorstHour(hour) {
		score -= 15
		reasons = append(reasons, fmt.Sprintf("hour %02d is among the worst trading hours", hour))
	}

	// Pattern memory.
	matches := b.memory.FindMatches(symbol, strategy, market, ind)
	if len(matches) > 0 {
		best := matches[0]
		score += best.SuccessRate * 0.3
		reasons = append(reasons, fmt.Sprintf("%d similar patterns remembered, best success %.0f%%",
			len(matches), best.SuccessRate))
		if len(matches) >= 3 && best.SuccessRate > 70 {
			score += 10
			reasons = append(reasons, "multiple strong pattern matches agree")
		}
	}

	// Indicator adjustments.
	switch {
	case ind.RSI < 25:
		score += 15
		reasons = append(reasons, fmt.Sprintf("RSI deeply oversold (%.1f)", ind.RSI))
	case ind.RSI < 30:
		score += 8
		reasons = append(reasons, fmt.Sprintf("RSI oversold (%.1f)", ind.RSI))
	case ind.RSI > 75:
		score -= 15
		reasons = append(reasons, fmt.Sprintf("RSI deeply overbought (%.1f)", ind.RSI))
	case ind.RSI > 70:
		score -= 8
		reasons = append(reasons, fmt.Sprintf("RSI overbought (%.1f)", ind.RSI))
	}

	if ind.MACD > 0 {
		score += 5
		if ind.MACDHistogram > 0 {
			score += 5
			reasons = append(reasons, "MACD positive and strengthening")
		}
	} else if ind.MACD < 0 {
		score -= 5
	}

	switch market.PricePosition {
	case PriceOversold:
		score += 8
		reasons = append(reasons, "price at lower Bollinger band")
	case PriceOverbought:
		score -= 8
		reasons = append(reasons, "price at upper Bollinger band")
	}

	score = clampFloat(score, confidenceFloor, confidenceCap)
	threshold := b.tuner.Params.EntryConfidenceThreshold
	enter := score >= threshold
	if enter {
		reasons = append(reasons, fmt.Sprintf("confidence %.1f meets threshold %.1f", score, threshold))
	} else {
		reasons = append(reasons, fmt.Sprintf("confidence %.1f below threshold %.1f", score, threshold))
	}

	return Confidence{Score: score, Enter: enter, Reasons: reasons}
}

// IsGoodTradingTime reports whether the current hour is statistically
// favorable, with a human-readable reason.
func (b *Brain) IsGoodTradingTime() (bool, string) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	now := time.Now().UTC()
	hour := now.Hour()
	day := int(now.Weekday())

	if b.timing.isWorstHour(hour) {
		return false, fmt.Sprintf("hour %02d has a %.0f%% historical win rate", hour, b.timing.HourlyWinRate[hour])
	}
	if b.timing.DailySamples[day] >= 5 && b.timing.DailyWinRate[day] < 40 {
		return false, fmt.Sprintf("%s has a %.0f%% historical win rate", now.Weekday(), b.timing.DailyWinRate[day])
	}
	if b.timing.isBestHour(hour) {
		return true, fmt.Sprintf("hour %02d is among the best trading hours (%.0f%% win rate)", hour, b.timing.HourlyWinRate[hour])
	}
	return true, "no negative timing signal"
}
