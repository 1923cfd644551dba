package brain

import "math"

// Bounds for adaptive live parameters.
const (
	takeProfitFloor     = 0.5
	takeProfitCap       = 10.0
	stopLossFloor       = 0.3
	stopLossCap         = 5.0
	positionSizeFloor   = 1.5
	positionSizeCap     = 12.0
	entryThresholdFloor = 45.0
	entryThresholdCap   = 80.0
	trailingStopFloor   = 0.3
	trailingStopCap     = 3.0
	scalingFloor        = 0.5
	scalingCap          = 2.0

	learningRateFloor = 0.01
	learningRateCap   = 0.5
	explorationFloor  = 0.05
	explorationCap    = 0.5
)

// RiskLearning is the optimal-learned layer: what the bot believes the
// ideal risk parameters are, updated slowly from realized outcomes. It is
// intentionally decoupled from the live AdaptiveParameters so one bad
// trade cannot whipsaw live trading.
type RiskLearning struct {
	OptimalTakeProfit   float64 `json:"optimal_take_profit"`
	OptimalStopLoss     float64 `json:"optimal_stop_loss"`
	OptimalPositionSize float64 `json:"optimal_position_size"`
	RiskRewardRatio     float64 `json:"risk_reward_ratio"`
}

// AdaptiveParameters is the live layer actually used for sizing, exits and
// entry gating. Every update clamps to sane bounds.
type AdaptiveParameters struct {
	TakeProfitPercent        float64 `json:"take_profit_percent"`
	StopLossPercent          float64 `json:"stop_loss_percent"`
	PositionSizePercent      float64 `json:"position_size_percent"`
	MaxOpenTrades            int     `json:"max_open_trades"`
	EntryConfidenceThreshold float64 `json:"entry_confidence_threshold"`
	ExitConfidenceThreshold  float64 `json:"exit_confidence_threshold"`
	TrailingStopPercent      float64 `json:"trailing_stop_percent"`
	ScalingFactor            float64 `json:"scaling_factor"`
}

// Tuner owns both parameter layers plus the learning/exploration rates.
type Tuner struct {
	Risk            RiskLearning       `json:"risk"`
	Params          AdaptiveParameters `json:"params"`
	LearningRate    float64            `json:"learning_rate"`
	ExplorationRate float64            `json:"exploration_rate"`
}

// NewTuner creates a tuner with fresh defaults.
func NewTuner() *Tuner {
	return &Tuner{
		Risk: RiskLearning{
			OptimalTakeProfit:   2.5,
			OptimalStopLoss:     1.5,
			OptimalPositionSize: 5.0,
			RiskRewardRatio:     1.5,
		},
		Params: AdaptiveParameters{
			TakeProfitPercent:        2.5,
			StopLossPercent:          1.5,
			PositionSizePercent:      5.0,
			MaxOpenTrades:            3,
			EntryConfidenceThreshold: 55.0,
			ExitConfidenceThreshold:  30.0,
			TrailingStopPercent:      1.0,
			ScalingFactor:            1.0,
		},
		LearningRate:    0.1,
		ExplorationRate: 0.2,
	}
}

// ObserveOutcome updates the optimal-learned layer from a closed trade.
func (t *Tuner) ObserveOutcome(lesson *Lesson) {
	if lesson.Win {
		profit := lesson.ProfitPercent

		// Realized profit above target pulls the target toward it, slowly.
		if profit > t.Risk.OptimalTakeProfit {
			t.Risk.OptimalTakeProfit = ema(t.Risk.OptimalTakeProfit, profit, 0.08)
		}

		t.Risk.OptimalPositionSize = minFloat64(t.Risk.OptimalPositionSize*1.03, positionSizeCap)

		if t.Risk.OptimalStopLoss > 0 {
			rr := profit / t.Risk.OptimalStopLoss
			t.Risk.RiskRewardRatio = ema(t.Risk.RiskRewardRatio, rr, 0.1)
		}
		return
	}

	loss := math.Abs(lesson.ProfitPercent)

	// Loss blowing through the stop means the stop was too loose.
	if loss > t.Risk.OptimalStopLoss {
		t.Risk.OptimalStopLoss = maxFloat64(t.Risk.OptimalStopLoss*0.96, stopLossFloor)
	}

	t.Risk.OptimalPositionSize = maxFloat64(t.Risk.OptimalPositionSize*0.96, positionSizeFloor)
	if loss > 1.5*t.Risk.OptimalStopLoss {
		t.Risk.OptimalPositionSize = maxFloat64(t.Risk.OptimalPositionSize*0.9, positionSizeFloor)
	}
}

// TuneAdaptiveParameters nudges the live layer after a closed trade, using
// the same EMA/clamp philosophy as ObserveOutcome but independent state.
func (t *Tuner) TuneAdaptiveParameters(lesson *Lesson) {
	p := &t.Params

	if lesson.Win {
		if lesson.ProfitPercent > p.TakeProfitPercent {
			p.TakeProfitPercent = clampFloat(
				ema(p.TakeProfitPercent, lesson.ProfitPercent, 0.05),
				takeProfitFloor, takeProfitCap)
		}
		// Winning justifies slightly easier entries and a touch more scale.
		p.EntryConfidenceThreshold = clampFloat(p.EntryConfidenceThreshold-0.5,
			entryThresholdFloor, entryThresholdCap)
		p.ScalingFactor = clampFloat(p.ScalingFactor*1.01, scalingFloor, scalingCap)
		return
	}

	loss := math.Abs(lesson.ProfitPercent)
	if loss > p.StopLossPercent {
		p.StopLossPercent = clampFloat(
			ema(p.StopLossPercent, loss*0.9, 0.05),
			stopLossFloor, stopLossCap)
	}
	p.EntryConfidenceThreshold = clampFloat(p.EntryConfidenceThreshold+1.0,
		entryThresholdFloor, entryThresholdCap)
	p.TrailingStopPercent = clampFloat(p.TrailingStopPercent*0.98,
		trailingStopFloor, trailingStopCap)
	p.ScalingFactor = clampFloat(p.ScalingFactor*0.99, scalingFloor, scalingCap)
}

// AdaptLearningRate couples exploitation/exploration to recent performance:
// a hot streak speeds learning and cuts exploration, a cold streak does the
// opposite. recentWinRate is the memory-weighted win rate, 0-100.
func (t *Tuner) AdaptLearningRate(recentWinRate float64) {
	if recentWinRate > 70 {
		t.LearningRate = minFloat64(t.LearningRate*1.1, learningRateCap)
		t.ExplorationRate = maxFloat64(t.ExplorationRate*0.9, explorationFloor)
	} else if recentWinRate < 40 {
		t.LearningRate = maxFloat64(t.LearningRate*0.9, learningRateFloor)
		t.ExplorationRate = minFloat64(t.ExplorationRate*1.1, explorationCap)
	}
}

// Clamp forces every live parameter back into bounds. Used after imports
// and config updates.
func (p *AdaptiveParameters) Clamp() {
	p.TakeProfitPercent = clampFloat(p.TakeProfitPercent, takeProfitFloor, takeProfitCap)
	p.StopLossPercent = clampFloat(p.StopLossPercent, stopLossFloor, stopLossCap)
	p.PositionSizePercent = clampFloat(p.PositionSizePercent, positionSizeFloor, positionSizeCap)
	p.EntryConfidenceThreshold = clampFloat(p.EntryConfidenceThreshold, entryThresholdFloor, entryThresholdCap)
	p.ExitConfidenceThreshold = clampFloat(p.ExitConfidenceThreshold, 10, 50)
	p.TrailingStopPercent = clampFloat(p.TrailingStopPercent, trailingStopFloor, trailingStopCap)
	p.ScalingFactor = clampFloat(p.ScalingFactor, scalingFloor, scalingCap)
	if p.MaxOpenTrades < 1 {
		p.MaxOpenTrades = 1
	}
	if p.MaxOpenTrades > 20 {
		p.MaxOpenTrades = 20
	}
}

// ema applies the standard exponential moving average update.
func ema(old, sample, alpha float64) float64 {
	return old*(1-alpha) + sample*alpha
}
