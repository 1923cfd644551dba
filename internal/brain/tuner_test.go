package brain

import (
	"testing"
)

func TestObserveOutcomeWinGrowsPositionSize(t *testing.T) {
	tuner := NewTuner()
	before := tuner.Risk.OptimalPositionSize

	tuner.ObserveOutcome(makeLesson("BTCUSDT", "trend_follow", true, 3.0))

	if tuner.Risk.OptimalPositionSize <= before {
		t.Errorf("position size after win = %.2f, want > %.2f", tuner.Risk.OptimalPositionSize, before)
	}
}

func TestObserveOutcomePositionSizeCap(t *testing.T) {
	tuner := NewTuner()
	for i := 0; i < 200; i++ {
		tuner.ObserveOutcome(makeLesson("BTCUSDT", "trend_follow", true, 3.0))
	}
	if tuner.Risk.OptimalPositionSize > positionSizeCap {
		t.Errorf("position size %.2f exceeds cap %.2f", tuner.Risk.OptimalPositionSize, positionSizeCap)
	}
}

func TestObserveOutcomeLossTightensStop(t *testing.T) {
	tuner := NewTuner()
	before := tuner.Risk.OptimalStopLoss

	// Loss bigger than the current stop means it was breached.
	tuner.ObserveOutcome(makeLesson("BTCUSDT", "trend_follow", false, -3.0))

	if tuner.Risk.OptimalStopLoss >= before {
		t.Errorf("stop loss after blown stop = %.2f, want < %.2f", tuner.Risk.OptimalStopLoss, before)
	}
}

func TestObserveOutcomeStopLossFloor(t *testing.T) {
	tuner := NewTuner()
	for i := 0; i < 500; i++ {
		tuner.ObserveOutcome(makeLesson("BTCUSDT", "trend_follow", false, -5.0))
	}
	if tuner.Risk.OptimalStopLoss < stopLossFloor {
		t.Errorf("stop loss %.4f fell below floor %.2f", tuner.Risk.OptimalStopLoss, stopLossFloor)
	}
	if tuner.Risk.OptimalPositionSize < positionSizeFloor {
		t.Errorf("position size %.4f fell below floor %.2f", tuner.Risk.OptimalPositionSize, positionSizeFloor)
	}
}

func TestLayersAreDecoupled(t *testing.T) {
	tuner := NewTuner()
	paramsBefore := tuner.Params
	riskBefore := tuner.Risk

	tuner.ObserveOutcome(makeLesson("BTCUSDT", "trend_follow", false, -3.0))
	if tuner.Params != paramsBefore {
		t.Error("ObserveOutcome must not touch the live parameter layer")
	}

	tuner.Risk = riskBefore
	tuner.TuneAdaptiveParameters(makeLesson("BTCUSDT", "trend_follow", false, -3.0))
	if tuner.Risk != riskBefore {
		t.Error("TuneAdaptiveParameters must not touch the optimal-learned layer")
	}
}

func TestTuneEntryThresholdMovesAndClamps(t *testing.T) {
	tuner := NewTuner()

	tuner.TuneAdaptiveParameters(makeLesson("BTCUSDT", "trend_follow", true, 1.0))
	if tuner.Params.EntryConfidenceThreshold != 54.5 {
		t.Errorf("threshold after win = %.1f, want 54.5", tuner.Params.EntryConfidenceThreshold)
	}

	for i := 0; i < 100; i++ {
		tuner.TuneAdaptiveParameters(makeLesson("BTCUSDT", "trend_follow", false, -1.0))
	}
	if tuner.Params.EntryConfidenceThreshold != entryThresholdCap {
		t.Errorf("threshold after loss streak = %.1f, want cap %.1f",
			tuner.Params.EntryConfidenceThreshold, entryThresholdCap)
	}

	for i := 0; i < 200; i++ {
		tuner.TuneAdaptiveParameters(makeLesson("BTCUSDT", "trend_follow", true, 1.0))
	}
	if tuner.Params.EntryConfidenceThreshold != entryThresholdFloor {
		t.Errorf("threshold after win streak = %.1f, want floor %.1f",
			tuner.Params.EntryConfidenceThreshold, entryThresholdFloor)
	}
}

func TestAdaptLearningRate(t *testing.T) {
	tuner := NewTuner()

	lr, er := tuner.LearningRate, tuner.ExplorationRate
	tuner.AdaptLearningRate(85)
	if tuner.LearningRate <= lr {
		t.Errorf("hot streak should raise learning rate, got %.3f", tuner.LearningRate)
	}
	if tuner.ExplorationRate >= er {
		t.Errorf("hot streak should cut exploration, got %.3f", tuner.ExplorationRate)
	}

	tuner = NewTuner()
	lr, er = tuner.LearningRate, tuner.ExplorationRate
	tuner.AdaptLearningRate(20)
	if tuner.LearningRate >= lr {
		t.Errorf("cold streak should cut learning rate, got %.3f", tuner.LearningRate)
	}
	if tuner.ExplorationRate <= er {
		t.Errorf("cold streak should raise exploration, got %.3f", tuner.ExplorationRate)
	}

	// Neutral performance leaves both untouched.
	tuner = NewTuner()
	lr, er = tuner.LearningRate, tuner.ExplorationRate
	tuner.AdaptLearningRate(55)
	if tuner.LearningRate != lr || tuner.ExplorationRate != er {
		t.Error("neutral win rate must not change learning or exploration rates")
	}
}

func TestAdaptLearningRateBounds(t *testing.T) {
	tuner := NewTuner()
	for i := 0; i < 100; i++ {
		tuner.AdaptLearningRate(90)
	}
	if tuner.LearningRate > learningRateCap {
		t.Errorf("learning rate %.3f exceeds cap", tuner.LearningRate)
	}
	if tuner.ExplorationRate < explorationFloor {
		t.Errorf("exploration rate %.3f below floor", tuner.ExplorationRate)
	}

	for i := 0; i < 200; i++ {
		tuner.AdaptLearningRate(10)
	}
	if tuner.LearningRate < learningRateFloor {
		t.Errorf("learning rate %.4f below floor", tuner.LearningRate)
	}
	if tuner.ExplorationRate > explorationCap {
		t.Errorf("exploration rate %.3f exceeds cap", tuner.ExplorationRate)
	}
}

func TestClampForcesBounds(t *testing.T) {
	p := AdaptiveParameters{
		TakeProfitPercent:        50,
		StopLossPercent:          -1,
		PositionSizePercent:      100,
		MaxOpenTrades:            0,
		EntryConfidenceThreshold: 200,
		ExitConfidenceThreshold:  0,
		TrailingStopPercent:      10,
		ScalingFactor:            9,
	}
	p.Clamp()

	if p.TakeProfitPercent != takeProfitCap {
		t.Errorf("take profit = %.1f, want %.1f", p.TakeProfitPercent, takeProfitCap)
	}
	if p.StopLossPercent != stopLossFloor {
		t.Errorf("stop loss = %.1f, want %.1f", p.StopLossPercent, stopLossFloor)
	}
	if p.PositionSizePercent != positionSizeCap {
		t.Errorf("position size = %.1f, want %.1f", p.PositionSizePercent, positionSizeCap)
	}
	if p.MaxOpenTrades != 1 {
		t.Errorf("max open trades = %d, want 1", p.MaxOpenTrades)
	}
	if p.EntryConfidenceThreshold != entryThresholdCap {
		t.Errorf("entry threshold = %.1f, want %.1f", p.EntryConfidenceThreshold, entryThresholdCap)
	}
	if p.ScalingFactor != scalingCap {
		t.Errorf("scaling factor = %.1f, want %.1f", p.ScalingFactor, scalingCap)
	}
}
