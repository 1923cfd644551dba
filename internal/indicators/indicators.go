// Package indicators computes technical indicators from candlestick data
// and derives the coarse market state the confidence scorer consumes.
package indicators

import (
	"math"

	"adaptive-trading-bot/internal/brain"
	"adaptive-trading-bot/internal/exchange"
)

// CalculateSMA calculates Simple Moving Average over closes.
func CalculateSMA(klines []exchange.Kline, period int) float64 {
	if len(klines) < period || period <= 0 {
		return 0
	}
	sum := 0.0
	for i := len(klines) - period; i < len(klines); i++ {
		sum += klines[i].Close
	}
	return sum / float64(period)
}

// CalculateEMA calculates Exponential Moving Average over closes.
func CalculateEMA(klines []exchange.Kline, period int) float64 {
	if len(klines) < period || period <= 0 {
		return 0
	}
	ema := CalculateSMA(klines[:period], period)
	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(klines); i++ {
		ema = klines[i].Close*multiplier + ema*(1-multiplier)
	}
	return ema
}

// CalculateRSI calculates the Relative Strength Index.
func CalculateRSI(klines []exchange.Kline, period int) float64 {
	if len(klines) < period+1 {
		return 50.0 // neutral
	}

	gains := 0.0
	losses := 0.0
	for i := len(klines) - period; i < len(klines); i++ {
		change := klines[i].Close - klines[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// MACDResult holds MACD indicator values.
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// CalculateMACD calculates the MACD line, signal line and histogram. The
// signal line is an EMA of the MACD series over the signal period.
func CalculateMACD(klines []exchange.Kline, fastPeriod, slowPeriod, signalPeriod int) *MACDResult {
	if len(klines) < slowPeriod+signalPeriod {
		return &MACDResult{}
	}

	// Build the MACD series for the last signalPeriod*2 candles so the
	// signal EMA has history to settle on.
	points := signalPeriod * 2
	if points > len(klines)-slowPeriod {
		points = len(klines) - slowPeriod
	}

	series := make([]float64, 0, points)
	for i := len(klines) - points; i <= len(klines); i++ {
		window := klines[:i]
		if len(window) < slowPeriod {
			continue
		}
		series = append(series, CalculateEMA(window, fastPeriod)-CalculateEMA(window, slowPeriod))
	}
	if len(series) == 0 {
		return &MACDResult{}
	}

	macdLine := series[len(series)-1]
	signal := series[0]
	multiplier := 2.0 / float64(signalPeriod+1)
	for _, v := range series[1:] {
		signal = v*multiplier + signal*(1-multiplier)
	}

	return &MACDResult{
		MACD:      macdLine,
		Signal:    signal,
		Histogram: macdLine - signal,
	}
}

// BollingerResult holds Bollinger Bands values.
type BollingerResult struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// CalculateBollingerBands calculates Bollinger Bands.
func CalculateBollingerBands(klines []exchange.Kline, period int, stdDevMultiplier float64) *BollingerResult {
	if len(klines) < period {
		return &BollingerResult{}
	}

	middle := CalculateSMA(klines, period)
	variance := 0.0
	for i := len(klines) - period; i < len(klines); i++ {
		diff := klines[i].Close - middle
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(period))

	return &BollingerResult{
		Upper:  middle + stdDev*stdDevMultiplier,
		Middle: middle,
		Lower:  middle - stdDev*stdDevMultiplier,
	}
}

// CalculateATR calculates the Average True Range.
func CalculateATR(klines []exchange.Kline, period int) float64 {
	if len(klines) < period+1 {
		return 0
	}

	sum := 0.0
	for i := len(klines) - period; i < len(klines); i++ {
		highLow := klines[i].High - klines[i].Low
		highClose := math.Abs(klines[i].High - klines[i-1].Close)
		lowClose := math.Abs(klines[i].Low - klines[i-1].Close)
		sum += math.Max(highLow, math.Max(highClose, lowClose))
	}
	return sum / float64(period)
}

// CalculateVolumeRatio compares the latest volume against the recent
// average. 1.0 means average volume.
func CalculateVolumeRatio(klines []exchange.Kline, period int) float64 {
	if len(klines) < period+1 {
		return 1.0
	}
	sum := 0.0
	for i := len(klines) - period - 1; i < len(klines)-1; i++ {
		sum += klines[i].Volume
	}
	avg := sum / float64(period)
	if avg == 0 {
		return 1.0
	}
	return klines[len(klines)-1].Volume / avg
}

// CalculateMomentum returns the percentage change over the period, bounded
// to -100..100.
func CalculateMomentum(klines []exchange.Kline, period int) float64 {
	if len(klines) < period+1 {
		return 0
	}
	prev := klines[len(klines)-1-period].Close
	if prev == 0 {
		return 0
	}
	change := (klines[len(klines)-1].Close - prev) / prev * 100
	if change > 100 {
		return 100
	}
	if change < -100 {
		return -100
	}
	return change
}

// Snapshot computes the full indicator snapshot from klines. Returns a
// neutral snapshot when history is too short.
func Snapshot(klines []exchange.Kline) brain.IndicatorSnapshot {
	if len(klines) < 30 {
		return brain.IndicatorSnapshot{RSI: 50, VolumeRatio: 1}
	}

	macd := CalculateMACD(klines, 12, 26, 9)
	boll := CalculateBollingerBands(klines, 20, 2.0)

	return brain.IndicatorSnapshot{
		RSI:           CalculateRSI(klines, 14),
		MACD:          macd.MACD,
		MACDSignal:    macd.Signal,
		MACDHistogram: macd.Histogram,
		BollUpper:     boll.Upper,
		BollMiddle:    boll.Middle,
		BollLower:     boll.Lower,
		EMA9:          CalculateEMA(klines, 9),
		EMA21:         CalculateEMA(klines, 21),
		EMA50:         CalculateEMA(klines, 50),
		ATR:           CalculateATR(klines, 14),
		VolumeRatio:   CalculateVolumeRatio(klines, 20),
	}
}

// DeriveMarketState buckets the snapshot into the coarse market state used
// for fingerprinting and scoring.
func DeriveMarketState(klines []exchange.Kline, ind brain.IndicatorSnapshot) brain.MarketState {
	state := brain.MarketState{
		Trend:         brain.TrendSideways,
		Volume:        brain.VolumeNormal,
		PricePosition: brain.PriceNeutral,
		Momentum:      CalculateMomentum(klines, 10),
	}

	if ind.EMA9 > 0 && ind.EMA21 > 0 && ind.EMA50 > 0 {
		if ind.EMA9 > ind.EMA21 && ind.EMA21 > ind.EMA50 {
			state.Trend = brain.TrendBullish
		} else if ind.EMA9 < ind.EMA21 && ind.EMA21 < ind.EMA50 {
			state.Trend = brain.TrendBearish
		}
	}

	// ATR relative to price, scaled so ~5% ATR maps to 100.
	if len(klines) > 0 {
		price := klines[len(klines)-1].Close
		if price > 0 && ind.ATR > 0 {
			vol := ind.ATR / price * 2000
			if vol > 100 {
				vol = 100
			}
			state.Volatility = vol
		}
	}

	switch {
	case ind.VolumeRatio >= 1.5:
		state.Volume = brain.VolumeHigh
	case ind.VolumeRatio <= 0.5:
		state.Volume = brain.VolumeLow
	}

	if len(klines) > 0 && ind.BollUpper > ind.BollLower {
		price := klines[len(klines)-1].Close
		if price <= ind.BollLower {
			state.PricePosition = brain.PriceOversold
		} else if price >= ind.BollUpper {
			state.PricePosition = brain.PriceOverbought
		}
	}
	if ind.RSI < 30 {
		state.PricePosition = brain.PriceOversold
	} else if ind.RSI > 70 {
		state.PricePosition = brain.PriceOverbought
	}

	return state
}
