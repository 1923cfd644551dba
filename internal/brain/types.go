// Package brain implements the adaptive decision state: pattern memory,
// strategy weighting, risk tuning, confidence scoring and the aggregate
// that ties them together. Everything the bot learns lives here.
package brain

import (
	"fmt"
	"time"
)

// Market trend labels.
const (
	TrendBullish  = "bullish"
	TrendBearish  = "bearish"
	TrendSideways = "sideways"
)

// Volume regime labels.
const (
	VolumeLow    = "low"
	VolumeNormal = "normal"
	VolumeHigh   = "high"
)

// Price position labels.
const (
	PriceOversold   = "oversold"
	PriceNeutral    = "neutral"
	PriceOverbought = "overbought"
)

// MarketState is a coarse snapshot of market conditions at trade time.
type MarketState struct {
	Trend         string  `json:"trend"`          // bullish, bearish, sideways
	Volatility    float64 `json:"volatility"`     // 0-100
	Momentum      float64 `json:"momentum"`       // -100..100
	Volume        string  `json:"volume"`         // low, normal, high
	PricePosition string  `json:"price_position"` // oversold, neutral, overbought
}

// IndicatorSnapshot captures technical indicator values at trade time.
type IndicatorSnapshot struct {
	RSI           float64 `json:"rsi"`
	MACD          float64 `json:"macd"`
	MACDSignal    float64 `json:"macd_signal"`
	MACDHistogram float64 `json:"macd_histogram"`
	BollUpper     float64 `json:"boll_upper"`
	BollMiddle    float64 `json:"boll_middle"`
	BollLower     float64 `json:"boll_lower"`
	EMA9          float64 `json:"ema_9"`
	EMA21         float64 `json:"ema_21"`
	EMA50         float64 `json:"ema_50"`
	ATR           float64 `json:"atr"`
	VolumeRatio   float64 `json:"volume_ratio"`
}

// TimingPattern captures when a trade happened.
type TimingPattern struct {
	Hour           int           `json:"hour"`        // 0-23 UTC
	Weekday        int           `json:"weekday"`     // 0=Sunday
	PriceVelocity  float64       `json:"price_velocity"`
	SinceLastTrade time.Duration `json:"since_last_trade"`
}

// Lesson is the immutable record of one closed trade. It is created once,
// at trade close, and never mutated afterwards.
type Lesson struct {
	ID            string            `json:"id"`
	Symbol        string            `json:"symbol"`
	Strategy      string            `json:"strategy"`
	EntryPrice    float64           `json:"entry_price"`
	ExitPrice     float64           `json:"exit_price"`
	Profit        float64           `json:"profit"`
	ProfitPercent float64           `json:"profit_percent"`
	HoldingTime   time.Duration     `json:"holding_time"`
	Win           bool              `json:"win"`
	Market        MarketState       `json:"market"`
	Indicators    IndicatorSnapshot `json:"indicators"`
	EntryTiming   TimingPattern     `json:"entry_timing"`
	ExitTiming    TimingPattern     `json:"exit_timing"`
	Timestamp     time.Time         `json:"timestamp"`
}

// Fingerprint derives the coarse bucketed key that groups similar trades
// into one memory record: symbol, strategy, trend letter, volatility bucket,
// RSI zone and MACD sign.
func Fingerprint(symbol, strategy string, market MarketState, ind IndicatorSnapshot) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		symbol, strategy,
		trendLetter(market.Trend),
		volatilityBucket(market.Volatility),
		rsiZone(ind.RSI),
		macdSign(ind.MACD),
	)
}

func trendLetter(trend string) string {
	switch trend {
	case TrendBullish:
		return "U"
	case TrendBearish:
		return "D"
	default:
		return "S"
	}
}

func volatilityBucket(volatility float64) string {
	switch {
	case volatility >= 70:
		return "H"
	case volatility >= 30:
		return "M"
	default:
		return "L"
	}
}

func rsiZone(rsi float64) string {
	switch {
	case rsi < 30:
		return "OS"
	case rsi > 70:
		return "OB"
	default:
		return "N"
	}
}

func macdSign(macd float64) string {
	if macd >= 0 {
		return "+"
	}
	return "-"
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// minFloat64 returns the smaller of two float64 values
// Note: Named to avoid shadowing Go 1.21+ builtin min()
func minFloat64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// maxFloat64 returns the larger of two float64 values
func maxFloat64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
