package indicators

import (
	"math"
	"testing"
	"time"

	"adaptive-trading-bot/internal/brain"
	"adaptive-trading-bot/internal/exchange"
)

func klinesFromCloses(closes ...float64) []exchange.Kline {
	klines := make([]exchange.Kline, len(closes))
	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		klines[i] = exchange.Kline{
			OpenTime: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:     c,
			High:     c + 1,
			Low:      c - 1,
			Close:    c,
			Volume:   100,
		}
	}
	return klines
}

func rampKlines(n int, start, step float64) []exchange.Kline {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = start + float64(i)*step
	}
	return klinesFromCloses(closes...)
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSMA(t *testing.T) {
	klines := klinesFromCloses(1, 2, 3, 4, 5)
	if got := CalculateSMA(klines, 5); !almostEqual(got, 3) {
		t.Errorf("SMA = %f, want 3", got)
	}
	if got := CalculateSMA(klines, 2); !almostEqual(got, 4.5) {
		t.Errorf("SMA over last 2 = %f, want 4.5", got)
	}
	if got := CalculateSMA(klines, 10); got != 0 {
		t.Errorf("SMA with short history = %f, want 0", got)
	}
}

func TestEMAConstantSeries(t *testing.T) {
	klines := klinesFromCloses(7, 7, 7, 7, 7, 7, 7, 7)
	if got := CalculateEMA(klines, 5); !almostEqual(got, 7) {
		t.Errorf("EMA of constant series = %f, want 7", got)
	}
}

func TestEMATracksRecentCloses(t *testing.T) {
	klines := rampKlines(30, 100, 1)
	ema := CalculateEMA(klines, 10)
	sma := CalculateSMA(klines, 10)
	if ema <= sma {
		t.Errorf("rising series: EMA %f should exceed SMA %f", ema, sma)
	}
	last := klines[len(klines)-1].Close
	if ema >= last {
		t.Errorf("EMA %f should lag the last close %f", ema, last)
	}
}

func TestRSIExtremes(t *testing.T) {
	rising := rampKlines(20, 100, 1)
	if got := CalculateRSI(rising, 14); got != 100 {
		t.Errorf("RSI of pure uptrend = %f, want 100", got)
	}

	falling := rampKlines(20, 100, -1)
	if got := CalculateRSI(falling, 14); got != 0 {
		t.Errorf("RSI of pure downtrend = %f, want 0", got)
	}

	short := klinesFromCloses(1, 2, 3)
	if got := CalculateRSI(short, 14); got != 50 {
		t.Errorf("RSI with short history = %f, want neutral 50", got)
	}
}

func TestRSIBalancedMoves(t *testing.T) {
	// Alternating +1/-1 closes: equal gains and losses give RSI 50.
	closes := make([]float64, 21)
	for i := range closes {
		closes[i] = 100 + float64(i%2)
	}
	got := CalculateRSI(klinesFromCloses(closes...), 14)
	if math.Abs(got-50) > 1e-9 {
		t.Errorf("balanced RSI = %f, want 50", got)
	}
}

func TestBollingerConstantSeries(t *testing.T) {
	klines := klinesFromCloses(10, 10, 10, 10, 10, 10, 10, 10, 10, 10,
		10, 10, 10, 10, 10, 10, 10, 10, 10, 10)
	b := CalculateBollingerBands(klines, 20, 2)
	if !almostEqual(b.Upper, 10) || !almostEqual(b.Middle, 10) || !almostEqual(b.Lower, 10) {
		t.Errorf("constant series bands = %+v, want all 10", b)
	}
}

func TestBollingerBandsWiden(t *testing.T) {
	volatile := klinesFromCloses(10, 20, 10, 20, 10, 20, 10, 20, 10, 20,
		10, 20, 10, 20, 10, 20, 10, 20, 10, 20)
	b := CalculateBollingerBands(volatile, 20, 2)
	if b.Upper <= b.Middle || b.Lower >= b.Middle {
		t.Errorf("volatile series bands not spread: %+v", b)
	}
	if !almostEqual(b.Middle, 15) {
		t.Errorf("middle band = %f, want 15", b.Middle)
	}
}

func TestATRConstantRange(t *testing.T) {
	// High-low range is fixed at 2 by the kline builder.
	klines := klinesFromCloses(10, 10, 10, 10, 10, 10, 10, 10, 10, 10,
		10, 10, 10, 10, 10, 10)
	if got := CalculateATR(klines, 14); !almostEqual(got, 2) {
		t.Errorf("ATR = %f, want 2", got)
	}
	if got := CalculateATR(klines[:5], 14); got != 0 {
		t.Errorf("ATR with short history = %f, want 0", got)
	}
}

func TestVolumeRatio(t *testing.T) {
	klines := klinesFromCloses(1, 1, 1, 1, 1, 1)
	if got := CalculateVolumeRatio(klines, 4); !almostEqual(got, 1) {
		t.Errorf("flat volume ratio = %f, want 1", got)
	}

	klines[len(klines)-1].Volume = 300
	if got := CalculateVolumeRatio(klines, 4); !almostEqual(got, 3) {
		t.Errorf("spiked volume ratio = %f, want 3", got)
	}
}

func TestMomentum(t *testing.T) {
	klines := rampKlines(11, 100, 1) // 100 -> 110 over 10 periods
	if got := CalculateMomentum(klines, 10); !almostEqual(got, 10) {
		t.Errorf("momentum = %f, want 10", got)
	}
	if got := CalculateMomentum(klines[:5], 10); got != 0 {
		t.Errorf("momentum with short history = %f, want 0", got)
	}
}

func TestMACDDirection(t *testing.T) {
	rising := rampKlines(80, 100, 1)
	m := CalculateMACD(rising, 12, 26, 9)
	if m.MACD <= 0 {
		t.Errorf("uptrend MACD = %f, want positive", m.MACD)
	}

	falling := rampKlines(80, 200, -1)
	m = CalculateMACD(falling, 12, 26, 9)
	if m.MACD >= 0 {
		t.Errorf("downtrend MACD = %f, want negative", m.MACD)
	}

	short := rampKlines(10, 100, 1)
	m = CalculateMACD(short, 12, 26, 9)
	if m.MACD != 0 || m.Signal != 0 || m.Histogram != 0 {
		t.Errorf("short history MACD = %+v, want zero result", m)
	}
}

func TestSnapshotNeutralOnShortHistory(t *testing.T) {
	snap := Snapshot(klinesFromCloses(1, 2, 3))
	if snap.RSI != 50 || snap.VolumeRatio != 1 {
		t.Errorf("short-history snapshot = %+v, want neutral RSI 50 and volume ratio 1", snap)
	}
}

func TestDeriveMarketStateTrends(t *testing.T) {
	rising := rampKlines(80, 100, 1)
	state := DeriveMarketState(rising, Snapshot(rising))
	if state.Trend != brain.TrendBullish {
		t.Errorf("uptrend classified as %s, want %s", state.Trend, brain.TrendBullish)
	}
	if state.Momentum <= 0 {
		t.Errorf("uptrend momentum = %f, want positive", state.Momentum)
	}

	falling := rampKlines(80, 300, -1)
	state = DeriveMarketState(falling, Snapshot(falling))
	if state.Trend != brain.TrendBearish {
		t.Errorf("downtrend classified as %s, want %s", state.Trend, brain.TrendBearish)
	}
}

func TestDeriveMarketStateRSIOverride(t *testing.T) {
	// A hard crash leaves RSI pinned low, which forces the oversold bucket
	// regardless of band position.
	falling := rampKlines(80, 500, -2)
	state := DeriveMarketState(falling, Snapshot(falling))
	if state.PricePosition != brain.PriceOversold {
		t.Errorf("crashing series position = %s, want %s", state.PricePosition, brain.PriceOversold)
	}
}

func TestDeriveMarketStateVolumeBuckets(t *testing.T) {
	klines := rampKlines(60, 100, 0)
	snap := Snapshot(klines)

	snap.VolumeRatio = 2.0
	if got := DeriveMarketState(klines, snap).Volume; got != brain.VolumeHigh {
		t.Errorf("ratio 2.0 bucketed as %s, want %s", got, brain.VolumeHigh)
	}
	snap.VolumeRatio = 0.3
	if got := DeriveMarketState(klines, snap).Volume; got != brain.VolumeLow {
		t.Errorf("ratio 0.3 bucketed as %s, want %s", got, brain.VolumeLow)
	}
	snap.VolumeRatio = 1.0
	if got := DeriveMarketState(klines, snap).Volume; got != brain.VolumeNormal {
		t.Errorf("ratio 1.0 bucketed as %s, want %s", got, brain.VolumeNormal)
	}
}
