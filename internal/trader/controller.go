// Package trader owns the set of open positions and runs the trading
// cycle: reconcile against the exchange, evaluate exits, then look for
// entries through the confidence scorer.
package trader

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"adaptive-trading-bot/internal/brain"
	"adaptive-trading-bot/internal/circuit"
	"adaptive-trading-bot/internal/events"
	"adaptive-trading-bot/internal/exchange"
	"adaptive-trading-bot/internal/indicators"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LessonSink receives every closed-trade lesson for durable storage.
// Failures are logged, never fatal to the cycle.
type LessonSink interface {
	SaveLesson(ctx context.Context, lesson *brain.Lesson) error
}

// Config holds controller configuration.
type Config struct {
	Pairs         []string      `json:"pairs"`
	KlineInterval string        `json:"kline_interval"`
	KlineLimit    int           `json:"kline_limit"`
	Leverage      int           `json:"leverage"`
	RetryDelay    time.Duration `json:"retry_delay"`
}

// Controller drives the OPEN -> CLOSED position lifecycle.
type Controller struct {
	mu sync.Mutex

	client  exchange.Client
	brain   *brain.Brain
	bus     *events.Bus
	breaker *circuit.Breaker
	sink    LessonSink
	logger  zerolog.Logger
	config  Config

	positions     map[string]*Position
	lastTradeTime map[string]time.Time
}

// NewController creates the trade lifecycle controller. sink may be nil.
func NewController(
	client exchange.Client,
	br *brain.Brain,
	bus *events.Bus,
	breaker *circuit.Breaker,
	sink LessonSink,
	config Config,
	logger zerolog.Logger,
) *Controller {
	if config.KlineInterval == "" {
		config.KlineInterval = "5m"
	}
	if config.KlineLimit == 0 {
		config.KlineLimit = 100
	}
	if config.Leverage == 0 {
		config.Leverage = 3
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = 2 * time.Second
	}
	return &Controller{
		client:        client,
		brain:         br,
		bus:           bus,
		breaker:       breaker,
		sink:          sink,
		logger:        logger.With().Str("component", "trader").Logger(),
		config:        config,
		positions:     make(map[string]*Position),
		lastTradeTime: make(map[string]time.Time),
	}
}

// OpenPositions returns a copy of the current open position set.
func (c *Controller) OpenPositions() []Position {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Position, 0, len(c.positions))
	for _, pos := range c.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// OpenPositionCount returns the number of tracked positions.
func (c *Controller) OpenPositionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.positions)
}

// RunCycle executes one full trading cycle. An error means the exchange
// was unreachable and the cycle did no work; the scheduler counts those.
func (c *Controller) RunCycle(ctx context.Context) error {
	status := c.client.ConnectionStatus()
	if !status.Connected {
		return fmt.Errorf("exchange not connected")
	}

	prices, err := c.client.GetPrices()
	if err != nil {
		return fmt.Errorf("get prices: %w", err)
	}

	account, err := c.client.GetAccountState()
	if err != nil {
		return fmt.Errorf("get account state: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.reconcileLocked(ctx, account.Positions, prices)
	c.evaluateExitsLocked(ctx, prices)
	c.evaluateEntriesLocked(ctx, account, prices)

	return nil
}

// reconcileLocked aligns the controller's view with the exchange's.
// Unknown reported positions are adopted with synthesized stops; known
// positions no longer reported are finalized into lessons.
func (c *Controller) reconcileLocked(ctx context.Context, reported []exchange.Position, prices map[string]float64) {
	params := c.brain.GetOptimizedParameters()

	seen := make(map[string]bool, len(reported))
	for _, rp := range reported {
		if rp.Size == 0 {
			continue
		}
		seen[rp.Symbol] = true
		if _, known := c.positions[rp.Symbol]; known {
			continue
		}

		pos := &Position{
			ID:         uuid.New().String(),
			Symbol:     rp.Symbol,
			Side:       rp.Side,
			EntryPrice: rp.EntryPrice,
			Size:       rp.Size,
			Strategy:   c.brain.GetBestStrategyForSymbol(rp.Symbol),
			Leverage:   rp.Leverage,
			EntryTime:  time.Now(),
			Adopted:    true,
		}
		pos.StopLoss, pos.TakeProfit = deriveStops(rp.Side, rp.EntryPrice, params)
		c.positions[rp.Symbol] = pos
		c.logger.Info().
			Str("symbol", rp.Symbol).
			Str("side", rp.Side).
			Float64("entry_price", rp.EntryPrice).
			Msg("adopted position reported by exchange")
	}

	for symbol, pos := range c.positions {
		if seen[symbol] {
			continue
		}
		// The exchange no longer reports this position: it was closed
		// externally. Learn from it at the last known price.
		exitPrice := prices[symbol]
		if exitPrice <= 0 {
			exitPrice = pos.EntryPrice
		}
		c.finalizeLocked(ctx, pos, exitPrice, CloseReasonExternal)
	}
}

// evaluateExitsLocked checks stop-loss, take-profit and low-confidence
// triggers on every open position.
func (c *Controller) evaluateExitsLocked(ctx context.Context, prices map[string]float64) {
	params := c.brain.GetOptimizedParameters()

	for symbol, pos := range c.positions {
		price, ok := prices[symbol]
		if !ok || price <= 0 {
			continue
		}

		triggered, reason := pos.exitTriggered(price)
		if !triggered {
			market, ind := c.marketSnapshot(symbol, price)
			conf := c.brain.EntryConfidence(symbol, pos.Strategy, market, ind)
			if !conf.Enter && conf.Score < params.ExitConfidenceThreshold {
				triggered = true
				reason = CloseReasonLowConfidence
			}
		}
		if !triggered {
			continue
		}

		result := c.closeWithRetry(symbol)
		if !result.Success {
			c.logger.Warn().
				Str("symbol", symbol).
				Str("reason", reason).
				Str("error", result.Error).
				Msg("close failed after retry, will re-evaluate next cycle")
			continue
		}

		exitPrice := result.ClosePrice
		if exitPrice <= 0 {
			exitPrice = price
		}
		c.finalizeLocked(ctx, pos, exitPrice, reason)
	}
}

// evaluateEntriesLocked looks for new entries on configured pairs that are
// not already held, up to the adaptive max-open-trades limit.
func (c *Controller) evaluateEntriesLocked(ctx context.Context, account *exchange.AccountState, prices map[string]float64) {
	params := c.brain.GetOptimizedParameters()
	if len(c.positions) >= params.MaxOpenTrades {
		return
	}

	if allowed, reason := c.breaker.AllowEntry(); !allowed {
		c.logger.Warn().Str("reason", reason).Msg("entries halted by circuit breaker")
		return
	}
	if good, reason := c.brain.IsGoodTradingTime(); !good {
		c.logger.Info().Str("reason", reason).Msg("skipping entries, unfavorable trading time")
		return
	}

	pairs := append([]string(nil), c.config.Pairs...)
	sort.Strings(pairs)

	for _, symbol := range pairs {
		if len(c.positions) >= params.MaxOpenTrades {
			return
		}
		if _, held := c.positions[symbol]; held {
			continue
		}
		price, ok := prices[symbol]
		if !ok || price <= 0 {
			continue
		}

		market, ind := c.marketSnapshot(symbol, price)
		strategy := c.brain.GetBestStrategyForSymbol(symbol)
		conf := c.brain.EntryConfidence(symbol, strategy, market, ind)
		if !conf.Enter {
			continue
		}

		side := SideLong
		orderSide := exchange.SideBuy
		if market.Trend == brain.TrendBearish {
			side = SideShort
			orderSide = exchange.SideSell
		}

		notional := account.AccountValue * params.PositionSizePercent / 100 * params.ScalingFactor
		size := notional / price
		if size <= 0 {
			continue
		}

		if err := c.client.SetLeverage(symbol, c.config.Leverage); err != nil {
			c.logger.Warn().Str("symbol", symbol).Err(err).Msg("set leverage failed, skipping pair")
			continue
		}

		order := c.placeWithRetry(symbol, orderSide, size)
		if !order.Success {
			c.logger.Warn().
				Str("symbol", symbol).
				Str("error", order.Error).
				Msg("order failed after retry, giving up on pair for this cycle")
			continue
		}

		entryPrice := order.AvgPrice
		if entryPrice <= 0 {
			entryPrice = price
		}
		filled := order.FilledSize
		if filled <= 0 {
			filled = size
		}

		pos := &Position{
			ID:         uuid.New().String(),
			Symbol:     symbol,
			Side:       side,
			EntryPrice: entryPrice,
			Size:       filled,
			Strategy:   strategy,
			Leverage:   c.config.Leverage,
			EntryTime:  time.Now(),
		}
		pos.StopLoss, pos.TakeProfit = deriveStops(side, entryPrice, params)
		c.positions[symbol] = pos
		c.lastTradeTime[symbol] = pos.EntryTime

		c.bus.PublishTradeOpened(symbol, side, strategy, entryPrice, filled)
		c.logger.Info().
			Str("symbol", symbol).
			Str("side", side).
			Str("strategy", strategy).
			Float64("entry_price", entryPrice).
			Float64("size", filled).
			Float64("confidence", conf.Score).
			Msg("position opened")
	}
}

// finalizeLocked converts a position into a lesson, removes it from the
// open set and feeds every learner.
func (c *Controller) finalizeLocked(ctx context.Context, pos *Position, exitPrice float64, reason string) {
	profit, profitPercent := pos.pnl(exitPrice)
	now := time.Now()
	market, ind := c.marketSnapshot(pos.Symbol, exitPrice)

	lesson := &brain.Lesson{
		ID:            uuid.New().String(),
		Symbol:        pos.Symbol,
		Strategy:      pos.Strategy,
		EntryPrice:    pos.EntryPrice,
		ExitPrice:     exitPrice,
		Profit:        profit,
		ProfitPercent: profitPercent,
		HoldingTime:   now.Sub(pos.EntryTime),
		Win:           profit > 0,
		Market:        market,
		Indicators:    ind,
		EntryTiming:   c.timingFor(pos.EntryTime, pos.Symbol),
		ExitTiming:    c.timingFor(now, pos.Symbol),
		Timestamp:     now,
	}

	delete(c.positions, pos.Symbol)
	c.lastTradeTime[pos.Symbol] = now

	c.brain.LearnFromTrade(lesson)
	c.breaker.RecordOutcome(profitPercent)
	c.bus.PublishTradeClosed(pos.Symbol, reason, pos.EntryPrice, exitPrice, profit, profitPercent)

	if c.sink != nil {
		if err := c.sink.SaveLesson(ctx, lesson); err != nil {
			c.logger.Warn().Str("symbol", pos.Symbol).Err(err).Msg("lesson store failed")
		}
	}

	c.logger.Info().
		Str("symbol", pos.Symbol).
		Str("reason", reason).
		Float64("profit", profit).
		Float64("profit_pct", profitPercent).
		Bool("win", lesson.Win).
		Msg("position closed")
}

// closeWithRetry requests a close, retrying exactly once after a fixed
// delay. Failures are not escalated beyond the cycle.
func (c *Controller) closeWithRetry(symbol string) *exchange.CloseResult {
	result, err := c.client.ClosePosition(symbol)
	if err == nil && result != nil && result.Success {
		return result
	}

	time.Sleep(c.config.RetryDelay)

	result, err = c.client.ClosePosition(symbol)
	if err != nil {
		return &exchange.CloseResult{Success: false, Error: err.Error()}
	}
	if result == nil {
		return &exchange.CloseResult{Success: false, Error: "no response"}
	}
	return result
}

// placeWithRetry places a market order, retrying exactly once after a
// fixed delay.
func (c *Controller) placeWithRetry(symbol, side string, size float64) *exchange.OrderResult {
	result, err := c.client.PlaceMarketOrder(symbol, side, size)
	if err == nil && result != nil && result.Success {
		return result
	}

	time.Sleep(c.config.RetryDelay)

	result, err = c.client.PlaceMarketOrder(symbol, side, size)
	if err != nil {
		return &exchange.OrderResult{Success: false, Error: err.Error()}
	}
	if result == nil {
		return &exchange.OrderResult{Success: false, Error: "no response"}
	}
	return result
}

// marketSnapshot builds the market state and indicator snapshot for a
// symbol from recent klines. Falls back to a neutral snapshot when no
// candle history is available.
func (c *Controller) marketSnapshot(symbol string, price float64) (brain.MarketState, brain.IndicatorSnapshot) {
	klines, err := c.client.GetKlines(symbol, c.config.KlineInterval, c.config.KlineLimit)
	if err != nil || len(klines) == 0 {
		return brain.MarketState{
			Trend:         brain.TrendSideways,
			Volume:        brain.VolumeNormal,
			PricePosition: brain.PriceNeutral,
		}, brain.IndicatorSnapshot{RSI: 50, VolumeRatio: 1}
	}

	ind := indicators.Snapshot(klines)
	market := indicators.DeriveMarketState(klines, ind)
	return market, ind
}

func (c *Controller) timingFor(t time.Time, symbol string) brain.TimingPattern {
	pattern := brain.TimingPattern{
		Hour:    t.UTC().Hour(),
		Weekday: int(t.UTC().Weekday()),
	}
	if last, ok := c.lastTradeTime[symbol]; ok && t.After(last) {
		pattern.SinceLastTrade = t.Sub(last)
	}
	return pattern
}

// deriveStops computes stop-loss and take-profit prices from the entry
// price and the live adaptive parameters, direction-aware.
func deriveStops(side string, entryPrice float64, params brain.AdaptiveParameters) (stopLoss, takeProfit float64) {
	if side == SideLong {
		stopLoss = entryPrice * (1 - params.StopLossPercent/100)
		takeProfit = entryPrice * (1 + params.TakeProfitPercent/100)
		return stopLoss, takeProfit
	}
	stopLoss = entryPrice * (1 + params.StopLossPercent/100)
	takeProfit = entryPrice * (1 - params.TakeProfitPercent/100)
	return stopLoss, takeProfit
}
