package exchange

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// PaperClient implements the Client interface for dry-run mode.
// Prices come from an injected provider; fills are simulated at the
// current price with no slippage.
type PaperClient struct {
	mu            sync.RWMutex
	connected     bool
	balance       float64
	positions     map[string]*Position
	leverage      map[string]int
	symbols       []string
	priceProvider func(symbol string) (float64, error)
}

// NewPaperClient creates a paper trading client.
func NewPaperClient(initialBalance float64, symbols []string, priceProvider func(symbol string) (float64, error)) *PaperClient {
	return &PaperClient{
		balance:       initialBalance,
		positions:     make(map[string]*Position),
		leverage:      make(map[string]int),
		symbols:       symbols,
		priceProvider: priceProvider,
	}
}

func (c *PaperClient) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	return nil
}

func (c *PaperClient) ConnectionStatus() ConnectionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ConnectionStatus{
		Connected: c.connected,
		Network:   "paper",
		Identity:  "paper-account",
	}
}

func (c *PaperClient) GetPrices() (map[string]float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected {
		return nil, fmt.Errorf("paper client not connected")
	}

	prices := make(map[string]float64, len(c.symbols))
	for _, symbol := range c.symbols {
		price, err := c.priceProvider(symbol)
		if err != nil {
			return nil, fmt.Errorf("price for %s: %w", symbol, err)
		}
		prices[symbol] = price
	}
	return prices, nil
}

func (c *PaperClient) GetKlines(symbol, interval string, limit int) ([]Kline, error) {
	// The paper client has no candle history of its own. Callers fall back
	// to price-only scoring when klines are empty.
	return []Kline{}, nil
}

func (c *PaperClient) GetAccountState() (*AccountState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected {
		return nil, fmt.Errorf("paper client not connected")
	}

	unrealized := 0.0
	positions := make([]Position, 0, len(c.positions))
	for _, pos := range c.positions {
		price, err := c.priceProvider(pos.Symbol)
		if err == nil && price > 0 {
			pos.MarkPrice = price
			if pos.Side == "LONG" {
				pos.UnrealizedProfit = (price - pos.EntryPrice) * pos.Size
			} else {
				pos.UnrealizedProfit = (pos.EntryPrice - price) * pos.Size
			}
		}
		unrealized += pos.UnrealizedProfit
		positions = append(positions, *pos)
	}

	return &AccountState{
		AccountValue:     c.balance + unrealized,
		AvailableBalance: c.balance,
		Positions:        positions,
	}, nil
}

func (c *PaperClient) PlaceMarketOrder(symbol, side string, size float64) (*OrderResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return &OrderResult{Success: false, Error: "not connected"}, nil
	}
	if size <= 0 {
		return &OrderResult{Success: false, Error: "invalid size"}, nil
	}

	price, err := c.priceProvider(symbol)
	if err != nil || price <= 0 {
		return &OrderResult{Success: false, Error: "no price available"}, nil
	}

	posSide := "LONG"
	if side == SideSell {
		posSide = "SHORT"
	}

	c.positions[symbol] = &Position{
		Symbol:     symbol,
		Side:       posSide,
		Size:       size,
		EntryPrice: price,
		MarkPrice:  price,
		Leverage:   c.leverage[symbol],
	}

	return &OrderResult{
		Success:    true,
		OrderID:    uuid.New().String(),
		FilledSize: size,
		AvgPrice:   price,
	}, nil
}

func (c *PaperClient) ClosePosition(symbol string) (*CloseResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return &CloseResult{Success: false, Error: "not connected"}, nil
	}

	pos, ok := c.positions[symbol]
	if !ok {
		return &CloseResult{Success: false, Error: "no open position"}, nil
	}

	price, err := c.priceProvider(symbol)
	if err != nil || price <= 0 {
		return &CloseResult{Success: false, Error: "no price available"}, nil
	}

	pnl := (price - pos.EntryPrice) * pos.Size
	if pos.Side == "SHORT" {
		pnl = (pos.EntryPrice - price) * pos.Size
	}
	c.balance += pnl
	delete(c.positions, symbol)

	return &CloseResult{Success: true, ClosePrice: price}, nil
}

func (c *PaperClient) SetLeverage(symbol string, leverage int) error {
	if leverage < 1 || leverage > 125 {
		return fmt.Errorf("leverage %d out of range", leverage)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leverage[symbol] = leverage
	return nil
}
