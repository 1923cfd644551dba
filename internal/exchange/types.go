package exchange

import "time"

// Order sides.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// ConnectionStatus reports exchange connectivity.
type ConnectionStatus struct {
	Connected bool   `json:"connected"`
	Network   string `json:"network"`  // e.g. "mainnet", "testnet", "paper"
	Identity  string `json:"identity"` // account identifier, if connected
}

// Kline represents a single candlestick.
type Kline struct {
	OpenTime  time.Time `json:"open_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	CloseTime time.Time `json:"close_time"`
}

// Position is a position as reported by the exchange.
type Position struct {
	Symbol           string  `json:"symbol"`
	Side             string  `json:"side"` // "LONG" or "SHORT"
	Size             float64 `json:"size"`
	EntryPrice       float64 `json:"entry_price"`
	MarkPrice        float64 `json:"mark_price"`
	UnrealizedProfit float64 `json:"unrealized_profit"`
	Leverage         int     `json:"leverage"`
}

// AccountState is the account snapshot used for sizing and reconciliation.
type AccountState struct {
	AccountValue     float64    `json:"account_value"`
	AvailableBalance float64    `json:"available_balance"`
	Positions        []Position `json:"positions"`
}

// OrderResult reports the outcome of a market order.
type OrderResult struct {
	Success    bool    `json:"success"`
	OrderID    string  `json:"order_id,omitempty"`
	FilledSize float64 `json:"filled_size,omitempty"`
	AvgPrice   float64 `json:"avg_price,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// CloseResult reports the outcome of a position close request.
type CloseResult struct {
	Success    bool    `json:"success"`
	ClosePrice float64 `json:"close_price,omitempty"`
	Error      string  `json:"error,omitempty"`
}
