// Package exchange defines the abstract exchange collaborator consumed by
// the trading engine. Concrete transports (live venue, paper client) satisfy
// the same interface so the controller and scheduler never see wire details.
package exchange

// Client defines the operations the trading engine needs from an exchange.
type Client interface {
	// ==================== CONNECTION ====================

	// Connect establishes (or re-establishes) the exchange session.
	Connect() error

	// ConnectionStatus reports current connectivity.
	ConnectionStatus() ConnectionStatus

	// ==================== MARKET DATA ====================

	// GetPrices retrieves current prices for all tracked symbols.
	GetPrices() (map[string]float64, error)

	// GetKlines retrieves candlestick data for a symbol.
	GetKlines(symbol, interval string, limit int) ([]Kline, error)

	// ==================== ACCOUNT ====================

	// GetAccountState retrieves account value and open positions.
	GetAccountState() (*AccountState, error)

	// ==================== TRADING ====================

	// PlaceMarketOrder places a market order and reports the fill.
	PlaceMarketOrder(symbol, side string, size float64) (*OrderResult, error)

	// ClosePosition closes the open position for a symbol.
	ClosePosition(symbol string) (*CloseResult, error)

	// SetLeverage sets leverage for a symbol before entry.
	SetLeverage(symbol string, leverage int) error
}
