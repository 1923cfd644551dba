package trader

import "time"

// Position sides.
const (
	SideLong  = "LONG"
	SideShort = "SHORT"
)

// Close reasons recorded on the resulting lesson.
const (
	CloseReasonStopLoss      = "stop_loss"
	CloseReasonTakeProfit    = "take_profit"
	CloseReasonLowConfidence = "low_confidence"
	CloseReasonExternal      = "external_close"
)

// Position is a live open position owned by the controller. It is created
// when an entry order fills (or an unknown exchange position is adopted)
// and destroyed when the close is confirmed, at which point it becomes a
// lesson.
type Position struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	EntryPrice float64   `json:"entry_price"`
	Size       float64   `json:"size"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	Strategy   string    `json:"strategy"`
	Leverage   int       `json:"leverage"`
	EntryTime  time.Time `json:"entry_time"`
	Adopted    bool      `json:"adopted"` // discovered on the exchange, not opened by us
}

// pnl returns absolute and percentage profit at the given price,
// direction-aware.
func (p *Position) pnl(price float64) (profit, profitPercent float64) {
	if p.EntryPrice == 0 {
		return 0, 0
	}
	if p.Side == SideLong {
		profit = (price - p.EntryPrice) * p.Size
		profitPercent = (price - p.EntryPrice) / p.EntryPrice * 100
	} else {
		profit = (p.EntryPrice - price) * p.Size
		profitPercent = (p.EntryPrice - price) / p.EntryPrice * 100
	}
	return profit, profitPercent
}

// exitTriggered checks stop-loss and take-profit crossings, direction-aware.
func (p *Position) exitTriggered(price float64) (bool, string) {
	if p.Side == SideLong {
		if p.StopLoss > 0 && price <= p.StopLoss {
			return true, CloseReasonStopLoss
		}
		if p.TakeProfit > 0 && price >= p.TakeProfit {
			return true, CloseReasonTakeProfit
		}
		return false, ""
	}

	if p.StopLoss > 0 && price >= p.StopLoss {
		return true, CloseReasonStopLoss
	}
	if p.TakeProfit > 0 && price <= p.TakeProfit {
		return true, CloseReasonTakeProfit
	}
	return false, ""
}
