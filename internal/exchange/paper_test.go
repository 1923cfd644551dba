package exchange

import (
	"fmt"
	"testing"
)

func fixedPrices(prices map[string]float64) func(string) (float64, error) {
	return func(symbol string) (float64, error) {
		price, ok := prices[symbol]
		if !ok {
			return 0, fmt.Errorf("unknown symbol %s", symbol)
		}
		return price, nil
	}
}

func TestPaperClientRequiresConnect(t *testing.T) {
	c := NewPaperClient(1000, []string{"BTCUSDT"}, fixedPrices(map[string]float64{"BTCUSDT": 100}))

	if _, err := c.GetPrices(); err == nil {
		t.Error("prices before connect should fail")
	}
	if _, err := c.GetAccountState(); err == nil {
		t.Error("account state before connect should fail")
	}

	if err := c.Connect(); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	status := c.ConnectionStatus()
	if !status.Connected || status.Network != "paper" {
		t.Errorf("status = %+v, want connected paper network", status)
	}
	if _, err := c.GetPrices(); err != nil {
		t.Errorf("prices after connect failed: %v", err)
	}
}

func TestPaperOrderOpensPosition(t *testing.T) {
	prices := map[string]float64{"BTCUSDT": 100}
	c := NewPaperClient(1000, []string{"BTCUSDT"}, fixedPrices(prices))
	if err := c.Connect(); err != nil {
		t.Fatal(err)
	}

	result, err := c.PlaceMarketOrder("BTCUSDT", SideBuy, 2)
	if err != nil || !result.Success {
		t.Fatalf("order failed: %v %+v", err, result)
	}
	if result.AvgPrice != 100 || result.FilledSize != 2 {
		t.Errorf("fill = %.2f @ %.2f, want 2 @ 100", result.FilledSize, result.AvgPrice)
	}

	state, err := c.GetAccountState()
	if err != nil {
		t.Fatal(err)
	}
	if len(state.Positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(state.Positions))
	}
	if state.Positions[0].Side != "LONG" {
		t.Errorf("buy order should open LONG, got %s", state.Positions[0].Side)
	}
}

func TestPaperSellOpensShort(t *testing.T) {
	c := NewPaperClient(1000, []string{"ETHUSDT"}, fixedPrices(map[string]float64{"ETHUSDT": 50}))
	if err := c.Connect(); err != nil {
		t.Fatal(err)
	}

	if _, err := c.PlaceMarketOrder("ETHUSDT", SideSell, 1); err != nil {
		t.Fatal(err)
	}
	state, _ := c.GetAccountState()
	if state.Positions[0].Side != "SHORT" {
		t.Errorf("sell order should open SHORT, got %s", state.Positions[0].Side)
	}
}

func TestPaperCloseSettlesPnL(t *testing.T) {
	prices := map[string]float64{"BTCUSDT": 100}
	c := NewPaperClient(1000, []string{"BTCUSDT"}, fixedPrices(prices))
	if err := c.Connect(); err != nil {
		t.Fatal(err)
	}
	if _, err := c.PlaceMarketOrder("BTCUSDT", SideBuy, 2); err != nil {
		t.Fatal(err)
	}

	prices["BTCUSDT"] = 110
	result, err := c.ClosePosition("BTCUSDT")
	if err != nil || !result.Success {
		t.Fatalf("close failed: %v %+v", err, result)
	}
	if result.ClosePrice != 110 {
		t.Errorf("close price = %.2f, want 110", result.ClosePrice)
	}

	state, _ := c.GetAccountState()
	if len(state.Positions) != 0 {
		t.Error("closed position should be gone")
	}
	// 2 units gaining 10 each on a 1000 balance.
	if state.AvailableBalance != 1020 {
		t.Errorf("balance = %.2f, want 1020", state.AvailableBalance)
	}
}

func TestPaperCloseWithoutPosition(t *testing.T) {
	c := NewPaperClient(1000, nil, fixedPrices(nil))
	if err := c.Connect(); err != nil {
		t.Fatal(err)
	}
	result, _ := c.ClosePosition("BTCUSDT")
	if result.Success {
		t.Error("closing a nonexistent position must not succeed")
	}
}

func TestPaperUnrealizedPnLInAccountValue(t *testing.T) {
	prices := map[string]float64{"BTCUSDT": 100}
	c := NewPaperClient(1000, []string{"BTCUSDT"}, fixedPrices(prices))
	if err := c.Connect(); err != nil {
		t.Fatal(err)
	}
	if _, err := c.PlaceMarketOrder("BTCUSDT", SideBuy, 1); err != nil {
		t.Fatal(err)
	}

	prices["BTCUSDT"] = 120
	state, err := c.GetAccountState()
	if err != nil {
		t.Fatal(err)
	}
	if state.AccountValue != 1020 {
		t.Errorf("account value = %.2f, want 1020 including unrealized gain", state.AccountValue)
	}
	if state.AvailableBalance != 1000 {
		t.Errorf("available balance = %.2f, want untouched 1000", state.AvailableBalance)
	}
}

func TestPaperLeverageBounds(t *testing.T) {
	c := NewPaperClient(1000, nil, fixedPrices(nil))
	if err := c.SetLeverage("BTCUSDT", 0); err == nil {
		t.Error("leverage 0 should be rejected")
	}
	if err := c.SetLeverage("BTCUSDT", 126); err == nil {
		t.Error("leverage above 125 should be rejected")
	}
	if err := c.SetLeverage("BTCUSDT", 10); err != nil {
		t.Errorf("leverage 10 rejected: %v", err)
	}
}

func TestPaperRejectsBadOrders(t *testing.T) {
	c := NewPaperClient(1000, []string{"BTCUSDT"}, fixedPrices(map[string]float64{"BTCUSDT": 100}))
	if err := c.Connect(); err != nil {
		t.Fatal(err)
	}

	result, _ := c.PlaceMarketOrder("BTCUSDT", SideBuy, 0)
	if result.Success {
		t.Error("zero-size order must be rejected")
	}
	result, _ = c.PlaceMarketOrder("UNKNOWN", SideBuy, 1)
	if result.Success {
		t.Error("order without a price must be rejected")
	}
}
