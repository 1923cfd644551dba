package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	futuresBaseURL        = "https://fapi.binance.com"
	futuresTestnetBaseURL = "https://testnet.binancefuture.com"
	recvWindow            = "5000"
)

// FuturesClient talks to the Binance USDT-M futures REST API.
type FuturesClient struct {
	apiKey     string
	secretKey  string
	baseURL    string
	network    string
	httpClient *http.Client
	symbols    []string
	logger     zerolog.Logger

	mu     sync.RWMutex
	status ConnectionStatus
}

// NewFuturesClient creates a live exchange client. symbols is the set of
// pairs GetPrices reports on.
func NewFuturesClient(apiKey, secretKey string, testnet bool, symbols []string, logger zerolog.Logger) *FuturesClient {
	baseURL := futuresBaseURL
	network := "mainnet"
	if testnet {
		baseURL = futuresTestnetBaseURL
		network = "testnet"
	}
	return &FuturesClient{
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    baseURL,
		network:    network,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		symbols:    symbols,
		logger:     logger.With().Str("component", "futures_client").Logger(),
	}
}

// Connect verifies network reachability and credential validity.
func (c *FuturesClient) Connect() error {
	status := ConnectionStatus{}

	if _, err := c.publicGet("/fapi/v1/ping", nil); err != nil {
		c.setStatus(status)
		return fmt.Errorf("exchange unreachable: %w", err)
	}
	status.Network = c.network

	if _, err := c.signedGet("/fapi/v2/account", nil); err != nil {
		c.setStatus(status)
		return fmt.Errorf("credential check failed: %w", err)
	}
	status.Identity = "futures-account"
	status.Connected = true

	c.setStatus(status)
	c.logger.Info().Msg("connected to exchange")
	return nil
}

func (c *FuturesClient) setStatus(status ConnectionStatus) {
	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
}

func (c *FuturesClient) ConnectionStatus() ConnectionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// GetPrices returns current mark prices for the tracked symbols.
func (c *FuturesClient) GetPrices() (map[string]float64, error) {
	body, err := c.publicGet("/fapi/v1/ticker/price", nil)
	if err != nil {
		c.markDisconnected()
		return nil, err
	}

	var tickers []tickerPrice
	if err := json.Unmarshal(body, &tickers); err != nil {
		return nil, fmt.Errorf("failed to parse ticker response: %w", err)
	}

	tracked := make(map[string]bool, len(c.symbols))
	for _, s := range c.symbols {
		tracked[s] = true
	}

	prices := make(map[string]float64)
	for _, t := range tickers {
		if !tracked[t.Symbol] {
			continue
		}
		price, err := strconv.ParseFloat(t.Price, 64)
		if err != nil {
			continue
		}
		prices[t.Symbol] = price
	}
	return prices, nil
}

// GetKlines fetches candlesticks. Binance returns each kline as a
// positional JSON array.
func (c *FuturesClient) GetKlines(symbol, interval string, limit int) ([]Kline, error) {
	params := map[string]string{
		"symbol":   symbol,
		"interval": interval,
		"limit":    strconv.Itoa(limit),
	}

	body, err := c.publicGet("/fapi/v1/klines", params)
	if err != nil {
		return nil, err
	}

	var raw [][]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse klines: %w", err)
	}

	klines := make([]Kline, 0, len(raw))
	for _, row := range raw {
		if len(row) < 6 {
			continue
		}
		kline := Kline{
			OpenTime: time.UnixMilli(int64(asFloat(row[0]))),
			Open:     parseFloatField(row[1]),
			High:     parseFloatField(row[2]),
			Low:      parseFloatField(row[3]),
			Close:    parseFloatField(row[4]),
			Volume:   parseFloatField(row[5]),
		}
		if len(row) > 6 {
			kline.CloseTime = time.UnixMilli(int64(asFloat(row[6])))
		}
		klines = append(klines, kline)
	}
	return klines, nil
}

type futuresAccount struct {
	TotalWalletBalance string `json:"totalWalletBalance"`
	AvailableBalance   string `json:"availableBalance"`
	Positions          []struct {
		Symbol           string `json:"symbol"`
		PositionAmt      string `json:"positionAmt"`
		EntryPrice       string `json:"entryPrice"`
		MarkPrice        string `json:"markPrice"`
		UnrealizedProfit string `json:"unRealizedProfit"`
		Leverage         string `json:"leverage"`
	} `json:"positions"`
}

// GetAccountState returns balances and non-zero positions.
func (c *FuturesClient) GetAccountState() (*AccountState, error) {
	body, err := c.signedGet("/fapi/v2/account", nil)
	if err != nil {
		c.markDisconnected()
		return nil, err
	}

	var account futuresAccount
	if err := json.Unmarshal(body, &account); err != nil {
		return nil, fmt.Errorf("failed to parse account: %w", err)
	}

	state := &AccountState{
		AccountValue:     parseFloatString(account.TotalWalletBalance),
		AvailableBalance: parseFloatString(account.AvailableBalance),
		Positions:        []Position{},
	}

	for _, p := range account.Positions {
		amt := parseFloatString(p.PositionAmt)
		if amt == 0 {
			continue
		}
		side := "LONG"
		if amt < 0 {
			side = "SHORT"
			amt = -amt
		}
		leverage, _ := strconv.Atoi(p.Leverage)
		state.Positions = append(state.Positions, Position{
			Symbol:           p.Symbol,
			Side:             side,
			Size:             amt,
			EntryPrice:       parseFloatString(p.EntryPrice),
			MarkPrice:        parseFloatString(p.MarkPrice),
			UnrealizedProfit: parseFloatString(p.UnrealizedProfit),
			Leverage:         leverage,
		})
	}
	return state, nil
}

type orderResponse struct {
	OrderID     int64  `json:"orderId"`
	ExecutedQty string `json:"executedQty"`
	AvgPrice    string `json:"avgPrice"`
	Status      string `json:"status"`
}

// PlaceMarketOrder submits a MARKET order. quantity is in base asset
// units.
func (c *FuturesClient) PlaceMarketOrder(symbol, side string, quantity float64) (*OrderResult, error) {
	params := map[string]string{
		"symbol":   symbol,
		"side":     side,
		"type":     "MARKET",
		"quantity": strconv.FormatFloat(quantity, 'f', -1, 64),
	}

	body, err := c.signedPost("/fapi/v1/order", params)
	if err != nil {
		return &OrderResult{Success: false, Error: err.Error()}, err
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return &OrderResult{Success: false, Error: err.Error()}, fmt.Errorf("failed to parse order response: %w", err)
	}

	return &OrderResult{
		Success:    true,
		OrderID:    strconv.FormatInt(resp.OrderID, 10),
		FilledSize: parseFloatString(resp.ExecutedQty),
		AvgPrice:   parseFloatString(resp.AvgPrice),
	}, nil
}

// ClosePosition flattens an open position with a reduce-only market
// order.
func (c *FuturesClient) ClosePosition(symbol string) (*CloseResult, error) {
	state, err := c.GetAccountState()
	if err != nil {
		return &CloseResult{Success: false, Error: err.Error()}, err
	}

	var position *Position
	for i := range state.Positions {
		if state.Positions[i].Symbol == symbol {
			position = &state.Positions[i]
			break
		}
	}
	if position == nil {
		return &CloseResult{Success: false, Error: "no open position"}, fmt.Errorf("no open position for %s", symbol)
	}

	side := SideSell
	if position.Side == "SHORT" {
		side = SideBuy
	}

	params := map[string]string{
		"symbol":     symbol,
		"side":       side,
		"type":       "MARKET",
		"quantity":   strconv.FormatFloat(position.Size, 'f', -1, 64),
		"reduceOnly": "true",
	}

	body, err := c.signedPost("/fapi/v1/order", params)
	if err != nil {
		return &CloseResult{Success: false, Error: err.Error()}, err
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return &CloseResult{Success: false, Error: err.Error()}, fmt.Errorf("failed to parse close response: %w", err)
	}

	closePrice := parseFloatString(resp.AvgPrice)
	if closePrice == 0 {
		closePrice = position.MarkPrice
	}
	return &CloseResult{Success: true, ClosePrice: closePrice}, nil
}

// SetLeverage sets leverage for a symbol.
func (c *FuturesClient) SetLeverage(symbol string, leverage int) error {
	params := map[string]string{
		"symbol":   symbol,
		"leverage": strconv.Itoa(leverage),
	}
	if _, err := c.signedPost("/fapi/v1/leverage", params); err != nil {
		return fmt.Errorf("failed to set leverage: %w", err)
	}
	return nil
}

func (c *FuturesClient) markDisconnected() {
	c.mu.Lock()
	c.status.Connected = false
	c.mu.Unlock()
}

func (c *FuturesClient) publicGet(endpoint string, params map[string]string) ([]byte, error) {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}

	reqURL := c.baseURL + endpoint
	if len(values) > 0 {
		reqURL += "?" + values.Encode()
	}

	resp, err := c.httpClient.Get(reqURL)
	if err != nil {
		return nil, err
	}
	return readResponse(resp)
}

func (c *FuturesClient) signedGet(endpoint string, params map[string]string) ([]byte, error) {
	return c.signedRequest(http.MethodGet, endpoint, params)
}

func (c *FuturesClient) signedPost(endpoint string, params map[string]string) ([]byte, error) {
	return c.signedRequest(http.MethodPost, endpoint, params)
}

func (c *FuturesClient) signedRequest(method, endpoint string, params map[string]string) ([]byte, error) {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	values.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	values.Set("recvWindow", recvWindow)

	query := values.Encode()
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(query))
	query += "&signature=" + hex.EncodeToString(mac.Sum(nil))

	req, err := http.NewRequest(method, c.baseURL+endpoint+"?"+query, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	return readResponse(resp)
}

func readResponse(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exchange API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func parseFloatField(v interface{}) float64 {
	s, ok := v.(string)
	if !ok {
		return asFloat(v)
	}
	return parseFloatString(s)
}

func parseFloatString(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func asFloat(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}
