// Package binance implements the Gateway interface against Binance USDT-M
// futures: signed REST for orders, positions and balances, plus the
// listen-key API backing the user data stream.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"tradehook/pkg/exchanges/common"
)

// Config holds Binance futures credentials.
type Config struct {
	APIKey     string
	APISecret  string
	Testnet    bool
	RecvWindow int64 // ms
}

// Client talks to Binance USDT-M futures.
type Client struct {
	cfg        Config
	baseURL    string
	streamHost string
	httpClient *http.Client
	timeSync   *common.TimeSync
	weight     *common.WeightTracker
	pacer      *rate.Limiter
}

// APIError is a structured Binance error response.
type APIError struct {
	HTTPStatus int
	Code       int    `json:"code"`
	Msg        string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance: status %d code %d: %s", e.HTTPStatus, e.Code, e.Msg)
}

// marginTypeUnchanged is returned when the margin mode already matches.
const marginTypeUnchanged = -4046

// NewClient creates a futures client.
func NewClient(cfg Config) *Client {
	base := "https://fapi.binance.com"
	stream := "wss://fstream.binance.com"
	if cfg.Testnet {
		base = "https://testnet.binancefuture.com"
		stream = "wss://stream.binancefuture.com"
	}
	if cfg.RecvWindow == 0 {
		cfg.RecvWindow = 5000
	}
	c := &Client{
		cfg:        cfg,
		baseURL:    base,
		streamHost: stream,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		weight:     common.NewWeightTracker(2400, time.Minute),
		pacer:      rate.NewLimiter(rate.Limit(10), 20),
	}
	c.timeSync = common.NewTimeSync(c.serverTime)
	return c
}

// StartTimeSync begins periodic clock synchronization against the venue.
func (c *Client) StartTimeSync(ctx context.Context) {
	c.timeSync.Start(ctx)
}

// StreamHost returns the websocket base URL for the user data stream.
func (c *Client) StreamHost() string {
	return c.streamHost
}

// FetchMarkets returns all tradable instruments from the exchange-info
// endpoint in one batch.
func (c *Client) FetchMarkets(ctx context.Context) ([]common.Market, error) {
	body, err := c.doPublic(ctx, "/fapi/v1/exchangeInfo")
	if err != nil {
		return nil, err
	}
	var info struct {
		Symbols []struct {
			Symbol         string `json:"symbol"`
			Status         string `json:"status"`
			PricePrecision int    `json:"pricePrecision"`
			ContractSize   string `json:"contractSize"`
			Filters        []struct {
				FilterType string `json:"filterType"`
				TickSize   string `json:"tickSize"`
				MinPrice   string `json:"minPrice"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decode exchange info: %w", err)
	}

	markets := make([]common.Market, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		m := common.Market{
			NativeSymbol:   s.Symbol,
			PricePrecision: s.PricePrecision,
			ContractSize:   toFloat(s.ContractSize),
			Active:         s.Status == "TRADING",
		}
		for _, f := range s.Filters {
			if f.FilterType == "PRICE_FILTER" {
				m.TickSize = toFloat(f.TickSize)
				m.MinPrice = toFloat(f.MinPrice)
			}
		}
		markets = append(markets, m)
	}
	return markets, nil
}

// FetchPositions returns the account's position risk view.
func (c *Client) FetchPositions(ctx context.Context) ([]common.Position, error) {
	params := url.Values{}
	body, err := c.doSigned(ctx, http.MethodGet, "/fapi/v2/positionRisk", params)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		Symbol           string `json:"symbol"`
		PositionAmt      string `json:"positionAmt"`
		EntryPrice       string `json:"entryPrice"`
		MarkPrice        string `json:"markPrice"`
		UnRealizedProfit string `json:"unRealizedProfit"`
		Leverage         string `json:"leverage"`
		UpdateTime       int64  `json:"updateTime"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}

	positions := make([]common.Position, 0, len(raw))
	for _, p := range raw {
		positions = append(positions, common.Position{
			Symbol:        p.Symbol,
			NativeSymbol:  p.Symbol,
			Qty:           toFloat(p.PositionAmt),
			EntryPrice:    toFloat(p.EntryPrice),
			MarkPrice:     toFloat(p.MarkPrice),
			UnrealizedPnL: toFloat(p.UnRealizedProfit),
			Leverage:      int(toFloat(p.Leverage)),
			Timestamp:     time.UnixMilli(p.UpdateTime),
		})
	}
	return positions, nil
}

// FetchBalance returns futures account balances.
func (c *Client) FetchBalance(ctx context.Context) ([]common.Balance, error) {
	body, err := c.doSigned(ctx, http.MethodGet, "/fapi/v2/balance", url.Values{})
	if err != nil {
		return nil, err
	}
	var raw []struct {
		Asset            string `json:"asset"`
		Balance          string `json:"balance"`
		AvailableBalance string `json:"availableBalance"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode balance: %w", err)
	}
	out := make([]common.Balance, 0, len(raw))
	for _, b := range raw {
		out = append(out, common.Balance{
			Asset:     b.Asset,
			Total:     toFloat(b.Balance),
			Available: toFloat(b.AvailableBalance),
		})
	}
	return out, nil
}

// CreateOrder submits one order.
func (c *Client) CreateOrder(ctx context.Context, req common.OrderRequest) (common.Order, error) {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return common.Order{}, errors.New("binance: API key/secret required")
	}
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("type", string(req.Type))
	params.Set("quantity", formatFloat(req.Qty))

	switch req.Type {
	case common.OrderTypeLimit, common.OrderTypeStop, common.OrderTypeTakeProfit:
		params.Set("price", formatFloat(req.Price))
		tif := req.TimeInForce
		if tif == "" {
			tif = "GTC"
		}
		params.Set("timeInForce", tif)
	}
	switch req.Type {
	case common.OrderTypeStop, common.OrderTypeStopMarket,
		common.OrderTypeTakeProfit, common.OrderTypeTakeProfitMarket:
		params.Set("stopPrice", formatFloat(req.StopPrice))
		if req.WorkingType != "" {
			params.Set("workingType", req.WorkingType)
		}
	}
	if req.ClientID != "" {
		params.Set("newClientOrderId", req.ClientID)
	}
	if req.ReduceOnly {
		params.Set("reduceOnly", "true")
	}

	body, err := c.doSigned(ctx, http.MethodPost, "/fapi/v1/order", params)
	if err != nil {
		return common.Order{}, err
	}
	var resp struct {
		OrderID       int64  `json:"orderId"`
		ClientOrderID string `json:"clientOrderId"`
		Symbol        string `json:"symbol"`
		Side          string `json:"side"`
		Status        string `json:"status"`
		Price         string `json:"price"`
		AvgPrice      string `json:"avgPrice"`
		StopPrice     string `json:"stopPrice"`
		OrigQty       string `json:"origQty"`
		ExecutedQty   string `json:"executedQty"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return common.Order{}, fmt.Errorf("decode order: %w", err)
	}
	return common.Order{
		ExchangeOrderID: strconv.FormatInt(resp.OrderID, 10),
		ClientID:        resp.ClientOrderID,
		Symbol:          resp.Symbol,
		Side:            common.Side(resp.Side),
		Status:          mapStatus(resp.Status),
		Price:           toFloat(resp.Price),
		StopPrice:       toFloat(resp.StopPrice),
		Qty:             toFloat(resp.OrigQty),
		ExecutedQty:     toFloat(resp.ExecutedQty),
	}, nil
}

// CancelAllOrders cancels every open order for a symbol.
func (c *Client) CancelAllOrders(ctx context.Context, symbol string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	_, err := c.doSigned(ctx, http.MethodDelete, "/fapi/v1/allOpenOrders", params)
	return err
}

// ClosePosition flattens the symbol's position with a reduce-only market
// order sized to the live position quantity.
func (c *Client) ClosePosition(ctx context.Context, symbol string) error {
	positions, err := c.FetchPositions(ctx)
	if err != nil {
		return err
	}
	for _, p := range positions {
		if p.NativeSymbol != symbol || p.Qty == 0 {
			continue
		}
		side := common.SideSell
		qty := p.Qty
		if qty < 0 {
			side = common.SideBuy
			qty = -qty
		}
		_, err := c.CreateOrder(ctx, common.OrderRequest{
			Symbol:     symbol,
			Side:       side,
			Type:       common.OrderTypeMarket,
			Qty:        qty,
			ReduceOnly: true,
		})
		return err
	}
	return nil
}

// SetLeverage sets leverage for a symbol.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("leverage", strconv.Itoa(leverage))
	_, err := c.doSigned(ctx, http.MethodPost, "/fapi/v1/leverage", params)
	return err
}

// SetMarginType sets the margin mode; an already-matching mode is not an
// error.
func (c *Client) SetMarginType(ctx context.Context, symbol, marginType string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("marginType", strings.ToUpper(marginType))
	_, err := c.doSigned(ctx, http.MethodPost, "/fapi/v1/marginType", params)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == marginTypeUnchanged {
		return nil
	}
	return err
}

// CreateListenKey issues a user-data-stream session key.
func (c *Client) CreateListenKey(ctx context.Context) (string, error) {
	body, err := c.doKeyed(ctx, http.MethodPost, "/fapi/v1/listenKey")
	if err != nil {
		return "", err
	}
	var out struct {
		ListenKey string `json:"listenKey"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	return out.ListenKey, nil
}

// KeepAliveListenKey extends the session key's life.
func (c *Client) KeepAliveListenKey(ctx context.Context, listenKey string) error {
	_, err := c.doKeyed(ctx, http.MethodPut, "/fapi/v1/listenKey?listenKey="+url.QueryEscape(listenKey))
	return err
}

func (c *Client) serverTime() (int64, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/fapi/v1/time")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("server time status %d: %s", resp.StatusCode, string(b))
	}
	var out struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.ServerTime, nil
}

// doPublic performs an unsigned GET.
func (c *Client) doPublic(ctx context.Context, path string) ([]byte, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// doKeyed performs a request authenticated by API key header only
// (listen-key endpoints take no signature).
func (c *Client) doKeyed(ctx context.Context, method, path string) ([]byte, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)
	return c.do(req)
}

// doSigned signs params with HMAC-SHA256 and sends the request.
func (c *Client) doSigned(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	params.Set("timestamp", strconv.FormatInt(c.timeSync.Now(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))

	// The signature must trail the signed payload verbatim.
	payload := params.Encode()
	encoded := payload + "&signature=" + sign(payload, c.cfg.APISecret)
	var (
		req *http.Request
		err error
	)
	switch method {
	case http.MethodGet, http.MethodDelete:
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+encoded, nil)
	default:
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, strings.NewReader(encoded))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	c.weight.Observe(res.Header.Get("X-MBX-USED-WEIGHT-1M"))

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode >= 300 {
		apiErr := &APIError{HTTPStatus: res.StatusCode}
		if json.Unmarshal(body, apiErr) != nil || apiErr.Msg == "" {
			apiErr.Msg = string(body)
		}
		return nil, apiErr
	}
	return body, nil
}

func sign(data, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func toFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func mapStatus(s string) common.OrderStatus {
	switch strings.ToUpper(s) {
	case "NEW":
		return common.StatusNew
	case "PARTIALLY_FILLED":
		return common.StatusPartial
	case "FILLED":
		return common.StatusFilled
	case "CANCELED":
		return common.StatusCanceled
	case "REJECTED":
		return common.StatusRejected
	case "EXPIRED":
		return common.StatusExpired
	default:
		return common.StatusUnknown
	}
}
