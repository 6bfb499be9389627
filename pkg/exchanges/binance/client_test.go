package binance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"tradehook/pkg/exchanges/common"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(Config{APIKey: "key", APISecret: "secret"})
	c.baseURL = srv.URL
	return c, srv
}

func TestCreateOrderSignsAndShapesRequest(t *testing.T) {
	var got url.Values
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v1/order" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-MBX-APIKEY") != "key" {
			t.Errorf("missing api key header")
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		got = r.PostForm

		json.NewEncoder(w).Encode(map[string]any{
			"orderId":       12345,
			"clientOrderId": got.Get("newClientOrderId"),
			"symbol":        got.Get("symbol"),
			"side":          got.Get("side"),
			"status":        "NEW",
			"origQty":       got.Get("quantity"),
			"executedQty":   "0",
			"stopPrice":     got.Get("stopPrice"),
			"price":         "0",
		})
	})

	order, err := c.CreateOrder(context.Background(), common.OrderRequest{
		Symbol:      "BTCUSDT",
		Side:        common.SideSell,
		Type:        common.OrderTypeTakeProfitMarket,
		Qty:         0.005,
		StopPrice:   35500,
		ClientID:    "tp-abc",
		ReduceOnly:  true,
		WorkingType: "CONTRACT_PRICE",
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if got.Get("type") != "TAKE_PROFIT_MARKET" {
		t.Fatalf("type = %s", got.Get("type"))
	}
	if got.Get("stopPrice") != "35500" {
		t.Fatalf("stopPrice = %s", got.Get("stopPrice"))
	}
	if got.Get("price") != "" {
		t.Fatalf("trigger orders must not carry a limit price, got %s", got.Get("price"))
	}
	if got.Get("reduceOnly") != "true" || got.Get("workingType") != "CONTRACT_PRICE" {
		t.Fatalf("flags missing: %v", got)
	}
	if got.Get("signature") == "" || got.Get("timestamp") == "" {
		t.Fatalf("request not signed: %v", got)
	}

	if order.ExchangeOrderID != "12345" || order.ClientID != "tp-abc" {
		t.Fatalf("order mapping wrong: %+v", order)
	}
	if order.Status != common.StatusNew || order.StopPrice != 35500 {
		t.Fatalf("order mapping wrong: %+v", order)
	}
}

func TestCreateOrderLimitCarriesPriceAndTIF(t *testing.T) {
	var got url.Values
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		got = r.PostForm
		json.NewEncoder(w).Encode(map[string]any{"orderId": 1, "status": "NEW"})
	})

	_, err := c.CreateOrder(context.Background(), common.OrderRequest{
		Symbol: "BTCUSDT",
		Side:   common.SideBuy,
		Type:   common.OrderTypeLimit,
		Qty:    1,
		Price:  34950,
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if got.Get("price") != "34950" || got.Get("timeInForce") != "GTC" {
		t.Fatalf("limit params wrong: %v", got)
	}
	if got.Get("stopPrice") != "" {
		t.Fatalf("limit order must not carry stopPrice: %v", got)
	}
}

func TestCreateOrderAPIError(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-2019,"msg":"Margin is insufficient."}`))
	})

	_, err := c.CreateOrder(context.Background(), common.OrderRequest{
		Symbol: "BTCUSDT", Side: common.SideBuy, Type: common.OrderTypeMarket, Qty: 1,
	})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != -2019 || apiErr.HTTPStatus != http.StatusBadRequest {
		t.Fatalf("error mapping wrong: %+v", apiErr)
	}
}

func TestSetMarginTypeToleratesNoChange(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-4046,"msg":"No need to change margin type."}`))
	})

	if err := c.SetMarginType(context.Background(), "BTCUSDT", "isolated"); err != nil {
		t.Fatalf("margin no-op must not error: %v", err)
	}
}

func TestFetchMarketsParsesFilters(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbols":[
			{"symbol":"BTCUSDT","status":"TRADING","pricePrecision":2,
			 "filters":[{"filterType":"PRICE_FILTER","tickSize":"0.10","minPrice":"556.80"}]},
			{"symbol":"DELISTED","status":"SETTLING","pricePrecision":4,"filters":[]}
		]}`))
	})

	markets, err := c.FetchMarkets(context.Background())
	if err != nil {
		t.Fatalf("FetchMarkets: %v", err)
	}
	if len(markets) != 2 {
		t.Fatalf("expected 2 markets, got %d", len(markets))
	}
	btc := markets[0]
	if btc.TickSize != 0.1 || btc.MinPrice != 556.8 || !btc.Active {
		t.Fatalf("market parse wrong: %+v", btc)
	}
	if markets[1].Active {
		t.Fatal("non-trading market must be inactive")
	}
}

func TestClosePositionSizesToLiveQty(t *testing.T) {
	var orderParams url.Values
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fapi/v2/positionRisk":
			w.Write([]byte(`[{"symbol":"BTCUSDT","positionAmt":"-0.75","entryPrice":"35000"}]`))
		case "/fapi/v1/order":
			r.ParseForm()
			orderParams = r.PostForm
			json.NewEncoder(w).Encode(map[string]any{"orderId": 9, "status": "FILLED"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	if err := c.ClosePosition(context.Background(), "BTCUSDT"); err != nil {
		t.Fatalf("ClosePosition: %v", err)
	}
	// Short position closes with a reduce-only buy of the absolute size.
	if orderParams.Get("side") != "BUY" || orderParams.Get("quantity") != "0.75" {
		t.Fatalf("close order wrong: %v", orderParams)
	}
	if orderParams.Get("reduceOnly") != "true" {
		t.Fatalf("close must be reduce-only: %v", orderParams)
	}
}

func TestMapStatus(t *testing.T) {
	tests := []struct {
		in   string
		want common.OrderStatus
	}{
		{"NEW", common.StatusNew},
		{"PARTIALLY_FILLED", common.StatusPartial},
		{"FILLED", common.StatusFilled},
		{"CANCELED", common.StatusCanceled},
		{"EXPIRED", common.StatusExpired},
		{"SOMETHING_ELSE", common.StatusUnknown},
	}
	for _, tt := range tests {
		if got := mapStatus(tt.in); got != tt.want {
			t.Fatalf("mapStatus(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
