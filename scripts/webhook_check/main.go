package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"tradehook/internal/bracket"
)

// This script posts a sample bracket signal to a running instance and
// prints the response, for smoke-testing the webhook path on testnet.
//
// Usage:
//   go run ./scripts/webhook_check [url]
//
// Default URL is http://localhost:8080/api/binance/order.

func main() {
	url := "http://localhost:8080/api/binance/order"
	if len(os.Args) > 1 {
		url = os.Args[1]
	}

	signal := bracket.OrderRequest{
		Exchange:   "binance",
		Interval:   "5m",
		SignalTime: time.Now().UTC().Format(time.RFC3339),
		Action:     "buy",
		Symbol:     "BTCUSD",
		Qty:        1,
		Price:      35000,
		Leverage:   5,
		TakeProfit: bracket.ProtectiveSpec{
			Offset: 500,
		},
		StopLoss: bracket.ProtectiveSpec{
			Offset: 300,
		},
	}

	body, err := json.Marshal(signal)
	if err != nil {
		log.Fatalf("marshal signal: %v", err)
	}

	log.Printf("POST %s\n%s", url, body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("post failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	log.Printf("status %d\n%s", resp.StatusCode, respBody)
}
