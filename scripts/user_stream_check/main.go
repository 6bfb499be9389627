package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"tradehook/internal/bracket"
	"tradehook/internal/events"
	"tradehook/internal/feed"
	"tradehook/internal/metadata"
	"tradehook/internal/profile"
	"tradehook/pkg/config"
	"tradehook/pkg/exchanges/binance"
)

// This script tests the user data stream end-to-end:
// - creates the event bus and fill listener against the real venue
// - logs every protective-fill event the listener reacts to
//
// Usage:
//   go run ./scripts/user_stream_check
//
// Make sure API keys are set in .env (use BINANCE_TESTNET=true).

func main() {
	log.Println("=== User stream check starting ===")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus()

	prof, err := profile.New("binance", config.ExchangeOverrides{})
	if err != nil {
		log.Fatalf("profile error: %v", err)
	}

	client := binance.NewClient(binance.Config{
		APIKey:    cfg.BinanceAPIKey,
		APISecret: cfg.BinanceAPISecret,
		Testnet:   cfg.BinanceTestnet,
	})
	client.StartTimeSync(ctx)

	cache := metadata.New(client, prof, cfg.MetadataTTL)
	engine := bracket.NewEngine(client, prof, cache, bus, cfg.DefaultLeverage)

	fills, unsub := bus.Subscribe(events.EventProtectiveFilled, 16)
	defer unsub()
	go func() {
		for msg := range fills {
			log.Printf("protective fill event: %+v", msg)
		}
	}()

	listener := feed.NewListener(client, client, engine, bus, cfg.ListenKeyRefresh)
	go listener.Run(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	<-sigChan
	log.Println("=== User stream check done ===")
}
