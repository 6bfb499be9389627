package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"tradehook/internal/api"
	"tradehook/internal/bracket"
	"tradehook/internal/events"
	"tradehook/internal/feed"
	"tradehook/internal/metadata"
	"tradehook/internal/profile"
	"tradehook/internal/sweep"
	"tradehook/pkg/config"
	"tradehook/pkg/exchanges/binance"
	"tradehook/pkg/exchanges/common"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	log.Printf("starting tradehook on :%s (exchange=%s, testnet=%v)", cfg.Port, cfg.Exchange, cfg.BinanceTestnet)

	universe, err := config.LoadUniverse(cfg.UniverseFile)
	if err != nil {
		log.Fatalf("universe load failed: %v", err)
	}

	prof, err := profile.New(cfg.Exchange, universe.Exchanges[cfg.Exchange])
	if err != nil {
		log.Fatalf("exchange profile: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus()

	// Exchange gateway selection. BitMEX has a symbol profile but no
	// bundled gateway yet; refusing to start beats trading a venue this
	// build cannot reach.
	var gateway common.Gateway
	var stream common.StreamGateway
	switch cfg.Exchange {
	case "binance":
		client := binance.NewClient(binance.Config{
			APIKey:    cfg.BinanceAPIKey,
			APISecret: cfg.BinanceAPISecret,
			Testnet:   cfg.BinanceTestnet,
		})
		client.StartTimeSync(ctx)
		gateway = client
		stream = client
	default:
		log.Fatalf("no gateway available for exchange %q", cfg.Exchange)
	}

	cache := metadata.New(gateway, prof, cfg.MetadataTTL)
	engine := bracket.NewEngine(gateway, prof, cache, bus, cfg.DefaultLeverage)

	// Warm the metadata cache and force margin settings up front so the
	// first webhook does not pay for either.
	if len(universe.Sweep.Symbols) > 0 {
		if _, err := cache.Resolve(ctx, universe.Sweep.Symbols[0]); err != nil {
			log.Printf("metadata warmup failed: %v", err)
		}
		engine.PrepareMargin(ctx, universe.Sweep.Symbols)
	}

	listener := feed.NewListener(gateway, stream, engine, bus, cfg.ListenKeyRefresh)
	go listener.Run(ctx)

	sweeper := sweep.New(gateway, prof, bus, universe.Sweep.Symbols, cfg.SweepInterval, cfg.SweepOffset)
	go sweeper.Run(ctx)

	server := api.NewServer(engine, sweeper, bus, cfg.Exchange, cfg.JWTSecret, cfg.AllowedIPs)
	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf("api server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("shutting down")
}
