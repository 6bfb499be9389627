package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "EXCHANGE", "BINANCE_TESTNET", "METADATA_TTL",
		"LISTEN_KEY_REFRESH", "SWEEP_INTERVAL", "SWEEP_OFFSET", "ALLOWED_IPS",
	} {
		os.Unsetenv(key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port = %s", cfg.Port)
	}
	if cfg.Exchange != "binance" {
		t.Fatalf("Exchange = %s", cfg.Exchange)
	}
	if cfg.MetadataTTL != 10*time.Minute {
		t.Fatalf("MetadataTTL = %v", cfg.MetadataTTL)
	}
	if cfg.ListenKeyRefresh != 55*time.Minute {
		t.Fatalf("ListenKeyRefresh = %v", cfg.ListenKeyRefresh)
	}
	if cfg.SweepInterval != 5*time.Minute || cfg.SweepOffset != 4*time.Minute {
		t.Fatalf("sweep schedule = %v/%v", cfg.SweepInterval, cfg.SweepOffset)
	}
	if len(cfg.AllowedIPs) != 0 {
		t.Fatalf("AllowedIPs = %v", cfg.AllowedIPs)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("EXCHANGE", "BitMEX")
	t.Setenv("METADATA_TTL", "30s")
	t.Setenv("ALLOWED_IPS", "1.2.3.4, 5.6.7.8 ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9999" {
		t.Fatalf("Port = %s", cfg.Port)
	}
	if cfg.Exchange != "bitmex" {
		t.Fatalf("Exchange must be lowercased, got %s", cfg.Exchange)
	}
	if cfg.MetadataTTL != 30*time.Second {
		t.Fatalf("MetadataTTL = %v", cfg.MetadataTTL)
	}
	if len(cfg.AllowedIPs) != 2 || cfg.AllowedIPs[0] != "1.2.3.4" || cfg.AllowedIPs[1] != "5.6.7.8" {
		t.Fatalf("AllowedIPs = %v", cfg.AllowedIPs)
	}
}

func TestLoadUniverse(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "universe.yaml")
	data := `
sweep:
  symbols: [BTCUSD, ETHUSD]
exchanges:
  binance:
    native_symbols:
      BTCUSD: BTCUSDC
    tick_defaults:
      BTCUSD: 1
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	u, err := LoadUniverse(path)
	if err != nil {
		t.Fatalf("LoadUniverse: %v", err)
	}
	if len(u.Sweep.Symbols) != 2 || u.Sweep.Symbols[0] != "BTCUSD" {
		t.Fatalf("symbols = %v", u.Sweep.Symbols)
	}
	if u.Exchanges["binance"].NativeSymbols["BTCUSD"] != "BTCUSDC" {
		t.Fatalf("overrides = %+v", u.Exchanges["binance"])
	}
	if u.Exchanges["binance"].TickDefaults["BTCUSD"] != 1 {
		t.Fatalf("tick defaults = %+v", u.Exchanges["binance"].TickDefaults)
	}
}

func TestLoadUniverseMissingFile(t *testing.T) {
	u, err := LoadUniverse(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
	if len(u.Sweep.Symbols) != 0 {
		t.Fatalf("expected empty universe, got %+v", u)
	}
}

func TestLoadUniverseMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "universe.yaml")
	if err := os.WriteFile(path, []byte("sweep: ["), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadUniverse(path); err == nil {
		t.Fatal("expected parse error")
	}
}
