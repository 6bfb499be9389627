package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds environment-driven settings for the bracket engine.
type Config struct {
	Port string

	// Active exchange profile ("binance" or "bitmex")
	Exchange string

	// Binance
	BinanceTestnet   bool
	BinanceAPIKey    string
	BinanceAPISecret string

	// Engine
	MetadataTTL     time.Duration // market metadata cache expiry
	DefaultLeverage int           // used when the webhook omits leverage

	// Fill listener
	ListenKeyRefresh time.Duration // must stay under the venue's key expiry

	// Reconciliation sweep
	SweepInterval time.Duration
	SweepOffset   time.Duration // offset from the interval grid

	// HTTP boundary
	AllowedIPs []string // empty allows all
	JWTSecret  string   // empty disables bearer auth

	// Symbol universe / per-exchange overrides
	UniverseFile string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:             getEnv("PORT", "8080"),
		Exchange:         strings.ToLower(getEnv("EXCHANGE", "binance")),
		BinanceTestnet:   getEnv("BINANCE_TESTNET", "false") == "true",
		BinanceAPIKey:    os.Getenv("BINANCE_API_KEY"),
		BinanceAPISecret: os.Getenv("BINANCE_API_SECRET"),
		MetadataTTL:      getEnvDuration("METADATA_TTL", 10*time.Minute),
		DefaultLeverage:  getEnvInt("DEFAULT_LEVERAGE", 1),
		ListenKeyRefresh: getEnvDuration("LISTEN_KEY_REFRESH", 55*time.Minute),
		SweepInterval:    getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
		SweepOffset:      getEnvDuration("SWEEP_OFFSET", 4*time.Minute),
		AllowedIPs:       splitAndTrim(getEnv("ALLOWED_IPS", "")),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		UniverseFile:     getEnv("UNIVERSE_FILE", "./universe.yaml"),
	}, nil
}

// Universe is the YAML-configured symbol universe plus per-exchange
// symbol-map overrides layered on top of the built-in profile tables.
type Universe struct {
	Sweep struct {
		Symbols []string `yaml:"symbols"`
	} `yaml:"sweep"`
	Exchanges map[string]ExchangeOverrides `yaml:"exchanges"`
}

// ExchangeOverrides customizes one exchange profile.
type ExchangeOverrides struct {
	NativeSymbols  map[string]string `yaml:"native_symbols"`
	GatewaySymbols map[string]string `yaml:"gateway_symbols"`
	TickDefaults   map[string]float64 `yaml:"tick_defaults"`
}

// LoadUniverse parses the universe file. A missing file yields an empty
// universe rather than an error so the engine can run on profile defaults.
func LoadUniverse(path string) (*Universe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Universe{}, nil
		}
		return nil, fmt.Errorf("read universe file: %w", err)
	}
	var u Universe
	if err := yaml.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("parse universe file: %w", err)
	}
	return &u, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(val string) []string {
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
