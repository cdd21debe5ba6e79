package config

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	infisical "github.com/infisical/go-sdk"
	"github.com/joho/godotenv"
)

const (
	// wstETH collateral and its Prisma trove manager on Ethereum mainnet.
	defaultCollateral   = "0x7f39C581F595B53c5cb19bD0b3f8dA6c935E2Ca0"
	defaultTroveManager = "0x1CC79f3F47BfC060b6F761FcD1afC6D399a968B6"
)

type Config struct {
	Port            string
	FrontendOrigin  string
	LogLevel        slog.Level
	RefreshInterval time.Duration

	PrismaURL         string
	CollateralAddress string
	TroveManager      string

	CoinGeckoURL    string
	CoinGeckoAPIKey string
	OHLCCoinID      string
	OHLCDays        int

	RedisURL      string
	RedisPassword string
	CacheTTL      time.Duration

	TrovesDatabaseURL string
}

func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	cfg := Config{
		Port:              envOr("PORT", "8080"),
		FrontendOrigin:    envOr("FRONTEND_ORIGIN", "*"),
		LogLevel:          parseLevel(envOr("LOG_LEVEL", "info")),
		RefreshInterval:   envDuration("REFRESH_INTERVAL", 30*time.Minute),
		PrismaURL:         envOr("PRISMA_API_URL", "https://api.prismamonitor.com"),
		CollateralAddress: envOr("COLLATERAL_ADDRESS", defaultCollateral),
		TroveManager:      envOr("TROVE_MANAGER_ADDRESS", defaultTroveManager),
		CoinGeckoURL:      envOr("COINGECKO_API_URL", "https://api.coingecko.com/api/v3"),
		CoinGeckoAPIKey:   os.Getenv("COINGECKO_API_KEY"),
		OHLCCoinID:        envOr("OHLC_COIN_ID", "wrapped-steth"),
		OHLCDays:          envInt("OHLC_DAYS", 30),
		RedisURL:          os.Getenv("REDIS_URL"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		CacheTTL:          envDuration("UPSTREAM_CACHE_TTL", 5*time.Minute),
		TrovesDatabaseURL: os.Getenv("TROVES_DATABASE_URL"),
	}

	// If Infisical credentials are available, fetch secrets from Infisical
	clientID := os.Getenv("INFISICAL_CLIENT_ID")
	clientSecret := os.Getenv("INFISICAL_CLIENT_SECRET")
	if clientID != "" && clientSecret != "" {
		loadFromInfisical(&cfg, clientID, clientSecret)
	}

	return cfg
}

func loadFromInfisical(cfg *Config, clientID, clientSecret string) {
	siteURL := envOr("INFISICAL_SITE_URL", "https://app.infisical.com")
	projectID := os.Getenv("INFISICAL_PROJECT_ID")
	envSlug := envOr("INFISICAL_ENV", "prod")

	if projectID == "" {
		slog.Warn("INFISICAL_PROJECT_ID not set, skipping Infisical")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := infisical.NewInfisicalClient(ctx, infisical.Config{
		SiteUrl:          siteURL,
		AutoTokenRefresh: false,
	})

	_, err := client.Auth().UniversalAuthLogin(clientID, clientSecret)
	if err != nil {
		slog.Error("infisical auth failed", "error", err)
		return
	}

	for key, target := range secretTargets(cfg) {
		if *target != "" {
			continue // env var already set, skip
		}
		secret, err := client.Secrets().Retrieve(infisical.RetrieveSecretOptions{
			SecretKey:   key,
			Environment: envSlug,
			ProjectID:   projectID,
			SecretPath:  "/",
		})
		if err != nil {
			slog.Warn("failed to retrieve secret from infisical", "key", key, "error", err)
			continue
		}
		*target = secret.SecretValue
		slog.Info("loaded secret from infisical", "key", key)
	}
}

// secretTargets maps the secrets that may come from Infisical onto their
// config fields.
func secretTargets(cfg *Config) map[string]*string {
	return map[string]*string{
		"COINGECKO_API_KEY":   &cfg.CoinGeckoAPIKey,
		"REDIS_PASSWORD":      &cfg.RedisPassword,
		"TROVES_DATABASE_URL": &cfg.TrovesDatabaseURL,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid duration, using default", "key", key, "value", v, "default", fallback.String())
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("invalid integer, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
