package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	API       APIConfig
	Live      LiveConfig
	Desk      DeskConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all (e.g. http://localhost:3000,http://localhost:3001)
}

// APIConfig points at the visitor-pass REST backend.
type APIConfig struct {
	BaseURL    string // e.g. http://localhost:8080/api
	TimeoutSec int
}

// LiveConfig holds the STOMP push channel settings. An empty URL is derived from API.BaseURL.
type LiveConfig struct {
	URL                 string
	Disabled            bool
	ReconnectDelayMS    int
	MaxReconnectDelayMS int
	MaxRetries          int // 0 = retry forever
}

// DeskConfig holds component paging and session lifetime.
type DeskConfig struct {
	PageSize          int
	DashboardPageSize int
	IdleTimeoutMin    int
}

// RedisConfig holds Redis connection settings. An empty Addr runs a single instance without Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds bearer token validation settings. An empty secret leaves signature checks to the backend.
type JWTConfig struct {
	Secret string
}

// RateLimitConfig bounds requests per client IP.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	rps, err := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "20"), 64)
	if err != nil || rps <= 0 {
		rps = 20
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8090"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:4200"),
		},
		API: APIConfig{
			BaseURL:    strings.TrimSuffix(getEnv("API_BASE_URL", "http://localhost:8080/api"), "/"),
			TimeoutSec: getEnvInt("API_TIMEOUT_SEC", 10),
		},
		Live: LiveConfig{
			URL:              getEnv("LIVE_URL", ""),
			Disabled:         getEnvBool("LIVE_DISABLED", false),
			ReconnectDelayMS: getEnvInt("LIVE_RECONNECT_DELAY_MS", 5000),
			MaxRetries:       getEnvInt("LIVE_MAX_RETRIES", 0),
		},
		Desk: DeskConfig{
			PageSize:          getEnvInt("PAGE_SIZE", 10),
			DashboardPageSize: getEnvInt("DASHBOARD_PAGE_SIZE", 5),
			IdleTimeoutMin:    getEnvInt("DESK_IDLE_TIMEOUT_MIN", 30),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
		},
		RateLimit: RateLimitConfig{
			RPS:   rps,
			Burst: getEnvInt("RATE_LIMIT_BURST", 40),
		},
	}
	// Without a cap the reconnect delay stays fixed.
	cfg.Live.MaxReconnectDelayMS = getEnvInt("LIVE_MAX_RECONNECT_DELAY_MS", cfg.Live.ReconnectDelayMS)
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
