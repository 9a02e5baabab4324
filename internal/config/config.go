package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultAPIBaseURL はリモートブログAPIのデフォルトのベースURL。
const DefaultAPIBaseURL = "https://blog-platform.kata.academy/api"

// トークン保存先の種別
const (
	TokenStoreFile     = "file"
	TokenStorePostgres = "postgres"
	TokenStoreMemory   = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Remote API
	APIBaseURL      string
	APITimeout      time.Duration
	APIRateLimit    float64 // req/sec
	APIRateBurst    int
	APIAllowPrivate bool

	// Token storage
	TokenStore  string
	TokenFile   string
	DatabaseURL string

	// Articles
	PageSize int

	// Rate Limit (req/min)
	RateLimitGeneral  int
	RateLimitMutation int

	// Logging
	LogLevel string

	// Server
	ServerPort string

	// Cookie
	CookieSecure bool

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 値が不正な場合や、選択したトークン保存先に必要な設定が欠けている場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.APIBaseURL = strings.TrimRight(getEnvString("API_BASE_URL", DefaultAPIBaseURL), "/")
	if u, err := url.Parse(cfg.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("API_BASE_URL is not a valid absolute URL: %q", cfg.APIBaseURL)
	}

	cfg.TokenStore = strings.ToLower(getEnvString("TOKEN_STORE", TokenStoreFile))
	cfg.TokenFile = getEnvString("TOKEN_FILE", ".blogclient/token.json")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	switch cfg.TokenStore {
	case TokenStoreFile, TokenStoreMemory:
	case TokenStorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("required environment variables are not set: %v", []string{"DATABASE_URL"})
		}
	default:
		return nil, fmt.Errorf("unsupported TOKEN_STORE: %q (allowed: file, postgres, memory)", cfg.TokenStore)
	}

	// Optional fields with defaults
	cfg.APITimeout = getEnvDuration("API_TIMEOUT", 10*time.Second)
	cfg.APIRateLimit = getEnvFloat("API_RATE_LIMIT", 5)
	cfg.APIRateBurst = getEnvInt("API_RATE_BURST", 10)
	cfg.APIAllowPrivate = getEnvBool("API_ALLOW_PRIVATE", false)
	cfg.PageSize = getEnvInt("PAGE_SIZE", 5)
	if cfg.PageSize <= 0 {
		cfg.PageSize = 5
	}
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitMutation = getEnvInt("RATE_LIMIT_MUTATION", 30)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", false)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
