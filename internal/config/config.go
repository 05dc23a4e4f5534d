package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// CascadeMode 删除子树时的事务策略
type CascadeMode string

const (
	// CascadeTransaction 整棵子树在一个事务中删除，失败则全部回滚
	CascadeTransaction CascadeMode = "transaction"
	// CascadeStepwise 每个节点单独一个短事务，失败时返回部分结果
	CascadeStepwise CascadeMode = "stepwise"
)

type Config struct {
	Port          string
	DatabaseURL   string
	SessionSecret string
	GinMode       string
	LogLevel      string
	LogFormat     string

	// Trust X-User-ID from an upstream gateway
	TrustUserHeader bool
	AdminUserIDs    []string

	CommentPageSize      int
	NotificationPageSize int
	CascadeMode          CascadeMode

	PostCacheSize          int
	PostCacheTTL           time.Duration
	ReconcileBatchInterval time.Duration
}

func Load() Config {
	return Config{
		Port:          getenv("PORT", "8080"),
		DatabaseURL:   getenv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=inkwell port=5432 sslmode=disable"),
		SessionSecret: getenv("SESSION_SECRET", "secret_key_change_me"),
		GinMode:       getenv("GIN_MODE", "release"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		LogFormat:     getenv("LOG_FORMAT", "json"),

		TrustUserHeader: getenvBool("TRUST_USER_HEADER", false),
		AdminUserIDs:    getenvList("ADMIN_USER_IDS"),

		CommentPageSize:      getenvInt("COMMENT_PAGE_SIZE", 5),
		NotificationPageSize: getenvInt("NOTIFICATION_PAGE_SIZE", 10),
		CascadeMode:          parseCascadeMode(getenv("CASCADE_MODE", string(CascadeTransaction))),

		PostCacheSize:          getenvInt("POST_CACHE_SIZE", 500),
		PostCacheTTL:           getenvDuration("POST_CACHE_TTL", 10*time.Minute),
		ReconcileBatchInterval: getenvDuration("RECONCILE_BATCH_INTERVAL", 500*time.Millisecond),
	}
}

func parseCascadeMode(v string) CascadeMode {
	if CascadeMode(strings.ToLower(v)) == CascadeStepwise {
		return CascadeStepwise
	}
	return CascadeTransaction
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getenvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
