package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every deployment setting. It is built once in main and passed down explicitly.
type Config struct {
	Port string

	// Relational backend
	DatabaseURL      string
	DBMaxConns       int
	DBConnectTimeout time.Duration
	DBIdleTimeout    time.Duration
	DBQueryTimeout   time.Duration
	AutoMigrate      bool
	ApprovedPageSize int

	// HTTP edge
	AllowedOrigins  string
	BodyLimitBytes  int
	RateLimitMax    int
	RateLimitWindow time.Duration
	RedisAddr       string

	// Key-value backend
	AWSRegion        string
	InvoicesTable    string
	InvoicesTablePK  string
	InvoicesTableSK  string
	KVDefaultLimit   int
	KVMaxLimit       int
	PreviewURLTTL    time.Duration
	RawPreviewURLTTL time.Duration
	DefaultBucket    string

	// Deliberate escape hatch for controlled storage migrations. Off by default.
	AllowCrossTenantPreview bool

	// Auth
	AuthCookieName string
	TenantClaim    string
	JWTSecret      string

	DevMode bool
}

// Load reads an optional .env file and then the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not read .env file", "error", err)
	}

	bodyLimit := envInt("BODY_LIMIT_BYTES", 0)
	if bodyLimit <= 0 {
		bodyLimit = envInt("BODY_LIMIT_MB", 4) * 1024 * 1024
	}

	return Config{
		Port: envString("PORT", "8080"),

		DatabaseURL:      databaseURL(),
		DBMaxConns:       envInt("DB_MAX_CONNS", 10),
		DBConnectTimeout: envDuration("DB_CONNECT_TIMEOUT", 5*time.Second),
		DBIdleTimeout:    envDuration("DB_IDLE_TIMEOUT", 30*time.Second),
		DBQueryTimeout:   envDuration("DB_QUERY_TIMEOUT", 10*time.Second),
		AutoMigrate:      envBool("AUTO_MIGRATE", false),
		ApprovedPageSize: envInt("APPROVED_PAGE_SIZE", 100),

		AllowedOrigins:  envString("ALLOWED_ORIGINS", "*"),
		BodyLimitBytes:  bodyLimit,
		RateLimitMax:    envInt("RATE_LIMIT_MAX", 60),
		RateLimitWindow: time.Duration(envInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
		RedisAddr:       os.Getenv("REDIS_ADDR"),

		AWSRegion:        envString("AWS_REGION", "us-east-1"),
		InvoicesTable:    os.Getenv("INVOICES_TABLE"),
		InvoicesTablePK:  envString("INVOICES_TABLE_PK", "tenantId"),
		InvoicesTableSK:  envString("INVOICES_TABLE_SK", "invoiceId"),
		KVDefaultLimit:   envInt("KV_DEFAULT_LIMIT", 50),
		KVMaxLimit:       envInt("KV_MAX_LIMIT", 200),
		PreviewURLTTL:    envDuration("PREVIEW_URL_TTL", 5*time.Minute),
		RawPreviewURLTTL: envDuration("RAW_PREVIEW_URL_TTL", time.Hour),
		DefaultBucket:    os.Getenv("DEFAULT_BUCKET"),

		AllowCrossTenantPreview: envBool("PREVIEW_ALLOW_CROSS_TENANT", false),

		AuthCookieName: envString("AUTH_COOKIE_NAME", "idToken"),
		TenantClaim:    envString("TENANT_CLAIM", "custom:tenant_id"),
		JWTSecret:      os.Getenv("JWT_SECRET"),

		DevMode: envBool("DEV_MODE", false),
	}
}

// databaseURL prefers DATABASE_URL and otherwise assembles a DSN from the DB_* variables.
func databaseURL() string {
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		return dsn
	}
	if os.Getenv("DB_NAME") == "" {
		return ""
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		envString("DB_HOST", "db"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		envString("DB_PORT", "5432"),
		envString("DB_SSLMODE", "disable"))
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envInt reads an int env var with a default fallback.
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
