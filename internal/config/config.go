package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration. Loaded once at startup and
// treated as read-only afterwards.
type Config struct {
	AppName    string
	AppVersion string
	LogLevel   string
	LogFormat  string

	HTTPAddr string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	// Token API bearer secret.
	APISecret string

	// Rate limiting for the Token API. Disabled when RedisAddr is empty.
	RedisAddr       string
	RateLimitCalls  int
	RateLimitPeriod int

	// Payment provider selection and credentials.
	PaymentProvider string // "mock" or "robokassa"
	MerchantLogin   string
	Password1       string
	Password2       string
	IsTestMode      bool
	WebhookBaseURL  string

	InvoiceTTLHours int

	SubscriptionRenewalDays  int
	SubscriptionRenewalPrice int
	SubscriptionNotifyDays   []int
	SubscriptionGraceDays    int

	// Maximum overdraft magnitude permitted by deferred task billing, in tokens.
	BalanceFloor float64

	// Low-balance notification thresholds, descending.
	BalanceNotifyThresholds []int

	// External compute service (runner).
	RunnerBaseURL string
	RunnerAPIKey  string

	// Applied to the runner's reported task cost before debiting.
	CostMultiplier float64
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:    getenv("APP_SERVICE", "billingd"),
		AppVersion: getenv("APP_VERSION", "0.1.0"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogFormat:  getenv("LOG_FORMAT", "json"),

		HTTPAddr: getenv("HTTP_ADDR", ":8080"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "billing"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),

		APISecret: strings.TrimSpace(getenv("API_SECRET", "")),

		RedisAddr:       strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RateLimitCalls:  getenvInt("RATE_LIMIT_CALLS", 30),
		RateLimitPeriod: getenvInt("RATE_LIMIT_PERIOD", 60),

		PaymentProvider: strings.ToLower(getenv("PAYMENT_PROVIDER", "mock")),
		MerchantLogin:   getenv("MERCHANT_LOGIN", "demo"),
		Password1:       getenv("MERCHANT_PASSWORD_1", ""),
		Password2:       getenv("MERCHANT_PASSWORD_2", ""),
		IsTestMode:      getenvBool("PAYMENT_IS_TEST", true),
		WebhookBaseURL:  strings.TrimRight(getenv("WEBHOOK_BASE_URL", "http://localhost:8080"), "/"),

		InvoiceTTLHours: getenvInt("INVOICE_TTL_HOURS", 24),

		SubscriptionRenewalDays:  getenvInt("SUBSCRIPTION_RENEWAL_DAYS", 30),
		SubscriptionRenewalPrice: getenvInt("SUBSCRIPTION_RENEWAL_PRICE", 100),
		SubscriptionNotifyDays:   getenvInts("SUBSCRIPTION_NOTIFY_DAYS", []int{3, 1, 0}),
		SubscriptionGraceDays:    getenvInt("SUBSCRIPTION_GRACE_PERIOD_DAYS", 0),

		BalanceFloor:            getenvFloat("BALANCE_FLOOR", 1000),
		BalanceNotifyThresholds: getenvInts("BALANCE_NOTIFY_THRESHOLDS", []int{50, 20, 10, 5}),

		RunnerBaseURL:  strings.TrimRight(getenv("RUNNER_BASE_URL", "http://localhost:8090"), "/"),
		RunnerAPIKey:   getenv("RUNNER_API_KEY", ""),
		CostMultiplier: getenvFloat("COST_MULTIPLIER", 3.14),
	}

	return cfg
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		log.Printf("config: invalid int for %s: %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getenvFloat(key string, fallback float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		log.Printf("config: invalid float for %s: %q, using %v", key, v, fallback)
		return fallback
	}
	return f
}

func getenvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return b
}

func getenvInts(key string, fallback []int) []int {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			log.Printf("config: invalid int list for %s: %q, using defaults", key, v)
			return fallback
		}
		out = append(out, n)
	}
	return out
}
