package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config представляет конфигурацию приложения
type Config struct {
	Server       ServerConfig       `json:"server"`
	Database     DatabaseConfig     `json:"database"`
	Redis        RedisConfig        `json:"redis"`
	Kafka        KafkaConfig        `json:"kafka"`
	Logger       LoggerConfig       `json:"logger"`
	Auth         AuthConfig         `json:"auth"`
	Payment      PaymentConfig      `json:"payment"`
	Storage      StorageConfig      `json:"storage"`
	Checkout     CheckoutConfig     `json:"checkout"`
	Analytics    AnalyticsConfig    `json:"analytics"`
	Retry        RetryConfig        `json:"retry"`
	RateLimit    RateLimitConfig    `json:"rate_limit"`
	Gamification GamificationConfig `json:"gamification"`
}

// ServerConfig представляет конфигурацию HTTP сервера
type ServerConfig struct {
	Port         string `json:"port"`
	Host         string `json:"host"`
	ReadTimeout  int    `json:"read_timeout"`
	WriteTimeout int    `json:"write_timeout"`
}

// DatabaseConfig представляет конфигурацию базы данных
type DatabaseConfig struct {
	Host         string `json:"host"`
	Port         string `json:"port"`
	User         string `json:"user"`
	Password     string `json:"password"`
	DBName       string `json:"db_name"`
	SSLMode      string `json:"ssl_mode"`
	MaxOpenConns int    `json:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns"`
}

// RedisConfig представляет конфигурацию Redis
type RedisConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// KafkaConfig представляет конфигурацию Kafka
type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	GroupID string   `json:"group_id"`
	Topics  Topics   `json:"topics"`
}

// Topics представляет список топиков Kafka
type Topics struct {
	Orders        string `json:"orders"`
	Coupons       string `json:"coupons"`
	Payments      string `json:"payments"`
	Notifications string `json:"notifications"`
}

// LoggerConfig представляет конфигурацию логгера
type LoggerConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	File   string `json:"file"`
}

// AuthConfig хранит параметры проверки JWT.
type AuthConfig struct {
	JWTSecret string `json:"-"`
	Issuer    string `json:"issuer"`
}

// PaymentConfig описывает подключение к платёжному шлюзу.
type PaymentConfig struct {
	StripeSecretKey     string `json:"-"`
	StripeWebhookSecret string `json:"-"`
	Currency            string `json:"currency"`
	TimeoutSeconds      int    `json:"timeout_seconds"`
}

// StorageConfig описывает объектное хранилище (MinIO / S3).
type StorageConfig struct {
	Endpoint      string `json:"endpoint"`
	AccessKey     string `json:"-"`
	SecretKey     string `json:"-"`
	Bucket        string `json:"bucket"`
	UseSSL        bool   `json:"use_ssl"`
	PublicBaseURL string `json:"public_base_url"`
	MaxUploadMB   int    `json:"max_upload_mb"`
}

// CheckoutConfig хранит тарифы доставки.
type CheckoutConfig struct {
	ShippingFee           float64 `json:"shipping_fee"`
	FreeShippingThreshold float64 `json:"free_shipping_threshold"`
}

// AnalyticsConfig хранит настройки аналитики
type AnalyticsConfig struct {
	CacheTTLMinutes       int    `json:"cache_ttl_minutes"`
	MaxRangeDays          int    `json:"max_range_days"`
	DefaultTopLimit       int    `json:"default_top_limit"`
	Timezone              string `json:"timezone"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
}

// Location часовой пояс, в котором считаются календарные дни отчетов.
// Пустой или неизвестный пояс дает UTC и ошибку для лога.
func (c *AnalyticsConfig) Location() (*time.Location, error) {
	if c == nil || c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC, err
	}
	return loc, nil
}

// RetryConfig задаёт повторы для идемпотентных чтений.
type RetryConfig struct {
	MaxAttempts       int `json:"max_attempts"`
	InitialIntervalMs int `json:"initial_interval_ms"`
	MaxIntervalMs     int `json:"max_interval_ms"`
}

// RateLimitConfig описывает настройки rate limiting
type RateLimitConfig struct {
	Enabled       bool   `json:"enabled"`
	Requests      int    `json:"requests"`
	WindowSeconds int    `json:"window_seconds"`
	KeyPrefix     string `json:"key_prefix"`
}

// GamificationConfig хранит параметры колеса удачи.
type GamificationConfig struct {
	SpinCooldownHours int `json:"spin_cooldown_hours"`
	LeaderboardSize   int `json:"leaderboard_size"`
}

// Load загружает конфигурацию из переменных окружения.
// Файл .env необязателен; уже заданные переменные окружения имеют приоритет.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 10),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "storefront_user"),
			Password:     getEnv("DB_PASSWORD", "storefront_pass"),
			DBName:       getEnv("DB_NAME", "storefront"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			GroupID: getEnv("KAFKA_GROUP_ID", "storefront"),
			Topics: Topics{
				Orders:        getEnv("KAFKA_TOPIC_ORDERS", "orders"),
				Coupons:       getEnv("KAFKA_TOPIC_COUPONS", "coupons"),
				Payments:      getEnv("KAFKA_TOPIC_PAYMENTS", "payments"),
				Notifications: getEnv("KAFKA_TOPIC_NOTIFICATIONS", "notifications"),
			},
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   getEnv("LOG_FILE", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "change-me"),
			Issuer:    getEnv("JWT_ISSUER", "storefront"),
		},
		Payment: PaymentConfig{
			StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			Currency:            strings.ToLower(getEnv("PAYMENT_CURRENCY", "usd")),
			TimeoutSeconds:      getEnvAsInt("PAYMENT_TIMEOUT_SECONDS", 10),
		},
		Storage: StorageConfig{
			Endpoint:      getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:     getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey:     getEnv("MINIO_SECRET_KEY", ""),
			Bucket:        getEnv("MINIO_BUCKET", "storefront-images"),
			UseSSL:        getEnvAsBool("MINIO_USE_SSL", false),
			PublicBaseURL: getEnv("MINIO_PUBLIC_BASE_URL", ""),
			MaxUploadMB:   getEnvAsInt("MINIO_MAX_UPLOAD_MB", 5),
		},
		Checkout: CheckoutConfig{
			ShippingFee:           getEnvAsFloat("CHECKOUT_SHIPPING_FEE", 4.99),
			FreeShippingThreshold: getEnvAsFloat("CHECKOUT_FREE_SHIPPING_THRESHOLD", 0),
		},
		Analytics: AnalyticsConfig{
			CacheTTLMinutes:       getEnvAsInt("ANALYTICS_CACHE_TTL_MINUTES", 10),
			MaxRangeDays:          getEnvAsInt("ANALYTICS_MAX_RANGE_DAYS", 365),
			DefaultTopLimit:       getEnvAsInt("ANALYTICS_DEFAULT_TOP_LIMIT", 10),
			Timezone:              getEnv("ANALYTICS_TIMEZONE", "UTC"),
			RequestTimeoutSeconds: getEnvAsInt("ANALYTICS_REQUEST_TIMEOUT_SECONDS", 5),
		},
		Retry: RetryConfig{
			MaxAttempts:       getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
			InitialIntervalMs: getEnvAsInt("RETRY_INITIAL_INTERVAL_MS", 100),
			MaxIntervalMs:     getEnvAsInt("RETRY_MAX_INTERVAL_MS", 2000),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getEnvAsBool("RATE_LIMIT_ENABLED", false),
			Requests:      getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
			WindowSeconds: getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
			KeyPrefix:     getEnv("RATE_LIMIT_KEY_PREFIX", "ratelimit"),
		},
		Gamification: GamificationConfig{
			SpinCooldownHours: getEnvAsInt("SPIN_COOLDOWN_HOURS", 24),
			LeaderboardSize:   getEnvAsInt("LEADERBOARD_SIZE", 10),
		},
	}
}

// getEnv получает значение переменной окружения с значением по умолчанию
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt получает значение переменной окружения как int с значением по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsFloat получает значение переменной окружения как float64 с значением по умолчанию
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool получает значение переменной окружения как bool с значением по умолчанию
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := strings.ToLower(getEnv(key, ""))
	if valueStr == "true" || valueStr == "1" || valueStr == "yes" {
		return true
	}
	if valueStr == "false" || valueStr == "0" || valueStr == "no" {
		return false
	}
	return defaultValue
}
