package app

import (
	"os"
	"strconv"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/service/payhere"
)

// StorageDriver выбирает backend для заказов, остатков и леджеров.
type StorageDriver string

const (
	StorageDriverMemory   StorageDriver = "memory"
	StorageDriverPostgres StorageDriver = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       StorageDriver
	PostgresDSN         string
	PostgresAutoMigrate bool

	// RedisAddr включает кэш дедупликации вебхука перед леджером. Пустое
	// значение отключает кэш.
	RedisAddr string

	// KafkaBrokers включает публикацию событий расчёта. Пустое значение
	// отключает Kafka.
	KafkaBrokers string

	PayHere payhere.Config

	ReaperInterval  time.Duration
	ReaperTTL       time.Duration
	ReaperBatchSize int

	// SeedDemoInventory загружает демо-каталог в memory-хранилище.
	SeedDemoInventory bool
}

// DefaultConfig возвращает значения для локальной разработки: memory-хранилище
// без Kafka и Redis.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            ":8080",
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		PayHere: payhere.Config{
			CheckoutURL: "https://sandbox.payhere.lk/pay/checkout",
			Currency:    payhere.DefaultCurrency,
		},
		ReaperInterval:    time.Minute,
		ReaperTTL:         15 * time.Minute,
		ReaperBatchSize:   100,
		SeedDemoInventory: true,
	}
}

// LoadConfig читает конфигурацию из переменных окружения поверх значений
// по умолчанию. Неразборчивые числовые значения молча игнорируются.
func LoadConfig() Config {
	cfg := DefaultConfig()

	setString(&cfg.HTTPAddr, "STOREFRONT_HTTP_ADDR")
	setString(&cfg.MetricsAddr, "STOREFRONT_METRICS_ADDR")

	if v := os.Getenv("STOREFRONT_STORAGE_DRIVER"); v != "" {
		cfg.StorageDriver = StorageDriver(v)
	}
	setString(&cfg.PostgresDSN, "STOREFRONT_POSTGRES_DSN")
	setBool(&cfg.PostgresAutoMigrate, "STOREFRONT_POSTGRES_AUTO_MIGRATE")

	setString(&cfg.RedisAddr, "STOREFRONT_REDIS_ADDR")
	setString(&cfg.KafkaBrokers, "KAFKA_BROKERS")

	setString(&cfg.PayHere.MerchantID, "PAYHERE_MERCHANT_ID")
	setString(&cfg.PayHere.MerchantSecret, "PAYHERE_MERCHANT_SECRET")
	setString(&cfg.PayHere.Currency, "PAYHERE_CURRENCY")
	setString(&cfg.PayHere.CheckoutURL, "PAYHERE_CHECKOUT_URL")
	setString(&cfg.PayHere.ReturnURL, "PAYHERE_RETURN_URL")
	setString(&cfg.PayHere.CancelURL, "PAYHERE_CANCEL_URL")
	setString(&cfg.PayHere.NotifyURL, "PAYHERE_NOTIFY_URL")

	setDuration(&cfg.ReaperInterval, "STOREFRONT_REAPER_INTERVAL")
	setDuration(&cfg.ReaperTTL, "STOREFRONT_REAPER_TTL")
	setInt(&cfg.ReaperBatchSize, "STOREFRONT_REAPER_BATCH_SIZE")

	setBool(&cfg.SeedDemoInventory, "STOREFRONT_SEED_DEMO_INVENTORY")

	return cfg
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			*dst = parsed
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			*dst = parsed
		}
	}
}
