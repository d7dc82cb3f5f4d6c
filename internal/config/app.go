package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Политика обработки просроченного кода при попытке оплаты.
const (
	ExpiredPolicyMark  = "mark"
	ExpiredPolicyPurge = "purge"
)

// AppConfig - настройки бизнес-логики и сетевых адресов.
type AppConfig struct {
	BusinessTimeZone     string        `envconfig:"BUSINESS_TIMEZONE" default:"Asia/Jakarta"`
	PaymentCodeTTL       time.Duration `envconfig:"PAYMENT_CODE_TTL" default:"5m"`
	MinLeadTime          time.Duration `envconfig:"BOOKING_MIN_LEAD_TIME" default:"3h"`
	SweepInterval        time.Duration `envconfig:"SWEEP_INTERVAL" default:"60s"`
	ExpiredConfirmPolicy string        `envconfig:"EXPIRED_CONFIRM_POLICY" default:"mark"`
	ReceiptsDir          string        `envconfig:"RECEIPTS_DIR" default:"receipts"`

	GRPCAddr string `envconfig:"GRPC_ADDR" default:":50051"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	JWTSecret string `envconfig:"JWT_SECRET"`

	// RabbitMQ для доменных событий; пустой URL - события не публикуются.
	RabbitURL       string `envconfig:"RABBIT_URL"`
	BookingExchange string `envconfig:"BOOKING_EXCHANGE" default:"booking.exchange"`

	OTelEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
}

func LoadAppConfig() (*AppConfig, error) {
	loadDotEnv()

	cfg := &AppConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process app env: %w", err)
	}

	if _, err := time.LoadLocation(cfg.BusinessTimeZone); err != nil {
		return nil, fmt.Errorf("invalid BUSINESS_TIMEZONE %q: %w", cfg.BusinessTimeZone, err)
	}
	if cfg.PaymentCodeTTL <= 0 || cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("invalid app config: PAYMENT_CODE_TTL and SWEEP_INTERVAL must be positive")
	}
	if cfg.MinLeadTime < 0 {
		return nil, fmt.Errorf("invalid app config: BOOKING_MIN_LEAD_TIME must not be negative")
	}
	switch cfg.ExpiredConfirmPolicy {
	case ExpiredPolicyMark, ExpiredPolicyPurge:
	default:
		return nil, fmt.Errorf("invalid EXPIRED_CONFIRM_POLICY %q", cfg.ExpiredConfirmPolicy)
	}

	return cfg, nil
}

var dotEnvOnce sync.Once

// .env необязателен: его отсутствие не ошибка.
func loadDotEnv() {
	dotEnvOnce.Do(func() {
		_ = godotenv.Load()
	})
}
