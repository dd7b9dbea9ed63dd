package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

var loadEnv sync.Once

func Config(key string) string {
	loadEnv.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("Warning: .env file not found, reading from system environment variables")
		}
	})

	return os.Getenv(key)
}

type Settings struct {
	Env  string
	Port string

	DatabaseURL string
	JWTSecret   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ProcessorBaseURL   string
	ProcessorSecretKey string
	WebhookSecret      string
	WebhookTolerance   time.Duration
	CheckoutSuccessURL string
	CheckoutCancelURL  string
	Currency           string
	ExternalTimeout    time.Duration

	PayoutMinFreeAmount int64
	PayoutFlatFee       int64
	PayoutPercentFee    decimal.Decimal
	PayoutMinimum       int64
	DisbursementSpec    string

	BrevoAPIKey     string
	EmailSender     string
	EmailSenderName string

	AdminEmail    string
	AdminPassword string
	AdminFullName string
}

// Load reads the process configuration. Money values are minor units.
func Load() (*Settings, error) {
	s := &Settings{
		Env:                valueOr("APP_ENV", "development"),
		Port:               valueOr("PORT", "8080"),
		DatabaseURL:        Config("DATABASE_URL"),
		JWTSecret:          Config("JWT_SECRET"),
		RedisAddr:          Config("REDIS_ADDR"),
		RedisPassword:      Config("REDIS_PASSWORD"),
		ProcessorBaseURL:   valueOr("PROCESSOR_API_BASE_URL", "https://api.stripe.com"),
		ProcessorSecretKey: Config("PROCESSOR_SECRET_KEY"),
		WebhookSecret:      Config("WEBHOOK_SECRET"),
		CheckoutSuccessURL: valueOr("CHECKOUT_SUCCESS_URL", "http://localhost:3000/checkout/success"),
		CheckoutCancelURL:  valueOr("CHECKOUT_CANCEL_URL", "http://localhost:3000/checkout/cancel"),
		Currency:           valueOr("CURRENCY", "eur"),
		DisbursementSpec:   valueOr("DISBURSEMENT_SCHEDULE", "*/10 * * * *"),
		BrevoAPIKey:        Config("BREVO_API_KEY"),
		EmailSender:        Config("EMAIL_SENDER"),
		EmailSenderName:    Config("EMAIL_SENDER_NAME"),
		AdminEmail:         Config("ADMIN_EMAIL"),
		AdminPassword:      Config("ADMIN_PASSWORD"),
		AdminFullName:      Config("ADMIN_FULL_NAME"),
	}

	var err error
	if s.RedisDB, err = intOr("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if s.WebhookTolerance, err = durationOr("WEBHOOK_TOLERANCE", 5*time.Minute); err != nil {
		return nil, err
	}
	if s.ExternalTimeout, err = durationOr("EXTERNAL_CALL_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if s.PayoutMinFreeAmount, err = int64Or("PAYOUT_MIN_FREE_AMOUNT", 5000); err != nil {
		return nil, err
	}
	if s.PayoutFlatFee, err = int64Or("PAYOUT_FLAT_FEE", 100); err != nil {
		return nil, err
	}
	if s.PayoutMinimum, err = int64Or("PAYOUT_MINIMUM", 0); err != nil {
		return nil, err
	}
	if s.PayoutPercentFee, err = decimal.NewFromString(valueOr("PAYOUT_PERCENT_FEE", "0")); err != nil {
		return nil, fmt.Errorf("PAYOUT_PERCENT_FEE: %w", err)
	}

	for key, v := range map[string]string{
		"DATABASE_URL":         s.DatabaseURL,
		"JWT_SECRET":           s.JWTSecret,
		"PROCESSOR_SECRET_KEY": s.ProcessorSecretKey,
		"WEBHOOK_SECRET":       s.WebhookSecret,
	} {
		if v == "" {
			return nil, fmt.Errorf("%s is not set", key)
		}
	}
	if s.PayoutFlatFee < 0 || s.PayoutPercentFee.IsNegative() || s.PayoutMinFreeAmount < 0 {
		return nil, fmt.Errorf("payout fee configuration must not be negative")
	}

	return s, nil
}

func (s *Settings) IsProduction() bool {
	return s.Env == "production"
}

func valueOr(key, fallback string) string {
	if v := Config(key); v != "" {
		return v
	}
	return fallback
}

func intOr(key string, fallback int) (int, error) {
	v := Config(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func int64Or(key string, fallback int64) (int64, error) {
	v := Config(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func durationOr(key string, fallback time.Duration) (time.Duration, error) {
	v := Config(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
