package config

import (
	"os"
	"strconv"
	"time"
)

type BillingConfig struct {
	MailFee          int64
	Currency         string
	PaymentEventType string
	TxMaxAttempts    int
	TxRetryBaseDelay time.Duration
	DeliveryURL      string
	DeliveryTimeout  time.Duration
	PaymentDomain    string
}

func LoadBillingConfig() *BillingConfig {
	return &BillingConfig{
		MailFee:          getEnvAsInt64("MAIL_FEE", 10),
		Currency:         getEnv("CURRENCY", "EUR"),
		PaymentEventType: getEnv("PAYMENT_EVENT_TYPE", "payment_intent.succeeded"),
		TxMaxAttempts:    getEnvAsInt("TX_MAX_ATTEMPTS", 5),
		TxRetryBaseDelay: getEnvAsDuration("TX_RETRY_BASE_DELAY", 20*time.Millisecond),
		DeliveryURL:      getEnv("DELIVERY_URL", "http://localhost:8025"),
		DeliveryTimeout:  getEnvAsDuration("DELIVERY_TIMEOUT", 10*time.Second),
		PaymentDomain:    getEnv("PAYMENT_LINK_DOMAIN", "pay2mail.me"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.ParseInt(val, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
