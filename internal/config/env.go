package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Env holds runtime configuration loaded once at startup.
type Env struct {
	AppAddr string
	GinMode string

	CORSOrigins []string

	// Database
	DBUser string
	DBPass string
	DBHost string
	DBName string

	// Webhook boundary
	WebhookSecret      string
	WebhookBearerToken string
	AllowedIPs         []string

	// Aggregator (mobile money provider)
	AggregatorAPIKey  string
	AggregatorBaseURL string
	AggregatorEnv     string // sandbox | production
	AggregatorTimeout time.Duration

	// Booking expiry scheduler
	BookingExpiryMinutes int
	ExpirySweepInterval  time.Duration

	JWTSecret string
}

func LoadEnv() Env {
	return Env{
		AppAddr:              getenv("APP_ADDR", ":8080"),
		GinMode:              strings.TrimSpace(os.Getenv("GIN_MODE")),
		CORSOrigins:          splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		DBUser:               getenv("DB_USER", "root"),
		DBPass:               strings.TrimSpace(os.Getenv("DB_PASS")),
		DBHost:               getenv("DB_HOST", "127.0.0.1:3306"),
		DBName:               getenv("DB_NAME", "travel_marketplace"),
		WebhookSecret:        strings.TrimSpace(os.Getenv("WEBHOOK_SECRET")),
		WebhookBearerToken:   strings.TrimSpace(os.Getenv("WEBHOOK_BEARER_TOKEN")),
		AllowedIPs:           splitList(os.Getenv("WEBHOOK_ALLOWED_IPS")),
		AggregatorAPIKey:     strings.TrimSpace(os.Getenv("AGGREGATOR_API_KEY")),
		AggregatorBaseURL:    strings.TrimSpace(os.Getenv("AGGREGATOR_BASE_URL")),
		AggregatorEnv:        getenv("AGGREGATOR_ENV", "sandbox"),
		AggregatorTimeout:    getenvDuration("AGGREGATOR_TIMEOUT", 30*time.Second),
		BookingExpiryMinutes: getenvInt("BOOKING_EXPIRY_MINUTES", 30),
		ExpirySweepInterval:  getenvDuration("EXPIRY_SWEEP_INTERVAL", 5*time.Minute),
		JWTSecret:            getenv("JWT_SECRET", "super-secret-key-change-me"),
	}
}

// MustValidate stops the process when required config is missing.
// Per-request handling never fails on config; only startup does.
func (e Env) MustValidate() {
	if e.AggregatorAPIKey == "" {
		log.Fatal("AGGREGATOR_API_KEY wajib diisi")
	}
	if e.AggregatorEnv != "sandbox" && e.AggregatorEnv != "production" {
		log.Fatalf("AGGREGATOR_ENV tidak valid: %s", e.AggregatorEnv)
	}
	if e.WebhookSecret == "" && e.WebhookBearerToken == "" {
		log.Fatal("minimal satu dari WEBHOOK_SECRET / WEBHOOK_BEARER_TOKEN wajib diisi")
	}
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitList(raw string) []string {
	out := []string{}
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
