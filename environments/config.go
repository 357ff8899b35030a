package environments

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Provider ProviderConfig
	Dispatch DispatchConfig
	Events   EventsConfig
	Auth     AuthConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// ProviderConfig points at the WhatsApp Business Cloud API.
type ProviderConfig struct {
	BaseURL       string
	PhoneNumberID string
	AccessToken   string
	Timeout       time.Duration
}

// DispatchConfig drives the scheduler loop and the fair-share selector.
type DispatchConfig struct {
	CycleInterval    time.Duration // tick period of the dispatch loop
	CycleTimeout     time.Duration // per-cycle context deadline
	TenantBatchSize  int           // K: max recipients per tenant per cycle
	GlobalBatchLimit int           // cap across all tenants per cycle
	MessageDelay     time.Duration // pause between sends within one tenant
	ClaimStaleness   time.Duration // claimed rows older than this are re-selectable
	ReplyWindow      time.Duration // recency window for on_reply CRM triggers
}

type EventsConfig struct {
	AMQPURL  string
	Exchange string
}

type AuthConfig struct {
	OpsAPIKey string
	CRMAPIKey string
}

func Load() *Config {
	// Optional; real deployments set env vars directly.
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port: GetEnv("SERVER_PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     GetEnv("DB_HOST", "localhost"),
			Port:     GetEnv("DB_PORT", "3306"),
			User:     GetEnv("DB_USER", "dispatch"),
			Password: GetEnv("DB_PASSWORD", "dispatch123"),
			DBName:   GetEnv("DB_NAME", "wa_dispatch"),
		},
		Redis: RedisConfig{
			Host:     GetEnv("REDIS_HOST", "localhost"),
			Port:     GetEnv("REDIS_PORT", "6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       GetEnvAsInt("REDIS_DB", 0),
		},
		Provider: ProviderConfig{
			BaseURL:       GetEnv("WA_API_BASE_URL", "https://graph.facebook.com/v21.0"),
			PhoneNumberID: GetEnv("WA_PHONE_NUMBER_ID", ""),
			AccessToken:   GetEnv("WA_ACCESS_TOKEN", ""),
			Timeout:       GetEnvAsDuration("WA_API_TIMEOUT", 30*time.Second),
		},
		Dispatch: DispatchConfig{
			CycleInterval:    GetEnvAsDuration("DISPATCH_CYCLE_INTERVAL", 20*time.Second),
			CycleTimeout:     GetEnvAsDuration("DISPATCH_CYCLE_TIMEOUT", 5*time.Minute),
			TenantBatchSize:  GetEnvAsInt("DISPATCH_TENANT_BATCH_SIZE", 5),
			GlobalBatchLimit: GetEnvAsInt("DISPATCH_GLOBAL_BATCH_LIMIT", 50),
			MessageDelay:     GetEnvAsDuration("DISPATCH_MESSAGE_DELAY", 2*time.Second),
			ClaimStaleness:   GetEnvAsDuration("DISPATCH_CLAIM_STALENESS", 10*time.Minute),
			ReplyWindow:      GetEnvAsDuration("CRM_REPLY_WINDOW", 24*time.Hour),
		},
		Events: EventsConfig{
			AMQPURL:  GetEnv("AMQP_URL", ""),
			Exchange: GetEnv("AMQP_EXCHANGE", "campaign.events"),
		},
		Auth: AuthConfig{
			OpsAPIKey: GetEnv("OPS_API_KEY", ""),
			CRMAPIKey: GetEnv("CRM_API_KEY", ""),
		},
	}
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
