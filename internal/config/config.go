package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	DatabaseURL   string
	TenantsFile   string

	// ClickUp relay
	ClickUpAPIToken      string
	ClickUpDefaultListID string
	ClickUpBaseURL       string
	ClickUpTimeout       time.Duration
	ClickUpMaxRetries    int
	ClickUpBackoff       time.Duration
	RelayDestinationMode string

	// Funnel
	RelayURL           string
	SubmitTimeout      time.Duration
	DraftTTL           time.Duration
	DraftPurgeDelay    time.Duration
	IBGEBaseURL        string
	IBGETimeout        time.Duration
	CityCacheTTL       time.Duration
	CORSAllowedOrigins []string
	WhatsAppNumber     string
	WhatsAppMessage    string

	// Analytics fan-out
	AnalyticsQueueURL string
	AnalyticsBuffer   int

	// Lead e-mail
	EmailProvider       string
	NotifyFallbackEmail string
	SendGridAPIKey      string
	SendGridFromEmail   string
	SendGridFromName    string
	SESFromEmail        string
	SESFromName         string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		TenantsFile:   getEnv("TENANTS_FILE", ""),

		ClickUpAPIToken:      getEnv("CLICKUP_API_TOKEN", ""),
		ClickUpDefaultListID: getEnv("CLICKUP_DEFAULT_LIST_ID", "901323227565"),
		ClickUpBaseURL:       getEnv("CLICKUP_BASE_URL", "https://api.clickup.com/api/v2"),
		ClickUpTimeout:       getEnvAsDuration("CLICKUP_TIMEOUT", defaultClickUpTimeout),
		ClickUpMaxRetries:    getEnvAsInt("CLICKUP_MAX_RETRIES", 1),
		ClickUpBackoff:       getEnvAsDuration("CLICKUP_BACKOFF", defaultClickUpBackoff),
		RelayDestinationMode: strings.ToLower(strings.TrimSpace(getEnv("RELAY_DESTINATION_MODE", "allowlist"))),

		RelayURL:           getEnv("RELAY_URL", ""),
		SubmitTimeout:      getEnvAsDuration("SUBMIT_TIMEOUT", 0),
		DraftTTL:           getEnvAsDuration("DRAFT_TTL", 24*time.Hour),
		DraftPurgeDelay:    getEnvAsDuration("DRAFT_PURGE_DELAY", 2*time.Second),
		IBGEBaseURL:        getEnv("IBGE_BASE_URL", "https://servicodados.ibge.gov.br/api/v1/localidades"),
		IBGETimeout:        getEnvAsDuration("IBGE_TIMEOUT", 10*time.Second),
		CityCacheTTL:       getEnvAsDuration("CITY_CACHE_TTL", 7*24*time.Hour),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		WhatsAppNumber:     getEnv("WHATSAPP_NUMBER", ""),
		WhatsAppMessage:    getEnv("WHATSAPP_MESSAGE", ""),

		AnalyticsQueueURL: getEnv("ANALYTICS_QUEUE_URL", ""),
		AnalyticsBuffer:   getEnvAsInt("ANALYTICS_BUFFER", 256),

		EmailProvider:       strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "auto"))),
		NotifyFallbackEmail: getEnv("NOTIFY_FALLBACK_EMAIL", ""),
		SendGridAPIKey:      getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail:   getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:    getEnv("SENDGRID_FROM_NAME", "ESC Crédito"),
		SESFromEmail:        getEnv("SES_FROM_EMAIL", ""),
		SESFromName:         getEnv("SES_FROM_NAME", "ESC Crédito"),

		AWSRegion:           getEnv("AWS_REGION", "sa-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
	}
}

const (
	defaultClickUpTimeout = 10 * time.Second
	defaultClickUpBackoff = 250 * time.Millisecond
	// submitTimeoutMargin covers the relay's own work and the network hop
	// on top of its ClickUp calls.
	submitTimeoutMargin = 5 * time.Second
)

// ClickUpAttemptTimeout is the per-request ClickUp timeout the relay uses.
func (c *Config) ClickUpAttemptTimeout() time.Duration {
	if c.ClickUpTimeout <= 0 {
		return defaultClickUpTimeout
	}
	return c.ClickUpTimeout
}

// ClickUpRetryBackoff is the base delay between ClickUp attempts.
func (c *Config) ClickUpRetryBackoff() time.Duration {
	if c.ClickUpBackoff <= 0 {
		return defaultClickUpBackoff
	}
	return c.ClickUpBackoff
}

// RelayUpstreamBudget is the longest the relay can spend on ClickUp for one
// lead: every attempt timing out plus the doubling backoff between them.
func (c *Config) RelayUpstreamBudget() time.Duration {
	attempts := max(c.ClickUpMaxRetries, 0) + 1
	budget := c.ClickUpAttemptTimeout() * time.Duration(attempts)
	for i := 0; i < attempts-1; i++ {
		budget += c.ClickUpRetryBackoff() * time.Duration(1<<i)
	}
	return budget
}

// SubmitDeadline is how long the funnel waits for the relay. It always
// outlasts RelayUpstreamBudget so a lead is never told to retry while the
// relay can still create its task.
func (c *Config) SubmitDeadline() time.Duration {
	floor := c.RelayUpstreamBudget() + submitTimeoutMargin
	if c.SubmitTimeout < floor {
		return floor
	}
	return c.SubmitTimeout
}

// IsDevelopment reports whether the service runs locally.
func (c *Config) IsDevelopment() bool {
	return c.Env == "" || c.Env == "development"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping empty items.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
