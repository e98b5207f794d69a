// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// WebhookConfig provides settings for inbound webhook verification.
type WebhookConfig interface {
	GetWebhookVerifyToken() string
}

// SchedulerConfig provides settings for the asynq scheduler components.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// WhatsAppConfig provides settings for the outbound WhatsApp gateway.
type WhatsAppConfig interface {
	GetWhatsAppURL() string
	GetWhatsAppKey() string
	GetWhatsAppDeviceID() string
}

// CalendarConfig provides settings for the external tour calendar.
type CalendarConfig interface {
	GetCalendarURL() string
	GetCalendarToken() string
	GetCalendarTimeout() time.Duration
}

// FollowupConfig provides the operational parameters of the followup scheduler.
type FollowupConfig interface {
	GetFollowupPollInterval() time.Duration
	GetFollowupMaxAttempts() int
	GetAbandonedLeadDelay() time.Duration
	GetEveningReminderHour() int
	GetMorningReminderHour() int
	GetLocation() *time.Location
}

// MatchingConfig provides the tunables of the unit matcher.
type MatchingConfig interface {
	GetRoomPolicyStrict() bool
	GetMaxRecommendations() int
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                 string
	HTTPAddr            string
	DatabaseURL         string
	CORSAllowAll        bool
	CORSOrigins         []string
	WebhookVerifyToken  string
	RedisURL            string
	RedisTLSInsecure    bool
	AsynqQueueName      string
	AsynqConcurrency    int
	WhatsAppURL         string
	WhatsAppKey         string
	WhatsAppDeviceID    string
	CalendarURL         string
	CalendarToken       string
	CalendarTimeout     time.Duration
	FollowupPollEvery   time.Duration
	FollowupMaxAttempts int
	AbandonedLeadDelay  time.Duration
	EveningReminderHour int
	MorningReminderHour int
	Timezone            string
	RoomPolicyStrict    bool
	MaxRecommendations  int

	location *time.Location
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// WebhookConfig implementation
func (c *Config) GetWebhookVerifyToken() string { return c.WebhookVerifyToken }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppURL() string      { return c.WhatsAppURL }
func (c *Config) GetWhatsAppKey() string      { return c.WhatsAppKey }
func (c *Config) GetWhatsAppDeviceID() string { return c.WhatsAppDeviceID }

// CalendarConfig implementation
func (c *Config) GetCalendarURL() string            { return c.CalendarURL }
func (c *Config) GetCalendarToken() string          { return c.CalendarToken }
func (c *Config) GetCalendarTimeout() time.Duration { return c.CalendarTimeout }

// FollowupConfig implementation
func (c *Config) GetFollowupPollInterval() time.Duration { return c.FollowupPollEvery }
func (c *Config) GetFollowupMaxAttempts() int            { return c.FollowupMaxAttempts }
func (c *Config) GetAbandonedLeadDelay() time.Duration   { return c.AbandonedLeadDelay }
func (c *Config) GetEveningReminderHour() int            { return c.EveningReminderHour }
func (c *Config) GetMorningReminderHour() int            { return c.MorningReminderHour }
func (c *Config) GetLocation() *time.Location            { return c.location }

// MatchingConfig implementation
func (c *Config) GetRoomPolicyStrict() bool { return c.RoomPolicyStrict }
func (c *Config) GetMaxRecommendations() int {
	if c.MaxRecommendations < 1 {
		return 3
	}
	return c.MaxRecommendations
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                 getEnv("APP_ENV", "development"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		CORSAllowAll:        corsAllowAll,
		CORSOrigins:         corsOrigins,
		WebhookVerifyToken:  getEnv("WEBHOOK_VERIFY_TOKEN", ""),
		RedisURL:            getEnv("REDIS_URL", ""),
		RedisTLSInsecure:    strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:      getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:    mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		WhatsAppURL:         getEnv("WHATSAPP_URL", ""),
		WhatsAppKey:         getEnv("WHATSAPP_KEY", ""),
		WhatsAppDeviceID:    getEnv("WHATSAPP_DEVICE_ID", ""),
		CalendarURL:         getEnv("CALENDAR_URL", ""),
		CalendarToken:       getEnv("CALENDAR_TOKEN", ""),
		CalendarTimeout:     mustDuration(getEnv("CALENDAR_TIMEOUT", "10s")),
		FollowupPollEvery:   mustDuration(getEnv("FOLLOWUP_POLL_INTERVAL", "30s")),
		FollowupMaxAttempts: mustInt(getEnv("FOLLOWUP_MAX_ATTEMPTS", "3")),
		AbandonedLeadDelay:  mustDuration(getEnv("ABANDONED_LEAD_DELAY", "4h")),
		EveningReminderHour: mustInt(getEnv("EVENING_REMINDER_HOUR", "19")),
		MorningReminderHour: mustInt(getEnv("MORNING_REMINDER_HOUR", "9")),
		Timezone:            getEnv("TIMEZONE", "Asia/Jerusalem"),
		RoomPolicyStrict:    strings.EqualFold(getEnv("ROOM_POLICY_STRICT", "false"), "true"),
		MaxRecommendations:  mustInt(getEnv("MAX_RECOMMENDATIONS", "3")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.WebhookVerifyToken == "" {
		return nil, fmt.Errorf("WEBHOOK_VERIFY_TOKEN is required")
	}
	if cfg.CalendarTimeout <= 0 {
		cfg.CalendarTimeout = 10 * time.Second
	}
	if cfg.FollowupPollEvery <= 0 {
		cfg.FollowupPollEvery = 30 * time.Second
	}
	if cfg.FollowupMaxAttempts < 1 {
		cfg.FollowupMaxAttempts = 3
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.location = loc

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
