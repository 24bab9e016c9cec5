// Package config provides configuration management for the application
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// BBBConfig holds the conferencing server connection settings.
type BBBConfig struct {
	// Endpoint is the .../api/ base URL of the server. Empty means no
	// server is configured and lifecycle operations fail fast.
	Endpoint string
	Secret   string
}

// RedisConfig holds Redis/Valkey configuration
type RedisConfig struct {
	Enabled bool
	// URI is prioritized if provided, otherwise individual connection parameters are used
	URI       string
	Host      string
	Port      string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
	// TTL for meeting history records (0 means no expiration)
	MeetingTTL time.Duration
}

// OptionsHook returns extra raw parameters for a room's create or join
// calls. Applications install hooks to layer deployment-specific overrides
// on top of the computed options; hook values take final precedence.
type OptionsHook func(roomID string) map[string]string

// InvitationURLHook returns the invitation URL to tag into a room's
// create-time metadata, or empty to skip the entry.
type InvitationURLHook func(roomID string) string

// Config is the full configuration surface consumed by the lifecycle
// components. Constructed once and injected; nothing reads the environment
// after startup.
type Config struct {
	BBB   BBBConfig
	Redis RedisConfig

	// GuestSupport classifies attendee-key holders as guests.
	GuestSupport bool
	// UseLocalVoiceBridges sends the room's stored voice bridge on create.
	UseLocalVoiceBridges bool

	// Metadata parameter names for tagging create calls.
	UserIDMetadataKey        string
	UserNameMetadataKey      string
	InvitationURLMetadataKey string

	// RecordingSyncIntervals is the retry delay sequence for pulling
	// recordings after meetings end.
	RecordingSyncIntervals []time.Duration

	// DialNumberPattern seeds dial number generation, e.g. "1-800-10xx";
	// empty disables dial number assignment.
	DialNumberPattern string

	// Optional application hooks.
	CreateOptions OptionsHook
	JoinOptions   OptionsHook
	InvitationURL InvitationURLHook
}

// GetBBBConfig loads conferencing server configuration from environment variables
func GetBBBConfig() BBBConfig {
	return BBBConfig{
		Endpoint: getEnv("BBB_ENDPOINT", ""),
		Secret:   getEnv("BBB_SECRET", ""),
	}
}

// GetRedisConfig loads Redis/Valkey configuration from environment variables
func GetRedisConfig() RedisConfig {
	// Parse TTL from environment variable (in hours)
	ttlHours, _ := strconv.Atoi(getEnv("REDIS_MEETING_TTL_HOURS", "168")) // Default 7 days
	ttl := time.Duration(ttlHours) * time.Hour

	// Parse DB index
	db, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	return RedisConfig{
		Enabled:    getEnvBool("REDIS_ENABLED", false),
		URI:        getEnv("REDIS_URI_BROOMS", ""),
		Host:       getEnv("REDIS_HOST_BROOMS", getEnv("REDIS_ADDRESS", "localhost")),
		Port:       getEnv("REDIS_PORT_BROOMS", "6379"),
		Username:   getEnv("REDIS_USERNAME_BROOMS", ""),
		Password:   getEnv("REDIS_PASSWORD_BROOMS", getEnv("REDIS_PASSWORD", "")),
		DB:         db,
		KeyPrefix:  getEnv("REDIS_KEY_PREFIX", "brooms:"),
		MeetingTTL: ttl,
	}
}

// GetConfig loads the full configuration from environment variables
func GetConfig() Config {
	return Config{
		BBB:                      GetBBBConfig(),
		Redis:                    GetRedisConfig(),
		GuestSupport:             getEnvBool("GUEST_SUPPORT", false),
		UseLocalVoiceBridges:     getEnvBool("USE_LOCAL_VOICE_BRIDGES", false),
		UserIDMetadataKey:        getEnv("METADATA_USER_ID_KEY", "bbb-user-id"),
		UserNameMetadataKey:      getEnv("METADATA_USER_NAME_KEY", "bbb-user-name"),
		InvitationURLMetadataKey: getEnv("METADATA_INVITATION_URL_KEY", "bbb-invitation-url"),
		RecordingSyncIntervals:   getEnvDurations("RECORDING_SYNC_INTERVALS", []time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute}),
		DialNumberPattern:        getEnv("DIAL_NUMBER_PATTERN", ""),
	}
}

// IsBBBConfigValid checks if all required conferencing configuration is present
func (c BBBConfig) IsBBBConfigValid() bool {
	return c.Endpoint != "" && c.Secret != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvBool retrieves a boolean environment variable
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// getEnvDurations parses a comma-separated list of Go durations
func getEnvDurations(key string, defaultValue []time.Duration) []time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	durations := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		d, err := time.ParseDuration(strings.TrimSpace(part))
		if err != nil {
			return defaultValue
		}
		durations = append(durations, d)
	}
	return durations
}
