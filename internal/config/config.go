package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	// RedisAddr enables the cross-instance notification bridge when set.
	// Empty means single-instance mode: events stay in the local hub.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	SNSRegion        string
	SNSAlertTopicARN string

	NotificationTTL   time.Duration // outbox records expire after this
	GCInterval        time.Duration
	HeartbeatInterval time.Duration

	DefaultPollInterval   time.Duration // fallback when no window matches
	EmergencyPollInterval time.Duration
	OverrideDefaultHours  int

	StreamBufferSize int // outbound buffer per device connection

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Screens        string
	Schedules      string
	Playlists      string
	PlaylistItems  string
	Notifications  string
	PollingConfigs string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Screens:        getEnv("DYNAMO_TABLE_SCREENS", "screens"),
			Schedules:      getEnv("DYNAMO_TABLE_SCHEDULES", "schedules"),
			Playlists:      getEnv("DYNAMO_TABLE_PLAYLISTS", "playlists"),
			PlaylistItems:  getEnv("DYNAMO_TABLE_PLAYLIST_ITEMS", "playlist_items"),
			Notifications:  getEnv("DYNAMO_TABLE_NOTIFICATIONS", "notifications"),
			PollingConfigs: getEnv("DYNAMO_TABLE_POLLING_CONFIGS", "polling_configs"),
		},

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_DAYS", 7)) * 24 * time.Hour,

		SNSRegion:        getEnv("SNS_REGION", "us-east-1"),
		SNSAlertTopicARN: getEnv("SNS_ALERT_TOPIC_ARN", ""),

		NotificationTTL:   time.Duration(getEnvInt("NOTIFICATION_TTL_HOURS", 24)) * time.Hour,
		GCInterval:        time.Duration(getEnvInt("GC_INTERVAL_MINUTES", 60)) * time.Minute,
		HeartbeatInterval: time.Duration(getEnvInt("HEARTBEAT_INTERVAL_SECONDS", 15)) * time.Second,

		DefaultPollInterval:   time.Duration(getEnvInt("DEFAULT_POLL_INTERVAL_SECONDS", 300)) * time.Second,
		EmergencyPollInterval: time.Duration(getEnvInt("EMERGENCY_POLL_INTERVAL_SECONDS", 15)) * time.Second,
		OverrideDefaultHours:  getEnvInt("OVERRIDE_DEFAULT_HOURS", 4),

		StreamBufferSize: getEnvInt("STREAM_BUFFER_SIZE", 32),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
