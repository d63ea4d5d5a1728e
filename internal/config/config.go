package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/marzanneub/stadia-map/internal/locate"
	"github.com/marzanneub/stadia-map/internal/routing"
)

// PlaceholderTileKey is used when STADIA_MAPS_API_KEY is unset, for local testing
const PlaceholderTileKey = "your_stadia_maps_api_key_here"

const tileURLTemplate = "https://tiles.stadiamaps.com/tiles/alidade_smooth/{z}/{x}/{y}.png?api_key="

// Config holds the service settings read from the environment
type Config struct {
	Port       string
	PathPrefix string
	LogLevel   slog.Level

	TileAPIKey string

	OSRMServiceURL string
	OSRMProfile    string
	NominatimURL   string
	UserAgent      string

	StorageType   string
	RoutesTable   string
	DatabaseURL   string
	AWSRegion     string
	KinesisStream string
	KafkaBrokers  []string
	KafkaTopic    string

	SessionIdleTTL time.Duration
	SweepInterval  time.Duration
}

// Load reads an optional .env file and then the process environment
func Load() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, assuming environment variables are set directly")
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only
func FromEnv() Config {
	return Config{
		Port:       getEnv("PORT", "8080"),
		PathPrefix: os.Getenv("PATH_PREFIX"),
		LogLevel:   getEnvLevel("LOG_LEVEL", slog.LevelInfo),

		TileAPIKey: getEnv("STADIA_MAPS_API_KEY", PlaceholderTileKey),

		OSRMServiceURL: getEnv("OSRM_SERVICE_URL", routing.DefaultServiceURL),
		OSRMProfile:    getEnv("OSRM_PROFILE", routing.DefaultProfile),
		NominatimURL:   getEnv("NOMINATIM_URL", locate.DefaultNominatimURL),
		UserAgent:      getEnv("HTTP_USER_AGENT", "stadia-map/1.0"),

		StorageType:   getEnv("STORAGE_TYPE", "memory"),
		RoutesTable:   getEnv("DYNAMODB_ROUTES_TABLE", "parking-routes"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		AWSRegion:     getEnv("AWS_REGION", "us-west-2"),
		KinesisStream: os.Getenv("KINESIS_MAP_EVENTS_STREAM"),
		KafkaBrokers:  splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:    getEnv("KAFKA_MAP_EVENTS_TOPIC", "map-events"),

		SessionIdleTTL: getEnvDuration("SESSION_IDLE_TTL", "30m"),
		SweepInterval:  getEnvDuration("SWEEP_INTERVAL", "1m"),
	}
}

// TileURL is the Leaflet tile layer template with the access key filled in
func (c Config) TileURL() string {
	return tileURLTemplate + c.TileAPIKey
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration gets duration from environment variable
func getEnvDuration(key, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil || duration <= 0 {
		slog.Warn("Invalid duration, using default", "key", key, "provided", value, "default", defaultValue, "error", err)
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}

func getEnvLevel(key string, defaultValue slog.Level) slog.Level {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		slog.Warn("Invalid log level, using default", "key", key, "provided", value, "default", defaultValue)
		return defaultValue
	}
	return level
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
