// Package config loads service settings from the environment and an optional .env file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-control/internal/fleet"
	"github.com/ukydev/fleet-control/internal/models"
	"github.com/ukydev/fleet-control/internal/traffic"
)

// Config is the full service configuration.
type Config struct {
	Port string

	Fleet      fleet.Config
	RandomSeed int64 // 0 means seed from the clock

	GeminiAPIKey string
	GeminiModel  string
	GeminiURL    string

	DirectionsURL   string
	FetchDirections bool

	MongoURI string
	MongoDB  string

	MQTTBroker string
	MQTTTopic  string

	JWTSecret        string
	JWTExpiry        time.Duration
	OperatorUsername string
	OperatorPassword string
	OperatorRole     models.Role

	LogLevel  string
	LogFormat string
}

// Load reads .env (if present) and the environment, falling back to defaults for unset
// or invalid values.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found (using environment variables)")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() Config {
	fc := fleet.DefaultConfig()
	fc.TickInterval = getDuration("TICK_INTERVAL", fc.TickInterval)
	fc.TrafficInterval = getDuration("TRAFFIC_INTERVAL", fc.TrafficInterval)
	fc.IncidentDelay = getDuration("INCIDENT_DELAY", fc.IncidentDelay)
	fc.IncidentRouteID = getEnv("INCIDENT_ROUTE_ID", fc.IncidentRouteID)
	fc.IncidentDelayMinutes = getInt("INCIDENT_DELAY_MINUTES", traffic.DefaultIncidentMinutes)
	fc.FrameInterval = getDuration("FRAME_INTERVAL", fc.FrameInterval)
	fc.Motion.Step = getFloat("PROGRESS_STEP", fc.Motion.Step)
	fc.Motion.BaseETAMinutes = getFloat("BASE_ETA_MINUTES", fc.Motion.BaseETAMinutes)
	fc.IntroOpen = !getBool("SKIP_INTRO", false)

	role := models.Role(getEnv("OPERATOR_ROLE", string(models.RoleManager)))
	if !models.IsValidRole(role) {
		log.WithField("role", role).Warn("Invalid OPERATOR_ROLE, using manager")
		role = models.RoleManager
	}

	return Config{
		Port:             getEnv("PORT", "8081"),
		Fleet:            fc,
		RandomSeed:       int64(getInt("RANDOM_SEED", 0)),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.0-flash-exp"),
		GeminiURL:        getEnv("GEMINI_URL", ""),
		DirectionsURL:    getEnv("DIRECTIONS_URL", "https://router.project-osrm.org"),
		FetchDirections:  getBool("FETCH_DIRECTIONS", false),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDB:          getEnv("MONGO_DB", "fleet"),
		MQTTBroker:       os.Getenv("MQTT_BROKER"),
		MQTTTopic:        getEnv("MQTT_TOPIC", "fleet/frames"),
		JWTSecret:        getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTExpiry:        getDuration("JWT_EXPIRY", 24*time.Hour),
		OperatorUsername: getEnv("OPERATOR_USERNAME", "dispatcher"),
		OperatorPassword: os.Getenv("OPERATOR_PASSWORD"),
		OperatorRole:     role,
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
	}
}

// SetupLogging applies the configured level and format to the standard logrus logger.
func (c Config) SetupLogging() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if strings.EqualFold(c.LogFormat, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		log.WithField(key, v).Warn("Invalid duration, using default")
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.WithField(key, v).Warn("Invalid integer, using default")
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		log.WithField(key, v).Warn("Invalid number, using default")
		return fallback
	}
	return f
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
