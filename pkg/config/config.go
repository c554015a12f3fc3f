package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds the application configuration.
type AppConfig struct {
	Port             string
	JWTSecret        string
	JWTTokenLifespan time.Duration
	DBHost           string
	DBPort           string
	DBUser           string
	DBPassword       string
	DBName           string
	EnableDBSSL      bool
	Environment      string // "development", "staging", "production"
	AppVersion       string

	// Evidence object storage. Provider is "s3", "gcs" or empty (disabled).
	StorageProvider string
	GCSProjectID    string
	GCSBucketName   string
	AWSRegion       string
	S3BucketName    string

	FeatureToggles map[string]bool
}

var Cfg AppConfig

// LoadConfig loads the application configuration from environment variables.
// A local .env file is honoured in development; its absence is not an error.
func LoadConfig() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file loaded:", err)
	}

	Cfg.Port = getEnv("PORT", "8080")
	Cfg.JWTSecret = getEnv("JWT_SECRET_KEY", "a_very_secure_secret_key_please_change_me_32_chars_long")
	jwtLifespanHours, err := strconv.Atoi(getEnv("JWT_TOKEN_LIFESPAN_HOURS", "24"))
	if err != nil {
		log.Printf("Invalid JWT_TOKEN_LIFESPAN_HOURS, falling back to 24h: %v", err)
		jwtLifespanHours = 24
	}
	Cfg.JWTTokenLifespan = time.Duration(jwtLifespanHours) * time.Hour

	Cfg.DBHost = getEnv("DB_HOST", "localhost")
	Cfg.DBPort = getEnv("DB_PORT", "5432")
	Cfg.DBUser = getEnv("DB_USER", "satriarisk_user")
	Cfg.DBPassword = getEnv("DB_PASSWORD", "satriarisk_pass")
	Cfg.DBName = getEnv("DB_NAME", "satriarisk_db")
	Cfg.EnableDBSSL = getEnvAsBool("DB_SSL_ENABLE", false)

	Cfg.Environment = getEnv("ENVIRONMENT", "development")
	Cfg.AppVersion = getEnv("APP_VERSION", "dev")

	Cfg.StorageProvider = getEnv("STORAGE_PROVIDER", "")
	Cfg.GCSProjectID = getEnv("GCS_PROJECT_ID", "")
	Cfg.GCSBucketName = getEnv("GCS_BUCKET_NAME", "")
	Cfg.AWSRegion = getEnv("AWS_REGION", "")
	Cfg.S3BucketName = getEnv("S3_BUCKET_NAME", "")

	Cfg.FeatureToggles = loadFeatureToggles()

	log.Printf("Configuration loaded for environment: %s", Cfg.Environment)
}

// loadFeatureToggles collects every FEATURE_* environment variable into a map
// keyed by the name without the prefix, e.g. FEATURE_EVIDENCE_UPLOAD=true
// becomes {"EVIDENCE_UPLOAD": true}.
func loadFeatureToggles() map[string]bool {
	toggles := make(map[string]bool)
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 || !strings.HasPrefix(parts[0], "FEATURE_") {
			continue
		}
		name := strings.TrimPrefix(parts[0], "FEATURE_")
		enabled, err := strconv.ParseBool(parts[1])
		if err != nil {
			log.Printf("Invalid boolean for feature toggle %s: %q", parts[0], parts[1])
			continue
		}
		toggles[name] = enabled
	}
	return toggles
}

// getEnv returns the value of an environment variable or the provided default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsBool returns the boolean value of an environment variable or the default.
func getEnvAsBool(key string, defaultValue bool) bool {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue
	}
	valBool, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("Invalid boolean env var '%s' value '%s', using default: %t", key, valStr, defaultValue)
		return defaultValue
	}
	return valBool
}

func init() {
	LoadConfig()
}
