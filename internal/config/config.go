package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	ServerPort string
	AppEnv     string

	DBHost         string
	DBPort         int
	DBUser         string
	DBPassword     string
	DBName         string
	DBSslMode      string
	DBMaxOpenConns int
	DBQueryTimeout time.Duration

	JWTSecret          string
	JWTExpirationHours time.Duration

	RedisAddr       string // empty disables login rate limiting
	RedisPassword   string
	LoginRateLimit  int
	LoginRateWindow time.Duration
	NATSURL         string // empty disables cross-instance push relay
	WSWriteTimeout  time.Duration
	AWSRegion       string
	SQSGateQueueURL string // empty disables the gate-event consumer
	IoTEndpoint     string // empty disables slot indicator publishing
	LPREnabled      bool
}

func Load() *Config {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8000"),
		AppEnv:     getEnv("APP_ENV", "development"),

		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnvAsInt("DB_PORT", 5432),
		DBUser:         getEnv("DB_USER", "parking"),
		DBPassword:     getEnv("DB_PASSWORD", "parking"),
		DBName:         getEnv("DB_NAME", "apartment_parking"),
		DBSslMode:      getEnv("DB_SSLMODE", "disable"),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		DBQueryTimeout: time.Duration(getEnvAsInt("DB_QUERY_TIMEOUT_SECONDS", 15)) * time.Second,

		JWTSecret:          getEnv("JWT_SECRET", "change-me-apartment-parking-secret"),
		JWTExpirationHours: time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 24)) * time.Hour,

		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		LoginRateLimit:  getEnvAsInt("LOGIN_RATE_LIMIT", 10),
		LoginRateWindow: time.Duration(getEnvAsInt("LOGIN_RATE_WINDOW_SECONDS", 60)) * time.Second,
		NATSURL:         getEnv("NATS_URL", ""),
		WSWriteTimeout:  time.Duration(getEnvAsInt("WS_WRITE_TIMEOUT_SECONDS", 10)) * time.Second,
		AWSRegion:       getEnv("AWS_REGION", "ap-south-1"),
		SQSGateQueueURL: getEnv("SQS_GATE_QUEUE_URL", ""),
		IoTEndpoint:     getEnv("IOT_ENDPOINT", ""),
		LPREnabled:      getEnvAsBool("LPR_ENABLED", false),
	}
}

// DSN renders the lib/pq connection string.
func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" port=" + strconv.Itoa(c.DBPort) +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" sslmode=" + c.DBSslMode
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Debug().Str("key", key).Str("default", fallback).Msg("environment variable not set, using default")
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw := getEnv(key, strconv.Itoa(fallback))
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("invalid integer, using default")
		return fallback
	}
	return v
}

func getEnvAsBool(key string, fallback bool) bool {
	raw := getEnv(key, strconv.FormatBool(fallback))
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("invalid boolean, using default")
		return fallback
	}
	return v
}
