package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Session store backends
const (
	StoreFile     = "file"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

type Config struct {
	ServerPort string
	LogLevel   string

	JWTSecret string

	SessionTimeout   time.Duration
	SessionStore     string
	SessionFilePath  string
	SessionRetention time.Duration

	CredentialsPath string

	RedisURL string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	CutoffSheetURL  string
	VacancySheetURL string
	FetchTimeout    time.Duration
	DatasetCacheTTL time.Duration
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables")
	}

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	sessionStore := os.Getenv("SESSION_STORE")
	if sessionStore == "" {
		sessionStore = StoreFile
	}
	switch sessionStore {
	case StoreFile, StoreRedis, StorePostgres:
	default:
		return nil, fmt.Errorf("invalid SESSION_STORE %q (want file, redis or postgres)", sessionStore)
	}

	sessionFilePath := os.Getenv("SESSION_FILE_PATH")
	if sessionFilePath == "" {
		sessionFilePath = "device_session.yaml"
	}

	credentialsPath := os.Getenv("CREDENTIALS_PATH")
	if credentialsPath == "" {
		credentialsPath = "config.yaml"
	}

	dbSSLMode := os.Getenv("DB_SSLMODE")
	if dbSSLMode == "" {
		dbSSLMode = "disable"
	}

	return &Config{
		ServerPort: serverPort,
		LogLevel:   logLevel,

		JWTSecret: jwtSecret,

		SessionTimeout:   secondsEnv("SESSION_TIMEOUT", 180),
		SessionStore:     sessionStore,
		SessionFilePath:  sessionFilePath,
		SessionRetention: secondsEnv("SESSION_RETENTION", 24*60*60),

		CredentialsPath: credentialsPath,

		RedisURL: os.Getenv("REDIS_URL"),

		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBSSLMode:  dbSSLMode,

		CutoffSheetURL:  os.Getenv("CUTOFF_SHEET_URL"),
		VacancySheetURL: os.Getenv("VACANCY_SHEET_URL"),
		FetchTimeout:    secondsEnv("FETCH_TIMEOUT", 30),
		DatasetCacheTTL: secondsEnv("DATASET_CACHE_TTL", 900),
	}, nil
}

// secondsEnv reads a positive integer number of seconds from the environment,
// falling back to the default on absence or garbage.
func secondsEnv(name string, fallback int) time.Duration {
	value, err := strconv.Atoi(os.Getenv(name))
	if err != nil || value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Second
}
