package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"strconv"
)

type Config struct {
	ServerAddr string
	JWTSecret  string
	LogLevel   string

	// Queue
	MaxConcurrent int
	MaxRetries    int

	// Progress weighting for server-mediated saves
	DownloadWeight float64

	// Client-side storage target
	DownloadDir string

	// Redis (progress event fan-out)
	RedisAddr string

	// MinIO (server-mediated storage)
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// S3 (coordinator storage)
	S3Endpoint     string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3UsePathStyle bool

	// Postgres (download history)
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
}

func Load() *Config {
	maxConcurrent, _ := strconv.Atoi(getEnvOrDefault("MAX_CONCURRENT_DOWNLOADS", "4"))
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	maxRetries, _ := strconv.Atoi(getEnvOrDefault("MAX_DOWNLOAD_RETRIES", "3"))
	if maxRetries <= 0 {
		maxRetries = 3
	}

	downloadWeight, _ := strconv.ParseFloat(getEnvOrDefault("DOWNLOAD_WEIGHT", "0.55"), 64)
	if downloadWeight <= 0 || downloadWeight >= 1 {
		downloadWeight = 0.55
	}

	minioUseSSL, _ := strconv.ParseBool(getEnvOrDefault("MINIO_USE_SSL", "false"))
	s3UsePathStyle, _ := strconv.ParseBool(getEnvOrDefault("S3_USE_PATH_STYLE", "true"))

	return &Config{
		ServerAddr:     getEnvOrDefault("SERVER_ADDR", ":8080"),
		JWTSecret:      getEnvOrDefault("JWT_SECRET", generateDefaultSecret()),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		MaxConcurrent:  maxConcurrent,
		MaxRetries:     maxRetries,
		DownloadWeight: downloadWeight,
		DownloadDir:    getEnvOrDefault("DOWNLOAD_DIR", "downloads"),
		RedisAddr:      getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		MinioEndpoint:  getEnvOrDefault("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: getEnvOrDefault("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey: getEnvOrDefault("MINIO_SECRET_KEY", "minioadmin"),
		MinioBucket:    getEnvOrDefault("MINIO_BUCKET", "downloads"),
		MinioUseSSL:    minioUseSSL,
		S3Endpoint:     getEnvOrDefault("S3_ENDPOINT", ""),
		S3Region:       getEnvOrDefault("S3_REGION", "us-east-1"),
		S3AccessKey:    getEnvOrDefault("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:    getEnvOrDefault("S3_SECRET_KEY", "minioadmin"),
		S3Bucket:       getEnvOrDefault("S3_BUCKET", "library"),
		S3UsePathStyle: s3UsePathStyle,
		DBHost:         getEnvOrDefault("DB_HOST", "localhost"),
		DBPort:         getEnvOrDefault("DB_PORT", "5432"),
		DBUser:         getEnvOrDefault("DB_USER", "tidalui"),
		DBPassword:     getEnvOrDefault("DB_PASSWORD", "tidalui_dev_password"),
		DBName:         getEnvOrDefault("DB_NAME", "tidalui"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func generateDefaultSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "dev-secret-change-in-production"
	}
	return hex.EncodeToString(bytes)
}
