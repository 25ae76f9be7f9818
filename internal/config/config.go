package config

import (
	"encoding/hex"
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type AppConfig struct {
	Port        string
	DatabaseDSN string
	LogLevel    string
	CORSOrigin  string
	BaseURL     string
	// Provider base URL overrides for sandbox environments; empty means the
	// production endpoints.
	EnableBankingBaseURL string
	GoCardlessBaseURL    string
	// SecretsKey is the 32-byte key used to encrypt credential fields at rest,
	// supplied hex-encoded via SECRETS_KEY.
	SecretsKey []byte
}

func Load() *AppConfig {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system env")
	}

	cfg := &AppConfig{
		Port:        getEnv("PORT", "8080"),
		DatabaseDSN: getEnv("DATABASE_DSN", "host=localhost user=kontor password=kontor dbname=kontor port=5432 sslmode=disable"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigin:  getEnv("CORS_ORIGIN", "http://localhost:3000"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),

		EnableBankingBaseURL: getEnv("ENABLE_BANKING_BASE_URL", ""),
		GoCardlessBaseURL:    getEnv("GOCARDLESS_BASE_URL", ""),
	}

	keyHex := getEnv("SECRETS_KEY", "")
	if keyHex == "" {
		log.Println("WARNING: SECRETS_KEY not set, using an insecure development key")
		keyHex = "6b6f6e746f722d6465762d6b65792d6b6f6e746f722d6465762d6b65792e2e2e"
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil || len(key) != 32 {
		log.Fatalf("SECRETS_KEY must be 32 bytes hex-encoded: %v", err)
	}
	cfg.SecretsKey = key

	return cfg
}

func (c *AppConfig) InitDB() *gorm.DB {
	db, err := gorm.Open(postgres.Open(c.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	return db
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
