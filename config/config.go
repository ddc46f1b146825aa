package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var (
	PORT       string
	DB_URL     string
	JWT_SECRET string
	APP_URL    string

	// Payment gateway (redirect form + ITN webhook)
	MERCHANT_ID         string
	MERCHANT_KEY        string
	GATEWAY_PASSPHRASE  string
	GATEWAY_PROCESS_URL string

	GOOGLE_CLIENT_ID         string
	GOOGLE_CLIENT_SECRET     string
	GOOGLE_REDIRECT_URL      string
	GOOGLE_FRONTEND_REDIRECT string

	// Asset store and derivative cache roots
	ASSET_ROOT string
	CACHE_ROOT string

	DOWNLOAD_TTL_DAYS    int
	DOWNLOAD_MAX_DEFAULT int
)

func LoadEnv() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}

	PORT = getEnv("PORT", "8080")
	DB_URL = mustEnv("DB_URL")
	JWT_SECRET = mustEnv("JWT_SECRET")
	APP_URL = getEnv("APP_URL", "http://localhost:5173")

	MERCHANT_ID = mustEnv("MERCHANT_ID")
	MERCHANT_KEY = mustEnv("MERCHANT_KEY")
	GATEWAY_PASSPHRASE = getEnv("GATEWAY_PASSPHRASE", "")
	GATEWAY_PROCESS_URL = getEnv("GATEWAY_PROCESS_URL", "https://sandbox.payfast.co.za/eng/process")

	GOOGLE_CLIENT_ID = getEnv("GOOGLE_CLIENT_ID", "")
	GOOGLE_CLIENT_SECRET = getEnv("GOOGLE_CLIENT_SECRET", "")
	GOOGLE_REDIRECT_URL = getEnv("GOOGLE_REDIRECT_URL", "")
	GOOGLE_FRONTEND_REDIRECT = getEnv("GOOGLE_FRONTEND_REDIRECT", "")

	ASSET_ROOT = mustEnv("ASSET_ROOT")
	CACHE_ROOT = mustEnv("CACHE_ROOT")

	DOWNLOAD_TTL_DAYS = getEnvInt("DOWNLOAD_TTL_DAYS", 30)
	DOWNLOAD_MAX_DEFAULT = getEnvInt("DOWNLOAD_MAX_DEFAULT", 3)
}

func mustEnv(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("Missing required environment variable: %s", key)
	}
	return v
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
