package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	GroqAPIKey  string
	DatabaseURL string
	HTTPPort    string
	LogLevel    string
	JWTSecret   string
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		GroqAPIKey:  getEnv("GROQ_API_KEY", ""),
		DatabaseURL: getEnv("DATABASE_URL", "animechat.db"),
		HTTPPort:    getEnv("HTTP_PORT", "8000"),
		LogLevel:    getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:   getEnv("JWT_SECRET", ""),
	}

	if AppConfig.GroqAPIKey == "" {
		log.Fatal("GROQ_API_KEY environment variable is required")
	}

	// No fallback secret: an unsigned-by-accident token is worse than a crash at boot.
	if AppConfig.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
