package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Polar    PolarConfig
	Supabase SupabaseConfig
	App      AppConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	URL string
}

type PolarConfig struct {
	AccessToken      string
	WebhookSecret    string
	Server           string // "sandbox" or "production"
	DefaultProductID string
}

type SupabaseConfig struct {
	URL       string
	JWTSecret string
}

type AppConfig struct {
	PublicURL string
}

func Load() *Config {
	godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "3000"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Polar: PolarConfig{
			AccessToken:      getEnv("POLAR_ACCESS_TOKEN", ""),
			WebhookSecret:    getEnv("POLAR_WEBHOOK_SECRET", ""),
			Server:           getEnv("POLAR_SERVER", "sandbox"),
			DefaultProductID: getEnv("POLAR_PRODUCT_ID", ""),
		},
		Supabase: SupabaseConfig{
			URL:       getEnv("SUPABASE_URL", ""),
			JWTSecret: getEnv("SUPABASE_JWT_SECRET", ""),
		},
		App: AppConfig{
			PublicURL: getEnv("APP_URL", "http://localhost:3000"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
