package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Port     string
	GinMode  string
	LogLevel string
	// LogFormat is "json" or "console".
	LogFormat string

	DatabaseURL string
	DataPath    string

	JWTSecret       string
	JWTExpiry       time.Duration
	APIMasterSecret string
	AdminUsername   string
	AdminPassword   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	EventsStream  string

	UseSolver         bool
	SolverURL         string
	SolverTimeout     time.Duration
	GenerativeURL     string
	GenerativeAPIKey  string
	GenerativeModel   string
	GenerativeTimeout time.Duration
	HeuristicBudget   time.Duration
	GenerationLockTTL time.Duration

	MonthlyGenerationQuota int
	UnlimitedOrganizations []string

	RateLimit string
}

// LoadConfig loads configuration from environment variables and a .env file
// if present.
func LoadConfig() (*Config, error) {
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	v := viper.New()
	v.SetDefault("PORT", "8000")
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DATA_PATH", "rota.db")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_EXPIRY", "24h")
	v.SetDefault("API_MASTER_SECRET", "")
	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("EVENTS_STREAM", "rota:events")
	v.SetDefault("USE_SOLVER", true)
	v.SetDefault("SOLVER_URL", "")
	v.SetDefault("SOLVER_TIMEOUT", "30s")
	v.SetDefault("GENERATIVE_URL", "")
	v.SetDefault("GENERATIVE_API_KEY", "")
	v.SetDefault("GENERATIVE_MODEL", "gpt-4o-mini")
	v.SetDefault("GENERATIVE_TIMEOUT", "60s")
	v.SetDefault("HEURISTIC_BUDGET", "2s")
	v.SetDefault("GENERATION_LOCK_TTL", "5m")
	v.SetDefault("MONTHLY_GENERATION_QUOTA", 20)
	v.SetDefault("UNLIMITED_ORGANIZATIONS", "")
	v.SetDefault("RATE_LIMIT", "300-M")
	v.AutomaticEnv()

	cfg := &Config{
		Port:                   v.GetString("PORT"),
		GinMode:                v.GetString("GIN_MODE"),
		LogLevel:               v.GetString("LOG_LEVEL"),
		LogFormat:              v.GetString("LOG_FORMAT"),
		DatabaseURL:            v.GetString("DATABASE_URL"),
		DataPath:               v.GetString("DATA_PATH"),
		JWTSecret:              v.GetString("JWT_SECRET"),
		JWTExpiry:              v.GetDuration("JWT_EXPIRY"),
		APIMasterSecret:        v.GetString("API_MASTER_SECRET"),
		AdminUsername:          v.GetString("ADMIN_USERNAME"),
		AdminPassword:          v.GetString("ADMIN_PASSWORD"),
		RedisAddr:              v.GetString("REDIS_ADDR"),
		RedisPassword:          v.GetString("REDIS_PASSWORD"),
		RedisDB:                v.GetInt("REDIS_DB"),
		EventsStream:           v.GetString("EVENTS_STREAM"),
		UseSolver:              v.GetBool("USE_SOLVER"),
		SolverURL:              v.GetString("SOLVER_URL"),
		SolverTimeout:          v.GetDuration("SOLVER_TIMEOUT"),
		GenerativeURL:          v.GetString("GENERATIVE_URL"),
		GenerativeAPIKey:       v.GetString("GENERATIVE_API_KEY"),
		GenerativeModel:        v.GetString("GENERATIVE_MODEL"),
		GenerativeTimeout:      v.GetDuration("GENERATIVE_TIMEOUT"),
		HeuristicBudget:        v.GetDuration("HEURISTIC_BUDGET"),
		GenerationLockTTL:      v.GetDuration("GENERATION_LOCK_TTL"),
		MonthlyGenerationQuota: v.GetInt("MONTHLY_GENERATION_QUOTA"),
		UnlimitedOrganizations: splitList(v.GetString("UNLIMITED_ORGANIZATIONS")),
		RateLimit:              v.GetString("RATE_LIMIT"),
	}

	if cfg.JWTExpiry <= 0 {
		cfg.JWTExpiry = 24 * time.Hour
	}
	if cfg.SolverURL == "" {
		cfg.UseSolver = false
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
