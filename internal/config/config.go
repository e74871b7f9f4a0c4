// README: Config loader (viper) with env defaults for HTTP, DB, Redis, messaging, auth and engine settings.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type MatchingConfig struct {
	// Pairs farther apart than this score 0 on distance.
	MaxDistanceKm float64
	// Idle time at which the time score reaches 0.
	IdleHorizon time.Duration
	// Reviews needed before a rating average is fully trusted.
	ReviewConfidence int
	MarketplaceFee   int64
	Currency         string
}

type WorkflowConfig struct {
	CodRequestTTL time.Duration
	Currency      string
}

type Config struct {
	Environment string
	HTTP        struct {
		Addr string
	}
	DB struct {
		DSN string
	}
	Redis struct {
		Addr string
	}
	Rabbit struct {
		URL      string
		Exchange string
	}
	Auth struct {
		Mode                    string
		JWTSecret               string
		FirebaseProjectID       string
		FirebaseCredentialsFile string
	}
	Maps struct {
		APIKey   string
		CacheTTL time.Duration
	}
	Tracing struct {
		Endpoint string
	}
	Matching MatchingConfig
	Workflow WorkflowConfig
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("EVENTS_EXCHANGE", "reposition.events")
	v.SetDefault("AUTH_MODE", "jwt")
	v.SetDefault("DISTANCE_CACHE_TTL_HOURS", 168)
	v.SetDefault("MATCH_MAX_DISTANCE_KM", 150.0)
	v.SetDefault("MATCH_IDLE_HORIZON_HOURS", 336)
	v.SetDefault("MATCH_REVIEW_CONFIDENCE", 10)
	v.SetDefault("MATCH_MARKETPLACE_FEE", 0)
	v.SetDefault("COD_REQUEST_TTL_HOURS", 72)
	v.SetDefault("CURRENCY", "USD")

	_ = v.ReadInConfig()

	var cfg Config
	cfg.Environment = v.GetString("APP_ENV")
	cfg.HTTP.Addr = v.GetString("HTTP_ADDR")
	cfg.DB.DSN = v.GetString("DB_DSN")
	cfg.Redis.Addr = v.GetString("REDIS_ADDR")
	cfg.Rabbit.URL = v.GetString("RABBIT_URL")
	cfg.Rabbit.Exchange = v.GetString("EVENTS_EXCHANGE")
	cfg.Auth.Mode = strings.ToLower(strings.TrimSpace(v.GetString("AUTH_MODE")))
	cfg.Auth.JWTSecret = v.GetString("JWT_ACCESS_SECRET")
	cfg.Auth.FirebaseProjectID = v.GetString("FIREBASE_PROJECT_ID")
	cfg.Auth.FirebaseCredentialsFile = v.GetString("FIREBASE_CREDENTIALS_FILE")
	cfg.Maps.APIKey = v.GetString("MAPS_API_KEY")
	cfg.Maps.CacheTTL = time.Duration(v.GetInt("DISTANCE_CACHE_TTL_HOURS")) * time.Hour
	cfg.Tracing.Endpoint = v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT")

	currency := v.GetString("CURRENCY")
	cfg.Matching = MatchingConfig{
		MaxDistanceKm:    v.GetFloat64("MATCH_MAX_DISTANCE_KM"),
		IdleHorizon:      time.Duration(v.GetInt("MATCH_IDLE_HORIZON_HOURS")) * time.Hour,
		ReviewConfidence: v.GetInt("MATCH_REVIEW_CONFIDENCE"),
		MarketplaceFee:   v.GetInt64("MATCH_MARKETPLACE_FEE"),
		Currency:         currency,
	}
	cfg.Workflow = WorkflowConfig{
		CodRequestTTL: time.Duration(v.GetInt("COD_REQUEST_TTL_HOURS")) * time.Hour,
		Currency:      currency,
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	switch cfg.Auth.Mode {
	case "jwt":
		if cfg.Auth.JWTSecret == "" {
			return fmt.Errorf("JWT_ACCESS_SECRET is required when AUTH_MODE=jwt")
		}
	case "firebase":
		if cfg.Auth.FirebaseProjectID == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID is required when AUTH_MODE=firebase")
		}
	default:
		return fmt.Errorf("unsupported AUTH_MODE %q", cfg.Auth.Mode)
	}
	if cfg.Matching.MaxDistanceKm <= 0 {
		return fmt.Errorf("MATCH_MAX_DISTANCE_KM must be positive")
	}
	if cfg.Matching.IdleHorizon <= 0 {
		return fmt.Errorf("MATCH_IDLE_HORIZON_HOURS must be positive")
	}
	if cfg.Workflow.CodRequestTTL <= 0 {
		return fmt.Errorf("COD_REQUEST_TTL_HOURS must be positive")
	}
	return nil
}
