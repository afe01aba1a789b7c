package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the screening API.
type Config struct {
	AppName         string
	AppEnv          string
	AppPort         string
	DatabaseURL     string
	RedisURL        string
	NATSURL         string
	NATSSubject     string
	JWTSecret       string
	AdminRoles      []string
	CORSOrigins     []string
	ScoresCacheTTL  time.Duration
	OpenAIBaseURL   string
	DeepSeekBaseURL string
	Tracing         TracingConfig
	Scoring         ScoringConfig
}

// TracingConfig toggles span export.
type TracingConfig struct {
	Enabled     bool
	SampleRatio float64
}

// ScoringConfig tunes the retry policy and the batch loop.
type ScoringConfig struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	MaxRetryAfter  time.Duration
	ItemDelay      time.Duration
	ItemRetryLimit int
	LogCapacity    int
	HTTPTimeout    time.Duration
	StartRateLimit int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SCREENING")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Screening API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("nats.subject", "screening.scores")
	v.SetDefault("admin.roles", "admin")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("scores.cache_ttl", "10m")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("deepseek.base_url", "https://api.deepseek.com/v1")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.sample_ratio", 0.1)
	v.SetDefault("scoring.max_attempts", 5)
	v.SetDefault("scoring.base_delay", "5s")
	v.SetDefault("scoring.max_delay", "30s")
	v.SetDefault("scoring.max_retry_after", "2m")
	v.SetDefault("scoring.item_delay", "2s")
	v.SetDefault("scoring.item_retry_limit", 2)
	v.SetDefault("scoring.log_capacity", 500)
	v.SetDefault("scoring.http_timeout", "60s")
	v.SetDefault("scoring.start_rate_limit", 5)

	durations := map[string]time.Duration{}
	for _, key := range []string{
		"scores.cache_ttl",
		"scoring.base_delay",
		"scoring.max_delay",
		"scoring.max_retry_after",
		"scoring.item_delay",
		"scoring.http_timeout",
	} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		if parsed < 0 {
			return Config{}, fmt.Errorf("invalid %s: must not be negative", key)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:         v.GetString("app.name"),
		AppEnv:          v.GetString("app.env"),
		AppPort:         v.GetString("app.port"),
		DatabaseURL:     v.GetString("database.url"),
		RedisURL:        v.GetString("redis.url"),
		NATSURL:         v.GetString("nats.url"),
		NATSSubject:     v.GetString("nats.subject"),
		JWTSecret:       v.GetString("jwt.secret"),
		AdminRoles:      splitList(v.GetString("admin.roles")),
		CORSOrigins:     splitList(v.GetString("cors.allow_origins")),
		ScoresCacheTTL:  durations["scores.cache_ttl"],
		OpenAIBaseURL:   v.GetString("openai.base_url"),
		DeepSeekBaseURL: v.GetString("deepseek.base_url"),
		Tracing: TracingConfig{
			Enabled:     v.GetBool("tracing.enabled"),
			SampleRatio: v.GetFloat64("tracing.sample_ratio"),
		},
		Scoring: ScoringConfig{
			MaxAttempts:    v.GetInt("scoring.max_attempts"),
			BaseDelay:      durations["scoring.base_delay"],
			MaxDelay:       durations["scoring.max_delay"],
			MaxRetryAfter:  durations["scoring.max_retry_after"],
			ItemDelay:      durations["scoring.item_delay"],
			ItemRetryLimit: v.GetInt("scoring.item_retry_limit"),
			LogCapacity:    v.GetInt("scoring.log_capacity"),
			HTTPTimeout:    durations["scoring.http_timeout"],
			StartRateLimit: v.GetInt("scoring.start_rate_limit"),
		},
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}
	if cfg.Scoring.MaxAttempts <= 0 {
		return Config{}, fmt.Errorf("scoring.max_attempts must be positive")
	}
	if len(cfg.AdminRoles) == 0 {
		cfg.AdminRoles = []string{"admin"}
	}

	return cfg, nil
}

func splitList(input string) []string {
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
