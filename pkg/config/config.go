package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Redis        RedisConfig
	Cache        CacheConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Moderation   ModerationConfig
	Ranking      RankingConfig
	Mail         MailConfig
	Registration RegistrationConfig
	Metrics      MetricsConfig
	RateLimit    RateLimitConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig governs caching of ranked professor listings and statistics.
type CacheConfig struct {
	Enabled      bool
	ProfessorTTL time.Duration
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ModerationConfig selects the approval strategy and configures the external classifier.
type ModerationConfig struct {
	Strategy  string
	Endpoint  string
	APIKey    string
	Model     string
	Timeout   time.Duration
	RateLimit float64
	RateBurst int
}

// RankingConfig holds the ordering applied when a listing does not name one.
type RankingConfig struct {
	DefaultStrategy string
}

// MailConfig configures SMTP delivery and the mail worker pool.
type MailConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	From          string
	SkipTLSVerify bool
	Workers       int
	Retries       int
}

// RegistrationConfig tunes the e-mail confirmation flow.
type RegistrationConfig struct {
	CodeTTL time.Duration
}

type MetricsConfig struct {
	Enabled bool
}

// RateLimitConfig throttles review writes per caller. Zero disables the limit.
type RateLimitConfig struct {
	ReviewWrites float64
	ReviewBurst  int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Cache = CacheConfig{
		Enabled:      v.GetBool("ENABLE_CACHE"),
		ProfessorTTL: parseDuration(v.GetString("PROFESSOR_CACHE_TTL"), 5*time.Minute),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Moderation = ModerationConfig{
		Strategy:  strings.ToLower(strings.TrimSpace(v.GetString("MODERATION_STRATEGY"))),
		Endpoint:  v.GetString("MODERATION_ENDPOINT"),
		APIKey:    v.GetString("MODERATION_API_KEY"),
		Model:     v.GetString("MODERATION_MODEL"),
		Timeout:   parseDuration(v.GetString("MODERATION_TIMEOUT"), 10*time.Second),
		RateLimit: v.GetFloat64("MODERATION_RATE_LIMIT"),
		RateBurst: v.GetInt("MODERATION_RATE_BURST"),
	}

	cfg.Ranking = RankingConfig{
		DefaultStrategy: strings.TrimSpace(v.GetString("DEFAULT_RANKING_STRATEGY")),
	}

	cfg.Mail = MailConfig{
		Host:          v.GetString("SMTP_HOST"),
		Port:          v.GetInt("SMTP_PORT"),
		User:          v.GetString("SMTP_USER"),
		Password:      v.GetString("SMTP_PASS"),
		From:          v.GetString("SMTP_FROM"),
		SkipTLSVerify: v.GetBool("SMTP_SKIP_TLS_VERIFY"),
		Workers:       v.GetInt("MAIL_WORKERS"),
		Retries:       v.GetInt("MAIL_RETRIES"),
	}

	cfg.Registration = RegistrationConfig{
		CodeTTL: parseDuration(v.GetString("CONFIRMATION_CODE_TTL"), 30*time.Minute),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	cfg.RateLimit = RateLimitConfig{
		ReviewWrites: v.GetFloat64("REVIEW_RATE_LIMIT"),
		ReviewBurst:  v.GetInt("REVIEW_RATE_BURST"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "profepulse")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("PROFESSOR_CACHE_TTL", "5m")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "profepulse")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("MODERATION_STRATEGY", "manual")
	v.SetDefault("MODERATION_ENDPOINT", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("MODERATION_API_KEY", "")
	v.SetDefault("MODERATION_MODEL", "gpt-4o-mini")
	v.SetDefault("MODERATION_TIMEOUT", "10s")
	v.SetDefault("MODERATION_RATE_LIMIT", 2)
	v.SetDefault("MODERATION_RATE_BURST", 4)

	v.SetDefault("DEFAULT_RANKING_STRATEGY", "best_rated")

	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASS", "")
	v.SetDefault("SMTP_FROM", "")
	v.SetDefault("SMTP_SKIP_TLS_VERIFY", false)
	v.SetDefault("MAIL_WORKERS", 1)
	v.SetDefault("MAIL_RETRIES", 3)

	v.SetDefault("CONFIRMATION_CODE_TTL", "30m")
	v.SetDefault("ENABLE_METRICS", true)

	v.SetDefault("REVIEW_RATE_LIMIT", 0.2)
	v.SetDefault("REVIEW_RATE_BURST", 5)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
