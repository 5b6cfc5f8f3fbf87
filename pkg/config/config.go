package config

import (
	"errors"
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

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Google    GoogleConfig
	Sync      SyncConfig
	WriteBack WriteBackConfig
	Scheduler SchedulerConfig
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

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// GoogleConfig carries the OAuth client used to build per-user calendar handles.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	CalendarID   string
	TokenDir     string
}

// SyncConfig tunes the fetch/reconcile/compress pipeline.
type SyncConfig struct {
	WindowMonths       int
	PageSize           int
	MaxPages           int
	BatchSize          int
	RunTimeout         time.Duration
	StalenessThreshold time.Duration
	SummaryCacheTTL    time.Duration
	ModelVersion       string
}

// WriteBackConfig governs provider-side event creation retries.
type WriteBackConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	ResultTTL    time.Duration
}

// SchedulerConfig toggles the periodic stale-calendar resync.
type SchedulerConfig struct {
	Enabled   bool
	CronSpec  string
	Workers   int
	BatchSize int
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
		if !errors.As(err, &notFound) {
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

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Google = GoogleConfig{
		ClientID:     v.GetString("GOOGLE_CLIENT_ID"),
		ClientSecret: v.GetString("GOOGLE_CLIENT_SECRET"),
		CalendarID:   v.GetString("GOOGLE_CALENDAR_ID"),
		TokenDir:     v.GetString("GOOGLE_TOKEN_DIR"),
	}

	cfg.Sync = SyncConfig{
		WindowMonths:       v.GetInt("SYNC_WINDOW_MONTHS"),
		PageSize:           v.GetInt("SYNC_PAGE_SIZE"),
		MaxPages:           v.GetInt("SYNC_MAX_PAGES"),
		BatchSize:          v.GetInt("SYNC_BATCH_SIZE"),
		RunTimeout:         parseDuration(v.GetString("SYNC_RUN_TIMEOUT"), 5*time.Minute),
		StalenessThreshold: parseDuration(v.GetString("SYNC_STALENESS_THRESHOLD"), 7*24*time.Hour),
		SummaryCacheTTL:    parseDuration(v.GetString("SYNC_SUMMARY_CACHE_TTL"), 10*time.Minute),
		ModelVersion:       v.GetString("SYNC_MODEL_VERSION"),
	}

	cfg.WriteBack = WriteBackConfig{
		MaxAttempts:  v.GetInt("WRITEBACK_MAX_ATTEMPTS"),
		InitialDelay: parseDuration(v.GetString("WRITEBACK_INITIAL_DELAY"), time.Second),
		ResultTTL:    parseDuration(v.GetString("WRITEBACK_RESULT_TTL"), 24*time.Hour),
	}

	cfg.Scheduler = SchedulerConfig{
		Enabled:   v.GetBool("ENABLE_SCHEDULER"),
		CronSpec:  v.GetString("SCHEDULER_CRON"),
		Workers:   v.GetInt("SCHEDULER_WORKERS"),
		BatchSize: v.GetInt("SCHEDULER_BATCH_SIZE"),
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
	v.SetDefault("DB_NAME", "calsync")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")
	v.SetDefault("GOOGLE_CALENDAR_ID", "primary")
	v.SetDefault("GOOGLE_TOKEN_DIR", "./credentials")

	v.SetDefault("SYNC_WINDOW_MONTHS", 12)
	v.SetDefault("SYNC_PAGE_SIZE", 250)
	v.SetDefault("SYNC_MAX_PAGES", 100)
	v.SetDefault("SYNC_BATCH_SIZE", 100)
	v.SetDefault("SYNC_RUN_TIMEOUT", "5m")
	v.SetDefault("SYNC_STALENESS_THRESHOLD", "168h")
	v.SetDefault("SYNC_SUMMARY_CACHE_TTL", "10m")
	v.SetDefault("SYNC_MODEL_VERSION", "v1")

	v.SetDefault("WRITEBACK_MAX_ATTEMPTS", 3)
	v.SetDefault("WRITEBACK_INITIAL_DELAY", "1s")
	v.SetDefault("WRITEBACK_RESULT_TTL", "24h")

	v.SetDefault("ENABLE_SCHEDULER", false)
	v.SetDefault("SCHEDULER_CRON", "0 */6 * * *")
	v.SetDefault("SCHEDULER_WORKERS", 4)
	v.SetDefault("SCHEDULER_BATCH_SIZE", 50)
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
