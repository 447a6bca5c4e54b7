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

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Tiers      TiersConfig
	SyncQueue  SyncQueueConfig
	Automation AutomationConfig
	Cache      CacheConfig
	SignedURL  SignedURLConfig
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

// TiersConfig wires the physical storage backends.
type TiersConfig struct {
	CloudEndpoint     string
	CloudAccessKey    string
	CloudSecretKey    string
	CloudBucket       string
	CloudRegion       string
	CloudUseSSL       bool
	CDNBucket         string
	CDNBaseURL        string
	BackupDir         string
	CacheDir          string
	OperationTimeout  time.Duration
	PresignedURLTTL   time.Duration
}

// SyncQueueConfig governs background tier migration.
type SyncQueueConfig struct {
	DrainInterval  time.Duration
	DrainBatchSize int
	MaxAttempts    int
	RetryDelay     time.Duration
	CleanAfterDays int
}

// AutomationConfig controls the tier reclassification scanner.
type AutomationConfig struct {
	Enabled      bool
	ScanInterval time.Duration
	ActivePreset string
	ScanLimit    int
}

// CacheConfig tunes the on-disk content cache.
type CacheConfig struct {
	MaxEntries    int
	DefaultTTL    time.Duration
	SweepInterval time.Duration
}

// SignedURLConfig secures download tokens for local tiers.
type SignedURLConfig struct {
	Secret string
	TTL    time.Duration
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

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Tiers = TiersConfig{
		CloudEndpoint:    v.GetString("CLOUD_ENDPOINT"),
		CloudAccessKey:   v.GetString("CLOUD_ACCESS_KEY"),
		CloudSecretKey:   v.GetString("CLOUD_SECRET_KEY"),
		CloudBucket:      v.GetString("CLOUD_BUCKET"),
		CloudRegion:      v.GetString("CLOUD_REGION"),
		CloudUseSSL:      v.GetBool("CLOUD_USE_SSL"),
		CDNBucket:        v.GetString("CDN_BUCKET"),
		CDNBaseURL:       v.GetString("CDN_BASE_URL"),
		BackupDir:        v.GetString("BACKUP_DIR"),
		CacheDir:         v.GetString("CACHE_DIR"),
		OperationTimeout: parseDuration(v.GetString("TIER_OPERATION_TIMEOUT"), 60*time.Second),
		PresignedURLTTL:  parseDuration(v.GetString("PRESIGNED_URL_TTL"), time.Hour),
	}

	cfg.SyncQueue = SyncQueueConfig{
		DrainInterval:  parseDuration(v.GetString("SYNC_DRAIN_INTERVAL"), time.Minute),
		DrainBatchSize: v.GetInt("SYNC_DRAIN_BATCH_SIZE"),
		MaxAttempts:    v.GetInt("SYNC_MAX_ATTEMPTS"),
		RetryDelay:     parseDuration(v.GetString("SYNC_RETRY_DELAY"), 5*time.Minute),
		CleanAfterDays: v.GetInt("SYNC_CLEAN_AFTER_DAYS"),
	}

	cfg.Automation = AutomationConfig{
		Enabled:      v.GetBool("ENABLE_AUTOMATION"),
		ScanInterval: parseDuration(v.GetString("AUTOMATION_SCAN_INTERVAL"), time.Hour),
		ActivePreset: v.GetString("AUTOMATION_ACTIVE_PRESET"),
		ScanLimit:    v.GetInt("AUTOMATION_SCAN_LIMIT"),
	}

	cfg.Cache = CacheConfig{
		MaxEntries:    v.GetInt("CACHE_MAX_ENTRIES"),
		DefaultTTL:    parseDuration(v.GetString("CACHE_DEFAULT_TTL"), 72*time.Hour),
		SweepInterval: parseDuration(v.GetString("CACHE_SWEEP_INTERVAL"), 15*time.Minute),
	}

	cfg.SignedURL = SignedURLConfig{
		Secret: v.GetString("SIGNED_URL_SECRET"),
		TTL:    parseDuration(v.GetString("SIGNED_URL_TTL"), time.Hour),
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
	v.SetDefault("DB_NAME", "dms_storage")
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

	v.SetDefault("CLOUD_ENDPOINT", "localhost:9000")
	v.SetDefault("CLOUD_ACCESS_KEY", "minioadmin")
	v.SetDefault("CLOUD_SECRET_KEY", "minioadmin")
	v.SetDefault("CLOUD_BUCKET", "dms-primary")
	v.SetDefault("CLOUD_REGION", "us-east-1")
	v.SetDefault("CLOUD_USE_SSL", false)
	v.SetDefault("CDN_BUCKET", "dms-public")
	v.SetDefault("CDN_BASE_URL", "")
	v.SetDefault("BACKUP_DIR", "./data/backup")
	v.SetDefault("CACHE_DIR", "./data/cache")
	v.SetDefault("TIER_OPERATION_TIMEOUT", "60s")
	v.SetDefault("PRESIGNED_URL_TTL", "1h")

	v.SetDefault("SYNC_DRAIN_INTERVAL", "1m")
	v.SetDefault("SYNC_DRAIN_BATCH_SIZE", 20)
	v.SetDefault("SYNC_MAX_ATTEMPTS", 3)
	v.SetDefault("SYNC_RETRY_DELAY", "5m")
	v.SetDefault("SYNC_CLEAN_AFTER_DAYS", 30)

	v.SetDefault("ENABLE_AUTOMATION", false)
	v.SetDefault("AUTOMATION_SCAN_INTERVAL", "1h")
	v.SetDefault("AUTOMATION_ACTIVE_PRESET", "balanced")
	v.SetDefault("AUTOMATION_SCAN_LIMIT", 500)

	v.SetDefault("CACHE_MAX_ENTRIES", 1000)
	v.SetDefault("CACHE_DEFAULT_TTL", "72h")
	v.SetDefault("CACHE_SWEEP_INTERVAL", "15m")

	v.SetDefault("SIGNED_URL_SECRET", "dev_signed_url_secret")
	v.SetDefault("SIGNED_URL_TTL", "1h")
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
