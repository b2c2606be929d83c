// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Forecast  ForecastConfig
	Restock   RestockConfig
	Retry     RetryConfig
	Schedule  ScheduleConfig
	Artifacts ArtifactConfig
	Drive     DriveConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns DATABASE_URL when set, otherwise a key/value connection string.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type CacheConfig struct {
	Enabled                   bool
	RedisURL                  string
	RedisHost                 string
	RedisPort                 string
	RedisPassword             string
	RedisDB                   int
	RecommendationsTTLSeconds int
	RunLockTTLSeconds         int
}

type ForecastConfig struct {
	HorizonDays      int
	MinPoints        int
	ChangepointScale float64
	SeasonalityMode  string
	IntervalWidth    float64
	Timezone         string
	Workers          int
	ReuseModels      bool
	Aggregate        bool
}

// Location resolves Timezone, falling back to UTC.
func (c ForecastConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil || c.Timezone == "" {
		return time.UTC
	}
	return loc
}

type RestockConfig struct {
	Threshold    float64
	PeakFactor   float64
	SafetyFactor float64
}

type RetryConfig struct {
	Attempts int
	Backoff  time.Duration
}

type ScheduleConfig struct {
	Cron               string
	ChangePollInterval time.Duration
}

type ArtifactConfig struct {
	Backend   string
	Dir       string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

type DriveConfig struct {
	CredentialsJSON string
	FolderID        string
	DownloadDir     string
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		setDefaults(viper.GetViper())

		// Read from environment variables
		viper.AutomaticEnv()

		instance = fromViper(viper.GetViper())

		if instance.Artifacts.Backend == "local" {
			ensureDir(instance.Artifacts.Dir)
		}
	})

	return instance
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 15)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 60)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "restock")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_RECOMMENDATIONS_TTL_SECONDS", 300)
	v.SetDefault("RUN_LOCK_TTL_SECONDS", 1800)
	v.SetDefault("FORECAST_HORIZON_DAYS", 30)
	v.SetDefault("FORECAST_MIN_POINTS", 14)
	v.SetDefault("FORECAST_CHANGEPOINT_SCALE", 0.05)
	v.SetDefault("FORECAST_SEASONALITY_MODE", "multiplicative")
	v.SetDefault("FORECAST_INTERVAL_WIDTH", 0.8)
	v.SetDefault("FORECAST_TIMEZONE", "UTC")
	v.SetDefault("FORECAST_WORKERS", runtime.NumCPU())
	v.SetDefault("FORECAST_REUSE_MODELS", true)
	v.SetDefault("FORECAST_AGGREGATE", true)
	v.SetDefault("RESTOCK_THRESHOLD", 50)
	v.SetDefault("RESTOCK_PEAK_FACTOR", 0.15)
	v.SetDefault("RESTOCK_SAFETY_FACTOR", 0.20)
	v.SetDefault("RETRY_ATTEMPTS", 3)
	v.SetDefault("RETRY_BACKOFF_MS", 500)
	v.SetDefault("SCHEDULE_CRON", "0 0,12 * * *")
	v.SetDefault("CHANGE_POLL_INTERVAL_SECONDS", 300)
	v.SetDefault("ARTIFACT_BACKEND", "local")
	v.SetDefault("ARTIFACT_DIR", "./data/models")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_ACCESS_KEY", "")
	v.SetDefault("S3_SECRET_KEY", "")
	v.SetDefault("S3_BUCKET", "restock-models")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_USE_SSL", true)
	v.SetDefault("GOOGLE_DRIVE_CREDENTIALS_JSON", "")
	v.SetDefault("SALES_DRIVE_FOLDER_ID", "")
	v.SetDefault("SALES_DOWNLOAD_DIR", "./data/uploads/sales")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Database: DatabaseConfig{
			URL:      v.GetString("DATABASE_URL"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Cache: CacheConfig{
			Enabled:                   v.GetBool("CACHE_ENABLED"),
			RedisURL:                  v.GetString("REDIS_URL"),
			RedisHost:                 v.GetString("REDIS_HOST"),
			RedisPort:                 v.GetString("REDIS_PORT"),
			RedisPassword:             v.GetString("REDIS_PASSWORD"),
			RedisDB:                   v.GetInt("REDIS_DB"),
			RecommendationsTTLSeconds: v.GetInt("CACHE_RECOMMENDATIONS_TTL_SECONDS"),
			RunLockTTLSeconds:         v.GetInt("RUN_LOCK_TTL_SECONDS"),
		},
		Forecast: ForecastConfig{
			HorizonDays:      v.GetInt("FORECAST_HORIZON_DAYS"),
			MinPoints:        v.GetInt("FORECAST_MIN_POINTS"),
			ChangepointScale: v.GetFloat64("FORECAST_CHANGEPOINT_SCALE"),
			SeasonalityMode:  v.GetString("FORECAST_SEASONALITY_MODE"),
			IntervalWidth:    v.GetFloat64("FORECAST_INTERVAL_WIDTH"),
			Timezone:         v.GetString("FORECAST_TIMEZONE"),
			Workers:          v.GetInt("FORECAST_WORKERS"),
			ReuseModels:      v.GetBool("FORECAST_REUSE_MODELS"),
			Aggregate:        v.GetBool("FORECAST_AGGREGATE"),
		},
		Restock: RestockConfig{
			Threshold:    v.GetFloat64("RESTOCK_THRESHOLD"),
			PeakFactor:   v.GetFloat64("RESTOCK_PEAK_FACTOR"),
			SafetyFactor: v.GetFloat64("RESTOCK_SAFETY_FACTOR"),
		},
		Retry: RetryConfig{
			Attempts: v.GetInt("RETRY_ATTEMPTS"),
			Backoff:  time.Duration(v.GetInt("RETRY_BACKOFF_MS")) * time.Millisecond,
		},
		Schedule: ScheduleConfig{
			Cron:               v.GetString("SCHEDULE_CRON"),
			ChangePollInterval: time.Duration(v.GetInt("CHANGE_POLL_INTERVAL_SECONDS")) * time.Second,
		},
		Artifacts: ArtifactConfig{
			Backend:   v.GetString("ARTIFACT_BACKEND"),
			Dir:       v.GetString("ARTIFACT_DIR"),
			Endpoint:  v.GetString("S3_ENDPOINT"),
			AccessKey: v.GetString("S3_ACCESS_KEY"),
			SecretKey: v.GetString("S3_SECRET_KEY"),
			Bucket:    v.GetString("S3_BUCKET"),
			Region:    v.GetString("S3_REGION"),
			UseSSL:    v.GetBool("S3_USE_SSL"),
		},
		Drive: DriveConfig{
			CredentialsJSON: v.GetString("GOOGLE_DRIVE_CREDENTIALS_JSON"),
			FolderID:        v.GetString("SALES_DRIVE_FOLDER_ID"),
			DownloadDir:     v.GetString("SALES_DOWNLOAD_DIR"),
		},
	}
}

func ensureDir(dir string) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
