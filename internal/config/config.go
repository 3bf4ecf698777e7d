package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Forecast  ForecastConfig
	Purchase  PurchaseConfig
	Batch     BatchConfig
	Scheduler SchedulerConfig
	Storage   StorageConfig
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

type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MaxConcurrency int64
	// URLOverride, when set, replaces the host/port/user fields for the pgx driver
	URLOverride    string
}

// DSN renders the lib/pq keyword connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// URL renders the postgres:// form accepted by the pgx stdlib driver
func (d DatabaseConfig) URL() string {
	if d.URLOverride != "" {
		return d.URLOverride
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

type CacheConfig struct {
	// Backend is one of redis, memory or none
	Backend            string
	RedisURL           string
	RedisHost          string
	RedisPort          string
	RedisPassword      string
	RedisDB            int
	CoverageTTLSeconds int
	BreakerFailures    uint32
	BreakerTimeout     time.Duration
}

type ForecastConfig struct {
	HalfLifeDays              float64
	EnableSeasonality         bool
	EnableMonthlySeasonality  bool
	EnablePromotionAdjustment bool
	EnableAdaptiveWeighting   bool
	OutlierCapMultiplier      float64
	OutlierWindowDays         int
	HistoricalDays            int
	MinValidDays              int
	TargetCoverageDays        float64
	DefaultLeadTimeDays       int
	ConfidenceLevel           float64
	MaxSeasonalDeviation      float64
	Holidays                  []string
}

type PurchaseConfig struct {
	Method              string
	CoverageDays        int
	LeadTimeDays        int
	LeadTimeStrategy    string
	IncludeStockReserve bool
	StockReserveDays    int
	RespectPackSize     bool
	ShowOnlyNeeded      bool
}

type BatchConfig struct {
	EnableParallel bool
	MaxConcurrency int
	TimeoutSeconds int
}

type SchedulerConfig struct {
	Enabled bool
	// RefreshSpec is a robfig/cron expression, seconds field included
	RefreshSpec string
}

type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Prefix    string
}

type DriveConfig struct {
	CredentialsFile string
	FolderID        string
	DownloadDir     string
}

type LogConfig struct {
	Level  string
	Format string
}

var (
	once     sync.Once
	instance *Config
)

// Load reads the configuration once per process
func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()
		instance = New()
	})

	return instance
}

// New builds a Config from the current environment without caching it
func New() *Config {
	v := viper.New()
	setDefaults(v)

	// Read from environment variables
	v.AutomaticEnv()

	ensureDir(v.GetString("DRIVE_DOWNLOAD_DIR"))

	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: splitList(v.GetStringSlice("SERVER_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:           v.GetString("DB_HOST"),
			Port:           v.GetString("DB_PORT"),
			User:           v.GetString("DB_USER"),
			Password:       v.GetString("DB_PASSWORD"),
			DBName:         v.GetString("DB_NAME"),
			SSLMode:        v.GetString("DB_SSLMODE"),
			MaxConcurrency: v.GetInt64("DB_MAX_CONCURRENCY"),
			URLOverride:    v.GetString("DATABASE_URL"),
		},
		Cache: CacheConfig{
			Backend:            strings.ToLower(v.GetString("CACHE_BACKEND")),
			RedisURL:           v.GetString("REDIS_URL"),
			RedisHost:          v.GetString("REDIS_HOST"),
			RedisPort:          v.GetString("REDIS_PORT"),
			RedisPassword:      v.GetString("REDIS_PASSWORD"),
			RedisDB:            v.GetInt("REDIS_DB"),
			CoverageTTLSeconds: v.GetInt("CACHE_COVERAGE_TTL_SECONDS"),
			BreakerFailures:    v.GetUint32("CACHE_BREAKER_FAILURES"),
			BreakerTimeout:     v.GetDuration("CACHE_BREAKER_TIMEOUT"),
		},
		Forecast: ForecastConfig{
			HalfLifeDays:              v.GetFloat64("FORECAST_HALF_LIFE_DAYS"),
			EnableSeasonality:         v.GetBool("FORECAST_ENABLE_SEASONALITY"),
			EnableMonthlySeasonality:  v.GetBool("FORECAST_ENABLE_MONTHLY_SEASONALITY"),
			EnablePromotionAdjustment: v.GetBool("FORECAST_ENABLE_PROMOTION_ADJUSTMENT"),
			EnableAdaptiveWeighting:   v.GetBool("FORECAST_ENABLE_ADAPTIVE_WEIGHTING"),
			OutlierCapMultiplier:      v.GetFloat64("FORECAST_OUTLIER_CAP_MULTIPLIER"),
			OutlierWindowDays:         v.GetInt("FORECAST_OUTLIER_WINDOW_DAYS"),
			HistoricalDays:            v.GetInt("FORECAST_HISTORICAL_DAYS"),
			MinValidDays:              v.GetInt("FORECAST_MIN_VALID_DAYS"),
			TargetCoverageDays:        v.GetFloat64("FORECAST_TARGET_COVERAGE_DAYS"),
			DefaultLeadTimeDays:       v.GetInt("FORECAST_DEFAULT_LEAD_TIME_DAYS"),
			ConfidenceLevel:           v.GetFloat64("FORECAST_CONFIDENCE_LEVEL"),
			MaxSeasonalDeviation:      v.GetFloat64("FORECAST_MAX_SEASONAL_DEVIATION"),
			Holidays:                  splitList(v.GetStringSlice("FORECAST_HOLIDAYS")),
		},
		Purchase: PurchaseConfig{
			Method:              strings.ToUpper(v.GetString("PURCHASE_METHOD")),
			CoverageDays:        v.GetInt("PURCHASE_COVERAGE_DAYS"),
			LeadTimeDays:        v.GetInt("PURCHASE_LEAD_TIME_DAYS"),
			LeadTimeStrategy:    strings.ToUpper(v.GetString("PURCHASE_LEAD_TIME_STRATEGY")),
			IncludeStockReserve: v.GetBool("PURCHASE_INCLUDE_STOCK_RESERVE"),
			StockReserveDays:    v.GetInt("PURCHASE_STOCK_RESERVE_DAYS"),
			RespectPackSize:     v.GetBool("PURCHASE_RESPECT_PACK_SIZE"),
			ShowOnlyNeeded:      v.GetBool("PURCHASE_SHOW_ONLY_NEEDED"),
		},
		Batch: BatchConfig{
			EnableParallel: v.GetBool("BATCH_ENABLE_PARALLEL"),
			MaxConcurrency: v.GetInt("BATCH_MAX_CONCURRENCY"),
			TimeoutSeconds: v.GetInt("BATCH_TIMEOUT_SECONDS"),
		},
		Scheduler: SchedulerConfig{
			Enabled:     v.GetBool("SCHEDULER_ENABLED"),
			RefreshSpec: v.GetString("SCHEDULER_REFRESH_SPEC"),
		},
		Storage: StorageConfig{
			Enabled:   v.GetBool("S3_ENABLED"),
			Endpoint:  v.GetString("S3_ENDPOINT"),
			AccessKey: v.GetString("S3_ACCESS_KEY"),
			SecretKey: v.GetString("S3_SECRET_KEY"),
			Bucket:    v.GetString("S3_BUCKET"),
			UseSSL:    v.GetBool("S3_USE_SSL"),
			Prefix:    v.GetString("S3_PREFIX"),
		},
		Drive: DriveConfig{
			CredentialsFile: v.GetString("GOOGLE_APPLICATION_CREDENTIALS"),
			FolderID:        v.GetString("DRIVE_FOLDER_ID"),
			DownloadDir:     v.GetString("DRIVE_DOWNLOAD_DIR"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 120)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "autopo")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_CONCURRENCY", 10)

	v.SetDefault("CACHE_BACKEND", "memory")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_COVERAGE_TTL_SECONDS", 3600)
	v.SetDefault("CACHE_BREAKER_FAILURES", 5)
	v.SetDefault("CACHE_BREAKER_TIMEOUT", "30s")

	def := domain.DefaultStockCoverageConfig()
	v.SetDefault("FORECAST_HALF_LIFE_DAYS", def.HalfLifeDays)
	v.SetDefault("FORECAST_ENABLE_SEASONALITY", def.EnableSeasonality)
	v.SetDefault("FORECAST_ENABLE_MONTHLY_SEASONALITY", def.EnableMonthlySeasonality)
	v.SetDefault("FORECAST_ENABLE_PROMOTION_ADJUSTMENT", def.EnablePromotionAdjustment)
	v.SetDefault("FORECAST_ENABLE_ADAPTIVE_WEIGHTING", def.EnableAdaptiveWeighting)
	v.SetDefault("FORECAST_OUTLIER_CAP_MULTIPLIER", def.OutlierCapMultiplier)
	v.SetDefault("FORECAST_OUTLIER_WINDOW_DAYS", def.OutlierWindowDays)
	v.SetDefault("FORECAST_HISTORICAL_DAYS", def.HistoricalDays)
	v.SetDefault("FORECAST_MIN_VALID_DAYS", def.MinValidDays)
	v.SetDefault("FORECAST_TARGET_COVERAGE_DAYS", def.TargetCoverageDays)
	v.SetDefault("FORECAST_DEFAULT_LEAD_TIME_DAYS", def.DefaultLeadTimeDays)
	v.SetDefault("FORECAST_CONFIDENCE_LEVEL", def.ConfidenceLevel)
	v.SetDefault("FORECAST_MAX_SEASONAL_DEVIATION", def.MaxSeasonalDeviation)
	v.SetDefault("FORECAST_HOLIDAYS", []string{})

	pdef := domain.DefaultPurchaseRequirementConfig()
	v.SetDefault("PURCHASE_METHOD", string(pdef.Method))
	v.SetDefault("PURCHASE_COVERAGE_DAYS", pdef.CoverageDays)
	v.SetDefault("PURCHASE_LEAD_TIME_DAYS", pdef.LeadTimeDays)
	v.SetDefault("PURCHASE_LEAD_TIME_STRATEGY", string(pdef.LeadTimeStrategy))
	v.SetDefault("PURCHASE_INCLUDE_STOCK_RESERVE", false)
	v.SetDefault("PURCHASE_STOCK_RESERVE_DAYS", 0)
	v.SetDefault("PURCHASE_RESPECT_PACK_SIZE", pdef.RespectPackSize)
	v.SetDefault("PURCHASE_SHOW_ONLY_NEEDED", false)

	v.SetDefault("BATCH_ENABLE_PARALLEL", pdef.EnableParallel)
	v.SetDefault("BATCH_MAX_CONCURRENCY", pdef.MaxConcurrency)
	v.SetDefault("BATCH_TIMEOUT_SECONDS", 300)

	v.SetDefault("SCHEDULER_ENABLED", false)
	v.SetDefault("SCHEDULER_REFRESH_SPEC", "0 0 */6 * * *")

	v.SetDefault("S3_ENABLED", false)
	v.SetDefault("S3_USE_SSL", true)
	v.SetDefault("S3_PREFIX", "replenishment")

	v.SetDefault("DRIVE_DOWNLOAD_DIR", "./data/imports")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
}

// CoverageConfig translates the forecast section into the engine config
func (c *Config) CoverageConfig() (domain.StockCoverageConfig, error) {
	f := c.Forecast
	cfg := domain.StockCoverageConfig{
		HalfLifeDays:              f.HalfLifeDays,
		EnableSeasonality:         f.EnableSeasonality,
		EnablePromotionAdjustment: f.EnablePromotionAdjustment,
		EnableAdaptiveWeighting:   f.EnableAdaptiveWeighting,
		EnableMonthlySeasonality:  f.EnableMonthlySeasonality,
		OutlierCapMultiplier:      f.OutlierCapMultiplier,
		OutlierWindowDays:         f.OutlierWindowDays,
		HistoricalDays:            f.HistoricalDays,
		MinValidDays:              f.MinValidDays,
		TargetCoverageDays:        f.TargetCoverageDays,
		DefaultLeadTimeDays:       f.DefaultLeadTimeDays,
		ConfidenceLevel:           f.ConfidenceLevel,
		MaxSeasonalDeviation:      f.MaxSeasonalDeviation,
		CacheTTL:                  time.Duration(c.Cache.CoverageTTLSeconds) * time.Second,
	}

	for _, raw := range f.Holidays {
		day, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return cfg, domain.NewInvalidConfigurationError("invalid holiday %q", raw).Wrap(err)
		}
		cfg.Holidays = append(cfg.Holidays, day)
	}
	return cfg, nil
}

// RequirementConfig translates the purchase and batch sections into the engine config
func (c *Config) RequirementConfig() domain.PurchaseRequirementConfig {
	p := c.Purchase
	return domain.PurchaseRequirementConfig{
		CoverageDays:        p.CoverageDays,
		LeadTimeDays:        p.LeadTimeDays,
		Method:              domain.Method(p.Method),
		LeadTimeStrategy:    domain.LeadTimeStrategy(p.LeadTimeStrategy),
		IncludeStockReserve: p.IncludeStockReserve,
		StockReserveDays:    p.StockReserveDays,
		RespectPackSize:     p.RespectPackSize,
		ShowOnlyNeeded:      p.ShowOnlyNeeded,
		EnableParallel:      c.Batch.EnableParallel,
		MaxConcurrency:      c.Batch.MaxConcurrency,
		Timeout:             time.Duration(c.Batch.TimeoutSeconds) * time.Second,
	}
}

// splitList accepts both repeated values and a single comma separated env value
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func ensureDir(dir string) {
	if dir == "" {
		return
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
