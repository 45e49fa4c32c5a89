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

const (
	NotifyDriverConsole  = "console"
	NotifyDriverSendGrid = "sendgrid"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Attendance    AttendanceConfig
	Scheduler     SchedulerConfig
	Summary       SummaryConfig
	Notifications NotificationConfig
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
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AttendanceConfig tunes session issuance and check-in validation.
type AttendanceConfig struct {
	CodePrefix      string
	CodeAttempts    int
	MaxDuration     time.Duration
	LateAfter       time.Duration
	LocationTimeout time.Duration
	ClockSkew       time.Duration
	RateLimitPerMin int
}

// SchedulerConfig governs recurring session generation.
type SchedulerConfig struct {
	DefaultRadiusMeters float64
	Timezone            string
}

// SummaryConfig controls the Redis cache in front of session summaries.
type SummaryConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// NotificationConfig selects and configures the outbound email driver.
type NotificationConfig struct {
	Driver         string
	SendGridAPIKey string
	FromEmail      string
	AppName        string
	Workers        int
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
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
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Attendance = AttendanceConfig{
		CodePrefix:      v.GetString("ATTENDANCE_CODE_PREFIX"),
		CodeAttempts:    v.GetInt("ATTENDANCE_CODE_ATTEMPTS"),
		MaxDuration:     parseDuration(v.GetString("ATTENDANCE_MAX_DURATION"), 4*time.Hour),
		LateAfter:       parseDuration(v.GetString("ATTENDANCE_LATE_AFTER"), 0),
		LocationTimeout: parseDuration(v.GetString("ATTENDANCE_LOCATION_TIMEOUT"), 5*time.Second),
		ClockSkew:       parseDuration(v.GetString("ATTENDANCE_CLOCK_SKEW"), 2*time.Minute),
		RateLimitPerMin: v.GetInt("CHECKIN_RATE_LIMIT"),
	}

	cfg.Scheduler = SchedulerConfig{
		DefaultRadiusMeters: v.GetFloat64("SCHEDULER_DEFAULT_RADIUS_M"),
		Timezone:            v.GetString("SCHEDULER_TIMEZONE"),
	}

	cfg.Summary = SummaryConfig{
		CacheEnabled: v.GetBool("ENABLE_SUMMARY_CACHE"),
		CacheTTL:     parseDuration(v.GetString("SUMMARY_CACHE_TTL"), 2*time.Minute),
	}

	cfg.Notifications = NotificationConfig{
		Driver:         strings.ToLower(v.GetString("NOTIFY_DRIVER")),
		SendGridAPIKey: v.GetString("SENDGRID_API_KEY"),
		FromEmail:      v.GetString("NOTIFY_FROM_EMAIL"),
		AppName:        v.GetString("NOTIFY_APP_NAME"),
		Workers:        v.GetInt("NOTIFY_WORKERS"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "lms_attendance")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ATTENDANCE_CODE_PREFIX", "ATT")
	v.SetDefault("ATTENDANCE_CODE_ATTEMPTS", 5)
	v.SetDefault("ATTENDANCE_MAX_DURATION", "240m")
	v.SetDefault("ATTENDANCE_LATE_AFTER", "0s")
	v.SetDefault("ATTENDANCE_LOCATION_TIMEOUT", "5s")
	v.SetDefault("ATTENDANCE_CLOCK_SKEW", "2m")
	v.SetDefault("CHECKIN_RATE_LIMIT", 10)

	v.SetDefault("SCHEDULER_DEFAULT_RADIUS_M", 100)
	v.SetDefault("SCHEDULER_TIMEZONE", "UTC")

	v.SetDefault("ENABLE_SUMMARY_CACHE", false)
	v.SetDefault("SUMMARY_CACHE_TTL", "2m")

	v.SetDefault("NOTIFY_DRIVER", NotifyDriverConsole)
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("NOTIFY_FROM_EMAIL", "no-reply@lms.local")
	v.SetDefault("NOTIFY_APP_NAME", "LMS Attendance")
	v.SetDefault("NOTIFY_WORKERS", 2)
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
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
