package config

import (
	"log"
	"os"
	"time"

	"PostOpTriage/pkg/cache"
	"PostOpTriage/pkg/logger"
	"PostOpTriage/pkg/notification"
	"PostOpTriage/pkg/util"
)

type Config struct {
	Addr     string `env:"ADDR"`
	Mode     string `env:"MODE"`
	DBDriver string `env:"DB_DRIVER"`
	DSN      string `env:"DSN"`
	Log      logger.LogConfig
	Mail     notification.MailConfig
	Cache    cache.Config

	ClinicianEndpoint    string        `env:"NOTIFY_CLINICIAN_API"`
	SaveResponseEndpoint string        `env:"SAVE_RESPONSE_API"`
	SMSGatewayURL        string        `env:"SMS_GATEWAY_URL"`
	SMSAPIKey            string        `env:"SMS_API_KEY"`
	ClinicianPhone       string        `env:"CLINICIAN_PHONE"`
	ClinicianEmail       string        `env:"CLINICIAN_EMAIL"`
	ClinicianTimeout     time.Duration `env:"CLINICIAN_TIMEOUT"`
	SMSTimeout           time.Duration `env:"SMS_TIMEOUT"`
	DefaultLanguage      string        `env:"DEFAULT_LANGUAGE"`

	RateLimit    string `env:"RATE_LIMIT"`
	APISecretKey string `env:"API_SECRET_KEY"`

	RetentionDays     int64  `env:"RETENTION_DAYS"`
	RetentionSchedule string `env:"RETENTION_SCHEDULE"`
	BackupEnabled     bool   `env:"BACKUP_ENABLED"`
	BackupPath        string `env:"BACKUP_PATH"`
	BackupSchedule    string `env:"BACKUP_SCHEDULE"`
}

var GlobalConfig *Config

// Load reads .env files for APP_ENV, then the process environment.
func Load() (*Config, error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	if err := util.LoadEnv(env); err != nil {
		log.Printf("Failed to load .env file: %v", err)
	}

	addr := util.GetEnv("ADDR")
	if addr == "" {
		addr = ":" + util.GetEnvDefault("PORT", "3000")
	}

	GlobalConfig = &Config{
		Addr:     addr,
		Mode:     util.GetEnvDefault("MODE", "production"),
		DBDriver: util.GetEnvDefault("DB_DRIVER", "sqlite"),
		DSN:      util.GetEnvDefault("DSN", "postop.db"),
		Log: logger.LogConfig{
			Level:      util.GetEnvDefault("LOG_LEVEL", "info"),
			Filename:   util.GetEnv("LOG_FILENAME"),
			MaxSize:    int(util.GetIntEnv("LOG_MAX_SIZE")),
			MaxAge:     int(util.GetIntEnv("LOG_MAX_AGE")),
			MaxBackups: int(util.GetIntEnv("LOG_MAX_BACKUPS")),
		},
		Mail: notification.MailConfig{
			Host:     util.GetEnv("SMTP_HOST"),
			Port:     util.GetIntEnv("SMTP_PORT"),
			Username: util.GetEnv("SMTP_USER"),
			Password: util.GetEnv("SMTP_PASS"),
			From:     util.GetEnv("EMAIL_FROM"),
			Timeout:  util.GetDurationEnv("MAIL_TIMEOUT"),
		},
		Cache: cache.Config{
			Type: util.GetEnvDefault("CACHE_TYPE", "local"),
			Redis: cache.RedisConfig{
				Addr:        util.GetEnvDefault("REDIS_ADDR", "localhost:6379"),
				Password:    util.GetEnv("REDIS_PASSWORD"),
				DB:          int(util.GetIntEnv("REDIS_DB")),
				PoolSize:    int(util.GetIntEnv("REDIS_POOL_SIZE")),
				DialTimeout: util.GetDurationEnv("REDIS_DIAL_TIMEOUT"),
			},
		},
		ClinicianEndpoint:    util.GetEnv("NOTIFY_CLINICIAN_API"),
		SaveResponseEndpoint: util.GetEnv("SAVE_RESPONSE_API"),
		SMSGatewayURL:        util.GetEnv("SMS_GATEWAY_URL"),
		SMSAPIKey:            util.GetEnv("SMS_API_KEY"),
		ClinicianPhone:       util.GetEnv("CLINICIAN_PHONE"),
		ClinicianEmail:       util.GetEnv("CLINICIAN_EMAIL"),
		ClinicianTimeout:     util.GetDurationEnv("CLINICIAN_TIMEOUT"),
		SMSTimeout:           util.GetDurationEnv("SMS_TIMEOUT"),
		DefaultLanguage:      util.GetEnvDefault("DEFAULT_LANGUAGE", "vi"),
		RateLimit:            util.GetEnvDefault("RATE_LIMIT", "60-M"),
		APISecretKey:         util.GetEnv("API_SECRET_KEY"),
		RetentionDays:        util.GetIntEnv("RETENTION_DAYS"),
		RetentionSchedule:    util.GetEnvDefault("RETENTION_SCHEDULE", "0 3 * * *"),
		BackupEnabled:        util.GetBoolEnv("BACKUP_ENABLED"),
		BackupPath:           util.GetEnvDefault("BACKUP_PATH", "backups"),
		BackupSchedule:       util.GetEnvDefault("BACKUP_SCHEDULE", "0 2 * * *"),
	}
	return GlobalConfig, nil
}

// IsDevelopment reports whether the console log encoder and gin debug mode apply.
func (c *Config) IsDevelopment() bool {
	return c.Mode == "development" || c.Mode == "debug"
}
