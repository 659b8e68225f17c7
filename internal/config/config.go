package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	API       APIConfig
	Scheduler SchedulerConfig
	Agent     AgentConfig
	Notify    NotifyConfig
}

type ServerConfig struct {
	Port           int
	Env            string // "development", "production"
	AllowedOrigins []string
}

type LogConfig struct {
	Level string
}

type DatabaseConfig struct {
	Driver  string // "mysql", "postgres", "sqlite"
	Host    string
	Port    string
	Name    string
	User    string
	Pass    string
	Charset string
	SSLMode string
	Path    string
}

type RedisConfig struct {
	Addr string
	Pass string
	DB   int
}

type APIConfig struct {
	Key string
}

type SchedulerConfig struct {
	Timezone      string
	TickSpec      string
	RetentionSpec string
	RetentionDays int
	StaleJobAfter time.Duration
}

type AgentConfig struct {
	Path         string
	WriteTimeout time.Duration
}

type NotifyConfig struct {
	Timeout time.Duration
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	viper.AutomaticEnv()
	setDefaults()

	cfg := &Config{
		Server: ServerConfig{
			Port:           viper.GetInt("APP_PORT"),
			Env:            viper.GetString("APP_ENV"),
			AllowedOrigins: splitList(viper.GetString("ALLOWED_ORIGINS")),
		},
		Log: LogConfig{
			Level: viper.GetString("LOG_LEVEL"),
		},
		Database: loadDatabase(),
		Redis: RedisConfig{
			Addr: viper.GetString("REDIS_ADDR"),
			Pass: viper.GetString("REDIS_PASS"),
			DB:   viper.GetInt("REDIS_DB"),
		},
		API: APIConfig{
			Key: viper.GetString("API_KEY"),
		},
		Scheduler: SchedulerConfig{
			Timezone:      viper.GetString("SCHEDULER_TIMEZONE"),
			TickSpec:      viper.GetString("SCHEDULER_TICK_SPEC"),
			RetentionSpec: viper.GetString("RETENTION_SPEC"),
			RetentionDays: viper.GetInt("RETENTION_DAYS"),
		},
		Agent: AgentConfig{
			Path: viper.GetString("AGENT_WS_PATH"),
		},
	}

	var err error
	if cfg.Scheduler.StaleJobAfter, err = durationOf("JOB_STALE_AFTER"); err != nil {
		return nil, err
	}
	if cfg.Agent.WriteTimeout, err = durationOf("AGENT_WRITE_TIMEOUT"); err != nil {
		return nil, err
	}
	if cfg.Notify.Timeout, err = durationOf("NOTIFY_TIMEOUT"); err != nil {
		return nil, err
	}

	if _, err := time.LoadLocation(cfg.Scheduler.Timezone); err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_TIMEZONE %q: %w", cfg.Scheduler.Timezone, err)
	}
	if cfg.Scheduler.RetentionDays <= 0 {
		return nil, fmt.Errorf("RETENTION_DAYS must be positive, got %d", cfg.Scheduler.RetentionDays)
	}
	if err := cfg.Database.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDatabaseOnly reads just the database section, used by --bootstrap-db.
func LoadDatabaseOnly() (*DatabaseConfig, error) {
	_ = godotenv.Load()
	viper.AutomaticEnv()
	setDefaults()

	db := loadDatabase()
	if err := db.validate(); err != nil {
		return nil, err
	}
	return &db, nil
}

func setDefaults() {
	viper.SetDefault("APP_PORT", 3001)
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DB_DRIVER", "mysql")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_CHARSET", "utf8mb4")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_PATH", "backuphub.db")
	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("SCHEDULER_TIMEZONE", "Asia/Bangkok")
	viper.SetDefault("SCHEDULER_TICK_SPEC", "0 * * * * *")
	viper.SetDefault("RETENTION_SPEC", "0 0 3 * * *")
	viper.SetDefault("RETENTION_DAYS", 30)
	viper.SetDefault("JOB_STALE_AFTER", "0s")
	viper.SetDefault("AGENT_WS_PATH", "/ws")
	viper.SetDefault("AGENT_WRITE_TIMEOUT", "10s")
	viper.SetDefault("NOTIFY_TIMEOUT", "10s")
}

func loadDatabase() DatabaseConfig {
	return DatabaseConfig{
		Driver:  strings.ToLower(viper.GetString("DB_DRIVER")),
		Host:    viper.GetString("DB_HOST"),
		Port:    viper.GetString("DB_PORT"),
		Name:    viper.GetString("DB_NAME"),
		User:    viper.GetString("DB_USER"),
		Pass:    viper.GetString("DB_PASS"),
		Charset: viper.GetString("DB_CHARSET"),
		SSLMode: viper.GetString("DB_SSLMODE"),
		Path:    viper.GetString("DB_PATH"),
	}
}

func durationOf(key string) (time.Duration, error) {
	raw := viper.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (d *DatabaseConfig) validate() error {
	switch d.Driver {
	case "mysql", "postgres":
		if d.Name == "" {
			return fmt.Errorf("DB_NAME is required for driver %s", d.Driver)
		}
	case "sqlite":
		if d.Path == "" {
			return fmt.Errorf("DB_PATH is required for driver sqlite")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", d.Driver)
	}
	return nil
}

// DSN returns the connection string for the configured driver.
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Pass, d.Name, d.SSLMode)
	case "sqlite":
		return d.Path
	default:
		return d.User + ":" + d.Pass + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?charset=" + d.Charset + "&parseTime=True&loc=Local"
	}
}
