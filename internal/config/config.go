package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	Browser    BrowserConfig
	Supervisor SupervisorConfig
	Tracker    TrackerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type BrowserConfig struct {
	Headless       bool
	NavTimeout     time.Duration
	LandmarkWait   time.Duration
	SettleDelay    time.Duration
	Locale         string
	TimezoneID     string
	AcceptLanguage string
}

type SupervisorConfig struct {
	WorkerCommand []string
	PoolSize      int
	Timeout       time.Duration
	TempRoot      string
}

type TrackerConfig struct {
	Enabled       bool
	CheckInterval time.Duration
	DelayMin      time.Duration
	DelayMax      time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	MaxConns int32
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	AlertStream string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			NavTimeout:     getDurationOrDefault("BROWSER_NAV_TIMEOUT", 30*time.Second),
			LandmarkWait:   getDurationOrDefault("BROWSER_LANDMARK_WAIT", 20*time.Second),
			SettleDelay:    getDurationOrDefault("BROWSER_SETTLE_DELAY", 2*time.Second),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "ru-RU"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Europe/Moscow"),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "ru-RU,ru;q=0.9,en;q=0.8"),
		},
		Supervisor: SupervisorConfig{
			WorkerCommand: getStringSliceOrDefault("SUPERVISOR_WORKER_COMMAND", []string{"wbwatch-worker"}),
			PoolSize:      getIntOrDefault("SUPERVISOR_POOL_SIZE", 2),
			Timeout:       getDurationOrDefault("SUPERVISOR_TIMEOUT", 45*time.Second),
			TempRoot:      getEnvOrDefault("SUPERVISOR_TEMP_ROOT", os.TempDir()),
		},
		Tracker: TrackerConfig{
			Enabled:       getBoolOrDefault("TRACKER_ENABLED", true),
			CheckInterval: getDurationOrDefault("TRACKER_CHECK_INTERVAL", 30*time.Minute),
			DelayMin:      getDurationOrDefault("TRACKER_DELAY_MIN", 2*time.Second),
			DelayMax:      getDurationOrDefault("TRACKER_DELAY_MAX", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			Name:     getEnvOrDefault("DB_NAME", "wbwatch"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Addr:        getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password:    getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:          getIntOrDefault("REDIS_DB", 0),
			AlertStream: getEnvOrDefault("REDIS_ALERT_STREAM", "stream:price_alerts"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Supervisor.PoolSize < 1 {
		return fmt.Errorf("SUPERVISOR_POOL_SIZE must be at least 1")
	}

	if c.Supervisor.Timeout < time.Second {
		return fmt.Errorf("SUPERVISOR_TIMEOUT must be at least 1s")
	}

	if len(c.Supervisor.WorkerCommand) == 0 {
		return fmt.Errorf("SUPERVISOR_WORKER_COMMAND must not be empty")
	}

	if c.Tracker.DelayMin > c.Tracker.DelayMax {
		return fmt.Errorf("TRACKER_DELAY_MIN cannot be greater than TRACKER_DELAY_MAX")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
