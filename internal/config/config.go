package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the bridge. It is loaded once and
// passed explicitly; nothing reads the environment after startup.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	LogLevel  string          `mapstructure:"log_level"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig selects and configures the store backend: an embedded
// sqlite file (default) or a shared mysql instance.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// ScraperConfig describes one Web-CALIB portal target. The same shape is
// accepted over the import API in scrape mode.
type ScraperConfig struct {
	BaseURL     string `mapstructure:"base_url" json:"baseUrl"`
	LoginURL    string `mapstructure:"login_url" json:"loginUrl"`
	ListURL     string `mapstructure:"list_url" json:"listUrl"`
	Username    string `mapstructure:"username" json:"username"`
	Password    string `mapstructure:"password" json:"password"`
	TargetEmail string `mapstructure:"target_email" json:"targetEmail,omitempty"`
	SearchURL   string `mapstructure:"search_url" json:"searchUrl,omitempty"`
	JobseekerNo string `mapstructure:"jobseeker_no" json:"jobseekerNo,omitempty"`
	Headless    bool   `mapstructure:"headless" json:"headless,omitempty"`
	TimeoutMS   int    `mapstructure:"timeout_ms" json:"timeout,omitempty"`
}

// SchedulerConfig holds periodic sync configuration.
type SchedulerConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalMinutes int  `mapstructure:"interval_minutes"`
}

// Load reads configuration from an optional config file plus environment
// variables, with env vars taking precedence.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.path", "data/webcalib.db")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)

	viper.SetDefault("scraper.headless", true)
	viper.SetDefault("scraper.timeout_ms", 60000)

	viper.SetDefault("scheduler.enabled", false)
	viper.SetDefault("scheduler.interval_minutes", 30)

	viper.SetDefault("log_level", "info")
}

func bindEnvVars() {
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	viper.BindEnv("database.driver", "DB_DRIVER")
	viper.BindEnv("database.path", "DB_PATH")
	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.dbname", "DB_NAME")

	viper.BindEnv("scraper.base_url", "WEBCALIB_BASE_URL")
	viper.BindEnv("scraper.login_url", "WEBCALIB_LOGIN_URL")
	viper.BindEnv("scraper.list_url", "WEBCALIB_LIST_URL")
	viper.BindEnv("scraper.username", "WEBCALIB_USERNAME")
	viper.BindEnv("scraper.password", "WEBCALIB_PASSWORD")
	viper.BindEnv("scraper.target_email", "WEBCALIB_TARGET_EMAIL")
	viper.BindEnv("scraper.search_url", "WEBCALIB_SEARCH_URL")
	viper.BindEnv("scraper.jobseeker_no", "WEBCALIB_JOBSEEKER_NO")
	viper.BindEnv("scraper.headless", "WEBCALIB_HEADLESS")
	viper.BindEnv("scraper.timeout_ms", "WEBCALIB_TIMEOUT_MS")

	viper.BindEnv("scheduler.enabled", "SCHEDULER_ENABLED")
	viper.BindEnv("scheduler.interval_minutes", "SCHEDULER_INTERVAL_MINUTES")

	viper.BindEnv("log_level", "LOG_LEVEL")
}

// GetDSN returns the mysql connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Validate checks service-level configuration.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for the sqlite driver")
		}
	case "mysql":
		if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
			return fmt.Errorf("database host, user, and dbname are required for the mysql driver")
		}
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}

	if c.Scheduler.Enabled {
		if c.Scheduler.IntervalMinutes <= 0 {
			return fmt.Errorf("scheduler interval must be greater than 0")
		}
		if result := c.Scraper.Validate(); !result.Valid {
			return fmt.Errorf("scheduler enabled but scraper config invalid: %s",
				strings.Join(result.Errors, ", "))
		}
	}

	return nil
}

// ValidationResult carries field-level findings from scraper config checks.
// Errors reject the config; warnings do not.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Validate checks a scraper config before any I/O happens. Required fields
// missing or a malformed base URL are errors; questionable values are
// warnings.
func (c *ScraperConfig) Validate() ValidationResult {
	var errs, warnings []string

	if c.BaseURL == "" {
		errs = append(errs, "baseUrl is required")
	}
	if c.LoginURL == "" {
		errs = append(errs, "loginUrl is required")
	}
	if c.ListURL == "" {
		errs = append(errs, "listUrl is required")
	}
	if c.Username == "" {
		errs = append(errs, "username is required")
	}
	if c.Password == "" {
		errs = append(errs, "password is required")
	}

	if c.BaseURL != "" && !strings.HasPrefix(c.BaseURL, "http") {
		errs = append(errs, "baseUrl must start with http:// or https://")
	}
	if c.LoginURL != "" && !strings.HasPrefix(c.LoginURL, "http") && !strings.HasPrefix(c.LoginURL, "/") {
		warnings = append(warnings, "loginUrl should be a full URL or relative path")
	}
	if c.TimeoutMS != 0 && (c.TimeoutMS < 1000 || c.TimeoutMS > 300000) {
		warnings = append(warnings, "timeout should be between 1000ms and 300000ms")
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs, Warnings: warnings}
}

// Timeout returns the scrape timeout as a duration, defaulting to a minute.
func (c *ScraperConfig) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return time.Minute
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}
