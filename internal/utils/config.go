package utils

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PaperSize is a page size in inches.
type PaperSize struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// PostgresConfig describes how to reach the control plane database.
// Host may also carry a full postgres:// URL.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// Enabled reports whether a database has been configured at all.
func (p PostgresConfig) Enabled() bool {
	return p.Host != ""
}

// ConverterConfig selects and tunes the host conversion backend.
type ConverterConfig struct {
	Backend         string    `yaml:"backend"`
	TimeoutSecs     int       `yaml:"timeout_secs"`
	TempDir         string    `yaml:"temp_dir"`
	SofficePath     string    `yaml:"soffice_path"`
	ChromePath      string    `yaml:"chrome_path"`
	ChromeNoSandbox bool      `yaml:"chrome_no_sandbox"`
	Paper           PaperSize `yaml:"paper"`
	Margin          float64   `yaml:"margin"`
	ValidateOutput  bool      `yaml:"validate_output"`
	ArchiveName     string    `yaml:"archive_name"`
}

// Timeout returns the per-conversion timeout, zero meaning none.
func (c ConverterConfig) Timeout() time.Duration {
	if c.TimeoutSecs <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Config is the full service configuration.
type Config struct {
	Server struct {
		Host        string `yaml:"host"`
		Port        string `yaml:"port"`
		Prefork     bool   `yaml:"prefork"`
		BodyLimitMB int    `yaml:"body_limit_mb"`
	} `yaml:"server"`

	Limits struct {
		MaxFiles       int `yaml:"max_files"`
		MaxUploadBytes int `yaml:"max_upload_bytes"`
		MaxPDFBytes    int `yaml:"max_pdf_bytes"`
	} `yaml:"limits"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	Cache struct {
		PDFCacheEnabled bool          `yaml:"pdf_cache_enabled"`
		PDFCacheTTL     time.Duration `yaml:"pdf_cache_ttl"`
		RedisHost       string        `yaml:"redis_host"`
		RateLimitDB     int           `yaml:"redis_rate_db"`
		PDFCacheDB      int           `yaml:"redis_pdf_db"`
	} `yaml:"cache"`

	RateLimiter struct {
		Interval          time.Duration `yaml:"interval"`
		EnableUserLimiter bool          `yaml:"enable_user_limiter"`
		UserLimit         int           `yaml:"user_limit"`
	} `yaml:"rate_limiter"`

	Auth struct {
		Postgres       PostgresConfig `yaml:"postgres"`
		ReloadInterval time.Duration  `yaml:"reload_interval"`
	} `yaml:"auth"`

	History struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"history"`

	Converter ConverterConfig `yaml:"converter"`
}

// AppConfig holds the configuration loaded at startup.
var AppConfig Config

// Supported backend names.
const (
	BackendWord        = "word"
	BackendLibreOffice = "libreoffice"
	BackendChrome      = "chrome"
)

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	var cfg Config
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = ":8080"
	cfg.Server.BodyLimitMB = 64

	cfg.Limits.MaxFiles = 20
	cfg.Limits.MaxUploadBytes = 20 * 1024 * 1024
	cfg.Limits.MaxPDFBytes = 50 * 1024 * 1024

	cfg.Logger.Level = "info"
	cfg.Logger.MaxSizeMB = 10
	cfg.Logger.MaxBackups = 3
	cfg.Logger.MaxAgeDays = 28

	cfg.Cache.PDFCacheTTL = 24 * time.Hour
	cfg.Cache.RedisHost = "127.0.0.1:6379"
	cfg.Cache.RateLimitDB = 0
	cfg.Cache.PDFCacheDB = 1

	cfg.RateLimiter.Interval = time.Minute

	cfg.Auth.ReloadInterval = time.Minute

	cfg.Converter.Backend = BackendWord
	cfg.Converter.TimeoutSecs = 120
	cfg.Converter.Paper = PaperSize{Width: 8.27, Height: 11.69}
	cfg.Converter.Margin = 0.4
	cfg.Converter.ArchiveName = "converted_files.zip"
	return cfg
}

// GetConfig returns the loaded application configuration.
func GetConfig() Config {
	return AppConfig
}

// LoadConfig reads the file named by CONFIG_PATH (default config.yaml).
func LoadConfig() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return LoadConfigFrom(path)
}

// LoadConfigFrom reads, validates and stores the configuration at path.
// A missing file yields the defaults; invalid values panic.
func LoadConfigFrom(path string) Config {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			panic(fmt.Sprintf("failed to parse config %s: %v", path, err))
		}
	case os.IsNotExist(err):
		Warn("Config file not found, using defaults", "path", path)
	default:
		panic(fmt.Sprintf("failed to read config %s: %v", path, err))
	}

	if v := os.Getenv("CHROME_BIN"); v != "" && cfg.Converter.ChromePath == "" {
		cfg.Converter.ChromePath = v
	}
	if v := os.Getenv("SOFFICE_BIN"); v != "" && cfg.Converter.SofficePath == "" {
		cfg.Converter.SofficePath = v
	}
	cfg.Converter.Backend = strings.ToLower(strings.TrimSpace(cfg.Converter.Backend))

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("invalid config %s: %v", path, err))
	}

	AppConfig = cfg
	return cfg
}

// Validate checks values that would otherwise fail deep inside a request.
func (c Config) Validate() error {
	switch c.Converter.Backend {
	case BackendWord, BackendLibreOffice, BackendChrome:
	default:
		return fmt.Errorf("converter.backend %q is not one of %s, %s, %s",
			c.Converter.Backend, BackendWord, BackendLibreOffice, BackendChrome)
	}
	if c.Limits.MaxFiles <= 0 {
		return fmt.Errorf("limits.max_files must be positive")
	}
	if c.Limits.MaxUploadBytes <= 0 {
		return fmt.Errorf("limits.max_upload_bytes must be positive")
	}
	if c.Limits.MaxPDFBytes <= 0 {
		return fmt.Errorf("limits.max_pdf_bytes must be positive")
	}
	if c.RateLimiter.Interval <= 0 {
		return fmt.Errorf("rate_limiter.interval must be positive")
	}
	if c.RateLimiter.UserLimit < 0 {
		return fmt.Errorf("rate_limiter.user_limit must not be negative")
	}
	if c.Auth.ReloadInterval <= 0 {
		return fmt.Errorf("auth.reload_interval must be positive")
	}
	if c.Converter.ArchiveName == "" || !strings.HasSuffix(c.Converter.ArchiveName, ".zip") {
		return fmt.Errorf("converter.archive_name must end with .zip")
	}
	return nil
}
