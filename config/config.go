package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// SourceConfig describes one listing site. URLTemplate must contain the
// {page} placeholder.
type SourceConfig struct {
	Name            string `yaml:"name"`
	BaseURL         string `yaml:"base_url"`
	URLTemplate     string `yaml:"url_template"`
	PageSize        int    `yaml:"page_size"`
	RotateUserAgent bool   `yaml:"rotate_user_agent"`
}

type Config struct {
	DataDir     string `yaml:"data_dir"`
	DBFile      string `yaml:"db_file"`
	PostgresDSN string `yaml:"postgres_dsn"`

	Fetcher           string        `yaml:"fetcher"`
	Headless          bool          `yaml:"headless"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	RetryInitialDelay time.Duration `yaml:"retry_initial_delay"`
	MaxPages          int           `yaml:"max_pages"`
	MinDelay          time.Duration `yaml:"min_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`

	Notifier       string        `yaml:"notifier"`
	NotifyDelay    time.Duration `yaml:"notify_delay"`
	NotifyJitter   time.Duration `yaml:"notify_jitter"`
	TelegramToken  string        `yaml:"telegram_token"`
	TelegramChatID int64         `yaml:"telegram_chat_id"`

	Schedule   string `yaml:"schedule"`
	StatusAddr string `yaml:"status_addr"`
	ExportCSV  string `yaml:"export_csv"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	Sources []SourceConfig `yaml:"sources"`
}

const (
	FetcherHTTP    = "http"
	FetcherBrowser = "browser"

	NotifierBrowser  = "browser"
	NotifierLog      = "log"
	NotifierTelegram = "telegram"
)

func DefaultConfig() *Config {
	return &Config{
		DataDir:           "sublet_data",
		DBFile:            "listings.db",
		Fetcher:           FetcherHTTP,
		Headless:          true,
		RequestTimeout:    30 * time.Second,
		MaxRetries:        3,
		RetryInitialDelay: time.Second,
		MaxPages:          50,
		MinDelay:          500 * time.Millisecond,
		MaxDelay:          1500 * time.Millisecond,
		Notifier:          NotifierBrowser,
		NotifyDelay:       200 * time.Millisecond,
		LogLevel:          "info",
		Sources:           DefaultSources(),
	}
}

func DefaultSources() []SourceConfig {
	return []SourceConfig{
		{
			Name:        "alberlet",
			BaseURL:     "https://www.alberlet.hu/",
			URLTemplate: "https://www.alberlet.hu/kiado_alberlet/megye:budapest/ingatlan-tipus:lakas/berleti-dij:150-215-ezer-ft/meret:50-x-m2/klima:igen/keppel:igen/limit:100?page={page}",
			PageSize:    100,
		},
		{
			Name:            "ingatlan",
			BaseURL:         "https://ingatlan.com",
			URLTemplate:     "https://ingatlan.com/lista/kiado+lakas+45-m2-felett+butorozott+van-legkondi+csak-kepes+budapest+havi-150-215-ezer-Ft?page={page}",
			RotateUserAgent: true,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file named by
// SCRAPER_CONFIG, a .env file and the process environment, in that order.
func Load() (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path := os.Getenv("SCRAPER_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file '%s': %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error

	c.DataDir = getEnv("DATA_DIR", c.DataDir)
	c.DBFile = getEnv("DB_FILE", c.DBFile)
	c.PostgresDSN = getEnv("PG_DSN", c.PostgresDSN)
	c.Fetcher = getEnv("FETCHER", c.Fetcher)
	c.Notifier = getEnv("NOTIFIER", c.Notifier)
	c.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", c.TelegramToken)
	c.Schedule = getEnv("SCHEDULE", c.Schedule)
	c.StatusAddr = getEnv("STATUS_ADDR", c.StatusAddr)
	c.ExportCSV = getEnv("EXPORT_CSV", c.ExportCSV)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("LOG_FILE", c.LogFile)

	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	collect(getEnvBool("HEADLESS", &c.Headless))
	collect(getEnvInt("MAX_RETRIES", &c.MaxRetries))
	collect(getEnvInt("MAX_PAGES", &c.MaxPages))
	collect(getEnvInt64("TELEGRAM_CHAT_ID", &c.TelegramChatID))
	collect(getEnvDuration("REQUEST_TIMEOUT", &c.RequestTimeout))
	collect(getEnvDuration("RETRY_INITIAL_DELAY", &c.RetryInitialDelay))
	collect(getEnvDuration("MIN_DELAY", &c.MinDelay))
	collect(getEnvDuration("MAX_DELAY", &c.MaxDelay))
	collect(getEnvDuration("NOTIFY_DELAY", &c.NotifyDelay))
	collect(getEnvDuration("NOTIFY_JITTER", &c.NotifyJitter))

	return errors.Join(errs...)
}

// DBPath is the SQLite file inside the working directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, c.DBFile)
}

func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	if c.PostgresDSN == "" && c.DBFile == "" {
		return fmt.Errorf("DB_FILE is required when PG_DSN is empty")
	}
	switch c.Fetcher {
	case FetcherHTTP, FetcherBrowser:
	default:
		return fmt.Errorf("unknown fetcher %q", c.Fetcher)
	}
	switch c.Notifier {
	case NotifierBrowser, NotifierLog:
	case NotifierTelegram:
		if c.TelegramToken == "" || c.TelegramChatID == 0 {
			return fmt.Errorf("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required for the telegram notifier")
		}
	default:
		return fmt.Errorf("unknown notifier %q", c.Notifier)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("MAX_RETRIES must be at least 1")
	}
	if c.MaxPages < 1 {
		return fmt.Errorf("MAX_PAGES must be at least 1")
	}
	if c.MinDelay < 0 || c.MaxDelay < c.MinDelay {
		return fmt.Errorf("invalid delay range %v-%v", c.MinDelay, c.MaxDelay)
	}
	if c.NotifyDelay < 0 || c.NotifyJitter < 0 {
		return fmt.Errorf("notify delay and jitter must not be negative")
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}

	seen := make(map[string]bool)
	for i, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("source %d: name is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("source %q configured twice", s.Name)
		}
		seen[s.Name] = true
		if !strings.Contains(s.URLTemplate, "{page}") {
			return fmt.Errorf("source %q: url_template must contain {page}", s.Name)
		}
		if s.BaseURL == "" {
			return fmt.Errorf("source %q: base_url is required", s.Name)
		}
		if s.PageSize < 0 {
			return fmt.Errorf("source %q: page_size must not be negative", s.Name)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func getEnvInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func getEnvInt64(key string, dst *int64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func getEnvDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
