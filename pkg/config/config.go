package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	PreviewCookie = "io.prismic.preview"
	SessionName   = "spacetraveling"

	// DefaultSessionSecret signs session cookies when SESSION_SECRET is unset.
	// It is public and only fit for local development.
	DefaultSessionSecret = "spacetraveling-dev-secret"
)

// Config holds everything the blog needs at runtime. It is built once by Load
// and passed down explicitly.
type Config struct {
	AppURL        string
	Addr          string
	SessionSecret string
	ContentDir    string
	FeedTTL       time.Duration `validate:"gt=0"`

	Prismic PrismicConfig
	Site    SiteConfig
	Build   BuildConfig
	Log     LogConfig
}

// PrismicConfig addresses the headless content repository. Endpoint is not
// validated here; a missing value surfaces on the first API call.
type PrismicConfig struct {
	Endpoint    string
	AccessToken string
	Timeout     time.Duration `validate:"gte=0"`
}

type SiteConfig struct {
	Title        string `yaml:"title" toml:"title" json:"title"`
	Locale       string `yaml:"locale" toml:"locale" json:"locale" validate:"required"`
	PageSize     int    `yaml:"page_size" toml:"page_size" json:"page_size" validate:"min=1,max=100"`
	DocumentType string `yaml:"document_type" toml:"document_type" json:"document_type" validate:"required"`
}

type BuildConfig struct {
	OutputDir string `validate:"required"`
	Workers   int    `validate:"min=1"`
}

type LogConfig struct {
	Level  string `validate:"omitempty,oneof=trace debug info warn error fatal"`
	Format string `validate:"omitempty,oneof=json console pretty"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		AppURL:        "http://localhost:8080",
		Addr:          ":8080",
		SessionSecret: DefaultSessionSecret,
		FeedTTL:       30 * time.Minute,
		Prismic: PrismicConfig{
			Timeout: 10 * time.Second,
		},
		Site: SiteConfig{
			Title:        "spacetraveling",
			Locale:       "pt_BR",
			PageSize:     1,
			DocumentType: "posts",
		},
		Build: BuildConfig{
			OutputDir: "./public",
			Workers:   4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads an optional .env file, an optional site file and the process
// environment, in that order of precedence (environment wins).
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current environment without
// touching .env files.
func FromEnv() (*Config, error) {
	cfg := Defaults()

	getEnv := func(key, fallback string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return fallback
	}

	if path := os.Getenv("SITE_CONFIG"); path != "" {
		if err := loadSiteFile(path, &cfg.Site); err != nil {
			return nil, err
		}
	}

	cfg.AppURL = strings.TrimRight(getEnv("APP_URL", cfg.AppURL), "/")
	cfg.Addr = getEnv("ADDR", cfg.Addr)
	cfg.SessionSecret = getEnv("SESSION_SECRET", cfg.SessionSecret)
	cfg.ContentDir = getEnv("CONTENT_DIR", cfg.ContentDir)

	cfg.Prismic.Endpoint = strings.TrimRight(getEnv("PRISMIC_API_ENDPOINT", cfg.Prismic.Endpoint), "/")
	cfg.Prismic.AccessToken = getEnv("PRISMIC_ACCESS_TOKEN", cfg.Prismic.AccessToken)

	cfg.Site.Title = getEnv("SITE_TITLE", cfg.Site.Title)
	cfg.Site.Locale = getEnv("SITE_LOCALE", cfg.Site.Locale)
	cfg.Site.DocumentType = getEnv("SITE_DOCUMENT_TYPE", cfg.Site.DocumentType)

	cfg.Build.OutputDir = getEnv("OUTPUT_DIR", cfg.Build.OutputDir)

	cfg.Log.Level = strings.ToLower(getEnv("LOG_LEVEL", cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(getEnv("LOG_FORMAT", cfg.Log.Format))

	var err error
	if cfg.Site.PageSize, err = intEnv("SITE_PAGE_SIZE", cfg.Site.PageSize); err != nil {
		return nil, err
	}
	if cfg.Build.Workers, err = intEnv("BUILD_WORKERS", cfg.Build.Workers); err != nil {
		return nil, err
	}
	if cfg.Prismic.Timeout, err = durationEnv("PRISMIC_TIMEOUT", cfg.Prismic.Timeout); err != nil {
		return nil, err
	}
	if cfg.FeedTTL, err = durationEnv("FEED_TTL", cfg.FeedTTL); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// InsecureSessionSecret reports whether session cookies are signed with the
// built-in development secret.
func (c *Config) InsecureSessionSecret() bool {
	return c.SessionSecret == DefaultSessionSecret
}

// SecureCookies reports whether cookies should carry the Secure flag.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(strings.ToLower(c.AppURL), "https://")
}

// ContentAPIBase is the mount point of the local content API.
func (c *Config) ContentAPIBase() string {
	return "/_content/api/v2"
}

// ContentEndpoint returns the configured Prismic endpoint, falling back to the
// local content API when a content directory is configured.
func (c *Config) ContentEndpoint() string {
	if c.Prismic.Endpoint != "" || c.ContentDir == "" {
		return c.Prismic.Endpoint
	}
	return c.AppURL + c.ContentAPIBase()
}

func loadSiteFile(path string, site *SiteConfig) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read site file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(content, site)
	case ".toml":
		err = toml.Unmarshal(content, site)
	case ".json":
		err = json.Unmarshal(content, site)
	default:
		return fmt.Errorf("config: unsupported site file format: %s", path)
	}
	if err != nil {
		return fmt.Errorf("config: parse site file %s: %w", path, err)
	}
	return nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
