package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// PagePlaceholder is replaced by the page index in the listing URL template
const PagePlaceholder = "{page}"

// Config holds all configuration options for the harvester
type Config struct {
	// Target site layout
	Site SiteConfig `yaml:"site" json:"site"`

	// Browser session settings
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Listing collection settings
	Listing ListingConfig `yaml:"listing" json:"listing"`

	// Download pacing settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Retry and session rotation policy
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Output directory settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Archive and failure report settings
	Archive ArchiveConfig `yaml:"archive" json:"archive"`

	// Listing checkpoint settings
	Checkpoint CheckpointConfig `yaml:"checkpoint" json:"checkpoint"`

	// Metrics output
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SiteConfig describes the listing pages and the file endpoint
type SiteConfig struct {
	ListingURLTemplate string `yaml:"listing_url_template" json:"listing_url_template"`
	BootstrapPage      int    `yaml:"bootstrap_page" json:"bootstrap_page"`
	FileBaseURL        string `yaml:"file_base_url" json:"file_base_url"`
	Referer            string `yaml:"referer" json:"referer"`
	Extension          string `yaml:"extension" json:"extension"`
}

// BrowserConfig holds browser session configuration
type BrowserConfig struct {
	Engine            string        `yaml:"engine" json:"engine"`
	Headless          bool          `yaml:"headless" json:"headless"`
	BinPath           string        `yaml:"bin_path" json:"bin_path"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
}

// ListingConfig holds the page range and listing wait settings
type ListingConfig struct {
	FirstPage      int           `yaml:"first_page" json:"first_page"`
	LastPage       int           `yaml:"last_page" json:"last_page"`
	WaitTimeout    time.Duration `yaml:"wait_timeout" json:"wait_timeout"`
	PagesPerMinute int           `yaml:"pages_per_minute" json:"pages_per_minute"`
}

// DownloadConfig holds per-request download settings
type DownloadConfig struct {
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	BaseDelay      time.Duration `yaml:"base_delay" json:"base_delay"`
	Jitter         time.Duration `yaml:"jitter" json:"jitter"`
}

// RetryConfig holds retry, backoff and rotation thresholds
type RetryConfig struct {
	MaxAttempts         int           `yaml:"max_attempts" json:"max_attempts"`
	AuthStreakThreshold int           `yaml:"auth_streak_threshold" json:"auth_streak_threshold"`
	RotateEvery         int           `yaml:"rotate_every" json:"rotate_every"`
	AuthBackoffMax      time.Duration `yaml:"auth_backoff_max" json:"auth_backoff_max"`
	AuthBackoffJitter   time.Duration `yaml:"auth_backoff_jitter" json:"auth_backoff_jitter"`
	BackoffStep         time.Duration `yaml:"backoff_step" json:"backoff_step"`
	BackoffJitter       time.Duration `yaml:"backoff_jitter" json:"backoff_jitter"`
	BackoffMax          time.Duration `yaml:"backoff_max" json:"backoff_max"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	Directory string `yaml:"directory" json:"directory"`
}

// ArchiveConfig holds archive and report paths
type ArchiveConfig struct {
	Path       string `yaml:"path" json:"path"`
	ReportPath string `yaml:"report_path" json:"report_path"`
	PublishURL string `yaml:"publish_url" json:"publish_url"`
}

// CheckpointConfig controls listing progress persistence
type CheckpointConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// MetricsConfig controls the Prometheus textfile dump
type MetricsConfig struct {
	Textfile string `yaml:"textfile" json:"textfile"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	File    string `yaml:"file" json:"file"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
	Stderr  bool   `yaml:"stderr" json:"stderr"`
}

// DefaultConfig returns a Config instance with the reference site settings
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ListingURLTemplate: "https://www.justice.gov/epstein/doj-disclosures/data-set-8-files?page=" + PagePlaceholder,
			BootstrapPage:      0,
			FileBaseURL:        "https://www.justice.gov/epstein/files/DataSet%208/",
			Referer:            "https://www.justice.gov/epstein/doj-disclosures/data-set-8-files",
			Extension:          ".pdf",
		},
		Browser: BrowserConfig{
			Engine:            "rod",
			Headless:          false,
			NavigationTimeout: 60 * time.Second,
		},
		Listing: ListingConfig{
			FirstPage:      42,
			LastPage:       120,
			WaitTimeout:    20 * time.Second,
			PagesPerMinute: 0,
		},
		Download: DownloadConfig{
			RequestTimeout: 60 * time.Second,
			BaseDelay:      350 * time.Millisecond,
			Jitter:         500 * time.Millisecond,
		},
		Retry: RetryConfig{
			MaxAttempts:         6,
			AuthStreakThreshold: 3,
			RotateEvery:         200,
			AuthBackoffMax:      120 * time.Second,
			AuthBackoffJitter:   5 * time.Second,
			BackoffStep:         3 * time.Second,
			BackoffJitter:       3 * time.Second,
			BackoffMax:          45 * time.Second,
		},
		Output: OutputConfig{
			Directory: "dataset8_pdfs",
		},
		Archive: ArchiveConfig{
			Path:       "dataset8_pages_42-121.zip",
			ReportPath: "failed.txt",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ListingURL renders the listing URL for a page index
func (s SiteConfig) ListingURL(page int) string {
	return strings.ReplaceAll(s.ListingURLTemplate, PagePlaceholder, strconv.Itoa(page))
}

// CheckpointPath returns the configured checkpoint path or the default inside the output directory
func (c *Config) CheckpointPath() string {
	if c.Checkpoint.Path != "" {
		return c.Checkpoint.Path
	}
	return filepath.Join(c.Output.Directory, ".docharvest-listing.json")
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	setString("DOCHARVEST_LISTING_URL", &c.Site.ListingURLTemplate)
	setString("DOCHARVEST_FILE_BASE_URL", &c.Site.FileBaseURL)
	setString("DOCHARVEST_REFERER", &c.Site.Referer)
	setInt("DOCHARVEST_FIRST_PAGE", &c.Listing.FirstPage)
	setInt("DOCHARVEST_LAST_PAGE", &c.Listing.LastPage)
	setString("DOCHARVEST_BROWSER_ENGINE", &c.Browser.Engine)
	setBool("DOCHARVEST_HEADLESS", &c.Browser.Headless)
	setString("DOCHARVEST_BROWSER_BIN", &c.Browser.BinPath)
	setString("DOCHARVEST_USER_AGENT", &c.Browser.UserAgent)
	setInt("DOCHARVEST_MAX_ATTEMPTS", &c.Retry.MaxAttempts)
	setString("DOCHARVEST_OUTPUT_DIR", &c.Output.Directory)
	setString("DOCHARVEST_ARCHIVE_PATH", &c.Archive.Path)
	setString("DOCHARVEST_REPORT_PATH", &c.Archive.ReportPath)
	setString("DOCHARVEST_PUBLISH_URL", &c.Archive.PublishURL)
	setString("DOCHARVEST_METRICS_TEXTFILE", &c.Metrics.Textfile)
	setString("DOCHARVEST_LOG_LEVEL", &c.Logging.Level)
	setString("DOCHARVEST_LOG_FILE", &c.Logging.File)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		"docharvest.yaml",
		".docharvest.yaml",
		".docharvest.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "docharvest", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".docharvest.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if !strings.Contains(c.Site.ListingURLTemplate, PagePlaceholder) {
		errs = append(errs, fmt.Errorf("listing URL template must contain %s", PagePlaceholder))
	}
	if _, err := url.Parse(c.Site.FileBaseURL); err != nil || c.Site.FileBaseURL == "" {
		errs = append(errs, errors.New("file base URL must be a valid URL"))
	}
	if !strings.HasPrefix(c.Site.Extension, ".") {
		errs = append(errs, errors.New("document extension must start with a dot"))
	}

	switch strings.ToLower(c.Browser.Engine) {
	case "rod", "http":
	default:
		errs = append(errs, fmt.Errorf("unknown browser engine %q (want rod or http)", c.Browser.Engine))
	}
	if c.Browser.NavigationTimeout <= 0 {
		errs = append(errs, errors.New("navigation timeout must be positive"))
	}

	if c.Listing.FirstPage < 0 {
		errs = append(errs, errors.New("first page cannot be negative"))
	}
	if c.Listing.LastPage < c.Listing.FirstPage {
		errs = append(errs, errors.New("last page must not be before first page"))
	}
	if c.Listing.WaitTimeout < 0 {
		errs = append(errs, errors.New("listing wait timeout cannot be negative"))
	}
	if c.Listing.PagesPerMinute < 0 {
		errs = append(errs, errors.New("pages per minute cannot be negative"))
	}

	if c.Download.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.Download.BaseDelay < 0 || c.Download.Jitter < 0 {
		errs = append(errs, errors.New("download delays cannot be negative"))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("max attempts must be at least 1"))
	}
	if c.Retry.AuthStreakThreshold < 1 {
		errs = append(errs, errors.New("auth streak threshold must be at least 1"))
	}
	if c.Retry.RotateEvery < 1 {
		errs = append(errs, errors.New("rotate interval must be at least 1"))
	}
	if c.Retry.AuthBackoffMax < 0 || c.Retry.BackoffMax < 0 || c.Retry.BackoffStep < 0 ||
		c.Retry.AuthBackoffJitter < 0 || c.Retry.BackoffJitter < 0 {
		errs = append(errs, errors.New("backoff durations cannot be negative"))
	}

	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Archive.Path == "" {
		errs = append(errs, errors.New("archive path is required"))
	}
	if c.Archive.ReportPath == "" {
		errs = append(errs, errors.New("failure report path is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.Directory = v
	}
	if v, ok := flags["archive"].(string); ok && v != "" {
		c.Archive.Path = v
	}
	if v, ok := flags["report"].(string); ok && v != "" {
		c.Archive.ReportPath = v
	}
	if v, ok := flags["publish"].(string); ok && v != "" {
		c.Archive.PublishURL = v
	}
	if v, ok := flags["first-page"].(int); ok {
		c.Listing.FirstPage = v
	}
	if v, ok := flags["last-page"].(int); ok {
		c.Listing.LastPage = v
	}
	if v, ok := flags["engine"].(string); ok && v != "" {
		c.Browser.Engine = v
	}
	if v, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = v
	}
	if v, ok := flags["max-attempts"].(int); ok && v > 0 {
		c.Retry.MaxAttempts = v
	}
	if v, ok := flags["resume"].(bool); ok {
		c.Checkpoint.Enabled = v
	}
	if v, ok := flags["metrics-textfile"].(string); ok && v != "" {
		c.Metrics.Textfile = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".docharvest.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
