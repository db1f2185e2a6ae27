package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Listing.FirstPage != 42 || config.Listing.LastPage != 120 {
		t.Errorf("Expected default page range 42..120, got %d..%d", config.Listing.FirstPage, config.Listing.LastPage)
	}

	if config.Retry.MaxAttempts != 6 {
		t.Errorf("Expected default max attempts to be 6, got %d", config.Retry.MaxAttempts)
	}

	if config.Retry.AuthStreakThreshold != 3 {
		t.Errorf("Expected default auth streak threshold to be 3, got %d", config.Retry.AuthStreakThreshold)
	}

	if config.Retry.RotateEvery != 200 {
		t.Errorf("Expected default rotation interval to be 200, got %d", config.Retry.RotateEvery)
	}

	if config.Download.BaseDelay != 350*time.Millisecond {
		t.Errorf("Expected default base delay to be 350ms, got %v", config.Download.BaseDelay)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Expected default config to be valid, got %v", err)
	}
}

func TestListingURL(t *testing.T) {
	site := SiteConfig{ListingURLTemplate: "https://example.test/files?page={page}"}
	assert.Equal(t, "https://example.test/files?page=7", site.ListingURL(7))
	assert.Equal(t, "https://example.test/files?page=0", site.ListingURL(0))
}

func TestCheckpointPath(t *testing.T) {
	config := DefaultConfig()
	config.Output.Directory = "out"
	assert.Equal(t, filepath.Join("out", ".docharvest-listing.json"), config.CheckpointPath())

	config.Checkpoint.Path = "/tmp/listing.json"
	assert.Equal(t, "/tmp/listing.json", config.CheckpointPath())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DOCHARVEST_OUTPUT_DIR", "/tmp/test-docs")
	t.Setenv("DOCHARVEST_FIRST_PAGE", "3")
	t.Setenv("DOCHARVEST_LAST_PAGE", "9")
	t.Setenv("DOCHARVEST_BROWSER_ENGINE", "http")
	t.Setenv("DOCHARVEST_HEADLESS", "true")
	t.Setenv("DOCHARVEST_MAX_ATTEMPTS", "2")
	t.Setenv("DOCHARVEST_LOG_LEVEL", "debug")

	config := DefaultConfig()
	require.NoError(t, config.LoadFromEnv())

	assert.Equal(t, "/tmp/test-docs", config.Output.Directory)
	assert.Equal(t, 3, config.Listing.FirstPage)
	assert.Equal(t, 9, config.Listing.LastPage)
	assert.Equal(t, "http", config.Browser.Engine)
	assert.True(t, config.Browser.Headless)
	assert.Equal(t, 2, config.Retry.MaxAttempts)
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestLoadFromEnvInvalidNumber(t *testing.T) {
	t.Setenv("DOCHARVEST_FIRST_PAGE", "forty-two")

	config := DefaultConfig()
	err := config.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOCHARVEST_FIRST_PAGE")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docharvest.yaml")
	content := `
site:
  listing_url_template: "https://example.test/list?page={page}"
  file_base_url: "https://example.test/files/"
listing:
  first_page: 1
  last_page: 4
  wait_timeout: 5s
retry:
  max_attempts: 4
  backoff_max: 10s
output:
  directory: "docs"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config := DefaultConfig()
	require.NoError(t, config.LoadFromFile(path))

	assert.Equal(t, "https://example.test/list?page={page}", config.Site.ListingURLTemplate)
	assert.Equal(t, 1, config.Listing.FirstPage)
	assert.Equal(t, 4, config.Listing.LastPage)
	assert.Equal(t, 5*time.Second, config.Listing.WaitTimeout)
	assert.Equal(t, 4, config.Retry.MaxAttempts)
	assert.Equal(t, 10*time.Second, config.Retry.BackoffMax)
	assert.Equal(t, "docs", config.Output.Directory)
	// untouched keys keep their defaults
	assert.Equal(t, 3, config.Retry.AuthStreakThreshold)
}

func TestLoadFromFileMissing(t *testing.T) {
	config := DefaultConfig()
	err := config.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"template without placeholder", func(c *Config) { c.Site.ListingURLTemplate = "https://example.test/list" }, "{page}"},
		{"inverted range", func(c *Config) { c.Listing.FirstPage, c.Listing.LastPage = 10, 5 }, "last page"},
		{"negative first page", func(c *Config) { c.Listing.FirstPage = -1 }, "negative"},
		{"unknown engine", func(c *Config) { c.Browser.Engine = "selenium" }, "unknown browser engine"},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "max attempts"},
		{"zero streak", func(c *Config) { c.Retry.AuthStreakThreshold = 0 }, "auth streak"},
		{"zero rotation", func(c *Config) { c.Retry.RotateEvery = 0 }, "rotate interval"},
		{"missing output", func(c *Config) { c.Output.Directory = "" }, "output directory"},
		{"missing archive", func(c *Config) { c.Archive.Path = "" }, "archive path"},
		{"bad extension", func(c *Config) { c.Site.Extension = "pdf" }, "extension"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), "error %q should mention %q", err, tt.wantErr)
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	config := DefaultConfig()
	config.MergeCommandLineFlags(map[string]interface{}{
		"output":       "flag-out",
		"archive":      "flag.zip",
		"first-page":   0,
		"last-page":    2,
		"engine":       "http",
		"headless":     true,
		"max-attempts": 3,
		"resume":       true,
		"log-level":    "warn",
	})

	assert.Equal(t, "flag-out", config.Output.Directory)
	assert.Equal(t, "flag.zip", config.Archive.Path)
	assert.Equal(t, 0, config.Listing.FirstPage)
	assert.Equal(t, 2, config.Listing.LastPage)
	assert.Equal(t, "http", config.Browser.Engine)
	assert.True(t, config.Browser.Headless)
	assert.Equal(t, 3, config.Retry.MaxAttempts)
	assert.True(t, config.Checkpoint.Enabled)
	assert.Equal(t, "warn", config.Logging.Level)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	original := DefaultConfig()
	original.Retry.BackoffMax = 30 * time.Second
	require.NoError(t, original.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, original, loaded)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  directory: from-file\nlisting:\n  first_page: 1\n  last_page: 2\n"), 0644))

	t.Setenv("DOCHARVEST_OUTPUT_DIR", "from-env")

	config, err := Load(path, map[string]interface{}{"last-page": 5})
	require.NoError(t, err)
	assert.Equal(t, "from-env", config.Output.Directory)
	assert.Equal(t, 1, config.Listing.FirstPage)
	assert.Equal(t, 5, config.Listing.LastPage)
}
