package session

import (
	"context"
	"fmt"
	"strings"

	"docharvest/pkg/config"
)

// NewBrowser builds the engine named by cfg.Engine
func NewBrowser(ctx context.Context, cfg *config.BrowserConfig) (Browser, error) {
	switch strings.ToLower(cfg.Engine) {
	case "rod":
		return NewRodBrowser(ctx, RodOptions{
			Headless:  cfg.Headless,
			BinPath:   cfg.BinPath,
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.NavigationTimeout,
		})
	case "http":
		return NewHTTPBrowser(cfg.UserAgent, cfg.NavigationTimeout), nil
	default:
		return nil, fmt.Errorf("unknown browser engine %q", cfg.Engine)
	}
}
