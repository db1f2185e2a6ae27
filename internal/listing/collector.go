package listing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docharvest/pkg/checkpoint"
	"docharvest/pkg/config"
	errs "docharvest/pkg/errors"
	"docharvest/pkg/logger"
	"docharvest/pkg/metrics"
	"docharvest/pkg/session"

	"golang.org/x/time/rate"
)

// SessionSource hands out the active session
type SessionSource interface {
	Current() session.Session
}

// Collector walks the listing pages and gathers document filenames
type Collector struct {
	sessions    SessionSource
	site        config.SiteConfig
	firstPage   int
	lastPage    int
	waitTimeout time.Duration
	navTimeout  time.Duration
	limiter     *rate.Limiter
	checkpoint  *checkpoint.Manager
	logger      logger.Logger
	metrics     *metrics.Metrics
}

// NewCollector creates a collector for the configured page range
func NewCollector(sessions SessionSource, cfg *config.Config, log logger.Logger, m *metrics.Metrics) *Collector {
	if log == nil {
		log = logger.GetLogger()
	}

	limit := rate.Inf
	if cfg.Listing.PagesPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.Listing.PagesPerMinute))
	}

	return &Collector{
		sessions:    sessions,
		site:        cfg.Site,
		firstPage:   cfg.Listing.FirstPage,
		lastPage:    cfg.Listing.LastPage,
		waitTimeout: cfg.Listing.WaitTimeout,
		navTimeout:  cfg.Browser.NavigationTimeout,
		limiter:     rate.NewLimiter(limit, 1),
		logger:      log.WithField("component", "listing"),
		metrics:     m,
	}
}

// WithCheckpoint enables resuming from, and recording to, a listing checkpoint
func (c *Collector) WithCheckpoint(mgr *checkpoint.Manager) *Collector {
	c.checkpoint = mgr
	return c
}

// Collect renders every page in ascending order and returns the unique
// filenames in first-seen order. Any page failure aborts collection.
func (c *Collector) Collect(ctx context.Context) ([]string, error) {
	set := NewFilenameSet()
	start := c.firstPage

	var cp *checkpoint.Checkpoint
	if c.checkpoint != nil {
		cp, start = c.resume(set)
	}

	for page := start; page <= c.lastPage; page++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errs.Wrap(errs.ErrorTypeListing, err, fmt.Sprintf("listing page %d", page))
		}

		url := c.site.ListingURL(page)
		names, err := c.collectPage(ctx, url)
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeListing, err, fmt.Sprintf("listing page %d", page))
		}

		added := set.AddAll(names)
		c.metrics.IncListingPage()
		c.metrics.AddFilenames(added)
		logger.LogListingPage(c.logger, page, url, added, set.Len())

		if cp != nil {
			if err := c.checkpoint.UpdateProgress(cp, page, set.List()); err != nil {
				c.logger.WithError(err).Warn("Failed to save listing checkpoint")
			}
		}
	}

	return set.List(), nil
}

func (c *Collector) collectPage(ctx context.Context, url string) ([]string, error) {
	s := c.sessions.Current()
	if s == nil {
		return nil, errors.New("no active session")
	}

	pageCtx := ctx
	if c.navTimeout > 0 {
		var cancel context.CancelFunc
		// navigation and link wait share one deadline
		pageCtx, cancel = context.WithTimeout(ctx, c.navTimeout+c.waitTimeout)
		defer cancel()
	}

	html, err := s.Render(pageCtx, url, session.RenderOptions{
		WaitLinkSuffix: c.site.Extension,
		WaitTimeout:    c.waitTimeout,
	})
	if err != nil {
		return nil, err
	}
	return ExtractFilenames(html, c.site.Extension)
}

// resume seeds set from a matching checkpoint and returns the next page to render
func (c *Collector) resume(set *FilenameSet) (*checkpoint.Checkpoint, int) {
	cp, err := c.checkpoint.Load()
	if err != nil {
		c.logger.WithError(err).Warn("Ignoring unreadable listing checkpoint")
		cp = nil
	}

	if cp != nil && cp.Matches(c.site.ListingURLTemplate, c.firstPage) {
		set.AddAll(cp.Filenames)
		next := cp.LastCompletedPage + 1
		if next < c.firstPage {
			next = c.firstPage
		}
		c.logger.InfoWithFields("Resuming listing", map[string]interface{}{
			"next_page": next,
			"filenames": set.Len(),
		})
		return cp, next
	}

	return c.checkpoint.Create(c.site.ListingURLTemplate, c.firstPage), c.firstPage
}
