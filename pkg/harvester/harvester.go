package harvester

import (
	"context"
	"fmt"
	"time"

	"docharvest/internal/downloader"
	"docharvest/internal/listing"
	"docharvest/pkg/archive"
	"docharvest/pkg/checkpoint"
	"docharvest/pkg/config"
	"docharvest/pkg/logger"
	"docharvest/pkg/metrics"
	"docharvest/pkg/retry"
	"docharvest/pkg/session"
	"docharvest/pkg/storage"
)

// BrowserFactory creates the browser a run drives
type BrowserFactory func(ctx context.Context) (session.Browser, error)

// Summary describes a finished run
type Summary struct {
	Filenames      int
	Downloaded     int
	Fetched        int
	Skipped        int
	Failed         []string
	ArchivePath    string
	ArchiveEntries int
	ReportWritten  bool
	PublishedKey   string
	Duration       time.Duration
}

// Harvester wires session, listing, download and archive steps together
type Harvester struct {
	cfg        *config.Config
	newBrowser BrowserFactory
	sleeper    retry.Sleeper
	logger     logger.Logger
	metrics    *metrics.Metrics
}

// New creates a harvester. A nil factory launches the configured engine.
func New(cfg *config.Config, newBrowser BrowserFactory, log logger.Logger, m *metrics.Metrics) *Harvester {
	if log == nil {
		log = logger.GetLogger()
	}
	if newBrowser == nil {
		newBrowser = func(ctx context.Context) (session.Browser, error) {
			return session.NewBrowser(ctx, &cfg.Browser)
		}
	}
	return &Harvester{
		cfg:        cfg,
		newBrowser: newBrowser,
		sleeper:    retry.TimerSleeper,
		logger:     log,
		metrics:    m,
	}
}

// WithSleeper replaces the timer used by the download engine
func (h *Harvester) WithSleeper(s retry.Sleeper) *Harvester {
	h.sleeper = s
	return h
}

func (h *Harvester) openSessions(ctx context.Context) (*session.Manager, error) {
	browser, err := h.newBrowser(ctx)
	if err != nil {
		return nil, err
	}

	bootstrapURL := h.cfg.Site.ListingURL(h.cfg.Site.BootstrapPage)
	sessions := session.NewManager(browser, bootstrapURL, h.cfg.Browser.NavigationTimeout, h.logger, h.metrics)
	if _, err := sessions.Acquire(ctx); err != nil {
		sessions.Close()
		return nil, err
	}
	return sessions, nil
}

func (h *Harvester) collector(sessions listing.SessionSource) (*listing.Collector, *checkpoint.Manager, error) {
	c := listing.NewCollector(sessions, h.cfg, h.logger, h.metrics)
	if !h.cfg.Checkpoint.Enabled {
		return c, nil, nil
	}

	cp, err := checkpoint.NewManager(h.cfg.CheckpointPath(), h.logger)
	if err != nil {
		return nil, nil, err
	}
	return c.WithCheckpoint(cp), cp, nil
}

// Collect runs only the listing phase
func (h *Harvester) Collect(ctx context.Context) ([]string, error) {
	sessions, err := h.openSessions(ctx)
	if err != nil {
		return nil, err
	}
	defer sessions.Close()

	c, _, err := h.collector(sessions)
	if err != nil {
		return nil, err
	}
	return c.Collect(ctx)
}

// Run performs a full harvest. Download failures are reported in the
// summary; only session, listing and output errors fail the run. When ctx
// ends during downloads the partial work is still archived and ctx's error
// is returned with the summary.
func (h *Harvester) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	cfg := h.cfg

	logger.LogComponentStart(h.logger, "harvester", map[string]interface{}{
		"first_page": cfg.Listing.FirstPage,
		"last_page":  cfg.Listing.LastPage,
		"engine":     cfg.Browser.Engine,
		"output":     cfg.Output.Directory,
	})

	store, err := storage.NewManager(cfg.Output.Directory)
	if err != nil {
		return nil, err
	}

	sessions, err := h.openSessions(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Session bootstrap failed")
		return nil, err
	}
	defer sessions.Close()

	c, cp, err := h.collector(sessions)
	if err != nil {
		return nil, err
	}
	filenames, err := c.Collect(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Listing failed")
		return nil, err
	}
	h.logger.InfoWithFields("Listing complete", map[string]interface{}{"filenames": len(filenames)})

	engine := downloader.NewEngine(sessions, store, downloader.PolicyFromConfig(cfg), cfg.Site, h.logger, h.metrics).
		WithSleeper(h.sleeper)
	result, runErr := engine.Run(ctx, filenames, &downloader.RunState{})

	summary := &Summary{
		Filenames:   len(filenames),
		Downloaded:  len(result.Downloaded),
		Fetched:     result.Fetched,
		Skipped:     result.Skipped,
		Failed:      result.Failed,
		ArchivePath: cfg.Archive.Path,
	}

	summary.ReportWritten, err = archive.WriteFailureReport(result.Failed, cfg.Archive.ReportPath)
	if err != nil {
		return summary, err
	}
	if summary.ReportWritten {
		h.logger.WarnWithFields("Wrote failure report", map[string]interface{}{
			"failed": len(result.Failed),
			"path":   cfg.Archive.ReportPath,
		})
	}

	h.logger.InfoWithFields("Zipping documents", map[string]interface{}{
		"files":   len(result.Downloaded),
		"archive": cfg.Archive.Path,
	})
	summary.ArchiveEntries, err = archive.WriteZip(result.Downloaded, cfg.Archive.Path)
	if err != nil {
		return summary, err
	}
	h.metrics.SetArchiveEntries(summary.ArchiveEntries)

	if cfg.Archive.PublishURL != "" && ctx.Err() == nil {
		key, err := archive.PublishURL(ctx, cfg.Archive.PublishURL, cfg.Archive.Path)
		if err != nil {
			return summary, fmt.Errorf("failed to publish archive: %w", err)
		}
		summary.PublishedKey = key
		h.logger.InfoWithFields("Archive published", map[string]interface{}{
			"bucket": cfg.Archive.PublishURL,
			"key":    key,
		})
	}

	if cp != nil && runErr == nil {
		if err := cp.Delete(); err != nil {
			h.logger.WithError(err).Warn("Failed to remove listing checkpoint")
		}
	}

	if err := h.metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		h.logger.WithError(err).Warn("Failed to write metrics")
	}

	summary.Duration = time.Since(start)
	h.logger.InfoWithFields("Harvest finished", map[string]interface{}{
		"filenames":  summary.Filenames,
		"downloaded": summary.Downloaded,
		"fetched":    summary.Fetched,
		"skipped":    summary.Skipped,
		"failed":     len(summary.Failed),
		"duration":   summary.Duration.Round(time.Second).String(),
	})

	return summary, runErr
}
