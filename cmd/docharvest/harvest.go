package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docharvest/pkg/config"
	"docharvest/pkg/harvester"
	"docharvest/pkg/logger"
	"docharvest/pkg/metrics"
	"docharvest/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	outputDir       string
	archivePath     string
	reportPath      string
	publishURL      string
	firstPage       int
	lastPage        int
	engine          string
	headless        bool
	maxAttempts     int
	resume          bool
	metricsTextfile string
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Collect filenames, download every document and zip the results",
	Long: `Run a full harvest:

  1. open a browser session on the bootstrap listing page
  2. walk the listing pages and collect document filenames
  3. download each document, retrying with backoff and rotating the session
     when the server keeps answering 401
  4. write failed filenames to the failure report and zip the successes

Download failures do not fail the command; they are listed in the report.`,
	Example: `  # Harvest the configured range with a visible browser
  docharvest harvest

  # Headless run over a smaller range
  docharvest harvest --headless --first-page 42 --last-page 50

  # Use plain HTTP sessions and publish the archive to S3
  docharvest harvest --engine http --publish s3://my-bucket?region=us-east-1

  # Continue an interrupted listing walk
  docharvest harvest --resume`,
	Args: cobra.NoArgs,
	RunE: runHarvest,
}

func init() {
	rootCmd.AddCommand(harvestCmd)
	addRunFlags(harvestCmd)

	f := harvestCmd.Flags()
	f.StringVarP(&archivePath, "archive", "a", "", "path of the zip archive")
	f.StringVar(&reportPath, "report", "", "path of the failure report")
	f.StringVar(&publishURL, "publish", "", "bucket URL to upload the archive to (file://, s3://, mem://)")
	f.IntVar(&maxAttempts, "max-attempts", 0, "attempts per document")
	f.StringVar(&metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file after the run")
}

// addRunFlags registers the flags shared by harvest and list
func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&outputDir, "output", "o", "", "directory documents are saved to")
	f.IntVar(&firstPage, "first-page", 0, "first listing page index")
	f.IntVar(&lastPage, "last-page", 0, "last listing page index (inclusive)")
	f.StringVar(&engine, "engine", "", "session engine (rod or http)")
	f.BoolVar(&headless, "headless", false, "run the browser without a window")
	f.BoolVar(&resume, "resume", false, "resume the listing walk from its checkpoint")
}

// changedFlags collects only the flags set on the command line
func changedFlags(cmd *cobra.Command) map[string]interface{} {
	flags := globalFlags()
	if quiet && logLevel == "" {
		flags["log-level"] = "error"
	}

	changed := cmd.Flags().Changed
	set := func(name string, v interface{}) {
		if changed(name) {
			flags[name] = v
		}
	}
	set("output", outputDir)
	set("archive", archivePath)
	set("report", reportPath)
	set("publish", publishURL)
	set("first-page", firstPage)
	set("last-page", lastPage)
	set("engine", engine)
	set("headless", headless)
	set("max-attempts", maxAttempts)
	set("resume", resume)
	set("metrics-textfile", metricsTextfile)
	return flags
}

// prepare loads configuration and initializes logging. Commands whose stdout
// is data pass stderrLogs.
func prepare(cmd *cobra.Command, stderrLogs bool) (*config.Config, error) {
	cfg, err := config.Load(configFile, changedFlags(cmd))
	if err != nil {
		return nil, err
	}
	if noColor {
		cfg.Logging.NoColor = true
	}
	if stderrLogs {
		cfg.Logging.Stderr = true
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runHarvest(cmd *cobra.Command, args []string) error {
	cfg, err := prepare(cmd, false)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	if !quiet {
		ui.PrintBanner()
		ui.PrintInfo("Listing pages", fmt.Sprintf("%d-%d", cfg.Listing.FirstPage, cfg.Listing.LastPage))
		ui.PrintInfo("Output", cfg.Output.Directory)
	}
	logger.WithField("version", version).Info("docharvest starting")

	summary, err := harvester.New(cfg, nil, logger.GetLogger(), metrics.New()).Run(ctx)
	if summary != nil {
		printSummary(summary)
	}
	if errors.Is(err, context.Canceled) {
		ui.PrintWarning("Harvest interrupted")
	}
	return err
}

func printSummary(s *harvester.Summary) {
	ui.PrintHighlight("[HARVEST SUMMARY]")
	ui.PrintInfo("Filenames", s.Filenames)
	ui.PrintInfo("Downloaded", s.Downloaded)
	ui.PrintInfo("Fetched", s.Fetched)
	ui.PrintInfo("Already present", s.Skipped)
	ui.PrintInfo("Archive", fmt.Sprintf("%s (%d files)", s.ArchivePath, s.ArchiveEntries))
	if s.PublishedKey != "" {
		ui.PrintInfo("Published", s.PublishedKey)
	}
	ui.PrintInfo("Duration", s.Duration.Round(time.Second))

	if len(s.Failed) == 0 {
		ui.PrintSuccess("All documents downloaded")
		return
	}
	ui.PrintWarning(fmt.Sprintf("%d documents failed", len(s.Failed)))
	ui.PrintList(s.Failed)
}
