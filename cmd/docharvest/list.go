package main

import (
	"docharvest/pkg/harvester"
	"docharvest/pkg/logger"
	"docharvest/pkg/metrics"
	"docharvest/pkg/ui"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the document filenames found on the listing pages",
	Long: `Walk the listing pages and print every document filename, one per line,
in first-seen order. Nothing is downloaded. Logs go to stderr so the output
can be redirected.`,
	Example: `  docharvest list --first-page 42 --last-page 45 > filenames.txt`,
	Args:    cobra.NoArgs,
	RunE:    runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	addRunFlags(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := prepare(cmd, true)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	names, err := harvester.New(cfg, nil, logger.GetLogger(), metrics.New()).Collect(ctx)
	if err != nil {
		return err
	}
	ui.PrintLines(names)
	return nil
}
