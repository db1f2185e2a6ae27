package main

import (
	"fmt"
	"os"

	"docharvest/pkg/config"
	"docharvest/pkg/ui"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage docharvest configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (DOCHARVEST_*)
  - Configuration file
  - Default values (lowest priority)`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to a file",
	Long: `Write the default configuration, with every option, to 'docharvest.yaml'
unless a different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = "docharvest.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Point site.listing_url_template and site.file_base_url at your listing")
	fmt.Println("2. Run 'docharvest config validate' to check the configuration")
	fmt.Println("3. Start with 'docharvest harvest'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, globalFlags())
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, globalFlags())
	if err != nil {
		return err
	}

	var warnings []string
	if cfg.Browser.Engine == "http" {
		warnings = append(warnings, "http engine does not run page scripts; listings rendered client-side will look empty")
	}
	if cfg.Checkpoint.Enabled && cfg.Checkpoint.Path == "" {
		warnings = append(warnings, "checkpoint stored inside the output directory: "+cfg.CheckpointPath())
	}
	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings")
		ui.PrintList(warnings)
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Listing: %s (pages %d-%d)\n", cfg.Site.ListingURLTemplate, cfg.Listing.FirstPage, cfg.Listing.LastPage)
	fmt.Printf("  Files: %s*%s\n", cfg.Site.FileBaseURL, cfg.Site.Extension)
	fmt.Printf("  Engine: %s (headless: %t)\n", cfg.Browser.Engine, cfg.Browser.Headless)
	fmt.Printf("  Retries: %d attempts, rotate every %d files\n", cfg.Retry.MaxAttempts, cfg.Retry.RotateEvery)
	fmt.Printf("  Output: %s -> %s\n", cfg.Output.Directory, cfg.Archive.Path)
	return nil
}
