package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vmunix/swiper/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write an example configuration file",
	Long:  "Writes the example config.toml to path, or to the default location when no path is given.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

var configTestCmd = &cobra.Command{
	Use:   "test [path]",
	Short: "Validate configuration file",
	Long:  "Validates config.toml syntax, required fields, and environment variable substitution without starting the agent.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigTest,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configTestCmd)
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.DefaultPath()
	if len(args) > 0 {
		path = args[0]
	}
	force, _ := cmd.Flags().GetBool("force")

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}
	if err := config.WriteDefault(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func runConfigTest(cmd *cobra.Command, args []string) error {
	var path string
	if len(args) > 0 {
		path = args[0]
	} else {
		var err error
		if path, err = resolveConfigPath(); err != nil {
			return err
		}
	}
	w := cmd.OutOrStdout()

	_, _ = fmt.Fprintf(w, "Validating %s...\n\n", path)

	cfg, err := config.Load(path)
	if err != nil {
		var configErr *config.ConfigError
		if errors.As(err, &configErr) {
			printConfigErrors(w, configErr)
			return fmt.Errorf("configuration invalid")
		}
		return fmt.Errorf("failed to load config: %w", err)
	}

	printConfigSummary(w, cfg)
	_, _ = fmt.Fprintln(w, "\nConfiguration valid!")
	return nil
}

func printConfigErrors(w io.Writer, e *config.ConfigError) {
	if len(e.Missing) > 0 {
		_, _ = fmt.Fprintln(w, "Missing environment variables:")
		for _, m := range e.Missing {
			_, _ = fmt.Fprintf(w, "  - %s\n", m)
		}
		_, _ = fmt.Fprintln(w)
	}

	if len(e.Errors) > 0 {
		_, _ = fmt.Fprintln(w, "Validation errors:")
		for _, err := range e.Errors {
			_, _ = fmt.Fprintf(w, "  - %s\n", err)
		}
		_, _ = fmt.Fprintln(w)
	}
}

func printConfigSummary(w io.Writer, cfg *config.Config) {
	_, _ = fmt.Fprintln(w, "Configuration Summary:")
	_, _ = fmt.Fprintf(w, "  User:        %s (log: %s)\n", cfg.Swiper.User, cfg.Swiper.LogLevel)
	_, _ = fmt.Fprintf(w, "  Downloads:   %d at a time\n", cfg.Swiper.MaxDownloads)
	_, _ = fmt.Fprintf(w, "  Memory:      %s\n", cfg.Memory.Path)
	_, _ = fmt.Fprintf(w, "  Database:    %s\n", cfg.Database.Path)
	_, _ = fmt.Fprintf(w, "  Library:     %s\n", cfg.Library.Root)

	names := make([]string, 0, len(cfg.Indexers))
	for name := range cfg.Indexers {
		names = append(names, name)
	}
	sort.Strings(names)
	_, _ = fmt.Fprintf(w, "  Indexers:    %s\n", strings.Join(names, ", "))
	_, _ = fmt.Fprintf(w, "  Monitor:     daily at %02d:00, %d backoff steps\n", cfg.Monitor.DailyHour, len(cfg.Monitor.Backoff))

	if cfg.Gateway.Enabled {
		_, _ = fmt.Fprintf(w, "  Gateway:     %s\n", cfg.Gateway.URL)
	}
}
