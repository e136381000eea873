package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vmunix/swiper/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the agent",
	Long: `Run the agent until interrupted.

The terminal user chats on stdin and stdout unless --no-terminal is given.
Chat users are reached through the gateway when [gateway] is enabled.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("no-terminal", false, "Do not read commands from stdin")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	noTerminal, _ := cmd.Flags().GetBool("no-terminal")

	// Logs go to stderr so they do not interleave with replies.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Swiper.LogLevel),
	}))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []server.Option
	if !noTerminal {
		opts = append(opts, server.WithTerminal(cmd.InOrStdin(), cmd.OutOrStdout()))
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "swiper %s - type \"help\" for commands, \"quit\" to exit\n", version)
	}
	if err := server.NewRunner(cfg, logger, opts...).Run(ctx); err != nil {
		return err
	}
	logger.Info("swiper stopped")
	return nil
}
