package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/vmunix/swiper/internal/content"
	"github.com/vmunix/swiper/internal/memory"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queued and monitored content",
	Long: `Show the queued and monitored content in the memory file.

Reads the file directly, so it works whether or not the agent is running.`,
	Args: cobra.NoArgs,
	RunE: runStatusCmd,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringP("session", "s", "", "Only show content owned by this session")
}

type statusOutput struct {
	Sessions  []memory.SessionRef `json:"sessions"`
	Queued    []content.Record    `json:"queued"`
	Monitored []content.Record    `json:"monitored"`
}

func runStatusCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	session, _ := cmd.Flags().GetString("session")

	store := memory.NewStore(cfg.Memory.Path,
		memory.WithLockTimeout(cfg.Memory.LockTimeout.Duration),
		memory.WithLogger(slog.New(slog.DiscardHandler)))
	mem, err := store.Read(cmd.Context())
	if err != nil {
		return fmt.Errorf("read memory: %w", err)
	}

	out := statusOutput{Sessions: mem.Sessions}
	for _, c := range mem.Queued {
		if session == "" || c.Owner() == session {
			out.Queued = append(out.Queued, c.Record())
		}
	}
	for _, c := range mem.Monitored {
		if session == "" || c.Owner() == session {
			out.Monitored = append(out.Monitored, c.Record())
		}
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(w, out)
	}
	printStatus(w, mem, session, time.Now())
	return nil
}

func printStatus(w io.Writer, mem *memory.Memory, session string, now time.Time) {
	owned := func(c content.Content) bool { return session == "" || c.Owner() == session }

	_, _ = fmt.Fprintf(w, "Sessions: %d\n\n", len(mem.Sessions))

	_, _ = fmt.Fprintln(w, "Queued:")
	n := 0
	for _, c := range mem.Queued {
		if !owned(c) {
			continue
		}
		n++
		_, _ = fmt.Fprintf(w, "  %-40s %s\n", c.Desc(), c.Owner())
	}
	if n == 0 {
		_, _ = fmt.Fprintln(w, "  (none)")
	}

	_, _ = fmt.Fprintln(w, "\nMonitored:")
	n = 0
	for _, c := range mem.Monitored {
		if !owned(c) {
			continue
		}
		n++
		detail := ""
		if coll, ok := c.(*content.Collection); ok {
			detail = content.NextAirsLabel(coll, now)
		}
		_, _ = fmt.Fprintf(w, "  %-40s %-12s %s\n", c.Desc(), c.Owner(), detail)
	}
	if n == 0 {
		_, _ = fmt.Fprintln(w, "  (none)")
	}
}
