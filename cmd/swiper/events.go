package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vmunix/swiper/internal/events"
	"github.com/vmunix/swiper/internal/migrations"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent download and memory events",
	Args:  cobra.NoArgs,
	RunE:  runEventsCmd,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().IntP("limit", "n", 20, "Number of events to show")
	eventsCmd.Flags().StringP("session", "s", "", "Only show events for this session")
}

func runEventsCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	session, _ := cmd.Flags().GetString("session")
	w := cmd.OutOrStdout()

	if _, err := os.Stat(cfg.Database.Path); errors.Is(err, os.ErrNotExist) {
		_, _ = fmt.Fprintln(w, "No events")
		return nil
	}
	db, err := migrations.Open(cmd.Context(), cfg.Database.Path, slog.New(slog.DiscardHandler))
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	log := events.NewEventLog(db)
	var list []events.RawEvent
	if session != "" {
		list, err = log.ForSession(cmd.Context(), session, "", time.Now().Add(-events.DefaultRetention))
		if len(list) > limit {
			list = list[:limit]
		}
	} else {
		list, err = log.Recent(cmd.Context(), limit)
	}
	if err != nil {
		return fmt.Errorf("failed to fetch events: %w", err)
	}

	if jsonOutput {
		return printJSON(w, list)
	}
	if len(list) == 0 {
		_, _ = fmt.Fprintln(w, "No events")
		return nil
	}

	_, _ = fmt.Fprintf(w, "Recent Events (%d):\n\n", len(list))
	_, _ = fmt.Fprintf(w, "  %-16s %-22s %-12s %s\n", "TIME", "TYPE", "SESSION", "ENTITY")
	_, _ = fmt.Fprintln(w, "  "+strings.Repeat("-", 64))
	for _, e := range list {
		entity := fmt.Sprintf("%s/%d", e.EntityType, e.EntityID)
		_, _ = fmt.Fprintf(w, "  %-16s %-22s %-12s %s\n", humanize.Time(e.OccurredAt), e.EventType, e.SessionID, entity)
	}
	return nil
}
