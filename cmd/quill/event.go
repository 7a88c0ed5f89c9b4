package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/quillpad/quill/internal/model"
	"github.com/quillpad/quill/internal/store"
	"github.com/quillpad/quill/internal/ui"
)

var (
	eventAddTitle string
	eventAddWhen  string
	eventAddUntil string
	eventAddAll   bool
	eventListDays int
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Manage calendar events",
}

var eventAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a calendar event",
	Long: `Create a calendar event. Times accept natural language ("tomorrow
at 15:00", "next friday") as well as RFC 3339 timestamps.`,
	Run: func(cmd *cobra.Command, args []string) {
		if eventAddTitle == "" {
			fmt.Fprintf(os.Stderr, "Error: --title is required\n")
			os.Exit(1)
		}
		if eventAddWhen == "" {
			fmt.Fprintf(os.Stderr, "Error: --at is required\n")
			os.Exit(1)
		}

		start := mustParseTime(eventAddWhen)
		e := &model.CalendarEvent{
			Title:   eventAddTitle,
			StartAt: start,
			AllDay:  eventAddAll,
		}
		if eventAddUntil != "" {
			e.EndAt = mustParseTime(eventAddUntil)
		}

		cfg := mustConfig()
		db := mustStore(cfg)
		defer db.Close()
		sessions := loadSessions()
		s := mustSession(sessions)
		e.OwnerUID = s.UID
		e.OwnerEmail = s.Email

		if err := mustWriter(db).CreateEvent(context.Background(), e); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating event: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Created event %s %s at %s\n",
			ui.OK("✓"),
			ui.Accent(fmt.Sprintf("#%d", e.LocalID)),
			e.Title,
			e.StartAt.Format("2006-01-02 15:04"))
	},
}

var eventListCmd = &cobra.Command{
	Use:   "list",
	Short: "List upcoming events",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustConfig()
		db := mustStore(cfg)
		defer db.Close()

		filter := store.EventFilter{
			From:  time.Now().Truncate(24 * time.Hour),
			Until: time.Now().AddDate(0, 0, eventListDays),
		}
		sessions := loadSessions()
		if s := sessions.Current(); s != nil {
			filter.OwnerUID = s.UID
		}

		events, err := db.ListEvents(context.Background(), filter)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing events: %v\n", err)
			os.Exit(1)
		}
		if len(events) == 0 {
			fmt.Printf("No events in the next %d days\n", eventListDays)
			return
		}

		for _, e := range events {
			stamp := e.StartAt.Format("Mon 2006-01-02 15:04")
			if e.AllDay {
				stamp = e.StartAt.Format("Mon 2006-01-02") + " (all day)"
			}
			fmt.Printf("%s %s %s %s\n",
				ui.SyncBadge(string(e.SyncStatus)),
				ui.Accent(fmt.Sprintf("#%d", e.LocalID)),
				stamp,
				e.Title)
		}
		fmt.Printf("\n%s\n", ui.Faint(ui.Count(len(events), "event")))
	},
}

var eventRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete an event",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := mustLocalID(args[0])

		cfg := mustConfig()
		db := mustStore(cfg)
		defer db.Close()

		if err := mustWriter(db).DeleteEvent(context.Background(), id); err != nil {
			fmt.Fprintf(os.Stderr, "Error deleting event: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s Deleted event %s\n", ui.OK("✓"), ui.Accent(fmt.Sprintf("#%d", id)))
	},
}

// mustParseTime accepts natural language or RFC 3339.
func mustParseTime(text string) time.Time {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	if r, err := w.Parse(text, time.Now()); err == nil && r != nil {
		return r.Time
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, text, time.Local); err == nil {
			return t
		}
	}
	fmt.Fprintf(os.Stderr, "Error: could not understand time %q\n", text)
	os.Exit(1)
	return time.Time{}
}

func init() {
	eventAddCmd.Flags().StringVar(&eventAddTitle, "title", "", "event title")
	eventAddCmd.Flags().StringVar(&eventAddWhen, "at", "", "start time (natural language or RFC 3339)")
	eventAddCmd.Flags().StringVar(&eventAddUntil, "until", "", "end time (default one hour after start)")
	eventAddCmd.Flags().BoolVar(&eventAddAll, "all-day", false, "all-day event")
	eventListCmd.Flags().IntVar(&eventListDays, "days", 14, "how many days ahead to list")

	eventCmd.AddCommand(eventAddCmd)
	eventCmd.AddCommand(eventListCmd)
	eventCmd.AddCommand(eventRmCmd)
	rootCmd.AddCommand(eventCmd)
}
