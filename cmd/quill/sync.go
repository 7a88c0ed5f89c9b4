package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quillpad/quill/internal/mirror"
	"github.com/quillpad/quill/internal/model"
	"github.com/quillpad/quill/internal/reconcile"
	"github.com/quillpad/quill/internal/store"
	"github.com/quillpad/quill/internal/syncer"
	"github.com/quillpad/quill/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the local cache with the backend",
}

var syncNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Run one sync pass immediately",
	Long: `Pull remote changes into the local cache, then upload any queued
local changes. Normally the daemon does this continuously; 'sync now'
is for one-shot use without a running daemon.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustConfig()
		db := mustStore(cfg)
		defer db.Close()

		sessions := loadSessions()
		sess := mustSession(sessions)

		ctx := context.Background()
		client := mustRemote(ctx, cfg)
		defer client.Close()

		sy := syncer.New(db, client, os.Stderr)
		if err := sy.Refresh(ctx, sess.UID); err != nil {
			var unavailable *reconcile.RemoteUnavailableError
			if errors.As(err, &unavailable) {
				fmt.Printf("%s Backend unreachable, serving cached data (%v)\n",
					ui.Warn("!"), unavailable.Err)
			} else {
				fmt.Fprintf(os.Stderr, "Error refreshing from backend: %v\n", err)
				os.Exit(1)
			}
		} else {
			fmt.Printf("%s Pulled remote changes\n", ui.OK("✓"))
		}

		flusher := mirror.NewFlusher(db, client, mirror.FlusherConfig{LogOutput: os.Stderr})
		done, err := flusher.Flush(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error uploading queued changes: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s Uploaded %s\n", ui.OK("✓"), ui.Count(done, "queued change"))

		remaining, err := db.OutboxCount(ctx)
		if err == nil && remaining > 0 {
			fmt.Printf("%s %s still queued (will retry)\n", ui.Warn("!"), ui.Count(remaining, "change"))
		}
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync state of the local cache",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustConfig()
		db := mustStore(cfg)
		defer db.Close()

		ctx := context.Background()
		sessions := loadSessions()

		if s := sessions.Current(); s != nil {
			fmt.Printf("Signed in as %s\n", ui.Accent(s.Email))
		} else {
			fmt.Println(ui.Faint("Signed out"))
		}
		if cfg.RemoteEnabled() {
			fmt.Printf("Backend: %s\n", cfg.Remote.ProjectID)
		} else {
			fmt.Println(ui.Faint("Backend: not configured"))
		}

		pending, err := db.OutboxCount(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading outbox: %v\n", err)
			os.Exit(1)
		}
		if pending == 0 {
			fmt.Printf("Queue: %s\n", ui.OK("empty"))
		} else {
			fmt.Printf("Queue: %s waiting\n", ui.Count(pending, "upload"))
		}

		fmt.Println()
		kinds := []struct {
			kind store.Kind
			noun string
		}{
			{store.KindNote, "note"},
			{store.KindEvent, "event"},
			{store.KindTag, "tag"},
			{store.KindFolder, "folder"},
		}
		for _, k := range kinds {
			counts, err := db.SyncStateCounts(ctx, k.kind)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error counting %ss: %v\n", k.noun, err)
				os.Exit(1)
			}
			total := 0
			for _, n := range counts {
				total += n
			}
			line := fmt.Sprintf("%-8s %s", k.noun+"s:", ui.Count(total, k.noun))
			if n := counts[string(model.SyncStatePending)]; n > 0 {
				line += ui.Faint(fmt.Sprintf("  %d pending", n))
			}
			if n := counts[string(model.SyncStateError)]; n > 0 {
				line += ui.Err(fmt.Sprintf("  %d failed", n))
			}
			fmt.Println(line)
		}

		// Tombstones still waiting on (or abandoned by) a remote delete
		// keep suppressing their documents on pulls.
		suppressed := 0
		for _, k := range kinds {
			dead, err := db.Tombstoned(ctx, k.kind)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading tombstones: %v\n", err)
				os.Exit(1)
			}
			suppressed += len(dead)
		}
		if suppressed > 0 {
			fmt.Printf("%s %s pending remote confirmation\n",
				ui.Warn("!"), ui.Count(suppressed, "deletion"))
		}
	},
}

func init() {
	syncCmd.AddCommand(syncNowCmd)
	syncCmd.AddCommand(syncStatusCmd)
	rootCmd.AddCommand(syncCmd)
}
