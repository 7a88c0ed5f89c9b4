package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/quillpad/quill/internal/config"
	"github.com/quillpad/quill/internal/daemon"
	"github.com/quillpad/quill/internal/feed"
	"github.com/quillpad/quill/internal/importer"
	"github.com/quillpad/quill/internal/mirror"
	"github.com/quillpad/quill/internal/store"
	"github.com/quillpad/quill/internal/syncer"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background sync daemon",
}

var daemonRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daemon in the foreground",
	Long: `Run the sync daemon until interrupted. The daemon drains the upload
queue, pulls remote changes on an interval, and holds live snapshot
subscriptions while someone is signed in.

With feed.enabled it also serves a local WebSocket feed that clients
subscribe to for change notifications; with import.enabled it watches
the import directory for dropped markdown files.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustConfig()

		logOut := daemonLogOutput(cfg)

		db := mustStore(cfg)
		defer db.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client := mustRemote(ctx, cfg)
		defer client.Close()

		sessions := loadSessions()

		deps := daemon.Deps{
			Sessions:  sessions,
			Flusher:   mirror.NewFlusher(db, client, mirror.FlusherConfig{LogOutput: logOut}),
			Refresher: syncer.New(db, client, logOut),
			Watches:   client,
		}

		var feedServer *feed.Server
		if cfg.Feed.Enabled {
			feedServer = feed.NewServer(feed.Config{
				Port:      cfg.Feed.Port,
				Verifier:  client,
				LogOutput: logOut,
			})
			if err := feedServer.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error starting feed server: %v\n", err)
				os.Exit(1)
			}
			defer feedServer.Stop()
			deps.Notifier = feedServer
			fmt.Printf("Feed listening on %s\n", feedServer.Addr())

			go reportSyncState(ctx, db, feedServer, cfg.Sync.FlushInterval)
		}

		if cfg.Import.Enabled {
			imp := importer.New(cfg.Import.Dir, mirror.NewWriter(db, logOut), sessions, logOut)
			go func() {
				if err := imp.Watch(ctx); err != nil && ctx.Err() == nil {
					fmt.Fprintf(os.Stderr, "Import watcher stopped: %v\n", err)
				}
			}()
			fmt.Printf("Watching %s for markdown imports\n", cfg.Import.Dir)
		}

		d := daemon.New(daemon.Config{
			FlushInterval: cfg.Sync.FlushInterval,
			PullInterval:  cfg.Sync.PullInterval,
			WatchDebounce: cfg.Sync.WatchDebounce,
			WatchRetry:    cfg.Sync.WatchRetry,
			LogOutput:     logOut,
		}, deps)

		if err := d.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

// daemonLogOutput routes daemon logs to the rotating log file when one
// is configured, standard error otherwise.
func daemonLogOutput(cfg *config.Config) io.Writer {
	if cfg.LogPath == "" {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   cfg.LogPath,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     30, // days
		Compress:   true,
	}
}

// reportSyncState pushes the queue depth to feed clients whenever it
// changes.
func reportSyncState(ctx context.Context, db *store.DB, srv *feed.Server, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	last := -1
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pending, err := db.OutboxCount(ctx)
			if err != nil {
				continue
			}
			if pending != last {
				srv.SyncState(pending)
				last = pending
			}
		}
	}
}

func init() {
	daemonCmd.AddCommand(daemonRunCmd)
	rootCmd.AddCommand(daemonCmd)
}
