// Package daemon runs the background half of the sync engine: the
// outbox flush loop, periodic cache refreshes, and live snapshot
// subscriptions scoped to the signed-in session.
package daemon

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/quillpad/quill/internal/model"
	"github.com/quillpad/quill/internal/reconcile"
	"github.com/quillpad/quill/internal/session"
)

// Flusher drains queued uploads. *mirror.Flusher satisfies it.
type Flusher interface {
	Flush(ctx context.Context) (int, error)
}

// Refresher pulls remote state into the cache. *syncer.Syncer
// satisfies it.
type Refresher interface {
	Refresh(ctx context.Context, uid string) error
	ApplyNotes(ctx context.Context, notes []*model.Note) error
	ApplyEvents(ctx context.Context, events []*model.CalendarEvent) error
}

// Watches opens live snapshot streams. *remote.Client satisfies it.
type Watches interface {
	WatchNotes(ctx context.Context, uid string, fn func([]*model.Note)) error
	WatchEvents(ctx context.Context, uid string, fn func([]*model.CalendarEvent)) error
}

// Notifier learns when cached data changed so interested parties (the
// live feed, a UI) can re-read.
type Notifier interface {
	DataChanged(kind string)
}

// Config tunes the daemon's loops.
type Config struct {
	// FlushInterval is how often the outbox is drained.
	FlushInterval time.Duration

	// PullInterval is how often the full cache refresh runs.
	PullInterval time.Duration

	// WatchDebounce is the quiet period before a burst of pushed
	// changes produces one notification.
	WatchDebounce time.Duration

	// WatchRetry is the wait before reconnecting a dropped stream.
	WatchRetry time.Duration

	// LogOutput receives daemon logs. Nil means standard error.
	LogOutput io.Writer
}

// DefaultConfig returns the intervals the daemon ships with.
func DefaultConfig() Config {
	return Config{
		FlushInterval: 15 * time.Second,
		PullInterval:  5 * time.Minute,
		WatchDebounce: 500 * time.Millisecond,
		WatchRetry:    30 * time.Second,
	}
}

// Deps are the collaborators the daemon drives. Watches and Notifier
// may be nil; the corresponding features are skipped.
type Deps struct {
	Sessions  *session.Manager
	Flusher   Flusher
	Refresher Refresher
	Watches   Watches
	Notifier  Notifier
}

// Daemon coordinates the background loops. Create with New, run with
// Start, stop by cancelling the context or calling Stop.
type Daemon struct {
	cfg    Config
	deps   Deps
	logger *log.Logger

	debounce *Debouncer

	mu     sync.Mutex
	cancel context.CancelFunc
	subs   []*subscription
	subUID string
	wg     sync.WaitGroup
}

// New creates a daemon. Sessions, Flusher, and Refresher are required.
func New(cfg Config, deps Deps) *Daemon {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}
	if cfg.PullInterval <= 0 {
		cfg.PullInterval = DefaultConfig().PullInterval
	}
	if cfg.WatchDebounce <= 0 {
		cfg.WatchDebounce = DefaultConfig().WatchDebounce
	}
	if cfg.WatchRetry <= 0 {
		cfg.WatchRetry = DefaultConfig().WatchRetry
	}
	logOut := cfg.LogOutput
	if logOut == nil {
		logOut = log.Default().Writer()
	}
	return &Daemon{
		cfg:      cfg,
		deps:     deps,
		logger:   log.New(logOut, "[daemon] ", log.LstdFlags),
		debounce: NewDebouncer(cfg.WatchDebounce),
	}
}

// Start runs the daemon until ctx is cancelled or Stop is called. It
// blocks.
func (d *Daemon) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()

	d.logger.Printf("starting: flush every %s, pull every %s", d.cfg.FlushInterval, d.cfg.PullInterval)

	d.wg.Add(2)
	go d.flushLoop(runCtx)
	go d.pullLoop(runCtx)

	// Live streams follow the session: sign-in opens them, sign-out
	// tears them down.
	d.deps.Sessions.Subscribe(func(s *session.Session) {
		if runCtx.Err() != nil {
			return
		}
		if s == nil {
			d.closeSubscriptions()
			return
		}
		d.openSubscriptions(runCtx, s.UID)
	})
	if s := d.deps.Sessions.Current(); s != nil {
		d.openSubscriptions(runCtx, s.UID)
	}

	<-runCtx.Done()
	d.closeSubscriptions()
	d.wg.Wait()
	d.logger.Printf("stopped")
	return nil
}

// Stop cancels a running daemon. Safe to call more than once.
func (d *Daemon) Stop() {
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (d *Daemon) flushLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !d.deps.Sessions.Active() {
				continue
			}
			done, err := d.deps.Flusher.Flush(ctx)
			if err != nil {
				d.logger.Printf("outbox flush failed: %v", err)
				continue
			}
			if done > 0 {
				d.logger.Printf("flushed %d queued uploads", done)
			}
		}
	}
}

func (d *Daemon) pullLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.PullInterval)
	defer ticker.Stop()

	d.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.refresh(ctx)
		}
	}
}

func (d *Daemon) refresh(ctx context.Context) {
	s := d.deps.Sessions.Current()
	if s == nil {
		return
	}
	err := d.deps.Refresher.Refresh(ctx, s.UID)
	if err == nil {
		return
	}
	var unavailable *reconcile.RemoteUnavailableError
	if errors.As(err, &unavailable) {
		// Degraded to cache; the next pull will catch up.
		d.logger.Printf("refresh degraded to cache: %v", err)
		return
	}
	d.logger.Printf("refresh failed: %v", err)
}

func (d *Daemon) openSubscriptions(ctx context.Context, uid string) {
	if d.deps.Watches == nil {
		return
	}

	d.mu.Lock()
	if len(d.subs) > 0 {
		if d.subUID == uid {
			d.mu.Unlock()
			return
		}
		// A different account is signed in now; its predecessor's
		// streams must release before the new ones open.
		stale := d.subs
		prev := d.subUID
		d.subs = nil
		d.mu.Unlock()
		for _, sub := range stale {
			sub.close()
		}
		d.debounce.Cancel()
		d.logger.Printf("live subscriptions switched away from %s", prev)
		d.mu.Lock()
	}
	defer d.mu.Unlock()
	if len(d.subs) > 0 {
		// Lost a race with a concurrent open.
		return
	}
	d.subUID = uid

	notes := newSubscription("notes", func(ctx context.Context) error {
		return d.deps.Watches.WatchNotes(ctx, uid, func(pushed []*model.Note) {
			if err := d.deps.Refresher.ApplyNotes(ctx, pushed); err != nil {
				d.logger.Printf("failed to cache pushed notes: %v", err)
				return
			}
			d.notify("notes")
		})
	}, d.cfg.WatchRetry, d.logger)

	events := newSubscription("events", func(ctx context.Context) error {
		return d.deps.Watches.WatchEvents(ctx, uid, func(pushed []*model.CalendarEvent) {
			if err := d.deps.Refresher.ApplyEvents(ctx, pushed); err != nil {
				d.logger.Printf("failed to cache pushed events: %v", err)
				return
			}
			d.notify("events")
		})
	}, d.cfg.WatchRetry, d.logger)

	d.subs = []*subscription{notes, events}
	for _, sub := range d.subs {
		sub.open(ctx)
	}
	d.logger.Printf("live subscriptions open for %s", uid)
}

func (d *Daemon) closeSubscriptions() {
	d.mu.Lock()
	subs := d.subs
	d.subs = nil
	d.subUID = ""
	d.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	// Nothing pending may fire after teardown.
	d.debounce.Cancel()
	if len(subs) > 0 {
		d.logger.Printf("live subscriptions closed")
	}
}

// notify debounces change fan-out so a burst of snapshots becomes one
// notification.
func (d *Daemon) notify(kind string) {
	if d.deps.Notifier == nil {
		return
	}
	d.debounce.Trigger(func() {
		d.deps.Notifier.DataChanged(kind)
	})
}
