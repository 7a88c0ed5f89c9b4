package daemon

import (
	"context"
	"log"
	"sync"
	"time"
)

// watchFunc is a blocking watch against the backend. It returns when
// its context ends or the stream fails.
type watchFunc func(ctx context.Context) error

// subscription owns one live watch. Opening starts a goroutine that
// keeps the watch alive, reconnecting after stream failures; closing
// stops it and waits until the watch has fully released.
type subscription struct {
	name  string
	watch watchFunc
	retry time.Duration
	log   *log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newSubscription(name string, watch watchFunc, retry time.Duration, logger *log.Logger) *subscription {
	return &subscription{name: name, watch: watch, retry: retry, log: logger}
}

// open starts the watch. Opening an already-open subscription is a
// no-op.
func (s *subscription) open(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		for {
			err := s.watch(watchCtx)
			if watchCtx.Err() != nil {
				return
			}
			s.log.Printf("%s watch dropped, reconnecting in %s: %v", s.name, s.retry, err)
			select {
			case <-watchCtx.Done():
				return
			case <-time.After(s.retry):
			}
		}
	}()
}

// close stops the watch and blocks until it has released. Closing a
// closed or never-opened subscription is a no-op.
func (s *subscription) close() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
