package source

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nhle/command-center/internal/model"
)

// reconnectDelay is the fixed wait between a listen failure and the next
// connection attempt. Deliberately a flat delay, not exponential backoff.
const reconnectDelay = 5 * time.Second

// connectTimeout bounds a single Connect attempt.
const connectTimeout = 30 * time.Second

// Persister is the slice of the store the runner needs to emit.
type Persister interface {
	Upsert(ctx context.Context, n model.Notification) error
}

// Broadcaster is the slice of the hub the runner needs to emit.
type Broadcaster interface {
	SendNotification(n model.Notification)
	SendConnectionStatus(source model.Source, account string, connected bool)
}

// Runner owns the lifecycle of a single source adapter: connect, run the
// listen loop as a background goroutine, recover from transient failures
// with a fixed delay, and stop cleanly. State machine:
//
//	Stopped -> Connecting -> Running <-> Backoff -> Connecting -> ... -> Stopped
type Runner struct {
	src   Source
	store Persister
	hub   Broadcaster
	log   *slog.Logger

	// delay is reconnectDelay unless overridden in tests.
	delay time.Duration

	mu        sync.Mutex
	running   bool
	connected bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewRunner wraps a source with its lifecycle management.
func NewRunner(src Source, store Persister, hub Broadcaster, log *slog.Logger) *Runner {
	return &Runner{
		src:   src,
		store: store,
		hub:   hub,
		log: log.With(
			"source", string(src.Type()),
			"account", src.Account(),
		),
		delay: reconnectDelay,
	}
}

// Source returns the wrapped adapter.
func (r *Runner) Source() Source { return r.src }

// Connected reports whether the adapter currently holds a live session.
func (r *Runner) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

// Start connects the adapter and, on success, spawns the listen loop.
// A connection failure leaves the runner stopped and broadcasts
// connection_status=false; it is not retried until the next Start.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	err := r.src.Connect(connectCtx)
	cancel()
	if err != nil {
		r.setConnected(false)
		r.log.Error("connection failed", "error", err)
		return err
	}

	loopCtx, loopCancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	r.mu.Lock()
	r.running = true
	r.cancel = loopCancel
	r.done = done
	r.mu.Unlock()

	r.setConnected(true)
	r.log.Info("connected")

	go r.run(loopCtx, done)
	return nil
}

// Stop cancels the listen loop, waits for it to exit (bounded by ctx),
// then disconnects. No vendor call is in flight once Stop returns.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	cancel := r.cancel
	done := r.done
	r.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		r.log.Warn("listen loop did not stop in time", "error", ctx.Err())
	}

	err := r.src.Disconnect(ctx)
	r.setConnected(false)
	return err
}

// run drives the listen loop with auto-reconnect until cancelled. A
// failure inside Listen never terminates the adapter: it is reported as a
// connection_status=false event, the fixed delay is observed, and the
// session is re-established.
func (r *Runner) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		err := r.src.Listen(ctx, r.emit)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			r.log.Error("listen failed", "error", err)
		}
		r.setConnected(false)

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.delay):
		}

		r.log.Info("reconnecting")
		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		err = r.src.Connect(connectCtx)
		cancel()
		if err != nil {
			// Next iteration's Listen fails fast and we land back
			// here after another delay.
			r.log.Error("reconnect failed", "error", err)
			continue
		}
		r.setConnected(true)
	}
}

// emit persists a notification, then broadcasts it. The stored row is the
// source of truth: if the upsert fails the event is logged and dropped
// rather than broadcast in a state the client could never reload.
func (r *Runner) emit(ctx context.Context, n model.Notification) {
	if err := r.store.Upsert(ctx, n); err != nil {
		r.log.Error("persisting notification failed",
			"source_id", n.SourceID, "error", err)
		return
	}
	r.hub.SendNotification(n)
}

// setConnected records the connection state and broadcasts the transition.
func (r *Runner) setConnected(connected bool) {
	r.mu.Lock()
	changed := r.connected != connected
	r.connected = connected
	r.mu.Unlock()

	if changed || !connected {
		r.hub.SendConnectionStatus(r.src.Type(), r.src.Account(), connected)
	}
}
