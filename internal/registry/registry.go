// Package registry owns the set of source adapters: startup and shutdown
// order, cross-adapter fan-out reads, and routing of user actions to the
// adapter that can serve them.
package registry

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/nhle/command-center/internal/model"
	"github.com/nhle/command-center/internal/source"
)

// fetchBranchTimeout bounds each adapter's branch of a fan-out read, so a
// single hung source cannot stall the aggregate call.
const fetchBranchTimeout = 10 * time.Second

// stopTimeout bounds each adapter's shutdown independently.
const stopTimeout = 5 * time.Second

// TaskCreator is implemented by tracker adapters that can create work
// items from a notification.
type TaskCreator interface {
	CreateTask(ctx context.Context, req model.TaskCreateRequest) (map[string]any, error)
}

// AdapterStatus is one adapter's connection state for the status surface.
type AdapterStatus struct {
	Service   model.Source `json:"service"`
	Account   string       `json:"account"`
	Connected bool         `json:"connected"`
}

// Registry holds every configured adapter runner plus the tracker
// adapters that accept task creation.
type Registry struct {
	runners  []*source.Runner
	trackers map[string]TaskCreator
	log      *slog.Logger
}

// New creates an empty registry.
func New(log *slog.Logger) *Registry {
	return &Registry{
		trackers: make(map[string]TaskCreator),
		log:      log,
	}
}

// Add registers an adapter runner.
func (r *Registry) Add(runner *source.Runner) {
	r.runners = append(r.runners, runner)
}

// AddTracker registers a task-creation target under its source name.
func (r *Registry) AddTracker(target string, tc TaskCreator) {
	r.trackers[target] = tc
}

// Runners returns the registered runners.
func (r *Registry) Runners() []*source.Runner {
	return r.runners
}

// StartAll starts every adapter sequentially. A single adapter failing to
// connect is logged and skipped; the rest still start.
func (r *Registry) StartAll(ctx context.Context) {
	for _, runner := range r.runners {
		if err := runner.Start(ctx); err != nil {
			r.log.Error("adapter failed to start",
				"source", string(runner.Source().Type()),
				"account", runner.Source().Account(),
				"error", err)
		}
	}
	r.log.Info("adapters started", "count", len(r.runners))
}

// StopAll stops every adapter concurrently, each bounded by its own
// timeout so one hanging adapter cannot block the rest.
func (r *Registry) StopAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, runner := range r.runners {
		wg.Add(1)
		go func(runner *source.Runner) {
			defer wg.Done()

			stopCtx, cancel := context.WithTimeout(ctx, stopTimeout)
			defer cancel()

			if err := runner.Stop(stopCtx); err != nil {
				r.log.Error("adapter stop failed",
					"source", string(runner.Source().Type()),
					"account", runner.Source().Account(),
					"error", err)
			}
		}(runner)
	}
	wg.Wait()
}

// FetchAllRecent fans FetchRecent out to every adapter concurrently and
// merges the results, newest first, truncated to limit. A failing branch
// is logged and excluded; it never aborts the aggregate.
func (r *Registry) FetchAllRecent(
	ctx context.Context,
	limit int,
) []model.Notification {
	if limit <= 0 {
		limit = 50
	}

	var (
		mu     sync.Mutex
		merged []model.Notification
		wg     sync.WaitGroup
	)

	for _, runner := range r.runners {
		wg.Add(1)
		go func(src source.Source) {
			defer wg.Done()

			branchCtx, cancel := context.WithTimeout(ctx, fetchBranchTimeout)
			defer cancel()

			items, err := src.FetchRecent(branchCtx, limit)
			if err != nil {
				r.log.Error("fetch recent failed",
					"source", string(src.Type()),
					"account", src.Account(),
					"error", err)
				return
			}

			mu.Lock()
			merged = append(merged, items...)
			mu.Unlock()
		}(runner.Source())
	}
	wg.Wait()

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp.After(merged[j].Timestamp)
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// ResolveForReply finds the adapter matching (source, account) exactly.
// It returns a NotFoundError when nothing matches; callers must keep that
// distinct from the unsupported-operation rejection Reply itself can give.
func (r *Registry) ResolveForReply(
	src model.Source,
	account string,
) (source.Source, error) {
	for _, runner := range r.runners {
		s := runner.Source()
		if s.Type() == src && s.Account() == account {
			return s, nil
		}
	}
	return nil, &source.NotFoundError{Source: src, Account: account}
}

// CreateTask routes a task-creation request to the configured tracker.
// An unconfigured target is a capability gap, not a routing miss.
func (r *Registry) CreateTask(
	ctx context.Context,
	req model.TaskCreateRequest,
) (map[string]any, error) {
	tracker, ok := r.trackers[req.Target]
	if !ok {
		return nil, source.ErrUnsupported
	}
	return tracker.CreateTask(ctx, req)
}

// Statuses reports the connection state of every adapter.
func (r *Registry) Statuses() []AdapterStatus {
	statuses := make([]AdapterStatus, 0, len(r.runners))
	for _, runner := range r.runners {
		statuses = append(statuses, AdapterStatus{
			Service:   runner.Source().Type(),
			Account:   runner.Source().Account(),
			Connected: runner.Connected(),
		})
	}
	return statuses
}
