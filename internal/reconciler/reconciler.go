package reconciler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nfawbert/switchbridge/internal/entity"
	"github.com/nfawbert/switchbridge/internal/registry"
	"github.com/nfawbert/switchbridge/internal/trigger"
)

// Logger defines the logging interface used by the Reconciler.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder receives per-pass reconciliation counters. Satisfied by
// *influxdb.Client; optional.
type Recorder interface {
	WriteSyncPass(remote, added, removed int)
}

// Registry is the remote action registry the reconciler mirrors.
// Satisfied by *registry.Client.
type Registry interface {
	ListActions(ctx context.Context) (map[string]string, error)
	ActionURL(actionID string) string
	Invoke(ctx context.Context, invokeURL string) (registry.Outcome, error)
}

// Sink receives entity lifecycle and state changes from the reconciler.
// Implementations surface the entities to the host (MQTT, websocket,
// persistence). Sink errors are logged, never propagated: a broken surface
// must not derail reconciliation.
type Sink interface {
	Register(snap entity.Snapshot) error
	Unregister(actionID string) error
	UnregisterAll() error
	SetVisibleState(snap entity.Snapshot) error
}

// Reconciler keeps the local entity set identical to the remote action set.
//
// Each pass fetches the remote registry listing and computes a set diff
// against the local store keyed by action ID. Actions present remotely but
// not locally are created; local entities whose action has disappeared are
// destroyed. Passes are deterministic: both halves of the diff are applied
// in sorted action-ID order, and a pass that cannot fetch the remote
// listing aborts without touching anything.
//
// The reconciler owns the trigger machines. Creating an entity wires a
// machine; destroying one detaches its machine first, so a pending reset or
// in-flight invocation can never resurrect a dead entity.
//
// All public methods are thread-safe. Sync, Restore and Close serialise
// against each other; Activate only touches the machine map.
type Reconciler struct {
	registry   Registry
	store      *entity.Store
	repo       entity.Repository
	sink       Sink
	resetDelay time.Duration
	logger     Logger
	recorder   Recorder

	mu       sync.Mutex
	machines map[string]*trigger.Machine
	closed   bool
}

// New creates a reconciler over the given remote registry, local store,
// persistence repository and host sink. resetDelay is handed to every
// trigger machine the reconciler wires.
func New(reg Registry, store *entity.Store, repo entity.Repository, sink Sink, resetDelay time.Duration) *Reconciler {
	return &Reconciler{
		registry:   reg,
		store:      store,
		repo:       repo,
		sink:       sink,
		resetDelay: resetDelay,
		machines:   make(map[string]*trigger.Machine),
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the reconciler and all machines it wires
// from this point on.
func (r *Reconciler) SetLogger(logger Logger) {
	r.logger = logger
}

// SetRecorder attaches an optional time-series recorder; each completed
// pass writes its counters through it.
func (r *Reconciler) SetRecorder(rec Recorder) {
	r.recorder = rec
}

// Restore loads the persisted entity set into the store and registers it
// with the sink. Call once on startup, before the first Sync, so the host
// sees the last known entity set even while the remote registry is down.
//
// Momentary switches never stay on across a restart: any entity persisted
// mid-pulse is normalised to off.
func (r *Reconciler) Restore(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	entities, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading persisted entities: %w", err)
	}

	for _, e := range entities {
		if e.IsOn() {
			e.SetOn(false)
			if err := r.repo.UpdateState(ctx, e.ActionID, false); err != nil {
				r.logger.Warn("failed to clear stale on state",
					"action_id", e.ActionID, "error", err)
			}
		}

		if err := r.store.Insert(e); err != nil {
			r.logger.Warn("skipping persisted entity", "action_id", e.ActionID, "error", err)
			continue
		}
		r.wireMachine(e)

		if err := r.sink.Register(e.Snapshot()); err != nil {
			r.logger.Warn("sink rejected restored entity",
				"action_id", e.ActionID, "error", err)
		}
	}

	r.logger.Info("entity set restored", "count", r.store.Len())
	return nil
}

// Sync runs one reconciliation pass against the remote registry.
//
// Returns ErrSyncFailed (wrapping the registry error) if the remote listing
// could not be fetched; the local entity set is untouched in that case.
// Failures applying individual additions or removals are logged and the
// pass continues, so one bad entity never starves the rest of the diff.
func (r *Reconciler) Sync(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	syncID := uuid.NewString()

	remote, err := r.registry.ListActions(ctx)
	if err != nil {
		r.logger.Error("failed to fetch remote action set",
			"sync_id", syncID, "error", err)
		return fmt.Errorf("%w: %w", ErrSyncFailed, err)
	}

	toAdd, toRemove := diff(remote, r.store.Keys())

	for _, actionID := range toAdd {
		r.addEntity(ctx, syncID, actionID, remote[actionID])
	}
	for _, actionID := range toRemove {
		r.removeEntity(ctx, syncID, actionID)
	}

	r.logger.Info("reconciliation pass complete",
		"sync_id", syncID,
		"remote", len(remote),
		"added", len(toAdd),
		"removed", len(toRemove))

	if r.recorder != nil {
		r.recorder.WriteSyncPass(len(remote), len(toAdd), len(toRemove))
	}
	return nil
}

// Activate triggers the entity for the given action ID.
// Returns ErrUnknownAction if no local entity carries that ID.
func (r *Reconciler) Activate(actionID string) error {
	r.mu.Lock()
	m, ok := r.machines[actionID]
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAction, actionID)
	}

	m.Activate()
	return nil
}

// Snapshots returns the current entity set sorted by action ID.
func (r *Reconciler) Snapshots() []entity.Snapshot {
	return r.store.Snapshots()
}

// Run resynchronises on a fixed interval until the context is cancelled.
// With a non-positive interval it returns immediately; the startup Sync is
// then the only automatic pass.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("periodic resync enabled", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Sync(ctx); err != nil {
				// Already logged with the pass ID. Keep ticking; the
				// registry being down is the normal failure mode here.
				continue
			}
		}
	}
}

// Close detaches every machine and unregisters all entities from the sink.
// The reconciler cannot be used afterwards.
func (r *Reconciler) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	for _, m := range r.machines {
		m.Detach()
	}
	r.machines = make(map[string]*trigger.Machine)

	if err := r.sink.UnregisterAll(); err != nil {
		r.logger.Warn("sink unregister-all failed", "error", err)
	}

	r.logger.Info("reconciler closed")
	return nil
}

// addEntity creates, persists, wires and registers one entity.
// Caller holds r.mu.
func (r *Reconciler) addEntity(ctx context.Context, syncID, actionID, displayName string) {
	e := entity.New(actionID, displayName, r.registry.ActionURL(actionID))

	if err := r.store.Insert(e); err != nil {
		r.logger.Error("failed to add entity",
			"sync_id", syncID, "action_id", actionID, "error", err)
		return
	}

	if err := r.repo.Create(ctx, e); err != nil {
		r.logger.Warn("failed to persist entity",
			"sync_id", syncID, "action_id", actionID, "error", err)
	}

	r.wireMachine(e)

	if err := r.sink.Register(e.Snapshot()); err != nil {
		r.logger.Warn("sink rejected entity",
			"sync_id", syncID, "action_id", actionID, "error", err)
	}

	r.logger.Info("entity created",
		"sync_id", syncID, "action_id", actionID, "display_name", displayName)
}

// removeEntity detaches, unpersists and unregisters one entity.
// Caller holds r.mu.
func (r *Reconciler) removeEntity(ctx context.Context, syncID, actionID string) {
	// Detach before anything else so a pending reset cannot fire into a
	// half-removed entity.
	if m, ok := r.machines[actionID]; ok {
		m.Detach()
		delete(r.machines, actionID)
	}

	if _, err := r.store.Remove(actionID); err != nil {
		r.logger.Warn("entity already gone from store",
			"sync_id", syncID, "action_id", actionID, "error", err)
	}

	if err := r.repo.Delete(ctx, actionID); err != nil {
		r.logger.Warn("failed to unpersist entity",
			"sync_id", syncID, "action_id", actionID, "error", err)
	}

	if err := r.sink.Unregister(actionID); err != nil {
		r.logger.Warn("sink unregister failed",
			"sync_id", syncID, "action_id", actionID, "error", err)
	}

	r.logger.Info("entity destroyed", "sync_id", syncID, "action_id", actionID)
}

// wireMachine builds the trigger machine for an entity.
// Caller holds r.mu.
func (r *Reconciler) wireMachine(e *entity.Entity) {
	m := trigger.NewMachine(e, r.registry, r.sink, r.resetDelay)
	m.SetLogger(r.logger)
	r.machines[e.ActionID] = m
}

// diff computes the sorted set difference between the remote action map and
// the local action IDs: what to add locally, and what to remove.
func diff(remote map[string]string, local []string) (toAdd, toRemove []string) {
	localSet := make(map[string]struct{}, len(local))
	for _, id := range local {
		localSet[id] = struct{}{}
	}

	for id := range remote {
		if _, ok := localSet[id]; !ok {
			toAdd = append(toAdd, id)
		}
	}
	for _, id := range local {
		if _, ok := remote[id]; !ok {
			toRemove = append(toRemove, id)
		}
	}

	sort.Strings(toAdd)
	sort.Strings(toRemove)
	return toAdd, toRemove
}
