package reconciler

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/nfawbert/switchbridge/internal/entity"
	"github.com/nfawbert/switchbridge/internal/registry"
)

// =============================================================================
// Test doubles
// =============================================================================

type fakeRegistry struct {
	mu      sync.Mutex
	actions map[string]string
	listErr error
	invoked []string
}

func (f *fakeRegistry) ListActions(_ context.Context) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make(map[string]string, len(f.actions))
	for k, v := range f.actions {
		out[k] = v
	}
	return out, nil
}

func (f *fakeRegistry) ActionURL(actionID string) string {
	return "http://gw.local/api/v1/" + actionID
}

func (f *fakeRegistry) Invoke(_ context.Context, invokeURL string) (registry.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invoked = append(f.invoked, invokeURL)
	return registry.OutcomeOK, nil
}

func (f *fakeRegistry) setActions(actions map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = actions
	f.listErr = nil
}

func (f *fakeRegistry) setListErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

type fakeSink struct {
	mu             sync.Mutex
	registered     []string
	unregistered   []string
	unregisterAlls int
	stateWrites    []entity.Snapshot
	unregisterErr  error
}

func (f *fakeSink) Register(snap entity.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, snap.ActionID)
	return nil
}

func (f *fakeSink) Unregister(actionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unregistered = append(f.unregistered, actionID)
	return f.unregisterErr
}

func (f *fakeSink) UnregisterAll() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unregisterAlls++
	return nil
}

func (f *fakeSink) SetVisibleState(snap entity.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stateWrites = append(f.stateWrites, snap)
	return nil
}

func (f *fakeSink) registeredIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.registered))
	copy(out, f.registered)
	return out
}

func (f *fakeSink) unregisteredIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.unregistered))
	copy(out, f.unregistered)
	return out
}

// fakeRepo is an in-memory entity.Repository.
type fakeRepo struct {
	mu           sync.Mutex
	entities     map[string]*entity.Entity
	stateUpdates map[string]bool
	createErr    error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		entities:     make(map[string]*entity.Entity),
		stateUpdates: make(map[string]bool),
	}
}

func (f *fakeRepo) List(_ context.Context) ([]*entity.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*entity.Entity, 0, len(f.entities))
	for _, e := range f.entities {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeRepo) Create(_ context.Context, e *entity.Entity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.entities[e.ActionID]; ok {
		return entity.ErrEntityExists
	}
	f.entities[e.ActionID] = e
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, actionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entities[actionID]; !ok {
		return entity.ErrEntityNotFound
	}
	delete(f.entities, actionID)
	return nil
}

func (f *fakeRepo) UpdateState(_ context.Context, actionID string, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entities[actionID]; !ok {
		return entity.ErrEntityNotFound
	}
	f.stateUpdates[actionID] = on
	return nil
}

func (f *fakeRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entities)
}

// =============================================================================
// Setup
// =============================================================================

const testResetDelay = 20 * time.Millisecond

func setupReconciler(t *testing.T, actions map[string]string) (*Reconciler, *fakeRegistry, *fakeSink, *fakeRepo) {
	t.Helper()

	reg := &fakeRegistry{actions: actions}
	sink := &fakeSink{}
	repo := newFakeRepo()
	r := New(reg, entity.NewStore(), repo, sink, testResetDelay)
	return r, reg, sink, repo
}

// =============================================================================
// Sync
// =============================================================================

func TestSync_InitialPassAddsAllSorted(t *testing.T) {
	r, _, sink, repo := setupReconciler(t, map[string]string{
		"c3": "Fan",
		"a1": "Lamp",
		"b2": "Blind",
	})

	if err := r.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	want := []string{"a1", "b2", "c3"}
	if got := sink.registeredIDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("registered = %v, want %v (sorted)", got, want)
	}
	if repo.count() != 3 {
		t.Errorf("persisted entities = %d, want 3", repo.count())
	}

	snaps := r.Snapshots()
	if len(snaps) != 3 {
		t.Fatalf("Snapshots() len = %d, want 3", len(snaps))
	}
	if snaps[0].ActionID != "a1" || snaps[0].DisplayName != "Lamp" {
		t.Errorf("first snapshot = %+v, want a1/Lamp", snaps[0])
	}
	if snaps[0].InvokeURL != "http://gw.local/api/v1/a1" {
		t.Errorf("invoke URL = %q", snaps[0].InvokeURL)
	}
	for _, s := range snaps {
		if s.IsOn {
			t.Errorf("new entity %s created on, want off", s.ActionID)
		}
	}
}

func TestSync_Idempotent(t *testing.T) {
	r, _, sink, _ := setupReconciler(t, map[string]string{"a1": "Lamp"})

	if err := r.Sync(context.Background()); err != nil {
		t.Fatalf("first Sync() error = %v", err)
	}
	if err := r.Sync(context.Background()); err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}

	if got := len(sink.registeredIDs()); got != 1 {
		t.Errorf("registered %d times, want 1", got)
	}
	if got := len(sink.unregisteredIDs()); got != 0 {
		t.Errorf("unregistered %d entities on identical sets, want 0", got)
	}
}

type fakeRecorder struct {
	remote, added, removed int
	passes                 int
}

func (f *fakeRecorder) WriteSyncPass(remote, added, removed int) {
	f.remote, f.added, f.removed = remote, added, removed
	f.passes++
}

func TestSync_RecordsPassCounters(t *testing.T) {
	r, _, _, _ := setupReconciler(t, map[string]string{"a1": "Lamp", "a2": "Fan"})
	rec := &fakeRecorder{}
	r.SetRecorder(rec)

	if err := r.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	if rec.passes != 1 {
		t.Fatalf("recorded %d passes, want 1", rec.passes)
	}
	if rec.remote != 2 || rec.added != 2 || rec.removed != 0 {
		t.Errorf("recorded remote=%d added=%d removed=%d, want 2/2/0",
			rec.remote, rec.added, rec.removed)
	}
}

func TestSync_AddsAndRemoves(t *testing.T) {
	r, reg, sink, repo := setupReconciler(t, map[string]string{
		"a1": "Lamp",
		"b2": "Blind",
	})

	if err := r.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	// b2 disappears remotely, d4 appears.
	reg.setActions(map[string]string{"a1": "Lamp", "d4": "Heater"})
	if err := r.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	snaps := r.Snapshots()
	var ids []string
	for _, s := range snaps {
		ids = append(ids, s.ActionID)
	}
	if want := []string{"a1", "d4"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("entity set = %v, want %v", ids, want)
	}
	if got := sink.unregisteredIDs(); !reflect.DeepEqual(got, []string{"b2"}) {
		t.Errorf("unregistered = %v, want [b2]", got)
	}
	if repo.count() != 2 {
		t.Errorf("persisted entities = %d, want 2", repo.count())
	}
}

func TestSync_EmptyRemoteRemovesAll(t *testing.T) {
	r, reg, sink, _ := setupReconciler(t, map[string]string{
		"a1": "Lamp",
		"b2": "Blind",
	})

	if err := r.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	reg.setActions(map[string]string{})
	if err := r.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	if got := len(r.Snapshots()); got != 0 {
		t.Errorf("entity set len = %d after empty remote, want 0", got)
	}
	if got := sink.unregisteredIDs(); !reflect.DeepEqual(got, []string{"a1", "b2"}) {
		t.Errorf("unregistered = %v, want [a1 b2] (sorted)", got)
	}
}

func TestSync_FetchFailureLeavesSetUntouched(t *testing.T) {
	r, reg, sink, _ := setupReconciler(t, map[string]string{"a1": "Lamp"})

	if err := r.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	reg.setListErr(registry.ErrUnreachable)
	err := r.Sync(context.Background())
	if !errors.Is(err, ErrSyncFailed) {
		t.Fatalf("Sync() error = %v, want ErrSyncFailed", err)
	}
	if !errors.Is(err, registry.ErrUnreachable) {
		t.Errorf("Sync() error should wrap the registry error, got %v", err)
	}

	if got := len(r.Snapshots()); got != 1 {
		t.Errorf("entity set len = %d after failed fetch, want 1", got)
	}
	if got := len(sink.unregisteredIDs()); got != 0 {
		t.Errorf("failed fetch caused %d unregisters, want 0", got)
	}
}

func TestSync_SinkFailureDoesNotStopPass(t *testing.T) {
	r, reg, sink, _ := setupReconciler(t, map[string]string{
		"a1": "Lamp",
		"b2": "Blind",
	})

	if err := r.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	sink.unregisterErr = errors.New("surface gone")
	reg.setActions(map[string]string{"c3": "Fan"})
	if err := r.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v, sink failures must not propagate", err)
	}

	snaps := r.Snapshots()
	if len(snaps) != 1 || snaps[0].ActionID != "c3" {
		t.Errorf("entity set = %+v, want just c3", snaps)
	}
}

// =============================================================================
// Activation
// =============================================================================

func TestActivate_TriggersEntity(t *testing.T) {
	r, reg, _, _ := setupReconciler(t, map[string]string{"a1": "Lamp"})

	if err := r.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if err := r.Activate("a1"); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	snaps := r.Snapshots()
	if !snaps[0].IsOn {
		t.Error("entity should be on immediately after activation")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		reg.mu.Lock()
		n := len(reg.invoked)
		reg.mu.Unlock()
		if n == 1 {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("activation never reached the remote registry")
}

func TestActivate_UnknownAction(t *testing.T) {
	r, _, _, _ := setupReconciler(t, map[string]string{})

	err := r.Activate("ghost")
	if !errors.Is(err, ErrUnknownAction) {
		t.Errorf("Activate(ghost) error = %v, want ErrUnknownAction", err)
	}
}

func TestActivate_AfterRemoval(t *testing.T) {
	r, reg, _, _ := setupReconciler(t, map[string]string{"a1": "Lamp"})

	if err := r.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	reg.setActions(map[string]string{})
	if err := r.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	if err := r.Activate("a1"); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("Activate() after removal = %v, want ErrUnknownAction", err)
	}
}

// =============================================================================
// Restore
// =============================================================================

func TestRestore_PopulatesStoreBeforeSync(t *testing.T) {
	r, _, sink, repo := setupReconciler(t, nil)

	repo.entities["a1"] = entity.New("a1", "Lamp", "http://gw.local/api/v1/a1")
	repo.entities["b2"] = entity.New("b2", "Blind", "http://gw.local/api/v1/b2")

	if err := r.Restore(context.Background()); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	if got := len(r.Snapshots()); got != 2 {
		t.Errorf("entity set len = %d after restore, want 2", got)
	}
	if got := len(sink.registeredIDs()); got != 2 {
		t.Errorf("registered %d entities, want 2", got)
	}

	// Restored entities are triggerable before any sync has run.
	if err := r.Activate("a1"); err != nil {
		t.Errorf("Activate() on restored entity error = %v", err)
	}
}

func TestRestore_ClearsStaleOnState(t *testing.T) {
	r, _, _, repo := setupReconciler(t, nil)

	e := entity.New("a1", "Lamp", "http://gw.local/api/v1/a1")
	e.SetOn(true)
	repo.entities["a1"] = e

	if err := r.Restore(context.Background()); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	snaps := r.Snapshots()
	if snaps[0].IsOn {
		t.Error("restored entity still on, want normalised to off")
	}
	repo.mu.Lock()
	on, updated := repo.stateUpdates["a1"]
	repo.mu.Unlock()
	if !updated || on {
		t.Error("stale on state was not cleared in the repository")
	}
}

func TestRestore_ThenSyncDiffsAgainstRestoredSet(t *testing.T) {
	r, reg, sink, repo := setupReconciler(t, map[string]string{
		"b2": "Blind",
		"c3": "Fan",
	})

	repo.entities["a1"] = entity.New("a1", "Lamp", "http://gw.local/api/v1/a1")
	repo.entities["b2"] = entity.New("b2", "Blind", "http://gw.local/api/v1/b2")

	if err := r.Restore(context.Background()); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if err := r.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	snaps := r.Snapshots()
	var ids []string
	for _, s := range snaps {
		ids = append(ids, s.ActionID)
	}
	if want := []string{"b2", "c3"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("entity set = %v, want %v", ids, want)
	}
	if got := sink.unregisteredIDs(); !reflect.DeepEqual(got, []string{"a1"}) {
		t.Errorf("unregistered = %v, want [a1]", got)
	}
	_ = reg
}

// =============================================================================
// Close
// =============================================================================

func TestClose(t *testing.T) {
	r, _, sink, _ := setupReconciler(t, map[string]string{"a1": "Lamp"})

	if err := r.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	sink.mu.Lock()
	alls := sink.unregisterAlls
	sink.mu.Unlock()
	if alls != 1 {
		t.Errorf("UnregisterAll called %d times, want 1", alls)
	}

	if err := r.Sync(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Sync() after Close = %v, want ErrClosed", err)
	}
	if err := r.Activate("a1"); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("Activate() after Close = %v, want ErrUnknownAction", err)
	}

	// Close is idempotent.
	if err := r.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

// =============================================================================
// diff
// =============================================================================

func TestDiff(t *testing.T) {
	tests := []struct {
		name       string
		remote     map[string]string
		local      []string
		wantAdd    []string
		wantRemove []string
	}{
		{
			name:    "all new",
			remote:  map[string]string{"b": "B", "a": "A"},
			local:   nil,
			wantAdd: []string{"a", "b"},
		},
		{
			name:       "all gone",
			remote:     map[string]string{},
			local:      []string{"b", "a"},
			wantRemove: []string{"a", "b"},
		},
		{
			name:   "identical",
			remote: map[string]string{"a": "A", "b": "B"},
			local:  []string{"a", "b"},
		},
		{
			name:       "mixed",
			remote:     map[string]string{"a": "A", "c": "C"},
			local:      []string{"a", "b"},
			wantAdd:    []string{"c"},
			wantRemove: []string{"b"},
		},
		{
			name:   "both empty",
			remote: map[string]string{},
			local:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotAdd, gotRemove := diff(tt.remote, tt.local)
			if !reflect.DeepEqual(gotAdd, tt.wantAdd) {
				t.Errorf("toAdd = %v, want %v", gotAdd, tt.wantAdd)
			}
			if !reflect.DeepEqual(gotRemove, tt.wantRemove) {
				t.Errorf("toRemove = %v, want %v", gotRemove, tt.wantRemove)
			}
		})
	}
}
