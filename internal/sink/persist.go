package sink

import (
	"context"
	"time"

	"github.com/nfawbert/switchbridge/internal/entity"
)

// persistTimeout bounds each state write; a wedged database must not stall
// a trigger machine's reset path.
const persistTimeout = 5 * time.Second

// StateUpdater is the slice of the entity repository this sink needs.
type StateUpdater interface {
	UpdateState(ctx context.Context, actionID string, on bool) error
}

// PersistSink mirrors visible state changes into the entity repository so
// the last known state survives a restart.
//
// Entity creation and deletion are persisted by the reconciler directly;
// this sink only handles the state column, which changes far more often.
type PersistSink struct {
	repo StateUpdater
}

// NewPersistSink creates a persistence sink over the entity repository.
func NewPersistSink(repo StateUpdater) *PersistSink {
	return &PersistSink{repo: repo}
}

// Register is a no-op; the reconciler persists new entities itself.
func (s *PersistSink) Register(entity.Snapshot) error { return nil }

// Unregister is a no-op; the reconciler unpersists entities itself.
func (s *PersistSink) Unregister(string) error { return nil }

// UnregisterAll is a no-op. The persisted set is deliberately kept on
// shutdown: it seeds the restore pass on the next start.
func (s *PersistSink) UnregisterAll() error { return nil }

// SetVisibleState writes the new state to the repository.
func (s *PersistSink) SetVisibleState(snap entity.Snapshot) error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	return s.repo.UpdateState(ctx, snap.ActionID, snap.IsOn)
}
