package trigger

import (
	"context"
	"sync"
	"time"

	"github.com/nfawbert/switchbridge/internal/entity"
	"github.com/nfawbert/switchbridge/internal/registry"
)

// Logger defines the logging interface used by the Machine.
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

// Invoker triggers the remote action behind an invocation URL.
// Satisfied by *registry.Client.
type Invoker interface {
	Invoke(ctx context.Context, invokeURL string) (registry.Outcome, error)
}

// StateWriter pushes an entity's visible state to the host surfaces.
// This is the narrow slice of the host entity sink the machine needs.
type StateWriter interface {
	SetVisibleState(snap entity.Snapshot) error
}

// Machine is the trigger state machine for a single entity.
//
// An activation flips the switch on immediately, then does two independent
// things: schedules an unconditional reset to off after a fixed delay, and
// invokes the remote action in the background. The invocation outcome never
// alters the visible state; it only changes what gets logged. The host UI
// models the entity as a momentary button, so the timed reset always wins.
//
// The machine holds the entity handle captured at wiring time. Once
// Detach() has been called (the entity was destroyed by a reconciliation
// pass), any late reset or invocation outcome is discarded without touching
// the sink.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Machine struct {
	entity     *entity.Entity
	invoker    Invoker
	sink       StateWriter
	resetDelay time.Duration
	logger     Logger

	mu         sync.Mutex
	resetTimer *time.Timer // at most one outstanding reset per entity
	resetGen   uint64      // bumped on every activation and detach
	detached   bool
}

// NewMachine wires a trigger state machine to an entity.
//
// Parameters:
//   - e: The entity this machine owns the visible state of
//   - invoker: Remote registry client (or test double)
//   - sink: Host surface to push visible state to
//   - resetDelay: How long the switch stays on after an activation
func NewMachine(e *entity.Entity, invoker Invoker, sink StateWriter, resetDelay time.Duration) *Machine {
	return &Machine{
		entity:     e,
		invoker:    invoker,
		sink:       sink,
		resetDelay: resetDelay,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the machine.
func (m *Machine) SetLogger(logger Logger) {
	m.logger = logger
}

// Activate handles an activation signal from the host.
//
// It returns as soon as the switch is flipped on and the reset is
// scheduled; the caller is never blocked on the remote call. Activating
// while a reset is already pending restarts the timer rather than stacking
// a second one.
func (m *Machine) Activate() {
	m.mu.Lock()
	if m.detached {
		m.mu.Unlock()
		m.logger.Debug("activation ignored for destroyed entity", "action_id", m.entity.ActionID)
		return
	}

	m.entity.SetOn(true)

	if m.resetTimer != nil {
		m.resetTimer.Stop()
	}
	// Stop() cannot unschedule a callback that has already fired and is
	// waiting on the mutex, so each reset carries the generation it was
	// armed under and a stale one gives up instead of turning the switch
	// back off.
	m.resetGen++
	gen := m.resetGen
	m.resetTimer = time.AfterFunc(m.resetDelay, func() { m.reset(gen) })
	m.mu.Unlock()

	if err := m.sink.SetVisibleState(m.entity.Snapshot()); err != nil {
		m.logger.Warn("failed to push switch state", "action_id", m.entity.ActionID, "error", err)
	}

	m.logger.Debug("switch activated", "action_id", m.entity.ActionID)

	// The invocation races the reset timer; neither waits for the other.
	// No cancellation: once started it runs to completion or failure.
	go m.invoke(context.Background())
}

// Pending reports whether a reset timer is currently outstanding.
func (m *Machine) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resetTimer != nil
}

// Detach permanently stops the machine.
//
// Called when the entity is destroyed. Any pending reset is cancelled and
// any in-flight invocation outcome will be discarded instead of written
// back through the sink.
func (m *Machine) Detach() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.detached = true
	m.resetGen++
	if m.resetTimer != nil {
		m.resetTimer.Stop()
		m.resetTimer = nil
	}
}

// reset fires when the reset timer elapses: the switch goes back off
// unconditionally, whatever the remote call did or is still doing. A reset
// whose generation has been superseded by a newer activation or a detach is
// stale and must not touch the entity or the timer bookkeeping.
func (m *Machine) reset(gen uint64) {
	m.mu.Lock()
	if m.detached || gen != m.resetGen {
		m.mu.Unlock()
		return
	}
	m.resetTimer = nil
	m.mu.Unlock()

	m.entity.SetOn(false)

	if err := m.sink.SetVisibleState(m.entity.Snapshot()); err != nil {
		m.logger.Warn("failed to push switch reset", "action_id", m.entity.ActionID, "error", err)
	}

	m.logger.Debug("switch reset", "action_id", m.entity.ActionID)
}

// invoke performs the remote call and logs its outcome.
// The outcome never feeds back into the visible state.
func (m *Machine) invoke(ctx context.Context) {
	outcome, err := m.invoker.Invoke(ctx, m.entity.InvokeURL)

	m.mu.Lock()
	detached := m.detached
	m.mu.Unlock()
	if detached {
		m.logger.Debug("discarding invocation outcome for destroyed entity",
			"action_id", m.entity.ActionID)
		return
	}

	switch {
	case err != nil:
		m.logger.Error("failed to invoke remote action",
			"action_id", m.entity.ActionID,
			"display_name", m.entity.DisplayName,
			"error", err,
		)
	case outcome == registry.OutcomeOK:
		m.logger.Info("remote action invoked",
			"action_id", m.entity.ActionID,
			"display_name", m.entity.DisplayName,
		)
	default:
		m.logger.Error("remote action reported failure, inspect the remote service",
			"action_id", m.entity.ActionID,
			"display_name", m.entity.DisplayName,
		)
	}
}
