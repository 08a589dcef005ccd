package sink

import (
	"github.com/nfawbert/switchbridge/internal/entity"
)

// Recorder is the slice of the InfluxDB client this sink needs.
// Satisfied by *influxdb.Client.
type Recorder interface {
	WriteSwitchState(actionID string, on bool)
	WriteLifecycleEvent(actionID string, event string)
}

// HistorySink records state transitions and lifecycle events as time-series
// points. Writes are batched and non-blocking, so this sink never returns
// an error; delivery failures surface through the InfluxDB client's error
// callback instead.
type HistorySink struct {
	recorder Recorder
}

// NewHistorySink creates a history sink over a connected recorder.
func NewHistorySink(recorder Recorder) *HistorySink {
	return &HistorySink{recorder: recorder}
}

// Register records the entity appearing.
func (s *HistorySink) Register(snap entity.Snapshot) error {
	s.recorder.WriteLifecycleEvent(snap.ActionID, "registered")
	return nil
}

// Unregister records the entity disappearing.
func (s *HistorySink) Unregister(actionID string) error {
	s.recorder.WriteLifecycleEvent(actionID, "unregistered")
	return nil
}

// UnregisterAll is a no-op; shutdown is not an entity lifecycle event.
func (s *HistorySink) UnregisterAll() error { return nil }

// SetVisibleState records the state transition.
func (s *HistorySink) SetVisibleState(snap entity.Snapshot) error {
	s.recorder.WriteSwitchState(snap.ActionID, snap.IsOn)
	return nil
}
