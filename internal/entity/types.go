package entity

import (
	"fmt"
	"sync"
)

// Entity is the local stateful representation of one switch bound to a
// remote action.
//
// ActionID is the sole correlation key with the remote action set and is
// immutable after creation, as is InvokeURL, which is derived from the
// registry base URL plus the action ID when the entity is built. If the
// remote registry ever reassigns a name to a different key, the old entity
// is destroyed and a new one created; there is no in-place rename.
//
// The visible on/off state is only ever written by the entity's own trigger
// machine; everything else (API listing, sinks) reads it. A small internal
// mutex covers that single writer / many readers pattern.
type Entity struct {
	// ActionID is the stable identifier of the remote action.
	ActionID string `json:"action_id"`

	// DisplayName is shown to the operator; set at creation from the
	// action's display name and not refreshed afterwards.
	DisplayName string `json:"display_name"`

	// InvokeURL is the full URL POSTed to when the switch is activated.
	InvokeURL string `json:"invoke_url"`

	// on is the visible/reported state. Guarded by mu.
	on bool
	mu sync.RWMutex
}

// New builds an entity for a freshly discovered remote action.
// New entities always start switched off.
func New(actionID, displayName, invokeURL string) *Entity {
	return &Entity{
		ActionID:    actionID,
		DisplayName: displayName,
		InvokeURL:   invokeURL,
	}
}

// Validate checks that the entity's immutable fields are usable.
func (e *Entity) Validate() error {
	if e.ActionID == "" {
		return fmt.Errorf("%w: action id is empty", ErrInvalidEntity)
	}
	if e.InvokeURL == "" {
		return fmt.Errorf("%w: invoke url is empty", ErrInvalidEntity)
	}
	return nil
}

// IsOn reports the current visible state.
func (e *Entity) IsOn() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.on
}

// SetOn updates the visible state. Called only by the entity's trigger
// machine.
func (e *Entity) SetOn(on bool) {
	e.mu.Lock()
	e.on = on
	e.mu.Unlock()
}

// Snapshot is a point-in-time, copyable view of an entity for API responses
// and sink payloads.
type Snapshot struct {
	ActionID    string `json:"action_id"`
	DisplayName string `json:"display_name"`
	InvokeURL   string `json:"invoke_url"`
	IsOn        bool   `json:"is_on"`
}

// Snapshot returns a copy of the entity's current state.
func (e *Entity) Snapshot() Snapshot {
	return Snapshot{
		ActionID:    e.ActionID,
		DisplayName: e.DisplayName,
		InvokeURL:   e.InvokeURL,
		IsOn:        e.IsOn(),
	}
}
