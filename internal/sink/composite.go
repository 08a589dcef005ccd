package sink

import (
	"errors"

	"github.com/nfawbert/switchbridge/internal/entity"
)

// Sink is one host surface for switch entities.
// Implemented by every sink in this package and by the api package's
// websocket broadcaster.
type Sink interface {
	Register(snap entity.Snapshot) error
	Unregister(actionID string) error
	UnregisterAll() error
	SetVisibleState(snap entity.Snapshot) error
}

// Composite fans every call out to all member sinks.
//
// Members are called in order and a failing member never stops the others;
// the joined errors are returned for the caller to log. The member list is
// fixed at construction.
type Composite struct {
	members []Sink
}

// NewComposite builds a composite over the given members.
// Nil members are skipped so callers can pass optional surfaces directly.
func NewComposite(members ...Sink) *Composite {
	c := &Composite{}
	for _, m := range members {
		if m != nil {
			c.members = append(c.members, m)
		}
	}
	return c
}

// Register announces a new entity on every surface.
func (c *Composite) Register(snap entity.Snapshot) error {
	var errs []error
	for _, m := range c.members {
		if err := m.Register(snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Unregister removes an entity from every surface.
func (c *Composite) Unregister(actionID string) error {
	var errs []error
	for _, m := range c.members {
		if err := m.Unregister(actionID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// UnregisterAll removes every entity from every surface.
func (c *Composite) UnregisterAll() error {
	var errs []error
	for _, m := range c.members {
		if err := m.UnregisterAll(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SetVisibleState pushes a state change to every surface.
func (c *Composite) SetVisibleState(snap entity.Snapshot) error {
	var errs []error
	for _, m := range c.members {
		if err := m.SetVisibleState(snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
