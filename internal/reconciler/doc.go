// Package reconciler mirrors the remote action registry into the local
// entity set.
//
// A reconciliation pass is a set diff keyed by action ID: remote actions
// without a local entity are created, local entities without a remote
// action are destroyed, and everything else is left alone. Passes run once
// at startup after the persisted set has been restored, optionally on a
// fixed interval, and on demand via the API.
//
// The reconciler is the single owner of entity lifecycle. It wires a
// trigger machine to every entity it creates and detaches the machine
// before destroying the entity, so timers and in-flight invocations from a
// previous life can never touch the host again.
package reconciler
