// Package entity holds the local switch entities mirrored from the remote
// action registry.
//
// An Entity binds one remote action (by its stable action ID) to an on/off
// switch the host surfaces display. The Store is the in-memory working set
// owned by the reconciler; the Repository persists entities in SQLite so
// they can be restored before the first reconciliation pass after a
// restart.
package entity
