// Package sink contains the host surfaces that entity lifecycle and state
// changes are pushed to.
//
// Every sink implements the same four operations: Register, Unregister,
// UnregisterAll and SetVisibleState. The composite sink fans a call out to
// every configured surface, so the reconciler and trigger machines talk to
// exactly one sink regardless of how many surfaces are enabled:
//
//   - MQTT: retained config/state topics plus a command subscription
//   - Persistence: mirrors visible state into SQLite for restart recovery
//   - History: switch transitions and lifecycle events into InfluxDB
//
// The websocket broadcaster in the api package is a fourth surface, added
// to the composite at wiring time.
package sink
