// Package influxdb provides InfluxDB connectivity for switchbridge.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health monitoring.
//
// # Purpose
//
// This package handles time-series history for:
//   - Switch state transitions (on at activation, off at reset)
//   - Entity lifecycle events as the remote action set drifts
//   - Reconciliation pass summaries
//
// # Error Handling
//
// Write operations are non-blocking; batch errors are delivered via the
// SetOnError callback. Connection and health check errors are returned
// directly.
package influxdb
