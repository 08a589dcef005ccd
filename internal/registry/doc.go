// Package registry is the HTTP client for the remote action registry.
//
// The registry is the authoritative source of the named actions that
// switchbridge mirrors as local switch entities:
//
//	GET  <base>/api/v1/          - list actions (actionID -> display name)
//	POST <base>/api/v1/<action>  - invoke an action
//
// The client is deliberately stateless: no caching, no retries, no
// authentication. The reconciler and trigger machines decide what a failure
// means; the next sync pass or the next activation is the only retry
// mechanism.
package registry
