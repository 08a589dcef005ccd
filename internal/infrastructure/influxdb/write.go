package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteSwitchState records a switch state transition.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Each activation produces two points here: on at activation, off at reset.
func (c *Client) WriteSwitchState(actionID string, on bool) {
	if !c.IsConnected() {
		return
	}

	state := 0
	if on {
		state = 1
	}

	point := write.NewPoint(
		"switch_state",
		map[string]string{
			"action_id": actionID,
		},
		map[string]interface{}{
			"on": state,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteLifecycleEvent records an entity appearing or disappearing.
//
// event is "registered" or "unregistered". Useful for auditing how the
// remote action set drifts over time.
func (c *Client) WriteLifecycleEvent(actionID string, event string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"switch_lifecycle",
		map[string]string{
			"action_id": actionID,
			"event":     event,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteSyncPass records the outcome of one reconciliation pass.
func (c *Client) WriteSyncPass(remote, added, removed int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"sync_pass",
		nil,
		map[string]interface{}{
			"remote":  remote,
			"added":   added,
			"removed": removed,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use tags for indexing (low cardinality) and fields for the actual data.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
