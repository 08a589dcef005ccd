// Package mqtt provides MQTT client connectivity for switchbridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Topic Scheme
//
// Every switch entity owns three topics under the switchbridge namespace:
//
//	switchbridge/switch/{action_id}/config  retained, switch metadata
//	switchbridge/switch/{action_id}/state   retained, current on/off state
//	switchbridge/switch/{action_id}/set     command, publish here to activate
//
// Service liveness is announced on switchbridge/system/status, retained,
// with the LWT distinguishing a crash from a graceful shutdown.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// React to switch commands from other MQTT clients
//	err = client.Subscribe(mqtt.Topics{}.SwitchSetWildcard(), 1,
//	    func(topic string, payload []byte) error {
//	        actionID, err := mqtt.Topics{}.ParseSwitchSet(topic)
//	        ...
//	    })
package mqtt
