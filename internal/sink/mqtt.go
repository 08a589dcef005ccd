package sink

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nfawbert/switchbridge/internal/entity"
	"github.com/nfawbert/switchbridge/internal/infrastructure/mqtt"
)

// Publisher is the slice of the MQTT client this sink needs.
// Satisfied by *mqtt.Client.
type Publisher interface {
	PublishRetained(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// MQTTSink surfaces switch entities as retained MQTT topics.
//
// Registration publishes the switch metadata to the config topic and the
// current state to the state topic, both retained, so late subscribers see
// the full entity set immediately. Unregistration clears both retained
// messages by publishing empty payloads.
type MQTTSink struct {
	client Publisher
	topics mqtt.Topics

	// registered tracks live action IDs for UnregisterAll.
	mu         sync.Mutex
	registered map[string]struct{}
}

// switchConfig is the payload on the retained config topic.
type switchConfig struct {
	ActionID     string `json:"action_id"`
	DisplayName  string `json:"display_name"`
	CommandTopic string `json:"command_topic"`
	StateTopic   string `json:"state_topic"`
}

// switchState is the payload on the retained state topic.
type switchState struct {
	ActionID  string `json:"action_id"`
	On        bool   `json:"on"`
	Timestamp string `json:"timestamp"`
}

// NewMQTTSink creates an MQTT sink over a connected client.
func NewMQTTSink(client Publisher) *MQTTSink {
	return &MQTTSink{
		client:     client,
		registered: make(map[string]struct{}),
	}
}

// Listen subscribes to the switch command topics and calls activate for
// each command received. Call once after the sink is wired; the
// subscription survives reconnects.
func (s *MQTTSink) Listen(activate func(actionID string) error) error {
	return s.client.Subscribe(s.topics.SwitchSetWildcard(), 1, func(topic string, _ []byte) error {
		actionID, err := s.topics.ParseSwitchSet(topic)
		if err != nil {
			return err
		}
		return activate(actionID)
	})
}

// Register publishes the switch metadata and initial state, retained.
func (s *MQTTSink) Register(snap entity.Snapshot) error {
	if err := mqtt.ValidateActionID(snap.ActionID); err != nil {
		return err
	}

	cfg := switchConfig{
		ActionID:     snap.ActionID,
		DisplayName:  snap.DisplayName,
		CommandTopic: s.topics.SwitchSet(snap.ActionID),
		StateTopic:   s.topics.SwitchState(snap.ActionID),
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling switch config: %w", err)
	}

	if err := s.client.PublishRetained(s.topics.SwitchConfig(snap.ActionID), payload); err != nil {
		return err
	}

	s.mu.Lock()
	s.registered[snap.ActionID] = struct{}{}
	s.mu.Unlock()

	return s.SetVisibleState(snap)
}

// Unregister clears the retained config and state topics for a switch.
func (s *MQTTSink) Unregister(actionID string) error {
	if err := mqtt.ValidateActionID(actionID); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.registered, actionID)
	s.mu.Unlock()

	// Empty retained payloads delete the retained messages on the broker.
	if err := s.client.PublishRetained(s.topics.SwitchConfig(actionID), nil); err != nil {
		return err
	}
	return s.client.PublishRetained(s.topics.SwitchState(actionID), nil)
}

// UnregisterAll clears every registered switch.
func (s *MQTTSink) UnregisterAll() error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.registered))
	for id := range s.registered {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := s.Unregister(id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SetVisibleState publishes the current state, retained.
func (s *MQTTSink) SetVisibleState(snap entity.Snapshot) error {
	state := switchState{
		ActionID:  snap.ActionID,
		On:        snap.IsOn,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling switch state: %w", err)
	}
	return s.client.PublishRetained(s.topics.SwitchState(snap.ActionID), payload)
}
