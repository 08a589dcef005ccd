package mqtt

import (
	"fmt"
	"strings"
)

// Topic scheme.
//
// All switch topics use the flat scheme: switchbridge/switch/{action_id}/{leaf}
// Action IDs come from the remote registry and never contain '/', '+' or '#';
// ValidateActionID enforces this before an ID is embedded in a topic.
const (
	// TopicPrefix is the base for all topics published by this service.
	TopicPrefix = "switchbridge"

	// topicSwitch is the segment under which per-switch topics live.
	topicSwitch = "switch"

	leafState  = "state"  // retained, current on/off state
	leafConfig = "config" // retained, switch metadata for discovery
	leafSet    = "set"    // command topic, host publishes to activate
)

// Topics builds topic strings for the switchbridge namespace.
//
// Using a struct rather than free functions keeps call sites readable:
//
//	mqtt.Topics{}.SwitchState("a1")  // "switchbridge/switch/a1/state"
type Topics struct{}

// SystemStatus returns the service status topic.
// Online/offline payloads and the LWT are published here, retained.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// SwitchState returns the retained state topic for a switch.
func (Topics) SwitchState(actionID string) string {
	return fmt.Sprintf("%s/%s/%s/%s", TopicPrefix, topicSwitch, actionID, leafState)
}

// SwitchConfig returns the retained metadata topic for a switch.
// Publishing an empty retained payload here removes the switch from
// discovery.
func (Topics) SwitchConfig(actionID string) string {
	return fmt.Sprintf("%s/%s/%s/%s", TopicPrefix, topicSwitch, actionID, leafConfig)
}

// SwitchSet returns the command topic for a switch.
func (Topics) SwitchSet(actionID string) string {
	return fmt.Sprintf("%s/%s/%s/%s", TopicPrefix, topicSwitch, actionID, leafSet)
}

// SwitchSetWildcard returns the subscription filter matching every switch
// command topic.
func (Topics) SwitchSetWildcard() string {
	return fmt.Sprintf("%s/%s/+/%s", TopicPrefix, topicSwitch, leafSet)
}

// ParseSwitchSet extracts the action ID from a switch command topic.
// Returns ErrInvalidTopic if the topic does not match the command scheme.
func (Topics) ParseSwitchSet(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[1] != topicSwitch || parts[3] != leafSet {
		return "", fmt.Errorf("%w: %q is not a switch command topic", ErrInvalidTopic, topic)
	}
	if parts[2] == "" {
		return "", fmt.Errorf("%w: empty action id in %q", ErrInvalidTopic, topic)
	}
	return parts[2], nil
}

// ValidateActionID rejects IDs that would break the topic scheme.
func ValidateActionID(actionID string) error {
	if actionID == "" {
		return fmt.Errorf("%w: empty action id", ErrInvalidTopic)
	}
	if strings.ContainsAny(actionID, "/+#") {
		return fmt.Errorf("%w: action id %q contains topic metacharacters", ErrInvalidTopic, actionID)
	}
	return nil
}
