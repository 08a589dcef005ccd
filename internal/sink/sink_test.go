package sink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nfawbert/switchbridge/internal/entity"
	"github.com/nfawbert/switchbridge/internal/infrastructure/mqtt"
)

func testSnapshot() entity.Snapshot {
	return entity.Snapshot{
		ActionID:    "a1",
		DisplayName: "Lamp",
		InvokeURL:   "http://gw.local/api/v1/a1",
		IsOn:        true,
	}
}

// =============================================================================
// Composite
// =============================================================================

type countingSink struct {
	registers, unregisters, unregisterAlls, stateWrites int
	err                                                 error
}

func (c *countingSink) Register(entity.Snapshot) error { c.registers++; return c.err }
func (c *countingSink) Unregister(string) error        { c.unregisters++; return c.err }
func (c *countingSink) UnregisterAll() error           { c.unregisterAlls++; return c.err }
func (c *countingSink) SetVisibleState(entity.Snapshot) error {
	c.stateWrites++
	return c.err
}

func TestComposite_FansOut(t *testing.T) {
	a := &countingSink{}
	b := &countingSink{}
	c := NewComposite(a, nil, b)

	if err := c.Register(testSnapshot()); err != nil {
		t.Errorf("Register() error = %v", err)
	}
	if err := c.SetVisibleState(testSnapshot()); err != nil {
		t.Errorf("SetVisibleState() error = %v", err)
	}
	if err := c.Unregister("a1"); err != nil {
		t.Errorf("Unregister() error = %v", err)
	}
	if err := c.UnregisterAll(); err != nil {
		t.Errorf("UnregisterAll() error = %v", err)
	}

	for i, s := range []*countingSink{a, b} {
		if s.registers != 1 || s.stateWrites != 1 || s.unregisters != 1 || s.unregisterAlls != 1 {
			t.Errorf("member %d did not receive every call: %+v", i, *s)
		}
	}
}

func TestComposite_FailingMemberDoesNotStopOthers(t *testing.T) {
	failErr := errors.New("surface down")
	a := &countingSink{err: failErr}
	b := &countingSink{}
	c := NewComposite(a, b)

	err := c.Register(testSnapshot())
	if !errors.Is(err, failErr) {
		t.Errorf("Register() error = %v, want wrapped member error", err)
	}
	if b.registers != 1 {
		t.Error("second member skipped after first member failed")
	}
}

// =============================================================================
// MQTT sink
// =============================================================================

type fakePublisher struct {
	published  map[string][]byte
	subscribed []string
	handler    mqtt.MessageHandler
	err        error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{published: make(map[string][]byte)}
}

func (f *fakePublisher) PublishRetained(topic string, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.published[topic] = payload
	return nil
}

func (f *fakePublisher) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.subscribed = append(f.subscribed, topic)
	f.handler = handler
	return f.err
}

func TestMQTTSink_Register(t *testing.T) {
	pub := newFakePublisher()
	s := NewMQTTSink(pub)

	if err := s.Register(testSnapshot()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	cfgPayload, ok := pub.published["switchbridge/switch/a1/config"]
	if !ok {
		t.Fatal("config topic not published")
	}
	var cfg map[string]string
	if err := json.Unmarshal(cfgPayload, &cfg); err != nil {
		t.Fatalf("config payload is not valid JSON: %v", err)
	}
	if cfg["display_name"] != "Lamp" {
		t.Errorf("config display_name = %q", cfg["display_name"])
	}
	if cfg["command_topic"] != "switchbridge/switch/a1/set" {
		t.Errorf("config command_topic = %q", cfg["command_topic"])
	}

	statePayload, ok := pub.published["switchbridge/switch/a1/state"]
	if !ok {
		t.Fatal("state topic not published on register")
	}
	var state map[string]any
	if err := json.Unmarshal(statePayload, &state); err != nil {
		t.Fatalf("state payload is not valid JSON: %v", err)
	}
	if state["on"] != true {
		t.Errorf("state on = %v, want true", state["on"])
	}
}

func TestMQTTSink_RegisterRejectsBadActionID(t *testing.T) {
	s := NewMQTTSink(newFakePublisher())

	snap := testSnapshot()
	snap.ActionID = "a/1"
	if err := s.Register(snap); !errors.Is(err, mqtt.ErrInvalidTopic) {
		t.Errorf("Register() error = %v, want ErrInvalidTopic", err)
	}
}

func TestMQTTSink_UnregisterClearsRetained(t *testing.T) {
	pub := newFakePublisher()
	s := NewMQTTSink(pub)

	if err := s.Register(testSnapshot()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := s.Unregister("a1"); err != nil {
		t.Fatalf("Unregister() error = %v", err)
	}

	if got := pub.published["switchbridge/switch/a1/config"]; len(got) != 0 {
		t.Error("retained config not cleared")
	}
	if got := pub.published["switchbridge/switch/a1/state"]; len(got) != 0 {
		t.Error("retained state not cleared")
	}
}

func TestMQTTSink_UnregisterAll(t *testing.T) {
	pub := newFakePublisher()
	s := NewMQTTSink(pub)

	snapA := testSnapshot()
	snapB := testSnapshot()
	snapB.ActionID = "b2"
	if err := s.Register(snapA); err != nil {
		t.Fatal(err)
	}
	if err := s.Register(snapB); err != nil {
		t.Fatal(err)
	}

	if err := s.UnregisterAll(); err != nil {
		t.Fatalf("UnregisterAll() error = %v", err)
	}
	for _, topic := range []string{
		"switchbridge/switch/a1/config",
		"switchbridge/switch/b2/config",
	} {
		if got := pub.published[topic]; len(got) != 0 {
			t.Errorf("retained %s not cleared", topic)
		}
	}
}

func TestMQTTSink_Listen(t *testing.T) {
	pub := newFakePublisher()
	s := NewMQTTSink(pub)

	var activated []string
	if err := s.Listen(func(actionID string) error {
		activated = append(activated, actionID)
		return nil
	}); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	if len(pub.subscribed) != 1 || pub.subscribed[0] != "switchbridge/switch/+/set" {
		t.Fatalf("subscribed = %v, want command wildcard", pub.subscribed)
	}

	if err := pub.handler("switchbridge/switch/a1/set", []byte("{}")); err != nil {
		t.Errorf("handler error = %v", err)
	}
	if len(activated) != 1 || activated[0] != "a1" {
		t.Errorf("activated = %v, want [a1]", activated)
	}

	// Topics outside the command scheme are rejected, not activated.
	if err := pub.handler("switchbridge/switch/a1/state", nil); err == nil {
		t.Error("handler accepted a non-command topic")
	}
	if len(activated) != 1 {
		t.Error("non-command topic triggered an activation")
	}
}

// =============================================================================
// Persistence sink
// =============================================================================

type fakeUpdater struct {
	updates map[string]bool
}

func (f *fakeUpdater) UpdateState(_ context.Context, actionID string, on bool) error {
	if f.updates == nil {
		f.updates = make(map[string]bool)
	}
	f.updates[actionID] = on
	return nil
}

func TestPersistSink(t *testing.T) {
	repo := &fakeUpdater{}
	s := NewPersistSink(repo)

	if err := s.Register(testSnapshot()); err != nil {
		t.Errorf("Register() error = %v", err)
	}
	if err := s.SetVisibleState(testSnapshot()); err != nil {
		t.Fatalf("SetVisibleState() error = %v", err)
	}
	if on, ok := repo.updates["a1"]; !ok || !on {
		t.Errorf("state not persisted: %v", repo.updates)
	}
	if err := s.UnregisterAll(); err != nil {
		t.Errorf("UnregisterAll() error = %v", err)
	}
}

// =============================================================================
// History sink
// =============================================================================

type fakeRecorder struct {
	states []bool
	events []string
}

func (f *fakeRecorder) WriteSwitchState(_ string, on bool) {
	f.states = append(f.states, on)
}

func (f *fakeRecorder) WriteLifecycleEvent(_ string, event string) {
	f.events = append(f.events, event)
}

func TestHistorySink(t *testing.T) {
	rec := &fakeRecorder{}
	s := NewHistorySink(rec)

	if err := s.Register(testSnapshot()); err != nil {
		t.Fatal(err)
	}
	if err := s.SetVisibleState(testSnapshot()); err != nil {
		t.Fatal(err)
	}
	if err := s.Unregister("a1"); err != nil {
		t.Fatal(err)
	}

	if len(rec.events) != 2 || rec.events[0] != "registered" || rec.events[1] != "unregistered" {
		t.Errorf("events = %v", rec.events)
	}
	if len(rec.states) != 1 || !rec.states[0] {
		t.Errorf("states = %v", rec.states)
	}
}
