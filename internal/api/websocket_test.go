package api

import (
	"testing"

	"github.com/nfawbert/switchbridge/internal/entity"
	"github.com/nfawbert/switchbridge/internal/infrastructure/config"
	"github.com/nfawbert/switchbridge/internal/infrastructure/logging"
)

func TestBroadcaster_NoClients(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, logging.Default())
	b := NewBroadcaster(hub)

	snap := entity.Snapshot{ActionID: "a1", DisplayName: "Lamp"}

	// All operations succeed with an empty hub; broadcast to zero
	// subscribers is not an error.
	if err := b.Register(snap); err != nil {
		t.Errorf("Register() error = %v", err)
	}
	if err := b.SetVisibleState(snap); err != nil {
		t.Errorf("SetVisibleState() error = %v", err)
	}
	if err := b.Unregister("a1"); err != nil {
		t.Errorf("Unregister() error = %v", err)
	}
	if err := b.UnregisterAll(); err != nil {
		t.Errorf("UnregisterAll() error = %v", err)
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
}
