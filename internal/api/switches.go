package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nfawbert/switchbridge/internal/reconciler"
)

// handleListSwitches returns every mirrored switch entity, sorted by action ID.
//
// GET /api/v1/switches
func (s *Server) handleListSwitches(w http.ResponseWriter, _ *http.Request) {
	snaps := s.switches.Snapshots()
	writeJSON(w, http.StatusOK, map[string]any{
		"switches": snaps,
		"count":    len(snaps),
	})
}

// handleGetSwitch returns a single switch entity.
//
// GET /api/v1/switches/{actionID}
func (s *Server) handleGetSwitch(w http.ResponseWriter, r *http.Request) {
	actionID := chi.URLParam(r, "actionID")
	if actionID == "" {
		writeBadRequest(w, "action ID is required")
		return
	}

	for _, snap := range s.switches.Snapshots() {
		if snap.ActionID == actionID {
			writeJSON(w, http.StatusOK, snap)
			return
		}
	}
	writeNotFound(w, "switch not found: "+actionID)
}

// handleActivateSwitch triggers a switch.
//
// POST /api/v1/switches/{actionID}/activate
//
// The response is 202 Accepted: the switch is on and the remote invocation
// is in flight, but its outcome is deliberately not waited for. The switch
// resets to off on its own after the configured delay.
func (s *Server) handleActivateSwitch(w http.ResponseWriter, r *http.Request) {
	actionID := chi.URLParam(r, "actionID")
	if actionID == "" {
		writeBadRequest(w, "action ID is required")
		return
	}

	if err := s.switches.Activate(actionID); err != nil {
		if errors.Is(err, reconciler.ErrUnknownAction) {
			writeNotFound(w, "switch not found: "+actionID)
			return
		}
		s.logger.Error("activation failed", "action_id", actionID, "error", err)
		writeInternalError(w, "activation failed")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":    "accepted",
		"action_id": actionID,
	})
}

// handleSync runs one reconciliation pass on demand.
//
// POST /api/v1/sync
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if err := s.switches.Sync(r.Context()); err != nil {
		if errors.Is(err, reconciler.ErrSyncFailed) {
			writeError(w, http.StatusBadGateway, ErrCodeUpstream, "remote registry unavailable")
			return
		}
		s.logger.Error("manual sync failed", "error", err)
		writeInternalError(w, "sync failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"count":  len(s.switches.Snapshots()),
	})
}
