// internal/handlers/connection.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/jason-s-yu/campus/internal/database"
	"github.com/jason-s-yu/campus/internal/models"
	"github.com/jason-s-yu/campus/internal/realtime"
)

// AddConnectionHandler sends a connection request.
//
// Request payload: { "receiver_id": "some-uuid-string" }
// A row between the pair in either direction, whatever its status, is a duplicate.
func (s *Server) AddConnectionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(w, r)
	if !ok {
		return
	}
	var req models.ConnectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ReceiverID == userID {
		http.Error(w, "cannot connect with yourself", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	conn, err := database.InsertConnectionRequest(ctx, userID, req.ReceiverID)
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			http.Error(w, "Connection request already exists", http.StatusConflict)
			return
		}
		s.fail(w, err, "send connection request")
		return
	}

	s.publish(ctx, "connections", realtime.Insert, conn, nil)
	s.notify(ctx, conn.ReceiverID, models.NotifyConnectionRequest,
		"New connection request", s.displayName(r, userID)+" wants to connect with you", "/connections")

	writeJSON(w, http.StatusCreated, conn)
}

// ListConnectionsHandler returns the received, sent and accepted lists.
func (s *Server) ListConnectionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(w, r)
	if !ok {
		return
	}
	lists, err := database.ListConnections(r.Context(), userID)
	if err != nil {
		s.fail(w, err, "load connections")
		return
	}
	writeJSON(w, http.StatusOK, lists)
}

func (s *Server) CountConnectionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(w, r)
	if !ok {
		return
	}
	n, err := database.CountAcceptedConnections(r.Context(), userID)
	if err != nil {
		s.fail(w, err, "count connections")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

// respondConnection accepts or rejects a pending request addressed to the caller.
func (s *Server) respondConnection(status models.Status) http.HandlerFunc {
	verb := "accept"
	if status == models.StatusRejected {
		verb = "reject"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := authenticate(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		ctx := r.Context()
		after, before, err := database.RespondConnection(ctx, id, userID, status)
		if err != nil {
			if errors.Is(err, database.ErrConflict) {
				http.Error(w, "connection request is no longer pending", http.StatusConflict)
				return
			}
			s.fail(w, err, verb+" connection")
			return
		}

		s.publish(ctx, "connections", realtime.Update, after, before)
		if status == models.StatusAccepted {
			s.notify(ctx, after.SenderID, models.NotifyConnectionAccepted,
				"Connection accepted", s.displayName(r, userID)+" accepted your connection request", "/connections")
		}
		writeJSON(w, http.StatusOK, after)
	}
}

// RemoveConnectionHandler cancels a pending request (sender) or removes an accepted connection (either party).
func (s *Server) RemoveConnectionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	removed, err := database.RemoveConnection(r.Context(), id, userID)
	if err != nil {
		s.fail(w, err, "remove connection")
		return
	}
	s.publish(r.Context(), "connections", realtime.Delete, nil, removed)
	w.WriteHeader(http.StatusNoContent)
}

// displayName is the caller's profile name for notification text.
func (s *Server) displayName(r *http.Request, userID uuid.UUID) string {
	names, err := database.GetProfileSummaries(r.Context(), []uuid.UUID{userID})
	if err != nil {
		s.Logger.Warnf("failed to load name for %v: %v", userID, err)
	}
	if p, ok := names[userID]; ok && p.Name != "" {
		return p.Name
	}
	return "Someone"
}
