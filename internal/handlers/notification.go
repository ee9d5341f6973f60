package handlers

import (
	"net/http"

	"github.com/jason-s-yu/campus/internal/database"
	"github.com/jason-s-yu/campus/internal/realtime"
)

func (s *Server) ListNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(w, r)
	if !ok {
		return
	}
	list, err := database.ListNotifications(r.Context(), userID, queryLimit(r, 50, 200))
	if err != nil {
		s.fail(w, err, "load notifications")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) UnreadNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(w, r)
	if !ok {
		return
	}
	n, err := database.CountUnreadNotifications(r.Context(), userID)
	if err != nil {
		s.fail(w, err, "count notifications")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (s *Server) MarkNotificationReadHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	n, err := database.MarkNotificationRead(r.Context(), id, userID)
	if err != nil {
		s.fail(w, err, "mark notification read")
		return
	}
	s.publish(r.Context(), "notifications", realtime.Update, n, nil)
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) MarkAllNotificationsReadHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(w, r)
	if !ok {
		return
	}
	n, err := database.MarkAllNotificationsRead(r.Context(), userID)
	if err != nil {
		s.fail(w, err, "mark notifications read")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}
