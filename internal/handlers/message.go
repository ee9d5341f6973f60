package handlers

import (
	"net/http"

	"github.com/jason-s-yu/campus/internal/database"
	"github.com/jason-s-yu/campus/internal/models"
	"github.com/jason-s-yu/campus/internal/realtime"
)

// SendMessageHandler stores a direct message. Content is trimmed and capped at models.MaxMessageLength.
func (s *Server) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(w, r)
	if !ok {
		return
	}
	var req models.SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ReceiverID == userID {
		http.Error(w, "cannot message yourself", http.StatusBadRequest)
		return
	}

	msg, err := database.InsertMessage(r.Context(), userID, req.ReceiverID, req.Content)
	if err != nil {
		s.fail(w, err, "send message")
		return
	}
	s.publish(r.Context(), "messages", realtime.Insert, msg, nil)
	writeJSON(w, http.StatusCreated, msg)
}

// ListConversationsHandler groups the caller's messages by partner, newest first.
func (s *Server) ListConversationsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(w, r)
	if !ok {
		return
	}
	convs, err := database.ListConversations(r.Context(), userID)
	if err != nil {
		s.fail(w, err, "load conversations")
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

// ThreadHandler returns the messages between the caller and partnerID, oldest first.
func (s *Server) ThreadHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(w, r)
	if !ok {
		return
	}
	partner, ok := pathID(w, r, "partnerID")
	if !ok {
		return
	}
	msgs, err := database.ListThread(r.Context(), userID, partner)
	if err != nil {
		s.fail(w, err, "load messages")
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// MarkThreadReadHandler marks partnerID's unread messages to the caller as read.
// The source publishes one UPDATE per row so open unread counters refresh.
func (s *Server) MarkThreadReadHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(w, r)
	if !ok {
		return
	}
	partner, ok := pathID(w, r, "partnerID")
	if !ok {
		return
	}
	msgs, err := s.Source.MarkThreadRead(r.Context(), userID, partner)
	if err != nil {
		s.fail(w, err, "mark messages read")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": len(msgs)})
}

func (s *Server) UnreadMessagesHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(w, r)
	if !ok {
		return
	}
	n, err := s.Source.UnreadCount(r.Context(), userID)
	if err != nil {
		s.fail(w, err, "count unread messages")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}
