package handlers

import (
	"net/http"
	"net/mail"

	"github.com/google/uuid"

	"github.com/jason-s-yu/campus/internal/database"
	"github.com/jason-s-yu/campus/internal/mailer"
	"github.com/jason-s-yu/campus/internal/models"
)

// requireAdmin answers 403 unless the caller holds the admin role.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := authenticate(w, r)
	if !ok {
		return uuid.Nil, false
	}
	admin, err := database.HasRole(r.Context(), userID, models.RoleAdmin)
	if err != nil {
		s.fail(w, err, "check role")
		return uuid.Nil, false
	}
	if !admin {
		http.Error(w, "admin role required", http.StatusForbidden)
		return uuid.Nil, false
	}
	return userID, true
}

func (s *Server) GrantRoleHandler(w http.ResponseWriter, r *http.Request) {
	adminID, ok := s.requireAdmin(w, r)
	if !ok {
		return
	}
	var req models.RoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := database.GrantRole(r.Context(), req.UserID, req.Role); err != nil {
		s.fail(w, err, "grant role")
		return
	}
	s.Logger.Infof("admin %v granted %s to %v", adminID, req.Role, req.UserID)
	s.writeRoles(w, r, req.UserID)
}

func (s *Server) RevokeRoleHandler(w http.ResponseWriter, r *http.Request) {
	adminID, ok := s.requireAdmin(w, r)
	if !ok {
		return
	}
	var req models.RoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := database.RevokeRole(r.Context(), req.UserID, req.Role); err != nil {
		s.fail(w, err, "revoke role")
		return
	}
	s.Logger.Infof("admin %v revoked %s from %v", adminID, req.Role, req.UserID)
	s.writeRoles(w, r, req.UserID)
}

func (s *Server) writeRoles(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	roles, err := database.GetRoles(r.Context(), userID)
	if err != nil {
		s.fail(w, err, "load roles")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "roles": roles})
}

// ContactHandler forwards the contact form to the team inbox. No session is needed.
func (s *Server) ContactHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ContactRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	inbox := "team@localhost"
	if s.Config != nil && s.Config.ContactInbox != "" {
		inbox = s.Config.ContactInbox
	}
	msg := mailer.Message{
		To:      mail.Address{Address: inbox},
		ReplyTo: &mail.Address{Name: req.Name, Address: req.Email},
		Subject: req.Subject,
		Text:    "From: " + req.Name + " <" + req.Email + ">\n\n" + req.Message,
	}
	if err := s.Mailer.Send(r.Context(), msg); err != nil {
		s.Logger.Errorf("failed to deliver contact message from %s: %v", req.Email, err)
		http.Error(w, "failed to send message, please try again later", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}
