// internal/handlers/user.go
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jason-s-yu/campus/internal/auth"
	"github.com/jason-s-yu/campus/internal/database"
	"github.com/jason-s-yu/campus/internal/models"
)

// SignupHandler creates the account, its profile and the student role, then signs the user in.
func (s *Server) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user := models.User{
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Password: req.Password,
	}
	if err := database.CreateUser(r.Context(), &user, strings.TrimSpace(req.Name)); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			http.Error(w, "an account with this email already exists", http.StatusConflict)
			return
		}
		s.fail(w, err, "create user")
		return
	}

	token, err := auth.CreateJWT(user.ID)
	if err != nil {
		s.fail(w, err, "create session")
		return
	}
	setSessionCookie(w, token)
	s.Logger.Infof("user %v signed up", user.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"user": user, "token": token})
}

// LoginHandler checks the credentials and returns a fresh token, also set as the auth_token cookie.
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, token, err := database.AuthenticateUser(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if errors.Is(err, database.ErrInvalidCredentials) {
		http.Error(w, "invalid email or password", http.StatusForbidden)
		return
	}
	if err != nil {
		s.fail(w, err, "log in")
		return
	}
	setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]any{"user": user, "token": token})
}

func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// SessionHandler describes the caller: id, email and roles.
func (s *Server) SessionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(w, r)
	if !ok {
		return
	}
	user, err := database.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			http.Error(w, "session user no longer exists", http.StatusUnauthorized)
			return
		}
		s.fail(w, err, "load session")
		return
	}
	roles, err := database.GetRoles(r.Context(), userID)
	if err != nil {
		s.fail(w, err, "load roles")
		return
	}
	writeJSON(w, http.StatusOK, models.Session{UserID: user.ID, Email: user.Email, Roles: roles})
}
