package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jason-s-yu/campus/internal/auth"
	"github.com/jason-s-yu/campus/internal/cache"
	"github.com/jason-s-yu/campus/internal/database"
	"github.com/jason-s-yu/campus/internal/realtime"
	"github.com/jason-s-yu/campus/internal/validation"
)

// extractCookieToken extracts a named cookie value from "Cookie" header, or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	for _, part := range strings.Split(cookieHeader, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && name == cookieName {
			return value
		}
	}
	return ""
}

// sessionToken reads the auth_token cookie, falling back to an Authorization: Bearer header.
func sessionToken(r *http.Request) string {
	if token := extractCookieToken(r.Header.Get("Cookie"), auth.CookieName); token != "" {
		return token
	}
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// authenticate answers 401 and returns false when the request carries no valid session.
func authenticate(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	token := sessionToken(r)
	if token == "" {
		http.Error(w, "missing auth_token", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	userID, err := auth.AuthenticateJWT(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	return userID, true
}

func setSessionCookie(w http.ResponseWriter, token string) {
	c := &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	}
	if ttl := auth.TokenTTL(); ttl > 0 {
		c.MaxAge = int(ttl.Seconds())
	}
	http.SetCookie(w, c)
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		HttpOnly: true,
		Path:     "/",
		MaxAge:   -1,
	})
}

type normalizer interface {
	Normalize()
}

// decodeJSON reads the body into dst, normalizes and validates it. It answers 400 and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return false
	}
	if n, ok := dst.(normalizer); ok {
		n.Normalize()
	}
	return validate(w, dst)
}

func validate(w http.ResponseWriter, v any) bool {
	if err := validation.Struct(v); err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			http.Error(w, verr.Error(), http.StatusBadRequest)
			return false
		}
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// pathID parses the named path value as a uuid, answering 400 when it is not one.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		http.Error(w, "invalid "+name, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func queryLimit(r *http.Request, def, max int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// errorStatus maps database sentinels to HTTP codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrDuplicate), errors.Is(err, database.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, database.ErrForbidden):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// fail answers err as "failed to <action>". Only unexpected errors are logged.
func (s *Server) fail(w http.ResponseWriter, err error, action string) {
	code := errorStatus(err)
	if code == http.StatusInternalServerError {
		s.Logger.Errorf("failed to %s: %v", action, err)
		http.Error(w, "failed to "+action, code)
		return
	}
	http.Error(w, fmt.Sprintf("failed to %s: %s", action, reason(err)), code)
}

func reason(err error) string {
	for _, sentinel := range []error{database.ErrNotFound, database.ErrDuplicate, database.ErrForbidden, database.ErrConflict} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

// publish emits a change event for table; failures are logged only.
func (s *Server) publish(ctx context.Context, table string, typ realtime.EventType, record, old any) {
	realtime.PublishChange(ctx, s.Publisher, s.Logger, table, typ, record, old)
}

// notify queues a notification for the notifier. The request is not failed when the queue is down.
func (s *Server) notify(ctx context.Context, userID uuid.UUID, typ, title, message, link string) {
	err := cache.PublishNotification(ctx, cache.NotificationRecord{
		UserID:  userID,
		Type:    typ,
		Title:   title,
		Message: message,
		Link:    link,
	})
	if err != nil {
		s.Logger.Warnf("failed to queue %s notification for %v: %v", typ, userID, err)
	}
}
