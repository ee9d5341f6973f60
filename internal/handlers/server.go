// internal/handlers/server.go
package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/campus/internal/config"
	"github.com/jason-s-yu/campus/internal/mailer"
	"github.com/jason-s-yu/campus/internal/models"
	"github.com/jason-s-yu/campus/internal/realtime"
	"github.com/jason-s-yu/campus/internal/storage"
)

// Server holds what the HTTP handlers share.
type Server struct {
	Logger    *logrus.Logger
	Config    *config.Config
	Store     storage.Store
	Mailer    mailer.Mailer
	Publisher realtime.Publisher
	Hub       *realtime.Hub
	Source    realtime.Source
}

// NewServer fills in the realtime source from the publisher when src is nil.
func NewServer(cfg *config.Config, logger *logrus.Logger, store storage.Store, m mailer.Mailer, pub realtime.Publisher, hub *realtime.Hub, src realtime.Source) *Server {
	if src == nil {
		src = realtime.DatabaseSource{Publisher: pub, Logger: logger}
	}
	return &Server{
		Logger:    logger,
		Config:    cfg,
		Store:     store,
		Mailer:    m,
		Publisher: pub,
		Hub:       hub,
		Source:    src,
	}
}

// Routes registers every endpoint on a new mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	// auth
	mux.HandleFunc("POST /auth/signup", s.SignupHandler)
	mux.HandleFunc("POST /auth/login", s.LoginHandler)
	mux.HandleFunc("POST /auth/logout", s.LogoutHandler)
	mux.HandleFunc("GET /auth/session", s.SessionHandler)

	// profiles
	mux.HandleFunc("GET /profiles/me", s.GetMyProfileHandler)
	mux.HandleFunc("PUT /profiles/me", s.UpdateProfileHandler)
	mux.HandleFunc("POST /profiles/me/photo", s.UploadPhotoHandler)
	mux.HandleFunc("DELETE /profiles/me/photo", s.DeletePhotoHandler)
	mux.HandleFunc("PUT /profiles/me/photo/visibility", s.PhotoVisibilityHandler)
	mux.HandleFunc("GET /profiles/{userID}", s.GetProfileHandler)

	// discovery
	mux.HandleFunc("GET /teammates", s.ListTeammatesHandler)
	mux.HandleFunc("GET /mentors", s.ListMentorsHandler)

	// connections
	mux.HandleFunc("POST /connections", s.AddConnectionHandler)
	mux.HandleFunc("GET /connections", s.ListConnectionsHandler)
	mux.HandleFunc("GET /connections/count", s.CountConnectionsHandler)
	mux.HandleFunc("POST /connections/{id}/accept", s.respondConnection(models.StatusAccepted))
	mux.HandleFunc("POST /connections/{id}/reject", s.respondConnection(models.StatusRejected))
	mux.HandleFunc("DELETE /connections/{id}", s.RemoveConnectionHandler)

	// messages
	mux.HandleFunc("POST /messages", s.SendMessageHandler)
	mux.HandleFunc("GET /messages/conversations", s.ListConversationsHandler)
	mux.HandleFunc("GET /messages/unread", s.UnreadMessagesHandler)
	mux.HandleFunc("GET /messages/{partnerID}", s.ThreadHandler)
	mux.HandleFunc("POST /messages/{partnerID}/read", s.MarkThreadReadHandler)

	// notifications
	mux.HandleFunc("GET /notifications", s.ListNotificationsHandler)
	mux.HandleFunc("GET /notifications/unread", s.UnreadNotificationsHandler)
	mux.HandleFunc("POST /notifications/read-all", s.MarkAllNotificationsReadHandler)
	mux.HandleFunc("POST /notifications/{id}/read", s.MarkNotificationReadHandler)

	// projects
	mux.HandleFunc("POST /projects", s.CreateProjectHandler)
	mux.HandleFunc("GET /projects", s.ListProjectsHandler)
	mux.HandleFunc("GET /projects/{id}", s.GetProjectHandler)
	mux.HandleFunc("PUT /projects/{id}", s.UpdateProjectHandler)
	mux.HandleFunc("DELETE /projects/{id}", s.DeleteProjectHandler)
	mux.HandleFunc("POST /projects/{id}/join", s.JoinProjectHandler)
	mux.HandleFunc("GET /projects/{id}/members", s.ListMembersHandler)
	mux.HandleFunc("DELETE /projects/{id}/members/me", s.LeaveProjectHandler)
	mux.HandleFunc("POST /projects/{id}/members/{userID}/accept", s.respondMember(models.StatusAccepted))
	mux.HandleFunc("POST /projects/{id}/members/{userID}/reject", s.respondMember(models.StatusRejected))

	// posts + dashboard
	mux.HandleFunc("POST /posts", s.CreatePostHandler)
	mux.HandleFunc("GET /posts", s.ListPostsHandler)
	mux.HandleFunc("GET /dashboard", s.DashboardHandler)

	// admin + contact
	mux.HandleFunc("PUT /admin/roles", s.GrantRoleHandler)
	mux.HandleFunc("DELETE /admin/roles", s.RevokeRoleHandler)
	mux.HandleFunc("POST /contact", s.ContactHandler)

	// realtime
	mux.HandleFunc("GET /realtime/ws", s.RealtimeWSHandler)

	if d, ok := s.Store.(*storage.DiskStore); ok {
		mux.Handle("GET "+storage.DiskURLPrefix, d.Handler())
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	return mux
}
