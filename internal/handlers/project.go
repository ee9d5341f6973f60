package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/jason-s-yu/campus/internal/database"
	"github.com/jason-s-yu/campus/internal/models"
	"github.com/jason-s-yu/campus/internal/realtime"
)

func (s *Server) CreateProjectHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(w, r)
	if !ok {
		return
	}
	var req models.ProjectInput
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := database.CreateProject(r.Context(), userID, req)
	if err != nil {
		s.fail(w, err, "create project")
		return
	}
	s.publish(r.Context(), "projects", realtime.Insert, p, nil)
	writeJSON(w, http.StatusCreated, p)
}

// ListProjectsHandler returns public projects and the caller's own, newest first.
func (s *Server) ListProjectsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(w, r)
	if !ok {
		return
	}
	list, err := database.ListProjects(r.Context(), userID)
	if err != nil {
		s.fail(w, err, "load projects")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) GetProjectHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(w, r)
	if !ok {
		return
	}
	p, ok := s.visibleProject(w, r, userID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) UpdateProjectHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req models.ProjectInput
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := database.UpdateProject(r.Context(), id, userID, req)
	if err != nil {
		s.fail(w, err, "update project")
		return
	}
	s.publish(r.Context(), "projects", realtime.Update, p, nil)
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) DeleteProjectHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := database.DeleteProject(r.Context(), id, userID); err != nil {
		s.fail(w, err, "delete project")
		return
	}
	s.publish(r.Context(), "projects", realtime.Delete, nil, map[string]any{"id": id, "creator_id": userID})
	w.WriteHeader(http.StatusNoContent)
}

// JoinProjectHandler files a pending membership and notifies the creator.
func (s *Server) JoinProjectHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	ctx := r.Context()
	member, project, err := database.RequestToJoin(ctx, id, userID)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			http.Error(w, "project not found", http.StatusNotFound)
		case errors.Is(err, database.ErrForbidden):
			http.Error(w, "cannot join your own project", http.StatusForbidden)
		case errors.Is(err, database.ErrDuplicate):
			http.Error(w, "You have already requested to join this project", http.StatusConflict)
		default:
			s.fail(w, err, "join project")
		}
		return
	}

	s.publish(ctx, "project_members", realtime.Insert, member, nil)
	s.notify(ctx, project.CreatorID, models.NotifyProjectRequest,
		"New join request", s.displayName(r, userID)+" wants to join "+project.Title, "/projects/"+project.ID.String())
	writeJSON(w, http.StatusCreated, member)
}

// ListMembersHandler shows the creator every membership and everyone else the accepted ones.
func (s *Server) ListMembersHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(w, r)
	if !ok {
		return
	}
	p, ok := s.visibleProject(w, r, userID)
	if !ok {
		return
	}
	members, err := database.ListMembers(r.Context(), p.ID, p.CreatorID == userID)
	if err != nil {
		s.fail(w, err, "load members")
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// respondMember lets the creator accept or reject a pending membership.
func (s *Server) respondMember(status models.Status) http.HandlerFunc {
	verb, notifyType, title := "accept", models.NotifyProjectAccepted, "Join request accepted"
	if status == models.StatusRejected {
		verb, notifyType, title = "reject", models.NotifyProjectRejected, "Join request declined"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := authenticate(w, r)
		if !ok {
			return
		}
		projectID, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		memberID, ok := pathID(w, r, "userID")
		if !ok {
			return
		}

		ctx := r.Context()
		member, project, err := database.RespondMember(ctx, projectID, memberID, userID, status)
		if err != nil {
			if errors.Is(err, database.ErrConflict) {
				http.Error(w, "request is no longer pending or the team is full", http.StatusConflict)
				return
			}
			s.fail(w, err, verb+" member")
			return
		}

		s.publish(ctx, "project_members", realtime.Update, member, nil)
		s.notify(ctx, member.UserID, notifyType, title,
			"Your request to join "+project.Title+" was "+string(status), "/projects/"+project.ID.String())
		writeJSON(w, http.StatusOK, member)
	}
}

// LeaveProjectHandler drops the caller's membership, pending or accepted.
func (s *Server) LeaveProjectHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := database.LeaveProject(r.Context(), id, userID); err != nil {
		s.fail(w, err, "leave project")
		return
	}
	s.publish(r.Context(), "project_members", realtime.Delete, nil, map[string]any{"project_id": id, "user_id": userID})
	w.WriteHeader(http.StatusNoContent)
}

// visibleProject loads {id} and answers 404 when the caller may not see it.
func (s *Server) visibleProject(w http.ResponseWriter, r *http.Request, userID uuid.UUID) (*models.Project, bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return nil, false
	}
	p, err := database.GetProject(r.Context(), id)
	if err != nil {
		s.fail(w, err, "load project")
		return nil, false
	}
	visible, err := database.CanViewProject(r.Context(), p, userID)
	if err != nil {
		s.fail(w, err, "load project")
		return nil, false
	}
	if !visible {
		http.Error(w, "project not found", http.StatusNotFound)
		return nil, false
	}
	return p, true
}
