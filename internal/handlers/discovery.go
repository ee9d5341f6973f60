package handlers

import (
	"net/http"

	"github.com/jason-s-yu/campus/internal/database"
	"github.com/jason-s-yu/campus/internal/models"
)

type teammatesResponse struct {
	Teammates []models.Teammate `json:"teammates"`
	Facets    models.Facets     `json:"facets"`
}

// ListTeammatesHandler lists every other profile with the caller's connection status,
// filtered by ?q=, ?department= and ?domain=. Facets come from the unfiltered set.
func (s *Server) ListTeammatesHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(w, r)
	if !ok {
		return
	}
	all, err := database.ListTeammates(r.Context(), userID)
	if err != nil {
		s.fail(w, err, "load teammates")
		return
	}
	q := r.URL.Query()
	query := models.TeammateQuery{
		Search:     q.Get("q"),
		Department: q.Get("department"),
		Domain:     q.Get("domain"),
	}
	writeJSON(w, http.StatusOK, teammatesResponse{
		Teammates: models.FilterTeammates(all, query),
		Facets:    models.BuildFacets(all),
	})
}

func (s *Server) ListMentorsHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := authenticate(w, r); !ok {
		return
	}
	mentors, err := database.ListProfilesByRole(r.Context(), models.RoleMentor)
	if err != nil {
		s.fail(w, err, "load mentors")
		return
	}
	writeJSON(w, http.StatusOK, mentors)
}
