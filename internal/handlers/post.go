package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/jason-s-yu/campus/internal/database"
	"github.com/jason-s-yu/campus/internal/realtime"
	"github.com/jason-s-yu/campus/internal/storage"
)

// CreatePostHandler takes multipart "content" and an optional "image",
// stored as <user_id>/<unix_ms>.<ext> in post_images.
func (s *Server) CreatePostHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(w, r)
	if !ok {
		return
	}
	limit := s.maxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	if err := r.ParseMultipartForm(limit); err != nil {
		http.Error(w, "invalid post form", http.StatusBadRequest)
		return
	}
	content := strings.TrimSpace(r.FormValue("content"))
	if content == "" {
		http.Error(w, "post content is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	var imageURL string
	file, header, err := r.FormFile("image")
	switch {
	case err == http.ErrMissingFile:
	case err != nil:
		http.Error(w, "invalid image", http.StatusBadRequest)
		return
	default:
		defer file.Close()
		contentType := header.Header.Get("Content-Type")
		if !storage.IsImage(contentType) {
			http.Error(w, "Please upload an image file", http.StatusBadRequest)
			return
		}
		img, ok := s.sniffImage(w, file)
		if !ok {
			return
		}
		key := storage.PostImageKey(userID, img.Ext, time.Now())
		imageURL, err = s.Store.Put(ctx, storage.PostImages, key, img.Body, header.Size, img.ContentType)
		if err != nil {
			s.fail(w, err, "upload image")
			return
		}
	}

	post, err := database.CreatePost(ctx, userID, content, imageURL)
	if err != nil {
		s.fail(w, err, "create post")
		return
	}
	s.publish(ctx, "posts", realtime.Insert, post, nil)
	writeJSON(w, http.StatusCreated, post)
}

// ListPostsHandler returns the newest posts (?limit=, default 20) with author summaries.
func (s *Server) ListPostsHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := authenticate(w, r); !ok {
		return
	}
	posts, err := database.ListPosts(r.Context(), queryLimit(r, 20, 100))
	if err != nil {
		s.fail(w, err, "load posts")
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// DashboardHandler returns the caller's profile and dashboard counters.
func (s *Server) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(w, r)
	if !ok {
		return
	}
	profile, err := database.GetProfile(r.Context(), userID)
	if err != nil {
		s.fail(w, err, "load profile")
		return
	}
	stats, err := database.GetDashboardStats(r.Context(), userID)
	if err != nil {
		s.fail(w, err, "load dashboard")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": profile, "stats": stats})
}
