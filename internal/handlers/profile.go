package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/jason-s-yu/campus/internal/database"
	"github.com/jason-s-yu/campus/internal/models"
	"github.com/jason-s-yu/campus/internal/realtime"
	"github.com/jason-s-yu/campus/internal/storage"
)

const defaultMaxPhotoBytes = 5 << 20

// GetMyProfileHandler returns the caller's profile with the accepted connection count.
func (s *Server) GetMyProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(w, r)
	if !ok {
		return
	}
	profile, err := database.GetProfile(r.Context(), userID)
	if err != nil {
		s.fail(w, err, "load profile")
		return
	}
	count, err := database.CountAcceptedConnections(r.Context(), userID)
	if err != nil {
		s.fail(w, err, "count connections")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": profile, "connections": count})
}

// GetProfileHandler returns another user's profile; a hidden photo is left out.
func (s *Server) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	viewer, ok := authenticate(w, r)
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	profile, err := database.GetProfile(r.Context(), userID)
	if err != nil {
		s.fail(w, err, "load profile")
		return
	}
	if userID != viewer {
		*profile = profile.PublicView()
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(w, r)
	if !ok {
		return
	}
	var req models.ProfileUpdate
	if !decodeJSON(w, r, &req) {
		return
	}

	profile, err := database.UpdateProfile(r.Context(), userID, req)
	if err != nil {
		s.fail(w, err, "update profile")
		return
	}
	s.publish(r.Context(), "profiles", realtime.Update, profile, nil)
	writeJSON(w, http.StatusOK, profile)
}

// UploadPhotoHandler stores the multipart "photo" file as <user_id>/profile.<ext>, replacing any earlier photo.
func (s *Server) UploadPhotoHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(w, r)
	if !ok {
		return
	}
	limit := s.maxPhotoBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	if err := r.ParseMultipartForm(limit); err != nil {
		http.Error(w, "Image must be less than "+humanize.IBytes(uint64(limit)), http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("photo")
	if err != nil {
		http.Error(w, "missing photo", http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !storage.IsImage(contentType) {
		http.Error(w, "Please upload an image file", http.StatusBadRequest)
		return
	}
	if header.Size > limit {
		http.Error(w, "Image must be less than "+humanize.IBytes(uint64(limit)), http.StatusBadRequest)
		return
	}

	img, ok := s.sniffImage(w, file)
	if !ok {
		return
	}

	ctx := r.Context()
	profile, err := database.GetProfile(ctx, userID)
	if err != nil {
		s.fail(w, err, "load profile")
		return
	}
	if profile.ProfilePhoto != "" {
		if key := storage.KeyFromURL(profile.ProfilePhoto); key != "" {
			if err := s.Store.Remove(ctx, storage.ProfilePhotos, key); err != nil {
				s.Logger.Warnf("failed to remove old photo %s for %v: %v", key, userID, err)
			}
		}
	}

	url, err := s.Store.Put(ctx, storage.ProfilePhotos, storage.ProfilePhotoKey(userID, img.Ext), img.Body, header.Size, img.ContentType)
	if err != nil {
		s.fail(w, err, "upload photo")
		return
	}
	if err := database.SetProfilePhoto(ctx, userID, url); err != nil {
		s.fail(w, err, "save photo")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"profile_photo": url})
}

// DeletePhotoHandler removes the stored photo and clears profile_photo.
func (s *Server) DeletePhotoHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	profile, err := database.GetProfile(ctx, userID)
	if err != nil {
		s.fail(w, err, "load profile")
		return
	}
	if profile.ProfilePhoto == "" {
		http.Error(w, "no profile photo", http.StatusNotFound)
		return
	}
	if key := storage.KeyFromURL(profile.ProfilePhoto); key != "" {
		if err := s.Store.Remove(ctx, storage.ProfilePhotos, key); err != nil {
			s.fail(w, err, "remove photo")
			return
		}
	}
	if err := database.SetProfilePhoto(ctx, userID, ""); err != nil {
		s.fail(w, err, "clear photo")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) PhotoVisibilityHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticate(w, r)
	if !ok {
		return
	}
	var req models.PhotoVisibilityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := database.SetProfilePhotoVisibility(r.Context(), userID, req.Visible); err != nil {
		s.fail(w, err, "update photo visibility")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// sniffImage checks the upload's leading bytes; the declared part type alone is not trusted.
func (s *Server) sniffImage(w http.ResponseWriter, file io.Reader) (*storage.Image, bool) {
	img, err := storage.SniffImage(file)
	if err != nil {
		if errors.Is(err, storage.ErrNotImage) {
			http.Error(w, "Please upload an image file", http.StatusBadRequest)
			return nil, false
		}
		s.fail(w, err, "read upload")
		return nil, false
	}
	return img, true
}

func (s *Server) maxPhotoBytes() int64 {
	if s.Config != nil && s.Config.MaxPhotoBytes > 0 {
		return s.Config.MaxPhotoBytes
	}
	return defaultMaxPhotoBytes
}

func (s *Server) maxUploadBytes() int64 {
	if s.Config != nil && s.Config.MaxUploadBytes > 0 {
		return s.Config.MaxUploadBytes
	}
	return 2 * defaultMaxPhotoBytes
}
