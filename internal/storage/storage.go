package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jason-s-yu/campus/internal/config"
)

// Bucket names.
const (
	ProfilePhotos = "profile_photos"
	PostImages    = "post_images"
)

var (
	ErrInvalidKey = errors.New("invalid object key")
	ErrNotImage   = errors.New("not an image")
)

// Store puts and removes public objects addressed by bucket and key.
type Store interface {
	// Put writes r and returns the object's public URL.
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) (string, error)
	// Remove deletes the object. A missing object is not an error.
	Remove(ctx context.Context, bucket, key string) error
	PublicURL(bucket, key string) string
}

// New builds the store selected by cfg.StorageDriver.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StorageDriver {
	case "s3":
		return NewS3Store(ctx, S3Options{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
			Bucket:    cfg.S3Bucket,
			PublicURL: cfg.S3PublicURL,
		})
	case "disk":
		return NewDiskStore(cfg.StorageDir, cfg.PublicBaseURL+DiskURLPrefix)
	}
	return nil, fmt.Errorf("storage: unknown driver %q", cfg.StorageDriver)
}

// ProfilePhotoKey is "<user_id>/profile.<ext>".
func ProfilePhotoKey(userID uuid.UUID, ext string) string {
	return userID.String() + "/profile." + ext
}

// PostImageKey is "<user_id>/<unix_ms>.<ext>".
func PostImageKey(userID uuid.UUID, ext string, now time.Time) string {
	return fmt.Sprintf("%s/%d.%s", userID, now.UnixMilli(), ext)
}

// imageExts lists the accepted image types. Keys never take their extension from the client's filename.
var imageExts = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// ImageExt returns the key extension for an accepted image content type.
func ImageExt(contentType string) (string, bool) {
	ct, _, _ := strings.Cut(strings.ToLower(contentType), ";")
	ext, ok := imageExts[strings.TrimSpace(ct)]
	return ext, ok
}

// Image is an upload whose leading bytes were sniffed as an accepted image type.
type Image struct {
	ContentType string
	Ext         string
	// Body replays the sniffed bytes followed by the rest of the upload.
	Body io.Reader
}

// SniffImage reads up to 512 bytes of r and checks them with http.DetectContentType.
// It returns ErrNotImage when the content is not jpeg, png, gif or webp, whatever the client declared.
func SniffImage(r io.Reader) (*Image, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("storage: read upload: %w", err)
	}
	head = head[:n]

	ct := http.DetectContentType(head)
	ext, ok := ImageExt(ct)
	if !ok {
		return nil, ErrNotImage
	}
	return &Image{ContentType: ct, Ext: ext, Body: io.MultiReader(bytes.NewReader(head), r)}, nil
}

// KeyFromURL recovers an object key from its public URL: the last two path segments.
func KeyFromURL(publicURL string) string {
	if i := strings.IndexAny(publicURL, "?#"); i >= 0 {
		publicURL = publicURL[:i]
	}
	parts := strings.Split(strings.TrimRight(publicURL, "/"), "/")
	if len(parts) < 2 || parts[len(parts)-2] == "" || parts[len(parts)-1] == "" {
		return ""
	}
	return parts[len(parts)-2] + "/" + parts[len(parts)-1]
}

// IsImage reports whether contentType is image/*.
func IsImage(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "image/")
}

func checkKey(bucket, key string) error {
	if bucket == "" || key == "" {
		return ErrInvalidKey
	}
	for _, seg := range strings.Split(bucket+"/"+key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}
