package uploads

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// AllowedTypes maps accepted image content types to file extensions.
var AllowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

// Uploader stores a user's media object and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, ownerID, contentType string, r io.Reader) (string, error)
}

// BucketUploader writes objects to a Firebase Storage (GCS) bucket and
// returns token-protected download URLs.
type BucketUploader struct {
	bucket *gcs.BucketHandle
}

func NewBucketUploader(bucket *gcs.BucketHandle) *BucketUploader {
	return &BucketUploader{bucket: bucket}
}

// ObjectName is the object path for a new upload of the owner.
func ObjectName(ownerID, ext string) string {
	return path.Join("uploads", ownerID, uuid.NewString()+ext)
}

// DownloadURL builds the Firebase Storage download URL of an object.
func DownloadURL(bucket, object, token string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucket, url.PathEscape(object), token)
}

func (u *BucketUploader) Upload(ctx context.Context, ownerID, contentType string, r io.Reader) (string, error) {
	ext, ok := AllowedTypes[strings.ToLower(contentType)]
	if !ok {
		return "", fmt.Errorf("unsupported content type %q", contentType)
	}
	name := ObjectName(ownerID, ext)
	token := uuid.NewString()

	w := u.bucket.Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{
		"firebaseStorageDownloadTokens": token,
		"owner":                         ownerID,
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", name, err)
	}
	return DownloadURL(u.bucket.BucketName(), name, token), nil
}
