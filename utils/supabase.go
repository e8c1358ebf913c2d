package utils

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	storage "github.com/supabase-community/storage-go"
)

const storagePublicPrefix = "/storage/v1/object/public/"

// SupabaseDocumentStore keeps uploaded documents in one Supabase Storage bucket.
type SupabaseDocumentStore struct {
	baseURL string
	key     string
	bucket  string
	client  *storage.Client
	http    *http.Client
}

func NewSupabaseDocumentStore(baseURL, key, bucket string) *SupabaseDocumentStore {
	baseURL = strings.TrimRight(baseURL, "/")
	return &SupabaseDocumentStore{
		baseURL: baseURL,
		key:     key,
		bucket:  bucket,
		client:  storage.NewClient(baseURL+"/storage/v1", key, nil),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Upload stores data under objectPath and returns its public URL.
func (s *SupabaseDocumentStore) Upload(_ context.Context, objectPath string, data []byte, contentType string) (string, error) {
	opts := storage.FileOptions{ContentType: &contentType}
	if _, err := s.client.UploadFile(s.bucket, objectPath, bytes.NewReader(data), opts); err != nil {
		return "", fmt.Errorf("upload %s: %w", objectPath, err)
	}
	return s.PublicURL(objectPath), nil
}

func (s *SupabaseDocumentStore) PublicURL(objectPath string) string {
	return s.baseURL + storagePublicPrefix + s.bucket + "/" + objectPath
}

// Delete removes the object behind a public URL produced by Upload.
// URLs that point elsewhere are ignored.
func (s *SupabaseDocumentStore) Delete(ctx context.Context, publicURL string) error {
	objectPath, ok := s.objectPath(publicURL)
	if !ok {
		return nil
	}

	segments := strings.Split(objectPath, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	deleteURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, strings.Join(segments, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, deleteURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("apikey", s.key)

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("delete %s: status=%d body=%s", objectPath, resp.StatusCode, body)
	}
	return nil
}

func (s *SupabaseDocumentStore) objectPath(publicURL string) (string, bool) {
	prefix := s.baseURL + storagePublicPrefix + s.bucket + "/"
	if !strings.HasPrefix(publicURL, prefix) {
		return "", false
	}
	object := strings.TrimPrefix(publicURL, prefix)
	if i := strings.Index(object, "?"); i != -1 {
		object = object[:i]
	}
	if u, err := url.PathUnescape(object); err == nil {
		object = u
	}
	return object, object != ""
}
