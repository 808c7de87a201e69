// Package source reads raw statement bytes from a local path or a
// Cloud Storage object.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const gcsScheme = "gs://"

// ObjectFetcher downloads a single object.
type ObjectFetcher interface {
	Fetch(ctx context.Context, bucket, object string) ([]byte, error)
}

// GCSFetcher reads objects from Google Cloud Storage. With an empty
// credentials file it relies on Application Default Credentials.
type GCSFetcher struct {
	CredentialsFile string
}

// Fetch implements ObjectFetcher.
func (f GCSFetcher) Fetch(ctx context.Context, bucket, object string) ([]byte, error) {
	var opts []option.ClientOption
	if f.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(f.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("Fetch: creating storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}
	return data, nil
}

// Upload stores a local statement file as bucket/object so it can later
// be processed by its gs:// URI. It returns that URI.
func (f GCSFetcher) Upload(ctx context.Context, bucket, object, filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("Upload: open file %q: %w", filePath, err)
	}
	defer file.Close()

	var opts []option.ClientOption
	if f.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(f.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("Upload: creating storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = "application/x-ofx"
	if _, err := io.Copy(w, file); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Upload: copy file to GCS writer: %w", err)
	}
	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Upload: finalize upload: %w", err)
	}
	return gcsScheme + bucket + "/" + object, nil
}

// Loader resolves a statement location to its bytes.
type Loader struct {
	fetcher ObjectFetcher
}

// NewLoader returns a Loader. A nil fetcher limits it to local files.
func NewLoader(fetcher ObjectFetcher) *Loader {
	return &Loader{fetcher: fetcher}
}

// Load reads uri, which is either a gs://bucket/object URI or a file path.
func (l *Loader) Load(ctx context.Context, uri string) ([]byte, error) {
	if uri == "" {
		return nil, errors.New("Load: empty statement location")
	}

	if !IsGCSURI(uri) {
		data, err := os.ReadFile(uri)
		if err != nil {
			return nil, fmt.Errorf("Load: reading %s: %w", uri, err)
		}
		return data, nil
	}

	bucket, object, err := SplitGCSURI(uri)
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	if l.fetcher == nil {
		return nil, fmt.Errorf("Load: no object storage configured for %s", uri)
	}
	return l.fetcher.Fetch(ctx, bucket, object)
}

// IsGCSURI reports whether uri uses the gs:// scheme.
func IsGCSURI(uri string) bool {
	return strings.HasPrefix(uri, gcsScheme)
}

// SplitGCSURI splits gs://bucket/path/to/object into bucket and object.
func SplitGCSURI(uri string) (bucket, object string, err error) {
	if !IsGCSURI(uri) {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, gcsScheme), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// Filename returns the last path element of a GCS URI or file path.
// e.g., "gs://bucket/2024/extrato.ofx" → "extrato.ofx"
func Filename(uri string) string {
	if IsGCSURI(uri) {
		parts := strings.SplitN(strings.TrimPrefix(uri, gcsScheme), "/", 2)
		if len(parts) < 2 {
			return parts[0]
		}
		return path.Base(parts[1])
	}
	return filepath.Base(uri)
}
