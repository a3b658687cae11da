// Package source abstracts where dataset files live. A Source hands the
// loader a byte stream and a version fingerprint; the pipeline uses the
// fingerprint to decide whether a cached snapshot is still current.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Common errors for source operations.
var (
	ErrNotFound   = errors.New("dataset not found")
	ErrReadFailed = errors.New("dataset read failed")
)

// Fingerprint identifies one version of a dataset object. A changed
// fingerprint invalidates any snapshot built from the previous version.
type Fingerprint struct {
	ModTime time.Time
	Size    int64
	ETag    string
}

// String renders the fingerprint as a stable cache key component.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%d-%d-%s", f.ModTime.UTC().Unix(), f.Size, f.ETag)
}

// Source provides read access to one dataset object.
type Source interface {
	// Name identifies the dataset in logs and cache keys
	// (a file path or an s3:// URL).
	Name() string

	// Fingerprint returns the current version stamp without reading the body.
	Fingerprint(ctx context.Context) (Fingerprint, error)

	// Open returns the object body. The caller closes it.
	Open(ctx context.Context) (io.ReadCloser, error)
}
