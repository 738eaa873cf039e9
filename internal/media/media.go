// Package media downloads message attachments on demand.
package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"chatgate/pkg/errors"
	"chatgate/pkg/metrics"
	"chatgate/pkg/models"
	"chatgate/pkg/tracing"
)

// Fetcher is the transport's media primitive.
type Fetcher interface {
	FetchMedia(ctx context.Context, desc models.MediaDescriptor) (io.ReadCloser, error)
}

// Download fetches and buffers the media behind desc.
func Download(ctx context.Context, f Fetcher, desc *models.MediaDescriptor) ([]byte, error) {
	if desc == nil {
		return nil, errors.ErrMediaFetchFailure.WithMessage("message has no media").AsFatal()
	}

	ctx, span := tracing.StartSpan(ctx, "media.download", "", "")
	defer span.End()

	kind := string(desc.Kind)
	start := time.Now()
	data, err := fetch(ctx, f, *desc)
	metrics.ObserveMediaFetchDuration(kind, time.Since(start))

	if err != nil {
		span.RecordError(err)
		metrics.MediaFetchTotal.WithLabelValues(kind, "error").Inc()
		if errors.Code(err) == errors.ErrMediaFetchFailure.Code {
			return nil, err
		}
		return nil, errors.ErrMediaFetchFailure.WithCause(err).WithDetail("kind", kind)
	}

	metrics.MediaFetchTotal.WithLabelValues(kind, "ok").Inc()
	return data, nil
}

func fetch(ctx context.Context, f Fetcher, desc models.MediaDescriptor) ([]byte, error) {
	rc, err := f.FetchMedia(ctx, desc)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read media: %w", err)
	}
	return data, nil
}

// SaveToFile downloads desc to name. With attachExtension the extension of
// the sniffed content type is appended. It returns the path written.
func SaveToFile(ctx context.Context, f Fetcher, desc *models.MediaDescriptor, name string, attachExtension bool) (string, error) {
	data, err := Download(ctx, f, desc)
	if err != nil {
		return "", err
	}

	path := name
	if attachExtension {
		path += Extension(data, desc.Mimetype)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.ErrMediaFetchFailure.WithCause(err).WithDetail("path", path).AsFatal()
	}
	return path, nil
}

// Extension picks a file extension from the content, falling back to the
// declared mimetype when sniffing finds nothing specific.
func Extension(data []byte, declared string) string {
	detected := mimetype.Detect(data)
	if ext := detected.Extension(); ext != "" && !detected.Is("application/octet-stream") {
		return ext
	}
	if declared != "" {
		if m := mimetype.Lookup(declared); m != nil && m.Extension() != "" {
			return m.Extension()
		}
	}
	return ".bin"
}
