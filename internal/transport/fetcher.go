package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chatgate/internal/config"
	"chatgate/internal/constants"
	"chatgate/internal/logger"
	"chatgate/pkg/circuitbreaker"
	"chatgate/pkg/errors"
	"chatgate/pkg/models"
	"chatgate/pkg/retry"
)

const mediaPath = "/media"

// HTTPFetcher downloads media either through the bridge media endpoint or,
// without one, straight from the descriptor URL.
type HTTPFetcher struct {
	client   *http.Client
	baseURL  string
	token    string
	maxBytes int64
	policy   retry.Policy
	cb       *circuitbreaker.Wrapper
	logger   logger.Logger
}

func NewHTTPFetcher(cfg config.MediaConfig, token string, cbCfg config.CircuitBreakerConfig, log logger.Logger) *HTTPFetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = constants.DefaultMaxVideoBytes
	}
	return &HTTPFetcher{
		client:   &http.Client{Timeout: timeout},
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		token:    token,
		maxBytes: maxBytes,
		policy:   retry.PolicyFromConfig(cfg.Retry),
		cb:       circuitbreaker.FromConfig("media-fetch", cbCfg),
		logger:   log,
	}
}

// FetchMedia returns the media bytes for desc. The body is buffered so a
// failed attempt can be retried; failures surface as MEDIA_FETCH_FAILURE.
func (f *HTTPFetcher) FetchMedia(ctx context.Context, desc models.MediaDescriptor) (io.ReadCloser, error) {
	target, err := f.target(desc)
	if err != nil {
		return nil, errors.ErrMediaFetchFailure.WithCause(err).AsFatal()
	}

	var data []byte
	err = retry.RetryWithCallback(ctx, f.policy, func() error {
		body, err := circuitbreaker.Execute(ctx, f.cb, func() ([]byte, error) {
			return f.get(ctx, target)
		})
		if err != nil {
			return err
		}
		data = body
		return nil
	}, func(attempt int, err error, nextDelay time.Duration) {
		f.logger.WarnwCtx(ctx, "Media fetch failed, retrying",
			"kind", desc.Kind,
			"attempt", attempt,
			"next_delay", nextDelay,
			"error", err,
		)
	})
	if err != nil {
		return nil, errors.ErrMediaFetchFailure.WithCause(err).WithDetail("kind", string(desc.Kind))
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *HTTPFetcher) target(desc models.MediaDescriptor) (string, error) {
	if f.baseURL != "" {
		q := url.Values{}
		q.Set("kind", string(desc.Kind))
		if desc.Locator.URL != "" {
			q.Set("url", desc.Locator.URL)
		}
		if desc.Locator.DirectPath != "" {
			q.Set("direct_path", desc.Locator.DirectPath)
		}
		if desc.Locator.MediaKey != "" {
			q.Set("media_key", desc.Locator.MediaKey)
		}
		if desc.Mimetype != "" {
			q.Set("mimetype", desc.Mimetype)
		}
		return f.baseURL + mediaPath + "?" + q.Encode(), nil
	}
	if desc.Locator.URL != "" {
		return desc.Locator.URL, nil
	}
	return "", fmt.Errorf("media has no url and no media endpoint is configured")
}

func (f *HTTPFetcher) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, retry.NewFatalError(fmt.Errorf("failed to create request: %w", err))
	}
	if f.token != "" && f.baseURL != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
		statusErr := fmt.Errorf("media endpoint returned status: %d", resp.StatusCode)
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return nil, statusErr
		}
		return nil, retry.NewFatalError(statusErr)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read media: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, retry.NewFatalError(fmt.Errorf("media exceeds %d bytes", f.maxBytes))
	}
	return body, nil
}
