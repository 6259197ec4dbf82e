// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package fetch opens remote or local documents behind a single locator string.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mia-platform/bankcap/internal/info"
)

const (
	// DefaultTimeout bounds every remote request.
	DefaultTimeout = 30 * time.Second
	// MaxBodySize is the maximum number of bytes read from a remote document.
	MaxBodySize = 10 * 1024 * 1024
)

var (
	// ErrUnavailable reports a document that cannot be retrieved.
	ErrUnavailable = errors.New("document unavailable")
)

// Fetcher opens locators. The zero value is not usable, use New.
type Fetcher struct {
	client      *http.Client
	maxBodySize int64
}

// New returns a Fetcher whose remote requests time out after timeout.
// A non positive timeout falls back to DefaultTimeout.
func New(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Fetcher{
		client:      &http.Client{Timeout: timeout},
		maxBodySize: MaxBodySize,
	}
}

// IsRemote reports whether locator points to an http or https resource.
func IsRemote(locator string) bool {
	lower := strings.ToLower(locator)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Open returns the content of locator. Remote locators are downloaded in full before
// returning and a body over MaxBodySize is an error, local ones are opened from disk. The caller must close the returned reader.
func (f *Fetcher) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	if locator == "" {
		return nil, fmt.Errorf("%w: empty locator", ErrUnavailable)
	}

	if IsRemote(locator) {
		body, err := f.get(ctx, locator)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return io.NopCloser(bytes.NewReader(body)), nil
	}

	file, err := os.Open(strings.TrimPrefix(locator, "file://"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return file, nil
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", info.UserAgent())

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if int64(len(body)) > f.maxBodySize {
		return nil, fmt.Errorf("body of %s larger than %d bytes", url, f.maxBodySize)
	}

	return body, nil
}
