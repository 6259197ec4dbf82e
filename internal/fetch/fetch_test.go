// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package fetch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/bankcap/internal/info"
)

func TestOpenRemote(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, info.UserAgent(), r.Header.Get("User-Agent"))
			_, _ = w.Write([]byte("<html><body>banks</body></html>"))
		case "/slow":
			time.Sleep(500 * time.Millisecond)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	testCases := map[string]struct {
		path        string
		timeout     time.Duration
		expectedErr bool
		expected    string
	}{
		"200 returns body": {
			path:     "/ok",
			expected: "<html><body>banks</body></html>",
		},
		"404 returns error": {
			path:        "/missing",
			expectedErr: true,
		},
		"client timeout returns error": {
			path:        "/slow",
			timeout:     50 * time.Millisecond,
			expectedErr: true,
		},
	}

	for name, test := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			reader, err := New(test.timeout).Open(t.Context(), srv.URL+test.path)
			if test.expectedErr {
				assert.ErrorIs(t, err, ErrUnavailable)
				assert.Nil(t, reader)
				return
			}

			require.NoError(t, err)
			defer reader.Close()
			body, err := io.ReadAll(reader)
			require.NoError(t, err)
			assert.Equal(t, test.expected, string(body))
		})
	}
}

func TestOpenRemoteBodyLimit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		size, err := strconv.Atoi(r.URL.Query().Get("size"))
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write(bytes.Repeat([]byte("x"), size))
	}))
	t.Cleanup(srv.Close)

	testCases := map[string]struct {
		maxBodySize int64
		size        int
		expectedErr bool
	}{
		"body at the limit": {
			maxBodySize: 16,
			size:        16,
		},
		"body over the limit": {
			maxBodySize: 16,
			size:        17,
			expectedErr: true,
		},
		"default limit": {
			maxBodySize: MaxBodySize,
			size:        MaxBodySize + 100,
			expectedErr: true,
		},
	}

	for name, test := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			fetcher := New(0)
			fetcher.maxBodySize = test.maxBodySize
			reader, err := fetcher.Open(t.Context(), srv.URL+"/?size="+strconv.Itoa(test.size))
			if test.expectedErr {
				assert.ErrorIs(t, err, ErrUnavailable)
				assert.ErrorContains(t, err, "larger than")
				assert.Nil(t, reader)
				return
			}

			require.NoError(t, err)
			defer reader.Close()
			body, err := io.ReadAll(reader)
			require.NoError(t, err)
			assert.Len(t, body, test.size)
		})
	}
}

func TestOpenRemoteCancelledContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := New(0).Open(ctx, srv.URL)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenLocal(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "page.html")
	require.NoError(t, os.WriteFile(path, []byte("local content"), 0o600))

	for name, locator := range map[string]string{
		"plain path":  path,
		"file scheme": "file://" + path,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			reader, err := New(0).Open(t.Context(), locator)
			require.NoError(t, err)
			defer reader.Close()

			body, err := io.ReadAll(reader)
			require.NoError(t, err)
			assert.Equal(t, "local content", string(body))
		})
	}

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := New(0).Open(t.Context(), filepath.Join(tmpDir, "missing.html"))
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("empty locator", func(t *testing.T) {
		t.Parallel()

		_, err := New(0).Open(t.Context(), "")
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestIsRemote(t *testing.T) {
	t.Parallel()

	assert.True(t, IsRemote("https://web.archive.org/web/x"))
	assert.True(t, IsRemote("HTTP://example.com"))
	assert.False(t, IsRemote("exchange_rate.csv"))
	assert.False(t, IsRemote("file:///tmp/page.html"))
}
