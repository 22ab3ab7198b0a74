package thingprovider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Amund211/thingcache/internal/adapters/cache"
	"github.com/Amund211/thingcache/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockHttpClient struct {
	t *testing.T

	status int
	body   string
	err    error

	mu       sync.Mutex
	requests []*http.Request
}

func (m *mockHttpClient) Do(req *http.Request) (*http.Response, error) {
	m.t.Helper()

	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	return &http.Response{
		StatusCode: m.status,
		Body:       io.NopCloser(strings.NewReader(m.body)),
	}, nil
}

func TestThingFromResponse(t *testing.T) {
	t.Parallel()

	updatedAt := time.Date(2026, time.February, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		response   string
		statusCode int
		expected   cache.Outcome[domain.Thing]
		err        error
		anyErr     bool
	}{
		{
			name:       "valid response",
			response:   `{"id":"thing-1","name":"First","payload":{"a":[1,2]},"updatedAt":"2026-02-01T10:00:00Z"}`,
			statusCode: 200,
			expected: cache.Found(domain.Thing{
				ID:        "thing-1",
				Name:      "First",
				Payload:   []byte(`{"a":[1,2]}`),
				UpdatedAt: updatedAt,
			}),
		},
		{
			name:       "non-utc timestamp",
			response:   `{"id":"thing-1","name":"First","updatedAt":"2026-02-01T12:00:00+02:00"}`,
			statusCode: 200,
			expected: cache.Found(domain.Thing{
				ID:        "thing-1",
				Name:      "First",
				UpdatedAt: updatedAt,
			}),
		},
		{
			name:       "404",
			response:   `{"error":"no such thing"}`,
			statusCode: 404,
			expected:   cache.NotFound[domain.Thing](),
		},
		{
			name:       "410 no body",
			statusCode: 410,
			expected:   cache.NotFound[domain.Thing](),
		},
		{
			name:       "429",
			statusCode: 429,
			err:        domain.ErrTemporarilyUnavailable,
		},
		{
			name:       "503",
			statusCode: 503,
			err:        domain.ErrTemporarilyUnavailable,
		},
		{
			name:       "504",
			statusCode: 504,
			err:        domain.ErrTemporarilyUnavailable,
		},
		{
			name:       "500",
			response:   `internal error`,
			statusCode: 500,
			anyErr:     true,
		},
		{
			name:       "invalid json",
			response:   `{"id":`,
			statusCode: 200,
			anyErr:     true,
		},
		{
			name:       "missing id",
			response:   `{"name":"nameless"}`,
			statusCode: 200,
			anyErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			outcome, err := thingFromResponse(tt.statusCode, []byte(tt.response))
			switch {
			case tt.err != nil:
				require.ErrorIs(t, err, tt.err)
				assert.False(t, outcome.IsFound())
			case tt.anyErr:
				require.Error(t, err)
				assert.NotErrorIs(t, err, domain.ErrTemporarilyUnavailable)
				assert.False(t, outcome.IsFound())
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.expected, outcome)
			}
		})
	}
}

func TestHTTP(t *testing.T) {
	t.Parallel()

	t.Run("request", func(t *testing.T) {
		t.Parallel()

		client := &mockHttpClient{
			t:      t,
			status: 200,
			body:   `{"id":"a b/c","name":"spaced","updatedAt":"2026-02-01T10:00:00Z"}`,
		}
		provider := NewHTTP(client, "https://things.example.com/api/", 100, 10)

		outcome, err := provider.TryRead(t.Context(), "a b/c")
		require.NoError(t, err)

		thing, ok := outcome.Value()
		require.True(t, ok)
		require.Equal(t, "a b/c", thing.ID)

		require.Len(t, client.requests, 1)
		req := client.requests[0]
		require.Equal(t, http.MethodGet, req.Method)
		require.Equal(t, "https://things.example.com/api/things/a%20b%2Fc", req.URL.String())
		require.Equal(t, USER_AGENT, req.Header.Get("User-Agent"))
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		client := &mockHttpClient{t: t, status: 404}
		provider := NewHTTP(client, "https://things.example.com", 100, 10)

		outcome, err := provider.TryRead(t.Context(), "missing")
		require.NoError(t, err)
		require.False(t, outcome.IsFound())
	})

	t.Run("transport error", func(t *testing.T) {
		t.Parallel()

		transportErr := errors.New("connection refused")
		client := &mockHttpClient{t: t, err: transportErr}
		provider := NewHTTP(client, "https://things.example.com", 100, 10)

		_, err := provider.TryRead(t.Context(), "thing")
		require.ErrorIs(t, err, transportErr)
	})

	t.Run("cancelled while rate limited", func(t *testing.T) {
		t.Parallel()

		client := &mockHttpClient{t: t, status: 200, body: `{"id":"thing"}`}
		provider := NewHTTP(client, "https://things.example.com", 0.001, 1)

		_, err := provider.TryRead(t.Context(), "thing")
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
		defer cancel()

		_, err = provider.TryRead(ctx, "thing")
		require.ErrorIs(t, err, domain.ErrTemporarilyUnavailable)
		require.Len(t, client.requests, 1)
	})

	t.Run("behind a read-through cache", func(t *testing.T) {
		t.Parallel()

		client := &mockHttpClient{t: t, status: 200, body: `{"id":"thing","name":"cached"}`}
		provider := NewHTTP(client, "https://things.example.com", 100, 10)

		rt := cache.NewReadThrough[domain.Thing](cache.NewBasicCache[domain.Thing](), provider)
		t.Cleanup(rt.Stop)

		for range 5 {
			outcome, err := rt.Get(t.Context(), "thing")
			require.NoError(t, err)
			require.True(t, outcome.IsFound())
		}
		require.Len(t, client.requests, 1)
	})
}
