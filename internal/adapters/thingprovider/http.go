package thingprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Amund211/thingcache/internal/adapters/cache"
	"github.com/Amund211/thingcache/internal/domain"
	"github.com/Amund211/thingcache/internal/logging"
	"github.com/Amund211/thingcache/internal/reporting"
	"golang.org/x/time/rate"
)

const USER_AGENT = "thingcache/1.0 (+https://github.com/Amund211/thingcache)"

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTP reads things from an upstream thing service
type HTTP struct {
	httpClient HttpClient
	baseURL    string
	limiter    *rate.Limiter
}

// NewHTTP paces outgoing requests to requestsPerSecond with the given burst
func NewHTTP(httpClient HttpClient, baseURL string, requestsPerSecond float64, burst int) *HTTP {
	return &HTTP{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

func (h *HTTP) TryRead(ctx context.Context, id string) (cache.Outcome[domain.Thing], error) {
	logger := logging.FromContext(ctx)

	err := h.limiter.Wait(ctx)
	if err != nil {
		// Either cancelled or the wait would exceed the deadline
		return cache.NotFound[domain.Thing](), fmt.Errorf("%w: waiting for upstream rate limit: %w", domain.ErrTemporarilyUnavailable, err)
	}

	thingURL := fmt.Sprintf("%s/things/%s", h.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, thingURL, nil)
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		reporting.Report(ctx, err)
		return cache.NotFound[domain.Thing](), err
	}

	req.Header.Set("User-Agent", USER_AGENT)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := h.httpClient.Do(req)
	if err != nil {
		err := fmt.Errorf("failed to send request: %w", err)
		reporting.Report(ctx, err)
		return cache.NotFound[domain.Thing](), err
	}

	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		err := fmt.Errorf("failed to read response body: %w", err)
		reporting.Report(ctx, err)
		return cache.NotFound[domain.Thing](), err
	}
	logger.InfoContext(ctx, "upstream request completed", "url", thingURL, "status", resp.StatusCode, "duration", time.Since(start).String())

	outcome, err := thingFromResponse(resp.StatusCode, data)
	if err != nil {
		if errors.Is(err, domain.ErrTemporarilyUnavailable) {
			// Pass through error but don't report
			return cache.NotFound[domain.Thing](), err
		}

		err := fmt.Errorf("failed to get thing from upstream response: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"data":   string(data),
			"status": strconv.Itoa(resp.StatusCode),
		})
		return cache.NotFound[domain.Thing](), err
	}

	return outcome, nil
}

type thingResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Payload   json.RawMessage `json:"payload"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func thingFromResponse(statusCode int, data []byte) (cache.Outcome[domain.Thing], error) {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return cache.NotFound[domain.Thing](), fmt.Errorf("%w: upstream returned status code %d", domain.ErrTemporarilyUnavailable, statusCode)
	case http.StatusNotFound,
		http.StatusGone:
		return cache.NotFound[domain.Thing](), nil
	case http.StatusOK:
	default:
		return cache.NotFound[domain.Thing](), fmt.Errorf("unexpected status code %d", statusCode)
	}

	var response thingResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return cache.NotFound[domain.Thing](), fmt.Errorf("failed to parse upstream response: %w", err)
	}

	if response.ID == "" {
		return cache.NotFound[domain.Thing](), fmt.Errorf("upstream response is missing id")
	}

	var payload []byte
	if len(response.Payload) > 0 {
		payload = []byte(response.Payload)
	}

	return cache.Found(domain.Thing{
		ID:        response.ID,
		Name:      response.Name,
		Payload:   payload,
		UpdatedAt: response.UpdatedAt.UTC(),
	}), nil
}
