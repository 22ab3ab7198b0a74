package ports

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Amund211/thingcache/internal/app"
	"github.com/Amund211/thingcache/internal/domain"
	"github.com/Amund211/thingcache/internal/logging"
	"github.com/Amund211/thingcache/internal/ratelimiting"
	"github.com/Amund211/thingcache/internal/reporting"
)

type thingResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type getThingResponse struct {
	Success bool           `json:"success"`
	Thing   *thingResponse `json:"thing,omitempty"`
	Cause   string         `json:"cause,omitempty"`
}

// MakeGetThingHandler serves GET /v1/thing/{id}.
// The returned stop function releases the handler's rate limiter.
func MakeGetThingHandler(
	getThing app.GetThing,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) (http.HandlerFunc, func()) {
	tokenBucket, stopLimiter := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(8),
		ratelimiting.BurstSize(240),
	)
	ipRateLimiter := ratelimiting.NewRequestBasedRateLimiter(tokenBucket, ratelimiting.IPKeyFunc)

	onLimitExceeded := func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, []byte(`{"success":false,"cause":"rate limit exceeded"}`))
	}

	middleware := ComposeMiddlewares(
		buildMetricsMiddleware(),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware("getthing"),
		NewRateLimitMiddleware(ipRateLimiter, onLimitExceeded),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		thingID := r.PathValue("id")

		handleError := func(cause string, statusCode int) {
			data, err := json.Marshal(getThingResponse{Success: false, Cause: cause})
			if err != nil {
				reporting.Report(ctx, fmt.Errorf("failed to marshal error response: %w", err))
				writeJSON(w, http.StatusInternalServerError, []byte(`{"success":false,"cause":"internal server error"}`))
				return
			}
			writeJSON(w, statusCode, data)
		}

		userID := r.Header.Get("X-User-Id")
		ctx = reporting.SetUserIDInContext(ctx, userID)
		ctx = reporting.AddExtrasToContext(ctx, map[string]string{"thingId": thingID})

		idLength := len(thingID)
		if idLength == 0 || idLength > 100 {
			handleError("invalid thing id length", http.StatusBadRequest)
			return
		}

		thing, err := getThing(ctx, thingID)
		if errors.Is(err, domain.ErrThingNotFound) {
			handleError("not found", http.StatusNotFound)
			return
		} else if errors.Is(err, domain.ErrTemporarilyUnavailable) {
			handleError("temporarily unavailable", http.StatusServiceUnavailable)
			return
		} else if err != nil {
			// NOTE: GetThing implementations handle their own error reporting
			logging.FromContext(ctx).ErrorContext(ctx, "Failed to get thing", "error", err.Error())
			handleError("internal server error", http.StatusInternalServerError)
			return
		}

		ctx = logging.AddMetaToContext(ctx, slog.Time("thingUpdatedAt", thing.UpdatedAt))

		data, err := json.Marshal(getThingResponse{
			Success: true,
			Thing:   toThingResponse(thing),
		})
		if err != nil {
			reporting.Report(ctx, fmt.Errorf("failed to marshal thing response: %w", err))
			handleError("internal server error", http.StatusInternalServerError)
			return
		}

		logging.FromContext(ctx).InfoContext(ctx, "Served thing")
		writeJSON(w, http.StatusOK, data)
	}

	return middleware(handler), stopLimiter
}

// Payloads that are not valid JSON are sent as a base64 string
func toThingResponse(thing domain.Thing) *thingResponse {
	var payload json.RawMessage
	switch {
	case len(thing.Payload) == 0:
	case json.Valid(thing.Payload):
		payload = json.RawMessage(thing.Payload)
	default:
		encoded, _ := json.Marshal(base64.StdEncoding.EncodeToString(thing.Payload))
		payload = json.RawMessage(encoded)
	}

	return &thingResponse{
		ID:        thing.ID,
		Name:      thing.Name,
		Payload:   payload,
		UpdatedAt: thing.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(data)
}
