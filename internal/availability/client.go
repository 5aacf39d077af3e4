package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wolfman30/medspa-booking-flow/pkg/logging"
)

const defaultTimeout = 15 * time.Second

// HTTPBackend calls the availability lookup service over REST.
type HTTPBackend struct {
	httpClient *http.Client
	baseURL    string
	logger     *logging.Logger
}

// NewHTTPBackend constructs a REST availability backend.
func NewHTTPBackend(baseURL string, timeout time.Duration, logger *logging.Logger) *HTTPBackend {
	if strings.TrimSpace(baseURL) == "" {
		panic("availability: backend base URL required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &HTTPBackend{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

// GetAvailability fetches the bookable days for a service within a range.
func (b *HTTPBackend) GetAvailability(ctx context.Context, serviceID, rangeStartISO, rangeEndISO, timeZone string) ([]Day, error) {
	q := url.Values{}
	q.Set("serviceId", serviceID)
	q.Set("start", rangeStartISO)
	q.Set("end", rangeEndISO)
	q.Set("timeZone", timeZone)
	endpoint := b.baseURL + "/availability?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("availability: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Message: "availability service unreachable", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &FetchError{StatusCode: resp.StatusCode, Message: "failed to read availability response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		b.logger.Warn("availability: backend error", "status", resp.StatusCode, "service_id", serviceID)
		return nil, &FetchError{StatusCode: resp.StatusCode, Message: msg}
	}

	days, err := decodeDays(body)
	if err != nil {
		return nil, &FetchError{StatusCode: resp.StatusCode, Message: "malformed availability response", Err: err}
	}
	return days, nil
}

// decodeDays accepts a bare array or an object wrapping it in "data" or "days".
func decodeDays(body []byte) ([]Day, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var days []Day
		if err := json.Unmarshal(body, &days); err != nil {
			return nil, err
		}
		return days, nil
	}
	var wrapped struct {
		Data []Day `json:"data"`
		Days []Day `json:"days"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	if len(wrapped.Data) > 0 {
		return wrapped.Data, nil
	}
	if wrapped.Days != nil {
		return wrapped.Days, nil
	}
	if wrapped.Data != nil {
		return wrapped.Data, nil
	}
	return []Day{}, nil
}
