// Package backend is the HTTP client for the irrigation controller API.
package backend

import (
	"bytes"
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

	"irrigation_monitor/internal/models"

	"github.com/tidwall/gjson"
)

const (
	pathZoneStatus   = "zones/status"
	pathTimers       = "scheduler/timers"
	pathManualTimer  = "manual-timer/"
	pathResolveTimes = "resolve_times"
	pathSchedule     = "schedule"
	pathLogs         = "logs"

	defaultTimeout = 10 * time.Second
	maxErrorBody   = 512
)

var (
	ErrMalformedResponse = errors.New("malformed backend response")
	ErrMisalignedResolve = errors.New("resolve_times returned a different number of values")
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// ResolveRequest asks the controller to turn symbolic time codes into clock times.
type ResolveRequest struct {
	Codes []string `json:"codes"`
	Date  string   `json:"date"` // YYYY-MM-DD
	Lat   float64  `json:"lat"`
	Lon   float64  `json:"lon"`
}

// LogEntry is posted to the controller's log sink.
type LogEntry struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Client talks to the controller. The zero value is not usable; use New.
type Client struct {
	base  *url.URL
	http  *http.Client
	token string
}

// New builds a client for baseURL. A trailing slash is added so relative paths resolve under it.
func New(baseURL string, timeout time.Duration, token string) (*Client, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url %q: %w", baseURL, err)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{base: u, http: &http.Client{Timeout: timeout}, token: token}, nil
}

// ZoneStatus reads the hardware relay state of every zone.
func (c *Client) ZoneStatus(ctx context.Context) (map[models.ZoneID]models.ObservedState, error) {
	body, err := c.do(ctx, http.MethodGet, pathZoneStatus, nil)
	if err != nil {
		return nil, err
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("%s: %w", pathZoneStatus, ErrMalformedResponse)
	}
	return parseZoneMap(root, "remaining"), nil
}

// Timers reads the client-initiated manual timers.
func (c *Client) Timers(ctx context.Context) (map[models.ZoneID]models.ObservedState, error) {
	body, err := c.do(ctx, http.MethodGet, pathTimers, nil)
	if err != nil {
		return nil, err
	}
	timers := gjson.GetBytes(body, "timers")
	if !timers.Exists() {
		return map[models.ZoneID]models.ObservedState{}, nil
	}
	if !timers.IsObject() {
		return nil, fmt.Errorf("%s: %w", pathTimers, ErrMalformedResponse)
	}
	return parseZoneMap(timers, "remaining_seconds"), nil
}

// StartManualTimer asks the controller to run zone for seconds.
func (c *Client) StartManualTimer(ctx context.Context, zone models.ZoneID, seconds int) error {
	payload := map[string]int{"duration": seconds}
	_, err := c.do(ctx, http.MethodPost, pathManualTimer+strconv.Itoa(int(zone)), payload)
	return err
}

// StopManualTimer cancels the manual timer of zone.
func (c *Client) StopManualTimer(ctx context.Context, zone models.ZoneID) error {
	_, err := c.do(ctx, http.MethodDelete, pathManualTimer+strconv.Itoa(int(zone)), nil)
	return err
}

// ResolveTimes returns one "HH:MM" or "N/A" per requested code, in order.
func (c *Client) ResolveTimes(ctx context.Context, req ResolveRequest) ([]string, error) {
	body, err := c.do(ctx, http.MethodPost, pathResolveTimes, req)
	if err != nil {
		return nil, err
	}
	root := gjson.ParseBytes(body)
	if !root.IsArray() {
		return nil, fmt.Errorf("%s: %w", pathResolveTimes, ErrMalformedResponse)
	}
	items := root.Array()
	if len(items) != len(req.Codes) {
		return nil, fmt.Errorf("%w: sent %d, got %d", ErrMisalignedResolve, len(req.Codes), len(items))
	}
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.String()
		if out[i] == "" {
			out[i] = models.Unresolved
		}
	}
	return out, nil
}

// Schedule fetches every zone schedule.
func (c *Client) Schedule(ctx context.Context) ([]models.ScheduleSpec, error) {
	body, err := c.do(ctx, http.MethodGet, pathSchedule, nil)
	if err != nil {
		return nil, err
	}
	return ParseSchedule(body)
}

// PostLog sends one entry to the controller log sink.
func (c *Client) PostLog(ctx context.Context, e LogEntry) error {
	_, err := c.do(ctx, http.MethodPost, pathLogs, e)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.ResolveReference(&url.URL{Path: path}).String(), reader)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

// parseZoneMap reads {"<zone>": {"active": bool, "<remainingKey>": n}}. Keys that are not
// positive integers are skipped.
func parseZoneMap(obj gjson.Result, remainingKey string) map[models.ZoneID]models.ObservedState {
	out := make(map[models.ZoneID]models.ObservedState)
	obj.ForEach(func(key, value gjson.Result) bool {
		id, err := strconv.Atoi(strings.TrimSpace(key.String()))
		if err != nil || !models.ZoneID(id).Valid() {
			return true
		}
		out[models.ZoneID(id)] = models.ObservedState{
			Active:           value.Get("active").Bool(),
			RemainingSeconds: int(value.Get(remainingKey).Int()),
		}
		return true
	})
	return out
}
