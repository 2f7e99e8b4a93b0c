package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"irrigation_monitor/internal/models"
)

type recordedRequest struct {
	method string
	path   string
	auth   string
	body   string
}

func newTestServer(t *testing.T, status int, response string) (*Client, *[]recordedRequest) {
	t.Helper()
	var got []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got = append(got, recordedRequest{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization"), body: string(b)})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/api", time.Second, "secret")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, &got
}

func TestZoneStatus_ParsesDynamicKeys(t *testing.T) {
	c, reqs := newTestServer(t, http.StatusOK, `{"1":{"active":true,"remaining":42},"2":{"active":false,"remaining":0},"pump":{"active":true}}`)

	got, err := c.ZoneStatus(context.Background())
	if err != nil {
		t.Fatalf("ZoneStatus: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 zones, got %d: %+v", len(got), got)
	}
	if got[1] != (models.ObservedState{Active: true, RemainingSeconds: 42}) {
		t.Fatalf("zone 1: %+v", got[1])
	}
	if got[2].Active {
		t.Fatalf("zone 2 should be inactive")
	}
	r := (*reqs)[0]
	if r.method != http.MethodGet || r.path != "/api/zones/status" || r.auth != "Bearer secret" {
		t.Fatalf("unexpected request: %+v", r)
	}
}

func TestTimers_ReadsTimersObject(t *testing.T) {
	c, _ := newTestServer(t, http.StatusOK, `{"timers":{"3":{"active":true,"remaining_seconds":118}}}`)

	got, err := c.Timers(context.Background())
	if err != nil {
		t.Fatalf("Timers: %v", err)
	}
	if got[3] != (models.ObservedState{Active: true, RemainingSeconds: 118}) {
		t.Fatalf("zone 3: %+v", got[3])
	}
}

func TestTimers_MissingTimersIsEmpty(t *testing.T) {
	c, _ := newTestServer(t, http.StatusOK, `{}`)
	got, err := c.Timers(context.Background())
	if err != nil || len(got) != 0 {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestManualTimer_StartAndStop(t *testing.T) {
	c, reqs := newTestServer(t, http.StatusAccepted, `{}`)

	if err := c.StartManualTimer(context.Background(), 2, 120); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.StopManualTimer(context.Background(), 2); err != nil {
		t.Fatalf("stop: %v", err)
	}

	start, stop := (*reqs)[0], (*reqs)[1]
	if start.method != http.MethodPost || start.path != "/api/manual-timer/2" {
		t.Fatalf("start request: %+v", start)
	}
	var body map[string]int
	if err := json.Unmarshal([]byte(start.body), &body); err != nil || body["duration"] != 120 {
		t.Fatalf("start body: %q (%v)", start.body, err)
	}
	if stop.method != http.MethodDelete || stop.path != "/api/manual-timer/2" {
		t.Fatalf("stop request: %+v", stop)
	}
}

func TestDo_Non2xxIsStatusError(t *testing.T) {
	c, _ := newTestServer(t, http.StatusServiceUnavailable, `relay bus busy`)

	err := c.StartManualTimer(context.Background(), 1, 60)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.Code != http.StatusServiceUnavailable || se.Body != "relay bus busy" {
		t.Fatalf("unexpected status error: %+v", se)
	}
}

func TestResolveTimes(t *testing.T) {
	c, reqs := newTestServer(t, http.StatusOK, `["05:48","N/A"]`)

	got, err := c.ResolveTimes(context.Background(), ResolveRequest{Codes: []string{"SUNRISE", "SUNSET"}, Date: "2025-06-10", Lat: 1.5, Lon: 2.5})
	if err != nil {
		t.Fatalf("ResolveTimes: %v", err)
	}
	if len(got) != 2 || got[0] != "05:48" || got[1] != models.Unresolved {
		t.Fatalf("got %v", got)
	}
	var sent ResolveRequest
	if err := json.Unmarshal([]byte((*reqs)[0].body), &sent); err != nil {
		t.Fatalf("decode sent body: %v", err)
	}
	if sent.Date != "2025-06-10" || sent.Lat != 1.5 || len(sent.Codes) != 2 {
		t.Fatalf("sent body: %+v", sent)
	}
}

func TestResolveTimes_Misaligned(t *testing.T) {
	c, _ := newTestServer(t, http.StatusOK, `["05:48"]`)
	_, err := c.ResolveTimes(context.Background(), ResolveRequest{Codes: []string{"SUNRISE", "SUNSET"}})
	if !errors.Is(err, ErrMisalignedResolve) {
		t.Fatalf("expected ErrMisalignedResolve, got %v", err)
	}
}

func TestPostLog(t *testing.T) {
	c, reqs := newTestServer(t, http.StatusCreated, `{}`)
	ts := time.Date(2025, 6, 10, 7, 0, 0, 0, time.UTC)
	if err := c.PostLog(context.Background(), LogEntry{Level: "CRITICAL", Message: "zone 2 stuck", Timestamp: ts}); err != nil {
		t.Fatalf("PostLog: %v", err)
	}
	var sent map[string]any
	_ = json.Unmarshal([]byte((*reqs)[0].body), &sent)
	if sent["level"] != "CRITICAL" || sent["message"] != "zone 2 stuck" || sent["timestamp"] != "2025-06-10T07:00:00Z" {
		t.Fatalf("sent: %+v", sent)
	}
}
