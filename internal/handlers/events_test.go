package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"irrigation_monitor/internal/models"
	"irrigation_monitor/internal/service"
)

func TestEventsHandler_ListAndValidation(t *testing.T) {
	auth := &mockAuth{subject: "99"}
	now := time.Now().UTC().Truncate(time.Second)
	events := []models.ZoneEvent{
		{EventID: "e1", OccurredAt: now, Zone: 2, Type: models.EventCommandStart, Level: models.LevelInfo, Description: "start"},
		{EventID: "e2", OccurredAt: now.Add(1 * time.Second), Zone: 2, Type: models.EventTransitionTimeout, Level: models.LevelCritical, Description: "timeout"},
	}
	logs := &mockEventLog{resp: events}
	s := &service.Service{
		Authorization: auth,
		EventLog:      logs,
	}
	r := newTestRouter(s)

	// invalid 'from' -> 400
	w := httptest.NewRecorder()
	r.ServeHTTP(w, withAuth(httptest.NewRequest(http.MethodGet, "/api/v1/events?from=notatime", nil)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 invalid 'from', got %d", w.Code)
	}

	// invalid zone -> 400
	w = httptest.NewRecorder()
	r.ServeHTTP(w, withAuth(httptest.NewRequest(http.MethodGet, "/api/v1/events?zone=0", nil)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 invalid zone, got %d", w.Code)
	}

	// reversed range -> 400
	w = httptest.NewRecorder()
	r.ServeHTTP(w, withAuth(httptest.NewRequest(http.MethodGet, "/api/v1/events?from=2025-08-02&to=2025-08-01", nil)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 reversed range, got %d", w.Code)
	}

	// Valid range, zone and type (lowercase type is normalized)
	w = httptest.NewRecorder()
	q := "/api/v1/events?from=" + now.Format(time.RFC3339) + "&to=" + now.Add(2*time.Second).Format(time.RFC3339) +
		"&type=transition_timeout&zone=2"
	r.ServeHTTP(w, withAuth(httptest.NewRequest(http.MethodGet, q, nil)))
	if w.Code != http.StatusOK {
		t.Fatalf("events status=%d, body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Count  int                `json:"count"`
		Events []models.ZoneEvent `json:"events"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Count != 2 || len(out.Events) != 2 {
		t.Fatalf("unexpected response: %+v", out)
	}
	if logs.lastType != models.EventTransitionTimeout || logs.lastZone != 2 {
		t.Fatalf("filter passed: type=%q zone=%d", logs.lastType, logs.lastZone)
	}
	if !logs.lastFrom.Equal(now) {
		t.Fatalf("from: got %v, want %v", logs.lastFrom, now)
	}
}

func TestEventsHandler_DateOnlyToIsEndOfDay(t *testing.T) {
	logs := &mockEventLog{}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{subject: "1"}, EventLog: logs})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, withAuth(httptest.NewRequest(http.MethodGet, "/api/v1/events?to=2025-08-31", nil)))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	want := time.Date(2025, time.August, 31, 23, 59, 59, 999999999, time.UTC)
	if !logs.lastTo.Equal(want) {
		t.Fatalf("to: got %v, want %v", logs.lastTo, want)
	}
}
