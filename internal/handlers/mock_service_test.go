package handlers

import (
	"context"
	"net/http"
	"time"

	"irrigation_monitor/internal/models"
	"irrigation_monitor/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// ---- Service Mocks ----

type mockAuth struct {
	subject  string
	parseErr error

	lastParseToken string
}

func (m *mockAuth) ParseToken(token string) (string, error) {
	m.lastParseToken = token
	return m.subject, m.parseErr
}

type mockTimer struct {
	startCmd models.Command
	startErr error
	stopCmd  models.Command
	stopErr  error

	startCalls  int
	stopCalls   int
	lastZone    models.ZoneID
	lastSeconds int
}

func (m *mockTimer) StartTimer(ctx context.Context, zone models.ZoneID, seconds int) (models.Command, error) {
	m.startCalls++
	m.lastZone, m.lastSeconds = zone, seconds
	cmd := m.startCmd
	cmd.Zone, cmd.Seconds = zone, seconds
	return cmd, m.startErr
}

func (m *mockTimer) StopTimer(ctx context.Context, zone models.ZoneID) (models.Command, error) {
	m.stopCalls++
	m.lastZone = zone
	cmd := m.stopCmd
	cmd.Zone = zone
	return cmd, m.stopErr
}

type mockMonitoring struct {
	zones []models.ZoneStatus
}

func (m *mockMonitoring) GetZones(ctx context.Context) []models.ZoneStatus {
	return m.zones
}

func (m *mockMonitoring) GetZone(ctx context.Context, zone models.ZoneID) (models.ZoneStatus, error) {
	for _, st := range m.zones {
		if st.Zone == zone {
			return st, nil
		}
	}
	return models.ZoneStatus{}, service.ErrZoneNotFound
}

type mockScheduling struct {
	runs       []models.ZoneNextRun
	nextErr    error
	refreshErr error

	refreshCalls int
}

func (m *mockScheduling) NextRuns(ctx context.Context) ([]models.ZoneNextRun, error) {
	return m.runs, m.nextErr
}

func (m *mockScheduling) Refresh(ctx context.Context) error {
	m.refreshCalls++
	return m.refreshErr
}

func (m *mockScheduling) RunRefresh(ctx context.Context, interval time.Duration) {}

type mockEventLog struct {
	resp     []models.ZoneEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
	lastZone models.ZoneID
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.ZoneEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	m.lastZone = f.Zone
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil, prometheus.NewRegistry())
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

func withAuth(req *http.Request) *http.Request {
	for k, vv := range authHeader("valid") {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	return req
}
