package service

import (
	"context"
	"errors"

	"irrigation_monitor/internal/models"
)

var ErrZoneNotFound = errors.New("zone not found")

type MonitoringService struct {
	reconciler *ReconcilerService
}

func NewMonitoringService(reconciler *ReconcilerService) *MonitoringService {
	return &MonitoringService{reconciler: reconciler}
}

// GetZones returns the latest reconciled status of every zone, ordered by id.
// Before the first successful poll the list is empty.
func (s *MonitoringService) GetZones(ctx context.Context) []models.ZoneStatus {
	return s.reconciler.Statuses()
}

func (s *MonitoringService) GetZone(ctx context.Context, zone models.ZoneID) (models.ZoneStatus, error) {
	if !zone.Valid() {
		return models.ZoneStatus{}, ErrInvalidZone
	}
	st, ok := s.reconciler.Status(zone)
	if !ok {
		return models.ZoneStatus{}, ErrZoneNotFound
	}
	return st, nil
}
