// Package publisher pushes zone status changes to subscribers outside the process.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"irrigation_monitor/internal/models"
)

// Publisher delivers payload on topic.
type Publisher func(ctx context.Context, topic string, payload []byte) error

// EmptyPublisher drops everything; used while disconnected or when publishing is disabled.
func EmptyPublisher(ctx context.Context, topic string, payload []byte) error {
	return nil
}

// ZoneTopic is the topic a zone's status is published on, relative to the configured prefix.
func ZoneTopic(zone models.ZoneID) string {
	return fmt.Sprintf("zones/%d/state", zone)
}

// PublishZone marshals st and sends it on the zone's topic.
func PublishZone(ctx context.Context, p Publisher, st models.ZoneStatus) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal zone status: %w", err)
	}
	if err := p(ctx, ZoneTopic(st.Zone), payload); err != nil {
		return fmt.Errorf("failed to publish zone %d: %w", st.Zone, err)
	}
	return nil
}
