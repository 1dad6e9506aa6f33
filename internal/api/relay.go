package api

import (
	"encoding/json"
	"time"

	"github.com/wrenfold/homedeck/internal/device"
	"github.com/wrenfold/homedeck/internal/infrastructure/mqtt"
)

// eventRelay mirrors hub events onto the MQTT bus for external consumers
// (automations, recorders, other dashboards).
//
// Publishing is strictly outbound and best-effort: a broker outage must
// never fail the request that triggered the event.
type eventRelay struct {
	client *mqtt.Client
	topics mqtt.Topics
}

// DeviceUpdated publishes the updated device state. Implements device.Notifier.
func (r *eventRelay) DeviceUpdated(d *device.Device) {
	payload, err := json.Marshal(map[string]any{
		"event":     "device-updated",
		"device":    d,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	r.client.PublishEvent(r.topics.DeviceEvent(d.ID), payload)
}

// RoomControlled publishes the outcome of a bulk room action.
// Implements device.RoomNotifier.
func (r *eventRelay) RoomControlled(roomID string, action device.RoomAction, changed []device.Device) {
	payload, err := json.Marshal(map[string]any{
		"event":     "room-controlled",
		"roomId":    roomID,
		"action":    action,
		"devices":   changed,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	r.client.PublishEvent(r.topics.RoomEvent(roomID), payload)
}
