package device

import (
	"context"
	"fmt"
	"time"
)

// RoomAction is a bulk operation applied to every eligible device in a room.
type RoomAction string

// Room actions.
const (
	ActionTurnOn        RoomAction = "turnOn"
	ActionTurnOff       RoomAction = "turnOff"
	ActionSetBrightness RoomAction = "setBrightness"
)

// DeviceResult is the per-device outcome of a bulk room operation.
type DeviceResult struct {
	DeviceID string `json:"deviceId"`
	Name     string `json:"name"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// RoomControlResult aggregates the outcome of a bulk room operation.
// ToggledCount counts devices whose state actually changed; devices
// already in the desired state are reported successful but not counted.
type RoomControlResult struct {
	RoomID       string         `json:"roomId"`
	Action       RoomAction     `json:"action"`
	Value        *int           `json:"value,omitempty"`
	Results      []DeviceResult `json:"results"`
	ToggledCount int            `json:"toggledCount"`
}

// RoomNotifier receives one room-scoped event per bulk operation,
// carrying every device whose state changed.
type RoomNotifier interface {
	RoomControlled(roomID string, action RoomAction, changed []Device)
}

// Orchestrator runs bulk control operations across all eligible devices
// in a room.
//
// Each device is mutated independently under its own control lock; one
// device failing never aborts the batch. A single room-scoped broadcast
// fires after the batch with all changed device states.
type Orchestrator struct {
	registry  *Registry
	notifiers []RoomNotifier
}

// NewOrchestrator creates a room bulk-control orchestrator.
func NewOrchestrator(registry *Registry, notifiers ...RoomNotifier) *Orchestrator {
	return &Orchestrator{registry: registry, notifiers: notifiers}
}

// AddNotifier registers an additional room event listener.
func (o *Orchestrator) AddNotifier(n RoomNotifier) {
	o.notifiers = append(o.notifiers, n)
}

// ControlRoom applies an action to every eligible device in a room.
//
// Eligibility: lights and plugs respond to turnOn/turnOff directly;
// thermostats respond through mode (turnOn moves mode off→auto, turnOff
// moves mode→off); setBrightness applies to lights only and requires a
// value. Devices already in the desired state are skipped.
//
// Returns ErrNoEligibleDevices when the room holds no device the action
// can apply to, and ErrInvalidDevice when setBrightness is called
// without a value.
func (o *Orchestrator) ControlRoom(ctx context.Context, roomID string, action RoomAction, value *int) (*RoomControlResult, error) {
	if action == ActionSetBrightness && value == nil {
		return nil, fmt.Errorf("%w: setBrightness requires a value", ErrInvalidDevice)
	}
	if action != ActionTurnOn && action != ActionTurnOff && action != ActionSetBrightness {
		return nil, fmt.Errorf("%w: unknown room action %q", ErrInvalidDevice, action)
	}

	devices, err := o.registry.GetDevicesByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	result := &RoomControlResult{
		RoomID:  roomID,
		Action:  action,
		Value:   value,
		Results: []DeviceResult{},
	}

	var changed []Device
	eligible := 0
	for i := range devices {
		d := &devices[i]
		if !o.eligible(d, action) {
			continue
		}
		eligible++

		didChange, err := o.applyToDevice(ctx, d.ID, action, value)
		entry := DeviceResult{DeviceID: d.ID, Name: d.Name, Success: err == nil}
		if err != nil {
			entry.Error = err.Error()
		}
		result.Results = append(result.Results, entry)

		if didChange != nil {
			result.ToggledCount++
			changed = append(changed, *didChange)
		}
	}

	if eligible == 0 {
		return nil, fmt.Errorf("%w: room %s has no devices for %s", ErrNoEligibleDevices, roomID, action)
	}

	if len(changed) > 0 {
		for _, n := range o.notifiers {
			n.RoomControlled(roomID, action, changed)
		}
	}

	return result, nil
}

// eligible reports whether a device type responds to the given action.
func (o *Orchestrator) eligible(d *Device, action RoomAction) bool {
	switch action {
	case ActionSetBrightness:
		return d.Type == TypeLight
	case ActionTurnOn, ActionTurnOff:
		return d.Type == TypeLight || d.Type == TypePlug || d.Type == TypeThermostat
	}
	return false
}

// applyToDevice mutates one device under its control lock.
// Returns the updated device when state changed, nil when the device was
// already in the desired state.
func (o *Orchestrator) applyToDevice(ctx context.Context, id string, action RoomAction, value *int) (*Device, error) {
	var updated *Device
	err := o.registry.WithControlLock(id, func() error {
		d, err := o.registry.GetDevice(ctx, id)
		if err != nil {
			return err
		}

		if !o.applyAction(d, action, value) {
			// Already in the desired state.
			return nil
		}

		d.Status.LastSeen = time.Now().UTC()
		if err := o.registry.UpdateDevice(ctx, d); err != nil {
			return err
		}

		updated = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// applyAction mutates the device in place for the action.
// Returns false when the device is already in the desired state.
func (o *Orchestrator) applyAction(d *Device, action RoomAction, value *int) bool {
	switch action {
	case ActionTurnOn:
		if d.Type == TypeThermostat {
			if d.Thermostat == nil || d.Thermostat.Mode != ModeOff {
				return false
			}
			d.Thermostat.Mode = ModeAuto
			d.Status.IsOn = true
			return true
		}
		if d.Status.IsOn {
			return false
		}
		d.Status.IsOn = true
		return true

	case ActionTurnOff:
		if d.Type == TypeThermostat {
			if d.Thermostat == nil || d.Thermostat.Mode == ModeOff {
				return false
			}
			d.Thermostat.Mode = ModeOff
			d.Status.IsOn = false
			return true
		}
		if !d.Status.IsOn {
			return false
		}
		d.Status.IsOn = false
		return true

	case ActionSetBrightness:
		if d.Light == nil {
			return false
		}
		target := ClampBrightness(*value)
		if d.Light.Brightness == target {
			return false
		}
		d.Light.Brightness = target
		return true
	}
	return false
}
