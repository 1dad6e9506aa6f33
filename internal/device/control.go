package device

import (
	"context"
	"fmt"
	"time"
)

// Notifier receives device change events after a successful mutation.
// The realtime hub and the MQTT relay both implement this.
type Notifier interface {
	DeviceUpdated(d *Device)
}

// noopNotifier discards all events.
type noopNotifier struct{}

func (noopNotifier) DeviceUpdated(*Device) {}

// Controller applies control operations to devices.
//
// Every mutation is a read-modify-write executed under the device's
// control lock, so concurrent partial updates to the same device
// serialise rather than interleave. Every successful mutation refreshes
// status.lastSeen and notifies the configured notifiers.
type Controller struct {
	registry  *Registry
	notifiers []Notifier
}

// NewController creates a device controller around the registry.
func NewController(registry *Registry, notifiers ...Notifier) *Controller {
	if len(notifiers) == 0 {
		notifiers = []Notifier{noopNotifier{}}
	}
	return &Controller{registry: registry, notifiers: notifiers}
}

// AddNotifier registers an additional change listener.
func (c *Controller) AddNotifier(n Notifier) {
	c.notifiers = append(c.notifiers, n)
}

// Toggle flips the device's on/off state.
// Returns the updated device.
func (c *Controller) Toggle(ctx context.Context, id string) (*Device, error) {
	return c.mutate(ctx, id, func(d *Device) error {
		d.Status.IsOn = !d.Status.IsOn
		return nil
	})
}

// SetStatus merges the provided status fields into the device's status.
// lastSeen refreshes even when the update carries no fields.
func (c *Controller) SetStatus(ctx context.Context, id string, update StatusUpdate) (*Device, error) {
	return c.mutate(ctx, id, func(d *Device) error {
		if update.IsOnline != nil {
			d.Status.IsOnline = *update.IsOnline
		}
		if update.IsOn != nil {
			d.Status.IsOn = *update.IsOn
		}
		if update.BatteryLevel != nil {
			v := *update.BatteryLevel
			d.Status.BatteryLevel = &v
		}
		if update.SignalStrength != nil {
			v := *update.SignalStrength
			d.Status.SignalStrength = &v
		}
		return nil
	})
}

// SetLight applies a partial update to a light device's payload.
// Brightness is clamped to its valid range rather than rejected.
// Returns ErrInvalidDeviceType if the device is not a light.
func (c *Controller) SetLight(ctx context.Context, id string, update LightUpdate) (*Device, error) {
	return c.mutate(ctx, id, func(d *Device) error {
		if d.Type != TypeLight || d.Light == nil {
			return fmt.Errorf("%w: %s is a %s, not a light", ErrInvalidDeviceType, d.ID, d.Type)
		}
		if update.Brightness != nil {
			d.Light.Brightness = ClampBrightness(*update.Brightness)
		}
		if update.Color != nil {
			d.Light.Color = *update.Color
		}
		if update.ColorTemperature != nil {
			d.Light.ColorTemperature = *update.ColorTemperature
		}
		if update.RGB != nil {
			rgb := *update.RGB
			d.Light.RGB = &rgb
		}
		return nil
	})
}

// SetThermostat applies a partial update to a thermostat device's payload.
// Target temperature is clamped to its valid range rather than rejected.
// Returns ErrInvalidDeviceType if the device is not a thermostat.
func (c *Controller) SetThermostat(ctx context.Context, id string, update ThermostatUpdate) (*Device, error) {
	return c.mutate(ctx, id, func(d *Device) error {
		if d.Type != TypeThermostat || d.Thermostat == nil {
			return fmt.Errorf("%w: %s is a %s, not a thermostat", ErrInvalidDeviceType, d.ID, d.Type)
		}
		if update.TargetTemp != nil {
			d.Thermostat.TargetTemp = ClampTargetTemp(*update.TargetTemp)
		}
		if update.Mode != nil {
			if err := ValidateThermostatMode(*update.Mode); err != nil {
				return err
			}
			d.Thermostat.Mode = *update.Mode
		}
		if update.FanSpeed != nil {
			if err := ValidateFanSpeed(*update.FanSpeed); err != nil {
				return err
			}
			d.Thermostat.FanSpeed = *update.FanSpeed
		}
		return nil
	})
}

// mutate runs a read-modify-write cycle on a device under its control
// lock: load, apply, refresh lastSeen, validate, persist, notify.
func (c *Controller) mutate(ctx context.Context, id string, apply func(*Device) error) (*Device, error) {
	var updated *Device
	err := c.registry.WithControlLock(id, func() error {
		d, err := c.registry.GetDevice(ctx, id)
		if err != nil {
			return err
		}

		if err := apply(d); err != nil {
			return err
		}

		// Every successful status mutation refreshes lastSeen.
		d.Status.LastSeen = time.Now().UTC()

		if err := c.registry.UpdateDevice(ctx, d); err != nil {
			return err
		}

		updated = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.notify(updated)
	return updated, nil
}

// notify fans the change out to all listeners with an isolated copy each.
func (c *Controller) notify(d *Device) {
	for _, n := range c.notifiers {
		n.DeviceUpdated(d.DeepCopy())
	}
}
