package device

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength = 100

	// Typed payload bounds.
	MinBrightness = 0
	MaxBrightness = 100
	MinTargetTemp = 5.0
	MaxTargetTemp = 35.0
	minColorTemp  = 2000
	maxColorTemp  = 9000
	minRGBChannel = 0
	maxRGBChannel = 255

	hexColorPattern = `^#[0-9a-fA-F]{6}$`
)

var hexColorRegex = regexp.MustCompile(hexColorPattern)

// Pre-computed validation sets for O(1) lookups instead of O(n) linear search.
var (
	validDeviceTypes      map[DeviceType]struct{}
	validThermostatModes  map[ThermostatMode]struct{}
	validFanSpeeds        map[FanSpeed]struct{}
	validSensorTypes      map[SensorType]struct{}
	validPermissionLevels map[PermissionLevel]struct{}
)

func init() {
	// Build validation sets once at startup
	validDeviceTypes = make(map[DeviceType]struct{}, len(AllDeviceTypes()))
	for _, t := range AllDeviceTypes() {
		validDeviceTypes[t] = struct{}{}
	}

	validThermostatModes = make(map[ThermostatMode]struct{}, len(AllThermostatModes()))
	for _, m := range AllThermostatModes() {
		validThermostatModes[m] = struct{}{}
	}

	validFanSpeeds = make(map[FanSpeed]struct{}, len(AllFanSpeeds()))
	for _, f := range AllFanSpeeds() {
		validFanSpeeds[f] = struct{}{}
	}

	validSensorTypes = make(map[SensorType]struct{}, len(AllSensorTypes()))
	for _, s := range AllSensorTypes() {
		validSensorTypes[s] = struct{}{}
	}

	validPermissionLevels = make(map[PermissionLevel]struct{}, len(AllPermissionLevels()))
	for _, l := range AllPermissionLevels() {
		validPermissionLevels[l] = struct{}{}
	}
}

// ValidateDevice performs comprehensive validation on a device.
// Returns an error describing the first validation failure found.
func ValidateDevice(d *Device) error {
	if d == nil {
		return ErrInvalidDevice
	}

	if err := ValidateName(d.Name); err != nil {
		return err
	}

	if err := ValidateDeviceType(d.Type); err != nil {
		return err
	}

	if d.RoomID == "" {
		return fmt.Errorf("%w: roomId is required", ErrInvalidDevice)
	}

	if err := validatePayloadMatchesType(d); err != nil {
		return err
	}

	if err := validatePayloadBounds(d); err != nil {
		return err
	}

	if err := ValidatePermissions(d.Permissions); err != nil {
		return err
	}

	return nil
}

// validatePayloadMatchesType enforces the tagged-union invariant:
// exactly one payload, matching the device type (none for switch).
func validatePayloadMatchesType(d *Device) error {
	populated := 0
	var match bool
	if d.Light != nil {
		populated++
		match = match || d.Type == TypeLight
	}
	if d.Plug != nil {
		populated++
		match = match || d.Type == TypePlug
	}
	if d.Thermostat != nil {
		populated++
		match = match || d.Type == TypeThermostat
	}
	if d.Camera != nil {
		populated++
		match = match || d.Type == TypeCamera
	}
	if d.Sensor != nil {
		populated++
		match = match || d.Type == TypeSensor
	}

	if d.Type == TypeSwitch {
		if populated != 0 {
			return fmt.Errorf("%w: switch devices carry no payload", ErrPayloadMismatch)
		}
		return nil
	}
	if populated == 0 {
		return fmt.Errorf("%w: %s device requires a %s payload", ErrPayloadMismatch, d.Type, d.Type)
	}
	if populated > 1 || !match {
		return fmt.Errorf("%w: expected only a %s payload", ErrPayloadMismatch, d.Type)
	}
	return nil
}

// validatePayloadBounds checks the populated payload's field ranges and enums.
func validatePayloadBounds(d *Device) error {
	switch {
	case d.Light != nil:
		return validateLightState(d.Light)
	case d.Thermostat != nil:
		return validateThermostatState(d.Thermostat)
	case d.Sensor != nil:
		return validateSensorState(d.Sensor)
	}
	// Plug and camera payloads have no constrained fields.
	return nil
}

func validateLightState(s *LightState) error {
	if s.Brightness < MinBrightness || s.Brightness > MaxBrightness {
		return fmt.Errorf("%w: brightness must be in [%d,%d]", ErrInvalidDevice, MinBrightness, MaxBrightness)
	}
	if s.Color != "" && !hexColorRegex.MatchString(s.Color) {
		return fmt.Errorf("%w: color must be a hex string like #ffaa00", ErrInvalidDevice)
	}
	if s.ColorTemperature != 0 && (s.ColorTemperature < minColorTemp || s.ColorTemperature > maxColorTemp) {
		return fmt.Errorf("%w: colorTemperature must be in [%d,%d]", ErrInvalidDevice, minColorTemp, maxColorTemp)
	}
	if s.RGB != nil {
		for _, channel := range []int{s.RGB.R, s.RGB.G, s.RGB.B} {
			if channel < minRGBChannel || channel > maxRGBChannel {
				return fmt.Errorf("%w: rgb channels must be in [%d,%d]", ErrInvalidDevice, minRGBChannel, maxRGBChannel)
			}
		}
	}
	return nil
}

func validateThermostatState(s *ThermostatState) error {
	if s.TargetTemp < MinTargetTemp || s.TargetTemp > MaxTargetTemp {
		return fmt.Errorf("%w: targetTemp must be in [%g,%g]", ErrInvalidDevice, MinTargetTemp, MaxTargetTemp)
	}
	if err := ValidateThermostatMode(s.Mode); err != nil {
		return err
	}
	if s.FanSpeed != "" {
		if err := ValidateFanSpeed(s.FanSpeed); err != nil {
			return err
		}
	}
	return nil
}

func validateSensorState(s *SensorState) error {
	if _, ok := validSensorTypes[s.SensorType]; !ok {
		return fmt.Errorf("%w: sensorType %q", ErrInvalidDevice, s.SensorType)
	}
	return nil
}

// ValidateName checks if a device name is valid.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateDeviceType checks if a device type is valid.
// Uses O(1) map lookup for efficiency.
func ValidateDeviceType(deviceType DeviceType) error {
	if _, ok := validDeviceTypes[deviceType]; ok {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidDeviceType, deviceType)
}

// ValidateThermostatMode checks if a thermostat mode is valid.
func ValidateThermostatMode(mode ThermostatMode) error {
	if _, ok := validThermostatModes[mode]; ok {
		return nil
	}
	return fmt.Errorf("%w: thermostat mode %q", ErrInvalidDevice, mode)
}

// ValidateFanSpeed checks if a fan speed is valid.
func ValidateFanSpeed(speed FanSpeed) error {
	if _, ok := validFanSpeeds[speed]; ok {
		return nil
	}
	return fmt.Errorf("%w: fan speed %q", ErrInvalidDevice, speed)
}

// ValidatePermissions checks that permission entries are well formed and
// that no user appears more than once.
func ValidatePermissions(entries []PermissionEntry) error {
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry.UserID == "" {
			return fmt.Errorf("%w: userId is required", ErrInvalidPermission)
		}
		if _, ok := validPermissionLevels[entry.Level]; !ok {
			return fmt.Errorf("%w: level %q", ErrInvalidPermission, entry.Level)
		}
		if _, dup := seen[entry.UserID]; dup {
			return fmt.Errorf("%w: duplicate entry for user %s", ErrInvalidPermission, entry.UserID)
		}
		seen[entry.UserID] = struct{}{}
	}
	return nil
}

// ClampBrightness forces a brightness value into [MinBrightness, MaxBrightness].
func ClampBrightness(v int) int {
	if v < MinBrightness {
		return MinBrightness
	}
	if v > MaxBrightness {
		return MaxBrightness
	}
	return v
}

// ClampTargetTemp forces a target temperature into [MinTargetTemp, MaxTargetTemp].
func ClampTargetTemp(v float64) float64 {
	if v < MinTargetTemp {
		return MinTargetTemp
	}
	if v > MaxTargetTemp {
		return MaxTargetTemp
	}
	return v
}

// GenerateID creates a new UUID for a device.
func GenerateID() string {
	return uuid.New().String()
}
