package device

import "time"

// DeviceType identifies the kind of device and which typed payload it carries.
//
//nolint:revive // device.DeviceType is clearer at call sites than device.Type
type DeviceType string

// Device types.
const (
	TypeLight      DeviceType = "light"
	TypePlug       DeviceType = "plug"
	TypeThermostat DeviceType = "thermostat"
	TypeCamera     DeviceType = "camera"
	TypeSensor     DeviceType = "sensor"
	TypeSwitch     DeviceType = "switch"
)

// AllDeviceTypes returns all valid device types.
func AllDeviceTypes() []DeviceType {
	return []DeviceType{
		TypeLight, TypePlug, TypeThermostat,
		TypeCamera, TypeSensor, TypeSwitch,
	}
}

// ThermostatMode is the operating mode of a thermostat.
type ThermostatMode string

// Thermostat modes.
const (
	ModeOff  ThermostatMode = "off"
	ModeHeat ThermostatMode = "heat"
	ModeCool ThermostatMode = "cool"
	ModeAuto ThermostatMode = "auto"
)

// AllThermostatModes returns all valid thermostat modes.
func AllThermostatModes() []ThermostatMode {
	return []ThermostatMode{ModeOff, ModeHeat, ModeCool, ModeAuto}
}

// FanSpeed is the fan setting of a thermostat.
type FanSpeed string

// Fan speeds.
const (
	FanAuto   FanSpeed = "auto"
	FanLow    FanSpeed = "low"
	FanMedium FanSpeed = "medium"
	FanHigh   FanSpeed = "high"
)

// AllFanSpeeds returns all valid fan speeds.
func AllFanSpeeds() []FanSpeed {
	return []FanSpeed{FanAuto, FanLow, FanMedium, FanHigh}
}

// SensorType identifies what a sensor measures.
type SensorType string

// Sensor types.
const (
	SensorMotion      SensorType = "motion"
	SensorTemperature SensorType = "temperature"
	SensorHumidity    SensorType = "humidity"
	SensorAirQuality  SensorType = "air-quality"
	SensorDoor        SensorType = "door"
	SensorWindow      SensorType = "window"
)

// AllSensorTypes returns all valid sensor types.
func AllSensorTypes() []SensorType {
	return []SensorType{
		SensorMotion, SensorTemperature, SensorHumidity,
		SensorAirQuality, SensorDoor, SensorWindow,
	}
}

// PermissionLevel is a per-device access level granted to a user.
type PermissionLevel string

// Permission levels, ordered read < write < admin.
const (
	PermissionRead  PermissionLevel = "read"
	PermissionWrite PermissionLevel = "write"
	PermissionAdmin PermissionLevel = "admin"
)

// AllPermissionLevels returns all valid permission levels.
func AllPermissionLevels() []PermissionLevel {
	return []PermissionLevel{PermissionRead, PermissionWrite, PermissionAdmin}
}

// rank returns the ordering of a permission level for comparisons.
// Unknown levels rank below read.
func (l PermissionLevel) rank() int {
	switch l {
	case PermissionRead:
		return 1
	case PermissionWrite:
		return 2
	case PermissionAdmin:
		return 3
	}
	return 0
}

// AtLeast reports whether l grants at least the required level.
func (l PermissionLevel) AtLeast(required PermissionLevel) bool {
	return l.rank() >= required.rank()
}

// PermissionEntry grants a user a level of access to a single device.
// Entries are ordered; userId is unique within a device.
type PermissionEntry struct {
	UserID string          `json:"userId"`
	Level  PermissionLevel `json:"level"`
}

// Status holds connectivity and power state common to every device.
type Status struct {
	IsOnline       bool      `json:"isOnline"`
	IsOn           bool      `json:"isOn"`
	LastSeen       time.Time `json:"lastSeen"`
	BatteryLevel   *int      `json:"batteryLevel,omitempty"`
	SignalStrength *int      `json:"signalStrength,omitempty"`
}

// LightState is the typed payload for light devices.
type LightState struct {
	Brightness       int    `json:"brightness"`
	Color            string `json:"color,omitempty"`
	ColorTemperature int    `json:"colorTemperature,omitempty"`
	RGB              *RGB   `json:"rgb,omitempty"`
}

// RGB is a colour triple, each channel in [0,255].
type RGB struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// PlugState is the typed payload for smart plug devices.
type PlugState struct {
	PowerConsumption float64 `json:"powerConsumption"`
	Voltage          float64 `json:"voltage,omitempty"`
	Current          float64 `json:"current,omitempty"`
}

// ThermostatState is the typed payload for thermostat devices.
type ThermostatState struct {
	CurrentTemp float64        `json:"currentTemp"`
	TargetTemp  float64        `json:"targetTemp"`
	Mode        ThermostatMode `json:"mode"`
	FanSpeed    FanSpeed       `json:"fanSpeed,omitempty"`
	Humidity    float64        `json:"humidity,omitempty"`
}

// CameraState is the typed payload for camera devices.
type CameraState struct {
	IsRecording     bool   `json:"isRecording"`
	Resolution      string `json:"resolution,omitempty"`
	NightVision     bool   `json:"nightVision"`
	MotionDetection bool   `json:"motionDetection"`
}

// SensorState is the typed payload for sensor devices.
type SensorState struct {
	SensorType SensorType `json:"sensorType"`
	Value      float64    `json:"value"`
	Unit       string     `json:"unit,omitempty"`
	Threshold  *float64   `json:"threshold,omitempty"`
}

// Device represents a controllable or observable smart-home device.
//
// Exactly one typed payload pointer is populated, and it must match Type.
// Switch devices carry no payload. Deactivated devices (IsActive false)
// behave as if they do not exist.
type Device struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Type   DeviceType `json:"type"`
	RoomID string     `json:"roomId"`

	Status Status `json:"status"`

	// Typed payloads; exactly one non-nil, matching Type (none for switch).
	Light      *LightState      `json:"light,omitempty"`
	Plug       *PlugState       `json:"plug,omitempty"`
	Thermostat *ThermostatState `json:"thermostat,omitempty"`
	Camera     *CameraState     `json:"camera,omitempty"`
	Sensor     *SensorState     `json:"sensor,omitempty"`

	Permissions []PermissionEntry `json:"permissions,omitempty"`

	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PermissionFor returns the permission level granted to the given user
// by the device's own permission entries, and whether an entry exists.
// Global role overrides are applied by the permission resolver, not here.
func (d *Device) PermissionFor(userID string) (PermissionLevel, bool) {
	for _, entry := range d.Permissions {
		if entry.UserID == userID {
			return entry.Level, true
		}
	}
	return "", false
}

// DeepCopy creates a completely independent copy of the device.
// This is critical for cache isolation: mutating the copy must never
// affect the original.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	devCopy := *d

	devCopy.Status = d.Status
	if d.Status.BatteryLevel != nil {
		v := *d.Status.BatteryLevel
		devCopy.Status.BatteryLevel = &v
	}
	if d.Status.SignalStrength != nil {
		v := *d.Status.SignalStrength
		devCopy.Status.SignalStrength = &v
	}

	if d.Light != nil {
		light := *d.Light
		if d.Light.RGB != nil {
			rgb := *d.Light.RGB
			light.RGB = &rgb
		}
		devCopy.Light = &light
	}
	if d.Plug != nil {
		plug := *d.Plug
		devCopy.Plug = &plug
	}
	if d.Thermostat != nil {
		thermostat := *d.Thermostat
		devCopy.Thermostat = &thermostat
	}
	if d.Camera != nil {
		camera := *d.Camera
		devCopy.Camera = &camera
	}
	if d.Sensor != nil {
		sensor := *d.Sensor
		if d.Sensor.Threshold != nil {
			threshold := *d.Sensor.Threshold
			sensor.Threshold = &threshold
		}
		devCopy.Sensor = &sensor
	}

	if d.Permissions != nil {
		devCopy.Permissions = make([]PermissionEntry, len(d.Permissions))
		copy(devCopy.Permissions, d.Permissions)
	}

	return &devCopy
}

// StatusUpdate is a partial update to a device's status.
// Nil fields are left unchanged; lastSeen refreshes regardless.
type StatusUpdate struct {
	IsOnline       *bool `json:"isOnline,omitempty"`
	IsOn           *bool `json:"isOn,omitempty"`
	BatteryLevel   *int  `json:"batteryLevel,omitempty"`
	SignalStrength *int  `json:"signalStrength,omitempty"`
}

// LightUpdate is a partial update to a light payload.
type LightUpdate struct {
	Brightness       *int    `json:"brightness,omitempty"`
	Color            *string `json:"color,omitempty"`
	ColorTemperature *int    `json:"colorTemperature,omitempty"`
	RGB              *RGB    `json:"rgb,omitempty"`
}

// ThermostatUpdate is a partial update to a thermostat payload.
type ThermostatUpdate struct {
	TargetTemp *float64        `json:"targetTemp,omitempty"`
	Mode       *ThermostatMode `json:"mode,omitempty"`
	FanSpeed   *FanSpeed       `json:"fanSpeed,omitempty"`
}
