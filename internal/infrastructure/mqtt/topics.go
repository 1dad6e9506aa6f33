package mqtt

import "fmt"

// Topic prefixes for the HomeDeck event relay.
//
// All relay topics use the scheme: homedeck/{category}/{kind}/{id}
const (
	// TopicPrefix is the base for all HomeDeck topics.
	TopicPrefix = "homedeck"

	// TopicPrefixEvent is the base for relayed dashboard events.
	TopicPrefixEvent = "homedeck/event"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "homedeck/system"
)

// Topics provides builders for HomeDeck MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	topic := topics.DeviceEvent("a1b2c3")
//	// Returns: "homedeck/event/device/a1b2c3"
type Topics struct{}

// DeviceEvent returns the topic for a single device's state-change events.
//
// Example: homedeck/event/device/a1b2c3
func (Topics) DeviceEvent(deviceID string) string {
	return fmt.Sprintf("%s/device/%s", TopicPrefixEvent, deviceID)
}

// RoomEvent returns the topic for room-scoped events (bulk control results,
// occupancy and ambient updates).
//
// Example: homedeck/event/room/d4e5f6
func (Topics) RoomEvent(roomID string) string {
	return fmt.Sprintf("%s/room/%s", TopicPrefixEvent, roomID)
}

// SystemStatus returns the relay status topic.
//
// Example: homedeck/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllDeviceEvents returns a pattern matching all device events.
//
// Pattern: homedeck/event/device/+
func (Topics) AllDeviceEvents() string {
	return fmt.Sprintf("%s/device/+", TopicPrefixEvent)
}

// AllRoomEvents returns a pattern matching all room events.
//
// Pattern: homedeck/event/room/+
func (Topics) AllRoomEvents() string {
	return fmt.Sprintf("%s/room/+", TopicPrefixEvent)
}

// AllTopics returns a pattern matching all HomeDeck topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: homedeck/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
