// Package mqtt provides the outbound MQTT event relay for HomeDeck.
//
// This package manages:
//   - Connection to an MQTT broker with auto-reconnect
//   - Publishing dashboard events with QoS guarantees
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The relay mirrors device and room events onto MQTT topics so external
// integrations (Node-RED flows, voice bridges, recording rules) can react
// to dashboard activity without holding a WebSocket connection. The relay
// is publish-only; HomeDeck never consumes commands from the broker.
//
//	HomeDeck backend → MQTT Broker → External integrations
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.DeviceEvent("a1b2c3")
//	client.PublishEvent(topic, []byte(`{"isOn":true}`))
package mqtt
