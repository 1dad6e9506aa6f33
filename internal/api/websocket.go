package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wrenfold/homedeck/internal/auth"
	"github.com/wrenfold/homedeck/internal/device"
	"github.com/wrenfold/homedeck/internal/infrastructure/config"
	"github.com/wrenfold/homedeck/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	// Client → server.
	WSTypeJoinRooms          = "join-rooms"
	WSTypeDeviceStatusUpdate = "device-status-update"
	WSTypeDeviceControl      = "device-control"
	WSTypeRoomControl        = "room-control"
	WSTypeMonitorDevice      = "monitor-device"
	WSTypeStopMonitorDevice  = "stop-monitor-device"

	// Server → client.
	WSTypeRoomsJoined       = "rooms-joined"
	WSTypeDeviceUpdated     = "device-updated"
	WSTypeDeviceControlled  = "device-controlled"
	WSTypeRoomControlled    = "room-controlled"
	WSTypeMonitoringStarted = "monitoring-started"
	WSTypeMonitoringStopped = "monitoring-stopped"
	WSTypeError             = "error"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256
)

// WSMessage is the envelope for all WebSocket traffic.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// wsInbound mirrors WSMessage for incoming traffic, keeping the payload
// raw so each handler can decode its own shape.
type wsInbound struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wsJoinRoomsPayload is the payload for join-rooms messages.
type wsJoinRoomsPayload struct {
	Rooms []string `json:"rooms"`
}

// wsMonitorPayload is the payload for monitor-device / stop-monitor-device.
type wsMonitorPayload struct {
	DeviceID string `json:"deviceId"`
}

// wsStatusUpdatePayload is the payload for device-status-update.
type wsStatusUpdatePayload struct {
	DeviceID string              `json:"deviceId"`
	Status   device.StatusUpdate `json:"status"`
}

// wsDeviceControlPayload is the payload for device-control.
// Exactly one of the control fields applies, selected by Action.
type wsDeviceControlPayload struct {
	DeviceID   string                   `json:"deviceId"`
	Action     string                   `json:"action"` // toggle, light, thermostat
	Light      *device.LightUpdate      `json:"light,omitempty"`
	Thermostat *device.ThermostatUpdate `json:"thermostat,omitempty"`
}

// wsRoomControlPayload is the payload for room-control.
type wsRoomControlPayload struct {
	RoomID string `json:"roomId"`
	Action string `json:"action"`
	Value  *int   `json:"value,omitempty"`
}

// Subscription group key prefixes. Groups are keyed by room id, device id,
// or user id so broadcasts only touch interested clients.
func roomGroup(id string) string   { return "room:" + id }
func deviceGroup(id string) string { return "device:" + id }
func userGroup(id string) string   { return "user:" + id }

// Hub manages WebSocket connections and fans out device and room events.
//
// It implements device.Notifier and device.RoomNotifier so the control
// services can broadcast through it without importing this package.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	mu      sync.RWMutex

	// Control-plane collaborators, bound by the server after construction.
	// Control messages arriving over the socket run through the same
	// permission resolution as HTTP rather than trusting the
	// authenticated connection alone.
	registry     *device.Registry
	controller   *device.Controller
	orchestrator *device.Orchestrator
}

// WSClient represents a connected WebSocket client.
type WSClient struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	groups map[string]struct{}
	mu     sync.RWMutex
	// Identity established at upgrade time.
	userID string
	actor  device.Actor
}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates a new WebSocket hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// bind wires the control-plane services the hub needs to execute
// control messages received over the socket.
func (h *Hub) bind(registry *device.Registry, controller *device.Controller, orchestrator *device.Orchestrator) {
	h.registry = registry
	h.controller = controller
	h.orchestrator = orchestrator
}

// Run starts the hub's main loop. It blocks until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "user_id", client.userID, "clients", h.ClientCount())
}

// Unregister removes a client from the hub.
// Only the goroutine that successfully removes the client from the map
// closes the send channel, preventing double-close panics during shutdown.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", h.ClientCount())
}

// DeviceUpdated broadcasts the updated device to clients joined to the
// device's room, clients monitoring the device, and clients following
// their own user group. Implements device.Notifier.
func (h *Hub) DeviceUpdated(d *device.Device) {
	h.broadcast([]string{roomGroup(d.RoomID), deviceGroup(d.ID)}, WSTypeDeviceUpdated, map[string]any{
		"device": d,
	})
}

// RoomControlled broadcasts the outcome of a bulk room action to clients
// joined to the room. Implements device.RoomNotifier.
//
// This is the single post-batch broadcast; individual devices changed by
// the batch do not generate per-device events.
func (h *Hub) RoomControlled(roomID string, action device.RoomAction, changed []device.Device) {
	h.broadcast([]string{roomGroup(roomID)}, WSTypeRoomControlled, map[string]any{
		"roomId":  roomID,
		"action":  action,
		"devices": changed,
	})
}

// broadcast sends an event to every client subscribed to at least one of
// the given groups. Each client receives the message at most once.
//
// Lock ordering: hub lock is acquired first, then released before
// per-client group checks, so hub and client locks are never held together.
func (h *Hub) broadcast(groups []string, msgType string, payload any) {
	msg := WSMessage{
		Type:      msgType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	// Snapshot client list under hub lock, then release before sending
	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	sentCount := 0
	for _, client := range clients {
		if client.inAnyGroup(groups) {
			client.trySend(data)
			sentCount++
		}
	}
	if sentCount > 0 {
		h.logger.Debug("broadcast sent", "type", msgType, "recipients", sentCount)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll disconnects all clients and closes their send channels
// so writePump goroutines can exit cleanly.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// handleWebSocket upgrades the HTTP connection to a WebSocket connection.
// Authentication mirrors the HTTP middleware: the JWT comes from the
// `token` query parameter or the Authorization header.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}
	if token == "" {
		writeUnauthorized(w, "authorization token required")
		return
	}

	claims, err := auth.ParseToken(token, s.authCfg.JWT.Secret)
	if err != nil {
		writeUnauthorized(w, "invalid or expired token")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:    s.hub,
		conn:   conn,
		send:   make(chan []byte, wsSendBufferSize),
		groups: make(map[string]struct{}),
		userID: claims.Subject,
		actor:  actorFrom(claims),
	}
	// Every connection follows its own user group so device events can be
	// targeted at a user without an explicit subscription.
	client.groups[userGroup(client.userID)] = struct{}{}

	s.hub.Register(client)

	// Start read/write pumps
	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

// readPump reads messages from the WebSocket connection.
func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		// Any client message resets the read deadline (keeps connection alive
		// even if browser doesn't respond to protocol-level pings).
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.handleMessage(message)
	}
}

// writePump writes messages to the WebSocket connection.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	pongWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming WebSocket message. Errors are
// reported to the originating connection only and never terminate it.
func (c *WSClient) handleMessage(data []byte) {
	var msg wsInbound
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeJoinRooms:
		c.handleJoinRooms(msg)
	case WSTypeMonitorDevice:
		c.handleMonitorDevice(msg)
	case WSTypeStopMonitorDevice:
		c.handleStopMonitorDevice(msg)
	case WSTypeDeviceStatusUpdate:
		c.handleDeviceStatusUpdate(msg)
	case WSTypeDeviceControl:
		c.handleDeviceControl(msg)
	case WSTypeRoomControl:
		c.handleRoomControl(msg)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// handleJoinRooms replaces joins for the listed rooms. Joining a room the
// client already follows is a no-op.
func (c *WSClient) handleJoinRooms(msg wsInbound) {
	var payload wsJoinRoomsPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.sendError(msg.ID, "invalid join-rooms payload")
		return
	}

	c.mu.Lock()
	for _, id := range payload.Rooms {
		c.groups[roomGroup(id)] = struct{}{}
	}
	c.mu.Unlock()

	c.hub.logger.Debug("websocket client joined rooms", "user_id", c.userID, "rooms", payload.Rooms)

	c.sendResponse(msg.ID, WSTypeRoomsJoined, map[string]any{
		"rooms": payload.Rooms,
	})
}

// handleMonitorDevice subscribes the client to a single device's events.
func (c *WSClient) handleMonitorDevice(msg wsInbound) {
	var payload wsMonitorPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.DeviceID == "" {
		c.sendError(msg.ID, "invalid monitor-device payload")
		return
	}

	c.mu.Lock()
	c.groups[deviceGroup(payload.DeviceID)] = struct{}{}
	c.mu.Unlock()

	c.sendResponse(msg.ID, WSTypeMonitoringStarted, map[string]any{
		"deviceId": payload.DeviceID,
	})
}

// handleStopMonitorDevice removes a device subscription. Stopping a
// monitor that was never started is a no-op.
func (c *WSClient) handleStopMonitorDevice(msg wsInbound) {
	var payload wsMonitorPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.DeviceID == "" {
		c.sendError(msg.ID, "invalid stop-monitor-device payload")
		return
	}

	c.mu.Lock()
	delete(c.groups, deviceGroup(payload.DeviceID))
	c.mu.Unlock()

	c.sendResponse(msg.ID, WSTypeMonitoringStopped, map[string]any{
		"deviceId": payload.DeviceID,
	})
}

// handleDeviceStatusUpdate applies a partial status merge to a device.
func (c *WSClient) handleDeviceStatusUpdate(msg wsInbound) {
	var payload wsStatusUpdatePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.DeviceID == "" {
		c.sendError(msg.ID, "invalid device-status-update payload")
		return
	}

	if !c.authorize(msg.ID, payload.DeviceID, device.PermissionWrite) {
		return
	}

	updated, err := c.hub.controller.SetStatus(context.Background(), payload.DeviceID, payload.Status)
	if err != nil {
		c.sendError(msg.ID, err.Error())
		return
	}

	c.sendResponse(msg.ID, WSTypeDeviceUpdated, map[string]any{
		"device": updated,
	})
}

// handleDeviceControl executes a control action against a single device.
func (c *WSClient) handleDeviceControl(msg wsInbound) {
	var payload wsDeviceControlPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.DeviceID == "" {
		c.sendError(msg.ID, "invalid device-control payload")
		return
	}

	if !c.authorize(msg.ID, payload.DeviceID, device.PermissionWrite) {
		return
	}

	ctx := context.Background()
	var (
		updated *device.Device
		err     error
	)
	switch payload.Action {
	case "toggle":
		updated, err = c.hub.controller.Toggle(ctx, payload.DeviceID)
	case "light":
		if payload.Light == nil {
			c.sendError(msg.ID, "light payload is required")
			return
		}
		updated, err = c.hub.controller.SetLight(ctx, payload.DeviceID, *payload.Light)
	case "thermostat":
		if payload.Thermostat == nil {
			c.sendError(msg.ID, "thermostat payload is required")
			return
		}
		updated, err = c.hub.controller.SetThermostat(ctx, payload.DeviceID, *payload.Thermostat)
	default:
		c.sendError(msg.ID, "unknown control action: "+payload.Action)
		return
	}
	if err != nil {
		c.sendError(msg.ID, err.Error())
		return
	}

	c.sendResponse(msg.ID, WSTypeDeviceControlled, map[string]any{
		"device": updated,
	})
}

// handleRoomControl executes a bulk room action.
func (c *WSClient) handleRoomControl(msg wsInbound) {
	var payload wsRoomControlPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.RoomID == "" {
		c.sendError(msg.ID, "invalid room-control payload")
		return
	}

	result, err := c.hub.orchestrator.ControlRoom(context.Background(), payload.RoomID, device.RoomAction(payload.Action), payload.Value)
	if err != nil {
		c.sendError(msg.ID, err.Error())
		return
	}

	// The room group also receives a broadcast from the orchestrator's
	// notifier; this direct reply covers callers not joined to the room.
	c.sendResponse(msg.ID, WSTypeRoomControlled, result)
}

// authorize loads the device and checks the caller's permission level,
// reporting failures to the originating connection. Lookup precedes the
// permission check so missing devices never surface as access errors.
func (c *WSClient) authorize(msgID, deviceID string, required device.PermissionLevel) bool {
	dev, err := c.hub.registry.GetDevice(context.Background(), deviceID)
	if err != nil {
		c.sendError(msgID, err.Error())
		return false
	}
	if err := device.Authorize(c.actor, dev, required); err != nil {
		c.sendError(msgID, "access denied")
		return false
	}
	return true
}

// trySend attempts to send data to the client's send channel.
// It silently handles closed channels (client disconnected during broadcast)
// and full buffers (slow client).
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
		// Client buffer full, skip
	}
}

// inAnyGroup checks whether the client belongs to at least one group.
func (c *WSClient) inAnyGroup(groups []string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, g := range groups {
		if _, ok := c.groups[g]; ok {
			return true
		}
	}
	return false
}

// sendResponse sends a response message to the client.
// Routes through trySend to safely handle closed channels during shutdown.
func (c *WSClient) sendResponse(id, msgType string, payload any) {
	msg := WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.trySend(data)
}

// sendError sends an error message to the client.
func (c *WSClient) sendError(id, message string) {
	c.sendResponse(id, WSTypeError, map[string]string{"message": message})
}
