package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"packetvault/internal/telemetry"
)

// ==============================================================================
// 1. WebSocket Configuration & Constants
// ==============================================================================

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. (We only stream OUT, so inbound is tiny).
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The router's CORS middleware already validated the Origin header.
		return true
	},
}

// ==============================================================================
// 2. The Handler Struct (Dependency Injection)
// ==============================================================================

// AlertsHandler streams integrity alerts (tamper detections, unresolvable
// keys) to security monitoring clients as they are raised by retrieval runs.
type AlertsHandler struct {
	Hub    *telemetry.Hub
	Logger *slog.Logger
}

func NewAlertsHandler(hub *telemetry.Hub, logger *slog.Logger) *AlertsHandler {
	return &AlertsHandler{Hub: hub, Logger: logger}
}

// ==============================================================================
// 3. HTTP Methods (The Upgrader)
// ==============================================================================

// StreamAlerts handles GET /api/v1/ws/alerts
func (h *AlertsHandler) StreamAlerts(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Error("failed to upgrade alert stream", slog.String("error", err.Error()))
		return
	}

	alerts := h.Hub.Subscribe()
	defer h.Hub.Unsubscribe(alerts)

	go h.readPump(ws)
	h.writePump(ws, alerts)
}

// ==============================================================================
// 4. The Write Pump
// ==============================================================================

func (h *AlertsHandler) writePump(ws *websocket.Conn, alerts <-chan telemetry.Alert) {
	defer func() {
		ws.Close()
		h.Logger.Info("alert stream closed")
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case alert, ok := <-alerts:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "hub closed"))
				return
			}
			if err := ws.WriteJSON(alert); err != nil {
				return // broken pipe, drop the connection
			}

		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return // client disconnected
			}
		}
	}
}

// ==============================================================================
// 5. The Read Pump (Connection Keep-Alive)
// ==============================================================================

func (h *AlertsHandler) readPump(ws *websocket.Conn) {
	defer ws.Close()

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// One-way stream: we only read to process control messages and detect
	// disconnects.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.Logger.Warn("alert stream closed unexpectedly", slog.String("error", err.Error()))
			}
			break
		}
	}
}
