package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aiterminal/backend/internal/events"
	"github.com/aiterminal/backend/internal/infrastructure/logging"
	"github.com/aiterminal/backend/internal/infrastructure/monitoring"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Loopback-bound server; the desktop webview's origin varies by
		// platform scheme.
		return true
	},
}

// Handler streams session events to WebSocket clients.
type Handler struct {
	bus     *events.Bus
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// NewHandler creates a WebSocket event stream handler.
func NewHandler(bus *events.Bus, log *logging.Logger) *Handler {
	return &Handler{bus: bus, log: log}
}

// WithMetrics attaches a metrics collector.
func (h *Handler) WithMetrics(m *monitoring.Metrics) *Handler {
	h.metrics = m
	return h
}

// HandleConnection upgrades the request and forwards bus events until the
// client disconnects. An optional session_id query parameter narrows the
// stream to one session.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
		defer h.metrics.WSConnections.Dec()
	}

	sessionFilter := c.Query("session_id")
	ch, cancel := h.bus.Subscribe()
	defer cancel()

	// Read pump: we expect no client messages, but reading is what detects
	// the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if sessionFilter != "" && ev.SessionID != sessionFilter {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				h.log.Debug("websocket write failed", zap.Error(err))
				return
			}
		}
	}
}
