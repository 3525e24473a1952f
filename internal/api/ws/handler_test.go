package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiterminal/backend/internal/events"
	"github.com/aiterminal/backend/internal/infrastructure/logging"
)

func newTestStream(t *testing.T) (*events.Bus, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	bus := events.NewBus()
	h := NewHandler(bus, logging.NewNop())

	r := gin.New()
	r.GET("/stream", h.HandleConnection)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return bus, "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestStreamForwardsEvents(t *testing.T) {
	bus, url := newTestStream(t)
	conn := dial(t, url)

	// Subscription races the dial; give the handler a beat to register.
	require.Eventually(t, func() bool {
		return bus.SubscriberCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	bus.Emit(events.New(events.CommandOutput, "tab-1", map[string]interface{}{
		"output": "hello\n",
	}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev events.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, events.CommandOutput, ev.Type)
	assert.Equal(t, "tab-1", ev.SessionID)
	assert.Equal(t, "hello\n", ev.Data["output"])
}

func TestStreamSessionFilter(t *testing.T) {
	bus, url := newTestStream(t)
	conn := dial(t, url+"?session_id=tab-2")

	require.Eventually(t, func() bool {
		return bus.SubscriberCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	bus.Emit(events.New(events.CommandOutput, "tab-1", map[string]interface{}{"output": "skip"}))
	bus.Emit(events.New(events.CommandOutput, "tab-2", map[string]interface{}{"output": "keep"}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev events.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "tab-2", ev.SessionID)
	assert.Equal(t, "keep", ev.Data["output"])
}

func TestStreamUnsubscribesOnDisconnect(t *testing.T) {
	bus, url := newTestStream(t)
	conn := dial(t, url)

	require.Eventually(t, func() bool {
		return bus.SubscriberCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool {
		return bus.SubscriberCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
