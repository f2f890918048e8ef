package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/events"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

type received struct {
	EnvID string         `json:"env_id"`
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

func readMessage(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg received
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_ImplementsSubscriber(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	assert.Equal(t, "websocket_hub", hub.ID())
	for _, typ := range events.AllTypes {
		assert.True(t, hub.InterestedIn(typ))
	}
	assert.Equal(t, 0, hub.ClientCount(""))
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := &Client{hub: hub, envID: "env-1", send: make(chan []byte, 1)}

	hub.registerClient(client)
	assert.Equal(t, 1, hub.ClientCount("env-1"))
	assert.Equal(t, 1, hub.ClientCount(""))

	hub.unregisterClient(client)
	assert.Equal(t, 0, hub.ClientCount("env-1"))
	_, open := <-client.send
	assert.False(t, open)

	// second unregister is a no-op
	hub.unregisterClient(client)
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := &Client{hub: hub, envID: "env-1", send: make(chan []byte, 1)}
	hub.registerClient(client)

	ev := events.NewEpisodeResetEvent("env-1", "sliding", "1 0 2 3")
	hub.broadcastMessage(&Message{EnvID: "env-1", Event: ev.Type(), Data: ev})
	assert.Equal(t, 1, hub.ClientCount("env-1"))
	hub.broadcastMessage(&Message{EnvID: "env-1", Event: ev.Type(), Data: ev})
	assert.Equal(t, 0, hub.ClientCount("env-1"))
}

func TestHub_StreamsEventsForEnvironment(t *testing.T) {
	hub, srv := startHub(t)
	bus := events.NewEventBus()
	bus.Subscribe(hub)

	watcher := dial(t, srv, "?env_id=env-1")
	everything := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.ClientCount("") == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, hub.ClientCount("env-1"))
	assert.Equal(t, 1, hub.ClientCount(AllEnvironments))

	bus.Publish(events.NewStepAppliedEvent("env-2", "rush_hour", "A right", true, -1, 1, false, false))
	bus.Publish(events.NewStepAppliedEvent("env-1", "sliding", "left", true, -1, 3, true, false))

	msg := readMessage(t, watcher)
	assert.Equal(t, "env-1", msg.EnvID)
	assert.Equal(t, events.TypeStepApplied, msg.Event)
	assert.Equal(t, "sliding", msg.Data["puzzle"])
	assert.Equal(t, "left", msg.Data["action"])
	assert.Equal(t, 3.0, msg.Data["step"])
	assert.Equal(t, true, msg.Data["terminated"])

	first := readMessage(t, everything)
	second := readMessage(t, everything)
	assert.Equal(t, "env-2", first.EnvID)
	assert.Equal(t, "env-1", second.EnvID)
}

func TestHub_ClientDisconnect(t *testing.T) {
	hub, srv := startHub(t)

	conn := dial(t, srv, "?env_id=env-1")
	require.Eventually(t, func() bool { return hub.ClientCount("env-1") == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.ClientCount("env-1") == 0 }, 2*time.Second, 10*time.Millisecond)
}
