package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"aivision/internal/config"
	"aivision/internal/logger"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) (*HubService, *httptest.Server) {
	t.Helper()

	log, err := logger.NewLogger(&config.Config{LogDirectory: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	hub := NewHubService(log)
	go hub.Run()
	t.Cleanup(hub.Stop)

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(conn, r.URL.Query().Get("user"))
		defer hub.Unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	return hub, server
}

func dial(t *testing.T, server *httptest.Server, user string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_SendReachesOnlyTargetUser(t *testing.T) {
	hub, server := newTestHub(t)

	alice := dial(t, server, "alice")
	bob := dial(t, server, "bob")
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.SendEvent("alice", EventMessage, map[string]string{"content": "hi"}))

	alice.SetReadDeadline(time.Now().Add(time.Second))
	_, payload, err := alice.ReadMessage()
	require.NoError(t, err)

	var event struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, EventMessage, event.Type)
	assert.Equal(t, "hi", event.Data["content"])

	bob.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = bob.ReadMessage()
	assert.Error(t, err)
}

func TestHub_UnregisterOnDisconnect(t *testing.T) {
	hub, server := newTestHub(t)

	conn := dial(t, server, "alice")
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_SendAfterStopDoesNotBlock(t *testing.T) {
	hub, _ := newTestHub(t)
	hub.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Send("alice", []byte("x"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Send blocked after Stop")
	}
}

func TestHub_SlowClientDoesNotBlockOthers(t *testing.T) {
	hub, server := newTestHub(t)

	// The slow client never reads, so the server side eventually fills the
	// socket buffers.
	dial(t, server, "slow")
	fast := dial(t, server, "fast")
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	big := []byte(strings.Repeat("x", 1<<20))
	for i := 0; i < 64; i++ {
		hub.Send("slow", big)
	}

	require.NoError(t, hub.SendEvent("fast", EventMessage, "ping"))
	fast.SetReadDeadline(time.Now().Add(time.Second))
	_, payload, err := fast.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(payload), "ping")

	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 3*time.Second, 10*time.Millisecond)
}
