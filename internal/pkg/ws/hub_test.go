package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	assert.NotNil(t, hub)
	assert.NotNil(t, hub.sessions)
	assert.Equal(t, 0, len(hub.sessions))
}

func TestHub_ConnectionCount_Empty(t *testing.T) {
	hub := NewHub()

	count := hub.ConnectionCount()
	assert.Equal(t, 0, count)
}

func TestHub_IsOnline_NoConnections(t *testing.T) {
	hub := NewHub()

	online := hub.IsOnline(123)
	assert.False(t, online)
}

func TestHub_SendToUser_UserNotOnline(t *testing.T) {
	hub := NewHub()

	msg := &Message{
		Type: "cancellation_event",
		Data: map[string]string{"event": "finalized"},
	}

	// Should return nil (not error) for offline user
	err := hub.SendToUser(123, msg)
	assert.NoError(t, err)
}

func TestMessage_Structure(t *testing.T) {
	msg := &Message{
		Type: "cancellation_event",
		Data: map[string]interface{}{
			"cancellation_id": 123,
			"event":           "archived",
		},
	}

	assert.Equal(t, "cancellation_event", msg.Type)
	data := msg.Data.(map[string]interface{})
	assert.Equal(t, 123, data["cancellation_id"])
	assert.Equal(t, "archived", data["event"])
}

func TestSession_Structure(t *testing.T) {
	session := &Session{
		UserID: 456,
		Conn:   nil,
	}

	assert.Equal(t, int64(456), session.UserID)
	assert.Nil(t, session.Conn)
}

func TestHub_WithRealWebSocket(t *testing.T) {
	hub := NewHub()

	// Create test server
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}

		session := &Session{
			UserID: 100,
			Conn:   conn,
		}
		hub.Register(session)

		// Keep connection open for a bit
		time.Sleep(100 * time.Millisecond)

		hub.Unregister(session)
	}))
	defer server.Close()

	// Connect via websocket
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Wait for registration
	time.Sleep(50 * time.Millisecond)

	// Verify user is online
	assert.True(t, hub.IsOnline(100))
	assert.Equal(t, 1, hub.ConnectionCount())

	// Wait for unregistration
	time.Sleep(100 * time.Millisecond)
	assert.False(t, hub.IsOnline(100))
}

func TestHub_SendToUser_WithConnection(t *testing.T) {
	hub := NewHub()

	// Create test server
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		session := &Session{
			UserID: 200,
			Conn:   conn,
		}
		hub.Register(session)

		// Keep connection open
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	// Connect via websocket
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Wait for registration
	time.Sleep(50 * time.Millisecond)

	// Send message to user
	msg := &Message{
		Type: "cancellation_event",
		Data: map[string]string{"event": "downsell_accepted"},
	}
	err = hub.SendToUser(200, msg)
	assert.NoError(t, err)

	// Read message on client side
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, received, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(received), "cancellation_event")
	assert.Contains(t, string(received), "downsell_accepted")
}

func TestHub_SameUserMultipleTabs(t *testing.T) {
	hub := NewHub()

	// Create test server
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		session := &Session{
			UserID: 300, // Same user ID
			Conn:   conn,
		}
		hub.Register(session)

		// Keep connection open
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	// Open two tabs for the same user
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn1, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn1.Close()

	time.Sleep(50 * time.Millisecond)

	conn2, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn2.Close()

	time.Sleep(50 * time.Millisecond)

	// Both tabs stay registered
	assert.Equal(t, 2, hub.ConnectionCount())
	assert.True(t, hub.IsOnline(300))

	// A message reaches both connections
	msg := &Message{
		Type: "cancellation_event",
		Data: map[string]string{"event": "archived"},
	}
	require.NoError(t, hub.SendToUser(300, msg))

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, received, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Contains(t, string(received), "archived")
	}
}

func TestHub_MultipleUsers(t *testing.T) {
	hub := NewHub()

	var userID int64 = 0

	// Create test server
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		userID++
		session := &Session{
			UserID: userID,
			Conn:   conn,
		}
		hub.Register(session)

		// Keep connection open
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	// Connect multiple users
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	var conns []*websocket.Conn
	for i := 0; i < 3; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		conns = append(conns, conn)
		time.Sleep(20 * time.Millisecond)
	}

	// Clean up connections
	defer func() {
		for _, conn := range conns {
			conn.Close()
		}
	}()

	time.Sleep(100 * time.Millisecond)

	// Should have 3 connections
	assert.Equal(t, 3, hub.ConnectionCount())
	assert.True(t, hub.IsOnline(1))
	assert.True(t, hub.IsOnline(2))
	assert.True(t, hub.IsOnline(3))
	assert.False(t, hub.IsOnline(4))
}
