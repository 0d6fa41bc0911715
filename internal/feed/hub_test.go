// internal/feed/hub_test.go

package feed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPublishNeverBlocks(t *testing.T) {
	hub := NewHub(zap.NewNop())

	// No run loop is draining the queue; overfilling must drop, not block
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			hub.Publish("campaign.created", map[string]int{"i": i})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full queue")
	}
}

func TestFeedDeliversEvents(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()
	defer hub.Shutdown()

	handler := NewHandler(hub, zap.NewNop())
	server := httptest.NewServer(http.HandlerFunc(handler.ServeFeed))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ActiveConnections() == 1 },
		time.Second, 10*time.Millisecond)

	hub.Publish("profile.updated", map[string]string{"name": "Maya"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, "profile.updated", event.Type)
	assert.False(t, event.Timestamp.IsZero())
}
