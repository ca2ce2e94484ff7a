package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KevinKickass/MokuCore/internal/auth"
	"github.com/KevinKickass/MokuCore/internal/discovery"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func startHub(t *testing.T) (*Hub, *auth.JWTHandler, string) {
	t.Helper()

	j := auth.NewJWTHandler(testSecret, time.Hour)
	hub := NewHub(zap.NewNop(), j)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))
	t.Cleanup(srv.Close)

	return hub, j, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *gorilla.Conn {
	t.Helper()
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func readType(t *testing.T, conn *gorilla.Conn) (string, map[string]interface{}) {
	t.Helper()
	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	typ, _ := msg["type"].(string)
	return typ, msg
}

func authenticate(t *testing.T, hub *Hub, j *auth.JWTHandler, conn *gorilla.Conn, want int) {
	t.Helper()
	token, err := j.GenerateAccessToken("dashboard", auth.RoleViewer)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth", "token": token}))

	typ, msg := readType(t, conn)
	require.Equal(t, "auth_success", typ)
	assert.Equal(t, "dashboard", msg["client"])

	require.Eventually(t, func() bool { return hub.GetClientCount() == want },
		2*time.Second, 10*time.Millisecond)
}

func TestHubBroadcastsToAuthenticatedClients(t *testing.T) {
	hub, j, url := startHub(t)
	conn := dial(t, url)
	authenticate(t, hub, j, conn, 1)

	hub.Broadcast(NewDeviceDiscoveredMessage(discovery.DeviceInfo{
		IP:           "192.168.73.1",
		SerialNumber: "MG106B",
	}))

	typ, msg := readType(t, conn)
	assert.Equal(t, string(MessageTypeDeviceDiscovered), typ)
	data := msg["data"].(map[string]interface{})
	assert.Equal(t, "MG106B", data["serial_number"])
}

func TestHubRejectsUnauthenticatedClients(t *testing.T) {
	tests := []struct {
		name string
		msg  map[string]string
	}{
		{"not auth first", map[string]string{"type": "subscribe"}},
		{"missing token", map[string]string{"type": "auth"}},
		{"bad token", map[string]string{"type": "auth", "token": "garbage"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub, _, url := startHub(t)
			conn := dial(t, url)
			require.NoError(t, conn.WriteJSON(tt.msg))

			typ, _ := readType(t, conn)
			assert.Equal(t, "auth_failed", typ)

			var rest map[string]interface{}
			assert.Error(t, conn.ReadJSON(&rest), "connection should be closed")
			assert.Equal(t, 0, hub.GetClientCount())
		})
	}
}

func TestClientSubscriptionFiltersEvents(t *testing.T) {
	hub, j, url := startHub(t)
	conn := dial(t, url)
	authenticate(t, hub, j, conn, 1)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":   "subscribe",
		"events": []string{string(MessageTypeDevicesPurged)},
	}))
	typ, _ := readType(t, conn)
	require.Equal(t, "subscribed", typ)

	hub.Broadcast(NewDeviceDiscoveredMessage(discovery.DeviceInfo{IP: "192.168.73.1"}))
	hub.Broadcast(NewDevicesPurgedMessage(3, 10*time.Minute))

	typ, msg := readType(t, conn)
	assert.Equal(t, string(MessageTypeDevicesPurged), typ)
	data := msg["data"].(map[string]interface{})
	assert.EqualValues(t, 3, data["removed"])
	assert.Equal(t, "10m0s", data["max_age"])
}

func TestHubStopsOnContextCancel(t *testing.T) {
	j := auth.NewJWTHandler(testSecret, time.Hour)
	hub := NewHub(zap.NewNop(), j)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
}
