package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"prodRelayWs/internal/modules/relay/application/usecase"
	"prodRelayWs/internal/modules/relay/domain"
	"prodRelayWs/internal/modules/relay/infrastructure"
	"prodRelayWs/internal/shared/auth"
)

func startRelayServer(t *testing.T) string {
	t.Helper()
	store := infrastructure.NewFileStore(filepath.Join(t.TempDir(), "messages.json"))
	relay := usecase.NewRelay(store, domain.NewRoomRegistry())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go relay.Run(ctx)

	e := echo.New()
	e.GET("/ws", NewWebsocketHandler(relay, auth.NewJWTValidator("test-secret"), 8))
	e.GET("/ws/:token", NewWebsocketHandler(relay, auth.NewJWTValidator("test-secret"), 8))
	e.GET("/health", NewHealthHandler())

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv.URL
}

func dial(t *testing.T, baseURL, path string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) domain.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame domain.Frame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func writeFrame(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	frame, err := domain.NewFrame(event, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(frame))
}

func TestWebsocketConnectAcksWithConnectionID(t *testing.T) {
	req := require.New(t)
	baseURL := startRelayServer(t)

	conn := dial(t, baseURL, "/ws")
	frame := readFrame(t, conn)
	req.Equal(domain.EventConnected, frame.Event)

	var ack domain.ConnectedPayload
	req.NoError(json.Unmarshal(frame.Payload, &ack))
	req.NotEmpty(ack.ConnectionID)
}

func TestWebsocketChatRoundTrip(t *testing.T) {
	req := require.New(t)
	baseURL := startRelayServer(t)

	x := dial(t, baseURL, "/ws")
	y := dial(t, baseURL, "/ws")
	readFrame(t, x)
	readFrame(t, y)

	writeFrame(t, x, domain.EventJoinRoom, domain.RoomPayload{RoomID: "p1"})
	writeFrame(t, y, domain.EventJoinRoom, domain.RoomPayload{RoomID: "p1"})
	writeFrame(t, x, domain.EventSendMessage, domain.SendMessagePayload{RoomID: "p1", Body: "hi", Username: "alice"})

	for _, conn := range []*websocket.Conn{x, y} {
		frame := readFrame(t, conn)
		req.Equal(domain.EventMessage, frame.Event)
		var msg domain.ChatMessage
		req.NoError(json.Unmarshal(frame.Payload, &msg))
		req.Equal("hi", msg.Body)
		req.Equal("alice", msg.Username)
	}
}

func TestWebsocketInvalidTokenStillConnects(t *testing.T) {
	req := require.New(t)
	baseURL := startRelayServer(t)

	conn := dial(t, baseURL, "/ws/this-is-not-a-jwt")
	frame := readFrame(t, conn)
	req.Equal(domain.EventConnected, frame.Event)
}

func TestHealthEndpoint(t *testing.T) {
	req := require.New(t)
	baseURL := startRelayServer(t)

	resp, err := http.Get(baseURL + "/health")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)
}
