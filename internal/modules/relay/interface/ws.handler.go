package transport

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"prodRelayWs/internal/modules/relay/application/usecase"
	"prodRelayWs/internal/modules/relay/infrastructure"
	"prodRelayWs/internal/shared/auth"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// NewWebsocketHandler exposes the relay's single websocket endpoint. An
// identity token may arrive as a path param, query param, or bearer header;
// an invalid or absent token downgrades the connection to anonymous rather
// than rejecting it — room membership is deliberately unauthenticated.
func NewWebsocketHandler(relay *usecase.Relay, validator auth.TokenValidator, sendBuffer int) echo.HandlerFunc {
	return func(c echo.Context) error {
		peerIP := c.RealIP()
		token := resolveToken(c)

		username := ""
		if token != "" {
			claims, err := validator.Validate(token)
			if err != nil {
				slog.Warn("ws identity token rejected, continuing anonymous", slog.String("ip", peerIP), slog.Any("error", err))
			} else {
				username = claims.Identity()
			}
		}

		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			slog.Error("ws upgrade failed", slog.String("ip", peerIP), slog.Any("error", err))
			return err
		}

		connID := uuid.NewString()
		client := infrastructure.NewClient(connID, username, conn, relay, sendBuffer)
		relay.Attach(client)

		go client.WritePump()
		go client.ReadPump()

		slog.Info("ws connected", slog.String("connectionId", connID), slog.String("username", username), slog.String("ip", peerIP))
		return nil
	}
}

func resolveToken(c echo.Context) string {
	if token := strings.TrimSpace(c.Param("token")); token != "" {
		return token
	}
	if token := strings.TrimSpace(c.QueryParam("token")); token != "" {
		return token
	}
	authz := strings.TrimSpace(c.Request().Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return ""
}
