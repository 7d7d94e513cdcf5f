package server

import (
	"encoding/json"
	"log/slog"

	"launchpad/internal/featureflags"
	"launchpad/internal/middleware"
	"launchpad/internal/models"
	"launchpad/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// realtimeUpgrade rejects plain HTTP requests before any ticket is consumed.
func (s *Server) realtimeUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return models.RespondWithError(c, fiber.StatusUpgradeRequired,
			models.NewValidationError("WebSocket upgrade required"))
	}
	return c.Next()
}

// realtimeEnabled gates the channel on the realtime flag for the caller.
func (s *Server) realtimeEnabled(c *fiber.Ctx) error {
	if !s.featureFlags.Enabled(featureflags.Realtime, currentUserID(c)) {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewForbiddenError("Realtime is disabled"))
	}
	return c.Next()
}

// RealtimeHandler handles GET /api/realtime.
// Clients subscribe to row changes with
// {"type":"subscribe","topic":"t1","table":"product_comments","event":"*","filter":"product_id=eq.5"}.
// @Summary Realtime row-change channel (WebSocket)
// @Tags realtime
// @Param ticket query string true "Single-use ticket from POST /realtime/ticket"
// @Success 101
// @Router /realtime [get]
func (s *Server) RealtimeHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		uid, ok := conn.Locals("userID").(uint)
		if !ok {
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(uid, conn)
		if err != nil {
			middleware.Logger.Warn("realtime registration rejected",
				slog.Uint64("user_id", uint64(uid)),
				slog.String("error", err.Error()),
			)
			if payload, merr := json.Marshal(notifications.ServerMessage{
				Type:    notifications.TypeError,
				Payload: map[string]string{"message": err.Error()},
			}); merr == nil {
				_ = conn.WriteMessage(websocket.TextMessage, payload)
			}
			_ = conn.Close()
			return
		}

		// ReadPump unregisters the client when the socket closes.
		go client.WritePump()
		client.ReadPump()
	})
}
