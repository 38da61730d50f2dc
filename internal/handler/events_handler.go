package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/hris-authz/internal/middleware"
	"github.com/stemsi/hris-authz/internal/response"
	ws "github.com/stemsi/hris-authz/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if allowed == "*" || strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// EventsHandler pushes permission invalidations to connected clients so the
// navigation can be re-rendered after role edits.
type EventsHandler struct {
	hub      *ws.Hub
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(hub *ws.Hub, log zerolog.Logger, allowedOrigins []string) *EventsHandler {
	return &EventsHandler{
		hub:      hub,
		log:      log.With().Str("component", "events_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// Stream godoc
// WS /ws/v1/authz/events?token=...
func (h *EventsHandler) Stream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	userID := claims.UserID
	wsLog := h.log.With().Int("user_id", userID).Logger()

	notices, unregister := h.hub.Register(userID)
	defer unregister()

	if err := ws.WriteTyped(conn, ws.ReadyResponse{Event: ws.EventReady, UserID: userID}); err != nil {
		return
	}
	wsLog.Debug().Msg("Client subscribed to authz events")

	// gorilla connections allow one concurrent writer. The reader goroutine
	// queues its replies for the write loop below.
	replies := make(chan interface{}, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ws.ExtendOnPong(conn)
		for {
			var msg ws.RequestEnvelope
			if err := ws.ReadJSON(conn, &msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					wsLog.Warn().Err(err).Msg("Unexpected close")
				}
				return
			}

			var reply interface{}
			switch msg.Action {
			case ws.ActionPing:
				reply = ws.PongResponse{Event: ws.EventPong}
			default:
				reply = ws.ErrorResponse{Event: ws.EventError, Error: "unknown action"}
			}
			select {
			case replies <- reply:
			default:
			}
		}
	}()

	ticker := time.NewTicker(ws.PingPeriod())
	defer ticker.Stop()

	for {
		select {
		case <-done:
			wsLog.Debug().Msg("Client disconnected from authz events")
			return
		case n := <-notices:
			err = ws.WriteTyped(conn, ws.PermissionsChangedResponse{
				Event:      ws.EventPermissionsChanged,
				Reason:     n.Reason,
				RoleID:     n.RoleID,
				Generation: n.Generation,
			})
		case reply := <-replies:
			err = ws.WriteTyped(conn, reply)
		case <-ticker.C:
			err = ws.WritePing(conn)
		}
		if err != nil {
			wsLog.Debug().Err(err).Msg("Write failed, closing")
			return
		}
	}
}
