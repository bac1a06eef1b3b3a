package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hcmut-dev/rollcall-backend/internal/config"
	"github.com/hcmut-dev/rollcall-backend/internal/middleware"
	"github.com/hcmut-dev/rollcall-backend/internal/service"
	ws "github.com/hcmut-dev/rollcall-backend/internal/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams live attendance updates to a lecturer's monitor while
// the session window is open.
type WSHandler struct {
	rdb               *redis.Client
	attendanceService *service.AttendanceService
	log               zerolog.Logger
	upgrader          websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(rdb *redis.Client, attendanceService *service.AttendanceService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		rdb:               rdb,
		attendanceService: attendanceService,
		log:               log.With().Str("component", "ws_handler").Logger(),
		upgrader:          buildUpgrader(allowedOrigins),
	}
}

// SessionMonitorStream godoc
// WS /ws/v1/lecturer/sessions/:id/stream
// Upgrades to WebSocket, sends a snapshot of the session, then forwards
// every check-in, override, refresh and terminate event as it happens.
func (h *WSHandler) SessionMonitorStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
		return
	}

	// Ownership is checked before the upgrade so a foreign lecturer gets a
	// clean 403 instead of a dropped socket.
	sess, err := h.attendanceService.GetSession(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failAttendance(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("lecturer_id", claims.UserID).
		Str("session_id", sessionID.String()).
		Logger()
	wsLog.Info().Msg("Monitor connected")

	if err := ws.WriteTyped(conn, ws.SnapshotResponse{
		Event:        ws.EventSnapshot,
		SessionID:    sess.ID.String(),
		Status:       string(sess.Status(time.Now())),
		PresentCount: sess.PresentCount,
		AbsentCount:  sess.AbsentCount,
	}); err != nil {
		return
	}

	sub := h.rdb.Subscribe(c.Request.Context(), config.CacheKey.SessionEventChannel(sessionID.String()))
	defer sub.Close()

	// Reader goroutine: forward pings and detect the client going away.
	// It never writes to the connection; gorilla/websocket allows only one
	// concurrent writer, so every frame goes out from the select loop below.
	done := make(chan struct{})
	pings := make(chan struct{}, 1)
	go func() {
		defer close(done)
		for {
			var msg ws.RequestEnvelope
			if err := ws.ReadJSON(conn, &msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					wsLog.Warn().Err(err).Msg("Unexpected close")
				} else {
					wsLog.Debug().Msg("Monitor disconnected")
				}
				return
			}
			if msg.Action == ws.ActionPing {
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}()

	events := sub.Channel()
	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-pings:
			if err := ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong}); err != nil {
				wsLog.Debug().Err(err).Msg("Monitor write failed")
				return
			}
		case msg, ok := <-events:
			if !ok {
				return
			}
			if err := ws.WriteTyped(conn, ws.UpdateResponse{
				Event:   ws.EventUpdate,
				Payload: msg.Payload,
			}); err != nil {
				wsLog.Debug().Err(err).Msg("Monitor write failed")
				return
			}
		}
	}
}
