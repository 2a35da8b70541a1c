package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"messenger-service/internal/chat"
	"messenger-service/internal/identity"
	"messenger-service/internal/livesync"
	"messenger-service/internal/observability"
)

// SessionHandler upgrades live-session requests.
type SessionHandler struct {
	hub       *Hub
	ledger    *chat.Ledger
	projector *chat.Projector
	provider  identity.Provider
	log       zerolog.Logger
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(hub *Hub, ledger *chat.Ledger, projector *chat.Projector, provider identity.Provider, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		hub:       hub,
		ledger:    ledger,
		projector: projector,
		provider:  provider,
		log:       log.With().Str("component", "ws").Logger(),
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates, upgrades the connection and starts the session. The
// client receives its current overview immediately after connecting.
func (h *SessionHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messenger-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	callerID, err := h.provider.Identify(ctx, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		Identity:    callerID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	session := &Session{
		hub:    h.hub,
		conn:   conn,
		ledger: h.ledger,
		info:   info,
		log:    h.log.With().Str("identity", callerID).Str("conn_id", info.ConnID).Logger(),
	}
	session.controller = livesync.NewController(callerID, h.ledger, h.projector, session, h.log)
	h.hub.add(session)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	_ = observability.PublishEvent(ctx, "ws_events.sessions", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_connect",
		Payload:   session.eventPayload("ws_connect"),
	}, observability.BuildHeaders(requestID, info.TraceID))

	// First frame: the chat list as it stands right now.
	session.controller.OnStoreChange(ctx)

	// The request context dies once the handler returns on a hijacked
	// connection; the session outlives it.
	go session.readLoop(context.Background())
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}
