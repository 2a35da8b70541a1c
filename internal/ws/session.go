package ws

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"messenger-service/internal/chat"
	"messenger-service/internal/livesync"
	"messenger-service/internal/models"
	"messenger-service/internal/observability"
)

// clientFrame is what a connected client may send: open a chat or go back to
// the overview.
type clientFrame struct {
	Type   string `json:"type"`
	ChatID string `json:"chat_id,omitempty"`
}

// serverFrame is what the session pushes to the client.
type serverFrame struct {
	Type     string              `json:"type"`
	ChatID   string              `json:"chat_id,omitempty"`
	Chats    []chat.OverviewEntry `json:"chats,omitempty"`
	Messages []models.Message    `json:"messages,omitempty"`
	Stage    string              `json:"stage,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// Session binds one websocket connection to one livesync controller and acts
// as the controller's presenter.
type Session struct {
	hub        *Hub
	conn       *websocket.Conn
	controller *livesync.Controller
	ledger     *chat.Ledger
	info       ConnInfo
	log        zerolog.Logger

	writeMu sync.Mutex
}

// PresentOverview pushes a fresh chat list to the client.
func (s *Session) PresentOverview(entries []chat.OverviewEntry) {
	s.write(serverFrame{Type: "overview", Chats: entries})
}

// PresentMessages pushes the open chat's ledger to the client.
func (s *Session) PresentMessages(chatID string, msgs []models.Message) {
	s.write(serverFrame{Type: "messages", ChatID: chatID, Messages: msgs})
}

// PresentError surfaces a failed refresh; the client keeps its prior state.
func (s *Session) PresentError(stage string, err error) {
	s.write(serverFrame{Type: "error", Stage: stage, Error: err.Error()})
}

func (s *Session) write(frame serverFrame) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(frame); err != nil {
		s.log.Warn().Err(err).Msg("websocket write failed")
	}
}

// readLoop consumes client control frames until the connection drops.
func (s *Session) readLoop(ctx context.Context) {
	defer s.teardown()

	for {
		var frame clientFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			return
		}

		switch frame.Type {
		case "open":
			s.openChat(ctx, frame.ChatID)
		case "close":
			s.controller.CloseChat()
		default:
			s.write(serverFrame{Type: "error", Stage: "control", Error: "unknown frame type"})
		}
	}
}

// openChat verifies the caller belongs to the chat before switching the
// controller to it.
func (s *Session) openChat(ctx context.Context, chatID string) {
	record, err := s.ledger.GetChat(ctx, chatID)
	if err != nil {
		s.PresentError("open", err)
		return
	}
	if !record.HasParticipant(s.info.Identity) {
		s.write(serverFrame{Type: "error", Stage: "open", Error: "not a chat participant"})
		return
	}
	observability.IncWSEvent("chat_open")
	s.controller.Open(ctx, chatID)
}

func (s *Session) teardown() {
	s.controller.Shutdown()
	s.hub.remove(s)
	_ = s.conn.Close()

	observability.DecWSActive()
	observability.IncWSEvent("ws_disconnect")
	_ = observability.PublishEvent(context.Background(), "ws_events.sessions", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_disconnect",
		Payload:   s.eventPayload("ws_disconnect"),
	}, observability.BuildHeaders(s.info.RequestID, s.info.TraceID))

	s.log.Debug().Str("conn_id", s.info.ConnID).Msg("session closed")
}

func (s *Session) eventPayload(event string) map[string]interface{} {
	return map[string]interface{}{
		"ws": map[string]interface{}{
			"event":   event,
			"conn_id": s.info.ConnID,
		},
		"identity": map[string]interface{}{
			"identity":  s.info.Identity,
			"device_id": s.info.DeviceID,
			"ip":        s.info.IP,
		},
	}
}
