package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/chat"
	"messenger-service/internal/middleware"
	"messenger-service/internal/models"
	"messenger-service/internal/telemetry"
)

// Registry is the chat-registry surface the handlers depend on.
type Registry interface {
	EnsureUser(ctx context.Context, identity string) (models.UserRecord, error)
	StartOrJoinChat(ctx context.Context, initiator string, targets []string) (models.ChatRecord, error)
}

// Ledger is the message-ledger surface the handlers depend on.
type Ledger interface {
	AppendMessage(ctx context.Context, chatID, sender, text string) (models.Message, bool, error)
	ListMessages(ctx context.Context, chatID string) ([]models.Message, error)
	GetChat(ctx context.Context, chatID string) (models.ChatRecord, error)
}

// Projector is the overview surface the handlers depend on.
type Projector interface {
	ProjectOverview(ctx context.Context, identity string) ([]chat.OverviewEntry, error)
}

// ChatHandler serves the messenger REST endpoints.
type ChatHandler struct {
	registry  Registry
	ledger    Ledger
	projector Projector
	audit     *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(registry Registry, ledger Ledger, projector Projector, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{
		registry:  registry,
		ledger:    ledger,
		projector: projector,
		audit:     audit,
	}
}

// ListChats returns the caller's chat overview, most recently updated first.
func (h *ChatHandler) ListChats(c *gin.Context) {
	callerID := middleware.IdentityFromContext(c)

	if _, err := h.registry.EnsureUser(c.Request.Context(), callerID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}

	entries, err := h.projector.ProjectOverview(c.Request.Context(), callerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"chats": entries})
}

// StartChat creates a chat between the caller and the given participants, or
// reports the existing conversation for an exact pair.
func (h *ChatHandler) StartChat(c *gin.Context) {
	var req struct {
		Participants []string `json:"participants" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	callerID := middleware.IdentityFromContext(c)
	created, err := h.registry.StartOrJoinChat(c.Request.Context(), callerID, req.Participants)

	var dup *chat.DuplicateConversationError
	var link *chat.LinkError
	switch {
	case err == nil:
		h.audit.Emit(c.Request.Context(), "chat_created", created.Key, "", requestIDFromContext(c), callerID)
		c.JSON(http.StatusCreated, gin.H{"chat_id": created.Key, "chat": created})
	case errors.As(err, &dup):
		c.JSON(http.StatusConflict, gin.H{"error": "conversation already exists", "chat_id": dup.Chat.Key})
	case errors.Is(err, chat.ErrInvalidParticipants):
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least two distinct participants required"})
	case errors.As(err, &link):
		// The chat record exists; some back-references do not. Nothing is
		// rolled back, the caller decides whether to retry.
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "chat created but participant links failed",
			"chat_id": link.Chat.Key,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create chat"})
	}
}

// GetChatMessages returns a chat's ledger in append order.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	chatID := c.Param("chat_id")
	callerID := middleware.IdentityFromContext(c)

	if _, ok := h.loadChatForCaller(c, chatID, callerID); !ok {
		return
	}

	msgs, err := h.ledger.ListMessages(c.Request.Context(), chatID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostChatMessage appends a message to the chat. Whitespace-only text is a
// no-op acknowledged with 204.
func (h *ChatHandler) PostChatMessage(c *gin.Context) {
	chatID := c.Param("chat_id")
	callerID := middleware.IdentityFromContext(c)

	if _, ok := h.loadChatForCaller(c, chatID, callerID); !ok {
		return
	}

	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, appended, err := h.ledger.AppendMessage(c.Request.Context(), chatID, callerID, req.Text)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chat.ErrChatNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "failed to store message"})
		return
	}
	if !appended {
		c.Status(http.StatusNoContent)
		return
	}

	h.audit.Emit(c.Request.Context(), "message_appended", chatID, "", requestIDFromContext(c), callerID)
	c.JSON(http.StatusCreated, msg)
}

// Healthz is a liveness probe.
func (h *ChatHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// loadChatForCaller fetches the chat and enforces participant membership,
// writing the error response itself when the check fails.
func (h *ChatHandler) loadChatForCaller(c *gin.Context, chatID, callerID string) (models.ChatRecord, bool) {
	record, err := h.ledger.GetChat(c.Request.Context(), chatID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chat.ErrChatNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "chat not found"})
		return models.ChatRecord{}, false
	}
	if !record.HasParticipant(callerID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat participant"})
		return models.ChatRecord{}, false
	}
	return record, true
}
