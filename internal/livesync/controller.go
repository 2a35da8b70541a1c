// Package livesync keeps one session's view of the messenger current. A
// controller is purely reactive: it owns no polling loop and re-derives state
// from fresh store reads whenever the store reports a change.
package livesync

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"messenger-service/internal/chat"
	"messenger-service/internal/models"
)

// Presenter receives freshly derived projections. Implementations must
// tolerate being called from multiple goroutines.
type Presenter interface {
	PresentOverview(entries []chat.OverviewEntry)
	PresentMessages(chatID string, msgs []models.Message)
	PresentError(stage string, err error)
}

// MessageLister is the slice of the ledger the controller needs.
type MessageLister interface {
	ListMessages(ctx context.Context, chatID string) ([]models.Message, error)
}

// OverviewProjector is the slice of the projector the controller needs.
type OverviewProjector interface {
	ProjectOverview(ctx context.Context, identity string) ([]chat.OverviewEntry, error)
}

// Controller tracks which chat a session has open: idle when viewing is
// empty, viewing otherwise. The open-chat indicator is per controller, never
// shared, so one instance serves exactly one session.
type Controller struct {
	identity  string
	ledger    MessageLister
	projector OverviewProjector
	presenter Presenter
	log       zerolog.Logger

	mu      sync.Mutex
	viewing string
	closed  bool
}

// NewController builds a controller for one session, starting idle.
func NewController(identity string, ledger MessageLister, projector OverviewProjector, presenter Presenter, log zerolog.Logger) *Controller {
	return &Controller{
		identity:  identity,
		ledger:    ledger,
		projector: projector,
		presenter: presenter,
		log:       log.With().Str("component", "livesync").Str("identity", identity).Logger(),
	}
}

// Open switches the controller to viewing chatID and immediately presents
// that chat's ledger.
func (c *Controller) Open(ctx context.Context, chatID string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.viewing = chatID
	c.mu.Unlock()

	c.refreshMessages(ctx, chatID)
}

// CloseChat returns the controller to idle. Overview updates keep flowing.
func (c *Controller) CloseChat() {
	c.mu.Lock()
	c.viewing = ""
	c.mu.Unlock()
}

// Viewing reports the currently open chat id, empty when idle.
func (c *Controller) Viewing() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewing
}

// OnStoreChange handles one change notification: the overview is always
// re-projected, and if a chat is open its ledger is re-read too. Both use
// fresh reads, never cached state.
func (c *Controller) OnStoreChange(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	viewing := c.viewing
	c.mu.Unlock()

	c.refreshOverview(ctx)
	if viewing != "" {
		c.refreshMessages(ctx, viewing)
	}
}

// Shutdown detaches the controller from its presenter. In-flight refreshes
// are not cancelled; their results are discarded on arrival.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	c.closed = true
	c.viewing = ""
	c.mu.Unlock()
}

func (c *Controller) refreshOverview(ctx context.Context) {
	entries, err := c.projector.ProjectOverview(ctx, c.identity)
	if err != nil {
		c.log.Error().Err(err).Msg("overview projection failed")
		if !c.discarded("") {
			c.presenter.PresentError("overview", err)
		}
		return
	}
	if c.discarded("") {
		return
	}
	c.presenter.PresentOverview(entries)
}

func (c *Controller) refreshMessages(ctx context.Context, chatID string) {
	msgs, err := c.ledger.ListMessages(ctx, chatID)
	if err != nil {
		c.log.Error().Err(err).Str("chat_id", chatID).Msg("ledger read failed")
		if !c.discarded(chatID) {
			c.presenter.PresentError("messages", err)
		}
		return
	}
	if c.discarded(chatID) {
		return
	}
	c.presenter.PresentMessages(chatID, msgs)
}

// discarded reports whether a result that just arrived is no longer wanted:
// the session shut down, or it was fetched for a chat that is no longer open.
func (c *Controller) discarded(chatID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	return chatID != "" && c.viewing != chatID
}
