package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/lacomiqueria/chatbot/internal/enrich"
	"github.com/lacomiqueria/chatbot/internal/flow"
	"github.com/lacomiqueria/chatbot/internal/models"
)

// DefaultTurnTimeout bounds one turn resolution end to end, including the
// model calls.
const DefaultTurnTimeout = 60 * time.Second

// AuthResolver maps a canonical phone number to the customer's storefront
// session, when one exists. Returning a zero AuthContext means the customer
// resolves as a guest.
type AuthResolver func(ctx context.Context, phone string) enrich.AuthContext

// TurnHandler drains the inbound channel of a messaging service, resolves
// each message through the orchestrator, and sends the reply back on the same
// channel the message came from.
type TurnHandler struct {
	msgService   Service
	orchestrator *flow.Orchestrator
	resolveAuth  AuthResolver
	turnTimeout  time.Duration
}

// NewTurnHandler creates a TurnHandler. resolveAuth may be nil, in which case
// every customer resolves as a guest.
func NewTurnHandler(msgService Service, orchestrator *flow.Orchestrator, resolveAuth AuthResolver) *TurnHandler {
	return &TurnHandler{
		msgService:   msgService,
		orchestrator: orchestrator,
		resolveAuth:  resolveAuth,
		turnTimeout:  DefaultTurnTimeout,
	}
}

// Run consumes inbound messages until the context is cancelled or the
// service's inbound channel closes.
func (h *TurnHandler) Run(ctx context.Context) {
	slog.Debug("TurnHandler started")
	for {
		select {
		case <-ctx.Done():
			slog.Debug("TurnHandler stopping, context cancelled")
			return
		case msg, ok := <-h.msgService.Inbound():
			if !ok {
				slog.Debug("TurnHandler stopping, inbound channel closed")
				return
			}
			h.handleInbound(ctx, msg)
		}
	}
}

// handleInbound resolves one message and replies. Resolution failures still
// produce a reply; only delivery failures are terminal for the message.
func (h *TurnHandler) handleInbound(ctx context.Context, msg models.InboundMessage) {
	turnCtx, cancel := context.WithTimeout(ctx, h.turnTimeout)
	defer cancel()

	phone, err := h.msgService.ValidateAndCanonicalizeRecipient(msg.From)
	if err != nil {
		slog.Warn("TurnHandler dropping message with invalid sender", "error", err, "from", msg.From)
		return
	}

	var auth enrich.AuthContext
	if h.resolveAuth != nil {
		auth = h.resolveAuth(turnCtx, phone)
	}

	resp, err := h.orchestrator.HandleTurn(turnCtx, flow.InboundTurn{
		ConversationID: ConversationID(phone),
		EventID:        msg.EventID,
		Text:           msg.Body,
		RemoteIP:       msg.RemoteIP,
		Auth:           auth,
	})
	if err != nil {
		slog.Error("TurnHandler resolution rejected message", "error", err, "from", phone, "eventID", msg.EventID)
		return
	}

	if err := h.msgService.SendMessage(turnCtx, phone, resp.Message); err != nil {
		slog.Error("TurnHandler failed to send reply", "error", err, "to", phone)
	}
}

// ConversationID derives the stable conversation id for a canonical phone
// number.
func ConversationID(phone string) string {
	return "wa:" + phone
}
