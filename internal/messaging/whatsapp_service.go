package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mau.fi/whatsmeow/types/events"

	"github.com/lacomiqueria/chatbot/internal/models"
	"github.com/lacomiqueria/chatbot/internal/whatsapp"
)

// WhatsAppService implements Service using the Whatsmeow-based client.
// Inbound messages and delivery receipts arrive through the client's event
// stream.
type WhatsAppService struct {
	client   whatsapp.WhatsAppSender
	waClient *whatsapp.Client
	receipts chan models.Receipt
	inbound  chan models.InboundMessage
	done     chan struct{}
}

// NewWhatsAppService creates a WhatsAppService wrapping the given sender.
func NewWhatsAppService(client whatsapp.WhatsAppSender) *WhatsAppService {
	service := &WhatsAppService{
		client:   client,
		receipts: make(chan models.Receipt, DefaultChannelBufferSize),
		inbound:  make(chan models.InboundMessage, DefaultChannelBufferSize),
		done:     make(chan struct{}),
	}

	// Event handling requires the concrete client; an interface value is a
	// mock and gets no event stream.
	if waClient, ok := client.(*whatsapp.Client); ok {
		service.waClient = waClient
	}

	return service
}

// ValidateAndCanonicalizeRecipient strips non-numeric characters and requires
// at least 6 digits.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}
	return canonical, nil
}

// Start registers the event handler when a concrete client is available.
func (s *WhatsAppService) Start(ctx context.Context) error {
	if s.waClient == nil {
		slog.Debug("WhatsAppService has no concrete client, skipping event handling")
		return nil
	}
	go s.handleEvents(ctx)
	slog.Debug("WhatsAppService event handler started")
	return nil
}

// Stop stops background processing and closes the channels.
func (s *WhatsAppService) Stop() error {
	close(s.done)
	close(s.receipts)
	close(s.inbound)
	slog.Debug("WhatsAppService stopped")
	return nil
}

// SendMessage delivers a message and emits a sent receipt.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string) error {
	if err := s.client.SendMessage(ctx, to, body); err != nil {
		slog.Error("WhatsAppService SendMessage error", "error", err, "to", to)
		return err
	}
	s.receipts <- models.Receipt{To: to, Status: models.MessageStatusSent, Time: time.Now().Unix()}
	return nil
}

// Receipts returns the channel of delivery status events.
func (s *WhatsAppService) Receipts() <-chan models.Receipt {
	return s.receipts
}

// Inbound returns the channel of incoming customer messages.
func (s *WhatsAppService) Inbound() <-chan models.InboundMessage {
	return s.inbound
}

func (s *WhatsAppService) handleEvents(ctx context.Context) {
	if s.waClient == nil || s.waClient.GetClient() == nil {
		slog.Error("WhatsAppService handleEvents: no client available")
		return
	}

	s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		switch v := evt.(type) {
		case *events.Message:
			s.handleIncomingMessage(v)
		case *events.Receipt:
			s.handleMessageReceipt(v)
		}
	})

	<-ctx.Done()
	slog.Debug("WhatsAppService handleEvents stopping, context cancelled")
}

// handleIncomingMessage forwards incoming text messages. Non-text payloads
// (images, audio, stickers) are skipped.
func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	if evt.Message == nil {
		return
	}

	var messageText string
	if evt.Message.Conversation != nil {
		messageText = *evt.Message.Conversation
	} else if evt.Message.ExtendedTextMessage != nil && evt.Message.ExtendedTextMessage.Text != nil {
		messageText = *evt.Message.ExtendedTextMessage.Text
	} else {
		slog.Debug("WhatsAppService ignoring non-text message", "from", evt.Info.Sender.String())
		return
	}

	msg := models.InboundMessage{
		From:    canonicalPhone(evt.Info.Sender.User),
		Body:    messageText,
		EventID: evt.Info.ID,
		Time:    evt.Info.Timestamp.Unix(),
	}

	select {
	case s.inbound <- msg:
		slog.Debug("WhatsAppService inbound message forwarded", "from", msg.From, "eventID", msg.EventID)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService inbound channel blocked, dropping message", "from", msg.From)
	}
}

func (s *WhatsAppService) handleMessageReceipt(evt *events.Receipt) {
	var status models.MessageStatus
	switch evt.Type {
	case events.ReceiptTypeDelivered:
		status = models.MessageStatusDelivered
	case events.ReceiptTypeRead:
		status = models.MessageStatusRead
	default:
		return
	}

	receipt := models.Receipt{
		To:     canonicalPhone(evt.MessageSource.Sender.User),
		Status: status,
		Time:   evt.Timestamp.Unix(),
	}

	select {
	case s.receipts <- receipt:
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService receipts channel blocked, dropping receipt", "to", receipt.To)
	}
}

// canonicalPhone normalizes a bare JID user part into E.164 form.
func canonicalPhone(user string) string {
	if strings.HasPrefix(user, "+") {
		return user
	}
	return "+" + user
}
