// Package messaging provides the pluggable message delivery layer of the
// support chatbot: a channel-based Service abstraction with Twilio and
// Whatsmeow implementations, and the inbound turn handler that feeds customer
// messages into the resolution pipeline.
package messaging

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/lacomiqueria/chatbot/internal/models"
)

const (
	// DefaultChannelBufferSize is the buffer size for receipt and inbound
	// message channels.
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout bounds non-blocking channel sends; a blocked
	// channel drops the event rather than stalling the provider callback.
	DefaultChannelTimeout = 1 * time.Second
)

// ErrServiceStopped is returned by operations on a stopped service.
var ErrServiceStopped = errors.New("messaging service is stopped")

var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// Service is the message delivery abstraction. Implementations deliver
// outbound replies and surface inbound customer messages and delivery
// receipts as channels.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a
	// recipient identifier, returning the canonical form.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage delivers one outbound message.
	SendMessage(ctx context.Context, to string, body string) error

	// Start begins background processing (event polling, webhooks).
	Start(ctx context.Context) error

	// Stop stops background processing and releases resources.
	Stop() error

	// Receipts returns the channel of delivery status events.
	Receipts() <-chan models.Receipt

	// Inbound returns the channel of incoming customer messages.
	Inbound() <-chan models.InboundMessage
}
