package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/lacomiqueria/chatbot/internal/models"
	"github.com/lacomiqueria/chatbot/internal/twiliowhatsapp"
)

// TwilioService implements Service over the Twilio WhatsApp API. Inbound
// messages arrive via the webhook handler rather than a live socket.
type TwilioService struct {
	client   twiliowhatsapp.TwilioWhatsAppSender
	receipts chan models.Receipt
	inbound  chan models.InboundMessage
	done     chan struct{}
	mu       sync.RWMutex
	stopped  bool
}

// NewTwilioService creates a TwilioService around the given sender.
func NewTwilioService(client twiliowhatsapp.TwilioWhatsAppSender) *TwilioService {
	return &TwilioService{
		client:   client,
		receipts: make(chan models.Receipt, DefaultChannelBufferSize),
		inbound:  make(chan models.InboundMessage, DefaultChannelBufferSize),
		done:     make(chan struct{}),
	}
}

// ValidateAndCanonicalizeRecipient strips non-numeric characters and requires
// at least 6 digits.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
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

	if recipient != canonical {
		slog.Debug("TwilioService canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// Start is a no-op; inbound traffic arrives through the webhook handler.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop closes the channels and marks the service stopped.
func (s *TwilioService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.done)

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(s.receipts)
		close(s.inbound)
	}()

	return nil
}

// SendMessage delivers one outbound message via Twilio and emits a sent
// receipt.
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return ErrServiceStopped
	}
	s.mu.RUnlock()

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendMessage validation error", "error", err, "to", to)
		return err
	}

	if err := s.client.SendMessage(ctx, canonicalTo, body); err != nil {
		return err
	}

	s.safeEmitReceipt(models.Receipt{To: canonicalTo, Status: models.MessageStatusSent, Time: time.Now().Unix()})
	return nil
}

// Receipts returns the channel of sent message receipts.
func (s *TwilioService) Receipts() <-chan models.Receipt {
	return s.receipts
}

// Inbound returns the channel of incoming customer messages.
func (s *TwilioService) Inbound() <-chan models.InboundMessage {
	return s.inbound
}

func (s *TwilioService) safeEmitReceipt(receipt models.Receipt) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		return
	}

	select {
	case s.receipts <- receipt:
	case <-time.After(DefaultChannelTimeout):
	}
}

// WebhookHandler handles inbound Twilio webhook requests. The MessageSid is
// carried as the event id so redeliveries of the same message are detected by
// the idempotency gate downstream.
func (s *TwilioService) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Twilio webhook received", "remote", r.RemoteAddr)

	if err := r.ParseForm(); err != nil {
		slog.Error("failed to parse Twilio webhook form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	from := r.FormValue("From")
	body := r.FormValue("Body")
	messageSid := r.FormValue("MessageSid")

	if from == "" || body == "" || messageSid == "" {
		slog.Warn("Twilio webhook missing fields", "from", from, "messageSid", messageSid)
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	s.safeEmitInbound(models.InboundMessage{
		From:     from,
		Body:     body,
		EventID:  messageSid,
		Time:     time.Now().Unix(),
		RemoteIP: remoteHost(r.RemoteAddr),
	})

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// remoteHost strips the port from an http.Request RemoteAddr. Addresses
// without a port (some proxies) pass through unchanged.
func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func (s *TwilioService) safeEmitInbound(msg models.InboundMessage) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		slog.Warn("TwilioService dropping inbound message (service stopped)", "from", msg.From)
		return
	}

	select {
	case s.inbound <- msg:
		slog.Debug("TwilioService emitted inbound message", "from", msg.From, "eventID", msg.EventID)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("TwilioService inbound channel blocked, dropping message", "from", msg.From)
	}
}
