package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/lacomiqueria/chatbot/internal/models"
	"github.com/lacomiqueria/chatbot/internal/twiliowhatsapp"
)

func TestValidateAndCanonicalizeRecipient(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())

	tests := []struct {
		name      string
		recipient string
		want      string
		wantErr   bool
	}{
		{name: "plain digits", recipient: "5491155551234", want: "5491155551234"},
		{name: "whatsapp prefix", recipient: "whatsapp:+5491155551234", want: "5491155551234"},
		{name: "formatted", recipient: "+54 9 11 5555-1234", want: "5491155551234"},
		{name: "empty", recipient: "", wantErr: true},
		{name: "no digits", recipient: "whatsapp:", wantErr: true},
		{name: "too short", recipient: "12345", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.ValidateAndCanonicalizeRecipient(tt.recipient)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSendMessageCanonicalizesAndEmitsReceipt(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	svc := NewTwilioService(mock)

	if err := svc.SendMessage(context.Background(), "whatsapp:+5491155551234", "hola"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	if len(mock.SentMessages) != 1 {
		t.Fatalf("sent %d messages, want 1", len(mock.SentMessages))
	}
	sent := mock.SentMessages[0]
	if sent.To != "5491155551234" || sent.Body != "hola" {
		t.Errorf("sent = %+v", sent)
	}

	select {
	case receipt := <-svc.Receipts():
		if receipt.To != "5491155551234" || receipt.Status != models.MessageStatusSent {
			t.Errorf("receipt = %+v", receipt)
		}
	default:
		t.Error("expected a sent receipt on the channel")
	}
}

func TestSendMessageAfterStop(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	// Stop is idempotent.
	if err := svc.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}

	err := svc.SendMessage(context.Background(), "5491155551234", "hola")
	if err != ErrServiceStopped {
		t.Errorf("error = %v, want ErrServiceStopped", err)
	}
}

func postWebhook(t *testing.T, svc *TwilioService, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	svc.WebhookHandler(rec, req)
	return rec
}

func TestWebhookHandlerEmitsInbound(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())

	rec := postWebhook(t, svc, url.Values{
		"From":       {"whatsapp:+5491155551234"},
		"Body":       {"dónde está mi pedido 1042?"},
		"MessageSid": {"SM001"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	select {
	case msg := <-svc.Inbound():
		if msg.From != "whatsapp:+5491155551234" {
			t.Errorf("From = %q", msg.From)
		}
		if msg.Body != "dónde está mi pedido 1042?" {
			t.Errorf("Body = %q", msg.Body)
		}
		if msg.EventID != "SM001" {
			t.Errorf("EventID = %q, want the MessageSid", msg.EventID)
		}
		if msg.RemoteIP != "192.0.2.1" {
			t.Errorf("RemoteIP = %q, want the caller host without port", msg.RemoteIP)
		}
	default:
		t.Fatal("expected an inbound message on the channel")
	}
}

func TestRemoteHost(t *testing.T) {
	cases := []struct{ addr, want string }{
		{"192.0.2.1:1234", "192.0.2.1"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"203.0.113.7", "203.0.113.7"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := remoteHost(tc.addr); got != tc.want {
			t.Errorf("remoteHost(%q) = %q, want %q", tc.addr, got, tc.want)
		}
	}
}

func TestWebhookHandlerMissingFields(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())

	tests := []struct {
		name string
		form url.Values
	}{
		{name: "no from", form: url.Values{"Body": {"hola"}, "MessageSid": {"SM1"}}},
		{name: "no body", form: url.Values{"From": {"whatsapp:+549115555"}, "MessageSid": {"SM1"}}},
		{name: "no sid", form: url.Values{"From": {"whatsapp:+549115555"}, "Body": {"hola"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postWebhook(t, svc, tt.form)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}

	select {
	case msg := <-svc.Inbound():
		t.Errorf("unexpected inbound message %+v", msg)
	default:
	}
}

func TestWebhookHandlerAfterStopDropsMessage(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	rec := postWebhook(t, svc, url.Values{
		"From":       {"whatsapp:+5491155551234"},
		"Body":       {"hola"},
		"MessageSid": {"SM002"},
	})
	// The webhook still answers 200; the message is dropped internally.
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
