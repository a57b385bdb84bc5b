package models

// MessageStatus tracks delivery progress of an outbound message.
type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
)

// Receipt is one delivery status event for an outbound message.
type Receipt struct {
	To     string        `json:"to"`
	Status MessageStatus `json:"status"`
	Time   int64         `json:"time"`
}

// InboundMessage is one customer message received from a messaging channel,
// before it is resolved into a turn. EventID is the provider's delivery id
// and feeds the idempotency gate; providers that redeliver reuse the same id.
type InboundMessage struct {
	From    string `json:"from"`
	Body    string `json:"body"`
	EventID string `json:"event_id"`
	Time    int64  `json:"time"`
	// RemoteIP is the caller's address as seen by the webhook, used for
	// guest lookup rate limiting. Empty for channels without one.
	RemoteIP string `json:"remote_ip,omitempty"`
}
