package ws

import (
	"github.com/Shadan-Jamal/uplift-messaging/internal/notify"
	"github.com/Shadan-Jamal/uplift-messaging/internal/store"
)

// Inbound event types.
const (
	TypeRegister = "register"
	TypeSend     = "send"
	TypeEdit     = "edit"
	TypeMarkRead = "mark_read"
)

// Outbound event types.
const (
	TypeRegistered   = "registered"
	TypeAck          = "ack"
	TypeDeliver      = "deliver"
	TypeEdited       = "edited"
	TypeNotification = notify.EventNotification
	TypePresence     = "presence"
	TypeError        = "error"
)

// Envelope is the wire format for inbound client events.
type Envelope struct {
	Type string `json:"type"`
	// To is the counterpart's address value: a counselor email when a
	// student sends, a student id when a counselor sends.
	To      string `json:"to,omitempty"`
	MsgID   string `json:"msg_id,omitempty"`
	Body    string `json:"body,omitempty"`
	NewBody string `json:"new_body,omitempty"`
}

type outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// RegisteredPayload acknowledges a successful registration and seeds the
// client with the counterpart role's current online set.
type RegisteredPayload struct {
	Address string   `json:"address"`
	Role    string   `json:"role"`
	Online  []string `json:"online"`
}

// AckPayload answers a send or edit. Persisted and Delivered are distinct
// on purpose: a message can be durably stored while the recipient is
// offline.
type AckPayload struct {
	Of        string         `json:"of"`
	MsgID     string         `json:"msg_id,omitempty"`
	Persisted bool           `json:"persisted"`
	Delivered int            `json:"delivered"`
	Edited    *bool          `json:"edited,omitempty"`
	Message   *store.Message `json:"message,omitempty"`
}

// ErrorPayload reports a rejected event. The session stays open.
type ErrorPayload struct {
	Of     string `json:"of,omitempty"`
	Reason string `json:"reason"`
}
