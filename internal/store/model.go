package store

import (
	"errors"
	"time"

	"github.com/Shadan-Jamal/uplift-messaging/internal/identity"
)

var (
	ErrInvalidPair          = errors.New("conversation pair must hold one student and one counselor")
	ErrSenderNotParticipant = errors.New("sender is not a participant of the conversation")
)

// Message is one entry in a conversation's ordered log. IDs are assigned
// at append time and are the stable target for edits.
type Message struct {
	ID         string    `bson:"id" json:"id"`
	SenderRole string    `bson:"sender_role" json:"sender_role"`
	Sender     string    `bson:"sender" json:"sender"`
	Body       string    `bson:"body" json:"body"`
	SentAt     time.Time `bson:"sent_at" json:"sent_at"`
	Read       bool      `bson:"read" json:"read"`
	Edited     bool      `bson:"edited" json:"edited"`
}

// SenderAddress reconstructs the typed sender address.
func (m Message) SenderAddress() identity.Address {
	addr, _ := identity.ForRole(identity.Role(m.SenderRole), m.Sender)
	return addr
}

// SentBy reports whether a sent the message.
func (m Message) SentBy(a identity.Address) bool {
	return m.SenderRole == string(a.Role()) && m.Sender == a.Value()
}

// Pair identifies a conversation: exactly one student and one counselor,
// in fixed order regardless of who initiated.
type Pair struct {
	Student   identity.Address
	Counselor identity.Address
}

// NewPair orders two addresses into a Pair. The addresses must be one of
// each role.
func NewPair(a, b identity.Address) (Pair, error) {
	if a.Role() == b.Role() || a.IsZero() || b.IsZero() {
		return Pair{}, ErrInvalidPair
	}
	if a.Role() == identity.RoleStudent {
		return Pair{Student: a, Counselor: b}, nil
	}
	return Pair{Student: b, Counselor: a}, nil
}

// PairFor builds the pair for a viewer and the counterpart they are
// talking to.
func PairFor(viewer, peer identity.Address) (Pair, error) {
	return NewPair(viewer, peer)
}

// Contains reports whether a is one of the pair's two participants.
func (p Pair) Contains(a identity.Address) bool {
	return a == p.Student || a == p.Counselor
}

// Key is the stable conversation key used in push events and the event
// feed.
func (p Pair) Key() string {
	return p.Student.Value() + "|" + p.Counselor.Value()
}

// Conversation is the durable document: the per-pair ordered message log.
// At most one exists per pair; creation is implicit on first send.
type Conversation struct {
	StudentID      string    `bson:"student_id" json:"student_id"`
	CounselorEmail string    `bson:"counselor_email" json:"counselor_email"`
	Messages       []Message `bson:"messages" json:"messages"`
	LastActivity   time.Time `bson:"last_activity" json:"last_activity"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}

// RosterEntry is one row of a counselor's "who has messaged me" list.
type RosterEntry struct {
	StudentID     string    `bson:"student_id" json:"student_id"`
	LastMessageAt time.Time `bson:"last_message_at" json:"last_message_at"`
}

// EditTarget locates the message an edit applies to. MessageID is
// preferred; when empty, the most recent message from the sender whose
// body equals OriginalBody is targeted instead (compatibility with older
// clients that never learned message ids).
type EditTarget struct {
	MessageID    string
	OriginalBody string
}
