package store

import (
	"context"
	"time"

	"github.com/Shadan-Jamal/uplift-messaging/internal/identity"
)

// ConversationStore is the single source of truth for conversations and
// the counselor roster. The Mongo implementation is the production one;
// the memory implementation backs tests and local development.
type ConversationStore interface {
	// AppendMessage finds-or-creates the conversation for the pair and
	// appends a new message atomically. Concurrent appends to the same
	// pair must never lose a message.
	AppendMessage(ctx context.Context, pair Pair, sender identity.Address, body string) (Message, error)

	// EditMessage replaces the body of the targeted message and flags it
	// edited. A miss is not an error: ok=false with the conversation left
	// untouched, so a stale client can keep or revert its optimistic edit.
	EditMessage(ctx context.Context, pair Pair, sender identity.Address, target EditTarget, newBody string) (Message, bool, error)

	// ListMessages returns the conversation's log in insertion order, or
	// an empty slice when no conversation exists yet.
	ListMessages(ctx context.Context, pair Pair) ([]Message, error)

	// MarkAllRead flags every unread message not sent by the viewer as
	// read, in one atomic update. Idempotent.
	MarkAllRead(ctx context.Context, pair Pair, viewer identity.Address) error

	// UnreadCount derives the viewer's unread count: messages with
	// read=false sent by the counterpart.
	UnreadCount(ctx context.Context, pair Pair, viewer identity.Address) (int, error)

	// TouchRoster records that student has messaged counselor at the
	// given time. The entry is appended at most once per student; the
	// timestamp is refreshed on every call. Returns true when this was
	// the student's first message to that counselor.
	TouchRoster(ctx context.Context, counselor, student identity.Address, at time.Time) (bool, error)

	// Roster lists the counselor's {student, last message} entries.
	Roster(ctx context.Context, counselor identity.Address) ([]RosterEntry, error)
}
