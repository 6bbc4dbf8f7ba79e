package readreceipt

import (
	"context"

	"go.uber.org/zap"

	"github.com/Shadan-Jamal/uplift-messaging/internal/identity"
	"github.com/Shadan-Jamal/uplift-messaging/internal/store"
)

// Tracker owns read-receipt state transitions. Counts are derived from the
// store, never cached here; callers refresh their own displayed counters
// after MarkRead.
type Tracker struct {
	log   *zap.SugaredLogger
	store store.ConversationStore
}

func NewTracker(log *zap.SugaredLogger, st store.ConversationStore) *Tracker {
	return &Tracker{log: log, store: st}
}

// MarkRead flags every message the counterpart sent in this conversation
// as read, in one bulk update.
func (t *Tracker) MarkRead(ctx context.Context, viewer, peer identity.Address) error {
	pair, err := store.PairFor(viewer, peer)
	if err != nil {
		return err
	}
	if err := t.store.MarkAllRead(ctx, pair, viewer); err != nil {
		return err
	}
	t.log.Debugw("conversation marked read", "viewer", viewer.String(), "peer", peer.String())
	return nil
}

// Unread derives the viewer's unread count for one conversation.
func (t *Tracker) Unread(ctx context.Context, viewer, peer identity.Address) (int, error) {
	pair, err := store.PairFor(viewer, peer)
	if err != nil {
		return 0, err
	}
	return t.store.UnreadCount(ctx, pair, viewer)
}
