package readreceipt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Shadan-Jamal/uplift-messaging/internal/identity"
	"github.com/Shadan-Jamal/uplift-messaging/internal/store"
)

var (
	student   = identity.Student("anon-7f3a")
	counselor = identity.Counselor("counselor@uplift.org")
)

func TestMarkReadZeroesUnread(t *testing.T) {
	t.Parallel()

	st := store.NewMemoryStore()
	tracker := NewTracker(zap.NewNop().Sugar(), st)
	ctx := context.Background()

	pair, err := store.NewPair(student, counselor)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := st.AppendMessage(ctx, pair, student, "hello")
		require.NoError(t, err)
	}

	n, err := tracker.Unread(ctx, counselor, student)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	require.NoError(t, tracker.MarkRead(ctx, counselor, student))

	n, err = tracker.Unread(ctx, counselor, student)
	require.NoError(t, err)
	assert.Zero(t, n)

	// Idempotent.
	require.NoError(t, tracker.MarkRead(ctx, counselor, student))
	n, err = tracker.Unread(ctx, counselor, student)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUnreadEmptyConversation(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(zap.NewNop().Sugar(), store.NewMemoryStore())
	n, err := tracker.Unread(context.Background(), counselor, student)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMarkReadRejectsSameRolePair(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(zap.NewNop().Sugar(), store.NewMemoryStore())
	err := tracker.MarkRead(context.Background(), student, identity.Student("anon-other"))
	assert.ErrorIs(t, err, store.ErrInvalidPair)
}
