package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shadan-Jamal/uplift-messaging/internal/identity"
)

var (
	student   = identity.Student("anon-7f3a")
	counselor = identity.Counselor("counselor@uplift.org")
)

func testPair(t *testing.T) Pair {
	t.Helper()
	pair, err := NewPair(student, counselor)
	require.NoError(t, err)
	return pair
}

func TestNewPairRejectsSameRole(t *testing.T) {
	t.Parallel()

	_, err := NewPair(identity.Student("a"), identity.Student("b"))
	assert.ErrorIs(t, err, ErrInvalidPair)

	_, err = NewPair(student, identity.Address{})
	assert.ErrorIs(t, err, ErrInvalidPair)
}

func TestNewPairOrderIndependent(t *testing.T) {
	t.Parallel()

	p1, err := NewPair(student, counselor)
	require.NoError(t, err)
	p2, err := NewPair(counselor, student)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
	assert.Equal(t, p1.Key(), p2.Key())
}

func TestAppendThenList(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	pair := testPair(t)

	msg, err := s.AppendMessage(ctx, pair, student, "Hello")
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Read)
	assert.False(t, msg.Edited)

	msgs, err := s.ListMessages(ctx, pair)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, msg, msgs[len(msgs)-1])
}

func TestAppendRejectsNonParticipant(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	_, err := s.AppendMessage(context.Background(), testPair(t), identity.Student("someone-else"), "hi")
	assert.ErrorIs(t, err, ErrSenderNotParticipant)
}

func TestListMessagesEmptyConversation(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	msgs, err := s.ListMessages(context.Background(), testPair(t))
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestConcurrentAppendsLoseNothing(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	pair := testPair(t)

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		sender := student
		if i%2 == 0 {
			sender = counselor
		}
		wg.Add(1)
		go func(sender identity.Address) {
			defer wg.Done()
			_, err := s.AppendMessage(ctx, pair, sender, "msg")
			assert.NoError(t, err)
		}(sender)
	}
	wg.Wait()

	msgs, err := s.ListMessages(ctx, pair)
	require.NoError(t, err)
	assert.Len(t, msgs, n)
}

func TestEditByID(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	pair := testPair(t)

	msg, err := s.AppendMessage(ctx, pair, student, "Hello")
	require.NoError(t, err)

	edited, ok, err := s.EditMessage(ctx, pair, student, EditTarget{MessageID: msg.ID}, "Hello there")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Hello there", edited.Body)
	assert.True(t, edited.Edited)
	assert.False(t, edited.Read)

	msgs, err := s.ListMessages(ctx, pair)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hello there", msgs[0].Body)
	assert.True(t, msgs[0].Edited)
}

func TestEditByContentTargetsMostRecent(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	pair := testPair(t)

	first, err := s.AppendMessage(ctx, pair, student, "same text")
	require.NoError(t, err)
	second, err := s.AppendMessage(ctx, pair, student, "same text")
	require.NoError(t, err)

	edited, ok, err := s.EditMessage(ctx, pair, student, EditTarget{OriginalBody: "same text"}, "changed")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second.ID, edited.ID)

	msgs, err := s.ListMessages(ctx, pair)
	require.NoError(t, err)
	assert.Equal(t, "same text", msgs[0].Body)
	assert.Equal(t, first.ID, msgs[0].ID)
	assert.Equal(t, "changed", msgs[1].Body)
}

func TestEditMissLeavesConversationUntouched(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	pair := testPair(t)

	_, err := s.AppendMessage(ctx, pair, student, "Hello")
	require.NoError(t, err)
	before, err := s.ListMessages(ctx, pair)
	require.NoError(t, err)

	_, ok, err := s.EditMessage(ctx, pair, student, EditTarget{OriginalBody: "no such text"}, "x")
	require.NoError(t, err)
	assert.False(t, ok)

	// The counterpart cannot edit the sender's message either.
	_, ok, err = s.EditMessage(ctx, pair, counselor, EditTarget{OriginalBody: "Hello"}, "x")
	require.NoError(t, err)
	assert.False(t, ok)

	after, err := s.ListMessages(ctx, pair)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestMarkAllReadScopedAndIdempotent(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	pair := testPair(t)

	for i := 0; i < 5; i++ {
		_, err := s.AppendMessage(ctx, pair, student, "from student")
		require.NoError(t, err)
	}
	_, err := s.AppendMessage(ctx, pair, counselor, "from counselor")
	require.NoError(t, err)

	n, err := s.UnreadCount(ctx, pair, counselor)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	require.NoError(t, s.MarkAllRead(ctx, pair, counselor))

	n, err = s.UnreadCount(ctx, pair, counselor)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// The counselor's own message stays unread for the student.
	n, err = s.UnreadCount(ctx, pair, student)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Second call changes nothing further.
	require.NoError(t, s.MarkAllRead(ctx, pair, counselor))
	msgs, err := s.ListMessages(ctx, pair)
	require.NoError(t, err)
	for _, m := range msgs[:5] {
		assert.True(t, m.Read)
	}
	assert.False(t, msgs[5].Read)
}

func TestTouchRosterAppendsOnce(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	t0 := time.Now().UTC()
	first, err := s.TouchRoster(ctx, counselor, student, t0)
	require.NoError(t, err)
	assert.True(t, first)

	t1 := t0.Add(time.Minute)
	first, err = s.TouchRoster(ctx, counselor, student, t1)
	require.NoError(t, err)
	assert.False(t, first)

	entries, err := s.Roster(ctx, counselor)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, student.Value(), entries[0].StudentID)
	assert.Equal(t, t1, entries[0].LastMessageAt)
}

func TestRosterEmptyForUnknownCounselor(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	entries, err := s.Roster(context.Background(), identity.Counselor("nobody@uplift.org"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
