package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Shadan-Jamal/uplift-messaging/internal/identity"
)

// MemoryStore is an in-process ConversationStore for tests and local
// development. A single mutex serializes every mutation, which gives the
// same lost-update guarantees the Mongo upsert provides.
type MemoryStore struct {
	mu            sync.Mutex
	conversations map[string]*Conversation
	rosters       map[string][]RosterEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*Conversation),
		rosters:       make(map[string][]RosterEntry),
	}
}

func (s *MemoryStore) AppendMessage(_ context.Context, pair Pair, sender identity.Address, body string) (Message, error) {
	if !pair.Contains(sender) {
		return Message{}, ErrSenderNotParticipant
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msg := Message{
		ID:         uuid.NewString(),
		SenderRole: string(sender.Role()),
		Sender:     sender.Value(),
		Body:       body,
		SentAt:     time.Now().UTC(),
	}

	conv, ok := s.conversations[pair.Key()]
	if !ok {
		conv = &Conversation{
			StudentID:      pair.Student.Value(),
			CounselorEmail: pair.Counselor.Value(),
			CreatedAt:      msg.SentAt,
		}
		s.conversations[pair.Key()] = conv
	}
	conv.Messages = append(conv.Messages, msg)
	conv.LastActivity = msg.SentAt
	return msg, nil
}

func (s *MemoryStore) EditMessage(_ context.Context, pair Pair, sender identity.Address, target EditTarget, newBody string) (Message, bool, error) {
	if !pair.Contains(sender) {
		return Message{}, false, ErrSenderNotParticipant
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[pair.Key()]
	if !ok {
		return Message{}, false, nil
	}

	idx := -1
	if target.MessageID != "" {
		for i, m := range conv.Messages {
			if m.ID == target.MessageID && m.SentBy(sender) {
				idx = i
				break
			}
		}
	} else {
		for i := len(conv.Messages) - 1; i >= 0; i-- {
			m := conv.Messages[i]
			if m.SentBy(sender) && m.Body == target.OriginalBody {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		return Message{}, false, nil
	}

	conv.Messages[idx].Body = newBody
	conv.Messages[idx].Edited = true
	return conv.Messages[idx], true, nil
}

func (s *MemoryStore) ListMessages(_ context.Context, pair Pair) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[pair.Key()]
	if !ok {
		return []Message{}, nil
	}
	out := make([]Message, len(conv.Messages))
	copy(out, conv.Messages)
	return out, nil
}

func (s *MemoryStore) MarkAllRead(_ context.Context, pair Pair, viewer identity.Address) error {
	if !pair.Contains(viewer) {
		return ErrSenderNotParticipant
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[pair.Key()]
	if !ok {
		return nil
	}
	for i := range conv.Messages {
		if !conv.Messages[i].SentBy(viewer) {
			conv.Messages[i].Read = true
		}
	}
	return nil
}

func (s *MemoryStore) UnreadCount(_ context.Context, pair Pair, viewer identity.Address) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[pair.Key()]
	if !ok {
		return 0, nil
	}
	n := 0
	for _, m := range conv.Messages {
		if !m.Read && !m.SentBy(viewer) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) TouchRoster(_ context.Context, counselor, student identity.Address, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.rosters[counselor.Value()]
	for i := range entries {
		if entries[i].StudentID == student.Value() {
			entries[i].LastMessageAt = at
			return false, nil
		}
	}
	s.rosters[counselor.Value()] = append(entries, RosterEntry{
		StudentID:     student.Value(),
		LastMessageAt: at,
	})
	return true, nil
}

func (s *MemoryStore) Roster(_ context.Context, counselor identity.Address) ([]RosterEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.rosters[counselor.Value()]
	out := make([]RosterEntry, len(entries))
	copy(out, entries)
	return out, nil
}
