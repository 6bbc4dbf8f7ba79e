package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Shadan-Jamal/uplift-messaging/internal/identity"
)

const (
	conversationsCollection = "conversations"
	counselorsCollection    = "counselors"
)

// MongoStore implements ConversationStore on a MongoDB database. Message
// appends use a single conditional upsert so the store itself is the
// ordering authority; no in-process locking is required around it.
type MongoStore struct {
	client        *mongo.Client
	conversations *mongo.Collection
	counselors    *mongo.Collection
}

// NewMongoStore connects to MongoDB and ensures the unique indexes the
// upsert paths rely on.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:        client,
		conversations: db.Collection(conversationsCollection),
		counselors:    db.Collection(counselorsCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.conversations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "student_id", Value: 1},
			{Key: "counselor_email", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("conversations index: %w", err)
	}
	_, err = s.counselors.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("counselors index: %w", err)
	}
	return nil
}

// Disconnect closes the MongoDB connection.
func (s *MongoStore) Disconnect(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func pairFilter(pair Pair) bson.M {
	return bson.M{
		"student_id":      pair.Student.Value(),
		"counselor_email": pair.Counselor.Value(),
	}
}

func (s *MongoStore) AppendMessage(ctx context.Context, pair Pair, sender identity.Address, body string) (Message, error) {
	if !pair.Contains(sender) {
		return Message{}, ErrSenderNotParticipant
	}

	msg := Message{
		ID:         uuid.NewString(),
		SenderRole: string(sender.Role()),
		Sender:     sender.Value(),
		Body:       body,
		SentAt:     time.Now().UTC(),
	}

	update := bson.M{
		"$push":        bson.M{"messages": msg},
		"$set":         bson.M{"last_activity": msg.SentAt},
		"$setOnInsert": bson.M{"created_at": msg.SentAt},
	}
	_, err := s.conversations.UpdateOne(ctx, pairFilter(pair), update, options.Update().SetUpsert(true))
	if err != nil {
		return Message{}, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

func (s *MongoStore) EditMessage(ctx context.Context, pair Pair, sender identity.Address, target EditTarget, newBody string) (Message, bool, error) {
	if !pair.Contains(sender) {
		return Message{}, false, ErrSenderNotParticipant
	}

	msgID := target.MessageID
	if msgID == "" {
		// Older clients address edits by body text. Resolve that to the
		// most recent matching message id, then edit by id so the update
		// stays conditional.
		id, err := s.latestMatching(ctx, pair, sender, target.OriginalBody)
		if err != nil {
			return Message{}, false, err
		}
		if id == "" {
			return Message{}, false, nil
		}
		msgID = id
	}

	filter := pairFilter(pair)
	filter["messages"] = bson.M{"$elemMatch": bson.M{
		"id":          msgID,
		"sender":      sender.Value(),
		"sender_role": string(sender.Role()),
	}}
	update := bson.M{"$set": bson.M{
		"messages.$.body":   newBody,
		"messages.$.edited": true,
	}}

	var conv Conversation
	err := s.conversations.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&conv)
	if err == mongo.ErrNoDocuments {
		return Message{}, false, nil
	}
	if err != nil {
		return Message{}, false, fmt.Errorf("edit message: %w", err)
	}

	for _, m := range conv.Messages {
		if m.ID == msgID {
			return m, true, nil
		}
	}
	return Message{}, false, nil
}

func (s *MongoStore) latestMatching(ctx context.Context, pair Pair, sender identity.Address, body string) (string, error) {
	var conv Conversation
	err := s.conversations.FindOne(ctx, pairFilter(pair)).Decode(&conv)
	if err == mongo.ErrNoDocuments {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find conversation: %w", err)
	}
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		m := conv.Messages[i]
		if m.SentBy(sender) && m.Body == body {
			return m.ID, nil
		}
	}
	return "", nil
}

func (s *MongoStore) ListMessages(ctx context.Context, pair Pair) ([]Message, error) {
	var conv Conversation
	err := s.conversations.FindOne(ctx, pairFilter(pair)).Decode(&conv)
	if err == mongo.ErrNoDocuments {
		return []Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return conv.Messages, nil
}

func (s *MongoStore) MarkAllRead(ctx context.Context, pair Pair, viewer identity.Address) error {
	if !pair.Contains(viewer) {
		return ErrSenderNotParticipant
	}
	update := bson.M{"$set": bson.M{"messages.$[m].read": true}}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{
			"m.read":        false,
			"m.sender_role": bson.M{"$ne": string(viewer.Role())},
		}},
	})
	_, err := s.conversations.UpdateOne(ctx, pairFilter(pair), update, opts)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

func (s *MongoStore) UnreadCount(ctx context.Context, pair Pair, viewer identity.Address) (int, error) {
	msgs, err := s.ListMessages(ctx, pair)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, m := range msgs {
		if !m.Read && !m.SentBy(viewer) {
			n++
		}
	}
	return n, nil
}

func (s *MongoStore) TouchRoster(ctx context.Context, counselor, student identity.Address, at time.Time) (bool, error) {
	// Refresh the timestamp if the student is already on the roster.
	res, err := s.counselors.UpdateOne(ctx,
		bson.M{"email": counselor.Value(), "students.student_id": student.Value()},
		bson.M{"$set": bson.M{"students.$.last_message_at": at}},
	)
	if err != nil {
		return false, fmt.Errorf("touch roster: %w", err)
	}
	if res.MatchedCount > 0 {
		return false, nil
	}

	// First message from this student: append the entry, creating the
	// counselor document if needed. The $ne guard keeps concurrent first
	// messages from inserting the student twice.
	entry := RosterEntry{StudentID: student.Value(), LastMessageAt: at}
	_, err = s.counselors.UpdateOne(ctx,
		bson.M{"email": counselor.Value(), "students.student_id": bson.M{"$ne": student.Value()}},
		bson.M{"$push": bson.M{"students": entry}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Lost the race to another session of the same student.
			return false, nil
		}
		return false, fmt.Errorf("append roster entry: %w", err)
	}
	return true, nil
}

func (s *MongoStore) Roster(ctx context.Context, counselor identity.Address) ([]RosterEntry, error) {
	var doc struct {
		Students []RosterEntry `bson:"students"`
	}
	err := s.counselors.FindOne(ctx, bson.M{"email": counselor.Value()}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return []RosterEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("roster: %w", err)
	}
	return doc.Students, nil
}
