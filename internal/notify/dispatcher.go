package notify

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/Shadan-Jamal/uplift-messaging/internal/identity"
	"github.com/Shadan-Jamal/uplift-messaging/internal/presence"
	"github.com/Shadan-Jamal/uplift-messaging/internal/store"
)

// Producer is the event-feed sink. Nil-safe at the Dispatcher level so
// local deployments can run without a broker.
type Producer interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// EventNotification is the outbound event name for recipient
// notifications. The gateway's wire vocabulary aliases it.
const EventNotification = "notification"

// Notification is pushed to every session of a recipient when a message
// for them is persisted while they are connected.
type Notification struct {
	Sender          string `json:"sender"`
	SenderRole      string `json:"sender_role"`
	SenderDisplay   string `json:"sender_display"`
	ConversationKey string `json:"conversation_key"`
}

type persistedEvent struct {
	ConversationKey string    `json:"conversation_key"`
	MessageID       string    `json:"message_id"`
	Sender          string    `json:"sender"`
	SenderRole      string    `json:"sender_role"`
	Recipient       string    `json:"recipient"`
	SentAt          time.Time `json:"sent_at"`
}

// Dispatcher reacts to persisted messages: it keeps the counselor roster
// current, pushes notification events to connected recipients, and feeds
// the event stream. Persistence has already succeeded by the time it runs;
// everything here is best effort.
type Dispatcher struct {
	log      *zap.SugaredLogger
	store    store.ConversationStore
	registry *presence.Registry
	producer Producer
}

func NewDispatcher(log *zap.SugaredLogger, st store.ConversationStore, registry *presence.Registry, producer Producer) *Dispatcher {
	return &Dispatcher{log: log, store: st, registry: registry, producer: producer}
}

// MessagePersisted handles one stored message. The roster append runs
// before the notification so a counselor's "my students" list is current
// by the time their UI reacts to the push.
func (d *Dispatcher) MessagePersisted(ctx context.Context, msg store.Message, pair store.Pair, recipient identity.Address) {
	sender := msg.SenderAddress()

	if sender.Role() == identity.RoleStudent && recipient.Role() == identity.RoleCounselor {
		if _, err := d.store.TouchRoster(ctx, recipient, sender, msg.SentAt); err != nil {
			d.log.Errorw("roster update", "counselor", recipient.String(), "err", err)
		}
	}

	if d.registry.IsOnline(recipient) {
		d.registry.Broadcast(recipient, EventNotification, Notification{
			Sender:          msg.Sender,
			SenderRole:      msg.SenderRole,
			SenderDisplay:   sender.Display(),
			ConversationKey: pair.Key(),
		})
	}

	if d.producer != nil {
		go d.publish(msg, pair, recipient)
	}
}

func (d *Dispatcher) publish(msg store.Message, pair store.Pair, recipient identity.Address) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	b, err := json.Marshal(persistedEvent{
		ConversationKey: pair.Key(),
		MessageID:       msg.ID,
		Sender:          msg.Sender,
		SenderRole:      msg.SenderRole,
		Recipient:       recipient.Value(),
		SentAt:          msg.SentAt,
	})
	if err != nil {
		d.log.Errorw("marshal persisted event", "err", err)
		return
	}
	if err := d.producer.Publish(ctx, pair.Key(), b); err != nil {
		d.log.Errorw("publish persisted event", "conversation", pair.Key(), "err", err)
	}
}
