package ws

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/Shadan-Jamal/uplift-messaging/internal/identity"
	"github.com/Shadan-Jamal/uplift-messaging/internal/metrics"
	"github.com/Shadan-Jamal/uplift-messaging/internal/notify"
	"github.com/Shadan-Jamal/uplift-messaging/internal/presence"
	"github.com/Shadan-Jamal/uplift-messaging/internal/readreceipt"
	"github.com/Shadan-Jamal/uplift-messaging/internal/store"
)

const persistTimeout = 10 * time.Second

// Hub is the message gateway: it binds sessions to addresses in the
// presence registry, routes send/edit/mark_read events, and guarantees a
// message is persisted before any relay goes out.
type Hub struct {
	log        *zap.SugaredLogger
	store      store.ConversationStore
	registry   *presence.Registry
	dispatcher *notify.Dispatcher
	tracker    *readreceipt.Tracker
}

func NewHub(log *zap.SugaredLogger, st store.ConversationStore, registry *presence.Registry, dispatcher *notify.Dispatcher, tracker *readreceipt.Tracker) *Hub {
	return &Hub{
		log:        log,
		store:      st,
		registry:   registry,
		dispatcher: dispatcher,
		tracker:    tracker,
	}
}

// HandleConn runs one websocket session to completion. sessionAddr is the
// address the validated token speaks for.
func (h *Hub) HandleConn(conn *websocket.Conn, sessionAddr identity.Address) {
	c := newClient(h, conn, sessionAddr)
	go c.writePump()
	c.readPump()
}

// handle processes one inbound envelope. Events arrive on the session's
// read loop, so a single client's events are processed in arrival order.
func (h *Hub) handle(c *Client, env Envelope) {
	switch env.Type {
	case TypeRegister:
		h.handleRegister(c)
	case TypeSend:
		h.handleSend(c, env)
	case TypeEdit:
		h.handleEdit(c, env)
	case TypeMarkRead:
		h.handleMarkRead(c, env)
	default:
		c.Push(TypeError, ErrorPayload{Of: env.Type, Reason: "unknown event type"})
	}
}

func (h *Hub) handleRegister(c *Client) {
	if c.registered {
		c.Push(TypeError, ErrorPayload{Of: TypeRegister, Reason: "already registered"})
		return
	}
	if c.sessionAddr.IsZero() {
		c.Push(TypeError, ErrorPayload{Of: TypeRegister, Reason: identity.ErrUnresolvedIdentity.Error()})
		return
	}

	c.addr = c.sessionAddr
	c.registered = true

	// Each side only watches the other side's reachability.
	c.cancelWatch = h.registry.Watch(c.addr.Role().Counterpart(), func(ev presence.Event) {
		c.Push(TypePresence, ev)
	})
	h.registry.Register(c.addr, c)
	metrics.ActiveSessions.Inc()

	c.Push(TypeRegistered, RegisteredPayload{
		Address: c.addr.Value(),
		Role:    string(c.addr.Role()),
		Online:  h.registry.Online(c.addr.Role().Counterpart()),
	})
	h.log.Infow("session registered", "address", c.addr.String())
}

// disconnect runs exactly once per session, from the read pump's defer, so
// a transport failure can never leave a stale online entry behind.
func (h *Hub) disconnect(c *Client) {
	if !c.registered {
		return
	}
	c.registered = false
	if c.cancelWatch != nil {
		c.cancelWatch()
	}
	h.registry.Unregister(c.addr, c)
	metrics.ActiveSessions.Dec()
	h.log.Infow("session disconnected", "address", c.addr.String())
}

func (h *Hub) resolvePeer(c *Client, env Envelope) (identity.Address, store.Pair, bool) {
	if !c.registered {
		c.Push(TypeError, ErrorPayload{Of: env.Type, Reason: "register first"})
		return identity.Address{}, store.Pair{}, false
	}
	peer, err := identity.ForRole(c.addr.Role().Counterpart(), env.To)
	if err != nil {
		c.Push(TypeError, ErrorPayload{Of: env.Type, Reason: "invalid recipient address"})
		return identity.Address{}, store.Pair{}, false
	}
	pair, err := store.PairFor(c.addr, peer)
	if err != nil {
		c.Push(TypeError, ErrorPayload{Of: env.Type, Reason: err.Error()})
		return identity.Address{}, store.Pair{}, false
	}
	return peer, pair, true
}

func (h *Hub) handleSend(c *Client, env Envelope) {
	peer, pair, ok := h.resolvePeer(c, env)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	// Persistence must complete, and succeed, before any relay.
	msg, err := h.store.AppendMessage(ctx, pair, c.addr, env.Body)
	if err != nil {
		metrics.SendFailures.Inc()
		h.log.Errorw("persist message", "conversation", pair.Key(), "err", err)
		c.Push(TypeError, ErrorPayload{Of: TypeSend, Reason: "send failed"})
		return
	}
	metrics.MessagesPersisted.Inc()

	delivered := h.registry.Broadcast(peer, TypeDeliver, msg)
	if delivered > 0 {
		metrics.MessagesDelivered.Inc()
	}

	c.Push(TypeAck, AckPayload{
		Of:        TypeSend,
		MsgID:     msg.ID,
		Persisted: true,
		Delivered: delivered,
		Message:   &msg,
	})

	h.dispatcher.MessagePersisted(ctx, msg, pair, peer)
}

func (h *Hub) handleEdit(c *Client, env Envelope) {
	peer, pair, ok := h.resolvePeer(c, env)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	target := store.EditTarget{MessageID: env.MsgID, OriginalBody: env.Body}
	msg, edited, err := h.store.EditMessage(ctx, pair, c.addr, target, env.NewBody)
	if err != nil {
		h.log.Errorw("persist edit", "conversation", pair.Key(), "err", err)
		c.Push(TypeError, ErrorPayload{Of: TypeEdit, Reason: "edit failed"})
		return
	}

	// A miss is a no-op, not an error: the client keeps or reverts its
	// optimistic local edit.
	if edited {
		h.registry.Broadcast(peer, TypeEdited, msg)
	}
	ack := AckPayload{Of: TypeEdit, Persisted: edited, Edited: &edited}
	if edited {
		ack.MsgID = msg.ID
		ack.Message = &msg
	}
	c.Push(TypeAck, ack)
}

func (h *Hub) handleMarkRead(c *Client, env Envelope) {
	if !c.registered {
		c.Push(TypeError, ErrorPayload{Of: env.Type, Reason: "register first"})
		return
	}
	peer, err := identity.ForRole(c.addr.Role().Counterpart(), env.To)
	if err != nil {
		c.Push(TypeError, ErrorPayload{Of: env.Type, Reason: "invalid recipient address"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := h.tracker.MarkRead(ctx, c.addr, peer); err != nil {
		h.log.Errorw("mark read", "viewer", c.addr.String(), "err", err)
		c.Push(TypeError, ErrorPayload{Of: TypeMarkRead, Reason: "mark read failed"})
		return
	}
	c.Push(TypeAck, AckPayload{Of: TypeMarkRead, Persisted: true})
}
