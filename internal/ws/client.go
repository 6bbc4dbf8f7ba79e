package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/Shadan-Jamal/uplift-messaging/internal/identity"
	"github.com/Shadan-Jamal/uplift-messaging/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// Client is one websocket session. The session address comes from the
// validated token at upgrade time; addr is bound only after the client's
// register event is authorized against it.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	sessionAddr identity.Address
	addr        identity.Address
	registered  bool

	send        chan []byte
	sendMu      sync.Mutex
	sendClosed  bool
	cancelWatch func()
}

func newClient(hub *Hub, conn *websocket.Conn, sessionAddr identity.Address) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		sessionAddr: sessionAddr,
		send:        make(chan []byte, sendBuffer),
	}
}

// Push enqueues an outbound event without blocking. A slow consumer loses
// events rather than stalling the hub; durable state lives in the store.
// A push racing the session's disconnect is a silent drop: a registry
// broadcast may snapshot this session just before it unregisters, so Push
// must stay safe after closeSend.
func (c *Client) Push(event string, payload any) {
	b, err := json.Marshal(outbound{Type: event, Payload: payload})
	if err != nil {
		c.hub.log.Errorw("marshal outbound event", "event", event, "err", err)
		return
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return
	}
	select {
	case c.send <- b:
	default:
		metrics.DroppedPushes.Inc()
		c.hub.log.Warnw("send buffer full, dropping event",
			"event", event, "address", c.addr.String())
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return
	}
	c.sendClosed = true
	close(c.send)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.disconnect(c)
		c.closeSend()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.Push(TypeError, ErrorPayload{Reason: "malformed envelope"})
			continue
		}
		c.hub.handle(c, env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(time.Second))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}
}
