package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Shadan-Jamal/uplift-messaging/internal/identity"
)

// PresenceMirror projects the in-process presence registry into Redis so
// sibling services (sidebar API, moderation tooling) can read who is
// reachable without holding a channel themselves.
//
// Keys: <prefix>:presence:<role>:<value> -> {"status","last_seen"}.
// Online entries carry a TTL; a crashed process leaves no stale "online"
// keys behind once the TTL lapses.
type PresenceMirror struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type presenceDoc struct {
	Status   string `json:"status"`
	LastSeen int64  `json:"last_seen"`
}

func NewPresenceMirror(client *redis.Client, prefix string, ttl time.Duration) *PresenceMirror {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PresenceMirror{client: client, prefix: prefix, ttl: ttl}
}

func (m *PresenceMirror) key(addr identity.Address) string {
	return fmt.Sprintf("%s:presence:%s", m.prefix, addr.String())
}

func (m *PresenceMirror) SetOnline(ctx context.Context, addr identity.Address) error {
	b, _ := json.Marshal(presenceDoc{Status: "online", LastSeen: time.Now().Unix()})
	return m.client.Set(ctx, m.key(addr), b, m.ttl).Err()
}

func (m *PresenceMirror) SetOffline(ctx context.Context, addr identity.Address) error {
	b, _ := json.Marshal(presenceDoc{Status: "offline", LastSeen: time.Now().Unix()})
	return m.client.Set(ctx, m.key(addr), b, m.ttl).Err()
}

// Status reads an address's mirrored presence; missing keys read as
// offline.
func (m *PresenceMirror) Status(ctx context.Context, addr identity.Address) (string, error) {
	b, err := m.client.Get(ctx, m.key(addr)).Bytes()
	if err == redis.Nil {
		return "offline", nil
	}
	if err != nil {
		return "", err
	}
	var doc presenceDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return "", err
	}
	return doc.Status, nil
}
