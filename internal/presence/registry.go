package presence

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Shadan-Jamal/uplift-messaging/internal/identity"
)

// Session is one live channel bound to an address. Push must never block;
// implementations enqueue and drop when the peer cannot keep up.
type Session interface {
	Push(event string, payload any)
}

// Event reports a change to a role's online set. Delivery is scoped: an
// event about students only reaches watchers of the student role, which in
// practice are counselor sessions, and vice versa.
type Event struct {
	Role   identity.Role `json:"role"`
	Online []string      `json:"online"`
}

// Mirror projects presence transitions into an external system, best
// effort. The registry itself stays the authority.
type Mirror interface {
	SetOnline(ctx context.Context, addr identity.Address) error
	SetOffline(ctx context.Context, addr identity.Address) error
}

// Registry tracks which addresses currently hold an open channel. All
// state is process-local and rebuilt from zero on restart: everyone is
// offline until they reconnect.
type Registry struct {
	log    *zap.SugaredLogger
	mirror Mirror

	mu        sync.Mutex
	sessions  map[identity.Address]map[Session]struct{}
	watchers  map[identity.Role]map[int]func(Event)
	nextWatch int
}

type Option func(*Registry)

// WithMirror attaches a best-effort external presence projection.
func WithMirror(m Mirror) Option {
	return func(r *Registry) { r.mirror = m }
}

func NewRegistry(log *zap.SugaredLogger, opts ...Option) *Registry {
	r := &Registry{
		log:      log,
		sessions: make(map[identity.Address]map[Session]struct{}),
		watchers: make(map[identity.Role]map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a session for addr. The first session of an address flips
// it Offline→Online and emits a presence event for the address's role.
func (r *Registry) Register(addr identity.Address, s Session) {
	r.mu.Lock()
	set, ok := r.sessions[addr]
	if !ok {
		set = make(map[Session]struct{})
		r.sessions[addr] = set
	}
	set[s] = struct{}{}
	first := len(set) == 1

	var ev Event
	var fns []func(Event)
	if first {
		ev, fns = r.eventLocked(addr.Role())
	}
	r.mu.Unlock()

	if !first {
		return
	}
	r.log.Infow("address online", "address", addr.String())
	for _, fn := range fns {
		fn(ev)
	}
	r.mirrorOnline(addr)
}

// Unregister removes a session for addr. Removing the last session flips
// the address back Offline and emits the updated online set.
func (r *Registry) Unregister(addr identity.Address, s Session) {
	r.mu.Lock()
	set, ok := r.sessions[addr]
	if ok {
		delete(set, s)
		if len(set) == 0 {
			delete(r.sessions, addr)
		}
	}
	last := ok && len(set) == 0

	var ev Event
	var fns []func(Event)
	if last {
		ev, fns = r.eventLocked(addr.Role())
	}
	r.mu.Unlock()

	if !last {
		return
	}
	r.log.Infow("address offline", "address", addr.String())
	for _, fn := range fns {
		fn(ev)
	}
	r.mirrorOffline(addr)
}

// eventLocked snapshots the online set for role and the watcher list
// subscribed to that role, under the registry lock, so every broadcast
// reflects a consistent state.
func (r *Registry) eventLocked(role identity.Role) (Event, []func(Event)) {
	ev := Event{Role: role, Online: r.onlineLocked(role)}
	fns := make([]func(Event), 0, len(r.watchers[role]))
	for _, fn := range r.watchers[role] {
		fns = append(fns, fn)
	}
	return ev, fns
}

func (r *Registry) onlineLocked(role identity.Role) []string {
	out := make([]string, 0, len(r.sessions))
	for addr := range r.sessions {
		if addr.Role() == role {
			out = append(out, addr.Value())
		}
	}
	sort.Strings(out)
	return out
}

// IsOnline reports whether addr has at least one open session.
func (r *Registry) IsOnline(addr identity.Address) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions[addr]) > 0
}

// Online returns a sorted snapshot of the online addresses of one role.
func (r *Registry) Online(role identity.Role) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.onlineLocked(role)
}

// Watch subscribes fn to changes of the subject role's online set. It
// returns a cancel func; callers must cancel when the owning session
// disconnects. fn must not block.
func (r *Registry) Watch(subject identity.Role, fn func(Event)) (cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextWatch
	r.nextWatch++
	if r.watchers[subject] == nil {
		r.watchers[subject] = make(map[int]func(Event))
	}
	r.watchers[subject][id] = fn

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.watchers[subject], id)
	}
}

// Broadcast pushes an event to every session of addr and returns how many
// sessions were pushed to. Zero means the address is offline.
func (r *Registry) Broadcast(addr identity.Address, event string, payload any) int {
	r.mu.Lock()
	targets := make([]Session, 0, len(r.sessions[addr]))
	for s := range r.sessions[addr] {
		targets = append(targets, s)
	}
	r.mu.Unlock()

	for _, s := range targets {
		s.Push(event, payload)
	}
	return len(targets)
}

func (r *Registry) mirrorOnline(addr identity.Address) {
	if r.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := r.mirror.SetOnline(ctx, addr); err != nil {
		r.log.Warnw("presence mirror set online", "address", addr.String(), "err", err)
	}
}

func (r *Registry) mirrorOffline(addr identity.Address) {
	if r.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := r.mirror.SetOffline(ctx, addr); err != nil {
		r.log.Warnw("presence mirror set offline", "address", addr.String(), "err", err)
	}
}
