// Package runtime hosts the live state of the messaging subsystem: the
// connection registry, the per-connection broker state machine and the
// fan-out scheduler. It orchestrates delivery without containing any
// storage or transport logic.
package runtime

import (
	"sync"

	"collab-hub/contract"
	"collab-hub/domain"
)

// Connection tracks one live socket: its outbound sink, its identity
// once authenticated, and its current channel binding. A connection is
// never bound to more than one channel at a time.
//
// The mutable fields are guarded by the connection's own lock: they are
// written through Registry methods on the read-loop goroutine and read
// by the fan-out flush goroutine, so the getters must be safe from
// either side.
type Connection struct {
	sink contract.MessageSink

	mu            sync.RWMutex
	userID        string
	authenticated bool
	channel       domain.Channel
}

func (c *Connection) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *Connection) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authenticated
}

func (c *Connection) Channel() domain.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// Send forwards a frame to the connection's outbound sink.
func (c *Connection) Send(frame domain.ServerFrame) error {
	return c.sink.Send(frame)
}

// Close tears down the outbound transport. The read loop notices the
// dead socket and runs the normal disconnect path on its own goroutine,
// so registry state is never mutated from anywhere else.
func (c *Connection) Close() {
	c.sink.Close()
}

// Registry is the single source of truth for "who is bound where".
// It owns every live connection and a per-channel index used by the
// fan-out scheduler.
type Registry struct {
	mu        sync.RWMutex
	conns     map[*Connection]struct{}
	byChannel map[string]map[*Connection]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		conns:     make(map[*Connection]struct{}),
		byChannel: make(map[string]map[*Connection]struct{}),
	}
}

// Register creates the registry entry for a freshly opened socket.
// The connection starts unauthenticated and unbound.
func (r *Registry) Register(sink contract.MessageSink) *Connection {
	conn := &Connection{sink: sink}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn] = struct{}{}
	return conn
}

// Unregister removes a connection and releases its channel binding.
// It runs on every close path, including forced closes after protocol
// violations, so no ghost entries persist.
func (r *Registry) Unregister(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeBindingLocked(conn)
	delete(r.conns, conn)
}

// Authenticate records the identity resolved from a handshake token.
func (r *Registry) Authenticate(conn *Connection, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn.mu.Lock()
	defer conn.mu.Unlock()
	conn.userID = userID
	conn.authenticated = true
}

// Bind points the connection at a channel, releasing any previous
// binding first so a rebinding connection can never receive from two
// channels at once. Connections absent from the registry are refused:
// re-indexing one would create a binding that receives fan-out while
// being invisible to cleanup.
func (r *Registry) Bind(conn *Connection, channel domain.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[conn]; !ok {
		return
	}

	r.removeBindingLocked(conn)

	key := channel.Key()
	if _, ok := r.byChannel[key]; !ok {
		r.byChannel[key] = make(map[*Connection]struct{})
	}
	r.byChannel[key][conn] = struct{}{}
	conn.mu.Lock()
	conn.channel = channel
	conn.mu.Unlock()
}

// Unbind releases the connection's channel binding, if any.
func (r *Registry) Unbind(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeBindingLocked(conn)
}

func (r *Registry) removeBindingLocked(conn *Connection) {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.channel.IsZero() {
		return
	}
	key := conn.channel.Key()
	if members, ok := r.byChannel[key]; ok {
		delete(members, conn)

		// If no one is left on the channel, remove the index entry entirely
		if len(members) == 0 {
			delete(r.byChannel, key)
		}
	}
	conn.channel = domain.Channel{}
}

// ForEachBoundTo visits every live, authenticated connection currently
// bound to the channel. The member set is snapshotted under the read
// lock and fn runs outside it, so concurrent registration or
// unregistration cannot skip or double-visit a connection present for
// the whole iteration.
func (r *Registry) ForEachBoundTo(channel domain.Channel, fn func(conn *Connection)) {
	r.mu.RLock()
	members := r.byChannel[channel.Key()]
	snapshot := make([]*Connection, 0, len(members))
	for conn := range members {
		if conn.Authenticated() {
			snapshot = append(snapshot, conn)
		}
	}
	r.mu.RUnlock()

	for _, conn := range snapshot {
		fn(conn)
	}
}

// Len returns the number of live connections, for heartbeat stats.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
