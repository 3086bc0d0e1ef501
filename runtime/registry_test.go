package runtime

import (
	"sync"
	"testing"

	"collab-hub/domain"

	"github.com/stretchr/testify/require"
)

// recordingSink collects frames for assertions; Fail makes every Send
// error to simulate a half-closed socket.
type recordingSink struct {
	mu     sync.Mutex
	frames []domain.ServerFrame
	fail   bool
	closed bool
}

func (s *recordingSink) Send(frame domain.ServerFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errSinkClosed
	}
	s.frames = append(s.frames, frame)
	return nil
}

func (s *recordingSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *recordingSink) Frames() []domain.ServerFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ServerFrame, len(s.frames))
	copy(out, s.frames)
	return out
}

func (s *recordingSink) Fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = true
}

func (s *recordingSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

var errSinkClosed = domainError("sink closed")

type domainError string

func (e domainError) Error() string { return string(e) }

func TestRegistry_Register_Starts_Unbound(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sink := &recordingSink{}

	// When a socket opens
	conn := registry.Register(sink)

	// Then the connection is tracked, unauthenticated and unbound
	req.Equal(1, registry.Len())
	req.False(conn.Authenticated())
	req.True(conn.Channel().IsZero())
}

func TestRegistry_Bind_Indexes_By_Channel(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn := registry.Register(&recordingSink{})
	registry.Authenticate(conn, "u1")
	channel := domain.RoomChannel(5)

	// When the connection binds
	registry.Bind(conn, channel)

	// Then iteration over the channel visits it
	var visited []*Connection
	registry.ForEachBoundTo(channel, func(c *Connection) { visited = append(visited, c) })
	req.Len(visited, 1)
	req.Same(conn, visited[0])
	req.Equal(channel, conn.Channel())
}

func TestRegistry_Rebind_Releases_Old_Channel(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn := registry.Register(&recordingSink{})
	registry.Authenticate(conn, "u1")

	// Given a connection bound to room 1
	registry.Bind(conn, domain.RoomChannel(1))

	// When it rebinds to room 2
	registry.Bind(conn, domain.RoomChannel(2))

	// Then room 1 no longer reaches it — no dual delivery
	count := 0
	registry.ForEachBoundTo(domain.RoomChannel(1), func(*Connection) { count++ })
	req.Zero(count)
	registry.ForEachBoundTo(domain.RoomChannel(2), func(*Connection) { count++ })
	req.Equal(1, count)
}

func TestRegistry_Unregister_Releases_Binding(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn := registry.Register(&recordingSink{})
	registry.Authenticate(conn, "u1")
	registry.Bind(conn, domain.GroupChannel(7))

	// When the socket closes
	registry.Unregister(conn)

	// Then no ghost entries persist
	req.Zero(registry.Len())
	count := 0
	registry.ForEachBoundTo(domain.GroupChannel(7), func(*Connection) { count++ })
	req.Zero(count)
}

func TestRegistry_ForEachBoundTo_Skips_Unauthenticated(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn := registry.Register(&recordingSink{})
	// Bind without authenticating should never happen through the
	// broker, but the registry still refuses to deliver to it.
	registry.Bind(conn, domain.RoomChannel(1))

	count := 0
	registry.ForEachBoundTo(domain.RoomChannel(1), func(*Connection) { count++ })
	req.Zero(count)
}

func TestRegistry_Bind_Refuses_Unregistered_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn := registry.Register(&recordingSink{})
	registry.Authenticate(conn, "u1")
	registry.Unregister(conn)

	// A late join frame must not re-index the removed connection:
	// the binding would receive fan-out while invisible to cleanup.
	registry.Bind(conn, domain.RoomChannel(1))

	req.True(conn.Channel().IsZero())
	count := 0
	registry.ForEachBoundTo(domain.RoomChannel(1), func(*Connection) { count++ })
	req.Zero(count)
}

func TestRegistry_Concurrent_Churn(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	channel := domain.RoomChannel(1)

	stable := registry.Register(&recordingSink{})
	registry.Authenticate(stable, "stable")
	registry.Bind(stable, channel)

	// Churn registrations while iterating; the stable connection must
	// be visited on every pass.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			c := registry.Register(&recordingSink{})
			registry.Authenticate(c, "churn")
			registry.Bind(c, channel)
			registry.Unregister(c)
		}
	}()

	for i := 0; i < 50; i++ {
		seen := false
		registry.ForEachBoundTo(channel, func(c *Connection) {
			if c == stable {
				seen = true
			}
		})
		req.True(seen)
	}
	<-done
}
