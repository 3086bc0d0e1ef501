package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"collab-hub/domain"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	// DefaultFlushDelay is the batching window measured from the first
	// enqueue since the last flush.
	DefaultFlushDelay = 50 * time.Millisecond

	// DefaultDedupWindowSize caps the per-channel set of recently
	// delivered message ids.
	DefaultDedupWindowSize = 500
)

type pendingDelivery struct {
	channel domain.Channel
	message domain.Message
}

// Scheduler batches outbound deliveries over a short time window and
// dedupes redundant delivery per channel.
//
// The timer is single-shot per quiet period: it is armed by the first
// enqueue after a flush and is NOT re-armed by later enqueues, so
// latency stays bounded under sustained load instead of being pushed
// back by every new message.
type Scheduler struct {
	log       *slog.Logger
	registry  *Registry
	delay     time.Duration
	windowCap int

	// onDeadConnection schedules a connection whose send failed for
	// teardown; delivery failures never abort the flush.
	onDeadConnection func(conn *Connection)

	mu      sync.Mutex
	pending []pendingDelivery
	timer   *time.Timer

	// flushMu serializes flushes (timer-fired vs forced on shutdown)
	// and guards the dedup windows, which only flushes touch.
	flushMu sync.Mutex
	windows map[string]*dedupWindow
}

func NewScheduler(log *slog.Logger, registry *Registry, delay time.Duration, windowCap int) *Scheduler {
	if delay <= 0 {
		delay = DefaultFlushDelay
	}
	if windowCap <= 0 {
		windowCap = DefaultDedupWindowSize
	}
	return &Scheduler{
		log:       log,
		registry:  registry,
		delay:     delay,
		windowCap: windowCap,
		windows:   make(map[string]*dedupWindow),
	}
}

// OnDeadConnection registers the cleanup hook invoked for connections
// whose send failed during a flush.
func (s *Scheduler) OnDeadConnection(fn func(conn *Connection)) {
	s.onDeadConnection = fn
}

// Enqueue appends a persisted message to the pending batch and arms
// the flush timer if no flush is already scheduled.
func (s *Scheduler) Enqueue(channel domain.Channel, message domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = append(s.pending, pendingDelivery{channel: channel, message: message})
	if s.timer == nil {
		s.timer = time.AfterFunc(s.delay, s.Flush)
	}
}

// Flush delivers the pending batch. It groups entries by channel while
// preserving enqueue order, skips message ids already in the channel's
// dedup window, and fans each remaining message out to every
// connection currently bound to its channel. A send failure to one
// connection is isolated: the connection is handed to the dead-sink
// hook and delivery to the others continues.
func (s *Scheduler) Flush() {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	// Group by channel, enqueue order preserved within each channel.
	grouped := make(map[string][]domain.Message)
	var order []domain.Channel
	for _, entry := range batch {
		key := entry.channel.Key()
		if !s.window(key).Remember(entry.message.ID) {
			s.log.Debug(fmt.Sprintf("Skipping duplicate message %s for %s", entry.message.ID, key))
			continue
		}
		if _, ok := grouped[key]; !ok {
			order = append(order, entry.channel)
		}
		grouped[key] = append(grouped[key], entry.message)
	}

	for _, channel := range order {
		messages := grouped[channel.Key()]
		s.registry.ForEachBoundTo(channel, func(conn *Connection) {
			for _, message := range messages {
				if err := conn.Send(domain.NewMessageDelivery(message)); err != nil {
					s.log.Warn("Dropping unreachable connection",
						"user", conn.UserID(), "channel", channel.String(), "error", err)
					if s.onDeadConnection != nil {
						s.onDeadConnection(conn)
					}
					break
				}
			}
		})
	}
}

// Run keeps the scheduler alive under the supervisor and forces a
// final flush on shutdown so persisted messages enqueued just before
// the stop signal still go out.
func (s *Scheduler) Run(ctx context.Context) error {
	<-ctx.Done()
	s.Flush()
	return nil
}

// PendingCount reports the batch size, for heartbeat stats.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Scheduler) window(key string) *dedupWindow {
	w, ok := s.windows[key]
	if !ok {
		w = newDedupWindow(s.windowCap)
		s.windows[key] = w
	}
	return w
}

// dedupWindow is a bounded FIFO of recently delivered message ids.
// Eviction is insertion order, not access order: the window is purely
// advisory and FIFO keeps it cheap.
type dedupWindow struct {
	cap   int
	order []uuid.UUID
	seen  map[uuid.UUID]struct{}
}

func newDedupWindow(cap int) *dedupWindow {
	return &dedupWindow{cap: cap, seen: make(map[uuid.UUID]struct{})}
}

// Remember records an id and reports whether it was new. Once the cap
// is exceeded the oldest entries are evicted.
func (w *dedupWindow) Remember(id uuid.UUID) bool {
	if _, ok := w.seen[id]; ok {
		return false
	}
	w.seen[id] = struct{}{}
	w.order = append(w.order, id)

	if len(w.order) > w.cap {
		evicted := w.order[:len(w.order)-w.cap]
		w.order = lo.Drop(w.order, len(evicted))
		for _, old := range evicted {
			delete(w.seen, old)
		}
	}
	return true
}
