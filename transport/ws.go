package transport

import (
	"net/http"
	"sync"
	"time"

	"collab-hub/domain"
	"collab-hub/errors"

	"github.com/gorilla/websocket"
)

const (
	defaultSendBuffer = 256

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	maxFrameSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleWebSocket upgrades the connection and runs its read loop. The
// goroutine ends on socket close or on a terminal protocol error; the
// deferred disconnect runs on every path so no ghost registry entries
// persist.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	sink := newWsSink(ws, h.sendBuffer)
	conn := h.broker.Connect(sink)
	go sink.writePump()

	defer func() {
		h.broker.Disconnect(conn)
		sink.Close()
	}()

	ws.SetReadLimit(maxFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("WebSocket read error", "remote", r.RemoteAddr, "error", err)
			}
			return
		}

		if err := h.broker.HandleFrame(r.Context(), conn, raw); err != nil {
			h.log.Debug("Closing connection after protocol violation",
				"remote", r.RemoteAddr, "error", err)
			return
		}
	}
}

// wsSink is one connection's outbound side: a buffered channel drained
// by a dedicated write pump, so one slow client can never stall the
// fan-out flush or the other connections.
type wsSink struct {
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newWsSink(ws *websocket.Conn, buffer int) *wsSink {
	return &wsSink{
		ws:   ws,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

// Send queues a frame without blocking. A full buffer means the peer
// stopped draining; the caller treats that as a dead connection.
func (s *wsSink) Send(frame domain.ServerFrame) error {
	raw, err := domain.EncodeFrame(frame)
	if err != nil {
		return err
	}
	select {
	case <-s.done:
		return errors.ErrSendBufferFull
	case s.send <- raw:
		return nil
	default:
		return errors.ErrSendBufferFull
	}
}

// Close releases the write pump, which drains queued frames, closes
// the websocket and thereby errors the read loop. Idempotent and safe
// from any goroutine.
func (s *wsSink) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *wsSink) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.ws.Close()
	}()

	for {
		select {
		case raw := <-s.send:
			_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.ws.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			// Drain what is already queued (a terminal error frame may
			// still be in flight), then say goodbye.
			for {
				select {
				case raw := <-s.send:
					_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
					_ = s.ws.WriteMessage(websocket.TextMessage, raw)
				default:
					_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
					_ = s.ws.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
			}
		}
	}
}
