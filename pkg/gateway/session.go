package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/harun/beacon/pkg/location"
)

const (
	// Time allowed to write a message to the client.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the client.
	pongWait = 60 * time.Second

	// Send pings to client with this period. Must be less than pongWait.
	pingPeriod = 15 * time.Second

	// Maximum message size allowed from client.
	maxMessageSize = 4096

	// DefaultQueueSize is the outbound buffer per session
	DefaultQueueSize = 64
)

var (
	// ErrDeliveryFailed is the category of every failed enqueue
	ErrDeliveryFailed = errors.New("delivery failed")

	ErrQueueFull     = fmt.Errorf("%w: queue full", ErrDeliveryFailed)
	ErrSessionClosed = fmt.Errorf("%w: session closed", ErrDeliveryFailed)
)

// Session is one live push connection. All writes to the connection go
// through the session's queue and its single write pump.
type Session struct {
	ID          string
	RemoteAddr  string
	ConnectedAt time.Time

	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	limiter *RateLimiter
	logger  zerolog.Logger

	mu       sync.RWMutex
	identity location.Identity
	final    []byte

	closeOnce sync.Once
	dropped   atomic.Uint64
}

func newSession(conn *websocket.Conn, remoteAddr string, queueSize, perMinute int, logger zerolog.Logger) *Session {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	id, _ := gonanoid.New()

	return &Session{
		ID:          id,
		RemoteAddr:  remoteAddr,
		ConnectedAt: time.Now(),
		conn:        conn,
		send:        make(chan []byte, queueSize),
		done:        make(chan struct{}),
		limiter:     NewRateLimiter(perMinute),
		logger:      logger.With().Str("sessionId", id).Logger(),
	}
}

// Identity returns the bound identity, if the session has authenticated
func (s *Session) Identity() (location.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity, s.identity != ""
}

func (s *Session) setIdentity(id location.Identity) {
	s.mu.Lock()
	s.identity = id
	s.mu.Unlock()
}

// Enqueue queues data for delivery without blocking. A full queue drops
// data and returns ErrQueueFull.
func (s *Session) Enqueue(data []byte) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.send <- data:
		return nil
	case <-s.done:
		return ErrSessionClosed
	default:
		s.dropped.Add(1)
		return ErrQueueFull
	}
}

// Send marshals v and enqueues it
func (s *Session) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return s.Enqueue(data)
}

// Close stops the write pump. Queued messages are discarded.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// CloseWith closes the session after writing v as the last message
func (s *Session) CloseWith(v any) {
	if data, err := json.Marshal(v); err == nil {
		s.mu.Lock()
		s.final = data
		s.mu.Unlock()
	}
	s.Close()
}

// Closed reports whether Close has been called
func (s *Session) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Dropped returns how many messages were discarded because the queue was full
func (s *Session) Dropped() uint64 {
	return s.dropped.Load()
}

// Info returns a description of the session
func (s *Session) Info() SessionInfo {
	id, ok := s.Identity()
	return SessionInfo{
		ID:            s.ID,
		Identity:      id,
		Authenticated: ok,
		ConnectedAt:   s.ConnectedAt,
		RemoteAddr:    s.RemoteAddr,
		Dropped:       s.Dropped(),
	}
}

// writePump drains the queue to the connection and keeps it alive with
// pings. It owns all writes to conn.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case <-s.done:
			s.mu.RLock()
			final := s.final
			s.mu.RUnlock()

			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if final != nil {
				if err := s.conn.WriteMessage(websocket.TextMessage, final); err != nil {
					return
				}
			}
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debug().Err(err).Msg("Write failed")
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
