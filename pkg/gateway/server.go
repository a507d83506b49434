package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/harun/beacon/internal/metrics"
	"github.com/harun/beacon/pkg/auth"
	"github.com/harun/beacon/pkg/location"
	"github.com/harun/beacon/pkg/tracking"
)

// DefaultAuthTimeout bounds how long a new connection may stay unauthenticated
const DefaultAuthTimeout = 10 * time.Second

// Server serves the push channel and mounts the HTTP API next to it
type Server struct {
	host        string
	port        int
	authTimeout time.Duration
	queueSize   int
	rateLimit   int

	server   *http.Server
	listener net.Listener
	upgrader websocket.Upgrader
	parser   *MessageParser

	registry *SessionRegistry
	verifier auth.TokenVerifier
	tracking *tracking.Service
	api      http.Handler
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	isShuttingDown bool
	shutdownMu     sync.RWMutex
	sessionsWG     sync.WaitGroup
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	AuthTimeout time.Duration
	QueueSize   int
	RateLimit   int
	Registry    *SessionRegistry
	Verifier    auth.TokenVerifier
	Tracking    *tracking.Service
	API         http.Handler
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger
}

// NewServer creates a new Server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Port < 0 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Verifier == nil {
		return nil, fmt.Errorf("token verifier is required")
	}
	if cfg.Tracking == nil {
		return nil, fmt.Errorf("tracking service is required")
	}
	if cfg.Registry == nil {
		cfg.Registry = NewSessionRegistry(cfg.Metrics)
	}
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = DefaultAuthTimeout
	}

	parser, err := NewMessageParser()
	if err != nil {
		return nil, err
	}

	return &Server{
		host:        cfg.Host,
		port:        cfg.Port,
		authTimeout: cfg.AuthTimeout,
		queueSize:   cfg.QueueSize,
		rateLimit:   cfg.RateLimit,
		parser:      parser,
		registry:    cfg.Registry,
		verifier:    cfg.Verifier,
		tracking:    cfg.Tracking,
		api:         cfg.API,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger.With().Str("component", "gateway").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}, nil
}

// Registry returns the session registry
func (s *Server) Registry() *SessionRegistry {
	return s.registry
}

// Handler returns the root handler: /ws, /healthz, /metrics and the API
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"status":"ok","sessions":%d}`, s.registry.Count())
	})
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	if s.api != nil {
		mux.Handle("/api/", s.api)
	}
	return mux
}

// Start listens and serves in the background
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting server")

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Server error")
		}
	}()

	return nil
}

// Addr returns the listening address once started
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop closes every session and shuts the HTTP server down
func (s *Server) Stop(ctx context.Context) error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Int("sessions", s.registry.Count()).Msg("Shutting down server")

	for _, sess := range s.registry.All() {
		s.registry.Unbind(sess)
	}

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}

	done := make(chan struct{})
	go func() {
		s.sessionsWG.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn().Msg("Shutdown timeout reached, sessions still draining")
	}

	s.logger.Info().Msg("Server stopped")
	return nil
}

// handleWebSocket upgrades a connection and starts its session
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.sessionsWG.Add(1)
	s.shutdownMu.RUnlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.sessionsWG.Done()
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	sess := newSession(conn, r.RemoteAddr, s.queueSize, s.rateLimit, s.logger)
	s.registry.Add(sess)

	sess.logger.Info().Str("ip", r.RemoteAddr).Msg("Session connected")

	go sess.writePump()
	go s.readPump(sess)
}

// readPump reads client messages until the connection fails. Messages are
// handled in order on this goroutine.
func (s *Server) readPump(sess *Session) {
	defer func() {
		s.registry.Unbind(sess)
		s.sessionsWG.Done()
		sess.logger.Info().Msg("Session disconnected")
	}()

	sess.conn.SetReadLimit(maxMessageSize)
	sess.conn.SetReadDeadline(time.Now().Add(s.authTimeout))

	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			var netErr net.Error
			if _, authed := sess.Identity(); !authed && errors.As(err, &netErr) && netErr.Timeout() {
				s.metrics.RecordAuthFailure("ws")
				sess.logger.Warn().Msg("Authentication timeout")
				sess.CloseWith(errorMessage("Authentication timeout"))
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				sess.logger.Debug().Err(err).Msg("WebSocket error")
			}
			return
		}

		if !s.handleMessage(sess, data) {
			return
		}
	}
}

// handleMessage dispatches one inbound frame. It returns false when the
// session must end.
func (s *Server) handleMessage(sess *Session, data []byte) bool {
	msg, err := s.parser.Parse(data)
	if err != nil {
		sess.logger.Debug().Err(err).Msg("Rejected message")
		s.reply(sess, errorMessage(err.Error()))
		return true
	}

	switch m := msg.(type) {
	case AuthMessage:
		if !s.authenticate(sess, m) {
			return false
		}
		sess.conn.SetReadDeadline(time.Now().Add(pongWait))
		sess.conn.SetPongHandler(func(string) error {
			sess.conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		return true

	case UpdateLocationMessage:
		id, ok := s.requireAuth(sess)
		if !ok {
			return true
		}
		if !sess.limiter.Allow() {
			s.reply(sess, errorMessage("rate limit exceeded"))
			return true
		}
		sess.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.updateLocation(sess, id, m)
		return true

	case GetSharedMessage:
		id, ok := s.requireAuth(sess)
		if !ok {
			return true
		}
		sess.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.reply(sess, SharedLocations{Type: TypeSharedLocations, Locations: s.tracking.SharedWith(id)})
		return true
	}

	s.reply(sess, errorMessage(ErrUnknownMessage.Error()))
	return true
}

func (s *Server) requireAuth(sess *Session) (location.Identity, bool) {
	id, ok := sess.Identity()
	if !ok {
		s.reply(sess, errorMessage("Authentication required"))
	}
	return id, ok
}

func (s *Server) updateLocation(sess *Session, id location.Identity, m UpdateLocationMessage) {
	rec, err := s.tracking.Update(id, &m.Location, tracking.SurfaceWS)
	if err != nil {
		sess.logger.Debug().Err(err).Msg("Location update rejected")
		s.reply(sess, errorMessage(err.Error()))
		return
	}

	s.reply(sess, LocationSaved{
		Type:     TypeLocationSaved,
		Location: rec.Position,
		Message:  "Updated",
	})
}

func (s *Server) reply(sess *Session, v any) {
	if err := sess.Send(v); err != nil {
		sess.logger.Debug().Err(err).Msg("Failed to send reply")
	}
}

// Sessions returns information about all live sessions
func (s *Server) Sessions() []SessionInfo {
	return s.registry.Infos()
}
