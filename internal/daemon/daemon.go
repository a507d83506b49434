package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/harun/beacon/internal/config"
	"github.com/harun/beacon/internal/logger"
	"github.com/harun/beacon/internal/metrics"
	"github.com/harun/beacon/internal/observability"
	"github.com/harun/beacon/internal/tracing"
	"github.com/harun/beacon/pkg/api"
	"github.com/harun/beacon/pkg/auth"
	"github.com/harun/beacon/pkg/directory"
	"github.com/harun/beacon/pkg/gateway"
	"github.com/harun/beacon/pkg/location"
	"github.com/harun/beacon/pkg/snapshot"
	"github.com/harun/beacon/pkg/tracking"
)

// shutdownTimeout bounds how long Stop waits for connections to drain
const shutdownTimeout = 5 * time.Second

// Daemon wires every component together and owns their lifetimes
type Daemon struct {
	config  *config.Config
	logger  *logger.Logger
	metrics *metrics.Metrics

	// State
	store     *location.Store
	users     *directory.Directory
	watcher   *directory.Watcher
	persister *snapshot.Persister
	scheduler *snapshot.Scheduler

	// Services
	authService *auth.Service
	tracking    *tracking.Service
	registry    *gateway.SessionRegistry
	broadcaster *gateway.Broadcaster
	server      *gateway.Server

	// Internal
	eventLoop *EventLoop
	lifecycle *LifecycleManager

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startTime time.Time
	running   bool
	mu        sync.RWMutex
}

// Status describes a daemon
type Status struct {
	Running   bool          `json:"running"`
	StartTime time.Time     `json:"startTime"`
	Uptime    time.Duration `json:"uptime"`
	Addr      string        `json:"addr,omitempty"`
	Sessions  int           `json:"sessions"`
	Records   int           `json:"records"`
	Users     int           `json:"users"`
}

// New builds every component and restores the last snapshot. Nothing is
// listening until Start.
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("invalid config: data_dir is required")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	cfg.ApplyPathDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	d := &Daemon{
		config:  cfg,
		logger:  log,
		metrics: metrics.NewMetrics(),
		ctx:     ctx,
		cancel:  cancel,
	}

	if err := d.initializeState(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize state: %w", err)
	}

	if err := d.initializeServices(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	d.eventLoop = NewEventLoop(d)
	d.lifecycle = NewLifecycleManager(d)

	return d, nil
}

func (d *Daemon) initializeState() error {
	policy, err := location.ParseReadPolicy(d.config.Location.ReadPolicy)
	if err != nil {
		return err
	}

	gen := location.NewGenerator()
	d.store = location.NewStore(
		location.WithReadPolicy(policy),
		location.WithSeeder(gen.Random),
	)

	d.users, err = directory.Open(d.config.UsersFile, d.logger.Component("directory"))
	if err != nil {
		return err
	}

	d.watcher, err = directory.NewWatcher(d.users, 0)
	if err != nil {
		return err
	}

	passphrase := d.config.Snapshot.Passphrase
	if passphrase == "" {
		d.logger.Warn().Msg("snapshot.passphrase not set, using the built-in default")
		passphrase = snapshot.DefaultPassphrase
	}
	cipher, err := snapshot.NewFixedIVCipher(passphrase)
	if err != nil {
		return err
	}

	snapLogger := d.logger.Component("snapshot")
	d.persister = snapshot.NewPersister(
		d.store,
		snapshot.NewCodec(cipher, snapLogger),
		snapshot.NewFileStore(d.config.Snapshot.File),
		d.metrics,
		snapLogger,
	)

	// A broken snapshot must not keep the service down
	if _, err := d.persister.Load(); err != nil {
		d.logger.Error().Err(err).Str("file", d.config.Snapshot.File).Msg("Failed to load snapshot, starting empty")
	}

	d.scheduler, err = snapshot.NewScheduler(d.persister, d.config.Snapshot.Schedule, snapLogger)
	if err != nil {
		return err
	}

	d.registry = gateway.NewSessionRegistry(d.metrics)
	d.broadcaster = gateway.NewBroadcaster(d.store, d.registry, d.metrics, d.logger.GetZerolog())

	d.tracking = tracking.NewService(tracking.Config{
		Store:     d.store,
		Generator: gen,
		Names:     d.users,
		Publisher: d.broadcaster,
		RadiusKm:  d.config.Location.RadiusKm,
		Metrics:   d.metrics,
		Logger:    d.logger.GetZerolog(),
	})
	return nil
}

func (d *Daemon) initializeServices() error {
	cost := d.config.Auth.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	tokens := auth.NewJWTManager([]byte(d.config.Auth.JWTSecret), d.config.Auth.TokenTTL)
	d.authService = auth.NewService(d.users, tokens, cost, d.logger.GetZerolog())

	apiHandler, err := api.NewHandler(api.Config{
		Auth:     d.authService,
		Users:    d.users,
		Tracking: d.tracking,
		Metrics:  d.metrics,
		Logger:   d.logger.GetZerolog(),
	})
	if err != nil {
		return err
	}

	d.server, err = gateway.NewServer(gateway.Config{
		Host:        d.config.HTTP.Host,
		Port:        d.config.HTTP.Port,
		AuthTimeout: d.config.Gateway.AuthTimeout,
		QueueSize:   d.config.Gateway.QueueSize,
		RateLimit:   d.config.Gateway.RateLimit,
		Registry:    d.registry,
		Verifier:    tokens,
		Tracking:    d.tracking,
		API:         apiHandler,
		Metrics:     d.metrics,
		Logger:      d.logger.GetZerolog(),
	})
	return err
}

// Start starts the daemon service
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	log := d.logger.GetZerolog().With().Str("run_id", tracing.NewRequestID()).Logger()
	log.Info().Msg("Starting beacon daemon")

	if err := d.lifecycle.Start(); err != nil {
		d.markStopped()
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	auditPath := filepath.Join(d.config.DataDir, "audit.log")
	if err := observability.InitAuditLogger(auditPath); err != nil {
		log.Warn().Err(err).Str("file", auditPath).Msg("Audit log unavailable")
	}

	if err := d.watcher.Start(); err != nil {
		log.Warn().Err(err).Msg("Users file watcher unavailable, external edits need a restart")
	}

	if err := d.scheduler.Start(); err != nil {
		_ = d.watcher.Stop()
		_ = d.lifecycle.Stop()
		d.markStopped()
		return fmt.Errorf("failed to start snapshot scheduler: %w", err)
	}
	log.Info().Str("schedule", d.config.Snapshot.Schedule).Msg("Snapshot scheduler started")

	if err := d.server.Start(); err != nil {
		_ = d.scheduler.Stop(context.Background())
		_ = d.watcher.Stop()
		_ = d.lifecycle.Stop()
		d.markStopped()
		return fmt.Errorf("failed to start server: %w", err)
	}
	log.Info().Str("addr", d.server.Addr()).Msg("Server started")

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.eventLoop.Run(d.ctx)
	}()

	log.Info().
		Int("records", d.store.Len()).
		Int("users", d.users.Len()).
		Msg("Daemon started successfully")

	return nil
}

func (d *Daemon) markStopped() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}

// Stop closes every connection, writes a final snapshot and removes the
// PID file.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	log := d.logger.GetZerolog()
	log.Info().Msg("Stopping beacon daemon")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := d.server.Stop(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to stop server")
	}

	// Runs the final save
	if err := d.scheduler.Stop(ctx); err != nil {
		log.Error().Err(err).Msg("Final snapshot failed")
	}

	if err := d.watcher.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to stop users file watcher")
	}

	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		log.Warn().Msg("Timeout waiting for goroutines to stop")
	}

	if audit := observability.SetAuditLogger(nil); audit != nil {
		_ = audit.Close()
	}

	if err := d.lifecycle.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to stop lifecycle manager")
	}

	log.Info().Msg("Daemon stopped successfully")
	return nil
}

// Status returns the daemon status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running:  d.running,
		Sessions: d.registry.Count(),
		Records:  d.store.Len(),
		Users:    d.users.Len(),
	}

	if d.running {
		status.StartTime = d.startTime
		status.Uptime = time.Since(d.startTime)
		status.Addr = d.server.Addr()
	}

	return status
}

// Wait blocks until SIGINT or SIGTERM, then stops the daemon
func (d *Daemon) Wait() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	sig := <-sigChan
	d.logger.Info().Str("signal", sig.String()).Msg("Received signal")

	if err := d.Stop(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to stop daemon")
	}
}

// GetConfig returns the daemon configuration
func (d *Daemon) GetConfig() *config.Config {
	return d.config
}

// GetLogger returns the daemon logger
func (d *Daemon) GetLogger() *logger.Logger {
	return d.logger
}

// GetStore returns the location store
func (d *Daemon) GetStore() *location.Store {
	return d.store
}

// GetDirectory returns the user directory
func (d *Daemon) GetDirectory() *directory.Directory {
	return d.users
}

// GetServer returns the HTTP and push server
func (d *Daemon) GetServer() *gateway.Server {
	return d.server
}

// GetAuthService returns the registration and login service
func (d *Daemon) GetAuthService() *auth.Service {
	return d.authService
}
