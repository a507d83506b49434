package tracking

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/beacon/internal/metrics"
	"github.com/harun/beacon/pkg/location"
)

// DefaultRadiusKm bounds how far a generated position moves from the current one
const DefaultRadiusKm = 10.0

// Surfaces an update can arrive through
const (
	SurfaceHTTP = "http"
	SurfaceWS   = "ws"
)

// Publisher is told about every accepted position write
type Publisher interface {
	Publish(subject location.Identity, pos location.Position, at time.Time)
}

// Names resolves identities to display names
type Names interface {
	DisplayName(id location.Identity) (string, error)
}

// Viewer is an authorized viewer with its current display name
type Viewer struct {
	ID   location.Identity `json:"id"`
	Name string            `json:"name"`
}

// Shared is one position visible to a viewer
type Shared struct {
	UserID     location.Identity `json:"userId"`
	Name       string            `json:"name"`
	Location   location.Position `json:"location"`
	LastUpdate time.Time         `json:"lastUpdate"`
}

// Config configures a Service
type Config struct {
	Store     *location.Store
	Generator *location.Generator
	Names     Names
	Publisher Publisher
	RadiusKm  float64
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
}

// Service is the single place both request surfaces go through to read and
// change location state. Every accepted update is published exactly once.
type Service struct {
	store     *location.Store
	gen       *location.Generator
	names     Names
	publisher Publisher
	radiusKm  float64
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewService creates a tracking service
func NewService(cfg Config) *Service {
	if cfg.Generator == nil {
		cfg.Generator = location.NewGenerator()
	}
	if cfg.RadiusKm <= 0 {
		cfg.RadiusKm = DefaultRadiusKm
	}

	return &Service{
		store:     cfg.Store,
		gen:       cfg.Generator,
		names:     cfg.Names,
		publisher: cfg.Publisher,
		radiusKm:  cfg.RadiusKm,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger.With().Str("component", "tracking").Logger(),
	}
}

// Initialize starts tracking id at a random position. Calling it again
// returns the existing record.
func (s *Service) Initialize(id location.Identity) (location.Record, error) {
	rec, err := s.store.Initialize(id, s.gen.Random())
	if err != nil {
		return location.Record{}, err
	}
	rec.History = nil
	return rec, nil
}

// Generate proposes a mock position near id's current one without storing it
func (s *Service) Generate(id location.Identity) (location.Position, error) {
	rec, err := s.store.Head(id)
	if err != nil {
		return location.Position{}, err
	}
	return s.gen.Nearby(rec.Position, s.radiusKm), nil
}

// Update stores a new position for id. A nil pos means the client has no fix
// and a mock position near the current one is used instead.
func (s *Service) Update(id location.Identity, pos *location.Position, surface string) (location.Record, error) {
	var next location.Position
	if pos != nil {
		next = *pos
	} else {
		mock, err := s.mockPosition(id)
		if err != nil {
			s.metrics.RecordLocationUpdate(surface, err)
			return location.Record{}, err
		}
		next = mock
	}

	rec, err := s.store.Update(id, next)
	s.metrics.RecordLocationUpdate(surface, err)
	if err != nil {
		return location.Record{}, err
	}

	s.logger.Debug().
		Str("user_id", id.String()).
		Str("surface", surface).
		Msg("Location updated")

	if s.publisher != nil {
		s.publisher.Publish(id, rec.Position, rec.LastUpdate)
	}
	return rec, nil
}

func (s *Service) mockPosition(id location.Identity) (location.Position, error) {
	rec, err := s.store.Head(id)
	if errors.Is(err, location.ErrNotFound) {
		return s.gen.Random(), nil
	}
	if err != nil {
		return location.Position{}, err
	}
	return s.gen.Nearby(rec.Position, s.radiusKm), nil
}

// Current returns id's record without history
func (s *Service) Current(id location.Identity) (location.Record, error) {
	return s.store.Head(id)
}

// History returns id's full record
func (s *Service) History(id location.Identity) (location.Record, error) {
	return s.store.Get(id)
}

// SetSharing turns sharing on or off
func (s *Service) SetSharing(id location.Identity, enabled bool) (location.Record, error) {
	rec, err := s.store.SetSharing(id, enabled)
	if err != nil {
		return location.Record{}, err
	}
	s.logger.Info().
		Str("user_id", id.String()).
		Bool("sharing", enabled).
		Msg("Sharing changed")
	return rec, nil
}

// Allow lets viewer see id's position. The viewer must be a known user.
func (s *Service) Allow(id, viewer location.Identity) (location.Record, error) {
	if id == viewer {
		return location.Record{}, fmt.Errorf("%w: %s", location.ErrSelfReference, id)
	}
	if s.names != nil {
		if _, err := s.names.DisplayName(viewer); err != nil {
			return location.Record{}, err
		}
	}
	return s.store.AddViewer(id, viewer)
}

// Revoke removes viewer's access
func (s *Service) Revoke(id, viewer location.Identity) (location.Record, error) {
	return s.store.RemoveViewer(id, viewer)
}

// Viewers resolves the display names of rec's viewers at call time
func (s *Service) Viewers(rec location.Record) []Viewer {
	out := make([]Viewer, 0, len(rec.Viewers))
	for _, id := range rec.Viewers {
		out = append(out, Viewer{ID: id, Name: s.displayName(id)})
	}
	return out
}

// SharedWith lists every position viewer is currently allowed to see
func (s *Service) SharedWith(viewer location.Identity) []Shared {
	out := make([]Shared, 0)
	for _, rec := range s.store.Heads() {
		if !location.CanView(viewer, rec) {
			continue
		}
		out = append(out, Shared{
			UserID:     rec.Owner,
			Name:       s.displayName(rec.Owner),
			Location:   rec.Position,
			LastUpdate: rec.LastUpdate,
		})
	}
	return out
}

func (s *Service) displayName(id location.Identity) string {
	if s.names == nil {
		return ""
	}
	name, err := s.names.DisplayName(id)
	if err != nil {
		s.logger.Debug().Err(err).Str("user_id", id.String()).Msg("No display name")
		return ""
	}
	return name
}
