package gateway

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/beacon/internal/metrics"
	"github.com/harun/beacon/pkg/location"
)

// HeadReader reads a subject's current record
type HeadReader interface {
	Head(id location.Identity) (location.Record, error)
}

// Broadcaster pushes location changes to the live sessions of every viewer
// allowed to see them.
type Broadcaster struct {
	store    HeadReader
	sessions *SessionRegistry
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewBroadcaster creates a new broadcaster
func NewBroadcaster(store HeadReader, sessions *SessionRegistry, m *metrics.Metrics, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		store:    store,
		sessions: sessions,
		metrics:  m,
		logger:   logger.With().Str("component", "broadcaster").Logger(),
	}
}

// Publish fans a subject's new position out to its authorized viewers.
// Delivery never blocks: a full or closed session queue loses the event.
func (b *Broadcaster) Publish(subject location.Identity, pos location.Position, at time.Time) {
	rec, err := b.store.Head(subject)
	if err != nil {
		b.logger.Debug().Err(err).Str("subject", subject.String()).Msg("No record to broadcast")
		return
	}
	if !rec.SharingEnabled || len(rec.Viewers) == 0 {
		return
	}

	payload, err := json.Marshal(LocationUpdate{
		Type:      TypeLocationUpdate,
		UserID:    subject,
		Location:  pos,
		Timestamp: at,
	})
	if err != nil {
		b.logger.Error().Err(err).Str("subject", subject.String()).Msg("Failed to marshal location update")
		return
	}

	delivered, failed := 0, 0
	for _, viewer := range rec.Viewers {
		if !location.CanView(viewer, rec) {
			continue
		}

		for _, sess := range b.sessions.SessionsFor(viewer) {
			if err := sess.Enqueue(payload); err != nil {
				failed++
				b.metrics.RecordDelivery(deliveryResult(err))
				b.logger.Debug().
					Err(err).
					Str("subject", subject.String()).
					Str("viewer", viewer.String()).
					Str("sessionId", sess.ID).
					Msg("Failed to deliver location update")
				continue
			}
			delivered++
			b.metrics.RecordDelivery("delivered")
		}
	}

	b.logger.Debug().
		Str("subject", subject.String()).
		Int("delivered", delivered).
		Int("failed", failed).
		Msg("Location broadcast complete")
}

func deliveryResult(err error) string {
	switch {
	case errors.Is(err, ErrQueueFull):
		return "dropped"
	case errors.Is(err, ErrSessionClosed):
		return "closed"
	default:
		return "failed"
	}
}
