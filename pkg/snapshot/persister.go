package snapshot

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/beacon/internal/metrics"
	"github.com/harun/beacon/pkg/location"
)

// Source is the store the persister snapshots and restores
type Source interface {
	GetAll() []location.Record
	Restore(records []location.Record) int
}

// Persister ties a store to its snapshot file
type Persister struct {
	source  Source
	codec   *Codec
	file    *FileStore
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewPersister creates a persister. m may be nil.
func NewPersister(source Source, codec *Codec, file *FileStore, m *metrics.Metrics, logger zerolog.Logger) *Persister {
	return &Persister{
		source:  source,
		codec:   codec,
		file:    file,
		metrics: m,
		logger:  logger.With().Str("component", "snapshot").Logger(),
	}
}

// Load restores the store from the snapshot file. A missing file leaves the
// store empty.
func (p *Persister) Load() (int, error) {
	data, err := p.file.Read()
	if err != nil {
		return 0, err
	}
	if data == nil {
		p.logger.Info().Str("path", p.file.Path()).Msg("No snapshot found, starting empty")
		return 0, nil
	}

	records, err := p.codec.Decode(data)
	if err != nil {
		return 0, err
	}

	n := p.source.Restore(records)
	p.logger.Info().Int("records", n).Str("path", p.file.Path()).Msg("Snapshot loaded")
	return n, nil
}

// Save encodes every record and replaces the snapshot file. Records are
// copied one at a time, so concurrent updates are never blocked for the
// duration of the write.
func (p *Persister) Save() error {
	start := time.Now()

	records := p.source.GetAll()
	data, err := p.codec.Encode(records)
	if err == nil {
		err = p.file.Write(data)
	}

	p.metrics.RecordSnapshot(time.Since(start), len(records), err)
	if err != nil {
		return err
	}

	p.logger.Debug().
		Int("records", len(records)).
		Dur("duration", time.Since(start)).
		Msg("Snapshot saved")
	return nil
}
