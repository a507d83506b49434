package location

import (
	"slices"
	"time"
)

// HistoryEntry is one accepted position write.
type HistoryEntry struct {
	Position  Position  `json:"location"`
	Timestamp time.Time `json:"timestamp"`
}

// Record is a point-in-time copy of one user's location state. Records
// handed out by the Store never alias its internal state.
type Record struct {
	Owner          Identity
	Position       Position
	LastUpdate     time.Time
	SharingEnabled bool
	Viewers        []Identity // sorted, unique, never contains Owner
	History        []HistoryEntry
}

// HasViewer reports whether id is in the authorized viewer set
func (r Record) HasViewer(id Identity) bool {
	return slices.Contains(r.Viewers, id)
}

// Clone returns a deep copy of the record
func (r Record) Clone() Record {
	out := r
	out.Viewers = slices.Clone(r.Viewers)
	out.History = slices.Clone(r.History)
	return out
}

// state is the mutable form held by the store, guarded by entry.mu.
type state struct {
	owner      Identity
	position   Position
	lastUpdate time.Time
	sharing    bool
	viewers    map[Identity]struct{}
	history    []HistoryEntry
}

func newState(owner Identity, pos Position, now time.Time) *state {
	return &state{
		owner:      owner,
		position:   pos,
		lastUpdate: now,
		viewers:    make(map[Identity]struct{}),
		history:    []HistoryEntry{{Position: pos, Timestamp: now}},
	}
}

// head copies everything except history
func (s *state) head() Record {
	viewers := make([]Identity, 0, len(s.viewers))
	for id := range s.viewers {
		viewers = append(viewers, id)
	}
	slices.Sort(viewers)

	return Record{
		Owner:          s.owner,
		Position:       s.position,
		LastUpdate:     s.lastUpdate,
		SharingEnabled: s.sharing,
		Viewers:        viewers,
	}
}

func (s *state) snapshot() Record {
	rec := s.head()
	rec.History = slices.Clone(s.history)
	return rec
}
