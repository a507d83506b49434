package location

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// ReadPolicy decides what reads do for an identity that has no record yet.
type ReadPolicy int

const (
	// ReadStrict makes reads on an absent identity fail with ErrNotFound.
	ReadStrict ReadPolicy = iota
	// ReadLazy makes reads on an absent identity create a record at a
	// seeded position first.
	ReadLazy
)

// String returns the config name of the policy
func (p ReadPolicy) String() string {
	switch p {
	case ReadStrict:
		return "strict"
	case ReadLazy:
		return "lazy"
	default:
		return fmt.Sprintf("ReadPolicy(%d)", int(p))
	}
}

// ParseReadPolicy parses "strict" or "lazy"
func ParseReadPolicy(s string) (ReadPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return ReadStrict, nil
	case "lazy":
		return ReadLazy, nil
	default:
		return ReadStrict, fmt.Errorf("invalid read policy %q (must be strict or lazy)", s)
	}
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithReadPolicy sets the policy for reads on absent identities
func WithReadPolicy(p ReadPolicy) StoreOption {
	return func(s *Store) {
		s.policy = p
	}
}

// WithSeeder sets the position used when a record is created by an
// operation that does not carry a position of its own.
func WithSeeder(seed func() Position) StoreOption {
	return func(s *Store) {
		if seed != nil {
			s.seed = seed
		}
	}
}

// WithClock overrides time.Now, mostly for tests
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

type entry struct {
	mu    sync.Mutex
	state *state
}

// Store owns every location record. Mutations on one identity are
// serialized by that record's mutex; the index lock is only held for the
// lookup or insert itself.
type Store struct {
	mu      sync.RWMutex
	entries map[Identity]*entry

	policy ReadPolicy
	seed   func() Position
	now    func() time.Time
}

// NewStore creates an empty store
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		entries: make(map[Identity]*entry),
		policy:  ReadStrict,
		seed:    func() Position { return Position{} },
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the configured read policy
func (s *Store) Policy() ReadPolicy {
	return s.policy
}

func (s *Store) lookup(id Identity) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	return e, ok
}

// ensure returns the entry for id, creating it at pos when absent.
func (s *Store) ensure(id Identity, pos func() Position) *entry {
	if e, ok := s.lookup(id); ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[id]; ok {
		return e
	}
	e := &entry{state: newState(id, pos(), s.now())}
	s.entries[id] = e
	return e
}

// read resolves id for a read path according to the read policy.
func (s *Store) read(id Identity) (*entry, error) {
	if e, ok := s.lookup(id); ok {
		return e, nil
	}
	if s.policy == ReadLazy {
		return s.ensure(id, s.seed), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Initialize creates a record at pos if none exists. An existing record is
// returned unchanged.
func (s *Store) Initialize(id Identity, pos Position) (Record, error) {
	if err := pos.Validate(); err != nil {
		return Record{}, err
	}

	e := s.ensure(id, func() Position { return pos })

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.snapshot(), nil
}

// Update records a new position for id, creating the record first if
// needed. Invalid positions are rejected before anything is touched. The
// returned record omits history; use Get for the full sequence.
func (s *Store) Update(id Identity, pos Position) (Record, error) {
	if err := pos.Validate(); err != nil {
		return Record{}, err
	}

	e := s.ensure(id, func() Position { return pos })

	e.mu.Lock()
	defer e.mu.Unlock()

	now := s.now()
	e.state.position = pos
	e.state.lastUpdate = now
	e.state.history = append(e.state.history, HistoryEntry{Position: pos, Timestamp: now})

	return e.state.head(), nil
}

// SetSharing turns sharing on or off for id
func (s *Store) SetSharing(id Identity, enabled bool) (Record, error) {
	e := s.ensure(id, s.seed)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.sharing = enabled
	return e.state.head(), nil
}

// AddViewer grants viewer access to id's position. Granting an existing
// viewer is a no-op.
func (s *Store) AddViewer(id, viewer Identity) (Record, error) {
	if id == viewer {
		return Record{}, fmt.Errorf("%w: %s", ErrSelfReference, id)
	}

	e := s.ensure(id, s.seed)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.viewers[viewer] = struct{}{}
	return e.state.head(), nil
}

// RemoveViewer revokes viewer's access. Revoking a non-member is a no-op.
func (s *Store) RemoveViewer(id, viewer Identity) (Record, error) {
	e := s.ensure(id, s.seed)

	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.state.viewers, viewer)
	return e.state.head(), nil
}

// Get returns a full copy of id's record, history included
func (s *Store) Get(id Identity) (Record, error) {
	e, err := s.read(id)
	if err != nil {
		return Record{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.snapshot(), nil
}

// Head returns id's record without history
func (s *Store) Head(id Identity) (Record, error) {
	e, err := s.read(id)
	if err != nil {
		return Record{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.head(), nil
}

func (s *Store) all() []*entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out
}

// GetAll returns a full copy of every record, ordered by owner. Each record
// is copied under its own lock; there is no store-wide atomicity.
func (s *Store) GetAll() []Record {
	entries := s.all()
	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		records = append(records, e.state.snapshot())
		e.mu.Unlock()
	}
	sortByOwner(records)
	return records
}

// Heads is GetAll without history
func (s *Store) Heads() []Record {
	entries := s.all()
	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		records = append(records, e.state.head())
		e.mu.Unlock()
	}
	sortByOwner(records)
	return records
}

// Len returns the number of records
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Restore loads records decoded from a snapshot, replacing any existing
// record with the same owner. Self references are dropped and an empty
// history is seeded with the current position.
func (s *Store) Restore(records []Record) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		st := &state{
			owner:      rec.Owner,
			position:   rec.Position,
			lastUpdate: rec.LastUpdate,
			sharing:    rec.SharingEnabled,
			viewers:    make(map[Identity]struct{}, len(rec.Viewers)),
			history:    slices.Clone(rec.History),
		}
		for _, v := range rec.Viewers {
			if v != rec.Owner {
				st.viewers[v] = struct{}{}
			}
		}
		if len(st.history) == 0 {
			st.history = []HistoryEntry{{Position: rec.Position, Timestamp: rec.LastUpdate}}
		}
		s.entries[rec.Owner] = &entry{state: st}
	}
	return len(records)
}

func sortByOwner(records []Record) {
	slices.SortFunc(records, func(a, b Record) int {
		return strings.Compare(string(a.Owner), string(b.Owner))
	})
}
