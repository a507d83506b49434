package tracking

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/beacon/pkg/location"
)

var errNoSuchUser = fmt.Errorf("no such user")

type fakeNames map[location.Identity]string

func (f fakeNames) DisplayName(id location.Identity) (string, error) {
	name, ok := f[id]
	if !ok {
		return "", errNoSuchUser
	}
	return name, nil
}

type published struct {
	subject location.Identity
	pos     location.Position
}

type recordingPublisher struct {
	mu    sync.Mutex
	calls []published
}

func (r *recordingPublisher) Publish(subject location.Identity, pos location.Position, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, published{subject, pos})
}

func (r *recordingPublisher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func newTestService(t *testing.T, opts ...location.StoreOption) (*Service, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	svc := NewService(Config{
		Store:     location.NewStore(opts...),
		Generator: location.NewSeededGenerator(1, 1),
		Names:     fakeNames{"A": "Alice", "B": "Bob", "C": "Carol"},
		Publisher: pub,
		Logger:    zerolog.Nop(),
	})
	return svc, pub
}

func TestService_SharingScenario(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Initialize("A")
	require.NoError(t, err)
	_, err = svc.Initialize("B")
	require.NoError(t, err)

	_, err = svc.Update("A", &location.Position{Lat: 10.1, Lng: 20.2}, SurfaceHTTP)
	require.NoError(t, err)

	// not allowed and not sharing
	assert.Empty(t, svc.SharedWith("B"))

	_, err = svc.Allow("A", "B")
	require.NoError(t, err)
	assert.Empty(t, svc.SharedWith("B"), "allowed but not sharing")

	_, err = svc.SetSharing("A", true)
	require.NoError(t, err)

	shared := svc.SharedWith("B")
	require.Len(t, shared, 1)
	assert.Equal(t, location.Identity("A"), shared[0].UserID)
	assert.Equal(t, "Alice", shared[0].Name)
	assert.Equal(t, location.Position{Lat: 10.1, Lng: 20.2}, shared[0].Location)

	assert.Empty(t, svc.SharedWith("C"))
	assert.Empty(t, svc.SharedWith("A"))

	_, err = svc.Revoke("A", "B")
	require.NoError(t, err)
	assert.Empty(t, svc.SharedWith("B"))
}

func TestService_UpdatePublishesOnce(t *testing.T) {
	svc, pub := newTestService(t)

	_, err := svc.Update("A", &location.Position{Lat: 1, Lng: 1}, SurfaceWS)
	require.NoError(t, err)
	assert.Equal(t, 1, pub.count())

	_, err = svc.Update("A", &location.Position{Lat: 200, Lng: 20}, SurfaceWS)
	assert.ErrorIs(t, err, location.ErrInvalidPosition)
	assert.Equal(t, 1, pub.count())

	rec, err := svc.Current("A")
	require.NoError(t, err)
	assert.Equal(t, location.Position{Lat: 1, Lng: 1}, rec.Position)
}

func TestService_UpdateWithoutPosition(t *testing.T) {
	svc, pub := newTestService(t)

	_, err := svc.Update("A", &location.Position{Lat: 10, Lng: 20}, SurfaceHTTP)
	require.NoError(t, err)

	rec, err := svc.Update("A", nil, SurfaceHTTP)
	require.NoError(t, err)
	assert.LessOrEqual(t, location.DistanceKm(location.Position{Lat: 10, Lng: 20}, rec.Position), DefaultRadiusKm+0.01)
	assert.Equal(t, 2, pub.count())

	// no record yet: a random position is used
	_, err = svc.Update("B", nil, SurfaceHTTP)
	require.NoError(t, err)
}

func TestService_Generate(t *testing.T) {
	t.Run("strict policy needs a record", func(t *testing.T) {
		svc, pub := newTestService(t)

		_, err := svc.Generate("A")
		assert.ErrorIs(t, err, location.ErrNotFound)

		_, err = svc.Initialize("A")
		require.NoError(t, err)
		cur, err := svc.Current("A")
		require.NoError(t, err)

		pos, err := svc.Generate("A")
		require.NoError(t, err)
		assert.LessOrEqual(t, location.DistanceKm(cur.Position, pos), DefaultRadiusKm+0.01)

		after, err := svc.Current("A")
		require.NoError(t, err)
		assert.Equal(t, cur.Position, after.Position, "generate must not mutate")
		assert.Zero(t, pub.count())
	})

	t.Run("lazy policy creates the record", func(t *testing.T) {
		svc, _ := newTestService(t, location.WithReadPolicy(location.ReadLazy))

		_, err := svc.Generate("A")
		require.NoError(t, err)

		_, err = svc.Current("A")
		assert.NoError(t, err)
	})
}

func TestService_Allow(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Allow("A", "A")
	assert.ErrorIs(t, err, location.ErrSelfReference)

	_, err = svc.Allow("A", "Z")
	assert.ErrorIs(t, err, errNoSuchUser)

	_, err = svc.Allow("A", "C")
	require.NoError(t, err)
	rec, err := svc.Allow("A", "B")
	require.NoError(t, err)

	assert.Equal(t, []Viewer{{ID: "B", Name: "Bob"}, {ID: "C", Name: "Carol"}}, svc.Viewers(rec))
}

func TestService_ViewerNamesResolvedAtReadTime(t *testing.T) {
	names := fakeNames{"A": "Alice", "B": "Bob"}
	svc := NewService(Config{Store: location.NewStore(), Names: names, Logger: zerolog.Nop()})

	rec, err := svc.Allow("A", "B")
	require.NoError(t, err)
	assert.Equal(t, "Bob", svc.Viewers(rec)[0].Name)

	names["B"] = "Robert"
	assert.Equal(t, "Robert", svc.Viewers(rec)[0].Name)

	delete(names, "B")
	assert.Equal(t, "", svc.Viewers(rec)[0].Name)
}

func TestService_InitializeIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)

	first, err := svc.Initialize("A")
	require.NoError(t, err)
	second, err := svc.Initialize("A")
	require.NoError(t, err)

	assert.Equal(t, first.Position, second.Position)
	assert.Nil(t, second.History)

	full, err := svc.History("A")
	require.NoError(t, err)
	assert.Len(t, full.History, 1)
}

func TestService_SharedWithIgnoresReadPolicy(t *testing.T) {
	for _, policy := range []location.ReadPolicy{location.ReadStrict, location.ReadLazy} {
		t.Run(policy.String(), func(t *testing.T) {
			svc, _ := newTestService(t, location.WithReadPolicy(policy))

			_, err := svc.Update("A", &location.Position{Lat: 1, Lng: 2}, SurfaceHTTP)
			require.NoError(t, err)
			_, err = svc.SetSharing("A", true)
			require.NoError(t, err)
			_, err = svc.Allow("A", "B")
			require.NoError(t, err)

			// B has no record of its own
			shared := svc.SharedWith("B")
			require.Len(t, shared, 1)
			assert.Equal(t, location.Identity("A"), shared[0].UserID)

			_, err = svc.Current("B")
			if policy == location.ReadStrict {
				assert.ErrorIs(t, err, location.ErrNotFound)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
