package gateway

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/beacon/internal/metrics"
	"github.com/harun/beacon/pkg/location"
)

// detachedSession builds a session with no connection or pumps, for tests
// that only inspect its queue.
func detachedSession(queueSize int) *Session {
	return newSession(nil, "test", queueSize, 0, zerolog.Nop())
}

func TestSessionRegistry_BindAndUnbind(t *testing.T) {
	registry := NewSessionRegistry(metrics.NewMetrics())

	s1 := detachedSession(4)
	s2 := detachedSession(4)
	s3 := detachedSession(4)
	registry.Add(s1)
	registry.Add(s2)
	registry.Add(s3)
	assert.Equal(t, 3, registry.Count())
	assert.Equal(t, 0, registry.AuthenticatedCount())

	registry.Bind(s1, "bob")
	registry.Bind(s2, "bob")

	assert.Len(t, registry.SessionsFor("bob"), 2)
	assert.Empty(t, registry.SessionsFor("alice"))
	assert.Equal(t, 2, registry.AuthenticatedCount())

	registry.Unbind(s1)
	sessions := registry.SessionsFor("bob")
	require.Len(t, sessions, 1)
	assert.Equal(t, s2.ID, sessions[0].ID)
	assert.True(t, s1.Closed())
	assert.Equal(t, 2, registry.Count())

	_, ok := registry.Get(s1.ID)
	assert.False(t, ok)
}

func TestSessionRegistry_Rebind(t *testing.T) {
	registry := NewSessionRegistry(nil)
	s := detachedSession(4)
	registry.Add(s)

	registry.Bind(s, "alice")
	registry.Bind(s, "bob")

	assert.Empty(t, registry.SessionsFor("alice"))
	assert.Len(t, registry.SessionsFor("bob"), 1)

	id, ok := s.Identity()
	assert.True(t, ok)
	assert.Equal(t, location.Identity("bob"), id)
}

func TestSessionRegistry_UnbindTwice(t *testing.T) {
	registry := NewSessionRegistry(metrics.NewMetrics())
	s := detachedSession(4)
	registry.Add(s)
	registry.Bind(s, "alice")

	registry.Unbind(s)
	registry.Unbind(s)

	assert.Equal(t, 0, registry.Count())
	assert.Empty(t, registry.SessionsFor("alice"))
}

func TestSession_Enqueue(t *testing.T) {
	t.Run("drops when full", func(t *testing.T) {
		s := detachedSession(2)

		require.NoError(t, s.Enqueue([]byte("1")))
		require.NoError(t, s.Enqueue([]byte("2")))

		err := s.Enqueue([]byte("3"))
		assert.ErrorIs(t, err, ErrQueueFull)
		assert.ErrorIs(t, err, ErrDeliveryFailed)
		assert.Equal(t, uint64(1), s.Dropped())

		assert.Equal(t, "1", string(<-s.send))
		assert.Equal(t, "2", string(<-s.send))
	})

	t.Run("rejects after close", func(t *testing.T) {
		s := detachedSession(2)
		s.Close()
		s.Close()

		assert.ErrorIs(t, s.Enqueue([]byte("x")), ErrSessionClosed)
	})
}
