package directory

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/beacon/pkg/location"
)

func openTemp(t *testing.T) *Directory {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "users.json"), zerolog.Nop())
	require.NoError(t, err)
	return d
}

func TestDirectory_Create(t *testing.T) {
	t.Run("should persist and default the name", func(t *testing.T) {
		d := openTemp(t)

		u, err := d.Create("alice@example.com", "hash", "")
		require.NoError(t, err)
		assert.Equal(t, "alice", u.Name)
		assert.NotEmpty(t, u.ID)

		reopened, err := Open(d.Path(), zerolog.Nop())
		require.NoError(t, err)
		got, err := reopened.ByEmail("alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, "hash", got.PasswordHash)
	})

	t.Run("should reject duplicate email", func(t *testing.T) {
		d := openTemp(t)

		_, err := d.Create("alice@example.com", "hash", "Alice")
		require.NoError(t, err)
		_, err = d.Create("alice@example.com", "hash2", "Alice 2")
		assert.ErrorIs(t, err, ErrUserExists)
		assert.Equal(t, 1, d.Len())
	})
}

func TestDirectory_Lookups(t *testing.T) {
	d := openTemp(t)

	alice, err := d.Create("alice@example.com", "h", "Alice")
	require.NoError(t, err)
	bob, err := d.Create("bob@example.com", "h", "Bob")
	require.NoError(t, err)

	got, err := d.ByID(bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", got.Email)

	_, err = d.ByID("missing")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = d.ByEmail("nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)

	name, err := d.DisplayName(alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", name)

	others := d.Others(alice.ID)
	require.Len(t, others, 1)
	assert.Equal(t, bob.ID, others[0].ID)
	assert.Len(t, d.List(), 2)
}

func TestDirectory_Rename(t *testing.T) {
	d := openTemp(t)

	u, err := d.Create("alice@example.com", "h", "Alice")
	require.NoError(t, err)

	renamed, err := d.Rename(u.ID, "Alicia")
	require.NoError(t, err)
	assert.Equal(t, "Alicia", renamed.Name)

	unchanged, err := d.Rename(u.ID, "  ")
	require.NoError(t, err)
	assert.Equal(t, "Alicia", unchanged.Name)

	_, err = d.Rename("missing", "x")
	assert.ErrorIs(t, err, ErrUserNotFound)

	reopened, err := Open(d.Path(), zerolog.Nop())
	require.NoError(t, err)
	name, err := reopened.DisplayName(u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alicia", name)
}

func TestDirectory_LegacyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	legacy := "\xef\xbb\xbf" + `[
  {"id": 1, "email": "a@example.com", "password": "h1", "name": "A", "createdAt": "2024-05-01T10:00:00.000Z"},
  {"id": 2, "email": "b@example.com", "password": "h2", "name": "B", "createdAt": "2024-05-01T10:05:00.000Z"}
]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o600))

	d, err := Open(path, zerolog.Nop())
	require.NoError(t, err)

	u, err := d.ByID(location.Identity("2"))
	require.NoError(t, err)
	assert.Equal(t, "B", u.Name)
}

func TestDirectory_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	d, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 0, d.Len())
}

func TestWatcher_ReloadsExternalEdits(t *testing.T) {
	d := openTemp(t)
	_, err := d.Create("alice@example.com", "h", "Alice")
	require.NoError(t, err)

	w, err := NewWatcher(d, 20*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	edited := `[{"id":"x1","email":"carol@example.com","password":"h","name":"Carol","createdAt":"2024-01-01T00:00:00Z"}]`
	require.NoError(t, os.WriteFile(d.Path(), []byte(edited), 0o600))

	assert.Eventually(t, func() bool {
		_, err := d.ByEmail("carol@example.com")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
}
