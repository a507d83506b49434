package snapshot

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedIVCipher_RoundTrip(t *testing.T) {
	c, err := NewFixedIVCipher(DefaultPassphrase)
	require.NoError(t, err)

	for _, plain := range []string{"[10.1,20.2]", "", "exactly16bytes!!"} {
		ct, err := c.Encrypt([]byte(plain))
		require.NoError(t, err)
		assert.Zero(t, len(ct)%16)
		assert.Greater(t, len(ct), len(plain))

		got, err := c.Decrypt(ct)
		require.NoError(t, err)
		assert.Equal(t, plain, string(got))
	}
}

func TestFixedIVCipher_IsDeterministic(t *testing.T) {
	c, err := NewFixedIVCipher(DefaultPassphrase)
	require.NoError(t, err)

	a, err := c.Encrypt([]byte("[1,2]"))
	require.NoError(t, err)
	b, err := c.Encrypt([]byte("[1,2]"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestFixedIVCipher_WrongKey(t *testing.T) {
	c1, err := NewFixedIVCipher("one")
	require.NoError(t, err)
	c2, err := NewFixedIVCipher("two")
	require.NoError(t, err)

	ct, err := c1.Encrypt([]byte("[10.1,20.2]"))
	require.NoError(t, err)

	got, err := c2.Decrypt(ct)
	if err == nil {
		// padding can validate by chance; the payload still must not match
		assert.NotEqual(t, "[10.1,20.2]", string(got))
	}
}

func TestFixedIVCipher_BadLength(t *testing.T) {
	c, err := NewFixedIVCipher(DefaultPassphrase)
	require.NoError(t, err)

	_, err = c.Decrypt([]byte("short"))
	assert.Error(t, err)

	_, err = c.Decrypt(nil)
	assert.Error(t, err)
}

func TestPKCS7(t *testing.T) {
	padded := pkcs7Pad([]byte("abc"), 16)
	assert.Len(t, padded, 16)

	out, err := pkcs7Unpad(padded, 16)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(out))

	bad := append([]byte("abc"), make([]byte, 13)...)
	_, err = pkcs7Unpad(bad, 16)
	assert.ErrorIs(t, err, errBadPadding)
}

// Ciphertexts produced by the deployed service for the default passphrase.
// Any change to key derivation, padding or IV breaks existing snapshots.
func TestFixedIVCipher_KnownAnswers(t *testing.T) {
	c, err := NewFixedIVCipher(DefaultPassphrase)
	require.NoError(t, err)

	tests := []struct {
		plain string
		hex   string
	}{
		{"[10.1,20.1]", "46aeeb1f22503386ac91ec08ca95271f"},
		{"[10,20]", "9d2799aa9c461182aef5cbe762b66a47"},
	}

	for _, tt := range tests {
		t.Run(tt.plain, func(t *testing.T) {
			ct, err := c.Encrypt([]byte(tt.plain))
			require.NoError(t, err)
			assert.Equal(t, tt.hex, hex.EncodeToString(ct))

			raw, err := hex.DecodeString(tt.hex)
			require.NoError(t, err)
			plain, err := c.Decrypt(raw)
			require.NoError(t, err)
			assert.Equal(t, tt.plain, string(plain))
		})
	}
}
