package snapshot

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// DefaultPassphrase is the passphrase existing snapshot files were written with
const DefaultPassphrase = "location-tracker-secret-key"

// Key derivation parameters. They must not change while snapshots written
// with them are still around.
const (
	kdfSalt = "salt"
	kdfN    = 16384
	kdfR    = 8
	kdfP    = 1
	keyLen  = 32
)

var errBadPadding = errors.New("invalid padding")

// Cipher encrypts individual coordinate payloads
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// FixedIVCipher is AES-256-CBC with PKCS#7 padding and an all-zero IV.
//
// Equal plaintexts produce equal ciphertexts under this scheme. It exists
// to read and write the snapshot format already on disk; a scheme with a
// random per-message IV should implement Cipher to replace it.
type FixedIVCipher struct {
	block cipher.Block
	iv    []byte
}

// NewFixedIVCipher derives the key from passphrase with scrypt
func NewFixedIVCipher(passphrase string) (*FixedIVCipher, error) {
	key, err := scrypt.Key([]byte(passphrase), []byte(kdfSalt), kdfN, kdfR, kdfP, keyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive snapshot key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	return &FixedIVCipher{block: block, iv: make([]byte, aes.BlockSize)}, nil
}

// Encrypt pads and encrypts plaintext
func (c *FixedIVCipher) Encrypt(plaintext []byte) ([]byte, error) {
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(out, padded)
	return out, nil
}

// Decrypt decrypts and unpads ciphertext
func (c *FixedIVCipher) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a multiple of the block size", len(ciphertext))
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(out, ciphertext)
	return pkcs7Unpad(out, aes.BlockSize)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, errBadPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, errBadPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errBadPadding
		}
	}
	return data[:len(data)-n], nil
}
