package secrets

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Encrypted is an opaque ciphertext column value. The plaintext is only
// reachable through Cipher.Reveal, never through ordinary field access.
type Encrypted string

func (e Encrypted) IsZero() bool { return e == "" }

// Cipher encrypts and decrypts credential fields with a process-wide key.
type Cipher struct {
	aead cipher.AEAD
}

func NewCipher(key []byte) (*Cipher, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("secrets: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

func (c *Cipher) Encrypt(plaintext string) (Encrypted, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("secrets: nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return Encrypted(base64.StdEncoding.EncodeToString(sealed)), nil
}

func (c *Cipher) Reveal(e Encrypted) (string, error) {
	if e.IsZero() {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(string(e))
	if err != nil {
		return "", fmt.Errorf("secrets: decode: %w", err)
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns {
		return "", errors.New("secrets: ciphertext too short")
	}
	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("secrets: open: %w", err)
	}
	return string(plain), nil
}
