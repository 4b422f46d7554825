package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

var (
	ErrKeyLength       = errors.New("encryption key must decode to 32 bytes")
	ErrCiphertextShort = errors.New("ciphertext too short")
)

// Cipher seals collection files at rest with AES-256-GCM. A Cipher without a
// key passes data through unchanged.
type Cipher struct {
	aead cipher.AEAD
}

func NewCipher(key string) (*Cipher, error) {
	if key == "" {
		return &Cipher{}, nil
	}
	decoded, err := DecodeKey(key)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(decoded)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

func (c *Cipher) Enabled() bool {
	return c != nil && c.aead != nil
}

// Seal returns nonce||ciphertext.
func (c *Cipher) Seal(plain []byte) ([]byte, error) {
	if !c.Enabled() {
		return plain, nil
	}
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plain)+c.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, plain, nil), nil
}

func (c *Cipher) Open(sealed []byte) ([]byte, error) {
	if !c.Enabled() {
		return sealed, nil
	}
	size := c.aead.NonceSize()
	if len(sealed) < size {
		return nil, ErrCiphertextShort
	}
	return c.aead.Open(nil, sealed[:size], sealed[size:], nil)
}

// DecodeKey accepts a hex or base64 encoded 32-byte key.
func DecodeKey(raw string) ([]byte, error) {
	var decoded []byte
	if b, err := hex.DecodeString(raw); err == nil && len(raw) == 64 {
		decoded = b
	} else if b, err := base64.StdEncoding.DecodeString(raw); err == nil {
		decoded = b
	} else if b, err := base64.RawStdEncoding.DecodeString(raw); err == nil {
		decoded = b
	} else {
		decoded = []byte(raw)
	}
	if len(decoded) != 32 {
		return nil, fmt.Errorf("%w: got %d", ErrKeyLength, len(decoded))
	}
	return decoded, nil
}
