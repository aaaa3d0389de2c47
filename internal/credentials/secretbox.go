package credentials

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

var ErrDecrypt = errors.New("credentials: unable to decrypt payload")

// SecretBox seals credential payloads with NaCl secretbox. Sealed values are
// the random nonce followed by the ciphertext.
type SecretBox struct {
	key [keySize]byte
}

func NewSecretBox(key []byte) (*SecretBox, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("credentials: secret box key must be %d bytes, got %d", keySize, len(key))
	}
	box := &SecretBox{}
	copy(box.key[:], key)
	return box, nil
}

func (b *SecretBox) Seal(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("credentials: generating nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &b.key), nil
}

func (b *SecretBox) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, ErrDecrypt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plaintext, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &b.key)
	if !ok {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}
