package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// KeySize is the length of a room key in bytes.
	KeySize = chacha20poly1305.KeySize
	// NonceSize is the length of the per-message nonce in bytes.
	NonceSize = chacha20poly1305.NonceSize
	// TagSize is the length of the Poly1305 authentication tag appended
	// to every ciphertext.
	TagSize = chacha20poly1305.Overhead
)

// DecryptError represents an authentication failure on decryption:
// tampered ciphertext, truncated input, or the wrong key. No plaintext
// is ever returned alongside it.
type DecryptError struct {
	Message string
}

func (e *DecryptError) Error() string {
	return e.Message
}

// IsDecryptError reports whether err is a DecryptError.
func IsDecryptError(err error) bool {
	var de *DecryptError
	return errors.As(err, &de)
}

// SealedBox is the persisted output of one encryption: the ciphertext
// (tag on its tail) and the nonce that must accompany it.
type SealedBox struct {
	Ciphertext []byte
	Nonce      []byte
}

// NewRoomKey generates a fresh 32-byte ChaCha20-Poly1305 key. Each room
// gets exactly one for its entire lifetime.
func NewRoomKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate room key: %w", err)
	}
	return key, nil
}

// Seal encrypts plaintext under key with a fresh random nonce. Stateless
// and safe for concurrent use.
func Seal(plaintext, key []byte) (SealedBox, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return SealedBox{}, fmt.Errorf("init cipher: %w", err)
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return SealedBox{}, fmt.Errorf("generate nonce: %w", err)
	}

	return SealedBox{
		Ciphertext: aead.Seal(nil, nonce, plaintext, nil),
		Nonce:      nonce,
	}, nil
}

// Open decrypts a sealed box, verifying the tag before returning any
// plaintext. Any mismatch fails closed with a DecryptError.
func Open(box SealedBox, key []byte) ([]byte, error) {
	if len(box.Nonce) != NonceSize {
		return nil, &DecryptError{Message: fmt.Sprintf("bad nonce length: %d bytes, expected %d", len(box.Nonce), NonceSize)}
	}
	if len(box.Ciphertext) < TagSize {
		return nil, &DecryptError{Message: fmt.Sprintf("ciphertext too short: %d bytes, minimum %d", len(box.Ciphertext), TagSize)}
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, &DecryptError{Message: "invalid key length"}
	}

	plaintext, err := aead.Open(nil, box.Nonce, box.Ciphertext, nil)
	if err != nil {
		return nil, &DecryptError{Message: "decryption failed: wrong key or tampered ciphertext"}
	}
	return plaintext, nil
}
