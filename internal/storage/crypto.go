package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const AlgoAES256GCM = "aes-256-gcm"

var (
	ErrNoKey          = errors.New("certificate encryption key is not configured")
	ErrUnsupportedAlg = errors.New("unsupported certificate cipher")
	ErrDecrypt        = errors.New("certificate decryption failed")
)

// Envelope is the per-file metadata stored next to an encrypted certificate.
// The file itself holds only the ciphertext; IV and tag are hex encoded.
type Envelope struct {
	Algo string
	IV   string
	Tag  string
}

func newGCM(key []byte, nonceSize int) (cipher.AEAD, error) {
	if len(key) == 0 {
		return nil, ErrNoKey
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("certificate key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if nonceSize <= 0 {
		return cipher.NewGCM(block)
	}
	return cipher.NewGCMWithNonceSize(block, nonceSize)
}

func Seal(key, plaintext []byte) ([]byte, Envelope, error) {
	gcm, err := newGCM(key, 0)
	if err != nil {
		return nil, Envelope{}, err
	}
	iv := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, Envelope{}, err
	}
	sealed := gcm.Seal(nil, iv, plaintext, nil)
	split := len(sealed) - gcm.Overhead()
	return sealed[:split], Envelope{
		Algo: AlgoAES256GCM,
		IV:   hex.EncodeToString(iv),
		Tag:  hex.EncodeToString(sealed[split:]),
	}, nil
}

// Open authenticates and decrypts ciphertext. Nothing is returned unless the
// tag verifies.
func Open(key, ciphertext []byte, env Envelope) ([]byte, error) {
	algo := strings.ToLower(strings.TrimSpace(env.Algo))
	if algo == "" {
		algo = AlgoAES256GCM
	}
	if algo != AlgoAES256GCM {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlg, env.Algo)
	}
	iv, err := hex.DecodeString(env.IV)
	if err != nil || len(iv) == 0 {
		return nil, fmt.Errorf("%w: bad iv", ErrDecrypt)
	}
	tag, err := hex.DecodeString(env.Tag)
	if err != nil || len(tag) == 0 {
		return nil, fmt.Errorf("%w: bad auth tag", ErrDecrypt)
	}
	gcm, err := newGCM(key, len(iv))
	if err != nil {
		return nil, err
	}
	if len(tag) != gcm.Overhead() {
		return nil, fmt.Errorf("%w: bad auth tag length", ErrDecrypt)
	}
	buf := make([]byte, 0, len(ciphertext)+len(tag))
	buf = append(buf, ciphertext...)
	buf = append(buf, tag...)
	plain, err := gcm.Open(nil, iv, buf, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return plain, nil
}
