// Package crypto implements the authenticated symmetric encryption
// transform used for every stored chunk, plus the secret store and
// key manager abstractions that supply key material.
package crypto

import (
	"crypto/rand"
	"fmt"

	"github.com/kipbackup/kip/internal/kerrors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/sha3"
)

const (
	saltSize  = 16
	nonceSize = chacha20poly1305.NonceSizeX // 24 bytes
	keySize   = chacha20poly1305.KeySize    // 32 bytes
)

// deriveKey hashes secret down to a 32-byte XChaCha20-Poly1305 key via
// SHA3-256. salt is accepted but not presently mixed in, making it
// cosmetic on disk today; the on-disk layout is preserved for format
// compatibility (see HKDF note in DESIGN.md) while keeping the hook
// here so a future format bump can fold it into an HKDF step without
// moving any bytes.
func deriveKey(secret []byte, _ []byte) [keySize]byte {
	return sha3.Sum256(secret)
}

// Encrypt seals plaintext under the given secret. The returned
// ciphertext layout is: 16-byte random salt ‖ 24-byte nonce ‖
// AEAD-ciphertext-with-tag.
func Encrypt(plaintext, secret []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, kerrors.New(kerrors.KindAuth, "crypto.Encrypt: generate salt", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, kerrors.New(kerrors.KindAuth, "crypto.Encrypt: generate nonce", err)
	}

	key := deriveKey(secret, salt)
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, kerrors.New(kerrors.KindAuth, "crypto.Encrypt: init aead", err)
	}

	out := make([]byte, 0, saltSize+nonceSize+len(plaintext)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plaintext, nil)
	return out, nil
}

// Decrypt opens ciphertext produced by Encrypt. A malformed prefix or
// a failed AEAD tag check is a hard, non-retriable AuthError: the
// caller must treat it as a per-file hard failure, never retry.
func Decrypt(ciphertext, secret []byte) ([]byte, error) {
	if len(ciphertext) < saltSize+nonceSize {
		return nil, kerrors.New(kerrors.KindAuth, "crypto.Decrypt", fmt.Errorf("ciphertext too short: %d bytes", len(ciphertext)))
	}
	salt := ciphertext[:saltSize]
	nonce := ciphertext[saltSize : saltSize+nonceSize]
	body := ciphertext[saltSize+nonceSize:]

	key := deriveKey(secret, salt)
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, kerrors.New(kerrors.KindAuth, "crypto.Decrypt: init aead", err)
	}

	plaintext, err := aead.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, kerrors.New(kerrors.KindAuth, "crypto.Decrypt: tag verification failed", err)
	}
	return plaintext, nil
}
