package crypto

import "context"

// KeyManager abstracts external Key Management Systems that wrap and
// unwrap per-job data encryption keys (DEKs). Implementations must
// never expose plaintext master keys; all cryptographic operations
// happen within the KMS.
//
// Current implementations:
//   - Cosmian KMIP (see keymanager_kmip.go)
//
// A job's per-job secret can therefore be either a raw passphrase
// (development mode, handled entirely by crypto.Encrypt/Decrypt) or an
// envelope-encrypted DEK unwrapped through a KeyManager before being
// passed to crypto.Encrypt/Decrypt (production mode).
type KeyManager interface {
	// Provider returns a short identifier (e.g. "cosmian-kmip") used for
	// diagnostics and metadata.
	Provider() string

	// WrapKey encrypts the provided plaintext DEK and returns an
	// envelope suitable for persisting alongside the job's ChunkRecord
	// metadata.
	WrapKey(ctx context.Context, plaintext []byte, metadata map[string]string) (*KeyEnvelope, error)

	// UnwrapKey decrypts the ciphertext contained in the given envelope
	// and returns the plaintext DEK.
	UnwrapKey(ctx context.Context, envelope *KeyEnvelope, metadata map[string]string) ([]byte, error)

	// ActiveKeyVersion returns the version identifier of the primary
	// wrapping key.
	ActiveKeyVersion(ctx context.Context) (int, error)

	// HealthCheck verifies that the KMS is accessible and operational.
	HealthCheck(ctx context.Context) error

	// Close releases any underlying resources.
	Close(ctx context.Context) error
}

// KeyEnvelope captures the information required to unwrap a DEK.
type KeyEnvelope struct {
	KeyID      string
	KeyVersion int
	Provider   string
	Ciphertext []byte
}

// MetaKeyVersion is the job metadata key recording which wrapping key
// version protected a job's DEK.
const MetaKeyVersion = "x-kip-meta-encryption-key-version"
