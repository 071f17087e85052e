package crypto

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/ovh/kmip-go"
	"github.com/ovh/kmip-go/payloads"
)

// KMIPKeyReference names one wrapping key version known to the KMS.
type KMIPKeyReference struct {
	ID      string
	Version int
}

// CosmianKMIPOptions configures a CosmianKMIPManager.
type CosmianKMIPOptions struct {
	Endpoint  string
	Keys      []KMIPKeyReference
	TLSConfig *tls.Config
	Timeout   time.Duration
	// Provider is the diagnostic identifier reported by Provider().
	Provider string
	// DualReadWindow is kept with the options; UnwrapKey does not
	// consult it and applies no version window.
	DualReadWindow int
}

// CosmianKMIPManager implements KeyManager against a Cosmian KMIP server
// via github.com/ovh/kmip-go.
type CosmianKMIPManager struct {
	opts   CosmianKMIPOptions
	client *kmip.Client

	mu      sync.RWMutex
	byID    map[string]KMIPKeyReference
	active  KMIPKeyReference
}

// NewCosmianKMIPManager dials the KMIP server after checking that at
// least one key reference is configured; the first becomes active.
func NewCosmianKMIPManager(opts CosmianKMIPOptions) (*CosmianKMIPManager, error) {
	if len(opts.Keys) == 0 {
		return nil, fmt.Errorf("cosmian kmip: at least one key reference is required")
	}
	if opts.Provider == "" {
		opts.Provider = "cosmian-kmip"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}

	client, err := kmip.Dial(opts.Endpoint,
		kmip.WithTLSConfig(opts.TLSConfig),
		kmip.WithTimeout(opts.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("cosmian kmip: dial %s: %w", opts.Endpoint, err)
	}

	byID := make(map[string]KMIPKeyReference, len(opts.Keys))
	for _, k := range opts.Keys {
		byID[k.ID] = k
	}

	return &CosmianKMIPManager{
		opts:   opts,
		client: client,
		byID:   byID,
		active: opts.Keys[0],
	}, nil
}

// Provider returns "cosmian-kmip" (or the configured override).
func (m *CosmianKMIPManager) Provider() string {
	return m.opts.Provider
}

// WrapKey encrypts plaintext under the active wrapping key.
func (m *CosmianKMIPManager) WrapKey(ctx context.Context, plaintext []byte, metadata map[string]string) (*KeyEnvelope, error) {
	m.mu.RLock()
	active := m.active
	m.mu.RUnlock()

	req := kmip.NewRequest(kmip.OperationEncrypt, &payloads.EncryptRequestPayload{
		UniqueIdentifier: active.ID,
		Data:             plaintext,
	})
	resp, err := m.client.Send(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("cosmian kmip: encrypt: %w", err)
	}
	payload, ok := resp.(*payloads.EncryptResponsePayload)
	if !ok {
		return nil, fmt.Errorf("cosmian kmip: encrypt: unexpected response type %T", resp)
	}

	return &KeyEnvelope{
		KeyID:      active.ID,
		KeyVersion: active.Version,
		Provider:   m.opts.Provider,
		Ciphertext: payload.Data,
	}, nil
}

// UnwrapKey decrypts an envelope produced by WrapKey. If the envelope
// carries no KeyID, it looks for a known key (configured or added by
// RotateActiveKey) whose version equals the envelope's KeyVersion, and
// falls back to the first configured key when none matches.
func (m *CosmianKMIPManager) UnwrapKey(ctx context.Context, envelope *KeyEnvelope, _ map[string]string) ([]byte, error) {
	keyID := envelope.KeyID
	if keyID == "" {
		m.mu.RLock()
		for _, k := range m.byID {
			if k.Version == envelope.KeyVersion {
				keyID = k.ID
				break
			}
		}
		m.mu.RUnlock()
		if keyID == "" && len(m.opts.Keys) > 0 {
			keyID = m.opts.Keys[0].ID
		}
	}

	req := kmip.NewRequest(kmip.OperationDecrypt, &payloads.DecryptRequestPayload{
		UniqueIdentifier: keyID,
		Data:             envelope.Ciphertext,
	})
	resp, err := m.client.Send(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("cosmian kmip: decrypt: %w", err)
	}
	payload, ok := resp.(*payloads.DecryptResponsePayload)
	if !ok {
		return nil, fmt.Errorf("cosmian kmip: decrypt: unexpected response type %T", resp)
	}
	return payload.Data, nil
}

// ActiveKeyVersion returns the version of the manager's current active key.
func (m *CosmianKMIPManager) ActiveKeyVersion(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active.Version, nil
}

// HealthCheck issues a lightweight Get against the active key.
func (m *CosmianKMIPManager) HealthCheck(ctx context.Context) error {
	m.mu.RLock()
	active := m.active
	m.mu.RUnlock()

	req := kmip.NewRequest(kmip.OperationGet, &payloads.GetRequestPayload{
		UniqueIdentifier: active.ID,
	})
	_, err := m.client.Send(ctx, req)
	if err != nil {
		return fmt.Errorf("cosmian kmip: health check: %w", err)
	}
	return nil
}

// Close releases the underlying KMIP connection.
func (m *CosmianKMIPManager) Close(_ context.Context) error {
	return m.client.Close()
}

// RotateActiveKey switches the manager's active wrapping key to the
// given reference, adding it to the known key set if new. Envelopes
// that name their KeyID stay unwrappable under that key; envelopes
// without one are matched by exact version as UnwrapKey describes.
func (m *CosmianKMIPManager) RotateActiveKey(ref KMIPKeyReference) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[ref.ID] = ref
	m.active = ref
}
