package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCosmianKMIPManagerRequiresKeys(t *testing.T) {
	_, err := NewCosmianKMIPManager(CosmianKMIPOptions{
		Endpoint: "kmip://localhost:5696",
	})
	require.Error(t, err)
}

func TestRotateActiveKeyUpdatesVersion(t *testing.T) {
	m := &CosmianKMIPManager{
		opts: CosmianKMIPOptions{Provider: "cosmian-kmip"},
		byID: map[string]KMIPKeyReference{
			"key-a": {ID: "key-a", Version: 1},
		},
		active: KMIPKeyReference{ID: "key-a", Version: 1},
	}

	v, err := m.ActiveKeyVersion(nil)
	require.NoError(t, err)
	require.Equal(t, 1, v)

	m.RotateActiveKey(KMIPKeyReference{ID: "key-b", Version: 2})

	v, err = m.ActiveKeyVersion(nil)
	require.NoError(t, err)
	require.Equal(t, 2, v)
	require.Equal(t, "key-b", m.active.ID)
}

func TestProviderDefaultsToCosmianKMIP(t *testing.T) {
	m := &CosmianKMIPManager{opts: CosmianKMIPOptions{Provider: "cosmian-kmip"}}
	require.Equal(t, "cosmian-kmip", m.Provider())
}
