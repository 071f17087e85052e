// Package debugflag holds a process-wide flag read once from the
// environment, never mutated by application logic afterward.
package debugflag

import (
	"os"
	"sync"
)

var (
	enabled bool
	mu      sync.RWMutex
)

func init() {
	InitFromEnv()
}

// Enabled returns whether debug-level logging is enabled.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// SetEnabled sets whether debug-level logging is enabled.
func SetEnabled(value bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = value
}

// InitFromEnv initializes the flag from KIP_DEBUG or LOG_LEVEL=debug.
func InitFromEnv() {
	if os.Getenv("KIP_DEBUG") == "true" {
		SetEnabled(true)
		return
	}
	if os.Getenv("LOG_LEVEL") == "debug" {
		SetEnabled(true)
		return
	}
	SetEnabled(false)
}
