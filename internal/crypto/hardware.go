package crypto

import (
	"runtime"

	"github.com/kipbackup/kip/internal/config"
	"golang.org/x/sys/cpu"
)

// HasAESHardwareSupport reports whether the CPU supports AES hardware
// acceleration. XChaCha20-Poly1305 (the only AEAD this package uses)
// doesn't benefit from AES-NI; this is pure operator diagnostics,
// surfaced through HardwareInfo so an operator comparing throughput
// across hosts can see whether a slow host also lacks AES-NI.
func HasAESHardwareSupport() bool {
	switch runtime.GOARCH {
	case "amd64", "386":
		return cpu.X86.HasAES
	case "arm64":
		return cpu.ARM64.HasAES
	case "s390x":
		return cpu.S390X.HasAES
	default:
		return false
	}
}

// IsHardwareAccelerationEnabled checks if hardware acceleration is
// supported AND enabled in config.
func IsHardwareAccelerationEnabled(cfg config.HardwareConfig) bool {
	if !HasAESHardwareSupport() {
		return false
	}
	switch runtime.GOARCH {
	case "amd64", "386":
		return cfg.EnableAESNI
	case "arm64":
		return cfg.EnableARMv8AES
	default:
		return true
	}
}

// HardwareInfo returns diagnostic information about hardware
// acceleration support. api.Handler embeds this in its /healthz
// response body.
func HardwareInfo(cfg *config.HardwareConfig) map[string]interface{} {
	info := map[string]interface{}{
		"aes_hardware_support": HasAESHardwareSupport(),
		"architecture":         runtime.GOARCH,
		"goos":                 runtime.GOOS,
		"go_version":           runtime.Version(),
	}
	if cfg != nil {
		info["aes_ni_enabled"] = cfg.EnableAESNI
		info["armv8_aes_enabled"] = cfg.EnableARMv8AES
		info["hardware_acceleration_active"] = IsHardwareAccelerationEnabled(*cfg)
	}
	return info
}
