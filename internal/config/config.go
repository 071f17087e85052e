// Package config holds the typed configuration structs consumed across
// the engine: provider backend settings and hardware feature flags
// referenced from internal/crypto/hardware.go and internal/provider/s3.
package config

import "time"

// CompressAlg names one of the four recognized lossless codecs.
type CompressAlg string

const (
	CompressZstd   CompressAlg = "zstd"
	CompressLzma   CompressAlg = "lzma"
	CompressGzip   CompressAlg = "gzip"
	CompressBrotli CompressAlg = "brotli"
	CompressNone   CompressAlg = "none"
)

// CompressLevel is a codec-agnostic quality knob.
type CompressLevel string

const (
	LevelFastest CompressLevel = "fastest"
	LevelBest    CompressLevel = "best"
	LevelDefault CompressLevel = "default"
)

// CompressOptions is the job-level compression configuration.
type CompressOptions struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	Alg     CompressAlg   `yaml:"alg" json:"alg"`
	Level   CompressLevel `yaml:"level" json:"level"`
}

// DefaultCompressOptions matches the engine's out-of-the-box behavior.
func DefaultCompressOptions() CompressOptions {
	return CompressOptions{Enabled: true, Alg: CompressZstd, Level: LevelDefault}
}

// ProviderKind tags which back-end a ProviderConfig describes.
type ProviderKind string

const (
	ProviderS3    ProviderKind = "s3"
	ProviderDrive ProviderKind = "drive"
	ProviderUSB   ProviderKind = "usb"
	ProviderSMB   ProviderKind = "smb"
)

// ProviderConfig is the tagged-variant provider configuration persisted
// on a Job. Only the fields matching Kind are meaningful; dispatching
// on a persisted variant tag keeps the document plainly serializable
// without storing a trait/interface object.
type ProviderConfig struct {
	Kind ProviderKind `yaml:"kind" json:"kind"`

	// S3-like bucket fields.
	S3Bucket    string `yaml:"s3_bucket,omitempty" json:"s3_bucket,omitempty"`
	S3Region    string `yaml:"s3_region,omitempty" json:"s3_region,omitempty"`
	S3Endpoint  string `yaml:"s3_endpoint,omitempty" json:"s3_endpoint,omitempty"`
	S3Provider  string `yaml:"s3_provider,omitempty" json:"s3_provider,omitempty"`

	// Google Drive fields.
	DriveParentFolder string `yaml:"drive_parent_folder,omitempty" json:"drive_parent_folder,omitempty"`

	// USB-mounted filesystem fields.
	USBRootPath string `yaml:"usb_root_path,omitempty" json:"usb_root_path,omitempty"`

	// SMB share fields (modeled as an OS-mounted path; see provider/smb).
	SMBMountPath string `yaml:"smb_mount_path,omitempty" json:"smb_mount_path,omitempty"`
	SMBShare     string `yaml:"smb_share,omitempty" json:"smb_share,omitempty"`
}

// HardwareConfig toggles CPU-specific acceleration consumed by
// internal/crypto/hardware.go.
type HardwareConfig struct {
	EnableAESNI    bool `yaml:"enable_aesni" json:"enable_aesni"`
	EnableARMv8AES bool `yaml:"enable_armv8_aes" json:"enable_armv8_aes"`
}

// RetryPolicy configures the exponential backoff used for per-chunk
// provider upload retries.
type RetryPolicy struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	Factor      float64       `yaml:"factor" json:"factor"`
	JitterFrac  float64       `yaml:"jitter_frac" json:"jitter_frac"`
}

// DefaultRetryPolicy: 3 attempts, base 500ms, factor 2, jitter ±25%.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, Factor: 2, JitterFrac: 0.25}
}

// EngineConfig configures the run engine's concurrency and I/O behavior.
type EngineConfig struct {
	Parallelism    int           `yaml:"parallelism" json:"parallelism"`
	MmapThreshold  int64         `yaml:"mmap_threshold" json:"mmap_threshold"`
	Retry          RetryPolicy   `yaml:"retry" json:"retry"`
	Hardware       HardwareConfig `yaml:"hardware" json:"hardware"`
}

// DefaultEngineConfig: parallelism 4, 500MiB mmap threshold.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Parallelism:   4,
		MmapThreshold: 500 * 1024 * 1024,
		Retry:         DefaultRetryPolicy(),
		Hardware:      HardwareConfig{EnableAESNI: true, EnableARMv8AES: true},
	}
}
