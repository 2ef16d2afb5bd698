package cl

import (
	"os"
	"strconv"
)

// Level is the detected host SIMD level. It is reported in device info
// only; native kernels are plain Go loops and do not dispatch on it.
type Level int

const (
	// LevelScalar indicates no SIMD support was detected or it was disabled.
	LevelScalar Level = iota

	// LevelSSE2 indicates SSE2 instructions (x86-64 baseline).
	LevelSSE2

	// LevelAVX2 indicates AVX2 instructions (256-bit SIMD).
	LevelAVX2

	// LevelAVX512 indicates AVX-512 instructions (512-bit SIMD).
	LevelAVX512

	// LevelNEON indicates ARM NEON instructions (128-bit SIMD).
	LevelNEON

	// LevelSVE indicates ARM SVE instructions (scalable vector).
	LevelSVE
)

// String returns a human-readable name for the level.
func (l Level) String() string {
	switch l {
	case LevelScalar:
		return "scalar"
	case LevelSSE2:
		return "sse2"
	case LevelAVX2:
		return "avx2"
	case LevelAVX512:
		return "avx512"
	case LevelNEON:
		return "neon"
	case LevelSVE:
		return "sve"
	default:
		return "unknown"
	}
}

// feature is one CPU capability reported as a device extension.
type feature struct {
	name    string
	present bool
}

// Set by init() in dispatch_*.go files.
var (
	detectedLevel    Level
	detectedWidth    int
	detectedFeatures []feature
)

// NoSIMDEnv checks if the CLDEV_NO_SIMD environment variable is set.
// When set, the host device reports itself as scalar regardless of CPU
// capabilities.
func NoSIMDEnv() bool {
	val := os.Getenv("CLDEV_NO_SIMD")
	if val == "" {
		return false
	}
	if b, err := strconv.ParseBool(val); err == nil {
		return b
	}
	return true
}

// computeUnitsEnv returns the CLDEV_COMPUTE_UNITS override, or 0 when unset
// or not a positive integer.
func computeUnitsEnv() int {
	n, err := strconv.Atoi(os.Getenv("CLDEV_COMPUTE_UNITS"))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

func setScalarLevel() {
	detectedLevel = LevelScalar
	detectedWidth = 16 // keep 16-byte vectors in scalar mode for consistency
}
