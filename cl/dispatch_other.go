//go:build !amd64 && !arm64

package cl

func init() {
	// Other architectures report no SIMD level.
	setScalarLevel()
}
