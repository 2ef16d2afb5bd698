//go:build arm64

package cl

import "golang.org/x/sys/cpu"

func init() {
	detectedFeatures = []feature{
		{"asimd", cpu.ARM64.HasASIMD},
		{"fp", cpu.ARM64.HasFP},
		{"fphp", cpu.ARM64.HasFPHP},
		{"asimdhp", cpu.ARM64.HasASIMDHP},
		{"asimdfhm", cpu.ARM64.HasASIMDFHM},
		{"sve", cpu.ARM64.HasSVE},
		{"sve2", cpu.ARM64.HasSVE2},
		{"atomics", cpu.ARM64.HasATOMICS},
	}

	if NoSIMDEnv() {
		setScalarLevel()
		return
	}

	// NEON (ASIMD) is part of the ARMv8-A base architecture.
	// SVE width is implementation defined; report the NEON width until it
	// can be queried.
	switch {
	case cpu.ARM64.HasSVE:
		detectedLevel = LevelSVE
		detectedWidth = 16
	case cpu.ARM64.HasASIMD:
		detectedLevel = LevelNEON
		detectedWidth = 16
	default:
		setScalarLevel()
	}
}
