// Copyright 2025 go-highway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build amd64

package cl

import "golang.org/x/sys/cpu"

func init() {
	detectedFeatures = []feature{
		{"sse2", cpu.X86.HasSSE2},
		{"sse4.1", cpu.X86.HasSSE41},
		{"sse4.2", cpu.X86.HasSSE42},
		{"avx", cpu.X86.HasAVX},
		{"avx2", cpu.X86.HasAVX2},
		{"fma", cpu.X86.HasFMA},
		{"avx512f", cpu.X86.HasAVX512F},
		{"avx512bw", cpu.X86.HasAVX512BW},
		{"avx512vl", cpu.X86.HasAVX512VL},
	}

	if NoSIMDEnv() {
		setScalarLevel()
		return
	}

	switch {
	case cpu.X86.HasAVX512F:
		detectedLevel = LevelAVX512
		detectedWidth = 64
	case cpu.X86.HasAVX2:
		detectedLevel = LevelAVX2
		detectedWidth = 32
	case cpu.X86.HasSSE2:
		detectedLevel = LevelSSE2
		detectedWidth = 16
	default:
		setScalarLevel()
	}
}
