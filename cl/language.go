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

package cl

import "fmt"

// Language is the source language a device builds programs from.
type Language int

const (
	// OpenCLC is OpenCL C, built by the host device.
	OpenCLC Language = iota

	// WGSL is the WebGPU shading language, built by WebGPU devices.
	WGSL
)

// String implements fmt.Stringer.
func (l Language) String() string {
	switch l {
	case OpenCLC:
		return "OpenCL C"
	case WGSL:
		return "WGSL"
	}
	return fmt.Sprintf("Language(%d)", int(l))
}

// Ext returns the file name extension of sources in the language.
func (l Language) Ext() string {
	if l == WGSL {
		return ".wgsl"
	}
	return ".cl"
}

// Define returns the line declaring a compile-time constant: a #define
// for OpenCL C and a module-scope const for WGSL.
func (l Language) Define(name, value string) string {
	if l == WGSL {
		return "const " + name + " = " + value + ";"
	}
	return "#define " + name + " " + value
}

// DeviceType is the kind of hardware behind a device.
type DeviceType int

const (
	DeviceTypeCPU DeviceType = iota
	DeviceTypeGPU
)

// String returns the OpenCL spelling of the type.
func (t DeviceType) String() string {
	if t == DeviceTypeGPU {
		return "GPU"
	}
	return "CPU"
}
