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

import (
	"fmt"
	"os"
	"runtime"
	"slices"
	"strconv"
	"sync"

	"github.com/samber/lo"
)

// Host device limits. They mirror what a mid-range discrete device reports
// so that kernels tuned against them stay portable.
const (
	// MaxWorkGroupSize is the largest number of work items in one group.
	MaxWorkGroupSize = 1024

	// LocalMemSize is the group-local memory available to one work group.
	LocalMemSize = 64 * 1024

	// MaxMemAllocSize is the largest single buffer allocation.
	MaxMemAllocSize = 1 << 30
)

// PlatformEnv names the environment variable that selects the platform
// NewDeviceContext opens, by index into Platforms.
const PlatformEnv = "CLDEV_PLATFORM"

// Platform groups the devices of one runtime implementation.
type Platform struct {
	Name    string
	Vendor  string
	Version string
	devices []*Device
}

// Devices returns the devices exposed by the platform.
func (p *Platform) Devices() []*Device {
	return p.devices
}

// Device is one compute device.
type Device struct {
	Name     string
	Vendor   string
	Type     DeviceType
	Language Language

	// Level and Width describe the host CPU. They are informational and
	// zero on GPU devices.
	Level Level
	Width int // SIMD register width in bytes

	// ComputeUnits is 0 when the runtime does not report it.
	ComputeUnits     int
	MaxWorkGroupSize int
	LocalMemSize     int
	MaxMemAllocSize  int

	extensions []string
	backend    backend
}

// Extensions lists the device's extensions: detected CPU features for the
// host device, language features for GPU devices.
func (d *Device) Extensions() []string {
	return slices.Clone(d.extensions)
}

// String implements fmt.Stringer.
func (d *Device) String() string {
	if d.Type == DeviceTypeGPU {
		return fmt.Sprintf("%s (%s, %s)", d.Name, d.Type, d.Language)
	}
	return fmt.Sprintf("%s (%d compute units, %s)", d.Name, d.ComputeUnits, d.Level)
}

var (
	platformsOnce sync.Once
	platforms     []*Platform
	hostDevice    *Device
)

// Platforms returns the available platforms. GPU platforms, present when
// the binary is built with the gpu tag and an adapter is found, come first.
// The host platform always comes last and exposes exactly one CPU device.
func Platforms() []*Platform {
	platformsOnce.Do(func() {
		units := computeUnitsEnv()
		if units == 0 {
			units = runtime.GOMAXPROCS(0)
		}
		hostDevice = &Device{
			Name:             fmt.Sprintf("%s/%s host device", runtime.GOOS, runtime.GOARCH),
			Vendor:           "go-highway",
			Type:             DeviceTypeCPU,
			Language:         OpenCLC,
			Level:            detectedLevel,
			Width:            detectedWidth,
			ComputeUnits:     units,
			MaxWorkGroupSize: MaxWorkGroupSize,
			LocalMemSize:     LocalMemSize,
			MaxMemAllocSize:  MaxMemAllocSize,
			extensions: lo.FilterMap(detectedFeatures, func(f feature, _ int) (string, bool) {
				return f.name, f.present
			}),
			backend: &hostBackend{units: units},
		}
		platforms = append(gpuPlatforms(), &Platform{
			Name:    "Go Host Compute",
			Vendor:  "go-highway",
			Version: "OpenCL 1.2 subset",
			devices: []*Device{hostDevice},
		})
	})
	return platforms
}

// HostDevice returns the CPU device of the host platform.
func HostDevice() *Device {
	Platforms()
	return hostDevice
}

// DeviceContext bundles what a host program needs to drive one device: the
// platform, its device list, an execution context and one command queue.
type DeviceContext struct {
	Platform *Platform
	Devices  []*Device
	Context  *Context
	Queue    *CommandQueue
}

// NewDeviceContext opens the first device of the first platform, or of the
// platform $CLDEV_PLATFORM indexes, with a fresh context and queue.
func NewDeviceContext() (*DeviceContext, error) {
	ps := Platforms()
	i := 0
	if v := os.Getenv(PlatformEnv); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n >= len(ps) {
			return nil, fmt.Errorf("%s=%q: %d platforms available: %w", PlatformEnv, v, len(ps), ErrDeviceNotFound)
		}
		i = n
	}
	if len(ps[i].Devices()) == 0 {
		return nil, fmt.Errorf("platform %s has no devices: %w", ps[i].Name, ErrDeviceNotFound)
	}
	return NewDeviceContextFor(ps[i].Devices()[0])
}

// NewDeviceContextFor opens dev with a fresh context and queue.
func NewDeviceContextFor(dev *Device) (*DeviceContext, error) {
	p := platformOf(dev)
	if p == nil {
		return nil, fmt.Errorf("device %v is not on any platform: %w", dev, ErrDeviceNotFound)
	}
	ctx, err := NewContext(dev)
	if err != nil {
		return nil, err
	}
	q, err := ctx.NewQueue()
	if err != nil {
		ctx.Close()
		return nil, err
	}
	return &DeviceContext{
		Platform: p,
		Devices:  p.Devices(),
		Context:  ctx,
		Queue:    q,
	}, nil
}

func platformOf(dev *Device) *Platform {
	for _, p := range Platforms() {
		if slices.Contains(p.devices, dev) {
			return p
		}
	}
	return nil
}

// Device returns the device targeted by the context.
func (dc *DeviceContext) Device() *Device {
	return dc.Context.Device()
}

// Close drains and releases the queue, then closes the context.
func (dc *DeviceContext) Close() {
	dc.Queue.Release()
	dc.Context.Close()
}
