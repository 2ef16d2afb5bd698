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

//go:build gpu

package cl

import (
	"encoding/binary"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/openfluke/webgpu/wgpu"
)

// WebGPU baseline limits. Every adapter supports at least these.
const (
	gpuMaxWorkGroupSize      = 256
	gpuMaxWorkGroupSizeZ     = 64
	gpuLocalMemSize          = 16 * 1024
	gpuMaxMemAllocSize       = 128 << 20 // maxStorageBufferBindingSize
	gpuMaxGroupsPerDimension = 65535

	// gpuPollLimit bounds the device polls waiting for a buffer map.
	gpuPollLimit = 1000
)

var gpuErr error

// gpuPlatforms opens the default WebGPU adapter. The device lives for the
// rest of the process.
func gpuPlatforms() []*Platform {
	g, err := openGPU()
	if err != nil {
		gpuErr = fmt.Errorf("webgpu: %w: %w", ErrDeviceNotFound, err)
		return nil
	}
	dev := &Device{
		Name:             "WebGPU adapter",
		Vendor:           "wgpu-native",
		Type:             DeviceTypeGPU,
		Language:         WGSL,
		MaxWorkGroupSize: gpuMaxWorkGroupSize,
		LocalMemSize:     gpuLocalMemSize,
		MaxMemAllocSize:  gpuMaxMemAllocSize,
		extensions:       []string{"wgsl", "storage_buffers", "workgroup_memory"},
		backend:          g,
	}
	return []*Platform{{
		Name:    "WebGPU",
		Vendor:  "wgpu-native",
		Version: "WebGPU 1.0",
		devices: []*Device{dev},
	}}
}

// GPUError reports why no GPU platform is available, or nil if one is.
func GPUError() error {
	Platforms()
	return gpuErr
}

func openGPU() (*gpuBackend, error) {
	instance := wgpu.CreateInstance(nil)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("request device: %w", err)
	}
	return &gpuBackend{
		instance: instance,
		adapter:  adapter,
		device:   device,
		queue:    device.GetQueue(),
	}, nil
}

// gpuBackend runs WGSL programs on a WebGPU device.
type gpuBackend struct {
	// mu serializes every use of the device and its queue.
	mu       sync.Mutex
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
}

func (g *gpuBackend) alloc(size int) (memory, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	buf, err := g.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "cl_buffer",
		Size:  uint64(size+3) &^ 3,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMemObjectAllocationFailure, err)
	}
	return &gpuMemory{g: g, buf: buf}, nil
}

// submit records one command buffer, submits it and waits until the device
// has finished it, along with any pending queue writes. Callers hold g.mu.
func (g *gpuBackend) submit(record func(enc *wgpu.CommandEncoder)) error {
	enc, err := g.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	record(enc)
	cb, err := enc.Finish(nil)
	enc.Release()
	if err != nil {
		return err
	}
	g.queue.Submit(cb)
	cb.Release()
	g.device.Poll(true, nil)
	return nil
}

func (g *gpuBackend) compile(source string) (*executable, []string) {
	mod, problems := parseWGSL(source)
	if len(problems) > 0 {
		return nil, problems
	}
	prog := &gpuProgram{
		g:         g,
		source:    source,
		mod:       mod,
		pipelines: map[gpuPipelineKey]*gpuPipeline{},
	}
	entries := make(map[string]*entryPoint, len(mod.entries))
	for _, name := range mod.entries {
		// A unit work group surfaces compile errors at build time.
		if _, err := prog.pipeline(name, [3]int{1, 1, 1}); err != nil {
			problems = append(problems, fmt.Sprintf("entry point %s: %v", name, err))
			continue
		}
		entries[name] = &entryPoint{
			name:   name,
			params: mod.params(),
			launch: prog.launcher(name),
		}
	}
	if len(problems) > 0 {
		prog.release()
		return nil, problems
	}
	exe := &executable{defines: mod.defines, entries: entries}
	runtime.AddCleanup(exe, (*gpuProgram).release, prog)
	return exe, nil
}

// gpuMemory is a storage buffer on the device. Sizes are whole 32-bit
// words, which every Scalar transfer is.
type gpuMemory struct {
	g   *gpuBackend
	buf *wgpu.Buffer
}

func (m *gpuMemory) write(src []byte) error {
	if len(src) == 0 {
		return nil
	}
	m.g.mu.Lock()
	defer m.g.mu.Unlock()
	m.g.queue.WriteBuffer(m.buf, 0, src)
	// An empty submission flushes the write.
	return m.g.submit(func(*wgpu.CommandEncoder) {})
}

func (m *gpuMemory) read(dst []byte) error {
	if len(dst) == 0 {
		return nil
	}
	g := m.g
	g.mu.Lock()
	defer g.mu.Unlock()

	size := uint64(len(dst))
	staging, err := g.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "cl_readback",
		Size:  size,
		Usage: wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapRead,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMemObjectAllocationFailure, err)
	}
	defer staging.Release()

	err = g.submit(func(enc *wgpu.CommandEncoder) {
		enc.CopyBufferToBuffer(m.buf, 0, staging, 0, size)
	})
	if err != nil {
		return fmt.Errorf("copy to readback buffer: %w", err)
	}

	var (
		status wgpu.BufferMapAsyncStatus
		done   bool
	)
	staging.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status, done = s, true
	})
	for i := 0; i < gpuPollLimit && !done; i++ {
		g.device.Poll(true, nil)
	}
	if !done || status != wgpu.BufferMapAsyncStatusSuccess {
		return fmt.Errorf("readback of %d bytes (status %v): %w", size, status, ErrMapFailure)
	}
	defer staging.Unmap()
	data := staging.GetMappedRange(0, uint(size))
	if len(data) < len(dst) {
		return fmt.Errorf("readback mapped %d of %d bytes: %w", len(data), size, ErrMapFailure)
	}
	copy(dst, data)
	return nil
}

func (m *gpuMemory) release() {
	m.g.mu.Lock()
	defer m.g.mu.Unlock()
	m.buf.Release()
}

type gpuPipelineKey struct {
	entry string
	local [3]int
}

type gpuPipeline struct {
	module         *wgpu.ShaderModule
	bindLayout     *wgpu.BindGroupLayout
	pipelineLayout *wgpu.PipelineLayout
	pipeline       *wgpu.ComputePipeline
}

func (p *gpuPipeline) release() {
	p.pipeline.Release()
	p.pipelineLayout.Release()
	p.bindLayout.Release()
	p.module.Release()
}

// gpuProgram is a built WGSL program. The work group size is part of the
// shader, so it keeps one pipeline per entry point and dispatch shape.
type gpuProgram struct {
	g      *gpuBackend
	source string
	mod    *wgslModule

	mu        sync.Mutex
	pipelines map[gpuPipelineKey]*gpuPipeline
}

func (p *gpuProgram) release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	for key, pl := range p.pipelines {
		pl.release()
		delete(p.pipelines, key)
	}
}

// pipeline returns the compute pipeline of entry for a work group shape,
// compiling the module with that shape on first use.
func (p *gpuProgram) pipeline(entry string, local [3]int) (*gpuPipeline, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := gpuPipelineKey{entry: entry, local: local}
	if pl, ok := p.pipelines[key]; ok {
		return pl, nil
	}

	g := p.g
	g.mu.Lock()
	defer g.mu.Unlock()
	module, err := g.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          entry,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: wgslPrelude(local) + p.source},
	})
	if err != nil {
		return nil, fmt.Errorf("CreateShaderModule: %w", err)
	}

	var layoutEntries []wgpu.BindGroupLayoutEntry
	for _, s := range p.mod.slots {
		if s.kind != slotStorage {
			continue
		}
		typ := wgpu.BufferBindingTypeStorage
		if s.readOnly {
			typ = wgpu.BufferBindingTypeReadOnlyStorage
		}
		layoutEntries = append(layoutEntries, wgpu.BindGroupLayoutEntry{
			Binding:    uint32(s.binding),
			Visibility: wgpu.ShaderStageCompute,
			Buffer:     wgpu.BufferBindingLayout{Type: typ},
		})
	}
	if p.mod.uniformBinding >= 0 {
		layoutEntries = append(layoutEntries, wgpu.BindGroupLayoutEntry{
			Binding:    uint32(p.mod.uniformBinding),
			Visibility: wgpu.ShaderStageCompute,
			Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform},
		})
	}
	bgl, err := g.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   entry,
		Entries: layoutEntries,
	})
	if err != nil {
		module.Release()
		return nil, fmt.Errorf("CreateBindGroupLayout: %w", err)
	}
	pl, err := g.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            entry,
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		bgl.Release()
		module.Release()
		return nil, fmt.Errorf("CreatePipelineLayout: %w", err)
	}
	pipeline, err := g.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  entry,
		Layout: pl,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: entry,
		},
	})
	if err != nil {
		pl.Release()
		bgl.Release()
		module.Release()
		return nil, fmt.Errorf("CreateComputePipeline: %w", err)
	}
	out := &gpuPipeline{module: module, bindLayout: bgl, pipelineLayout: pl, pipeline: pipeline}
	p.pipelines[key] = out
	return out, nil
}

// launcher binds the arguments of entry and dispatches one work group per
// group of the range.
func (p *gpuProgram) launcher(entry string) func(ndRange, []any) error {
	return func(nd ndRange, args []any) error {
		for d := range 3 {
			if nd.numGroups[d] > gpuMaxGroupsPerDimension {
				return fmt.Errorf("%d work groups in dimension %d exceed %d: %w", nd.numGroups[d], d, gpuMaxGroupsPerDimension, ErrOutOfResources)
			}
		}
		if nd.local[2] > gpuMaxWorkGroupSizeZ {
			return fmt.Errorf("local size %d in dimension 2 exceeds %d: %w", nd.local[2], gpuMaxWorkGroupSizeZ, ErrInvalidWorkGroupSize)
		}
		for i, s := range p.mod.slots {
			if s.kind != slotWorkgroup || s.capacity == 0 {
				continue
			}
			if n := int(args[i].(LocalMemory)); n > 4*s.capacity {
				return fmt.Errorf("%d bytes of local memory for %s, which holds %d: %w", n, s.param.Name, 4*s.capacity, ErrOutOfResources)
			}
		}
		pl, err := p.pipeline(entry, nd.local)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrBuildProgramFailure, err)
		}

		g := p.g
		g.mu.Lock()
		defer g.mu.Unlock()

		entries := make([]wgpu.BindGroupEntry, 0, len(p.mod.slots)+1)
		var params []byte
		for i, s := range p.mod.slots {
			switch s.kind {
			case slotStorage:
				buf := args[i].(*Buffer).mem.(*gpuMemory).buf
				entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(s.binding), Buffer: buf, Offset: 0, Size: buf.GetSize()})
			case slotUniform:
				params = binary.LittleEndian.AppendUint32(params, scalarBits(args[i]))
			}
		}
		if p.mod.uniformBinding >= 0 {
			ub, err := g.device.CreateBuffer(&wgpu.BufferDescriptor{
				Label: "cl_params",
				Size:  uint64(max(16, (len(params)+15)&^15)),
				Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
			})
			if err != nil {
				return fmt.Errorf("%w: %w", ErrOutOfResources, err)
			}
			defer ub.Release()
			if len(params) > 0 {
				g.queue.WriteBuffer(ub, 0, params)
			}
			entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(p.mod.uniformBinding), Buffer: ub, Offset: 0, Size: ub.GetSize()})
		}
		bg, err := g.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:   entry,
			Layout:  pl.bindLayout,
			Entries: entries,
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidKernelArgs, err)
		}
		defer bg.Release()

		return g.submit(func(enc *wgpu.CommandEncoder) {
			pass := enc.BeginComputePass(nil)
			pass.SetPipeline(pl.pipeline)
			pass.SetBindGroup(0, bg, nil)
			pass.DispatchWorkgroups(uint32(nd.numGroups[0]), uint32(nd.numGroups[1]), uint32(nd.numGroups[2]))
			pass.End()
		})
	}
}

// scalarBits returns the uniform block encoding of a scalar argument.
func scalarBits(v any) uint32 {
	switch x := v.(type) {
	case float32:
		return math.Float32bits(x)
	case int32:
		return uint32(x)
	case uint32:
		return x
	}
	panic(fmt.Sprintf("cl: %T is not a scalar argument", v))
}
