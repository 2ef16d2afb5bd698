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
	"sync/atomic"
)

// Context is an execution context for a single device. Buffers, programs and
// queues are created from it.
type Context struct {
	device *Device
	closed atomic.Bool
}

// NewContext creates a context for the given device. Exactly one device is
// supported.
func NewContext(devices ...*Device) (*Context, error) {
	if len(devices) != 1 || devices[0] == nil || devices[0].backend == nil {
		return nil, fmt.Errorf("context needs exactly one device, got %d: %w", len(devices), ErrInvalidValue)
	}
	return &Context{device: devices[0]}, nil
}

// Device returns the device of the context.
func (c *Context) Device() *Device {
	return c.device
}

// Close marks the context closed. Objects created from it fail afterwards.
func (c *Context) Close() {
	c.closed.Store(true)
}

func (c *Context) check() error {
	if c == nil || c.closed.Load() {
		return ErrInvalidContext
	}
	return nil
}

// CreateBuffer allocates a device buffer of size bytes.
func (c *Context) CreateBuffer(flags MemFlags, size int) (*Buffer, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	if err := flags.validate(); err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, fmt.Errorf("buffer of %d bytes: %w", size, ErrInvalidBufferSize)
	}
	if size > c.device.MaxMemAllocSize {
		return nil, fmt.Errorf("buffer of %d bytes exceeds %d: %w", size, c.device.MaxMemAllocSize, ErrMemObjectAllocationFailure)
	}
	mem, err := c.device.backend.alloc(size)
	if err != nil {
		return nil, err
	}
	buf := &Buffer{
		ctx:   c,
		flags: flags,
		size:  size,
		mem:   mem,
	}
	buf.refs.Store(1)
	return buf, nil
}
