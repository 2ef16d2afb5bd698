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
	"unsafe"
)

// Scalar is the set of element types buffers can be viewed as.
type Scalar interface {
	~float32 | ~int32 | ~uint32
}

// MemFlags describes how kernels access a buffer.
type MemFlags uint

const (
	MemReadWrite MemFlags = 1 << iota
	MemWriteOnly
	MemReadOnly
)

func (f MemFlags) validate() error {
	switch f {
	case MemReadWrite, MemWriteOnly, MemReadOnly:
		return nil
	}
	return fmt.Errorf("memory flags %#x: %w", uint(f), ErrInvalidValue)
}

// String implements fmt.Stringer.
func (f MemFlags) String() string {
	switch f {
	case MemReadWrite:
		return "read-write"
	case MemWriteOnly:
		return "write-only"
	case MemReadOnly:
		return "read-only"
	}
	return "invalid"
}

// Buffer is a device memory object.
type Buffer struct {
	ctx      *Context
	flags    MemFlags
	size     int
	mem      memory
	released atomic.Bool

	// refs counts the owner plus every enqueued command using the buffer.
	// Device storage is freed when it drops to zero.
	refs atomic.Int32
}

// Size returns the buffer size in bytes.
func (b *Buffer) Size() int {
	return b.size
}

// Flags returns the access flags the buffer was created with.
func (b *Buffer) Flags() MemFlags {
	return b.flags
}

// Release drops the buffer. Commands already enqueued still complete;
// enqueueing new work on a released buffer fails with ErrInvalidMemObject.
// Device storage is freed once the last such command completes.
func (b *Buffer) Release() {
	if b.released.CompareAndSwap(false, true) {
		b.drop()
	}
}

func (b *Buffer) check() error {
	if b == nil || b.released.Load() {
		return ErrInvalidMemObject
	}
	return b.ctx.check()
}

// acquire takes a reference for one enqueued command.
func (b *Buffer) acquire() error {
	for {
		n := b.refs.Load()
		if n <= 0 || b.released.Load() {
			return ErrInvalidMemObject
		}
		if b.refs.CompareAndSwap(n, n+1) {
			return nil
		}
	}
}

func (b *Buffer) drop() {
	if b.refs.Add(-1) == 0 {
		b.mem.release()
	}
}

// hostView reinterprets the storage of a host buffer as a slice of T
// covering every whole element that fits in the buffer.
func hostView[T Scalar](b *Buffer) []T {
	return wordsView[T](b.mem.(*hostMemory).words, b.size/byteLen[T](1))
}

// wordsView reinterprets the first n elements of T stored in words.
// Callers guarantee n*sizeof(T) <= 8*len(words).
func wordsView[T Scalar](words []uint64, n int) []T {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(words))), n)
}

// asBytes reinterprets s as its in-memory bytes.
func asBytes[T Scalar](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), byteLen[T](len(s)))
}

// byteLen returns the size in bytes of n elements of T.
func byteLen[T Scalar](n int) int {
	var zero T
	return n * int(unsafe.Sizeof(zero))
}
