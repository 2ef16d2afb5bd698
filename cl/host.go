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
	"sync"
	"unsafe"

	"github.com/go-highway/clmatmul/cl/workerpool"
)

// hostBackend runs OpenCL C programs on the host CPU. Kernels bind to
// registered Builtins; work groups run on a pool with one worker per
// compute unit.
type hostBackend struct {
	units    int
	poolOnce sync.Once
	pool     *workerpool.Pool
}

// computeUnits returns the pool backing the device, starting it on first use.
// The pool lives for the rest of the process.
func (h *hostBackend) computeUnits() *workerpool.Pool {
	h.poolOnce.Do(func() {
		h.pool = workerpool.New(h.units)
	})
	return h.pool
}

func (h *hostBackend) alloc(size int) (memory, error) {
	return &hostMemory{words: make([]uint64, (size+7)/8), size: size}, nil
}

func (h *hostBackend) compile(source string) (*executable, []string) {
	kernels, defines, problems := parseOpenCL(source)
	entries := make(map[string]*entryPoint, len(kernels))
	for _, k := range kernels {
		b := lookupBuiltin(k.name, k.params)
		if b == nil {
			problems = append(problems, fmt.Sprintf("kernel %s: no device implementation", signature(k.name, k.params)))
			continue
		}
		if k.body != b.body {
			problems = append(problems, fmt.Sprintf("kernel %s: body differs from the device implementation", k.name))
			continue
		}
		for _, macro := range b.Requires {
			if _, ok := defines[macro]; !ok {
				problems = append(problems, fmt.Sprintf("kernel %s: %s is not defined", k.name, macro))
			}
		}
		entries[k.name] = &entryPoint{
			name:   k.name,
			params: k.params,
			launch: h.launcher(b, defines),
		}
	}
	if len(problems) > 0 {
		return nil, problems
	}
	return &executable{defines: defines, entries: entries}, nil
}

// launcher runs b once per work group on the compute units.
func (h *hostBackend) launcher(b *Builtin, defines map[string]string) func(ndRange, []any) error {
	return func(nd ndRange, args []any) error {
		return h.computeUnits().RunGroups(nd.totalGroups(), func(g int) error {
			wg := &WorkGroup{nd: nd, args: args, defines: defines}
			wg.setGroup(g)
			wg.allocLocal()
			return b.Fn(wg)
		})
	}
}

// hostMemory is buffer storage in host RAM, 8-byte aligned so it can be
// viewed as any Scalar type. The garbage collector reclaims it.
type hostMemory struct {
	words []uint64
	size  int
}

func (m *hostMemory) bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(m.words))), m.size)
}

func (m *hostMemory) write(src []byte) error {
	copy(m.bytes(), src)
	return nil
}

func (m *hostMemory) read(dst []byte) error {
	copy(dst, m.bytes())
	return nil
}

func (m *hostMemory) release() {}
