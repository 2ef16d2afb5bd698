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
	"math"
	"strconv"
)

// LocalMemory reserves bytes of group-local memory for a __local pointer
// argument. Every work group gets its own zeroed allocation.
type LocalMemory int

// Kernel is one entry point of a built program plus its argument values.
type Kernel struct {
	prog  *Program
	entry *entryPoint
	args  []any
}

// Name returns the kernel function name.
func (k *Kernel) Name() string {
	return k.entry.name
}

// NumArgs returns the number of declared parameters.
func (k *Kernel) NumArgs() int {
	return len(k.entry.params)
}

// SetArgs sets every argument in declaration order.
func (k *Kernel) SetArgs(args ...any) error {
	if len(args) != len(k.entry.params) {
		return fmt.Errorf("%s takes %d arguments, got %d: %w", k.entry.signature(), len(k.entry.params), len(args), ErrInvalidKernelArgs)
	}
	for i, a := range args {
		if err := k.SetArg(i, a); err != nil {
			return err
		}
	}
	return nil
}

// SetArg sets argument i. Accepted values depend on the parameter:
// *Buffer for __global and __constant pointers, LocalMemory for __local
// pointers, float32 for float, int32 (or an int in range) for int and
// uint32 for uint.
func (k *Kernel) SetArg(i int, v any) error {
	if i < 0 || i >= len(k.entry.params) {
		return fmt.Errorf("argument %d of %s: %w", i, k.entry.name, ErrInvalidArgIndex)
	}
	p := k.entry.params[i]
	bad := func() error {
		return fmt.Errorf("argument %d (%s) of %s: %T: %w", i, p, k.entry.name, v, ErrInvalidKernelArgs)
	}

	switch {
	case p.Pointer && p.Space == SpaceLocal:
		n, ok := v.(LocalMemory)
		if !ok || n <= 0 {
			return bad()
		}
	case p.Pointer:
		b, ok := v.(*Buffer)
		if !ok {
			return bad()
		}
		if err := b.check(); err != nil {
			return fmt.Errorf("argument %d of %s: %w", i, k.entry.name, err)
		}
		if b.ctx != k.prog.ctx {
			return fmt.Errorf("argument %d of %s: buffer of another context: %w", i, k.entry.name, ErrInvalidMemObject)
		}
	case p.Type == TypeFloat:
		if _, ok := v.(float32); !ok {
			return bad()
		}
	case p.Type == TypeInt:
		switch x := v.(type) {
		case int32:
		case int:
			if x < math.MinInt32 || x > math.MaxInt32 {
				return bad()
			}
			v = int32(x)
		default:
			return bad()
		}
	case p.Type == TypeUint:
		if _, ok := v.(uint32); !ok {
			return bad()
		}
	}
	k.args[i] = v
	return nil
}

// EnqueueNDRange dispatches the kernel over a grid of global work items
// split into work groups of local items. A nil local lets the device pick
// the group shape. Argument values are captured at enqueue time.
func (q *CommandQueue) EnqueueNDRange(k *Kernel, global, local []int) (*Event, error) {
	if k.prog.ctx != q.ctx {
		return nil, fmt.Errorf("kernel %s and queue belong to different contexts: %w", k.entry.name, ErrInvalidContext)
	}
	dev := q.ctx.device
	var bufs []*Buffer
	for i, a := range k.args {
		if a == nil {
			return nil, fmt.Errorf("argument %d of %s is not set: %w", i, k.entry.name, ErrInvalidKernelArgs)
		}
		if b, ok := a.(*Buffer); ok {
			if err := b.check(); err != nil {
				return nil, fmt.Errorf("argument %d of %s: %w", i, k.entry.name, err)
			}
			bufs = append(bufs, b)
		}
	}
	if len(global) < 1 || len(global) > 3 {
		return nil, fmt.Errorf("%d dimensions: %w", len(global), ErrInvalidWorkDimension)
	}
	for d, g := range global {
		if g <= 0 {
			return nil, fmt.Errorf("global size %v, dimension %d: %w", global, d, ErrInvalidGlobalWorkSize)
		}
	}
	if local == nil {
		local = chooseLocalSize(global, dev.MaxWorkGroupSize)
	}
	if err := checkLocalSize(global, local, dev.MaxWorkGroupSize); err != nil {
		return nil, err
	}

	localBytes := 0
	for _, a := range k.args {
		if n, ok := a.(LocalMemory); ok {
			localBytes += int(n)
		}
	}
	if localBytes > dev.LocalMemSize {
		return nil, fmt.Errorf("%s needs %d bytes of local memory, device has %d: %w", k.entry.name, localBytes, dev.LocalMemSize, ErrOutOfResources)
	}

	nd := newNDRange(global, local)
	args := append([]any(nil), k.args...)
	entry := k.entry
	return q.enqueueUsing(bufs, func() error {
		if err := entry.launch(nd, args); err != nil {
			return fmt.Errorf("kernel %s: %w", entry.name, err)
		}
		return nil
	})
}

// chooseLocalSize picks, per dimension, the largest divisor of the global
// size not above a per-dimension cap, so the group always tiles the grid.
func chooseLocalSize(global []int, maxGroup int) []int {
	limit := map[int]int{1: 256, 2: 16, 3: 8}[len(global)]
	local := make([]int, len(global))
	total := 1
	for d, g := range global {
		best := 1
		for l := min(limit, g, maxGroup/total); l > 1; l-- {
			if g%l == 0 {
				best = l
				break
			}
		}
		local[d] = best
		total *= best
	}
	return local
}

func checkLocalSize(global, local []int, maxGroup int) error {
	if len(local) != len(global) {
		return fmt.Errorf("local size %v for global size %v: %w", local, global, ErrInvalidWorkGroupSize)
	}
	total := 1
	for d := range global {
		if local[d] <= 0 || global[d]%local[d] != 0 {
			return fmt.Errorf("local size %v does not divide global size %v: %w", local, global, ErrInvalidWorkGroupSize)
		}
		total *= local[d]
	}
	if total > maxGroup {
		return fmt.Errorf("work group of %d items exceeds %d: %w", total, maxGroup, ErrInvalidWorkGroupSize)
	}
	return nil
}

// ndRange is the immutable shape of one dispatch. Unused dimensions are 1.
type ndRange struct {
	dims      int
	global    [3]int
	local     [3]int
	numGroups [3]int
}

func newNDRange(global, local []int) ndRange {
	nd := ndRange{dims: len(global)}
	for d := range 3 {
		nd.global[d], nd.local[d] = 1, 1
		if d < len(global) {
			nd.global[d], nd.local[d] = global[d], local[d]
		}
		nd.numGroups[d] = nd.global[d] / nd.local[d]
	}
	return nd
}

func (nd ndRange) totalGroups() int {
	return nd.numGroups[0] * nd.numGroups[1] * nd.numGroups[2]
}

// WorkGroup is the view a host kernel gets of the work group it executes:
// its position in the grid, its arguments and the program's macros.
type WorkGroup struct {
	nd      ndRange
	groupID [3]int
	args    []any
	local   map[int][]uint64
	defines map[string]string
}

func (w *WorkGroup) setGroup(g int) {
	w.groupID[0] = g % w.nd.numGroups[0]
	g /= w.nd.numGroups[0]
	w.groupID[1] = g % w.nd.numGroups[1]
	w.groupID[2] = g / w.nd.numGroups[1]
}

func (w *WorkGroup) allocLocal() {
	for i, a := range w.args {
		if n, ok := a.(LocalMemory); ok {
			if w.local == nil {
				w.local = map[int][]uint64{}
			}
			w.local[i] = make([]uint64, (int(n)+7)/8)
		}
	}
}

// Dims returns the number of dimensions of the dispatch.
func (w *WorkGroup) Dims() int { return w.nd.dims }

// GroupID returns the group index in dimension d.
func (w *WorkGroup) GroupID(d int) int { return w.groupID[d] }

// LocalSize returns the number of work items per group in dimension d.
func (w *WorkGroup) LocalSize(d int) int { return w.nd.local[d] }

// GlobalSize returns the number of work items in dimension d.
func (w *WorkGroup) GlobalSize(d int) int { return w.nd.global[d] }

// NumGroups returns the number of groups in dimension d.
func (w *WorkGroup) NumGroups(d int) int { return w.nd.numGroups[d] }

// GlobalID returns the global id in dimension d of the work item with local
// id lid in the same dimension.
func (w *WorkGroup) GlobalID(d, lid int) int {
	return w.groupID[d]*w.nd.local[d] + lid
}

// Define returns the value of a macro defined by the program source.
func (w *WorkGroup) Define(name string) (string, bool) {
	v, ok := w.defines[name]
	return v, ok
}

// DefineInt returns a macro value parsed as an integer.
func (w *WorkGroup) DefineInt(name string) (int, error) {
	v, ok := w.defines[name]
	if !ok {
		return 0, fmt.Errorf("macro %s is not defined", name)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("macro %s=%q is not an integer", name, v)
	}
	return n, nil
}

// Int returns scalar argument i as an int. It panics if the argument is not
// an int or uint parameter, which indicates a bad registration.
func (w *WorkGroup) Int(i int) int {
	switch v := w.args[i].(type) {
	case int32:
		return int(v)
	case uint32:
		return int(v)
	}
	panic(fmt.Sprintf("cl: argument %d is %T, not an integer", i, w.args[i]))
}

// Float returns scalar argument i. It panics if the argument is not a float.
func (w *WorkGroup) Float(i int) float32 {
	return w.args[i].(float32)
}

// GlobalArg views buffer argument i as a slice of T.
func GlobalArg[T Scalar](w *WorkGroup, i int) []T {
	return hostView[T](w.args[i].(*Buffer))
}

// LocalArg views the group-local allocation of argument i as a slice of T.
func LocalArg[T Scalar](w *WorkGroup, i int) []T {
	n := int(w.args[i].(LocalMemory)) / byteLen[T](1)
	return wordsView[T](w.local[i], n)
}
