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

package matmul

import (
	"fmt"
	"time"

	"github.com/go-highway/clmatmul/cl"
	"github.com/go-highway/clmatmul/kernels"
)

// Variant selects the device algorithm.
type Variant int

const (
	// VariantTiled pads to a power-of-two square and stages B in group-local
	// memory. Float32 only.
	VariantTiled Variant = iota

	// VariantNaive computes one element of C per work item without padding.
	VariantNaive
)

// String returns the program key name of the variant.
func (v Variant) String() string {
	switch v {
	case VariantTiled:
		return "tiled"
	case VariantNaive:
		return "naive"
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

// Engine is the runtime-typed view of a Tiled or Naive engine.
type Engine interface {
	// Compute runs the upload, dispatch and download pipeline.
	Compute() error

	// Accuracy computes first if needed, then compares C with a host
	// reference product.
	Accuracy() (ErrorInterval, error)

	// ReferenceTime times one host reference multiplication of A and B.
	ReferenceTime() (time.Duration, error)

	Timing() TimingRecord
	Variant() Variant
	ElementType() ElementType
	Computed() bool
}

// New builds the engine for a variant and element type chosen at run time.
func New(dc *cl.DeviceContext, v Variant, a, b Dimensions, et ElementType, opts ...Option) (Engine, error) {
	var (
		e   Engine
		err error
	)
	switch v {
	case VariantTiled:
		e, err = NewTiled(dc, a, b, et, opts...)
	case VariantNaive:
		switch et {
		case Float32:
			e, err = NewNaive[float32](dc, a, b, opts...)
		case Int32:
			e, err = NewNaive[int32](dc, a, b, opts...)
		default:
			if err = checkOperands(a, b); err == nil {
				err = fmt.Errorf("naive engine for %s: %w", et, ErrUnsupportedType)
			}
		}
	default:
		err = fmt.Errorf("unknown variant %s: %w", v, ErrInvalidOption)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

type state int

const (
	uninitialized state = iota
	computed
)

// engine holds what both variants share: the inputs, the last result, the
// phase timings and the built device program. It is not safe for
// concurrent use.
type engine[T Element] struct {
	dc      *cl.DeviceContext
	cfg     *config
	variant Variant
	aDims   Dimensions
	bDims   Dimensions
	a, b, c Matrix[T]
	timing  TimingRecord
	state   state
	program *cl.Program
}

func newEngine[T Element](dc *cl.DeviceContext, v Variant, a, b Dimensions, cfg *config) engine[T] {
	rng := cfg.rng()
	return engine[T]{
		dc:      dc,
		cfg:     cfg,
		variant: v,
		aDims:   a,
		bDims:   b,
		a:       randomMatrix[T](rng, a),
		b:       randomMatrix[T](rng, b),
		c:       NewMatrix[T](a.Rows, b.Cols),
		timing:  unmeasured(),
	}
}

// build loads and builds the program for the engine's variant and type, in
// the language of the device.
func (e *engine[T]) build(defines map[string]string) error {
	lang := e.dc.Device().Language
	key := kernels.Key{Variant: e.variant.String(), Type: elementType[T]().clType(), Lang: lang}
	src, err := e.cfg.programs.Load(key)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceProgram, err)
	}
	prog, err := e.dc.Context.CreateProgramWithSource(kernels.WithDefines(lang, src, defines))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDeviceProgram, key.FileName(), err)
	}
	if err := prog.Build(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDeviceProgram, key.FileName(), err)
	}
	e.program = prog
	return nil
}

// run uploads a and b, dispatches the program's kernel over global/local
// with args appended after the three buffers, and downloads cLen elements
// of C. Each phase blocks until the device finishes it. Buffers live for
// the duration of the call.
func (e *engine[T]) run(a, b []T, cLen int, global, local []int, args ...any) ([]T, TimingRecord, error) {
	timing := unmeasured()
	ctx, q := e.dc.Context, e.dc.Queue
	size := elementType[T]().Size()

	bufA, err := ctx.CreateBuffer(cl.MemReadOnly, len(a)*size)
	if err != nil {
		return nil, timing, fmt.Errorf("%w: A: %w", ErrDeviceBuffer, err)
	}
	defer bufA.Release()
	bufB, err := ctx.CreateBuffer(cl.MemReadOnly, len(b)*size)
	if err != nil {
		return nil, timing, fmt.Errorf("%w: B: %w", ErrDeviceBuffer, err)
	}
	defer bufB.Release()
	bufC, err := ctx.CreateBuffer(cl.MemWriteOnly, cLen*size)
	if err != nil {
		return nil, timing, fmt.Errorf("%w: C: %w", ErrDeviceBuffer, err)
	}
	defer bufC.Release()

	start := time.Now()
	evA, err := cl.EnqueueWrite(q, bufA, a)
	if err != nil {
		return nil, timing, fmt.Errorf("%w: upload A: %w", ErrDeviceBuffer, err)
	}
	evB, err := cl.EnqueueWrite(q, bufB, b)
	if err != nil {
		return nil, timing, fmt.Errorf("%w: upload B: %w", ErrDeviceBuffer, err)
	}
	if err := waitAll(evA, evB); err != nil {
		return nil, timing, fmt.Errorf("%w: upload: %w", ErrDeviceBuffer, err)
	}
	timing.Upload = time.Since(start)

	k, err := e.program.CreateKernel(kernels.KernelName)
	if err != nil {
		return nil, timing, fmt.Errorf("%w: %w", ErrDeviceProgram, err)
	}
	if err := k.SetArgs(append([]any{bufA, bufB, bufC}, args...)...); err != nil {
		return nil, timing, fmt.Errorf("%w: %w", ErrDeviceProgram, err)
	}
	start = time.Now()
	ev, err := q.EnqueueNDRange(k, global, local)
	if err != nil {
		return nil, timing, fmt.Errorf("%w: dispatch: %w", ErrDeviceBuffer, err)
	}
	if err := ev.Wait(); err != nil {
		return nil, timing, fmt.Errorf("%w: execute: %w", ErrDeviceBuffer, err)
	}
	timing.Execution = time.Since(start)

	c := make([]T, cLen)
	start = time.Now()
	ev, err = cl.EnqueueRead(q, bufC, c)
	if err != nil {
		return nil, timing, fmt.Errorf("%w: download: %w", ErrDeviceBuffer, err)
	}
	if err := ev.Wait(); err != nil {
		return nil, timing, fmt.Errorf("%w: download: %w", ErrDeviceBuffer, err)
	}
	timing.Download = time.Since(start)
	return c, timing, nil
}

func waitAll(events ...*cl.Event) error {
	for _, ev := range events {
		if err := ev.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// commit records a successful Compute.
func (e *engine[T]) commit(c Matrix[T], timing TimingRecord) {
	e.c = c
	e.timing = timing
	e.state = computed
}

func (e *engine[T]) accuracy(compute func() error) (ErrorInterval, error) {
	if e.state == uninitialized {
		if err := compute(); err != nil {
			return ErrorInterval{}, err
		}
	}
	return evaluate(e.cfg.pool, e.c, e.a, e.b)
}

// ReferenceTime times one host reference multiplication of A and B.
func (e *engine[T]) ReferenceTime() (time.Duration, error) {
	start := time.Now()
	if _, err := reference(e.cfg.pool, e.a, e.b); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// SetInputs replaces A and B with copies of a and b, which must keep the
// shapes the engine was built with. C and the timings are reset.
func (e *engine[T]) SetInputs(a, b Matrix[T]) error {
	if a.Dims() != e.aDims || b.Dims() != e.bDims || len(a.Data) != a.Rows*a.Cols || len(b.Data) != b.Rows*b.Cols {
		return fmt.Errorf("inputs %s and %s, want %s and %s: %w", a.Dims(), b.Dims(), e.aDims, e.bDims, ErrDimension)
	}
	e.a, e.b = a.Clone(), b.Clone()
	e.c = NewMatrix[T](e.aDims.Rows, e.bDims.Cols)
	e.timing = unmeasured()
	e.state = uninitialized
	return nil
}

// A returns a copy of the left operand.
func (e *engine[T]) A() Matrix[T] { return e.a.Clone() }

// B returns a copy of the right operand.
func (e *engine[T]) B() Matrix[T] { return e.b.Clone() }

// C returns a copy of the last result, all zeros before the first Compute.
func (e *engine[T]) C() Matrix[T] { return e.c.Clone() }

// Timing returns the phase durations of the last successful Compute.
func (e *engine[T]) Timing() TimingRecord { return e.timing }

// Variant returns the device algorithm.
func (e *engine[T]) Variant() Variant { return e.variant }

// ElementType returns the element type of the matrices.
func (e *engine[T]) ElementType() ElementType { return elementType[T]() }

// Computed reports whether C holds the result for the current inputs.
func (e *engine[T]) Computed() bool { return e.state == computed }
