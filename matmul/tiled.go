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
	"strconv"

	"github.com/go-highway/clmatmul/cl"
	"github.com/go-highway/clmatmul/kernels"
)

// Tiled multiplies float32 matrices padded to a power-of-two square. The
// padded order is split across work groups; each work item computes one row
// of C while its group stages columns of B in local memory.
type Tiled struct {
	engine[float32]
	padded int
	local  int
}

// NewTiled validates the shapes, fills A and B with random values and builds
// the tiled program for the padded order. Validation errors are returned
// before any device resource is touched.
func NewTiled(dc *cl.DeviceContext, a, b Dimensions, et ElementType, opts ...Option) (*Tiled, error) {
	if err := checkOperands(a, b); err != nil {
		return nil, err
	}
	if et != Float32 {
		return nil, fmt.Errorf("tiled engine for %s: %w", et, ErrUnsupportedType)
	}
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	padded := paddedDimension(a, b)
	t := &Tiled{
		engine: newEngine[float32](dc, VariantTiled, a, b, cfg),
		padded: padded,
		local:  padded / min(cfg.workGroups, padded),
	}
	if err := t.build(map[string]string{kernels.TileMacro: strconv.Itoa(padded)}); err != nil {
		return nil, err
	}
	return t, nil
}

// PaddedDimension returns the order A, B and C are padded to on the device.
func (t *Tiled) PaddedDimension() int {
	return t.padded
}

// LocalSize returns the number of work items per work group.
func (t *Tiled) LocalSize() int {
	return t.local
}

// Compute pads the operands, multiplies them on the device and unpads the
// result. On error the engine is left as it was.
func (t *Tiled) Compute() error {
	n := t.padded
	pa, err := PadToSquare(t.a, n)
	if err != nil {
		return err
	}
	pb, err := PadToSquare(t.b, n)
	if err != nil {
		return err
	}
	pc, err := PadToSquare(t.c, n)
	if err != nil {
		return err
	}

	data, timing, err := t.run(pa.Data, pb.Data, len(pc.Data),
		[]int{n}, []int{t.local},
		cl.LocalMemory(n*Float32.Size()), int32(n))
	if err != nil {
		return err
	}
	c, err := Unpad(Matrix[float32]{Rows: n, Cols: n, Data: data}, t.aDims.Rows, t.bDims.Cols)
	if err != nil {
		return err
	}
	t.commit(c, timing)
	return nil
}

// Accuracy computes first if the current inputs have no result yet, then
// returns the interval of C - A x B against the host reference.
func (t *Tiled) Accuracy() (ErrorInterval, error) {
	return t.accuracy(t.Compute)
}
