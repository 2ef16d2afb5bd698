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

package kernels

import (
	"errors"
	"fmt"

	"github.com/go-highway/clmatmul/cl"
)

// ErrOutOfBounds is returned by a kernel whose arguments would make it read
// or write outside a buffer.
var ErrOutOfBounds = errors.New("kernels: access out of bounds")

// TileMacro is the macro the tiled program sizes its private row with.
const TileMacro = "AWRK_SIZE"

func init() {
	cl.Register(cl.Builtin{
		Name:   KernelName,
		Source: hostSource("naive", "float"),
		Fn:     naiveMatMul[float32],
	})
	cl.Register(cl.Builtin{
		Name:   KernelName,
		Source: hostSource("naive", "int"),
		Fn:     naiveMatMul[int32],
	})
	cl.Register(cl.Builtin{
		Name:     KernelName,
		Source:   hostSource("tiled", "float"),
		Requires: []string{TileMacro},
		Fn:       tiledMatMul,
	})
}

// hostSource returns the embedded OpenCL C program a native kernel
// implements. The host device only runs programs whose body matches it.
func hostSource(variant, typ string) string {
	src, err := Embedded().Load(Key{Variant: variant, Type: typ, Lang: cl.OpenCLC})
	if err != nil {
		panic(err)
	}
	return src
}

// naiveMatMul computes one element of C per work item over a 2-D range of
// (rows of A, columns of B).
func naiveMatMul[T float32 | int32](wg *cl.WorkGroup) error {
	a, b, c := cl.GlobalArg[T](wg, 0), cl.GlobalArg[T](wg, 1), cl.GlobalArg[T](wg, 2)
	aCols, bCols := wg.Int(3), wg.Int(4)
	rows, cols := wg.GlobalSize(0), wg.GlobalSize(1)
	if wg.Dims() != 2 {
		return fmt.Errorf("%s: want a 2-D range, got %d-D: %w", KernelName, wg.Dims(), cl.ErrInvalidWorkDimension)
	}
	if cols > bCols || len(a) < rows*aCols || len(b) < aCols*bCols || len(c) < rows*bCols {
		return fmt.Errorf("%s: range %dx%d with a_ncol=%d b_ncol=%d over buffers of %d, %d and %d elements: %w",
			KernelName, rows, cols, aCols, bCols, len(a), len(b), len(c), ErrOutOfBounds)
	}

	for lr := range wg.LocalSize(0) {
		row := wg.GlobalID(0, lr)
		aRow := a[row*aCols : (row+1)*aCols]
		for lc := range wg.LocalSize(1) {
			col := wg.GlobalID(1, lc)
			var acc T
			for k, av := range aRow {
				acc += av * b[k*bCols+col]
			}
			c[row*bCols+col] = acc
		}
	}
	return nil
}

// tiledMatMul computes one row of a square C per work item. The group
// stages one column of B at a time in local memory; the two barriers of
// the device program separate the staging and reduction phases.
func tiledMatMul(wg *cl.WorkGroup) error {
	a, b, c := cl.GlobalArg[float32](wg, 0), cl.GlobalArg[float32](wg, 1), cl.GlobalArg[float32](wg, 2)
	bwrk := cl.LocalArg[float32](wg, 3)
	n := wg.Int(4)

	tile, err := wg.DefineInt(TileMacro)
	if err != nil {
		return fmt.Errorf("%s: %w", KernelName, err)
	}
	switch {
	case wg.Dims() != 1:
		return fmt.Errorf("%s: want a 1-D range, got %d-D: %w", KernelName, wg.Dims(), cl.ErrInvalidWorkDimension)
	case n > tile:
		return fmt.Errorf("%s: order %d exceeds %s=%d: %w", KernelName, n, TileMacro, tile, ErrOutOfBounds)
	case wg.GlobalSize(0) > n || len(bwrk) < n || len(a) < n*n || len(b) < n*n || len(c) < n*n:
		return fmt.Errorf("%s: order %d over %d rows, %d local and %d/%d/%d global elements: %w",
			KernelName, n, wg.GlobalSize(0), len(bwrk), len(a), len(b), len(c), ErrOutOfBounds)
	}

	nloc := wg.LocalSize(0)
	// Private rows of A, one per work item.
	awrk := make([]float32, nloc*n)
	for iloc := range nloc {
		i := wg.GlobalID(0, iloc)
		copy(awrk[iloc*n:(iloc+1)*n], a[i*n:(i+1)*n])
	}

	for j := range n {
		for iloc := range nloc {
			for k := iloc; k < n; k += nloc {
				bwrk[k] = b[k*n+j]
			}
		}
		// barrier
		col := bwrk[:n]
		for iloc := range nloc {
			row := awrk[iloc*n : (iloc+1)*n]
			var acc float32
			for k, av := range row {
				acc += av * col[k]
			}
			c[wg.GlobalID(0, iloc)*n+j] = acc
		}
		// barrier
	}
	return nil
}
