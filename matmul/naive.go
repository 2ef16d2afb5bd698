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
	"github.com/go-highway/clmatmul/cl"
)

// Naive multiplies matrices of their natural shape with one work item per
// element of C.
type Naive[T Element] struct {
	engine[T]
}

// NewNaive validates the shapes, fills A and B with random values and builds
// the naive program for T.
func NewNaive[T Element](dc *cl.DeviceContext, a, b Dimensions, opts ...Option) (*Naive[T], error) {
	if err := checkOperands(a, b); err != nil {
		return nil, err
	}
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	e := &Naive[T]{engine: newEngine[T](dc, VariantNaive, a, b, cfg)}
	if err := e.build(nil); err != nil {
		return nil, err
	}
	return e, nil
}

// Compute multiplies A and B on the device over a (rows of A, columns of B)
// range. On error the engine is left as it was.
func (e *Naive[T]) Compute() error {
	rows, cols := e.aDims.Rows, e.bDims.Cols
	data, timing, err := e.run(e.a.Data, e.b.Data, rows*cols,
		[]int{rows, cols}, nil,
		uint32(e.aDims.Cols), uint32(cols))
	if err != nil {
		return err
	}
	e.commit(Matrix[T]{Rows: rows, Cols: cols, Data: data}, timing)
	return nil
}

// Accuracy computes first if the current inputs have no result yet, then
// returns the interval of C - A x B against the host reference.
func (e *Naive[T]) Accuracy() (ErrorInterval, error) {
	return e.accuracy(e.Compute)
}
