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

	"github.com/go-highway/clmatmul/cl/workerpool"
)

// RowsPerStrip is the number of rows of C each reference worker computes
// per task.
const RowsPerStrip = 64

// ErrorInterval bounds the element-wise difference result - reference.
// Low <= 0 <= High.
type ErrorInterval struct {
	Low, High float64
}

// Exact reports whether the result matched the reference everywhere.
func (e ErrorInterval) Exact() bool {
	return e.Low == 0 && e.High == 0
}

// Within reports whether both bounds are within eps of zero.
func (e ErrorInterval) Within(eps float64) bool {
	return -e.Low <= eps && e.High <= eps
}

// String implements fmt.Stringer.
func (e ErrorInterval) String() string {
	return fmt.Sprintf("[%g, %g]", e.Low, e.High)
}

// Reference computes A x B on the host with the plain i-p-j triple loop.
// Row strips run in parallel; the summation order of each element is the
// same as a serial loop.
func Reference[T Element](a, b Matrix[T]) (Matrix[T], error) {
	return reference(defaultPool(), a, b)
}

func reference[T Element](pool *workerpool.Pool, a, b Matrix[T]) (Matrix[T], error) {
	if !a.Dims().Compatible(b.Dims()) {
		return Matrix[T]{}, fmt.Errorf("A is %s, B is %s: %w", a.Dims(), b.Dims(), ErrIncompatibleDimensions)
	}
	m, k, n := a.Rows, a.Cols, b.Cols
	c := NewMatrix[T](m, n)
	strips := (m + RowsPerStrip - 1) / RowsPerStrip
	pool.ParallelFor(strips, func(start, end int) {
		for i := start * RowsPerStrip; i < min(end*RowsPerStrip, m); i++ {
			cRow := c.Data[i*n : (i+1)*n]
			for p := range k {
				aip := a.Data[i*k+p]
				bRow := b.Data[p*n : (p+1)*n]
				for j := range cRow {
					cRow[j] += aip * bRow[j]
				}
			}
		}
	})
	return c, nil
}

// Evaluate multiplies a and b on the host and returns the interval of
// result - reference. Int32 differences wrap like the products do; float32
// differences are taken in float64.
func Evaluate[T Element](result, a, b Matrix[T]) (ErrorInterval, error) {
	return evaluate(defaultPool(), result, a, b)
}

func evaluate[T Element](pool *workerpool.Pool, result, a, b Matrix[T]) (ErrorInterval, error) {
	ref, err := reference(pool, a, b)
	if err != nil {
		return ErrorInterval{}, err
	}
	if result.Rows != ref.Rows || result.Cols != ref.Cols {
		return ErrorInterval{}, fmt.Errorf("result is %s, want %s: %w", result.Dims(), ref.Dims(), ErrDimension)
	}

	var iv ErrorInterval
	for i := range ref.Rows {
		var rowLow, rowHigh float64
		refRow := ref.Row(i)
		for j, v := range result.Row(i) {
			d := difference(v, refRow[j])
			rowLow = min(rowLow, d)
			rowHigh = max(rowHigh, d)
		}
		iv.Low = min(iv.Low, rowLow)
		iv.High = max(iv.High, rowHigh)
	}
	return iv, nil
}

func difference[T Element](x, y T) float64 {
	if _, ok := any(x).(float32); ok {
		return float64(x) - float64(y)
	}
	return float64(x - y)
}
