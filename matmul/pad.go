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

import "fmt"

// NextPowerOfTwo returns the smallest power of two >= x. NextPowerOfTwo(0)
// is 1. Results above 1<<31 do not fit and wrap to 0.
func NextPowerOfTwo(x uint32) uint32 {
	if x == 0 {
		return 1
	}
	x--
	x |= x >> 1
	x |= x >> 2
	x |= x >> 4
	x |= x >> 8
	x |= x >> 16
	return x + 1
}

// paddedDimension is the order of the square the tiled engine pads A, B and
// C to.
func paddedDimension(a, b Dimensions) int {
	return int(NextPowerOfTwo(uint32(max(a.Rows, a.Cols, b.Rows, b.Cols))))
}

// PadToSquare returns an n x n copy of m, zero-extended with trailing rows
// and columns.
func PadToSquare[T Element](m Matrix[T], n int) (Matrix[T], error) {
	if n < m.Rows || n < m.Cols {
		return Matrix[T]{}, fmt.Errorf("pad %s to %dx%d: %w", m.Dims(), n, n, ErrDimension)
	}
	if m.Rows == n && m.Cols == n {
		return m.Clone(), nil
	}
	out := NewMatrix[T](n, n)
	for i := range m.Rows {
		copy(out.Row(i), m.Row(i))
	}
	return out, nil
}

// Unpad returns a copy of the leading rows x cols block of m.
func Unpad[T Element](m Matrix[T], rows, cols int) (Matrix[T], error) {
	if rows < 0 || cols < 0 || rows > m.Rows || cols > m.Cols {
		return Matrix[T]{}, fmt.Errorf("unpad %s to %dx%d: %w", m.Dims(), rows, cols, ErrDimension)
	}
	out := NewMatrix[T](rows, cols)
	for i := range rows {
		copy(out.Row(i), m.Row(i)[:cols])
	}
	return out, nil
}
