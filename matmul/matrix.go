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
	"math/rand/v2"
	"slices"
	"strings"
)

// Dimensions is the shape of a matrix.
type Dimensions struct {
	Rows, Cols int
}

// Compatible reports whether a matrix of shape d can be multiplied by one of
// shape b, i.e. d.Cols == b.Rows.
func (d Dimensions) Compatible(b Dimensions) bool {
	return d.Cols == b.Rows
}

// String renders the shape as "RxC".
func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Rows, d.Cols)
}

// MaxDimension is the largest row or column count an engine accepts. Device
// programs index with 32-bit integers, and the tiled engine's padded order
// must stay a power of two that fits in them.
const MaxDimension = 1 << 31

// checkOperands validates the shapes of A and B for C = A x B.
func checkOperands(a, b Dimensions) error {
	if !a.Compatible(b) {
		return fmt.Errorf("A is %s, B is %s: %w", a, b, ErrIncompatibleDimensions)
	}
	if a.Rows <= 0 || a.Cols <= 0 || b.Rows <= 0 || b.Cols <= 0 {
		return fmt.Errorf("A is %s, B is %s: %w", a, b, ErrZeroDimension)
	}
	if int64(max(a.Rows, a.Cols, b.Rows, b.Cols)) > MaxDimension {
		return fmt.Errorf("A is %s, B is %s, limit %d: %w", a, b, MaxDimension, ErrDimension)
	}
	return nil
}

// ElementType is the scalar type of matrix elements.
type ElementType int

const (
	Float32 ElementType = iota
	Int32
)

// String implements fmt.Stringer.
func (et ElementType) String() string {
	switch et {
	case Float32:
		return "float32"
	case Int32:
		return "int32"
	}
	return fmt.Sprintf("ElementType(%d)", int(et))
}

// Size returns the element size in bytes.
func (et ElementType) Size() int {
	return 4
}

// clType returns the OpenCL C spelling used to key device programs.
func (et ElementType) clType() string {
	switch et {
	case Float32:
		return "float"
	case Int32:
		return "int"
	}
	return ""
}

// ParseElementType accepts "float", "float32", "int" and "int32".
func ParseElementType(s string) (ElementType, error) {
	switch strings.ToLower(s) {
	case "float", "float32":
		return Float32, nil
	case "int", "int32":
		return Int32, nil
	}
	return 0, fmt.Errorf("%q: %w", s, ErrUnsupportedType)
}

// Element is the set of Go types matrices can hold.
type Element interface {
	float32 | int32
}

func elementType[T Element]() ElementType {
	var zero T
	if _, ok := any(zero).(int32); ok {
		return Int32
	}
	return Float32
}

// Matrix is a dense row-major matrix.
type Matrix[T Element] struct {
	Rows, Cols int
	Data       []T
}

// NewMatrix returns a zero rows x cols matrix.
func NewMatrix[T Element](rows, cols int) Matrix[T] {
	return Matrix[T]{Rows: rows, Cols: cols, Data: make([]T, rows*cols)}
}

// FromRows builds a matrix from a slice of equally long rows.
func FromRows[T Element](rows [][]T) (Matrix[T], error) {
	if len(rows) == 0 {
		return Matrix[T]{}, nil
	}
	m := NewMatrix[T](len(rows), len(rows[0]))
	for i, r := range rows {
		if len(r) != m.Cols {
			return Matrix[T]{}, fmt.Errorf("row %d has %d columns, want %d: %w", i, len(r), m.Cols, ErrDimension)
		}
		copy(m.Row(i), r)
	}
	return m, nil
}

// Dims returns the shape of m.
func (m Matrix[T]) Dims() Dimensions {
	return Dimensions{Rows: m.Rows, Cols: m.Cols}
}

// At returns element (i, j).
func (m Matrix[T]) At(i, j int) T {
	return m.Data[i*m.Cols+j]
}

// Set stores v at (i, j).
func (m Matrix[T]) Set(i, j int, v T) {
	m.Data[i*m.Cols+j] = v
}

// Row returns row i, sharing storage with m.
func (m Matrix[T]) Row(i int) []T {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// Clone returns a deep copy of m.
func (m Matrix[T]) Clone() Matrix[T] {
	return Matrix[T]{Rows: m.Rows, Cols: m.Cols, Data: slices.Clone(m.Data)}
}

// Equal reports whether m and o have the same shape and elements.
func (m Matrix[T]) Equal(o Matrix[T]) bool {
	return m.Rows == o.Rows && m.Cols == o.Cols && slices.Equal(m.Data, o.Data)
}

// Bytes returns the size of the element data in bytes.
func (m Matrix[T]) Bytes() int {
	return len(m.Data) * elementType[T]().Size()
}

// Rows2D copies m into a slice of rows.
func (m Matrix[T]) Rows2D() [][]T {
	out := make([][]T, m.Rows)
	for i := range out {
		out[i] = slices.Clone(m.Row(i))
	}
	return out
}

// randomMatrix fills a matrix of shape d: float32 elements are uniform in
// [0, 1), int32 elements uniform in [-1_000_000, 1_000_000).
func randomMatrix[T Element](rng *rand.Rand, d Dimensions) Matrix[T] {
	m := NewMatrix[T](d.Rows, d.Cols)
	switch data := any(m.Data).(type) {
	case []float32:
		for i := range data {
			data[i] = rng.Float32()
		}
	case []int32:
		for i := range data {
			data[i] = int32(rng.Int64N(2_000_000) - 1_000_000)
		}
	}
	return m
}
