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

import "errors"

var (
	// ErrIncompatibleDimensions is returned when the column count of A
	// differs from the row count of B.
	ErrIncompatibleDimensions = errors.New("matmul: incompatible dimensions")

	// ErrZeroDimension is returned when a matrix has no rows or no columns.
	ErrZeroDimension = errors.New("matmul: zero dimension")

	// ErrUnsupportedType is returned when no device program exists for an
	// element type.
	ErrUnsupportedType = errors.New("matmul: unsupported element type")

	// ErrDimension reports an invalid padding or unpadding target, or an
	// operand dimension above MaxDimension. It signals misuse of the package
	// rather than a recoverable condition.
	ErrDimension = errors.New("matmul: invalid target dimension")

	// ErrDeviceProgram is returned when a device program source is missing
	// or the device rejects it.
	ErrDeviceProgram = errors.New("matmul: device program")

	// ErrDeviceBuffer is returned when allocating, transferring or computing
	// on device memory fails.
	ErrDeviceBuffer = errors.New("matmul: device buffer")

	// ErrInvalidOption is returned for an out-of-range engine option.
	ErrInvalidOption = errors.New("matmul: invalid option")
)
