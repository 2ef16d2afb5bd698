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

// Package matmul multiplies dense matrices on a compute device.
//
// An engine owns its operands A and B (filled with random values at
// construction), the result C and the timings of the last run. Compute
// uploads A and B, dispatches the device kernel, downloads C and records the
// duration of each phase. Accuracy compares C with a product computed on the
// host, running Compute first if the current inputs have no result.
//
// Two algorithms are available:
//
//   - Tiled (float32 only) pads A, B and C with zeros to a square whose order
//     is the next power of two, splits the rows across work groups and stages
//     columns of B in group-local memory.
//   - Naive (float32 or int32) dispatches one work item per element of C on
//     the natural shapes.
//
// Example:
//
//	dc, err := cl.NewDeviceContext()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer dc.Close()
//
//	e, err := matmul.NewTiled(dc, matmul.Dimensions{Rows: 10, Cols: 10},
//	    matmul.Dimensions{Rows: 10, Cols: 10}, matmul.Float32)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	iv, err := e.Accuracy()
//
// Engines are not safe for concurrent use. Independent engines may run
// concurrently when each has its own cl.DeviceContext.
package matmul
