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

import "strings"

// backend is the device-specific half of the runtime: where buffer storage
// lives and how program source turns into runnable kernels.
type backend interface {
	// alloc returns storage for a buffer of size bytes.
	alloc(size int) (memory, error)

	// compile builds program source. On failure it returns the problems
	// found, one per build log line.
	compile(source string) (*executable, []string)
}

// memory is the storage behind a Buffer.
type memory interface {
	write(src []byte) error
	read(dst []byte) error
	release()
}

// executable is a built program.
type executable struct {
	defines map[string]string
	entries map[string]*entryPoint
}

// entryPoint is one kernel of a built program.
type entryPoint struct {
	name   string
	params []Param

	// launch runs one dispatch to completion. args holds one value per
	// parameter, already checked against params.
	launch func(nd ndRange, args []any) error
}

func (e *entryPoint) signature() string {
	return signature(e.name, e.params)
}

// signature renders a kernel declaration without parameter names, e.g.
// "vec_add(__global float*, uint)".
func signature(name string, params []Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.String()
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}
