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

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// AddressSpace is the OpenCL address space qualifier of a kernel parameter.
type AddressSpace int

const (
	SpacePrivate AddressSpace = iota
	SpaceGlobal
	SpaceConstant
	SpaceLocal
)

// String returns the OpenCL qualifier spelling.
func (s AddressSpace) String() string {
	switch s {
	case SpaceGlobal:
		return "__global"
	case SpaceConstant:
		return "__constant"
	case SpaceLocal:
		return "__local"
	default:
		return "__private"
	}
}

// ScalarType is the element type of a kernel parameter.
type ScalarType int

const (
	TypeFloat ScalarType = iota
	TypeInt
	TypeUint
)

// String returns the OpenCL C spelling.
func (t ScalarType) String() string {
	switch t {
	case TypeFloat:
		return "float"
	case TypeInt:
		return "int"
	case TypeUint:
		return "uint"
	}
	return "unknown"
}

// Param is one kernel parameter. WGSL programs describe their bindings with
// the same shapes: storage arrays are __global pointers, workgroup arrays
// are __local pointers and uniform block fields are scalars.
type Param struct {
	Space   AddressSpace
	Type    ScalarType
	Pointer bool
	Name    string
}

// String renders the parameter without its name, e.g. "__global float*".
func (p Param) String() string {
	if !p.Pointer {
		return p.Type.String()
	}
	return p.Space.String() + " " + p.Type.String() + "*"
}

func (p Param) sameShape(o Param) bool {
	return p.Space == o.Space && p.Type == o.Type && p.Pointer == o.Pointer
}

// Program is a device program created from source in the device's
// Language.
type Program struct {
	ctx    *Context
	source string
	built  bool
	log    string
	exe    *executable
}

// CreateProgramWithSource creates an unbuilt program.
func (c *Context) CreateProgramWithSource(source string) (*Program, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("empty program source: %w", ErrInvalidValue)
	}
	return &Program{ctx: c, source: source}, nil
}

// Build compiles the program for the context's device. On failure the
// returned error wraps ErrBuildProgramFailure and BuildLog describes every
// problem found.
func (p *Program) Build() error {
	if err := p.ctx.check(); err != nil {
		return err
	}
	if p.built {
		return nil
	}
	exe, problems := p.ctx.device.backend.compile(p.source)
	if len(problems) > 0 {
		p.log = strings.Join(problems, "\n")
		return fmt.Errorf("%w:\n%s", ErrBuildProgramFailure, p.log)
	}
	p.exe = exe
	p.built = true
	p.log = ""
	return nil
}

// BuildLog returns the diagnostics of the last failed build.
func (p *Program) BuildLog() string {
	return p.log
}

// Define returns the value of a compile-time constant of the built source.
func (p *Program) Define(name string) (string, bool) {
	if !p.built {
		return "", false
	}
	v, ok := p.exe.defines[name]
	return v, ok
}

// KernelNames returns the kernels of a built program, sorted.
func (p *Program) KernelNames() []string {
	if !p.built {
		return nil
	}
	return slices.Sorted(maps.Keys(p.exe.entries))
}

// CreateKernel returns a kernel object for one entry point of a built program.
func (p *Program) CreateKernel(name string) (*Kernel, error) {
	if !p.built {
		return nil, ErrInvalidProgramExecutable
	}
	e, ok := p.exe.entries[name]
	if !ok {
		return nil, fmt.Errorf("kernel %q: %w", name, ErrInvalidKernelName)
	}
	return &Kernel{
		prog:  p,
		entry: e,
		args:  make([]any, len(e.params)),
	}, nil
}

// Declarations parses src as lang without a device and returns the
// parameter list of every kernel it declares. It checks declarations only:
// bodies are neither compiled nor matched against native kernels.
func Declarations(lang Language, src string) (map[string][]Param, error) {
	var (
		decls    map[string][]Param
		problems []string
	)
	switch lang {
	case OpenCLC:
		var kernels []openCLKernel
		kernels, _, problems = parseOpenCL(src)
		decls = make(map[string][]Param, len(kernels))
		for _, k := range kernels {
			decls[k.name] = k.params
		}
	case WGSL:
		var mod *wgslModule
		mod, problems = parseWGSL(src)
		if mod != nil {
			decls = make(map[string][]Param, len(mod.entries))
			for _, name := range mod.entries {
				decls[name] = mod.params()
			}
		}
	default:
		return nil, fmt.Errorf("%s: %w", lang, ErrInvalidValue)
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w:\n%s", ErrBuildProgramFailure, strings.Join(problems, "\n"))
	}
	return decls, nil
}
