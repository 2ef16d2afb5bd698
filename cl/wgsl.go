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
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Work group size constants. WebGPU fixes the work group size in the
// shader, so the runtime prepends these constants, set to the local size of
// the dispatch, to every WGSL module it compiles. Entry points declare
// @workgroup_size(WG_X, WG_Y, WG_Z).
var wgslSizeConsts = [3]string{"WG_X", "WG_Y", "WG_Z"}

// wgslPrelude declares the work group size constants for local.
func wgslPrelude(local [3]int) string {
	var b strings.Builder
	for d, name := range wgslSizeConsts {
		fmt.Fprintf(&b, "const %s: u32 = %du;\n", name, local[d])
	}
	return b.String()
}

type slotKind int

const (
	// slotStorage is a storage array bound to a Buffer argument.
	slotStorage slotKind = iota

	// slotWorkgroup is a workgroup array standing for a LocalMemory
	// argument. Its size is fixed by the source.
	slotWorkgroup

	// slotUniform is a field of the uniform block, set from a scalar
	// argument.
	slotUniform
)

// wgslSlot is one kernel parameter of a WGSL module.
type wgslSlot struct {
	param    Param
	kind     slotKind
	offset   int  // position in source, for ordering
	binding  int  // storage slots
	readOnly bool // storage slots
	capacity int  // workgroup slots: elements, 0 when not a constant
}

// wgslModule is what the runtime needs to know about a WGSL compute module.
//
// All entry points share the module-scope declarations, which form the
// kernel parameter list in source order: storage arrays, workgroup arrays,
// and the fields of the single uniform block at the position of its
// binding.
type wgslModule struct {
	defines        map[string]string
	entries        []string
	slots          []wgslSlot
	uniformBinding int // -1 without scalar parameters
}

func (m *wgslModule) params() []Param {
	return lo.Map(m.slots, func(s wgslSlot, _ int) Param { return s.param })
}

var (
	wgslConstRe     = regexp.MustCompile(`\bconst\s+([A-Za-z_]\w*)\s*(?::\s*[\w<>]+\s*)?=\s*([^;]+?)\s*;`)
	wgslStorageRe   = regexp.MustCompile(`@group\(\s*(\d+)\s*\)\s*@binding\(\s*(\d+)\s*\)\s*var\s*<\s*storage\s*(?:,\s*(read|read_write)\s*)?>\s*([A-Za-z_]\w*)\s*:\s*array\s*<\s*(\w+)\s*>\s*;`)
	wgslUniformRe   = regexp.MustCompile(`@group\(\s*(\d+)\s*\)\s*@binding\(\s*(\d+)\s*\)\s*var\s*<\s*uniform\s*>\s*([A-Za-z_]\w*)\s*:\s*([A-Za-z_]\w*)\s*;`)
	wgslWorkgroupRe = regexp.MustCompile(`var\s*<\s*workgroup\s*>\s*([A-Za-z_]\w*)\s*:\s*array\s*<\s*(\w+)\s*,\s*([^>]+?)\s*>\s*;`)
	wgslVarRe       = regexp.MustCompile(`var\s*<\s*(storage|uniform|workgroup)\b`)
	wgslStructRe    = regexp.MustCompile(`struct\s+([A-Za-z_]\w*)\s*\{([^}]*)\}`)
	wgslEntryRe     = regexp.MustCompile(`((?:@\w+\s*(?:\([^)]*\))?\s*)+)fn\s+([A-Za-z_]\w*)`)
	wgslSizeRe      = regexp.MustCompile(`@workgroup_size\s*\(([^)]*)\)`)
)

func wgslScalar(name string) (ScalarType, bool) {
	switch name {
	case "f32":
		return TypeFloat, true
	case "i32":
		return TypeInt, true
	case "u32":
		return TypeUint, true
	}
	return 0, false
}

// parseWGSL reads the module-scope declarations of a WGSL compute module.
// It checks the subset of WGSL the runtime binds arguments to; the device
// compiler checks everything else.
func parseWGSL(source string) (*wgslModule, []string) {
	code := stripComments(source)
	if err := checkBalanced(code); err != nil {
		return nil, []string{err.Error()}
	}
	depth := braceDepths(code)
	top := func(loc []int) bool { return depth[loc[0]] == 0 }

	var problems []string
	m := &wgslModule{defines: map[string]string{}, uniformBinding: -1}

	for _, loc := range wgslConstRe.FindAllStringSubmatchIndex(code, -1) {
		if top(loc) {
			m.defines[code[loc[2]:loc[3]]] = code[loc[4]:loc[5]]
		}
	}
	for _, name := range wgslSizeConsts {
		if _, ok := m.defines[name]; ok {
			problems = append(problems, fmt.Sprintf("%s is declared by the runtime", name))
		}
	}

	structs := map[string]string{}
	for _, sm := range wgslStructRe.FindAllStringSubmatch(code, -1) {
		structs[sm[1]] = sm[2]
	}

	bindings := map[int]string{}
	bind := func(group, binding, name string) (int, bool) {
		g, _ := strconv.Atoi(group)
		n, _ := strconv.Atoi(binding)
		if g != 0 {
			problems = append(problems, fmt.Sprintf("%s: only @group(0) is supported", name))
			return 0, false
		}
		if other, dup := bindings[n]; dup {
			problems = append(problems, fmt.Sprintf("%s: @binding(%d) is also used by %s", name, n, other))
			return 0, false
		}
		bindings[n] = name
		return n, true
	}

	matched := 0
	for _, loc := range wgslStorageRe.FindAllStringSubmatchIndex(code, -1) {
		matched++
		name, elem := code[loc[8]:loc[9]], code[loc[10]:loc[11]]
		typ, ok := wgslScalar(elem)
		if !ok {
			problems = append(problems, fmt.Sprintf("%s: unsupported element type %s", name, elem))
			continue
		}
		n, ok := bind(code[loc[2]:loc[3]], code[loc[4]:loc[5]], name)
		if !ok {
			continue
		}
		m.slots = append(m.slots, wgslSlot{
			param:    Param{Space: SpaceGlobal, Type: typ, Pointer: true, Name: name},
			kind:     slotStorage,
			offset:   loc[0],
			binding:  n,
			readOnly: loc[6] < 0 || code[loc[6]:loc[7]] == "read",
		})
	}

	for _, loc := range wgslWorkgroupRe.FindAllStringSubmatchIndex(code, -1) {
		matched++
		name, elem, size := code[loc[2]:loc[3]], code[loc[4]:loc[5]], code[loc[6]:loc[7]]
		typ, ok := wgslScalar(elem)
		if !ok {
			problems = append(problems, fmt.Sprintf("%s: unsupported element type %s", name, elem))
			continue
		}
		m.slots = append(m.slots, wgslSlot{
			param:    Param{Space: SpaceLocal, Type: typ, Pointer: true, Name: name},
			kind:     slotWorkgroup,
			offset:   loc[0],
			capacity: m.constInt(size),
		})
	}

	for _, loc := range wgslUniformRe.FindAllStringSubmatchIndex(code, -1) {
		matched++
		name, typeName := code[loc[6]:loc[7]], code[loc[8]:loc[9]]
		if m.uniformBinding >= 0 {
			problems = append(problems, fmt.Sprintf("%s: only one uniform block is supported", name))
			continue
		}
		fields, ok := structs[typeName]
		if !ok {
			problems = append(problems, fmt.Sprintf("%s: struct %s is not declared", name, typeName))
			continue
		}
		n, ok := bind(code[loc[2]:loc[3]], code[loc[4]:loc[5]], name)
		if !ok {
			continue
		}
		m.uniformBinding = n
		for field := range strings.SplitSeq(fields, ",") {
			fieldName, fieldType, ok := strings.Cut(field, ":")
			if strings.TrimSpace(field) == "" {
				continue
			}
			typ, scalar := wgslScalar(strings.TrimSpace(fieldType))
			if !ok || !scalar {
				problems = append(problems, fmt.Sprintf("%s: field %q is not a 32-bit scalar", typeName, strings.TrimSpace(field)))
				continue
			}
			m.slots = append(m.slots, wgslSlot{
				param:  Param{Type: typ, Name: strings.TrimSpace(fieldName)},
				kind:   slotUniform,
				offset: loc[0],
			})
		}
	}

	declared := 0
	for _, loc := range wgslVarRe.FindAllStringIndex(code, -1) {
		if top(loc) {
			declared++
		}
	}
	if declared != matched {
		problems = append(problems, fmt.Sprintf("%d of %d module-scope storage, workgroup or uniform declarations are not in a supported form", declared-matched, declared))
	}

	for _, em := range wgslEntryRe.FindAllStringSubmatch(code, -1) {
		attrs, name := em[1], em[2]
		if !strings.Contains(attrs, "@compute") {
			continue
		}
		size := wgslSizeRe.FindStringSubmatch(attrs)
		if size == nil || strings.Join(strings.Fields(strings.ReplaceAll(size[1], ",", " ")), ",") != strings.Join(wgslSizeConsts[:], ",") {
			problems = append(problems, fmt.Sprintf("entry point %s: want @workgroup_size(%s)", name, strings.Join(wgslSizeConsts[:], ", ")))
			continue
		}
		m.entries = append(m.entries, name)
	}
	if len(m.entries) == 0 && len(problems) == 0 {
		problems = append(problems, "no @compute entry points found")
	}

	if len(problems) > 0 {
		return nil, problems
	}
	slices.SortStableFunc(m.slots, func(a, b wgslSlot) int { return cmp.Compare(a.offset, b.offset) })
	return m, nil
}

// constInt evaluates an array size: an integer literal or a module
// constant holding one. It returns 0 for anything else.
func (m *wgslModule) constInt(expr string) int {
	expr = strings.TrimSpace(expr)
	if v, ok := m.defines[expr]; ok {
		expr = strings.TrimSpace(v)
	}
	n, err := strconv.Atoi(strings.TrimRight(expr, "iu"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// braceDepths returns the {} nesting depth at every byte of code.
func braceDepths(code string) []int {
	depth := make([]int, len(code)+1)
	d := 0
	for i := 0; i < len(code); i++ {
		depth[i] = d
		switch code[i] {
		case '{':
			d++
		case '}':
			d--
		}
	}
	depth[len(code)] = d
	return depth
}
