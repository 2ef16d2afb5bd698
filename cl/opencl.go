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
	"regexp"
	"slices"
	"strings"
	"sync"
)

// KernelFunc executes one work group of a kernel on the host device.
//
// All work items of the group run on the calling goroutine. A kernel that
// uses barriers splits its body into phases and completes a phase for every
// local id before starting the next one.
type KernelFunc func(wg *WorkGroup) error

// Builtin is a native implementation of an OpenCL C kernel for the host
// device.
//
// Source is the OpenCL C program the implementation stands for. A program
// built on the host binds a kernel to a Builtin only when the declaration
// has the same name and parameter shapes and the body is the same token
// sequence as in Source. Comments, whitespace and #define values may differ.
type Builtin struct {
	// Name is the kernel function name.
	Name string

	// Source declares and defines the kernel.
	Source string

	// Requires lists macros the source must #define.
	Requires []string

	Fn KernelFunc

	params []Param
	body   string
}

var (
	builtinsMu sync.RWMutex
	builtins   = map[string][]*Builtin{}
)

// Register makes a native kernel available to host program builds. It
// panics if Source does not define the kernel or if an implementation with
// the same name and parameter shapes is already registered.
func Register(b Builtin) {
	if b.Fn == nil || b.Name == "" {
		panic("cl: Register needs a name and a kernel function")
	}
	kernels, _, problems := parseOpenCL(b.Source)
	i := slices.IndexFunc(kernels, func(k openCLKernel) bool { return k.name == b.Name })
	if i < 0 {
		panic(fmt.Sprintf("cl: Register %s: source does not define it: %s", b.Name, strings.Join(problems, "; ")))
	}
	b.params, b.body = kernels[i].params, kernels[i].body

	builtinsMu.Lock()
	defer builtinsMu.Unlock()
	for _, existing := range builtins[b.Name] {
		if slices.EqualFunc(existing.params, b.params, Param.sameShape) {
			panic("cl: duplicate kernel registration " + signature(b.Name, b.params))
		}
	}
	builtins[b.Name] = append(builtins[b.Name], &b)
}

func lookupBuiltin(name string, params []Param) *Builtin {
	builtinsMu.RLock()
	defer builtinsMu.RUnlock()
	for _, b := range builtins[name] {
		if slices.EqualFunc(b.params, params, Param.sameShape) {
			return b
		}
	}
	return nil
}

// openCLKernel is one kernel definition found in OpenCL C source.
type openCLKernel struct {
	name   string
	params []Param
	body   string // token sequence, single-space separated
}

var (
	defineRe = regexp.MustCompile(`^\s*#\s*define\s+([A-Za-z_]\w*)(?:\s+(.*?))?\s*$`)
	kernelRe = regexp.MustCompile(`(?:__kernel|\bkernel)\s+void\s+([A-Za-z_]\w*)\s*\(([^)]*)\)`)
	tokenRe  = regexp.MustCompile(`[A-Za-z_]\w*|[0-9][\w.]*|\S`)
)

// parseOpenCL collects the #define constants and kernel definitions of an
// OpenCL C source. Kernels whose declaration cannot be parsed are reported
// in problems and left out.
func parseOpenCL(source string) ([]openCLKernel, map[string]string, []string) {
	var problems []string
	src := stripComments(source)

	defines := map[string]string{}
	var body strings.Builder
	for line := range strings.Lines(src) {
		if m := defineRe.FindStringSubmatch(strings.TrimRight(line, "\r\n")); m != nil {
			defines[m[1]] = m[2]
			body.WriteString("\n")
			continue
		}
		body.WriteString(line)
	}
	code := body.String()

	if err := checkBalanced(code); err != nil {
		return nil, defines, []string{err.Error()}
	}

	var kernels []openCLKernel
	matches := kernelRe.FindAllStringSubmatchIndex(code, -1)
	if len(matches) == 0 {
		problems = append(problems, "no __kernel functions found")
	}
	for _, m := range matches {
		name := code[m[2]:m[3]]
		if slices.ContainsFunc(kernels, func(k openCLKernel) bool { return k.name == name }) {
			problems = append(problems, fmt.Sprintf("kernel %s: defined twice", name))
			continue
		}
		params, err := parseParams(code[m[4]:m[5]])
		if err != nil {
			problems = append(problems, fmt.Sprintf("kernel %s: %v", name, err))
			continue
		}
		fnBody, ok := braceBlock(code[m[1]:])
		if !ok {
			problems = append(problems, fmt.Sprintf("kernel %s: declaration has no body", name))
			continue
		}
		kernels = append(kernels, openCLKernel{
			name:   name,
			params: params,
			body:   strings.Join(tokenRe.FindAllString(fnBody, -1), " "),
		})
	}
	return kernels, defines, problems
}

// braceBlock returns the contents of the {...} block that s starts with,
// after leading white space. Braces in s are known to be balanced.
func braceBlock(s string) (string, bool) {
	s = strings.TrimLeft(s, " \t\r\n")
	if !strings.HasPrefix(s, "{") {
		return "", false
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[1:i], true
			}
		}
	}
	return "", false
}

// parseParams parses a kernel parameter list such as
// "__global const float *a, const unsigned int n".
func parseParams(list string) ([]Param, error) {
	list = strings.TrimSpace(list)
	if list == "" || list == "void" {
		return nil, nil
	}
	var params []Param
	for raw := range strings.SplitSeq(list, ",") {
		p, err := parseParam(raw)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, nil
}

func parseParam(raw string) (Param, error) {
	var (
		p        Param
		typed    bool
		unsigned bool
	)
	for _, tok := range strings.Fields(strings.ReplaceAll(raw, "*", " * ")) {
		switch tok {
		case "__global", "global":
			p.Space = SpaceGlobal
		case "__constant", "constant":
			p.Space = SpaceConstant
		case "__local", "local":
			p.Space = SpaceLocal
		case "__private", "private":
			p.Space = SpacePrivate
		case "const", "restrict", "__restrict", "volatile", "signed":
		case "*":
			if p.Pointer {
				return p, fmt.Errorf("parameter %q: pointers to pointers are not allowed", strings.TrimSpace(raw))
			}
			p.Pointer = true
		case "unsigned":
			unsigned, typed, p.Type = true, true, TypeUint
		case "float":
			p.Type, typed = TypeFloat, true
		case "int":
			if !unsigned {
				p.Type = TypeInt
			}
			typed = true
		case "uint":
			p.Type, typed = TypeUint, true
		default:
			p.Name = tok
		}
	}
	if !typed {
		return p, fmt.Errorf("parameter %q: unsupported type", strings.TrimSpace(raw))
	}
	if unsigned && p.Type == TypeFloat {
		return p, fmt.Errorf("parameter %q: unsigned float", strings.TrimSpace(raw))
	}
	if p.Pointer && p.Space == SpacePrivate {
		return p, fmt.Errorf("parameter %q: pointer arguments need an address space", strings.TrimSpace(raw))
	}
	if !p.Pointer && p.Space != SpacePrivate {
		return p, fmt.Errorf("parameter %q: %s applies to pointers only", strings.TrimSpace(raw), p.Space)
	}
	return p, nil
}

// stripComments blanks // and /* */ comments, keeping line breaks so line
// based directives stay intact. OpenCL C and WGSL share the syntax.
func stripComments(src string) string {
	var b strings.Builder
	b.Grow(len(src))
	for i := 0; i < len(src); i++ {
		switch {
		case strings.HasPrefix(src[i:], "//"):
			for i < len(src) && src[i] != '\n' {
				i++
			}
			if i < len(src) {
				b.WriteByte('\n')
			}
		case strings.HasPrefix(src[i:], "/*"):
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				end = len(src) - i - 2
			}
			b.WriteString(strings.Repeat("\n", strings.Count(src[i:i+2+end], "\n")))
			i += end + 3
		default:
			b.WriteByte(src[i])
		}
	}
	return b.String()
}

func checkBalanced(code string) error {
	var stack []byte
	pairs := map[byte]byte{')': '(', ']': '[', '}': '{'}
	for i := 0; i < len(code); i++ {
		switch c := code[i]; c {
		case '(', '[', '{':
			stack = append(stack, c)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != pairs[c] {
				return fmt.Errorf("unexpected %q", c)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		return fmt.Errorf("unclosed %q", stack[len(stack)-1])
	}
	return nil
}
