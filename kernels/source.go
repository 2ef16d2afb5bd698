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

// Package kernels holds the device programs for matrix multiplication and
// the native entry points the host device binds them to.
//
// Program sources are kept in an embedded txtar archive, one file per
// (algorithm, element type, language): OpenCL C for the host device and
// WGSL for WebGPU devices. Hosts load a source through a Source, optionally
// prepend compile-time constants with WithDefines, and build it with the
// cl package. Importing this package registers the native implementations
// of the OpenCL C programs with the host device.
package kernels

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/tools/txtar"

	"github.com/go-highway/clmatmul/cl"
)

// KernelName is the entry point every matrix multiplication program exports.
const KernelName = "matrix_mult"

// DirEnv names the environment variable that points FromEnv at a directory
// of program sources.
const DirEnv = "CLMATMUL_KERNEL_DIR"

// ErrNoProgram is returned when no source exists for a key.
var ErrNoProgram = errors.New("kernels: no program source")

// Key identifies a program source: the algorithm variant ("naive", "tiled"),
// the OpenCL element type ("float", "int") and the source language.
type Key struct {
	Variant string
	Type    string
	Lang    cl.Language
}

// FileName returns the source file name for the key, e.g. "tiled_float.cl"
// or "tiled_float.wgsl".
func (k Key) FileName() string {
	return k.Variant + "_" + k.Type + k.Lang.Ext()
}

// Source loads program text by key.
type Source interface {
	Load(key Key) (string, error)
}

//go:embed programs.txtar
var archiveData []byte

var (
	archiveOnce  sync.Once
	archiveFiles map[string]string
)

func archive() map[string]string {
	archiveOnce.Do(func() {
		ar := txtar.Parse(archiveData)
		archiveFiles = make(map[string]string, len(ar.Files))
		for _, f := range ar.Files {
			archiveFiles[f.Name] = string(f.Data)
		}
	})
	return archiveFiles
}

type embedded struct{}

// Embedded returns the sources compiled into the binary.
func Embedded() Source {
	return embedded{}
}

func (embedded) Load(key Key) (string, error) {
	src, ok := archive()[key.FileName()]
	if !ok {
		return "", fmt.Errorf("%s: %w", key.FileName(), ErrNoProgram)
	}
	return src, nil
}

// EmbeddedFiles lists the file names in the embedded archive, sorted.
func EmbeddedFiles() []string {
	return slices.Sorted(maps.Keys(archive()))
}

// Dir returns a Source reading "<variant>_<type>.cl" and
// "<variant>_<type>.wgsl" files from dir.
func Dir(dir string) Source {
	return dirSource(dir)
}

type dirSource string

func (d dirSource) Load(key Key) (string, error) {
	path := filepath.Join(string(d), key.FileName())
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%s: %w", path, ErrNoProgram)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FromEnv returns Dir($CLMATMUL_KERNEL_DIR) when the variable is set and the
// embedded sources otherwise.
func FromEnv() Source {
	if dir := os.Getenv(DirEnv); dir != "" {
		return Dir(dir)
	}
	return Embedded()
}

// WithDefines prepends one compile-time constant per entry, sorted by name,
// to src: "#define NAME VALUE" for OpenCL C and "const NAME = VALUE;" for
// WGSL.
func WithDefines(lang cl.Language, src string, defines map[string]string) string {
	if len(defines) == 0 {
		return src
	}
	var b strings.Builder
	for _, name := range slices.Sorted(maps.Keys(defines)) {
		b.WriteString(lang.Define(name, defines[name]))
		b.WriteByte('\n')
	}
	b.WriteString(src)
	return b.String()
}
