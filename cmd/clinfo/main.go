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

// Command clinfo prints the compute platforms and devices available to
// clmatmul, and checks that every embedded program in the language of the
// default device builds.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/go-highway/clmatmul/cl"
	"github.com/go-highway/clmatmul/kernels"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("clinfo: ")
	if err := report(os.Stdout); err != nil {
		log.Fatalf("%v", err)
	}
}

func report(w io.Writer) error {
	title := cases.Title(language.English)
	field := func(indent int, name string, value any) {
		fmt.Fprintf(w, "%s%-22s %v\n", strings.Repeat("  ", indent), title.String(name)+":", value)
	}

	field(0, "host", fmt.Sprintf("%s/%s, %d CPUs", runtime.GOOS, runtime.GOARCH, runtime.NumCPU()))
	if cl.NoSIMDEnv() {
		field(0, "simd", "disabled by CLDEV_NO_SIMD")
	}
	if err := cl.GPUError(); err != nil {
		field(0, "webgpu", err)
	}
	fmt.Fprintln(w)

	for i, p := range cl.Platforms() {
		fmt.Fprintf(w, "Platform #%d\n", i)
		field(1, "name", p.Name)
		field(1, "vendor", p.Vendor)
		field(1, "version", p.Version)
		for j, d := range p.Devices() {
			fmt.Fprintf(w, "  Device #%d\n", j)
			field(2, "name", d.Name)
			field(2, "vendor", d.Vendor)
			field(2, "type", d.Type)
			field(2, "language", d.Language)
			if d.Type == cl.DeviceTypeCPU {
				field(2, "simd level", d.Level)
				field(2, "simd width", fmt.Sprintf("%d bytes", d.Width))
				field(2, "compute units", d.ComputeUnits)
			}
			field(2, "max work group size", d.MaxWorkGroupSize)
			field(2, "local memory", fmt.Sprintf("%d KiB", d.LocalMemSize/1024))
			field(2, "max allocation", fmt.Sprintf("%d MiB", d.MaxMemAllocSize>>20))
			field(2, "extensions", strings.Join(d.Extensions(), " "))
		}
	}
	fmt.Fprintln(w)

	dc, err := cl.NewDeviceContext()
	if err != nil {
		return err
	}
	defer dc.Close()

	lang := dc.Device().Language
	fmt.Fprintf(w, "Programs (%s, %s)\n", dc.Device().Name, lang)
	files := lo.Filter(kernels.EmbeddedFiles(), func(name string, _ int) bool {
		return strings.HasSuffix(name, lang.Ext())
	})
	for _, name := range files {
		variant, typ, _ := strings.Cut(strings.TrimSuffix(name, lang.Ext()), "_")
		key := kernels.Key{Variant: variant, Type: typ, Lang: lang}
		status, err := buildStatus(dc, key)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %-22s %s\n", name+":", status)
	}
	return nil
}

// buildStatus builds a program with a small tile and lists its kernels.
func buildStatus(dc *cl.DeviceContext, key kernels.Key) (string, error) {
	src, err := kernels.Embedded().Load(key)
	if err != nil {
		return "", err
	}
	src = kernels.WithDefines(key.Lang, src, map[string]string{kernels.TileMacro: "32"})
	prog, err := dc.Context.CreateProgramWithSource(src)
	if err != nil {
		return "", err
	}
	if err := prog.Build(); err != nil {
		return "build failed: " + strings.ReplaceAll(prog.BuildLog(), "\n", "; "), nil
	}
	names := lo.Map(prog.KernelNames(), func(n string, _ int) string { return n + "()" })
	return "ok, " + strings.Join(names, ", "), nil
}
