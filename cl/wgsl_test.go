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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scaleWGSL = `
const TILE = 64;

@group(0) @binding(0) var<storage, read> src: array<f32>;
@group(0) @binding(2) var<storage, read_write> dst: array<f32>;

var<workgroup> tile: array<f32, TILE>;

struct Params {
    factor: f32,
    n: u32,
}
@group(0) @binding(1) var<uniform> params: Params;

// one element per invocation
@compute @workgroup_size(WG_X, WG_Y, WG_Z)
fn scale(@builtin(global_invocation_id) gid: vec3<u32>) {
    var i: u32 = gid.x;
    if (i < params.n) {
        dst[i] = src[i] * params.factor;
    }
}
`

func TestParseWGSL(t *testing.T) {
	m, problems := parseWGSL(scaleWGSL)
	require.Empty(t, problems)

	assert.Equal(t, []string{"scale"}, m.entries)
	assert.Equal(t, "64", m.defines["TILE"])
	assert.Equal(t, 1, m.uniformBinding)
	assert.Equal(t, []Param{
		{Space: SpaceGlobal, Type: TypeFloat, Pointer: true, Name: "src"},
		{Space: SpaceGlobal, Type: TypeFloat, Pointer: true, Name: "dst"},
		{Space: SpaceLocal, Type: TypeFloat, Pointer: true, Name: "tile"},
		{Type: TypeFloat, Name: "factor"},
		{Type: TypeUint, Name: "n"},
	}, m.params())

	require.Len(t, m.slots, 5)
	assert.True(t, m.slots[0].readOnly)
	assert.False(t, m.slots[1].readOnly)
	assert.Equal(t, 2, m.slots[1].binding)
	assert.Equal(t, 64, m.slots[2].capacity)

	// Function-scope vars are not parameters.
	assert.NotContains(t, m.params(), Param{Type: TypeUint, Name: "i"})
}

func TestParseWGSLFailures(t *testing.T) {
	cases := []struct {
		name    string
		src     string
		wantLog string
	}{
		{"no entry point", "@group(0) @binding(0) var<storage, read_write> x: array<f32>;", "no @compute entry points"},
		{"fixed work group size", "@compute @workgroup_size(64) fn main() {}", "want @workgroup_size(WG_X, WG_Y, WG_Z)"},
		{"runtime constant", "const WG_X = 4u;\n@compute @workgroup_size(WG_X, WG_Y, WG_Z) fn main() {}", "WG_X is declared by the runtime"},
		{"other group", strings.Replace(scaleWGSL, "@group(0) @binding(2)", "@group(1) @binding(2)", 1), "only @group(0)"},
		{"duplicate binding", strings.Replace(scaleWGSL, "@binding(2)", "@binding(0)", 1), "@binding(0) is also used by src"},
		{"element type", strings.Replace(scaleWGSL, "src: array<f32>", "src: array<f16>", 1), "unsupported element type f16"},
		{"vector field", strings.Replace(scaleWGSL, "factor: f32", "factor: vec2<f32>", 1), "not a 32-bit scalar"},
		{"missing struct", strings.Replace(scaleWGSL, "var<uniform> params: Params", "var<uniform> params: Other", 1), "struct Other is not declared"},
		{"unsupported declaration", strings.Replace(scaleWGSL, "var<workgroup> tile: array<f32, TILE>;", "var<workgroup> tile: f32;", 1), "not in a supported form"},
		{"unbalanced", "@compute @workgroup_size(WG_X, WG_Y, WG_Z) fn main() {", "unclosed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, problems := parseWGSL(tc.src)
			assert.Nil(t, m)
			assert.Contains(t, strings.Join(problems, "\n"), tc.wantLog)
		})
	}
}

func TestWGSLPrelude(t *testing.T) {
	assert.Equal(t, "const WG_X: u32 = 16u;\nconst WG_Y: u32 = 8u;\nconst WG_Z: u32 = 1u;\n", wgslPrelude([3]int{16, 8, 1}))
}

func TestWGSLDeclarations(t *testing.T) {
	decls, err := Declarations(WGSL, scaleWGSL)
	require.NoError(t, err)
	require.Contains(t, decls, "scale")
	assert.Len(t, decls["scale"], 5)

	_, err = Declarations(WGSL, "fn helper() {}")
	require.ErrorIs(t, err, ErrBuildProgramFailure)
}

func TestHostRejectsWGSL(t *testing.T) {
	dc := newTestDeviceContext(t)
	prog, err := dc.Context.CreateProgramWithSource(scaleWGSL)
	require.NoError(t, err)
	require.ErrorIs(t, prog.Build(), ErrBuildProgramFailure)
	assert.Contains(t, prog.BuildLog(), "no __kernel functions")
}

func TestLanguage(t *testing.T) {
	assert.Equal(t, ".cl", OpenCLC.Ext())
	assert.Equal(t, ".wgsl", WGSL.Ext())
	assert.Equal(t, "#define N 4", OpenCLC.Define("N", "4"))
	assert.Equal(t, "const N = 4;", WGSL.Define("N", "4"))
	assert.Equal(t, "OpenCL C", OpenCLC.String())
	assert.Equal(t, "GPU", DeviceTypeGPU.String())
}
