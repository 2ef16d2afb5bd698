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
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vecAddSource = `
// element-wise sum
__kernel void vec_add(__global const float *a,
                      __global const float *b,
                      __global float *c) {
    int gid = get_global_id(0);
    c[gid] = a[gid] + b[gid];
}
`

const groupSumSource = `
#define GROUP_MAX 64
/* each group writes the sum of its slice to out[group] */
kernel void group_sum(global int *in, global int *out, local int *scratch) {
    int lid = get_local_id(0);
    scratch[lid] = in[get_global_id(0)];
    barrier(CLK_LOCAL_MEM_FENCE);
    if (lid == 0) {
        int s = 0;
        for (int i = 0; i < get_local_size(0); i++) s += scratch[i];
        out[get_group_id(0)] = s;
    }
}
`

var errFailingKernel = errors.New("failing kernel")

const alwaysFailsSource = "__kernel void always_fails(__global int *x) { }"

func init() {
	Register(Builtin{
		Name:   "vec_add",
		Source: vecAddSource,
		Fn: func(wg *WorkGroup) error {
			a, b, c := GlobalArg[float32](wg, 0), GlobalArg[float32](wg, 1), GlobalArg[float32](wg, 2)
			for lid := range wg.LocalSize(0) {
				gid := wg.GlobalID(0, lid)
				c[gid] = a[gid] + b[gid]
			}
			return nil
		},
	})
	Register(Builtin{
		Name:     "group_sum",
		Source:   groupSumSource,
		Requires: []string{"GROUP_MAX"},
		Fn: func(wg *WorkGroup) error {
			in, out := GlobalArg[int32](wg, 0), GlobalArg[int32](wg, 1)
			scratch := LocalArg[int32](wg, 2)
			for lid := range wg.LocalSize(0) {
				scratch[lid] = in[wg.GlobalID(0, lid)]
			}
			var s int32
			for lid := range wg.LocalSize(0) {
				s += scratch[lid]
			}
			out[wg.GroupID(0)] = s
			return nil
		},
	})
	Register(Builtin{
		Name:   "always_fails",
		Source: alwaysFailsSource,
		Fn:     func(*WorkGroup) error { return errFailingKernel },
	})
}

func newTestDeviceContext(t *testing.T) *DeviceContext {
	t.Helper()
	dc, err := NewDeviceContextFor(HostDevice())
	require.NoError(t, err)
	t.Cleanup(dc.Close)
	return dc
}

func buildKernel(t *testing.T, dc *DeviceContext, src, name string) *Kernel {
	t.Helper()
	prog, err := dc.Context.CreateProgramWithSource(src)
	require.NoError(t, err)
	require.NoError(t, prog.Build(), prog.BuildLog())
	k, err := prog.CreateKernel(name)
	require.NoError(t, err)
	return k
}

func TestPlatforms(t *testing.T) {
	ps := Platforms()
	require.NotEmpty(t, ps)
	host := ps[len(ps)-1]
	require.Len(t, host.Devices(), 1)

	dev := host.Devices()[0]
	assert.Same(t, HostDevice(), dev)
	assert.Equal(t, DeviceTypeCPU, dev.Type)
	assert.Equal(t, OpenCLC, dev.Language)
	assert.Positive(t, dev.ComputeUnits)
	assert.Equal(t, MaxWorkGroupSize, dev.MaxWorkGroupSize)
	assert.NotEqual(t, "unknown", dev.Level.String())
	assert.Contains(t, dev.String(), "compute units")
	assert.Same(t, dev, Platforms()[len(ps)-1].Devices()[0])

	for _, p := range ps[:len(ps)-1] {
		for _, d := range p.Devices() {
			assert.Equal(t, DeviceTypeGPU, d.Type, d.Name)
			assert.Equal(t, WGSL, d.Language, d.Name)
		}
	}
	if len(ps) == 1 {
		require.ErrorIs(t, GPUError(), ErrDeviceNotFound)
	}
}

func TestNewDeviceContextPlatformEnv(t *testing.T) {
	last := strconv.Itoa(len(Platforms()) - 1)
	t.Setenv(PlatformEnv, last)
	dc, err := NewDeviceContext()
	require.NoError(t, err)
	defer dc.Close()
	assert.Same(t, HostDevice(), dc.Device())
	assert.Equal(t, "Go Host Compute", dc.Platform.Name)

	for _, v := range []string{"x", "-1", strconv.Itoa(len(Platforms()))} {
		t.Setenv(PlatformEnv, v)
		_, err := NewDeviceContext()
		require.ErrorIs(t, err, ErrDeviceNotFound, v)
	}
}

func TestNewDeviceContextForUnknownDevice(t *testing.T) {
	_, err := NewDeviceContextFor(&Device{Name: "detached", backend: &hostBackend{units: 1}})
	require.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestNewContextNeedsOneDevice(t *testing.T) {
	_, err := NewContext()
	require.ErrorIs(t, err, ErrInvalidValue)

	dev := HostDevice()
	_, err = NewContext(dev, dev)
	require.ErrorIs(t, err, ErrInvalidValue)

	_, err = NewContext(&Device{Name: "no backend"})
	require.ErrorIs(t, err, ErrInvalidValue)
}

func TestCreateBufferErrors(t *testing.T) {
	dc := newTestDeviceContext(t)

	_, err := dc.Context.CreateBuffer(MemReadOnly, 0)
	require.ErrorIs(t, err, ErrInvalidBufferSize)

	_, err = dc.Context.CreateBuffer(MemReadOnly, MaxMemAllocSize+1)
	require.ErrorIs(t, err, ErrMemObjectAllocationFailure)

	_, err = dc.Context.CreateBuffer(MemFlags(0), 16)
	require.ErrorIs(t, err, ErrInvalidValue)

	buf, err := dc.Context.CreateBuffer(MemWriteOnly, 16)
	require.NoError(t, err)
	assert.Equal(t, 16, buf.Size())
	assert.Equal(t, MemWriteOnly, buf.Flags())
	assert.Equal(t, "write-only", buf.Flags().String())
}

func TestWriteReadRoundTrip(t *testing.T) {
	dc := newTestDeviceContext(t)

	src := []int32{1, -2, 3, -4, 5}
	buf, err := dc.Context.CreateBuffer(MemReadWrite, 4*len(src))
	require.NoError(t, err)

	ev, err := EnqueueWrite(dc.Queue, buf, src)
	require.NoError(t, err)
	require.NoError(t, ev.Wait())
	assert.GreaterOrEqual(t, ev.Duration(), time.Duration(0))

	dst := make([]int32, len(src))
	ev, err = EnqueueRead(dc.Queue, buf, dst)
	require.NoError(t, err)
	require.NoError(t, ev.Wait())
	assert.Equal(t, src, dst)

	_, err = EnqueueWrite(dc.Queue, buf, make([]int32, len(src)+1))
	require.ErrorIs(t, err, ErrInvalidBufferSize)
	_, err = EnqueueRead(dc.Queue, buf, make([]float32, len(src)+1))
	require.ErrorIs(t, err, ErrInvalidBufferSize)

	buf.Release()
	_, err = EnqueueWrite(dc.Queue, buf, src)
	require.ErrorIs(t, err, ErrInvalidMemObject)
}

func TestReleasedQueue(t *testing.T) {
	dc := newTestDeviceContext(t)
	q, err := dc.Context.NewQueue()
	require.NoError(t, err)
	require.NoError(t, q.Finish())

	q.Release()
	q.Release()
	require.ErrorIs(t, q.Finish(), ErrInvalidCommandQueue)
}

func TestClosedContext(t *testing.T) {
	ctx, err := NewContext(HostDevice())
	require.NoError(t, err)
	ctx.Close()

	_, err = ctx.CreateBuffer(MemReadOnly, 4)
	require.ErrorIs(t, err, ErrInvalidContext)
	_, err = ctx.NewQueue()
	require.ErrorIs(t, err, ErrInvalidContext)
}

func TestBuildProgram(t *testing.T) {
	dc := newTestDeviceContext(t)

	prog, err := dc.Context.CreateProgramWithSource(vecAddSource + groupSumSource)
	require.NoError(t, err)
	require.NoError(t, prog.Build())
	assert.Equal(t, []string{"group_sum", "vec_add"}, prog.KernelNames())

	v, ok := prog.Define("GROUP_MAX")
	require.True(t, ok)
	assert.Equal(t, "64", v)

	_, err = prog.CreateKernel("missing")
	require.ErrorIs(t, err, ErrInvalidKernelName)
}

func TestBuildProgramFailures(t *testing.T) {
	dc := newTestDeviceContext(t)

	cases := []struct {
		name    string
		src     string
		wantLog string
	}{
		{"unknown kernel", "__kernel void nope(__global float *x) { }", "no device implementation"},
		{"signature mismatch", "__kernel void vec_add(__global int *a, __global int *b, __global int *c) { }", "no device implementation"},
		{"missing macro", groupSumSource[len("\n#define GROUP_MAX 64"):], "GROUP_MAX is not defined"},
		{"unbalanced", "__kernel void vec_add(__global float *a, __global float *b, __global float *c) { {", "unclosed"},
		{"no kernels", "int helper(int x) { return x; }", "no __kernel functions"},
		{"bad pointer", "__kernel void vec_add(float *a, __global float *b, __global float *c) { }", "address space"},
		{"commented out", "// __kernel void vec_add(__global float *a, __global float *b, __global float *c) {}", "no __kernel functions"},
		{"body differs", strings.Replace(vecAddSource, "a[gid] + b[gid]", "a[gid] - b[gid]", 1), "body differs"},
		{"empty body", "__kernel void vec_add(__global float *a, __global float *b, __global float *c) { }", "body differs"},
		{"no body", "__kernel void vec_add(__global float *a, __global float *b, __global float *c);", "has no body"},
		{"defined twice", vecAddSource + vecAddSource, "defined twice"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prog, err := dc.Context.CreateProgramWithSource(tc.src)
			require.NoError(t, err)
			err = prog.Build()
			require.ErrorIs(t, err, ErrBuildProgramFailure)
			assert.Contains(t, prog.BuildLog(), tc.wantLog)

			_, err = prog.CreateKernel("vec_add")
			require.ErrorIs(t, err, ErrInvalidProgramExecutable)
		})
	}

	_, err := dc.Context.CreateProgramWithSource("  \n")
	require.ErrorIs(t, err, ErrInvalidValue)
}

func TestBuildIgnoresLayout(t *testing.T) {
	dc := newTestDeviceContext(t)
	reformatted := `__kernel void vec_add(__global const float *a, __global const float *b, __global float *c)
{
	/* same tokens, other layout */
	int gid=get_global_id(0);
	c[gid]=a[gid]+b[gid];   // sum
}`
	k := buildKernel(t, dc, reformatted, "vec_add")
	assert.Equal(t, "vec_add", k.Name())
}

func TestRegisterRejectsSourceWithoutKernel(t *testing.T) {
	assert.Panics(t, func() {
		Register(Builtin{Name: "missing", Source: vecAddSource, Fn: func(*WorkGroup) error { return nil }})
	})
	assert.Panics(t, func() {
		Register(Builtin{Name: "vec_add", Source: vecAddSource, Fn: func(*WorkGroup) error { return nil }})
	}, "duplicate")
}

func TestDeclarations(t *testing.T) {
	decls, err := Declarations(OpenCLC, vecAddSource+groupSumSource)
	require.NoError(t, err)
	require.Len(t, decls, 2)
	assert.Equal(t, []Param{
		{Space: SpaceGlobal, Type: TypeInt, Pointer: true, Name: "in"},
		{Space: SpaceGlobal, Type: TypeInt, Pointer: true, Name: "out"},
		{Space: SpaceLocal, Type: TypeInt, Pointer: true, Name: "scratch"},
	}, decls["group_sum"])

	_, err = Declarations(OpenCLC, "int f(void) { return 0; }")
	require.ErrorIs(t, err, ErrBuildProgramFailure)
}

func TestParseParam(t *testing.T) {
	cases := []struct {
		in   string
		want Param
	}{
		{"__global float *a", Param{Space: SpaceGlobal, Type: TypeFloat, Pointer: true, Name: "a"}},
		{"global const float* restrict b", Param{Space: SpaceGlobal, Type: TypeFloat, Pointer: true, Name: "b"}},
		{"__local float *Bwrk", Param{Space: SpaceLocal, Type: TypeFloat, Pointer: true, Name: "Bwrk"}},
		{"const unsigned int a_ncol", Param{Type: TypeUint, Name: "a_ncol"}},
		{"const int N", Param{Type: TypeInt, Name: "N"}},
		{"uint n", Param{Type: TypeUint, Name: "n"}},
		{"__constant int *lut", Param{Space: SpaceConstant, Type: TypeInt, Pointer: true, Name: "lut"}},
	}
	for _, tc := range cases {
		got, err := parseParam(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	for _, in := range []string{"double x", "__global float **p", "__global int n", "unsigned float f"} {
		_, err := parseParam(in)
		assert.Error(t, err, in)
	}
}

func TestVecAdd(t *testing.T) {
	dc := newTestDeviceContext(t)
	k := buildKernel(t, dc, vecAddSource, "vec_add")

	n := 1000
	a, b := make([]float32, n), make([]float32, n)
	for i := range n {
		a[i] = float32(i)
		b[i] = float32(2 * i)
	}
	bufA, _ := dc.Context.CreateBuffer(MemReadOnly, 4*n)
	bufB, _ := dc.Context.CreateBuffer(MemReadOnly, 4*n)
	bufC, _ := dc.Context.CreateBuffer(MemWriteOnly, 4*n)
	_, err := EnqueueWrite(dc.Queue, bufA, a)
	require.NoError(t, err)
	_, err = EnqueueWrite(dc.Queue, bufB, b)
	require.NoError(t, err)

	require.NoError(t, k.SetArgs(bufA, bufB, bufC))
	ev, err := dc.Queue.EnqueueNDRange(k, []int{n}, nil)
	require.NoError(t, err)
	require.NoError(t, ev.Wait())

	c := make([]float32, n)
	ev, err = EnqueueRead(dc.Queue, bufC, c)
	require.NoError(t, err)
	require.NoError(t, ev.Wait())
	for i := range n {
		require.Equal(t, float32(3*i), c[i], "c[%d]", i)
	}
}

func TestGroupLocalMemory(t *testing.T) {
	dc := newTestDeviceContext(t)
	k := buildKernel(t, dc, groupSumSource, "group_sum")

	in := make([]int32, 256)
	for i := range in {
		in[i] = int32(i)
	}
	bufIn, _ := dc.Context.CreateBuffer(MemReadOnly, 4*len(in))
	bufOut, _ := dc.Context.CreateBuffer(MemWriteOnly, 4*8)
	_, err := EnqueueWrite(dc.Queue, bufIn, in)
	require.NoError(t, err)

	require.NoError(t, k.SetArgs(bufIn, bufOut, LocalMemory(4*32)))
	ev, err := dc.Queue.EnqueueNDRange(k, []int{256}, []int{32})
	require.NoError(t, err)
	require.NoError(t, ev.Wait())

	out := make([]int32, 8)
	ev, err = EnqueueRead(dc.Queue, bufOut, out)
	require.NoError(t, err)
	require.NoError(t, ev.Wait())
	for g := range 8 {
		base := int32(32 * g)
		assert.Equal(t, 32*base+31*32/2, out[g], "group %d", g)
	}
}

func TestEnqueueNDRangeErrors(t *testing.T) {
	dc := newTestDeviceContext(t)
	k := buildKernel(t, dc, groupSumSource, "group_sum")
	buf, _ := dc.Context.CreateBuffer(MemReadWrite, 4*64)

	_, err := dc.Queue.EnqueueNDRange(k, []int{64}, nil)
	require.ErrorIs(t, err, ErrInvalidKernelArgs, "unset arguments")

	require.ErrorIs(t, k.SetArgs(buf, buf), ErrInvalidKernelArgs)
	require.ErrorIs(t, k.SetArg(2, 16), ErrInvalidKernelArgs)
	require.ErrorIs(t, k.SetArg(3, buf), ErrInvalidArgIndex)
	require.NoError(t, k.SetArgs(buf, buf, LocalMemory(64)))

	_, err = dc.Queue.EnqueueNDRange(k, []int{64}, []int{24})
	require.ErrorIs(t, err, ErrInvalidWorkGroupSize)
	_, err = dc.Queue.EnqueueNDRange(k, []int{4096}, []int{2048})
	require.ErrorIs(t, err, ErrInvalidWorkGroupSize)
	_, err = dc.Queue.EnqueueNDRange(k, []int{64}, []int{8, 8})
	require.ErrorIs(t, err, ErrInvalidWorkGroupSize)
	_, err = dc.Queue.EnqueueNDRange(k, []int{}, nil)
	require.ErrorIs(t, err, ErrInvalidWorkDimension)
	_, err = dc.Queue.EnqueueNDRange(k, []int{0}, nil)
	require.ErrorIs(t, err, ErrInvalidGlobalWorkSize)

	require.NoError(t, k.SetArg(2, LocalMemory(LocalMemSize+4)))
	_, err = dc.Queue.EnqueueNDRange(k, []int{64}, nil)
	require.ErrorIs(t, err, ErrOutOfResources)
}

func TestKernelErrorSurfacesOnWait(t *testing.T) {
	dc := newTestDeviceContext(t)
	k := buildKernel(t, dc, alwaysFailsSource, "always_fails")
	buf, _ := dc.Context.CreateBuffer(MemReadWrite, 4)
	require.NoError(t, k.SetArgs(buf))

	ev, err := dc.Queue.EnqueueNDRange(k, []int{1}, nil)
	require.NoError(t, err)
	require.ErrorIs(t, ev.Wait(), errFailingKernel)
}

func TestChooseLocalSize(t *testing.T) {
	cases := []struct {
		global []int
		want   []int
	}{
		{[]int{1000}, []int{250}},
		{[]int{7}, []int{7}},
		{[]int{1031}, []int{1}},
		{[]int{512, 512}, []int{16, 16}},
		{[]int{3, 10}, []int{3, 10}},
		{[]int{1, 1}, []int{1, 1}},
		{[]int{64, 64, 64}, []int{8, 8, 8}},
	}
	for _, tc := range cases {
		got := chooseLocalSize(tc.global, MaxWorkGroupSize)
		assert.Equal(t, tc.want, got, "global %v", tc.global)
		require.NoError(t, checkLocalSize(tc.global, got, MaxWorkGroupSize))
	}
}

func TestCrossContextObjects(t *testing.T) {
	dc := newTestDeviceContext(t)
	other := newTestDeviceContext(t)
	k := buildKernel(t, dc, vecAddSource, "vec_add")

	foreign, err := other.Context.CreateBuffer(MemReadWrite, 16)
	require.NoError(t, err)
	require.ErrorIs(t, k.SetArg(0, foreign), ErrInvalidMemObject)

	_, err = EnqueueWrite(dc.Queue, foreign, []float32{1, 2, 3, 4})
	require.ErrorIs(t, err, ErrInvalidContext)

	local, err := dc.Context.CreateBuffer(MemReadWrite, 16)
	require.NoError(t, err)
	require.NoError(t, k.SetArgs(local, local, local))
	_, err = other.Queue.EnqueueNDRange(k, []int{4}, nil)
	require.ErrorIs(t, err, ErrInvalidContext)
}

// gateBackend runs a single kernel, "wait", which blocks until its gate is
// closed, and counts released buffers.
type gateBackend struct {
	gate     chan struct{}
	released atomic.Int32
}

type gateMemory struct {
	b    *gateBackend
	data []byte
}

func (m *gateMemory) write(src []byte) error { copy(m.data, src); return nil }
func (m *gateMemory) read(dst []byte) error  { copy(dst, m.data); return nil }
func (m *gateMemory) release()               { m.b.released.Add(1) }

func (b *gateBackend) alloc(size int) (memory, error) {
	return &gateMemory{b: b, data: make([]byte, size)}, nil
}

func (b *gateBackend) compile(string) (*executable, []string) {
	params := []Param{{Space: SpaceGlobal, Type: TypeInt, Pointer: true, Name: "x"}}
	return &executable{
		defines: map[string]string{},
		entries: map[string]*entryPoint{"wait": {
			name:   "wait",
			params: params,
			launch: func(ndRange, []any) error {
				<-b.gate
				return nil
			},
		}},
	}, nil
}

func TestReleaseWaitsForPendingCommands(t *testing.T) {
	gb := &gateBackend{gate: make(chan struct{})}
	dev := &Device{Name: "gate", MaxWorkGroupSize: 64, LocalMemSize: 1024, MaxMemAllocSize: 1024, backend: gb}
	ctx, err := NewContext(dev)
	require.NoError(t, err)
	defer ctx.Close()
	q, err := ctx.NewQueue()
	require.NoError(t, err)
	defer q.Release()

	prog, err := ctx.CreateProgramWithSource("wait")
	require.NoError(t, err)
	require.NoError(t, prog.Build())
	k, err := prog.CreateKernel("wait")
	require.NoError(t, err)

	buf, err := ctx.CreateBuffer(MemReadWrite, 16)
	require.NoError(t, err)
	require.NoError(t, k.SetArgs(buf))
	ev, err := q.EnqueueNDRange(k, []int{1}, nil)
	require.NoError(t, err)

	buf.Release()
	assert.Zero(t, gb.released.Load(), "storage freed while a command uses it")
	_, err = EnqueueWrite(q, buf, []int32{1})
	require.ErrorIs(t, err, ErrInvalidMemObject)

	close(gb.gate)
	require.NoError(t, ev.Wait())
	require.NoError(t, q.Finish())
	assert.Equal(t, int32(1), gb.released.Load())

	buf.Release()
	assert.Equal(t, int32(1), gb.released.Load(), "double release")
}
