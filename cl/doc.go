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

// Package cl is a small OpenCL-shaped compute runtime.
//
// It exposes the pieces a host program needs to offload work to a device:
// platforms and devices, an execution context, in-order command queues,
// device buffers, programs built from source text, kernels with positional
// arguments, and NDRange dispatch with global and local work sizes.
//
// Two backends sit behind the same API.
//
// The host platform, always present and always last in Platforms, exposes
// the CPU as a single device. Its compute units are a persistent worker
// pool; each work group runs on one worker, which gives kernels the usual
// guarantees about group-local memory and barriers. It builds OpenCL C:
// the builder collects #define constants and kernel declarations, then
// binds every entry point to the native implementation registered with the
// same name, parameter signature and body (see Register). A program whose
// body differs from every registered one fails to build.
//
// Built with the gpu tag, the runtime also opens the default WebGPU adapter
// through github.com/openfluke/webgpu. That device builds WGSL and compiles
// and runs the program text itself. Module-scope storage arrays, workgroup
// arrays and the fields of one uniform block form the kernel parameters, in
// source order; entry points declare @workgroup_size(WG_X, WG_Y, WG_Z) and
// the runtime supplies those constants from the local size of each
// dispatch.
//
// NewDeviceContext opens the first platform, or the one $CLDEV_PLATFORM
// indexes.
//
// Example usage:
//
//	dc, err := cl.NewDeviceContext()
//	if err != nil { ... }
//	defer dc.Close()
//
//	buf, _ := dc.Context.CreateBuffer(cl.MemReadOnly, 4*len(data))
//	ev, _ := cl.EnqueueWrite(dc.Queue, buf, data)
//	_ = ev.Wait()
package cl
