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

import "errors"

// Sentinel errors, named after the OpenCL status codes they stand for.
// Callers match them with errors.Is; returned errors carry extra context.
var (
	ErrDeviceNotFound             = errors.New("cl: device not found")
	ErrInvalidValue               = errors.New("cl: invalid value")
	ErrInvalidContext             = errors.New("cl: invalid context")
	ErrInvalidCommandQueue        = errors.New("cl: invalid command queue")
	ErrInvalidMemObject           = errors.New("cl: invalid memory object")
	ErrInvalidBufferSize          = errors.New("cl: invalid buffer size")
	ErrMemObjectAllocationFailure = errors.New("cl: memory object allocation failure")
	ErrMapFailure                 = errors.New("cl: map failure")
	ErrBuildProgramFailure        = errors.New("cl: build program failure")
	ErrInvalidProgramExecutable   = errors.New("cl: program is not built")
	ErrInvalidKernelName          = errors.New("cl: invalid kernel name")
	ErrInvalidArgIndex            = errors.New("cl: invalid kernel argument index")
	ErrInvalidKernelArgs          = errors.New("cl: invalid kernel arguments")
	ErrInvalidWorkDimension       = errors.New("cl: invalid work dimension")
	ErrInvalidGlobalWorkSize      = errors.New("cl: invalid global work size")
	ErrInvalidWorkGroupSize       = errors.New("cl: invalid work group size")
	ErrOutOfResources             = errors.New("cl: out of resources")
)
