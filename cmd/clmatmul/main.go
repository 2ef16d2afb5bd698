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

// Command clmatmul multiplies two random matrices on the compute device and
// reports phase timings and accuracy against a host reference.
//
// Usage:
//
//	clmatmul 512 512 512 512 -t -p          # tiled float32, times and accuracy
//	clmatmul 3 7 7 5 --naive --type int -p  # naive int32, exact check
//	clmatmul 256 256 256 256 -tv --jobs 4   # four concurrent engines
//
// Program sources are embedded; --kernels or CLMATMUL_KERNEL_DIR loads them
// from a directory instead.
package main

import (
	"log"
	"os"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("clmatmul: ")
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}
