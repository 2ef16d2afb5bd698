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

package matmul

import "time"

// Unmeasured marks a phase that has not completed yet.
const Unmeasured time.Duration = -1

// TimingRecord holds the wall-clock duration of each phase of the last
// successful Compute.
type TimingRecord struct {
	Upload    time.Duration
	Execution time.Duration
	Download  time.Duration
}

func unmeasured() TimingRecord {
	return TimingRecord{Upload: Unmeasured, Execution: Unmeasured, Download: Unmeasured}
}

// Measured reports whether all three phases have a duration.
func (t TimingRecord) Measured() bool {
	return t.Upload != Unmeasured && t.Execution != Unmeasured && t.Download != Unmeasured
}

// Total returns the sum of the phases, or Unmeasured.
func (t TimingRecord) Total() time.Duration {
	if !t.Measured() {
		return Unmeasured
	}
	return t.Upload + t.Execution + t.Download
}
