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

import (
	"fmt"
	"math/bits"
	"math/rand/v2"
	"sync"

	"github.com/go-highway/clmatmul/cl/workerpool"
	"github.com/go-highway/clmatmul/kernels"
)

// DefaultWorkGroups is the number of work groups the tiled engine splits
// the padded order into.
const DefaultWorkGroups = 32

// Option configures an engine.
type Option func(*config) error

type config struct {
	workGroups int
	seed       uint64
	seeded     bool
	programs   kernels.Source
	pool       *workerpool.Pool
}

func newConfig(opts []Option) (*config, error) {
	cfg := &config{workGroups: DefaultWorkGroups}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.programs == nil {
		cfg.programs = kernels.FromEnv()
	}
	if cfg.pool == nil {
		cfg.pool = defaultPool()
	}
	if !cfg.seeded {
		cfg.seed = rand.Uint64()
	}
	return cfg, nil
}

func (c *config) rng() *rand.Rand {
	return rand.New(rand.NewPCG(c.seed, c.seed^0x9e3779b97f4a7c15))
}

// WithWorkGroups sets how many work groups the tiled engine uses. n must be
// a positive power of two; orders smaller than n use one group per row.
func WithWorkGroups(n int) Option {
	return func(c *config) error {
		if n <= 0 || bits.OnesCount(uint(n)) != 1 {
			return fmt.Errorf("work groups %d is not a positive power of two: %w", n, ErrInvalidOption)
		}
		c.workGroups = n
		return nil
	}
}

// WithSeed makes the random inputs deterministic.
func WithSeed(seed uint64) Option {
	return func(c *config) error {
		c.seed, c.seeded = seed, true
		return nil
	}
}

// WithPrograms sets where device program sources are loaded from. Without
// it engines use kernels.FromEnv.
func WithPrograms(src kernels.Source) Option {
	return func(c *config) error {
		if src == nil {
			return fmt.Errorf("nil program source: %w", ErrInvalidOption)
		}
		c.programs = src
		return nil
	}
}

// WithPool sets the worker pool the CPU reference multiplication runs on.
func WithPool(pool *workerpool.Pool) Option {
	return func(c *config) error {
		if pool == nil {
			return fmt.Errorf("nil worker pool: %w", ErrInvalidOption)
		}
		c.pool = pool
		return nil
	}
}

// defaultPool is shared by every engine without WithPool and by the
// package-level Reference and Evaluate. It lives for the whole process.
var defaultPool = sync.OnceValue(func() *workerpool.Pool {
	return workerpool.New(0)
})
