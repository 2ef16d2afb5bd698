// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

// Package workerpool provides the persistent pool of compute units used by
// the host device. A Pool is created once per device context and reused by
// every kernel dispatch, so a command queue never pays goroutine spawn costs
// per work group.
//
// Usage:
//
//	pool := workerpool.New(runtime.GOMAXPROCS(0))
//	defer pool.Close()
//
//	err := pool.RunGroups(numGroups, func(group int) error {
//	    return runWorkGroup(group)
//	})
package workerpool

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool is a persistent set of workers. Each worker plays the role of one
// compute unit: it executes whole work groups, one at a time.
type Pool struct {
	numWorkers int
	workC      chan task
	closeOnce  sync.Once
	closed     atomic.Bool
}

type task struct {
	fn      func()
	barrier *sync.WaitGroup
}

// New creates a pool with numWorkers compute units.
// If numWorkers <= 0, uses GOMAXPROCS.
func New(numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}

	p := &Pool{
		numWorkers: numWorkers,
		workC:      make(chan task, numWorkers*2),
	}
	for range numWorkers {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	for t := range p.workC {
		t.fn()
		t.barrier.Done()
	}
}

// NumWorkers returns the number of compute units in the pool.
func (p *Pool) NumWorkers() int {
	return p.numWorkers
}

// Close shuts down the pool. Pending work completes first.
// Calling Close multiple times is safe.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.workC)
	})
}

// ParallelFor splits [0, n) into contiguous chunks, one per worker, and
// blocks until every chunk has been processed.
func (p *Pool) ParallelFor(n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	workers := min(p.numWorkers, n)
	if p.closed.Load() || workers == 1 {
		fn(0, n)
		return
	}

	chunkSize := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for i := range workers {
		start := i * chunkSize
		if start >= n {
			break
		}
		end := min(start+chunkSize, n)
		wg.Add(1)
		p.workC <- task{
			fn:      func() { fn(start, end) },
			barrier: &wg,
		}
	}
	wg.Wait()
}

// RunGroups executes fn once for every group index in [0, numGroups).
// Workers claim groups with an atomic counter, so uneven groups balance out.
// Once a group fails no new groups are claimed; the first error is returned
// after all running groups finish.
func (p *Pool) RunGroups(numGroups int, fn func(group int) error) error {
	if numGroups <= 0 {
		return nil
	}

	var (
		next     atomic.Int64
		failed   atomic.Bool
		firstErr error
		errOnce  sync.Once
	)
	claim := func() {
		for !failed.Load() {
			g := int(next.Add(1)) - 1
			if g >= numGroups {
				return
			}
			if err := fn(g); err != nil {
				errOnce.Do(func() { firstErr = err })
				failed.Store(true)
				return
			}
		}
	}

	workers := min(p.numWorkers, numGroups)
	if p.closed.Load() || workers == 1 {
		claim()
		return firstErr
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		p.workC <- task{fn: claim, barrier: &wg}
	}
	wg.Wait()
	return firstErr
}
