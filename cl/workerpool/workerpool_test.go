// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

package workerpool

import (
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
)

func TestNew(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	if pool.NumWorkers() != 4 {
		t.Errorf("NumWorkers() = %d, want 4", pool.NumWorkers())
	}
}

func TestNewDefault(t *testing.T) {
	pool := New(0)
	defer pool.Close()

	if pool.NumWorkers() != runtime.GOMAXPROCS(0) {
		t.Errorf("NumWorkers() = %d, want %d", pool.NumWorkers(), runtime.GOMAXPROCS(0))
	}
}

func TestParallelFor(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	n := 101
	results := make([]int, n)

	pool.ParallelFor(n, func(start, end int) {
		for i := start; i < end; i++ {
			results[i] = i * 2
		}
	})

	for i := range n {
		if results[i] != i*2 {
			t.Errorf("results[%d] = %d, want %d", i, results[i], i*2)
		}
	}
}

func TestRunGroups(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	n := 1000
	var visits [1000]atomic.Int32

	err := pool.RunGroups(n, func(g int) error {
		visits[g].Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("RunGroups() error = %v", err)
	}
	for g := range n {
		if got := visits[g].Load(); got != 1 {
			t.Errorf("group %d ran %d times, want 1", g, got)
		}
	}
}

func TestRunGroupsError(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	boom := errors.New("boom")
	var ran atomic.Int32
	err := pool.RunGroups(10000, func(g int) error {
		ran.Add(1)
		if g == 3 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("RunGroups() error = %v, want %v", err, boom)
	}
	if ran.Load() == 10000 {
		t.Errorf("RunGroups() kept claiming groups after a failure")
	}
}

func TestRunGroupsZero(t *testing.T) {
	pool := New(2)
	defer pool.Close()

	called := false
	if err := pool.RunGroups(0, func(int) error { called = true; return nil }); err != nil {
		t.Errorf("RunGroups(0) error = %v", err)
	}
	if called {
		t.Error("RunGroups(0) invoked fn")
	}
}

func TestClosedPoolRunsInline(t *testing.T) {
	pool := New(4)
	pool.Close()
	pool.Close()

	sum := 0
	pool.ParallelFor(10, func(start, end int) {
		for i := start; i < end; i++ {
			sum += i
		}
	})
	if sum != 45 {
		t.Errorf("sum = %d, want 45", sum)
	}

	count := 0
	if err := pool.RunGroups(5, func(int) error { count++; return nil }); err != nil {
		t.Fatalf("RunGroups() error = %v", err)
	}
	if count != 5 {
		t.Errorf("count = %d, want 5", count)
	}
}
