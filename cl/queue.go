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
	"fmt"
	"sync"
	"time"
)

// queueDepth bounds the number of commands waiting in a queue; Enqueue*
// blocks once it is reached.
const queueDepth = 64

// Event tracks the completion of one enqueued command.
type Event struct {
	done       chan struct{}
	err        error
	start, end time.Time
}

// Wait blocks until the command completes and returns its error.
// There is no timeout: a kernel that never returns blocks forever.
func (e *Event) Wait() error {
	<-e.done
	return e.err
}

// Duration returns how long the command ran on the device. It blocks until
// the command completes.
func (e *Event) Duration() time.Duration {
	<-e.done
	return e.end.Sub(e.start)
}

type command struct {
	run func() error
	ev  *Event
}

// CommandQueue is an in-order queue: commands execute one at a time, in the
// order they were enqueued, on a goroutine owned by the queue.
//
// A queue is safe for concurrent use, but commands from different callers
// interleave; callers sharing a queue must order their work themselves.
type CommandQueue struct {
	ctx      *Context
	cmds     chan command
	drained  chan struct{}
	mu       sync.Mutex
	released bool
}

// NewQueue creates a command queue on the context's device.
func (c *Context) NewQueue() (*CommandQueue, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	q := &CommandQueue{
		ctx:     c,
		cmds:    make(chan command, queueDepth),
		drained: make(chan struct{}),
	}
	go q.loop()
	return q, nil
}

func (q *CommandQueue) loop() {
	defer close(q.drained)
	for cmd := range q.cmds {
		cmd.ev.start = time.Now()
		cmd.ev.err = cmd.run()
		cmd.ev.end = time.Now()
		close(cmd.ev.done)
	}
}

func (q *CommandQueue) enqueue(run func() error) (*Event, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.released {
		return nil, ErrInvalidCommandQueue
	}
	if err := q.ctx.check(); err != nil {
		return nil, err
	}
	ev := &Event{done: make(chan struct{})}
	q.cmds <- command{run: run, ev: ev}
	return ev, nil
}

// Finish blocks until every command enqueued so far has completed.
func (q *CommandQueue) Finish() error {
	ev, err := q.enqueue(func() error { return nil })
	if err != nil {
		return err
	}
	return ev.Wait()
}

// Release stops accepting commands and waits for pending ones to complete.
// Calling Release multiple times is safe.
func (q *CommandQueue) Release() {
	q.mu.Lock()
	if !q.released {
		q.released = true
		close(q.cmds)
	}
	q.mu.Unlock()
	<-q.drained
}

// EnqueueWrite copies src into buf, starting at offset 0. The copy happens
// when the command executes, so src must not change until the returned
// event completes.
func EnqueueWrite[T Scalar](q *CommandQueue, buf *Buffer, src []T) (*Event, error) {
	if err := buf.check(); err != nil {
		return nil, err
	}
	if n := byteLen[T](len(src)); n > buf.Size() {
		return nil, fmt.Errorf("write of %d bytes into %d-byte buffer: %w", n, buf.Size(), ErrInvalidBufferSize)
	}
	return q.enqueueUsing([]*Buffer{buf}, func() error {
		return buf.mem.write(asBytes(src))
	})
}

// EnqueueRead copies the start of buf into dst. dst must not be used until
// the returned event completes.
func EnqueueRead[T Scalar](q *CommandQueue, buf *Buffer, dst []T) (*Event, error) {
	if err := buf.check(); err != nil {
		return nil, err
	}
	if n := byteLen[T](len(dst)); n > buf.Size() {
		return nil, fmt.Errorf("read of %d bytes from %d-byte buffer: %w", n, buf.Size(), ErrInvalidBufferSize)
	}
	return q.enqueueUsing([]*Buffer{buf}, func() error {
		return buf.mem.read(asBytes(dst))
	})
}

// enqueueUsing enqueues run holding a reference on every buffer it uses
// until it completes.
func (q *CommandQueue) enqueueUsing(bufs []*Buffer, run func() error) (*Event, error) {
	for i, b := range bufs {
		err := b.acquire()
		if err == nil && b.ctx != q.ctx {
			b.drop()
			err = fmt.Errorf("buffer and queue belong to different contexts: %w", ErrInvalidContext)
		}
		if err != nil {
			for _, held := range bufs[:i] {
				held.drop()
			}
			return nil, err
		}
	}
	dropAll := func() {
		for _, b := range bufs {
			b.drop()
		}
	}
	ev, err := q.enqueue(func() error {
		defer dropAll()
		return run()
	})
	if err != nil {
		dropAll()
		return nil, err
	}
	return ev, nil
}
