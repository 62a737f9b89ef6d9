// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
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

// Package xfer runs blocking bus transfers on a dedicated goroutine so a
// transport can offer the engine's asynchronous Exchange contract on top of
// a synchronous driver call.
package xfer

import (
	"sync"

	"github.com/ZaparooProject/go-spilink"
	"github.com/ZaparooProject/go-spilink/internal/syncutil"
)

// Func performs one blocking full-duplex transfer.
type Func func(tx, rx []byte) error

type job struct {
	done func(error)
	tx   []byte
	rx   []byte
}

// Queue holds at most one transfer. Submit never blocks: a second submission
// while one is queued or running is rejected with spilink.ErrTransportBusy.
type Queue struct {
	fn     Func
	jobs   chan job
	stop   chan struct{}
	name   string
	wg     sync.WaitGroup
	mu     syncutil.Mutex
	busy   bool
	closed bool
}

// New starts the worker goroutine. name identifies the port in errors.
func New(name string, fn Func) *Queue {
	q := &Queue{
		fn:   fn,
		name: name,
		jobs: make(chan job, 1),
		stop: make(chan struct{}),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

// Submit queues one transfer. done is called exactly once, from the worker
// goroutine, unless Submit returns an error.
func (q *Queue) Submit(tx, rx []byte, done func(error)) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return spilink.NewTransportClosedError("exchange", q.name)
	}
	if q.busy {
		return spilink.NewTransportError("exchange", q.name, spilink.ErrTransportBusy, spilink.ErrorTypeTransient)
	}
	q.busy = true
	q.jobs <- job{tx: tx, rx: rx, done: done}
	return nil
}

// Busy reports whether a transfer is queued or running.
func (q *Queue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.busy
}

// Close stops the worker after any running transfer returns. A transfer
// that was queued but not started completes with a closed-transport error.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.stop)
	q.mu.Unlock()

	q.wg.Wait()

	select {
	case j := <-q.jobs:
		q.finish(j, spilink.NewTransportClosedError("exchange", q.name))
	default:
	}
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		// Prefer stop so a queued job is failed rather than started.
		select {
		case <-q.stop:
			return
		default:
		}

		select {
		case <-q.stop:
			return
		case j := <-q.jobs:
			q.finish(j, q.fn(j.tx, j.rx))
		}
	}
}

// finish clears busy before done runs, so the completion may submit again.
func (q *Queue) finish(j job, err error) {
	q.mu.Lock()
	q.busy = false
	q.mu.Unlock()
	j.done(err)
}
