// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool runs independent tasks in goroutines, with a bound on how many run at the same time.
package workerspool

import (
	"runtime"
	"sync"
)

// Pool of workers. Create it with New, start tasks with Go and collect the result with Wait.
type Pool struct {
	// maxParallelism is the maximum number of tasks running at the same time.
	// If 0 tasks are run inline.
	maxParallelism int
	mu             sync.Mutex
	cond           sync.Cond // Signaled whenever numRunning is decreased.
	numRunning     int
	firstErr       error
}

// New returns a new Pool running at most maxParallelism tasks at once.
// If maxParallelism < 0, runtime.NumCPU() is used. If it is 0, tasks are run inline by Go.
func New(maxParallelism int) *Pool {
	if maxParallelism < 0 {
		maxParallelism = runtime.NumCPU()
	}
	w := &Pool{maxParallelism: maxParallelism}
	w.cond = sync.Cond{L: &w.mu}
	return w
}

// MaxParallelism returns the maximum number of tasks running at the same time.
func (w *Pool) MaxParallelism() int {
	return w.maxParallelism
}

// Go waits until there is a worker available and runs task in it.
// The first error returned by a task is reported by Wait.
func (w *Pool) Go(task func() error) {
	if w.maxParallelism == 0 {
		w.recordErr(task())
		return
	}
	w.mu.Lock()
	for w.numRunning >= w.maxParallelism {
		w.cond.Wait()
	}
	w.numRunning++
	w.mu.Unlock()
	go func() {
		err := task()
		w.mu.Lock()
		if err != nil && w.firstErr == nil {
			w.firstErr = err
		}
		w.numRunning--
		w.cond.Broadcast()
		w.mu.Unlock()
	}()
}

func (w *Pool) recordErr(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.firstErr == nil {
		w.firstErr = err
	}
}

// Wait blocks until all started tasks are finished, and returns the first error, if any.
func (w *Pool) Wait() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for w.numRunning > 0 {
		w.cond.Wait()
	}
	return w.firstErr
}
