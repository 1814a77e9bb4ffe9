// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package workerspool

import (
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_MaxParallelism(t *testing.T) {
	const maxParallelism = 3
	pool := New(maxParallelism)
	var running, maxRunning, count atomic.Int32
	for range 50 {
		pool.Go(func() error {
			current := running.Add(1)
			for {
				prev := maxRunning.Load()
				if current <= prev || maxRunning.CompareAndSwap(prev, current) {
					break
				}
			}
			runtime.Gosched()
			count.Add(1)
			running.Add(-1)
			return nil
		})
	}
	require.NoError(t, pool.Wait())
	assert.Equal(t, int32(50), count.Load())
	assert.LessOrEqual(t, int(maxRunning.Load()), maxParallelism)
	assert.Zero(t, running.Load())
}

func TestPool_Errors(t *testing.T) {
	for _, maxParallelism := range []int{0, 2, -1} {
		pool := New(maxParallelism)
		var count atomic.Int32
		for ii := range 10 {
			pool.Go(func() error {
				count.Add(1)
				if ii == 4 {
					return errors.New("task 4 failed")
				}
				return nil
			})
		}
		require.ErrorContainsf(t, pool.Wait(), "task 4 failed", "maxParallelism=%d", maxParallelism)
		assert.Equal(t, int32(10), count.Load())
	}
	assert.Equal(t, runtime.NumCPU(), New(-1).MaxParallelism())
}
