// Copyright 2025 The Marketscribe Authors
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

// Package asynctask runs a function on a background goroutine and lets the
// caller await its result. It backs the orchestrator's async task variants.
package asynctask

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

type Task[T any] struct {
	mu     *sync.RWMutex
	cond   *sync.Cond
	cancel context.CancelFunc
	done   bool
	result Result[T]
}

type Result[T any] struct {
	Value T
	Error error
}

// CreateTask starts fn on a new goroutine. The derived context is canceled
// when the task finishes or Cancel is called.
func CreateTask[T any](ctx context.Context, fn func(context.Context) (T, error)) *Task[T] {
	ctx, cancel := context.WithCancel(ctx)
	mu := new(sync.RWMutex)
	t := &Task[T]{
		mu:     mu,
		cond:   sync.NewCond(mu),
		cancel: cancel,
	}

	go func() {
		var value T
		var err error

		defer func() {
			if r := recover(); r != nil {
				err = errors.Join(err, fmt.Errorf("task panicked: %v", r))
			}

			t.cond.L.Lock()
			t.result = Result[T]{Value: value, Error: err}
			t.done = true
			t.cond.L.Unlock()
			t.cond.Broadcast()

			cancel()
		}()

		value, err = fn(ctx)
	}()

	return t
}

// Await blocks until the task completes and returns its result.
func (t *Task[T]) Await() Result[T] {
	t.cond.L.Lock()
	for !t.done {
		t.cond.Wait()
	}
	t.cond.L.Unlock()
	return t.result
}

func (t *Task[T]) IsDone() bool {
	t.mu.RLock()
	done := t.done
	t.mu.RUnlock()
	return done
}

// Cancel cancels the task's context. The task still runs to completion;
// Await reports whatever fn returns under the canceled context.
func (t *Task[T]) Cancel() {
	t.cancel()
}
