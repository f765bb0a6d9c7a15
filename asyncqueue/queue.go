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

// Package asyncqueue provides an unbounded FIFO queue for handing values
// from a producer goroutine to a consumer. Completion is signaled in-band
// by the producer (e.g. with a sentinel value).
package asyncqueue

import "sync"

type Queue[T any] struct {
	cond   *sync.Cond
	values []T
}

func New[T any]() *Queue[T] {
	return &Queue[T]{
		cond: sync.NewCond(&sync.Mutex{}),
	}
}

// Put appends v and wakes any blocked Get.
func (q *Queue[T]) Put(v T) {
	q.cond.L.Lock()
	q.values = append(q.values, v)
	q.cond.L.Unlock()
	q.cond.Broadcast()
}

// Get blocks until a value is available and removes it from the queue.
func (q *Queue[T]) Get() T {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()
	for len(q.values) == 0 {
		q.cond.Wait()
	}
	return q.pop()
}

// GetNoWait removes and returns the head of the queue, if any.
func (q *Queue[T]) GetNoWait() (T, bool) {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()

	if len(q.values) == 0 {
		var zero T
		return zero, false
	}
	return q.pop(), true
}

func (q *Queue[T]) IsEmpty() bool {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()
	return len(q.values) == 0
}

func (q *Queue[T]) Len() int {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()
	return len(q.values)
}

func (q *Queue[T]) pop() T {
	v := q.values[0]
	copy(q.values, q.values[1:])
	clear(q.values[len(q.values)-1:]) // helps GC
	q.values = q.values[:len(q.values)-1]
	return v
}
