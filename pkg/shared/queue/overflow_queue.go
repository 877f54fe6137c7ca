/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package queue

import "sync"

// OverflowQueue is a thread safe ring buffer with a fixed capacity, the oldest elements automatically overflow.
type OverflowQueue[T any] struct {
	elements []T
	// head is the index of the oldest element.
	head   int
	length int
	lock   *sync.RWMutex
}

// New returns an OverflowQueue holding at most size elements. A size smaller than 1 is treated as 1.
func New[T any](size int) *OverflowQueue[T] {
	if size < 1 {
		size = 1
	}
	return &OverflowQueue[T]{
		elements: make([]T, size),
		lock:     new(sync.RWMutex),
	}
}

// Append adds an element to the queue, evicting the oldest one when the queue is full.
func (q *OverflowQueue[T]) Append(value T) {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.append(value)
}

// AppendAll adds the elements in order under a single lock.
func (q *OverflowQueue[T]) AppendAll(values []T) {
	q.lock.Lock()
	defer q.lock.Unlock()
	for _, v := range values {
		q.append(v)
	}
}

func (q *OverflowQueue[T]) append(value T) {
	size := len(q.elements)
	if q.length < size {
		q.elements[(q.head+q.length)%size] = value
		q.length++
		return
	}
	q.elements[q.head] = value
	q.head = (q.head + 1) % size
}

// Items returns a copy of the elements in the queue, oldest first.
func (q *OverflowQueue[T]) Items() []T {
	return q.Tail(q.Capacity())
}

// Tail returns a copy of the newest n elements, oldest first.
func (q *OverflowQueue[T]) Tail(n int) []T {
	q.lock.RLock()
	defer q.lock.RUnlock()
	if n > q.length {
		n = q.length
	}
	if n < 0 {
		n = 0
	}
	r := make([]T, n)
	size := len(q.elements)
	start := q.head + q.length - n
	for i := 0; i < n; i++ {
		r[i] = q.elements[(start+i)%size]
	}
	return r
}

// Capacity returns the max number of elements the queue holds.
func (q *OverflowQueue[T]) Capacity() int {
	return len(q.elements)
}
