// Copyright 2024 The Cockroach Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

// Derived from https://github.com/cockroachdb/fifo/blob/0bbfbd93/queue.go

// Package fifo provides the run queue used by the fiber scheduler.
package fifo

// Queue is a FIFO queue built from a chain of fixed-size ring buffers, so
// that a steady stream of pushes and pops does not allocate. It is not safe
// for concurrent access.
type Queue[T any] struct {
	len        int
	head, tail *ring[T]
	// spare is a single emptied ring kept for reuse.
	spare *ring[T]
}

// ringSize is the number of elements per ring.
const ringSize = 32

type ring[T any] struct {
	buf       [ringSize]T
	head, len int
	next      *ring[T]
}

// Len returns the number of queued elements.
func (q *Queue[T]) Len() int {
	return q.len
}

// Push appends t to the back of the queue.
func (q *Queue[T]) Push(t T) {
	switch {
	case q.tail == nil:
		q.head = q.newRing()
		q.tail = q.head
	case q.tail.len == ringSize:
		r := q.newRing()
		q.tail.next = r
		q.tail = r
	}
	r := q.tail
	r.buf[(r.head+r.len)%ringSize] = t
	r.len++
	q.len++
}

// Pop removes and returns the element at the front of the queue. ok is false
// if the queue is empty.
func (q *Queue[T]) Pop() (t T, ok bool) {
	if q.len == 0 {
		return t, false
	}
	r := q.head
	var zero T
	t, r.buf[r.head] = r.buf[r.head], zero
	r.head = (r.head + 1) % ringSize
	r.len--
	q.len--
	if r.len == 0 {
		q.head = r.next
		if q.head == nil {
			q.tail = nil
		}
		r.next = nil
		r.head = 0
		q.spare = r
	}
	return t, true
}

func (q *Queue[T]) newRing() *ring[T] {
	if r := q.spare; r != nil {
		q.spare = nil
		return r
	}
	return new(ring[T])
}
