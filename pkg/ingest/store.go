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

package ingest

import (
	"sync"

	bsv1 "github.com/numaproj/backlogscaler/pkg/apis/backlogscaler/v1alpha1"
	sharedqueue "github.com/numaproj/backlogscaler/pkg/shared/queue"
)

// Store holds the pending readings in arrival order, and a bounded history of
// the most recently processed ones.
type Store struct {
	lock    sync.Mutex
	pending []*bsv1.SensorReading
	history *sharedqueue.OverflowQueue[*bsv1.SensorReading]
}

// NewStore returns a Store which keeps at most historySize processed readings.
func NewStore(historySize int) *Store {
	return &Store{
		pending: make([]*bsv1.SensorReading, 0),
		history: sharedqueue.New[*bsv1.SensorReading](historySize),
	}
}

// Enqueue appends a reading to the pending queue and returns its 1-indexed position.
func (s *Store) Enqueue(r *bsv1.SensorReading) int {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.pending = append(s.pending, r)
	return len(s.pending)
}

// EnqueueAll appends the readings in order and returns the pending length afterwards.
func (s *Store) EnqueueAll(rs []*bsv1.SensorReading) int {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.pending = append(s.pending, rs...)
	return len(s.pending)
}

// DrainBatch removes and returns the oldest size readings if there are at least size pending.
// It returns false and leaves the queue untouched otherwise.
func (s *Store) DrainBatch(size int) ([]*bsv1.SensorReading, bool) {
	if size <= 0 {
		return nil, false
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if len(s.pending) < size {
		return nil, false
	}
	batch := make([]*bsv1.SensorReading, size)
	copy(batch, s.pending[:size])
	n := copy(s.pending, s.pending[size:])
	clear(s.pending[n:])
	s.pending = s.pending[:n]
	return batch, true
}

// Len returns the number of pending readings.
func (s *Store) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.pending)
}

// Record appends processed readings to the history, the oldest ones are evicted when it's full.
func (s *Store) Record(batch []*bsv1.SensorReading) {
	s.history.AppendAll(batch)
}

// Recent returns the newest n processed readings, oldest first.
func (s *Store) Recent(n int) []*bsv1.SensorReading {
	return s.history.Tail(n)
}
