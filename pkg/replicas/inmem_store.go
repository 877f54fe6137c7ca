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

package replicas

import (
	"context"
	"fmt"
	"sync"

	bsv1 "github.com/numaproj/backlogscaler/pkg/apis/backlogscaler/v1alpha1"
)

var _ Store = (*InMemStore)(nil)

// InMemStore keeps replica counts in memory. It backs dry runs, where the
// autoscaler decides without touching the cluster, and tests.
type InMemStore struct {
	lock     sync.RWMutex
	replicas map[WorkloadKey]int32
	readErr  error
	writeErr error
	writes   int
}

func NewInMemStore() *InMemStore {
	return &InMemStore{replicas: make(map[WorkloadKey]int32)}
}

// Set sets the replica count of a workload without counting as a write.
func (s *InMemStore) Set(key WorkloadKey, replicas int32) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.replicas[key] = replicas
}

// FailReads makes the following reads fail with err, nil restores them.
func (s *InMemStore) FailReads(err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.readErr = err
}

// FailWrites makes the following writes fail with err, nil restores them.
func (s *InMemStore) FailWrites(err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.writeErr = err
}

// Writes returns the number of successful writes.
func (s *InMemStore) Writes() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.writes
}

func (s *InMemStore) ReadReplicas(_ context.Context, key WorkloadKey) (int32, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.readErr != nil {
		return 0, s.readErr
	}
	r, ok := s.replicas[key]
	if !ok {
		return 0, fmt.Errorf("workload %s: %w: %w", key, bsv1.ErrUnavailable, bsv1.ErrNotFound)
	}
	return r, nil
}

func (s *InMemStore) WriteReplicas(_ context.Context, key WorkloadKey, replicas int32) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	if _, ok := s.replicas[key]; !ok {
		return fmt.Errorf("workload %s: %w: %w", key, bsv1.ErrUnavailable, bsv1.ErrNotFound)
	}
	s.replicas[key] = replicas
	s.writes++
	return nil
}
