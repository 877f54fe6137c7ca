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

// Package replicas reads and writes the replica count of the scaled workload.
package replicas

import (
	"context"

	"k8s.io/apimachinery/pkg/types"
)

// WorkloadKey identifies the scaled workload.
type WorkloadKey = types.NamespacedName

// Store reads and writes the replica count of a workload.
// Implementations return errors matching bsv1.ErrUnavailable when the backend
// can't be reached, and bsv1.ErrConflict when a write lost a concurrent update.
type Store interface {
	ReadReplicas(ctx context.Context, key WorkloadKey) (int32, error)
	WriteReplicas(ctx context.Context, key WorkloadKey, replicas int32) error
}
