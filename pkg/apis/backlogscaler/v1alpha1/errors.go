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

package v1alpha1

import "errors"

var (
	// ErrValidation is returned when a submitted reading is missing a required field or has a field of the wrong type.
	// It is the caller's fault and is never retried.
	ErrValidation = errors.New("validation error")
	// ErrUnavailable is returned when the metrics source or the replica store can not be reached.
	ErrUnavailable = errors.New("unavailable")
	// ErrConflict is returned when the replica count was changed by another actor between a read and a write.
	ErrConflict = errors.New("conflict")
	// ErrNotFound is returned when the managed workload does not exist.
	ErrNotFound = errors.New("not found")
)
