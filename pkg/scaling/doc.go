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

// Package scaling is used to autoscale the replicas of the processor workload.
//
// Each cycle samples the load signals of the processor, reads the current
// replicas, decides the desired replicas with a fixed hysteresis band around
// the target queue depth, and reconciles the workload to it. A failed cycle
// puts the loop in backoff for a longer interval before it returns to running.
package scaling
