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

// Package ingest implements the ingestion side of the processor: a FIFO queue
// of pending sensor readings which releases fixed-size batches, and the batch
// processor computing a statistical summary for each released batch.
//
// The queue depth, the number of in-flight submissions and the cumulative
// number of processed readings are the load signals read by the autoscaler.
package ingest
