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

import "fmt"

// Signals is a point-in-time view of the load of the processor.
// It is never persisted, it's sampled fresh on every autoscaling cycle.
type Signals struct {
	// QueueDepth is the number of readings accepted but not yet processed.
	QueueDepth int64 `json:"queue_depth"`
	// ActiveRequests is the number of submissions currently being handled.
	ActiveRequests int64 `json:"active_requests"`
	// TotalProcessed is the cumulative number of readings which completed batch processing.
	TotalProcessed int64 `json:"total_processed"`
}

func (s Signals) String() string {
	return fmt.Sprintf("queue_depth=%d active_requests=%d total_processed=%d", s.QueueDepth, s.ActiveRequests, s.TotalProcessed)
}

// BatchResult is the statistical summary of one processed batch.
type BatchResult struct {
	BatchSize         int     `json:"batch_size"`
	MeanTemperature   float64 `json:"mean_temperature"`
	StdTemperature    float64 `json:"std_temperature"`
	AnomaliesDetected int     `json:"anomalies_detected"`
	// ProcessingTime is in seconds.
	ProcessingTime float64 `json:"processing_time"`
}

// Anomaly is a reading which deviates more than AnomalyStdDevFactor standard deviations from its batch mean.
type Anomaly struct {
	SensorID    string  `json:"sensor_id"`
	Temperature float64 `json:"temperature"`
	Deviation   float64 `json:"deviation"`
	Timestamp   float64 `json:"timestamp"`
}
