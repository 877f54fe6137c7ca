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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelVersion   = "version"
	LabelPlatform  = "platform"
	LabelComponent = "component"
	LabelNamespace = "ns"
	LabelWorkload  = "workload"
	LabelDirection = "direction"
	LabelReason    = "reason"
)

var (
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "A metric with a constant value '1', labeled by binary version, platform, and component",
	}, []string{LabelComponent, LabelVersion, LabelPlatform})
)

// Processor metrics. The names of QueueSize and ActiveRequests are scraped by the autoscaler, don't change them.
var (
	// RequestsTotal is the number of batches processed.
	RequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "iot_requests_total",
		Help: "Total IoT data processing requests",
	})

	// ProcessingDuration observes the latency of a submission, including batch processing when a batch was released.
	ProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "iot_processing_duration_seconds",
		Help:    "IoT data processing duration",
		Buckets: prometheus.DefBuckets,
	})

	// CPULoad is the instantaneous load gauge, it's set to the duration of the last batch in percent of one second.
	CPULoad = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cpu_load_percent",
		Help: "Simulated CPU load percentage",
	})

	// ActiveRequests is the number of in-flight submissions.
	ActiveRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "active_requests",
		Help: "Number of active processing requests",
	})

	// QueueSize is the number of pending readings.
	QueueSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "processing_queue_size",
		Help: "Size of processing queue",
	})

	// ProcessedItemsTotal is the number of readings which completed batch processing.
	ProcessedItemsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "iot_processed_items_total",
		Help: "Total number of sensor readings processed",
	})

	// AnomaliesTotal is the number of anomalous readings detected.
	AnomaliesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "iot_anomalies_total",
		Help: "Total number of anomalous sensor readings detected",
	})

	// RejectedTotal is the number of submissions rejected by validation.
	RejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iot_rejected_total",
		Help: "Total number of rejected sensor readings",
	}, []string{LabelReason})
)

// Autoscaler metrics
var (
	// CurrentReplicas is the replica count read from the replica store in the last cycle.
	CurrentReplicas = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "autoscaler",
		Name:      "current_replicas",
		Help:      "Replica count of the managed workload observed in the last cycle",
	}, []string{LabelNamespace, LabelWorkload})

	// DesiredReplicas is the replica count decided in the last cycle.
	DesiredReplicas = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "autoscaler",
		Name:      "desired_replicas",
		Help:      "Replica count of the managed workload decided in the last cycle",
	}, []string{LabelNamespace, LabelWorkload})

	// ObservedQueueDepth is the queue depth sampled in the last cycle.
	ObservedQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "autoscaler",
		Name:      "observed_queue_depth",
		Help:      "Queue depth sampled in the last cycle",
	}, []string{LabelNamespace, LabelWorkload})

	// ObservedActiveRequests is the active requests sampled in the last cycle.
	ObservedActiveRequests = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "autoscaler",
		Name:      "observed_active_requests",
		Help:      "Active requests sampled in the last cycle",
	}, []string{LabelNamespace, LabelWorkload})

	// ScaleTotal counts replica changes written to the replica store, by direction (up or down).
	ScaleTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "autoscaler",
		Name:      "scale_total",
		Help:      "Total number of scaling operations",
	}, []string{LabelNamespace, LabelWorkload, LabelDirection})

	// CycleErrors counts failed or degraded cycles, by reason.
	CycleErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "autoscaler",
		Name:      "cycle_errors_total",
		Help:      "Total number of autoscaling cycles which hit an error",
	}, []string{LabelNamespace, LabelWorkload, LabelReason})

	// InBackoff is 1 when the control loop is in backoff, 0 otherwise.
	InBackoff = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "autoscaler",
		Name:      "in_backoff",
		Help:      "Whether the autoscaler is backing off after a failed cycle",
	}, []string{LabelNamespace, LabelWorkload})
)
