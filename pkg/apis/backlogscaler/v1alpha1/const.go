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

import "time"

const (
	Project = "backlogscaler"

	// Environment variables
	EnvPrefix               = "BACKLOGSCALER"
	EnvDebug                = "BACKLOGSCALER_DEBUG"
	EnvNamespace            = "BACKLOGSCALER_NAMESPACE"
	EnvWorkloadName         = "BACKLOGSCALER_WORKLOAD_NAME"
	EnvProcessorURL         = "BACKLOGSCALER_PROCESSOR_URL"
	EnvMinReplicas          = "BACKLOGSCALER_MIN_REPLICAS"
	EnvMaxReplicas          = "BACKLOGSCALER_MAX_REPLICAS"
	EnvTargetQueueDepth     = "BACKLOGSCALER_TARGET_QUEUE_DEPTH"
	EnvPollInterval         = "BACKLOGSCALER_POLL_INTERVAL"
	EnvErrorBackoffInterval = "BACKLOGSCALER_ERROR_BACKOFF_INTERVAL"
	EnvBatchSize            = "BACKLOGSCALER_BATCH_SIZE"
	EnvHistorySize          = "BACKLOGSCALER_HISTORY_SIZE"
	EnvConfigFile           = "BACKLOGSCALER_CONFIG_FILE"

	// Ports
	ProcessorPort          = 8080
	AutoscalerMetricsPort  = 9090
	DefaultConfigDirectory = "/etc/backlogscaler"
	DefaultConfigName      = "config"

	DefaultNamespace    = "default"
	DefaultWorkloadName = "iot-processor"
	DefaultProcessorURL = "http://iot-processor-service.default.svc.cluster.local"
	ProcessorService    = "iot-data-processor"

	// Scaling policy defaults
	DefaultMinReplicas          = 1
	DefaultMaxReplicas          = 5
	DefaultTargetQueueDepth     = 3
	DefaultPollInterval         = 30 * time.Second
	DefaultErrorBackoffInterval = 60 * time.Second
	DefaultReadTimeout          = 5 * time.Second

	// Ingestion defaults
	DefaultBatchSize        = 5
	DefaultHistorySize      = 1000
	DefaultRecentDataCount  = 10
	DefaultAnomalyCacheSize = 500
	DefaultProcessingDelay  = 100 * time.Millisecond
	DefaultStressBatchSize  = 10

	// DefaultMaxStressBatchSize caps the synthetic readings generated by one stress test request.
	DefaultMaxStressBatchSize = 10000

	// MaxAbsMeasurement bounds the absolute value of temperature, humidity and pressure readings.
	MaxAbsMeasurement = 1e6

	// AnomalyStdDevFactor flags readings deviating more than this many standard deviations from the batch mean.
	AnomalyStdDevFactor = 2.0
)
