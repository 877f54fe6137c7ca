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
	"time"

	"k8s.io/utils/clock"

	bsv1 "github.com/numaproj/backlogscaler/pkg/apis/backlogscaler/v1alpha1"
)

type options struct {
	// batchSize is the number of pending readings which triggers a batch.
	batchSize int
	// historySize is the number of processed readings kept for observability.
	historySize int
	// anomalyCacheSize is the number of sensors whose latest anomaly is kept.
	anomalyCacheSize int
	// processingDelay simulates the analysis work done for each batch.
	processingDelay time.Duration
	clock           clock.Clock
}

type Option func(*options)

func defaultOptions() *options {
	return &options{
		batchSize:        bsv1.DefaultBatchSize,
		historySize:      bsv1.DefaultHistorySize,
		anomalyCacheSize: bsv1.DefaultAnomalyCacheSize,
		processingDelay:  bsv1.DefaultProcessingDelay,
		clock:            clock.RealClock{},
	}
}

// WithBatchSize sets the number of pending readings which triggers a batch.
func WithBatchSize(n int) Option {
	return func(o *options) {
		o.batchSize = n
	}
}

// WithHistorySize sets the number of processed readings kept.
func WithHistorySize(n int) Option {
	return func(o *options) {
		o.historySize = n
	}
}

// WithAnomalyCacheSize sets the number of sensors whose latest anomaly is kept.
func WithAnomalyCacheSize(n int) Option {
	return func(o *options) {
		o.anomalyCacheSize = n
	}
}

// WithProcessingDelay sets the simulated processing time of each batch, 0 disables it.
func WithProcessingDelay(d time.Duration) Option {
	return func(o *options) {
		o.processingDelay = d
	}
}

// WithClock sets the clock used to timestamp readings and measure processing time.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}
