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

package loadgen

import (
	"time"

	"k8s.io/utils/clock"
)

type options struct {
	// sensors and requestsPerSensor shape the gradual load phase.
	sensors           int
	requestsPerSensor int
	// sustainedSensors and sustainedRequestsPerSensor shape the sustained load phase.
	sustainedSensors           int
	sustainedRequestsPerSensor int
	// concurrency is the max number of sensors sending at the same time.
	concurrency int
	// stressRounds is the number of stress test requests, each generating stressBatchSize readings.
	stressRounds    int
	stressBatchSize int
	// a sensor pauses between minPause and maxPause after each request.
	minPause time.Duration
	maxPause time.Duration
	// roundPause is the pause between two stress test rounds.
	roundPause time.Duration
	// settlePause is the pause between the gradual load and the stress test phases.
	settlePause time.Duration
	// monitorInterval is the interval of logging the processor load, 0 disables it.
	monitorInterval time.Duration
	// timeout bounds each request.
	timeout time.Duration
	clock   clock.Clock
}

type Option func(*options)

func defaultOptions() *options {
	return &options{
		sensors:                    10,
		requestsPerSensor:          20,
		sustainedSensors:           20,
		sustainedRequestsPerSensor: 30,
		concurrency:                20,
		stressRounds:               5,
		stressBatchSize:            50,
		minPause:                   100 * time.Millisecond,
		maxPause:                   500 * time.Millisecond,
		roundPause:                 15 * time.Second,
		settlePause:                10 * time.Second,
		monitorInterval:            10 * time.Second,
		timeout:                    10 * time.Second,
		clock:                      clock.RealClock{},
	}
}

// WithGradualLoad sets the number of sensors of the gradual load phase, and the requests each one sends.
func WithGradualLoad(sensors, requestsPerSensor int) Option {
	return func(o *options) {
		o.sensors = sensors
		o.requestsPerSensor = requestsPerSensor
	}
}

// WithSustainedLoad sets the number of sensors of the sustained load phase, and the requests each one sends.
func WithSustainedLoad(sensors, requestsPerSensor int) Option {
	return func(o *options) {
		o.sustainedSensors = sensors
		o.sustainedRequestsPerSensor = requestsPerSensor
	}
}

// WithConcurrency sets the max number of sensors sending at the same time.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithStress sets the number of stress test rounds and the readings generated in each.
func WithStress(rounds, batchSize int) Option {
	return func(o *options) {
		o.stressRounds = rounds
		o.stressBatchSize = batchSize
	}
}

// WithRequestPause sets the range of the random pause of a sensor after each request.
func WithRequestPause(minPause, maxPause time.Duration) Option {
	return func(o *options) {
		o.minPause = minPause
		o.maxPause = maxPause
	}
}

// WithRoundPause sets the pause between two stress test rounds.
func WithRoundPause(d time.Duration) Option {
	return func(o *options) {
		o.roundPause = d
	}
}

// WithSettlePause sets the pause between the gradual load and the stress test phases.
func WithSettlePause(d time.Duration) Option {
	return func(o *options) {
		o.settlePause = d
	}
}

// WithMonitorInterval sets the interval of logging the processor load, 0 disables it.
func WithMonitorInterval(d time.Duration) Option {
	return func(o *options) {
		o.monitorInterval = d
	}
}

// WithTimeout sets the timeout of each request.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}
