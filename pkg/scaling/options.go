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

package scaling

import (
	"k8s.io/utils/clock"
)

type options struct {
	// clock drives the poll and backoff intervals.
	clock clock.Clock
}

type Option func(*options)

func defaultOptions() *options {
	return &options{
		clock: clock.RealClock{},
	}
}

// WithClock sets the clock which drives the poll and backoff intervals.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}
