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

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ScalingPolicy defines the parameters for autoscaling the managed workload.
// It is set once at startup and not changed afterwards.
type ScalingPolicy struct {
	// Minimum replicas.
	// +optional
	MinReplicas *int32 `json:"minReplicas,omitempty"`
	// Maximum replicas.
	// +optional
	MaxReplicas *int32 `json:"maxReplicas,omitempty"`
	// TargetQueueDepth is the backlog size the autoscaler tries to keep the processor around.
	// +optional
	TargetQueueDepth *uint32 `json:"targetQueueDepth,omitempty"`
	// PollInterval is the time to wait between two successful autoscaling cycles.
	// +optional
	PollInterval *metav1.Duration `json:"pollInterval,omitempty"`
	// ErrorBackoffInterval is the time to wait after a failed autoscaling cycle.
	// It should be longer than PollInterval so that faults don't cause a tight retry loop.
	// +optional
	ErrorBackoffInterval *metav1.Duration `json:"errorBackoffInterval,omitempty"`
	// ReadTimeout bounds every read of the metrics source and the replica store.
	// +optional
	ReadTimeout *metav1.Duration `json:"readTimeout,omitempty"`
}

func (p ScalingPolicy) GetMinReplicas() int32 {
	if p.MinReplicas == nil {
		return DefaultMinReplicas
	}
	if *p.MinReplicas < 0 {
		return 0
	}
	return *p.MinReplicas
}

func (p ScalingPolicy) GetMaxReplicas() int32 {
	x := int32(DefaultMaxReplicas)
	if p.MaxReplicas != nil {
		x = *p.MaxReplicas
	}
	if min := p.GetMinReplicas(); x < min {
		return min
	}
	return x
}

func (p ScalingPolicy) GetTargetQueueDepth() int64 {
	if p.TargetQueueDepth == nil || *p.TargetQueueDepth == 0 {
		return DefaultTargetQueueDepth
	}
	return int64(*p.TargetQueueDepth)
}

func (p ScalingPolicy) GetPollInterval() time.Duration {
	if p.PollInterval == nil || p.PollInterval.Duration <= 0 {
		return DefaultPollInterval
	}
	return p.PollInterval.Duration
}

func (p ScalingPolicy) GetErrorBackoffInterval() time.Duration {
	if p.ErrorBackoffInterval == nil || p.ErrorBackoffInterval.Duration <= 0 {
		return DefaultErrorBackoffInterval
	}
	return p.ErrorBackoffInterval.Duration
}

func (p ScalingPolicy) GetReadTimeout() time.Duration {
	if p.ReadTimeout == nil || p.ReadTimeout.Duration <= 0 {
		return DefaultReadTimeout
	}
	return p.ReadTimeout.Duration
}

// Clamp bounds n to [min, max] replicas.
func (p ScalingPolicy) Clamp(n int32) int32 {
	if max := p.GetMaxReplicas(); n > max {
		return max
	}
	if min := p.GetMinReplicas(); n < min {
		return min
	}
	return n
}

// Validate reports every invalid field of the policy at once.
func (p ScalingPolicy) Validate() error {
	var err error
	if p.MinReplicas != nil && *p.MinReplicas < 0 {
		err = multierr.Append(err, fmt.Errorf("minReplicas must not be negative, got %d", *p.MinReplicas))
	}
	if p.MaxReplicas != nil && *p.MaxReplicas < p.GetMinReplicas() {
		err = multierr.Append(err, fmt.Errorf("maxReplicas %d must not be smaller than minReplicas %d", *p.MaxReplicas, p.GetMinReplicas()))
	}
	if p.TargetQueueDepth != nil && *p.TargetQueueDepth == 0 {
		err = multierr.Append(err, fmt.Errorf("targetQueueDepth must be greater than 0"))
	}
	for name, d := range map[string]*metav1.Duration{
		"pollInterval":         p.PollInterval,
		"errorBackoffInterval": p.ErrorBackoffInterval,
		"readTimeout":          p.ReadTimeout,
	} {
		if d != nil && d.Duration <= 0 {
			err = multierr.Append(err, fmt.Errorf("%s must be positive, got %v", name, d.Duration))
		}
	}
	return err
}
