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
	bsv1 "github.com/numaproj/backlogscaler/pkg/apis/backlogscaler/v1alpha1"
)

const (
	ReasonAggressiveScaleUp = "queue depth above twice the target"
	ReasonScaleUp           = "queue depth above the target"
	ReasonScaleDown         = "queue depth below half of the target"
	ReasonStable            = "queue depth around the target"
	ReasonActiveRequests    = "active requests above three per replica"
)

// Decision is the outcome of one scaling decision.
type Decision struct {
	Desired int32
	Reason  string
}

// rule is one row of the decision table.
type rule struct {
	reason  string
	applies func(current int32, s bsv1.Signals, p bsv1.ScalingPolicy) bool
	desired func(current int32, p bsv1.ScalingPolicy) int32
}

// rules are evaluated in order and the first one which applies wins, the last one always applies.
var rules = []rule{
	{
		reason: ReasonAggressiveScaleUp,
		applies: func(_ int32, s bsv1.Signals, p bsv1.ScalingPolicy) bool {
			return s.QueueDepth > 2*p.GetTargetQueueDepth()
		},
		desired: func(current int32, p bsv1.ScalingPolicy) int32 {
			return min(p.GetMaxReplicas(), current+2)
		},
	},
	{
		reason: ReasonScaleUp,
		applies: func(_ int32, s bsv1.Signals, p bsv1.ScalingPolicy) bool {
			return s.QueueDepth > p.GetTargetQueueDepth()
		},
		desired: func(current int32, p bsv1.ScalingPolicy) int32 {
			return min(p.GetMaxReplicas(), current+1)
		},
	},
	{
		reason: ReasonScaleDown,
		applies: func(current int32, s bsv1.Signals, p bsv1.ScalingPolicy) bool {
			return float64(s.QueueDepth) < float64(p.GetTargetQueueDepth())/2 && current > p.GetMinReplicas()
		},
		desired: func(current int32, p bsv1.ScalingPolicy) int32 {
			return max(p.GetMinReplicas(), current-1)
		},
	},
	{
		reason: ReasonStable,
		applies: func(int32, bsv1.Signals, bsv1.ScalingPolicy) bool {
			return true
		},
		desired: func(current int32, _ bsv1.ScalingPolicy) int32 {
			return current
		},
	},
}

// Decide calculates the desired replicas from the current replicas and the load signals.
//
// Only the queue depth drives the table. On top of it, when the active requests
// exceed three per current replica and the table didn't scale up, one replica
// is added. The result is always within [minReplicas, maxReplicas].
func Decide(current int32, s bsv1.Signals, p bsv1.ScalingPolicy) Decision {
	var d Decision
	for _, r := range rules {
		if r.applies(current, s, p) {
			d = Decision{Desired: r.desired(current, p), Reason: r.reason}
			break
		}
	}
	if s.ActiveRequests > int64(current)*3 && d.Desired <= current {
		d = Decision{Desired: min(p.GetMaxReplicas(), current+1), Reason: ReasonActiveRequests}
	}
	d.Desired = p.Clamp(d.Desired)
	return d
}
