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
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	bsv1 "github.com/numaproj/backlogscaler/pkg/apis/backlogscaler/v1alpha1"
	"github.com/numaproj/backlogscaler/pkg/metrics"
	"github.com/numaproj/backlogscaler/pkg/replicas"
	"github.com/numaproj/backlogscaler/pkg/shared/logging"
)

// Outcome is the result of one reconciliation.
type Outcome struct {
	From int32
	To   int32
	// Scaled is true when the replicas were written.
	Scaled bool
	// Conflict is true when the write lost against a concurrent update, the replicas stay at From.
	Conflict bool
}

func (o Outcome) String() string {
	if o.Scaled {
		return fmt.Sprintf("scaled %d→%d", o.From, o.To)
	}
	return fmt.Sprintf("stable at %d", o.To)
}

// Reconciler drives the replicas of a workload to a desired value.
type Reconciler struct {
	key    replicas.WorkloadKey
	store  replicas.Store
	policy bsv1.ScalingPolicy
}

func NewReconciler(key replicas.WorkloadKey, store replicas.Store, policy bsv1.ScalingPolicy) *Reconciler {
	return &Reconciler{key: key, store: store, policy: policy}
}

// Reconcile reads the current replicas and writes desired if it differs.
// The write is attempted once, a conflict is reported in the outcome and not retried.
func (r *Reconciler) Reconcile(ctx context.Context, desired int32) (Outcome, error) {
	log := logging.FromContext(ctx)
	readCtx, cancel := context.WithTimeout(ctx, r.policy.GetReadTimeout())
	current, err := r.store.ReadReplicas(readCtx, r.key)
	cancel()
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to read replicas of %s, %w", r.key, err)
	}
	desired = r.policy.Clamp(desired)
	if desired == current {
		outcome := Outcome{From: current, To: current}
		log.Infow("Replicas stable", zap.String("outcome", outcome.String()))
		return outcome, nil
	}

	writeCtx, cancel := context.WithTimeout(ctx, r.policy.GetReadTimeout())
	err = r.store.WriteReplicas(writeCtx, r.key, desired)
	cancel()
	if err != nil {
		if errors.Is(err, bsv1.ErrConflict) {
			outcome := Outcome{From: current, To: current, Conflict: true}
			log.Warnw("Replicas changed concurrently, skip scaling in this cycle", zap.Int32("from", current), zap.Int32("to", desired), zap.Error(err))
			return outcome, nil
		}
		return Outcome{}, fmt.Errorf("failed to write replicas of %s, %w", r.key, err)
	}
	outcome := Outcome{From: current, To: desired, Scaled: true}
	direction := "up"
	if desired < current {
		direction = "down"
	}
	metrics.ScaleTotal.WithLabelValues(r.key.Namespace, r.key.Name, direction).Inc()
	log.Infow("Auto scaling - replicas changed.", zap.String("outcome", outcome.String()), zap.Int32("from", current), zap.Int32("to", desired),
		zap.String("namespace", r.key.Namespace), zap.String("workload", r.key.Name))
	return outcome, nil
}
