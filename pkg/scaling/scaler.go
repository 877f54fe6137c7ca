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

	"go.uber.org/atomic"
	"go.uber.org/zap"

	bsv1 "github.com/numaproj/backlogscaler/pkg/apis/backlogscaler/v1alpha1"
	"github.com/numaproj/backlogscaler/pkg/metrics"
	"github.com/numaproj/backlogscaler/pkg/replicas"
	"github.com/numaproj/backlogscaler/pkg/shared/logging"
	"github.com/numaproj/backlogscaler/pkg/signals"
)

// State is the state of the control loop.
type State string

const (
	StateRunning State = "Running"
	StateBackoff State = "Backoff"
)

// Scaler runs the autoscaling control loop of one workload.
type Scaler struct {
	key        replicas.WorkloadKey
	source     signals.Source
	store      replicas.Store
	reconciler *Reconciler
	policy     bsv1.ScalingPolicy
	state      *atomic.String
	// firstCycleDone is set once a cycle got past the replica read.
	firstCycleDone *atomic.Bool
	options        *options
}

// NewScaler returns a Scaler instance.
func NewScaler(key replicas.WorkloadKey, source signals.Source, store replicas.Store, policy bsv1.ScalingPolicy, opts ...Option) *Scaler {
	s := &Scaler{
		key:            key,
		source:         source,
		store:          store,
		reconciler:     NewReconciler(key, store, policy),
		policy:         policy,
		state:          atomic.NewString(string(StateRunning)),
		firstCycleDone: atomic.NewBool(false),
		options:        defaultOptions(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s.options)
		}
	}
	return s
}

// State returns the current state of the control loop.
func (s *Scaler) State() State {
	return State(s.state.Load())
}

func (s *Scaler) setState(state State) {
	s.state.Store(string(state))
	inBackoff := 0.0
	if state == StateBackoff {
		inBackoff = 1
	}
	metrics.InBackoff.WithLabelValues(s.key.Namespace, s.key.Name).Set(inBackoff)
}

// Start runs the control loop until ctx is done. A successful cycle is followed
// by the poll interval, a failed one puts the loop in backoff for the error
// backoff interval. It only returns when ctx is done.
func (s *Scaler) Start(ctx context.Context) error {
	log := logging.FromContext(ctx).Named("autoscaler").With("workload", s.key.String())
	ctx = logging.WithLogger(ctx, log)
	log.Infow("Starting autoscaler...", zap.Int32("min", s.policy.GetMinReplicas()), zap.Int32("max", s.policy.GetMaxReplicas()),
		zap.Int64("targetQueueDepth", s.policy.GetTargetQueueDepth()), zap.Duration("pollInterval", s.policy.GetPollInterval()))
	for {
		s.setState(StateRunning)
		interval := s.policy.GetPollInterval()
		if err := s.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				log.Info("Shutting down autoscaler.")
				return nil
			}
			log.Errorw("Autoscaling cycle failed, backing off", zap.Duration("backoff", s.policy.GetErrorBackoffInterval()), zap.Error(err))
			s.setState(StateBackoff)
			interval = s.policy.GetErrorBackoffInterval()
		}
		select {
		case <-ctx.Done():
			log.Info("Shutting down autoscaler.")
			return nil
		case <-s.options.clock.After(interval):
		}
	}
}

// RunOnce executes one autoscaling cycle. It returns an error when the cycle
// failed to read or write the replicas.
func (s *Scaler) RunOnce(ctx context.Context) error {
	log := logging.FromContext(ctx)
	ns, name := s.key.Namespace, s.key.Name

	sampleCtx, cancel := context.WithTimeout(ctx, s.policy.GetReadTimeout())
	sig, err := s.source.Sample(sampleCtx)
	cancel()
	if err != nil {
		reason := "signals"
		if !errors.Is(err, bsv1.ErrUnavailable) {
			reason = "signals_invalid"
		}
		metrics.CycleErrors.WithLabelValues(ns, name, reason).Inc()
		log.Warnw("Failed to sample signals, assuming no load", zap.Error(err))
		sig = bsv1.Signals{}
	}
	metrics.ObservedQueueDepth.WithLabelValues(ns, name).Set(float64(sig.QueueDepth))
	metrics.ObservedActiveRequests.WithLabelValues(ns, name).Set(float64(sig.ActiveRequests))

	var desired int32
	readCtx, cancel := context.WithTimeout(ctx, s.policy.GetReadTimeout())
	current, err := s.store.ReadReplicas(readCtx, s.key)
	cancel()
	switch {
	case err == nil:
		metrics.CurrentReplicas.WithLabelValues(ns, name).Set(float64(current))
		decision := Decide(current, sig, s.policy)
		desired = decision.Desired
		log.Infow("Scaling decision", zap.String("signals", sig.String()), zap.Int32("current", current),
			zap.Int32("desired", desired), zap.String("reason", decision.Reason))
	case !s.firstCycleDone.Load():
		desired = s.policy.GetMinReplicas()
		metrics.CycleErrors.WithLabelValues(ns, name, "replicas").Inc()
		log.Warnw("Failed to read replicas on the first cycle, using the minimum", zap.Int32("desired", desired), zap.Error(err))
	default:
		metrics.CycleErrors.WithLabelValues(ns, name, "replicas").Inc()
		return fmt.Errorf("failed to read replicas, %w", err)
	}
	s.firstCycleDone.Store(true)
	metrics.DesiredReplicas.WithLabelValues(ns, name).Set(float64(desired))

	if _, err := s.reconciler.Reconcile(ctx, desired); err != nil {
		metrics.CycleErrors.WithLabelValues(ns, name, "reconcile").Inc()
		return err
	}
	return nil
}
