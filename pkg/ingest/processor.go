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
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	bsv1 "github.com/numaproj/backlogscaler/pkg/apis/backlogscaler/v1alpha1"
	"github.com/numaproj/backlogscaler/pkg/metrics"
	"github.com/numaproj/backlogscaler/pkg/shared/logging"
)

type SubmitStatus string

const (
	StatusQueued    SubmitStatus = "queued"
	StatusProcessed SubmitStatus = "processed"
)

// SubmitResult is the outcome of one accepted submission. Either the reading
// was queued at Position, or the submission released a batch which got processed.
type SubmitResult struct {
	Status   SubmitStatus
	SensorID string
	// Position is the 1-indexed queue position, set when Status is queued.
	Position int
	// Batch is the batch summary, set when Status is processed.
	Batch          *bsv1.BatchResult
	QueueRemaining int
}

// Processor accepts sensor readings, batches them and processes the batches.
// It is safe for concurrent use.
type Processor struct {
	store          *Store
	options        *options
	log            *zap.SugaredLogger
	activeRequests *atomic.Int64
	totalProcessed *atomic.Int64
	// latest anomaly per sensor id
	anomalies *lru.Cache[string, bsv1.Anomaly]
}

// NewProcessor returns a Processor instance.
func NewProcessor(ctx context.Context, opts ...Option) (*Processor, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", o.batchSize)
	}
	if o.historySize <= 0 {
		return nil, fmt.Errorf("history size must be positive, got %d", o.historySize)
	}
	anomalies, err := lru.New[string, bsv1.Anomaly](o.anomalyCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create anomaly cache, %w", err)
	}
	return &Processor{
		store:          NewStore(o.historySize),
		options:        o,
		log:            logging.FromContext(ctx).Named("processor"),
		activeRequests: atomic.NewInt64(0),
		totalProcessed: atomic.NewInt64(0),
		anomalies:      anomalies,
	}, nil
}

// Submit validates and enqueues a reading. When the queue reaches the batch
// size, the oldest batch is drained and processed within the same call.
// It fails with an error matching bsv1.ErrValidation if the reading is invalid.
func (p *Processor) Submit(ctx context.Context, raw map[string]any) (*SubmitResult, error) {
	start := p.options.clock.Now()
	p.activeRequests.Inc()
	metrics.ActiveRequests.Inc()
	defer func() {
		p.activeRequests.Dec()
		metrics.ActiveRequests.Dec()
		metrics.ProcessingDuration.Observe(p.options.clock.Since(start).Seconds())
	}()

	reading, err := bsv1.ParseSensorReading(raw)
	if err != nil {
		var verr *bsv1.ValidationError
		reason := "invalid"
		if errors.As(err, &verr) {
			reason = verr.Reason
		}
		metrics.RejectedTotal.WithLabelValues(reason).Inc()
		return nil, err
	}
	reading.ID = uuid.New().String()
	reading.ReceivedAt = start

	position := p.store.Enqueue(reading)
	batch, ok := p.store.DrainBatch(p.options.batchSize)
	metrics.QueueSize.Set(float64(p.store.Len()))
	if !ok {
		return &SubmitResult{Status: StatusQueued, SensorID: reading.SensorID, Position: position}, nil
	}
	result := p.ProcessBatch(ctx, batch)
	return &SubmitResult{
		Status:         StatusProcessed,
		SensorID:       reading.SensorID,
		Batch:          &result,
		QueueRemaining: p.store.Len(),
	}, nil
}

// ProcessBatch summarizes a batch which has already been removed from the queue,
// and records it as processed. The batch is recorded even if ctx is done.
func (p *Processor) ProcessBatch(ctx context.Context, batch []*bsv1.SensorReading) bsv1.BatchResult {
	start := p.options.clock.Now()
	result, anomalies := Summarize(batch)
	if len(batch) == 0 {
		return result
	}
	if p.options.processingDelay > 0 {
		select {
		case <-ctx.Done():
		case <-p.options.clock.After(p.options.processingDelay):
		}
	}
	elapsed := p.options.clock.Since(start)
	result.ProcessingTime = elapsed.Seconds()
	metrics.CPULoad.Set(elapsed.Seconds() * 100)

	p.store.Record(batch)
	p.totalProcessed.Add(int64(len(batch)))
	for _, a := range anomalies {
		p.anomalies.Add(a.SensorID, a)
	}
	metrics.RequestsTotal.Inc()
	metrics.ProcessedItemsTotal.Add(float64(len(batch)))
	metrics.AnomaliesTotal.Add(float64(len(anomalies)))
	p.log.Debugw("Processed a batch", zap.Int("size", result.BatchSize), zap.Float64("mean", result.MeanTemperature),
		zap.Float64("std", result.StdTemperature), zap.Int("anomalies", result.AnomaliesDetected))
	return result
}

// Generate enqueues n synthetic readings without releasing any batch, and returns the queue length afterwards.
func (p *Processor) Generate(n int) int {
	if n <= 0 {
		return p.store.Len()
	}
	now := p.options.clock.Now()
	readings := make([]*bsv1.SensorReading, n)
	for i := range readings {
		pressure := round2(900 + rand.Float64()*200)
		readings[i] = &bsv1.SensorReading{
			ID:          uuid.New().String(),
			SensorID:    fmt.Sprintf("sensor_%d", 1000+rand.IntN(9000)),
			Temperature: round2(-10 + rand.Float64()*50),
			Humidity:    round2(rand.Float64() * 100),
			Pressure:    &pressure,
			Timestamp:   float64(now.UnixNano()) / 1e9,
			ReceivedAt:  now,
		}
	}
	total := p.store.EnqueueAll(readings)
	metrics.QueueSize.Set(float64(total))
	return total
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// Signals returns the current load signals. It never blocks on the processing path for longer than the queue lock.
func (p *Processor) Signals() bsv1.Signals {
	return bsv1.Signals{
		QueueDepth:     int64(p.store.Len()),
		ActiveRequests: p.activeRequests.Load(),
		TotalProcessed: p.totalProcessed.Load(),
	}
}

// QueueLen returns the number of pending readings.
func (p *Processor) QueueLen() int {
	return p.store.Len()
}

// Recent returns the newest n processed readings, oldest first.
func (p *Processor) Recent(n int) []*bsv1.SensorReading {
	return p.store.Recent(n)
}

// Anomalies returns the latest anomaly of each sensor still in the cache, ordered by sensor id.
func (p *Processor) Anomalies() []bsv1.Anomaly {
	keys := p.anomalies.Keys()
	sort.Strings(keys)
	result := make([]bsv1.Anomaly, 0, len(keys))
	for _, k := range keys {
		if a, ok := p.anomalies.Peek(k); ok {
			result = append(result, a)
		}
	}
	return result
}
