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

// Package loadgen sends synthetic sensor readings to the processor, to drive
// its queue up and exercise the autoscaler.
//
// A run has three phases: a gradual load from a few sensors, a series of
// stress test rounds which enqueue readings in bulk, and a sustained load
// from more sensors. The processor load is logged while the run is going on.
package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	bsv1 "github.com/numaproj/backlogscaler/pkg/apis/backlogscaler/v1alpha1"
	"github.com/numaproj/backlogscaler/pkg/ingest"
	"github.com/numaproj/backlogscaler/pkg/ingest/server"
	"github.com/numaproj/backlogscaler/pkg/shared/logging"
	"github.com/numaproj/backlogscaler/pkg/signals"
)

// Report counts the outcome of the requests of a run.
type Report struct {
	// Sent is the number of readings submitted.
	Sent int64 `json:"sent"`
	// Succeeded is the number of submissions accepted by the processor.
	Succeeded int64 `json:"succeeded"`
	// Failed is the number of submissions which got an error or a non 200 response.
	Failed int64 `json:"failed"`
	// Queued is the number of accepted submissions which were queued.
	Queued int64 `json:"queued"`
	// Processed is the number of accepted submissions which released a batch.
	Processed int64 `json:"processed"`
	// StressGenerated is the number of readings generated by the stress test rounds.
	StressGenerated int64 `json:"stressGenerated"`
}

// submitResponse is the union of the queued and the processed responses.
type submitResponse struct {
	Status        ingest.SubmitStatus `json:"status"`
	QueuePosition int                 `json:"queue_position"`
	BatchResult   *bsv1.BatchResult   `json:"batch_result"`
}

// Generator sends load to one processor.
type Generator struct {
	baseURL    string
	httpClient *http.Client
	source     signals.Source
	options    *options
	log        *zap.SugaredLogger

	sent            *atomic.Int64
	succeeded       *atomic.Int64
	failed          *atomic.Int64
	queued          *atomic.Int64
	processed       *atomic.Int64
	stressGenerated *atomic.Int64
}

// NewGenerator returns a Generator sending load to the processor at baseURL.
func NewGenerator(ctx context.Context, baseURL string, opts ...Option) (*Generator, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	return &Generator{
		baseURL:         baseURL,
		httpClient:      &http.Client{Timeout: o.timeout},
		source:          signals.NewScrapeSource(ctx, baseURL, o.timeout),
		options:         o,
		log:             logging.FromContext(ctx).Named("loadgen"),
		sent:            atomic.NewInt64(0),
		succeeded:       atomic.NewInt64(0),
		failed:          atomic.NewInt64(0),
		queued:          atomic.NewInt64(0),
		processed:       atomic.NewInt64(0),
		stressGenerated: atomic.NewInt64(0),
	}, nil
}

func (o *options) validate() error {
	var err error
	if o.sensors < 0 || o.requestsPerSensor < 0 || o.sustainedSensors < 0 || o.sustainedRequestsPerSensor < 0 {
		err = multierr.Append(err, errors.New("sensors and requests per sensor must not be negative"))
	}
	if o.concurrency <= 0 {
		err = multierr.Append(err, fmt.Errorf("concurrency must be positive, got %d", o.concurrency))
	}
	if o.stressRounds < 0 {
		err = multierr.Append(err, fmt.Errorf("stress rounds must not be negative, got %d", o.stressRounds))
	}
	if o.stressBatchSize < 0 || o.stressBatchSize > bsv1.DefaultMaxStressBatchSize {
		err = multierr.Append(err, fmt.Errorf("stress batch size must be between 0 and %d, got %d", bsv1.DefaultMaxStressBatchSize, o.stressBatchSize))
	}
	if o.minPause < 0 || o.maxPause < o.minPause {
		err = multierr.Append(err, fmt.Errorf("invalid request pause range [%v, %v]", o.minPause, o.maxPause))
	}
	if o.timeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("timeout must be positive, got %v", o.timeout))
	}
	return err
}

// Report returns the counts of the requests sent so far.
func (g *Generator) Report() Report {
	return Report{
		Sent:            g.sent.Load(),
		Succeeded:       g.succeeded.Load(),
		Failed:          g.failed.Load(),
		Queued:          g.queued.Load(),
		Processed:       g.processed.Load(),
		StressGenerated: g.stressGenerated.Load(),
	}
}

// Run checks the processor is healthy and runs the three load phases. Failed
// requests are counted and logged, they don't stop the run. It returns an
// error when the processor is not healthy or ctx is done.
func (g *Generator) Run(ctx context.Context) (Report, error) {
	o := g.options
	if err := g.checkHealth(ctx); err != nil {
		return g.Report(), err
	}

	monitorCtx, stopMonitor := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		g.monitor(monitorCtx)
	}()
	defer func() {
		stopMonitor()
		wg.Wait()
	}()

	g.log.Infow("Phase 1: gradual load", zap.Int("sensors", o.sensors), zap.Int("requestsPerSensor", o.requestsPerSensor))
	if err := g.sendAll(ctx, 0, o.sensors, o.requestsPerSensor); err != nil {
		return g.Report(), err
	}
	if err := g.pause(ctx, o.settlePause); err != nil {
		return g.Report(), err
	}

	g.log.Infow("Phase 2: stress test", zap.Int("rounds", o.stressRounds), zap.Int("batchSize", o.stressBatchSize))
	for i := 0; i < o.stressRounds; i++ {
		if err := g.stress(ctx); err != nil {
			if ctx.Err() != nil {
				return g.Report(), ctx.Err()
			}
			g.log.Warnw("Stress test round failed, skip the remaining rounds", zap.Int("round", i+1), zap.Error(err))
			break
		}
		if i < o.stressRounds-1 {
			if err := g.pause(ctx, o.roundPause); err != nil {
				return g.Report(), err
			}
		}
	}

	g.log.Infow("Phase 3: sustained load", zap.Int("sensors", o.sustainedSensors), zap.Int("requestsPerSensor", o.sustainedRequestsPerSensor))
	if err := g.sendAll(ctx, o.sensors, o.sustainedSensors, o.sustainedRequestsPerSensor); err != nil {
		return g.Report(), err
	}
	report := g.Report()
	g.log.Infow("Load generation finished", zap.Any("report", report))
	return report, nil
}

func (g *Generator) checkHealth(ctx context.Context) error {
	resp, err := g.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return fmt.Errorf("processor at %s is not healthy: %w: %w", g.baseURL, bsv1.ErrUnavailable, err)
	}
	_ = resp.Body.Close()
	return nil
}

// sendAll runs sensors [first, first+count) concurrently, each sending requests readings.
func (g *Generator) sendAll(ctx context.Context, first, count, requests int) error {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.options.concurrency)
	for sensor := first; sensor < first+count; sensor++ {
		eg.Go(func() error {
			return g.sendSensor(egCtx, sensor, requests)
		})
	}
	return eg.Wait()
}

func (g *Generator) sendSensor(ctx context.Context, sensor, requests int) error {
	for i := 0; i < requests; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		r := randomReading(fmt.Sprintf("sensor_%d_%04d", sensor, i), g.options.clock.Now())
		if err := g.submit(ctx, r); err != nil {
			g.log.Warnw("Failed to submit sensor data", zap.String("sensorID", r.SensorID), zap.Error(err))
		}
		if err := g.pause(ctx, g.jitter()); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) submit(ctx context.Context, r *bsv1.SensorReading) error {
	body, err := json.Marshal(r.Payload())
	if err != nil {
		return err
	}
	g.sent.Inc()
	resp, err := g.do(ctx, http.MethodPost, "/sensor-data", body)
	if err != nil {
		g.failed.Inc()
		return err
	}
	defer resp.Body.Close()
	result := submitResponse{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		g.failed.Inc()
		return fmt.Errorf("failed to decode submit response, %w", err)
	}
	g.succeeded.Inc()
	if result.Status == ingest.StatusProcessed {
		g.processed.Inc()
		g.log.Debugw("Batch processed", zap.String("sensorID", r.SensorID), zap.Any("batchResult", result.BatchResult))
	} else {
		g.queued.Inc()
		g.log.Debugw("Queued", zap.String("sensorID", r.SensorID), zap.Int("position", result.QueuePosition))
	}
	return nil
}

func (g *Generator) stress(ctx context.Context) error {
	batchSize := g.options.stressBatchSize
	body, err := json.Marshal(server.StressTestRequest{BatchSize: &batchSize})
	if err != nil {
		return err
	}
	resp, err := g.do(ctx, http.MethodPost, "/stress-test", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	result := server.StressTestResponse{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode stress test response, %w", err)
	}
	g.stressGenerated.Add(int64(result.Generated))
	g.log.Infow("Stress test round done", zap.Int("generated", result.Generated), zap.Int("totalQueue", result.TotalQueue))
	return nil
}

// do sends a request, a response with a status other than 200 is an error.
func (g *Generator) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%s %s returned status %d", method, path, resp.StatusCode)
	}
	return resp, nil
}

// monitor logs the processor load every monitor interval until ctx is done.
func (g *Generator) monitor(ctx context.Context) {
	if g.options.monitorInterval <= 0 {
		return
	}
	ticker := g.options.clock.NewTicker(g.options.monitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s, err := g.source.Sample(ctx)
			if err != nil {
				g.log.Warnw("Failed to read the processor load", zap.Error(err))
				continue
			}
			g.log.Infow("Processor load", zap.Int64("queueDepth", s.QueueDepth), zap.Int64("activeRequests", s.ActiveRequests),
				zap.Int64("totalProcessed", s.TotalProcessed))
		}
	}
}

func (g *Generator) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-g.options.clock.After(d):
		return nil
	}
}

// jitter returns a random pause in [minPause, maxPause).
func (g *Generator) jitter() time.Duration {
	if g.options.maxPause <= g.options.minPause {
		return g.options.minPause
	}
	return g.options.minPause + rand.N(g.options.maxPause-g.options.minPause)
}

// randomReading returns a plausible reading of an indoor sensor.
func randomReading(sensorID string, now time.Time) *bsv1.SensorReading {
	pressure := round2(1000 + rand.Float64()*20)
	return &bsv1.SensorReading{
		SensorID:    sensorID,
		Temperature: round2(15 + rand.Float64()*20),
		Humidity:    round2(30 + rand.Float64()*50),
		Pressure:    &pressure,
		Timestamp:   float64(now.UnixNano()) / 1e9,
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
