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
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	bsv1 "github.com/numaproj/backlogscaler/pkg/apis/backlogscaler/v1alpha1"
	"github.com/numaproj/backlogscaler/pkg/ingest"
	"github.com/numaproj/backlogscaler/pkg/ingest/server"
	"github.com/numaproj/backlogscaler/pkg/shared/logging"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
	)
}

func testContext() context.Context {
	return logging.WithLogger(context.Background(), logging.NewNopLogger())
}

func startProcessor(t *testing.T) (*httptest.Server, *ingest.Processor) {
	t.Helper()
	p, err := ingest.NewProcessor(testContext(), ingest.WithProcessingDelay(0))
	require.NoError(t, err)
	router := gin.New()
	server.Routes(router, p, logging.NewNopLogger())
	ts := httptest.NewServer(router)
	t.Cleanup(func() {
		ts.CloseClientConnections()
		ts.Close()
	})
	return ts, p
}

func noPauses() []Option {
	return []Option{
		WithRequestPause(0, 0),
		WithRoundPause(0),
		WithSettlePause(0),
		WithMonitorInterval(0),
		WithTimeout(5 * time.Second),
	}
}

func TestRun_Sequential(t *testing.T) {
	ts, p := startProcessor(t)
	opts := append(noPauses(),
		WithGradualLoad(3, 10),
		WithSustainedLoad(2, 5),
		WithStress(2, 7),
		WithConcurrency(1),
	)
	g, err := NewGenerator(testContext(), ts.URL+"/", opts...)
	require.NoError(t, err)

	report, err := g.Run(testContext())
	require.NoError(t, err)
	// 30 gradual submissions release 6 batches, the 14 stress readings and
	// 10 sustained submissions release 4 more and leave 4 pending.
	assert.Equal(t, Report{Sent: 40, Succeeded: 40, Queued: 30, Processed: 10, StressGenerated: 14}, report)
	assert.Equal(t, int64(50), p.Signals().TotalProcessed)
	assert.Equal(t, 4, p.QueueLen())
}

func TestRun_Concurrent(t *testing.T) {
	ts, p := startProcessor(t)
	opts := append(noPauses(),
		WithGradualLoad(8, 12),
		WithSustainedLoad(6, 9),
		WithStress(3, 4),
		WithConcurrency(4),
	)
	g, err := NewGenerator(testContext(), ts.URL, opts...)
	require.NoError(t, err)

	report, err := g.Run(testContext())
	require.NoError(t, err)
	assert.Equal(t, int64(8*12+6*9), report.Sent)
	assert.Equal(t, report.Sent, report.Succeeded)
	assert.Equal(t, report.Succeeded, report.Queued+report.Processed)
	assert.Equal(t, int64(12), report.StressGenerated)
	// no reading is lost or processed twice
	assert.Equal(t, report.Processed*bsv1.DefaultBatchSize, p.Signals().TotalProcessed)
	assert.Equal(t, report.Sent+report.StressGenerated, p.Signals().TotalProcessed+int64(p.QueueLen()))
}

func TestRun_Unhealthy(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()
	g, err := NewGenerator(testContext(), url, noPauses()...)
	require.NoError(t, err)
	report, err := g.Run(testContext())
	assert.True(t, errors.Is(err, bsv1.ErrUnavailable))
	assert.Equal(t, Report{}, report)
}

func TestRun_CountsFailures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	opts := append(noPauses(), WithGradualLoad(2, 3), WithSustainedLoad(1, 2), WithStress(3, 5))
	g, err := NewGenerator(testContext(), ts.URL, opts...)
	require.NoError(t, err)
	report, err := g.Run(testContext())
	require.NoError(t, err)
	assert.Equal(t, Report{Sent: 8, Failed: 8}, report)
}

func TestRun_Cancelled(t *testing.T) {
	ts, _ := startProcessor(t)
	opts := append(noPauses(), WithGradualLoad(2, 1000), WithRequestPause(time.Millisecond, 2*time.Millisecond))
	g, err := NewGenerator(testContext(), ts.URL, opts...)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(testContext(), 50*time.Millisecond)
	defer cancel()
	report, err := g.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, report.Sent, int64(2000))
}

func TestNewGenerator_Validation(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
		want string
	}{
		{name: "negative sensors", opt: WithGradualLoad(-1, 1), want: "must not be negative"},
		{name: "zero concurrency", opt: WithConcurrency(0), want: "concurrency must be positive"},
		{name: "stress batch above the cap", opt: WithStress(1, bsv1.DefaultMaxStressBatchSize+1), want: "stress batch size must be between"},
		{name: "inverted pause range", opt: WithRequestPause(time.Second, time.Millisecond), want: "invalid request pause range"},
		{name: "zero timeout", opt: WithTimeout(0), want: "timeout must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGenerator(testContext(), "http://localhost", tt.opt)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestJitter(t *testing.T) {
	g, err := NewGenerator(testContext(), "http://localhost", WithRequestPause(10*time.Millisecond, 20*time.Millisecond))
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		d := g.jitter()
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.Less(t, d, 20*time.Millisecond)
	}
}

func TestRandomReading(t *testing.T) {
	now := time.Unix(1700000000, 0)
	r := randomReading("sensor_1_0001", now)
	parsed, err := bsv1.ParseSensorReading(r.Payload())
	require.NoError(t, err)
	assert.Equal(t, "sensor_1_0001", parsed.SensorID)
	assert.InDelta(t, 25, parsed.Temperature, 10)
	assert.InDelta(t, 55, parsed.Humidity, 25)
	require.NotNil(t, parsed.Pressure)
	assert.InDelta(t, 1010, *parsed.Pressure, 10)
	assert.Equal(t, 1700000000.0, parsed.Timestamp)
}
