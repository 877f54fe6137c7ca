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

package signals

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"

	bsv1 "github.com/numaproj/backlogscaler/pkg/apis/backlogscaler/v1alpha1"
	"github.com/numaproj/backlogscaler/pkg/shared/logging"
)

const (
	queueSizeMetricName      = "processing_queue_size"
	activeRequestsMetricName = "active_requests"
)

// metricsHttpClient interface for the GET call to the processor endpoints.
// Had to add this an interface for testing
type metricsHttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// sensorDataStatus is the part of the GET /sensor-data response the autoscaler reads.
type sensorDataStatus struct {
	TotalProcessed int64 `json:"total_processed"`
	QueueSize      int64 `json:"queue_size"`
}

var _ Source = (*ScrapeSource)(nil)

// ScrapeSource samples a processor service over HTTP, from its prometheus
// metrics endpoint and its status endpoint.
type ScrapeSource struct {
	baseURL    string
	httpClient metricsHttpClient
	timeout    time.Duration
	log        *zap.SugaredLogger
}

// NewScrapeSource returns a ScrapeSource reading the processor at baseURL, e.g. http://iot-processor-service.default.svc.cluster.local.
// Each request is bounded by timeout.
func NewScrapeSource(ctx context.Context, baseURL string, timeout time.Duration) *ScrapeSource {
	return &ScrapeSource{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
			Timeout: timeout,
		},
		timeout: timeout,
		log:     logging.FromContext(ctx).Named("scrape-source"),
	}
}

// Sample reads processing_queue_size and active_requests from the metrics
// endpoint, and total_processed from the status endpoint. A metric which is not
// exposed yet reads as 0, except the queue size which falls back to the status
// endpoint's queue_size.
func (s *ScrapeSource) Sample(ctx context.Context) (bsv1.Signals, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	families, err := s.scrapeMetrics(ctx)
	if err != nil {
		return bsv1.Signals{}, fmt.Errorf("failed to read processor metrics: %w: %w", bsv1.ErrUnavailable, err)
	}
	status, err := s.readStatus(ctx)
	if err != nil {
		return bsv1.Signals{}, fmt.Errorf("failed to read processor status: %w: %w", bsv1.ErrUnavailable, err)
	}

	result := bsv1.Signals{TotalProcessed: status.TotalProcessed}
	if v, ok := gaugeValue(families, queueSizeMetricName); ok {
		result.QueueDepth = int64(v)
	} else {
		s.log.Debugf("Metric %q not found, using the status queue size", queueSizeMetricName)
		result.QueueDepth = status.QueueSize
	}
	if v, ok := gaugeValue(families, activeRequestsMetricName); ok {
		result.ActiveRequests = int64(v)
	}
	return result, nil
}

func (s *ScrapeSource) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("GET %s returned status %d", path, resp.StatusCode)
	}
	return resp, nil
}

func (s *ScrapeSource) scrapeMetrics(ctx context.Context) (map[string]*dto.MetricFamily, error) {
	resp, err := s.get(ctx, "/metrics")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	textParser := expfmt.TextParser{}
	result, err := textParser.TextToMetricFamilies(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed parsing to prometheus metric families, %w", err)
	}
	return result, nil
}

func (s *ScrapeSource) readStatus(ctx context.Context) (*sensorDataStatus, error) {
	resp, err := s.get(ctx, "/sensor-data")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	status := &sensorDataStatus{}
	if err := json.NewDecoder(resp.Body).Decode(status); err != nil {
		return nil, fmt.Errorf("failed to decode status, %w", err)
	}
	return status, nil
}

// gaugeValue sums the samples of a gauge family, which has a single unlabelled sample in practice.
func gaugeValue(families map[string]*dto.MetricFamily, name string) (float64, bool) {
	family, ok := families[name]
	if !ok || family == nil || len(family.GetMetric()) == 0 {
		return 0, false
	}
	var sum float64
	for _, m := range family.GetMetric() {
		switch {
		case m.GetGauge() != nil:
			sum += m.GetGauge().GetValue()
		case m.GetUntyped() != nil:
			sum += m.GetUntyped().GetValue()
		case m.GetCounter() != nil:
			sum += m.GetCounter().GetValue()
		}
	}
	return sum, true
}
