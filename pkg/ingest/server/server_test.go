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

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bsv1 "github.com/numaproj/backlogscaler/pkg/apis/backlogscaler/v1alpha1"
	"github.com/numaproj/backlogscaler/pkg/ingest"
	"github.com/numaproj/backlogscaler/pkg/shared/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) (*gin.Engine, *ingest.Processor) {
	t.Helper()
	ctx := logging.WithLogger(context.Background(), logging.NewNopLogger())
	p, err := ingest.NewProcessor(ctx, ingest.WithProcessingDelay(0))
	require.NoError(t, err)
	return NewServer(p, 0).router(logging.NewNopLogger()), p
}

func do(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func readingBody(sensorID string, temperature float64) string {
	return fmt.Sprintf(`{"sensor_id":%q,"temperature":%v,"humidity":55.5,"timestamp":1700000000.25}`, sensorID, temperature)
}

func TestSubmitSensorData(t *testing.T) {
	router, _ := newTestRouter(t)
	for i := 1; i < 5; i++ {
		w := do(router, http.MethodPost, "/sensor-data", readingBody(fmt.Sprintf("sensor_%d", i), 20))
		require.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "queued", resp["status"])
		assert.Equal(t, fmt.Sprintf("sensor_%d", i), resp["sensor_id"])
		assert.Equal(t, float64(i), resp["queue_position"])
	}

	w := do(router, http.MethodPost, "/sensor-data", readingBody("sensor_5", 30))
	require.Equal(t, http.StatusOK, w.Code)
	resp := ProcessedResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ingest.StatusProcessed, resp.Status)
	assert.Equal(t, "sensor_5", resp.SensorID)
	assert.Equal(t, 5, resp.BatchResult.BatchSize)
	assert.InDelta(t, 22.0, resp.BatchResult.MeanTemperature, 1e-9)
	assert.Equal(t, 0, resp.QueueRemaining)
	assert.Contains(t, w.Body.String(), `"std_temperature"`)
}

func TestSubmitSensorDataErrors(t *testing.T) {
	router, p := newTestRouter(t)
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "no body", body: "", wantErr: "No data provided"},
		{name: "empty object", body: "{}", wantErr: "No data provided"},
		{name: "null", body: "null", wantErr: "No data provided"},
		{name: "missing field", body: `{"sensor_id":"s","temperature":1,"timestamp":2}`, wantErr: "Missing field: humidity"},
		{name: "invalid field", body: `{"sensor_id":"s","temperature":"warm","humidity":1,"timestamp":2}`, wantErr: "Invalid field: temperature"},
		{name: "not json", body: `sensor_id=s`, wantErr: "Invalid JSON body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(router, http.MethodPost, "/sensor-data", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := ErrorResponse{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Contains(t, resp.Error, tt.wantErr)
		})
	}
	assert.Equal(t, 0, p.QueueLen())
}

func TestGetSensorData(t *testing.T) {
	router, _ := newTestRouter(t)
	w := do(router, http.MethodGet, "/sensor-data", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total_processed":0,"queue_size":0,"recent_data":[]}`, w.Body.String())

	for i := 0; i < 17; i++ {
		do(router, http.MethodPost, "/sensor-data", readingBody(fmt.Sprintf("sensor_%d", i), 20))
	}
	w = do(router, http.MethodGet, "/sensor-data", "")
	resp := StatusResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(15), resp.TotalProcessed)
	assert.Equal(t, 2, resp.QueueSize)
	require.Len(t, resp.RecentData, bsv1.DefaultRecentDataCount)
	assert.Equal(t, "sensor_5", resp.RecentData[0].SensorID)
	assert.Equal(t, "sensor_14", resp.RecentData[9].SensorID)
}

func TestStressTest(t *testing.T) {
	router, p := newTestRouter(t)
	w := do(router, http.MethodPost, "/stress-test", `{"batch_size": 25}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"generated":25,"total_queue":25}`, w.Body.String())

	w = do(router, http.MethodPost, "/stress-test", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"generated":10,"total_queue":35}`, w.Body.String())
	assert.Equal(t, int64(0), p.Signals().TotalProcessed)

	w = do(router, http.MethodPost, "/stress-test", `{"batch_size": -1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodPost, "/stress-test", `{"batch_size": 2000000000}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := ErrorResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, fmt.Sprintf("between 0 and %d", bsv1.DefaultMaxStressBatchSize))
	assert.Equal(t, 35, p.QueueLen())

	w = do(router, http.MethodPost, "/stress-test", fmt.Sprintf(`{"batch_size": %d}`, bsv1.DefaultMaxStressBatchSize))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 35+bsv1.DefaultMaxStressBatchSize, p.QueueLen())
}

func TestSubmitSensorDataHugeTemperatures(t *testing.T) {
	router, p := newTestRouter(t)
	for i := 0; i < 4; i++ {
		w := do(router, http.MethodPost, "/sensor-data", readingBody(fmt.Sprintf("sensor_%d", i), 1e308))
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid field: temperature")
	}
	w := do(router, http.MethodPost, "/sensor-data", readingBody("sensor_cold", -1e308))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, p.QueueLen())

	for i := 0; i < 4; i++ {
		do(router, http.MethodPost, "/sensor-data", readingBody(fmt.Sprintf("sensor_%d", i), bsv1.MaxAbsMeasurement))
	}
	w = do(router, http.MethodPost, "/sensor-data", readingBody("sensor_cold", -bsv1.MaxAbsMeasurement))
	require.Equal(t, http.StatusOK, w.Code)
	resp := ProcessedResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ingest.StatusProcessed, resp.Status)
	assert.InDelta(t, 0.6*bsv1.MaxAbsMeasurement, resp.BatchResult.MeanTemperature, 1e-6)
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t)
	do(router, http.MethodPost, "/stress-test", `{"batch_size": 3}`)
	w := do(router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := HealthResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "iot-data-processor", resp.Service)
	assert.Equal(t, 3, resp.QueueSize)
	assert.Greater(t, resp.Timestamp, 0.0)
}

func TestAnomaliesAndMetrics(t *testing.T) {
	ctx := logging.WithLogger(context.Background(), logging.NewNopLogger())
	p, err := ingest.NewProcessor(ctx, ingest.WithProcessingDelay(0), ingest.WithBatchSize(10))
	require.NoError(t, err)
	router := NewServer(p, 0).router(logging.NewNopLogger())
	for i := 0; i < 9; i++ {
		do(router, http.MethodPost, "/sensor-data", readingBody(fmt.Sprintf("sensor_%d", i), 20))
	}
	do(router, http.MethodPost, "/sensor-data", readingBody("sensor_hot", 100))

	w := do(router, http.MethodGet, "/anomalies", "")
	require.Equal(t, http.StatusOK, w.Code)
	var anomalies []bsv1.Anomaly
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &anomalies))
	require.Len(t, anomalies, 1)
	assert.Equal(t, "sensor_hot", anomalies[0].SensorID)

	w = do(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "processing_queue_size")
	assert.Contains(t, w.Body.String(), "active_requests")
}
