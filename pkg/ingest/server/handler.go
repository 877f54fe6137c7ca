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
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	bsv1 "github.com/numaproj/backlogscaler/pkg/apis/backlogscaler/v1alpha1"
	"github.com/numaproj/backlogscaler/pkg/ingest"
)

type QueuedResponse struct {
	Status        ingest.SubmitStatus `json:"status"`
	SensorID      string              `json:"sensor_id"`
	QueuePosition int                 `json:"queue_position"`
}

type ProcessedResponse struct {
	Status         ingest.SubmitStatus `json:"status"`
	SensorID       string              `json:"sensor_id"`
	BatchResult    bsv1.BatchResult    `json:"batch_result"`
	QueueRemaining int                 `json:"queue_remaining"`
}

type StatusResponse struct {
	TotalProcessed int64                 `json:"total_processed"`
	QueueSize      int                   `json:"queue_size"`
	RecentData     []*bsv1.SensorReading `json:"recent_data"`
}

type StressTestRequest struct {
	BatchSize *int `json:"batch_size"`
}

type StressTestResponse struct {
	Generated  int `json:"generated"`
	TotalQueue int `json:"total_queue"`
}

type HealthResponse struct {
	Status    string  `json:"status"`
	Service   string  `json:"service"`
	Timestamp float64 `json:"timestamp"`
	QueueSize int     `json:"queue_size"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	processor *ingest.Processor
	log       *zap.SugaredLogger
}

// SubmitSensorData accepts one reading, it responds with the queue position
// or with the summary of the batch the reading completed.
func (h *handler) SubmitSensorData(c *gin.Context) {
	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("Invalid JSON body, %s", err.Error())})
		return
	}
	result, err := h.processor.Submit(c.Request.Context(), raw)
	if err != nil {
		if errors.Is(err, bsv1.ErrValidation) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		h.log.Errorw("Failed to submit sensor data", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if result.Status == ingest.StatusProcessed {
		c.JSON(http.StatusOK, ProcessedResponse{
			Status:         result.Status,
			SensorID:       result.SensorID,
			BatchResult:    *result.Batch,
			QueueRemaining: result.QueueRemaining,
		})
		return
	}
	c.JSON(http.StatusOK, QueuedResponse{Status: result.Status, SensorID: result.SensorID, QueuePosition: result.Position})
}

// GetSensorData returns the processing counters and the most recently processed readings.
func (h *handler) GetSensorData(c *gin.Context) {
	recent := h.processor.Recent(bsv1.DefaultRecentDataCount)
	if recent == nil {
		recent = []*bsv1.SensorReading{}
	}
	c.JSON(http.StatusOK, StatusResponse{
		TotalProcessed: h.processor.Signals().TotalProcessed,
		QueueSize:      h.processor.QueueLen(),
		RecentData:     recent,
	})
}

// StressTest enqueues synthetic readings without processing them.
func (h *handler) StressTest(c *gin.Context) {
	req := StressTestRequest{}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("Invalid JSON body, %s", err.Error())})
		return
	}
	n := bsv1.DefaultStressBatchSize
	if req.BatchSize != nil {
		n = *req.BatchSize
	}
	if n < 0 || n > bsv1.DefaultMaxStressBatchSize {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("batch_size must be between 0 and %d, got %d", bsv1.DefaultMaxStressBatchSize, n)})
		return
	}
	total := h.processor.Generate(n)
	h.log.Infow("Generated synthetic sensor data", zap.Int("generated", n), zap.Int("totalQueue", total))
	c.JSON(http.StatusOK, StressTestResponse{Generated: n, TotalQueue: total})
}

func (h *handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Service:   bsv1.ProcessorService,
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
		QueueSize: h.processor.QueueLen(),
	})
}

// ListAnomalies returns the latest anomaly of each sensor.
func (h *handler) ListAnomalies(c *gin.Context) {
	c.JSON(http.StatusOK, h.processor.Anomalies())
}
