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

// Package server exposes the sensor data processor over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	bsv1 "github.com/numaproj/backlogscaler/pkg/apis/backlogscaler/v1alpha1"
	"github.com/numaproj/backlogscaler/pkg/ingest"
	"github.com/numaproj/backlogscaler/pkg/shared/logging"
)

type server struct {
	processor *ingest.Processor
	port      int
}

func NewServer(processor *ingest.Processor, port int) *server {
	if port <= 0 {
		port = bsv1.ProcessorPort
	}
	return &server{processor: processor, port: port}
}

// Routes registers the processor endpoints.
func Routes(r gin.IRouter, processor *ingest.Processor, log *zap.SugaredLogger) {
	h := &handler{processor: processor, log: log}
	r.POST("/sensor-data", h.SubmitSensorData)
	r.GET("/sensor-data", h.GetSensorData)
	r.POST("/stress-test", h.StressTest)
	r.GET("/health", h.Health)
	r.GET("/anomalies", h.ListAnomalies)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *server) router(log *zap.SugaredLogger) *gin.Engine {
	router := gin.New()
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{SkipPaths: []string{"/health", "/metrics"}}), gin.Recovery())
	Routes(router, s.processor, log)
	return router
}

// Start starts the HTTP server in the background, it returns a shutdown function.
func (s *server) Start(ctx context.Context) (func(ctx context.Context) error, error) {
	log := logging.FromContext(ctx).Named("processor-server")
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router(log),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infow("Starting processor HTTP server", zap.Int("port", s.port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("Failed to listen-and-serve on HTTP", zap.Error(err))
		}
		log.Info("Processor server shutdown")
	}()
	return httpServer.Shutdown, nil
}
