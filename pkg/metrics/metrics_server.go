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

package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	bsv1 "github.com/numaproj/backlogscaler/pkg/apis/backlogscaler/v1alpha1"
	"github.com/numaproj/backlogscaler/pkg/shared/logging"
	sharedutil "github.com/numaproj/backlogscaler/pkg/shared/util"
)

// metricsServer runs an HTTP server to:
// 1. Expose metrics;
// 2. Serve an endpoint to execute health checks
type metricsServer struct {
	port int
	// Functions that health check executes
	healthCheckExecutors []func() error
}

type Option func(*metricsServer)

// WithPort sets the port to listen on
func WithPort(port int) Option {
	return func(m *metricsServer) {
		m.port = port
	}
}

// WithHealthCheckExecutor appends a health check executor
func WithHealthCheckExecutor(f func() error) Option {
	return func(m *metricsServer) {
		m.healthCheckExecutors = append(m.healthCheckExecutors, f)
	}
}

// NewMetricsOptions returns a metrics option list, each health checker gets a bounded execution time.
func NewMetricsOptions(ctx context.Context, port int, healthCheckers []HealthChecker) []Option {
	metricsOpts := []Option{WithPort(port)}
	for _, hc := range healthCheckers {
		hc := hc
		metricsOpts = append(metricsOpts, WithHealthCheckExecutor(func() error {
			cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			return hc.IsHealthy(cctx)
		}))
	}
	return metricsOpts
}

// NewMetricsServer returns a Prometheus metrics server instance.
func NewMetricsServer(opts ...Option) *metricsServer {
	m := new(metricsServer)
	m.port = 9090
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

func (ms *metricsServer) handler(log *zap.SugaredLogger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		for _, ex := range ms.healthCheckExecutors {
			if err := ex(); err != nil {
				log.Errorw("Failed to execute health check", zap.Error(err))
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(err.Error()))
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if sharedutil.LookupEnvBoolOr(bsv1.EnvDebug, false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

// Start function starts the HTTP service to expose metrics, it returns a shutdown function and an error if any
func (ms *metricsServer) Start(ctx context.Context) (func(ctx context.Context) error, error) {
	log := logging.FromContext(ctx)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", ms.port),
		Handler:           ms.handler(log),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infow("Starting metrics HTTP server", zap.Int("port", ms.port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("Failed to listen-and-serve on HTTP", zap.Error(err))
		}
		log.Info("Metrics server shutdown")
	}()
	return httpServer.Shutdown, nil
}
