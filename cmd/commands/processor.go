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

package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/numaproj/backlogscaler"
	bsv1 "github.com/numaproj/backlogscaler/pkg/apis/backlogscaler/v1alpha1"
	"github.com/numaproj/backlogscaler/pkg/config"
	"github.com/numaproj/backlogscaler/pkg/ingest"
	"github.com/numaproj/backlogscaler/pkg/ingest/server"
	"github.com/numaproj/backlogscaler/pkg/metrics"
	"github.com/numaproj/backlogscaler/pkg/shared/logging"
	sharedutil "github.com/numaproj/backlogscaler/pkg/shared/util"
)

func NewProcessorCommand() *cobra.Command {
	var shutdownTimeout time.Duration

	command := &cobra.Command{
		Use:   "processor",
		Short: "Start the sensor data processor",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger().Named("processor")
			conf, err := config.LoadConfig(cmd.Flags(), func(e fsnotify.Event) {
				logger.Warnw("Configuration file changed, restart the processor to apply it", zap.String("file", e.Name), zap.String("op", e.Op.String()))
			})
			if err != nil {
				return err
			}
			if err := conf.ValidateProcessor(); err != nil {
				return fmt.Errorf("invalid processor configuration, %w", err)
			}
			v := backlogscaler.GetVersion()
			logger.Infow("Starting sensor data processor", "version", v, "batchSize", conf.BatchSize, "historySize", conf.HistorySize)
			ctx := logging.WithLogger(ctrl.SetupSignalHandler(), logger)

			processor, err := ingest.NewProcessor(ctx, conf.ProcessorOptions()...)
			if err != nil {
				return err
			}
			metrics.BuildInfo.WithLabelValues("processor", v.Version, v.Platform).Set(1)
			shutdown, err := server.NewServer(processor, conf.Port).Start(ctx)
			if err != nil {
				return fmt.Errorf("failed to start processor server, %w", err)
			}
			<-ctx.Done()
			sCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return shutdown(sCtx)
		},
	}
	addConfigFileFlag(command)
	command.Flags().Int(config.KeyPort, bsv1.ProcessorPort, "Port to listen on")
	command.Flags().Int(config.KeyBatchSize, bsv1.DefaultBatchSize, "Number of queued readings processed together")
	command.Flags().Int(config.KeyHistorySize, bsv1.DefaultHistorySize, "Number of processed readings kept")
	command.Flags().Int(config.KeyAnomalyCacheSize, bsv1.DefaultAnomalyCacheSize, "Number of sensors whose latest anomaly is kept")
	command.Flags().Duration(config.KeyProcessingDelay, bsv1.DefaultProcessingDelay, "Simulated processing time of a batch")
	command.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", sharedutil.LookupEnvDurationOr(envShutdownTimeout, 10*time.Second), "Graceful shutdown timeout")
	return command
}
