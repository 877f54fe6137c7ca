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

	"github.com/spf13/cobra"
	ctrl "sigs.k8s.io/controller-runtime"

	bsv1 "github.com/numaproj/backlogscaler/pkg/apis/backlogscaler/v1alpha1"
	"github.com/numaproj/backlogscaler/pkg/loadgen"
	"github.com/numaproj/backlogscaler/pkg/shared/logging"
	sharedutil "github.com/numaproj/backlogscaler/pkg/shared/util"
)

const (
	envLoadgenSensors                    = "BACKLOGSCALER_LOADGEN_SENSORS"
	envLoadgenRequestsPerSensor          = "BACKLOGSCALER_LOADGEN_REQUESTS_PER_SENSOR"
	envLoadgenSustainedSensors           = "BACKLOGSCALER_LOADGEN_SUSTAINED_SENSORS"
	envLoadgenSustainedRequestsPerSensor = "BACKLOGSCALER_LOADGEN_SUSTAINED_REQUESTS_PER_SENSOR"
	envLoadgenConcurrency                = "BACKLOGSCALER_LOADGEN_CONCURRENCY"
	envLoadgenStressRounds               = "BACKLOGSCALER_LOADGEN_STRESS_ROUNDS"
	envLoadgenStressBatchSize            = "BACKLOGSCALER_LOADGEN_STRESS_BATCH_SIZE"
)

func NewLoadgenCommand() *cobra.Command {
	var (
		processorURL               string
		sensors                    int
		requestsPerSensor          int
		sustainedSensors           int
		sustainedRequestsPerSensor int
		concurrency                int
		stressRounds               int
		stressBatchSize            int
		minPause                   time.Duration
		maxPause                   time.Duration
		roundPause                 time.Duration
		settlePause                time.Duration
		monitorInterval            time.Duration
		timeout                    time.Duration
	)

	command := &cobra.Command{
		Use:   "loadgen",
		Short: "Send synthetic sensor data to the processor to trigger autoscaling",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger().Named("loadgen")
			g, err := loadgen.NewGenerator(logging.WithLogger(context.Background(), logger), processorURL,
				loadgen.WithGradualLoad(sensors, requestsPerSensor),
				loadgen.WithSustainedLoad(sustainedSensors, sustainedRequestsPerSensor),
				loadgen.WithConcurrency(concurrency),
				loadgen.WithStress(stressRounds, stressBatchSize),
				loadgen.WithRequestPause(minPause, maxPause),
				loadgen.WithRoundPause(roundPause),
				loadgen.WithSettlePause(settlePause),
				loadgen.WithMonitorInterval(monitorInterval),
				loadgen.WithTimeout(timeout),
			)
			if err != nil {
				return fmt.Errorf("invalid load generator configuration, %w", err)
			}
			logger.Infow("Starting load generator", "processorURL", processorURL)
			report, err := g.Run(logging.WithLogger(ctrl.SetupSignalHandler(), logger))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "sent=%d succeeded=%d failed=%d queued=%d processed=%d stressGenerated=%d\n",
				report.Sent, report.Succeeded, report.Failed, report.Queued, report.Processed, report.StressGenerated)
			return nil
		},
	}
	command.Flags().StringVar(&processorURL, "processor-url", sharedutil.LookupEnvStringOr(bsv1.EnvProcessorURL, bsv1.DefaultProcessorURL), "Base URL of the processor service")
	command.Flags().IntVar(&sensors, "sensors", sharedutil.LookupEnvIntOr(envLoadgenSensors, 10), "Number of sensors of the gradual load phase")
	command.Flags().IntVar(&requestsPerSensor, "requests-per-sensor", sharedutil.LookupEnvIntOr(envLoadgenRequestsPerSensor, 20), "Readings sent by each sensor of the gradual load phase")
	command.Flags().IntVar(&sustainedSensors, "sustained-sensors", sharedutil.LookupEnvIntOr(envLoadgenSustainedSensors, 20), "Number of sensors of the sustained load phase")
	command.Flags().IntVar(&sustainedRequestsPerSensor, "sustained-requests-per-sensor", sharedutil.LookupEnvIntOr(envLoadgenSustainedRequestsPerSensor, 30), "Readings sent by each sensor of the sustained load phase")
	command.Flags().IntVar(&concurrency, "concurrency", sharedutil.LookupEnvIntOr(envLoadgenConcurrency, 20), "Max number of sensors sending at the same time")
	command.Flags().IntVar(&stressRounds, "stress-rounds", sharedutil.LookupEnvIntOr(envLoadgenStressRounds, 5), "Number of stress test requests")
	command.Flags().IntVar(&stressBatchSize, "stress-batch-size", sharedutil.LookupEnvIntOr(envLoadgenStressBatchSize, 50), fmt.Sprintf("Readings generated by each stress test request, at most %d", bsv1.DefaultMaxStressBatchSize))
	command.Flags().DurationVar(&minPause, "min-pause", 100*time.Millisecond, "Min pause of a sensor between two readings")
	command.Flags().DurationVar(&maxPause, "max-pause", 500*time.Millisecond, "Max pause of a sensor between two readings")
	command.Flags().DurationVar(&roundPause, "round-pause", 15*time.Second, "Pause between two stress test requests")
	command.Flags().DurationVar(&settlePause, "settle-pause", 10*time.Second, "Pause between the gradual load and the stress test")
	command.Flags().DurationVar(&monitorInterval, "monitor-interval", 10*time.Second, "Interval of logging the processor load, 0 disables it")
	command.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Timeout of each request")
	return command
}
