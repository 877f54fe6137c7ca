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
	"errors"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/numaproj/backlogscaler"
	bsv1 "github.com/numaproj/backlogscaler/pkg/apis/backlogscaler/v1alpha1"
	"github.com/numaproj/backlogscaler/pkg/config"
	"github.com/numaproj/backlogscaler/pkg/metrics"
	"github.com/numaproj/backlogscaler/pkg/replicas"
	"github.com/numaproj/backlogscaler/pkg/scaling"
	"github.com/numaproj/backlogscaler/pkg/shared/logging"
	sharedutil "github.com/numaproj/backlogscaler/pkg/shared/util"
	"github.com/numaproj/backlogscaler/pkg/signals"
)

const (
	envDryRun          = "BACKLOGSCALER_DRY_RUN"
	envShutdownTimeout = "BACKLOGSCALER_SHUTDOWN_TIMEOUT"
)

func addConfigFileFlag(command *cobra.Command) {
	command.Flags().String(config.KeyConfigFile, "", fmt.Sprintf("Config file, defaults to %s/%s.yaml if it exists", bsv1.DefaultConfigDirectory, bsv1.DefaultConfigName))
}

func NewAutoscalerCommand() *cobra.Command {
	var (
		once            bool
		dryRun          bool
		shutdownTimeout time.Duration
	)

	command := &cobra.Command{
		Use:   "autoscaler",
		Short: "Start the autoscaler of the processor deployment",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger().Named("autoscaler")
			conf, err := config.LoadConfig(cmd.Flags(), func(e fsnotify.Event) {
				logger.Warnw("Configuration file changed, restart the autoscaler to apply it", zap.String("file", e.Name), zap.String("op", e.Op.String()))
			})
			if err != nil {
				return err
			}
			if err := conf.ValidateAutoscaler(); err != nil {
				return fmt.Errorf("invalid autoscaler configuration, %w", err)
			}
			v := backlogscaler.GetVersion()
			logger.Infow("Starting autoscaler", "version", v, "dryRun", dryRun)
			logger.Debugf("Configuration:\n%s", conf)
			ctx := logging.WithLogger(ctrl.SetupSignalHandler(), logger)

			store, err := newReplicaStore(ctx, conf, dryRun)
			if err != nil {
				return err
			}
			source := signals.NewScrapeSource(ctx, conf.ProcessorURL, conf.ReadTimeout)
			scaler := scaling.NewScaler(conf.WorkloadKey(), source, store, conf.ScalingPolicy())
			if once {
				return scaler.RunOnce(ctx)
			}

			metrics.BuildInfo.WithLabelValues("autoscaler", v.Version, v.Platform).Set(1)
			healthCheckers := []metrics.HealthChecker{
				metrics.HealthCheckerFunc(func(context.Context) error {
					if scaler.State() == scaling.StateBackoff {
						return errors.New("autoscaler is backing off")
					}
					return nil
				}),
			}
			ms := metrics.NewMetricsServer(metrics.NewMetricsOptions(ctx, conf.MetricsPort, healthCheckers)...)
			shutdown, err := ms.Start(ctx)
			if err != nil {
				return fmt.Errorf("failed to start metrics server, %w", err)
			}

			g, gCtx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return scaler.Start(gCtx)
			})
			g.Go(func() error {
				<-gCtx.Done()
				sCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return shutdown(sCtx)
			})
			return g.Wait()
		},
	}
	addConfigFileFlag(command)
	command.Flags().String(config.KeyNamespace, bsv1.DefaultNamespace, "Namespace of the processor deployment")
	command.Flags().String(config.KeyWorkloadName, bsv1.DefaultWorkloadName, "Name of the processor deployment")
	command.Flags().String(config.KeyProcessorURL, bsv1.DefaultProcessorURL, "Base URL of the processor service")
	command.Flags().Int32(config.KeyMinReplicas, bsv1.DefaultMinReplicas, "Minimum replicas")
	command.Flags().Int32(config.KeyMaxReplicas, bsv1.DefaultMaxReplicas, "Maximum replicas")
	command.Flags().Uint32(config.KeyTargetQueueDepth, bsv1.DefaultTargetQueueDepth, "Target processing queue depth")
	command.Flags().Duration(config.KeyPollInterval, bsv1.DefaultPollInterval, "Interval between two autoscaling cycles")
	command.Flags().Duration(config.KeyErrorBackoffInterval, bsv1.DefaultErrorBackoffInterval, "Interval after a failed autoscaling cycle")
	command.Flags().Duration(config.KeyReadTimeout, bsv1.DefaultReadTimeout, "Timeout of reading the processor signals and the deployment")
	command.Flags().Int(config.KeyMetricsPort, bsv1.AutoscalerMetricsPort, "Port of the metrics and health check server")
	command.Flags().BoolVar(&once, "once", false, "Run a single autoscaling cycle and exit")
	command.Flags().BoolVar(&dryRun, "dry-run", sharedutil.LookupEnvBoolOr(envDryRun, false), "Decide without scaling the deployment, replicas are kept in memory")
	command.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", sharedutil.LookupEnvDurationOr(envShutdownTimeout, 10*time.Second), "Graceful shutdown timeout")
	return command
}

func newReplicaStore(ctx context.Context, conf *config.Config, dryRun bool) (replicas.Store, error) {
	if dryRun {
		store := replicas.NewInMemStore()
		store.Set(conf.WorkloadKey(), conf.MinReplicas)
		return store, nil
	}
	restConfig, err := sharedutil.K8sRestConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get kubeconfig, %w", err)
	}
	scheme := runtime.NewScheme()
	if err := clientgoscheme.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("failed to build scheme, %w", err)
	}
	cl, err := client.New(restConfig, client.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client, %w", err)
	}
	return replicas.NewDeploymentStore(ctx, cl), nil
}
