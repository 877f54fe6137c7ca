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

// Package config loads the configuration of the processor and the autoscaler.
//
// Values come from, highest precedence first: command line flags,
// BACKLOGSCALER_* environment variables, the optional config file, defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/yaml"

	bsv1 "github.com/numaproj/backlogscaler/pkg/apis/backlogscaler/v1alpha1"
	"github.com/numaproj/backlogscaler/pkg/ingest"
)

// Keys of the configuration, also used as flag names and, upper cased with
// dashes replaced, as environment variable suffixes.
const (
	KeyConfigFile           = "config-file"
	KeyNamespace            = "namespace"
	KeyWorkloadName         = "workload-name"
	KeyProcessorURL         = "processor-url"
	KeyMinReplicas          = "min-replicas"
	KeyMaxReplicas          = "max-replicas"
	KeyTargetQueueDepth     = "target-queue-depth"
	KeyPollInterval         = "poll-interval"
	KeyErrorBackoffInterval = "error-backoff-interval"
	KeyReadTimeout          = "read-timeout"
	KeyBatchSize            = "batch-size"
	KeyHistorySize          = "history-size"
	KeyAnomalyCacheSize     = "anomaly-cache-size"
	KeyProcessingDelay      = "processing-delay"
	KeyPort                 = "port"
	KeyMetricsPort          = "metrics-port"
)

// Config is the configuration shared by the processor and the autoscaler commands.
type Config struct {
	Namespace            string        `json:"namespace"`
	WorkloadName         string        `json:"workloadName"`
	ProcessorURL         string        `json:"processorURL"`
	MinReplicas          int32         `json:"minReplicas"`
	MaxReplicas          int32         `json:"maxReplicas"`
	TargetQueueDepth     uint32        `json:"targetQueueDepth"`
	PollInterval         time.Duration `json:"pollInterval"`
	ErrorBackoffInterval time.Duration `json:"errorBackoffInterval"`
	ReadTimeout          time.Duration `json:"readTimeout"`
	BatchSize            int           `json:"batchSize"`
	HistorySize          int           `json:"historySize"`
	AnomalyCacheSize     int           `json:"anomalyCacheSize"`
	ProcessingDelay      time.Duration `json:"processingDelay"`
	Port                 int           `json:"port"`
	MetricsPort          int           `json:"metricsPort"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyNamespace, bsv1.DefaultNamespace)
	v.SetDefault(KeyWorkloadName, bsv1.DefaultWorkloadName)
	v.SetDefault(KeyProcessorURL, bsv1.DefaultProcessorURL)
	v.SetDefault(KeyMinReplicas, bsv1.DefaultMinReplicas)
	v.SetDefault(KeyMaxReplicas, bsv1.DefaultMaxReplicas)
	v.SetDefault(KeyTargetQueueDepth, bsv1.DefaultTargetQueueDepth)
	v.SetDefault(KeyPollInterval, bsv1.DefaultPollInterval)
	v.SetDefault(KeyErrorBackoffInterval, bsv1.DefaultErrorBackoffInterval)
	v.SetDefault(KeyReadTimeout, bsv1.DefaultReadTimeout)
	v.SetDefault(KeyBatchSize, bsv1.DefaultBatchSize)
	v.SetDefault(KeyHistorySize, bsv1.DefaultHistorySize)
	v.SetDefault(KeyAnomalyCacheSize, bsv1.DefaultAnomalyCacheSize)
	v.SetDefault(KeyProcessingDelay, bsv1.DefaultProcessingDelay)
	v.SetDefault(KeyPort, bsv1.ProcessorPort)
	v.SetDefault(KeyMetricsPort, bsv1.AutoscalerMetricsPort)
}

// LoadConfig reads the configuration. flags may be nil. The config file is
// config.yaml under /etc/backlogscaler unless --config-file or
// BACKLOGSCALER_CONFIG_FILE points to another one, a missing default file is
// not an error. When onChange is not nil, the config file is watched and
// onChange is called when it changes, the returned Config is not updated.
func LoadConfig(flags *pflag.FlagSet, onChange func(fsnotify.Event)) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(bsv1.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("failed to bind flags, %w", err)
		}
	}

	fileUsed := false
	if file := v.GetString(KeyConfigFile); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load configuration file %q, %w", file, err)
		}
		fileUsed = true
	} else {
		v.SetConfigName(bsv1.DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(bsv1.DefaultConfigDirectory)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to load configuration file, %w", err)
			}
		} else {
			fileUsed = true
		}
	}

	c := &Config{
		Namespace:            v.GetString(KeyNamespace),
		WorkloadName:         v.GetString(KeyWorkloadName),
		ProcessorURL:         v.GetString(KeyProcessorURL),
		MinReplicas:          v.GetInt32(KeyMinReplicas),
		MaxReplicas:          v.GetInt32(KeyMaxReplicas),
		TargetQueueDepth:     v.GetUint32(KeyTargetQueueDepth),
		PollInterval:         v.GetDuration(KeyPollInterval),
		ErrorBackoffInterval: v.GetDuration(KeyErrorBackoffInterval),
		ReadTimeout:          v.GetDuration(KeyReadTimeout),
		BatchSize:            v.GetInt(KeyBatchSize),
		HistorySize:          v.GetInt(KeyHistorySize),
		AnomalyCacheSize:     v.GetInt(KeyAnomalyCacheSize),
		ProcessingDelay:      v.GetDuration(KeyProcessingDelay),
		Port:                 v.GetInt(KeyPort),
		MetricsPort:          v.GetInt(KeyMetricsPort),
	}
	if fileUsed && onChange != nil {
		v.OnConfigChange(onChange)
		v.WatchConfig()
	}
	return c, nil
}

// ScalingPolicy returns the scaling policy of the autoscaler.
func (c *Config) ScalingPolicy() bsv1.ScalingPolicy {
	return bsv1.ScalingPolicy{
		MinReplicas:          ptr.To(c.MinReplicas),
		MaxReplicas:          ptr.To(c.MaxReplicas),
		TargetQueueDepth:     ptr.To(c.TargetQueueDepth),
		PollInterval:         &metav1.Duration{Duration: c.PollInterval},
		ErrorBackoffInterval: &metav1.Duration{Duration: c.ErrorBackoffInterval},
		ReadTimeout:          &metav1.Duration{Duration: c.ReadTimeout},
	}
}

// WorkloadKey returns the namespace and name of the scaled workload.
func (c *Config) WorkloadKey() types.NamespacedName {
	return types.NamespacedName{Namespace: c.Namespace, Name: c.WorkloadName}
}

// ProcessorOptions returns the options of the batch processor.
func (c *Config) ProcessorOptions() []ingest.Option {
	return []ingest.Option{
		ingest.WithBatchSize(c.BatchSize),
		ingest.WithHistorySize(c.HistorySize),
		ingest.WithAnomalyCacheSize(c.AnomalyCacheSize),
		ingest.WithProcessingDelay(c.ProcessingDelay),
	}
}

// ValidateAutoscaler validates the settings used by the autoscaler.
func (c *Config) ValidateAutoscaler() error {
	var err error
	if c.Namespace == "" {
		err = multierr.Append(err, fmt.Errorf("%s must not be empty", KeyNamespace))
	}
	if c.WorkloadName == "" {
		err = multierr.Append(err, fmt.Errorf("%s must not be empty", KeyWorkloadName))
	}
	return multierr.Append(err, c.ScalingPolicy().Validate())
}

// ValidateProcessor validates the settings used by the processor.
func (c *Config) ValidateProcessor() error {
	var err error
	if c.BatchSize <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive, got %d", KeyBatchSize, c.BatchSize))
	}
	if c.HistorySize <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive, got %d", KeyHistorySize, c.HistorySize))
	}
	if c.AnomalyCacheSize <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive, got %d", KeyAnomalyCacheSize, c.AnomalyCacheSize))
	}
	if c.ProcessingDelay < 0 {
		err = multierr.Append(err, fmt.Errorf("%s must not be negative, got %v", KeyProcessingDelay, c.ProcessingDelay))
	}
	return err
}

// String returns the configuration as YAML.
func (c *Config) String() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("%+v", *c)
	}
	return string(b)
}
