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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bsv1 "github.com/numaproj/backlogscaler/pkg/apis/backlogscaler/v1alpha1"
)

func TestLoadConfig_Defaults(t *testing.T) {
	c, err := LoadConfig(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "default", c.Namespace)
	assert.Equal(t, "iot-processor", c.WorkloadName)
	assert.Equal(t, bsv1.DefaultProcessorURL, c.ProcessorURL)
	assert.Equal(t, 5, c.BatchSize)
	assert.Equal(t, 1000, c.HistorySize)
	assert.Equal(t, 8080, c.Port)
	assert.NoError(t, c.ValidateAutoscaler())
	assert.NoError(t, c.ValidateProcessor())

	p := c.ScalingPolicy()
	assert.Equal(t, int32(1), p.GetMinReplicas())
	assert.Equal(t, int32(5), p.GetMaxReplicas())
	assert.Equal(t, int64(3), p.GetTargetQueueDepth())
	assert.Equal(t, 30*time.Second, p.GetPollInterval())
	assert.Equal(t, 60*time.Second, p.GetErrorBackoffInterval())
	assert.Equal(t, 5*time.Second, p.GetReadTimeout())
	assert.Equal(t, "default/iot-processor", c.WorkloadKey().String())
	assert.Len(t, c.ProcessorOptions(), 4)
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
namespace: iot
min-replicas: 2
max-replicas: 8
poll-interval: 10s
batch-size: 7
`), 0o600))
	t.Setenv(bsv1.EnvConfigFile, file)
	t.Setenv(bsv1.EnvMaxReplicas, "9")
	t.Setenv(bsv1.EnvPollInterval, "15s")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int(KeyBatchSize, bsv1.DefaultBatchSize, "")
	flags.Duration(KeyPollInterval, bsv1.DefaultPollInterval, "")
	require.NoError(t, flags.Parse([]string{"--poll-interval=20s"}))

	c, err := LoadConfig(flags, nil)
	require.NoError(t, err)
	assert.Equal(t, "iot", c.Namespace, "from the file")
	assert.Equal(t, int32(2), c.MinReplicas, "from the file")
	assert.Equal(t, int32(9), c.MaxReplicas, "env overrides the file")
	assert.Equal(t, 20*time.Second, c.PollInterval, "flag overrides env")
	assert.Equal(t, 7, c.BatchSize, "unchanged flag doesn't override the file")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Setenv(bsv1.EnvConfigFile, filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := LoadConfig(nil, nil)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	c := &Config{
		Namespace:        "",
		WorkloadName:     "w",
		MinReplicas:      4,
		MaxReplicas:      2,
		TargetQueueDepth: 3,
		BatchSize:        0,
		HistorySize:      10,
		AnomalyCacheSize: 1,
		ProcessingDelay:  -time.Second,
	}
	err := c.ValidateAutoscaler()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "namespace must not be empty")
	assert.Contains(t, err.Error(), "maxReplicas 2 must not be smaller than minReplicas 4")

	err = c.ValidateProcessor()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch-size must be positive")
	assert.Contains(t, err.Error(), "processing-delay must not be negative")
}

func TestConfig_String(t *testing.T) {
	c := &Config{Namespace: "iot", WorkloadName: "processor"}
	assert.Contains(t, c.String(), "namespace: iot")
	assert.Contains(t, c.String(), "workloadName: processor")
}
