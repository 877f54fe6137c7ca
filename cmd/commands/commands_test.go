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
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Commands(t *testing.T) {
	t.Run("test root", func(t *testing.T) {
		b := bytes.NewBufferString("")
		rootCmd.SetOut(b)
		rootCmd.SetArgs([]string{"help"})
		Execute()
		output, _ := io.ReadAll(b)
		assert.Contains(t, string(output), "Available Commands")
		assert.Contains(t, string(output), "autoscaler")
		assert.Contains(t, string(output), "processor")
		assert.Contains(t, string(output), "loadgen")
	})

	t.Run("Autoscaler", func(t *testing.T) {
		cmd := NewAutoscalerCommand()
		assert.Equal(t, "autoscaler", cmd.Use)
		assert.True(t, cmd.HasLocalFlags())
		assert.Equal(t, "int32", cmd.Flag("min-replicas").Value.Type())
		assert.Equal(t, "5", cmd.Flag("max-replicas").DefValue)
		assert.Equal(t, "uint32", cmd.Flag("target-queue-depth").Value.Type())
		assert.Equal(t, "30s", cmd.Flag("poll-interval").DefValue)
		assert.Equal(t, "1m0s", cmd.Flag("error-backoff-interval").DefValue)
		assert.Equal(t, "bool", cmd.Flag("once").Value.Type())
		assert.Equal(t, "bool", cmd.Flag("dry-run").Value.Type())
	})

	t.Run("Autoscaler invalid config", func(t *testing.T) {
		cmd := NewAutoscalerCommand()
		cmd.SetArgs([]string{"--min-replicas=4", "--max-replicas=2"})
		err := cmd.Execute()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "maxReplicas 2 must not be smaller than minReplicas 4")
	})

	t.Run("Processor", func(t *testing.T) {
		cmd := NewProcessorCommand()
		assert.Equal(t, "processor", cmd.Use)
		assert.Equal(t, "8080", cmd.Flag("port").DefValue)
		assert.Equal(t, "5", cmd.Flag("batch-size").DefValue)
		assert.Equal(t, "1000", cmd.Flag("history-size").DefValue)
		assert.Equal(t, "100ms", cmd.Flag("processing-delay").DefValue)
	})

	t.Run("Processor invalid config", func(t *testing.T) {
		cmd := NewProcessorCommand()
		cmd.SetArgs([]string{"--batch-size=0"})
		err := cmd.Execute()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "batch-size must be positive")
	})

	t.Run("Loadgen", func(t *testing.T) {
		t.Setenv("BACKLOGSCALER_LOADGEN_SENSORS", "3")
		t.Setenv("BACKLOGSCALER_PROCESSOR_URL", "http://localhost:18080")
		cmd := NewLoadgenCommand()
		assert.Equal(t, "loadgen", cmd.Use)
		assert.Equal(t, "3", cmd.Flag("sensors").DefValue)
		assert.Equal(t, "20", cmd.Flag("requests-per-sensor").DefValue)
		assert.Equal(t, "http://localhost:18080", cmd.Flag("processor-url").DefValue)
		assert.Equal(t, "50", cmd.Flag("stress-batch-size").DefValue)
	})

	t.Run("Loadgen invalid config", func(t *testing.T) {
		cmd := NewLoadgenCommand()
		cmd.SetArgs([]string{"--concurrency=0"})
		err := cmd.Execute()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "concurrency must be positive")
	})

	t.Run("Version", func(t *testing.T) {
		b := bytes.NewBufferString("")
		cmd := NewVersionCommand()
		cmd.SetOut(b)
		assert.NoError(t, cmd.Execute())
		assert.Contains(t, b.String(), "Version: ")
	})
}
