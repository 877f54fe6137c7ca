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
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	CLIName = "backlogscaler"
)

var rootCmd = &cobra.Command{
	Use:   CLIName,
	Short: "Queue depth based autoscaler for an IoT sensor data processor",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.HelpFunc()(cmd, args)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(NewAutoscalerCommand())
	rootCmd.AddCommand(NewProcessorCommand())
	rootCmd.AddCommand(NewLoadgenCommand())
	rootCmd.AddCommand(NewVersionCommand())
}
