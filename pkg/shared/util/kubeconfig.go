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

package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// K8sRestConfig returns a rest config for the kubernetes cluster.
// The in-cluster config is preferred, the kubeconfig file ($KUBECONFIG or ~/.kube/config) is used for local development.
func K8sRestConfig() (*rest.Config, error) {
	restConfig, inClusterErr := rest.InClusterConfig()
	if inClusterErr == nil {
		return restConfig, nil
	}
	kubeconfig := os.Getenv("KUBECONFIG")
	if kubeconfig == "" {
		home, _ := os.UserHomeDir()
		kubeconfig = filepath.Join(home, ".kube", "config")
		if _, err := os.Stat(kubeconfig); err != nil && os.IsNotExist(err) {
			return nil, fmt.Errorf("not running in a cluster and no kubeconfig found, %w", inClusterErr)
		}
	}
	restConfig, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, errors.Join(inClusterErr, err)
	}
	return restConfig, nil
}
