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

package replicas

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	appv1 "k8s.io/api/apps/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	bsv1 "github.com/numaproj/backlogscaler/pkg/apis/backlogscaler/v1alpha1"
	"github.com/numaproj/backlogscaler/pkg/shared/logging"
)

var _ Store = (*DeploymentStore)(nil)

// DeploymentStore scales an apps/v1 Deployment through the API server.
type DeploymentStore struct {
	client client.Client
	log    *zap.SugaredLogger
	lock   sync.Mutex
	// resourceVersions keeps the resourceVersion of the last read of each workload,
	// a write carries it so it fails if the Deployment changed in between.
	resourceVersions map[WorkloadKey]string
}

func NewDeploymentStore(ctx context.Context, c client.Client) *DeploymentStore {
	return &DeploymentStore{
		client:           c,
		log:              logging.FromContext(ctx).Named("deployment-store"),
		resourceVersions: make(map[WorkloadKey]string),
	}
}

// ReadReplicas returns spec.replicas of the Deployment, 1 if it's not set.
func (s *DeploymentStore) ReadReplicas(ctx context.Context, key WorkloadKey) (int32, error) {
	deploy := &appv1.Deployment{}
	if err := s.client.Get(ctx, key, deploy); err != nil {
		return 0, classify(fmt.Sprintf("failed to get deployment %s", key), err)
	}
	s.lock.Lock()
	s.resourceVersions[key] = deploy.ResourceVersion
	s.lock.Unlock()
	if deploy.Spec.Replicas == nil {
		return 1, nil
	}
	return *deploy.Spec.Replicas, nil
}

// WriteReplicas patches spec.replicas of the Deployment. The patch is
// conditional on the resourceVersion seen by the preceding ReadReplicas.
func (s *DeploymentStore) WriteReplicas(ctx context.Context, key WorkloadKey, replicas int32) error {
	s.lock.Lock()
	resourceVersion := s.resourceVersions[key]
	s.lock.Unlock()
	var patchJson string
	if resourceVersion == "" {
		patchJson = fmt.Sprintf(`{"spec":{"replicas":%d}}`, replicas)
	} else {
		patchJson = fmt.Sprintf(`{"metadata":{"resourceVersion":%q},"spec":{"replicas":%d}}`, resourceVersion, replicas)
	}
	deploy := &appv1.Deployment{ObjectMeta: metav1.ObjectMeta{Namespace: key.Namespace, Name: key.Name}}
	if err := s.client.Patch(ctx, deploy, client.RawPatch(types.MergePatchType, []byte(patchJson))); err != nil {
		return classify(fmt.Sprintf("failed to patch deployment %s replicas", key), err)
	}
	s.lock.Lock()
	s.resourceVersions[key] = deploy.ResourceVersion
	s.lock.Unlock()
	s.log.Debugw("Deployment replicas patched", zap.String("deployment", key.String()), zap.Int32("replicas", replicas))
	return nil
}

func classify(msg string, err error) error {
	switch {
	case apierrors.IsConflict(err):
		return fmt.Errorf("%s: %w: %w", msg, bsv1.ErrConflict, err)
	case apierrors.IsNotFound(err):
		return fmt.Errorf("%s: %w: %w: %w", msg, bsv1.ErrUnavailable, bsv1.ErrNotFound, err)
	default:
		return fmt.Errorf("%s: %w: %w", msg, bsv1.ErrUnavailable, err)
	}
}
