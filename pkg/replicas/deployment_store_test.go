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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"

	bsv1 "github.com/numaproj/backlogscaler/pkg/apis/backlogscaler/v1alpha1"
	"github.com/numaproj/backlogscaler/pkg/shared/logging"
)

var (
	testNamespace = "test-ns"
	testKey       = WorkloadKey{Namespace: testNamespace, Name: "iot-processor"}
)

func fakeDeployment(replicas *int32) *appv1.Deployment {
	return &appv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Namespace: testKey.Namespace, Name: testKey.Name},
		Spec:       appv1.DeploymentSpec{Replicas: replicas},
	}
}

func testContext() context.Context {
	return logging.WithLogger(context.Background(), logging.NewNopLogger())
}

func TestDeploymentStore_ReadWrite(t *testing.T) {
	ctx := testContext()
	cl := fake.NewClientBuilder().WithObjects(fakeDeployment(ptr.To[int32](2))).Build()
	s := NewDeploymentStore(ctx, cl)

	r, err := s.ReadReplicas(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, int32(2), r)

	require.NoError(t, s.WriteReplicas(ctx, testKey, 4))
	deploy := &appv1.Deployment{}
	require.NoError(t, cl.Get(ctx, testKey, deploy))
	assert.Equal(t, int32(4), *deploy.Spec.Replicas)

	r, err = s.ReadReplicas(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, int32(4), r)
}

func TestDeploymentStore_DefaultReplicas(t *testing.T) {
	ctx := testContext()
	cl := fake.NewClientBuilder().WithObjects(fakeDeployment(nil)).Build()
	r, err := NewDeploymentStore(ctx, cl).ReadReplicas(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, int32(1), r)
}

func TestDeploymentStore_NotFound(t *testing.T) {
	ctx := testContext()
	s := NewDeploymentStore(ctx, fake.NewClientBuilder().Build())
	_, err := s.ReadReplicas(ctx, testKey)
	assert.True(t, errors.Is(err, bsv1.ErrNotFound))
	assert.True(t, errors.Is(err, bsv1.ErrUnavailable))
	err = s.WriteReplicas(ctx, testKey, 2)
	assert.True(t, errors.Is(err, bsv1.ErrUnavailable))
}

func TestDeploymentStore_Conflict(t *testing.T) {
	ctx := testContext()
	cl := fake.NewClientBuilder().WithObjects(fakeDeployment(ptr.To[int32](2))).Build()
	s := NewDeploymentStore(ctx, cl)
	_, err := s.ReadReplicas(ctx, testKey)
	require.NoError(t, err)

	// someone else scales the deployment after our read
	deploy := &appv1.Deployment{}
	require.NoError(t, cl.Get(ctx, testKey, deploy))
	deploy.Spec.Replicas = ptr.To[int32](3)
	require.NoError(t, cl.Update(ctx, deploy))

	err = s.WriteReplicas(ctx, testKey, 5)
	assert.True(t, errors.Is(err, bsv1.ErrConflict), "got %v", err)
	require.NoError(t, cl.Get(ctx, testKey, deploy))
	assert.Equal(t, int32(3), *deploy.Spec.Replicas)
}

func TestDeploymentStore_Unavailable(t *testing.T) {
	ctx := testContext()
	apiDown := errors.New("connection refused")
	cl := fake.NewClientBuilder().
		WithObjects(fakeDeployment(ptr.To[int32](2))).
		WithInterceptorFuncs(interceptor.Funcs{
			Get: func(_ context.Context, _ client.WithWatch, _ client.ObjectKey, _ client.Object, _ ...client.GetOption) error {
				return apiDown
			},
			Patch: func(_ context.Context, _ client.WithWatch, _ client.Object, _ client.Patch, _ ...client.PatchOption) error {
				return apiDown
			},
		}).
		Build()
	s := NewDeploymentStore(ctx, cl)
	_, err := s.ReadReplicas(ctx, testKey)
	assert.True(t, errors.Is(err, bsv1.ErrUnavailable))
	assert.False(t, errors.Is(err, bsv1.ErrNotFound))
	err = s.WriteReplicas(ctx, testKey, 3)
	assert.True(t, errors.Is(err, bsv1.ErrUnavailable))
	assert.False(t, errors.Is(err, bsv1.ErrConflict))
}
