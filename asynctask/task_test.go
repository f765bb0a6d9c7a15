// Copyright 2025 The Marketscribe Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package asynctask_test

import (
	"context"
	"errors"
	"testing"

	"github.com/marketscribe/marketscribe/asynctask"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskAwait(t *testing.T) {
	task := asynctask.CreateTask(t.Context(), func(context.Context) (int, error) {
		return 7, nil
	})

	res := task.Await()
	require.NoError(t, res.Error)
	assert.Equal(t, 7, res.Value)
	assert.True(t, task.IsDone())
}

func TestTaskError(t *testing.T) {
	wantErr := errors.New("boom")
	task := asynctask.CreateTask(t.Context(), func(context.Context) (string, error) {
		return "", wantErr
	})

	res := task.Await()
	assert.ErrorIs(t, res.Error, wantErr)
}

func TestTaskPanicIsRecovered(t *testing.T) {
	task := asynctask.CreateTask(t.Context(), func(context.Context) (int, error) {
		panic("unexpected")
	})

	res := task.Await()
	require.Error(t, res.Error)
	assert.Contains(t, res.Error.Error(), "task panicked")
}

func TestTaskCancelPropagatesContext(t *testing.T) {
	started := make(chan struct{})
	task := asynctask.CreateTask(t.Context(), func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	})

	<-started
	task.Cancel()

	res := task.Await()
	assert.ErrorIs(t, res.Error, context.Canceled)
}
