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

package usage_test

import (
	"testing"

	"github.com/marketscribe/marketscribe/usage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageAdd(t *testing.T) {
	u := usage.NewUsage()
	u.Add(&usage.Usage{Requests: 1, InputTokens: 10, OutputTokens: 20, TotalTokens: 30})
	u.Add(&usage.Usage{Requests: 1, InputTokens: 5, OutputTokens: 7, TotalTokens: 12})

	assert.Equal(t, uint64(2), u.Requests)
	assert.Equal(t, uint64(15), u.InputTokens)
	assert.Equal(t, uint64(27), u.OutputTokens)
	assert.Equal(t, uint64(42), u.TotalTokens)
}

func TestUsageAddNil(t *testing.T) {
	u := &usage.Usage{InputTokens: 1}
	u.Add(nil)
	assert.Equal(t, uint64(1), u.InputTokens)
}

func TestUsageContext(t *testing.T) {
	ctx := t.Context()

	_, ok := usage.FromContext(ctx)
	assert.False(t, ok)

	u := usage.NewUsage()
	ctx = usage.NewContext(ctx, u)

	got, ok := usage.FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, u, got)
}
