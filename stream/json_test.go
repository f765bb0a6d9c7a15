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

package stream_test

import (
	"testing"

	"github.com/marketscribe/marketscribe/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalItemEvents(t *testing.T) {
	ev, err := stream.UnmarshalEvent([]byte(
		`{"type":"item.started","item":{"type":"web_search","query":"NVDA margins","results":12}}`))
	require.NoError(t, err)
	started, ok := ev.(stream.ItemStartedEvent)
	require.True(t, ok)
	search, ok := started.Item.(stream.WebSearchItem)
	require.True(t, ok)
	assert.Equal(t, "NVDA margins", search.Query)
	assert.True(t, search.HasResults)
	assert.Equal(t, 12, search.Results)

	ev, err = stream.UnmarshalEvent([]byte(
		`{"type":"item.completed","item":{"type":"agent_message","text":"All set."}}`))
	require.NoError(t, err)
	completed, ok := ev.(stream.ItemCompletedEvent)
	require.True(t, ok)
	assert.Equal(t, stream.AgentMessageItem{Text: "All set."}, completed.Item)
}

func TestUnmarshalBashAliasesCommandExecution(t *testing.T) {
	for _, kind := range []string{"command_execution", "bash"} {
		ev, err := stream.UnmarshalEvent([]byte(
			`{"type":"item.completed","item":{"type":"` + kind + `","command":"wc -l report.md","exit_code":0,"stdout":"212 report.md"}}`))
		require.NoError(t, err)
		cmd := ev.(stream.ItemCompletedEvent).Item.(stream.CommandExecutionItem)
		assert.Equal(t, "wc -l report.md", cmd.Command)
		assert.Equal(t, "212 report.md", cmd.Stdout)
	}
}

func TestUnmarshalTurnCompleted(t *testing.T) {
	ev, err := stream.UnmarshalEvent([]byte(
		`{"type":"turn.completed","usage":{"input_tokens":100,"output_tokens":40}}`))
	require.NoError(t, err)
	turn := ev.(stream.TurnCompletedEvent)
	require.NotNil(t, turn.Usage)
	assert.Equal(t, uint64(100), turn.Usage.InputTokens)
	assert.Equal(t, uint64(40), turn.Usage.OutputTokens)
	assert.Equal(t, uint64(140), turn.Usage.TotalTokens)

	ev, err = stream.UnmarshalEvent([]byte(`{"type":"turn.completed"}`))
	require.NoError(t, err)
	assert.Nil(t, ev.(stream.TurnCompletedEvent).Usage)
}

func TestUnmarshalTurnFailedErrorShapes(t *testing.T) {
	ev, err := stream.UnmarshalEvent([]byte(`{"type":"turn.failed","error":"quota exceeded"}`))
	require.NoError(t, err)
	assert.Equal(t, "quota exceeded", ev.(stream.TurnFailedEvent).Message)

	ev, err = stream.UnmarshalEvent([]byte(`{"type":"turn.failed","error":{"message":"session expired"}}`))
	require.NoError(t, err)
	assert.Equal(t, "session expired", ev.(stream.TurnFailedEvent).Message)

	ev, err = stream.UnmarshalEvent([]byte(`{"type":"turn.failed"}`))
	require.NoError(t, err)
	assert.Equal(t, "unknown error", ev.(stream.TurnFailedEvent).Message)
}

func TestUnmarshalUnknownItemKind(t *testing.T) {
	ev, err := stream.UnmarshalEvent([]byte(
		`{"type":"item.started","item":{"type":"screenshot","path":"shot.png"}}`))
	require.NoError(t, err)
	unknown, ok := ev.(stream.ItemStartedEvent).Item.(stream.UnknownItem)
	require.True(t, ok)
	assert.Equal(t, "screenshot", unknown.Kind)
}

func TestUnmarshalTodoList(t *testing.T) {
	ev, err := stream.UnmarshalEvent([]byte(
		`{"type":"item.updated","item":{"type":"todo_list","items":[{"text":"fetch quote","completed":true},{"text":"draft valuation","completed":false}]}}`))
	require.NoError(t, err)
	todo := ev.(stream.ItemUpdatedEvent).Item.(stream.TodoListItem)
	require.Len(t, todo.Entries, 2)
	assert.True(t, todo.Entries[0].Completed)
	assert.Equal(t, "draft valuation", todo.Entries[1].Text)
}

func TestUnmarshalUnknownEventTypeFails(t *testing.T) {
	_, err := stream.UnmarshalEvent([]byte(`{"type":"item.archived"}`))
	assert.Error(t, err)
}
