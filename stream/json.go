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

package stream

import (
	"encoding/json"
	"fmt"

	"github.com/marketscribe/marketscribe/usage"
)

// Wire shape of one event, as emitted by agent runtimes speaking
// line-delimited JSON.
type wireEvent struct {
	Type  string          `json:"type"`
	Item  *wireItem       `json:"item,omitempty"`
	Usage *wireUsage      `json:"usage,omitempty"`
	Error json.RawMessage `json:"error,omitempty"`
}

type wireItem struct {
	Type      string      `json:"type"`
	Query     string      `json:"query,omitempty"`
	Results   *int        `json:"results,omitempty"`
	Text      string      `json:"text,omitempty"`
	Command   string      `json:"command,omitempty"`
	ExitCode  int         `json:"exit_code,omitempty"`
	Stdout    string      `json:"stdout,omitempty"`
	Stderr    string      `json:"stderr,omitempty"`
	Path      string      `json:"path,omitempty"`
	Size      int         `json:"size,omitempty"`
	Entries   int         `json:"entries,omitempty"`
	TodoItems []TodoEntry `json:"items,omitempty"`
}

type wireUsage struct {
	InputTokens  uint64 `json:"input_tokens"`
	OutputTokens uint64 `json:"output_tokens"`
}

// UnmarshalEvent decodes one JSON event into the Event union.
// Unknown item kinds decode to UnknownItem so a newer runtime does not
// break the reduction; unknown top-level event types are an error.
func UnmarshalEvent(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("malformed stream event: %w", err)
	}

	switch w.Type {
	case "item.started":
		return ItemStartedEvent{Item: decodeItem(w.Item)}, nil
	case "item.updated":
		return ItemUpdatedEvent{Item: decodeItem(w.Item)}, nil
	case "item.completed":
		return ItemCompletedEvent{Item: decodeItem(w.Item)}, nil
	case "turn.completed":
		ev := TurnCompletedEvent{}
		if w.Usage != nil {
			ev.Usage = &usage.Usage{
				Requests:     1,
				InputTokens:  w.Usage.InputTokens,
				OutputTokens: w.Usage.OutputTokens,
				TotalTokens:  w.Usage.InputTokens + w.Usage.OutputTokens,
			}
		}
		return ev, nil
	case "turn.failed":
		return TurnFailedEvent{Message: decodeErrorMessage(w.Error)}, nil
	default:
		return nil, fmt.Errorf("unknown stream event type %q", w.Type)
	}
}

func decodeItem(w *wireItem) Item {
	if w == nil {
		return UnknownItem{}
	}
	switch w.Type {
	case "web_search":
		it := WebSearchItem{Query: w.Query}
		if w.Results != nil {
			it.Results = *w.Results
			it.HasResults = true
		}
		return it
	case "reasoning":
		return ReasoningItem{Text: w.Text}
	case "command_execution", "bash":
		return CommandExecutionItem{
			Command:  w.Command,
			ExitCode: w.ExitCode,
			Stdout:   w.Stdout,
			Stderr:   w.Stderr,
		}
	case "file_read":
		return FileReadItem{Path: w.Path, Bytes: w.Size}
	case "file_write":
		return FileWriteItem{Path: w.Path, Bytes: w.Size}
	case "file_edit":
		return FileEditItem{Path: w.Path}
	case "directory_list":
		return DirectoryListItem{Path: w.Path, Entries: w.Entries}
	case "agent_message":
		return AgentMessageItem{Text: w.Text}
	case "todo_list":
		return TodoListItem{Entries: w.TodoItems}
	default:
		return UnknownItem{Kind: w.Type}
	}
}

// decodeErrorMessage accepts the error description either as a plain string
// or as an object with a "message" field.
func decodeErrorMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "unknown error"
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(raw)
}
