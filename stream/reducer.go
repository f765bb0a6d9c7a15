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
	"context"
	"fmt"
	"log/slog"

	"github.com/marketscribe/marketscribe/usage"
)

// Result is the aggregate of one fully consumed turn.
type Result struct {
	// Final response text. Never empty on success.
	Response string

	// Token accounting reported by the runtime, nil if it reported none.
	Usage *usage.Usage
}

// ReduceOptions configures the side channels of a reduction.
// Both callbacks are best-effort telemetry: a panicking callback is
// recovered and logged, never failing the reduction.
type ReduceOptions struct {
	// OnProgress receives one human-readable line per notable event.
	OnProgress func(line string)

	// OnPartial receives the in-progress response text each time the
	// runtime updates the agent message, enabling incremental display.
	OnPartial func(text string)
}

// Reduce folds an ordered event sequence into the turn's final result.
//
// The sequence is consumed exactly once, in arrival order. Multiple agent
// message completions overwrite one another (last write wins). A
// TurnFailedEvent aborts the fold and discards any partial text. A sequence
// that ends without a non-empty agent message yields EmptyResponseError.
func Reduce(events EventSeq, opts ReduceOptions) (*Result, error) {
	var (
		finalText   string
		hasResponse bool
		turnUsage   *usage.Usage
		failure     *TurnFailedError
	)

	for event := range events {
		switch ev := event.(type) {
		case ItemStartedEvent:
			if line, ok := startLine(ev.Item); ok {
				emitProgress(opts.OnProgress, line)
			}

		case ItemUpdatedEvent:
			if msg, ok := ev.Item.(AgentMessageItem); ok {
				finalText = msg.Text
				hasResponse = true
				emitPartial(opts.OnPartial, msg.Text)
			}

		case ItemCompletedEvent:
			if msg, ok := ev.Item.(AgentMessageItem); ok {
				finalText = msg.Text
				hasResponse = true
				break
			}
			if line, ok := completionLine(ev.Item); ok {
				emitProgress(opts.OnProgress, line)
			}

		case TurnCompletedEvent:
			if ev.Usage != nil {
				turnUsage = ev.Usage
				emitProgress(opts.OnProgress, fmt.Sprintf(
					"turn finished (%d in / %d out tokens)",
					ev.Usage.InputTokens, ev.Usage.OutputTokens))
			} else {
				emitProgress(opts.OnProgress, "turn finished")
			}

		case TurnFailedEvent:
			err := NewTurnFailedError(ev.Message)
			failure = &err
		}

		if failure != nil {
			// Stop consuming immediately; the producer's remaining
			// events, if any, are abandoned.
			break
		}
	}

	if failure != nil {
		return nil, *failure
	}
	if !hasResponse || finalText == "" {
		return nil, NewEmptyResponseError()
	}
	return &Result{Response: finalText, Usage: turnUsage}, nil
}

// startLine derives the progress line announced when an item begins.
// Kinds with no dedicated wording only produce a line in verbose mode.
func startLine(item Item) (string, bool) {
	switch it := item.(type) {
	case WebSearchItem:
		return "searching: " + it.Query, true
	case ReasoningItem:
		return "thinking…", true
	case CommandExecutionItem:
		return "executing: " + it.Command, true
	case FileReadItem:
		return "reading " + it.Path, true
	case FileWriteItem:
		return "writing " + it.Path, true
	case FileEditItem:
		return "editing " + it.Path, true
	case DirectoryListItem:
		return "listing " + it.Path, true
	case TodoListItem:
		return todoLine(it), true
	default:
		if debugEnabled() {
			return fmt.Sprintf("working (%s)", itemKind(item)), true
		}
		return "", false
	}
}

// completionLine derives the progress line announced when a non-message
// item finishes.
func completionLine(item Item) (string, bool) {
	switch it := item.(type) {
	case WebSearchItem:
		if it.HasResults {
			return fmt.Sprintf("search finished: %d results", it.Results), true
		}
		return "search finished", true
	case CommandExecutionItem:
		return fmt.Sprintf("command exited with code %d", it.ExitCode), true
	case FileReadItem:
		return fmt.Sprintf("read %s (%d bytes)", it.Path, it.Bytes), true
	case FileWriteItem:
		return fmt.Sprintf("wrote %s (%d bytes)", it.Path, it.Bytes), true
	case FileEditItem:
		return "edited " + it.Path, true
	case DirectoryListItem:
		return fmt.Sprintf("listed %s (%d entries)", it.Path, it.Entries), true
	case TodoListItem:
		return todoLine(it), true
	default:
		return "", false
	}
}

func todoLine(it TodoListItem) string {
	done := 0
	for _, e := range it.Entries {
		if e.Completed {
			done++
		}
	}
	return fmt.Sprintf("plan: %d/%d tasks done", done, len(it.Entries))
}

func itemKind(item Item) string {
	switch it := item.(type) {
	case WebSearchItem:
		return "web_search"
	case ReasoningItem:
		return "reasoning"
	case CommandExecutionItem:
		return "command_execution"
	case FileReadItem:
		return "file_read"
	case FileWriteItem:
		return "file_write"
	case FileEditItem:
		return "file_edit"
	case DirectoryListItem:
		return "directory_list"
	case AgentMessageItem:
		return "agent_message"
	case TodoListItem:
		return "todo_list"
	case UnknownItem:
		return it.Kind
	default:
		return fmt.Sprintf("%T", item)
	}
}

func debugEnabled() bool {
	return Logger().Enabled(context.Background(), slog.LevelDebug)
}

func emitProgress(fn func(string), line string) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			Logger().Warn("progress callback panicked", slog.Any("recovered", r))
		}
	}()
	fn(line)
}

func emitPartial(fn func(string), text string) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			Logger().Warn("partial-text callback panicked", slog.Any("recovered", r))
		}
	}()
	fn(text)
}
