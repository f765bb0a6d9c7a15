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

// Package stream models the progress events emitted by the agent runtime
// while it executes a turn, and reduces an ordered event sequence into the
// turn's final result.
package stream

import (
	"iter"

	"github.com/marketscribe/marketscribe/usage"
)

// EventSeq is the ordered sequence of events for a single turn.
// It is single-use: the producer emits each event exactly once, in order.
type EventSeq = iter.Seq[Event]

// Event is a progress event observed during one turn.
type Event interface {
	isStreamEvent()
}

// ItemStartedEvent signals that the runtime began working on an item.
type ItemStartedEvent struct {
	Item Item
}

func (ItemStartedEvent) isStreamEvent() {}

// ItemUpdatedEvent carries a new snapshot of an in-progress item.
// For agent messages, the snapshot holds the partial response text.
type ItemUpdatedEvent struct {
	Item Item
}

func (ItemUpdatedEvent) isStreamEvent() {}

// ItemCompletedEvent carries the final state of an item.
type ItemCompletedEvent struct {
	Item Item
}

func (ItemCompletedEvent) isStreamEvent() {}

// TurnCompletedEvent signals that the runtime finished the turn.
// It does not terminate the sequence by itself; the sequence ends when the
// producer stops yielding.
type TurnCompletedEvent struct {
	// Token accounting for the turn. Nil when the runtime reported none.
	Usage *usage.Usage
}

func (TurnCompletedEvent) isStreamEvent() {}

// TurnFailedEvent signals that the runtime aborted the turn.
type TurnFailedEvent struct {
	Message string
}

func (TurnFailedEvent) isStreamEvent() {}

// Item is the payload of an item.* event.
type Item interface {
	isItem()
}

type WebSearchItem struct {
	Query string

	// Number of results, meaningful only when HasResults is true.
	Results    int
	HasResults bool
}

func (WebSearchItem) isItem() {}

type ReasoningItem struct {
	// Free-form reasoning text. May be truncated by the runtime.
	Text string
}

func (ReasoningItem) isItem() {}

type CommandExecutionItem struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (CommandExecutionItem) isItem() {}

type FileReadItem struct {
	Path  string
	Bytes int
}

func (FileReadItem) isItem() {}

type FileWriteItem struct {
	Path  string
	Bytes int
}

func (FileWriteItem) isItem() {}

type FileEditItem struct {
	Path string
}

func (FileEditItem) isItem() {}

type DirectoryListItem struct {
	Path    string
	Entries int
}

func (DirectoryListItem) isItem() {}

// AgentMessageItem is the only item kind that contributes to the final
// response text of a turn.
type AgentMessageItem struct {
	Text string
}

func (AgentMessageItem) isItem() {}

type TodoEntry struct {
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

type TodoListItem struct {
	Entries []TodoEntry
}

func (TodoListItem) isItem() {}

// UnknownItem stands in for item kinds this version does not model,
// so decoding keeps working when the runtime adds new kinds.
type UnknownItem struct {
	Kind string
}

func (UnknownItem) isItem() {}
