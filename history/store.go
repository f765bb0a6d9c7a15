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

// Package history persists chat transcripts per subject so that later
// report updates can replay the conversation that motivated them.
package history

import (
	"context"
	"time"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance in a chat transcript.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists chat turns keyed by subject (ticker symbol).
//
// Implementations must be safe for concurrent use.
type Store interface {
	// AddTurns appends turns to the subject's transcript.
	AddTurns(ctx context.Context, subject string, turns []Turn) error

	// Turns returns the transcript in chronological order. A positive
	// limit returns only the latest N turns, still oldest first.
	Turns(ctx context.Context, subject string, limit int) ([]Turn, error)

	// Clear removes every turn recorded for the subject.
	Clear(ctx context.Context, subject string) error

	// Close releases the underlying storage.
	Close(ctx context.Context) error
}
